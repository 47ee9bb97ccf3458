package stubserver

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/rs/zerolog"

	"github.com/lemonhq/roomchat/chat/service"
	"github.com/lemonhq/roomchat/transport/socket"
)

// Server is an in-process chat backend speaking the same REST and socket
// contract as the hosted service. It backs local development and the
// integration tests; state lives in memory only.
type Server struct {
	hub    *Hub
	router *mux.Router
	log    zerolog.Logger

	mu     sync.Mutex
	rooms  map[string]*service.RoomView
	nodes  map[string]*service.NodeView
	tokens map[string]string // identity token -> channel id
}

// NewServer creates a stub backend with one default room.
func NewServer(log zerolog.Logger) *Server {
	s := &Server{
		hub:    NewHub(log),
		router: mux.NewRouter(),
		log:    log.With().Str("component", "stubserver").Logger(),
		rooms:  make(map[string]*service.RoomView),
		nodes:  make(map[string]*service.NodeView),
		tokens: make(map[string]string),
	}

	s.createRoom("lobby")
	s.setupRoutes()
	go s.hub.Run()
	return s
}

// setupRoutes configures all routes.
func (s *Server) setupRoutes() {
	s.router.HandleFunc("/rooms/{id}", s.handleCreateRoom).Methods("POST")
	s.router.HandleFunc("/public/room-detail", s.handleRoomDetail).Methods("GET")
	s.router.HandleFunc("/public/start-chat", s.handleStartChat).Methods("POST")
	s.router.HandleFunc("/public/send-message", s.handleSendMessage).Methods("POST")
	s.router.HandleFunc("/public/leave-chat", s.handleLeaveChat).Methods("POST")
	s.router.HandleFunc("/public/update-node", s.handleUpdateNode).Methods("POST")
	s.router.HandleFunc("/socket", s.handleSocket)
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// Response helpers
func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{"error": message})
}

// createRoom registers a new room and its broadcast channel.
func (s *Server) createRoom(name string) *service.RoomView {
	room := &service.RoomView{
		ID:        "room-" + uuid.New().String(),
		Name:      name,
		ChannelID: "chan-" + uuid.New().String(),
	}
	s.mu.Lock()
	s.rooms[room.ID] = room
	s.mu.Unlock()
	return room
}

// defaultRoom returns the first registered room.
func (s *Server) defaultRoom() *service.RoomView {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, room := range s.rooms {
		return room
	}
	return nil
}

func (s *Server) handleCreateRoom(w http.ResponseWriter, r *http.Request) {
	var body service.RoomBody
	if r.Body != nil {
		json.NewDecoder(r.Body).Decode(&body)
	}
	if body.Name == "" {
		body.Name = "room"
	}

	room := s.createRoom(body.Name)
	s.log.Info().Str("roomId", room.ID).Str("name", room.Name).Msg("room created")
	respondJSON(w, http.StatusCreated, room)
}

func (s *Server) handleRoomDetail(w http.ResponseWriter, r *http.Request) {
	roomID := r.URL.Query().Get("roomId")

	s.mu.Lock()
	room, ok := s.rooms[roomID]
	s.mu.Unlock()
	if !ok {
		respondError(w, http.StatusNotFound, "room not found")
		return
	}

	respondJSON(w, http.StatusOK, room)
}

func (s *Server) handleStartChat(w http.ResponseWriter, r *http.Request) {
	var body service.NodeBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if body.Name == "" {
		respondError(w, http.StatusBadRequest, "name is required")
		return
	}

	room := s.defaultRoom()
	if room == nil {
		respondError(w, http.StatusInternalServerError, "no room available")
		return
	}

	node := &service.NodeView{
		ID:     "node-" + uuid.New().String(),
		RoomID: room.ID,
		Name:   body.Name,
	}
	token := "token-" + uuid.New().String()

	s.mu.Lock()
	s.nodes[node.ID] = node
	s.tokens[token] = room.ChannelID
	s.mu.Unlock()

	s.log.Info().Str("nodeId", node.ID).Str("name", node.Name).Msg("participant entered")
	respondJSON(w, http.StatusOK, service.UserTokenView{
		ID:    node.ID,
		Room:  room,
		Token: &service.TokenView{IdentityToken: token},
	})
}

func (s *Server) handleSendMessage(w http.ResponseWriter, r *http.Request) {
	var body service.ChatBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	s.mu.Lock()
	node, ok := s.nodes[body.NodeID]
	var room *service.RoomView
	if ok {
		room = s.rooms[node.RoomID]
	}
	s.mu.Unlock()
	if !ok || room == nil {
		respondError(w, http.StatusNotFound, "node not found")
		return
	}

	now := time.Now()
	chat := service.ChatView{
		ID:        "msg-" + uuid.New().String(),
		RoomID:    room.ID,
		NodeID:    node.ID,
		Message:   body.Message,
		CreatedAt: now,
	}

	s.hub.Broadcast(room.ChannelID, socket.Frame{
		Action: socket.ActionMessage,
		Data: mustRaw(map[string]interface{}{
			"author":     node.ConnectionID,
			"authorName": node.Name,
			"message":    body.Message,
			"timestamp":  now.UnixMilli(),
		}),
	})

	respondJSON(w, http.StatusOK, chat)
}

func (s *Server) handleLeaveChat(w http.ResponseWriter, r *http.Request) {
	nodeID := r.URL.Query().Get("nodeId")

	s.mu.Lock()
	node, ok := s.nodes[nodeID]
	var room *service.RoomView
	if ok {
		room = s.rooms[node.RoomID]
		delete(s.nodes, nodeID)
	}
	s.mu.Unlock()
	if !ok {
		respondError(w, http.StatusNotFound, "node not found")
		return
	}

	if room != nil {
		s.hub.Broadcast(room.ChannelID, socket.Frame{
			Action: socket.ActionMessage,
			Data: mustRaw(map[string]interface{}{
				"action":     "leave",
				"author":     node.ConnectionID,
				"authorName": node.Name,
				"timestamp":  time.Now().UnixMilli(),
			}),
		})
	}

	s.log.Info().Str("nodeId", node.ID).Str("name", node.Name).Msg("participant left")
	respondJSON(w, http.StatusOK, node)
}

func (s *Server) handleUpdateNode(w http.ResponseWriter, r *http.Request) {
	nodeID := r.URL.Query().Get("nodeId")

	var body struct {
		ConnectionID string `json:"connectionId"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	s.mu.Lock()
	node, ok := s.nodes[nodeID]
	var room *service.RoomView
	firstBinding := false
	if ok {
		firstBinding = node.ConnectionID == "" && body.ConnectionID != ""
		node.ConnectionID = body.ConnectionID
		room = s.rooms[node.RoomID]
	}
	s.mu.Unlock()
	if !ok {
		respondError(w, http.StatusNotFound, "node not found")
		return
	}

	// The participant is addressable once its connection id is bound;
	// announce the join to the channel.
	if firstBinding && room != nil {
		s.hub.Broadcast(room.ChannelID, socket.Frame{
			Action: socket.ActionMessage,
			Data: mustRaw(map[string]interface{}{
				"action":     "join",
				"author":     node.ConnectionID,
				"authorName": node.Name,
				"timestamp":  time.Now().UnixMilli(),
			}),
		})
	}

	respondJSON(w, http.StatusOK, node)
}

func (s *Server) handleSocket(w http.ResponseWriter, r *http.Request) {
	channelID := r.URL.Query().Get("channels")
	if channelID == "" {
		http.Error(w, "channels parameter required", http.StatusBadRequest)
		return
	}

	token := r.URL.Query().Get("x-lemon-identity")
	s.mu.Lock()
	issued, ok := s.tokens[token]
	s.mu.Unlock()
	if !ok || issued != channelID {
		http.Error(w, "invalid identity token", http.StatusUnauthorized)
		return
	}

	s.hub.ServeWS(w, r, channelID)
}
