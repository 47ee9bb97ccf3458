package session

import "github.com/lemonhq/roomchat/chat/service"

// Session identifies one user's participation in one room. ConnectionID is
// empty until the socket handshake reports the server-assigned id; until then
// the session is pending identification.
type Session struct {
	ID            string `json:"id"`
	RoomID        string `json:"roomId"`
	ChannelID     string `json:"channelId"`
	IdentityToken string `json:"-"`
	Nickname      string `json:"nickname"`
	ConnectionID  string `json:"connectionId,omitempty"`
}

// mergeSession folds a node update into an existing session, preserving every
// field the update does not carry. The nickname in particular is client-side
// only and never present in server views.
func mergeSession(old Session, update *service.NodeView) Session {
	merged := old
	if update == nil {
		return merged
	}
	if update.ID != "" {
		merged.ID = update.ID
	}
	if update.RoomID != "" {
		merged.RoomID = update.RoomID
	}
	if update.ConnectionID != "" {
		merged.ConnectionID = update.ConnectionID
	}
	return merged
}
