// Command roomchat is a terminal chat client.
//
// It supports two modes:
//  1. "chat" (default) – joins the room under a nickname and relays terminal
//     input as chat messages
//  2. "mcp" – serves the chat tools over MCP stdio for agent integration
//
// Endpoints come from flags or the CHAT_API_ENDPOINT / CHAT_SOCKET_ENDPOINT
// environment variables; a .env file is loaded when present.
package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/mark3labs/mcp-go/server"
	"github.com/rs/zerolog"
	"github.com/urfave/cli/v3"

	"github.com/lemonhq/roomchat/chat/config"
	"github.com/lemonhq/roomchat/chat/history"
	"github.com/lemonhq/roomchat/chat/rest"
	"github.com/lemonhq/roomchat/chat/session"
	"github.com/lemonhq/roomchat/transport/mcp"
)

// Version information
const (
	Version = "1.0.0"
	AppName = "Room Chat"
)

// feedPollInterval is how often the terminal view drains new feed entries.
const feedPollInterval = 250 * time.Millisecond

func main() {
	// Load .env file if it exists (ignore error if not found)
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		fmt.Fprintf(os.Stderr, "Warning: error loading .env file: %v\n", err)
	}

	cmd := newRootCommand()
	if err := cmd.Run(context.Background(), os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func newRootCommand() *cli.Command {
	flags := []cli.Flag{
		&cli.StringFlag{
			Name:  "api",
			Usage: "Chat REST API base URL (overrides CHAT_API_ENDPOINT)",
		},
		&cli.StringFlag{
			Name:  "socket",
			Usage: "Realtime socket base URL (overrides CHAT_SOCKET_ENDPOINT)",
		},
		&cli.StringFlag{
			Name:    "nick",
			Aliases: []string{"n"},
			Usage:   "Nickname to join under",
		},
		&cli.StringFlag{
			Name:  "transcript",
			Usage: "Path of a SQLite transcript file (optional)",
		},
		&cli.BoolFlag{
			Name:  "debug",
			Usage: "Enable debug logging",
		},
	}

	return &cli.Command{
		Name:    "roomchat",
		Usage:   "join a chat room from the terminal",
		Version: Version,
		Flags:   flags,
		Action:  runChat,
		Commands: []*cli.Command{
			{
				Name:   "mcp",
				Usage:  "serve the chat tools over MCP stdio",
				Flags:  flags,
				Action: runMCP,
			},
		},
	}
}

// newLogger builds the process logger. Console output goes to stderr so the
// chat view owns stdout.
func newLogger(debug bool) zerolog.Logger {
	level := zerolog.InfoLevel
	if debug {
		level = zerolog.DebugLevel
	}
	return zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: "15:04:05"}).
		Level(level).
		With().Timestamp().Logger()
}

// buildConfig merges environment configuration with flag overrides and
// validates the result.
func buildConfig(apiOverride, socketOverride string) (*config.Config, error) {
	cfg := config.FromEnv()
	if apiOverride != "" {
		cfg.APIEndpoint = apiOverride
	}
	if socketOverride != "" {
		cfg.SocketEndpoint = socketOverride
	}
	withDefaults := cfg.WithDefaults()
	if err := withDefaults.Validate(); err != nil {
		return nil, err
	}
	return &withDefaults, nil
}

// newCoordinator wires the REST client, the optional transcript store, and
// the session coordinator.
func newCoordinator(cmd *cli.Command, cfg *config.Config, log zerolog.Logger) (*session.Coordinator, func(), error) {
	svc := rest.NewClient(cfg, log)

	cleanup := func() {}
	if path := cmd.String("transcript"); path != "" {
		store, err := history.Open(path)
		if err != nil {
			return nil, nil, fmt.Errorf("open transcript: %w", err)
		}
		cleanup = func() { store.Close() }
		return session.NewCoordinatorWithTranscript(cfg, svc, store, log), cleanup, nil
	}

	return session.NewCoordinator(cfg, svc, log), cleanup, nil
}

// runChat joins the room and runs the interactive terminal loop until the
// user quits or the process receives a shutdown signal.
func runChat(ctx context.Context, cmd *cli.Command) error {
	log := newLogger(cmd.Bool("debug"))

	cfg, err := buildConfig(cmd.String("api"), cmd.String("socket"))
	if err != nil {
		return err
	}

	nick := cmd.String("nick")
	if nick == "" {
		return fmt.Errorf("a nickname is required (use --nick)")
	}

	coord, cleanup, err := newCoordinator(cmd, cfg, log)
	if err != nil {
		return err
	}
	defer cleanup()

	sess, err := coord.Join(ctx, nick)
	if err != nil {
		return fmt.Errorf("join failed: %w", err)
	}
	fmt.Printf("Joined room %s as %q. Type a message, or /quit to leave.\n", sess.RoomID, sess.Nickname)

	// Shutdown signals get the beacon path: disconnect now, fire the leave,
	// and exit without waiting on the API.
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		log.Info().Str("signal", sig.String()).Msg("shutting down")
		if err := coord.LeaveBeacon(); err != nil {
			log.Error().Err(err).Msg("leave beacon failed")
		}
		// Give the detached beacon request a moment to leave the process.
		time.Sleep(500 * time.Millisecond)
		os.Exit(0)
	}()

	go printFeed(ctx, coord)

	scanner := bufio.NewScanner(os.Stdin)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		if line == "/quit" {
			break
		}
		if _, err := coord.SendMessage(ctx, line); err != nil {
			log.Error().Err(err).Msg("send failed")
		}
	}

	if err := coord.Leave(ctx); err != nil {
		log.Error().Err(err).Msg("leave failed")
	}
	fmt.Println("Left the room.")
	return scanner.Err()
}

// printFeed drains new feed entries onto stdout.
func printFeed(ctx context.Context, coord *session.Coordinator) {
	ticker := time.NewTicker(feedPollInterval)
	defer ticker.Stop()

	printed := 0
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			feed := coord.Feed()
			if len(feed) < printed {
				// The feed was cleared by a leave.
				printed = 0
				continue
			}
			for _, entry := range feed[printed:] {
				ts := entry.Timestamp.Format("15:04:05")
				if entry.Kind == session.EntryNotice {
					fmt.Printf("[%s] * %s\n", ts, entry.Text)
					continue
				}
				name := entry.AuthorName
				if name == "" {
					name = entry.Author
				}
				fmt.Printf("[%s] %s: %s\n", ts, name, entry.Text)
			}
			printed = len(feed)
		}
	}
}

// runMCP serves the chat tools over MCP stdio.
func runMCP(ctx context.Context, cmd *cli.Command) error {
	log := newLogger(cmd.Bool("debug"))

	cfg, err := buildConfig(cmd.String("api"), cmd.String("socket"))
	if err != nil {
		return err
	}

	coord, cleanup, err := newCoordinator(cmd, cfg, log)
	if err != nil {
		return err
	}
	defer cleanup()
	defer coord.Close()

	svc := rest.NewClient(cfg, log)
	mcpClient := mcp.NewClient(coord, svc)

	log.Info().Msg("MCP stdio server ready")
	if err := server.ServeStdio(mcpClient.GetMCPServer()); err != nil {
		return fmt.Errorf("MCP stdio server error: %w", err)
	}
	return nil
}
