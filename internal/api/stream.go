package api

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/terra-clan/codeladder/internal/ladders"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

const streamWriteTimeout = 10 * time.Second

// StreamMessage is one frame of the ladder stream. Clients may send
// {"type":"refresh"} to ask for an immediate update.
type StreamMessage struct {
	Type    string            `json:"type"`
	Ladders *ladders.Snapshot `json:"ladders,omitempty"`
	Error   string            `json:"error,omitempty"`
}

// handleLadderStream pushes the caller's ladder list with progress every
// stream interval until the client disconnects. The stream owns its
// collection and closes it on exit so late refreshes are discarded.
func (s *Server) handleLadderStream(w http.ResponseWriter, r *http.Request) {
	sess := SessionFromContext(r.Context())

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Error("failed to upgrade to websocket", "error", err)
		return
	}
	defer conn.Close()

	coll := s.workspaces.Collection(sess)
	defer coll.Close()

	// Bounded by the connection, not by request deadlines
	ctx, cancel := context.WithCancel(context.WithoutCancel(r.Context()))
	defer cancel()

	slog.Info("ladder stream connected", "username", sess.Username)
	defer slog.Info("ladder stream disconnected", "username", sess.Username)

	refresh := make(chan struct{}, 1)
	go func() {
		defer cancel()
		for {
			_, data, err := conn.ReadMessage()
			if err != nil {
				return
			}
			var msg StreamMessage
			if json.Unmarshal(data, &msg) == nil && msg.Type == "refresh" {
				select {
				case refresh <- struct{}{}:
				default:
				}
			}
		}
	}()

	ticker := time.NewTicker(s.config.Stream.Interval)
	defer ticker.Stop()

	for {
		if err := s.pushLadders(ctx, conn, coll); err != nil {
			return
		}

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		case <-refresh:
		}
	}
}

func (s *Server) pushLadders(ctx context.Context, conn *websocket.Conn, coll *ladders.Collection) error {
	if err := coll.Refresh(ctx); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return s.sendStreamMessage(conn, StreamMessage{Type: "error", Error: coll.Message().Text})
	}

	snap := coll.Snapshot()
	return s.sendStreamMessage(conn, StreamMessage{Type: "ladders", Ladders: &snap})
}

func (s *Server) sendStreamMessage(conn *websocket.Conn, msg StreamMessage) error {
	data, err := json.Marshal(msg)
	if err != nil {
		slog.Error("failed to marshal stream message", "error", err)
		return err
	}
	conn.SetWriteDeadline(time.Now().Add(streamWriteTimeout))
	if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
		slog.Debug("failed to send stream message", "error", err)
		return err
	}
	return nil
}
