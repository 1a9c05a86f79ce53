package api

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"

	"github.com/keystride/keystride/internal/domain/model"
	"github.com/keystride/keystride/pkg/logger"
)

const (
	feedWriteWait  = 10 * time.Second
	feedPongWait   = 60 * time.Second
	feedPingPeriod = feedPongWait * 9 / 10
	feedReadLimit  = 4096
)

// Message types sent on the feed socket.
const (
	msgAttempt = "attempt"
	msgPong    = "pong"
	msgError   = "error"
)

// feedMessage is one frame of the live feed.
type feedMessage struct {
	Type string `json:"type"`
	*model.AttemptEvent
	Data string `json:"data,omitempty"`
}

// clientMessage is a frame sent by the client. Only "ping" is understood.
type clientMessage struct {
	Type string `json:"type"`
}

// handleFeed handles GET /users/{id}/feed. The connection is upgraded to a
// WebSocket that receives one "attempt" message per processed attempt.
func (s *Server) handleFeed(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "id")

	events, cancel, err := s.deps.Subscribe(userID)
	if err != nil {
		writeError(w, r, Wrap("api.feed", err))
		return
	}
	defer cancel()

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn(r.Context(), "websocket upgrade failed", logger.String("user_id", userID), logger.Error(err))
		return
	}
	defer func() { _ = conn.Close() }()

	s.logger.Debug(r.Context(), "feed subscribed", logger.String("user_id", userID))

	ctx, stop := context.WithCancel(r.Context())
	defer stop()

	replies := make(chan feedMessage, 1)
	go s.readFeed(ctx, conn, stop, replies)
	s.writeFeed(ctx, conn, events, replies)
}

// readFeed consumes client frames until the socket closes.
func (s *Server) readFeed(ctx context.Context, conn *websocket.Conn, stop context.CancelFunc, replies chan<- feedMessage) {
	defer stop()

	conn.SetReadLimit(feedReadLimit)
	_ = conn.SetReadDeadline(time.Now().Add(feedPongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(feedPongWait))
	})

	for {
		var msg clientMessage
		if err := conn.ReadJSON(&msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				s.logger.Debug(ctx, "feed read failed", logger.Error(err))
			}
			return
		}
		reply := feedMessage{Type: msgPong}
		if msg.Type != "ping" {
			reply = feedMessage{Type: msgError, Data: "unknown message type: " + msg.Type}
		}
		select {
		case replies <- reply:
		default:
		}
	}
}

// writeFeed is the only writer on conn.
func (s *Server) writeFeed(ctx context.Context, conn *websocket.Conn, events <-chan model.AttemptEvent, replies <-chan feedMessage) {
	ticker := time.NewTicker(feedPingPeriod)
	defer ticker.Stop()

	write := func(msg feedMessage) bool {
		_ = conn.SetWriteDeadline(time.Now().Add(feedWriteWait))
		return conn.WriteJSON(msg) == nil
	}

	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-events:
			if !ok {
				_ = conn.WriteControl(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down"),
					time.Now().Add(feedWriteWait))
				return
			}
			if !write(feedMessage{Type: msgAttempt, AttemptEvent: &ev}) {
				return
			}
		case reply := <-replies:
			if !write(reply) {
				return
			}
		case <-ticker.C:
			_ = conn.SetWriteDeadline(time.Now().Add(feedWriteWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
