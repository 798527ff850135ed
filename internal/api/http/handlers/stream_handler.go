package handlers

import (
	"context"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"
	"go.uber.org/zap"

	"github.com/spec-kit/support-portal/internal/api/dto"
	"github.com/spec-kit/support-portal/internal/auth"
	"github.com/spec-kit/support-portal/internal/livequery"
)

// StreamHandler serves the live ticket feed over WebSocket. Every frame
// is a full replacement snapshot for the viewer's scope; the
// subscription is torn down as soon as the socket closes.
type StreamHandler struct {
	engine *livequery.Engine
	logger *zap.Logger
}

// NewStreamHandler constructs handler.
func NewStreamHandler(engine *livequery.Engine, logger *zap.Logger) *StreamHandler {
	return &StreamHandler{engine: engine, logger: logger}
}

type snapshotFrame struct {
	Type    string               `json:"type"`
	Tickets []dto.TicketResponse `json:"tickets"`
}

type errorFrame struct {
	Type    string `json:"type"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Upgrade gates the route to WebSocket upgrade requests.
func (h *StreamHandler) Upgrade() fiber.Handler {
	return func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	}
}

// Stream GET /tickets/stream.
func (h *StreamHandler) Stream() fiber.Handler {
	return websocket.New(func(conn *websocket.Conn) {
		principal, ok := conn.Locals(auth.PrincipalKey).(*auth.Principal)
		if !ok || principal.User == nil {
			_ = conn.WriteJSON(errorFrame{Type: "error", Code: "UNAUTHORIZED", Message: "authentication required"})
			_ = conn.Close()
			return
		}
		viewer := livequery.Viewer{UserID: principal.User.ID, Role: principal.User.Role}

		sub, err := h.engine.Subscribe(context.Background(), viewer)
		if err != nil {
			_ = conn.WriteJSON(errorFrame{Type: "error", Code: "SUBSCRIPTION_FAILED", Message: "live query subscription failed"})
			_ = conn.Close()
			return
		}
		defer sub.Unsubscribe()

		closed := make(chan struct{})
		go func() {
			defer close(closed)
			for {
				if _, _, err := conn.ReadMessage(); err != nil {
					return
				}
			}
		}()

		for {
			select {
			case <-closed:
				return
			case snapshot, ok := <-sub.Updates():
				if !ok {
					if subErr := sub.Err(); subErr != nil {
						h.logger.Warn("ticket stream ended with error",
							zap.String("viewer_id", viewer.UserID),
							zap.Error(subErr))
						_ = conn.WriteJSON(errorFrame{Type: "error", Code: "SUBSCRIPTION_FAILED", Message: "live query subscription failed"})
					}
					_ = conn.Close()
					return
				}
				frame := snapshotFrame{Type: "snapshot", Tickets: dto.TicketsFromDomain(snapshot)}
				if err := conn.WriteJSON(frame); err != nil {
					return
				}
			}
		}
	})
}
