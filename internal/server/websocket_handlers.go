package server

import (
	"context"
	"encoding/json"
	"log/slog"

	"huddle/internal/feed"
	"huddle/internal/models"
	"huddle/internal/notifications"
	"huddle/internal/observability"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"
)

// WebSocketUpgrade rejects plain HTTP requests to the websocket endpoint.
func (s *Server) WebSocketUpgrade(c *fiber.Ctx) error {
	if !websocket.IsWebSocketUpgrade(c) {
		return fiber.ErrUpgradeRequired
	}
	return c.Next()
}

// WebSocketFeedHandler handles GET /api/ws. A connection joins community
// rooms with {"type":"join","communityId":N} and then receives new_post and
// update_like events for them.
// @Summary Realtime feed socket
// @Tags realtime
// @Param ticket query string false "One-time ticket from /ws/ticket"
// @Success 101
// @Failure 401 {object} models.ErrorResponse
// @Failure 426 {object} models.ErrorResponse
// @Router /ws [get]
func (s *Server) WebSocketFeedHandler() fiber.Handler {
	return websocket.New(func(conn *websocket.Conn) {
		uid, ok := conn.Locals("userID").(uint)
		if !ok || uid == 0 {
			writeErrorAndClose(conn, "unauthorized")
			return
		}

		client, err := s.hub.Register(uid, conn)
		if err != nil {
			observability.Logger.Warn("ws_register_rejected",
				slog.Uint64("user_id", uint64(uid)),
				slog.String("error", err.Error()))
			writeErrorAndClose(conn, err.Error())
			return
		}

		observability.Logger.Info("ws_connected",
			slog.String("conn_id", client.ID),
			slog.Uint64("user_id", uint64(uid)))

		client.IncomingHandler = s.handleFeedMessage

		go client.WritePump()
		client.ReadPump()

		observability.Logger.Info("ws_disconnected",
			slog.String("conn_id", client.ID),
			slog.Uint64("user_id", uint64(uid)))
	})
}

func writeErrorAndClose(conn *websocket.Conn, msg string) {
	frame, _ := json.Marshal(notifications.ErrorMessage(msg))
	_ = conn.WriteMessage(websocket.TextMessage, frame)
	_ = conn.Close()
}

// handleFeedMessage applies one inbound control message. Unknown or
// malformed messages get an error frame; the connection stays open.
func (s *Server) handleFeedMessage(c *notifications.Client, raw []byte) {
	var msg notifications.InboundMessage
	if err := json.Unmarshal(raw, &msg); err != nil {
		observability.InboundRejected.WithLabelValues("malformed").Inc()
		c.SendJSON(notifications.ErrorMessage("invalid message format"))
		return
	}

	registry := s.hub.Registry()

	switch msg.Type {
	case notifications.TypeJoin:
		if msg.CommunityID == 0 {
			c.SendJSON(notifications.ErrorMessage("communityId is required"))
			return
		}
		ctx := observability.WithConnID(observability.WithUserID(context.Background(), c.UserID), c.ID)
		if _, err := s.communityService.Get(ctx, msg.CommunityID); err != nil {
			if models.IsCode(err, models.CodeNotFound) {
				c.SendJSON(notifications.ErrorMessage("community not found"))
				return
			}
			observability.Logger.WarnContext(ctx, "ws_join_lookup_failed", slog.String("error", err.Error()))
			c.SendJSON(notifications.ErrorMessage("community lookup failed"))
			return
		}
		if registry.Join(c, feed.RoomID(msg.CommunityID)) {
			c.SendJSON(notifications.AckMessage{Type: notifications.TypeJoined, CommunityID: msg.CommunityID})
		}

	case notifications.TypeLeave:
		if msg.CommunityID == 0 {
			c.SendJSON(notifications.ErrorMessage("communityId is required"))
			return
		}
		registry.Leave(c, feed.RoomID(msg.CommunityID))
		c.SendJSON(notifications.AckMessage{Type: notifications.TypeLeft, CommunityID: msg.CommunityID})

	default:
		observability.InboundRejected.WithLabelValues("unknown_type").Inc()
		c.SendJSON(notifications.ErrorMessage("unknown message type"))
	}
}
