package server

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/Maktab119TinyInstagram/ESPA-Social-Meda/internal/auth"
	"github.com/Maktab119TinyInstagram/ESPA-Social-Meda/internal/middleware"
	"github.com/Maktab119TinyInstagram/ESPA-Social-Meda/internal/models"
	"github.com/Maktab119TinyInstagram/ESPA-Social-Meda/internal/observability"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const (
	wsTicketPrefix = "ws_ticket:"
	wsTicketTTL    = 30 * time.Second
)

func wsTicketKey(ticket string) string {
	return wsTicketPrefix + ticket
}

// IssueWSTicket handles POST /api/ws/ticket
// @Summary Issue a WebSocket ticket
// @Description The ticket authenticates one activity stream connection and expires after 30 seconds
// @Tags realtime
// @Produce json
// @Success 200 {object} object{ticket=string,expires_in=int}
// @Failure 401 {object} models.ErrorResponse
// @Failure 503 {object} models.ErrorResponse
// @Router /ws/ticket [post]
func (s *Server) IssueWSTicket(c *fiber.Ctx) error {
	if s.redis == nil {
		return models.RespondWithError(c, fiber.StatusServiceUnavailable,
			errors.New("realtime service unavailable"))
	}

	ticket := uuid.NewString()
	if err := s.redis.Set(c.UserContext(), wsTicketKey(ticket), strconv.FormatUint(uint64(viewerID(c)), 10), wsTicketTTL).Err(); err != nil {
		middleware.RedisErrors.WithLabelValues("set").Inc()
		return s.respondError(c, models.NewInternalError(err))
	}

	return c.JSON(fiber.Map{
		"ticket":     ticket,
		"expires_in": int(wsTicketTTL.Seconds()),
	})
}

// WSTicketAuth authenticates a WebSocket upgrade. A ticket is consumed
// atomically; without one the identity resolved from cookies is used.
func (s *Server) WSTicketAuth(c *fiber.Ctx) error {
	if !websocket.IsWebSocketUpgrade(c) {
		return models.RespondWithError(c, fiber.StatusUpgradeRequired,
			models.NewValidationError("WebSocket upgrade required"))
	}

	ticket := c.Query("ticket")
	if ticket == "" {
		if _, ok := middleware.UserIDFromCtx(c); ok {
			return c.Next()
		}
		return models.RespondWithError(c, fiber.StatusUnauthorized,
			models.NewUnauthorizedError("WebSocket ticket required"))
	}

	userID, err := s.consumeWSTicket(c, ticket)
	if err != nil {
		return models.RespondWithError(c, fiber.StatusUnauthorized,
			models.NewUnauthorizedError("Invalid or expired WebSocket ticket"))
	}
	middleware.SetIdentity(c, auth.Identity{UserID: userID, Source: auth.SourceTicket})
	return c.Next()
}

func (s *Server) consumeWSTicket(c *fiber.Ctx, ticket string) (uint, error) {
	if s.redis == nil {
		return 0, errors.New("redis unavailable")
	}
	raw, err := s.redis.GetDel(c.UserContext(), wsTicketKey(ticket)).Result()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			middleware.RedisErrors.WithLabelValues("getdel").Inc()
		}
		return 0, err
	}
	id, err := strconv.ParseUint(raw, 10, 64)
	if err != nil || id == 0 {
		return 0, fmt.Errorf("malformed ticket owner %q", raw)
	}
	return uint(id), nil
}

// WebsocketHandler streams activity events to the connected user.
func (s *Server) WebsocketHandler() fiber.Handler {
	return websocket.New(func(conn *websocket.Conn) {
		middleware.ActiveWebSockets.Inc()
		defer middleware.ActiveWebSockets.Dec()

		uid, ok := conn.Locals("userID").(uint)
		if !ok || uid == 0 || s.hub == nil {
			_ = conn.Close()
			return
		}

		client, err := s.hub.Register(uid, conn)
		if err != nil {
			observability.GlobalLogger.Warn("activity stream rejected", "user_id", uid, "error", err.Error())
			_ = conn.WriteMessage(websocket.TextMessage, []byte(`{"error":"`+err.Error()+`"}`))
			_ = conn.Close()
			return
		}

		client.TrySend([]byte(fmt.Sprintf(`{"type":"connected","payload":{"user_id":%d}}`, uid)))

		go client.WritePump()
		client.ReadPump()
	})
}
