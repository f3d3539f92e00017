package server

import (
	"errors"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"huddle/internal/auth"
	"huddle/internal/models"
	"huddle/internal/observability"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const (
	tokenCookie     = "token"
	wsTicketTTL     = 60 * time.Second
	wsTicketPrefix  = "ws_ticket:"
	blacklistPrefix = "blacklist:"
	// revokedUserPrefix marks a deleted account; every token it holds is refused.
	revokedUserPrefix = "revoked_user:"
)

// AuthRequired authenticates the request from, in order, a one-time
// websocket ticket, the session cookie or a Bearer token. It sets the
// "userID" local and the user id on the request context.
func (s *Server) AuthRequired() fiber.Handler {
	return func(c *fiber.Ctx) error {
		isWSPath := strings.HasPrefix(c.Path(), "/api/ws")

		if ticket := c.Query("ticket"); ticket != "" && isWSPath {
			uid, err := s.consumeWSTicket(c, ticket)
			if err != nil {
				return models.Respond(c, err)
			}
			if n, err := s.redis.Exists(c.UserContext(), revokedUserKey(uid)).Result(); err == nil && n > 0 {
				return models.RespondWithError(c, fiber.StatusUnauthorized,
					models.NewUnauthorizedError("Token has been revoked"))
			}
			return s.authenticated(c, auth.Claims{UserID: uid})
		}

		tokenString := bearerToken(c)
		if tokenString == "" {
			tokenString = c.Cookies(tokenCookie)
		}
		if tokenString == "" {
			return models.RespondWithError(c, fiber.StatusUnauthorized,
				models.NewUnauthorizedError("Authorization required"))
		}

		claims, err := s.tokens.Parse(tokenString)
		if err != nil {
			return models.RespondWithError(c, fiber.StatusUnauthorized,
				models.NewUnauthorizedError("Invalid or expired token"))
		}

		if s.redis != nil {
			keys := []string{revokedUserKey(claims.UserID)}
			if claims.JTI != "" {
				keys = append(keys, blacklistPrefix+claims.JTI)
			}
			revoked, err := s.redis.Exists(c.UserContext(), keys...).Result()
			if err == nil && revoked > 0 {
				return models.RespondWithError(c, fiber.StatusUnauthorized,
					models.NewUnauthorizedError("Token has been revoked"))
			}
		}

		return s.authenticated(c, claims)
	}
}

func (s *Server) authenticated(c *fiber.Ctx, claims auth.Claims) error {
	c.Locals("userID", claims.UserID)
	c.SetUserContext(observability.WithUserID(c.UserContext(), claims.UserID))
	return c.Next()
}

func bearerToken(c *fiber.Ctx) string {
	scheme, token, ok := strings.Cut(c.Get(fiber.HeaderAuthorization), " ")
	if !ok || scheme != "Bearer" {
		return ""
	}
	return strings.TrimSpace(token)
}

// consumeWSTicket atomically reads and deletes a ticket so it works once.
func (s *Server) consumeWSTicket(c *fiber.Ctx, ticket string) (uint, error) {
	if s.redis == nil {
		return 0, models.NewUnauthorizedError("WebSocket tickets are unavailable")
	}
	raw, err := s.redis.GetDel(c.UserContext(), wsTicketPrefix+ticket).Result()
	if errors.Is(err, redis.Nil) {
		return 0, models.NewUnauthorizedError("Invalid or expired WebSocket ticket")
	}
	if err != nil {
		return 0, models.NewStoreUnavailableError(err)
	}
	uid, err := strconv.ParseUint(raw, 10, 32)
	if err != nil || uid == 0 {
		return 0, models.NewUnauthorizedError("Invalid or expired WebSocket ticket")
	}
	return uint(uid), nil
}

// IssueWSTicket handles POST /api/ws/ticket
// @Summary Issue websocket ticket
// @Description Issue a single-use ticket valid for 60 seconds to open /api/ws
// @Tags realtime
// @Produce json
// @Security BearerAuth
// @Success 200 {object} object{ticket=string,expires_in=int}
// @Failure 401 {object} models.ErrorResponse
// @Failure 503 {object} models.ErrorResponse
// @Router /ws/ticket [post]
func (s *Server) IssueWSTicket(c *fiber.Ctx) error {
	if s.redis == nil {
		return models.Respond(c, models.NewStoreUnavailableError(errors.New("redis not configured")))
	}

	ticket := uuid.NewString()
	uid := userID(c)
	if err := s.redis.Set(c.UserContext(), wsTicketPrefix+ticket, strconv.FormatUint(uint64(uid), 10), wsTicketTTL).Err(); err != nil {
		return models.Respond(c, models.NewStoreUnavailableError(err))
	}

	return c.JSON(fiber.Map{
		"ticket":     ticket,
		"expires_in": int(wsTicketTTL.Seconds()),
	})
}

// Logout handles POST /api/auth/logout
// @Summary Logout
// @Description Clear the session cookie and revoke the presented token
// @Tags auth
// @Produce json
// @Success 200 {object} object{message=string}
// @Router /auth/logout [post]
func (s *Server) Logout(c *fiber.Ctx) error {
	tokenString := bearerToken(c)
	if tokenString == "" {
		tokenString = c.Cookies(tokenCookie)
	}

	if tokenString != "" && s.redis != nil {
		if claims, err := s.tokens.Parse(tokenString); err == nil && claims.JTI != "" {
			ttl := time.Until(claims.ExpiresAt)
			if ttl > 0 {
				if err := s.redis.Set(c.UserContext(), blacklistPrefix+claims.JTI, "1", ttl).Err(); err != nil {
					observability.Logger.WarnContext(c.UserContext(), "token_revoke_failed",
						slog.String("error", err.Error()))
				}
			}
		}
	}

	s.clearSessionCookie(c)
	return c.JSON(fiber.Map{"message": "logged out"})
}

func (s *Server) clearSessionCookie(c *fiber.Ctx) {
	c.Cookie(&fiber.Cookie{
		Name:     tokenCookie,
		Value:    "",
		Path:     "/",
		Expires:  time.Unix(0, 0),
		HTTPOnly: true,
		Secure:   s.config.IsProduction(),
		SameSite: fiber.CookieSameSiteLaxMode,
	})
}

func revokedUserKey(userID uint) string {
	return revokedUserPrefix + strconv.FormatUint(uint64(userID), 10)
}

// revokeUser refuses every outstanding token of userID until the longest
// possible token has expired. Without Redis, tokens of deleted accounts
// stay valid until they expire; production always has Redis.
func (s *Server) revokeUser(c *fiber.Ctx, userID uint) {
	if s.redis == nil {
		return
	}
	ttl := time.Duration(s.config.TokenTTLHours) * time.Hour
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	if err := s.redis.Set(c.UserContext(), revokedUserKey(userID), "1", ttl).Err(); err != nil {
		observability.Logger.WarnContext(c.UserContext(), "user_revoke_failed",
			slog.Uint64("user_id", uint64(userID)),
			slog.String("error", err.Error()))
	}
}
