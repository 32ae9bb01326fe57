// Package middleware provides authentication and authorization middleware for the application.
package middleware

import (
	"context"
	"strings"
	"time"

	"github.com/Maktab119TinyInstagram/ESPA-Social-Meda/internal/auth"
	"github.com/Maktab119TinyInstagram/ESPA-Social-Meda/internal/models"

	"github.com/gofiber/fiber/v2"
)

// Cookie names shared by the auth handlers and the identity middleware.
const (
	SessionCookieName = "sessionid"
	TokenCookieName   = "access_token"
)

// SessionCookieConfig controls the session cookie written on promotion and login.
type SessionCookieConfig struct {
	TTL    time.Duration
	Secure bool
}

// ExtractCredentials reads the raw session id, bearer token and cookie token.
func ExtractCredentials(c *fiber.Ctx) auth.Credentials {
	creds := auth.Credentials{
		SessionID:   c.Cookies(SessionCookieName),
		CookieToken: c.Cookies(TokenCookieName),
	}
	if header := c.Get(fiber.HeaderAuthorization); header != "" {
		parts := strings.SplitN(header, " ", 2)
		if len(parts) == 2 && strings.EqualFold(parts[0], "Bearer") {
			creds.BearerToken = strings.TrimSpace(parts[1])
		}
	}
	return creds
}

// Identify resolves the request identity through the reconciler without enforcing it.
// Anonymous requests pass through untouched.
func Identify(rec *auth.Reconciler, cookie SessionCookieConfig) fiber.Handler {
	return func(c *fiber.Ctx) error {
		res, ok := rec.Establish(c.UserContext(), ExtractCredentials(c))
		if !ok {
			return c.Next()
		}

		SetIdentity(c, res.Identity)
		if res.NewSessionID != "" {
			SetSessionCookie(c, res.NewSessionID, cookie)
		}
		return c.Next()
	}
}

// SetIdentity stores the identity in Fiber locals and the request context.
func SetIdentity(c *fiber.Ctx, id auth.Identity) {
	c.Locals("userID", id.UserID)
	c.Locals("authSource", string(id.Source))
	c.SetUserContext(context.WithValue(c.UserContext(), UserIDKey, id.UserID))
}

// UserIDFromCtx returns the identified user, or false for anonymous requests.
func UserIDFromCtx(c *fiber.Ctx) (uint, bool) {
	id, ok := c.Locals("userID").(uint)
	return id, ok && id != 0
}

// AuthRequired rejects anonymous requests. It must run after Identify.
func AuthRequired(c *fiber.Ctx) error {
	if _, ok := UserIDFromCtx(c); !ok {
		return models.RespondWithError(c, fiber.StatusUnauthorized,
			models.NewUnauthorizedError("Authentication credentials were not provided"))
	}
	return c.Next()
}

// SetSessionCookie writes the server session cookie.
func SetSessionCookie(c *fiber.Ctx, sessionID string, cfg SessionCookieConfig) {
	c.Cookie(&fiber.Cookie{
		Name:     SessionCookieName,
		Value:    sessionID,
		Path:     "/",
		HTTPOnly: true,
		Secure:   cfg.Secure,
		SameSite: fiber.CookieSameSiteLaxMode,
		Expires:  time.Now().Add(cfg.TTL),
	})
}

// ClearSessionCookie expires the session and token cookies.
func ClearSessionCookie(c *fiber.Ctx) {
	for _, name := range []string{SessionCookieName, TokenCookieName} {
		c.Cookie(&fiber.Cookie{
			Name:     name,
			Value:    "",
			Path:     "/",
			HTTPOnly: true,
			SameSite: fiber.CookieSameSiteLaxMode,
			Expires:  time.Unix(0, 0),
		})
	}
}
