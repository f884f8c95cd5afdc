package fiber

import (
	"errors"
	"log/slog"

	"github.com/gofiber/fiber/v3"

	"github.com/torii-dev/torii/core"
)

// RequireAuth validates the bearer token, slides the session window, and
// stores the member and session for downstream handlers.
func (a *Adapter) RequireAuth(c fiber.Ctx) error {
	token := extractToken(c)
	if token == "" {
		return handleAuthError(c, core.ErrMissingAuthHeader)
	}

	data, err := a.auth.GetSession(token)
	if err != nil {
		return handleAuthError(c, err)
	}

	// Sliding expiry: a no-op unless the session is close to its end.
	// Best effort; the request proceeds on the already-verified session.
	session, err := a.auth.ExtendSession(token, c.IP())
	switch {
	case err == nil:
		data.Session = session
	case !errors.Is(err, core.ErrSessionNotFound):
		slog.Warn("session extension failed", slog.String("error", err.Error()))
	}

	c.Locals("member", data.Member)
	c.Locals("session", data.Session)
	c.Locals("token", token)

	return c.Next()
}

func localToken(c fiber.Ctx) string {
	token, _ := c.Locals("token").(string)
	return token
}

func localMemberID(c fiber.Ctx) string {
	member, _ := c.Locals("member").(*core.Member)
	if member == nil {
		return ""
	}
	return member.ID
}
