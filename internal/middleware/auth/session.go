package auth

import (
	"errors"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/Skotchmaster/shopcart/internal/logging"
	"github.com/Skotchmaster/shopcart/internal/session"
)

const (
	CookieName  = "session"
	identityKey = "identity"
)

type SessionMiddleware struct {
	Sessions *session.Manager
}

func NewSessionMiddleware(m *session.Manager) *SessionMiddleware {
	return &SessionMiddleware{Sessions: m}
}

// TokensFromRequest lists the presented session tokens: the cookie first,
// then a Bearer header.
func TokensFromRequest(c echo.Context) []string {
	var out []string
	if ck, err := c.Cookie(CookieName); err == nil && ck.Value != "" {
		out = append(out, ck.Value)
	}
	h := c.Request().Header.Get(echo.HeaderAuthorization)
	if token, ok := strings.CutPrefix(h, "Bearer "); ok {
		if token = strings.TrimSpace(token); token != "" && (len(out) == 0 || out[0] != token) {
			out = append(out, token)
		}
	}
	return out
}

// RequireSession accepts the first presented token that resolves, so a stale
// cookie does not shadow a valid Bearer token.
func (m *SessionMiddleware) RequireSession(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		ctx := c.Request().Context()
		l := logging.FromContext(ctx).With("mw", "require_session")

		tokens := TokensFromRequest(c)
		if len(tokens) == 0 {
			l.Warn("auth_failed", "status", 401, "reason", "missing session token")
			return echo.NewHTTPError(http.StatusUnauthorized, "missing session token")
		}

		var lastErr error
		for _, raw := range tokens {
			id, err := m.Sessions.Resolve(ctx, raw)
			if err == nil {
				SetIdentity(c, id)
				c.SetRequest(c.Request().WithContext(logging.IntoContext(ctx, logging.FromContext(ctx).With("user_id", id.UserID))))
				return next(c)
			}
			if !errors.Is(err, session.ErrInvalidSession) {
				l.Error("auth_failed", "status", 500, "reason", "session store error", "error", err)
				return echo.NewHTTPError(http.StatusInternalServerError, "internal error")
			}
			lastErr = err
		}

		l.Warn("auth_failed", "status", 401, "reason", "invalid session", "error", lastErr)
		return echo.NewHTTPError(http.StatusUnauthorized, "invalid or expired session")
	}
}

func SetIdentity(c echo.Context, id session.Identity) {
	c.Set(identityKey, id)
}

func IdentityFrom(c echo.Context) (session.Identity, bool) {
	id, ok := c.Get(identityKey).(session.Identity)
	return id, ok && id.UserID != 0
}
