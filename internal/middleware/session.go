package middleware

import (
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
)

// SessionCookieName is the cookie carrying the anonymous session
// correlation token. The same token identifies the client's websocket
// connection, which is how a requester later receives targeted status
// events for their submissions.
const SessionCookieName = "session_token"

// EnsureSession guarantees every request carries a session token,
// minting a uuid cookie on first contact. The token is exposed to
// handlers via c.Get("session_token").
func EnsureSession() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			token := ""
			if cookie, err := c.Cookie(SessionCookieName); err == nil && cookie.Value != "" {
				token = cookie.Value
			}
			if token == "" {
				token = uuid.NewString()
				c.SetCookie(&http.Cookie{
					Name:     SessionCookieName,
					Value:    token,
					Path:     "/",
					Expires:  time.Now().Add(48 * time.Hour),
					HttpOnly: true,
					SameSite: http.SameSiteLaxMode,
				})
			}
			c.Set("session_token", token)
			return next(c)
		}
	}
}

// SessionToken extracts the session token stored by EnsureSession.
func SessionToken(c echo.Context) string {
	if v, ok := c.Get("session_token").(string); ok {
		return v
	}
	return ""
}
