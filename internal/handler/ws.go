package handler

import (
	"encoding/json"
	"net/http"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/iliyamo/dj-request-booking/internal/middleware"
	"github.com/iliyamo/dj-request-booking/internal/realtime"
)

// WSHandler upgrades clients to the event channel. DJs connect with
// their access token and are indexed by username; audience members are
// indexed by their session token so request status events can find them.
type WSHandler struct {
	Secret string
	Reg    *realtime.Registry
	Log    *zap.Logger

	upgrader websocket.Upgrader
}

func NewWSHandler(secret string, reg *realtime.Registry, log *zap.Logger) *WSHandler {
	return &WSHandler{
		Secret: secret,
		Reg:    reg,
		Log:    log,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			// Browsers connect from the static frontend origin; auth is
			// token-based, not cookie-based, so cross-origin is fine.
			CheckOrigin: func(*http.Request) bool { return true },
		},
	}
}

type authFrame struct {
	Token string `json:"token"`
}

// identity resolves who this connection belongs to. A valid access token
// in ?token wins and yields the DJ's username; otherwise the raw token
// value or the session cookie acts as the anonymous identity.
func (h *WSHandler) identity(c echo.Context) string {
	raw := c.QueryParam("token")
	if raw != "" {
		if claims, err := middleware.ParseAccessToken(h.Secret, raw); err == nil {
			if name, ok := claims["username"].(string); ok && name != "" {
				return name
			}
		}
		return raw
	}
	return middleware.SessionToken(c)
}

// Connect upgrades the request and pumps events until the peer goes
// away. The first frame pushed is a session event echoing the identity
// token, which anonymous clients persist and reuse when submitting
// requests over HTTP.
func (h *WSHandler) Connect(c echo.Context) error {
	identity := h.identity(c)
	if identity == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "no identity"})
	}

	conn, err := h.upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		// Upgrade already wrote the error response.
		return nil
	}

	client := realtime.NewClient(conn, h.Log)
	h.Reg.Register(identity, client)
	h.Log.Info("websocket connected", zap.String("identity", identity))

	go client.WritePump()
	client.Send("session", echo.Map{"token": identity})

	client.ReadPump(func(env realtime.Envelope) {
		switch env.Type {
		case "auth":
			// An anonymous connection authenticated without reconnecting;
			// move it under the DJ's username.
			var frame authFrame
			if err := json.Unmarshal(env.Data, &frame); err != nil || frame.Token == "" {
				return
			}
			claims, err := middleware.ParseAccessToken(h.Secret, frame.Token)
			if err != nil {
				client.Send("auth.error", echo.Map{"error": "invalid token"})
				return
			}
			if name, ok := claims["username"].(string); ok && name != "" {
				h.Reg.Register(name, client)
				client.Send("session", echo.Map{"token": name})
			}
		case "ping":
			client.Send("pong", nil)
		}
	})

	h.Reg.Unregister(client)
	client.Close()
	h.Log.Info("websocket disconnected", zap.String("identity", identity))
	return nil
}
