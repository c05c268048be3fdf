// Package router defines how HTTP routes are registered for the API.
package router

import (
	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"

	"github.com/iliyamo/dj-request-booking/internal/config"
	"github.com/iliyamo/dj-request-booking/internal/handler"
	"github.com/iliyamo/dj-request-booking/internal/middleware"
	"github.com/iliyamo/dj-request-booking/internal/model"
)

// Handlers collects every handler the router mounts.
type Handlers struct {
	Auth     *handler.AuthHandler
	Timeslot *handler.TimeslotHandler
	Requests *handler.SongRequestHandler
	Settings *handler.DJSettingsHandler
	WS       *handler.WSHandler
}

// Register mounts all routes. Three surfaces:
//
//   - public: health, the timeslot board, the reservation flow, song
//     submission and the websocket. Anonymous callers are identified by
//     the session cookie.
//   - /v1/auth: register/login/refresh/logout, no token required.
//   - protected /v1: the DJ's queue and settings (DJ role) and timeslot
//     management (assistant role), behind JWT auth.
func Register(e *echo.Echo, h Handlers, cfg config.Config, rdb *redis.Client) {
	e.GET("/healthz", handler.Health)

	rate := middleware.NewTokenBucket(config.LoadRateLimitConfig(), rdb)
	cache := middleware.NewRedisCache(config.LoadCacheConfig(), rdb)
	session := middleware.EnsureSession()

	// Public surface. Mutations are rate limited per IP; the hot listing
	// is cached.
	pub := e.Group("/v1", session)
	pub.GET("/timeslots", h.Timeslot.List, cache)
	pub.POST("/timeslots/:id/reserve", h.Timeslot.Reserve, rate)
	pub.POST("/timeslots/:id/book", h.Timeslot.Book, rate)
	pub.POST("/timeslots/:id/unreserve", h.Timeslot.Unreserve, rate)
	pub.POST("/requests", h.Requests.Submit, rate)
	pub.GET("/ws", h.WS.Connect)

	a := e.Group("/v1/auth", rate)
	a.POST("/register", h.Auth.Register)
	a.POST("/login", h.Auth.Login)
	a.POST("/refresh", h.Auth.Refresh)
	a.POST("/logout", h.Auth.Logout)

	auth := e.Group("/v1", middleware.JWTAuth(cfg.JWTSecret))
	auth.GET("/me", h.Auth.Me)

	dj := e.Group("/v1", middleware.JWTAuth(cfg.JWTSecret), middleware.RequireRole(model.RoleDJ))
	dj.GET("/requests", h.Requests.List)
	dj.POST("/requests/:id/coming-up", h.Requests.ComingUp)
	dj.POST("/requests/:id/playing", h.Requests.Playing)
	dj.POST("/requests/:id/reject", h.Requests.Reject)
	dj.POST("/me/accepting", h.Settings.SetAccepting)
	dj.POST("/me/aimode", h.Settings.SetAIMode)
	dj.GET("/me/aiprompt", h.Settings.GetAIPrompt)
	dj.POST("/me/aiprompt", h.Settings.SetAIPrompt)

	assistant := e.Group("/v1", middleware.JWTAuth(cfg.JWTSecret), middleware.RequireRole(model.RoleAssistant))
	assistant.POST("/timeslots", h.Timeslot.Create)
	assistant.DELETE("/timeslots/:id", h.Timeslot.Delete)
}
