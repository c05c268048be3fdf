// Entry point: loads configuration, wires storage, realtime and queue
// layers, and runs the HTTP server until interrupted.
package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"go.uber.org/zap"

	"github.com/iliyamo/dj-request-booking/internal/config"
	"github.com/iliyamo/dj-request-booking/internal/database"
	"github.com/iliyamo/dj-request-booking/internal/handler"
	"github.com/iliyamo/dj-request-booking/internal/queue"
	"github.com/iliyamo/dj-request-booking/internal/realtime"
	"github.com/iliyamo/dj-request-booking/internal/repository"
	"github.com/iliyamo/dj-request-booking/internal/router"
	"github.com/iliyamo/dj-request-booking/internal/service"
)

func main() {
	_ = godotenv.Load() // .env is optional; real deployments use the environment

	cfg := config.Load()

	logger, err := newLogger(cfg.Env)
	if err != nil {
		log.Fatalf("init logger: %v", err)
	}
	defer func() { _ = logger.Sync() }()

	db, err := database.Open(cfg.DBUser, cfg.DBPass, cfg.DBHost, cfg.DBPort, cfg.DBName)
	if err != nil {
		logger.Fatal("database connect failed", zap.Error(err))
	}
	defer db.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	if err := database.Migrate(ctx, db); err != nil {
		cancel()
		logger.Fatal("migrate failed", zap.Error(err))
	}
	cancel()

	rdb := config.NewRedisClient()
	if rdb == nil {
		logger.Warn("redis unavailable, rate limiting and caching disabled")
	}

	// Realtime plumbing.
	registry := realtime.NewRegistry()
	broadcaster := realtime.NewBroadcaster(registry, logger)

	// Repositories and services.
	users := repository.NewUserRepo(db)
	tokens := repository.NewTokenRepo(db)
	timeslots := repository.NewTimeslotRepo(db)
	requests := repository.NewSongRequestRepo(db)

	timers := service.NewTimerService()
	defer timers.Stop()

	reservations := service.NewReservationService(timeslots, timers, broadcaster, cfg.HoldTTL, logger)
	songRequests := service.NewSongRequestService(requests, users, broadcaster, nil,
		time.Duration(cfg.RequestWindowH)*time.Hour, logger)

	h := router.Handlers{
		Auth:     handler.NewAuthHandler(cfg, users, tokens),
		Timeslot: handler.NewTimeslotHandler(reservations, logger),
		Requests: handler.NewSongRequestHandler(songRequests),
		Settings: handler.NewDJSettingsHandler(users),
		WS:       handler.NewWSHandler(cfg.JWTSecret, registry, logger),
	}

	e := echo.New()
	e.HideBanner = true
	e.Use(echomw.Recover())
	e.Use(echomw.CORS())
	router.Register(e, h, cfg, rdb)

	// Booked events are consumed out of band into the booking log.
	go func() {
		if err := queue.StartBookedConsumer(); err != nil {
			logger.Warn("booked consumer stopped", zap.Error(err))
		}
	}()

	go func() {
		addr := ":" + cfg.Port
		logger.Info("listening", zap.String("addr", addr), zap.String("env", cfg.Env))
		if err := e.Start(addr); err != nil {
			logger.Info("server stopped", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown failed", zap.Error(err))
	}
	logger.Info("bye")
}

func newLogger(env string) (*zap.Logger, error) {
	if env == "prod" {
		return zap.NewProduction()
	}
	return zap.NewDevelopment()
}
