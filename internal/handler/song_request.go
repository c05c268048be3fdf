package handler

import (
	"context"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/dj-request-booking/internal/middleware"
	"github.com/iliyamo/dj-request-booking/internal/service"
)

// SongRequestHandler exposes audience submission and the DJ's queue
// management actions.
type SongRequestHandler struct {
	Svc *service.SongRequestService
}

func NewSongRequestHandler(svc *service.SongRequestService) *SongRequestHandler {
	return &SongRequestHandler{Svc: svc}
}

type submitReq struct {
	DJUsername    string `json:"dj_username"`
	Title         string `json:"title"`
	Artist        string `json:"artist"`
	RequesterName string `json:"requester_name"`
	Genre         string `json:"genre"`
	TrackID       string `json:"track_id"`
	ImageURL      string `json:"image_url"`
	Popularity    uint32 `json:"popularity"`
}

func requestID(c echo.Context) (uint64, bool) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	return id, err == nil && id > 0
}

// Submit files a new song request for a DJ. Anonymous; the caller is
// identified only by their session token, which ties later status events
// back to their websocket connection.
func (h *SongRequestHandler) Submit(c echo.Context) error {
	var req submitReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), dbTimeout)
	defer cancel()

	sr, err := h.Svc.Submit(ctx, service.SubmitPayload{
		DJUsername:    req.DJUsername,
		Title:         req.Title,
		Artist:        req.Artist,
		RequesterName: req.RequesterName,
		Genre:         req.Genre,
		TrackID:       req.TrackID,
		ImageURL:      req.ImageURL,
		Popularity:    req.Popularity,
	}, middleware.SessionToken(c))
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusCreated, sr)
}

// List returns the calling DJ's requests within the recency window,
// queued songs first. ?hours overrides the configured window.
func (h *SongRequestHandler) List(c echo.Context) error {
	hours := 0
	if v := c.QueryParam("hours"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid hours"})
		}
		hours = n
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), dbTimeout)
	defer cancel()

	out, err := h.Svc.ListActive(ctx, middleware.Username(c), hours)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusOK, out)
}

// ComingUp queues a pending request.
func (h *SongRequestHandler) ComingUp(c echo.Context) error {
	id, ok := requestID(c)
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid id"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), dbTimeout)
	defer cancel()

	sr, err := h.Svc.MarkComingUp(ctx, id, middleware.Username(c))
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusOK, sr)
}

// Playing marks a queued request as now playing, which removes it.
func (h *SongRequestHandler) Playing(c echo.Context) error {
	id, ok := requestID(c)
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid id"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), dbTimeout)
	defer cancel()

	if err := h.Svc.MarkPlaying(ctx, id, middleware.Username(c)); err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"status": "playing"})
}

// Reject declines a pending or queued request.
func (h *SongRequestHandler) Reject(c echo.Context) error {
	id, ok := requestID(c)
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid id"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), dbTimeout)
	defer cancel()

	sr, err := h.Svc.Reject(ctx, id, middleware.Username(c))
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusOK, sr)
}
