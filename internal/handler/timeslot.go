package handler

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/iliyamo/dj-request-booking/internal/middleware"
	"github.com/iliyamo/dj-request-booking/internal/queue"
	"github.com/iliyamo/dj-request-booking/internal/service"
)

// TimeslotHandler exposes the timeslot board: the public listing and
// reservation flow plus the assistant-only create/delete management.
type TimeslotHandler struct {
	Svc *service.ReservationService
	Log *zap.Logger
}

func NewTimeslotHandler(svc *service.ReservationService, log *zap.Logger) *TimeslotHandler {
	return &TimeslotHandler{Svc: svc, Log: log}
}

type createTimeslotReq struct {
	Time string `json:"time"` // "HH:MM"
}
type bookReq struct {
	Name string `json:"name"`
}

func slotID(c echo.Context) (uint64, bool) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	return id, err == nil && id > 0
}

// List returns every timeslot, ordered by slot time. Public.
func (h *TimeslotHandler) List(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), dbTimeout)
	defer cancel()

	slots, err := h.Svc.List(ctx)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusOK, slots)
}

// Create adds an Available timeslot owned by the calling assistant.
func (h *TimeslotHandler) Create(c echo.Context) error {
	var req createTimeslotReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), dbTimeout)
	defer cancel()

	t, err := h.Svc.Create(ctx, req.Time, middleware.Username(c))
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusCreated, t)
}

// Delete removes a timeslot. Restricted to the owning assistant.
func (h *TimeslotHandler) Delete(c echo.Context) error {
	id, ok := slotID(c)
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid id"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), dbTimeout)
	defer cancel()

	if err := h.Svc.Remove(ctx, id, middleware.Username(c)); err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"status": "deleted"})
}

// Reserve places a hold on an Available slot for the caller's session.
func (h *TimeslotHandler) Reserve(c echo.Context) error {
	id, ok := slotID(c)
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid id"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), dbTimeout)
	defer cancel()

	t, err := h.Svc.Reserve(ctx, id, middleware.SessionToken(c))
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusOK, t)
}

// Book completes the caller's hold with the booker's display name. On
// success a booked event is handed to the message queue on a separate
// goroutine; the HTTP response never waits on the broker.
func (h *TimeslotHandler) Book(c echo.Context) error {
	id, ok := slotID(c)
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid id"})
	}
	var req bookReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), dbTimeout)
	defer cancel()

	t, err := h.Svc.Book(ctx, id, middleware.SessionToken(c), req.Name)
	if err != nil {
		return fail(c, err)
	}

	event := queue.TimeslotBookedEvent{
		TimeslotID: t.ID,
		Time:       t.Time,
		OwnerName:  t.OwnerName,
		BookedBy:   t.BookedBy,
		BookedAt:   time.Now().UTC(),
	}
	go func() {
		pctx, pcancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer pcancel()
		if err := service.PublishTimeslotBooked(pctx, event); err != nil {
			h.Log.Warn("booked event not published", zap.Uint64("timeslot_id", event.TimeslotID), zap.Error(err))
		}
	}()

	return c.JSON(http.StatusOK, t)
}

// Unreserve releases the caller's hold, reverting the slot to Available.
func (h *TimeslotHandler) Unreserve(c echo.Context) error {
	id, ok := slotID(c)
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid id"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), dbTimeout)
	defer cancel()

	t, err := h.Svc.Unreserve(ctx, id, middleware.SessionToken(c))
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusOK, t)
}
