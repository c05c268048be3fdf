// Package handler contains the HTTP endpoints. Handlers bind and
// validate request bodies, call into services or repositories with a
// bounded context, and translate sentinel errors to status codes.
package handler

import (
	"errors"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/dj-request-booking/internal/errs"
)

// dbTimeout bounds every per-request database interaction.
const dbTimeout = 5 * time.Second

// fail maps a service error to its HTTP response. Unrecognized errors
// become opaque 500s so internals never leak to clients.
func fail(c echo.Context, err error) error {
	switch {
	case errors.Is(err, errs.ErrInvalidInput):
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid input"})
	case errors.Is(err, errs.ErrNotFound):
		return c.JSON(http.StatusNotFound, echo.Map{"error": "not found"})
	case errors.Is(err, errs.ErrUnauthorized):
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	case errors.Is(err, errs.ErrConflict):
		return c.JSON(http.StatusForbidden, echo.Map{"error": "conflict"})
	}
	return c.JSON(http.StatusInternalServerError, echo.Map{"error": "internal error"})
}
