package handler

import (
	"context"
	"database/sql"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/dj-request-booking/internal/middleware"
	"github.com/iliyamo/dj-request-booking/internal/repository"
)

// DJSettingsHandler manages the DJ's own toggles: whether new requests
// are accepted, whether the classifier runs, and the classifier prompt.
type DJSettingsHandler struct {
	Users *repository.UserRepo
}

func NewDJSettingsHandler(u *repository.UserRepo) *DJSettingsHandler {
	return &DJSettingsHandler{Users: u}
}

type enabledReq struct {
	Enabled *bool `json:"enabled"`
}
type promptReq struct {
	Prompt *string `json:"prompt"`
}

// maxPromptLen matches the ai_prompt column width.
const maxPromptLen = 2048

// SetAccepting flips whether the DJ takes new submissions. Turning it
// off stops new requests at the door; requests already filed are
// unaffected.
func (h *DJSettingsHandler) SetAccepting(c echo.Context) error {
	var req enabledReq
	if err := c.Bind(&req); err != nil || req.Enabled == nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "enabled required"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), dbTimeout)
	defer cancel()

	if err := h.Users.SetAccepting(ctx, middleware.Username(c), *req.Enabled); err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "update failed"})
	}
	return c.JSON(http.StatusOK, echo.Map{"currently_accepting": *req.Enabled})
}

// SetAIMode toggles classifier screening of new submissions.
func (h *DJSettingsHandler) SetAIMode(c echo.Context) error {
	var req enabledReq
	if err := c.Bind(&req); err != nil || req.Enabled == nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "enabled required"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), dbTimeout)
	defer cancel()

	if err := h.Users.SetAIMode(ctx, middleware.Username(c), *req.Enabled); err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "update failed"})
	}
	return c.JSON(http.StatusOK, echo.Map{"ai_mode": *req.Enabled})
}

// GetAIPrompt returns the DJ's stored classifier prompt.
func (h *DJSettingsHandler) GetAIPrompt(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), dbTimeout)
	defer cancel()

	u, err := h.Users.GetByUsername(ctx, middleware.Username(c))
	if err != nil {
		if err == sql.ErrNoRows {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "not found"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "lookup failed"})
	}
	return c.JSON(http.StatusOK, echo.Map{"prompt": u.AIPrompt})
}

// SetAIPrompt stores the DJ's classifier prompt.
func (h *DJSettingsHandler) SetAIPrompt(c echo.Context) error {
	var req promptReq
	if err := c.Bind(&req); err != nil || req.Prompt == nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "prompt required"})
	}
	if len(*req.Prompt) > maxPromptLen {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "prompt too long"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), dbTimeout)
	defer cancel()

	if err := h.Users.SetAIPrompt(ctx, middleware.Username(c), *req.Prompt); err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "update failed"})
	}
	return c.JSON(http.StatusOK, echo.Map{"prompt": *req.Prompt})
}
