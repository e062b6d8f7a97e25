package v1

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/xiaot623/gogo/flightdeck/api"
)

// CreateReplay queues a fork-and-replay.
func (h *Handler) CreateReplay(c echo.Context) error {
	var req api.ReplayRequest
	if err := c.Bind(&req); err != nil {
		return fail(c, invalidBody())
	}
	resp, err := h.service.CreateReplay(c.Request().Context(), req)
	if err != nil {
		return fail(c, err)
	}
	return ok(c, http.StatusAccepted, resp)
}

// GetReplay returns a replay session's status.
func (h *Handler) GetReplay(c echo.Context) error {
	resp, err := h.service.GetReplay(c.Request().Context(), c.Param("replay_session_id"))
	if err != nil {
		return fail(c, err)
	}
	return ok(c, http.StatusOK, resp)
}

// CancelReplay requests cancellation of a replay session.
func (h *Handler) CancelReplay(c echo.Context) error {
	resp, err := h.service.CancelReplay(c.Request().Context(), c.Param("replay_session_id"))
	if err != nil {
		return fail(c, err)
	}
	return ok(c, http.StatusOK, resp)
}
