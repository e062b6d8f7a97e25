package v1

import (
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/xiaot623/gogo/flightdeck/api"
	"github.com/xiaot623/gogo/flightdeck/internal/service"
)

// ListRuns lists runs newest first.
func (h *Handler) ListRuns(c echo.Context) error {
	q := service.RunQuery{
		AppID:       c.QueryParam("app_id"),
		Environment: c.QueryParam("environment"),
		Status:      c.QueryParam("status"),
		SourceType:  c.QueryParam("source_type"),
		PageToken:   c.QueryParam("page_token"),
	}
	var err error
	if q.From, err = timeParam(c, "from_utc"); err != nil {
		return fail(c, err)
	}
	if q.To, err = timeParam(c, "to_utc"); err != nil {
		return fail(c, err)
	}
	if q.PageSize, err = intParam(c, "page_size"); err != nil {
		return fail(c, err)
	}

	resp, err := h.service.ListRuns(c.Request().Context(), q)
	if err != nil {
		return fail(c, err)
	}
	return ok(c, http.StatusOK, resp)
}

// GetRun returns one run with its counters.
func (h *Handler) GetRun(c echo.Context) error {
	resp, err := h.service.GetRun(c.Request().Context(), c.Param("run_id"))
	if err != nil {
		return fail(c, err)
	}
	return ok(c, http.StatusOK, resp)
}

// ListRunEvents lists a run's timeline.
func (h *Handler) ListRunEvents(c echo.Context) error {
	q := service.EventQuery{
		EventType: c.QueryParam("event_type"),
		StepID:    c.QueryParam("step_id"),
		PageToken: c.QueryParam("page_token"),
	}
	var err error
	if q.SequenceFrom, err = int64Param(c, "sequence_from"); err != nil {
		return fail(c, err)
	}
	if q.SequenceTo, err = int64Param(c, "sequence_to"); err != nil {
		return fail(c, err)
	}
	if q.PageSize, err = intParam(c, "page_size"); err != nil {
		return fail(c, err)
	}

	resp, err := h.service.ListEvents(c.Request().Context(), c.Param("run_id"), q)
	if err != nil {
		return fail(c, err)
	}
	return ok(c, http.StatusOK, resp)
}

// CreateRun starts recording a live run.
func (h *Handler) CreateRun(c echo.Context) error {
	var req api.CreateRunRequest
	if err := c.Bind(&req); err != nil {
		return fail(c, invalidBody())
	}
	resp, err := h.service.CreateRun(c.Request().Context(), req)
	if err != nil {
		return fail(c, err)
	}
	return ok(c, http.StatusCreated, resp)
}

// IngestEvent appends one event to a run.
func (h *Handler) IngestEvent(c echo.Context) error {
	var req api.IngestEventRequest
	if err := c.Bind(&req); err != nil {
		return fail(c, invalidBody())
	}
	resp, err := h.service.IngestEvent(c.Request().Context(), c.Param("run_id"), req)
	if err != nil {
		return fail(c, err)
	}
	status := http.StatusAccepted
	if !resp.Accepted {
		status = http.StatusOK
	}
	return ok(c, status, resp)
}

// FinalizeRun records a run's final status.
func (h *Handler) FinalizeRun(c echo.Context) error {
	var req api.FinalizeRunRequest
	if err := c.Bind(&req); err != nil {
		return fail(c, invalidBody())
	}
	resp, err := h.service.FinalizeRun(c.Request().Context(), c.Param("run_id"), req)
	if err != nil {
		return fail(c, err)
	}
	return ok(c, http.StatusOK, resp)
}

func invalidBody() *service.Error {
	return &service.Error{Code: api.CodeValidation, Message: "invalid request body"}
}

func invalidParam(name, value string) *service.Error {
	return &service.Error{
		Code:    api.CodeValidation,
		Message: "invalid query parameter " + name,
		Details: map[string]interface{}{name: value},
	}
}

func timeParam(c echo.Context, name string) (*time.Time, error) {
	raw := c.QueryParam(name)
	if raw == "" {
		return nil, nil
	}
	t, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return nil, invalidParam(name, raw)
	}
	t = t.UTC()
	return &t, nil
}

func intParam(c echo.Context, name string) (int, error) {
	raw := c.QueryParam(name)
	if raw == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, invalidParam(name, raw)
	}
	return n, nil
}

func int64Param(c echo.Context, name string) (*int64, error) {
	raw := c.QueryParam(name)
	if raw == "" {
		return nil, nil
	}
	n, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return nil, invalidParam(name, raw)
	}
	return &n, nil
}
