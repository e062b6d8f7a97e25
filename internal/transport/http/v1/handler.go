// Package v1 provides the /api/v1 HTTP handlers.
package v1

import (
	"crypto/subtle"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"

	"github.com/xiaot623/gogo/flightdeck/api"
	"github.com/xiaot623/gogo/flightdeck/internal/config"
	"github.com/xiaot623/gogo/flightdeck/internal/hub"
	"github.com/xiaot623/gogo/flightdeck/internal/service"
)

// Handler handles HTTP requests.
type Handler struct {
	service  *service.Service
	hub      *hub.Hub
	config   *config.Config
	upgrader websocket.Upgrader
}

// NewHandler creates a new handler.
func NewHandler(svc *service.Service, h *hub.Hub, cfg *config.Config) *Handler {
	return &Handler{
		service: svc,
		hub:     h,
		config:  withStreamDefaults(cfg),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
		},
	}
}

func withStreamDefaults(cfg *config.Config) *config.Config {
	out := config.Config{}
	if cfg != nil {
		out = *cfg
	}
	if out.WSPingInterval <= 0 {
		out.WSPingInterval = 30 * time.Second
	}
	if out.WSWriteTimeout <= 0 {
		out.WSWriteTimeout = 10 * time.Second
	}
	if out.WSReadTimeout <= 0 {
		out.WSReadTimeout = 60 * time.Second
	}
	return &out
}

// RegisterRoutes registers routes with the echo server.
func (h *Handler) RegisterRoutes(e *echo.Echo) {
	g := e.Group(api.BasePath)
	if h.config.APIToken != "" {
		g.Use(requireToken(h.config.APIToken))
	}

	// Query API
	g.GET("/runs", h.ListRuns)
	g.GET("/runs/:run_id", h.GetRun)
	g.GET("/runs/:run_id/events", h.ListRunEvents)

	// Ingestion API
	g.POST("/runs", h.CreateRun)
	g.POST("/runs/:run_id/events", h.IngestEvent)
	g.POST("/runs/:run_id/finalize", h.FinalizeRun)

	// Replay API
	g.POST("/replays", h.CreateReplay)
	g.GET("/replays/:replay_session_id", h.GetReplay)
	g.POST("/replays/:replay_session_id/cancel", h.CancelReplay)
	g.GET("/replays/:replay_session_id/stream", h.StreamReplay)

	e.GET("/health/live", h.Live)
	e.GET("/health/ready", h.Ready)
}

// Live reports that the process is up.
func (h *Handler) Live(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
}

// Ready reports whether storage is reachable.
func (h *Handler) Ready(c echo.Context) error {
	if err := h.service.Ping(c.Request().Context()); err != nil {
		return fail(c, &service.Error{
			Code:      api.CodeDependencyUnavailable,
			Message:   "database unavailable",
			Retryable: true,
		})
	}
	return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
}

// requireToken checks the bearer token. Browsers cannot set headers on
// WebSocket upgrades, so access_token is also accepted as a query parameter.
func requireToken(token string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			got := c.QueryParam("access_token")
			if auth := c.Request().Header.Get(echo.HeaderAuthorization); auth != "" {
				got = strings.TrimPrefix(auth, "Bearer ")
			}
			if got == "" {
				return fail(c, &service.Error{Code: api.CodeAuthRequired, Message: "bearer token required"})
			}
			if subtle.ConstantTimeCompare([]byte(got), []byte(token)) != 1 {
				return fail(c, &service.Error{Code: api.CodeAuthForbidden, Message: "invalid bearer token"})
			}
			return next(c)
		}
	}
}
