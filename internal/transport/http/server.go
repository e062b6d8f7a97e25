// Package http provides the HTTP server of the flight recorder.
package http

import (
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"github.com/xiaot623/gogo/flightdeck/internal/config"
	"github.com/xiaot623/gogo/flightdeck/internal/hub"
	"github.com/xiaot623/gogo/flightdeck/internal/service"
	v1 "github.com/xiaot623/gogo/flightdeck/internal/transport/http/v1"
)

// NewServer creates and configures the API server.
func NewServer(svc *service.Service, h *hub.Hub, cfg *config.Config) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HTTPErrorHandler = v1.ErrorHandler
	if cfg != nil {
		e.Logger.SetLevel(cfg.Level())
	}

	// Middleware
	e.Use(middleware.RequestID())
	e.Use(middleware.Logger())
	e.Use(middleware.Recover())
	e.Use(middleware.CORS())

	// Handlers
	v1Handler := v1.NewHandler(svc, h, cfg)
	v1Handler.RegisterRoutes(e)

	return e
}
