// Package server exposes the boost dashboard API: session lifecycle
// endpoints, scheduled windows, the device directory, the live session feed,
// and the usual observability surface.
package server

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"github.com/VIPHakim/netboost/internal/boost"
	apperrors "github.com/VIPHakim/netboost/internal/errors"
	"github.com/VIPHakim/netboost/internal/platform/config"
	"github.com/VIPHakim/netboost/internal/platform/correlation"
	"github.com/VIPHakim/netboost/internal/qod"
	"github.com/VIPHakim/netboost/internal/registry"
	"github.com/VIPHakim/netboost/internal/store"
	"github.com/VIPHakim/netboost/internal/websocket"
)

type Server struct {
	echo       *echo.Echo
	config     *config.Config
	store      *store.Store
	registry   *registry.Registry
	controller *boost.Controller
	planner    *boost.Planner
	tokens     *qod.TokenCache
	hub        *websocket.Hub
	clock      clockwork.Clock
	startTime  time.Time
}

func NewServer(cfg *config.Config, st *store.Store, reg *registry.Registry, controller *boost.Controller, planner *boost.Planner, tokens *qod.TokenCache, hub *websocket.Hub, clock clockwork.Clock) *Server {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	e.Use(middleware.Recover())
	e.Use(correlationMiddleware())
	e.Use(apperrors.Middleware())

	srv := &Server{
		echo:       e,
		config:     cfg,
		store:      st,
		registry:   reg,
		controller: controller,
		planner:    planner,
		tokens:     tokens,
		hub:        hub,
		clock:      clock,
		startTime:  clock.Now(),
	}
	srv.registerRoutes()
	return srv
}

func (s *Server) Start() error {
	slog.Info("Starting server", "port", s.config.Port)
	return s.echo.Start(fmt.Sprintf(":%s", s.config.Port))
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.echo.Shutdown(ctx)
}

// correlationMiddleware tags every request context with a correlation id so
// all log lines of one request can be tied together.
func correlationMiddleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			id := c.Request().Header.Get("X-Correlation-ID")
			if id == "" {
				id = correlation.NewID()
			}
			ctx := correlation.WithID(c.Request().Context(), id)
			c.SetRequest(c.Request().WithContext(ctx))
			c.Response().Header().Set("X-Correlation-ID", id)
			return next(c)
		}
	}
}
