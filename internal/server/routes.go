package server

import (
	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func (s *Server) registerRoutes() {
	// Observability endpoints
	s.echo.GET("/health/live", s.handleLiveness)
	s.echo.GET("/health/ready", s.handleReadiness)
	s.echo.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	// Boost sessions
	s.echo.POST("/api/sessions", s.handleCreateSession)
	s.echo.GET("/api/sessions", s.handleListSessions)
	s.echo.GET("/api/sessions/:id", s.handleGetSession)
	s.echo.POST("/api/sessions/:id/extend", s.handleExtendSession)
	s.echo.DELETE("/api/sessions/:id", s.handleDeleteSession)

	// Scheduled boost windows
	s.echo.POST("/api/schedules", s.handleCreateSchedule)
	s.echo.GET("/api/schedules", s.handleListSchedules)
	s.echo.DELETE("/api/schedules/:id", s.handleDeleteSchedule)

	// Device directory and profile catalog
	s.echo.GET("/api/devices", s.handleListDevices)
	s.echo.POST("/api/devices", s.handleCreateDevice)
	s.echo.GET("/api/devices/:id", s.handleGetDevice)
	s.echo.PUT("/api/devices/:id", s.handleUpdateDevice)
	s.echo.DELETE("/api/devices/:id", s.handleDeleteDevice)
	s.echo.GET("/api/qos-profiles", s.handleQosProfiles)

	// OAuth token passthrough for the dashboard
	s.echo.GET("/api/token", s.handleToken)

	// Live session feed
	s.echo.GET("/ws/sessions", s.handleSessionFeed)
}
