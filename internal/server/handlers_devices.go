package server

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/VIPHakim/netboost/internal/domain"
	apperrors "github.com/VIPHakim/netboost/internal/errors"
	"github.com/VIPHakim/netboost/internal/registry"
)

func (s *Server) handleListDevices(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]any{"devices": s.registry.List()})
}

func (s *Server) handleCreateDevice(c echo.Context) error {
	var device domain.Device
	if err := c.Bind(&device); err != nil {
		return apperrors.ValidationError("invalid request body")
	}
	created, err := s.registry.Create(device)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, created)
}

func (s *Server) handleGetDevice(c echo.Context) error {
	device, ok := s.registry.Device(c.Param("id"))
	if !ok {
		return apperrors.NotFoundError("device not found").WithContext("device_id", c.Param("id"))
	}
	return c.JSON(http.StatusOK, device)
}

func (s *Server) handleUpdateDevice(c echo.Context) error {
	var device domain.Device
	if err := c.Bind(&device); err != nil {
		return apperrors.ValidationError("invalid request body")
	}
	updated, err := s.registry.Update(c.Param("id"), device)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, updated)
}

func (s *Server) handleDeleteDevice(c echo.Context) error {
	removed, err := s.registry.Delete(c.Param("id"))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, map[string]any{"removed": removed})
}

func (s *Server) handleQosProfiles(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]any{"profiles": registry.Profiles()})
}
