package server

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/VIPHakim/netboost/internal/boost"
	"github.com/VIPHakim/netboost/internal/domain"
	apperrors "github.com/VIPHakim/netboost/internal/errors"
	"github.com/VIPHakim/netboost/internal/registry"
)

type createScheduleRequest struct {
	GroupID     string    `json:"groupId"`
	DeviceRefs  []string  `json:"deviceRefs"`
	StartTime   time.Time `json:"startTime"`
	EndTime     time.Time `json:"endTime"`
	AppServerIP string    `json:"appServerIp"`
	QosProfile  string    `json:"qosProfile"`
	WebhookURL  string    `json:"webhookUrl"`
}

func (s *Server) handleCreateSchedule(c echo.Context) error {
	var req createScheduleRequest
	if err := c.Bind(&req); err != nil {
		return apperrors.ValidationError("invalid request body")
	}
	if req.QosProfile != "" && !registry.ValidProfile(req.QosProfile) {
		return apperrors.ValidationError("unknown qos profile").WithContext("qos_profile", req.QosProfile)
	}

	task, err := s.planner.Schedule(c.Request().Context(), boost.ScheduleRequest{
		GroupID:    req.GroupID,
		DeviceRefs: req.DeviceRefs,
		StartTime:  req.StartTime,
		EndTime:    req.EndTime,
		Boost: domain.BoostParameters{
			AppServerIP: req.AppServerIP,
			QosProfile:  req.QosProfile,
			WebhookURL:  req.WebhookURL,
		},
	})
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, map[string]any{"task": task})
}

func (s *Server) handleListSchedules(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]any{"tasks": s.store.ListTasks()})
}

func (s *Server) handleDeleteSchedule(c echo.Context) error {
	if err := s.planner.Cancel(c.Request().Context(), c.Param("id")); err != nil {
		return err
	}
	return c.JSON(http.StatusOK, map[string]any{"removed": true})
}
