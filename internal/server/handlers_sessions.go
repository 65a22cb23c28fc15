package server

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/VIPHakim/netboost/internal/boost"
	"github.com/VIPHakim/netboost/internal/domain"
	apperrors "github.com/VIPHakim/netboost/internal/errors"
	"github.com/VIPHakim/netboost/internal/registry"
)

type createSessionRequest struct {
	DeviceID        string `json:"deviceId"`
	DeviceIP        string `json:"deviceIp"`
	MSISDN          string `json:"msisdn"`
	AppServerIP     string `json:"appServerIp"`
	QosProfile      string `json:"qosProfile"`
	DevicePorts     []int  `json:"devicePorts"`
	AppServerPorts  []int  `json:"appServerPorts"`
	WebhookURL      string `json:"webhookUrl"`
	DurationSeconds int    `json:"duration"`
	AutoRenew       bool   `json:"autoRenew"`
}

type extendSessionRequest struct {
	AdditionalSeconds int `json:"requestedAdditionalDuration"`
}

// sessionView decorates a record with its countdown for the dashboard.
type sessionView struct {
	domain.SessionRecord
	RemainingSeconds int    `json:"remainingSeconds"`
	Remaining        string `json:"remaining"`
	Tier             string `json:"tier"`
}

type sessionResponse struct {
	Session sessionView `json:"session"`
	Warning string      `json:"warning,omitempty"`
}

func (s *Server) sessionView(rec domain.SessionRecord) sessionView {
	remaining := boost.Remaining(s.clock.Now(), rec.CreatedAt, rec.DurationSeconds)
	seconds := int(remaining.Seconds())
	if seconds < 0 || !rec.IsActive {
		seconds = 0
	}
	tier := boost.TierFor(remaining)
	if !rec.IsActive {
		tier = boost.TierExpired
	}
	return sessionView{
		SessionRecord:    rec,
		RemainingSeconds: seconds,
		Remaining:        boost.FormatRemaining(remaining),
		Tier:             string(tier),
	}
}

func (s *Server) handleCreateSession(c echo.Context) error {
	var req createSessionRequest
	if err := c.Bind(&req); err != nil {
		return apperrors.ValidationError("invalid request body")
	}
	if req.QosProfile != "" && !registry.ValidProfile(req.QosProfile) {
		return apperrors.ValidationError("unknown qos profile").WithContext("qos_profile", req.QosProfile)
	}

	create := domain.CreateSessionRequest{
		DeviceRef:       req.DeviceID,
		DeviceIP:        req.DeviceIP,
		MSISDN:          req.MSISDN,
		AppServerIP:     req.AppServerIP,
		QosProfile:      req.QosProfile,
		DevicePorts:     req.DevicePorts,
		AppServerPorts:  req.AppServerPorts,
		WebhookURL:      req.WebhookURL,
		DurationSeconds: req.DurationSeconds,
		AutoRenew:       req.AutoRenew,
	}

	// A directory id resolves to the registered address; the id stays the
	// record's device reference.
	if req.DeviceID != "" {
		device, ok := s.registry.Device(req.DeviceID)
		if !ok {
			return apperrors.NotFoundError("device not found").WithContext("device_id", req.DeviceID)
		}
		create.DeviceIP = device.IPAddress
		create.MSISDN = device.MSISDN
	}

	result, err := s.controller.CreateSession(c.Request().Context(), create)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, sessionResponse{Session: s.sessionView(result.Record), Warning: result.Warning})
}

func (s *Server) handleListSessions(c echo.Context) error {
	records := s.store.ListSessions()
	views := make([]sessionView, 0, len(records))
	for _, rec := range records {
		views = append(views, s.sessionView(rec))
	}
	return c.JSON(http.StatusOK, map[string]any{"sessions": views})
}

func (s *Server) handleGetSession(c echo.Context) error {
	rec, err := s.controller.CheckStatus(c.Request().Context(), c.Param("id"))
	if err != nil && !apperrors.IsType(err, apperrors.TypeRemote) {
		return err
	}
	// A failed poll still answers with the last known record.
	return c.JSON(http.StatusOK, sessionResponse{Session: s.sessionView(rec)})
}

func (s *Server) handleExtendSession(c echo.Context) error {
	var req extendSessionRequest
	if err := c.Bind(&req); err != nil {
		return apperrors.ValidationError("invalid request body")
	}

	result, err := s.controller.ExtendSession(c.Request().Context(), c.Param("id"), req.AdditionalSeconds)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, sessionResponse{Session: s.sessionView(result.Record), Warning: result.Warning})
}

func (s *Server) handleDeleteSession(c echo.Context) error {
	result, err := s.controller.DeleteSession(c.Request().Context(), c.Param("id"))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, map[string]any{"removed": result.Removed, "warning": result.Warning})
}
