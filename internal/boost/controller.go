package boost

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"

	"github.com/VIPHakim/netboost/internal/domain"
	apperrors "github.com/VIPHakim/netboost/internal/errors"
	"github.com/VIPHakim/netboost/internal/metrics"
)

// renewalLeadTime is how long before expiry an auto-renew extend fires.
const renewalLeadTime = 10 * time.Second

// Controller creates, extends, deletes, and polls boost sessions against the
// remote QoD API, keeping the local mirror current and arming renewal timers.
type Controller struct {
	store domain.SessionStore
	api   domain.QoDAPI
	sched *Scheduler
	clock clockwork.Clock

	mu       sync.Mutex
	renewals map[string]int // session id -> seconds added per auto-renewal
}

func NewController(store domain.SessionStore, api domain.QoDAPI, sched *Scheduler, clock clockwork.Clock) *Controller {
	return &Controller{
		store:    store,
		api:      api,
		sched:    sched,
		clock:    clock,
		renewals: make(map[string]int),
	}
}

// CreateResult reports the stored record plus a human-readable warning when
// the remote call failed and a local-only fallback record was synthesized.
type CreateResult struct {
	Record  domain.SessionRecord
	Warning string
}

// ExtendResult reports the updated record and whether the remote side
// accepted the extension.
type ExtendResult struct {
	Record        domain.SessionRecord
	RemoteApplied bool
	Warning       string
}

// DeleteResult reports whether a local record was removed and any warning
// from the remote delete.
type DeleteResult struct {
	Removed bool
	Warning string
}

// CreateSession requests a boost from the QoD service and mirrors the result.
// Auth and remote failures degrade to a local-only fallback record with a
// surfaced warning; validation failures are fatal to the call.
func (c *Controller) CreateSession(ctx context.Context, req domain.CreateSessionRequest) (CreateResult, error) {
	if req.DurationSeconds <= 0 {
		return CreateResult{}, apperrors.ValidationError("durationSeconds must be positive")
	}
	if req.QosProfile == "" {
		return CreateResult{}, apperrors.ValidationError("qosProfile is required")
	}
	if req.DeviceIP == "" && req.MSISDN == "" {
		return CreateResult{}, apperrors.ValidationError("a device IP or MSISDN is required")
	}

	deviceRef := req.DeviceRef
	if deviceRef == "" {
		deviceRef = req.DeviceIP
	}

	rec := domain.SessionRecord{
		DeviceRef:       deviceRef,
		CreatedAt:       c.clock.Now(),
		DurationSeconds: req.DurationSeconds,
	}

	var warning string
	remote, err := c.api.CreateSession(ctx, req)
	switch {
	case err == nil:
		rec.SessionID = remote.ID
		rec.SetStatus(remote.Status)
		if remote.DurationSeconds > 0 {
			rec.DurationSeconds = remote.DurationSeconds
		}
		metrics.SessionsCreatedTotal.WithLabelValues("remote").Inc()
	case apperrors.IsType(err, apperrors.TypeValidation):
		return CreateResult{}, err
	default:
		// Resilience-first posture: synthesize a non-authoritative local
		// record instead of failing the boost outright.
		rec.SessionID = "local-" + uuid.NewString()
		rec.LocalOnly = true
		rec.SetStatus(domain.StatusRequested)
		warning = fmt.Sprintf("session created locally only; remote create failed: %s", apperrors.AsStructuredError(err).Message)
		slog.Warn("Remote session create failed, using local fallback", "session_id", rec.SessionID, "device_ref", deviceRef, "error", err)
		metrics.SessionsCreatedTotal.WithLabelValues("local_fallback").Inc()
	}

	if err := c.store.PutSession(rec); err != nil {
		return CreateResult{}, err
	}

	if req.AutoRenew {
		c.mu.Lock()
		c.renewals[rec.SessionID] = req.DurationSeconds
		c.mu.Unlock()
		c.armRenewal(rec.SessionID, time.Duration(rec.DurationSeconds)*time.Second-renewalLeadTime)
	}

	slog.Info("Boost session created", "session_id", rec.SessionID, "device_ref", deviceRef, "duration_seconds", rec.DurationSeconds, "local_only", rec.LocalOnly)
	return CreateResult{Record: rec, Warning: warning}, nil
}

// ExtendSession adds additionalSeconds to the session. The local duration is
// incremented whether or not the remote call succeeds; a failed remote update
// is disclosed in the warning.
func (c *Controller) ExtendSession(ctx context.Context, sessionID string, additionalSeconds int) (ExtendResult, error) {
	if additionalSeconds <= 0 {
		return ExtendResult{}, apperrors.ValidationError("additionalSeconds must be positive")
	}

	rec, ok := c.store.GetSession(sessionID)
	if !ok {
		return ExtendResult{}, apperrors.NotFoundError("session not tracked").WithContext("session_id", sessionID)
	}

	remoteApplied := false
	var warning string
	if !rec.LocalOnly {
		if _, err := c.api.ExtendSession(ctx, sessionID, additionalSeconds); err != nil {
			warning = fmt.Sprintf("extended locally; remote update failed: %s", apperrors.AsStructuredError(err).Message)
			slog.Warn("Remote extend failed, applying locally", "session_id", sessionID, "error", err)
		} else {
			remoteApplied = true
		}
	}

	updated, err := c.store.UpdateSession(sessionID, func(r *domain.SessionRecord) {
		r.DurationSeconds += additionalSeconds
		r.ExpirationNotified = false
	})
	if err != nil {
		return ExtendResult{}, err
	}

	if remoteApplied {
		metrics.SessionExtendsTotal.WithLabelValues("ok").Inc()
	} else {
		metrics.SessionExtendsTotal.WithLabelValues("failed").Inc()
	}

	// Re-arm the renewal against the new total duration.
	c.mu.Lock()
	_, autoRenew := c.renewals[sessionID]
	c.mu.Unlock()
	if autoRenew {
		c.armRenewal(sessionID, updated.ExpiresAt().Sub(c.clock.Now())-renewalLeadTime)
	}

	slog.Info("Boost session extended", "session_id", sessionID, "additional_seconds", additionalSeconds, "total_seconds", updated.DurationSeconds, "remote_applied", remoteApplied)
	return ExtendResult{Record: updated, RemoteApplied: remoteApplied, Warning: warning}, nil
}

// DeleteSession removes the record locally first, then attempts the remote
// delete. A remote 404 is success; any other remote failure is reported as a
// warning and does not resurrect the local record.
func (c *Controller) DeleteSession(ctx context.Context, sessionID string) (DeleteResult, error) {
	rec, tracked := c.store.GetSession(sessionID)

	c.cancelRenewal(sessionID)
	removed, err := c.store.RemoveSession(sessionID)
	if err != nil {
		return DeleteResult{}, err
	}

	if tracked && rec.LocalOnly {
		metrics.SessionDeletesTotal.WithLabelValues("skipped_local").Inc()
		return DeleteResult{Removed: removed}, nil
	}

	var warning string
	if err := c.api.DeleteSession(ctx, sessionID); err != nil {
		warning = fmt.Sprintf("deleted locally; remote delete failed: %s", apperrors.AsStructuredError(err).Message)
		slog.Warn("Remote delete failed, local record already removed", "session_id", sessionID, "error", err)
		metrics.SessionDeletesTotal.WithLabelValues("failed").Inc()
	} else {
		metrics.SessionDeletesTotal.WithLabelValues("ok").Inc()
	}

	slog.Info("Boost session deleted", "session_id", sessionID, "was_tracked", tracked)
	return DeleteResult{Removed: removed, Warning: warning}, nil
}

// CheckStatus polls the remote status endpoint and maps the answer onto the
// mirror. A 404 marks the session DELETED. On remote failure the last known
// record is returned alongside the error.
func (c *Controller) CheckStatus(ctx context.Context, sessionID string) (domain.SessionRecord, error) {
	rec, ok := c.store.GetSession(sessionID)
	if !ok {
		return domain.SessionRecord{}, apperrors.NotFoundError("session not tracked").WithContext("session_id", sessionID)
	}
	if rec.LocalOnly {
		// Non-authoritative records have nothing to poll.
		return rec, nil
	}

	remote, err := c.api.GetSession(ctx, sessionID)
	if apperrors.IsType(err, apperrors.TypeNotFound) {
		c.cancelRenewal(sessionID)
		return c.store.UpdateSession(sessionID, func(r *domain.SessionRecord) {
			r.SetStatus(domain.StatusDeleted)
		})
	}
	if err != nil {
		return rec, err
	}

	if !remote.Status.Active() {
		c.cancelRenewal(sessionID)
	}
	return c.store.UpdateSession(sessionID, func(r *domain.SessionRecord) {
		r.SetStatus(remote.Status)
	})
}

// cancelRenewal disarms the auto-renew timer for a session reaching a
// terminal state.
func (c *Controller) cancelRenewal(sessionID string) {
	c.sched.Cancel(renewKey(sessionID))
	c.mu.Lock()
	delete(c.renewals, sessionID)
	c.mu.Unlock()
}

func (c *Controller) armRenewal(sessionID string, in time.Duration) {
	c.sched.Arm(renewKey(sessionID), in, func() {
		c.renew(sessionID)
	})
}

// renew fires from the renewal timer: extend only if the record is still
// tracked and not yet past its expiry.
func (c *Controller) renew(sessionID string) {
	rec, ok := c.store.GetSession(sessionID)
	if !ok || !rec.IsActive {
		return
	}
	if c.clock.Now().After(rec.ExpiresAt()) {
		return
	}

	c.mu.Lock()
	seconds, autoRenew := c.renewals[sessionID]
	c.mu.Unlock()
	if !autoRenew {
		return
	}

	slog.Info("Auto-renewing boost session", "session_id", sessionID, "additional_seconds", seconds)
	if _, err := c.ExtendSession(context.Background(), sessionID, seconds); err != nil {
		slog.Error("Auto-renew extend failed", "session_id", sessionID, "error", err)
	}
}
