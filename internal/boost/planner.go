package boost

import (
	"context"
	"log/slog"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/VIPHakim/netboost/internal/domain"
	apperrors "github.com/VIPHakim/netboost/internal/errors"
	"github.com/VIPHakim/netboost/internal/metrics"
)

// Planner schedules future boost windows for groups of devices. Descriptors
// persist in the schedule store, so windows survive restarts; Restore re-arms
// or catches up on boot.
type Planner struct {
	store      domain.ScheduleStore
	controller *Controller
	sched      *Scheduler
	clock      clockwork.Clock
	devices    domain.DeviceDirectory // may be nil; refs then resolve as raw IPs
}

func NewPlanner(store domain.ScheduleStore, controller *Controller, sched *Scheduler, clock clockwork.Clock, devices domain.DeviceDirectory) *Planner {
	return &Planner{
		store:      store,
		controller: controller,
		sched:      sched,
		clock:      clock,
		devices:    devices,
	}
}

// ScheduleRequest describes a future boost window.
type ScheduleRequest struct {
	GroupID    string
	DeviceRefs []string
	StartTime  time.Time
	EndTime    time.Time
	Boost      domain.BoostParameters
}

// Schedule validates and persists a boost window, arming its start and end
// timers. Overlapping windows on the same device are allowed; the last delete
// wins (accepted current behavior).
func (p *Planner) Schedule(ctx context.Context, req ScheduleRequest) (domain.ScheduledTask, error) {
	now := p.clock.Now()
	switch {
	case len(req.DeviceRefs) == 0:
		return domain.ScheduledTask{}, apperrors.ValidationError("at least one device is required")
	case req.Boost.QosProfile == "":
		return domain.ScheduledTask{}, apperrors.ValidationError("qosProfile is required")
	case !req.StartTime.After(now):
		return domain.ScheduledTask{}, apperrors.ValidationError("startTime must be in the future")
	case !req.EndTime.After(req.StartTime):
		return domain.ScheduledTask{}, apperrors.ValidationError("endTime must be after startTime")
	}

	task := domain.ScheduledTask{
		TaskID:          domain.TaskID(req.GroupID, req.StartTime, req.EndTime),
		GroupID:         req.GroupID,
		DeviceRefs:      req.DeviceRefs,
		StartTime:       req.StartTime,
		EndTime:         req.EndTime,
		DurationSeconds: int(req.EndTime.Sub(req.StartTime) / time.Second),
		Boost:           req.Boost,
		SessionIDs:      []string{},
	}

	if err := p.store.PutTask(task); err != nil {
		return domain.ScheduledTask{}, err
	}

	p.armStart(task.TaskID, req.StartTime.Sub(now), "timer")
	p.armEnd(task.TaskID, req.EndTime.Sub(now))

	slog.Info("Boost window scheduled", "task_id", task.TaskID, "group_id", task.GroupID, "devices", len(task.DeviceRefs), "start", task.StartTime, "end", task.EndTime)
	return task, nil
}

// Cancel disarms a window's timers and removes it. Sessions already created
// by a started window are deleted, mirroring the end-timer path.
func (p *Planner) Cancel(ctx context.Context, taskID string) error {
	task, ok := p.store.GetTask(taskID)
	if !ok {
		return apperrors.NotFoundError("scheduled task not found").WithContext("task_id", taskID)
	}

	p.sched.Cancel(startKey(taskID))
	p.sched.Cancel(endKey(taskID))

	if task.Started {
		p.deleteTaskSessions(ctx, task)
	}

	if _, err := p.store.RemoveTask(taskID); err != nil {
		return err
	}
	slog.Info("Boost window cancelled", "task_id", taskID)
	return nil
}

// Restore re-examines persisted windows after a restart:
//   - endTime already passed: discard, no cleanup action
//   - not started, startTime passed: start immediately (catch-up)
//   - otherwise: re-arm the remaining timers
func (p *Planner) Restore(ctx context.Context) error {
	now := p.clock.Now()
	for _, task := range p.store.ListTasks() {
		switch {
		case !task.EndTime.After(now):
			if _, err := p.store.RemoveTask(task.TaskID); err != nil {
				return err
			}
			slog.Info("Discarded boost window that ended while offline", "task_id", task.TaskID)

		case !task.Started && !task.StartTime.After(now):
			slog.Info("Catching up missed boost window start", "task_id", task.TaskID)
			p.startTask(ctx, task.TaskID, "catchup")
			p.armEnd(task.TaskID, task.EndTime.Sub(now))

		default:
			if !task.Started {
				p.armStart(task.TaskID, task.StartTime.Sub(now), "timer")
			}
			p.armEnd(task.TaskID, task.EndTime.Sub(now))
			slog.Info("Re-armed boost window", "task_id", task.TaskID, "started", task.Started)
		}
	}
	return nil
}

func (p *Planner) armStart(taskID string, in time.Duration, trigger string) {
	p.sched.Arm(startKey(taskID), in, func() {
		p.startTask(context.Background(), taskID, trigger)
	})
}

func (p *Planner) armEnd(taskID string, in time.Duration) {
	p.sched.Arm(endKey(taskID), in, func() {
		p.endTask(context.Background(), taskID)
	})
}

// startTask fires at the window start: one session per device, collecting ids
// (including local fallbacks) into the task.
func (p *Planner) startTask(ctx context.Context, taskID, trigger string) {
	task, ok := p.store.GetTask(taskID)
	if !ok || task.Started {
		return
	}

	sessionIDs := make([]string, 0, len(task.DeviceRefs))
	for _, ref := range task.DeviceRefs {
		req := p.sessionRequest(task, ref)
		result, err := p.controller.CreateSession(ctx, req)
		if err != nil {
			slog.Error("Scheduled session create failed", "task_id", taskID, "device_ref", ref, "error", err)
			continue
		}
		sessionIDs = append(sessionIDs, result.Record.SessionID)
	}

	if _, err := p.store.UpdateTask(taskID, func(t *domain.ScheduledTask) {
		t.Started = true
		t.SessionIDs = sessionIDs
	}); err != nil {
		slog.Error("Failed to persist started boost window", "task_id", taskID, "error", err)
	}

	metrics.ScheduledTaskStartsTotal.WithLabelValues(trigger).Inc()
	slog.Info("Boost window started", "task_id", taskID, "sessions", len(sessionIDs), "trigger", trigger)
}

// endTask fires at the window end: delete every collected session, then
// remove the descriptor.
func (p *Planner) endTask(ctx context.Context, taskID string) {
	task, ok := p.store.GetTask(taskID)
	if !ok {
		return
	}

	p.deleteTaskSessions(ctx, task)

	if _, err := p.store.RemoveTask(taskID); err != nil {
		slog.Error("Failed to remove completed boost window", "task_id", taskID, "error", err)
		return
	}
	slog.Info("Boost window completed", "task_id", taskID)
}

func (p *Planner) deleteTaskSessions(ctx context.Context, task domain.ScheduledTask) {
	for _, id := range task.SessionIDs {
		if _, err := p.controller.DeleteSession(ctx, id); err != nil {
			slog.Error("Scheduled session delete failed", "task_id", task.TaskID, "session_id", id, "error", err)
		}
	}
}

// sessionRequest resolves a device ref against the directory when possible;
// unresolved refs are treated as raw device IPs.
func (p *Planner) sessionRequest(task domain.ScheduledTask, ref string) domain.CreateSessionRequest {
	req := domain.CreateSessionRequest{
		DeviceRef:       ref,
		DeviceIP:        ref,
		AppServerIP:     task.Boost.AppServerIP,
		QosProfile:      task.Boost.QosProfile,
		WebhookURL:      task.Boost.WebhookURL,
		DurationSeconds: task.DurationSeconds,
	}
	if p.devices != nil {
		if device, ok := p.devices.Device(ref); ok {
			req.DeviceIP = device.IPAddress
			req.MSISDN = device.MSISDN
		}
	}
	return req
}
