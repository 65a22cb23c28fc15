// Package store holds the authoritative local mirror of session records and
// scheduled boost windows. Every mutation runs through this one serialized
// API; nothing else touches the persisted JSON files.
package store

import (
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/VIPHakim/netboost/internal/domain"
	apperrors "github.com/VIPHakim/netboost/internal/errors"
	"github.com/VIPHakim/netboost/internal/metrics"
)

const (
	sessionsFile  = "sessions.json"
	schedulesFile = "schedules.json"

	// Retention windows measured from CreatedAt.
	deletedRetention  = 1 * time.Hour
	inactiveRetention = 24 * time.Hour
)

// Store is the local mirror. A single mutex serializes all access so the
// notifier scan, the reconciliation loop, and lifecycle mutations never
// interleave partial updates.
type Store struct {
	clock clockwork.Clock
	dir   string

	mu       sync.Mutex
	sessions map[string]domain.SessionRecord
	tasks    map[string]domain.ScheduledTask
	subs     map[int]chan []domain.SessionRecord
	nextSub  int
}

// New opens the mirror rooted at dir, creating it if needed. Missing files
// mean "no records" — there is no other bootstrap source.
func New(dir string, clock clockwork.Clock) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, apperrors.PersistenceError("creating data directory", err)
	}

	s := &Store{
		clock:    clock,
		dir:      dir,
		sessions: make(map[string]domain.SessionRecord),
		tasks:    make(map[string]domain.ScheduledTask),
		subs:     make(map[int]chan []domain.SessionRecord),
	}

	var sessions []domain.SessionRecord
	if err := readJSONFile(filepath.Join(dir, sessionsFile), &sessions); err != nil {
		return nil, err
	}
	for _, rec := range sessions {
		rec.IsActive = rec.QosStatus.Active()
		s.sessions[rec.SessionID] = rec
	}

	var tasks []domain.ScheduledTask
	if err := readJSONFile(filepath.Join(dir, schedulesFile), &tasks); err != nil {
		return nil, err
	}
	for _, task := range tasks {
		s.tasks[task.TaskID] = task
	}

	metrics.SessionsTracked.Set(float64(len(s.sessions)))
	metrics.ScheduledTasksActive.Set(float64(len(s.tasks)))
	slog.Info("Local mirror loaded", "sessions", len(s.sessions), "tasks", len(s.tasks), "dir", dir)
	return s, nil
}

// --- sessions ---

func (s *Store) PutSession(rec domain.SessionRecord) error {
	rec.IsActive = rec.QosStatus.Active()

	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[rec.SessionID] = rec
	return s.persistSessionsLocked()
}

func (s *Store) GetSession(sessionID string) (domain.SessionRecord, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.sessions[sessionID]
	return rec, ok
}

func (s *Store) ListSessions() []domain.SessionRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

// UpdateSession applies fn to the record under the store lock and persists the
// result. Returns domain.ErrSessionNotFound if the id is not tracked.
func (s *Store) UpdateSession(sessionID string, fn func(*domain.SessionRecord)) (domain.SessionRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.sessions[sessionID]
	if !ok {
		return domain.SessionRecord{}, domain.ErrSessionNotFound
	}
	fn(&rec)
	rec.IsActive = rec.QosStatus.Active()
	s.sessions[sessionID] = rec

	if err := s.persistSessionsLocked(); err != nil {
		return domain.SessionRecord{}, err
	}
	return rec, nil
}

// RemoveSession deletes the record, reporting whether it existed.
func (s *Store) RemoveSession(sessionID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.sessions[sessionID]; !ok {
		return false, nil
	}
	delete(s.sessions, sessionID)
	return true, s.persistSessionsLocked()
}

// Prune applies the retention rules: DELETED records are kept one hour past
// CreatedAt for user reference, every other inactive record 24 hours.
func (s *Store) Prune() (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.clock.Now()
	removed := 0
	for id, rec := range s.sessions {
		age := now.Sub(rec.CreatedAt)
		switch {
		case rec.QosStatus == domain.StatusDeleted && age > deletedRetention:
			delete(s.sessions, id)
			metrics.SessionsPrunedTotal.WithLabelValues("deleted_retention").Inc()
			removed++
		case !rec.IsActive && rec.QosStatus != domain.StatusDeleted && age > inactiveRetention:
			delete(s.sessions, id)
			metrics.SessionsPrunedTotal.WithLabelValues("inactive_retention").Inc()
			removed++
		}
	}

	if removed == 0 {
		return 0, nil
	}
	return removed, s.persistSessionsLocked()
}

// --- scheduled tasks ---

func (s *Store) PutTask(task domain.ScheduledTask) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tasks[task.TaskID] = task
	return s.persistTasksLocked()
}

func (s *Store) GetTask(taskID string) (domain.ScheduledTask, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	task, ok := s.tasks[taskID]
	return task, ok
}

func (s *Store) ListTasks() []domain.ScheduledTask {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]domain.ScheduledTask, 0, len(s.tasks))
	for _, task := range s.tasks {
		out = append(out, task)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].StartTime.Equal(out[j].StartTime) {
			return out[i].TaskID < out[j].TaskID
		}
		return out[i].StartTime.Before(out[j].StartTime)
	})
	return out
}

func (s *Store) UpdateTask(taskID string, fn func(*domain.ScheduledTask)) (domain.ScheduledTask, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	task, ok := s.tasks[taskID]
	if !ok {
		return domain.ScheduledTask{}, domain.ErrTaskNotFound
	}
	fn(&task)
	s.tasks[taskID] = task

	if err := s.persistTasksLocked(); err != nil {
		return domain.ScheduledTask{}, err
	}
	return task, nil
}

func (s *Store) RemoveTask(taskID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.tasks[taskID]; !ok {
		return false, nil
	}
	delete(s.tasks, taskID)
	return true, s.persistTasksLocked()
}

// --- change notification ---

// Subscribe registers for full session-list snapshots after every session
// mutation. Slow subscribers drop snapshots rather than block the store.
func (s *Store) Subscribe() (<-chan []domain.SessionRecord, func()) {
	s.mu.Lock()
	defer s.mu.Unlock()

	id := s.nextSub
	s.nextSub++
	ch := make(chan []domain.SessionRecord, 4)
	s.subs[id] = ch

	unsubscribe := func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		if sub, ok := s.subs[id]; ok {
			delete(s.subs, id)
			close(sub)
		}
	}
	return ch, unsubscribe
}

// Ping verifies the data directory is still writable (readiness probe).
func (s *Store) Ping() error {
	probe := filepath.Join(s.dir, ".probe")
	if err := os.WriteFile(probe, []byte("ok"), 0o644); err != nil {
		return apperrors.PersistenceError("data directory not writable", err)
	}
	return os.Remove(probe)
}

// --- internals (called with s.mu held) ---

func (s *Store) snapshotLocked() []domain.SessionRecord {
	out := make([]domain.SessionRecord, 0, len(s.sessions))
	for _, rec := range s.sessions {
		out = append(out, rec)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].SessionID < out[j].SessionID
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out
}

func (s *Store) persistSessionsLocked() error {
	snapshot := s.snapshotLocked()
	if err := writeJSONFile(filepath.Join(s.dir, sessionsFile), snapshot); err != nil {
		return err
	}
	metrics.SessionsTracked.Set(float64(len(s.sessions)))

	for _, ch := range s.subs {
		select {
		case ch <- snapshot:
		default:
		}
	}
	return nil
}

func (s *Store) persistTasksLocked() error {
	tasks := make([]domain.ScheduledTask, 0, len(s.tasks))
	for _, task := range s.tasks {
		tasks = append(tasks, task)
	}
	sort.Slice(tasks, func(i, j int) bool { return tasks[i].TaskID < tasks[j].TaskID })

	if err := writeJSONFile(filepath.Join(s.dir, schedulesFile), tasks); err != nil {
		return err
	}
	metrics.ScheduledTasksActive.Set(float64(len(s.tasks)))
	return nil
}
