// Package boost implements the QoS boost session lifecycle: the controller
// driving the remote QoD API, the scheduled boost window planner, the
// expiration notifier, and the reconciliation loop against the remote
// registry.
package boost

import (
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
)

// Scheduler maps keys to cancellable timer handles so every armed timer can
// be found and disarmed when its owning record reaches a terminal state.
type Scheduler struct {
	clock clockwork.Clock

	mu     sync.Mutex
	timers map[string]clockwork.Timer
}

func NewScheduler(clock clockwork.Clock) *Scheduler {
	return &Scheduler{
		clock:  clock,
		timers: make(map[string]clockwork.Timer),
	}
}

// Arm schedules fn to run after d, replacing any timer already armed under
// key. A non-positive delay fires fn immediately on a fresh goroutine.
func (s *Scheduler) Arm(key string, d time.Duration, fn func()) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if old, ok := s.timers[key]; ok {
		old.Stop()
	}

	if d <= 0 {
		delete(s.timers, key)
		go fn()
		return
	}

	s.timers[key] = s.clock.AfterFunc(d, func() {
		s.mu.Lock()
		delete(s.timers, key)
		s.mu.Unlock()
		fn()
	})
}

// Cancel disarms the timer under key, reporting whether one was armed.
func (s *Scheduler) Cancel(key string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	timer, ok := s.timers[key]
	if !ok {
		return false
	}
	timer.Stop()
	delete(s.timers, key)
	return true
}

// Armed reports whether a timer is currently armed under key.
func (s *Scheduler) Armed(key string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.timers[key]
	return ok
}

// Stop disarms every timer. Used on shutdown.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for key, timer := range s.timers {
		timer.Stop()
		delete(s.timers, key)
	}
}

// Timer key namespaces.
func renewKey(sessionID string) string { return "renew:" + sessionID }
func startKey(taskID string) string    { return "start:" + taskID }
func endKey(taskID string) string      { return "end:" + taskID }
