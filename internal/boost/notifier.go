package boost

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/VIPHakim/netboost/internal/domain"
	"github.com/VIPHakim/netboost/internal/metrics"
)

const (
	// scanInterval is the fixed redraw tick: pure computation, no network.
	scanInterval = 1 * time.Second

	// expiringSoonThreshold is the one-shot notification cutoff.
	expiringSoonThreshold = 45 * time.Second
)

// Tier is the countdown severity of a session.
type Tier string

const (
	TierNormal   Tier = "normal"
	TierWarning  Tier = "warning"
	TierCritical Tier = "critical"
	TierExpired  Tier = "expired"
)

// Remaining computes the time left on a session at now.
func Remaining(now, createdAt time.Time, durationSeconds int) time.Duration {
	return createdAt.Add(time.Duration(durationSeconds) * time.Second).Sub(now)
}

// TierFor maps remaining time onto a severity tier. Thresholds are
// inclusive on the lower bound of each band.
func TierFor(remaining time.Duration) Tier {
	switch {
	case remaining >= 60*time.Second:
		return TierNormal
	case remaining >= 30*time.Second:
		return TierWarning
	case remaining > 0:
		return TierCritical
	default:
		return TierExpired
	}
}

// FormatRemaining renders a countdown as "Xm YYs" with zero-padded seconds.
// Negative values clamp to "0m 00s".
func FormatRemaining(remaining time.Duration) string {
	if remaining < 0 {
		remaining = 0
	}
	total := int(remaining / time.Second)
	return fmt.Sprintf("%dm %02ds", total/60, total%60)
}

// Notifier runs the fast countdown scan: it emits one-shot expiring-soon
// signals and locally marks clock-expired sessions EXPIRED. It never blocks
// on network calls; the reconciliation loop is a separate component.
type Notifier struct {
	store      domain.SessionStore
	controller *Controller
	clock      clockwork.Clock
	onExpiring func(domain.SessionRecord)
	stopCh     chan struct{}
}

// NewNotifier creates the countdown scanner. onExpiring may be nil.
func NewNotifier(store domain.SessionStore, controller *Controller, clock clockwork.Clock, onExpiring func(domain.SessionRecord)) *Notifier {
	return &Notifier{
		store:      store,
		controller: controller,
		clock:      clock,
		onExpiring: onExpiring,
		stopCh:     make(chan struct{}),
	}
}

// Run drives the 1-second scan loop until ctx is cancelled or Stop is called.
func (n *Notifier) Run(ctx context.Context) {
	ticker := n.clock.NewTicker(scanInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.Chan():
			n.Scan()
		case <-n.stopCh:
			return
		case <-ctx.Done():
			return
		}
	}
}

// Stop terminates the scan loop.
func (n *Notifier) Stop() {
	close(n.stopCh)
}

// Scan runs a single countdown pass over the mirror.
func (n *Notifier) Scan() {
	now := n.clock.Now()
	for _, rec := range n.store.ListSessions() {
		if !rec.IsActive {
			continue
		}

		remaining := Remaining(now, rec.CreatedAt, rec.DurationSeconds)

		if remaining <= 0 {
			// Clock-inferred expiry, not remote-confirmed. The reconciler
			// corrects this if the remote registry disagrees.
			n.controller.cancelRenewal(rec.SessionID)
			if _, err := n.store.UpdateSession(rec.SessionID, func(r *domain.SessionRecord) {
				r.SetStatus(domain.StatusExpired)
			}); err != nil {
				slog.Error("Failed to mark session expired", "session_id", rec.SessionID, "error", err)
			}
			slog.Info("Boost session expired locally", "session_id", rec.SessionID)
			continue
		}

		if remaining < expiringSoonThreshold && !rec.ExpirationNotified {
			if _, err := n.store.UpdateSession(rec.SessionID, func(r *domain.SessionRecord) {
				r.ExpirationNotified = true
			}); err != nil {
				slog.Error("Failed to flag expiring session", "session_id", rec.SessionID, "error", err)
				continue
			}
			metrics.ExpiringSoonNotificationsTotal.Inc()
			slog.Info("Boost session expiring soon", "session_id", rec.SessionID, "remaining", FormatRemaining(remaining))
			if n.onExpiring != nil {
				n.onExpiring(rec)
			}
		}
	}
}
