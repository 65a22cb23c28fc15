package boost

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/VIPHakim/netboost/internal/domain"
	apperrors "github.com/VIPHakim/netboost/internal/errors"
	"github.com/VIPHakim/netboost/internal/store"
)

// fakeQoD is a scriptable QoDAPI double shared by the boost tests.
type fakeQoD struct {
	mu sync.Mutex

	createFn func(domain.CreateSessionRequest) (*domain.RemoteSession, error)
	getFn    func(string) (*domain.RemoteSession, error)
	extendFn func(string, int) (*domain.RemoteSession, error)
	deleteFn func(string) error

	creates int
	extends int
	deletes int
}

func (f *fakeQoD) CreateSession(_ context.Context, req domain.CreateSessionRequest) (*domain.RemoteSession, error) {
	f.mu.Lock()
	f.creates++
	fn := f.createFn
	f.mu.Unlock()
	if fn != nil {
		return fn(req)
	}
	return &domain.RemoteSession{ID: "qod-1", Status: domain.StatusActive}, nil
}

func (f *fakeQoD) GetSession(_ context.Context, id string) (*domain.RemoteSession, error) {
	f.mu.Lock()
	fn := f.getFn
	f.mu.Unlock()
	if fn != nil {
		return fn(id)
	}
	return &domain.RemoteSession{ID: id, Status: domain.StatusActive}, nil
}

func (f *fakeQoD) ExtendSession(_ context.Context, id string, seconds int) (*domain.RemoteSession, error) {
	f.mu.Lock()
	f.extends++
	fn := f.extendFn
	f.mu.Unlock()
	if fn != nil {
		return fn(id, seconds)
	}
	return &domain.RemoteSession{ID: id, Status: domain.StatusActive}, nil
}

func (f *fakeQoD) DeleteSession(_ context.Context, id string) error {
	f.mu.Lock()
	f.deletes++
	fn := f.deleteFn
	f.mu.Unlock()
	if fn != nil {
		return fn(id)
	}
	return nil
}

func (f *fakeQoD) counts() (creates, extends, deletes int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.creates, f.extends, f.deletes
}

func newTestController(t *testing.T, api domain.QoDAPI) (*Controller, *store.Store, *clockwork.FakeClock) {
	t.Helper()
	clock := clockwork.NewFakeClock()
	st, err := store.New(t.TempDir(), clock)
	require.NoError(t, err)
	sched := NewScheduler(clock)
	t.Cleanup(sched.Stop)
	return NewController(st, api, sched, clock), st, clock
}

func TestCreateSession_RemoteSuccess(t *testing.T) {
	api := &fakeQoD{}
	ctrl, st, _ := newTestController(t, api)

	result, err := ctrl.CreateSession(context.Background(), domain.CreateSessionRequest{
		DeviceIP:        "10.0.0.7",
		QosProfile:      "QOS_E",
		DurationSeconds: 600,
	})
	require.NoError(t, err)
	assert.Empty(t, result.Warning)
	assert.Equal(t, "qod-1", result.Record.SessionID)
	assert.Equal(t, domain.StatusActive, result.Record.QosStatus)
	assert.True(t, result.Record.IsActive)
	assert.False(t, result.Record.LocalOnly)

	stored, ok := st.GetSession("qod-1")
	require.True(t, ok)
	assert.Equal(t, 600, stored.DurationSeconds)
}

func TestCreateSession_RemoteFailureFallsBackToLocal(t *testing.T) {
	api := &fakeQoD{
		createFn: func(domain.CreateSessionRequest) (*domain.RemoteSession, error) {
			return nil, apperrors.RemoteError("qod service unreachable", errors.New("connection refused"))
		},
	}
	ctrl, st, _ := newTestController(t, api)

	result, err := ctrl.CreateSession(context.Background(), domain.CreateSessionRequest{
		DeviceIP:        "10.0.0.7",
		QosProfile:      "QOS_E",
		DurationSeconds: 600,
	})
	require.NoError(t, err)
	assert.Contains(t, result.Warning, "session created locally only")
	assert.True(t, result.Record.LocalOnly)
	assert.Contains(t, result.Record.SessionID, "local-")
	assert.Equal(t, domain.StatusRequested, result.Record.QosStatus)

	_, ok := st.GetSession(result.Record.SessionID)
	assert.True(t, ok, "fallback record must be tracked")
}

func TestCreateSession_ValidationErrorsAreFatal(t *testing.T) {
	api := &fakeQoD{}
	ctrl, _, _ := newTestController(t, api)

	cases := []struct {
		name string
		req  domain.CreateSessionRequest
	}{
		{"zero duration", domain.CreateSessionRequest{DeviceIP: "10.0.0.7", QosProfile: "QOS_E"}},
		{"missing profile", domain.CreateSessionRequest{DeviceIP: "10.0.0.7", DurationSeconds: 600}},
		{"no device identity", domain.CreateSessionRequest{QosProfile: "QOS_E", DurationSeconds: 600}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := ctrl.CreateSession(context.Background(), tc.req)
			assert.True(t, apperrors.IsType(err, apperrors.TypeValidation))
		})
	}

	creates, _, _ := api.counts()
	assert.Equal(t, 0, creates, "invalid requests never reach the remote API")
}

func TestCreateSession_RemoteValidationRejectionIsFatal(t *testing.T) {
	api := &fakeQoD{
		createFn: func(domain.CreateSessionRequest) (*domain.RemoteSession, error) {
			return nil, apperrors.ValidationError("unknown qos profile")
		},
	}
	ctrl, st, _ := newTestController(t, api)

	_, err := ctrl.CreateSession(context.Background(), domain.CreateSessionRequest{
		DeviceIP:        "10.0.0.7",
		QosProfile:      "BOGUS",
		DurationSeconds: 600,
	})
	assert.True(t, apperrors.IsType(err, apperrors.TypeValidation))
	assert.Empty(t, st.ListSessions(), "no fallback record for rejected requests")
}

func TestExtendSession_AccumulatesRegardlessOfRemoteOutcome(t *testing.T) {
	remoteDown := false
	var mu sync.Mutex
	api := &fakeQoD{}
	api.extendFn = func(id string, seconds int) (*domain.RemoteSession, error) {
		mu.Lock()
		defer mu.Unlock()
		if remoteDown {
			return nil, apperrors.RemoteError("qod service unreachable", errors.New("503"))
		}
		return &domain.RemoteSession{ID: id, Status: domain.StatusActive}, nil
	}
	ctrl, st, _ := newTestController(t, api)

	_, err := ctrl.CreateSession(context.Background(), domain.CreateSessionRequest{
		DeviceIP:        "10.0.0.7",
		QosProfile:      "QOS_E",
		DurationSeconds: 600,
	})
	require.NoError(t, err)

	first, err := ctrl.ExtendSession(context.Background(), "qod-1", 300)
	require.NoError(t, err)
	assert.True(t, first.RemoteApplied)
	assert.Equal(t, 900, first.Record.DurationSeconds)

	mu.Lock()
	remoteDown = true
	mu.Unlock()

	second, err := ctrl.ExtendSession(context.Background(), "qod-1", 300)
	require.NoError(t, err)
	assert.False(t, second.RemoteApplied)
	assert.Contains(t, second.Warning, "extended locally")
	assert.Equal(t, 1200, second.Record.DurationSeconds)

	stored, _ := st.GetSession("qod-1")
	assert.Equal(t, 1200, stored.DurationSeconds)
	assert.False(t, stored.ExpirationNotified, "extend resets the expiring-soon flag")
}

func TestExtendSession_LocalOnlySkipsRemote(t *testing.T) {
	api := &fakeQoD{
		createFn: func(domain.CreateSessionRequest) (*domain.RemoteSession, error) {
			return nil, apperrors.RemoteError("down", errors.New("down"))
		},
	}
	ctrl, _, _ := newTestController(t, api)

	result, err := ctrl.CreateSession(context.Background(), domain.CreateSessionRequest{
		DeviceIP:        "10.0.0.7",
		QosProfile:      "QOS_E",
		DurationSeconds: 600,
	})
	require.NoError(t, err)

	extended, err := ctrl.ExtendSession(context.Background(), result.Record.SessionID, 120)
	require.NoError(t, err)
	assert.False(t, extended.RemoteApplied)
	assert.Equal(t, 720, extended.Record.DurationSeconds)

	_, extends, _ := api.counts()
	assert.Equal(t, 0, extends, "local-only sessions never hit the remote extend endpoint")
}

func TestExtendSession_UnknownSession(t *testing.T) {
	ctrl, _, _ := newTestController(t, &fakeQoD{})
	_, err := ctrl.ExtendSession(context.Background(), "nope", 60)
	assert.True(t, apperrors.IsType(err, apperrors.TypeNotFound))
}

func TestDeleteSession_LocalFirstAndRemoteWarning(t *testing.T) {
	api := &fakeQoD{
		deleteFn: func(string) error {
			return apperrors.RemoteError("qod service unreachable", errors.New("timeout"))
		},
	}
	ctrl, st, _ := newTestController(t, api)

	_, err := ctrl.CreateSession(context.Background(), domain.CreateSessionRequest{
		DeviceIP:        "10.0.0.7",
		QosProfile:      "QOS_E",
		DurationSeconds: 600,
	})
	require.NoError(t, err)

	result, err := ctrl.DeleteSession(context.Background(), "qod-1")
	require.NoError(t, err)
	assert.True(t, result.Removed)
	assert.Contains(t, result.Warning, "deleted locally")

	_, ok := st.GetSession("qod-1")
	assert.False(t, ok, "local record is gone even when the remote delete fails")
}

func TestDeleteSession_UntrackedIsIdempotent(t *testing.T) {
	api := &fakeQoD{}
	ctrl, _, _ := newTestController(t, api)

	result, err := ctrl.DeleteSession(context.Background(), "ghost")
	require.NoError(t, err)
	assert.False(t, result.Removed)
	assert.Empty(t, result.Warning)
}

func TestDeleteSession_LocalOnlySkipsRemote(t *testing.T) {
	api := &fakeQoD{
		createFn: func(domain.CreateSessionRequest) (*domain.RemoteSession, error) {
			return nil, apperrors.RemoteError("down", errors.New("down"))
		},
	}
	ctrl, _, _ := newTestController(t, api)

	created, err := ctrl.CreateSession(context.Background(), domain.CreateSessionRequest{
		DeviceIP:        "10.0.0.7",
		QosProfile:      "QOS_E",
		DurationSeconds: 600,
	})
	require.NoError(t, err)

	result, err := ctrl.DeleteSession(context.Background(), created.Record.SessionID)
	require.NoError(t, err)
	assert.True(t, result.Removed)

	_, _, deletes := api.counts()
	assert.Equal(t, 0, deletes)
}

func TestCheckStatus_RemoteGoneMarksDeleted(t *testing.T) {
	api := &fakeQoD{
		getFn: func(string) (*domain.RemoteSession, error) {
			return nil, apperrors.NotFoundError("session not found")
		},
	}
	ctrl, st, _ := newTestController(t, api)

	_, err := ctrl.CreateSession(context.Background(), domain.CreateSessionRequest{
		DeviceIP:        "10.0.0.7",
		QosProfile:      "QOS_E",
		DurationSeconds: 600,
	})
	require.NoError(t, err)

	rec, err := ctrl.CheckStatus(context.Background(), "qod-1")
	require.NoError(t, err)
	assert.Equal(t, domain.StatusDeleted, rec.QosStatus)
	assert.False(t, rec.IsActive)

	stored, _ := st.GetSession("qod-1")
	assert.Equal(t, domain.StatusDeleted, stored.QosStatus)
}

func TestCheckStatus_RemoteErrorReturnsLastKnown(t *testing.T) {
	api := &fakeQoD{
		getFn: func(string) (*domain.RemoteSession, error) {
			return nil, apperrors.RemoteError("qod service unreachable", errors.New("503"))
		},
	}
	ctrl, _, _ := newTestController(t, api)

	_, err := ctrl.CreateSession(context.Background(), domain.CreateSessionRequest{
		DeviceIP:        "10.0.0.7",
		QosProfile:      "QOS_E",
		DurationSeconds: 600,
	})
	require.NoError(t, err)

	rec, err := ctrl.CheckStatus(context.Background(), "qod-1")
	assert.True(t, apperrors.IsType(err, apperrors.TypeRemote))
	assert.Equal(t, "qod-1", rec.SessionID, "last known record accompanies the error")
	assert.Equal(t, domain.StatusActive, rec.QosStatus)
}

func TestAutoRenew_ExtendsBeforeExpiry(t *testing.T) {
	api := &fakeQoD{}
	ctrl, st, clock := newTestController(t, api)

	_, err := ctrl.CreateSession(context.Background(), domain.CreateSessionRequest{
		DeviceIP:        "10.0.0.7",
		QosProfile:      "QOS_E",
		DurationSeconds: 600,
		AutoRenew:       true,
	})
	require.NoError(t, err)

	// Renewal timer fires at duration minus the lead time.
	clock.Advance(590 * time.Second)
	assert.Eventually(t, func() bool {
		rec, ok := st.GetSession("qod-1")
		return ok && rec.DurationSeconds == 1200
	}, time.Second, 5*time.Millisecond)

	_, extends, _ := api.counts()
	assert.Equal(t, 1, extends)
}

func TestAutoRenew_StopsAfterDelete(t *testing.T) {
	api := &fakeQoD{}
	ctrl, _, clock := newTestController(t, api)

	_, err := ctrl.CreateSession(context.Background(), domain.CreateSessionRequest{
		DeviceIP:        "10.0.0.7",
		QosProfile:      "QOS_E",
		DurationSeconds: 600,
		AutoRenew:       true,
	})
	require.NoError(t, err)

	_, err = ctrl.DeleteSession(context.Background(), "qod-1")
	require.NoError(t, err)

	clock.Advance(600 * time.Second)
	time.Sleep(20 * time.Millisecond)
	_, extends, _ := api.counts()
	assert.Equal(t, 0, extends, "deleting the session disarms its renewal timer")
}
