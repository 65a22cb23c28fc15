package domain

import "context"

// CreateSessionRequest carries everything the controller needs for one remote
// session create call.
type CreateSessionRequest struct {
	DeviceRef       string
	DeviceIP        string
	MSISDN          string
	AppServerIP     string
	QosProfile      string
	DevicePorts     []int
	AppServerPorts  []int
	WebhookURL      string
	DurationSeconds int
	AutoRenew       bool
}

// RemoteSession is the QoD service's view of a session.
type RemoteSession struct {
	ID              string
	Status          QosStatus
	DurationSeconds int
}

// QoDAPI is the remote Quality-on-Demand service surface the controller calls.
type QoDAPI interface {
	CreateSession(ctx context.Context, req CreateSessionRequest) (*RemoteSession, error)
	GetSession(ctx context.Context, sessionID string) (*RemoteSession, error)
	ExtendSession(ctx context.Context, sessionID string, additionalSeconds int) (*RemoteSession, error)
	DeleteSession(ctx context.Context, sessionID string) error
}

// TokenSource yields a valid bearer token, fetching or refreshing as needed.
type TokenSource interface {
	Token(ctx context.Context) (string, error)
}

// SessionStore is the serialized local mirror of session records. All reads
// and writes go through it; nothing touches the persisted medium directly.
type SessionStore interface {
	PutSession(rec SessionRecord) error
	GetSession(sessionID string) (SessionRecord, bool)
	ListSessions() []SessionRecord
	UpdateSession(sessionID string, fn func(*SessionRecord)) (SessionRecord, error)
	RemoveSession(sessionID string) (bool, error)
}

// ScheduleStore is the serialized local mirror of scheduled boost windows.
type ScheduleStore interface {
	PutTask(task ScheduledTask) error
	GetTask(taskID string) (ScheduledTask, bool)
	ListTasks() []ScheduledTask
	UpdateTask(taskID string, fn func(*ScheduledTask)) (ScheduledTask, error)
	RemoveTask(taskID string) (bool, error)
}

// DeviceDirectory resolves device references coming from the CRUD layer.
type DeviceDirectory interface {
	Device(id string) (Device, bool)
}
