package domain

import (
	"fmt"
	"strings"
	"time"
)

// QosStatus is the closed set of states a boost session moves through.
type QosStatus string

const (
	StatusRequested   QosStatus = "REQUESTED"
	StatusAvailable   QosStatus = "AVAILABLE"
	StatusActive      QosStatus = "ACTIVE"
	StatusUnavailable QosStatus = "UNAVAILABLE"
	StatusExpired     QosStatus = "EXPIRED"
	StatusDeleted     QosStatus = "DELETED"
)

// ParseQosStatus maps a remote status string onto the closed enum. Unknown
// strings collapse to UNAVAILABLE so a new remote state never counts as active.
func ParseQosStatus(s string) QosStatus {
	switch QosStatus(strings.ToUpper(strings.TrimSpace(s))) {
	case StatusRequested:
		return StatusRequested
	case StatusAvailable:
		return StatusAvailable
	case StatusActive:
		return StatusActive
	case StatusExpired:
		return StatusExpired
	case StatusDeleted:
		return StatusDeleted
	default:
		return StatusUnavailable
	}
}

// Active reports whether the status counts as a live session.
func (s QosStatus) Active() bool {
	return s == StatusActive || s == StatusAvailable || s == StatusRequested
}

// SessionRecord is the local mirror of one boost session. IsActive is derived
// from QosStatus; SetStatus keeps the pair consistent.
type SessionRecord struct {
	SessionID          string    `json:"sessionId"`
	DeviceRef          string    `json:"deviceRef"`
	QosStatus          QosStatus `json:"qosStatus"`
	IsActive           bool      `json:"isActive"`
	CreatedAt          time.Time `json:"createdAt"`
	DurationSeconds    int       `json:"durationSeconds"`
	ExpirationNotified bool      `json:"expirationNotified"`

	// LocalOnly marks sessions synthesized after a remote failure. They are
	// non-authoritative and excluded from remote reconciliation.
	LocalOnly bool `json:"localOnly,omitempty"`
}

// SetStatus updates QosStatus and the derived IsActive flag together.
func (r *SessionRecord) SetStatus(s QosStatus) {
	r.QosStatus = s
	r.IsActive = s.Active()
}

// ExpiresAt returns the clock-local expiry instant.
func (r *SessionRecord) ExpiresAt() time.Time {
	return r.CreatedAt.Add(time.Duration(r.DurationSeconds) * time.Second)
}

// BoostParameters is the per-task remote call configuration a scheduled boost
// window carries for every session it creates.
type BoostParameters struct {
	AppServerIP string `json:"appServerIp"`
	QosProfile  string `json:"qosProfile"`
	WebhookURL  string `json:"webhookUrl,omitempty"`
}

// ScheduledTask is a persisted future boost window for a group of devices.
type ScheduledTask struct {
	TaskID          string          `json:"taskId"`
	GroupID         string          `json:"groupId"`
	DeviceRefs      []string        `json:"deviceRefs"`
	StartTime       time.Time       `json:"startTime"`
	EndTime         time.Time       `json:"endTime"`
	DurationSeconds int             `json:"durationSeconds"`
	Boost           BoostParameters `json:"boostParameters"`
	Started         bool            `json:"started"`
	SessionIDs      []string        `json:"sessionIds"`
}

// TaskID derives the stable identifier for a boost window.
func TaskID(groupID string, start, end time.Time) string {
	return fmt.Sprintf("%s-%d-%d", groupID, start.Unix(), end.Unix())
}

// TokenRecord is the cached OAuth2 access token. It is owned by the token
// cache and replaced wholesale on refresh, never partially mutated.
type TokenRecord struct {
	AccessToken string
	TokenType   string
	ExpiresAt   time.Time
}

// Device is a collaborator record from the device registry.
type Device struct {
	ID        string `json:"id"`
	Name      string `json:"name,omitempty"`
	IPAddress string `json:"ipAddress"`
	MSISDN    string `json:"msisdn,omitempty"`
	GroupID   string `json:"groupId,omitempty"`
}
