package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestParseQosStatus(t *testing.T) {
	cases := []struct {
		raw  string
		want QosStatus
	}{
		{"ACTIVE", StatusActive},
		{"available", StatusAvailable},
		{" Requested ", StatusRequested},
		{"EXPIRED", StatusExpired},
		{"DELETED", StatusDeleted},
		{"UNAVAILABLE", StatusUnavailable},
		{"SOMETHING_NEW", StatusUnavailable},
		{"", StatusUnavailable},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, ParseQosStatus(tc.raw), "raw %q", tc.raw)
	}
}

func TestQosStatus_Active(t *testing.T) {
	assert.True(t, StatusActive.Active())
	assert.True(t, StatusAvailable.Active())
	assert.True(t, StatusRequested.Active())
	assert.False(t, StatusUnavailable.Active())
	assert.False(t, StatusExpired.Active())
	assert.False(t, StatusDeleted.Active())
}

func TestSessionRecord_SetStatusAndExpiresAt(t *testing.T) {
	created := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	rec := SessionRecord{CreatedAt: created, DurationSeconds: 600}

	rec.SetStatus(StatusActive)
	assert.True(t, rec.IsActive)

	rec.SetStatus(StatusDeleted)
	assert.False(t, rec.IsActive)

	assert.Equal(t, created.Add(10*time.Minute), rec.ExpiresAt())
}

func TestTaskID(t *testing.T) {
	start := time.Unix(1760000000, 0)
	end := time.Unix(1760003600, 0)
	assert.Equal(t, "field-team-1760000000-1760003600", TaskID("field-team", start, end))
}
