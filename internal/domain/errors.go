package domain

import "errors"

var (
	ErrSessionNotFound = errors.New("session not found")
	ErrTaskNotFound    = errors.New("scheduled task not found")
	ErrDeviceNotFound  = errors.New("device not found")
)
