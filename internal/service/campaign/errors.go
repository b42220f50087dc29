package campaign

import "errors"

// Sentinel errors for the campaign service layer.
var (
	ErrNotFound       = errors.New("campaign not found")
	ErrNotRunning     = errors.New("campaign is not running")
	ErrAlreadyRunning = errors.New("a running campaign already exists for this channel")
	ErrInvalidInput   = errors.New("invalid campaign settings")
)
