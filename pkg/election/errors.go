package election

import "errors"

// Configuration errors
var (
	ErrInvalidTabID          = errors.New("tab ID cannot be empty")
	ErrInvalidWindow         = errors.New("election window must be positive")
	ErrInvalidHeartbeat      = errors.New("leader heartbeat interval must be positive")
	ErrLeaderTimeoutTooSmall = errors.New("leader timeout must be greater than heartbeat interval")
)

// Lifecycle errors
var (
	ErrAlreadyStarted = errors.New("elector already started")
	ErrStopped        = errors.New("elector stopped")
)
