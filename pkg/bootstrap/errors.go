package bootstrap

import "errors"

// Configuration errors
var (
	ErrInvalidServerURL      = errors.New("server URL must be an absolute http or https URL")
	ErrInvalidSessionPath    = errors.New("session path cannot be empty")
	ErrInvalidRequestTimeout = errors.New("request timeout must be positive")
)

// Fetch errors
var (
	ErrSessionStatus   = errors.New("session endpoint returned non-success status")
	ErrInvalidSnapshot = errors.New("session endpoint returned an invalid snapshot")
)
