package authstate

import "errors"

// Decoding errors
var (
	ErrMalformedEvent   = errors.New("malformed auth event")
	ErrUnknownEventType = errors.New("unknown auth event type")
	ErrMissingSeq       = errors.New("auth event has no sequence number")
	ErrMissingAPI       = errors.New("auth event payload has no api")
)
