package authstate

import (
	"encoding/json"
	"fmt"
	"time"
)

// EventType identifies the payload variant of an Event
type EventType string

const (
	TypeTokenReady         EventType = "TOKEN_READY"
	TypeTokenFailed        EventType = "TOKEN_FAILED"
	TypeTokenProgress      EventType = "TOKEN_PROGRESS"
	TypeSessionInvalidated EventType = "SESSION_INVALIDATED"
	TypeHeartbeat          EventType = "HEARTBEAT"
)

// ReasonExpired is the invalidation reason that maps to StatusExpired.
const ReasonExpired = "EXPIRED"

// Event is an immutable, server-issued authentication event
type Event struct {
	Seq     uint64
	TS      time.Time
	Payload Payload
}

// Type returns the payload variant of the event
func (e Event) Type() EventType {
	if e.Payload == nil {
		return ""
	}
	return e.Payload.Type()
}

// Payload is the closed set of event payloads. Only the types in this
// package implement it.
type Payload interface {
	Type() EventType
	sealed()
}

// TokenReady reports that the token for one API is valid
type TokenReady struct {
	API       string `json:"api"`
	ExpiresAt *int64 `json:"expiresAt,omitempty"`
}

// TokenFailed reports that the latest refresh for one API failed
type TokenFailed struct {
	API    string `json:"api"`
	Reason string `json:"reason,omitempty"`
}

// TokenProgress reports overall token generation progress
type TokenProgress struct {
	Ready int  `json:"ready"`
	Total *int `json:"total,omitempty"`
}

// SessionInvalidated ends the session; Reason is EXPIRED or a backend state
type SessionInvalidated struct {
	Reason string `json:"reason"`
}

// Heartbeat only advances the sequence number
type Heartbeat struct {
	Uptime int64 `json:"uptime,omitempty"`
}

func (TokenReady) Type() EventType         { return TypeTokenReady }
func (TokenFailed) Type() EventType        { return TypeTokenFailed }
func (TokenProgress) Type() EventType      { return TypeTokenProgress }
func (SessionInvalidated) Type() EventType { return TypeSessionInvalidated }
func (Heartbeat) Type() EventType          { return TypeHeartbeat }

func (TokenReady) sealed()         {}
func (TokenFailed) sealed()        {}
func (TokenProgress) sealed()      {}
func (SessionInvalidated) sealed() {}
func (Heartbeat) sealed()          {}

// wireEvent is the JSON frame shape shared by the server feed and the
// replication channel.
type wireEvent struct {
	Seq     uint64          `json:"seq"`
	TS      time.Time       `json:"ts"`
	Type    EventType       `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// DecodeEvent parses one wire frame into an Event
func DecodeEvent(data []byte) (Event, error) {
	var w wireEvent
	if err := json.Unmarshal(data, &w); err != nil {
		return Event{}, fmt.Errorf("%w: %v", ErrMalformedEvent, err)
	}
	if w.Seq == 0 {
		return Event{}, fmt.Errorf("%w: %w", ErrMalformedEvent, ErrMissingSeq)
	}

	payload, err := decodePayload(w.Type, w.Payload)
	if err != nil {
		return Event{}, fmt.Errorf("%w: seq %d: %w", ErrMalformedEvent, w.Seq, err)
	}

	return Event{Seq: w.Seq, TS: w.TS, Payload: payload}, nil
}

func decodePayload(t EventType, raw json.RawMessage) (Payload, error) {
	if len(raw) == 0 || string(raw) == "null" {
		raw = json.RawMessage("{}")
	}

	switch t {
	case TypeTokenReady:
		var p TokenReady
		if err := json.Unmarshal(raw, &p); err != nil {
			return nil, err
		}
		if p.API == "" {
			return nil, ErrMissingAPI
		}
		return p, nil
	case TypeTokenFailed:
		var p TokenFailed
		if err := json.Unmarshal(raw, &p); err != nil {
			return nil, err
		}
		if p.API == "" {
			return nil, ErrMissingAPI
		}
		return p, nil
	case TypeTokenProgress:
		var p TokenProgress
		if err := json.Unmarshal(raw, &p); err != nil {
			return nil, err
		}
		return p, nil
	case TypeSessionInvalidated:
		var p SessionInvalidated
		if err := json.Unmarshal(raw, &p); err != nil {
			return nil, err
		}
		return p, nil
	case TypeHeartbeat:
		var p Heartbeat
		if err := json.Unmarshal(raw, &p); err != nil {
			return nil, err
		}
		return p, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownEventType, t)
	}
}

// EncodeEvent renders an Event in the wire form accepted by DecodeEvent
func EncodeEvent(e Event) ([]byte, error) {
	if e.Payload == nil {
		return nil, fmt.Errorf("%w: nil payload", ErrMalformedEvent)
	}
	raw, err := json.Marshal(e.Payload)
	if err != nil {
		return nil, err
	}
	return json.Marshal(wireEvent{Seq: e.Seq, TS: e.TS, Type: e.Payload.Type(), Payload: raw})
}

// MarshalJSON lets Events travel inside replication channel messages
func (e Event) MarshalJSON() ([]byte, error) {
	return EncodeEvent(e)
}

// UnmarshalJSON is the inverse of MarshalJSON
func (e *Event) UnmarshalJSON(data []byte) error {
	decoded, err := DecodeEvent(data)
	if err != nil {
		return err
	}
	*e = decoded
	return nil
}
