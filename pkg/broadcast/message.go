// Package broadcast is the replication channel between tabs of one origin.
//
// Every tab holds a Port on a channel name. A message published on a Port
// reaches every other Port on that name, never the publisher itself, and
// messages from one publisher arrive in publish order. Nothing is ordered
// across publishers: consumers rely on event sequence numbers for that.
package broadcast

import (
	"errors"
	"fmt"

	"github.com/dd0wney/vega-authsync/pkg/authstate"
)

// DefaultChannel is the channel name tabs share unless configured otherwise
const DefaultChannel = "vega-auth-supervisor"

// Kind identifies the message variant
type Kind string

const (
	KindElection  Kind = "ELECTION"
	KindLeader    Kind = "LEADER"
	KindAuthEvent Kind = "AUTH_EVENT"
)

// Message is one replication channel message. Event is set only for
// KindAuthEvent.
type Message struct {
	Kind  Kind             `json:"type"`
	From  string           `json:"from"`
	Event *authstate.Event `json:"payload,omitempty"`
}

// Port is one tab's attachment to a channel
type Port interface {
	// Publish delivers msg to every other port on the channel.
	Publish(msg Message) error
	// Messages yields messages from other ports. It is closed by Close.
	Messages() <-chan Message
	Close() error
}

var (
	ErrClosed             = errors.New("broadcast port closed")
	ErrMalformedMessage   = errors.New("malformed broadcast message")
	ErrUnknownCompression = errors.New("unknown frame compression")
)

// Election returns an ELECTION message from tab
func Election(from string) Message {
	return Message{Kind: KindElection, From: from}
}

// Leader returns a LEADER message from tab
func Leader(from string) Message {
	return Message{Kind: KindLeader, From: from}
}

// AuthEvent returns an AUTH_EVENT message carrying event
func AuthEvent(from string, event authstate.Event) Message {
	return Message{Kind: KindAuthEvent, From: from, Event: &event}
}

// Validate checks that msg is a well-formed variant
func (m Message) Validate() error {
	switch m.Kind {
	case KindElection, KindLeader:
		return nil
	case KindAuthEvent:
		if m.Event == nil {
			return fmt.Errorf("%w: %s without event", ErrMalformedMessage, m.Kind)
		}
		return nil
	default:
		return fmt.Errorf("%w: kind %q", ErrMalformedMessage, m.Kind)
	}
}
