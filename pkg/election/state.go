package election

import "github.com/dd0wney/vega-authsync/pkg/broadcast"

// State represents the current role of this tab in the election process
type State int

const (
	// StateFollower defers to another tab's leadership
	StateFollower State = iota
	// StateCandidate has broadcast ELECTION and is waiting out the window
	StateCandidate
	// StateLeader owns the live connection
	StateLeader
)

// String returns the string representation of a State
func (s State) String() string {
	switch s {
	case StateFollower:
		return "follower"
	case StateCandidate:
		return "candidate"
	case StateLeader:
		return "leader"
	default:
		return "unknown"
	}
}

// Publisher sends election messages to the other tabs
type Publisher interface {
	Publish(msg broadcast.Message) error
}
