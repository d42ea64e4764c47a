// Package authphase maps an authentication State onto the lifecycle phase
// that route guards consume.
//
// Being logged in and being fully operational are separate questions:
// DEGRADED is a navigable phase, never a reason to log the user out.
package authphase

import "github.com/dd0wney/vega-authsync/pkg/authstate"

// Phase is the user-facing lifecycle phase of a session
type Phase string

const (
	Unauthenticated Phase = "UNAUTHENTICATED"
	Initializing    Phase = "INITIALIZING"
	Degraded        Phase = "DEGRADED"
	Ready           Phase = "READY"
)

// All lists every phase in lifecycle order
var All = []Phase{Unauthenticated, Initializing, Degraded, Ready}

// Derive computes the phase of state. The status field is the only
// authenticated signal consulted.
func Derive(state authstate.State) Phase {
	switch {
	case !state.Authenticated():
		return Unauthenticated
	case !state.PrimaryReady:
		return Initializing
	case !state.FullyReady:
		return Degraded
	default:
		return Ready
	}
}

// GrantsAccess reports whether protected content may be shown in phase p
func (p Phase) GrantsAccess() bool {
	return p == Initializing || p == Degraded || p == Ready
}
