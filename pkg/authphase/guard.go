package authphase

import "github.com/dd0wney/vega-authsync/pkg/authstate"

// Action is what a route guard should do with a navigation
type Action string

const (
	// Allow lets the navigation through.
	Allow Action = "ALLOW"
	// RedirectLogin sends the user to the login surface.
	RedirectLogin Action = "REDIRECT_LOGIN"
	// Wait holds the navigation until the first bootstrap resolves.
	Wait Action = "WAIT"
)

// Decision is the answer to a route guard query
type Decision struct {
	Phase  Phase           `json:"phase"`
	Action Action          `json:"action"`
	State  authstate.State `json:"state"`
}

// Guard decides a navigation from state. Only a terminal or absent session
// redirects; a tab that has not finished bootstrapping waits.
func Guard(state authstate.State) Decision {
	phase := Derive(state)

	action := RedirectLogin
	switch {
	case phase.GrantsAccess():
		action = Allow
	case state.Status == authstate.StatusLoading:
		action = Wait
	}

	return Decision{Phase: phase, Action: action, State: state}
}
