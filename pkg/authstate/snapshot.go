package authstate

import "strings"

// Snapshot is the session endpoint's point-in-time view of the session
type Snapshot struct {
	Status           string   `json:"status"`
	State            string   `json:"state,omitempty"`
	Authenticated    *bool    `json:"authenticated,omitempty"`
	PrimaryReady     bool     `json:"primaryReady"`
	FullyReady       bool     `json:"fullyReady"`
	GeneratedTokens  int      `json:"generatedTokens" validate:"gte=0"`
	RequiredTokens   int      `json:"requiredTokens" validate:"gte=0"`
	ValidTokens      []string `json:"validTokens" validate:"dive,required"`
	MissingAPIs      []string `json:"missingApis" validate:"dive,required"`
	ConfiguredAPIs   []string `json:"configuredApis,omitempty"`
	CooldownActive   bool     `json:"cooldownActive"`
	RemainingSeconds int64    `json:"remainingSeconds" validate:"gte=0"`
	ExpiresAt        int64    `json:"expiresAt,omitempty"`
	User             *User    `json:"user,omitempty"`
}

// snapshotSuccess is the identity-layer "logged in" marker of the session
// endpoint.
const snapshotSuccess = "SUCCESS"

// labelStatus maps backend state-machine labels onto a Status. Labels not
// listed here carry no authentication meaning (for example INITIALIZING,
// reported while the server is still syncing).
var labelStatus = map[string]Status{
	"AUTH_CONFIRMED":    StatusAuthenticated,
	"PRIMARY_VALIDATED": StatusAuthenticated,
	"PARTIAL_AUTH":      StatusAuthenticated,
	"GENERATING_TOKENS": StatusAuthenticated,
	"AUTHENTICATED":     StatusAuthenticated,
	"UNAUTHENTICATED":   StatusUnauthenticated,
	"LOGGED_OUT":        StatusUnauthenticated,
	"EXPIRED":           StatusExpired,
	"ERROR":             StatusError,
}

// StatusFromLabel maps a backend state label onto a Status
func StatusFromLabel(label string) (Status, bool) {
	status, ok := labelStatus[strings.ToUpper(strings.TrimSpace(label))]
	return status, ok
}

// ResolveStatus picks the authenticated signal of a snapshot. The state
// label wins when it is one we know; the identity-layer status field comes
// next; the legacy authenticated boolean is only a last resort.
func (s Snapshot) ResolveStatus() Status {
	if status, ok := StatusFromLabel(s.State); ok {
		return status
	}
	if s.Status != "" {
		if strings.EqualFold(s.Status, snapshotSuccess) {
			return StatusAuthenticated
		}
		return StatusUnauthenticated
	}
	if s.Authenticated != nil && *s.Authenticated {
		return StatusAuthenticated
	}
	return StatusUnauthenticated
}

// FromSnapshot maps a session snapshot onto a State. currentSeq is the
// tab's lastSeq when the request was issued; the result never has a lower
// one.
func FromSnapshot(snap Snapshot, currentSeq uint64) State {
	required := snap.RequiredTokens
	if required <= 0 {
		required = len(snap.ConfiguredAPIs)
	}
	if required <= 0 {
		required = DefaultRequiredTokens
	}

	valid := NewTokenSet(snap.ValidTokens...)

	state := State{
		Status:           snap.ResolveStatus(),
		Label:            snap.State,
		PrimaryReady:     snap.PrimaryReady || valid.Has(PrimaryAPI),
		FullyReady:       snap.FullyReady || meetsRequirement(valid.Len(), required),
		GeneratedTokens:  snap.GeneratedTokens,
		RequiredTokens:   required,
		ValidTokens:      valid,
		MissingAPIs:      NewTokenSet(snap.MissingAPIs...),
		CooldownActive:   snap.CooldownActive,
		RemainingSeconds: snap.RemainingSeconds,
		ExpiresAt:        snap.ExpiresAt,
		User:             snap.User,
		LastSeq:          currentSeq,
	}
	return state
}

// Unauthenticated is the state a failed bootstrap resolves to
func Unauthenticated(currentSeq uint64) State {
	state := New()
	state.Status = StatusUnauthenticated
	state.LastSeq = currentSeq
	return state
}
