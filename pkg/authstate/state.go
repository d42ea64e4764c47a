package authstate

// Status is the lifecycle status of a tab's authentication session
type Status string

const (
	StatusLoading         Status = "loading"
	StatusAuthenticated   Status = "authenticated"
	StatusUnauthenticated Status = "unauthenticated"
	StatusExpired         Status = "expired"
	StatusError           Status = "error"
)

// PrimaryAPI is the token whose readiness gates INITIALIZING vs DEGRADED.
const PrimaryAPI = "PRIMARY"

// DefaultRequiredTokens is the token count a fresh tab assumes until the
// server reports otherwise.
const DefaultRequiredTokens = 6

// User is the identity block of a session snapshot
type User struct {
	Name  string `json:"name,omitempty"`
	Email string `json:"email,omitempty"`
	Role  string `json:"role,omitempty"`
}

// State is the canonical authentication state of one tab. It is a value:
// every transition produces a new State and leaves the old one untouched.
type State struct {
	Status           Status   `json:"status"`
	Label            string   `json:"state,omitempty"`
	PrimaryReady     bool     `json:"primaryReady"`
	FullyReady       bool     `json:"fullyReady"`
	GeneratedTokens  int      `json:"generatedTokens"`
	RequiredTokens   int      `json:"requiredTokens"`
	ValidTokens      TokenSet `json:"validTokens"`
	MissingAPIs      TokenSet `json:"missingApis"`
	CooldownActive   bool     `json:"cooldownActive"`
	RemainingSeconds int64    `json:"remainingSeconds"`
	ExpiresAt        int64    `json:"expiresAt,omitempty"`
	User             *User    `json:"user,omitempty"`

	// Tab-local annotations, never replicated.
	IsLeader  bool `json:"isLeader"`
	Connected bool `json:"connected"`

	// LastSeq is the seq of the last applied event: the reducer's fencing token.
	LastSeq uint64 `json:"lastSeq"`
}

// New returns the state a tab starts with before bootstrap
func New() State {
	return State{
		Status:         StatusLoading,
		RequiredTokens: DefaultRequiredTokens,
	}
}

// Authenticated reports whether the status grants a logged-in session
func (s State) Authenticated() bool {
	return s.Status == StatusAuthenticated
}

// WithLeadership returns s annotated with this tab's leadership belief
func (s State) WithLeadership(isLeader bool) State {
	s.IsLeader = isLeader
	return s
}

// WithConnection returns s annotated with the live connection status
func (s State) WithConnection(connected bool) State {
	s.Connected = connected
	return s
}

// Equal reports whether two states are identical field by field
func (s State) Equal(o State) bool {
	return s.Status == o.Status &&
		s.Label == o.Label &&
		s.PrimaryReady == o.PrimaryReady &&
		s.FullyReady == o.FullyReady &&
		s.GeneratedTokens == o.GeneratedTokens &&
		s.RequiredTokens == o.RequiredTokens &&
		s.ValidTokens.Equal(o.ValidTokens) &&
		s.MissingAPIs.Equal(o.MissingAPIs) &&
		s.CooldownActive == o.CooldownActive &&
		s.RemainingSeconds == o.RemainingSeconds &&
		s.ExpiresAt == o.ExpiresAt &&
		userEqual(s.User, o.User) &&
		s.IsLeader == o.IsLeader &&
		s.Connected == o.Connected &&
		s.LastSeq == o.LastSeq
}

func userEqual(a, b *User) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}
