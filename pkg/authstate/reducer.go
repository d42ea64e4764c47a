package authstate

// Apply folds one event into state and reports whether it was applied.
//
// Events with seq <= state.LastSeq are returned unapplied. Apply is pure:
// the input state is never modified.
func Apply(state State, event Event) (State, bool) {
	if event.Seq <= state.LastSeq {
		return state, false
	}

	next := state
	next.LastSeq = event.Seq

	switch p := event.Payload.(type) {
	case TokenReady:
		next.ValidTokens = state.ValidTokens.Add(p.API)
		if p.API == PrimaryAPI {
			next.PrimaryReady = true
		}
		next.MissingAPIs = state.MissingAPIs.Remove(p.API)
		next.GeneratedTokens = next.ValidTokens.Len()
		next.FullyReady = state.FullyReady || meetsRequirement(next.ValidTokens.Len(), next.RequiredTokens)
		if p.ExpiresAt != nil {
			next.ExpiresAt = *p.ExpiresAt
		}
		next.Status = StatusAuthenticated

	case TokenFailed:
		// A token may be both previously valid and latest-refresh-failed.
		next.MissingAPIs = state.MissingAPIs.Add(p.API)

	case TokenProgress:
		next.GeneratedTokens = p.Ready
		if p.Total != nil && *p.Total > 0 {
			next.RequiredTokens = *p.Total
		}
		next.FullyReady = state.FullyReady || meetsRequirement(next.ValidTokens.Len(), next.RequiredTokens)

	case SessionInvalidated:
		if p.Reason == ReasonExpired {
			next.Status = StatusExpired
		} else {
			next.Status = StatusUnauthenticated
		}
		next.PrimaryReady = false
		next.FullyReady = false
		next.ValidTokens = TokenSet{}
		next.GeneratedTokens = 0

	case Heartbeat:
	}

	return next, true
}

// meetsRequirement is the validTokens >= requiredTokens rule. A required
// count of zero means the server never reported one.
func meetsRequirement(valid, required int) bool {
	return required > 0 && valid >= required
}
