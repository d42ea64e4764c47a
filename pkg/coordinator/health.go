package coordinator

import (
	"github.com/dd0wney/vega-authsync/pkg/authphase"
	"github.com/dd0wney/vega-authsync/pkg/health"
)

// RegisterHealthChecks registers the tab's checks on hc. The tab is live
// while its process is; it is ready once the election has settled, the
// session is known and the connection matches its role.
func (t *Tab) RegisterHealthChecks(hc *health.HealthChecker) {
	election := health.ElectionCheck(func() (string, string) {
		return t.elector.State().String(), t.elector.LeaderID()
	})
	conn := health.TransportCheck(func() (bool, string) {
		return t.elector.AmLeader(), t.client.State().String()
	})
	session := health.SessionCheck(func() (string, string, uint64) {
		state := t.store.Snapshot()
		return string(authphase.Derive(state)), string(state.Status), state.LastSeq
	})

	hc.RegisterCheck("election", election)
	hc.RegisterCheck("transport", conn)
	hc.RegisterCheck("session", session)

	hc.RegisterReadinessCheck("election", election)
	hc.RegisterReadinessCheck("transport", conn)
	hc.RegisterReadinessCheck("session", session)

	hc.RegisterLivenessCheck("memory", health.MemoryCheck(health.RuntimeMemory))
}
