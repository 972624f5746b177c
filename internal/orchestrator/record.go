package orchestrator

import (
	"time"

	"rig/internal/state"
)

// Record stores every outcome of the run in st and returns the entries whose status changed.
func (r Result) Record(st *state.State, now time.Time) (changed []string) {
	for _, o := range r.Outcomes {
		e := state.EntryState{Status: o.Status.String(), Reason: o.Reason, UpdatedAt: o.Finished}
		if e.UpdatedAt.IsZero() {
			e.UpdatedAt = now
		}
		if o.Err != nil {
			e.Error = o.Err.Error()
		}
		if st.Record(o.Entry, e) {
			changed = append(changed, o.Entry)
		}
	}
	st.LastRun = now
	return changed
}
