package reconcile

import (
	"time"

	"github.com/joescharf/pomo/internal/models"
	"github.com/joescharf/pomo/internal/timer"
)

// State is the persisted form of an Engine, used to carry the mode and the
// local countdown between process runs.
type State struct {
	Mode           ModeKind         `yaml:"mode"`
	Since          time.Time        `yaml:"since,omitempty"`
	LastProbe      time.Time        `yaml:"last_probe,omitempty"`
	Local          timer.State      `yaml:"local"`
	Last           *models.Snapshot `yaml:"last_remote,omitempty"`
	LastAt         time.Time        `yaml:"last_remote_at,omitempty"`
	CompletedFloor int              `yaml:"completed_floor,omitempty"`
}

// Export captures the engine state.
func (e *Engine) Export() State {
	e.mu.Lock()
	defer e.mu.Unlock()
	st := State{
		Mode:           e.mode.Kind,
		Since:          e.mode.Since,
		LastProbe:      e.lastProbe,
		Local:          e.local.Export(),
		LastAt:         e.lastAt,
		CompletedFloor: e.completedFloor,
	}
	if e.last != nil {
		last := *e.last
		st.Last = &last
	}
	return st
}

// Restore loads a previously exported state. An engine without a server
// stays in local mode.
func (e *Engine) Restore(st State) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.local.Restore(st.Local)
	e.lastProbe = st.LastProbe
	e.lastAt = st.LastAt
	e.completedFloor = max(st.CompletedFloor, 0)
	e.last = nil
	if st.Last != nil {
		last := *st.Last
		e.last = &last
	}
	switch {
	case st.Mode == ModeLocal:
		since := st.Since
		if since.IsZero() {
			since = e.clock.Now()
		}
		e.mode = LocalMode(since)
	case e.remote != nil:
		e.mode = RemoteMode()
	}
}
