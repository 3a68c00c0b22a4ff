package reconcile

import (
	"time"

	"github.com/joescharf/pomo/internal/remote"
)

// ModeKind names the timer that is authoritative for snapshots.
type ModeKind string

const (
	ModeRemote ModeKind = "remote"
	ModeLocal  ModeKind = "local"
)

// Mode is the engine's backing-timer selection. Since is set only for local
// mode and records when the switch happened.
type Mode struct {
	Kind  ModeKind
	Since time.Time
}

// RemoteMode returns the remote mode.
func RemoteMode() Mode { return Mode{Kind: ModeRemote} }

// LocalMode returns local mode entered at since.
func LocalMode(since time.Time) Mode { return Mode{Kind: ModeLocal, Since: since} }

// IsLocal reports whether the fallback timer is authoritative.
func (m Mode) IsLocal() bool { return m.Kind == ModeLocal }

func (m Mode) String() string {
	if m.IsLocal() {
		return "local since " + m.Since.Format(time.Kitchen)
	}
	return "remote"
}

// Command is an operation routed through the engine.
type Command string

const (
	CommandStatus   Command = "status"
	CommandStart    Command = "start"
	CommandPause    Command = "pause"
	CommandStop     Command = "stop"
	CommandComplete Command = "complete"
)

// Failure classifies a remote error.
type Failure string

const (
	FailureTransport Failure = "transport"
	FailureStatus    Failure = "status"
)

// Action is what the engine does after a remote failure.
type Action string

const (
	// ActionSwitch moves to local mode and answers from the local timer.
	ActionSwitch Action = "switch"
	// ActionSwitchAndRun moves to local mode and replays the command locally.
	ActionSwitchAndRun Action = "switch_and_run"
	// ActionReport surfaces a message and leaves the mode alone.
	ActionReport Action = "report"
)

// fallbackPolicy decides how each command reacts to each kind of failure.
var fallbackPolicy = map[Command]map[Failure]Action{
	CommandStatus:   {FailureTransport: ActionSwitch, FailureStatus: ActionSwitch},
	CommandStart:    {FailureTransport: ActionSwitchAndRun, FailureStatus: ActionReport},
	CommandPause:    {FailureTransport: ActionReport, FailureStatus: ActionReport},
	CommandStop:     {FailureTransport: ActionReport, FailureStatus: ActionReport},
	CommandComplete: {FailureTransport: ActionReport, FailureStatus: ActionReport},
}

// PolicyFor returns the action for cmd failing with f. Unknown pairs report.
func PolicyFor(cmd Command, f Failure) Action {
	if a, ok := fallbackPolicy[cmd][f]; ok {
		return a
	}
	return ActionReport
}

// classify maps a remote error to a Failure. Anything that is not a clean
// non-2xx answer counts as transport.
func classify(err error) Failure {
	if _, ok := remote.IsStatus(err); ok {
		return FailureStatus
	}
	return FailureTransport
}
