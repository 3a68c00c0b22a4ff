package reconcile

import (
	"time"

	"github.com/joescharf/pomo/internal/models"
)

// EventKind identifies an engine notification.
type EventKind string

const (
	EventModeChanged      EventKind = "mode_changed"
	EventSessionCompleted EventKind = "session_completed"
	EventMessage          EventKind = "message"
)

// Event is delivered to subscribers. Delivery is best effort: a full
// subscriber channel drops the event.
type Event struct {
	Kind        EventKind
	At          time.Time
	Mode        Mode
	SessionType models.SessionType
	Source      models.Source
	Message     string
}

// Subscribe returns a channel that receives engine events.
func (e *Engine) Subscribe(buffer int) <-chan Event {
	if buffer <= 0 {
		buffer = 1
	}
	ch := make(chan Event, buffer)
	e.subsMu.Lock()
	e.subs = append(e.subs, ch)
	e.subsMu.Unlock()
	return ch
}

// Unsubscribe stops delivery to ch and closes it.
func (e *Engine) Unsubscribe(ch <-chan Event) {
	e.subsMu.Lock()
	defer e.subsMu.Unlock()
	for i, sub := range e.subs {
		if sub == ch {
			e.subs = append(e.subs[:i], e.subs[i+1:]...)
			close(sub)
			return
		}
	}
}

func (e *Engine) emit(event Event) {
	if event.At.IsZero() {
		event.At = e.clock.Now()
	}
	e.subsMu.Lock()
	defer e.subsMu.Unlock()
	for _, ch := range e.subs {
		select {
		case ch <- event:
		default:
		}
	}
}
