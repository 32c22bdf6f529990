// Package source adapts hardware sample streams to the acquisition callback.
//
// A source calls the callback from its own goroutine for every reading and
// reports attach, detach and error notifications on a side channel. Faults
// never stop the caller; the source simply stops delivering samples.
package source

import (
	"context"
	"time"
)

const eventBuffer = 16

// Callback receives one reading. It must not block.
type Callback func(timestamp, raw float64)

// EventKind classifies hardware notifications.
type EventKind string

// Hardware notification kinds.
const (
	EventAttached EventKind = "attached"
	EventDetached EventKind = "detached"
	EventError    EventKind = "error"
)

// Event is an advisory hardware notification.
type Event struct {
	Kind   EventKind
	Source string
	Err    error
	At     time.Time
}

// Source is a callback-driven sample producer.
type Source interface {
	// Start begins delivering readings to cb until ctx is done or Close is called.
	Start(ctx context.Context, cb Callback) error

	// Events returns the hardware notification channel.
	Events() <-chan Event

	// SetInterval requests a driver sample interval in milliseconds.
	SetInterval(ms int) error

	// Close releases the hardware.
	Close() error
}

// notifier is the lossy event side channel shared by the sources.
type notifier struct {
	name   string
	events chan Event
}

func newNotifier(name string) notifier {
	return notifier{name: name, events: make(chan Event, eventBuffer)}
}

func (n notifier) Events() <-chan Event { return n.events }

func (n notifier) emit(kind EventKind, err error) {
	select {
	case n.events <- Event{Kind: kind, Source: n.name, Err: err, At: time.Now()}:
	default:
	}
}

// Disabled is a source that never produces readings.
type Disabled struct {
	notifier
}

// NewDisabled returns a source for running without hardware.
func NewDisabled() *Disabled {
	return &Disabled{notifier: newNotifier("none")}
}

// Start does nothing.
func (d *Disabled) Start(context.Context, Callback) error { return nil }

// SetInterval does nothing.
func (d *Disabled) SetInterval(int) error { return nil }

// Close does nothing.
func (d *Disabled) Close() error { return nil }
