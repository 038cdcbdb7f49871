// SPDX-License-Identifier: MIT
/*
Package device provides the EEG sources the engine subscribes to. A source
delivers RawReading bursts and connectivity changes on one ordered event
stream until the subscription is cancelled or the source runs dry.

Sources in this package:
- SyntheticSource: generated scalp-EEG-like bursts, muse-style
- WAVSource: replay of a multi-channel WAV recording
- SerialSource: CSV bursts from a serial-attached board

PortAudio capture lives in the audio subpackage so that only it needs cgo.
*/
package device

import (
	"context"
	"errors"
	"sync"

	"eeg/internal/pipeline"
)

// ErrUnknownSource is returned by New for an unrecognised source kind.
var ErrUnknownSource = errors.New("unknown source kind")

// EventKind tells what an Event carries.
type EventKind int

const (
	EventReading EventKind = iota
	EventConnected
	EventDisconnected
	EventBattery
)

func (k EventKind) String() string {
	switch k {
	case EventReading:
		return "reading"
	case EventConnected:
		return "connected"
	case EventDisconnected:
		return "disconnected"
	case EventBattery:
		return "battery"
	default:
		return "unknown"
	}
}

// Event is one item of a subscription. Readings and connectivity changes
// share a stream so that a disconnect is never seen ahead of the readings
// that preceded it.
type Event struct {
	Kind    EventKind
	Reading pipeline.RawReading // set for EventReading
	Battery float64             // percent, set for EventBattery
}

// Subscription is an active stream from a Source.
type Subscription interface {
	// Events delivers readings and connectivity changes in device order. It
	// is never closed; watch Done.
	Events() <-chan Event
	// Done is closed once the source has stopped producing. Events already
	// queued stay readable.
	Done() <-chan struct{}
	// Err returns why the source stopped, nil for a clean end.
	Err() error
	// Unsubscribe stops the source and waits for it to exit.
	Unsubscribe()
}

// Source produces readings for one session.
type Source interface {
	Name() string
	Subscribe(ctx context.Context) (Subscription, error)
}

// Feed is the Subscription implementation shared by every source. Producers
// publish with SendReading and SetConnected and call Finish when they exit.
type Feed struct {
	events chan Event
	done   chan struct{}

	ctx    context.Context
	cancel context.CancelFunc

	once sync.Once
	mu   sync.Mutex
	err  error
}

var _ Subscription = (*Feed)(nil)

// NewFeed creates a feed whose producers stop when ctx is cancelled or
// Unsubscribe is called. buffer sizes the event channel.
func NewFeed(ctx context.Context, buffer int) *Feed {
	ctx, cancel := context.WithCancel(ctx)
	return &Feed{
		events: make(chan Event, buffer),
		done:   make(chan struct{}),
		ctx:    ctx,
		cancel: cancel,
	}
}

// Context is cancelled when the subscriber goes away.
func (f *Feed) Context() context.Context { return f.ctx }

func (f *Feed) send(ev Event) bool {
	select {
	case f.events <- ev:
		return true
	case <-f.ctx.Done():
		return false
	}
}

// SendReading blocks until r is queued or the feed is cancelled. It reports
// whether the reading was queued.
func (f *Feed) SendReading(r pipeline.RawReading) bool {
	return f.send(Event{Kind: EventReading, Reading: r})
}

// TrySendReading queues r without blocking. It reports false when the buffer
// is full or the feed is cancelled.
func (f *Feed) TrySendReading(r pipeline.RawReading) bool {
	if f.ctx.Err() != nil {
		return false
	}
	select {
	case f.events <- Event{Kind: EventReading, Reading: r}:
		return true
	default:
		return false
	}
}

// SetConnected publishes a connectivity change behind any queued readings.
func (f *Feed) SetConnected(connected bool) bool {
	kind := EventDisconnected
	if connected {
		kind = EventConnected
	}
	return f.send(Event{Kind: kind})
}

// SetBattery publishes a battery level in percent for sources that report
// one.
func (f *Feed) SetBattery(percent float64) bool {
	return f.send(Event{Kind: EventBattery, Battery: percent})
}

// Finish records the terminal error and closes Done. Only the first call has
// an effect.
func (f *Feed) Finish(err error) {
	f.once.Do(func() {
		f.mu.Lock()
		f.err = err
		f.mu.Unlock()
		f.cancel()
		close(f.done)
	})
}

func (f *Feed) Events() <-chan Event   { return f.events }
func (f *Feed) Done() <-chan struct{} { return f.done }

func (f *Feed) Err() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.err
}

func (f *Feed) Unsubscribe() {
	f.cancel()
	<-f.done
}
