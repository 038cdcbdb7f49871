// SPDX-License-Identifier: MIT
/*
Package engine runs one EEG session: it subscribes to a device source and
feeds every reading through the pipeline on a single goroutine.

Session behaviour:
- A disconnect resets all filter and statistics state, so a reconnect starts
  from a cold pipeline
- A stalled electrode is logged once per episode and streaming continues
- Battery telemetry is kept until the source disconnects
- A demultiplexer overflow resets the pipeline
- Cancelling the context unsubscribes from the source and shuts the pipeline
  down
*/
package engine

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sync/atomic"

	"github.com/google/uuid"

	"eeg/internal/device"
	applog "eeg/internal/log"
	"eeg/internal/pipeline"
)

// Stats counts session events.
type Stats struct {
	Readings    uint64
	Resets      uint64
	Stalls      uint64
	Overflows   uint64
	Rejected    uint64
	Connections uint64
}

type Engine struct {
	session uuid.UUID
	source  device.Source
	pipe    *pipeline.Pipeline

	// Touched only by the Run goroutine.
	stalled bool

	connected   atomic.Bool
	battery     atomic.Uint64 // math.Float64bits of the level, NaN when unknown
	readings    atomic.Uint64
	resets      atomic.Uint64
	stalls      atomic.Uint64
	overflows   atomic.Uint64
	rejected    atomic.Uint64
	connections atomic.Uint64
}

// Option configures an Engine.
type Option func(*Engine)

// WithSession uses id instead of a fresh random session ID, so that outputs
// built before the engine can carry it.
func WithSession(id uuid.UUID) Option {
	return func(e *Engine) { e.session = id }
}

// New builds the pipeline for cfg. Outputs go to sink.
func New(cfg pipeline.Config, source device.Source, sink pipeline.Sink, opts ...Option) (*Engine, error) {
	if source == nil {
		return nil, fmt.Errorf("engine: source cannot be nil")
	}
	pipe, err := pipeline.New(cfg, sink)
	if err != nil {
		return nil, err
	}

	e := &Engine{
		session: uuid.New(),
		source:  source,
		pipe:    pipe,
	}
	e.battery.Store(math.Float64bits(math.NaN()))
	for _, opt := range opts {
		opt(e)
	}
	applog.Infof("Engine: Session %s (%d channels @ %.0f Hz, band %.1f-%.1f Hz, %d taps, filter %s)",
		e.session, cfg.Channels, cfg.SamplingFrequency, cfg.LowCutoff, cfg.HighCutoff,
		pipe.Config().Taps, onOff(cfg.FilterEnabled))
	return e, nil
}

// Session identifies this run in logs and on the wire.
func (e *Engine) Session() string { return e.session.String() }

// Pipeline exposes the pipeline for runtime controls and snapshots.
func (e *Engine) Pipeline() *pipeline.Pipeline { return e.pipe }

// Connected reports the last connectivity state of the source.
func (e *Engine) Connected() bool { return e.connected.Load() }

// Battery returns the last reported battery level in percent. ok is false
// when the source has not reported one since it connected.
func (e *Engine) Battery() (percent float64, ok bool) {
	percent = math.Float64frombits(e.battery.Load())
	return percent, !math.IsNaN(percent)
}

func (e *Engine) Stats() Stats {
	return Stats{
		Readings:    e.readings.Load(),
		Resets:      e.resets.Load(),
		Stalls:      e.stalls.Load(),
		Overflows:   e.overflows.Load(),
		Rejected:    e.rejected.Load(),
		Connections: e.connections.Load(),
	}
}

// Reset clears the pipeline as on reconnect.
func (e *Engine) Reset() {
	e.pipe.Reset()
	e.resets.Add(1)
}

// Run streams until ctx is cancelled or the source stops. It returns nil on a
// clean stop and the source's error otherwise. The pipeline is shut down on
// return.
func (e *Engine) Run(ctx context.Context) error {
	sub, err := e.source.Subscribe(ctx)
	if err != nil {
		return fmt.Errorf("engine: subscribe to %s: %w", e.source.Name(), err)
	}
	applog.Infof("Engine: Subscribed to %s source", e.source.Name())

	defer func() {
		sub.Unsubscribe()
		e.pipe.Shutdown()
		e.connected.Store(false)
		s := e.Stats()
		applog.Infof("Engine: Session %s ended (%d readings, %d resets, %d stalls, %d overflows)",
			e.session, s.Readings, s.Resets, s.Stalls, s.Overflows)
	}()

	for {
		select {
		case <-ctx.Done():
			applog.Infof("Engine: Shutting down")
			return nil

		case ev := <-sub.Events():
			e.handleEvent(ev)

		case <-sub.Done():
			e.drain(sub)
			if err := sub.Err(); err != nil {
				return fmt.Errorf("engine: %s source: %w", e.source.Name(), err)
			}
			applog.Infof("Engine: %s source finished", e.source.Name())
			return nil
		}
	}
}

// drain handles events the source queued before it stopped.
func (e *Engine) drain(sub device.Subscription) {
	for {
		select {
		case ev := <-sub.Events():
			e.handleEvent(ev)
		default:
			return
		}
	}
}

func (e *Engine) handleEvent(ev device.Event) {
	switch ev.Kind {
	case device.EventReading:
		e.handleReading(ev.Reading)
	case device.EventConnected:
		e.handleConnectivity(true)
	case device.EventDisconnected:
		e.handleConnectivity(false)
	case device.EventBattery:
		e.battery.Store(math.Float64bits(ev.Battery))
		applog.Debugf("Engine: Battery at %.0f%%", ev.Battery)
	}
}

func (e *Engine) handleReading(r pipeline.RawReading) {
	e.readings.Add(1)
	err := e.pipe.HandleReading(r)

	var stall *pipeline.StallError
	switch {
	case err == nil:
		if e.stalled {
			applog.Infof("Engine: All electrodes streaming again")
			e.stalled = false
		}

	case errors.As(err, &stall):
		if !e.stalled {
			e.stalls.Add(1)
			applog.Warnf("Engine: %v", stall)
			e.stalled = true
		}

	case errors.Is(err, pipeline.ErrBufferOverflow):
		e.overflows.Add(1)
		applog.Warnf("Engine: %v, resetting pipeline", err)
		e.Reset()
		e.stalled = false

	case errors.Is(err, pipeline.ErrUnknownElectrode):
		e.rejected.Add(1)
		applog.Debugf("Engine: Rejected reading: %v", err)

	default:
		e.rejected.Add(1)
		applog.Errorf("Engine: Reading from electrode %d failed: %v", r.Electrode, err)
	}
}

func (e *Engine) handleConnectivity(connected bool) {
	was := e.connected.Swap(connected)
	if connected {
		e.connections.Add(1)
		applog.Infof("Engine: %s source connected", e.source.Name())
		return
	}
	e.battery.Store(math.Float64bits(math.NaN()))
	if was {
		applog.Infof("Engine: %s source disconnected, resetting pipeline", e.source.Name())
		e.Reset()
		e.stalled = false
	}
}

func onOff(b bool) string {
	if b {
		return "on"
	}
	return "off"
}
