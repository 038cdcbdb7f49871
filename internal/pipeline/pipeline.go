// SPDX-License-Identifier: MIT
package pipeline

import (
	"fmt"
	"math"
	"sync"
	"sync/atomic"

	"eeg/internal/dsp"
)

// Reference deployment parameters.
const (
	DefaultChannels          = 4
	DefaultSamplingFrequency = 256.0
	DefaultLowCutoff         = 1.0
	DefaultHighCutoff        = 30.0
)

// Config holds the construction parameters of a Pipeline.
type Config struct {
	Channels          int
	SamplingFrequency float64 // Hz
	LowCutoff         float64 // Hz
	HighCutoff        float64 // Hz
	Taps              int     // FIR length, dsp.DefaultTaps when zero
	FilterEnabled     bool

	StallThreshold int // samples, demultiplexer default when zero
	MaxPending     int // samples, demultiplexer default when zero
}

// DefaultConfig returns the reference configuration: 4 channels at 256 Hz
// with a 1-30 Hz filter enabled.
func DefaultConfig() Config {
	return Config{
		Channels:          DefaultChannels,
		SamplingFrequency: DefaultSamplingFrequency,
		LowCutoff:         DefaultLowCutoff,
		HighCutoff:        DefaultHighCutoff,
		Taps:              dsp.DefaultTaps,
		FilterEnabled:     true,
	}
}

// channelState is everything one electrode owns. It is never shared.
type channelState struct {
	p      *Pipeline
	index  int
	filter dsp.Transform // applied while filtering is enabled
	bypass dsp.Transform // applied while it is disabled
	stats  dsp.RunningStats

	last     Output
	accepted uint64
	dropped  uint64
}

var _ ChannelStream = (*channelState)(nil)

// Accept runs one sample through the channel. Non-finite samples are dropped
// before the filter: they never enter the delay line or the statistics and
// produce no Output.
func (c *channelState) Accept(s ChannelSample) {
	v := s.Value
	if math.IsNaN(v) || math.IsInf(v, 0) {
		c.dropped++
		return
	}
	v = c.transform().Next(v)
	mean, rms := c.stats.Update(v)

	out := Output{
		Timestamp: s.Timestamp,
		Electrode: c.index,
		Amplitude: v,
		Mean:      mean,
		RMS:       rms,
	}
	c.last = out
	c.accepted++

	if !c.p.stopped.Load() {
		c.p.sink.Push(out)
	}
}

// transform selects the stage for the current filter toggle. The inactive
// stage keeps its state.
func (c *channelState) transform() dsp.Transform {
	if c.p.filterEnabled.Load() {
		return c.filter
	}
	return c.bypass
}

func (c *channelState) reset() {
	c.filter.Reset()
	c.bypass.Reset()
	c.stats.Reset()
	c.last = Output{Electrode: c.index}
	c.accepted = 0
	c.dropped = 0
}

// ChannelSnapshot is a point-in-time view of one channel.
type ChannelSnapshot struct {
	Electrode int
	Name      string
	Last      Output
	Accepted  uint64
	Dropped   uint64
}

// Pipeline composes demultiplexing, routing, filtering and statistics for a
// fixed channel count. Calls are synchronous; the internal lock only orders
// readings against Reset and Snapshot issued from other goroutines. Sinks
// are invoked with that lock held and must not call back into the Pipeline.
type Pipeline struct {
	cfg      Config
	sink     Sink
	demux    *Demultiplexer
	router   *Router
	channels []*channelState

	mu            sync.Mutex
	filterEnabled atomic.Bool
	stopped       atomic.Bool
}

// New builds a pipeline. It fails with an error wrapping
// dsp.ErrInvalidParameters when the filter cannot be designed.
func New(cfg Config, sink Sink) (*Pipeline, error) {
	if cfg.Taps == 0 {
		cfg.Taps = dsp.DefaultTaps
	}
	if sink == nil {
		sink = Discard
	}

	var opts []DemuxOption
	if cfg.StallThreshold > 0 {
		opts = append(opts, WithStallThreshold(cfg.StallThreshold))
	}
	if cfg.MaxPending > 0 {
		opts = append(opts, WithMaxPending(cfg.MaxPending))
	}
	demux, err := NewDemultiplexer(cfg.Channels, cfg.SamplingFrequency, opts...)
	if err != nil {
		return nil, fmt.Errorf("pipeline: %w", err)
	}

	p := &Pipeline{
		cfg:      cfg,
		sink:     sink,
		demux:    demux,
		channels: make([]*channelState, cfg.Channels),
	}

	streams := make([]ChannelStream, cfg.Channels)
	for i := range cfg.Channels {
		f, err := dsp.NewBandpass(cfg.SamplingFrequency, cfg.LowCutoff, cfg.HighCutoff, cfg.Taps)
		if err != nil {
			return nil, fmt.Errorf("pipeline: channel %d: %w", i, err)
		}
		p.channels[i] = &channelState{
			p:      p,
			index:  i,
			filter: f,
			bypass: dsp.Passthrough{},
			last:   Output{Electrode: i},
		}
		streams[i] = p.channels[i]
	}
	p.router = NewRouter(streams)
	p.filterEnabled.Store(cfg.FilterEnabled)

	return p, nil
}

// HandleReading feeds one device burst through the pipeline and pushes the
// resulting Outputs to the sink before returning. After Shutdown it is a
// no-op. Stall and overflow conditions from the demultiplexer are returned
// unchanged so callers can match them with errors.Is/As.
func (p *Pipeline) HandleReading(r RawReading) error {
	if p.stopped.Load() {
		return nil
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	var routeErr error
	err := p.demux.Push(r, func(set SampleSet) {
		if e := p.router.Route(set); e != nil && routeErr == nil {
			routeErr = e
		}
	})
	if routeErr != nil {
		return routeErr
	}
	return err
}

// SetFilterEnabled switches bandpass filtering on or off for all channels.
// The delay lines keep their contents while filtering is off.
func (p *Pipeline) SetFilterEnabled(enabled bool) {
	p.filterEnabled.Store(enabled)
}

// FilterEnabled reports the current filter toggle.
func (p *Pipeline) FilterEnabled() bool {
	return p.filterEnabled.Load()
}

// Reset clears queued samples, every delay line and every running estimate,
// as on reconnect. A sink implementing Resetter is reset as well.
func (p *Pipeline) Reset() {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.demux.Reset()
	for _, c := range p.channels {
		c.reset()
	}
	if r, ok := p.sink.(Resetter); ok {
		r.Reset()
	}
}

// Shutdown stops delivery to the sink. It waits for a reading in progress,
// so no Output is pushed after it returns. Buffered state is discarded, not
// flushed, and cannot be resumed.
func (p *Pipeline) Shutdown() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.stopped.Store(true)
}

// Stopped reports whether Shutdown was called.
func (p *Pipeline) Stopped() bool {
	return p.stopped.Load()
}

// Channels returns the number of processed channels.
func (p *Pipeline) Channels() int {
	return len(p.channels)
}

// Config returns the construction parameters.
func (p *Pipeline) Config() Config {
	return p.cfg
}

// Stats returns the running (mean, rms) of channel ch.
func (p *Pipeline) Stats(ch int) (mean, rms float64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if ch < 0 || ch >= len(p.channels) {
		return 0, 0
	}
	s := &p.channels[ch].stats
	return s.Mean(), s.RMS()
}

// Pending returns the demultiplexer queue depth of electrode e.
func (p *Pipeline) Pending(e int) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.demux.Pending(e)
}

// Snapshot returns the latest Output and counters of every channel.
func (p *Pipeline) Snapshot() []ChannelSnapshot {
	p.mu.Lock()
	defer p.mu.Unlock()

	out := make([]ChannelSnapshot, len(p.channels))
	for i, c := range p.channels {
		out[i] = ChannelSnapshot{
			Electrode: i,
			Name:      ElectrodeName(i),
			Last:      c.last,
			Accepted:  c.accepted,
			Dropped:   c.dropped,
		}
	}
	return out
}
