// SPDX-License-Identifier: MIT
package pipeline

import (
	"errors"
	"fmt"
	"math"
)

var (
	// ErrChannelStalled signals that at least one electrode stopped producing
	// while others kept going. The data that triggered it is still queued.
	ErrChannelStalled = errors.New("channel stalled")

	// ErrBufferOverflow is returned when a burst would exceed the per-electrode
	// queue bound. The burst is rejected.
	ErrBufferOverflow = errors.New("demultiplexer buffer overflow")

	// ErrUnknownElectrode is returned for negative electrode indices.
	ErrUnknownElectrode = errors.New("unknown electrode")
)

// StallError names the electrodes with no pending data while another
// electrode is more than the stall threshold ahead.
type StallError struct {
	Lagging []int // electrodes with nothing queued
	Lead    int   // pending samples on the most advanced electrode
}

func (e *StallError) Error() string {
	return fmt.Sprintf("%v: electrodes %v idle while %d samples are pending", ErrChannelStalled, e.Lagging, e.Lead)
}

func (e *StallError) Unwrap() error { return ErrChannelStalled }

type slot struct {
	timestamp float64
	value     float64
}

// fifo is a growable ring of slots.
type fifo struct {
	buf  []slot
	head int
	size int
}

func (q *fifo) push(s slot) {
	if q.size == len(q.buf) {
		n := 2 * len(q.buf)
		if n == 0 {
			n = 32
		}
		buf := make([]slot, n)
		for i := range q.size {
			buf[i] = q.buf[(q.head+i)%len(q.buf)]
		}
		q.buf = buf
		q.head = 0
	}
	q.buf[(q.head+q.size)%len(q.buf)] = s
	q.size++
}

func (q *fifo) pop() slot {
	s := q.buf[q.head]
	q.head = (q.head + 1) % len(q.buf)
	q.size--
	return s
}

func (q *fifo) reset() {
	q.head, q.size = 0, 0
}

// DemuxOption configures a Demultiplexer.
type DemuxOption func(*Demultiplexer)

// WithStallThreshold sets how many samples one electrode may lead an idle
// electrode before Push reports a stall.
func WithStallThreshold(samples int) DemuxOption {
	return func(d *Demultiplexer) {
		if samples > 0 {
			d.stallThreshold = samples
		}
	}
}

// WithMaxPending bounds the per-electrode queue.
func WithMaxPending(samples int) DemuxOption {
	return func(d *Demultiplexer) {
		if samples > 0 {
			d.maxPending = samples
		}
	}
}

// Demultiplexer regroups single-electrode bursts into aligned sample sets.
//
// Each electrode's samples are queued in arrival order and set n is formed
// from the n-th sample of every active electrode. A set is only emitted once
// all electrodes have contributed to it.
//
// Queues are bounded: a burst that would push an electrode past MaxPending
// is rejected with ErrBufferOverflow rather than growing without limit.
type Demultiplexer struct {
	channels       int
	samplePeriod   float64 // milliseconds between samples inside a burst
	stallThreshold int
	maxPending     int

	queues  []fifo
	lastTS  float64
	emitted bool
	stalled bool
}

// NewDemultiplexer creates a demultiplexer for the first channels electrodes.
// By default a stall is reported after one second of lead and queues are
// capped at sixteen seconds of data.
func NewDemultiplexer(channels int, samplingFrequency float64, opts ...DemuxOption) (*Demultiplexer, error) {
	if channels <= 0 {
		return nil, fmt.Errorf("channel count must be positive, got %d", channels)
	}
	if samplingFrequency <= 0 {
		return nil, fmt.Errorf("sampling frequency must be positive, got %g", samplingFrequency)
	}

	perSecond := max(1, int(math.Ceil(samplingFrequency)))
	d := &Demultiplexer{
		channels:       channels,
		samplePeriod:   1000 / samplingFrequency,
		stallThreshold: perSecond,
		maxPending:     16 * perSecond,
		queues:         make([]fifo, channels),
	}
	for _, opt := range opts {
		opt(d)
	}
	if d.maxPending < d.stallThreshold {
		d.maxPending = d.stallThreshold
	}
	return d, nil
}

// Channels returns the number of active electrodes.
func (d *Demultiplexer) Channels() int { return d.channels }

// Pending returns the number of queued samples for electrode e.
func (d *Demultiplexer) Pending(e int) int {
	if e < 0 || e >= d.channels {
		return 0
	}
	return d.queues[e].size
}

// Push queues a burst and emits every sample set it completes. Electrodes
// outside the active range are ignored.
//
// A *StallError is returned after emitting when some electrode has nothing
// queued while another is more than the stall threshold ahead; the burst is
// kept either way.
func (d *Demultiplexer) Push(r RawReading, emit func(SampleSet)) error {
	if r.Electrode < 0 {
		return fmt.Errorf("%w: index %d", ErrUnknownElectrode, r.Electrode)
	}
	if r.Electrode >= d.channels {
		return nil
	}

	q := &d.queues[r.Electrode]
	if q.size+len(r.Samples) > d.maxPending {
		return fmt.Errorf("%w: electrode %d has %d pending, burst of %d exceeds limit %d",
			ErrBufferOverflow, r.Electrode, q.size, len(r.Samples), d.maxPending)
	}
	for i, v := range r.Samples {
		q.push(slot{timestamp: r.Timestamp + float64(i)*d.samplePeriod, value: v})
	}

	d.drain(emit)
	return d.checkStall()
}

func (d *Demultiplexer) drain(emit func(SampleSet)) {
	for d.ready() {
		set := SampleSet{Values: make([]float64, d.channels)}
		ts := math.Inf(-1)
		for e := range d.queues {
			s := d.queues[e].pop()
			set.Values[e] = s.value
			ts = max(ts, s.timestamp)
		}
		// Clamp for devices that reorder their own timestamps.
		if d.emitted && ts < d.lastTS {
			ts = d.lastTS
		}
		set.Timestamp = ts
		d.lastTS = ts
		d.emitted = true
		emit(set)
	}
}

func (d *Demultiplexer) ready() bool {
	for e := range d.queues {
		if d.queues[e].size == 0 {
			return false
		}
	}
	return true
}

func (d *Demultiplexer) checkStall() error {
	lead := 0
	var lagging []int
	for e := range d.queues {
		n := d.queues[e].size
		if n == 0 {
			lagging = append(lagging, e)
		}
		if n > lead {
			lead = n
		}
	}
	if len(lagging) == 0 || lead <= d.stallThreshold {
		d.stalled = false
		return nil
	}
	d.stalled = true
	return &StallError{Lagging: lagging, Lead: lead}
}

// Stalled reports whether the last Push ended in a stall.
func (d *Demultiplexer) Stalled() bool { return d.stalled }

// Reset drops every queued sample and restarts slot alignment.
func (d *Demultiplexer) Reset() {
	for e := range d.queues {
		d.queues[e].reset()
	}
	d.lastTS = 0
	d.emitted = false
	d.stalled = false
}
