// SPDX-License-Identifier: MIT
package transport

import (
	"sync"

	applog "eeg/internal/log"
	"eeg/internal/pipeline"
)

// Transport sends processed data or events to a display. Implementations
// must be safe for concurrent use and must not block the caller.
type Transport interface {
	Send(data any) error
	Close() error
}

// Message types on the wire.
const (
	TypeHello     = "hello"
	TypeSamples   = "samples"
	TypeBandPower = "band_power"
)

// Hello is sent to each display client when it connects.
type Hello struct {
	Type              string   `json:"type" msgpack:"type"`
	Session           string   `json:"session" msgpack:"session"`
	Channels          []string `json:"channels" msgpack:"channels"`
	SamplingFrequency float64  `json:"fs" msgpack:"fs"`
	LowCutoff         float64  `json:"low" msgpack:"low"`
	HighCutoff        float64  `json:"high" msgpack:"high"`
}

// NewHello describes a pipeline configuration for display clients.
func NewHello(session string, cfg pipeline.Config) Hello {
	names := make([]string, cfg.Channels)
	for i := range names {
		names[i] = pipeline.ElectrodeName(i)
	}
	return Hello{
		Type:              TypeHello,
		Session:           session,
		Channels:          names,
		SamplingFrequency: cfg.SamplingFrequency,
		LowCutoff:         cfg.LowCutoff,
		HighCutoff:        cfg.HighCutoff,
	}
}

// Samples is a batch of pipeline outputs.
type Samples struct {
	Type    string            `json:"type" msgpack:"type"`
	Outputs []pipeline.Output `json:"outputs" msgpack:"outputs"`
}

// BatchSink adapts a Transport to pipeline.Sink. Outputs are grouped into
// Samples messages of size outputs so that a display receives a few frames
// per second instead of one message per sample.
type BatchSink struct {
	t    Transport
	size int

	mu  sync.Mutex
	buf []pipeline.Output
}

var (
	_ pipeline.Sink     = (*BatchSink)(nil)
	_ pipeline.Resetter = (*BatchSink)(nil)
)

// NewBatchSink sends every size outputs to t. A size below one sends each
// output on its own.
func NewBatchSink(t Transport, size int) *BatchSink {
	if size < 1 {
		size = 1
	}
	return &BatchSink{t: t, size: size, buf: make([]pipeline.Output, 0, size)}
}

func (s *BatchSink) Push(o pipeline.Output) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.buf = append(s.buf, o)
	if len(s.buf) >= s.size {
		s.flushLocked()
	}
}

// Flush sends any buffered outputs.
func (s *BatchSink) Flush() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.buf) > 0 {
		s.flushLocked()
	}
}

// Reset discards buffered outputs without sending them.
func (s *BatchSink) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.buf = s.buf[:0]
}

func (s *BatchSink) flushLocked() {
	// The batch is handed off; start a fresh buffer rather than reuse it.
	batch := s.buf
	s.buf = make([]pipeline.Output, 0, s.size)
	if err := s.t.Send(Samples{Type: TypeSamples, Outputs: batch}); err != nil {
		applog.Warnf("BatchSink: Error sending %d outputs: %v", len(batch), err)
	}
}
