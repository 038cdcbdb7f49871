// SPDX-License-Identifier: MIT
//
// Package utils holds signal generators and fakes shared by package tests.
package utils

import (
	"math"
	"math/rand/v2"
	"sync"
)

// MockTransport implements the transport Send/Close contract for testing by
// keeping every payload it receives.
type MockTransport struct {
	mu     sync.Mutex
	sent   []any
	closed bool
}

// Send records data instead of transmitting it.
func (m *MockTransport) Send(data any) error {
	m.mu.Lock()
	m.sent = append(m.sent, data)
	m.mu.Unlock()
	return nil
}

// Close marks the transport closed.
func (m *MockTransport) Close() error {
	m.mu.Lock()
	m.closed = true
	m.mu.Unlock()
	return nil
}

// Sent returns a copy of everything sent so far.
func (m *MockTransport) Sent() []any {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]any, len(m.sent))
	copy(out, m.sent)
	return out
}

// Closed reports whether Close was called.
func (m *MockTransport) Closed() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.closed
}

// GenerateSine returns size samples of amplitude*sin(2*pi*frequency*t).
func GenerateSine(size int, sampleRate, frequency, amplitude float64) []float64 {
	buffer := make([]float64, size)
	for i := range buffer {
		t := float64(i) / sampleRate
		buffer[i] = amplitude * math.Sin(2*math.Pi*frequency*t)
	}
	return buffer
}

// GenerateEEG returns a rough scalp-EEG-like trace in microvolts: a DC offset,
// a 10 Hz alpha rhythm, a slower 5 Hz theta component and uniform noise.
func GenerateEEG(size int, sampleRate, offset float64, seed uint64) []float64 {
	rng := rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
	buffer := make([]float64, size)
	for i := range buffer {
		t := float64(i) / sampleRate
		buffer[i] = offset +
			20*math.Sin(2*math.Pi*10*t) +
			8*math.Sin(2*math.Pi*5*t+0.3) +
			4*(2*rng.Float64()-1)
	}
	return buffer
}

// GenerateNoise returns size uniform samples in [-1, 1) from a seeded source.
func GenerateNoise(size int, seed uint64) []float64 {
	rng := rand.New(rand.NewPCG(seed, seed+1))
	buffer := make([]float64, size)
	for i := range buffer {
		buffer[i] = 2*rng.Float64() - 1
	}
	return buffer
}

// GenerateConstant returns size copies of v.
func GenerateConstant(size int, v float64) []float64 {
	buffer := make([]float64, size)
	for i := range buffer {
		buffer[i] = v
	}
	return buffer
}

// PeakIndex returns the index of the largest value in values[start:end+1].
func PeakIndex(values []float64, start, end int) int {
	if len(values) == 0 {
		return 0
	}
	if start < 0 {
		start = 0
	}
	if end >= len(values) {
		end = len(values) - 1
	}

	peak := start
	for i := start + 1; i <= end; i++ {
		if values[i] > values[peak] {
			peak = i
		}
	}
	return peak
}
