// SPDX-License-Identifier: MIT
package tui

import (
	"math"
	"strings"
	"sync"

	"eeg/internal/pipeline"
)

// DefaultTraceCapacity holds 16 s of history at 256 Hz.
const DefaultTraceCapacity = 4096

var sparkLevels = []rune("▁▂▃▄▅▆▇█")

// Trace is a pipeline.Sink that keeps the recent amplitudes of every channel
// for drawing.
type Trace struct {
	mu    sync.Mutex
	rings [][]float64
	next  []int
	count []int
}

var (
	_ pipeline.Sink     = (*Trace)(nil)
	_ pipeline.Resetter = (*Trace)(nil)
)

func NewTrace(channels, capacity int) *Trace {
	if capacity <= 0 {
		capacity = DefaultTraceCapacity
	}
	t := &Trace{
		rings: make([][]float64, channels),
		next:  make([]int, channels),
		count: make([]int, channels),
	}
	for i := range t.rings {
		t.rings[i] = make([]float64, capacity)
	}
	return t
}

func (t *Trace) Push(o pipeline.Output) {
	t.mu.Lock()
	defer t.mu.Unlock()
	ch := o.Electrode
	if ch < 0 || ch >= len(t.rings) {
		return
	}
	ring := t.rings[ch]
	ring[t.next[ch]] = o.Amplitude
	t.next[ch] = (t.next[ch] + 1) % len(ring)
	t.count[ch] = min(t.count[ch]+1, len(ring))
}

func (t *Trace) Reset() {
	t.mu.Lock()
	defer t.mu.Unlock()
	for i := range t.rings {
		t.next[i] = 0
		t.count[i] = 0
	}
}

// Columns returns up to n amplitudes of channel ch, oldest first, taken
// stride samples apart and ending with the newest sample.
func (t *Trace) Columns(ch, n int, stride float64) []float64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	if ch < 0 || ch >= len(t.rings) || n <= 0 {
		return nil
	}
	if stride < 1 {
		stride = 1
	}
	ring := t.rings[ch]
	out := make([]float64, 0, n)
	for j := range n {
		back := int(math.Round(float64(j) * stride))
		if back >= t.count[ch] {
			break
		}
		i := (t.next[ch] - 1 - back + len(ring)) % len(ring)
		out = append(out, ring[i])
	}
	for i, k := 0, len(out)-1; i < k; i, k = i+1, k-1 {
		out[i], out[k] = out[k], out[i]
	}
	return out
}

// sparkline draws values on eight levels spanning ±scale. Values outside the
// range are clipped.
func sparkline(values []float64, scale float64) string {
	var sb strings.Builder
	top := len(sparkLevels) - 1
	for _, v := range values {
		frac := (v + scale) / (2 * scale)
		level := int(math.Round(frac * float64(top)))
		level = max(0, min(top, level))
		sb.WriteRune(sparkLevels[level])
	}
	return sb.String()
}
