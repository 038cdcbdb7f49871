// SPDX-License-Identifier: MIT
package pipeline

import (
	"errors"
	"testing"
)

func TestRouterFansOutInOrder(t *testing.T) {
	got := make([][]ChannelSample, 3)
	streams := make([]ChannelStream, 3)
	for i := range streams {
		streams[i] = ChannelStreamFunc(func(s ChannelSample) {
			got[i] = append(got[i], s)
		})
	}
	r := NewRouter(streams)

	for n := range 5 {
		set := SampleSet{
			Timestamp: float64(n),
			Values:    []float64{float64(n), float64(10 + n), float64(20 + n)},
		}
		if err := r.Route(set); err != nil {
			t.Fatalf("Route(%d): %v", n, err)
		}
	}

	for ch, samples := range got {
		if len(samples) != 5 {
			t.Fatalf("channel %d received %d samples, want 5", ch, len(samples))
		}
		for n, s := range samples {
			if s.Channel != ch {
				t.Errorf("channel %d sample %d tagged with channel %d", ch, n, s.Channel)
			}
			if s.Timestamp != float64(n) || s.Value != float64(10*ch+n) {
				t.Errorf("channel %d sample %d = (%g, %g)", ch, n, s.Timestamp, s.Value)
			}
		}
	}
}

func TestRouterWidthMismatch(t *testing.T) {
	r := NewRouter([]ChannelStream{ChannelStreamFunc(func(ChannelSample) {})})
	err := r.Route(SampleSet{Values: []float64{1, 2}})
	if !errors.Is(err, ErrWidthMismatch) {
		t.Errorf("expected ErrWidthMismatch, got %v", err)
	}
}

func TestMultiSink(t *testing.T) {
	var a, b []Output
	m := MultiSink{
		SinkFunc(func(o Output) { a = append(a, o) }),
		SinkFunc(func(o Output) { b = append(b, o) }),
	}
	m.Push(Output{Electrode: 1, Amplitude: 2})
	if len(a) != 1 || len(b) != 1 || a[0] != b[0] {
		t.Errorf("MultiSink delivered a=%v b=%v", a, b)
	}
}

func TestElectrodeName(t *testing.T) {
	if got := ElectrodeName(0); got != "TP9" {
		t.Errorf("ElectrodeName(0) = %q, want TP9", got)
	}
	if got := ElectrodeName(7); got != "CH7" {
		t.Errorf("ElectrodeName(7) = %q, want CH7", got)
	}
}

type resettableSink struct {
	pushes, resets int
}

func (s *resettableSink) Push(Output) { s.pushes++ }
func (s *resettableSink) Reset()      { s.resets++ }

func TestResetReachesSinks(t *testing.T) {
	inner := &resettableSink{}
	p, err := New(DefaultConfig(), MultiSink{Discard, inner})
	if err != nil {
		t.Fatal(err)
	}
	p.Reset()
	p.Reset()
	if inner.resets != 2 {
		t.Errorf("sink reset %d times, want 2", inner.resets)
	}
}
