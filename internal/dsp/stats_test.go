// SPDX-License-Identifier: MIT
package dsp

import (
	"math"
	"testing"
)

func TestRunningStatsAtRest(t *testing.T) {
	var s RunningStats
	for range 1000 {
		mean, rms := s.Update(0)
		if mean != 0 || rms != 0 {
			t.Fatalf("Update(0) from rest = (%g, %g), want (0, 0)", mean, rms)
		}
	}
}

func TestRunningStatsFirstUpdate(t *testing.T) {
	var s RunningStats
	mean, rms := s.Update(10)

	wantMean := 0.05
	wantRMS := math.Sqrt(0.005 * (10 - wantMean) * (10 - wantMean))
	if math.Abs(mean-wantMean) > 1e-12 {
		t.Errorf("mean = %g, want %g", mean, wantMean)
	}
	if math.Abs(rms-wantRMS) > 1e-12 {
		t.Errorf("rms = %g, want %g (deviation taken from the updated mean)", rms, wantRMS)
	}
}

func TestRunningStatsIgnoresNonFinite(t *testing.T) {
	priors := []float64{0, 3.5, -120, 1e6}
	invalid := []float64{math.NaN(), math.Inf(1), math.Inf(-1)}

	for _, p := range priors {
		var s RunningStats
		for range 50 {
			s.Update(p)
		}
		wantMean, wantRMS := s.Mean(), s.RMS()

		for _, x := range invalid {
			mean, rms := s.Update(x)
			if mean != wantMean || rms != wantRMS {
				t.Errorf("Update(%g) after prior %g changed state: (%g, %g) -> (%g, %g)",
					x, p, wantMean, wantRMS, mean, rms)
			}
		}
	}
}

func TestRunningStatsConvergesToConstant(t *testing.T) {
	var s RunningStats
	for range 5000 {
		s.Update(4)
	}
	if math.Abs(s.Mean()-4) > 1e-6 {
		t.Errorf("mean = %g, want ~4", s.Mean())
	}
	if s.RMS() > 1e-3 {
		t.Errorf("rms = %g, want ~0 for a constant input", s.RMS())
	}
}

func TestRunningStatsReset(t *testing.T) {
	var s RunningStats
	s.Update(7)
	s.Update(-3)
	s.Reset()
	if s.Mean() != 0 || s.RMS() != 0 {
		t.Errorf("after Reset got (%g, %g), want (0, 0)", s.Mean(), s.RMS())
	}
}

func TestPassthrough(t *testing.T) {
	var tr Transform = Passthrough{}
	for _, x := range []float64{0, -3.5, 1e6} {
		if got := tr.Next(x); got != x {
			t.Errorf("Next(%g) = %g", x, got)
		}
	}
	tr.Reset()
}
