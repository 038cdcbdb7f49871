// SPDX-License-Identifier: MIT
package dsp

import "math"

// Smoothing constants of the running estimator. The time constant is roughly
// 1/StatsDecay = 200 samples.
const (
	StatsDecay     = 0.005
	StatsRetention = 1 - StatsDecay
)

// RunningStats tracks an exponentially weighted mean and RMS of one channel.
// The zero value is ready to use with mean = rms = 0.
type RunningStats struct {
	mean float64
	rms  float64
}

// Update folds x into the estimate and returns the new (mean, rms). The RMS
// term is taken around the updated mean. Non-finite samples leave the state
// unchanged and return the last values.
func (s *RunningStats) Update(x float64) (mean, rms float64) {
	if math.IsNaN(x) || math.IsInf(x, 0) {
		return s.mean, s.rms
	}
	s.mean = StatsRetention*s.mean + StatsDecay*x
	d := x - s.mean
	s.rms = math.Sqrt(StatsRetention*s.rms*s.rms + StatsDecay*d*d)
	return s.mean, s.rms
}

func (s *RunningStats) Mean() float64 { return s.mean }
func (s *RunningStats) RMS() float64  { return s.rms }

// Reset returns the tracker to (0, 0).
func (s *RunningStats) Reset() {
	s.mean, s.rms = 0, 0
}
