// SPDX-License-Identifier: MIT
package device

import (
	"context"
	"fmt"
	"math"
	"math/rand/v2"
	"time"

	applog "eeg/internal/log"
	"eeg/internal/pipeline"
)

// DefaultBurstSize is the number of samples per electrode notification.
const DefaultBurstSize = 12

// SyntheticConfig shapes the generated signal.
type SyntheticConfig struct {
	Electrodes        int     // electrodes produced, including any beyond the active set
	SamplingFrequency float64 // Hz
	BurstSize         int     // samples per reading
	Offset            float64 // DC offset in microvolts
	Seed              uint64
	Realtime          bool // pace bursts at the sampling rate
	MaxBursts         int  // bursts per electrode, 0 for unlimited
}

// SyntheticSource generates EEG-like bursts: a DC offset, an alpha rhythm
// whose strength differs per electrode, theta, line noise and white noise.
type SyntheticSource struct {
	cfg SyntheticConfig
}

var _ Source = (*SyntheticSource)(nil)

// NewSyntheticSource fills zero fields with headset defaults.
func NewSyntheticSource(cfg SyntheticConfig) *SyntheticSource {
	if cfg.Electrodes <= 0 {
		cfg.Electrodes = len(pipeline.ElectrodeNames)
	}
	if cfg.SamplingFrequency <= 0 {
		cfg.SamplingFrequency = pipeline.DefaultSamplingFrequency
	}
	if cfg.BurstSize <= 0 {
		cfg.BurstSize = DefaultBurstSize
	}
	return &SyntheticSource{cfg: cfg}
}

func (s *SyntheticSource) Name() string { return "synthetic" }

// Subscribe starts generating on a new goroutine.
func (s *SyntheticSource) Subscribe(ctx context.Context) (Subscription, error) {
	f := NewFeed(ctx, 4*s.cfg.Electrodes)
	go s.run(f)
	return f, nil
}

func (s *SyntheticSource) run(f *Feed) {
	cfg := s.cfg
	rng := rand.New(rand.NewPCG(cfg.Seed, cfg.Seed+0x5eed))
	period := 1000 * float64(cfg.BurstSize) / cfg.SamplingFrequency

	applog.Infof("SyntheticSource: Streaming %d electrodes at %.0f Hz (burst %d)",
		cfg.Electrodes, cfg.SamplingFrequency, cfg.BurstSize)

	if !f.SetConnected(true) {
		f.Finish(nil)
		return
	}

	var ticker *time.Ticker
	if cfg.Realtime {
		ticker = time.NewTicker(time.Duration(period * float64(time.Millisecond)))
		defer ticker.Stop()
	}

	order := make([]int, cfg.Electrodes)
	for i := range order {
		order[i] = i
	}

	for k := 0; cfg.MaxBursts == 0 || k < cfg.MaxBursts; k++ {
		if ticker != nil {
			select {
			case <-ticker.C:
			case <-f.Context().Done():
				f.Finish(nil)
				return
			}
		}

		// Notifications for one period arrive in no fixed electrode order.
		rng.Shuffle(len(order), func(i, j int) { order[i], order[j] = order[j], order[i] })
		for _, e := range order {
			r := pipeline.RawReading{
				Electrode: e,
				Timestamp: float64(k) * period,
				Samples:   s.burst(rng, e, k),
			}
			if !f.SendReading(r) {
				f.Finish(nil)
				return
			}
		}
	}

	f.SetConnected(false)
	f.Finish(nil)
}

func (s *SyntheticSource) burst(rng *rand.Rand, e, k int) []float64 {
	cfg := s.cfg
	out := make([]float64, cfg.BurstSize)
	alpha := 10 + 4*float64(e%2)
	for i := range out {
		t := float64(k*cfg.BurstSize+i) / cfg.SamplingFrequency
		out[i] = cfg.Offset +
			alpha*math.Sin(2*math.Pi*10*t+float64(e)) +
			6*math.Sin(2*math.Pi*6*t) +
			3*math.Sin(2*math.Pi*60*t) +
			2*rng.NormFloat64()
	}
	return out
}

func (s *SyntheticSource) String() string {
	return fmt.Sprintf("synthetic(%d electrodes @ %.0f Hz)", s.cfg.Electrodes, s.cfg.SamplingFrequency)
}
