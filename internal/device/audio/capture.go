// SPDX-License-Identifier: MIT
/*
Package audio captures EEG from an audio interface through PortAudio. Each
input channel of the interface carries one electrode, as with DC-coupled
biosignal front ends that present themselves as sound cards.

Thread Safety:
- The PortAudio callback only de-interleaves and hands bursts to the feed
  without blocking
- Bursts that do not fit the feed buffer are counted and dropped
*/
package audio

import (
	"context"
	"fmt"
	"runtime"
	"sync/atomic"
	"time"

	"github.com/gordonklaus/portaudio"

	"eeg/internal/device"
	applog "eeg/internal/log"
	"eeg/internal/pipeline"
)

// Config selects the capture device and its format.
type Config struct {
	DeviceID        int     // DefaultDevice for the host default
	Channels        int     // input channels opened, one per electrode
	SampleRate      float64 // Hz
	FramesPerBuffer int     // frames per callback, one burst per channel
	Scale           float64 // microvolts per full-scale unit, 1 when zero
	LowLatency      bool
}

type stream interface {
	Start() error
	Stop() error
	Close() error
}

var openStream = func(p portaudio.StreamParameters, callback func([]float32)) (stream, error) {
	return portaudio.OpenStream(p, callback)
}

// PortAudioSource streams an input device as EEG readings.
type PortAudioSource struct {
	cfg Config

	frames  uint64
	dropped atomic.Uint64
}

var _ device.Source = (*PortAudioSource)(nil)

func NewPortAudioSource(cfg Config) *PortAudioSource {
	if cfg.Channels <= 0 {
		cfg.Channels = pipeline.DefaultChannels
	}
	if cfg.SampleRate <= 0 {
		cfg.SampleRate = pipeline.DefaultSamplingFrequency
	}
	if cfg.FramesPerBuffer <= 0 {
		cfg.FramesPerBuffer = device.DefaultBurstSize
	}
	if cfg.Scale == 0 {
		cfg.Scale = 1
	}
	return &PortAudioSource{cfg: cfg}
}

func (s *PortAudioSource) Name() string { return device.KindPortAudio }

// Dropped returns the number of bursts lost because the consumer fell behind.
func (s *PortAudioSource) Dropped() uint64 { return s.dropped.Load() }

// Subscribe opens and starts the input stream. PortAudio stays initialized
// until the subscription ends.
func (s *PortAudioSource) Subscribe(ctx context.Context) (device.Subscription, error) {
	if err := Initialize(); err != nil {
		return nil, err
	}

	info, err := InputDevice(s.cfg.DeviceID)
	if err != nil {
		Terminate()
		return nil, err
	}
	if info.MaxInputChannels < s.cfg.Channels {
		Terminate()
		return nil, fmt.Errorf("device %s has %d input channels, need %d",
			info.Name, info.MaxInputChannels, s.cfg.Channels)
	}

	latency := info.DefaultHighInputLatency
	if s.cfg.LowLatency {
		latency = info.DefaultLowInputLatency
	}

	f := device.NewFeed(ctx, 16*s.cfg.Channels)
	s.frames = 0

	params := portaudio.StreamParameters{
		Input: portaudio.StreamDeviceParameters{
			Channels: s.cfg.Channels,
			Device:   info,
			Latency:  latency,
		},
		FramesPerBuffer: s.cfg.FramesPerBuffer,
		SampleRate:      s.cfg.SampleRate,
	}

	st, err := openStream(params, func(in []float32) { s.process(f, in) })
	if err != nil {
		Terminate()
		return nil, fmt.Errorf("failed to open input stream: %w", err)
	}
	if err := st.Start(); err != nil {
		st.Close()
		Terminate()
		return nil, fmt.Errorf("failed to start input stream: %w", err)
	}

	applog.Infof("PortAudioSource: Capturing %d channels from %s at %.0f Hz (latency %v)",
		s.cfg.Channels, info.Name, s.cfg.SampleRate, latency.Round(time.Microsecond))
	f.SetConnected(true)

	go func() {
		<-f.Context().Done()
		var err error
		if e := st.Stop(); e != nil {
			err = fmt.Errorf("failed to stop input stream: %w", e)
		}
		if e := st.Close(); e != nil && err == nil {
			err = fmt.Errorf("failed to close input stream: %w", e)
		}
		if e := Terminate(); e != nil && err == nil {
			err = e
		}
		if n := s.dropped.Load(); n > 0 {
			applog.Warnf("PortAudioSource: Dropped %d bursts during capture", n)
		}
		f.Finish(err)
	}()

	return f, nil
}

// process runs on the PortAudio callback thread.
func (s *PortAudioSource) process(f *device.Feed, in []float32) {
	runtime.LockOSThread()
	defer runtime.UnlockOSThread()

	ts := float64(s.frames) * 1000 / s.cfg.SampleRate
	bursts := burstsFromFrames(in, s.cfg.Channels, s.cfg.Scale, ts)
	s.frames += uint64(len(in) / s.cfg.Channels)

	for _, r := range bursts {
		if !f.TrySendReading(r) {
			s.dropped.Add(1)
		}
	}
}

// burstsFromFrames de-interleaves a PortAudio buffer into one reading per
// channel, all stamped with the time of the first frame.
func burstsFromFrames(in []float32, channels int, scale, ts float64) []pipeline.RawReading {
	frames := len(in) / channels
	out := make([]pipeline.RawReading, channels)
	for c := range out {
		samples := make([]float64, frames)
		for i := range samples {
			samples[i] = float64(in[i*channels+c]) * scale
		}
		out[c] = pipeline.RawReading{Electrode: c, Timestamp: ts, Samples: samples}
	}
	return out
}
