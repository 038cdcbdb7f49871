// SPDX-License-Identifier: MIT
package config

import (
	"eeg/internal/device"
	"eeg/internal/pipeline"
)

// PipelineConfig returns the pipeline construction parameters.
func (c *Config) PipelineConfig() pipeline.Config {
	return pipeline.Config{
		Channels:          c.Pipeline.Channels,
		SamplingFrequency: c.Pipeline.SamplingFrequency,
		LowCutoff:         c.Pipeline.LowCutoff,
		HighCutoff:        c.Pipeline.HighCutoff,
		Taps:              c.Pipeline.Taps,
		FilterEnabled:     c.Pipeline.FilterEnabled,
		StallThreshold:    c.Pipeline.StallThreshold,
		MaxPending:        c.Pipeline.MaxPending,
	}
}

// DeviceOptions returns the settings of the sources built by device.New.
func (c *Config) DeviceOptions() device.Options {
	s := c.Source
	return device.Options{
		Synthetic: device.SyntheticConfig{
			SamplingFrequency: c.Pipeline.SamplingFrequency,
			BurstSize:         s.BurstSize,
			Seed:              s.Seed,
			Realtime:          s.Realtime,
		},
		WAV: device.WAVConfig{
			Path:      s.File,
			BurstSize: s.BurstSize,
			Scale:     s.Scale,
			Offset:    s.Offset,
			Realtime:  s.Realtime,
		},
		Serial: device.SerialConfig{
			Port:     s.SerialPort,
			BaudRate: s.BaudRate,
		},
	}
}
