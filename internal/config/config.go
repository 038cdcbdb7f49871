// SPDX-License-Identifier: MIT

// Package config loads the application configuration from YAML, applies
// ENV_* overrides and validates the result. Command line flags are applied
// on top by package cmd.
package config

import "time"

// Defaults and limits of the acquisition and filter settings.
const (
	DefaultChannels          = 4
	DefaultSamplingFrequency = 256.0 // Hz
	DefaultLowCutoff         = 1.0   // Hz
	DefaultHighCutoff        = 30.0  // Hz
	DefaultTaps              = 101
	DefaultFilterEnabled     = true

	DefaultSource   = "synthetic"
	DefaultBaudRate = 115200
	DefaultDeviceID = MinDeviceID
	DefaultBurst    = 12

	DefaultAmplitudeScale = 50.0 // ±µV shown across a trace
	DefaultTimeScale      = 8.0  // ms per column
	DefaultRefresh        = 50 * time.Millisecond

	DefaultWSAddress   = ":8080"
	DefaultWSEncoding  = "json"
	DefaultWSBatch     = 32
	DefaultUDPTarget   = "127.0.0.1:9090"
	DefaultUDPInterval = 16 * time.Millisecond

	DefaultFFTSize = 256
	DefaultHop     = 32
	DefaultWindow  = "hann"

	MinDeviceID = -1  // -1 represents the host default device
	MaxChannels = 5   // TP9, AF7, AF8, TP10, AUX
	MaxTaps     = 1023
)

// Config is the root of config.yaml.
type Config struct {
	Debug    bool   `yaml:"debug"`             // verbose logging
	LogLevel string `yaml:"log_level"`         // debug, info, warn or error
	Command  string `yaml:"command,omitempty"` // one-off command instead of streaming, e.g. "list"
	TUIMode  bool   `yaml:"-"`                 // set when the monitor owns the terminal

	Pipeline  PipelineConfig  `yaml:"pipeline"`
	Source    SourceConfig    `yaml:"source"`
	Display   DisplayConfig   `yaml:"display"`
	Transport TransportConfig `yaml:"transport"`
	Analysis  AnalysisConfig  `yaml:"analysis"`
}

// PipelineConfig shapes the demultiplexer and the per-channel filters.
type PipelineConfig struct {
	Channels          int     `yaml:"channels"`
	SamplingFrequency float64 `yaml:"sample_rate"`
	LowCutoff         float64 `yaml:"low_cutoff"`
	HighCutoff        float64 `yaml:"high_cutoff"`
	Taps              int     `yaml:"taps"` // odd
	FilterEnabled     bool    `yaml:"filter_enabled"`
	StallThreshold    int     `yaml:"stall_threshold"` // samples, 0 for the built-in default
	MaxPending        int     `yaml:"max_pending"`     // samples, 0 for the built-in default
}

// SourceConfig selects where raw readings come from.
type SourceConfig struct {
	Kind string `yaml:"kind"` // synthetic, wav, serial or portaudio

	File     string  `yaml:"file"`     // wav
	Scale    float64 `yaml:"scale"`    // µV per unit, wav and portaudio
	Offset   float64 `yaml:"offset"`   // PCM offset removed before scaling, wav
	Realtime bool    `yaml:"realtime"` // pace replay at the sampling rate

	SerialPort string `yaml:"serial_port"`
	BaudRate   int    `yaml:"baud_rate"`

	Device     int  `yaml:"device"` // PortAudio device index, -1 for default
	LowLatency bool `yaml:"low_latency"`

	BurstSize int    `yaml:"burst_size"` // samples per reading
	Seed      uint64 `yaml:"seed"`       // synthetic noise seed
}

// DisplayConfig holds the terminal monitor settings.
type DisplayConfig struct {
	Enabled        bool          `yaml:"enabled"`
	AmplitudeScale float64       `yaml:"amplitude_scale"` // µV
	TimeScale      float64       `yaml:"time_scale"`      // ms per column
	Refresh        time.Duration `yaml:"refresh"`
}

// TransportConfig holds the network outputs.
type TransportConfig struct {
	WSEnabled  bool   `yaml:"ws_enabled"`
	WSAddress  string `yaml:"ws_address"`
	WSEncoding string `yaml:"ws_encoding"` // json or msgpack
	WSBatch    int    `yaml:"ws_batch"`    // outputs per frame

	UDPEnabled       bool          `yaml:"udp_enabled"`
	UDPTargetAddress string        `yaml:"udp_target_address"`
	UDPSendInterval  time.Duration `yaml:"udp_send_interval"`
}

// AnalysisConfig holds the band power settings.
type AnalysisConfig struct {
	Enabled bool   `yaml:"enabled"`
	FFTSize int    `yaml:"fft_size"` // power of two
	Hop     int    `yaml:"hop"`      // samples between analyses
	Window  string `yaml:"window"`
}

// NewConfig returns the built-in defaults.
func NewConfig() *Config {
	return &Config{
		LogLevel: "info",
		Pipeline: PipelineConfig{
			Channels:          DefaultChannels,
			SamplingFrequency: DefaultSamplingFrequency,
			LowCutoff:         DefaultLowCutoff,
			HighCutoff:        DefaultHighCutoff,
			Taps:              DefaultTaps,
			FilterEnabled:     DefaultFilterEnabled,
		},
		Source: SourceConfig{
			Kind:      DefaultSource,
			Scale:     1,
			Realtime:  true,
			BaudRate:  DefaultBaudRate,
			Device:    DefaultDeviceID,
			BurstSize: DefaultBurst,
		},
		Display: DisplayConfig{
			Enabled:        true,
			AmplitudeScale: DefaultAmplitudeScale,
			TimeScale:      DefaultTimeScale,
			Refresh:        DefaultRefresh,
		},
		Transport: TransportConfig{
			WSAddress:        DefaultWSAddress,
			WSEncoding:       DefaultWSEncoding,
			WSBatch:          DefaultWSBatch,
			UDPTargetAddress: DefaultUDPTarget,
			UDPSendInterval:  DefaultUDPInterval,
		},
		Analysis: AnalysisConfig{
			Enabled: true,
			FFTSize: DefaultFFTSize,
			Hop:     DefaultHop,
			Window:  DefaultWindow,
		},
	}
}
