// SPDX-License-Identifier: MIT
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"eeg/internal/analysis"
	"eeg/internal/device"
	"eeg/internal/dsp"
	applog "eeg/internal/log"
	"eeg/pkg/bitint"
)

// searchPaths are tried in order when LoadConfig is given no path.
var searchPaths = []string{
	"config.yaml",
	"config/config.yaml",
}

// LoadConfig loads configuration from the YAML file at path. An empty path
// searches searchPaths and falls back to the built-in defaults when none
// exists. ENV_* overrides are applied after the file and the result is
// validated.
func LoadConfig(path string) (*Config, error) {
	cfg := NewConfig()

	if path == "" {
		for _, candidate := range searchPaths {
			if _, err := os.Stat(candidate); err == nil {
				path = candidate
				break
			}
		}
	}

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
		applog.Debugf("Config: Loaded %s", path)
	}

	cfg.applyEnvOverrides()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// Validate checks every section. Disabled outputs are not checked.
func (c *Config) Validate() error {
	if _, ok := applog.ParseLevel(c.LogLevel); !ok {
		return fmt.Errorf("log_level %q is not one of debug, info, warn, error", c.LogLevel)
	}

	p := c.Pipeline
	if p.Channels < 1 || p.Channels > MaxChannels {
		return fmt.Errorf("pipeline.channels must be in 1..%d, got %d", MaxChannels, p.Channels)
	}
	if p.Taps > MaxTaps {
		return fmt.Errorf("pipeline.taps must be at most %d, got %d", MaxTaps, p.Taps)
	}
	if err := dsp.ValidateBandpass(p.SamplingFrequency, p.LowCutoff, p.HighCutoff, p.Taps); err != nil {
		return fmt.Errorf("pipeline: %w", err)
	}
	if p.StallThreshold < 0 || p.MaxPending < 0 {
		return fmt.Errorf("pipeline.stall_threshold and pipeline.max_pending must not be negative")
	}

	s := c.Source
	switch strings.ToLower(s.Kind) {
	case device.KindSynthetic, device.KindPortAudio:
	case device.KindWAV:
		if s.File == "" {
			return fmt.Errorf("source.file must be set for the wav source")
		}
	case device.KindSerial:
		if s.SerialPort == "" {
			return fmt.Errorf("source.serial_port must be set for the serial source")
		}
		if s.BaudRate <= 0 {
			return fmt.Errorf("source.baud_rate must be positive, got %d", s.BaudRate)
		}
	default:
		return fmt.Errorf("source.kind: %w: %q", device.ErrUnknownSource, s.Kind)
	}
	if s.Device < MinDeviceID {
		return fmt.Errorf("source.device must be at least %d, got %d", MinDeviceID, s.Device)
	}
	if s.BurstSize <= 0 {
		return fmt.Errorf("source.burst_size must be positive, got %d", s.BurstSize)
	}

	d := c.Display
	if d.AmplitudeScale <= 0 || d.TimeScale <= 0 {
		return fmt.Errorf("display.amplitude_scale and display.time_scale must be positive")
	}
	if d.Enabled && d.Refresh <= 0 {
		return fmt.Errorf("display.refresh must be positive")
	}

	t := c.Transport
	if t.WSEnabled {
		if t.WSAddress == "" {
			return fmt.Errorf("transport.ws_address must be set when the WebSocket output is enabled")
		}
		if t.WSEncoding != "json" && t.WSEncoding != "msgpack" {
			return fmt.Errorf("transport.ws_encoding must be json or msgpack, got %q", t.WSEncoding)
		}
		if t.WSBatch <= 0 {
			return fmt.Errorf("transport.ws_batch must be positive, got %d", t.WSBatch)
		}
	}
	if t.UDPEnabled {
		if t.UDPTargetAddress == "" {
			return fmt.Errorf("transport.udp_target_address must be set when UDP is enabled")
		}
		if !strings.Contains(t.UDPTargetAddress, ":") {
			return fmt.Errorf("transport.udp_target_address '%s' appears invalid (missing port?)", t.UDPTargetAddress)
		}
		if t.UDPSendInterval <= 0 {
			return fmt.Errorf("transport.udp_send_interval must be positive when UDP is enabled")
		}
	}

	a := c.Analysis
	if a.Enabled {
		if !bitint.IsPowerOfTwo(a.FFTSize) {
			return fmt.Errorf("analysis.fft_size must be a power of 2, got %d", a.FFTSize)
		}
		if a.Hop <= 0 || a.Hop > a.FFTSize {
			return fmt.Errorf("analysis.hop must be in 1..%d, got %d", a.FFTSize, a.Hop)
		}
		if _, err := analysis.ParseWindowFunc(a.Window); err != nil {
			return fmt.Errorf("analysis.window: %w", err)
		}
	}
	return nil
}

// applyEnvOverrides lets ENV_* variables replace file values. Unparseable
// values are logged and ignored.
func (c *Config) applyEnvOverrides() {
	// ENV_DEBUG
	if val, ok := os.LookupEnv("ENV_DEBUG"); ok {
		if b, err := strconv.ParseBool(val); err == nil {
			c.Debug = b
			applog.Infof("Config: Overriding debug from env: %v", b)
		} else {
			applog.Warnf("Config: Ignoring ENV_DEBUG=%q: %v", val, err)
		}
	}
	// ENV_LOG_LEVEL
	if val, ok := os.LookupEnv("ENV_LOG_LEVEL"); ok {
		c.LogLevel = strings.ToLower(val)
		applog.Infof("Config: Overriding log_level from env: %s", val)
	}
	// ENV_SOURCE
	if val, ok := os.LookupEnv("ENV_SOURCE"); ok {
		c.Source.Kind = strings.ToLower(val)
		applog.Infof("Config: Overriding source.kind from env: %s", val)
	}
	// ENV_FILTER_ENABLED
	if val, ok := os.LookupEnv("ENV_FILTER_ENABLED"); ok {
		if b, err := strconv.ParseBool(val); err == nil {
			c.Pipeline.FilterEnabled = b
			applog.Infof("Config: Overriding pipeline.filter_enabled from env: %v", b)
		} else {
			applog.Warnf("Config: Ignoring ENV_FILTER_ENABLED=%q: %v", val, err)
		}
	}

	// ENV_UDP_ENABLED
	if val, ok := os.LookupEnv("ENV_UDP_ENABLED"); ok {
		if b, err := strconv.ParseBool(val); err == nil {
			c.Transport.UDPEnabled = b
			applog.Infof("Config: Overriding transport.udp_enabled from env: %v", b)
		} else {
			applog.Warnf("Config: Ignoring ENV_UDP_ENABLED=%q: %v", val, err)
		}
	}
	// ENV_UDP_TARGET_ADDRESS
	if val, ok := os.LookupEnv("ENV_UDP_TARGET_ADDRESS"); ok {
		c.Transport.UDPTargetAddress = val
		applog.Infof("Config: Overriding transport.udp_target_address from env: %s", val)
	}
	// ENV_UDP_SEND_INTERVAL
	if val, ok := os.LookupEnv("ENV_UDP_SEND_INTERVAL"); ok {
		if dur, err := time.ParseDuration(val); err == nil {
			c.Transport.UDPSendInterval = dur
			applog.Infof("Config: Overriding transport.udp_send_interval from env: %s", dur)
		} else {
			applog.Warnf("Config: Ignoring ENV_UDP_SEND_INTERVAL=%q: %v", val, err)
		}
	}
	// ENV_WS_ADDRESS
	if val, ok := os.LookupEnv("ENV_WS_ADDRESS"); ok {
		c.Transport.WSAddress = val
		c.Transport.WSEnabled = val != ""
		applog.Infof("Config: Overriding transport.ws_address from env: %s", val)
	}
}
