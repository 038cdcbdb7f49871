// SPDX-License-Identifier: MIT
package cmd

import (
	"os"
	"path/filepath"
	"testing"

	"eeg/internal/config"
	"eeg/internal/device"
)

func TestParseArgsDefaults(t *testing.T) {
	t.Chdir(t.TempDir())
	cfg, err := ParseArgs(nil)
	if err != nil {
		t.Fatal(err)
	}
	if !cfg.TUIMode || cfg.Command != "" {
		t.Errorf("TUIMode = %v, Command = %q", cfg.TUIMode, cfg.Command)
	}
	if cfg.Source.Kind != config.DefaultSource || cfg.Pipeline.Channels != config.DefaultChannels {
		t.Errorf("unexpected defaults: %+v", cfg)
	}
}

func TestParseArgsOverrides(t *testing.T) {
	t.Chdir(t.TempDir())
	cfg, err := ParseArgs([]string{
		"--file", "session.wav",
		"--channels", "2",
		"--sample-rate", "500",
		"--low-cutoff", "0.5",
		"--high-cutoff", "40",
		"--no-filter",
		"--no-tui",
		"--ws-addr", ":9001",
		"--udp",
		"-v",
	})
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Source.Kind != device.KindWAV || cfg.Source.File != "session.wav" {
		t.Errorf("source = %+v", cfg.Source)
	}
	p := cfg.Pipeline
	if p.Channels != 2 || p.SamplingFrequency != 500 || p.LowCutoff != 0.5 || p.HighCutoff != 40 || p.FilterEnabled {
		t.Errorf("pipeline = %+v", p)
	}
	if cfg.TUIMode {
		t.Error("--no-tui left the monitor on")
	}
	if !cfg.Transport.WSEnabled || cfg.Transport.WSAddress != ":9001" || !cfg.Transport.UDPEnabled {
		t.Errorf("transport = %+v", cfg.Transport)
	}
	if !cfg.Debug || cfg.LogLevel != "debug" {
		t.Error("--verbose did not enable debug logging")
	}
}

func TestParseArgsFlagsOverrideFile(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)
	path := filepath.Join(dir, "eeg.yaml")
	content := "pipeline:\n  channels: 3\n  high_cutoff: 35\nsource:\n  kind: serial\n  serial_port: /dev/ttyACM0\n"
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := ParseArgs([]string{"--config", path, "--baud", "57600", "--high-cutoff", "25"})
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Pipeline.Channels != 3 {
		t.Errorf("channels = %d, want 3 from the file", cfg.Pipeline.Channels)
	}
	if cfg.Pipeline.HighCutoff != 25 {
		t.Errorf("high cutoff = %g, want 25 from the flag", cfg.Pipeline.HighCutoff)
	}
	if cfg.Source.Kind != device.KindSerial || cfg.Source.SerialPort != "/dev/ttyACM0" || cfg.Source.BaudRate != 57600 {
		t.Errorf("source = %+v", cfg.Source)
	}
}

func TestParseArgsList(t *testing.T) {
	t.Chdir(t.TempDir())
	cfg, err := ParseArgs([]string{"list"})
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Command != "list" || cfg.TUIMode {
		t.Errorf("Command = %q, TUIMode = %v", cfg.Command, cfg.TUIMode)
	}
}

func TestParseArgsErrors(t *testing.T) {
	t.Chdir(t.TempDir())
	tests := []struct {
		desc string
		args []string
	}{
		{"Unknown flag", []string{"--bogus"}},
		{"Unknown source", []string{"--source", "bluetooth"}},
		{"Cutoff above Nyquist", []string{"--high-cutoff", "200"}},
		{"Too many channels", []string{"--channels", "9"}},
		{"Missing config", []string{"--config", "missing.yaml"}},
		{"Stray argument", []string{"extra"}},
	}
	for _, tt := range tests {
		t.Run(tt.desc, func(t *testing.T) {
			if cfg, err := ParseArgs(tt.args); err == nil {
				t.Errorf("expected error, got %+v", cfg)
			}
		})
	}
}

func TestParseArgsVersion(t *testing.T) {
	t.Chdir(t.TempDir())
	cfg, err := ParseArgs([]string{"--version"})
	if err != nil {
		t.Fatal(err)
	}
	if cfg != nil {
		t.Errorf("expected nothing to run after --version, got %+v", cfg)
	}
}
