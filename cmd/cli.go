// SPDX-License-Identifier: MIT
package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"eeg/internal/config"
	"eeg/internal/device"
	"eeg/pkg/build"
)

type cliFlags struct {
	configPath string
	source     string
	file       string
	serialPort string
	baud       int
	device     int
	channels   int
	sampleRate float64
	lowCutoff  float64
	highCutoff float64
	noFilter   bool
	noTUI      bool
	wsAddr     string
	udp        bool
	verbose    bool
}

// ParseArgs builds the configuration from the config file and the command
// line. It returns a nil config when there is nothing to run, e.g. after
// --help or --version.
func ParseArgs(args []string) (*config.Config, error) {
	buildInfo := build.GetBuildFlags()
	var (
		f       cliFlags
		options *config.Config
	)

	load := func(cmd *cobra.Command) error {
		cfg, err := config.LoadConfig(f.configPath)
		if err != nil {
			return err
		}
		f.apply(cmd, cfg)
		if err := cfg.Validate(); err != nil {
			return fmt.Errorf("invalid flags: %w", err)
		}
		options = cfg
		return nil
	}

	rootCmd := &cobra.Command{
		Use:           buildInfo.Name,
		Short:         buildInfo.Description,
		Version:       buildInfo.Version,
		Args:          cobra.NoArgs,
		SilenceErrors: true,
		SilenceUsage:  true,
		CompletionOptions: cobra.CompletionOptions{
			DisableDefaultCmd:   true,
			DisableDescriptions: true,
			DisableNoDescFlag:   true,
			HiddenDefaultCmd:    true,
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := load(cmd); err != nil {
				return err
			}
			options.TUIMode = options.Display.Enabled && !f.noTUI
			return nil
		},
	}

	// Display help message
	rootCmd.SetHelpCommand(&cobra.Command{Hidden: true})

	// List command
	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List audio input devices usable as EEG sources",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := load(cmd); err != nil {
				return err
			}
			options.Command = "list"
			options.TUIMode = false
			return nil
		},
	}
	rootCmd.AddCommand(listCmd)

	pf := rootCmd.PersistentFlags()
	pf.StringVar(&f.configPath, "config", "",
		"Path to config.yaml. Searched in the working directory when empty")

	// Source
	pf.StringVarP(&f.source, "source", "S", config.DefaultSource,
		"Signal source: synthetic, wav, serial or portaudio")
	pf.StringVarP(&f.file, "file", "f", "",
		"WAV recording to replay, one channel per electrode (implies --source wav)")
	pf.StringVar(&f.serialPort, "serial-port", "",
		"Serial device of an EEG board (implies --source serial)")
	pf.IntVar(&f.baud, "baud", config.DefaultBaudRate,
		"Serial baud rate")
	pf.IntVarP(&f.device, "device", "d", config.DefaultDeviceID,
		"PortAudio input device ID. Use 'list' command to see available devices.")

	// Pipeline
	pf.IntVarP(&f.channels, "channels", "c", config.DefaultChannels,
		"Number of electrodes processed, starting at TP9")
	pf.Float64VarP(&f.sampleRate, "sample-rate", "s", config.DefaultSamplingFrequency,
		"Sampling frequency, measured in Hertz (Hz)")
	pf.Float64Var(&f.lowCutoff, "low-cutoff", config.DefaultLowCutoff,
		"Bandpass low cutoff (Hz)")
	pf.Float64Var(&f.highCutoff, "high-cutoff", config.DefaultHighCutoff,
		"Bandpass high cutoff (Hz)")
	pf.BoolVar(&f.noFilter, "no-filter", false,
		"Start with the bandpass filter disabled")

	// Outputs
	pf.BoolVar(&f.noTUI, "no-tui", false,
		"Run headless without the terminal monitor")
	pf.StringVar(&f.wsAddr, "ws-addr", "",
		"Serve the output stream over WebSocket on this address, e.g. :8080")
	pf.BoolVar(&f.udp, "udp", false,
		"Publish channel snapshots over UDP")

	// Debug Configuration
	pf.BoolVarP(&f.verbose, "verbose", "v", false,
		"Show verbose output")

	rootCmd.SetArgs(args)
	if err := rootCmd.Execute(); err != nil {
		return nil, err
	}
	return options, nil
}

// apply copies the flags given on the command line over cfg. Flags left at
// their defaults do not override the config file.
func (f *cliFlags) apply(cmd *cobra.Command, cfg *config.Config) {
	changed := cmd.Flags().Changed

	if changed("file") {
		cfg.Source.File = f.file
		cfg.Source.Kind = device.KindWAV
	}
	if changed("serial-port") {
		cfg.Source.SerialPort = f.serialPort
		cfg.Source.Kind = device.KindSerial
	}
	if changed("source") {
		cfg.Source.Kind = f.source
	}
	if changed("baud") {
		cfg.Source.BaudRate = f.baud
	}
	if changed("device") {
		cfg.Source.Device = f.device
	}

	if changed("channels") {
		cfg.Pipeline.Channels = f.channels
	}
	if changed("sample-rate") {
		cfg.Pipeline.SamplingFrequency = f.sampleRate
	}
	if changed("low-cutoff") {
		cfg.Pipeline.LowCutoff = f.lowCutoff
	}
	if changed("high-cutoff") {
		cfg.Pipeline.HighCutoff = f.highCutoff
	}
	if f.noFilter {
		cfg.Pipeline.FilterEnabled = false
	}

	if changed("ws-addr") {
		cfg.Transport.WSAddress = f.wsAddr
		cfg.Transport.WSEnabled = f.wsAddr != ""
	}
	if f.udp {
		cfg.Transport.UDPEnabled = true
	}
	if f.verbose {
		cfg.Debug = true
		cfg.LogLevel = "debug"
	}
}
