// SPDX-License-Identifier: MIT
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"runtime"
	"strings"
	"syscall"

	"github.com/google/uuid"

	"eeg/cmd"
	"eeg/internal/analysis"
	"eeg/internal/config"
	"eeg/internal/device"
	"eeg/internal/device/audio"
	"eeg/internal/engine"
	applog "eeg/internal/log"
	"eeg/internal/pipeline"
	"eeg/internal/transport"
	"eeg/internal/transport/udp"
	"eeg/internal/tui"
	"eeg/pkg/build"
)

// main is the entry point of the EEG monitor.
// The program flow is divided into three distinct phases:
//
// 1. Startup Phase (Cold Path):
//   - Initialize build information
//   - Parse the config file and command line
//   - Execute one-off commands if requested
//   - Build the source, the outputs and the engine
//
// 2. Concurrent Phase (Hot Path):
//   - Stream readings through the pipeline
//   - Publish snapshots over UDP and outputs over WebSocket
//   - Run the terminal monitor
//
// 3. Shutdown Phase (Cold Path):
//   - Handle termination signals or the monitor quitting
//   - Stop the engine and close every output
func main() {
	// ==================== STARTUP PHASE (Cold Path) ====================

	// Release builds stamp their information with -ldflags.
	buildErr := build.Initialize()

	// One thread streams readings, one draws and serves clients.
	runtime.GOMAXPROCS(2)

	cfg, err := cmd.ParseArgs(os.Args[1:])
	if err != nil {
		applog.Fatalf("%v", err)
	}
	if cfg == nil {
		return
	}
	configureLogging(cfg)
	if buildErr != nil {
		applog.Debugf("Build: %v, using development build information", buildErr)
	}
	applog.Infof("%s", build.GetBuildFlags())

	// Handle one-off commands (e.g., device listing) that don't stream.
	if cfg.Command != "" {
		if err := executeCommand(cfg.Command); err != nil {
			applog.Fatalf("%v", err)
		}
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	source, err := newSource(cfg)
	if err != nil {
		applog.Fatalf("Source: %v", err)
	}

	session := uuid.New()
	applog.SetSession(session.String())
	pcfg := cfg.PipelineConfig()

	var (
		sinks     pipeline.MultiSink
		display   transport.Transport
		wst       *transport.WebSocketTransport
		batch     *transport.BatchSink
		trace     *tui.Trace
		bandPower *analysis.BandPowerProcessor
	)

	if cfg.Transport.WSEnabled {
		wst, err = transport.NewWebSocketTransport(cfg.Transport.WSAddress, cfg.Transport.WSEncoding,
			transport.NewHello(session.String(), pcfg))
		if err != nil {
			applog.Fatalf("%v", err)
		}
		display = wst
	} else if !cfg.TUIMode {
		display = transport.NewLoggingTransport()
	}
	if display != nil {
		defer display.Close()
		batch = transport.NewBatchSink(display, cfg.Transport.WSBatch)
		sinks = append(sinks, batch)
	}

	if cfg.Analysis.Enabled {
		window, _ := analysis.ParseWindowFunc(cfg.Analysis.Window)
		analyzer, err := analysis.NewSpectrumAnalyzer(cfg.Analysis.FFTSize, pcfg.SamplingFrequency, window)
		if err != nil {
			applog.Fatalf("%v", err)
		}
		bandPower, err = analysis.NewBandPowerProcessor(analyzer, analysis.EEGBands, cfg.Analysis.Hop, display)
		if err != nil {
			applog.Fatalf("%v", err)
		}
		sinks = append(sinks, bandPower)
	}

	if cfg.TUIMode {
		trace = tui.NewTrace(pcfg.Channels, tui.DefaultTraceCapacity)
		sinks = append(sinks, trace)
	}

	eng, err := engine.New(pcfg, source, sinks, engine.WithSession(session))
	if err != nil {
		applog.Fatalf("%v", err)
	}

	var publisher *udp.Publisher
	if cfg.Transport.UDPEnabled {
		sender, err := udp.NewSender(cfg.Transport.UDPTargetAddress)
		if err != nil {
			applog.Fatalf("%v", err)
		}
		publisher, err = udp.NewPublisher(cfg.Transport.UDPSendInterval, sender, eng.Pipeline())
		if err != nil {
			applog.Fatalf("%v", err)
		}
	}

	// ==================== CONCURRENT PHASE (Hot Path) ====================

	if wst != nil {
		wst.Start()
	}
	if publisher != nil {
		publisher.Start()
	}

	engineDone := make(chan error, 1)
	go func() {
		engineDone <- eng.Run(ctx)
	}()

	if cfg.TUIMode {
		var bands tui.BandSource
		if bandPower != nil {
			bands = bandPower
		}
		monitor := tui.NewMonitor(eng, trace, bands, tui.Options{
			Session:        eng.Session(),
			Source:         source.Name(),
			AmplitudeScale: cfg.Display.AmplitudeScale,
			TimeScale:      cfg.Display.TimeScale,
			Refresh:        cfg.Display.Refresh,
		})
		if err := tui.Run(ctx, monitor); err != nil {
			applog.Errorf("Monitor: %v", err)
		}
		cancel()
	} else {
		fmt.Printf("Streaming from %s, session %s. Press Ctrl+C to stop.\n", source.Name(), eng.Session())
	}

	// ==================== SHUTDOWN PHASE (Cold Path) ====================

	err = <-engineDone
	cancel()

	if publisher != nil {
		if err := publisher.Close(); err != nil {
			applog.Errorf("Error closing UDP publisher: %v", err)
		}
	}
	if batch != nil {
		batch.Flush()
	}

	st := eng.Stats()
	applog.Infof("Engine: %d readings, %d resets, %d stalls, %d overflows, %d rejected",
		st.Readings, st.Resets, st.Stalls, st.Overflows, st.Rejected)
	if err != nil && !errors.Is(err, context.Canceled) {
		applog.Fatalf("%v", err)
	}
}

// configureLogging applies the configured level. While the monitor owns the
// terminal, logs go to a file next to the system temp files.
func configureLogging(cfg *config.Config) {
	level, _ := applog.ParseLevel(cfg.LogLevel)
	if cfg.Debug {
		level = applog.LevelDebug
	}
	applog.SetLevel(level)

	if cfg.TUIMode {
		path := filepath.Join(os.TempDir(), build.GetBuildFlags().Name+".log")
		f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
		if err != nil {
			applog.Warnf("Log: Cannot open %s, logging to stderr: %v", path, err)
			return
		}
		applog.SetOutput(f)
	}
}

func newSource(cfg *config.Config) (device.Source, error) {
	if !strings.EqualFold(cfg.Source.Kind, device.KindPortAudio) {
		return device.New(cfg.Source.Kind, cfg.DeviceOptions())
	}
	return audio.NewPortAudioSource(audio.Config{
		DeviceID:        cfg.Source.Device,
		Channels:        cfg.Pipeline.Channels,
		SampleRate:      cfg.Pipeline.SamplingFrequency,
		FramesPerBuffer: cfg.Source.BurstSize,
		Scale:           cfg.Source.Scale,
		LowLatency:      cfg.Source.LowLatency,
	}), nil
}

// executeCommand handles one-off commands that don't stream.
func executeCommand(command string) error {
	switch command {
	case "list":
		if err := audio.Initialize(); err != nil {
			return err
		}
		defer audio.Terminate()
		return audio.ListDevices(os.Stdout)
	default:
		return fmt.Errorf("unknown command %q", command)
	}
}
