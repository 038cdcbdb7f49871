// SPDX-License-Identifier: MIT
package device

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/tarm/serial"

	applog "eeg/internal/log"
	"eeg/internal/pipeline"
)

// ErrMalformedLine is returned by ParseLine for lines that are not bursts.
var ErrMalformedLine = errors.New("malformed reading line")

// openPort is swapped out in tests.
var openPort = func(name string, baud int) (io.ReadCloser, error) {
	return serial.OpenPort(&serial.Config{Name: name, Baud: baud})
}

// SerialConfig selects the port of a serial-attached board.
type SerialConfig struct {
	Port     string
	BaudRate int
}

// SerialSource reads one burst per line from a serial port:
//
//	<electrode>,<timestamp_ms>,<s1>,<s2>,...
//
// A board may interleave "battery,<percent>" telemetry lines. Blank lines and
// lines starting with '#' are skipped. Malformed lines are logged and
// skipped.
type SerialSource struct {
	cfg SerialConfig
}

var _ Source = (*SerialSource)(nil)

func NewSerialSource(cfg SerialConfig) *SerialSource {
	if cfg.BaudRate <= 0 {
		cfg.BaudRate = 115200
	}
	return &SerialSource{cfg: cfg}
}

func (s *SerialSource) Name() string { return "serial" }

// Subscribe opens the port and starts reading lines.
func (s *SerialSource) Subscribe(ctx context.Context) (Subscription, error) {
	port, err := openPort(s.cfg.Port, s.cfg.BaudRate)
	if err != nil {
		return nil, fmt.Errorf("failed to open serial port %s: %w", s.cfg.Port, err)
	}
	applog.Infof("SerialSource: Connected to %s at %d baud", s.cfg.Port, s.cfg.BaudRate)

	f := NewFeed(ctx, 64)

	// Closing the port is the only way to unblock a pending Read.
	go func() {
		<-f.Context().Done()
		port.Close()
	}()
	go func() {
		f.Finish(streamLines(f, port))
	}()
	return f, nil
}

// streamLines parses r line by line into f until EOF or cancellation.
func streamLines(f *Feed, r io.Reader) error {
	if !f.SetConnected(true) {
		return nil
	}

	sc := bufio.NewScanner(r)
	line := 0
	for sc.Scan() {
		line++
		text := strings.TrimSpace(sc.Text())
		if text == "" || strings.HasPrefix(text, "#") {
			continue
		}
		if level, ok, err := parseBattery(text); ok {
			if err != nil {
				applog.Warnf("SerialSource: Skipping line %d: %v", line, err)
			} else if !f.SetBattery(level) {
				return nil
			}
			continue
		}
		reading, err := ParseLine(text)
		if err != nil {
			applog.Warnf("SerialSource: Skipping line %d: %v", line, err)
			continue
		}
		if !f.SendReading(reading) {
			return nil
		}
	}

	err := sc.Err()
	if f.Context().Err() != nil {
		// Read errors after cancellation come from closing the port.
		err = nil
	}
	f.SetConnected(false)
	return err
}

// parseBattery decodes "battery,<percent>". ok reports whether line is a
// battery line at all.
func parseBattery(line string) (percent float64, ok bool, err error) {
	name, value, found := strings.Cut(line, ",")
	if !found || !strings.EqualFold(strings.TrimSpace(name), "battery") {
		return 0, false, nil
	}
	percent, err = strconv.ParseFloat(strings.TrimSpace(value), 64)
	if err != nil || percent < 0 || percent > 100 {
		return 0, true, fmt.Errorf("%w: battery level %q", ErrMalformedLine, value)
	}
	return percent, true, nil
}

// ParseLine decodes "<electrode>,<timestamp_ms>,<s1>,<s2>,...". Sample fields
// may be "NaN".
func ParseLine(line string) (pipeline.RawReading, error) {
	fields := strings.Split(line, ",")
	if len(fields) < 3 {
		return pipeline.RawReading{}, fmt.Errorf("%w: want electrode, timestamp and samples, got %d fields",
			ErrMalformedLine, len(fields))
	}

	electrode, err := strconv.Atoi(strings.TrimSpace(fields[0]))
	if err != nil {
		return pipeline.RawReading{}, fmt.Errorf("%w: electrode: %v", ErrMalformedLine, err)
	}
	ts, err := strconv.ParseFloat(strings.TrimSpace(fields[1]), 64)
	if err != nil {
		return pipeline.RawReading{}, fmt.Errorf("%w: timestamp: %v", ErrMalformedLine, err)
	}

	samples := make([]float64, len(fields)-2)
	for i, field := range fields[2:] {
		v, err := strconv.ParseFloat(strings.TrimSpace(field), 64)
		if err != nil {
			return pipeline.RawReading{}, fmt.Errorf("%w: sample %d: %v", ErrMalformedLine, i, err)
		}
		samples[i] = v
	}

	return pipeline.RawReading{Electrode: electrode, Timestamp: ts, Samples: samples}, nil
}
