// SPDX-License-Identifier: MIT
package transport

import (
	"sync/atomic"

	applog "eeg/internal/log"
	"eeg/internal/pipeline"
)

// LoggingTransport logs a one-line summary of each message at debug level.
// It stands in for a display when running headless.
type LoggingTransport struct {
	sent atomic.Uint64
}

func NewLoggingTransport() *LoggingTransport {
	applog.Infof("Transport: Using LoggingTransport")
	return &LoggingTransport{}
}

func (lt *LoggingTransport) Send(data any) error {
	n := lt.sent.Add(1)
	if !applog.Enabled(applog.LevelDebug) {
		return nil
	}
	switch m := data.(type) {
	case Samples:
		if len(m.Outputs) > 0 {
			last := m.Outputs[len(m.Outputs)-1]
			applog.Debugf("LoggingTransport: #%d %d outputs, last t=%.1fms %s amp=%.2f mean=%.2f rms=%.2f",
				n, len(m.Outputs), last.Timestamp, pipeline.ElectrodeName(last.Electrode), last.Amplitude, last.Mean, last.RMS)
		}
	default:
		applog.Debugf("LoggingTransport: #%d %T %+v", n, data, data)
	}
	return nil
}

// Sent returns the number of messages received.
func (lt *LoggingTransport) Sent() uint64 { return lt.sent.Load() }

func (lt *LoggingTransport) Close() error {
	applog.Debugf("LoggingTransport: Closed after %d messages", lt.sent.Load())
	return nil
}

var _ Transport = (*LoggingTransport)(nil)
