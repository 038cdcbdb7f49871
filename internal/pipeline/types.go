// SPDX-License-Identifier: MIT
/*
Package pipeline turns interleaved per-electrode EEG readings into per-channel
filtered amplitudes with running signal-strength statistics.

Data flow:

	RawReading -> Demultiplexer -> SampleSet -> Router -> ChannelStream x N
	           -> (Bandpass -> RunningStats) per channel -> Output -> Sink

All stages are synchronous. A Pipeline call returns once every Output derived
from the reading has been pushed to the sink.
*/
package pipeline

import "fmt"

// ElectrodeNames lists the electrode identifiers of the headset in device
// order. Only the first N (the configured channel count) are processed.
var ElectrodeNames = []string{"TP9", "AF7", "AF8", "TP10", "AUX"}

// ElectrodeName returns the name for an electrode index.
func ElectrodeName(i int) string {
	if i >= 0 && i < len(ElectrodeNames) {
		return ElectrodeNames[i]
	}
	return fmt.Sprintf("CH%d", i)
}

// RawReading is one notification from the device: a short burst of samples
// for a single electrode. Timestamp is in milliseconds and belongs to the
// first sample of the burst.
type RawReading struct {
	Electrode int
	Timestamp float64
	Samples   []float64
}

// SampleSet holds one aligned value per active electrode.
type SampleSet struct {
	Timestamp float64
	Values    []float64
}

// ChannelSample is a single element of one channel's stream.
type ChannelSample struct {
	Channel   int
	Timestamp float64
	Value     float64
}

// Output is the per-sample artifact delivered to the host.
type Output struct {
	Timestamp float64 `json:"t" msgpack:"t"`
	Electrode int     `json:"ch" msgpack:"ch"`
	Amplitude float64 `json:"amp" msgpack:"amp"`
	Mean      float64 `json:"mean" msgpack:"mean"`
	RMS       float64 `json:"rms" msgpack:"rms"`
}
