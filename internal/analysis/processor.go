// SPDX-License-Identifier: MIT
/*
Package analysis derives spectral features from the filtered EEG stream.

SpectrumAnalyzer performs windowed FFTs of fixed-size frames. BandPowerProcessor
sits on the pipeline output as a Sink, keeps the most recent samples of every
channel and periodically reports the power in the classic EEG rhythms.
*/
package analysis

// SpectrumProvider gives read access to the latest spectrum of an analyzer.
type SpectrumProvider interface {
	Magnitudes() []float64                // copy of the latest single-sided amplitude spectrum
	FrequencyForBin(binIndex int) float64 // centre frequency (Hz) of a bin
	FFTSize() int
	SampleRate() float64
}
