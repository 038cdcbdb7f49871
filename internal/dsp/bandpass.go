// SPDX-License-Identifier: MIT
/*
Package dsp implements the per-channel signal conditioning used by the EEG
pipeline:
- Causal FIR bandpass filtering with a circular delay line
- Exponentially weighted running mean and RMS

Every type in this package is single-owner state. Instances are never shared
across channels and are not safe for concurrent use.
*/
package dsp

import (
	"errors"
	"fmt"
	"math"
	"math/cmplx"

	"gonum.org/v1/gonum/dsp/window"
)

// DefaultTaps is the number of FIR coefficients (filter order + 1).
const DefaultTaps = 101

// ErrInvalidParameters is returned when a filter cannot be designed from the
// requested sampling frequency, cutoffs or length.
var ErrInvalidParameters = errors.New("invalid filter parameters")

// Bandpass is a causal FIR bandpass filter for a single channel.
type Bandpass struct {
	coeffs []float64
	delay  []float64 // last len(coeffs) inputs, newest at pos
	pos    int

	samplingFrequency float64
}

var _ Transform = (*Bandpass)(nil)

// ValidateBandpass reports whether a bandpass with the given parameters can be
// designed. The returned error wraps ErrInvalidParameters.
func ValidateBandpass(samplingFrequency, lowCutoff, highCutoff float64, taps int) error {
	for _, v := range []float64{samplingFrequency, lowCutoff, highCutoff} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return fmt.Errorf("%w: non-finite parameter", ErrInvalidParameters)
		}
	}
	nyquist := samplingFrequency / 2
	switch {
	case samplingFrequency <= 0:
		return fmt.Errorf("%w: sampling frequency must be positive, got %g", ErrInvalidParameters, samplingFrequency)
	case taps < 3:
		return fmt.Errorf("%w: need at least 3 taps, got %d", ErrInvalidParameters, taps)
	case lowCutoff <= 0 || highCutoff <= 0:
		return fmt.Errorf("%w: cutoffs must be positive, got %g-%g Hz", ErrInvalidParameters, lowCutoff, highCutoff)
	case lowCutoff >= highCutoff:
		return fmt.Errorf("%w: low cutoff %g Hz must be below high cutoff %g Hz", ErrInvalidParameters, lowCutoff, highCutoff)
	case highCutoff >= nyquist:
		return fmt.Errorf("%w: high cutoff %g Hz must be below Nyquist %g Hz", ErrInvalidParameters, highCutoff, nyquist)
	}
	return nil
}

// DesignBandpass returns the coefficients of a Hamming-windowed sinc bandpass.
//
// The band is the difference of two lowpass prototypes, each normalized to
// unit DC gain, so the design rejects DC exactly. The result is then scaled to
// unit gain at the centre of the passband.
func DesignBandpass(samplingFrequency, lowCutoff, highCutoff float64, taps int) ([]float64, error) {
	if err := ValidateBandpass(samplingFrequency, lowCutoff, highCutoff, taps); err != nil {
		return nil, err
	}

	high := lowpassKernel(highCutoff/samplingFrequency, taps)
	low := lowpassKernel(lowCutoff/samplingFrequency, taps)

	coeffs := make([]float64, taps)
	for i := range coeffs {
		coeffs[i] = high[i] - low[i]
	}

	centre := (lowCutoff + highCutoff) / 2
	g := cmplx.Abs(response(coeffs, centre, samplingFrequency))
	if g == 0 {
		return nil, fmt.Errorf("%w: zero gain at band centre %g Hz", ErrInvalidParameters, centre)
	}
	for i := range coeffs {
		coeffs[i] /= g
	}
	return coeffs, nil
}

// lowpassKernel builds a windowed sinc lowpass with normalized cutoff fc
// (cycles per sample) and unit DC gain.
func lowpassKernel(fc float64, taps int) []float64 {
	h := make([]float64, taps)
	mid := float64(taps-1) / 2
	for i := range h {
		x := float64(i) - mid
		if x == 0 {
			h[i] = 2 * fc
			continue
		}
		h[i] = math.Sin(2*math.Pi*fc*x) / (math.Pi * x)
	}
	window.Hamming(h)

	var dc float64
	for _, v := range h {
		dc += v
	}
	for i := range h {
		h[i] /= dc
	}
	return h
}

// NewBandpass designs a filter and allocates its delay line.
func NewBandpass(samplingFrequency, lowCutoff, highCutoff float64, taps int) (*Bandpass, error) {
	coeffs, err := DesignBandpass(samplingFrequency, lowCutoff, highCutoff, taps)
	if err != nil {
		return nil, err
	}
	return &Bandpass{
		coeffs:            coeffs,
		delay:             make([]float64, taps),
		samplingFrequency: samplingFrequency,
	}, nil
}

// Next pushes x into the delay line and returns the filtered sample.
//
//	y[n] = sum_{k=0}^{N-1} h[k] * x[n-k]
//
// Missing history during warm-up is zero.
func (f *Bandpass) Next(x float64) float64 {
	f.delay[f.pos] = x
	n := len(f.coeffs)
	p := f.pos
	var y float64
	for k := range n {
		y += f.coeffs[k] * f.delay[p]
		p--
		if p < 0 {
			p = n - 1
		}
	}
	f.pos++
	if f.pos == n {
		f.pos = 0
	}
	return y
}

// Reset zeroes the delay line.
func (f *Bandpass) Reset() {
	clear(f.delay)
	f.pos = 0
}

// Taps returns the number of coefficients.
func (f *Bandpass) Taps() int {
	return len(f.coeffs)
}

// Coefficients returns a copy of the impulse response.
func (f *Bandpass) Coefficients() []float64 {
	c := make([]float64, len(f.coeffs))
	copy(c, f.coeffs)
	return c
}

// Response returns the complex frequency response at freq Hz.
func (f *Bandpass) Response(freq float64) complex128 {
	return response(f.coeffs, freq, f.samplingFrequency)
}

// Gain returns the magnitude response at freq Hz.
func (f *Bandpass) Gain(freq float64) float64 {
	return cmplx.Abs(f.Response(freq))
}

func response(coeffs []float64, freq, samplingFrequency float64) complex128 {
	w := 2 * math.Pi * freq / samplingFrequency
	var h complex128
	for k, c := range coeffs {
		h += complex(c, 0) * cmplx.Exp(complex(0, -w*float64(k)))
	}
	return h
}
