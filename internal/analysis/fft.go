// SPDX-License-Identifier: MIT
package analysis

import (
	"fmt"
	"math/cmplx"
	"strings"
	"sync"

	"gonum.org/v1/gonum/dsp/fourier"
	"gonum.org/v1/gonum/dsp/window"

	applog "eeg/internal/log"
	"eeg/pkg/bitint"
)

// WindowFunc selects the analysis window.
type WindowFunc int

const (
	BartlettHann WindowFunc = iota
	Blackman
	BlackmanNuttall
	Hann
	Hamming
	Lanczos
	Nuttall
)

var windowNames = map[WindowFunc]string{
	BartlettHann:    "bartletthann",
	Blackman:        "blackman",
	BlackmanNuttall: "blackmannuttall",
	Hann:            "hann",
	Hamming:         "hamming",
	Lanczos:         "lanczos",
	Nuttall:         "nuttall",
}

func (w WindowFunc) String() string {
	if name, ok := windowNames[w]; ok {
		return name
	}
	return fmt.Sprintf("window(%d)", int(w))
}

// ParseWindowFunc converts a name (case-insensitive) to a WindowFunc. Unknown
// names return Hann and an error.
func ParseWindowFunc(name string) (WindowFunc, error) {
	n := strings.ToLower(name)
	if n == "hanning" {
		return Hann, nil
	}
	for w, wn := range windowNames {
		if wn == n {
			return w, nil
		}
	}
	return Hann, fmt.Errorf("unknown FFT window function name: '%s'", name)
}

// applyWindow fills coeffs with the window's coefficients.
func applyWindow(coeffs []float64, w WindowFunc) {
	for i := range coeffs {
		coeffs[i] = 1.0
	}
	switch w {
	case BartlettHann:
		window.BartlettHann(coeffs)
	case Blackman:
		window.Blackman(coeffs)
	case BlackmanNuttall:
		window.BlackmanNuttall(coeffs)
	case Hamming:
		window.Hamming(coeffs)
	case Lanczos:
		window.Lanczos(coeffs)
	case Nuttall:
		window.Nuttall(coeffs)
	default:
		window.Hann(coeffs)
	}
}

type fftWorkspace struct {
	input     []float64
	fftOutput []complex128
	magnitude []float64
	window    []float64
	mu        sync.RWMutex // Protects magnitude
}

// SpectrumAnalyzer computes the amplitude spectrum of fixed-size frames. The
// spectrum is scaled so that a sine of amplitude A centred on a bin reads A.
type SpectrumAnalyzer struct {
	fft        *fourier.FFT
	fftSize    int
	sampleRate float64
	windowType WindowFunc
	scale      float64
	workspace  fftWorkspace
}

var _ SpectrumProvider = (*SpectrumAnalyzer)(nil)

// NewSpectrumAnalyzer needs a power-of-two size.
func NewSpectrumAnalyzer(fftSize int, sampleRate float64, w WindowFunc) (*SpectrumAnalyzer, error) {
	if !bitint.IsPowerOfTwo(fftSize) {
		return nil, fmt.Errorf("fft size must be a power of 2, got %d", fftSize)
	}
	if sampleRate <= 0 {
		return nil, fmt.Errorf("sample rate must be positive, got %f", sampleRate)
	}

	coeffs := make([]float64, fftSize)
	applyWindow(coeffs, w)
	var sum float64
	for _, c := range coeffs {
		sum += c
	}

	bins := fftSize/2 + 1
	applog.Debugf("Analysis: Initializing SpectrumAnalyzer (Size: %d, SampleRate: %.1f Hz, Window: %v)",
		fftSize, sampleRate, w)

	return &SpectrumAnalyzer{
		fft:        fourier.NewFFT(fftSize),
		fftSize:    fftSize,
		sampleRate: sampleRate,
		windowType: w,
		scale:      2 / sum,
		workspace: fftWorkspace{
			input:     make([]float64, fftSize),
			fftOutput: make([]complex128, bins),
			magnitude: make([]float64, bins),
			window:    coeffs,
		},
	}, nil
}

// Analyze windows frame, zero-padding a short frame, and updates the
// spectrum.
func (a *SpectrumAnalyzer) Analyze(frame []float64) {
	a.workspace.mu.Lock()
	defer a.workspace.mu.Unlock()

	for i := range a.fftSize {
		if i < len(frame) {
			a.workspace.input[i] = frame[i] * a.workspace.window[i]
		} else {
			a.workspace.input[i] = 0
		}
	}
	a.fft.Coefficients(a.workspace.fftOutput, a.workspace.input)
	for i, c := range a.workspace.fftOutput {
		a.workspace.magnitude[i] = cmplx.Abs(c) * a.scale
	}
	// DC carries no factor of two in a single-sided spectrum.
	a.workspace.magnitude[0] /= 2
}

// Magnitudes returns a copy of the latest spectrum.
func (a *SpectrumAnalyzer) Magnitudes() []float64 {
	a.workspace.mu.RLock()
	defer a.workspace.mu.RUnlock()
	out := make([]float64, len(a.workspace.magnitude))
	copy(out, a.workspace.magnitude)
	return out
}

// MagnitudesInto copies the latest spectrum into dest, which must have
// FFTSize()/2+1 elements.
func (a *SpectrumAnalyzer) MagnitudesInto(dest []float64) error {
	a.workspace.mu.RLock()
	defer a.workspace.mu.RUnlock()
	if len(dest) != len(a.workspace.magnitude) {
		return fmt.Errorf("destination slice length %d does not match required length %d",
			len(dest), len(a.workspace.magnitude))
	}
	copy(dest, a.workspace.magnitude)
	return nil
}

func (a *SpectrumAnalyzer) FrequencyForBin(binIndex int) float64 {
	if binIndex < 0 || binIndex >= len(a.workspace.fftOutput) {
		return 0
	}
	return float64(binIndex) * a.sampleRate / float64(a.fftSize)
}

func (a *SpectrumAnalyzer) FFTSize() int        { return a.fftSize }
func (a *SpectrumAnalyzer) SampleRate() float64 { return a.sampleRate }
func (a *SpectrumAnalyzer) Window() WindowFunc  { return a.windowType }
