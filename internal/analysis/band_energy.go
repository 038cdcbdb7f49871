// SPDX-License-Identifier: MIT
package analysis

import (
	"fmt"
	"sync"

	applog "eeg/internal/log"
	"eeg/internal/pipeline"
	"eeg/internal/transport"
)

// FrequencyBand is a named frequency range, [LowHz, HighHz).
type FrequencyBand struct {
	Name   string
	LowHz  float64
	HighHz float64
}

// EEGBands are the classic rhythms inside the default 1-30 Hz passband.
var EEGBands = []FrequencyBand{
	{Name: "delta", LowHz: 1, HighHz: 4},
	{Name: "theta", LowHz: 4, HighHz: 8},
	{Name: "alpha", LowHz: 8, HighHz: 13},
	{Name: "beta", LowHz: 13, HighHz: 30},
}

// BandPower is one analysis result for a channel. Power is the mean squared
// amplitude of the bins inside each band; Relative is each band's share of
// the summed band powers.
type BandPower struct {
	Type      string             `json:"type" msgpack:"type"`
	Electrode int                `json:"ch" msgpack:"ch"`
	Name      string             `json:"name" msgpack:"name"`
	Timestamp float64            `json:"t" msgpack:"t"`
	Power     map[string]float64 `json:"power" msgpack:"power"`
	Relative  map[string]float64 `json:"relative" msgpack:"relative"`
}

// Dominant returns the band with the largest power.
func (b BandPower) Dominant() string {
	best, name := -1.0, ""
	for n, p := range b.Power {
		if p > best || (p == best && n < name) {
			best, name = p, n
		}
	}
	return name
}

type channelWindow struct {
	ring  []float64
	next  int
	count int // samples seen since last reset
	frame []float64
}

// BandPowerProcessor is a pipeline.Sink that analyses the last FFT-size
// samples of every channel each hop samples.
type BandPowerProcessor struct {
	analyzer  *SpectrumAnalyzer
	bands     []FrequencyBand
	hop       int
	transport transport.Transport

	mu       sync.Mutex
	channels map[int]*channelWindow
	latest   map[int]BandPower
	mags     []float64
}

var _ pipeline.Sink = (*BandPowerProcessor)(nil)

// NewBandPowerProcessor analyses with a, reporting bands every hop samples.
// t may be nil.
func NewBandPowerProcessor(a *SpectrumAnalyzer, bands []FrequencyBand, hop int, t transport.Transport) (*BandPowerProcessor, error) {
	if a == nil {
		return nil, fmt.Errorf("BandPowerProcessor requires a spectrum analyzer")
	}
	if hop <= 0 || hop > a.FFTSize() {
		return nil, fmt.Errorf("hop must be in 1..%d, got %d", a.FFTSize(), hop)
	}
	if len(bands) == 0 {
		bands = EEGBands
	}
	nyquist := a.SampleRate() / 2
	for _, b := range bands {
		if b.LowHz < 0 || b.HighHz <= b.LowHz || b.LowHz >= nyquist {
			return nil, fmt.Errorf("invalid band %s: %g-%g Hz", b.Name, b.LowHz, b.HighHz)
		}
	}

	applog.Infof("Analysis: Initializing BandPowerProcessor with %d bands (FFT %d, hop %d)",
		len(bands), a.FFTSize(), hop)
	return &BandPowerProcessor{
		analyzer:  a,
		bands:     bands,
		hop:       hop,
		transport: t,
		channels:  make(map[int]*channelWindow),
		latest:    make(map[int]BandPower),
		mags:      make([]float64, a.FFTSize()/2+1),
	}, nil
}

// Push records o and runs the analysis when its channel completes a hop
// with a full window.
func (p *BandPowerProcessor) Push(o pipeline.Output) {
	p.mu.Lock()
	w, ok := p.channels[o.Electrode]
	if !ok {
		n := p.analyzer.FFTSize()
		w = &channelWindow{ring: make([]float64, n), frame: make([]float64, n)}
		p.channels[o.Electrode] = w
	}

	w.ring[w.next] = o.Amplitude
	w.next = (w.next + 1) % len(w.ring)
	w.count++
	if w.count < len(w.ring) || (w.count-len(w.ring))%p.hop != 0 {
		p.mu.Unlock()
		return
	}

	// Oldest sample first.
	n := copy(w.frame, w.ring[w.next:])
	copy(w.frame[n:], w.ring[:w.next])
	result := p.analyse(o, w.frame)
	p.latest[o.Electrode] = result
	p.mu.Unlock()

	if p.transport != nil {
		if err := p.transport.Send(result); err != nil {
			applog.Warnf("BandPowerProcessor: Error sending band power: %v", err)
		}
	}
}

func (p *BandPowerProcessor) analyse(o pipeline.Output, frame []float64) BandPower {
	p.analyzer.Analyze(frame)
	p.analyzer.MagnitudesInto(p.mags)

	result := BandPower{
		Type:      transport.TypeBandPower,
		Electrode: o.Electrode,
		Name:      pipeline.ElectrodeName(o.Electrode),
		Timestamp: o.Timestamp,
		Power:     make(map[string]float64, len(p.bands)),
		Relative:  make(map[string]float64, len(p.bands)),
	}

	var total float64
	for _, b := range p.bands {
		var sum float64
		var bins int
		for i, m := range p.mags {
			f := p.analyzer.FrequencyForBin(i)
			if f >= b.LowHz && f < b.HighHz {
				sum += m * m
				bins++
			}
		}
		var power float64
		if bins > 0 {
			power = sum / float64(bins)
		}
		result.Power[b.Name] = power
		total += power
	}
	for name, power := range result.Power {
		if total > 0 {
			result.Relative[name] = power / total
		} else {
			result.Relative[name] = 0
		}
	}
	return result
}

// Latest returns the most recent result for electrode ch.
func (p *BandPowerProcessor) Latest(ch int) (BandPower, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	bp, ok := p.latest[ch]
	return bp, ok
}

// Reset drops every channel's window, as after a pipeline reset.
func (p *BandPowerProcessor) Reset() {
	p.mu.Lock()
	defer p.mu.Unlock()
	clear(p.channels)
	clear(p.latest)
}

// Bands returns the configured bands.
func (p *BandPowerProcessor) Bands() []FrequencyBand { return p.bands }
