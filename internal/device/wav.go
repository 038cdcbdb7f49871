// SPDX-License-Identifier: MIT
package device

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"

	applog "eeg/internal/log"
	"eeg/internal/pipeline"
)

// WAVConfig describes how a recording is replayed.
type WAVConfig struct {
	Path      string
	BurstSize int     // samples per reading
	Scale     float64 // microvolts per PCM count, 1 when zero
	Offset    float64 // subtracted from each PCM count before scaling
	Realtime  bool    // pace bursts at the file's sample rate
}

// WAVSource replays a multi-channel WAV file, one channel per electrode.
// Files are read, never written.
type WAVSource struct {
	cfg WAVConfig
}

var _ Source = (*WAVSource)(nil)

func NewWAVSource(cfg WAVConfig) *WAVSource {
	if cfg.BurstSize <= 0 {
		cfg.BurstSize = DefaultBurstSize
	}
	if cfg.Scale == 0 {
		cfg.Scale = 1
	}
	return &WAVSource{cfg: cfg}
}

func (s *WAVSource) Name() string { return "wav" }

// Recording is a decoded WAV file split by channel.
type Recording struct {
	SampleRate int
	BitDepth   int
	Channels   [][]float64
}

// ReadRecording decodes the whole file and de-interleaves it.
func ReadRecording(path string, scale, offset float64) (*Recording, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open recording: %w", err)
	}
	defer f.Close()

	d := wav.NewDecoder(f)
	if !d.IsValidFile() {
		return nil, fmt.Errorf("%s is not a valid WAV file", path)
	}
	buf, err := d.FullPCMBuffer()
	if err != nil {
		return nil, fmt.Errorf("failed to decode recording: %w", err)
	}
	return splitChannels(buf, scale, offset), nil
}

func splitChannels(buf *audio.IntBuffer, scale, offset float64) *Recording {
	n := buf.Format.NumChannels
	frames := len(buf.Data) / n
	rec := &Recording{
		SampleRate: buf.Format.SampleRate,
		BitDepth:   buf.SourceBitDepth,
		Channels:   make([][]float64, n),
	}
	for c := range rec.Channels {
		rec.Channels[c] = make([]float64, frames)
	}
	for i := range frames {
		for c := range n {
			rec.Channels[c][i] = (float64(buf.Data[i*n+c]) - offset) * scale
		}
	}
	return rec
}

// Subscribe decodes the file up front and replays it on a new goroutine.
func (s *WAVSource) Subscribe(ctx context.Context) (Subscription, error) {
	rec, err := ReadRecording(s.cfg.Path, s.cfg.Scale, s.cfg.Offset)
	if err != nil {
		return nil, err
	}
	applog.Infof("WAVSource: Replaying %s (%d channels, %d Hz, %d-bit, %d frames)",
		s.cfg.Path, len(rec.Channels), rec.SampleRate, rec.BitDepth, len(rec.Channels[0]))

	f := NewFeed(ctx, 4*len(rec.Channels))
	go s.replay(f, rec)
	return f, nil
}

func (s *WAVSource) replay(f *Feed, rec *Recording) {
	burst := s.cfg.BurstSize
	period := 1000 * float64(burst) / float64(rec.SampleRate)

	if !f.SetConnected(true) {
		f.Finish(nil)
		return
	}

	var ticker *time.Ticker
	if s.cfg.Realtime {
		ticker = time.NewTicker(time.Duration(period * float64(time.Millisecond)))
		defer ticker.Stop()
	}

	frames := len(rec.Channels[0])
	for start, k := 0, 0; start < frames; start, k = start+burst, k+1 {
		if ticker != nil {
			select {
			case <-ticker.C:
			case <-f.Context().Done():
				f.Finish(nil)
				return
			}
		}
		end := min(start+burst, frames)
		for e, ch := range rec.Channels {
			r := pipeline.RawReading{
				Electrode: e,
				Timestamp: float64(k) * period,
				Samples:   ch[start:end],
			}
			if !f.SendReading(r) {
				f.Finish(nil)
				return
			}
		}
	}

	applog.Infof("WAVSource: End of recording %s", s.cfg.Path)
	f.SetConnected(false)
	f.Finish(nil)
}
