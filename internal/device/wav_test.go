// SPDX-License-Identifier: MIT
package device

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"
)

// writeWAV stores frames (one row per frame) as 16-bit PCM.
func writeWAV(t *testing.T, sampleRate int, frames [][]int) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "session.wav")
	f, err := os.Create(path)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()

	channels := len(frames[0])
	enc := wav.NewEncoder(f, sampleRate, 16, channels, 1)
	buf := &audio.IntBuffer{
		Format:         &audio.Format{NumChannels: channels, SampleRate: sampleRate},
		SourceBitDepth: 16,
	}
	for _, frame := range frames {
		buf.Data = append(buf.Data, frame...)
	}
	if err := enc.Write(buf); err != nil {
		t.Fatalf("failed to write samples: %v", err)
	}
	if err := enc.Close(); err != nil {
		t.Fatalf("failed to close encoder: %v", err)
	}
	return path
}

func TestReadRecording(t *testing.T) {
	frames := make([][]int, 30)
	for i := range frames {
		frames[i] = []int{i, -i, 1000 + i}
	}
	path := writeWAV(t, 256, frames)

	rec, err := ReadRecording(path, 0.5, 0)
	if err != nil {
		t.Fatal(err)
	}
	if rec.SampleRate != 256 || rec.BitDepth != 16 {
		t.Errorf("format = %d Hz %d-bit, want 256 Hz 16-bit", rec.SampleRate, rec.BitDepth)
	}
	if len(rec.Channels) != 3 {
		t.Fatalf("got %d channels, want 3", len(rec.Channels))
	}
	for i := range frames {
		want := []float64{float64(i) / 2, float64(-i) / 2, float64(1000+i) / 2}
		for c := range 3 {
			if got := rec.Channels[c][i]; got != want[c] {
				t.Fatalf("channel %d frame %d = %g, want %g", c, i, got, want[c])
			}
		}
	}
}

func TestReadRecordingRejectsGarbage(t *testing.T) {
	path := filepath.Join(t.TempDir(), "notes.wav")
	if err := os.WriteFile(path, []byte("not a riff file at all"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := ReadRecording(path, 1, 0); err == nil {
		t.Error("expected error for invalid WAV")
	}
	if _, err := ReadRecording(filepath.Join(t.TempDir(), "missing.wav"), 1, 0); err == nil {
		t.Error("expected error for missing file")
	}
}

func TestWAVSourceReplay(t *testing.T) {
	frames := make([][]int, 30)
	for i := range frames {
		frames[i] = []int{i, 100 + i}
	}
	path := writeWAV(t, 256, frames)

	src := NewWAVSource(WAVConfig{Path: path, Offset: 10})
	sub, err := src.Subscribe(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	readings, status := drain(t, sub)

	if len(status) != 2 || !status[0] || status[1] {
		t.Errorf("connectivity = %v, want [true false]", status)
	}
	// 30 frames in bursts of 12: 12, 12, 6 for each of 2 channels.
	if len(readings) != 6 {
		t.Fatalf("got %d readings, want 6", len(readings))
	}

	next := map[int]int{}
	for _, r := range readings {
		start := next[r.Electrode]
		for i, v := range r.Samples {
			want := float64(100*r.Electrode+start+i) - 10
			if v != want {
				t.Fatalf("electrode %d sample %d = %g, want %g", r.Electrode, start+i, v, want)
			}
		}
		if want := 1000 * float64(start) / 256; r.Timestamp != want {
			t.Errorf("electrode %d burst at %d timestamp = %g, want %g", r.Electrode, start, r.Timestamp, want)
		}
		next[r.Electrode] = start + len(r.Samples)
	}
	if next[0] != 30 || next[1] != 30 {
		t.Errorf("replayed %v samples, want 30 per channel", next)
	}
}
