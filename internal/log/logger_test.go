// SPDX-License-Identifier: MIT
package log

import (
	"bytes"
	"os"
	"strings"
	"testing"
)

func captureOutput(t *testing.T) *bytes.Buffer {
	t.Helper()
	var buf bytes.Buffer
	prev := GetLevel()
	SetOutput(&buf)
	t.Cleanup(func() {
		SetOutput(os.Stderr)
		SetLevel(prev)
	})
	return &buf
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in     string
		want   LogLevel
		wantOK bool
	}{
		{"debug", LevelDebug, true},
		{"INFO", LevelInfo, true},
		{"warning", LevelWarn, true},
		{"Error", LevelError, true},
		{"fatal", LevelFatal, true},
		{"verbose", LevelInfo, false},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, ok := ParseLevel(tt.in)
			if got != tt.want || ok != tt.wantOK {
				t.Errorf("ParseLevel(%q) = %v, %v; want %v, %v", tt.in, got, ok, tt.want, tt.wantOK)
			}
		})
	}
}

func TestLevelFiltering(t *testing.T) {
	buf := captureOutput(t)
	SetLevel(LevelWarn)

	Debugf("Engine: %d readings", 3)
	Infof("Engine: started")
	Warnf("Engine: stream stalled on %s", "AF7")
	Error("Engine: source failed")

	out := buf.String()
	if strings.Contains(out, "readings") || strings.Contains(out, "started") {
		t.Errorf("messages below WARN were logged:\n%s", out)
	}
	if !strings.Contains(out, "[WARN]  Engine: stream stalled on AF7") {
		t.Errorf("missing warning:\n%s", out)
	}
	if !strings.Contains(out, "[ERROR] Engine: source failed") {
		t.Errorf("missing error:\n%s", out)
	}
}

func TestSessionTag(t *testing.T) {
	buf := captureOutput(t)
	t.Cleanup(func() { SetSession("") })

	SetSession("1b4e28ba-2fa1-11d2-883f-0016d3cca427")
	Infof("Engine: started")
	SetSession("")
	Infof("Engine: stopped")

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 2 {
		t.Fatalf("got %d lines:\n%s", len(lines), buf.String())
	}
	if !strings.HasPrefix(lines[0], "[1b4e28ba] ") {
		t.Errorf("line %q is not tagged with the session", lines[0])
	}
	if strings.HasPrefix(lines[1], "[") {
		t.Errorf("line %q still carries a session tag", lines[1])
	}
}

func TestEnabled(t *testing.T) {
	captureOutput(t)
	SetLevel(LevelInfo)
	if Enabled(LevelDebug) {
		t.Error("Enabled(DEBUG) at INFO level")
	}
	if !Enabled(LevelWarn) || !Enabled(LevelInfo) {
		t.Error("Enabled reports false for levels at or above INFO")
	}
}

func TestLevelString(t *testing.T) {
	if got := LogLevel(42).String(); got != "UNKNOWN" {
		t.Errorf("String() = %q, want UNKNOWN", got)
	}
	if got := LevelDebug.String(); got != "DEBUG" {
		t.Errorf("String() = %q, want DEBUG", got)
	}
}
