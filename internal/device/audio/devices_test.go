// SPDX-License-Identifier: MIT
package audio

import (
	"bytes"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/gordonklaus/portaudio"
)

var mockDevices = []*portaudio.DeviceInfo{
	{Name: "Speakers", MaxOutputChannels: 2, DefaultSampleRate: 48000},
	{
		Name:                    "EEG Frontend",
		MaxInputChannels:        8,
		DefaultSampleRate:       256,
		DefaultLowInputLatency:  5 * time.Millisecond,
		DefaultHighInputLatency: 20 * time.Millisecond,
	},
}

// mockPortAudio replaces every PortAudio entry point for the test's duration.
func mockPortAudio(t *testing.T, devices []*portaudio.DeviceInfo, devErr error) {
	t.Helper()
	origInit, origTerm := paLibInitialize, paLibTerminate
	origDevices, origDefault := paLibDevicesFunc, paLibDefaultInputDeviceFunc
	t.Cleanup(func() {
		paLibInitialize, paLibTerminate = origInit, origTerm
		paLibDevicesFunc, paLibDefaultInputDeviceFunc = origDevices, origDefault
	})

	paLibInitialize = func() error { return nil }
	paLibTerminate = func() error { return nil }
	paLibDevicesFunc = func() ([]*portaudio.DeviceInfo, error) { return devices, devErr }
	paLibDefaultInputDeviceFunc = func() (*portaudio.DeviceInfo, error) {
		if len(devices) < 2 {
			return nil, fmt.Errorf("no default input device")
		}
		return devices[1], nil
	}
}

func TestHostDevices(t *testing.T) {
	mockPortAudio(t, mockDevices, nil)

	devices, err := HostDevices()
	if err != nil {
		t.Fatalf("HostDevices error: %v", err)
	}
	if len(devices) != len(mockDevices) {
		t.Fatalf("got %d devices, want %d", len(devices), len(mockDevices))
	}
	for i, d := range devices {
		if d.ID != i || d.Name != mockDevices[i].Name {
			t.Errorf("device %d = %+v", i, d)
		}
	}
}

func TestHostDevices_paDevicesError(t *testing.T) {
	mockPortAudio(t, nil, fmt.Errorf("mock error"))

	_, err := HostDevices()
	if err == nil || !strings.Contains(err.Error(), "mock error") {
		t.Errorf("expected mock error, got %v", err)
	}
}

func TestInputDevice(t *testing.T) {
	mockPortAudio(t, mockDevices, nil)

	dev, err := InputDevice(DefaultDevice)
	if err != nil || dev.Name != "EEG Frontend" {
		t.Errorf("InputDevice(default) = %v, %v", dev, err)
	}

	tests := []struct {
		name   string
		id     int
		substr string
	}{
		{"Negative ID", -2, "invalid device ID"},
		{"Too high ID", len(mockDevices) + 10, "invalid device ID"},
		{"Non-input device", 0, "does not support input"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := InputDevice(tt.id)
			if err == nil {
				t.Errorf("Expected error for ID %d", tt.id)
			} else if !strings.Contains(err.Error(), tt.substr) {
				t.Errorf("Error = %q, want substring %q", err.Error(), tt.substr)
			}
		})
	}
}

func TestInputDevice_paDefaultInputDeviceError(t *testing.T) {
	mockPortAudio(t, mockDevices[:1], nil)

	_, err := InputDevice(DefaultDevice)
	if err == nil || !strings.Contains(err.Error(), "no default input device") {
		t.Errorf("expected mock error, got %v", err)
	}
}

func TestErrorInitialize(t *testing.T) {
	orig := paLibInitialize
	defer func() { paLibInitialize = orig }()

	paLibInitialize = func() error { return nil }
	if err := Initialize(); err != nil {
		t.Errorf("expected nil, got %v", err)
	}

	paLibInitialize = func() error { return fmt.Errorf("mock init error") }
	if err := Initialize(); err == nil || !strings.Contains(err.Error(), "mock init error") {
		t.Errorf("expected mock init error, got %v", err)
	}
}

func TestErrorTerminate(t *testing.T) {
	orig := paLibTerminate
	defer func() { paLibTerminate = orig }()

	paLibTerminate = func() error { return fmt.Errorf("mock term error") }
	if err := Terminate(); err == nil || !strings.Contains(err.Error(), "mock term error") {
		t.Errorf("expected mock term error, got %v", err)
	}
}

func TestNilDevices(t *testing.T) {
	mockPortAudio(t, nil, nil)

	devices, err := paDevices()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if devices == nil || len(devices) != 0 {
		t.Errorf("expected empty slice, got %v", devices)
	}
}

func TestListDevices(t *testing.T) {
	mockPortAudio(t, mockDevices, nil)

	var buf bytes.Buffer
	if err := ListDevices(&buf); err != nil {
		t.Fatal(err)
	}
	out := buf.String()
	if !strings.Contains(out, "[1] EEG Frontend") || !strings.Contains(out, "Low=5.00ms") {
		t.Errorf("listing missing input device:\n%s", out)
	}
	if strings.Contains(out, "Speakers") {
		t.Errorf("listing includes output-only device:\n%s", out)
	}
}
