// SPDX-License-Identifier: MIT
package device

import (
	"fmt"
	"strings"
)

// Source kinds understood by New.
const (
	KindSynthetic = "synthetic"
	KindWAV       = "wav"
	KindSerial    = "serial"
	KindPortAudio = "portaudio"
)

// Options carries the settings of every kind; New reads only the one it needs.
type Options struct {
	Synthetic SyntheticConfig
	WAV       WAVConfig
	Serial    SerialConfig
}

// New builds a source by kind. PortAudio sources are built by the audio
// subpackage and are not handled here.
func New(kind string, opts Options) (Source, error) {
	switch strings.ToLower(kind) {
	case KindSynthetic, "":
		return NewSyntheticSource(opts.Synthetic), nil
	case KindWAV:
		if opts.WAV.Path == "" {
			return nil, fmt.Errorf("wav source needs a file path")
		}
		return NewWAVSource(opts.WAV), nil
	case KindSerial:
		if opts.Serial.Port == "" {
			return nil, fmt.Errorf("serial source needs a port")
		}
		return NewSerialSource(opts.Serial), nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownSource, kind)
	}
}
