// SPDX-License-Identifier: MIT
package pipeline

import (
	"errors"
	"fmt"
)

// ErrWidthMismatch is returned when a sample set does not carry exactly one
// value per routed channel.
var ErrWidthMismatch = errors.New("sample set width mismatch")

// ChannelStream consumes one channel's samples in arrival order.
type ChannelStream interface {
	Accept(s ChannelSample)
}

// ChannelStreamFunc adapts a function to ChannelStream.
type ChannelStreamFunc func(ChannelSample)

func (f ChannelStreamFunc) Accept(s ChannelSample) { f(s) }

// Router fans a sample set out to one stream per electrode index.
type Router struct {
	streams []ChannelStream
}

// NewRouter routes value i of each set to streams[i].
func NewRouter(streams []ChannelStream) *Router {
	return &Router{streams: streams}
}

// Channels returns the number of routed streams.
func (r *Router) Channels() int { return len(r.streams) }

// Route delivers each value of set to its channel stream, lowest index first.
func (r *Router) Route(set SampleSet) error {
	if len(set.Values) != len(r.streams) {
		return fmt.Errorf("%w: got %d values for %d channels", ErrWidthMismatch, len(set.Values), len(r.streams))
	}
	for i, v := range set.Values {
		r.streams[i].Accept(ChannelSample{Channel: i, Timestamp: set.Timestamp, Value: v})
	}
	return nil
}
