// SPDX-License-Identifier: MIT
package pipeline

// Sink receives every Output the pipeline produces. Push is called
// synchronously from the pipeline and must not block; a sink that cannot keep
// up decides for itself whether to drop or buffer.
type Sink interface {
	Push(o Output)
}

// SinkFunc adapts a function to Sink.
type SinkFunc func(Output)

func (f SinkFunc) Push(o Output) { f(o) }

// Resetter is implemented by sinks that keep per-channel history. The
// pipeline resets them together with its own state.
type Resetter interface {
	Reset()
}

// MultiSink pushes each Output to every sink in order.
type MultiSink []Sink

func (m MultiSink) Push(o Output) {
	for _, s := range m {
		s.Push(o)
	}
}

// Reset resets every member that is a Resetter.
func (m MultiSink) Reset() {
	for _, s := range m {
		if r, ok := s.(Resetter); ok {
			r.Reset()
		}
	}
}

// Discard drops every Output.
var Discard Sink = SinkFunc(func(Output) {})
