// SPDX-License-Identifier: MIT
package dsp

// Transform is a stateful scalar-in/scalar-out stream stage with private state.
type Transform interface {
	Next(x float64) float64
	Reset()
}

// Passthrough is the identity transform.
type Passthrough struct{}

var _ Transform = Passthrough{}

func (Passthrough) Next(x float64) float64 { return x }
func (Passthrough) Reset()                 {}
