// Package nn holds the dense building blocks of the downstream models.
//
// Values are float64 gonum matrices, one row per frame. Layers expose an
// explicit Forward and a Backward that takes the upstream gradient,
// accumulates parameter gradients into Param.Grad and returns the gradient
// with respect to the layer input. Callers keep whatever forward values a
// Backward call needs.
package nn
