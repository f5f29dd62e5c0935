package mathx

import "golang.org/x/exp/constraints"

// Span maps v in [0, full] onto [0, width] pixels, clamping at both ends.
// A non-positive full scale maps everything to zero.
func Span[T constraints.Integer | constraints.Float](v, full T, width int) int {
	if full <= 0 || width <= 0 {
		return 0
	}
	v = Clamp(v, 0, full)
	return int(float64(v) / float64(full) * float64(width))
}
