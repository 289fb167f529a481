package mathhelp

import "golang.org/x/exp/constraints"

// Clamp limits v to [lo, hi].
func Clamp[T constraints.Ordered](v, lo, hi T) T {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// MinNonZero returns the smallest of the positive values, or 0 when there are none.
func MinNonZero[T constraints.Integer](values ...T) T {
	var m T
	for _, v := range values {
		if v > 0 && (m == 0 || v < m) {
			m = v
		}
	}
	return m
}
