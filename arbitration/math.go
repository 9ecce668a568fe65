package arbitration

// safeDiv returns a/b, or def when b is zero.
func safeDiv(a, b, def float64) float64 {
	if b == 0 {
		return def
	}
	return a / b
}

// clamp01 clamps v to the [0, 1] range.
func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
