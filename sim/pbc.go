package sim

import "math"

// Wrap folds v into [0, period). Values already inside are returned unchanged.
func Wrap(v, period float64) float64 {
	if v >= 0 && v < period {
		return v
	}
	v = math.Mod(v, period)
	if v < 0 {
		v += period
	}
	return v
}

// MinImage shifts a raw coordinate delta into (-period/2, period/2], the
// shortest periodic separation. The inputs must come from coordinates already
// wrapped into [0, period), so a single shift is always enough.
func MinImage(d, period float64) float64 {
	if 2*d > period {
		d -= period
	} else if 2*d <= -period {
		d += period
	}
	return d
}
