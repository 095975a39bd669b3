package memory

import "math"

// SoftClamp squashes a raw trait value into (0.05, 0.95) with a sigmoid
// centred on 0.5:
//
//	clamped = 0.05 + 0.9 · σ(10 · (raw − 0.5))
//
// Repeated same-signed deltas approach the bounds asymptotically but can
// never cross them, which is the invariant that keeps personalities inside
// humanity bounds regardless of how long the event stream runs. Every trait
// ledger append passes through this function; it is the single clamp
// implementation in the system.
func SoftClamp(raw float64) float64 {
	return 0.05 + 0.9/(1+math.Exp(-10*(raw-0.5)))
}

// Clamp bounds v into [lo, hi]. Shared by reputation ([-1, 1]), relation and
// trust scores ([0, 1]), and strength updates.
func Clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
