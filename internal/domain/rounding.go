package domain

import "math"

// FloorAt truncates v to the given number of decimal places.
// Truncation (not rounding) matches the on-chain integer math: token programs
// never round amounts up, so neither do we. Negative values truncate toward
// zero for the same reason — a debt of 0.289 at 2 decimals is -0.28, the
// mirror image of the credit case.
func FloorAt(v float64, decimals uint8) float64 {
	p := math.Pow10(int(decimals))
	return math.Trunc(v*p) / p
}

// RawToUI converts a raw on-chain amount to its human-scaled value.
func RawToUI(amount uint64, decimals uint8) float64 {
	return float64(amount) / math.Pow10(int(decimals))
}
