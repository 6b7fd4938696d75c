package domain

import (
	"math"
	"strings"
)

// PairInfo describes one DLMM pool: two mints plus the bin step that fixes the
// pool's price granularity.
type PairInfo struct {
	Address string
	Name    string
	MintX   string
	MintY   string
	BinStep uint16
}

// PairGroupKey returns the direction-independent identity of a token pair:
// the two mints sorted lexically and joined. A pool quoted A/B and a pool
// quoted B/A share the same group key.
func PairGroupKey(mintA, mintB string) string {
	if mintA > mintB {
		mintA, mintB = mintB, mintA
	}
	return mintA + "-" + mintB
}

// PairNameFor builds the display name "BASE-QUOTE" from two symbols.
func PairNameFor(symbolBase, symbolQuote string) string {
	return symbolBase + "-" + symbolQuote
}

// BinPrice converts a pool's active bin id to a human-scaled price of X in Y.
// Each bin sits binStep/10000 above its neighbor, so the raw price is the
// bin's geometric position, rescaled by the mints' decimal difference.
func BinPrice(activeBinID int32, binStep uint16, decimalsX, decimalsY uint8) float64 {
	raw := math.Pow(1+float64(binStep)/10000, float64(activeBinID))
	return raw * math.Pow(10, float64(decimalsX)-float64(decimalsY))
}

// SwapPairName swaps the two halves of a "BASE-QUOTE" pair name.
// Names without exactly one separator are returned unchanged.
func SwapPairName(name string) string {
	parts := strings.SplitN(name, "-", 2)
	if len(parts) != 2 {
		return name
	}
	return parts[1] + "-" + parts[0]
}
