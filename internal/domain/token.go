package domain

// Well-known mint addresses used for quote-side normalization.
const (
	MintSOL  = "So11111111111111111111111111111111111111112"
	MintUSDC = "EPjFWdd5AufqSSqeM2qN1xzybapC8G4wEGGkZwyTDt1v"
	MintUSDT = "Es9vMFrzaCERmJfrF4H2FYD4KCoNkY11McCe8BenwNYB"
)

// TokenInfo describes one SPL token mint.
type TokenInfo struct {
	Mint     string
	Symbol   string
	Decimals uint8
	LogoURI  string

	// Synthetic marks tokens absent from the token directory, registered from
	// an on-chain mint read with Symbol set to the mint address.
	Synthetic bool
}

// quotePriority ranks mints for quote-side selection. Lower wins.
// Stables outrank SOL so that SOL-stable pairs are quoted in the stable.
var quotePriority = map[string]int{
	MintUSDC: 0,
	MintUSDT: 1,
	MintSOL:  2,
}

// QuoteRank returns the normalization priority of a mint, or -1 when the mint
// is not a reference quote token.
func QuoteRank(mint string) int {
	if r, ok := quotePriority[mint]; ok {
		return r
	}
	return -1
}

// PreferredQuote decides which of the two mints should be the quote side.
// Reference tokens win by rank; when neither is a reference token the
// lexically larger mint is the quote, which is arbitrary but deterministic.
func PreferredQuote(mintX, mintY string) string {
	rx, ry := QuoteRank(mintX), QuoteRank(mintY)
	switch {
	case rx >= 0 && ry >= 0:
		if rx < ry {
			return mintX
		}
		return mintY
	case rx >= 0:
		return mintX
	case ry >= 0:
		return mintY
	case mintX > mintY:
		return mintX
	default:
		return mintY
	}
}
