package meteora

// Pair is one pool entry from the pair directory.
type Pair struct {
	Address      string `json:"address"`
	Name         string `json:"name"`
	MintX        string `json:"mint_x"`
	MintY        string `json:"mint_y"`
	BinStep      uint16 `json:"bin_step"`
	CurrentPrice float64 `json:"current_price"`
}

// Token is one entry from the token directory.
type Token struct {
	Address  string `json:"address"`
	Symbol   string `json:"symbol"`
	Decimals uint8  `json:"decimals"`
	LogoURI  string `json:"logoURI"`
}

// PositionEvent is one deposit, withdrawal or fee claim recorded by the index
// for a position. Amounts are human-scaled; USD amounts are zero when the
// indexer had no price at event time.
type PositionEvent struct {
	TxID            string  `json:"tx_id"`
	PositionAddress string  `json:"position_address"`
	PairAddress     string  `json:"pair_address"`
	ActiveBinID     int32   `json:"active_bin_id"`
	TokenXAmount    float64 `json:"token_x_amount"`
	TokenYAmount    float64 `json:"token_y_amount"`
	TokenXUSDAmount float64 `json:"token_x_usd_amount"`
	TokenYUSDAmount float64 `json:"token_y_usd_amount"`
	OnchainTime     int64   `json:"onchain_timestamp"`
}

// RewardEvent is one reward claim recorded by the index for a position.
type RewardEvent struct {
	TxID            string  `json:"tx_id"`
	PositionAddress string  `json:"position_address"`
	PairAddress     string  `json:"pair_address"`
	RewardMint      string  `json:"reward_mint_address"`
	TokenAmount     float64 `json:"token_amount"`
	TokenUSDAmount  float64 `json:"token_usd_amount"`
	OnchainTime     int64   `json:"onchain_timestamp"`
}
