package trade

// BuyRequest spends a native amount on token. NativeIn is a decimal string
// in whole units, NativeInWei a raw integer; exactly one is required.
type BuyRequest struct {
	Token       string `json:"token"`
	NativeIn    string `json:"native_in,omitempty"`
	NativeInWei string `json:"native_in_wei,omitempty"`
}

// SellRequest sells token for the native currency. Amount is scaled by the
// token's decimals (read on-chain unless TokenDecimals is set); AmountRaw
// is taken as base units.
type SellRequest struct {
	Token         string `json:"token"`
	Amount        string `json:"amount,omitempty"`
	AmountRaw     string `json:"amount_raw,omitempty"`
	TokenDecimals *uint8 `json:"token_decimals,omitempty"`
}

type Balance struct {
	Address   string `json:"address"`
	Token     string `json:"token,omitempty"`
	Raw       string `json:"raw"`
	Formatted string `json:"formatted"`
	Decimals  uint8  `json:"decimals"`
}
