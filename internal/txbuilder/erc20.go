package txbuilder

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"
)

const NativeDecimals = 18

var (
	selectorBalanceOf = mustSelector("0x70a08231")
	selectorDecimals  = mustSelector("0x313ce567")
)

func BuildBalanceOfCallData(owner common.Address) []byte {
	data := append([]byte{}, selectorBalanceOf...)
	data = append(data, encodeAddress(owner)...)
	return data
}

func BuildDecimalsCallData() []byte {
	return append([]byte{}, selectorDecimals...)
}

func ReadERC20Balance(ctx context.Context, client ChainClient, token common.Address, owner common.Address) (*big.Int, error) {
	if client == nil {
		return nil, errors.New("client is nil")
	}
	out, err := client.CallContract(ctx, ethereum.CallMsg{To: &token, Data: BuildBalanceOfCallData(owner)}, nil)
	if err != nil {
		return nil, NewError(KindConnectivity, "balanceOf", err)
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("balanceOf: empty result from %s", token.Hex())
	}
	return new(big.Int).SetBytes(out), nil
}

func ReadERC20Decimals(ctx context.Context, client ChainClient, token common.Address) (uint8, error) {
	if client == nil {
		return 0, errors.New("client is nil")
	}
	out, err := client.CallContract(ctx, ethereum.CallMsg{To: &token, Data: BuildDecimalsCallData()}, nil)
	if err != nil {
		return 0, NewError(KindConnectivity, "decimals", err)
	}
	if len(out) == 0 {
		return 0, fmt.Errorf("decimals: empty result from %s", token.Hex())
	}
	v := new(big.Int).SetBytes(out)
	if v.BitLen() > 8 {
		return 0, fmt.Errorf("decimals out of range: %s", v.String())
	}
	return uint8(v.Uint64()), nil
}

// ParseUnits converts a decimal string such as "0.00001" into base units.
func ParseUnits(amount string, decimals uint8) (*big.Int, error) {
	amount = strings.TrimSpace(amount)
	if amount == "" {
		return nil, errors.New("amount is empty")
	}
	d, err := decimal.NewFromString(amount)
	if err != nil {
		return nil, fmt.Errorf("invalid amount %q: %w", amount, err)
	}
	if d.IsNegative() {
		return nil, errors.New("amount must be non-negative")
	}
	scaled := d.Shift(int32(decimals))
	if !scaled.Equal(scaled.Truncate(0)) {
		return nil, fmt.Errorf("too many decimal places for %d decimals", decimals)
	}
	return scaled.BigInt(), nil
}

// FormatUnits renders base units as a decimal string.
func FormatUnits(v *big.Int, decimals uint8) string {
	if v == nil {
		return "0"
	}
	return decimal.NewFromBigInt(v, -int32(decimals)).String()
}

func ParseHexBig(hexValue string) (*big.Int, error) {
	return decodeHexBig(hexValue)
}
