package txbuilder

import (
	"errors"
	"fmt"
	"log/slog"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
)

const (
	MethodApprove               = "approve"
	MethodSwapExactETHForTokens = "swapExactETHForTokens"
	MethodSwapExactTokensForETH = "swapExactTokensForETH"
)

var selectorApprove = mustSelector("0x095ea7b3")

// Request is an unsigned EIP-1559 transaction for a single contract call.
// It is built fresh for every call and never reused.
type Request struct {
	Method               string
	ChainID              *big.Int
	From                 common.Address
	To                   common.Address
	Value                *big.Int
	Nonce                uint64
	GasLimit             uint64
	MaxFeePerGas         *big.Int
	MaxPriorityFeePerGas *big.Int
	Data                 []byte
	// Deadline is the router deadline argument; zero for approvals.
	Deadline uint64
}

type BuildParams struct {
	Nonce    uint64
	GasLimit uint64
	Fee      FeeQuote
	Deadline uint64
}

func (r *Request) LogValue() slog.Value {
	if r == nil {
		return slog.StringValue("<nil>")
	}
	return slog.GroupValue(
		slog.String("method", r.Method),
		slog.String("to", r.To.Hex()),
		slog.String("value", bigString(r.Value)),
		slog.Uint64("nonce", r.Nonce),
		slog.Uint64("gas", r.GasLimit),
		slog.String("max_fee_wei", bigString(r.MaxFeePerGas)),
		slog.String("priority_fee_wei", bigString(r.MaxPriorityFeePerGas)),
		slog.Uint64("deadline", r.Deadline),
	)
}

func newRequest(method string, chainID *big.Int, from, to common.Address, value *big.Int, data []byte, p BuildParams) (*Request, error) {
	if chainID == nil {
		return nil, errors.New("chainID is required")
	}
	if value == nil {
		return nil, errors.New("value is required")
	}
	if value.Sign() < 0 {
		return nil, errors.New("value must be non-negative")
	}
	if p.GasLimit == 0 {
		return nil, errors.New("gasLimit is required")
	}
	if p.Fee.MaxFeePerGas == nil || p.Fee.MaxPriorityFeePerGas == nil {
		return nil, errors.New("maxFeePerGas and maxPriorityFeePerGas are required")
	}
	if p.Fee.MaxFeePerGas.Sign() < 0 || p.Fee.MaxPriorityFeePerGas.Sign() < 0 {
		return nil, errors.New("fee values must be non-negative")
	}
	if p.Fee.MaxFeePerGas.Cmp(p.Fee.MaxPriorityFeePerGas) < 0 {
		return nil, errors.New("maxFeePerGas is below maxPriorityFeePerGas")
	}
	return &Request{
		Method:               method,
		ChainID:              new(big.Int).Set(chainID),
		From:                 from,
		To:                   to,
		Value:                new(big.Int).Set(value),
		Nonce:                p.Nonce,
		GasLimit:             p.GasLimit,
		MaxFeePerGas:         new(big.Int).Set(p.Fee.MaxFeePerGas),
		MaxPriorityFeePerGas: new(big.Int).Set(p.Fee.MaxPriorityFeePerGas),
		Data:                 append([]byte{}, data...),
		Deadline:             p.Deadline,
	}, nil
}

func buildApproveData(spender common.Address, amount *big.Int) ([]byte, error) {
	arg0 := encodeAddress(spender)
	arg1, err := encodeUint256(amount)
	if err != nil {
		return nil, fmt.Errorf("amount: %w", err)
	}
	data := append([]byte{}, selectorApprove...)
	data = append(data, arg0...)
	data = append(data, arg1...)
	return data, nil
}

func encodeUint256(v *big.Int) ([]byte, error) {
	if v == nil {
		return nil, errors.New("value is nil")
	}
	if v.Sign() < 0 {
		return nil, errors.New("value must be non-negative")
	}
	if v.BitLen() > 256 {
		return nil, errors.New("value overflows uint256")
	}
	return common.LeftPadBytes(v.Bytes(), 32), nil
}

func encodeAddress(addr common.Address) []byte {
	return common.LeftPadBytes(addr.Bytes(), 32)
}

func mustSelector(hex string) []byte {
	b, err := hexutil.Decode(hex)
	if err != nil {
		panic(err)
	}
	if len(b) != 4 {
		panic("selector must be 4 bytes")
	}
	return b
}

func bigString(v *big.Int) string {
	if v == nil {
		return "0"
	}
	return v.String()
}
