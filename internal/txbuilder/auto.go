package txbuilder

import (
	"context"
	"errors"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
)

const DefaultDeadlineWindow = 10000 * time.Second

type AutoBuilderConfig struct {
	ChainID            *big.Int
	DeadlineWindow     time.Duration
	GasLimitMultiplier float64
	// MinAmountOut is the router amountOutMin. Zero disables slippage
	// protection.
	MinAmountOut *big.Int
}

// AutoBuilder prices, sequences and gas-limits a Request against the live
// network: fee quote, then nonce, then latest block for the deadline, then
// a gas estimate over the exact payload.
type AutoBuilder struct {
	client ChainClient
	oracle *FeeOracle
	nonce  NonceProvider
	router *Router
	cfg    AutoBuilderConfig
}

func NewAutoBuilder(client ChainClient, oracle *FeeOracle, nonce NonceProvider, router *Router, cfg AutoBuilderConfig) *AutoBuilder {
	if cfg.GasLimitMultiplier <= 0 {
		cfg.GasLimitMultiplier = 1.0
	}
	if cfg.DeadlineWindow <= 0 {
		cfg.DeadlineWindow = DefaultDeadlineWindow
	}
	if cfg.MinAmountOut == nil {
		cfg.MinAmountOut = big.NewInt(0)
	}
	return &AutoBuilder{client: client, oracle: oracle, nonce: nonce, router: router, cfg: cfg}
}

// BuildApprove approves the router to move exactly amount of token.
func (a *AutoBuilder) BuildApprove(ctx context.Context, from, token common.Address, amount *big.Int) (*Request, error) {
	if err := a.ready(); err != nil {
		return nil, err
	}
	if amount == nil || amount.Sign() <= 0 {
		return nil, NewError(KindInvalidAmount, MethodApprove, errors.New("amount must be positive"))
	}
	return a.build(ctx, MethodApprove, from, token, big.NewInt(0), false, func(uint64) ([]byte, error) {
		return buildApproveData(a.router.Address, amount)
	})
}

func (a *AutoBuilder) BuildSwapNativeForToken(ctx context.Context, from, tokenOut common.Address, nativeIn *big.Int) (*Request, error) {
	if err := a.ready(); err != nil {
		return nil, err
	}
	if nativeIn == nil || nativeIn.Sign() <= 0 {
		return nil, NewError(KindInvalidAmount, MethodSwapExactETHForTokens, errors.New("native amount must be positive"))
	}
	return a.build(ctx, MethodSwapExactETHForTokens, from, a.router.Address, nativeIn, true, func(deadline uint64) ([]byte, error) {
		return a.router.SwapNativeForTokenData(a.cfg.MinAmountOut, tokenOut, from, deadline)
	})
}

func (a *AutoBuilder) BuildSwapTokenForNative(ctx context.Context, from, tokenIn common.Address, amountIn *big.Int) (*Request, error) {
	if err := a.ready(); err != nil {
		return nil, err
	}
	if amountIn == nil || amountIn.Sign() <= 0 {
		return nil, NewError(KindInvalidAmount, MethodSwapExactTokensForETH, errors.New("token amount must be positive"))
	}
	return a.build(ctx, MethodSwapExactTokensForETH, from, a.router.Address, big.NewInt(0), true, func(deadline uint64) ([]byte, error) {
		return a.router.SwapTokenForNativeData(amountIn, a.cfg.MinAmountOut, tokenIn, from, deadline)
	})
}

func (a *AutoBuilder) build(ctx context.Context, method string, from, to common.Address, value *big.Int, needsDeadline bool, encode func(deadline uint64) ([]byte, error)) (*Request, error) {
	fees, err := a.oracle.Quote(ctx)
	if err != nil {
		return nil, err
	}
	nonce, err := a.nonce.Next(ctx, from)
	if err != nil {
		return nil, err
	}
	var deadline uint64
	if needsDeadline {
		deadline, err = a.nextDeadline(ctx)
		if err != nil {
			return nil, err
		}
	}
	data, err := encode(deadline)
	if err != nil {
		return nil, err
	}
	gasLimit, err := a.estimateGas(ctx, method, from, to, value, data, fees)
	if err != nil {
		return nil, err
	}
	return newRequest(method, a.cfg.ChainID, from, to, value, data, BuildParams{
		Nonce:    nonce,
		GasLimit: gasLimit,
		Fee:      fees,
		Deadline: deadline,
	})
}

// nextDeadline anchors the router deadline to the latest block timestamp
// rather than the local clock.
func (a *AutoBuilder) nextDeadline(ctx context.Context) (uint64, error) {
	header, err := a.client.HeaderByNumber(ctx, nil)
	if err != nil {
		return 0, NewError(KindConnectivity, "latest block", err)
	}
	if header == nil {
		return 0, NewError(KindConnectivity, "latest block", errors.New("node returned no header"))
	}
	return header.Time + uint64(a.cfg.DeadlineWindow/time.Second), nil
}

func (a *AutoBuilder) estimateGas(ctx context.Context, method string, from, to common.Address, value *big.Int, data []byte, fees FeeQuote) (uint64, error) {
	msg := ethereum.CallMsg{
		From:      from,
		To:        &to,
		Value:     value,
		Data:      data,
		GasFeeCap: fees.MaxFeePerGas,
		GasTipCap: fees.MaxPriorityFeePerGas,
	}
	gas, err := a.client.EstimateGas(ctx, msg)
	if err != nil {
		return 0, NewError(KindGasEstimationFailed, method, &EstimateGasError{Err: err, CallMsg: msg})
	}
	return applyGasMultiplier(gas, a.cfg.GasLimitMultiplier), nil
}

func (a *AutoBuilder) ready() error {
	if a.client == nil || a.oracle == nil || a.nonce == nil || a.router == nil {
		return errors.New("client, fee oracle, nonce provider and router are required")
	}
	if a.cfg.ChainID == nil {
		return errors.New("chainID is required")
	}
	return nil
}

func applyGasMultiplier(gas uint64, mult float64) uint64 {
	if mult <= 0 {
		return gas
	}
	adjusted := uint64(float64(gas) * mult)
	if adjusted < gas {
		return gas
	}
	return adjusted
}
