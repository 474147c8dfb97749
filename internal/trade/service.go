// Package trade turns user-facing amount strings into orchestrated swaps.
package trade

import (
	"context"
	"errors"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/common"

	"ammswap/internal/swap"
	"ammswap/internal/txbuilder"
)

type Swapper interface {
	Account() common.Address
	Buy(ctx context.Context, token common.Address, nativeIn *big.Int) (*swap.Result, error)
	Sell(ctx context.Context, token common.Address, amountIn *big.Int) (*swap.Result, error)
}

type Service struct {
	swapper Swapper
	client  txbuilder.ChainClient
}

func NewService(swapper Swapper, client txbuilder.ChainClient) *Service {
	return &Service{swapper: swapper, client: client}
}

func (s *Service) Account() common.Address {
	return s.swapper.Account()
}

// Buy returns a report even when the swap failed after submission.
func (s *Service) Buy(ctx context.Context, req BuyRequest) (*swap.Report, error) {
	token, err := parseAddress(req.Token)
	if err != nil {
		return nil, err
	}
	value, err := parseAmount(req.NativeIn, req.NativeInWei, txbuilder.NativeDecimals)
	if err != nil {
		return nil, err
	}
	res, err := s.swapper.Buy(ctx, token, value)
	return report(res), err
}

func (s *Service) Sell(ctx context.Context, req SellRequest) (*swap.Report, error) {
	token, err := parseAddress(req.Token)
	if err != nil {
		return nil, err
	}
	if (req.Amount == "") == (req.AmountRaw == "") {
		return nil, invalid("exactly one of amount or amount_raw is required")
	}
	var amount *big.Int
	if req.AmountRaw != "" {
		amount, err = parseBigInt(req.AmountRaw)
	} else {
		var decimals uint8
		decimals, err = s.resolveDecimals(ctx, token, req.TokenDecimals)
		if err != nil {
			return nil, err
		}
		amount, err = parseAmount(req.Amount, "", decimals)
	}
	if err != nil {
		return nil, err
	}
	res, err := s.swapper.Sell(ctx, token, amount)
	return report(res), err
}

// Balance reads the native balance, or the ERC20 balance when token is set.
func (s *Service) Balance(ctx context.Context, token string) (*Balance, error) {
	owner := s.swapper.Account()
	if strings.TrimSpace(token) == "" {
		bal, err := s.client.BalanceAt(ctx, owner, nil)
		if err != nil {
			return nil, txbuilder.NewError(txbuilder.KindConnectivity, "balance", err)
		}
		return &Balance{
			Address:   owner.Hex(),
			Raw:       bal.String(),
			Formatted: txbuilder.FormatUnits(bal, txbuilder.NativeDecimals),
			Decimals:  txbuilder.NativeDecimals,
		}, nil
	}
	tokenAddr, err := parseAddress(token)
	if err != nil {
		return nil, err
	}
	bal, err := txbuilder.ReadERC20Balance(ctx, s.client, tokenAddr, owner)
	if err != nil {
		return nil, err
	}
	decimals, err := txbuilder.ReadERC20Decimals(ctx, s.client, tokenAddr)
	if err != nil {
		return nil, err
	}
	return &Balance{
		Address:   owner.Hex(),
		Token:     tokenAddr.Hex(),
		Raw:       bal.String(),
		Formatted: txbuilder.FormatUnits(bal, decimals),
		Decimals:  decimals,
	}, nil
}

func (s *Service) resolveDecimals(ctx context.Context, token common.Address, override *uint8) (uint8, error) {
	if override != nil {
		return *override, nil
	}
	return txbuilder.ReadERC20Decimals(ctx, s.client, token)
}

func report(res *swap.Result) *swap.Report {
	if res == nil {
		return nil
	}
	rep := res.Report()
	return &rep
}

// ErrBadRequest marks input validation failures.
var ErrBadRequest = errors.New("bad request")

type inputError struct{ msg string }

func (e *inputError) Error() string        { return e.msg }
func (e *inputError) Is(target error) bool { return target == ErrBadRequest }

func invalid(msg string) error { return &inputError{msg: msg} }

func parseAddress(value string) (common.Address, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return common.Address{}, invalid("token address is required")
	}
	if !common.IsHexAddress(value) {
		return common.Address{}, invalid("invalid token address")
	}
	return common.HexToAddress(value), nil
}

func parseAmount(amount, raw string, decimals uint8) (*big.Int, error) {
	if amount != "" && raw != "" {
		return nil, invalid("give either a decimal amount or a raw amount, not both")
	}
	if raw != "" {
		return parseBigInt(raw)
	}
	if amount == "" {
		return nil, invalid("amount is required")
	}
	v, err := txbuilder.ParseUnits(amount, decimals)
	if err != nil {
		return nil, invalid(err.Error())
	}
	if v.Sign() == 0 {
		return nil, invalid("amount must be positive")
	}
	return v, nil
}

func parseBigInt(value string) (*big.Int, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return nil, invalid("value is empty")
	}
	var (
		v   *big.Int
		err error
	)
	if strings.HasPrefix(value, "0x") {
		v, err = txbuilder.ParseHexBig(value)
		if err != nil {
			return nil, invalid(err.Error())
		}
	} else {
		var ok bool
		v, ok = new(big.Int).SetString(value, 10)
		if !ok {
			return nil, invalid("invalid integer " + value)
		}
	}
	if v.Sign() <= 0 {
		return nil, invalid("amount must be positive")
	}
	return v, nil
}
