package trade

import (
	"context"
	"errors"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ammswap/internal/swap"
	"ammswap/internal/txbuilder"
	"ammswap/internal/txbuilder/stub"
)

var (
	testAccount = common.HexToAddress("0x71562b71999873DB5b286dF957af199Ec94617F7")
	testToken   = common.HexToAddress("0x69babE9811CC86dCfC3B8f9a14de6470Dd18EDA4")
)

type fakeSwapper struct {
	side   swap.Side
	token  common.Address
	amount *big.Int
	err    error
}

func (f *fakeSwapper) Account() common.Address { return testAccount }

func (f *fakeSwapper) Buy(_ context.Context, token common.Address, v *big.Int) (*swap.Result, error) {
	return f.record(swap.SideBuy, token, v)
}

func (f *fakeSwapper) Sell(_ context.Context, token common.Address, v *big.Int) (*swap.Result, error) {
	return f.record(swap.SideSell, token, v)
}

func (f *fakeSwapper) record(side swap.Side, token common.Address, v *big.Int) (*swap.Result, error) {
	f.side, f.token, f.amount = side, token, v
	state := swap.StateDone
	if f.err != nil {
		state = swap.StateFailed
	}
	return &swap.Result{
		Intent: swap.Intent{Side: side, Token: token, Amount: v},
		State:  state,
		Trail:  []swap.State{swap.StateStart, state},
		Err:    f.err,
	}, f.err
}

// erc20Chain answers decimals() and balanceOf() like a token contract.
func erc20Chain(decimals uint8, balance *big.Int) *stub.Chain {
	chain := stub.NewChain(1)
	chain.Call = func(msg ethereum.CallMsg) ([]byte, error) {
		switch common.Bytes2Hex(msg.Data[:4]) {
		case "313ce567":
			return common.LeftPadBytes([]byte{decimals}, 32), nil
		case "70a08231":
			return common.LeftPadBytes(balance.Bytes(), 32), nil
		}
		return nil, errors.New("execution reverted")
	}
	return chain
}

func TestBuyParsesNativeAmount(t *testing.T) {
	sw := &fakeSwapper{}
	svc := NewService(sw, stub.NewChain(1))

	rep, err := svc.Buy(context.Background(), BuyRequest{Token: testToken.Hex(), NativeIn: "0.00001"})
	require.NoError(t, err)
	assert.Equal(t, swap.StateDone, rep.State)
	assert.Equal(t, "10000000000000", sw.amount.String())
	assert.Equal(t, testToken, sw.token)

	_, err = svc.Buy(context.Background(), BuyRequest{Token: testToken.Hex(), NativeInWei: "12345"})
	require.NoError(t, err)
	assert.Equal(t, "12345", sw.amount.String())
}

func TestSellScalesByTokenDecimals(t *testing.T) {
	sw := &fakeSwapper{}
	svc := NewService(sw, erc20Chain(6, big.NewInt(0)))

	_, err := svc.Sell(context.Background(), SellRequest{Token: testToken.Hex(), Amount: "1.5"})
	require.NoError(t, err)
	assert.Equal(t, "1500000", sw.amount.String())
	assert.Equal(t, swap.SideSell, sw.side)
}

func TestSellRawAmountSkipsDecimals(t *testing.T) {
	sw := &fakeSwapper{}
	// No Call hook: a decimals lookup would fail.
	svc := NewService(sw, stub.NewChain(1))

	_, err := svc.Sell(context.Background(), SellRequest{Token: testToken.Hex(), AmountRaw: "100"})
	require.NoError(t, err)
	assert.Equal(t, "100", sw.amount.String())
}

func TestInvalidInputIsBadRequest(t *testing.T) {
	svc := NewService(&fakeSwapper{}, stub.NewChain(1))
	ctx := context.Background()

	cases := map[string]error{}
	_, cases["no token"] = svc.Buy(ctx, BuyRequest{NativeIn: "1"})
	_, cases["bad token"] = svc.Buy(ctx, BuyRequest{Token: "0x123", NativeIn: "1"})
	_, cases["no amount"] = svc.Buy(ctx, BuyRequest{Token: testToken.Hex()})
	_, cases["negative"] = svc.Buy(ctx, BuyRequest{Token: testToken.Hex(), NativeIn: "-1"})
	_, cases["zero"] = svc.Buy(ctx, BuyRequest{Token: testToken.Hex(), NativeIn: "0"})
	_, cases["both"] = svc.Buy(ctx, BuyRequest{Token: testToken.Hex(), NativeIn: "1", NativeInWei: "1"})
	_, cases["sell both"] = svc.Sell(ctx, SellRequest{Token: testToken.Hex(), Amount: "1", AmountRaw: "1"})
	_, cases["sell raw junk"] = svc.Sell(ctx, SellRequest{Token: testToken.Hex(), AmountRaw: "1e18"})
	for name, err := range cases {
		assert.ErrorIs(t, err, ErrBadRequest, name)
	}
}

func TestFailedSwapStillReturnsReport(t *testing.T) {
	sw := &fakeSwapper{err: txbuilder.NewError(txbuilder.KindConfirmationTimeout, "await receipt", errors.New("no receipt"))}
	svc := NewService(sw, stub.NewChain(1))

	rep, err := svc.Buy(context.Background(), BuyRequest{Token: testToken.Hex(), NativeIn: "1"})
	require.Error(t, err)
	require.NotNil(t, rep)
	assert.Equal(t, swap.StateFailed, rep.State)
	assert.Equal(t, string(txbuilder.KindConfirmationTimeout), rep.ErrorKind)
}

func TestBalanceNativeAndToken(t *testing.T) {
	chain := erc20Chain(6, big.NewInt(2_500_000))
	chain.Balances[testAccount] = big.NewInt(1_000_000_000_000_000_000)
	svc := NewService(&fakeSwapper{}, chain)

	native, err := svc.Balance(context.Background(), "")
	require.NoError(t, err)
	assert.Equal(t, "1", native.Formatted)
	assert.Equal(t, uint8(18), native.Decimals)

	tok, err := svc.Balance(context.Background(), testToken.Hex())
	require.NoError(t, err)
	assert.Equal(t, "2500000", tok.Raw)
	assert.Equal(t, "2.5", tok.Formatted)
	assert.Equal(t, testToken.Hex(), tok.Token)
}
