package txbuilder

import (
	"context"
	"crypto/ecdsa"
	"errors"
	"math/big"
	"strings"
	"testing"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"

	"ammswap/internal/txbuilder/stub"
)

const testKeyHex = "b71c71a67e1177ad4e901695e1b4b9ee17ae16c6668d313eac2f96dbcda3f291"

var testToken = common.HexToAddress("0x69babE9811CC86dCfC3B8f9a14de6470Dd18EDA4")

func newTestAuto(t *testing.T, chain *stub.Chain, cfg AutoBuilderConfig) *AutoBuilder {
	t.Helper()
	parsed, err := LoadRouterABI("")
	if err != nil {
		t.Fatalf("LoadRouterABI error: %v", err)
	}
	if cfg.ChainID == nil {
		cfg.ChainID = chain.ID
	}
	router := NewRouter(DefaultRouterAddress, DefaultWrappedNative, parsed)
	return NewAutoBuilder(chain, NewFeeOracle(chain, FeeOracleConfig{}), NewNonceManager(chain), router, cfg)
}

func testKey(t *testing.T) (*ecdsa.PrivateKey, common.Address) {
	t.Helper()
	key, err := crypto.HexToECDSA(testKeyHex)
	if err != nil {
		t.Fatalf("HexToECDSA error: %v", err)
	}
	return key, crypto.PubkeyToAddress(key.PublicKey)
}

func TestBuildSwapNativeForToken(t *testing.T) {
	chain := stub.NewChain(1)
	_, from := testKey(t)
	chain.Nonces[from] = 12
	auto := newTestAuto(t, chain, AutoBuilderConfig{})

	value, _ := ParseUnits("0.00001", NativeDecimals)
	req, err := auto.BuildSwapNativeForToken(context.Background(), from, testToken, value)
	if err != nil {
		t.Fatalf("BuildSwapNativeForToken error: %v", err)
	}
	if req.To != DefaultRouterAddress {
		t.Fatalf("unexpected to: %s", req.To.Hex())
	}
	if req.Value.String() != "10000000000000" {
		t.Fatalf("unexpected value: %s", req.Value)
	}
	if req.Nonce != 12 {
		t.Fatalf("unexpected nonce: %d", req.Nonce)
	}
	if req.Deadline != chain.BlockTime+10000 {
		t.Fatalf("deadline %d, expected latest block time + 10000 = %d", req.Deadline, chain.BlockTime+10000)
	}
	if req.GasLimit != 150_000 {
		t.Fatalf("expected raw gas estimate, got %d", req.GasLimit)
	}
	if req.MaxFeePerGas.Cmp(req.MaxPriorityFeePerGas) < 0 {
		t.Fatalf("maxFee below priority fee")
	}
	data := hexutil.Encode(req.Data)
	if !strings.HasPrefix(data, "0x7ff36ab5"+hex32(big.NewInt(0))) {
		t.Fatalf("expected swapExactETHForTokens with amountOutMin 0, got %s", data[:80])
	}
	if !strings.HasSuffix(data, hexAddress(DefaultWrappedNative)+hexAddress(testToken)) {
		t.Fatalf("expected path [wrappedNative, token], got %s", data)
	}

	if len(chain.Estimates) != 1 {
		t.Fatalf("expected one gas estimate, got %d", len(chain.Estimates))
	}
	est := chain.Estimates[0]
	if est.From != from || *est.To != DefaultRouterAddress || est.Value.Cmp(value) != 0 || hexutil.Encode(est.Data) != data {
		t.Fatalf("gas estimate was not run against the exact payload: %+v", est)
	}
}

func TestBuildSwapTokenForNativeUsesMinAmountOut(t *testing.T) {
	chain := stub.NewChain(1)
	_, from := testKey(t)
	auto := newTestAuto(t, chain, AutoBuilderConfig{MinAmountOut: big.NewInt(99), GasLimitMultiplier: 1.5})

	req, err := auto.BuildSwapTokenForNative(context.Background(), from, testToken, big.NewInt(100))
	if err != nil {
		t.Fatalf("BuildSwapTokenForNative error: %v", err)
	}
	if req.Value.Sign() != 0 {
		t.Fatalf("token sell must carry no native value, got %s", req.Value)
	}
	data := hexutil.Encode(req.Data)
	if !strings.HasPrefix(data, "0x18cbafe5"+hex32(big.NewInt(100))+hex32(big.NewInt(99))) {
		t.Fatalf("unexpected calldata head: %s", data)
	}
	if !strings.HasSuffix(data, hexAddress(testToken)+hexAddress(DefaultWrappedNative)) {
		t.Fatalf("expected path [token, wrappedNative], got %s", data)
	}
	if req.GasLimit != 225_000 {
		t.Fatalf("expected multiplied gas limit, got %d", req.GasLimit)
	}
}

func TestBuildApproveTargetsTokenWithRouterSpender(t *testing.T) {
	chain := stub.NewChain(1)
	_, from := testKey(t)
	auto := newTestAuto(t, chain, AutoBuilderConfig{})

	req, err := auto.BuildApprove(context.Background(), from, testToken, big.NewInt(100))
	if err != nil {
		t.Fatalf("BuildApprove error: %v", err)
	}
	if req.To != testToken {
		t.Fatalf("approve must be sent to the token, got %s", req.To.Hex())
	}
	expected := "0x095ea7b3" + hexAddress(DefaultRouterAddress) + hex32(big.NewInt(100))
	if got := hexutil.Encode(req.Data); got != expected {
		t.Fatalf("unexpected calldata\nexpected=%s\nactual=%s", expected, got)
	}
	if req.Deadline != 0 {
		t.Fatalf("approve carries no deadline, got %d", req.Deadline)
	}
}

func TestBuildPropagatesGasEstimationCause(t *testing.T) {
	chain := stub.NewChain(1)
	_, from := testKey(t)
	cause := errors.New("insufficient funds for gas * price + value")
	chain.EstimateGasFn = func(ethereum.CallMsg) (uint64, error) { return 0, cause }
	auto := newTestAuto(t, chain, AutoBuilderConfig{})

	_, err := auto.BuildSwapNativeForToken(context.Background(), from, testToken, big.NewInt(1))
	if !errors.Is(err, ErrGasEstimationFailed) {
		t.Fatalf("expected ErrGasEstimationFailed, got %v", err)
	}
	if !errors.Is(err, cause) {
		t.Fatalf("node error must stay reachable, got %v", err)
	}
	if !strings.Contains(err.Error(), cause.Error()) {
		t.Fatalf("node error must appear in the message, got %q", err.Error())
	}
	var estErr *EstimateGasError
	if !errors.As(err, &estErr) || estErr.CallMsg.To == nil || *estErr.CallMsg.To != DefaultRouterAddress {
		t.Fatalf("expected EstimateGasError carrying the call, got %v", err)
	}
}

func TestBuildFailsFastWithoutFeeData(t *testing.T) {
	chain := stub.NewChain(1)
	_, from := testKey(t)
	chain.FeeHistoryErr = errors.New("rpc error")
	auto := newTestAuto(t, chain, AutoBuilderConfig{})

	_, err := auto.BuildApprove(context.Background(), from, testToken, big.NewInt(1))
	if !errors.Is(err, ErrFeeDataUnavailable) {
		t.Fatalf("expected ErrFeeDataUnavailable, got %v", err)
	}
	if len(chain.Estimates) != 0 {
		t.Fatalf("nothing should be estimated without a fee quote")
	}
}

func TestBuildRejectsNonPositiveAmounts(t *testing.T) {
	chain := stub.NewChain(1)
	_, from := testKey(t)
	auto := newTestAuto(t, chain, AutoBuilderConfig{})
	ctx := context.Background()

	for _, amount := range []*big.Int{nil, big.NewInt(0), big.NewInt(-1)} {
		if _, err := auto.BuildApprove(ctx, from, testToken, amount); !errors.Is(err, ErrInvalidAmount) {
			t.Fatalf("approve %v: expected ErrInvalidAmount, got %v", amount, err)
		}
		if _, err := auto.BuildSwapNativeForToken(ctx, from, testToken, amount); !errors.Is(err, ErrInvalidAmount) {
			t.Fatalf("buy %v: expected ErrInvalidAmount, got %v", amount, err)
		}
		if _, err := auto.BuildSwapTokenForNative(ctx, from, testToken, amount); !errors.Is(err, ErrInvalidAmount) {
			t.Fatalf("sell %v: expected ErrInvalidAmount, got %v", amount, err)
		}
	}
	if len(chain.Estimates) != 0 {
		t.Fatalf("nothing should be estimated for an invalid amount")
	}
}

func TestSignIsDeterministicAndRecoverable(t *testing.T) {
	chain := stub.NewChain(1)
	key, from := testKey(t)
	auto := newTestAuto(t, chain, AutoBuilderConfig{})

	req, err := auto.BuildApprove(context.Background(), from, testToken, big.NewInt(5))
	if err != nil {
		t.Fatalf("BuildApprove error: %v", err)
	}
	a, err := Sign(req, key)
	if err != nil {
		t.Fatalf("Sign error: %v", err)
	}
	b, err := Sign(req, key)
	if err != nil {
		t.Fatalf("Sign error: %v", err)
	}
	if a.Hash != b.Hash || hexutil.Encode(a.Raw) != hexutil.Encode(b.Raw) {
		t.Fatalf("signing is not deterministic")
	}
	sender, err := types.Sender(types.LatestSignerForChainID(chain.ID), a.Tx)
	if err != nil {
		t.Fatalf("Sender error: %v", err)
	}
	if sender != from {
		t.Fatalf("recovered %s, expected %s", sender.Hex(), from.Hex())
	}
	if a.Tx.Type() != types.DynamicFeeTxType {
		t.Fatalf("expected EIP-1559 transaction, got type %d", a.Tx.Type())
	}
	if a.Tx.GasFeeCap().Cmp(req.MaxFeePerGas) != 0 || a.Tx.GasTipCap().Cmp(req.MaxPriorityFeePerGas) != 0 {
		t.Fatalf("fees changed during signing")
	}
}

func TestSignRejectsMissingKey(t *testing.T) {
	req := &Request{ChainID: big.NewInt(1), Value: big.NewInt(0), MaxFeePerGas: big.NewInt(2), MaxPriorityFeePerGas: big.NewInt(1)}
	_, err := Sign(req, nil)
	if !errors.Is(err, ErrSigning) {
		t.Fatalf("expected ErrSigning, got %v", err)
	}
	_, err = Sign(req, &ecdsa.PrivateKey{})
	if !errors.Is(err, ErrSigning) {
		t.Fatalf("expected ErrSigning for empty key, got %v", err)
	}
}

func TestErrorMessageCarriesKindAndHash(t *testing.T) {
	err := &Error{Kind: KindConfirmationTimeout, Op: "await receipt", TxHash: common.HexToHash("0x01")}
	msg := err.Error()
	if !strings.Contains(msg, "confirmation timeout") || !strings.Contains(msg, "0x0000000000000000000000000000000000000000000000000000000000000001") {
		t.Fatalf("unexpected message %q", msg)
	}
	if !errors.Is(err, ErrConfirmationTimeout) || errors.Is(err, ErrOnChainRevert) {
		t.Fatalf("errors.Is must match only the own kind")
	}
	if Retryable(KindOnChainRevert) || !Retryable(KindFeeDataUnavailable) {
		t.Fatalf("unexpected Retryable classification")
	}
}
