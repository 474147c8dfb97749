package txbuilder

import (
	"math/big"
	"strings"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
)

func TestApproveCalldata(t *testing.T) {
	spender := common.HexToAddress("0x4444444444444444444444444444444444444444")
	amount := big.NewInt(1000000)

	data, err := buildApproveData(spender, amount)
	if err != nil {
		t.Fatalf("buildApproveData error: %v", err)
	}
	expected := "0x095ea7b3" + hexAddress(spender) + hex32(amount)
	if got := hexutil.Encode(data); got != expected {
		t.Fatalf("unexpected calldata\nexpected=%s\nactual=%s", expected, got)
	}
}

func TestSwapNativeForTokenCalldata(t *testing.T) {
	parsed, err := LoadRouterABI("")
	if err != nil {
		t.Fatalf("LoadRouterABI error: %v", err)
	}
	router := NewRouter(DefaultRouterAddress, DefaultWrappedNative, parsed)
	token := common.HexToAddress("0x69babE9811CC86dCfC3B8f9a14de6470Dd18EDA4")
	recipient := common.HexToAddress("0x5555555555555555555555555555555555555555")
	deadline := uint64(1700010000)

	data, err := router.SwapNativeForTokenData(big.NewInt(0), token, recipient, deadline)
	if err != nil {
		t.Fatalf("SwapNativeForTokenData error: %v", err)
	}
	expected := "0x7ff36ab5" +
		hex32(big.NewInt(0)) +
		hex32(big.NewInt(0x80)) +
		hexAddress(recipient) +
		hex32(new(big.Int).SetUint64(deadline)) +
		hex32(big.NewInt(2)) +
		hexAddress(DefaultWrappedNative) +
		hexAddress(token)
	if got := hexutil.Encode(data); got != expected {
		t.Fatalf("unexpected calldata\nexpected=%s\nactual=%s", expected, got)
	}
}

func TestSwapTokenForNativeCalldata(t *testing.T) {
	parsed, err := LoadRouterABI("")
	if err != nil {
		t.Fatalf("LoadRouterABI error: %v", err)
	}
	router := NewRouter(DefaultRouterAddress, DefaultWrappedNative, parsed)
	token := common.HexToAddress("0x3333333333333333333333333333333333333333")
	recipient := common.HexToAddress("0x5555555555555555555555555555555555555555")
	amountIn := big.NewInt(100)
	minOut := big.NewInt(7)
	deadline := uint64(1700010000)

	data, err := router.SwapTokenForNativeData(amountIn, minOut, token, recipient, deadline)
	if err != nil {
		t.Fatalf("SwapTokenForNativeData error: %v", err)
	}
	expected := "0x18cbafe5" +
		hex32(amountIn) +
		hex32(minOut) +
		hex32(big.NewInt(0xa0)) +
		hexAddress(recipient) +
		hex32(new(big.Int).SetUint64(deadline)) +
		hex32(big.NewInt(2)) +
		hexAddress(token) +
		hexAddress(DefaultWrappedNative)
	if got := hexutil.Encode(data); got != expected {
		t.Fatalf("unexpected calldata\nexpected=%s\nactual=%s", expected, got)
	}
}

func TestLoadRouterABIRejectsMissingMethods(t *testing.T) {
	dir := t.TempDir()
	path := dir + "/router.json"
	if err := writeFile(path, `[{"inputs":[],"name":"factory","outputs":[{"type":"address"}],"stateMutability":"view","type":"function"}]`); err != nil {
		t.Fatalf("write abi: %v", err)
	}
	if _, err := LoadRouterABI(path); err == nil || !strings.Contains(err.Error(), MethodSwapExactETHForTokens) {
		t.Fatalf("expected missing method error, got %v", err)
	}
}

func TestNewRequestRejectsInvertedFees(t *testing.T) {
	_, err := newRequest(MethodApprove, big.NewInt(1), common.Address{}, common.Address{}, big.NewInt(0), nil, BuildParams{
		GasLimit: 50000,
		Fee: FeeQuote{
			MaxFeePerGas:         big.NewInt(1),
			MaxPriorityFeePerGas: big.NewInt(2),
		},
	})
	if err == nil {
		t.Fatalf("expected error for maxFee < priorityFee")
	}
}

func TestParseUnits(t *testing.T) {
	v, err := ParseUnits("1.23", 6)
	if err != nil {
		t.Fatalf("ParseUnits error: %v", err)
	}
	if v.String() != "1230000" {
		t.Fatalf("unexpected value: %s", v.String())
	}

	v, err = ParseUnits("0.00001", NativeDecimals)
	if err != nil {
		t.Fatalf("ParseUnits error: %v", err)
	}
	if v.String() != "10000000000000" {
		t.Fatalf("unexpected value: %s", v.String())
	}

	if _, err := ParseUnits("0.0000001", 6); err == nil {
		t.Fatalf("expected precision error")
	}
	if _, err := ParseUnits("-1", 6); err == nil {
		t.Fatalf("expected negative error")
	}
	if _, err := ParseUnits("abc", 6); err == nil {
		t.Fatalf("expected format error")
	}
}

func TestFormatUnits(t *testing.T) {
	if got := FormatUnits(big.NewInt(1230000), 6); got != "1.23" {
		t.Fatalf("unexpected value: %s", got)
	}
	if got := FormatUnits(nil, 18); got != "0" {
		t.Fatalf("unexpected value: %s", got)
	}
}

func hex32(v *big.Int) string {
	b := common.LeftPadBytes(v.Bytes(), 32)
	return hexutil.Encode(b)[2:]
}

func hexAddress(addr common.Address) string {
	b := common.LeftPadBytes(addr.Bytes(), 32)
	return strings.ToLower(hexutil.Encode(b)[2:])
}
