package txbuilder

import (
	"errors"
	"fmt"
	"math/big"
	"os"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
)

// Uniswap V2 router, mainnet.
var (
	DefaultRouterAddress = common.HexToAddress("0x7a250d5630B4cF539739dF2C5dAcb4c659F2488D")
	DefaultWrappedNative = common.HexToAddress("0xC02aaA39b223FE8D0A0e5C4F27eAD9083C756Cc2")
)

// Fragment of the Uniswap V2 router ABI used when no ABI file is configured.
const defaultRouterABI = `[
 {"inputs":[{"internalType":"uint256","name":"amountOutMin","type":"uint256"},{"internalType":"address[]","name":"path","type":"address[]"},{"internalType":"address","name":"to","type":"address"},{"internalType":"uint256","name":"deadline","type":"uint256"}],
  "name":"swapExactETHForTokens","outputs":[{"internalType":"uint256[]","name":"amounts","type":"uint256[]"}],"stateMutability":"payable","type":"function"},
 {"inputs":[{"internalType":"uint256","name":"amountIn","type":"uint256"},{"internalType":"uint256","name":"amountOutMin","type":"uint256"},{"internalType":"address[]","name":"path","type":"address[]"},{"internalType":"address","name":"to","type":"address"},{"internalType":"uint256","name":"deadline","type":"uint256"}],
  "name":"swapExactTokensForETH","outputs":[{"internalType":"uint256[]","name":"amounts","type":"uint256[]"}],"stateMutability":"nonpayable","type":"function"}
]`

type Router struct {
	Address       common.Address
	WrappedNative common.Address
	abi           abi.ABI
}

// LoadRouterABI parses the router ABI at path, or the built-in fragment when
// path is empty, and checks that both swap entry points are present.
func LoadRouterABI(path string) (abi.ABI, error) {
	raw := defaultRouterABI
	if strings.TrimSpace(path) != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			return abi.ABI{}, fmt.Errorf("read router abi: %w", err)
		}
		raw = string(b)
	}
	parsed, err := abi.JSON(strings.NewReader(raw))
	if err != nil {
		return abi.ABI{}, fmt.Errorf("parse router abi: %w", err)
	}
	for _, name := range []string{MethodSwapExactETHForTokens, MethodSwapExactTokensForETH} {
		if _, ok := parsed.Methods[name]; !ok {
			return abi.ABI{}, fmt.Errorf("router abi has no %s method", name)
		}
	}
	return parsed, nil
}

func NewRouter(address, wrappedNative common.Address, parsed abi.ABI) *Router {
	return &Router{Address: address, WrappedNative: wrappedNative, abi: parsed}
}

func (r *Router) SwapNativeForTokenData(amountOutMin *big.Int, tokenOut, recipient common.Address, deadline uint64) ([]byte, error) {
	if amountOutMin == nil {
		return nil, errors.New("amountOutMin is required")
	}
	path := []common.Address{r.WrappedNative, tokenOut}
	return r.abi.Pack(MethodSwapExactETHForTokens, amountOutMin, path, recipient, new(big.Int).SetUint64(deadline))
}

func (r *Router) SwapTokenForNativeData(amountIn, amountOutMin *big.Int, tokenIn, recipient common.Address, deadline uint64) ([]byte, error) {
	if amountIn == nil || amountOutMin == nil {
		return nil, errors.New("amountIn and amountOutMin are required")
	}
	path := []common.Address{tokenIn, r.WrappedNative}
	return r.abi.Pack(MethodSwapExactTokensForETH, amountIn, amountOutMin, path, recipient, new(big.Int).SetUint64(deadline))
}
