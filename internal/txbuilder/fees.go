package txbuilder

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"sync"
)

// DefaultFeeIncrement is added to both fee fields on top of the network quote.
var DefaultFeeIncrement = big.NewInt(1_000_000_000)

const DefaultRewardPercentile = 50.0

type FeeOracleConfig struct {
	Increment        *big.Int
	RewardPercentile float64
}

// FeeQuote is the priced envelope for one transaction. BaseFee and Reward
// are the raw network samples the quote was derived from.
type FeeQuote struct {
	MaxFeePerGas         *big.Int
	MaxPriorityFeePerGas *big.Int
	BaseFee              *big.Int
	Reward               *big.Int
	Block                *big.Int
}

type FeeOracle struct {
	client ChainClient
	cfg    FeeOracleConfig

	mu        sync.Mutex
	lastBlock *big.Int
	lastBase  *big.Int
}

func NewFeeOracle(client ChainClient, cfg FeeOracleConfig) *FeeOracle {
	if cfg.Increment == nil || cfg.Increment.Sign() <= 0 {
		cfg.Increment = new(big.Int).Set(DefaultFeeIncrement)
	}
	if cfg.RewardPercentile <= 0 || cfg.RewardPercentile > 100 {
		cfg.RewardPercentile = DefaultRewardPercentile
	}
	return &FeeOracle{client: client, cfg: cfg}
}

// Quote samples the latest fee history entry. There is no fallback to a
// legacy gas price: a chain without EIP-1559 fee history is an error.
func (o *FeeOracle) Quote(ctx context.Context) (FeeQuote, error) {
	if o.client == nil {
		return FeeQuote{}, NewError(KindFeeDataUnavailable, "fee history", errors.New("client is nil"))
	}
	hist, err := o.client.FeeHistory(ctx, 1, nil, []float64{o.cfg.RewardPercentile})
	if err != nil {
		return FeeQuote{}, NewError(KindFeeDataUnavailable, "fee history", err)
	}
	if hist == nil || len(hist.BaseFee) == 0 || len(hist.Reward) == 0 || len(hist.Reward[len(hist.Reward)-1]) == 0 {
		return FeeQuote{}, NewError(KindFeeDataUnavailable, "fee history", errors.New("node returned no base fee or reward samples"))
	}
	baseFee := hist.BaseFee[len(hist.BaseFee)-1]
	reward := hist.Reward[len(hist.Reward)-1][0]
	if baseFee == nil || reward == nil {
		return FeeQuote{}, NewError(KindFeeDataUnavailable, "fee history", errors.New("nil fee sample"))
	}
	if baseFee.Sign() < 0 || reward.Sign() < 0 {
		return FeeQuote{}, NewError(KindFeeDataUnavailable, "fee history", fmt.Errorf("negative fee sample base=%s reward=%s", baseFee, reward))
	}
	baseFee = o.floorBaseFee(hist.OldestBlock, baseFee)

	maxPriority := new(big.Int).Add(reward, o.cfg.Increment)
	maxFee := new(big.Int).Add(baseFee, reward)
	maxFee.Add(maxFee, o.cfg.Increment)
	return FeeQuote{
		MaxFeePerGas:         maxFee,
		MaxPriorityFeePerGas: maxPriority,
		BaseFee:              new(big.Int).Set(baseFee),
		Reward:               new(big.Int).Set(reward),
		Block:                cloneBig(hist.OldestBlock),
	}, nil
}

// floorBaseFee keeps the base-fee component from moving backwards between
// two samples of the same block.
func (o *FeeOracle) floorBaseFee(block *big.Int, baseFee *big.Int) *big.Int {
	o.mu.Lock()
	defer o.mu.Unlock()
	if block != nil && o.lastBlock != nil && block.Cmp(o.lastBlock) == 0 && o.lastBase != nil && baseFee.Cmp(o.lastBase) < 0 {
		return new(big.Int).Set(o.lastBase)
	}
	o.lastBlock = cloneBig(block)
	o.lastBase = new(big.Int).Set(baseFee)
	return baseFee
}

func cloneBig(v *big.Int) *big.Int {
	if v == nil {
		return nil
	}
	return new(big.Int).Set(v)
}

func GweiToWei(gwei float64) (*big.Int, error) {
	if gwei < 0 {
		return nil, errors.New("gwei must be non-negative")
	}
	v := new(big.Rat).SetFloat64(gwei)
	v.Mul(v, new(big.Rat).SetInt(big.NewInt(1_000_000_000)))
	out := new(big.Int)
	out.Div(v.Num(), v.Denom())
	return out, nil
}
