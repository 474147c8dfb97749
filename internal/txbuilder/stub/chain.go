// Package stub provides an in-memory node for exercising the swap engine
// without a network.
package stub

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
)

// Chain implements txbuilder.ChainClient. Submitted transactions are mined
// on the next receipt lookup unless Status says otherwise.
type Chain struct {
	mu sync.Mutex

	ID        *big.Int
	BaseFee   *big.Int
	Reward    *big.Int
	Block     uint64
	BlockTime uint64

	Nonces   map[common.Address]uint64
	Balances map[common.Address]*big.Int

	FeeHistoryErr error
	HeaderErr     error
	NonceErr      error
	SendErr       error
	ReceiptErr    error

	// EstimateGas overrides the default flat estimate when set.
	EstimateGasFn func(msg ethereum.CallMsg) (uint64, error)
	// Status decides the receipt for a mined transaction. mined=false keeps
	// the transaction pending forever.
	Status func(tx *types.Transaction) (status uint64, mined bool)
	// Call answers eth_call.
	Call func(msg ethereum.CallMsg) ([]byte, error)

	Estimates    []ethereum.CallMsg
	Sent         []*types.Transaction
	ReceiptPolls int
}

func NewChain(chainID int64) *Chain {
	return &Chain{
		ID:        big.NewInt(chainID),
		BaseFee:   big.NewInt(20_000_000_000),
		Reward:    big.NewInt(1_500_000_000),
		Block:     19_000_000,
		BlockTime: 1_700_000_000,
		Nonces:    make(map[common.Address]uint64),
		Balances:  make(map[common.Address]*big.Int),
	}
}

func (c *Chain) ChainID(context.Context) (*big.Int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return new(big.Int).Set(c.ID), nil
}

func (c *Chain) PendingNonceAt(_ context.Context, account common.Address) (uint64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.NonceErr != nil {
		return 0, c.NonceErr
	}
	return c.Nonces[account], nil
}

func (c *Chain) BalanceAt(_ context.Context, account common.Address, _ *big.Int) (*big.Int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if b, ok := c.Balances[account]; ok {
		return new(big.Int).Set(b), nil
	}
	return big.NewInt(0), nil
}

func (c *Chain) FeeHistory(_ context.Context, blockCount uint64, _ *big.Int, rewardPercentiles []float64) (*ethereum.FeeHistory, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.FeeHistoryErr != nil {
		return nil, c.FeeHistoryErr
	}
	if blockCount != 1 || len(rewardPercentiles) != 1 {
		return nil, fmt.Errorf("unexpected fee history query count=%d percentiles=%v", blockCount, rewardPercentiles)
	}
	hist := &ethereum.FeeHistory{OldestBlock: new(big.Int).SetUint64(c.Block)}
	if c.BaseFee != nil {
		// baseFeePerGas carries one entry past the sampled block.
		hist.BaseFee = []*big.Int{new(big.Int).Set(c.BaseFee), new(big.Int).Set(c.BaseFee)}
	}
	if c.Reward != nil {
		hist.Reward = [][]*big.Int{{new(big.Int).Set(c.Reward)}}
	}
	return hist, nil
}

func (c *Chain) HeaderByNumber(context.Context, *big.Int) (*types.Header, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.HeaderErr != nil {
		return nil, c.HeaderErr
	}
	return &types.Header{
		Number:  new(big.Int).SetUint64(c.Block),
		Time:    c.BlockTime,
		BaseFee: cloneBig(c.BaseFee),
	}, nil
}

func (c *Chain) EstimateGas(_ context.Context, msg ethereum.CallMsg) (uint64, error) {
	c.mu.Lock()
	c.Estimates = append(c.Estimates, msg)
	fn := c.EstimateGasFn
	c.mu.Unlock()
	if fn != nil {
		return fn(msg)
	}
	return 150_000, nil
}

func (c *Chain) CallContract(_ context.Context, msg ethereum.CallMsg, _ *big.Int) ([]byte, error) {
	c.mu.Lock()
	fn := c.Call
	c.mu.Unlock()
	if fn == nil {
		return nil, errors.New("execution reverted")
	}
	return fn(msg)
}

func (c *Chain) SendTransaction(_ context.Context, tx *types.Transaction) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.SendErr != nil {
		return c.SendErr
	}
	from, err := types.Sender(types.LatestSignerForChainID(c.ID), tx)
	if err != nil {
		return fmt.Errorf("invalid sender: %w", err)
	}
	want := c.Nonces[from]
	switch {
	case tx.Nonce() < want:
		return fmt.Errorf("nonce too low: next nonce %d, tx nonce %d", want, tx.Nonce())
	case tx.Nonce() > want:
		return fmt.Errorf("nonce too high: next nonce %d, tx nonce %d", want, tx.Nonce())
	}
	c.Nonces[from] = want + 1
	c.Sent = append(c.Sent, tx)
	return nil
}

func (c *Chain) TransactionReceipt(_ context.Context, hash common.Hash) (*types.Receipt, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.ReceiptPolls++
	if c.ReceiptErr != nil {
		return nil, c.ReceiptErr
	}
	for i, tx := range c.Sent {
		if tx.Hash() != hash {
			continue
		}
		status, mined := types.ReceiptStatusSuccessful, true
		if c.Status != nil {
			status, mined = c.Status(tx)
		}
		if !mined {
			return nil, ethereum.NotFound
		}
		block := c.Block + uint64(i) + 1
		return &types.Receipt{
			Type:              tx.Type(),
			Status:            status,
			GasUsed:           tx.Gas() * 8 / 10,
			TxHash:            hash,
			BlockNumber:       new(big.Int).SetUint64(block),
			BlockHash:         common.BigToHash(new(big.Int).SetUint64(block)),
			TransactionIndex:  0,
			EffectiveGasPrice: new(big.Int).Set(tx.GasFeeCap()),
		}, nil
	}
	return nil, ethereum.NotFound
}

// SentSelectors returns the 4-byte selectors of submitted transactions in order.
func (c *Chain) SentSelectors() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]string, 0, len(c.Sent))
	for _, tx := range c.Sent {
		if len(tx.Data()) < 4 {
			out = append(out, "")
			continue
		}
		out = append(out, fmt.Sprintf("0x%x", tx.Data()[:4]))
	}
	return out
}

func cloneBig(v *big.Int) *big.Int {
	if v == nil {
		return nil
	}
	return new(big.Int).Set(v)
}
