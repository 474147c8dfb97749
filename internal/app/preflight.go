package app

import (
	"context"
	"fmt"
	"log/slog"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"golang.org/x/sync/errgroup"

	"ammswap/internal/txbuilder"
	"ammswap/internal/util"
)

type Status struct {
	ChainID   *big.Int
	Account   common.Address
	Balance   *big.Int
	Block     uint64
	BlockTime uint64
}

// probeChainID retries eth_chainId with backoff. Failing it is fatal: there
// is no point building transactions against an unreachable node.
func probeChainID(ctx context.Context, client txbuilder.ChainClient, retries int, backoff, timeout time.Duration) (*big.Int, error) {
	var id *big.Int
	err := util.Retry(ctx, retries, backoff, func() error {
		ctxTimeout, cancel := withTimeout(ctx, timeout)
		defer cancel()
		v, err := client.ChainID(ctxTimeout)
		if err != nil {
			return err
		}
		id = v
		return nil
	})
	if err != nil {
		return nil, txbuilder.NewError(txbuilder.KindConnectivity, "chain id", err)
	}
	return id, nil
}

// preflight reads balance and head concurrently once the node is known to
// answer.
func preflight(ctx context.Context, logger *slog.Logger, client txbuilder.ChainClient, chainID *big.Int, account common.Address, timeout time.Duration) (*Status, error) {
	st := &Status{ChainID: chainID, Account: account}
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		ctxTimeout, cancel := withTimeout(gctx, timeout)
		defer cancel()
		bal, err := client.BalanceAt(ctxTimeout, account, nil)
		if err != nil {
			return txbuilder.NewError(txbuilder.KindConnectivity, "balance", err)
		}
		st.Balance = bal
		return nil
	})
	g.Go(func() error {
		ctxTimeout, cancel := withTimeout(gctx, timeout)
		defer cancel()
		head, err := client.HeaderByNumber(ctxTimeout, nil)
		if err != nil {
			return txbuilder.NewError(txbuilder.KindConnectivity, "latest block", err)
		}
		st.Block = head.Number.Uint64()
		st.BlockTime = head.Time
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}
	logger.Info("connected",
		"chain_id", chainID,
		"account", account.Hex(),
		"balance", txbuilder.FormatUnits(st.Balance, txbuilder.NativeDecimals),
		"block", st.Block,
	)
	return st, nil
}

func checkChainID(want uint64, got *big.Int) error {
	if want != 0 && (got == nil || !got.IsUint64() || got.Uint64() != want) {
		return fmt.Errorf("node chain id %v does not match configured chain_id %d", got, want)
	}
	return nil
}

func withTimeout(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if d <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, d)
}
