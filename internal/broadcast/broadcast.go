// Package broadcast submits signed transactions and waits for their receipts.
package broadcast

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"

	"ammswap/internal/txbuilder"
)

const (
	DefaultPollInterval   = 2 * time.Second
	DefaultConfirmTimeout = 120 * time.Second
)

type Client interface {
	SendTransaction(ctx context.Context, tx *types.Transaction) error
	TransactionReceipt(ctx context.Context, txHash common.Hash) (*types.Receipt, error)
}

type Config struct {
	PollInterval time.Duration
}

type Broadcaster struct {
	client Client
	cfg    Config
	logger *slog.Logger
}

func New(client Client, cfg Config, logger *slog.Logger) *Broadcaster {
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = DefaultPollInterval
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Broadcaster{client: client, cfg: cfg, logger: logger}
}

// Submit sends the transaction exactly once. A rejected transaction is not
// resent: the caller must rebuild it with a fresh nonce and fee quote.
func (b *Broadcaster) Submit(ctx context.Context, signed *txbuilder.SignedTx) (common.Hash, error) {
	if signed == nil || signed.Tx == nil {
		return common.Hash{}, txbuilder.NewError(txbuilder.KindSubmissionRejected, "send raw transaction", errors.New("transaction is nil"))
	}
	if err := b.client.SendTransaction(ctx, signed.Tx); err != nil {
		e := txbuilder.NewError(txbuilder.KindSubmissionRejected, "send raw transaction", err)
		e.TxHash = signed.Hash
		return common.Hash{}, e
	}
	b.logger.Info("transaction submitted", "tx_hash", signed.Hash.Hex(), "nonce", signed.Tx.Nonce())
	return signed.Hash, nil
}

// AwaitReceipt polls until a receipt exists or timeout elapses. Reverted
// receipts are returned without error; the caller inspects Status. A
// timeout says nothing about the final outcome of the transaction.
func (b *Broadcaster) AwaitReceipt(ctx context.Context, hash common.Hash, timeout time.Duration) (*types.Receipt, error) {
	if timeout <= 0 {
		timeout = DefaultConfirmTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	ticker := time.NewTicker(b.cfg.PollInterval)
	defer ticker.Stop()

	for {
		receipt, err := b.client.TransactionReceipt(ctx, hash)
		switch {
		case err == nil && receipt != nil:
			b.logger.Info("transaction mined",
				"tx_hash", hash.Hex(),
				"status", receipt.Status,
				"block", receipt.BlockNumber,
				"gas_used", receipt.GasUsed,
			)
			return receipt, nil
		case err != nil && !errors.Is(err, ethereum.NotFound) && ctx.Err() == nil:
			b.logger.Warn("receipt lookup failed", "tx_hash", hash.Hex(), "error", err)
		}

		select {
		case <-ctx.Done():
			e := txbuilder.NewError(txbuilder.KindConfirmationTimeout, "await receipt", fmt.Errorf("no receipt after %s: %w", timeout, ctx.Err()))
			e.TxHash = hash
			return nil, e
		case <-ticker.C:
		}
	}
}
