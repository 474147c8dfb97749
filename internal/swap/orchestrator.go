// Package swap sequences the on-chain calls behind Buy and Sell.
package swap

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"

	"ammswap/internal/metrics"
	"ammswap/internal/txbuilder"
)

const (
	StepApprove = "approve"
	StepSwap    = "swap"
)

type Builder interface {
	BuildApprove(ctx context.Context, from, token common.Address, amount *big.Int) (*txbuilder.Request, error)
	BuildSwapNativeForToken(ctx context.Context, from, tokenOut common.Address, nativeIn *big.Int) (*txbuilder.Request, error)
	BuildSwapTokenForNative(ctx context.Context, from, tokenIn common.Address, amountIn *big.Int) (*txbuilder.Request, error)
}

type Signer interface {
	SignRequest(req *txbuilder.Request) (*txbuilder.SignedTx, error)
}

type Broadcaster interface {
	Submit(ctx context.Context, signed *txbuilder.SignedTx) (common.Hash, error)
	AwaitReceipt(ctx context.Context, hash common.Hash, timeout time.Duration) (*types.Receipt, error)
}

// Recorder persists finished results. Failures to record are logged only.
type Recorder interface {
	Record(ctx context.Context, rep Report) error
}

type Config struct {
	Account        common.Address
	ConfirmTimeout time.Duration
}

type Deps struct {
	Builder     Builder
	Signer      Signer
	Broadcaster Broadcaster
	Nonces      txbuilder.NonceProvider
	Locker      txbuilder.AccountLocker
	Recorder    Recorder
	Logger      *slog.Logger
}

type Orchestrator struct {
	cfg  Config
	deps Deps
	now  func() time.Time
}

func New(cfg Config, deps Deps) (*Orchestrator, error) {
	if deps.Builder == nil || deps.Signer == nil || deps.Broadcaster == nil || deps.Nonces == nil {
		return nil, errors.New("builder, signer, broadcaster and nonce provider are required")
	}
	if deps.Locker == nil {
		locker, ok := deps.Nonces.(txbuilder.AccountLocker)
		if !ok {
			return nil, errors.New("account locker is required")
		}
		deps.Locker = locker
	}
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	if cfg.ConfirmTimeout <= 0 {
		cfg.ConfirmTimeout = 120 * time.Second
	}
	return &Orchestrator{cfg: cfg, deps: deps, now: time.Now}, nil
}

func (o *Orchestrator) Account() common.Address {
	return o.cfg.Account
}

// Buy swaps nativeIn of the native currency for token in one step.
func (o *Orchestrator) Buy(ctx context.Context, token common.Address, nativeIn *big.Int) (*Result, error) {
	res := newResult(Intent{Side: SideBuy, Token: token, Amount: cloneBig(nativeIn)}, o.now())
	logger := o.deps.Logger.With("op", "buy", "token", token.Hex())
	if err := checkAmount("buy", nativeIn); err != nil {
		return o.finish(ctx, logger, res, err)
	}

	res.transition(StateSwapPending)
	err := o.runStep(ctx, logger, res, StepSwap, func(ctx context.Context) (*txbuilder.Request, error) {
		return o.deps.Builder.BuildSwapNativeForToken(ctx, o.cfg.Account, token, nativeIn)
	})
	return o.finish(ctx, logger, res, err)
}

// Sell approves the router for exactly amountIn and then swaps it for the
// native currency. The swap is only built after the approval is mined
// successfully.
func (o *Orchestrator) Sell(ctx context.Context, token common.Address, amountIn *big.Int) (*Result, error) {
	res := newResult(Intent{Side: SideSell, Token: token, Amount: cloneBig(amountIn)}, o.now())
	logger := o.deps.Logger.With("op", "sell", "token", token.Hex())
	if err := checkAmount("sell", amountIn); err != nil {
		return o.finish(ctx, logger, res, err)
	}

	res.transition(StateApprovePending)
	if err := o.runStep(ctx, logger, res, StepApprove, func(ctx context.Context) (*txbuilder.Request, error) {
		return o.deps.Builder.BuildApprove(ctx, o.cfg.Account, token, amountIn)
	}); err != nil {
		return o.finish(ctx, logger, res, err)
	}
	res.transition(StateApproveConfirmed)

	res.transition(StateSwapPending)
	if err := o.runStep(ctx, logger, res, StepSwap, func(ctx context.Context) (*txbuilder.Request, error) {
		return o.deps.Builder.BuildSwapTokenForNative(ctx, o.cfg.Account, token, amountIn)
	}); err != nil {
		return o.finish(ctx, logger, res, err)
	}
	return o.finish(ctx, logger, res, nil)
}

// runStep builds, signs, submits and confirms one transaction. The account
// lock covers nonce acquisition through submission. A mined receipt with a
// failed status is an error.
func (o *Orchestrator) runStep(ctx context.Context, logger *slog.Logger, res *Result, name string, build func(context.Context) (*txbuilder.Request, error)) error {
	signed, err := o.submitLocked(ctx, logger, res, name, build)
	if err != nil {
		return err
	}

	started := o.now()
	receipt, err := o.deps.Broadcaster.AwaitReceipt(ctx, signed.Hash, o.cfg.ConfirmTimeout)
	metrics.ObserveConfirmation(signed.Request.Method, o.now().Sub(started))
	if err != nil {
		metrics.TxOutcome(signed.Request.Method, "timeout")
		return err
	}
	res.Steps[len(res.Steps)-1].Receipt = receipt
	res.Receipt = receipt
	if receipt.Status != types.ReceiptStatusSuccessful {
		metrics.TxOutcome(signed.Request.Method, "reverted")
		return &txbuilder.Error{
			Kind:   txbuilder.KindOnChainRevert,
			Op:     name,
			TxHash: signed.Hash,
			Err:    fmt.Errorf("receipt status %d in block %s", receipt.Status, receipt.BlockNumber),
		}
	}
	metrics.TxOutcome(signed.Request.Method, "success")
	logger.Info("step confirmed", "step", name, "tx_hash", signed.Hash.Hex(), "block", receipt.BlockNumber, "gas_used", receipt.GasUsed)
	return nil
}

func (o *Orchestrator) submitLocked(ctx context.Context, logger *slog.Logger, res *Result, name string, build func(context.Context) (*txbuilder.Request, error)) (*txbuilder.SignedTx, error) {
	unlock, err := o.deps.Locker.Lock(ctx, o.cfg.Account)
	if err != nil {
		return nil, txbuilder.NewError(txbuilder.KindConnectivity, name+": acquire account lock", err)
	}
	defer unlock()

	req, err := build(ctx)
	if err != nil {
		return nil, err
	}
	logger.Debug("step built", "step", name, "request", req)
	signed, err := o.deps.Signer.SignRequest(req)
	if err != nil {
		return nil, err
	}
	hash, err := o.deps.Broadcaster.Submit(ctx, signed)
	if err != nil {
		return nil, err
	}
	o.deps.Nonces.Commit(o.cfg.Account, req.Nonce)
	metrics.TxSubmitted(req.Method)
	res.Steps = append(res.Steps, Step{Name: name, Nonce: req.Nonce, TxHash: hash})
	res.TxHash = hash
	logger.Info("step submitted", "step", name, "tx_hash", hash.Hex(), "nonce", req.Nonce)
	return signed, nil
}

func (o *Orchestrator) finish(ctx context.Context, logger *slog.Logger, res *Result, err error) (*Result, error) {
	res.FinishedAt = o.now()
	if err != nil {
		res.Err = err
		res.transition(StateFailed)
		logger.Error("swap failed",
			"state_trail", res.Trail,
			"kind", string(txbuilder.KindOf(err)),
			"tx_hash", hashOrEmpty(res.TxHash),
			"error", err,
		)
	} else {
		res.transition(StateDone)
		logger.Info("swap done", "tx_hash", res.TxHash.Hex())
	}
	metrics.SwapFinished(string(res.Intent.Side), string(res.State), string(txbuilder.KindOf(err)))
	if o.deps.Recorder != nil {
		// Recorded even when ctx is already cancelled.
		if rerr := o.deps.Recorder.Record(context.WithoutCancel(ctx), res.Report()); rerr != nil {
			logger.Warn("journal write failed", "error", rerr)
		}
	}
	return res, err
}

// checkAmount rejects a zero or negative amount before anything is signed.
func checkAmount(op string, amount *big.Int) error {
	if amount == nil || amount.Sign() <= 0 {
		return txbuilder.NewError(txbuilder.KindInvalidAmount, op, errors.New("amount must be positive"))
	}
	return nil
}

func hashOrEmpty(h common.Hash) string {
	if h == (common.Hash{}) {
		return ""
	}
	return h.Hex()
}

func cloneBig(v *big.Int) *big.Int {
	if v == nil {
		return nil
	}
	return new(big.Int).Set(v)
}
