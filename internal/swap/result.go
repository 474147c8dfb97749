package swap

import (
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"

	"ammswap/internal/txbuilder"
)

type State string

const (
	StateStart            State = "start"
	StateApprovePending   State = "approve_pending"
	StateApproveConfirmed State = "approve_confirmed"
	StateSwapPending      State = "swap_pending"
	StateDone             State = "done"
	StateFailed           State = "failed"
)

type Side string

const (
	SideBuy  Side = "buy"
	SideSell Side = "sell"
)

// Intent is Buy(token, native amount) or Sell(token, token amount), both in
// base units.
type Intent struct {
	Side   Side
	Token  common.Address
	Amount *big.Int
}

type Step struct {
	Name    string
	Nonce   uint64
	TxHash  common.Hash
	Receipt *types.Receipt
}

// Result is the record of one operation. It is returned on failure too:
// Steps show how far the sequence got and TxHash names the last submitted
// transaction, which matters after a confirmation timeout.
type Result struct {
	Intent     Intent
	State      State
	Trail      []State
	Steps      []Step
	TxHash     common.Hash
	Receipt    *types.Receipt
	Err        error
	StartedAt  time.Time
	FinishedAt time.Time
}

func newResult(intent Intent, now time.Time) *Result {
	return &Result{
		Intent:    intent,
		State:     StateStart,
		Trail:     []State{StateStart},
		StartedAt: now,
	}
}

func (r *Result) transition(s State) {
	r.State = s
	r.Trail = append(r.Trail, s)
}

// Step returns the named step, if it was submitted.
func (r *Result) Step(name string) (Step, bool) {
	for _, s := range r.Steps {
		if s.Name == name {
			return s, true
		}
	}
	return Step{}, false
}

type StepReport struct {
	Name    string  `json:"name"`
	Nonce   uint64  `json:"nonce"`
	TxHash  string  `json:"tx_hash"`
	Status  *uint64 `json:"status,omitempty"`
	Block   string  `json:"block,omitempty"`
	GasUsed uint64  `json:"gas_used,omitempty"`
}

// Report is the serializable form of a Result.
type Report struct {
	Side       Side         `json:"side"`
	Token      string       `json:"token"`
	Amount     string       `json:"amount"`
	State      State        `json:"state"`
	Trail      []State      `json:"trail"`
	Steps      []StepReport `json:"steps"`
	TxHash     string       `json:"tx_hash,omitempty"`
	ErrorKind  string       `json:"error_kind,omitempty"`
	Error      string       `json:"error,omitempty"`
	Retryable  bool         `json:"retryable,omitempty"`
	StartedAt  time.Time    `json:"started_at"`
	FinishedAt time.Time    `json:"finished_at"`
}

func (r *Result) Report() Report {
	rep := Report{
		Side:       r.Intent.Side,
		Token:      r.Intent.Token.Hex(),
		Amount:     "0",
		State:      r.State,
		Trail:      append([]State{}, r.Trail...),
		Steps:      make([]StepReport, 0, len(r.Steps)),
		StartedAt:  r.StartedAt,
		FinishedAt: r.FinishedAt,
	}
	if r.Intent.Amount != nil {
		rep.Amount = r.Intent.Amount.String()
	}
	if r.TxHash != (common.Hash{}) {
		rep.TxHash = r.TxHash.Hex()
	}
	for _, s := range r.Steps {
		sr := StepReport{Name: s.Name, Nonce: s.Nonce, TxHash: s.TxHash.Hex()}
		if s.Receipt != nil {
			status := s.Receipt.Status
			sr.Status = &status
			sr.GasUsed = s.Receipt.GasUsed
			if s.Receipt.BlockNumber != nil {
				sr.Block = s.Receipt.BlockNumber.String()
			}
		}
		rep.Steps = append(rep.Steps, sr)
	}
	if r.Err != nil {
		kind := txbuilder.KindOf(r.Err)
		rep.ErrorKind = string(kind)
		rep.Error = r.Err.Error()
		rep.Retryable = txbuilder.Retryable(kind)
	}
	return rep
}
