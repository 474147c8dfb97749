package txbuilder

import (
	"errors"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
)

type Kind string

const (
	KindConnectivity        Kind = "connectivity"
	KindFeeDataUnavailable  Kind = "fee_data_unavailable"
	KindGasEstimationFailed Kind = "gas_estimation_failed"
	KindSigning             Kind = "signing"
	KindSubmissionRejected  Kind = "submission_rejected"
	KindOnChainRevert       Kind = "onchain_revert"
	KindConfirmationTimeout Kind = "confirmation_timeout"
	KindInvalidAmount       Kind = "invalid_amount"
)

// Sentinels for errors.Is; an *Error matches the sentinel of its Kind.
var (
	ErrConnectivity        = errors.New("node unreachable")
	ErrFeeDataUnavailable  = errors.New("fee data unavailable")
	ErrGasEstimationFailed = errors.New("gas estimation failed")
	ErrSigning             = errors.New("signing failed")
	ErrSubmissionRejected  = errors.New("submission rejected")
	ErrOnChainRevert       = errors.New("transaction reverted")
	ErrConfirmationTimeout = errors.New("confirmation timeout")
	ErrInvalidAmount       = errors.New("invalid amount")
)

var sentinels = map[Kind]error{
	KindConnectivity:        ErrConnectivity,
	KindFeeDataUnavailable:  ErrFeeDataUnavailable,
	KindGasEstimationFailed: ErrGasEstimationFailed,
	KindSigning:             ErrSigning,
	KindSubmissionRejected:  ErrSubmissionRejected,
	KindOnChainRevert:       ErrOnChainRevert,
	KindConfirmationTimeout: ErrConfirmationTimeout,
	KindInvalidAmount:       ErrInvalidAmount,
}

// Error carries the failure kind and the untouched cause.
type Error struct {
	Kind   Kind
	Op     string
	TxHash common.Hash
	Err    error
}

func NewError(kind Kind, op string, err error) *Error {
	return &Error{Kind: kind, Op: op, Err: err}
}

func (e *Error) Error() string {
	if e == nil {
		return "<nil>"
	}
	msg := e.Op
	if msg == "" {
		msg = string(e.Kind)
	}
	if s, ok := sentinels[e.Kind]; ok {
		msg += ": " + s.Error()
	}
	if e.TxHash != (common.Hash{}) {
		msg += " (tx " + e.TxHash.Hex() + ")"
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

func (e *Error) Is(target error) bool {
	if e == nil {
		return false
	}
	s, ok := sentinels[e.Kind]
	return ok && s == target
}

// KindOf returns the kind of the first *Error in err's chain, or "".
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}

// Retryable reports whether a fresh rebuild (new fee quote, new nonce) can
// reasonably succeed after a failure of this kind.
func Retryable(kind Kind) bool {
	switch kind {
	case KindConnectivity, KindFeeDataUnavailable, KindGasEstimationFailed, KindSubmissionRejected:
		return true
	default:
		return false
	}
}

type EstimateGasError struct {
	Err     error
	CallMsg ethereum.CallMsg
}

func (e *EstimateGasError) Error() string {
	if e == nil {
		return "estimate gas failed"
	}
	if e.Err == nil {
		return "estimate gas failed"
	}
	return "estimate gas failed: " + e.Err.Error()
}

func (e *EstimateGasError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}
