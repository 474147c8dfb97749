package txbuilder

import (
	"crypto/ecdsa"
	"errors"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
)

type SignedTx struct {
	Request *Request
	Tx      *types.Transaction
	Raw     []byte
	Hash    common.Hash
}

// Sign produces the binary envelope for req. It performs no I/O. Errors
// never include key material.
func Sign(req *Request, key *ecdsa.PrivateKey) (*SignedTx, error) {
	if req == nil {
		return nil, NewError(KindSigning, "sign", errors.New("request is nil"))
	}
	if key == nil || key.D == nil || key.D.Sign() <= 0 {
		return nil, NewError(KindSigning, "sign", errors.New("private key is missing or malformed"))
	}
	if req.ChainID == nil || req.ChainID.Sign() <= 0 {
		return nil, NewError(KindSigning, "sign", errors.New("chainID is required"))
	}
	if req.Value == nil || req.MaxFeePerGas == nil || req.MaxPriorityFeePerGas == nil {
		return nil, NewError(KindSigning, "sign", errors.New("request is not fully priced"))
	}
	to := req.To
	tx := types.NewTx(&types.DynamicFeeTx{
		ChainID:   new(big.Int).Set(req.ChainID),
		Nonce:     req.Nonce,
		Gas:       req.GasLimit,
		GasFeeCap: new(big.Int).Set(req.MaxFeePerGas),
		GasTipCap: new(big.Int).Set(req.MaxPriorityFeePerGas),
		To:        &to,
		Value:     new(big.Int).Set(req.Value),
		Data:      append([]byte{}, req.Data...),
	})
	signed, err := types.SignTx(tx, types.LatestSignerForChainID(req.ChainID), key)
	if err != nil {
		// The underlying error describes the curve operation, not the key.
		return nil, NewError(KindSigning, "sign", errors.New("signature failed"))
	}
	raw, err := signed.MarshalBinary()
	if err != nil {
		return nil, NewError(KindSigning, "encode", err)
	}
	return &SignedTx{Request: req, Tx: signed, Raw: raw, Hash: signed.Hash()}, nil
}
