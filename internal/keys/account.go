// Package keys holds the single trading account. The private key stays in
// process memory and is only reachable through SignRequest.
package keys

import (
	"crypto/ecdsa"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/keystore"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"

	"ammswap/internal/txbuilder"
)

type Account struct {
	Address common.Address
	key     *ecdsa.PrivateKey
}

// FromHex loads an account from a hex private key with or without 0x.
func FromHex(hexKey string) (*Account, error) {
	hexKey = strings.TrimSpace(hexKey)
	hexKey = strings.TrimPrefix(strings.TrimPrefix(hexKey, "0x"), "0X")
	if hexKey == "" {
		return nil, txbuilder.NewError(txbuilder.KindSigning, "load key", errors.New("private key is empty"))
	}
	// The decoder error can echo key characters, so it is replaced.
	key, err := crypto.HexToECDSA(hexKey)
	if err != nil {
		return nil, txbuilder.NewError(txbuilder.KindSigning, "load key", errors.New("private key is not a valid secp256k1 hex key"))
	}
	return newAccount(key), nil
}

// FromKeystore decrypts a go-ethereum keystore JSON file.
func FromKeystore(path, passphrase string) (*Account, error) {
	if strings.TrimSpace(path) == "" {
		return nil, errors.New("keystore path is required")
	}
	if passphrase == "" {
		return nil, errors.New("keystore passphrase is empty")
	}
	keyJSON, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read keystore: %w", err)
	}
	key, err := keystore.DecryptKey(keyJSON, passphrase)
	if err != nil {
		return nil, txbuilder.NewError(txbuilder.KindSigning, "decrypt keystore", err)
	}
	if key.PrivateKey == nil {
		return nil, errors.New("private key not available")
	}
	return newAccount(key.PrivateKey), nil
}

func newAccount(key *ecdsa.PrivateKey) *Account {
	return &Account{Address: crypto.PubkeyToAddress(key.PublicKey), key: key}
}

func (a *Account) SignRequest(req *txbuilder.Request) (*txbuilder.SignedTx, error) {
	if a == nil {
		return txbuilder.Sign(req, nil)
	}
	if req != nil && req.From != a.Address {
		return nil, txbuilder.NewError(txbuilder.KindSigning, "sign", fmt.Errorf("request from %s does not match account %s", req.From.Hex(), a.Address.Hex()))
	}
	return txbuilder.Sign(req, a.key)
}

func (a *Account) String() string {
	if a == nil {
		return "<nil>"
	}
	return a.Address.Hex()
}

func (a *Account) LogValue() slog.Value {
	return slog.StringValue(a.String())
}

func (a *Account) GoString() string {
	return "keys.Account{" + a.String() + "}"
}
