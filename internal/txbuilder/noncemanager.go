package txbuilder

import (
	"context"
	"errors"
	"sync"

	"github.com/ethereum/go-ethereum/common"
)

type NonceProvider interface {
	Next(ctx context.Context, addr common.Address) (uint64, error)
	Commit(addr common.Address, nonce uint64)
}

// AccountLocker serializes nonce acquisition and submission per account.
// The returned func releases the lock and is safe to call more than once.
type AccountLocker interface {
	Lock(ctx context.Context, addr common.Address) (func(), error)
}

// NonceManager reads the account's transaction count on every call and
// never hands out a nonce at or below one already committed to the network.
// Callers hold Lock from Next until the transaction is submitted.
type NonceManager struct {
	client ChainClient

	mu        sync.Mutex
	locks     map[common.Address]chan struct{}
	committed map[common.Address]uint64
}

func NewNonceManager(client ChainClient) *NonceManager {
	return &NonceManager{
		client:    client,
		locks:     make(map[common.Address]chan struct{}),
		committed: make(map[common.Address]uint64),
	}
}

func (m *NonceManager) Lock(ctx context.Context, addr common.Address) (func(), error) {
	m.mu.Lock()
	ch, ok := m.locks[addr]
	if !ok {
		ch = make(chan struct{}, 1)
		m.locks[addr] = ch
	}
	m.mu.Unlock()

	select {
	case ch <- struct{}{}:
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	var once sync.Once
	return func() { once.Do(func() { <-ch }) }, nil
}

func (m *NonceManager) Next(ctx context.Context, addr common.Address) (uint64, error) {
	if m.client == nil {
		return 0, NewError(KindConnectivity, "transaction count", errors.New("nonce manager client is nil"))
	}
	nonce, err := m.client.PendingNonceAt(ctx, addr)
	if err != nil {
		return 0, NewError(KindConnectivity, "transaction count", err)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if last, ok := m.committed[addr]; ok && nonce <= last {
		nonce = last + 1
	}
	return nonce, nil
}

// Commit records a nonce consumed by a submitted transaction, whether or
// not that transaction later succeeds.
func (m *NonceManager) Commit(addr common.Address, nonce uint64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if last, ok := m.committed[addr]; !ok || nonce > last {
		m.committed[addr] = nonce
	}
}
