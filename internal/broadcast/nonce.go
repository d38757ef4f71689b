package broadcast

import (
	"context"
	"fmt"
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum/common"
)

// NonceReader is satisfied by network.Client.
type NonceReader interface {
	PendingNonceAt(ctx context.Context, account common.Address) (uint64, error)
	NonceAt(ctx context.Context, account common.Address, blockNumber *big.Int) (uint64, error)
}

// Sequence hands out nonce0, nonce0+1, ... for one account's chain of dependent transactions
// without asking the network again.
type Sequence struct {
	Address  common.Address
	Fallback bool // pending view was unavailable; nonce0 is the confirmed count

	mu    sync.Mutex
	start uint64
	next  uint64
}

// accountNonce prefers the pending-inclusive count and silently falls back to the confirmed one.
// With the fallback, a still-pending tx's nonce gets reused and the network rejects it as a collision.
func accountNonce(ctx context.Context, r NonceReader, addr common.Address) (n uint64, fallback bool, err error) {
	n, err = r.PendingNonceAt(ctx, addr)
	if err == nil {
		return n, false, nil
	}
	n, err = r.NonceAt(ctx, addr, nil)
	if err != nil {
		return 0, false, fmt.Errorf("nonce for %s: %w", addr.Hex(), err)
	}
	return n, true, nil
}

// StartSequence reads nonce0 once, with the same pending-then-confirmed order as single sends.
func StartSequence(ctx context.Context, r NonceReader, addr common.Address) (*Sequence, error) {
	n, fallback, err := accountNonce(ctx, r, addr)
	if err != nil {
		return nil, err
	}
	return &Sequence{Address: addr, Fallback: fallback, start: n, next: n}, nil
}

func (s *Sequence) Start() uint64 { return s.start }

// Peek returns the nonce Next would hand out.
func (s *Sequence) Peek() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.next
}

func (s *Sequence) Next() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := s.next
	s.next++
	return n
}
