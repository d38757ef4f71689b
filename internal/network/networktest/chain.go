// Package networktest provides an in-memory chain that satisfies network.Client.
package networktest

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"sync"
	"sync/atomic"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	gethcrypto "github.com/ethereum/go-ethereum/crypto"

	"github.com/ligun0805/batch-broadcaster/internal/network"
)

// Chain mines every accepted transaction immediately unless Hold is set.
type Chain struct {
	ID       *big.Int
	Gas      *big.Int
	Head     uint64
	GasUsed  uint64
	Hold     bool // accept but never mine; receipts never appear
	Revert   func(tx *types.Transaction) bool
	SendErr  func(tx *types.Transaction) error
	CallFn   func(msg ethereum.CallMsg) ([]byte, error)
	Balances map[common.Address]*big.Int
	// PendingErr makes PendingNonceAt fail, as some providers do.
	PendingErr error
	ChainErr   error

	mu        sync.Mutex
	confirmed map[common.Address]uint64
	pending   map[common.Address]uint64
	slots     map[common.Address]map[uint64]common.Hash
	receipts  map[common.Hash]*types.Receipt
	sent      []*types.Transaction
	requests  atomic.Int64
}

func NewChain(id int64) *Chain {
	return &Chain{
		ID:        big.NewInt(id),
		Gas:       big.NewInt(1_000_000_000),
		Head:      100,
		GasUsed:   21_000,
		confirmed: map[common.Address]uint64{},
		pending:   map[common.Address]uint64{},
		slots:     map[common.Address]map[uint64]common.Hash{},
		receipts:  map[common.Hash]*types.Receipt{},
	}
}

// SetNonce sets both confirmed and pending counts for addr.
func (c *Chain) SetNonce(addr common.Address, n uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.confirmed[addr] = n
	c.pending[addr] = n
}

// Requests counts every RPC the chain has served.
func (c *Chain) Requests() int64 { return c.requests.Load() }

func (c *Chain) Sent() []*types.Transaction {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]*types.Transaction(nil), c.sent...)
}

// SentBy returns the accepted transactions from addr in submission order.
func (c *Chain) SentBy(addr common.Address) []*types.Transaction {
	var out []*types.Transaction
	for _, tx := range c.Sent() {
		if from, err := c.sender(tx); err == nil && from == addr {
			out = append(out, tx)
		}
	}
	return out
}

func (c *Chain) sender(tx *types.Transaction) (common.Address, error) {
	return types.Sender(types.LatestSignerForChainID(c.ID), tx)
}

func (c *Chain) ChainID(ctx context.Context) (*big.Int, error) {
	c.requests.Add(1)
	if c.ChainErr != nil {
		return nil, c.ChainErr
	}
	return new(big.Int).Set(c.ID), nil
}

func (c *Chain) BlockNumber(ctx context.Context) (uint64, error) {
	c.requests.Add(1)
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.Head, nil
}

func (c *Chain) SuggestGasPrice(ctx context.Context) (*big.Int, error) {
	c.requests.Add(1)
	return new(big.Int).Set(c.Gas), nil
}

func (c *Chain) BalanceAt(ctx context.Context, account common.Address, _ *big.Int) (*big.Int, error) {
	c.requests.Add(1)
	c.mu.Lock()
	defer c.mu.Unlock()
	if b, ok := c.Balances[account]; ok {
		return new(big.Int).Set(b), nil
	}
	return big.NewInt(0), nil
}

func (c *Chain) PendingNonceAt(ctx context.Context, account common.Address) (uint64, error) {
	c.requests.Add(1)
	if c.PendingErr != nil {
		return 0, c.PendingErr
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.pending[account], nil
}

func (c *Chain) NonceAt(ctx context.Context, account common.Address, _ *big.Int) (uint64, error) {
	c.requests.Add(1)
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.confirmed[account], nil
}

// SendTransaction rejects reused nonces the way geth's txpool does.
func (c *Chain) SendTransaction(ctx context.Context, tx *types.Transaction) error {
	c.requests.Add(1)
	if c.SendErr != nil {
		if err := c.SendErr(tx); err != nil {
			return err
		}
	}
	from, err := c.sender(tx)
	if err != nil {
		return fmt.Errorf("invalid sender: %w", err)
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	if tx.Nonce() < c.confirmed[from] {
		return errors.New("nonce too low")
	}
	if h, ok := c.slots[from][tx.Nonce()]; ok {
		if h == tx.Hash() {
			return errors.New("already known")
		}
		return errors.New("replacement transaction underpriced")
	}
	if bal, ok := c.Balances[from]; ok && bal.Cmp(tx.Cost()) < 0 {
		return fmt.Errorf("insufficient funds for gas * price + value: address %s have %s want %s", from.Hex(), bal, tx.Cost())
	}

	if c.slots[from] == nil {
		c.slots[from] = map[uint64]common.Hash{}
	}
	c.slots[from][tx.Nonce()] = tx.Hash()
	c.sent = append(c.sent, tx)
	if tx.Nonce() >= c.pending[from] {
		c.pending[from] = tx.Nonce() + 1
	}
	if c.Hold {
		return nil
	}

	c.Head++
	if tx.Nonce() >= c.confirmed[from] {
		c.confirmed[from] = tx.Nonce() + 1
	}
	rcpt := &types.Receipt{
		Status:      types.ReceiptStatusSuccessful,
		TxHash:      tx.Hash(),
		GasUsed:     c.GasUsed,
		BlockNumber: new(big.Int).SetUint64(c.Head),
	}
	if c.Revert != nil && c.Revert(tx) {
		rcpt.Status = types.ReceiptStatusFailed
	}
	if tx.To() == nil {
		rcpt.ContractAddress = gethcrypto.CreateAddress(from, tx.Nonce())
	}
	c.receipts[tx.Hash()] = rcpt
	return nil
}

func (c *Chain) TransactionReceipt(ctx context.Context, h common.Hash) (*types.Receipt, error) {
	c.requests.Add(1)
	c.mu.Lock()
	defer c.mu.Unlock()
	if r, ok := c.receipts[h]; ok {
		return r, nil
	}
	return nil, ethereum.NotFound
}

func (c *Chain) CallContract(ctx context.Context, msg ethereum.CallMsg, _ *big.Int) ([]byte, error) {
	c.requests.Add(1)
	if c.CallFn == nil {
		return nil, nil
	}
	return c.CallFn(msg)
}

func (c *Chain) Close() {}

// Dialer serves chains by URL; unknown URLs fail like an unreachable host.
func Dialer(chains map[string]*Chain) network.Dialer {
	return func(ctx context.Context, url string) (network.Client, error) {
		c, ok := chains[url]
		if !ok {
			return nil, fmt.Errorf("dial tcp %s: connect: connection refused", url)
		}
		return c, nil
	}
}
