package network

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
)

var (
	ErrUnknownNetwork = errors.New("unknown network")
	ErrNotConfigured  = errors.New("network rpc url not configured")
	ErrUnreachable    = errors.New("network unreachable")
)

const (
	Sepolia = "sepolia"
	Giwa    = "giwa"
)

type Endpoint struct {
	Name string
	URL  string
}

// Endpoints holds the two pre-configured networks. Primary is the deposit source.
type Endpoints struct {
	Primary   Endpoint
	Secondary Endpoint
}

// DefaultEndpoints names primary "sepolia" and secondary "giwa".
func DefaultEndpoints(primaryURL, secondaryURL string) Endpoints {
	return Endpoints{
		Primary:   Endpoint{Name: Sepolia, URL: strings.TrimSpace(primaryURL)},
		Secondary: Endpoint{Name: Giwa, URL: strings.TrimSpace(secondaryURL)},
	}
}

func (e Endpoints) Lookup(name string) (Endpoint, error) {
	n := strings.ToLower(strings.TrimSpace(name))
	switch n {
	case strings.ToLower(e.Primary.Name), "primary":
		return e.Primary, nil
	case strings.ToLower(e.Secondary.Name), "secondary":
		return e.Secondary, nil
	}
	return Endpoint{}, fmt.Errorf("%w: %q", ErrUnknownNetwork, name)
}

// Context is the active chain endpoint. It is never mutated after Open; Switch hands back a new value.
type Context struct {
	endpoint  Endpoint
	chainID   *big.Int
	client    Client
	endpoints Endpoints
	dial      Dialer
}

// Open dials the named endpoint and resolves its chain id.
func Open(ctx context.Context, endpoints Endpoints, name string, dial Dialer) (*Context, error) {
	if dial == nil {
		dial = DialHTTP
	}
	ep, err := endpoints.Lookup(name)
	if err != nil {
		return nil, err
	}
	if ep.URL == "" {
		return nil, fmt.Errorf("%s: %w", ep.Name, ErrNotConfigured)
	}
	c, err := dial(ctx, ep.URL)
	if err != nil {
		return nil, fmt.Errorf("%s: %w: %v", ep.Name, ErrUnreachable, err)
	}
	id, err := c.ChainID(ctx)
	if err != nil {
		c.Close()
		return nil, fmt.Errorf("%s: %w: chain id: %v", ep.Name, ErrUnreachable, err)
	}
	return &Context{endpoint: ep, chainID: id, client: c, endpoints: endpoints, dial: dial}, nil
}

// Switch returns a context for the target network. On failure the receiver is returned
// unchanged together with an error naming the network that failed.
func (c *Context) Switch(ctx context.Context, name string) (*Context, error) {
	next, err := Open(ctx, c.endpoints, name, c.dial)
	if err != nil {
		return c, fmt.Errorf("switch to %s failed: %w", name, err)
	}
	return next, nil
}

func (c *Context) Name() string         { return c.endpoint.Name }
func (c *Context) URL() string          { return c.endpoint.URL }
func (c *Context) Endpoints() Endpoints { return c.endpoints }
func (c *Context) Client() Client       { return c.client }
func (c *Context) ChainID() *big.Int    { return new(big.Int).Set(c.chainID) }
func (c *Context) Close()               { c.client.Close() }

func (c *Context) String() string {
	return fmt.Sprintf("%s (chain %s)", c.endpoint.Name, c.chainID)
}

func (c *Context) GasPrice(ctx context.Context) (*big.Int, error) {
	return c.client.SuggestGasPrice(ctx)
}

// Nonce returns the pending-inclusive count when includePending is set, otherwise the confirmed count.
func (c *Context) Nonce(ctx context.Context, addr common.Address, includePending bool) (uint64, error) {
	if includePending {
		return c.client.PendingNonceAt(ctx, addr)
	}
	return c.client.NonceAt(ctx, addr, nil)
}

func (c *Context) BlockNumber(ctx context.Context) (uint64, error) {
	return c.client.BlockNumber(ctx)
}

func (c *Context) Balance(ctx context.Context, addr common.Address) (*big.Int, error) {
	return c.client.BalanceAt(ctx, addr, nil)
}

func (c *Context) Call(ctx context.Context, msg ethereum.CallMsg) ([]byte, error) {
	return c.client.CallContract(ctx, msg, nil)
}

func (c *Context) Send(ctx context.Context, tx *types.Transaction) error {
	return c.client.SendTransaction(ctx, tx)
}

func (c *Context) Receipt(ctx context.Context, h common.Hash) (*types.Receipt, error) {
	return c.client.TransactionReceipt(ctx, h)
}

// Info is a snapshot of the active chain head.
type Info struct {
	Network     string
	ChainID     *big.Int
	BlockNumber uint64
	GasPrice    *big.Int
}

func (c *Context) Info(ctx context.Context) (Info, error) {
	bn, err := c.client.BlockNumber(ctx)
	if err != nil {
		return Info{}, fmt.Errorf("block number: %w", err)
	}
	gp, err := c.client.SuggestGasPrice(ctx)
	if err != nil {
		return Info{}, fmt.Errorf("gas price: %w", err)
	}
	return Info{Network: c.endpoint.Name, ChainID: c.ChainID(), BlockNumber: bn, GasPrice: gp}, nil
}
