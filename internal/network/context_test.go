package network_test

import (
	"context"
	"errors"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ligun0805/batch-broadcaster/internal/network"
	"github.com/ligun0805/batch-broadcaster/internal/network/networktest"
)

const (
	primaryURL   = "http://sepolia.test"
	secondaryURL = "http://giwa.test"
)

func TestOpen(t *testing.T) {
	ctx := context.Background()
	sep := networktest.NewChain(11155111)
	dial := networktest.Dialer(map[string]*networktest.Chain{primaryURL: sep})

	nc, err := network.Open(ctx, network.DefaultEndpoints(primaryURL, ""), network.Sepolia, dial)
	require.NoError(t, err)
	assert.Equal(t, network.Sepolia, nc.Name())
	assert.Equal(t, int64(11155111), nc.ChainID().Int64())

	tests := []struct {
		name    string
		eps     network.Endpoints
		target  string
		wantErr error
	}{
		{"unknown name", network.DefaultEndpoints(primaryURL, secondaryURL), "mainnet", network.ErrUnknownNetwork},
		{"missing url", network.DefaultEndpoints(primaryURL, ""), network.Giwa, network.ErrNotConfigured},
		{"unreachable", network.DefaultEndpoints(primaryURL, secondaryURL), network.Giwa, network.ErrUnreachable},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := network.Open(ctx, tt.eps, tt.target, dial)
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestOpen_ChainIDFailure(t *testing.T) {
	sep := networktest.NewChain(1)
	sep.ChainErr = errors.New("EOF")
	dial := networktest.Dialer(map[string]*networktest.Chain{primaryURL: sep})
	_, err := network.Open(context.Background(), network.DefaultEndpoints(primaryURL, ""), "primary", dial)
	assert.ErrorIs(t, err, network.ErrUnreachable)
}

func TestSwitch(t *testing.T) {
	ctx := context.Background()
	sep := networktest.NewChain(11155111)
	giwa := networktest.NewChain(91342)
	dial := networktest.Dialer(map[string]*networktest.Chain{primaryURL: sep, secondaryURL: giwa})

	nc, err := network.Open(ctx, network.DefaultEndpoints(primaryURL, secondaryURL), network.Sepolia, dial)
	require.NoError(t, err)

	next, err := nc.Switch(ctx, network.Giwa)
	require.NoError(t, err)
	assert.Equal(t, network.Giwa, next.Name())
	assert.Equal(t, int64(91342), next.ChainID().Int64())
	assert.Equal(t, network.Sepolia, nc.Name(), "receiver is untouched")

	back, err := next.Switch(ctx, network.Sepolia)
	require.NoError(t, err)
	assert.Equal(t, int64(11155111), back.ChainID().Int64())
}

func TestSwitch_UnconfiguredKeepsPrimary(t *testing.T) {
	ctx := context.Background()
	sep := networktest.NewChain(11155111)
	dial := networktest.Dialer(map[string]*networktest.Chain{primaryURL: sep})

	nc, err := network.Open(ctx, network.DefaultEndpoints(primaryURL, ""), network.Sepolia, dial)
	require.NoError(t, err)

	got, err := nc.Switch(ctx, network.Giwa)
	require.Error(t, err)
	assert.ErrorIs(t, err, network.ErrNotConfigured)
	assert.Contains(t, err.Error(), network.Giwa)
	assert.Same(t, nc, got)

	before := sep.Requests()
	bn, err := got.BlockNumber(ctx)
	require.NoError(t, err)
	assert.Equal(t, uint64(100), bn)
	assert.Equal(t, before+1, sep.Requests(), "read still targets the primary endpoint")
	assert.Equal(t, primaryURL, got.URL())
}

func TestInfo(t *testing.T) {
	ctx := context.Background()
	sep := networktest.NewChain(5)
	dial := networktest.Dialer(map[string]*networktest.Chain{primaryURL: sep})
	nc, err := network.Open(ctx, network.DefaultEndpoints(primaryURL, ""), network.Sepolia, dial)
	require.NoError(t, err)

	info, err := nc.Info(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(5), info.ChainID.Int64())
	assert.Equal(t, uint64(100), info.BlockNumber)
	assert.Equal(t, int64(1_000_000_000), info.GasPrice.Int64())
}

func TestNonce(t *testing.T) {
	ctx := context.Background()
	sep := networktest.NewChain(5)
	sep.Hold = true
	dial := networktest.Dialer(map[string]*networktest.Chain{primaryURL: sep})
	nc, err := network.Open(ctx, network.DefaultEndpoints(primaryURL, ""), network.Sepolia, dial)
	require.NoError(t, err)

	addr := common.HexToAddress("0x0100000000000000000000000000000000000000")
	sep.SetNonce(addr, 7)
	n, err := nc.Nonce(ctx, addr, true)
	require.NoError(t, err)
	assert.Equal(t, uint64(7), n)
	n, err = nc.Nonce(ctx, addr, false)
	require.NoError(t, err)
	assert.Equal(t, uint64(7), n)
}
