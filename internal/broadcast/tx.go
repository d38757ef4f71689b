package broadcast

import (
	"crypto/ecdsa"
	"errors"
	"math/big"

	"github.com/ethereum/go-ethereum/core/types"

	"github.com/ligun0805/batch-broadcaster/internal/payload"
)

// Build legacy (EIP-155) transaction with explicit nonce, gas price and chain id.
func buildLegacyTx(nonce uint64, p payload.Payload, gasLimit uint64, gasPrice *big.Int) *types.Transaction {
	return types.NewTx(&types.LegacyTx{
		Nonce:    nonce,
		GasPrice: new(big.Int).Set(gasPrice),
		Gas:      gasLimit,
		To:       p.To,
		Value:    p.ValueOrZero(),
		Data:     p.Data,
	})
}

// Sign transaction with latest signer for given chain ID.
func signTx(tx *types.Transaction, chain *big.Int, prv *ecdsa.PrivateKey) (*types.Transaction, error) {
	if prv == nil {
		return nil, errors.New("missing private key")
	}
	return types.SignTx(tx, types.LatestSignerForChainID(chain), prv)
}
