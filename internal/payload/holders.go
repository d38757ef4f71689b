package payload

import (
	"context"
	"math/big"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"

	"github.com/ligun0805/batch-broadcaster/internal/accounts"
)

// Caller runs eth_call against the active network.
type Caller interface {
	Call(ctx context.Context, msg ethereum.CallMsg) ([]byte, error)
}

var balanceOfSelector = common.FromHex("0x70a08231")

// BalanceOf reads an ERC-20/721 style balanceOf(owner).
func BalanceOf(ctx context.Context, c Caller, token, owner common.Address) (*big.Int, error) {
	data := append(append([]byte{}, balanceOfSelector...), common.LeftPadBytes(owner.Bytes(), 32)...)
	res, err := callWithRetry(ctx, c, ethereum.CallMsg{To: &token, Data: data})
	if err != nil {
		return nil, err
	}
	if len(res) == 0 {
		return big.NewInt(0), nil
	}
	return new(big.Int).SetBytes(res), nil
}

func isRateLimitError(err error) bool {
	s := err.Error()
	return strings.Contains(s, "Too Many Requests") || strings.Contains(s, "-32005")
}

// callWithRetry performs eth_call with small exponential backoff.
func callWithRetry(ctx context.Context, c Caller, msg ethereum.CallMsg) ([]byte, error) {
	const maxAttempts = 3
	backoff := 200 * time.Millisecond
	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		ret, err := c.Call(ctx, msg)
		if err == nil {
			return ret, nil
		}
		lastErr = err
		if attempt < maxAttempts {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(backoff):
			}
			if isRateLimitError(err) {
				backoff *= 2
			}
		}
	}
	return nil, lastErr
}

// FilterHolders splits accts into those still eligible to mint and those already holding token.
// A failed balance check keeps the account eligible.
func FilterHolders(ctx context.Context, c Caller, accts []accounts.Account, token common.Address, logf func(string, ...any)) (eligible, skipped []accounts.Account) {
	if logf == nil {
		logf = func(string, ...any) {}
	}
	for _, a := range accts {
		bal, err := BalanceOf(ctx, c, token, a.Address)
		switch {
		case err != nil:
			logf("%s: balance check failed, still processing: %v", a, err)
			eligible = append(eligible, a)
		case bal.Sign() > 0:
			logf("%s: already holds %s, skipping", a, bal)
			skipped = append(skipped, a)
		default:
			eligible = append(eligible, a)
		}
	}
	return eligible, skipped
}
