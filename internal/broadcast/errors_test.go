package broadcast

import (
	"context"
	"errors"
	"fmt"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		err  error
		want ErrorKind
	}{
		{nil, KindNone},
		{errors.New("nonce too low"), KindNonceCollision},
		{errors.New("replacement transaction underpriced"), KindNonceCollision},
		{errors.New("already known"), KindNonceCollision},
		{errors.New("nonce too high"), KindNonceGap},
		{errors.New("insufficient funds for gas * price + value"), KindInsufficientFunds},
		{errors.New("429 Too Many Requests"), KindRateLimited},
		{fmt.Errorf("send: %w", context.DeadlineExceeded), KindConnectivity},
		{errors.New("Post \"http://x\": dial tcp 1.2.3.4:8545: connect: connection refused"), KindConnectivity},
		{errors.New("unexpected EOF"), KindConnectivity},
		{errors.New("EOF"), KindConnectivity},
		{fmt.Errorf("post: %w", io.EOF), KindConnectivity},
		{fmt.Errorf("read body: %w", io.ErrUnexpectedEOF), KindConnectivity},
		{errors.New("contract geoffrey: invalid opcode"), KindRPC},
		{fmt.Errorf("%w after 1s", ErrReceiptTimeout), KindTimeout},
		{context.Canceled, KindCancelled},
		{errors.New("execution reverted"), KindRPC},
	}
	for _, tt := range tests {
		name := "nil"
		if tt.err != nil {
			name = tt.err.Error()
		}
		t.Run(name, func(t *testing.T) {
			assert.Equal(t, tt.want, Classify(tt.err))
		})
	}
}

func TestDescribe(t *testing.T) {
	err := errors.New("replacement transaction underpriced")
	assert.Contains(t, Describe(KindNonceCollision, err), "wait for it to be mined")
	assert.Equal(t, "execution reverted", Describe(KindRPC, errors.New("execution reverted")))

	gap := Describe(Classify(errors.New("nonce too high")), errors.New("nonce too high"))
	assert.NotContains(t, gap, "wait for it to be mined")
	assert.Contains(t, gap, "next unused nonce")
}
