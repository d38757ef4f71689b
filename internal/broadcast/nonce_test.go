package broadcast

import (
	"context"
	"errors"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubNonces struct {
	pending, confirmed       uint64
	pendingErr, confirmedErr error
	calls                    int
}

func (s *stubNonces) PendingNonceAt(context.Context, common.Address) (uint64, error) {
	s.calls++
	return s.pending, s.pendingErr
}

func (s *stubNonces) NonceAt(context.Context, common.Address, *big.Int) (uint64, error) {
	s.calls++
	return s.confirmed, s.confirmedErr
}

func TestStartSequence(t *testing.T) {
	addr := common.HexToAddress("0x1")
	tests := []struct {
		name         string
		stub         stubNonces
		wantStart    uint64
		wantFallback bool
		wantErr      bool
	}{
		{"pending preferred", stubNonces{pending: 7, confirmed: 5}, 7, false, false},
		{"fallback to confirmed", stubNonces{pending: 7, confirmed: 5, pendingErr: errors.New("unsupported")}, 5, true, false},
		{"both fail", stubNonces{pendingErr: errors.New("x"), confirmedErr: errors.New("EOF")}, 0, false, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			stub := tt.stub
			seq, err := StartSequence(context.Background(), &stub, addr)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantStart, seq.Start())
			assert.Equal(t, tt.wantFallback, seq.Fallback)

			calls := stub.calls
			assert.Equal(t, tt.wantStart, seq.Peek())
			assert.Equal(t, tt.wantStart, seq.Next())
			assert.Equal(t, tt.wantStart+1, seq.Next())
			assert.Equal(t, tt.wantStart+2, seq.Peek())
			assert.Equal(t, calls, stub.calls, "no network reads after start")
		})
	}
}
