package payload

import (
	"context"
	"errors"
	"math/big"
	"strings"
	"testing"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	gethcrypto "github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ligun0805/batch-broadcaster/internal/accounts"
)

func TestNormalizeHex(t *testing.T) {
	tests := []struct {
		in      string
		want    string
		wantErr bool
	}{
		{"0xABC", "0x0abc", false},
		{"abcd", "0xabcd", false},
		{" 0x6080 ", "0x6080", false},
		{"", "0x", false},
		{"0x", "0x", false},
		{"0xzz", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := NormalizeHex(tt.in)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestDeploy(t *testing.T) {
	p, err := OwltoDeploy()
	require.NoError(t, err)
	assert.True(t, p.IsCreation())
	assert.Equal(t, byte(0x60), p.Data[0])
	assert.Zero(t, p.ValueOrZero().Sign())

	_, err = Deploy("0x")
	assert.Error(t, err)
}

func TestERC20Deploy(t *testing.T) {
	base, err := Deploy(erc20Bytecode)
	require.NoError(t, err)

	p, err := OwltoERC20("cuandrop", "cndrp")
	require.NoError(t, err)
	require.Greater(t, len(p.Data), len(base.Data))

	vals, err := nameSymbolArgs.Unpack(p.Data[len(base.Data):])
	require.NoError(t, err)
	assert.Equal(t, []interface{}{"cuandrop", "cndrp"}, vals)

	_, err = OwltoERC20("", "x")
	assert.Error(t, err)
}

func TestBridgeDeposit(t *testing.T) {
	recipient := common.HexToAddress("0x00000000000000000000000000000000000000aa")
	p, err := BridgeDeposit(OptimismPortal, recipient, MilliEther(), DefaultL2Gas)
	require.NoError(t, err)

	require.NotNil(t, p.To)
	assert.Equal(t, OptimismPortal, *p.To)
	assert.Equal(t, "0xe9e05c42", "0x"+common.Bytes2Hex(p.Data[:4]))
	assert.Equal(t, MilliEther(), p.Value)
	// selector + five head words + empty bytes length
	assert.Len(t, p.Data, 4+6*32)

	args, err := portal.Methods["depositTransaction"].Inputs.Unpack(p.Data[4:])
	require.NoError(t, err)
	assert.Equal(t, recipient, args[0])
	assert.Equal(t, uint64(100_000), args[2])
	assert.Equal(t, false, args[3])

	_, err = BridgeDeposit(OptimismPortal, recipient, big.NewInt(0), DefaultL2Gas)
	assert.Error(t, err)
}

func TestGmonCreate(t *testing.T) {
	p, err := GmonCreate()
	require.NoError(t, err)
	assert.Equal(t, common.FromHex(GmonSelector), p.Data)
	assert.Equal(t, GmonFactory, *p.To)
	assert.Equal(t, int64(35_000_000_000_000), p.Value.Int64())
}

func TestOmnihubMint(t *testing.T) {
	p, err := OmnihubMint()
	require.NoError(t, err)
	want := "a25ffea8" +
		strings.Repeat("0", 64) +
		strings.Repeat("0", 63) + "1" +
		strings.Repeat("0", 64) +
		strings.Repeat("0", 62) + "80" +
		strings.Repeat("0", 64)
	assert.Equal(t, want, common.Bytes2Hex(p.Data))
	assert.Equal(t, MilliEther(), p.Value)
}

func TestCall_BadSelector(t *testing.T) {
	_, err := Call(GmonFactory, "0x1234", nil, nil)
	assert.Error(t, err)
}

func TestResultFile(t *testing.T) {
	assert.Equal(t, "cndrp_erc20_deployment_results.json", ResultFile(ActionERC20, "CNDRP"))
	assert.Equal(t, "try_all_in_results.json", ResultFile(ActionAllIn, ""))
	assert.Equal(t, "gmonchain_results.json", ResultFile(ActionGmon, ""))
}

type callerFunc func(ctx context.Context, msg ethereum.CallMsg) ([]byte, error)

func (f callerFunc) Call(ctx context.Context, msg ethereum.CallMsg) ([]byte, error) {
	return f(ctx, msg)
}

func testAccounts(t *testing.T, n int) []accounts.Account {
	t.Helper()
	out := make([]accounts.Account, n)
	for i := range out {
		k, err := gethcrypto.GenerateKey()
		require.NoError(t, err)
		out[i] = accounts.FromKey(k, i+1)
	}
	return out
}

func TestFilterHolders(t *testing.T) {
	accts := testAccounts(t, 4)
	holder := accts[1].Address
	broken := accts[3].Address

	c := callerFunc(func(_ context.Context, msg ethereum.CallMsg) ([]byte, error) {
		require.Equal(t, OmnihubContract, *msg.To)
		owner := common.BytesToAddress(msg.Data[4:])
		switch owner {
		case holder:
			return common.LeftPadBytes([]byte{1}, 32), nil
		case broken:
			return nil, errors.New("execution reverted")
		}
		return common.LeftPadBytes(nil, 32), nil
	})

	var logs []string
	eligible, skipped := FilterHolders(context.Background(), c, accts, OmnihubContract, func(f string, a ...any) {
		logs = append(logs, f)
	})
	require.Len(t, skipped, 1)
	assert.Equal(t, 2, skipped[0].Ordinal)
	require.Len(t, eligible, 3)
	assert.Equal(t, []int{1, 3, 4}, []int{eligible[0].Ordinal, eligible[1].Ordinal, eligible[2].Ordinal})
	assert.Len(t, logs, 2)
}

func TestBalanceOf_RetriesTransientErrors(t *testing.T) {
	owner := common.HexToAddress("0xbeef")
	calls := 0
	c := callerFunc(func(context.Context, ethereum.CallMsg) ([]byte, error) {
		calls++
		if calls == 1 {
			return nil, errors.New("429 Too Many Requests")
		}
		return common.LeftPadBytes([]byte{3}, 32), nil
	})
	bal, err := BalanceOf(context.Background(), c, OmnihubContract, owner)
	require.NoError(t, err)
	assert.Equal(t, int64(3), bal.Int64())
	assert.Equal(t, 2, calls)
}
