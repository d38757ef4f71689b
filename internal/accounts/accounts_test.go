package accounts

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	gethcrypto "github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	keyA = "4c0883a69102937d6231471b5dbb6204fe5129617082792ae468d01a3f362318"
	keyB = "0x8da4ef21b864d2cc526dbdb2a120bd2874c36c9d0a1fb7f8c63d7f7a8b41de8f"
)

func TestParse(t *testing.T) {
	var logged []string
	logf := func(f string, a ...any) { logged = append(logged, fmt.Sprintf(f, a...)) }

	input := strings.Join([]string{
		keyA,
		"",
		"not-a-key",
		"# comment",
		keyB,
	}, "\n")

	set, err := Parse(strings.NewReader(input), logf)
	require.NoError(t, err)
	require.Equal(t, 2, set.Len())

	all := set.All()
	assert.Equal(t, 1, all[0].Ordinal)
	assert.Equal(t, 5, all[1].Ordinal)

	want, err := gethcrypto.HexToECDSA(keyA)
	require.NoError(t, err)
	assert.Equal(t, gethcrypto.PubkeyToAddress(want.PublicKey), all[0].Address)

	require.Len(t, logged, 1)
	assert.Contains(t, logged[0], "line 3")
}

func TestParse_OrdinalIsFileLine(t *testing.T) {
	var logged []string
	logf := func(f string, a ...any) { logged = append(logged, fmt.Sprintf(f, a...)) }

	set, err := Parse(strings.NewReader("\n\n"+keyA+"\n\nbogus\n"+keyB+"\n"), logf)
	require.NoError(t, err)
	require.Equal(t, 2, set.Len())
	all := set.All()
	assert.Equal(t, 3, all[0].Ordinal)
	assert.Equal(t, 6, all[1].Ordinal)
	assert.Equal(t, "#3 "+all[0].Address.Hex(), all[0].String())
	require.Len(t, logged, 1)
	assert.Contains(t, logged[0], "line 5")
}

func TestParse_NoValidKeys(t *testing.T) {
	_, err := Parse(strings.NewReader("\nbogus\n"), nil)
	assert.ErrorIs(t, err, ErrNoAccounts)
}

func TestSetAllIsCopy(t *testing.T) {
	set, err := Parse(strings.NewReader(keyA), nil)
	require.NoError(t, err)
	all := set.All()
	all[0].Ordinal = 99
	assert.Equal(t, 1, set.All()[0].Ordinal)
}

func TestAccountJSONOmitsKey(t *testing.T) {
	set, err := Parse(strings.NewReader(keyA), nil)
	require.NoError(t, err)
	b, err := json.Marshal(set.All()[0])
	require.NoError(t, err)
	assert.NotContains(t, string(b), strings.TrimPrefix(keyA, "0x"))
	assert.Contains(t, string(b), `"line_number":1`)
}

func TestLoadAndAppendKey(t *testing.T) {
	path := filepath.Join(t.TempDir(), "accounts.txt")

	_, err := Load(path, nil)
	require.Error(t, err)

	addr, err := AppendKey(path, keyA)
	require.NoError(t, err)
	_, err = AppendKey(path, keyB)
	require.NoError(t, err)
	_, err = AppendKey(path, "zz")
	require.Error(t, err)

	set, err := Load(path, nil)
	require.NoError(t, err)
	require.Equal(t, 2, set.Len())
	assert.Equal(t, addr, set.Addresses()[0])

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(raw), "0x"+keyA))
}

func TestAppendKey_NoTrailingNewline(t *testing.T) {
	path := filepath.Join(t.TempDir(), "accounts.txt")
	require.NoError(t, os.WriteFile(path, []byte(keyA), 0o600))

	addr, err := AppendKey(path, keyB)
	require.NoError(t, err)

	set, err := Load(path, nil)
	require.NoError(t, err)
	require.Equal(t, 2, set.Len())
	assert.Equal(t, addr, set.Addresses()[1])
	assert.Equal(t, 2, set.All()[1].Ordinal)

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, keyA+"\n"+keyB+"\n", string(raw))
}
