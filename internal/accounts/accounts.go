package accounts

import (
	"bufio"
	"crypto/ecdsa"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	gethcrypto "github.com/ethereum/go-ethereum/crypto"
)

// ErrNoAccounts is returned when a key source yields zero usable keys.
var ErrNoAccounts = errors.New("no valid private keys found")

// Account is one signing identity. Ordinal is the 1-based line of the key in its source file.
type Account struct {
	Address common.Address
	Key     *ecdsa.PrivateKey
	Ordinal int
}

func (a Account) String() string { return fmt.Sprintf("#%d %s", a.Ordinal, a.Address.Hex()) }

// MarshalJSON never emits the private key.
func (a Account) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Ordinal int            `json:"line_number"`
		Address common.Address `json:"address"`
	}{a.Ordinal, a.Address})
}

// Set is the immutable list of accounts loaded once at startup.
type Set struct {
	items []Account
}

func NewSet(items ...Account) Set {
	return Set{items: append([]Account(nil), items...)}
}

func (s Set) Len() int { return len(s.items) }

// All returns a copy; callers may reorder it freely.
func (s Set) All() []Account { return append([]Account(nil), s.items...) }

func (s Set) Addresses() []common.Address {
	out := make([]common.Address, len(s.items))
	for i, a := range s.items {
		out[i] = a.Address
	}
	return out
}

// ParseKey parses hex ECDSA private key (with / without 0x).
func ParseKey(s string) (*ecdsa.PrivateKey, error) {
	h := strings.TrimSpace(s)
	h = strings.TrimPrefix(strings.TrimPrefix(h, "0x"), "0X")
	if h == "" {
		return nil, errors.New("empty private key")
	}
	return gethcrypto.HexToECDSA(h)
}

// FromKey builds an Account for the given ordinal.
func FromKey(key *ecdsa.PrivateKey, ordinal int) Account {
	return Account{Address: gethcrypto.PubkeyToAddress(key.PublicKey), Key: key, Ordinal: ordinal}
}

// Load reads one private key per line from path.
func Load(path string, logf func(string, ...any)) (Set, error) {
	f, err := os.Open(path)
	if err != nil {
		return Set{}, fmt.Errorf("open account file: %w", err)
	}
	defer f.Close()
	return Parse(f, logf)
}

// Parse skips blank lines and '#' comments. Invalid keys are logged by line number and dropped.
// Every account's ordinal is its file line number.
func Parse(r io.Reader, logf func(string, ...any)) (Set, error) {
	if logf == nil {
		logf = func(string, ...any) {}
	}
	sc := bufio.NewScanner(r)
	var (
		items  []Account
		lineNo int
	)
	for sc.Scan() {
		lineNo++
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		key, err := ParseKey(line)
		if err != nil {
			logf("line %d: invalid private key: %v", lineNo, err)
			continue
		}
		items = append(items, FromKey(key, lineNo))
	}
	if err := sc.Err(); err != nil {
		return Set{}, fmt.Errorf("read account file: %w", err)
	}
	if len(items) == 0 {
		return Set{}, ErrNoAccounts
	}
	return Set{items: items}, nil
}

// AppendKey validates key and appends it to path, creating the file if needed.
func AppendKey(path, key string) (common.Address, error) {
	prv, err := ParseKey(key)
	if err != nil {
		return common.Address{}, fmt.Errorf("invalid private key: %w", err)
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_RDWR, 0o600)
	if err != nil {
		return common.Address{}, err
	}
	defer f.Close()
	h := strings.TrimSpace(key)
	if !strings.HasPrefix(strings.ToLower(h), "0x") {
		h = "0x" + h
	}
	// the last existing line may lack its newline
	if fi, err := f.Stat(); err == nil && fi.Size() > 0 {
		last := make([]byte, 1)
		if _, err := f.ReadAt(last, fi.Size()-1); err != nil {
			return common.Address{}, fmt.Errorf("read account file: %w", err)
		}
		if last[0] != '\n' {
			h = "\n" + h
		}
	}
	if _, err := fmt.Fprintln(f, h); err != nil {
		return common.Address{}, err
	}
	return gethcrypto.PubkeyToAddress(prv.PublicKey), nil
}
