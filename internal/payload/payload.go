package payload

import (
	"encoding/hex"
	"errors"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
)

// Payload is the (destination, calldata, value) triple of one transaction.
// A nil To means contract creation.
type Payload struct {
	To    *common.Address
	Data  []byte
	Value *big.Int
}

func (p Payload) IsCreation() bool { return p.To == nil }

// ValueOrZero never returns nil.
func (p Payload) ValueOrZero() *big.Int {
	if p.Value == nil {
		return new(big.Int)
	}
	return new(big.Int).Set(p.Value)
}

// NormalizeHex lowercases s, validates it and left-pads it to an even digit count with an explicit 0x.
func NormalizeHex(s string) (string, error) {
	h := strings.ToLower(strings.TrimSpace(s))
	h = strings.TrimPrefix(h, "0x")
	for i, r := range h {
		if !(r >= '0' && r <= '9' || r >= 'a' && r <= 'f') {
			return "", fmt.Errorf("invalid hex digit %q at %d", r, i)
		}
	}
	if len(h)%2 != 0 {
		h = "0" + h
	}
	return "0x" + h, nil
}

// DecodeHex normalizes s and returns its bytes.
func DecodeHex(s string) ([]byte, error) {
	h, err := NormalizeHex(s)
	if err != nil {
		return nil, err
	}
	return hex.DecodeString(h[2:])
}

// Deploy is plain contract creation with the given init code.
func Deploy(bytecodeHex string) (Payload, error) {
	code, err := DecodeHex(bytecodeHex)
	if err != nil {
		return Payload{}, fmt.Errorf("bytecode: %w", err)
	}
	if len(code) == 0 {
		return Payload{}, errors.New("empty bytecode")
	}
	return Payload{Data: code, Value: new(big.Int)}, nil
}

var nameSymbolArgs = mustArguments("string", "string")

// ERC20Deploy appends abi-encoded (name, symbol) constructor args to the init code.
func ERC20Deploy(bytecodeHex, name, symbol string) (Payload, error) {
	p, err := Deploy(bytecodeHex)
	if err != nil {
		return Payload{}, err
	}
	if strings.TrimSpace(name) == "" || strings.TrimSpace(symbol) == "" {
		return Payload{}, errors.New("token name and symbol are required")
	}
	args, err := nameSymbolArgs.Pack(name, symbol)
	if err != nil {
		return Payload{}, fmt.Errorf("encode constructor: %w", err)
	}
	p.Data = append(p.Data, args...)
	return p, nil
}

const portalABI = `[{"type":"function","name":"depositTransaction","stateMutability":"payable","inputs":[
{"name":"_to","type":"address"},{"name":"_value","type":"uint256"},{"name":"_gasLimit","type":"uint64"},
{"name":"_isCreation","type":"bool"},{"name":"_data","type":"bytes"}],"outputs":[]}]`

var portal = mustABI(portalABI)

// BridgeDeposit calls OptimismPortal.depositTransaction crediting recipient on L2 with amount.
func BridgeDeposit(portalAddr, recipient common.Address, amount *big.Int, l2Gas uint64) (Payload, error) {
	if amount == nil || amount.Sign() <= 0 {
		return Payload{}, errors.New("bridge amount must be positive")
	}
	data, err := portal.Pack("depositTransaction", recipient, amount, l2Gas, false, []byte{})
	if err != nil {
		return Payload{}, fmt.Errorf("encode deposit: %w", err)
	}
	to := portalAddr
	return Payload{To: &to, Data: data, Value: new(big.Int).Set(amount)}, nil
}

// FactoryCall is a bare selector call (no args) carrying value.
func FactoryCall(factory common.Address, selectorHex string, value *big.Int) (Payload, error) {
	return Call(factory, selectorHex, nil, value)
}

// Call is selector followed by 32-byte words.
func Call(to common.Address, selectorHex string, words []*big.Int, value *big.Int) (Payload, error) {
	sel, err := DecodeHex(selectorHex)
	if err != nil {
		return Payload{}, fmt.Errorf("selector: %w", err)
	}
	if len(sel) != 4 {
		return Payload{}, fmt.Errorf("selector must be 4 bytes, got %d", len(sel))
	}
	data := append([]byte{}, sel...)
	for _, w := range words {
		if w == nil || w.Sign() < 0 {
			return Payload{}, errors.New("call words must be non-negative")
		}
		data = append(data, common.LeftPadBytes(w.Bytes(), 32)...)
	}
	if value == nil {
		value = new(big.Int)
	}
	dst := to
	return Payload{To: &dst, Data: data, Value: new(big.Int).Set(value)}, nil
}

func mustArguments(types ...string) abi.Arguments {
	args := make(abi.Arguments, 0, len(types))
	for _, t := range types {
		typ, err := abi.NewType(t, "", nil)
		if err != nil {
			panic(err)
		}
		args = append(args, abi.Argument{Type: typ})
	}
	return args
}

func mustABI(js string) abi.ABI {
	a, err := abi.JSON(strings.NewReader(js))
	if err != nil {
		panic(err)
	}
	return a
}
