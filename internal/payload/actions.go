package payload

import (
	_ "embed"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/params"
)

var (
	//go:embed contracts/owlto.hex
	owltoBytecode string
	//go:embed contracts/erc20.hex
	erc20Bytecode string
)

const (
	ActionOwlto   = "owlto"
	ActionERC20   = "erc20"
	ActionGmon    = "gmonchain"
	ActionOmnihub = "omnihub"
	ActionBridge  = "bridge"
	ActionAllIn   = "all-in"
)

var (
	OptimismPortal  = common.HexToAddress("0x956962C34687A954e611A83619ABaA37Ce6bC78A")
	GmonFactory     = common.HexToAddress("0xa3d9fbd0edb10327ecb73d2c72622e505df468a2")
	OmnihubContract = common.HexToAddress("0x5893B6684057eaBDeCB400526C8410EAFca6d541")
)

const (
	GmonSelector    = "0x775c300c"
	OmnihubSelector = "0xa25ffea8"
	DefaultL2Gas    = uint64(100_000)
)

// GmonValue is 0.000035 ETH.
func GmonValue() *big.Int { return big.NewInt(35_000_000_000_000) }

// MilliEther is 0.001 ETH, the default mint price and bridge amount.
func MilliEther() *big.Int { return big.NewInt(params.Ether / 1000) }

// Action is the static profile of one supported on-chain action.
type Action struct {
	Name     string
	GasLimit uint64
	Wait     bool
}

// Actions lists the built-in profiles; gas and wait are overridable from config.
var Actions = map[string]Action{
	ActionOwlto:   {Name: ActionOwlto, GasLimit: 2_000_000, Wait: true},
	ActionERC20:   {Name: ActionERC20, GasLimit: 2_000_000, Wait: false},
	ActionGmon:    {Name: ActionGmon, GasLimit: 350_000, Wait: false},
	ActionOmnihub: {Name: ActionOmnihub, GasLimit: 2_000_000, Wait: false},
	ActionBridge:  {Name: ActionBridge, GasLimit: 150_000, Wait: false},
}

// ResultFile is the per-action output file name.
func ResultFile(action, symbol string) string {
	switch action {
	case ActionOwlto:
		return "owlto_deployment_results.json"
	case ActionERC20:
		return fmt.Sprintf("%s_erc20_deployment_results.json", strings.ToLower(symbol))
	case ActionGmon:
		return "gmonchain_results.json"
	case ActionOmnihub:
		return "omnihub_mint_results.json"
	case ActionBridge:
		return "bridge_results.json"
	case ActionAllIn:
		return "try_all_in_results.json"
	}
	return "transaction_results.json"
}

func OwltoDeploy() (Payload, error) { return Deploy(owltoBytecode) }

func OwltoERC20(name, symbol string) (Payload, error) {
	return ERC20Deploy(erc20Bytecode, name, symbol)
}

func GmonCreate() (Payload, error) { return FactoryCall(GmonFactory, GmonSelector, GmonValue()) }

// OmnihubMint encodes the public mint call: (0, 1, 0, offset 0x80, empty bytes).
func OmnihubMint() (Payload, error) {
	words := []*big.Int{big.NewInt(0), big.NewInt(1), big.NewInt(0), big.NewInt(0x80), big.NewInt(0)}
	return Call(OmnihubContract, OmnihubSelector, words, MilliEther())
}
