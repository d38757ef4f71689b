package broadcast

import (
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/ligun0805/batch-broadcaster/internal/accounts"
)

type Status string

const (
	StatusSent      Status = "sent"
	StatusConfirmed Status = "confirmed"
	StatusReverted  Status = "reverted"
	StatusFailed    Status = "failed"
)

// Result is the outcome of one request. Which fields are meaningful depends on Status:
// sent carries TxHash, confirmed adds GasUsed and ContractAddress, reverted adds GasUsed,
// failed carries Kind and Reason (and TxHash when the tx was broadcast before failing).
type Result struct {
	Account         accounts.Account
	Status          Status
	Nonce           uint64
	TxHash          common.Hash
	ContractAddress *common.Address
	GasUsed         uint64
	Kind            ErrorKind
	Reason          string
	At              time.Time
}

// OK reports whether the network accepted the transaction without a known failure.
func (r Result) OK() bool { return r.Status == StatusSent || r.Status == StatusConfirmed }

func failed(a accounts.Account, nonce uint64, err error) Result {
	kind := Classify(err)
	return Result{
		Account: a,
		Status:  StatusFailed,
		Nonce:   nonce,
		Kind:    kind,
		Reason:  Describe(kind, err),
		At:      time.Now(),
	}
}

func failedKind(a accounts.Account, nonce uint64, kind ErrorKind, err error) Result {
	r := failed(a, nonce, err)
	r.Kind = kind
	r.Reason = Describe(kind, err)
	return r
}

// Report is one batch run. Results are in completion order.
type Report struct {
	RunID    string
	Action   string
	Network  string
	ChainID  *big.Int
	Started  time.Time
	Finished time.Time
	Results  []Result
}

// ChainResult is one account's multi-step chain.
type ChainResult struct {
	Account    accounts.Account
	StartNonce uint64
	Fallback   bool
	Steps      []StepResult
	Status     string
	Error      string
}

type StepResult struct {
	Step string
	Result
}

const (
	ChainSuccess = "success"
	ChainPartial = "partial"
	ChainFailed  = "failed"
)

type ChainReport struct {
	RunID    string
	Network  string
	ChainID  *big.Int
	Started  time.Time
	Finished time.Time
	Chains   []ChainResult
}
