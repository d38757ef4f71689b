package report

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/ligun0805/batch-broadcaster/internal/accounts"
	"github.com/ligun0805/batch-broadcaster/internal/broadcast"
)

// Counts is derived from a result list on demand and never stored alongside it.
type Counts struct {
	Sent      int `json:"sent"`
	Confirmed int `json:"confirmed"`
	Reverted  int `json:"reverted"`
	Failed    int `json:"failed"`
	Total     int `json:"total"`
}

// Summarize tallies results by status. It has no side effects.
func Summarize(results []broadcast.Result) Counts {
	var c Counts
	for _, r := range results {
		switch r.Status {
		case broadcast.StatusSent:
			c.Sent++
		case broadcast.StatusConfirmed:
			c.Confirmed++
		case broadcast.StatusReverted:
			c.Reverted++
		default:
			c.Failed++
		}
	}
	c.Total = len(results)
	return c
}

func (c Counts) Succeeded() int { return c.Sent + c.Confirmed }

func (c Counts) String() string {
	return fmt.Sprintf("total=%d sent=%d confirmed=%d reverted=%d failed=%d", c.Total, c.Sent, c.Confirmed, c.Reverted, c.Failed)
}

type ChainCounts struct {
	Success int `json:"success"`
	Partial int `json:"partial"`
	Failed  int `json:"failed"`
	Total   int `json:"total"`
}

func SummarizeChains(chains []broadcast.ChainResult) ChainCounts {
	var c ChainCounts
	for _, cr := range chains {
		switch cr.Status {
		case broadcast.ChainSuccess:
			c.Success++
		case broadcast.ChainPartial:
			c.Partial++
		default:
			c.Failed++
		}
	}
	c.Total = len(chains)
	return c
}

func (c ChainCounts) String() string {
	return fmt.Sprintf("total=%d success=%d partial=%d failed=%d", c.Total, c.Success, c.Partial, c.Failed)
}

// MintSummary is the conditional mint outcome: Processed accounts were dispatched, Skipped already held the asset.
type MintSummary struct {
	Processed int `json:"processed"`
	Skipped   int `json:"skipped"`
}

func NewMintSummary(eligible, skipped []accounts.Account) MintSummary {
	return MintSummary{Processed: len(eligible), Skipped: len(skipped)}
}

// Record is the persisted shape of one result.
type Record struct {
	Ordinal         int             `json:"line_number"`
	Address         common.Address  `json:"address"`
	Step            string          `json:"step,omitempty"`
	Status          string          `json:"status"`
	Nonce           uint64          `json:"nonce"`
	TxHash          *common.Hash    `json:"tx_hash,omitempty"`
	ContractAddress *common.Address `json:"contract_address,omitempty"`
	GasUsed         uint64          `json:"gas_used,omitempty"`
	ErrorKind       string          `json:"error_kind,omitempty"`
	Error           string          `json:"error,omitempty"`
	At              time.Time       `json:"at"`
}

func NewRecord(r broadcast.Result) Record {
	rec := Record{
		Ordinal:         r.Account.Ordinal,
		Address:         r.Account.Address,
		Status:          string(r.Status),
		Nonce:           r.Nonce,
		ContractAddress: r.ContractAddress,
		GasUsed:         r.GasUsed,
		ErrorKind:       string(r.Kind),
		Error:           r.Reason,
		At:              r.At,
	}
	if r.TxHash != (common.Hash{}) {
		h := r.TxHash
		rec.TxHash = &h
	}
	return rec
}

// File is the document written for a batch run.
type File struct {
	RunID    string       `json:"run_id"`
	Action   string       `json:"action"`
	Network  string       `json:"network"`
	ChainID  string       `json:"chain_id"`
	Started  time.Time    `json:"started"`
	Finished time.Time    `json:"finished"`
	Summary  Counts       `json:"summary"`
	Mint     *MintSummary `json:"mint,omitempty"`
	Results  []Record     `json:"results"`
}

func FromReport(rep *broadcast.Report) File {
	f := File{
		RunID:    rep.RunID,
		Action:   rep.Action,
		Network:  rep.Network,
		Started:  rep.Started,
		Finished: rep.Finished,
		Summary:  Summarize(rep.Results),
		Results:  make([]Record, 0, len(rep.Results)),
	}
	if rep.ChainID != nil {
		f.ChainID = rep.ChainID.String()
	}
	for _, r := range rep.Results {
		f.Results = append(f.Results, NewRecord(r))
	}
	return f
}

type ChainRecord struct {
	Ordinal    int            `json:"line_number"`
	Address    common.Address `json:"address"`
	StartNonce uint64         `json:"start_nonce"`
	Fallback   bool           `json:"pending_fallback,omitempty"`
	Status     string         `json:"status"`
	Error      string         `json:"error,omitempty"`
	Steps      []Record       `json:"steps"`
}

type ChainFile struct {
	RunID    string        `json:"run_id"`
	Network  string        `json:"network"`
	ChainID  string        `json:"chain_id"`
	Started  time.Time     `json:"started"`
	Finished time.Time     `json:"finished"`
	Summary  ChainCounts   `json:"summary"`
	Chains   []ChainRecord `json:"results"`
}

func FromChainReport(rep *broadcast.ChainReport) ChainFile {
	f := ChainFile{
		RunID:    rep.RunID,
		Network:  rep.Network,
		Started:  rep.Started,
		Finished: rep.Finished,
		Summary:  SummarizeChains(rep.Chains),
		Chains:   make([]ChainRecord, 0, len(rep.Chains)),
	}
	if rep.ChainID != nil {
		f.ChainID = rep.ChainID.String()
	}
	for _, cr := range rep.Chains {
		rec := ChainRecord{
			Ordinal:    cr.Account.Ordinal,
			Address:    cr.Account.Address,
			StartNonce: cr.StartNonce,
			Fallback:   cr.Fallback,
			Status:     cr.Status,
			Error:      cr.Error,
			Steps:      make([]Record, 0, len(cr.Steps)),
		}
		for _, s := range cr.Steps {
			r := NewRecord(s.Result)
			r.Step = s.Step
			rec.Steps = append(rec.Steps, r)
		}
		f.Chains = append(f.Chains, rec)
	}
	return f
}

// Persist writes v as indented JSON, replacing any previous file at path.
func Persist(path string, v any) error {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("encode results: %w", err)
	}
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, ".results-*.json")
	if err != nil {
		return fmt.Errorf("save results: %w", err)
	}
	defer os.Remove(tmp.Name())
	if _, err := tmp.Write(append(b, '\n')); err != nil {
		tmp.Close()
		return fmt.Errorf("save results: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("save results: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("save results: %w", err)
	}
	return nil
}

// Print writes the operator summary.
func Print(w io.Writer, title string, c Counts) {
	fmt.Fprintf(w, "\n%s\n", title)
	fmt.Fprintf(w, "  total:     %d\n", c.Total)
	fmt.Fprintf(w, "  sent:      %d\n", c.Sent)
	fmt.Fprintf(w, "  confirmed: %d\n", c.Confirmed)
	fmt.Fprintf(w, "  reverted:  %d\n", c.Reverted)
	fmt.Fprintf(w, "  failed:    %d\n", c.Failed)
}
