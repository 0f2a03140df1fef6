// Package ledger implements append-only token and cost accounting for a
// single run. Every gateway call records exactly one entry; totals are
// derived from the entries so the two can never drift apart.
package ledger

import (
	"strconv"
	"sync"

	"github.com/codewright-io/codewright/pkg/api"
)

// Step names follow the pattern of the gateway call that consumed the
// tokens. Iteration-scoped steps append their 1-based iteration index.
const (
	StepPlanning      = "planning"
	StepTestInference = "test_inference"
)

// GenerateStep returns the ledger step name for code generation in the
// given 1-based iteration.
func GenerateStep(iteration int) string {
	return "generate_iter_" + strconv.Itoa(iteration)
}

// RepairStep returns the ledger step name for failure analysis in the
// given 1-based iteration.
func RepairStep(iteration int) string {
	return "repair_iter_" + strconv.Itoa(iteration)
}

// Ledger is a concurrency-safe append-only cost ledger. The zero value is
// not usable; call New.
type Ledger struct {
	mu      sync.RWMutex
	entries []api.LedgerEntry
}

// New returns an empty ledger.
func New() *Ledger {
	return &Ledger{}
}

// Record appends one accounting entry for the named step. Entries are
// never modified or removed afterwards.
func (l *Ledger) Record(step string, usage api.Usage) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.entries = append(l.entries, api.LedgerEntry{
		Step:         step,
		InputTokens:  usage.InputTokens,
		OutputTokens: usage.OutputTokens,
		TotalTokens:  usage.TotalTokens,
		Cost:         usage.Cost,
	})
}

// Snapshot returns a deep copy of the ledger with totals computed from
// the entries. The copy is safe to retain and serialize while recording
// continues.
func (l *Ledger) Snapshot() *api.CostLedger {
	l.mu.RLock()
	defer l.mu.RUnlock()

	out := &api.CostLedger{
		Entries: make([]api.LedgerEntry, len(l.entries)),
	}
	copy(out.Entries, l.entries)
	for _, e := range out.Entries {
		out.TotalTokens += e.TotalTokens
		out.TotalCost += e.Cost
	}
	return out
}

// TotalTokens returns the current token sum across all entries.
func (l *Ledger) TotalTokens() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	total := 0
	for _, e := range l.entries {
		total += e.TotalTokens
	}
	return total
}

// TotalCost returns the current estimated cost sum across all entries.
func (l *Ledger) TotalCost() float64 {
	l.mu.RLock()
	defer l.mu.RUnlock()
	total := 0.0
	for _, e := range l.entries {
		total += e.Cost
	}
	return total
}

// Len returns the number of recorded entries.
func (l *Ledger) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.entries)
}
