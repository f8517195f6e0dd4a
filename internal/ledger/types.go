package ledger

import (
	"errors"
	"time"

	"github.com/danielpatrickdp/adaptive-state/quality-refiner/internal/agent"
	"github.com/danielpatrickdp/adaptive-state/quality-refiner/internal/record"
)

// ErrNotFound is returned when no run matches the lookup.
var ErrNotFound = errors.New("run not found")

// #region run
// Run is one refined batch that the durable store accepted, together with
// everything needed to inspect or replay it.
type Run struct {
	ID        string
	CreatedAt time.Time
	Seed      uint64
	Agent     agent.Config
	Outcome   string // durable outcome kind: "primary" | "fallback"
	Backend   string
	Location  string
	Records   []record.Record
	Log       []record.LogEntry
	Table     map[string]float64 // "bucket|sign|action" -> value
	// Initial is the table the agent started from; empty unless the run
	// continued from an earlier one.
	Initial map[string]float64
}
// #endregion run

// #region run-summary
// RunSummary is the listing row for a run, without its records.
type RunSummary struct {
	ID        string    `json:"run_id"`
	CreatedAt time.Time `json:"created_at"`
	Outcome   string    `json:"outcome"`
	Location  string    `json:"location"`
	Records   int       `json:"records"`
}
// #endregion run-summary
