package store

import (
	"context"
	"time"

	"github.com/nhle/jira-field-add/internal/fieldupdate"
)

// RunRecord is a stored invocation summary.
type RunRecord struct {
	ID           string
	Job          string
	FieldID      string
	Value        string
	State        string
	Result       string
	Error        string
	UpdatedCount int
	SkippedCount int
	FailedCount  int
	StartedAt    time.Time
	FinishedAt   time.Time
}

// TicketRecord is the stored outcome for one issue of a run.
type TicketRecord struct {
	ID         string   `db:"id"`
	RunID      string   `db:"run_id"`
	IssueKey   string   `db:"issue_key"`
	Outcome    string   `db:"outcome"`
	Reason     string   `db:"reason"`
	StatusCode int      `db:"status_code"`
	Values     []string `db:"-"`
	Error      string   `db:"error"`
	Position   int      `db:"position"`
	RawValues  string   `db:"field_values"`
}

// RunFilter controls filtering and pagination for run queries.
type RunFilter struct {
	Job    *string
	Result *string
	Limit  int
	Offset int
}

// Store persists the history of field update runs.
type Store interface {
	SaveReport(ctx context.Context, report *fieldupdate.Report) error
	ListRuns(ctx context.Context, filter RunFilter) ([]RunRecord, error)
	GetRun(ctx context.Context, id string) (*RunRecord, error)
	GetRunTickets(ctx context.Context, runID string) ([]TicketRecord, error)
	PruneRuns(ctx context.Context, keep int) (int64, error)
	Close() error
}
