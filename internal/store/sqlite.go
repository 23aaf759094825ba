package store

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"

	"github.com/nhle/jira-field-add/internal/fieldupdate"
)

// SQLiteStore implements the Store interface using a local SQLite database.
type SQLiteStore struct {
	db *sqlx.DB
}

// NewSQLiteStore opens (or creates) a SQLite database at dbPath,
// enables WAL mode, and runs any pending schema migrations.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	if dbPath != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
			return nil, fmt.Errorf("creating history directory: %w", err)
		}
	}

	db, err := sqlx.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("opening sqlite db: %w", err)
	}

	// An in-memory database exists per connection.
	if dbPath == ":memory:" {
		db.SetMaxOpenConns(1)
	}

	// Enable WAL mode so concurrent pipeline runs can share one history file.
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enabling WAL mode: %w", err)
	}

	// Enable foreign keys.
	if _, err := db.Exec("PRAGMA foreign_keys=ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enabling foreign keys: %w", err)
	}

	s := &SQLiteStore{db: db}
	if err := s.runMigrations(); err != nil {
		db.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}

	return s, nil
}

// Close closes the underlying database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// runMigrations checks the current schema version and applies any
// outstanding migrations in order.
func (s *SQLiteStore) runMigrations() error {
	currentVersion := 0

	// Check if schema_version table exists.
	var tableCount int
	err := s.db.Get(
		&tableCount,
		"SELECT COUNT(*) FROM sqlite_master WHERE type='table' AND name='schema_version'",
	)
	if err != nil {
		return fmt.Errorf("checking schema_version table: %w", err)
	}

	if tableCount > 0 {
		err = s.db.Get(&currentVersion, "SELECT COALESCE(MAX(version), 0) FROM schema_version")
		if err != nil {
			return fmt.Errorf("reading schema version: %w", err)
		}
	}

	for _, m := range migrations {
		if m.version <= currentVersion {
			continue
		}
		if _, err := s.db.Exec(m.sql); err != nil {
			return fmt.Errorf("applying migration v%d: %w", m.version, err)
		}
	}

	return nil
}

// SaveReport stores a run and its per-issue outcomes in one transaction.
// Saving the same run id again replaces the earlier record.
func (s *SQLiteStore) SaveReport(ctx context.Context, report *fieldupdate.Report) error {
	if report == nil {
		return nil
	}

	runID := report.RunID
	if runID == "" {
		runID = uuid.New().String()
	}

	errText := ""
	if report.Err != nil {
		errText = report.Err.Error()
	}

	finishedAt := report.FinishedAt
	if finishedAt.IsZero() {
		finishedAt = time.Now()
	}

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, "DELETE FROM run_tickets WHERE run_id = ?", runID); err != nil {
		return fmt.Errorf("replacing results of run %s: %w", runID, err)
	}
	if _, err := tx.ExecContext(ctx, "DELETE FROM runs WHERE id = ?", runID); err != nil {
		return fmt.Errorf("replacing run %s: %w", runID, err)
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO runs (
			id, job, field_id, value, state, result, error,
			updated_count, skipped_count, failed_count,
			started_at, finished_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		runID, report.Job, report.FieldID, report.Value,
		string(report.State), string(report.Result), errText,
		report.Count(fieldupdate.OutcomeUpdated),
		report.Count(fieldupdate.OutcomeSkipped),
		report.Count(fieldupdate.OutcomeFailed),
		report.StartedAt.UTC(), finishedAt.UTC(),
	)
	if err != nil {
		return fmt.Errorf("inserting run %s: %w", runID, err)
	}

	stmt, err := tx.PreparexContext(ctx, `
		INSERT INTO run_tickets (
			id, run_id, issue_key, outcome, reason,
			status_code, field_values, error, position
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("preparing ticket insert: %w", err)
	}
	defer stmt.Close()

	for i, t := range report.Tickets {
		values := t.Values
		if values == nil {
			values = []string{}
		}
		valuesJSON, err := json.Marshal(values)
		if err != nil {
			return fmt.Errorf("marshaling values for %s: %w", t.Key, err)
		}

		ticketErr := ""
		if t.Err != nil {
			ticketErr = t.Err.Error()
		}

		_, err = stmt.ExecContext(ctx,
			uuid.New().String(), runID, t.Key, string(t.Outcome), t.Reason,
			t.StatusCode, string(valuesJSON), ticketErr, i,
		)
		if err != nil {
			return fmt.Errorf("inserting result for %s: %w", t.Key, err)
		}
	}

	return tx.Commit()
}

// ListRuns retrieves runs matching the filter, newest first.
func (s *SQLiteStore) ListRuns(ctx context.Context, filter RunFilter) ([]RunRecord, error) {
	var conditions []string
	var args []interface{}

	if filter.Job != nil {
		conditions = append(conditions, "job = ?")
		args = append(args, *filter.Job)
	}
	if filter.Result != nil {
		conditions = append(conditions, "result = ?")
		args = append(args, *filter.Result)
	}

	query := "SELECT " + runColumns + " FROM runs"
	if len(conditions) > 0 {
		query += " WHERE " + strings.Join(conditions, " AND ")
	}
	query += " ORDER BY started_at DESC"

	if filter.Limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", filter.Limit)
	}
	if filter.Offset > 0 {
		if filter.Limit <= 0 {
			query += " LIMIT -1"
		}
		query += fmt.Sprintf(" OFFSET %d", filter.Offset)
	}

	rows, err := s.db.QueryxContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying runs: %w", err)
	}
	defer rows.Close()

	var runs []RunRecord
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, run)
	}

	return runs, rows.Err()
}

// GetRun retrieves a single run by its ID.
func (s *SQLiteStore) GetRun(ctx context.Context, id string) (*RunRecord, error) {
	row := s.db.QueryRowxContext(ctx, "SELECT "+runColumns+" FROM runs WHERE id = ?", id)

	run, err := scanRun(row)
	if err != nil {
		return nil, fmt.Errorf("getting run %s: %w", id, err)
	}

	return &run, nil
}

// GetRunTickets retrieves the per-issue outcomes of a run in processing order.
func (s *SQLiteStore) GetRunTickets(ctx context.Context, runID string) ([]TicketRecord, error) {
	var tickets []TicketRecord
	err := s.db.SelectContext(ctx, &tickets, `
		SELECT id, run_id, issue_key, outcome, reason,
		       status_code, field_values, error, position
		FROM run_tickets WHERE run_id = ? ORDER BY position`, runID)
	if err != nil {
		return nil, fmt.Errorf("querying tickets for run %s: %w", runID, err)
	}

	for i := range tickets {
		if err := json.Unmarshal([]byte(tickets[i].RawValues), &tickets[i].Values); err != nil {
			return nil, fmt.Errorf("unmarshaling values for %s: %w", tickets[i].IssueKey, err)
		}
	}

	return tickets, nil
}

// PruneRuns deletes all but the newest keep runs and returns how many were
// removed.
func (s *SQLiteStore) PruneRuns(ctx context.Context, keep int) (int64, error) {
	if keep < 0 {
		keep = 0
	}

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	const kept = `SELECT id FROM runs ORDER BY started_at DESC LIMIT ?`

	if _, err := tx.ExecContext(ctx,
		"DELETE FROM run_tickets WHERE run_id NOT IN ("+kept+")", keep,
	); err != nil {
		return 0, fmt.Errorf("pruning run results: %w", err)
	}

	res, err := tx.ExecContext(ctx, "DELETE FROM runs WHERE id NOT IN ("+kept+")", keep)
	if err != nil {
		return 0, fmt.Errorf("pruning runs: %w", err)
	}

	removed, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("counting pruned runs: %w", err)
	}

	return removed, tx.Commit()
}

const runColumns = `id, job, field_id, value, state, result, error,
	updated_count, skipped_count, failed_count, started_at, finished_at`

// rowScanner is satisfied by both *sqlx.Row and *sqlx.Rows.
type rowScanner interface {
	Scan(dest ...interface{}) error
}

// scanRun scans a run row.
func scanRun(row rowScanner) (RunRecord, error) {
	var (
		run        RunRecord
		startedAt  time.Time
		finishedAt time.Time
	)

	err := row.Scan(
		&run.ID, &run.Job, &run.FieldID, &run.Value,
		&run.State, &run.Result, &run.Error,
		&run.UpdatedCount, &run.SkippedCount, &run.FailedCount,
		&startedAt, &finishedAt,
	)
	if err != nil {
		return RunRecord{}, fmt.Errorf("scanning run row: %w", err)
	}

	run.StartedAt = startedAt
	run.FinishedAt = finishedAt

	return run, nil
}

var _ Store = (*SQLiteStore)(nil)
