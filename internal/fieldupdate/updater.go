package fieldupdate

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
)

// Updater appends a value to an array field on every issue a selector picks.
type Updater struct {
	cfg       Config
	connector Connector
	log       *slog.Logger
	now       func() time.Time
}

// New creates an Updater. A nil logger discards output.
func New(cfg Config, connector Connector, logger *slog.Logger) *Updater {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Updater{
		cfg:       cfg,
		connector: connector,
		log:       logger,
		now:       time.Now,
	}
}

// Run executes one invocation and reports what happened to every issue.
// Only configuration, connectivity, selection, and schema errors (and
// cancellation while collecting or submitting) produce ResultFailure;
// skipped or rejected issues are recorded in the report and leave the run
// successful.
func (u *Updater) Run(ctx context.Context, run Run) *Report {
	if run.ID == "" {
		run.ID = uuid.New().String()
	}

	fieldID := NormalizeFieldID(u.cfg.FieldID)

	report := &Report{
		RunID:     run.ID,
		Job:       run.Job,
		FieldID:   fieldID,
		Value:     u.cfg.ValueToAdd,
		State:     StateInit,
		StartedAt: u.now(),
	}
	defer func() { report.FinishedAt = u.now() }()

	if u.cfg.Selector == nil {
		return u.abort(report, &ConfigError{Err: ErrNoSelector})
	}

	if u.connector == nil {
		return u.abort(report, &ConnectivityError{Err: ErrNoSite})
	}
	session, err := u.connector.Connect(ctx, run)
	if err != nil {
		return u.abort(report, &ConnectivityError{Err: err})
	}
	if session == nil {
		return u.abort(report, &ConnectivityError{Err: ErrNoSession})
	}

	report.State = StateSelecting
	keys, err := u.cfg.Selector.FindIssueIDs(ctx, run, session)
	if err != nil {
		return u.abort(report, &SelectionError{Err: err})
	}
	keys = uniqueKeys(keys)
	if len(keys) == 0 {
		u.log.Info("issue list is empty")
		return u.finish(report)
	}

	report.State = StateCollecting

	payloads, err := u.collect(ctx, session, keys, fieldID, report)
	if err != nil {
		return u.abort(report, err)
	}

	report.State = StateSubmitting
	for i, p := range payloads {
		if err := ctx.Err(); err != nil {
			for _, rest := range payloads[i:] {
				report.Tickets = append(report.Tickets, TicketResult{
					Key:     rest.Key,
					Outcome: OutcomeSkipped,
					Reason:  "cancelled",
					Err:     err,
				})
			}
			return u.abort(report, fmt.Errorf("submitting updates: %w", err))
		}
		report.Tickets = append(report.Tickets, u.submit(ctx, session, p))
	}

	return u.finish(report)
}

// collect fetches every issue and builds its merged payload. Skipped issues are
// appended to report directly; payloads are returned in selection order.
func (u *Updater) collect(
	ctx context.Context,
	session Session,
	keys []string,
	fieldID string,
	report *Report,
) ([]Payload, error) {
	payloads := make([]Payload, 0, len(keys))

	for _, key := range keys {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("collecting issues: %w", err)
		}

		ticket, err := session.GetIssue(ctx, key)
		if err != nil {
			reason := "issue not found"
			if !errors.Is(err, ErrTicketNotFound) {
				reason = "issue could not be fetched"
			}
			u.log.Warn(reason, "issue", key, "error", err)
			report.Tickets = append(report.Tickets, TicketResult{
				Key:     key,
				Outcome: OutcomeSkipped,
				Reason:  reason,
				Err:     err,
			})
			continue
		}

		current, err := session.FieldValue(ticket, fieldID)
		if err != nil {
			if errors.Is(err, ErrFieldNotFound) {
				return nil, &SchemaError{FieldID: fieldID, Key: key}
			}
			return nil, fmt.Errorf("reading %s on %s: %w", fieldID, key, err)
		}

		payloads = append(payloads, Payload{
			Key: key,
			Fields: []FieldValue{{
				FieldID: fieldID,
				Values:  MergeArrayValue(current, u.cfg.ValueToAdd),
			}},
		})
	}

	return payloads, nil
}

// submit sends one payload. Failures are classified and recorded; they never
// stop the remaining submissions.
func (u *Updater) submit(ctx context.Context, session Session, p Payload) TicketResult {
	result := TicketResult{Key: p.Key, Outcome: OutcomeUpdated}
	for _, f := range p.Fields {
		result.Values = f.Values
	}

	if err := session.AddFields(ctx, p.Key, p.Fields); err != nil {
		status := StatusCodeOf(err)
		result.Outcome = OutcomeFailed
		result.StatusCode = status
		result.Reason = SubmissionFailure(status)
		result.Err = err
		u.log.Warn(result.Reason, "issue", p.Key, "status", status, "error", err)
		return result
	}

	u.log.Info("issue updated", "issue", p.Key, "values", len(result.Values))
	return result
}

func (u *Updater) abort(report *Report, err error) *Report {
	u.log.Error("aborting", "state", report.State, "error", err)
	report.State = StateAborted
	report.Result = ResultFailure
	report.Err = err
	return report
}

func (u *Updater) finish(report *Report) *Report {
	report.State = StateDone
	report.Result = ResultSuccess
	if report.Count(OutcomeSkipped)+report.Count(OutcomeFailed) > 0 {
		report.Result = ResultUnstable
	}
	return report
}

// uniqueKeys drops empty and repeated keys, keeping first-seen order.
func uniqueKeys(keys []string) []string {
	seen := make(map[string]bool, len(keys))
	out := make([]string, 0, len(keys))
	for _, k := range keys {
		if k == "" || seen[k] {
			continue
		}
		seen[k] = true
		out = append(out, k)
	}
	return out
}
