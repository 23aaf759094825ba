package fieldupdate

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"testing"
)

const testField = "customfield_10100"

type statusError struct {
	status int
}

func (e *statusError) Error() string   { return fmt.Sprintf("jira API error (%d)", e.status) }
func (e *statusError) StatusCode() int { return e.status }

// fakeSession is an in-memory Jira site.
type fakeSession struct {
	issues    map[string]map[string]json.RawMessage
	submitErr map[string]error

	fetched   []string
	submitted map[string][]FieldValue
	order     []string
}

func newFakeSession() *fakeSession {
	return &fakeSession{
		issues:    make(map[string]map[string]json.RawMessage),
		submitErr: make(map[string]error),
		submitted: make(map[string][]FieldValue),
	}
}

func (s *fakeSession) withIssue(key string, fields map[string]string) *fakeSession {
	raw := make(map[string]json.RawMessage, len(fields))
	for id, v := range fields {
		raw[id] = json.RawMessage(v)
	}
	s.issues[key] = raw
	return s
}

func (s *fakeSession) GetIssue(_ context.Context, key string) (*Ticket, error) {
	s.fetched = append(s.fetched, key)
	fields, ok := s.issues[key]
	if !ok {
		return nil, fmt.Errorf("getting %s: %w", key, ErrTicketNotFound)
	}
	return &Ticket{Key: key, Fields: fields}, nil
}

func (s *fakeSession) FieldValue(t *Ticket, fieldID string) ([]string, error) {
	raw, ok := t.Fields[fieldID]
	if !ok {
		return nil, ErrFieldNotFound
	}
	var values []string
	if err := json.Unmarshal(raw, &values); err != nil {
		return nil, err
	}
	return values, nil
}

func (s *fakeSession) AddFields(_ context.Context, key string, fields []FieldValue) error {
	s.order = append(s.order, key)
	if err := s.submitErr[key]; err != nil {
		return err
	}
	s.submitted[key] = fields
	if issue, ok := s.issues[key]; ok {
		for _, f := range fields {
			data, _ := json.Marshal(f.Values)
			issue[f.FieldID] = data
		}
	}
	return nil
}

type staticSelector []string

func (s staticSelector) FindIssueIDs(context.Context, Run, Session) ([]string, error) {
	return s, nil
}

type selectorFunc func() ([]string, error)

func (f selectorFunc) FindIssueIDs(context.Context, Run, Session) ([]string, error) {
	return f()
}

func connectTo(s Session) Connector {
	return ConnectorFunc(func(context.Context, Run) (Session, error) { return s, nil })
}

func newTestLogger(buf *bytes.Buffer) *slog.Logger {
	return slog.New(slog.NewTextHandler(buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
}

func TestUpdaterConfigurationErrors(t *testing.T) {
	t.Run("no selector", func(t *testing.T) {
		connected := false
		conn := ConnectorFunc(func(context.Context, Run) (Session, error) {
			connected = true
			return newFakeSession(), nil
		})

		report := New(Config{FieldID: "1", ValueToAdd: "v"}, conn, nil).Run(context.Background(), Run{})
		if report.Result != ResultFailure || report.State != StateAborted {
			t.Fatalf("expected aborted failure, got %s/%s", report.State, report.Result)
		}
		if !IsConfigError(report.Err) || !errors.Is(report.Err, ErrNoSelector) {
			t.Errorf("expected ConfigError wrapping ErrNoSelector, got %v", report.Err)
		}
		if connected {
			t.Error("connector should not be called without a selector")
		}
	})

	t.Run("no site", func(t *testing.T) {
		conn := ConnectorFunc(func(context.Context, Run) (Session, error) {
			return nil, ErrNoSite
		})
		report := New(Config{Selector: staticSelector{"A-1"}}, conn, nil).Run(context.Background(), Run{})
		if report.Result != ResultFailure || !IsConnectivityError(report.Err) {
			t.Fatalf("expected connectivity failure, got %s %v", report.Result, report.Err)
		}
		if !errors.Is(report.Err, ErrNoSite) {
			t.Errorf("expected ErrNoSite in chain, got %v", report.Err)
		}
	})

	t.Run("nil session", func(t *testing.T) {
		conn := ConnectorFunc(func(context.Context, Run) (Session, error) { return nil, nil })
		report := New(Config{Selector: staticSelector{"A-1"}}, conn, nil).Run(context.Background(), Run{})
		if !errors.Is(report.Err, ErrNoSession) {
			t.Fatalf("expected ErrNoSession, got %v", report.Err)
		}
	})

	t.Run("selector failure", func(t *testing.T) {
		sel := selectorFunc(func() ([]string, error) { return nil, errors.New("bad jql") })
		report := New(Config{Selector: sel}, connectTo(newFakeSession()), nil).Run(context.Background(), Run{})
		if report.Result != ResultFailure {
			t.Fatalf("expected failure, got %s", report.Result)
		}
	})
}

func TestUpdaterEmptySelection(t *testing.T) {
	session := newFakeSession()
	var logs bytes.Buffer

	report := New(Config{Selector: staticSelector{}, FieldID: "1", ValueToAdd: "v"},
		connectTo(session), newTestLogger(&logs)).Run(context.Background(), Run{ID: "run-1"})

	if report.Result != ResultSuccess || report.State != StateDone {
		t.Fatalf("expected done/success, got %s/%s", report.State, report.Result)
	}
	if len(session.fetched) != 0 || len(session.order) != 0 {
		t.Errorf("expected no remote calls, fetched=%v submitted=%v", session.fetched, session.order)
	}
	if !strings.Contains(logs.String(), "issue list is empty") {
		t.Errorf("expected empty-list log line, got %q", logs.String())
	}
	if report.RunID != "run-1" {
		t.Errorf("expected run id to be kept, got %q", report.RunID)
	}
}

func TestUpdaterSchemaErrorAbortsBeforeSubmit(t *testing.T) {
	session := newFakeSession().
		withIssue("T1", map[string]string{testField: `["a"]`}).
		withIssue("T2", map[string]string{"summary": `"no custom field"`})

	report := New(Config{Selector: staticSelector{"T1", "T2"}, FieldID: "10100", ValueToAdd: "b"},
		connectTo(session), nil).Run(context.Background(), Run{})

	if report.Result != ResultFailure || report.State != StateAborted {
		t.Fatalf("expected aborted failure, got %s/%s", report.State, report.Result)
	}
	if !IsSchemaError(report.Err) || !errors.Is(report.Err, ErrFieldNotFound) {
		t.Fatalf("expected SchemaError, got %v", report.Err)
	}
	if len(session.order) != 0 {
		t.Fatalf("expected no submissions, got %v", session.order)
	}
	if !slices.Equal(session.fetched, []string{"T1", "T2"}) {
		t.Errorf("expected both issues fetched, got %v", session.fetched)
	}
}

func TestUpdaterSubmissionIsolation(t *testing.T) {
	session := newFakeSession().
		withIssue("T1", map[string]string{testField: `["a"]`}).
		withIssue("T2", map[string]string{testField: `null`})
	session.submitErr["T1"] = fmt.Errorf("put: %w", &statusError{status: 403})
	var logs bytes.Buffer

	report := New(Config{Selector: staticSelector{"T1", "T2"}, FieldID: "10100", ValueToAdd: "b"},
		connectTo(session), newTestLogger(&logs)).Run(context.Background(), Run{})

	if report.Result == ResultFailure {
		t.Fatalf("submission failures must not fail the run: %v", report.Err)
	}
	if report.Result != ResultUnstable {
		t.Errorf("expected unstable result, got %s", report.Result)
	}

	t1, _ := report.Ticket("T1")
	if t1.Outcome != OutcomeFailed || t1.StatusCode != 403 {
		t.Errorf("expected T1 failed with 403, got %+v", t1)
	}
	if !strings.Contains(t1.Reason, "permission") {
		t.Errorf("expected permission-specific reason, got %q", t1.Reason)
	}
	if !strings.Contains(logs.String(), "permission") || !strings.Contains(logs.String(), "T1") {
		t.Errorf("expected a permission log line for T1, got %q", logs.String())
	}

	t2, _ := report.Ticket("T2")
	if t2.Outcome != OutcomeUpdated {
		t.Errorf("expected T2 updated, got %+v", t2)
	}
	if got := session.submitted["T2"]; len(got) != 1 || !slices.Equal(got[0].Values, []string{"b"}) {
		t.Errorf("unexpected T2 payload %+v", got)
	}
}

func TestUpdaterStatusClassification(t *testing.T) {
	tests := []struct {
		status int
		want   string
	}{
		{401, "authentication"},
		{403, "permission"},
		{404, "not found"},
		{500, "failed to update"},
		{0, "failed to update"},
	}

	for _, tt := range tests {
		t.Run(fmt.Sprint(tt.status), func(t *testing.T) {
			session := newFakeSession().withIssue("T1", map[string]string{testField: `[]`})
			var err error = errors.New("connection reset")
			if tt.status != 0 {
				err = &statusError{status: tt.status}
			}
			session.submitErr["T1"] = err

			report := New(Config{Selector: staticSelector{"T1"}, FieldID: "10100", ValueToAdd: "x"},
				connectTo(session), nil).Run(context.Background(), Run{})

			res, _ := report.Ticket("T1")
			if !strings.Contains(res.Reason, tt.want) {
				t.Errorf("status %d: expected reason containing %q, got %q", tt.status, tt.want, res.Reason)
			}
		})
	}
}

func TestUpdaterMissingTicketSkipped(t *testing.T) {
	session := newFakeSession().withIssue("T2", map[string]string{testField: `["a"]`})
	var logs bytes.Buffer

	report := New(Config{Selector: staticSelector{"T1", "T2"}, FieldID: "10100", ValueToAdd: "b"},
		connectTo(session), newTestLogger(&logs)).Run(context.Background(), Run{})

	if report.State != StateDone {
		t.Fatalf("expected done, got %s (%v)", report.State, report.Err)
	}
	if !slices.Equal(session.order, []string{"T2"}) {
		t.Fatalf("expected only T2 submitted, got %v", session.order)
	}
	t1, _ := report.Ticket("T1")
	if t1.Outcome != OutcomeSkipped || t1.Reason != "issue not found" {
		t.Errorf("expected T1 skipped as not found, got %+v", t1)
	}
	if !strings.Contains(logs.String(), "issue not found") {
		t.Errorf("expected not-found log line, got %q", logs.String())
	}
}

func TestUpdaterDuplicateRoundTrip(t *testing.T) {
	session := newFakeSession().withIssue("T1", map[string]string{testField: `["a"]`})
	cfg := Config{Selector: staticSelector{"T1"}, FieldID: "10100", ValueToAdd: "b"}

	first := New(cfg, connectTo(session), nil).Run(context.Background(), Run{})
	firstValues := session.submitted["T1"][0].Values

	second := New(cfg, connectTo(session), nil).Run(context.Background(), Run{})
	secondValues := session.submitted["T1"][0].Values

	if first.Result != ResultSuccess || second.Result != ResultSuccess {
		t.Fatalf("expected two successful runs, got %s and %s", first.Result, second.Result)
	}
	if !slices.Equal(firstValues, []string{"a", "b"}) {
		t.Fatalf("unexpected first submission %v", firstValues)
	}
	if !slices.Equal(firstValues, secondValues) {
		t.Fatalf("second run changed the value set: %v -> %v", firstValues, secondValues)
	}
}

func TestUpdaterDeduplicatesSelection(t *testing.T) {
	session := newFakeSession().withIssue("T1", map[string]string{testField: `[]`})

	New(Config{Selector: staticSelector{"T1", "", "T1"}, FieldID: "10100", ValueToAdd: "b"},
		connectTo(session), nil).Run(context.Background(), Run{})

	if !slices.Equal(session.order, []string{"T1"}) {
		t.Fatalf("expected a single submission, got %v", session.order)
	}
}

func TestUpdaterCancellation(t *testing.T) {
	session := newFakeSession().withIssue("T1", map[string]string{testField: `[]`})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	report := New(Config{Selector: staticSelector{"T1"}, FieldID: "10100", ValueToAdd: "b"},
		connectTo(session), nil).Run(ctx, Run{})

	if report.Result != ResultFailure || !errors.Is(report.Err, context.Canceled) {
		t.Fatalf("expected cancelled failure, got %s %v", report.Result, report.Err)
	}
	if len(session.fetched) != 0 || len(session.order) != 0 {
		t.Errorf("expected no remote calls after cancellation")
	}
}

// cancellingSession cancels the run after its first successful submission.
type cancellingSession struct {
	*fakeSession
	cancel context.CancelFunc
}

func (s *cancellingSession) AddFields(ctx context.Context, key string, fields []FieldValue) error {
	if err := ctx.Err(); err != nil {
		s.order = append(s.order, key)
		return err
	}
	err := s.fakeSession.AddFields(ctx, key, fields)
	s.cancel()
	return err
}

func TestUpdaterCancellationDuringSubmit(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	session := &cancellingSession{
		fakeSession: newFakeSession().
			withIssue("T1", map[string]string{testField: `[]`}).
			withIssue("T2", map[string]string{testField: `[]`}).
			withIssue("T3", map[string]string{testField: `[]`}),
		cancel: cancel,
	}

	report := New(Config{Selector: staticSelector{"T1", "T2", "T3"}, FieldID: "10100", ValueToAdd: "b"},
		connectTo(session), nil).Run(ctx, Run{})

	if report.State != StateAborted || report.Result != ResultFailure {
		t.Fatalf("expected aborted failure, got %s/%s", report.State, report.Result)
	}
	if !errors.Is(report.Err, context.Canceled) {
		t.Errorf("expected context.Canceled cause, got %v", report.Err)
	}
	if !slices.Equal(session.order, []string{"T1"}) {
		t.Fatalf("expected no submissions after cancellation, got %v", session.order)
	}

	if r, _ := report.Ticket("T1"); r.Outcome != OutcomeUpdated {
		t.Errorf("expected T1 updated, got %+v", r)
	}
	for _, key := range []string{"T2", "T3"} {
		r, ok := report.Ticket(key)
		if !ok || r.Outcome != OutcomeSkipped || r.Reason != "cancelled" {
			t.Errorf("expected %s skipped as cancelled, got %+v", key, r)
		}
	}
}
