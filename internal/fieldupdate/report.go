package fieldupdate

import "time"

// State is a step of the update state machine.
type State string

const (
	StateInit       State = "init"
	StateSelecting  State = "selecting"
	StateCollecting State = "collecting"
	StateSubmitting State = "submitting"
	StateDone       State = "done"
	StateAborted    State = "aborted"
)

// Result is the overall outcome of an invocation.
type Result string

const (
	// ResultSuccess means every selected issue was updated (or nothing was
	// selected).
	ResultSuccess Result = "success"

	// ResultUnstable means the run succeeded but some issues were skipped or
	// rejected. It never fails the build.
	ResultUnstable Result = "unstable"

	// ResultFailure means the run was aborted by a configuration,
	// connectivity, or schema error.
	ResultFailure Result = "failure"
)

// Outcome is what happened to one issue.
type Outcome string

const (
	OutcomeUpdated Outcome = "updated"
	OutcomeSkipped Outcome = "skipped"
	OutcomeFailed  Outcome = "failed"
)

// TicketResult records the outcome for a single issue.
type TicketResult struct {
	Key     string
	Outcome Outcome

	// Values is the value set that was (or would have been) submitted.
	Values []string

	// Reason is a human-readable cause for skipped and failed issues.
	Reason string

	// StatusCode is the HTTP status of a rejected submission, if any.
	StatusCode int

	Err error
}

// Report summarizes one invocation.
type Report struct {
	RunID      string
	Job        string
	FieldID    string
	Value      string
	State      State
	Result     Result
	Err        error
	Tickets    []TicketResult
	StartedAt  time.Time
	FinishedAt time.Time
}

// Count returns the number of issues with the given outcome.
func (r *Report) Count(outcome Outcome) int {
	n := 0
	for _, t := range r.Tickets {
		if t.Outcome == outcome {
			n++
		}
	}
	return n
}

// Ticket returns the result recorded for key.
func (r *Report) Ticket(key string) (TicketResult, bool) {
	for _, t := range r.Tickets {
		if t.Key == key {
			return t, true
		}
	}
	return TicketResult{}, false
}
