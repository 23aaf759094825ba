// Package fieldupdate appends a value to an array custom field on a set of
// Jira issues. Issues are fetched and merged first; updates are submitted only
// after every issue has been read, so a missing field aborts the run before
// anything on the remote side changes.
package fieldupdate

import (
	"context"
	"encoding/json"
)

// Run describes the build invocation the step runs in.
type Run struct {
	// ID identifies the invocation (a build tag, or a generated UUID).
	ID string

	// Job is the pipeline/job name used to pick a Jira site.
	Job string

	// Changes holds the change messages (commit subjects etc.) of the build.
	Changes []string
}

// Ticket is an issue as fetched from the remote site.
type Ticket struct {
	Key string

	// Fields maps field ids to their raw JSON value. A field that exists but
	// was never populated is present with a JSON null.
	Fields map[string]json.RawMessage
}

// FieldValue is one field update for an issue.
type FieldValue struct {
	FieldID string
	Values  []string
}

// Payload is the update collected for one issue during the read phase.
type Payload struct {
	Key    string
	Fields []FieldValue
}

// Selector decides which issues a run acts upon.
type Selector interface {
	// FindIssueIDs returns the issue keys relevant to run. An empty result is
	// not an error.
	FindIssueIDs(ctx context.Context, run Run, session Session) ([]string, error)
}

// Session is an open connection to a Jira site.
type Session interface {
	// GetIssue fetches an issue. A missing issue yields ErrTicketNotFound.
	GetIssue(ctx context.Context, key string) (*Ticket, error)

	// FieldValue reads an array field from a fetched issue. An unpopulated
	// field yields (nil, nil); a field unknown to the issue yields
	// ErrFieldNotFound.
	FieldValue(ticket *Ticket, fieldID string) ([]string, error)

	// AddFields submits field values for an issue. Rejections should satisfy
	// RemoteError.
	AddFields(ctx context.Context, key string, fields []FieldValue) error
}

// Connector resolves the Jira site for a run and opens a session to it.
type Connector interface {
	Connect(ctx context.Context, run Run) (Session, error)
}

// ConnectorFunc adapts a function to the Connector interface.
type ConnectorFunc func(ctx context.Context, run Run) (Session, error)

// Connect calls f.
func (f ConnectorFunc) Connect(ctx context.Context, run Run) (Session, error) {
	return f(ctx, run)
}

// Config is the immutable configuration of one invocation.
type Config struct {
	Selector   Selector
	FieldID    string
	ValueToAdd string
}
