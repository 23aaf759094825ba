package fieldupdate

import (
	"errors"
	"fmt"
	"net/http"
)

// Sentinel errors reported by Session and Connector implementations.
var (
	// ErrTicketNotFound is returned by Session.GetIssue when the key does not
	// resolve to an issue.
	ErrTicketNotFound = errors.New("ticket not found")

	// ErrFieldNotFound is returned by Session.FieldValue when the field is not
	// part of the issue's schema.
	ErrFieldNotFound = errors.New("field not found")

	// ErrNoSite is returned by a Connector when no Jira site applies to the run.
	ErrNoSite = errors.New("no jira site configured for this run")

	// ErrNoSession is returned by a Connector when the site cannot be reached.
	ErrNoSession = errors.New("unable to open a remote session to jira")

	// ErrNoSelector is reported when the step has no issue selector.
	ErrNoSelector = errors.New("no issue selector found")
)

// ConfigError is an invocation-level configuration problem. No remote call is
// made once one is raised.
type ConfigError struct {
	Err error
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("configuration error: %v", e.Err)
}

func (e *ConfigError) Unwrap() error { return e.Err }

// ConnectivityError means the Jira site or a session to it could not be
// obtained.
type ConnectivityError struct {
	Err error
}

func (e *ConnectivityError) Error() string {
	return fmt.Sprintf("connectivity error: %v", e.Err)
}

func (e *ConnectivityError) Unwrap() error { return e.Err }

// SchemaError means the configured field does not exist on an issue. It aborts
// the whole invocation before anything is submitted.
type SchemaError struct {
	FieldID string
	Key     string
}

func (e *SchemaError) Error() string {
	return fmt.Sprintf("field %s not found on %s", e.FieldID, e.Key)
}

func (e *SchemaError) Unwrap() error { return ErrFieldNotFound }

// SelectionError wraps a failure of the issue selector itself.
type SelectionError struct {
	Err error
}

func (e *SelectionError) Error() string {
	return fmt.Sprintf("selecting issues: %v", e.Err)
}

func (e *SelectionError) Unwrap() error { return e.Err }

// IsConfigError reports whether err (or any error in its chain) is a ConfigError.
func IsConfigError(err error) bool {
	var target *ConfigError
	return errors.As(err, &target)
}

// IsConnectivityError reports whether err (or any error in its chain) is a
// ConnectivityError.
func IsConnectivityError(err error) bool {
	var target *ConnectivityError
	return errors.As(err, &target)
}

// IsSchemaError reports whether err (or any error in its chain) is a SchemaError.
func IsSchemaError(err error) bool {
	var target *SchemaError
	return errors.As(err, &target)
}

// RemoteError is implemented by session errors that carry an HTTP status.
type RemoteError interface {
	error
	StatusCode() int
}

// StatusCodeOf returns the HTTP status carried by err, or 0 if there is none.
func StatusCodeOf(err error) int {
	var remote RemoteError
	if errors.As(err, &remote) {
		return remote.StatusCode()
	}
	return 0
}

// SubmissionFailure classifies a rejected update for the log line attached to
// the issue.
func SubmissionFailure(status int) string {
	switch status {
	case http.StatusNotFound:
		return "jira issue not found"
	case http.StatusForbidden:
		return "jira user does not have permission to edit this issue"
	case http.StatusUnauthorized:
		return "jira authentication problem"
	default:
		return "failed to update issue"
	}
}
