// Package selector provides the strategies that decide which Jira issues a
// run acts upon.
package selector

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/nhle/jira-field-add/internal/fieldupdate"
	"github.com/nhle/jira-field-add/internal/model"
)

// DefaultKeyPattern matches Jira issue keys such as ABC-123. Project keys
// are upper case, so tokens like utf-8 or sha-256 are not keys.
var DefaultKeyPattern = regexp.MustCompile(`\b([A-Z][A-Z0-9_]+-[1-9][0-9]*)\b`)

// ErrSearchUnsupported is returned by JQL when the session cannot search.
var ErrSearchUnsupported = errors.New("session does not support JQL search")

// Static selects a fixed list of issue keys.
type Static struct {
	Keys []string
}

// FindIssueIDs returns the configured keys, trimmed and deduplicated.
func (s Static) FindIssueIDs(
	_ context.Context,
	_ fieldupdate.Run,
	_ fieldupdate.Session,
) ([]string, error) {
	var keys []string
	for _, k := range s.Keys {
		for _, part := range strings.Split(k, ",") {
			keys = append(keys, strings.TrimSpace(part))
		}
	}
	return dedupe(keys), nil
}

// Changelog selects the issue keys mentioned in the run's change messages.
type Changelog struct {
	// Pattern extracts keys; the first capture group is used when present.
	// Nil selects DefaultKeyPattern.
	Pattern *regexp.Regexp
}

// FindIssueIDs scans every change message, returning keys in the order they
// first appear. Keys are upper-cased, so a case-insensitive custom pattern
// still yields canonical keys.
func (c Changelog) FindIssueIDs(
	_ context.Context,
	run fieldupdate.Run,
	_ fieldupdate.Session,
) ([]string, error) {
	pattern := c.Pattern
	if pattern == nil {
		pattern = DefaultKeyPattern
	}

	var keys []string
	for _, msg := range run.Changes {
		for _, m := range pattern.FindAllStringSubmatch(msg, -1) {
			key := m[0]
			if len(m) > 1 && m[1] != "" {
				key = m[1]
			}
			keys = append(keys, strings.ToUpper(key))
		}
	}
	return dedupe(keys), nil
}

// keySearcher is implemented by sessions that can run JQL queries.
type keySearcher interface {
	SearchIssueKeys(ctx context.Context, jql string, limit int) ([]string, error)
}

// JQL selects the issues matching a query on the run's Jira site.
type JQL struct {
	Query string

	// Limit caps the number of issues; zero means no limit.
	Limit int
}

// FindIssueIDs runs the query through the session.
func (j JQL) FindIssueIDs(
	ctx context.Context,
	_ fieldupdate.Run,
	session fieldupdate.Session,
) ([]string, error) {
	if strings.TrimSpace(j.Query) == "" {
		return nil, errors.New("empty JQL query")
	}

	searcher, ok := session.(keySearcher)
	if !ok {
		return nil, ErrSearchUnsupported
	}

	keys, err := searcher.SearchIssueKeys(ctx, j.Query, j.Limit)
	if err != nil {
		return nil, fmt.Errorf("resolving JQL selection: %w", err)
	}
	return dedupe(keys), nil
}

// FromConfig builds the selector described by cfg. Explicit keys (e.g. from
// the command line) always select a Static selector.
func FromConfig(cfg model.SelectorConfig, explicit []string) (fieldupdate.Selector, error) {
	if len(explicit) > 0 {
		return Static{Keys: explicit}, nil
	}

	switch cfg.Type {
	case model.SelectorStatic:
		return Static{Keys: cfg.Issues}, nil
	case model.SelectorChangelog, "":
		if cfg.Pattern == "" {
			return Changelog{}, nil
		}
		pattern, err := regexp.Compile(cfg.Pattern)
		if err != nil {
			return nil, fmt.Errorf("compiling issue pattern %q: %w", cfg.Pattern, err)
		}
		return Changelog{Pattern: pattern}, nil
	case model.SelectorJQL:
		return JQL{Query: cfg.JQL, Limit: cfg.Limit}, nil
	default:
		return nil, fmt.Errorf("unknown selector type %q", cfg.Type)
	}
}

// dedupe drops empty and repeated keys, keeping first-seen order.
func dedupe(keys []string) []string {
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
