package jira

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"github.com/nhle/jira-field-add/internal/fieldupdate"
)

// searchPageSize is the page size used when resolving JQL selections.
const searchPageSize = 100

// Session implements fieldupdate.Session against a Jira Server/DC site.
type Session struct {
	client *Client
	log    *slog.Logger
}

// NewSession wraps a client. A nil logger discards output.
func NewSession(client *Client, logger *slog.Logger) *Session {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Session{client: client, log: logger}
}

// Myself returns the user the session is authenticated as. It doubles as a
// connectivity check.
func (s *Session) Myself(ctx context.Context) (*Myself, error) {
	var me Myself
	if err := s.client.Get(ctx, "/rest/api/2/myself", &me); err != nil {
		return nil, fmt.Errorf("validating Jira connection: %w", err)
	}
	return &me, nil
}

// GetIssue fetches an issue with all of its fields.
func (s *Session) GetIssue(
	ctx context.Context,
	key string,
) (*fieldupdate.Ticket, error) {
	path := "/rest/api/2/issue/" + url.PathEscape(key)

	var issue Issue
	if err := s.client.Get(ctx, path, &issue); err != nil {
		if isStatus(err, http.StatusNotFound) {
			return nil, fmt.Errorf(
				"fetching Jira issue %s: %w: %w",
				key, fieldupdate.ErrTicketNotFound, err,
			)
		}
		return nil, fmt.Errorf("fetching Jira issue %s: %w", key, err)
	}

	if issue.Key == "" {
		issue.Key = key
	}

	return &fieldupdate.Ticket{Key: issue.Key, Fields: issue.Fields}, nil
}

// FieldValue decodes an array field of a fetched issue into its string
// elements. Option-style elements are read through their value or name.
func (s *Session) FieldValue(
	ticket *fieldupdate.Ticket,
	fieldID string,
) ([]string, error) {
	raw, ok := ticket.Fields[fieldID]
	if !ok {
		return nil, fmt.Errorf(
			"%s on %s: %w", fieldID, ticket.Key, fieldupdate.ErrFieldNotFound,
		)
	}

	trimmed := strings.TrimSpace(string(raw))
	if trimmed == "" || trimmed == "null" {
		return nil, nil
	}

	var elements []json.RawMessage
	if err := json.Unmarshal(raw, &elements); err != nil {
		return nil, fmt.Errorf(
			"field %s on %s is not an array field: %w",
			fieldID, ticket.Key, err,
		)
	}

	values := make([]string, 0, len(elements))
	for i, elem := range elements {
		value, ok := elementString(elem)
		if !ok {
			// The update replaces the whole array, so this element is
			// removed from the issue.
			s.log.Warn("dropping non-string field element",
				"issue", ticket.Key, "field", fieldID, "index", i, "element", string(elem))
			continue
		}
		values = append(values, value)
	}

	return values, nil
}

// AddFields replaces the given fields on an issue with the supplied values.
// Jira answers 204 No Content on success.
func (s *Session) AddFields(
	ctx context.Context,
	key string,
	fields []fieldupdate.FieldValue,
) error {
	body := EditRequest{Fields: make(map[string]interface{}, len(fields))}
	for _, f := range fields {
		values := f.Values
		if values == nil {
			values = []string{}
		}
		body.Fields[f.FieldID] = values
	}

	path := "/rest/api/2/issue/" + url.PathEscape(key)
	if err := s.client.Put(ctx, path, body, nil); err != nil {
		return fmt.Errorf("updating Jira issue %s: %w", key, err)
	}
	return nil
}

// SearchIssueKeys returns the keys of every issue matching jql, following
// pagination. A positive limit caps the number of keys returned.
func (s *Session) SearchIssueKeys(
	ctx context.Context,
	jql string,
	limit int,
) ([]string, error) {
	var keys []string
	startAt := 0

	for {
		body := map[string]interface{}{
			"jql":        jql,
			"fields":     []string{"key"},
			"startAt":    startAt,
			"maxResults": searchPageSize,
		}

		var searchResp SearchResponse
		err := s.client.Post(ctx, "/rest/api/2/search", body, &searchResp)
		if err != nil {
			return nil, fmt.Errorf("searching Jira issues: %w", err)
		}

		for _, issue := range searchResp.Issues {
			keys = append(keys, issue.Key)
			if limit > 0 && len(keys) >= limit {
				return keys, nil
			}
		}

		startAt += len(searchResp.Issues)
		if len(searchResp.Issues) == 0 || startAt >= searchResp.Total {
			return keys, nil
		}
	}
}

// Fields lists the fields known to the site.
func (s *Session) Fields(ctx context.Context) ([]Field, error) {
	var fields []Field
	if err := s.client.Get(ctx, "/rest/api/2/field", &fields); err != nil {
		return nil, fmt.Errorf("listing Jira fields: %w", err)
	}
	return fields, nil
}

// FindField looks up a field by id on the site.
func (s *Session) FindField(ctx context.Context, fieldID string) (*Field, error) {
	fields, err := s.Fields(ctx)
	if err != nil {
		return nil, err
	}
	for _, f := range fields {
		if f.ID == fieldID {
			return &f, nil
		}
	}
	return nil, fmt.Errorf("%s: %w", fieldID, fieldupdate.ErrFieldNotFound)
}

// elementString reads one array element as a string.
func elementString(elem json.RawMessage) (string, bool) {
	var str string
	if json.Unmarshal(elem, &str) == nil {
		return str, true
	}

	var option struct {
		Value *string `json:"value"`
		Name  *string `json:"name"`
	}
	if json.Unmarshal(elem, &option) == nil {
		if option.Value != nil {
			return *option.Value, true
		}
		if option.Name != nil {
			return *option.Name, true
		}
	}

	return "", false
}

func isStatus(err error, status int) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.Status == status
}
