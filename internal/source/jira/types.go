package jira

import "encoding/json"

// SearchResponse is the response from POST /rest/api/2/search.
type SearchResponse struct {
	StartAt    int           `json:"startAt"`
	MaxResults int           `json:"maxResults"`
	Total      int           `json:"total"`
	Issues     []IssueHeader `json:"issues"`
}

// IssueHeader is the part of a search hit the selectors need.
type IssueHeader struct {
	ID  string `json:"id"`
	Key string `json:"key"`
}

// Issue represents a single Jira issue from the REST API. Fields are kept raw
// because custom field shapes differ per installation.
type Issue struct {
	ID     string                     `json:"id"`
	Key    string                     `json:"key"`
	Self   string                     `json:"self"`
	Fields map[string]json.RawMessage `json:"fields"`
}

// EditRequest is the body of PUT /rest/api/2/issue/{key}.
type EditRequest struct {
	Fields map[string]interface{} `json:"fields"`
}

// Field describes a field from GET /rest/api/2/field.
type Field struct {
	ID     string       `json:"id"`
	Key    string       `json:"key"`
	Name   string       `json:"name"`
	Custom bool         `json:"custom"`
	Schema *FieldSchema `json:"schema,omitempty"`
}

// FieldSchema is the type information attached to a field.
type FieldSchema struct {
	Type     string `json:"type"`
	Items    string `json:"items,omitempty"`
	Custom   string `json:"custom,omitempty"`
	CustomID int    `json:"customId,omitempty"`
}

// IsStringArray reports whether the field holds a list of plain strings
// (labels-style custom fields).
func (f Field) IsStringArray() bool {
	return f.Schema != nil && f.Schema.Type == "array" && f.Schema.Items == "string"
}

// Myself is the response from GET /rest/api/2/myself.
type Myself struct {
	Key          string `json:"key"`
	Name         string `json:"name"`
	DisplayName  string `json:"displayName"`
	EmailAddress string `json:"emailAddress"`
	Active       bool   `json:"active"`
}

// ErrorResponse is the standard Jira error response format.
type ErrorResponse struct {
	ErrorMessages []string          `json:"errorMessages"`
	Errors        map[string]string `json:"errors"`
}
