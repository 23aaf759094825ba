package fieldupdate

import (
	"regexp"
	"strings"
)

// CustomFieldPrefix is the prefix Jira requires on custom field references.
const CustomFieldPrefix = "customfield_"

// NormalizeFieldID turns a bare numeric field identifier into the canonical
// custom field id. Ids that already carry the prefix are returned unchanged.
func NormalizeFieldID(raw string) string {
	if strings.HasPrefix(raw, CustomFieldPrefix) {
		return raw
	}
	return CustomFieldPrefix + raw
}

// Severity grades the outcome of a pre-flight field id check.
type Severity int

const (
	SeverityOK Severity = iota
	SeverityWarning
	SeverityError
)

func (s Severity) String() string {
	switch s {
	case SeverityOK:
		return "ok"
	case SeverityWarning:
		return "warning"
	case SeverityError:
		return "error"
	default:
		return "unknown"
	}
}

var numericFieldID = regexp.MustCompile(`^\d+$`)

// ValidateFieldID checks a configured field id before any run starts.
// An empty id is only a warning; anything that is not a number (optionally
// already prefixed) is an error.
func ValidateFieldID(raw string) (Severity, string) {
	value := strings.TrimSpace(raw)
	if value == "" {
		return SeverityWarning, "no issue field id configured"
	}

	if !numericFieldID.MatchString(strings.TrimPrefix(value, CustomFieldPrefix)) {
		return SeverityError, "field id must be numeric, e.g. 10100"
	}

	return SeverityOK, ""
}
