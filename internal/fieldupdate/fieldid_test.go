package fieldupdate

import "testing"

func TestNormalizeFieldID(t *testing.T) {
	tests := []struct {
		raw  string
		want string
	}{
		{"100", "customfield_100"},
		{"customfield_100", "customfield_100"},
		{"", "customfield_"},
		{"abc", "customfield_abc"},
		{"Customfield_1", "customfield_Customfield_1"},
	}

	for _, tt := range tests {
		if got := NormalizeFieldID(tt.raw); got != tt.want {
			t.Errorf("NormalizeFieldID(%q) = %q, want %q", tt.raw, got, tt.want)
		}
	}
}

func TestNormalizeFieldIDIdempotent(t *testing.T) {
	for _, raw := range []string{"", "1", "10100", "customfield_5", "x y", "customfield_"} {
		once := NormalizeFieldID(raw)
		if twice := NormalizeFieldID(once); twice != once {
			t.Errorf("NormalizeFieldID not idempotent for %q: %q then %q", raw, once, twice)
		}
	}
}

func TestValidateFieldID(t *testing.T) {
	tests := []struct {
		raw  string
		want Severity
	}{
		{"", SeverityWarning},
		{"   ", SeverityWarning},
		{"10100", SeverityOK},
		{" 10100 ", SeverityOK},
		{"customfield_10100", SeverityOK},
		{"customfield_", SeverityError},
		{"10a", SeverityError},
		{"labels", SeverityError},
		{"-1", SeverityError},
	}

	for _, tt := range tests {
		got, msg := ValidateFieldID(tt.raw)
		if got != tt.want {
			t.Errorf("ValidateFieldID(%q) = %s (%q), want %s", tt.raw, got, msg, tt.want)
		}
		if got != SeverityOK && msg == "" {
			t.Errorf("ValidateFieldID(%q) returned %s without a message", tt.raw, got)
		}
	}
}
