package credential

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/99designs/keyring"
)

const serviceName = "jira-field-add"

// ErrNotFound is returned when no credential exists for a key.
var ErrNotFound = errors.New("credential not found")

// open returns the keyring used by this package. Tests replace it with an
// in-memory keyring.
var open = openKeyring

// openKeyring returns a configured keyring instance.
func openKeyring() (keyring.Keyring, error) {
	ring, err := keyring.Open(keyring.Config{
		ServiceName: serviceName,
		AllowedBackends: []keyring.BackendType{
			keyring.KeychainBackend,
			keyring.SecretServiceBackend,
			keyring.WinCredBackend,
			keyring.PassBackend,
			keyring.FileBackend,
		},
		FileDir:                  "~/.config/jira-field-add/credentials",
		FilePasswordFunc:         filePassword,
		KeychainTrustApplication: true,
	})
	if err != nil {
		return nil, fmt.Errorf("opening keyring: %w", err)
	}
	return ring, nil
}

// filePassword unlocks the file backend. Build agents set
// JIRA_FIELD_ADD_KEYRING_PASSWORD; otherwise a fixed key is used.
func filePassword(prompt string) (string, error) {
	if pw := os.Getenv("JIRA_FIELD_ADD_KEYRING_PASSWORD"); pw != "" {
		return pw, nil
	}
	return keyring.FixedStringPrompt("jira-field-add-file-key")(prompt)
}

// Get retrieves a credential value by key from the system keyring.
func Get(key string) (string, error) {
	ring, err := open()
	if err != nil {
		return "", err
	}

	item, err := ring.Get(key)
	if err != nil {
		if errors.Is(err, keyring.ErrKeyNotFound) {
			return "", fmt.Errorf("getting credential %q: %w", key, ErrNotFound)
		}
		return "", fmt.Errorf("getting credential %q: %w", key, err)
	}

	return string(item.Data), nil
}

// Set stores a credential value by key in the system keyring.
func Set(key string, value string) error {
	ring, err := open()
	if err != nil {
		return err
	}

	err = ring.Set(keyring.Item{
		Key:   key,
		Data:  []byte(value),
		Label: "Jira token (" + key + ")",
	})
	if err != nil {
		return fmt.Errorf("setting credential %q: %w", key, err)
	}

	return nil
}

// Delete removes a credential by key from the system keyring.
func Delete(key string) error {
	ring, err := open()
	if err != nil {
		return err
	}

	err = ring.Remove(key)
	if err != nil {
		return fmt.Errorf("deleting credential %q: %w", key, err)
	}

	return nil
}

// EnvName returns the environment variable that can carry the credential for
// key, e.g. "jira-prod" -> "JIRA_FIELD_ADD_TOKEN_JIRA_PROD".
func EnvName(key string) string {
	upper := strings.ToUpper(key)
	mapped := strings.Map(func(r rune) rune {
		if (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') {
			return r
		}
		return '_'
	}, upper)
	return "JIRA_FIELD_ADD_TOKEN_" + mapped
}

// Lookup resolves a credential for key. The per-key environment variable wins,
// then JIRA_TOKEN, then the system keyring.
func Lookup(key string) (string, error) {
	if v := os.Getenv(EnvName(key)); v != "" {
		return v, nil
	}
	if v := os.Getenv("JIRA_TOKEN"); v != "" {
		return v, nil
	}
	return Get(key)
}
