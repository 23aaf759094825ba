package model

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

// Selector kinds understood by the step.
const (
	SelectorStatic    = "static"
	SelectorChangelog = "changelog"
	SelectorJQL       = "jql"
)

// envPrefix namespaces environment overrides, e.g. JIRA_FIELD_ADD_STEP_VALUE.
const envPrefix = "JIRA_FIELD_ADD"

// SiteConfig holds the connection settings for one Jira site.
type SiteConfig struct {
	// Name is the unique label of the site; it also names the keyring entry.
	Name string `mapstructure:"name" yaml:"name"`

	// BaseURL is the root URL of the Jira instance.
	BaseURL string `mapstructure:"base_url" yaml:"base_url"`

	// Jobs lists the pipeline jobs this site serves. A run whose job is listed
	// here picks this site over the default.
	Jobs []string `mapstructure:"jobs" yaml:"jobs"`

	// TimeoutSec bounds each HTTP request to the site.
	TimeoutSec int `mapstructure:"timeout_sec" yaml:"timeout_sec"`

	// CredentialKey overrides the keyring key holding the token
	// (default "jira-<name>").
	CredentialKey string `mapstructure:"credential_key" yaml:"credential_key"`
}

// TokenKey returns the keyring key for the site's token.
func (s SiteConfig) TokenKey() string {
	if s.CredentialKey != "" {
		return s.CredentialKey
	}
	return "jira-" + s.Name
}

// SelectorConfig picks and parameterizes the issue selector.
type SelectorConfig struct {
	Type    string   `mapstructure:"type" yaml:"type"`
	Issues  []string `mapstructure:"issues" yaml:"issues"`
	Pattern string   `mapstructure:"pattern" yaml:"pattern"`
	JQL     string   `mapstructure:"jql" yaml:"jql"`
	Limit   int      `mapstructure:"limit" yaml:"limit"`
}

// StepConfig is the field update the step performs.
type StepConfig struct {
	FieldID  string         `mapstructure:"field_id" yaml:"field_id"`
	Value    string         `mapstructure:"value" yaml:"value"`
	Selector SelectorConfig `mapstructure:"selector" yaml:"selector"`
}

// LogConfig holds logging preferences.
type LogConfig struct {
	Level     string `mapstructure:"level" yaml:"level"`
	SentryDSN string `mapstructure:"sentry_dsn" yaml:"sentry_dsn"`
	Env       string `mapstructure:"env" yaml:"env"`
}

// AppConfig is the top-level configuration.
type AppConfig struct {
	DefaultSite string       `mapstructure:"default_site" yaml:"default_site"`
	Sites       []SiteConfig `mapstructure:"sites" yaml:"sites"`
	Step        StepConfig   `mapstructure:"step" yaml:"step"`
	Log         LogConfig    `mapstructure:"log" yaml:"log"`

	// HistoryPath is the SQLite file recording past runs. Empty disables it.
	HistoryPath string `mapstructure:"history_path" yaml:"history_path"`
}

// Site returns the site configured under name.
func (c *AppConfig) Site(name string) (SiteConfig, bool) {
	for _, s := range c.Sites {
		if s.Name == name {
			return s, true
		}
	}
	return SiteConfig{}, false
}

// configDir returns ~/.config/jira-field-add.
func configDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}
	return filepath.Join(home, ".config", "jira-field-add")
}

// DefaultConfigPath returns the default path for the configuration file,
// located at ~/.config/jira-field-add/config.yaml.
func DefaultConfigPath() string {
	return filepath.Join(configDir(), "config.yaml")
}

// DefaultHistoryPath returns the default run history database path.
func DefaultHistoryPath() string {
	return filepath.Join(configDir(), "history.db")
}

// defaultAppConfig returns a sensible default configuration.
func defaultAppConfig() *AppConfig {
	return &AppConfig{
		Sites: []SiteConfig{},
		Step: StepConfig{
			Selector: SelectorConfig{Type: SelectorChangelog},
		},
		Log: LogConfig{
			Level: "info",
			Env:   "production",
		},
		HistoryPath: DefaultHistoryPath(),
	}
}

// LoadConfig reads configuration from the given YAML file path using Viper.
// Environment variables prefixed with JIRA_FIELD_ADD_ override file values.
// If the file does not exist, defaults (plus environment) are returned.
func LoadConfig(path string) (*AppConfig, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Set defaults so missing keys resolve to sensible values and so the
	// environment overrides are visible to Unmarshal.
	v.SetDefault("default_site", "")
	v.SetDefault("step.field_id", "")
	v.SetDefault("step.value", "")
	v.SetDefault("step.selector.type", SelectorChangelog)
	v.SetDefault("step.selector.pattern", "")
	v.SetDefault("step.selector.jql", "")
	v.SetDefault("step.selector.limit", 0)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.sentry_dsn", "")
	v.SetDefault("log.env", "production")
	v.SetDefault("history_path", DefaultHistoryPath())

	if err := v.ReadInConfig(); err != nil {
		_, isPathErr := err.(*os.PathError)
		_, isNotFound := err.(viper.ConfigFileNotFoundError)
		if !isPathErr && !isNotFound {
			return nil, fmt.Errorf("reading config %s: %w", path, err)
		}
	}

	cfg := defaultAppConfig()
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("parsing config %s: %w", path, err)
	}

	// Apply defaults for each site entry.
	for i := range cfg.Sites {
		if cfg.Sites[i].TimeoutSec <= 0 {
			cfg.Sites[i].TimeoutSec = 30
		}
	}

	return cfg, nil
}

// SaveConfig writes the given configuration to a YAML file at path,
// creating parent directories if needed.
func SaveConfig(path string, cfg *AppConfig) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating config directory %s: %w", dir, err)
	}

	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")

	v.Set("default_site", cfg.DefaultSite)
	v.Set("sites", cfg.Sites)
	v.Set("step", cfg.Step)
	v.Set("log", cfg.Log)
	v.Set("history_path", cfg.HistoryPath)

	if err := v.WriteConfigAs(path); err != nil {
		return fmt.Errorf("writing config to %s: %w", path, err)
	}

	return nil
}

// UpsertSite adds site to cfg or replaces the entry with the same name.
func (c *AppConfig) UpsertSite(site SiteConfig) {
	for i := range c.Sites {
		if c.Sites[i].Name == site.Name {
			c.Sites[i] = site
			return
		}
	}
	c.Sites = append(c.Sites, site)
}
