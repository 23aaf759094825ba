package configure

import (
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/charmbracelet/huh"

	"github.com/nhle/jira-field-add/internal/fieldupdate"
	"github.com/nhle/jira-field-add/internal/model"
)

// Values holds the answers of the site form.
type Values struct {
	Name        string
	BaseURL     string
	Token       string
	Jobs        string
	FieldID     string
	MakeDefault bool
}

// ValuesFor pre-fills the form from an existing site entry.
func ValuesFor(cfg *model.AppConfig, name string) Values {
	v := Values{Name: name, FieldID: cfg.Step.FieldID}
	if site, ok := cfg.Site(name); ok {
		v.BaseURL = site.BaseURL
		v.Jobs = strings.Join(site.Jobs, ", ")
	}
	v.MakeDefault = cfg.DefaultSite == "" || cfg.DefaultSite == name
	return v
}

// NewForm builds the interactive form that edits v. The token may be left
// blank when the named site already exists in cfg; its stored token is kept.
func NewForm(cfg *model.AppConfig, v *Values) *huh.Form {
	return huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title("Name").
				Description("A label for this Jira site").
				Placeholder("main").
				Value(&v.Name).
				Validate(validateRequired("Name")),
			huh.NewInput().
				Title("Base URL").
				Description("Jira server URL (e.g., https://jira.example.com)").
				Placeholder("https://jira.example.com").
				Value(&v.BaseURL).
				Validate(validateURL),
			huh.NewInput().
				Title("Personal Access Token").
				Description("Stored in the system keyring; leave blank to keep the current one").
				EchoMode(huh.EchoModePassword).
				Value(&v.Token).
				Validate(validateToken(cfg, &v.Name)),
		),
		huh.NewGroup(
			huh.NewInput().
				Title("Jobs").
				Description("Comma-separated pipeline jobs served by this site").
				Placeholder("backend-release, ios-release").
				Value(&v.Jobs),
			huh.NewInput().
				Title("Field ID").
				Description("Default array custom field, e.g. 10100 or customfield_10100").
				Value(&v.FieldID).
				Validate(validateFieldID),
			huh.NewConfirm().
				Title("Use as default site?").
				Value(&v.MakeDefault),
		),
	)
}

// Apply stores the token through setToken and merges the site into cfg.
// The caller persists cfg.
func Apply(cfg *model.AppConfig, v Values, setToken func(key, token string) error) (model.SiteConfig, error) {
	site, exists := cfg.Site(strings.TrimSpace(v.Name))
	site.Name = strings.TrimSpace(v.Name)
	site.BaseURL = strings.TrimRight(strings.TrimSpace(v.BaseURL), "/")
	site.Jobs = splitList(v.Jobs)
	if site.TimeoutSec <= 0 {
		site.TimeoutSec = 30
	}

	if err := validateRequired("Name")(site.Name); err != nil {
		return model.SiteConfig{}, err
	}
	if err := validateURL(site.BaseURL); err != nil {
		return model.SiteConfig{}, err
	}

	if !exists && strings.TrimSpace(v.Token) == "" {
		return model.SiteConfig{}, fmt.Errorf("token is required for new site %s", site.Name)
	}

	if v.Token != "" {
		if err := setToken(site.TokenKey(), v.Token); err != nil {
			return model.SiteConfig{}, fmt.Errorf("saving token for site %s: %w", site.Name, err)
		}
	}

	cfg.UpsertSite(site)
	if v.MakeDefault {
		cfg.DefaultSite = site.Name
	}
	if id := strings.TrimSpace(v.FieldID); id != "" {
		cfg.Step.FieldID = id
	}

	return site, nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func validateRequired(fieldName string) func(string) error {
	return func(s string) error {
		if strings.TrimSpace(s) == "" {
			return fmt.Errorf("%s is required", fieldName)
		}
		return nil
	}
}

// validateToken requires a token unless the site named by *name is already
// configured.
func validateToken(cfg *model.AppConfig, name *string) func(string) error {
	required := validateRequired("Token")
	return func(s string) error {
		if _, ok := cfg.Site(strings.TrimSpace(*name)); ok {
			return nil
		}
		return required(s)
	}
}

func validateURL(s string) error {
	if strings.TrimSpace(s) == "" {
		return fmt.Errorf("URL is required")
	}
	parsed, err := url.Parse(strings.TrimSpace(s))
	if err != nil {
		return fmt.Errorf("invalid URL: %w", err)
	}
	if parsed.Scheme == "" || parsed.Host == "" {
		return fmt.Errorf("URL must include scheme and host (e.g., https://example.com)")
	}
	return nil
}

// validateFieldID accepts an empty answer; anything else must be a
// numeric custom field id.
func validateFieldID(s string) error {
	if strings.TrimSpace(s) == "" {
		return nil
	}
	if sev, msg := fieldupdate.ValidateFieldID(s); sev == fieldupdate.SeverityError {
		return errors.New(msg)
	}
	return nil
}
