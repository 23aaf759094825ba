package configure

import (
	"errors"
	"slices"
	"testing"

	"github.com/nhle/jira-field-add/internal/model"
)

func TestApplyNewSite(t *testing.T) {
	cfg := &model.AppConfig{}
	stored := map[string]string{}
	setToken := func(key, token string) error {
		stored[key] = token
		return nil
	}

	site, err := Apply(cfg, Values{
		Name:        " main ",
		BaseURL:     "https://jira.example.com/",
		Token:       "pat",
		Jobs:        "backend, ios-release,,",
		FieldID:     "10100",
		MakeDefault: true,
	}, setToken)
	if err != nil {
		t.Fatalf("Apply failed: %v", err)
	}

	if site.Name != "main" || site.BaseURL != "https://jira.example.com" {
		t.Errorf("unexpected site %+v", site)
	}
	if !slices.Equal(site.Jobs, []string{"backend", "ios-release"}) {
		t.Errorf("unexpected jobs %v", site.Jobs)
	}
	if stored["jira-main"] != "pat" {
		t.Errorf("expected token stored under jira-main, got %v", stored)
	}
	if cfg.DefaultSite != "main" || cfg.Step.FieldID != "10100" || len(cfg.Sites) != 1 {
		t.Errorf("unexpected config %+v", cfg)
	}
}

func TestApplyKeepsTokenWhenBlank(t *testing.T) {
	cfg := &model.AppConfig{
		DefaultSite: "main",
		Sites:       []model.SiteConfig{{Name: "main", BaseURL: "https://old.example.com", TimeoutSec: 60}},
	}
	called := false

	site, err := Apply(cfg, Values{Name: "main", BaseURL: "https://new.example.com"}, func(string, string) error {
		called = true
		return nil
	})
	if err != nil {
		t.Fatalf("Apply failed: %v", err)
	}
	if called {
		t.Error("expected the keyring to be left alone")
	}
	if site.TimeoutSec != 60 || cfg.Sites[0].BaseURL != "https://new.example.com" {
		t.Errorf("unexpected site %+v", cfg.Sites[0])
	}
	if cfg.DefaultSite != "main" {
		t.Errorf("default site changed to %q", cfg.DefaultSite)
	}
}

func TestApplyErrors(t *testing.T) {
	ok := func(string, string) error { return nil }

	if _, err := Apply(&model.AppConfig{}, Values{Name: "x", BaseURL: "jira.example.com"}, ok); err == nil {
		t.Error("expected an error for a URL without scheme")
	}

	boom := errors.New("keyring locked")
	_, err := Apply(&model.AppConfig{}, Values{Name: "x", BaseURL: "https://j.example.com", Token: "t"},
		func(string, string) error { return boom })
	if !errors.Is(err, boom) {
		t.Errorf("expected keyring error, got %v", err)
	}
}

func TestValidateFieldID(t *testing.T) {
	for _, in := range []string{"", "10100", "customfield_10100"} {
		if err := validateFieldID(in); err != nil {
			t.Errorf("validateFieldID(%q) = %v", in, err)
		}
	}
	if err := validateFieldID("abc"); err == nil {
		t.Error("expected error for non-numeric id")
	}
}

func TestValuesFor(t *testing.T) {
	cfg := &model.AppConfig{
		DefaultSite: "other",
		Sites:       []model.SiteConfig{{Name: "main", BaseURL: "https://j", Jobs: []string{"a", "b"}}},
	}
	v := ValuesFor(cfg, "main")
	if v.BaseURL != "https://j" || v.Jobs != "a, b" || v.MakeDefault {
		t.Errorf("unexpected values %+v", v)
	}
}

func TestTokenOptionalForExistingSite(t *testing.T) {
	cfg := &model.AppConfig{Sites: []model.SiteConfig{{Name: "main", BaseURL: "https://j.example.com"}}}
	name := "main"
	validate := validateToken(cfg, &name)

	if err := validate(""); err != nil {
		t.Errorf("expected blank token to be accepted for an existing site, got %v", err)
	}

	name = "new"
	if err := validate(""); err == nil {
		t.Error("expected blank token to be rejected for a new site")
	}
	if err := validate("pat"); err != nil {
		t.Errorf("expected token to be accepted, got %v", err)
	}
}

func TestApplyNewSiteRequiresToken(t *testing.T) {
	cfg := &model.AppConfig{}
	_, err := Apply(cfg, Values{Name: "new", BaseURL: "https://j.example.com"}, func(string, string) error {
		t.Fatal("keyring must not be touched")
		return nil
	})
	if err == nil {
		t.Fatal("expected an error for a new site without token")
	}
	if len(cfg.Sites) != 0 {
		t.Errorf("expected config untouched, got %+v", cfg.Sites)
	}
}
