package site

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/nhle/jira-field-add/internal/fieldupdate"
	"github.com/nhle/jira-field-add/internal/model"
)

func TestResolve(t *testing.T) {
	cfg := &model.AppConfig{
		DefaultSite: "main",
		Sites: []model.SiteConfig{
			{Name: "main", BaseURL: "https://jira.example.com"},
			{Name: "mobile", BaseURL: "https://mobile.example.com", Jobs: []string{"ios-release"}},
		},
	}

	tests := []struct {
		name     string
		cfg      *model.AppConfig
		override string
		job      string
		want     string
		wantErr  bool
	}{
		{name: "job match", cfg: cfg, job: "ios-release", want: "mobile"},
		{name: "default site", cfg: cfg, job: "backend", want: "main"},
		{name: "override", cfg: cfg, override: "mobile", job: "backend", want: "mobile"},
		{name: "unknown override", cfg: cfg, override: "nope", wantErr: true},
		{name: "no sites", cfg: &model.AppConfig{}, wantErr: true},
		{name: "nil config", cfg: nil, wantErr: true},
		{
			name: "single site",
			cfg:  &model.AppConfig{Sites: []model.SiteConfig{{Name: "only"}}},
			want: "only",
		},
		{
			name:    "ambiguous",
			cfg:     &model.AppConfig{Sites: []model.SiteConfig{{Name: "a"}, {Name: "b"}}},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := NewConnector(tt.cfg, nil)
			c.Override = tt.override

			got, err := c.Resolve(fieldupdate.Run{Job: tt.job})
			if tt.wantErr {
				if !errors.Is(err, fieldupdate.ErrNoSite) {
					t.Fatalf("expected ErrNoSite, got %v (%+v)", err, got)
				}
				return
			}
			if err != nil {
				t.Fatalf("Resolve failed: %v", err)
			}
			if got.Name != tt.want {
				t.Errorf("expected site %q, got %q", tt.want, got.Name)
			}
		})
	}
}

func TestConnect(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer good" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		io.WriteString(w, `{"name":"ci","displayName":"CI","active":true}`)
	}))
	defer srv.Close()

	cfg := &model.AppConfig{Sites: []model.SiteConfig{{Name: "main", BaseURL: srv.URL}}}

	t.Run("valid token", func(t *testing.T) {
		var gotKey string
		c := NewConnector(cfg, nil).WithTokenFunc(func(key string) (string, error) {
			gotKey = key
			return "good", nil
		})

		session, err := c.Connect(context.Background(), fieldupdate.Run{})
		if err != nil {
			t.Fatalf("Connect failed: %v", err)
		}
		if session == nil {
			t.Fatal("expected a session")
		}
		if gotKey != "jira-main" {
			t.Errorf("expected token key jira-main, got %q", gotKey)
		}
	})

	t.Run("rejected token", func(t *testing.T) {
		c := NewConnector(cfg, nil).WithTokenFunc(func(string) (string, error) { return "bad", nil })

		_, err := c.Connect(context.Background(), fieldupdate.Run{})
		if !errors.Is(err, fieldupdate.ErrNoSession) {
			t.Fatalf("expected ErrNoSession, got %v", err)
		}
	})

	t.Run("missing token", func(t *testing.T) {
		c := NewConnector(cfg, nil).WithTokenFunc(func(string) (string, error) {
			return "", errors.New("not in keyring")
		})

		_, err := c.Connect(context.Background(), fieldupdate.Run{})
		if !errors.Is(err, fieldupdate.ErrNoSession) {
			t.Fatalf("expected ErrNoSession, got %v", err)
		}
	})
}
