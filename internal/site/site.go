// Package site resolves the Jira site a run talks to and opens sessions to it.
package site

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"time"

	"github.com/nhle/jira-field-add/internal/credential"
	"github.com/nhle/jira-field-add/internal/fieldupdate"
	"github.com/nhle/jira-field-add/internal/model"
	"github.com/nhle/jira-field-add/internal/source/jira"
)

// TokenFunc returns the API token stored under key.
type TokenFunc func(key string) (string, error)

// Connector implements fieldupdate.Connector from the application config.
type Connector struct {
	cfg   *model.AppConfig
	token TokenFunc
	log   *slog.Logger

	// Override forces a site by name, ignoring job matching.
	Override string
}

// NewConnector creates a Connector that loads tokens with credential.Lookup.
func NewConnector(cfg *model.AppConfig, logger *slog.Logger) *Connector {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Connector{cfg: cfg, token: credential.Lookup, log: logger}
}

// WithTokenFunc replaces the token source.
func (c *Connector) WithTokenFunc(fn TokenFunc) *Connector {
	c.token = fn
	return c
}

// Resolve picks the site for run: an explicit override, then the first site
// listing the run's job, then the configured default, then the only site.
func (c *Connector) Resolve(run fieldupdate.Run) (model.SiteConfig, error) {
	if c.cfg == nil || len(c.cfg.Sites) == 0 {
		return model.SiteConfig{}, fieldupdate.ErrNoSite
	}

	if c.Override != "" {
		s, ok := c.cfg.Site(c.Override)
		if !ok {
			return model.SiteConfig{}, fmt.Errorf("site %q: %w", c.Override, fieldupdate.ErrNoSite)
		}
		return s, nil
	}

	if run.Job != "" {
		for _, s := range c.cfg.Sites {
			if slices.Contains(s.Jobs, run.Job) {
				return s, nil
			}
		}
	}

	if c.cfg.DefaultSite != "" {
		s, ok := c.cfg.Site(c.cfg.DefaultSite)
		if !ok {
			return model.SiteConfig{}, fmt.Errorf(
				"default site %q: %w", c.cfg.DefaultSite, fieldupdate.ErrNoSite,
			)
		}
		return s, nil
	}

	if len(c.cfg.Sites) == 1 {
		return c.cfg.Sites[0], nil
	}

	return model.SiteConfig{}, fmt.Errorf(
		"%d sites configured and none selected for job %q: %w",
		len(c.cfg.Sites), run.Job, fieldupdate.ErrNoSite,
	)
}

// Open builds a session for site and checks that it can authenticate.
func (c *Connector) Open(ctx context.Context, s model.SiteConfig) (*jira.Session, error) {
	if s.BaseURL == "" {
		return nil, fmt.Errorf("site %q has no base_url: %w", s.Name, fieldupdate.ErrNoSession)
	}

	token, err := c.token(s.TokenKey())
	if err != nil {
		return nil, fmt.Errorf("loading token for site %q: %w: %w", s.Name, fieldupdate.ErrNoSession, err)
	}

	timeout := time.Duration(s.TimeoutSec) * time.Second
	session := jira.NewSession(jira.NewClient(s.BaseURL, token, timeout), c.log)

	me, err := session.Myself(ctx)
	if err != nil {
		return nil, fmt.Errorf("site %q: %w: %w", s.Name, fieldupdate.ErrNoSession, err)
	}
	c.log.Debug("connected to jira", "site", s.Name, "user", me.Name)

	return session, nil
}

// Connect resolves the site for run and opens a session to it.
func (c *Connector) Connect(ctx context.Context, run fieldupdate.Run) (fieldupdate.Session, error) {
	s, err := c.Resolve(run)
	if err != nil {
		return nil, err
	}
	session, err := c.Open(ctx, s)
	if err != nil {
		return nil, err
	}
	return session, nil
}
