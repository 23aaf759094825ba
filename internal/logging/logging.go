// Package logging renders step output as prefixed build-console lines and
// optionally forwards errors to Sentry.
package logging

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/getsentry/sentry-go"
	"golang.org/x/term"

	"github.com/nhle/jira-field-add/internal/theme"
)

// DefaultPrefix starts every console line.
const DefaultPrefix = "[JIRA][array-field-add]"

// Config holds logging configuration.
type Config struct {
	Level     slog.Level
	Prefix    string
	Color     bool
	SentryDSN string
	Env       string // "development", "production"
	Version   string
}

var sentryEnabled bool

// New builds a logger writing to w. When a Sentry DSN is configured,
// error-level records are forwarded as well.
func New(w io.Writer, cfg Config) (*slog.Logger, error) {
	if cfg.Prefix == "" {
		cfg.Prefix = DefaultPrefix
	}

	var handler slog.Handler = newConsoleHandler(w, cfg)

	if cfg.SentryDSN != "" {
		err := sentry.Init(sentry.ClientOptions{
			Dsn:         cfg.SentryDSN,
			Environment: cfg.Env,
			Release:     cfg.Version,
		})
		if err != nil {
			return nil, fmt.Errorf("sentry init: %w", err)
		}
		sentryEnabled = true
		handler = &sentryHandler{Handler: handler}
	}

	return slog.New(handler), nil
}

// Flush delivers buffered Sentry events. Call before exiting.
func Flush(timeout time.Duration) {
	if sentryEnabled {
		sentry.Flush(timeout)
	}
}

// ParseLevel maps a config string to a level, defaulting to info.
func ParseLevel(s string) slog.Level {
	var level slog.Level
	if err := level.UnmarshalText([]byte(strings.TrimSpace(s))); err != nil {
		return slog.LevelInfo
	}
	return level
}

// IsTerminal reports whether f is attached to a terminal and NO_COLOR is unset.
func IsTerminal(f *os.File) bool {
	return term.IsTerminal(int(f.Fd())) && os.Getenv("NO_COLOR") == ""
}

// consoleHandler writes one human-readable line per record:
//
//	[JIRA][array-field-add] WARN issue not found issue=ABC-1
type consoleHandler struct {
	mu     *sync.Mutex
	w      io.Writer
	cfg    Config
	attrs  []slog.Attr
	groups []string
}

func newConsoleHandler(w io.Writer, cfg Config) *consoleHandler {
	return &consoleHandler{mu: &sync.Mutex{}, w: w, cfg: cfg}
}

func (h *consoleHandler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= h.cfg.Level
}

func (h *consoleHandler) Handle(_ context.Context, r slog.Record) error {
	var b strings.Builder

	b.WriteString(h.cfg.Prefix)
	b.WriteByte(' ')
	b.WriteString(h.level(r.Level))
	b.WriteByte(' ')
	b.WriteString(r.Message)

	for _, a := range h.attrs {
		writeAttr(&b, h.groups, a)
	}
	r.Attrs(func(a slog.Attr) bool {
		writeAttr(&b, h.groups, a)
		return true
	})
	b.WriteByte('\n')

	h.mu.Lock()
	defer h.mu.Unlock()
	_, err := io.WriteString(h.w, b.String())
	return err
}

func (h *consoleHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	clone := *h
	clone.attrs = append(append([]slog.Attr{}, h.attrs...), attrs...)
	return &clone
}

func (h *consoleHandler) WithGroup(name string) slog.Handler {
	if name == "" {
		return h
	}
	clone := *h
	clone.groups = append(append([]string{}, h.groups...), name)
	return &clone
}

func (h *consoleHandler) level(level slog.Level) string {
	label := level.String()
	if !h.cfg.Color {
		return label
	}

	var style lipgloss.Style
	switch {
	case level >= slog.LevelError:
		style = lipgloss.NewStyle().Bold(true).Foreground(theme.ColorRed)
	case level >= slog.LevelWarn:
		style = lipgloss.NewStyle().Bold(true).Foreground(theme.ColorYellow)
	case level >= slog.LevelInfo:
		style = lipgloss.NewStyle().Foreground(theme.ColorBlue)
	default:
		style = lipgloss.NewStyle().Foreground(theme.ColorGray)
	}
	return style.Render(label)
}

func writeAttr(b *strings.Builder, groups []string, a slog.Attr) {
	a.Value = a.Value.Resolve()
	if a.Equal(slog.Attr{}) {
		return
	}

	key := a.Key
	if len(groups) > 0 {
		key = strings.Join(groups, ".") + "." + key
	}

	if a.Value.Kind() == slog.KindGroup {
		for _, ga := range a.Value.Group() {
			writeAttr(b, append(groups, a.Key), ga)
		}
		return
	}

	value := a.Value.String()
	if value == "" || strings.ContainsAny(value, " \t\"=") {
		value = fmt.Sprintf("%q", value)
	}

	b.WriteByte(' ')
	b.WriteString(key)
	b.WriteByte('=')
	b.WriteString(value)
}

// sentryHandler wraps an slog.Handler and sends errors to Sentry.
type sentryHandler struct {
	slog.Handler
}

func (h *sentryHandler) Handle(ctx context.Context, r slog.Record) error {
	if err := h.Handler.Handle(ctx, r); err != nil {
		return err
	}

	if r.Level >= slog.LevelError {
		event := sentry.NewEvent()
		event.Level = sentry.LevelError
		event.Message = r.Message
		event.Timestamp = r.Time
		r.Attrs(func(a slog.Attr) bool {
			event.Extra[a.Key] = a.Value.String()
			return true
		})
		sentry.CaptureEvent(event)
	}

	return nil
}

func (h *sentryHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &sentryHandler{Handler: h.Handler.WithAttrs(attrs)}
}

func (h *sentryHandler) WithGroup(name string) slog.Handler {
	return &sentryHandler{Handler: h.Handler.WithGroup(name)}
}
