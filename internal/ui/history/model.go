package history

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/table"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/nhle/jira-field-add/internal/keys"
	"github.com/nhle/jira-field-add/internal/store"
	"github.com/nhle/jira-field-add/internal/theme"
	"github.com/nhle/jira-field-add/internal/ui"
)

// Mode is the screen the browser currently shows.
type Mode int

const (
	ModeRuns Mode = iota
	ModeTickets
)

// resultFilters is the tab cycle; "" shows every run.
var resultFilters = []string{"", "success", "unstable", "failure"}

type runsLoadedMsg struct {
	runs []store.RunRecord
	err  error
}

type ticketsLoadedMsg struct {
	run     store.RunRecord
	tickets []store.TicketRecord
	err     error
}

// Model browses the run history stored by the add command.
type Model struct {
	store  store.Store
	keys   *keys.KeyMap
	help   help.Model
	layout ui.Layout
	limit  int

	mode    Mode
	filter  int
	runs    []store.RunRecord
	current store.RunRecord
	tickets []store.TicketRecord

	runTable    table.Model
	ticketTable table.Model

	err error
}

// New creates a history browser showing at most limit runs (0 means all).
func New(s store.Store, k *keys.KeyMap, limit int) Model {
	return Model{
		store:  s,
		keys:   k,
		help:   help.New(),
		layout: ui.NewLayout(100, 24),
		limit:  limit,
		runTable: table.New(
			table.WithColumns(runColumns(100)),
			table.WithFocused(true),
		),
		ticketTable: table.New(
			table.WithColumns(ticketColumns(100)),
			table.WithFocused(true),
		),
	}
}

// Init loads the first page of runs.
func (m Model) Init() tea.Cmd {
	return m.loadRuns()
}

// Mode returns the active screen.
func (m Model) Mode() Mode {
	return m.mode
}

// Filter returns the result the run list is filtered by ("" for none).
func (m Model) Filter() string {
	return resultFilters[m.filter]
}

// Update handles messages for the browser.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.layout = ui.NewLayout(msg.Width, msg.Height)
		m.help.Width = msg.Width
		m.resize()
		return m, nil

	case runsLoadedMsg:
		m.err = msg.err
		if msg.err == nil {
			m.runs = msg.runs
			m.runTable.SetRows(runRows(msg.runs))
			if m.runTable.Cursor() >= len(msg.runs) {
				m.runTable.SetCursor(0)
			}
		}
		return m, nil

	case ticketsLoadedMsg:
		m.err = msg.err
		if msg.err == nil {
			m.current = msg.run
			m.tickets = msg.tickets
			m.ticketTable.SetRows(ticketRows(msg.tickets))
			m.ticketTable.SetCursor(0)
			m.mode = ModeTickets
		}
		return m, nil

	case tea.KeyMsg:
		return m.handleKey(msg)
	}

	return m, nil
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Quit):
		return m, tea.Quit
	case key.Matches(msg, m.keys.Help):
		m.help.ShowAll = !m.help.ShowAll
		m.resize()
		return m, nil
	}

	if m.mode == ModeTickets {
		if key.Matches(msg, m.keys.Back) {
			m.mode = ModeRuns
			return m, nil
		}
		var cmd tea.Cmd
		m.ticketTable, cmd = m.ticketTable.Update(msg)
		return m, cmd
	}

	switch {
	case key.Matches(msg, m.keys.Select):
		if len(m.runs) == 0 {
			return m, nil
		}
		return m, m.loadTickets(m.runs[m.runTable.Cursor()])
	case key.Matches(msg, m.keys.CycleFilter):
		m.filter = (m.filter + 1) % len(resultFilters)
		return m, m.loadRuns()
	case key.Matches(msg, m.keys.Refresh):
		return m, m.loadRuns()
	}

	var cmd tea.Cmd
	m.runTable, cmd = m.runTable.Update(msg)
	return m, cmd
}

// View renders the active screen.
func (m Model) View() string {
	var title, status, content string

	switch m.mode {
	case ModeTickets:
		title = "Run " + shortID(m.current.ID)
		status = theme.ResultStyle(m.current.Result).Render(m.current.Result)
		content = m.ticketTable.View()
	default:
		title = "jira-field-add history"
		status = "filter: all"
		if f := m.Filter(); f != "" {
			status = "filter: " + f
		}
		content = m.runTable.View()
		if len(m.runs) == 0 && m.err == nil {
			content = theme.HelpStyle.Render("No runs recorded.")
		}
	}

	bar := m.statusLine()

	return m.layout.RenderWithFrame(
		m.layout.RenderHeader(title, status),
		content,
		m.layout.RenderStatusBar(bar),
		m.help.View(m.keys),
	)
}

func (m Model) statusLine() string {
	if m.err != nil {
		return "error: " + m.err.Error()
	}
	if m.mode == ModeTickets {
		r := m.current
		line := fmt.Sprintf("%s  %s += %q  updated %d  skipped %d  failed %d",
			r.Job, r.FieldID, r.Value, r.UpdatedCount, r.SkippedCount, r.FailedCount)
		if r.Error != "" {
			line += "  " + r.Error
		}
		return line
	}
	return fmt.Sprintf("%d runs", len(m.runs))
}

func (m *Model) resize() {
	helpLines := 1
	if m.help.ShowAll {
		helpLines = len(m.keys.FullHelp()[0])
	}
	m.layout.FooterHeight = 1 + helpLines

	h := m.layout.ContentHeight()
	m.runTable.SetHeight(h)
	m.runTable.SetWidth(m.layout.Width)
	m.runTable.SetColumns(runColumns(m.layout.Width))
	m.ticketTable.SetHeight(h)
	m.ticketTable.SetWidth(m.layout.Width)
	m.ticketTable.SetColumns(ticketColumns(m.layout.Width))
}

func (m Model) loadRuns() tea.Cmd {
	s := m.store
	filter := store.RunFilter{Limit: m.limit}
	if f := m.Filter(); f != "" {
		filter.Result = &f
	}
	return func() tea.Msg {
		runs, err := s.ListRuns(context.Background(), filter)
		return runsLoadedMsg{runs: runs, err: err}
	}
}

func (m Model) loadTickets(run store.RunRecord) tea.Cmd {
	s := m.store
	return func() tea.Msg {
		tickets, err := s.GetRunTickets(context.Background(), run.ID)
		return ticketsLoadedMsg{run: run, tickets: tickets, err: err}
	}
}

func runColumns(width int) []table.Column {
	fixed := 17 + 10 + 9 + 8 + 8 + 8
	job := width - fixed - 12
	if job < 10 {
		job = 10
	}
	return []table.Column{
		{Title: "Started", Width: 17},
		{Title: "Run", Width: 10},
		{Title: "Job", Width: job},
		{Title: "Result", Width: 9},
		{Title: "Updated", Width: 8},
		{Title: "Skipped", Width: 8},
		{Title: "Failed", Width: 8},
	}
}

func runRows(runs []store.RunRecord) []table.Row {
	rows := make([]table.Row, 0, len(runs))
	for _, r := range runs {
		rows = append(rows, table.Row{
			r.StartedAt.Local().Format("2006-01-02 15:04"),
			shortID(r.ID),
			r.Job,
			r.Result,
			strconv.Itoa(r.UpdatedCount),
			strconv.Itoa(r.SkippedCount),
			strconv.Itoa(r.FailedCount),
		})
	}
	return rows
}

func ticketColumns(width int) []table.Column {
	fixed := 14 + 9 + 7
	rest := width - fixed - 10
	if rest < 20 {
		rest = 20
	}
	return []table.Column{
		{Title: "Issue", Width: 14},
		{Title: "Outcome", Width: 9},
		{Title: "Status", Width: 7},
		{Title: "Values / Reason", Width: rest},
	}
}

func ticketRows(tickets []store.TicketRecord) []table.Row {
	rows := make([]table.Row, 0, len(tickets))
	for _, t := range tickets {
		status := ""
		if t.StatusCode != 0 {
			status = strconv.Itoa(t.StatusCode)
		}
		detail := strings.Join(t.Values, ", ")
		if t.Reason != "" {
			detail = t.Reason
		}
		rows = append(rows, table.Row{t.IssueKey, t.Outcome, status, detail})
	}
	return rows
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
