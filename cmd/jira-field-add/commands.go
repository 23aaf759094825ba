package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/nhle/jira-field-add/internal/credential"
	"github.com/nhle/jira-field-add/internal/fieldupdate"
	"github.com/nhle/jira-field-add/internal/keys"
	"github.com/nhle/jira-field-add/internal/model"
	"github.com/nhle/jira-field-add/internal/selector"
	"github.com/nhle/jira-field-add/internal/site"
	"github.com/nhle/jira-field-add/internal/store"
	"github.com/nhle/jira-field-add/internal/ui/configure"
	"github.com/nhle/jira-field-add/internal/ui/history"
)

// Add command

var addCmd = &cobra.Command{
	Use:   "add",
	Short: "Add a value to the array field of the selected issues",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runAdd(cmd)
	},
}

func runAdd(cmd *cobra.Command) error {
	flags := cmd.Flags()
	step := cfg.Step

	if flags.Changed("field") {
		step.FieldID, _ = flags.GetString("field")
	}
	if flags.Changed("value") {
		step.Value, _ = flags.GetString("value")
	}
	if flags.Changed("selector") {
		step.Selector.Type, _ = flags.GetString("selector")
	}
	if flags.Changed("jql") {
		step.Selector.JQL, _ = flags.GetString("jql")
		if !flags.Changed("selector") {
			step.Selector.Type = model.SelectorJQL
		}
	}
	if flags.Changed("pattern") {
		step.Selector.Pattern, _ = flags.GetString("pattern")
	}
	if flags.Changed("limit") {
		step.Selector.Limit, _ = flags.GetInt("limit")
	}

	issues, _ := flags.GetStringSlice("issue")
	changelog, _ := flags.GetString("changelog-file")
	job, _ := flags.GetString("job")
	runID, _ := flags.GetString("run-id")
	siteName, _ := flags.GetString("site")
	historyPath, _ := flags.GetString("history")
	noHistory, _ := flags.GetBool("no-history")
	strict, _ := flags.GetBool("strict")

	if !flags.Changed("history") {
		historyPath = cfg.HistoryPath
	}
	if noHistory {
		historyPath = ""
	}

	logger := newLogger()

	switch sev, msg := fieldupdate.ValidateFieldID(step.FieldID); sev {
	case fieldupdate.SeverityError:
		logger.Error(msg, "field", step.FieldID)
		return &exitError{code: 1, msg: msg}
	case fieldupdate.SeverityWarning:
		logger.Warn(msg)
	}

	var changes []string
	if changelog != "" {
		var err error
		changes, err = readChanges(changelog, cmd.InOrStdin())
		if err != nil {
			return err
		}
	}

	sel, err := selector.FromConfig(step.Selector, issues)
	if err != nil {
		logger.Error("invalid issue selector", "error", err)
		return &exitError{code: 1, msg: err.Error()}
	}

	connector := site.NewConnector(cfg, logger)
	connector.Override = siteName

	updater := fieldupdate.New(fieldupdate.Config{
		Selector:   sel,
		FieldID:    step.FieldID,
		ValueToAdd: step.Value,
	}, connector, logger)

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	report := updater.Run(ctx, fieldupdate.Run{ID: runID, Job: job, Changes: changes})

	if historyPath != "" {
		saveHistory(historyPath, report, logger)
	}

	fmt.Fprintln(cmd.OutOrStdout(), renderSummary(report))

	if code := exitCode(report.Result, strict); code != 0 {
		return &exitError{code: code, msg: "run finished " + string(report.Result)}
	}
	return nil
}

// readChanges reads one change message per non-empty line from path, or
// from stdin when path is "-".
func readChanges(path string, stdin io.Reader) ([]string, error) {
	r := stdin
	if path != "-" {
		f, err := os.Open(path)
		if err != nil {
			return nil, fmt.Errorf("opening changelog: %w", err)
		}
		defer f.Close()
		r = f
	}

	var changes []string
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		if line := strings.TrimSpace(scanner.Text()); line != "" {
			changes = append(changes, line)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("reading changelog: %w", err)
	}
	return changes, nil
}

// saveHistory records the report. Failing to record never changes the
// outcome of the run.
func saveHistory(path string, report *fieldupdate.Report, logger *slog.Logger) {
	s, err := store.NewSQLiteStore(path)
	if err != nil {
		logger.Warn("run history unavailable", "path", path, "error", err)
		return
	}
	defer s.Close()

	if err := s.SaveReport(context.Background(), report); err != nil {
		logger.Warn("could not record run", "run", report.RunID, "error", err)
	}
}

// exitCode maps a run result to the process exit status. Unstable runs only
// fail the step when strict is set.
func exitCode(result fieldupdate.Result, strict bool) int {
	switch result {
	case fieldupdate.ResultFailure:
		return 1
	case fieldupdate.ResultUnstable:
		if strict {
			return 2
		}
	}
	return 0
}

// Check-field command

var checkFieldCmd = &cobra.Command{
	Use:   "check-field",
	Short: "Validate the configured field id",
	RunE: func(cmd *cobra.Command, args []string) error {
		field := cfg.Step.FieldID
		if cmd.Flags().Changed("field") {
			field, _ = cmd.Flags().GetString("field")
		}
		remote, _ := cmd.Flags().GetBool("remote")
		siteName, _ := cmd.Flags().GetString("site")
		job, _ := cmd.Flags().GetString("job")

		out := cmd.OutOrStdout()
		sev, msg := fieldupdate.ValidateFieldID(field)
		fmt.Fprintln(out, renderCheck(sev, msg, fieldupdate.NormalizeFieldID(strings.TrimSpace(field))))
		if sev == fieldupdate.SeverityError {
			return &exitError{code: 1, msg: msg}
		}
		if !remote || sev == fieldupdate.SeverityWarning {
			return nil
		}

		return checkRemoteField(cmd.Context(), out, siteName, job, field)
	},
}

func checkRemoteField(ctx context.Context, out io.Writer, siteName, job, field string) error {
	logger := newLogger()
	connector := site.NewConnector(cfg, logger)
	connector.Override = siteName

	target, err := connector.Resolve(fieldupdate.Run{Job: job})
	if err != nil {
		return &exitError{code: 1, msg: err.Error()}
	}
	session, err := connector.Open(ctx, target)
	if err != nil {
		return &exitError{code: 1, msg: err.Error()}
	}

	id := fieldupdate.NormalizeFieldID(strings.TrimSpace(field))
	f, err := session.FindField(ctx, id)
	if err != nil {
		fmt.Fprintln(out, renderCheck(fieldupdate.SeverityError, "field not found on "+target.Name, id))
		return &exitError{code: 1, msg: err.Error()}
	}

	if !f.IsStringArray() {
		fmt.Fprintln(out, renderCheck(fieldupdate.SeverityWarning, fmt.Sprintf("%q is not a list of strings", f.Name), id))
		return nil
	}
	fmt.Fprintln(out, renderCheck(fieldupdate.SeverityOK, fmt.Sprintf("%q on %s", f.Name, target.Name), id))
	return nil
}

// Configure command

var configureCmd = &cobra.Command{
	Use:   "configure [site]",
	Short: "Add or edit a Jira site interactively",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		name := cfg.DefaultSite
		if len(args) == 1 {
			name = args[0]
		}

		values := configure.ValuesFor(cfg, name)
		if err := configure.NewForm(cfg, &values).Run(); err != nil {
			return fmt.Errorf("site form: %w", err)
		}

		saved, err := configure.Apply(cfg, values, credential.Set)
		if err != nil {
			return err
		}
		if err := model.SaveConfig(configPath, cfg); err != nil {
			return err
		}

		fmt.Fprintf(cmd.OutOrStdout(), "Saved site %s (%s) to %s\n", saved.Name, saved.BaseURL, configPath)
		return nil
	},
}

// History command

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Browse or prune recorded runs",
	RunE: func(cmd *cobra.Command, args []string) error {
		path := cfg.HistoryPath
		if cmd.Flags().Changed("history") {
			path, _ = cmd.Flags().GetString("history")
		}
		if path == "" {
			return fmt.Errorf("run history is disabled (history_path is empty)")
		}

		s, err := store.NewSQLiteStore(path)
		if err != nil {
			return err
		}
		defer s.Close()

		if cmd.Flags().Changed("prune") {
			keep, _ := cmd.Flags().GetInt("prune")
			removed, err := s.PruneRuns(cmd.Context(), keep)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Removed %d runs, kept the newest %d\n", removed, keep)
			return nil
		}

		limit, _ := cmd.Flags().GetInt("limit")
		p := tea.NewProgram(history.New(s, keys.DefaultKeyMap(), limit), tea.WithAltScreen())
		_, err = p.Run()
		return err
	},
}

func init() {
	addCmd.Flags().StringP("field", "f", "", "Custom field id (10100 or customfield_10100)")
	addCmd.Flags().StringP("value", "v", "", "Value to add to the field")
	addCmd.Flags().StringSliceP("issue", "i", nil, "Issue key to update (repeatable); overrides the selector")
	addCmd.Flags().String("selector", "", "Issue selector: static, changelog, jql")
	addCmd.Flags().String("jql", "", "JQL query selecting the issues")
	addCmd.Flags().String("pattern", "", "Regexp whose first group captures issue keys in change messages")
	addCmd.Flags().Int("limit", 0, "Maximum number of issues a JQL query may select")
	addCmd.Flags().String("changelog-file", "", "File with one change message per line (- for stdin)")
	addCmd.Flags().String("job", os.Getenv("JOB_NAME"), "Pipeline job name, used to pick the site")
	addCmd.Flags().String("run-id", os.Getenv("BUILD_TAG"), "Run identifier recorded in history")
	addCmd.Flags().String("site", "", "Configured site to use, bypassing job matching")
	addCmd.Flags().String("history", "", "Run history database (default from config)")
	addCmd.Flags().Bool("no-history", false, "Do not record this run")
	addCmd.Flags().Bool("strict", false, "Exit 2 when some issues were skipped or failed")

	checkFieldCmd.Flags().StringP("field", "f", "", "Custom field id to check (default from config)")
	checkFieldCmd.Flags().Bool("remote", false, "Also look the field up on the Jira site")
	checkFieldCmd.Flags().String("site", "", "Configured site to check against")
	checkFieldCmd.Flags().String("job", os.Getenv("JOB_NAME"), "Pipeline job name, used to pick the site")

	historyCmd.Flags().String("history", "", "Run history database (default from config)")
	historyCmd.Flags().Int("limit", 200, "Maximum number of runs to show (0 for all)")
	historyCmd.Flags().Int("prune", 0, "Delete all but the newest N runs and exit")
}
