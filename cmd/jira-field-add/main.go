// Command jira-field-add appends a value to an array custom field on every
// Jira issue selected for a pipeline run.
package main

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/nhle/jira-field-add/internal/logging"
	"github.com/nhle/jira-field-add/internal/model"
)

var version = "dev"

var (
	configPath string
	logLevel   string
	cfg        *model.AppConfig
)

// exitError carries a process exit status out of a command.
type exitError struct {
	code int
	msg  string
}

func (e *exitError) Error() string {
	return e.msg
}

func main() {
	err := rootCmd.Execute()
	logging.Flush(2 * time.Second)

	if err != nil {
		var ee *exitError
		if errors.As(err, &ee) {
			os.Exit(ee.code)
		}
		fmt.Fprintf(os.Stderr, "%s ERROR %v\n", logging.DefaultPrefix, err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "jira-field-add",
	Short: "Append a value to an array custom field on Jira issues",
	Long: `jira-field-add - add a build value to a multi-value Jira field.

The add command collects the current field value of every selected issue,
merges the new value in, then submits one update per issue. Missing issues
and rejected updates are reported but never stop the run; a field that does
not exist on the site aborts it before anything is written.

Examples:
  jira-field-add configure                              # Add a Jira site
  jira-field-add add -f 10100 -v build-42 -i ABC-1      # Update one issue
  git log --format=%s | jira-field-add add -f 10100 -v build-42 --changelog-file -
  jira-field-add check-field -f 10100 --remote          # Verify the field
  jira-field-add history                                # Browse past runs`,
	Version:       version,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		loaded, err := model.LoadConfig(configPath)
		if err != nil {
			return err
		}
		cfg = loaded
		if logLevel != "" {
			cfg.Log.Level = logLevel
		}
		return nil
	},
}

// newLogger builds the console logger for a command from the loaded config.
func newLogger() *slog.Logger {
	logger, err := logging.New(os.Stderr, logging.Config{
		Level:     logging.ParseLevel(cfg.Log.Level),
		Color:     logging.IsTerminal(os.Stderr),
		SentryDSN: cfg.Log.SentryDSN,
		Env:       cfg.Log.Env,
		Version:   version,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "%s error reporting disabled: %v\n", logging.DefaultPrefix, err)
		logger, _ = logging.New(os.Stderr, logging.Config{
			Level: logging.ParseLevel(cfg.Log.Level),
			Color: logging.IsTerminal(os.Stderr),
		})
	}
	return logger
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", model.DefaultConfigPath(), "Path to the config file")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Log level: debug, info, warn, error")

	rootCmd.AddCommand(addCmd, checkFieldCmd, configureCmd, historyCmd)
}
