package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/roach88/arictl/internal/config"
)

// ValidateOptions holds flags for the validate command.
type ValidateOptions struct {
	*RootOptions
	ConfigPath string
}

// ValidationResult holds validation results.
type ValidationResult struct {
	Valid     bool             `json:"valid"`
	Errors    []string         `json:"errors,omitempty"`
	Effective *EffectiveConfig `json:"config,omitempty"`
}

// EffectiveConfig is the validated configuration with defaults applied and
// the password withheld.
type EffectiveConfig struct {
	URL            string `json:"url"`
	Events         string `json:"events"`
	Application    string `json:"application"`
	Username       string `json:"username,omitempty"`
	CommandTimeout string `json:"command_timeout"`
	Journal        string `json:"journal,omitempty"`
	MetricsAddr    string `json:"metrics_addr,omitempty"`
	LogLevel       string `json:"log_level"`
	Reconnect      string `json:"reconnect"`
}

// NewValidateCommand creates the validate command.
func NewValidateCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ValidateOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Validate a config file",
		Long: `Validate a config file against the schema without connecting.

Environment overrides (ARICTL_URL, ARICTL_USERNAME, ARICTL_PASSWORD,
ARICTL_APP) are applied first, so the result is the configuration run
and bridge would use.`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true, // Don't print usage on errors
		SilenceErrors: true, // We handle our own error output
		RunE: func(cmd *cobra.Command, args []string) error {
			return runValidate(opts, cmd)
		},
	}

	cmd.Flags().StringVarP(&opts.ConfigPath, "config", "c", "arictl.yaml", "path to config file")

	return cmd
}

func runValidate(opts *ValidateOptions, cmd *cobra.Command) error {
	formatter := newFormatter(opts.RootOptions, cmd.OutOrStdout(), cmd.ErrOrStderr())
	formatter.VerboseLog("Validating %s", opts.ConfigPath)

	cfg, err := config.Load(opts.ConfigPath)
	if err != nil {
		var cfgErr *config.Error
		switch {
		case errors.As(err, &cfgErr):
			return outputValidationErrors(formatter, cfgErr.Messages)
		case errors.Is(err, os.ErrNotExist):
			return formatter.Fail(ExitCommandError, "failed to load config", err)
		default:
			return outputValidationErrors(formatter, []string{err.Error()})
		}
	}

	effective, err := effectiveConfig(cfg)
	if err != nil {
		return outputValidationErrors(formatter, []string{err.Error()})
	}

	if formatter.Format == "json" {
		return formatter.Success(ValidationResult{Valid: true, Effective: effective})
	}

	w := formatter.Writer
	fmt.Fprintln(w, "✓ Config valid")
	if formatter.Verbose {
		printEffectiveConfig(w, effective)
	}
	return nil
}

func effectiveConfig(cfg *config.Config) (*EffectiveConfig, error) {
	events, err := cfg.EventsURL()
	if err != nil {
		return nil, err
	}
	return &EffectiveConfig{
		URL:            cfg.URL,
		Events:         events,
		Application:    cfg.Application,
		Username:       cfg.Username,
		CommandTimeout: cfg.CommandTimeout.String(),
		Journal:        cfg.Journal,
		MetricsAddr:    cfg.MetricsAddr,
		LogLevel:       cfg.LogLevel.String(),
		Reconnect: fmt.Sprintf("%s..%s x%g",
			cfg.Reconnect.Initial, cfg.Reconnect.Max, cfg.Reconnect.Multiplier),
	}, nil
}

func printEffectiveConfig(w io.Writer, c *EffectiveConfig) {
	fmt.Fprintf(w, "  url:             %s\n", c.URL)
	fmt.Fprintf(w, "  events:          %s\n", c.Events)
	fmt.Fprintf(w, "  application:     %s\n", c.Application)
	if c.Username != "" {
		fmt.Fprintf(w, "  username:        %s\n", c.Username)
	}
	fmt.Fprintf(w, "  command_timeout: %s\n", c.CommandTimeout)
	if c.Journal != "" {
		fmt.Fprintf(w, "  journal:         %s\n", c.Journal)
	}
	if c.MetricsAddr != "" {
		fmt.Fprintf(w, "  metrics_addr:    %s\n", c.MetricsAddr)
	}
	fmt.Fprintf(w, "  log_level:       %s\n", c.LogLevel)
	fmt.Fprintf(w, "  reconnect:       %s\n", c.Reconnect)
}

// outputValidationErrors reports schema violations. Validation failures
// exit with ExitFailure.
func outputValidationErrors(formatter *OutputFormatter, errs []string) error {
	if formatter.Format == "json" {
		response := CLIResponse{
			Status: "error",
			Data:   ValidationResult{Valid: false, Errors: errs},
			Error: &CLIError{
				Code:    ErrCodeConfig,
				Message: errs[0],
			},
		}

		encoder := json.NewEncoder(formatter.Writer)
		encoder.SetIndent("", "  ")
		if err := encoder.Encode(response); err != nil {
			return err
		}
		return NewExitError(ExitFailure, fmt.Sprintf("validation failed with %d error(s)", len(errs)))
	}

	fmt.Fprintln(formatter.Writer, "✗ Validation failed")
	fmt.Fprintln(formatter.Writer)
	for _, e := range errs {
		fmt.Fprintf(formatter.Writer, "  %s: %s\n", ErrCodeConfig, e)
	}

	return NewExitError(ExitFailure, fmt.Sprintf("validation failed with %d error(s)", len(errs)))
}
