package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/arictl/internal/store"
)

// TraceOptions holds flags for the trace command.
type TraceOptions struct {
	*RootOptions
	Database   string
	Since      int64
	Key        string
	Limit      int
	Unanswered bool // only commands that never got a response
}

// TraceStats holds journal totals.
type TraceStats struct {
	Commands   int            `json:"commands"`
	Responses  int            `json:"responses"`
	Events     int            `json:"events"`
	Unanswered int            `json:"unanswered"`
	Outcomes   map[string]int `json:"outcomes"`
	LastSeq    int64          `json:"last_seq"`
}

// TraceResult holds the complete trace output.
type TraceResult struct {
	Timeline []store.Entry `json:"timeline"`
	Stats    TraceStats    `json:"stats"`
}

// NewTraceCommand creates the trace command.
func NewTraceCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &TraceOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "trace",
		Short: "Print the command journal",
		Long: `Print the journal recorded by the engine.

Commands, responses and events are merged into one timeline ordered by
the engine's logical clock, so a response or event appears exactly where
the delivery loop processed it.

The output includes:
- Timeline: journal entries, optionally filtered
- Stats: totals per kind and per response outcome

Examples:
  arictl trace --db ./arictl.db
  arictl trace --db ./arictl.db --key 0190a7c2-... --verbose
  arictl trace --db ./arictl.db --since 120 --limit 50
  arictl trace --db ./arictl.db --unanswered --format json`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTrace(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite journal (required)")
	_ = cmd.MarkFlagRequired("db")
	cmd.Flags().Int64Var(&opts.Since, "since", 0, "only entries after this sequence number")
	cmd.Flags().StringVar(&opts.Key, "key", "", "only the command and responses with this correlation key")
	cmd.Flags().IntVar(&opts.Limit, "limit", 0, "maximum number of entries (0 for all)")
	cmd.Flags().BoolVar(&opts.Unanswered, "unanswered", false, "only commands without a response")

	return cmd
}

func runTrace(opts *TraceOptions, cmd *cobra.Command) error {
	ctx := context.Background()
	formatter := newFormatter(opts.RootOptions, cmd.OutOrStdout(), cmd.ErrOrStderr())

	// store.Open creates missing databases; a trace of nothing is a typo.
	if _, err := os.Stat(opts.Database); err != nil {
		return formatter.Fail(ExitCommandError, "journal not found", err)
	}

	st, err := store.Open(opts.Database)
	if err != nil {
		return formatter.Fail(ExitCommandError, "failed to open journal", &journalError{err: err})
	}
	defer st.Close()

	var timeline []store.Entry
	if opts.Unanswered {
		timeline, err = st.Unanswered(ctx)
	} else {
		timeline, err = st.Entries(ctx, store.Filter{Since: opts.Since, Key: opts.Key, Limit: opts.Limit})
	}
	if err != nil {
		return formatter.Fail(ExitCommandError, "failed to read journal", &journalError{err: err})
	}

	sum, err := st.Summarize(ctx)
	if err != nil {
		return formatter.Fail(ExitCommandError, "failed to summarize journal", &journalError{err: err})
	}

	result := TraceResult{
		Timeline: timeline,
		Stats: TraceStats{
			Commands:   sum.Commands,
			Responses:  sum.Responses,
			Events:     sum.Events,
			Unanswered: sum.Unanswered,
			Outcomes:   sum.Outcomes,
			LastSeq:    sum.LastSeq,
		},
	}

	if opts.Format == "json" {
		return outputTraceJSON(cmd, result)
	}
	return outputTraceText(cmd.OutOrStdout(), result, opts.Verbose)
}

func outputTraceJSON(cmd *cobra.Command, result TraceResult) error {
	encoder := json.NewEncoder(cmd.OutOrStdout())
	encoder.SetIndent("", "  ")
	return encoder.Encode(CLIResponse{
		Status: "ok",
		Data:   result,
	})
}

func outputTraceText(w io.Writer, result TraceResult, verbose bool) error {
	fmt.Fprintln(w, "=== Timeline ===")
	if len(result.Timeline) == 0 {
		fmt.Fprintln(w, "  (no entries)")
	}
	for _, e := range result.Timeline {
		formatEntry(w, e, verbose)
	}
	fmt.Fprintln(w)

	fmt.Fprintln(w, "=== Stats ===")
	fmt.Fprintf(w, "  Commands:   %d\n", result.Stats.Commands)
	fmt.Fprintf(w, "  Responses:  %d\n", result.Stats.Responses)
	fmt.Fprintf(w, "  Events:     %d\n", result.Stats.Events)
	fmt.Fprintf(w, "  Unanswered: %d\n", result.Stats.Unanswered)
	if len(result.Stats.Outcomes) > 0 {
		fmt.Fprintf(w, "  Outcomes:   %s\n", formatOutcomes(result.Stats.Outcomes))
	}
	return nil
}

// formatEntry writes one timeline line, plus bodies and payloads when
// verbose.
func formatEntry(w io.Writer, e store.Entry, verbose bool) {
	switch e.Kind {
	case store.KindCommand:
		target := e.Path
		if e.Query != "" {
			target += "?" + e.Query
		}
		fmt.Fprintf(w, "  [%d] CMD  %s %s  key=%s\n", e.Seq, e.Method, target, truncateID(e.Key))

	case store.KindResponse:
		status := "-"
		if e.Status != 0 {
			status = fmt.Sprint(e.Status)
		}
		fmt.Fprintf(w, "  [%d] RESP %s %s  key=%s\n", e.Seq, status, e.Outcome, truncateID(e.Key))
		if e.Error != "" {
			fmt.Fprintf(w, "       Error: %s\n", e.Error)
		}
		if verbose && e.Body != "" {
			fmt.Fprintf(w, "       Body: %s\n", e.Body)
		}

	case store.KindEvent:
		fmt.Fprintf(w, "  [%d] EVT  %s %s/%s  handlers=%d\n", e.Seq, e.Type, e.ResourceType, e.ResourceID, e.Handlers)
		if verbose && e.Payload != "" {
			fmt.Fprintf(w, "       Payload: %s\n", e.Payload)
		}
	}
}

// formatOutcomes renders outcome counts with sorted keys.
func formatOutcomes(outcomes map[string]int) string {
	keys := make([]string, 0, len(outcomes))
	for k := range outcomes {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s=%d", k, outcomes[k]))
	}
	return strings.Join(parts, " ")
}

// truncateID truncates a long ID for display.
func truncateID(id string) string {
	if len(id) <= 16 {
		return id
	}
	return id[:8] + "..." + id[len(id)-8:]
}
