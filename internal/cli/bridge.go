package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/roach88/arictl/internal/config"
	"github.com/roach88/arictl/internal/deferred"
	"github.com/roach88/arictl/internal/engine"
	"github.com/roach88/arictl/internal/resource"
)

// BridgeOptions holds flags shared by the bridge subcommands.
type BridgeOptions struct {
	*RootOptions
	ConfigPath string
}

// CommandResult is the outcome of one bridge command.
type CommandResult struct {
	Bridge string          `json:"bridge"`
	Op     string          `json:"op"`
	Status int             `json:"status,omitempty"`
	Body   json.RawMessage `json:"body,omitempty"`
}

func (r CommandResult) String() string {
	if r.Op == "create" {
		return fmt.Sprintf("✓ created bridge %s", r.Bridge)
	}
	if r.Status == 0 {
		return fmt.Sprintf("✓ %s %s (nothing to send)", r.Op, r.Bridge)
	}
	return fmt.Sprintf("✓ %s %s (%d)", r.Op, r.Bridge, r.Status)
}

// NewBridgeCommand creates the bridge command group.
func NewBridgeCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &BridgeOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "bridge",
		Short: "Send one-shot commands to bridges",
		Long: `Send a single command to a bridge and wait for the server's answer.

Commands on an existing bridge borrow it: the bridge is left in place
when arictl exits unless the command is destroy. A bridge made with
create is kept too; destroy it explicitly.

Examples:
  arictl bridge create --name lobby
  arictl bridge add b-1 chan-1 --role announce
  arictl bridge play b-1 sound:hello-world --lang en
  arictl bridge destroy b-1 --format json`,
	}

	cmd.PersistentFlags().StringVarP(&opts.ConfigPath, "config", "c", "arictl.yaml", "path to config file")

	cmd.AddCommand(newBridgeCreateCommand(opts))
	cmd.AddCommand(newBridgeDestroyCommand(opts))
	cmd.AddCommand(newBridgeAddCommand(opts))
	cmd.AddCommand(newBridgeRemoveCommand(opts))
	cmd.AddCommand(newBridgePlayCommand(opts))
	cmd.AddCommand(newBridgeRecordCommand(opts))
	cmd.AddCommand(newBridgeMOHStartCommand(opts))
	cmd.AddCommand(newBridgeMOHStopCommand(opts))

	return cmd
}

// bridgeOp runs against a borrowed bridge handle and returns the command
// result to wait for.
type bridgeOp func(b *resource.Bridge) *deferred.Result[engine.Response]

func newBridgeOpCommand(opts *BridgeOptions, use, short string, args cobra.PositionalArgs, build func(args []string) (bridgeOp, error)) *cobra.Command {
	return &cobra.Command{
		Use:           use,
		Short:         short,
		Args:          args,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			op, err := build(args)
			if err != nil {
				return WrapExitError(ExitCommandError, "invalid arguments", err)
			}
			return runBridgeOp(opts, cmd, args[0], op)
		},
	}
}

func newBridgeCreateCommand(opts *BridgeOptions) *cobra.Command {
	var bridgeType, bridgeID, name string

	cmd := &cobra.Command{
		Use:           "create",
		Short:         "Create a bridge",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withSession(opts, cmd, func(ctx context.Context, s *session) (any, error) {
				created, err := resource.CreateBridge(s.engine,
					resource.WithBridgeType(bridgeType),
					resource.WithBridgeID(bridgeID),
					resource.WithName(name),
				).Wait(ctx)
				if err != nil {
					return nil, err
				}
				// The bridge outlives this process.
				created.Detach()
				return CommandResult{Bridge: created.ID(), Op: "create"}, nil
			})
		},
	}

	cmd.Flags().StringVar(&bridgeType, "type", "mixing", "bridge type")
	cmd.Flags().StringVar(&bridgeID, "id", "", "bridge id to request instead of a server-assigned one")
	cmd.Flags().StringVar(&name, "name", "", "bridge name")

	return cmd
}

func newBridgeDestroyCommand(opts *BridgeOptions) *cobra.Command {
	return newBridgeOpCommand(opts, "destroy <bridge-id>", "Destroy a bridge", cobra.ExactArgs(1),
		func(args []string) (bridgeOp, error) {
			return (*resource.Bridge).Destroy, nil
		})
}

func newBridgeAddCommand(opts *BridgeOptions) *cobra.Command {
	var role string

	cmd := newBridgeOpCommand(opts, "add <bridge-id> <channel-id>...", "Add channels to a bridge", cobra.MinimumNArgs(2),
		func(args []string) (bridgeOp, error) {
			channels := args[1:]
			if len(channels) > 1 {
				if role != resource.RoleParticipant.String() {
					return nil, fmt.Errorf("--role applies to a single channel")
				}
				return func(b *resource.Bridge) *deferred.Result[engine.Response] {
					return b.AddChannels(channels...)
				}, nil
			}
			r, err := resource.ParseRole(role)
			if err != nil {
				return nil, err
			}
			return func(b *resource.Bridge) *deferred.Result[engine.Response] {
				return b.Add(channels[0], r)
			}, nil
		})

	cmd.Flags().StringVar(&role, "role", resource.RoleParticipant.String(), "channel role (participant|announce)")
	return cmd
}

func newBridgeRemoveCommand(opts *BridgeOptions) *cobra.Command {
	return newBridgeOpCommand(opts, "remove <bridge-id> <channel-id>", "Remove a channel from a bridge", cobra.ExactArgs(2),
		func(args []string) (bridgeOp, error) {
			return func(b *resource.Bridge) *deferred.Result[engine.Response] {
				return b.Remove(args[1])
			}, nil
		})
}

func newBridgePlayCommand(opts *BridgeOptions) *cobra.Command {
	var lang, playbackID string
	var offset, skip int

	cmd := newBridgeOpCommand(opts, "play <bridge-id> <media>", "Play media to a bridge", cobra.ExactArgs(2),
		func(args []string) (bridgeOp, error) {
			popts := []resource.PlayOption{
				resource.WithLang(lang),
				resource.WithPlaybackID(playbackID),
				resource.WithOffset(offset),
				resource.WithSkip(skip),
			}
			return func(b *resource.Bridge) *deferred.Result[engine.Response] {
				return b.Play(args[1], popts...)
			}, nil
		})

	cmd.Flags().StringVar(&lang, "lang", "", "media language")
	cmd.Flags().StringVar(&playbackID, "playback-id", "", "id for the playback")
	cmd.Flags().IntVar(&offset, "offset", engine.Absent, "start offset in milliseconds")
	cmd.Flags().IntVar(&skip, "skip", engine.Absent, "skip step in milliseconds")
	return cmd
}

func newBridgeRecordCommand(opts *BridgeOptions) *cobra.Command {
	var format, ifExists, terminateOn string
	var maxDuration, maxSilence int
	var beep bool

	cmd := newBridgeOpCommand(opts, "record <bridge-id> <name>", "Record a bridge", cobra.ExactArgs(2),
		func(args []string) (bridgeOp, error) {
			term, err := resource.ParseTerminationDTMF(terminateOn)
			if err != nil {
				return nil, err
			}
			ropts := []resource.RecordOption{
				resource.WithMaxDuration(maxDuration),
				resource.WithMaxSilence(maxSilence),
				resource.WithIfExists(ifExists),
				resource.WithTerminateOn(term),
			}
			if beep {
				ropts = append(ropts, resource.WithBeep())
			}
			return func(b *resource.Bridge) *deferred.Result[engine.Response] {
				return b.Record(args[1], format, ropts...)
			}, nil
		})

	cmd.Flags().StringVar(&format, "file-format", "wav", "recording file format")
	cmd.Flags().StringVar(&ifExists, "if-exists", "", "policy for an existing name (fail|overwrite|append)")
	cmd.Flags().StringVar(&terminateOn, "terminate-on", resource.TerminateNone.String(), "DTMF ending the recording (none|any|*|#)")
	cmd.Flags().IntVar(&maxDuration, "max-duration", engine.Absent, "maximum length in seconds")
	cmd.Flags().IntVar(&maxSilence, "max-silence", engine.Absent, "maximum silence in seconds")
	cmd.Flags().BoolVar(&beep, "beep", false, "beep before recording")
	return cmd
}

func newBridgeMOHStartCommand(opts *BridgeOptions) *cobra.Command {
	var class string

	cmd := newBridgeOpCommand(opts, "moh-start <bridge-id>", "Start music on hold", cobra.ExactArgs(1),
		func(args []string) (bridgeOp, error) {
			return func(b *resource.Bridge) *deferred.Result[engine.Response] {
				return b.StartMusicOnHold(class)
			}, nil
		})

	cmd.Flags().StringVar(&class, "class", "", "music on hold class (server default when empty)")
	return cmd
}

func newBridgeMOHStopCommand(opts *BridgeOptions) *cobra.Command {
	return newBridgeOpCommand(opts, "moh-stop <bridge-id>", "Stop music on hold", cobra.ExactArgs(1),
		func(args []string) (bridgeOp, error) {
			return (*resource.Bridge).StopMusicOnHold, nil
		})
}

func runBridgeOp(opts *BridgeOptions, cmd *cobra.Command, bridgeID string, op bridgeOp) error {
	return withSession(opts, cmd, func(ctx context.Context, s *session) (any, error) {
		b := resource.WrapBridge(s.engine, bridgeID)
		defer b.Detach()

		resp, err := op(b).Wait(ctx)
		if err != nil {
			return nil, err
		}
		result := CommandResult{Bridge: bridgeID, Op: cmd.Name(), Status: resp.Status}
		if json.Valid(resp.Body) {
			result.Body = resp.Body
		}
		return result, nil
	})
}

// withSession loads the config, opens a session, runs fn and prints its
// result. Rejected commands exit with ExitFailure; setup errors with
// ExitCommandError.
func withSession(opts *BridgeOptions, cmd *cobra.Command, fn func(ctx context.Context, s *session) (any, error)) error {
	formatter := newFormatter(opts.RootOptions, cmd.OutOrStdout(), cmd.ErrOrStderr())

	cfg, err := config.Load(opts.ConfigPath)
	if err != nil {
		return formatter.Fail(ExitCommandError, "failed to load config", err)
	}
	setupLogging(cmd.ErrOrStderr(), cfg.LogLevel, opts.Verbose)

	parentCtx := cmd.Context()
	if parentCtx == nil {
		parentCtx = context.Background()
	}
	ctx, stop := signal.NotifyContext(parentCtx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	s, err := openSession(ctx, cfg)
	if err != nil {
		return formatter.Fail(ExitCommandError, "failed to start engine", err)
	}

	result, err := fn(ctx, s)
	if closeErr := s.Close(); closeErr != nil && err == nil {
		return formatter.Fail(ExitCommandError, "failed to stop engine", closeErr)
	}
	if err != nil {
		return formatter.Fail(ExitFailure, cmd.Name()+" failed", err)
	}
	return formatter.Success(result)
}
