package cmd

import (
	"context"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/Iron-Ham/numduel/internal/config"
	"github.com/Iron-Ham/numduel/internal/errors"
	"github.com/Iron-Ham/numduel/internal/event"
	"github.com/Iron-Ham/numduel/internal/notify/queue"
	"github.com/Iron-Ham/numduel/internal/peer"
	"github.com/Iron-Ham/numduel/internal/round"
)

var playCmd = &cobra.Command{
	Use:   "play [max] [rounds]",
	Short: "Play a duel between two peers",
	Long: `Play a duel between two peers.

With the signal binding exactly one argument is required: the upper bound
max (> 1) of the secret range. Rounds come from --rounds or the config
(default 10).

With the queue binding both arguments are optional: max defaults to 3 and
rounds to 2. Arguments beyond the first two are ignored.

Examples:
  numduel play --binding signal 10
  numduel play --binding queue 5 4
  numduel play --binding queue --spawn`,
	Args: cobra.ArbitraryArgs,
	RunE: runPlay,
}

func init() {
	rootCmd.AddCommand(playCmd)

	playCmd.Flags().String("binding", "", "notification binding: signal or queue (default from config)")
	playCmd.Flags().Int("rounds", 0, "rounds to play (default depends on the binding)")
	playCmd.Flags().Int64("seed", 0, "seed for both peers' random sources (0 = random)")
	playCmd.Flags().Bool("spawn", false, "run peer 2 as a separate process (queue binding only)")
	playCmd.Flags().Bool("quiet", false, "only print round results and the summary")
	playCmd.Flags().Bool("color", true, "style output when stdout is a terminal")

	_ = viper.BindPFlag("transport.binding", playCmd.Flags().Lookup("binding"))
	_ = viper.BindPFlag("game.rounds", playCmd.Flags().Lookup("rounds"))
	_ = viper.BindPFlag("game.seed", playCmd.Flags().Lookup("seed"))
	_ = viper.BindPFlag("output.quiet", playCmd.Flags().Lookup("quiet"))
	_ = viper.BindPFlag("output.color", playCmd.Flags().Lookup("color"))
}

func runPlay(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	opts := peer.OptionsFromConfig(cfg)
	if err := applyPlayArgs(&opts, args); err != nil {
		return err
	}
	// Reject bad input before any logger, channel or child exists.
	if err := opts.Validate(); err != nil {
		return err
	}
	spawn, _ := cmd.Flags().GetBool("spawn")
	if spawn && opts.Binding != config.BindingQueue {
		return errors.NewValidationError("--spawn requires the queue binding").
			WithField("transport.binding").WithValue(opts.Binding)
	}

	logger, err := newLogger(cfg, "numduel")
	if err != nil {
		return err
	}
	defer func() { _ = logger.Close() }()
	opts.Logger = logger

	narrator := newNarrator(cmd, cfg)
	opts.Bus = event.NewBus(event.WithLogger(logger))
	defer narrator.Attach(opts.Bus)()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger.Info("duel starting", "binding", opts.Binding, "max", opts.Max, "rounds", opts.Rounds, "spawn", spawn)

	if spawn {
		summary, err := spawnDuel(ctx, cmd, cfg, opts)
		if err != nil {
			return err
		}
		narrator.PrintSummary(summary)
		return nil
	}

	out, err := peer.RunLocal(ctx, opts)
	if err != nil {
		return err
	}
	narrator.PrintSummary(out.Peer1)
	narrator.PrintSummary(out.Peer2)
	return nil
}

// applyPlayArgs folds the positional arguments into opts. Range checks on
// max are left to Options.Validate.
func applyPlayArgs(opts *peer.Options, args []string) error {
	switch opts.Binding {
	case config.BindingSignal:
		if len(args) != 1 {
			return errors.NewValidationError("signal binding takes exactly one argument: max").
				WithField("max").WithValue(len(args))
		}
		n, err := parseIntArg("max", args[0])
		if err != nil {
			return err
		}
		opts.Max = n
	case config.BindingQueue:
		if len(args) > 0 {
			n, err := parseIntArg("max", args[0])
			if err != nil {
				return err
			}
			opts.Max = n
		}
		if len(args) > 1 {
			n, err := parseIntArg("rounds", args[1])
			if err != nil {
				return err
			}
			if n <= 0 {
				return errors.NewValidationError("rounds must be positive").
					WithField("rounds").WithValue(n)
			}
			opts.Rounds = n
		}
	}
	return nil
}

func parseIntArg(field, s string) (int, error) {
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, errors.NewValidationError("must be an integer").WithField(field).WithValue(s)
	}
	return n, nil
}

// spawnDuel runs peer 1 here and re-executes this binary as peer 2, joined
// by directory-backed queues.
func spawnDuel(ctx context.Context, cmd *cobra.Command, cfg *config.Config, opts peer.Options) (round.Summary, error) {
	dir := cfg.Transport.ResolveQueueDir()
	opts.Registry = queue.NewDirRegistry(dir,
		queue.WithPollInterval(cfg.Transport.PollInterval()),
		queue.WithDirLogger(opts.Logger))

	exe, err := os.Executable()
	if err != nil {
		return round.Summary{}, errors.Wrap(err, "locate numduel executable")
	}
	names := opts.Queues
	if names.AB == "" && names.BA == "" {
		names = queue.DefaultNames()
	}
	args := []string{
		"peer",
		"--max", strconv.Itoa(opts.Max),
		"--rounds", strconv.Itoa(opts.Rounds),
		"--seed", strconv.FormatInt(opts.Seed, 10),
		"--queue-dir", dir,
		"--queue-a", names.AB,
		"--queue-b", names.BA,
	}
	if cfgFile := viper.ConfigFileUsed(); cfgFile != "" {
		args = append(args, "--config", cfgFile)
	}

	return peer.RunSpawn(ctx, opts, peer.Command{
		Path:   exe,
		Args:   args,
		Env:    os.Environ(),
		Stdout: cmd.OutOrStdout(),
		Stderr: cmd.ErrOrStderr(),
	})
}
