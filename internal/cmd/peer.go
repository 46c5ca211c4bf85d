package cmd

import (
	"github.com/spf13/cobra"

	"github.com/Iron-Ham/numduel/internal/config"
	"github.com/Iron-Ham/numduel/internal/event"
	"github.com/Iron-Ham/numduel/internal/notify"
	"github.com/Iron-Ham/numduel/internal/notify/queue"
	"github.com/Iron-Ham/numduel/internal/peer"
)

var peerCmd = &cobra.Command{
	Use:    "peer",
	Short:  "Run peer 2 against queues created by another numduel process",
	Hidden: true,
	Args:   cobra.NoArgs,
	RunE:   runPeer,
}

func init() {
	rootCmd.AddCommand(peerCmd)

	peerCmd.Flags().Int("max", 0, "upper bound of the secret range")
	peerCmd.Flags().Int("rounds", 0, "rounds to play")
	peerCmd.Flags().Int64("seed", 0, "seed shared with peer 1 (0 = random)")
	peerCmd.Flags().String("queue-dir", "", "directory holding the named queues")
	peerCmd.Flags().String("queue-a", "", "queue carrying peer 1 -> peer 2 messages")
	peerCmd.Flags().String("queue-b", "", "queue carrying peer 2 -> peer 1 messages")
}

func runPeer(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	cfg.Transport.Binding = config.BindingQueue
	flags := cmd.Flags()
	if flags.Changed("queue-dir") {
		cfg.Transport.QueueDir, _ = flags.GetString("queue-dir")
	}
	if flags.Changed("queue-a") {
		cfg.Transport.QueueA, _ = flags.GetString("queue-a")
	}
	if flags.Changed("queue-b") {
		cfg.Transport.QueueB, _ = flags.GetString("queue-b")
	}

	opts := peer.OptionsFromConfig(cfg)
	if flags.Changed("max") {
		opts.Max, _ = flags.GetInt("max")
	}
	if flags.Changed("rounds") {
		opts.Rounds, _ = flags.GetInt("rounds")
	}
	if flags.Changed("seed") {
		opts.Seed, _ = flags.GetInt64("seed")
	}
	if err := opts.Validate(); err != nil {
		return err
	}

	logger, err := newLogger(cfg, "peer2")
	if err != nil {
		return err
	}
	defer func() { _ = logger.Close() }()
	opts.Logger = logger
	opts.Registry = queue.NewDirRegistry(cfg.Transport.ResolveQueueDir(),
		queue.WithPollInterval(cfg.Transport.PollInterval()),
		queue.WithDirLogger(logger))

	narrator := newNarrator(cmd, cfg)
	opts.Bus = event.NewBus(event.WithLogger(logger))
	defer narrator.Attach(opts.Bus)()

	summary, err := peer.RunRemote(cmd.Context(), opts, notify.Peer2)
	if err != nil {
		return err
	}
	narrator.PrintSummary(summary)
	return nil
}
