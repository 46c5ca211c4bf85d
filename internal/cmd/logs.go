package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Iron-Ham/numduel/internal/config"
	"github.com/Iron-Ham/numduel/internal/logging"
)

var logsCmd = &cobra.Command{
	Use:   "logs",
	Short: "View duel debug logs",
	Long: `View the debug logs written by numduel peers.

Every *.log file in the logging directory is merged into one timeline, so a
spawned duel (one log file per process) reads as a single run. Logging must
have been enabled with logging.enabled and logging.dir.

Examples:
  # Everything from the last duel
  numduel logs

  # Peer 2's warnings and errors
  numduel logs --peer 2 --level warn

  # Round 3 only, as JSON
  numduel logs --round 3 --json`,
	Args: cobra.NoArgs,
	RunE: runLogs,
}

var (
	logsDir   string
	logsPeer  int
	logsRound int
	logsRole  string
	logsLevel string
	logsGrep  string
	logsJSON  bool
)

func init() {
	rootCmd.AddCommand(logsCmd)

	logsCmd.Flags().StringVar(&logsDir, "dir", "", "log directory (default: logging.dir)")
	logsCmd.Flags().IntVar(&logsPeer, "peer", 0, "only entries from this peer (1 or 2)")
	logsCmd.Flags().IntVar(&logsRound, "round", -1, "only entries from this zero-based round")
	logsCmd.Flags().StringVar(&logsRole, "role", "", "only entries logged as chooser or guesser")
	logsCmd.Flags().StringVar(&logsLevel, "level", "", "filter by minimum level (debug/info/warn/error)")
	logsCmd.Flags().StringVar(&logsGrep, "grep", "", "only entries whose message contains this text")
	logsCmd.Flags().BoolVar(&logsJSON, "json", false, "print entries as a JSON array")
}

func runLogs(cmd *cobra.Command, args []string) error {
	dir := logsDir
	if dir == "" {
		cfg, err := config.Load()
		if err != nil {
			return err
		}
		dir = cfg.Logging.Dir
	}
	if dir == "" {
		return fmt.Errorf("no log directory: set logging.dir or pass --dir")
	}

	entries, err := logging.AggregateLogs(dir)
	if err != nil {
		return err
	}

	filter := logging.LogFilter{
		Level:           logsLevel,
		Peer:            logsPeer,
		Role:            logsRole,
		MessageContains: logsGrep,
	}
	if logsRound >= 0 {
		r := logsRound
		filter.Round = &r
	}
	entries = logging.FilterLogs(entries, filter)

	if logsJSON {
		return logging.WriteJSON(cmd.OutOrStdout(), entries)
	}
	return logging.WriteText(cmd.OutOrStdout(), entries)
}
