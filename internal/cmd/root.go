package cmd

import (
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/Iron-Ham/numduel/internal/config"
	"github.com/Iron-Ham/numduel/internal/logging"
	"github.com/Iron-Ham/numduel/internal/narrate"
)

var rootCmd = &cobra.Command{
	Use:   "numduel",
	Short: "Two peers take turns guessing each other's secret number",
	Long: `Numduel runs a number-guessing duel between two peers that talk only
through asynchronous notifications. In every round one peer picks a secret
in [1, max] and the other guesses until it is right; the roles swap each
round.

Two notification bindings are available: "signal" carries notifications as
interrupt-style deliveries with a single integer payload, "queue" carries
them over a pair of bounded named message queues.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute runs the root command
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	cobra.OnInitialize(initConfig)

	// Global flags
	rootCmd.PersistentFlags().StringP("config", "c", "", "config file (default is $HOME/.config/numduel/config.yaml)")
	_ = viper.BindPFlag("config", rootCmd.PersistentFlags().Lookup("config"))
}

func initConfig() {
	// Set defaults first so they're available even without a config file
	config.SetDefaults()

	if cfgFile := viper.GetString("config"); cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.SetConfigName("config")
		viper.SetConfigType("yaml")
		viper.AddConfigPath(config.ConfigDir())
		viper.AddConfigPath(".")
	}

	viper.AutomaticEnv()
	viper.SetEnvPrefix("NUMDUEL")
	// e.g., NUMDUEL_TRANSPORT_BINDING for transport.binding
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	// Read config file if it exists (ignore error if not found)
	_ = viper.ReadInConfig()
}

// newLogger returns the debug logger described by cfg, or a no-op logger
// when logging is disabled.
func newLogger(cfg *config.Config, name string) (*logging.Logger, error) {
	if !cfg.Logging.Enabled {
		return logging.NopLogger(), nil
	}
	return logging.NewLogger(cfg.Logging.Dir, name, cfg.Logging.Level)
}

// newNarrator writes to the command's output. Color and the terminal width
// are only used when that output is a terminal.
func newNarrator(cmd *cobra.Command, cfg *config.Config) *narrate.Narrator {
	out := cmd.OutOrStdout()
	color, width := false, 80
	if f, ok := out.(*os.File); ok && narrate.IsTerminal(f) {
		color = cfg.Output.Color
		width = narrate.TerminalWidth(f, width)
	}
	return narrate.New(out,
		narrate.WithColor(color),
		narrate.WithQuiet(cfg.Output.Quiet),
		narrate.WithWidth(width))
}
