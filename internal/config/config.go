package config

import (
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Binding names accepted by transport.binding.
const (
	BindingSignal = "signal"
	BindingQueue  = "queue"
)

// Config represents the complete numduel configuration
type Config struct {
	Game      GameConfig      `mapstructure:"game" yaml:"game"`
	Transport TransportConfig `mapstructure:"transport" yaml:"transport"`
	Logging   LoggingConfig   `mapstructure:"logging" yaml:"logging"`
	Output    OutputConfig    `mapstructure:"output" yaml:"output"`
}

// GameConfig controls the shape of a duel
type GameConfig struct {
	// Max is the upper bound of the secret range [1, max].
	// 0 means use the binding default (10 for signal, 3 for queue).
	Max int `mapstructure:"max" yaml:"max"`
	// Rounds is the number of rounds to play.
	// 0 means use the binding default (10 for signal, 2 for queue).
	Rounds int `mapstructure:"rounds" yaml:"rounds"`
	// Seed seeds the random sources. 0 seeds from the clock.
	Seed int64 `mapstructure:"seed" yaml:"seed"`
}

// TransportConfig controls the notification channel between the peers
type TransportConfig struct {
	// Binding selects the transport: "signal" or "queue" (default: "signal")
	Binding string `mapstructure:"binding" yaml:"binding"`
	// QueueA is the name of the queue carrying peer 1 -> peer 2 messages
	QueueA string `mapstructure:"queue_a" yaml:"queue_a"`
	// QueueB is the name of the queue carrying peer 2 -> peer 1 messages
	QueueB string `mapstructure:"queue_b" yaml:"queue_b"`
	// Capacity is the number of pending messages a queue holds (default: 10)
	Capacity int `mapstructure:"capacity" yaml:"capacity"`
	// QueueDir is the directory backing named queues when peers run as
	// separate processes. Empty means a numduel directory under os.TempDir().
	QueueDir string `mapstructure:"queue_dir" yaml:"queue_dir"`
	// SendRetries is how many times a send to a full queue is retried (default: 5)
	SendRetries int `mapstructure:"send_retries" yaml:"send_retries"`
	// RetryBackoffMs is the initial delay between send retries (default: 20)
	RetryBackoffMs int `mapstructure:"retry_backoff_ms" yaml:"retry_backoff_ms"`
	// GuesserStartDelayMs delays the queue-binding guesser before it listens (default: 0)
	GuesserStartDelayMs int `mapstructure:"guesser_start_delay_ms" yaml:"guesser_start_delay_ms"`
	// PollIntervalMs is the fallback poll interval for directory queues (default: 25)
	PollIntervalMs int `mapstructure:"poll_interval_ms" yaml:"poll_interval_ms"`
}

// LoggingConfig controls debug logging behavior
type LoggingConfig struct {
	// Enabled controls whether debug logging is written (default: false)
	Enabled bool `mapstructure:"enabled" yaml:"enabled"`
	// Level is the log level: "debug", "info", "warn", "error" (default: "info")
	Level string `mapstructure:"level" yaml:"level"`
	// Dir is where debug.log is written. Empty means stderr.
	Dir string `mapstructure:"dir" yaml:"dir"`
}

// OutputConfig controls console narration
type OutputConfig struct {
	// Color enables styled output when stdout is a terminal (default: true)
	Color bool `mapstructure:"color" yaml:"color"`
	// Quiet suppresses per-attempt lines and prints only round results (default: false)
	Quiet bool `mapstructure:"quiet" yaml:"quiet"`
}

// Default returns a Config with sensible default values
func Default() *Config {
	return &Config{
		Game: GameConfig{
			Max:    0, // Binding default
			Rounds: 0, // Binding default
			Seed:   0,
		},
		Transport: TransportConfig{
			Binding:             BindingSignal,
			QueueA:              "/queuea",
			QueueB:              "/queueb",
			Capacity:            10,
			QueueDir:            "",
			SendRetries:         5,
			RetryBackoffMs:      20,
			GuesserStartDelayMs: 0,
			PollIntervalMs:      25,
		},
		Logging: LoggingConfig{
			Enabled: false,
			Level:   "info",
			Dir:     "",
		},
		Output: OutputConfig{
			Color: true,
			Quiet: false,
		},
	}
}

// BindingDefaults returns the default max and round count for a binding.
func BindingDefaults(binding string) (maxValue, rounds int) {
	if binding == BindingQueue {
		return 3, 2
	}
	return 10, 10
}

// Resolved returns a copy of g with zero fields replaced by the binding defaults.
func (g GameConfig) Resolved(binding string) GameConfig {
	maxValue, rounds := BindingDefaults(binding)
	if g.Max == 0 {
		g.Max = maxValue
	}
	if g.Rounds == 0 {
		g.Rounds = rounds
	}
	return g
}

// RetryBackoff returns the initial send retry delay as a time.Duration
func (t *TransportConfig) RetryBackoff() time.Duration {
	return time.Duration(t.RetryBackoffMs) * time.Millisecond
}

// GuesserStartDelay returns the guesser start delay as a time.Duration
func (t *TransportConfig) GuesserStartDelay() time.Duration {
	return time.Duration(t.GuesserStartDelayMs) * time.Millisecond
}

// PollInterval returns the directory queue poll interval as a time.Duration
func (t *TransportConfig) PollInterval() time.Duration {
	return time.Duration(t.PollIntervalMs) * time.Millisecond
}

// ResolveQueueDir returns the directory backing named queues.
func (t *TransportConfig) ResolveQueueDir() string {
	if t.QueueDir == "" {
		return filepath.Join(os.TempDir(), "numduel")
	}
	path := t.QueueDir
	if strings.HasPrefix(path, "~/") {
		if home, err := os.UserHomeDir(); err == nil {
			path = filepath.Join(home, path[2:])
		}
	}
	return path
}

// SetDefaults registers default values with viper
func SetDefaults() {
	defaults := Default()

	// Game defaults
	viper.SetDefault("game.max", defaults.Game.Max)
	viper.SetDefault("game.rounds", defaults.Game.Rounds)
	viper.SetDefault("game.seed", defaults.Game.Seed)

	// Transport defaults
	viper.SetDefault("transport.binding", defaults.Transport.Binding)
	viper.SetDefault("transport.queue_a", defaults.Transport.QueueA)
	viper.SetDefault("transport.queue_b", defaults.Transport.QueueB)
	viper.SetDefault("transport.capacity", defaults.Transport.Capacity)
	viper.SetDefault("transport.queue_dir", defaults.Transport.QueueDir)
	viper.SetDefault("transport.send_retries", defaults.Transport.SendRetries)
	viper.SetDefault("transport.retry_backoff_ms", defaults.Transport.RetryBackoffMs)
	viper.SetDefault("transport.guesser_start_delay_ms", defaults.Transport.GuesserStartDelayMs)
	viper.SetDefault("transport.poll_interval_ms", defaults.Transport.PollIntervalMs)

	// Logging defaults
	viper.SetDefault("logging.enabled", defaults.Logging.Enabled)
	viper.SetDefault("logging.level", defaults.Logging.Level)
	viper.SetDefault("logging.dir", defaults.Logging.Dir)

	// Output defaults
	viper.SetDefault("output.color", defaults.Output.Color)
	viper.SetDefault("output.quiet", defaults.Output.Quiet)
}

// Load reads the configuration from viper into a Config struct and validates it
func Load() (*Config, error) {
	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	if errs := cfg.Validate(); len(errs) > 0 {
		return nil, ValidationErrors(errs)
	}

	return &cfg, nil
}

// ConfigDir returns the path to the user's config directory
func ConfigDir() string {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "numduel")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return ".numduel"
	}
	return filepath.Join(home, ".config", "numduel")
}

// ConfigFile returns the path to the config file
func ConfigFile() string {
	return filepath.Join(ConfigDir(), "config.yaml")
}

// ValidBindings returns the list of valid transport bindings
func ValidBindings() []string {
	return []string{BindingSignal, BindingQueue}
}
