package peer

import (
	"fmt"
	"time"

	"github.com/Iron-Ham/numduel/internal/config"
	"github.com/Iron-Ham/numduel/internal/errors"
	"github.com/Iron-Ham/numduel/internal/event"
	"github.com/Iron-Ham/numduel/internal/game"
	"github.com/Iron-Ham/numduel/internal/logging"
	"github.com/Iron-Ham/numduel/internal/notify"
	"github.com/Iron-Ham/numduel/internal/notify/queue"
)

// Options describes one duel.
type Options struct {
	Binding string
	Max     int
	Rounds  int
	Seed    int64

	// Queue binding only.
	Queues            queue.Names
	Capacity          int
	Retry             notify.RetryPolicy
	GuesserStartDelay time.Duration
	// Registry holds the named queues. Nil means a fresh in-memory registry
	// for local runs.
	Registry queue.Registry

	// Sources overrides the random source per peer.
	Sources map[notify.PeerID]game.Source

	Bus    *event.Bus
	Logger *logging.Logger
}

// OptionsFromConfig builds Options from cfg, filling binding defaults for
// max and rounds.
func OptionsFromConfig(cfg *config.Config) Options {
	t := cfg.Transport
	g := cfg.Game.Resolved(t.Binding)
	return Options{
		Binding:  t.Binding,
		Max:      g.Max,
		Rounds:   g.Rounds,
		Seed:     g.Seed,
		Queues:   queue.Names{AB: t.QueueA, BA: t.QueueB},
		Capacity: t.Capacity,
		Retry: notify.RetryPolicy{
			Attempts: t.SendRetries,
			Backoff:  t.RetryBackoff(),
		},
		GuesserStartDelay: t.GuesserStartDelay(),
	}
}

// Validate rejects a duel that cannot start. It runs before any channel
// is created.
func (o *Options) Validate() error {
	if err := game.ValidateMax(o.Max); err != nil {
		return err
	}
	if o.Rounds < 0 {
		return errors.NewValidationError("rounds must not be negative").
			WithField("game.rounds").WithValue(o.Rounds)
	}
	switch o.Binding {
	case config.BindingSignal:
	case config.BindingQueue:
		if err := o.queueNames().Validate(); err != nil {
			return err
		}
	default:
		return errors.NewValidationError(fmt.Sprintf("unknown binding (valid: %v)", config.ValidBindings())).
			WithField("transport.binding").WithValue(o.Binding)
	}
	return nil
}

func (o *Options) queueNames() queue.Names {
	if o.Queues.AB == "" && o.Queues.BA == "" {
		return queue.DefaultNames()
	}
	return o.Queues
}

func (o *Options) capacity() int {
	if o.Capacity <= 0 {
		return queue.DefaultCapacity
	}
	return o.Capacity
}

func (o *Options) logger() *logging.Logger {
	if o.Logger == nil {
		return logging.NopLogger()
	}
	return o.Logger
}

// source returns the configured source for id. With a fixed seed each peer
// gets its own derived seed so the two do not mirror each other.
func (o *Options) source(id notify.PeerID) game.Source {
	if s, ok := o.Sources[id]; ok && s != nil {
		return s
	}
	if o.Seed == 0 {
		return game.NewRandSource(0)
	}
	return game.NewRandSource(o.Seed + int64(id) - 1)
}
