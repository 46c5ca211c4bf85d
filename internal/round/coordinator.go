package round

import (
	"context"
	"time"

	"github.com/Iron-Ham/numduel/internal/errors"
	"github.com/Iron-Ham/numduel/internal/event"
	"github.com/Iron-Ham/numduel/internal/game"
	"github.com/Iron-Ham/numduel/internal/logging"
	"github.com/Iron-Ham/numduel/internal/notify"
)

// Terminator stops the remote peer and waits for it to exit. Only the
// controlling peer has one.
type Terminator interface {
	Terminate(ctx context.Context) error
}

// TerminatorFunc adapts a function to Terminator.
type TerminatorFunc func(ctx context.Context) error

func (f TerminatorFunc) Terminate(ctx context.Context) error { return f(ctx) }

// Coordinator runs a peer's rounds.
type Coordinator struct {
	peer    notify.PeerID
	machine *game.Machine
	rounds  int

	terminator Terminator
	awaiter    notify.Link
	bus        *event.Bus
	logger     *logging.Logger
	now        func() time.Time
}

// Option configures a Coordinator.
type Option func(*Coordinator)

// WithTerminator makes this peer the controlling one: after its last round
// it stops the remote peer through t.
func WithTerminator(t Terminator) Option {
	return func(c *Coordinator) { c.terminator = t }
}

// WithAwaitTermination makes the peer wait on link for the remote peer's
// termination request after its last round instead of returning at once.
func WithAwaitTermination(link notify.Link) Option {
	return func(c *Coordinator) { c.awaiter = link }
}

// WithBus publishes round lifecycle events on bus.
func WithBus(bus *event.Bus) Option {
	return func(c *Coordinator) { c.bus = bus }
}

// WithLogger sets the coordinator logger.
func WithLogger(logger *logging.Logger) Option {
	return func(c *Coordinator) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// NewCoordinator creates a coordinator running rounds rounds on machine.
func NewCoordinator(peer notify.PeerID, machine *game.Machine, rounds int, opts ...Option) (*Coordinator, error) {
	if rounds < 0 {
		return nil, errors.NewValidationError("rounds must not be negative").
			WithField("game.rounds").WithValue(rounds)
	}
	c := &Coordinator{
		peer:    peer,
		machine: machine,
		rounds:  rounds,
		logger:  logging.NopLogger(),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Run plays every round. A termination request from the remote peer ends
// the run early with Summary.Terminated set and a nil error. Any other
// failure abandons the current round and is returned with the rounds
// completed so far.
func (c *Coordinator) Run(ctx context.Context) (Summary, error) {
	summary := Summary{Peer: c.peer}
	state := c.machine.SharedState()
	started := c.now()

	for i := range c.rounds {
		if state.Terminated() {
			return c.terminated(summary, "terminate notification"), nil
		}

		state.Begin(i)
		role := RoleFor(c.peer, i)
		logger := c.logger.WithRound(i).WithRole(string(role))
		c.bus.Publish(event.NewRoundStartedEvent(int(c.peer), i, string(role)))
		logger.Info("round started")

		stats := Stats{Round: i, Role: role, Start: c.now()}
		res, err := c.machine.Play(ctx, i, role)
		stats.End = c.now()

		if err != nil {
			if isTermination(ctx, err) {
				return c.terminated(summary, err.Error()), nil
			}
			logger.Error("round failed", "error", err.Error())
			return summary, err
		}

		stats.Attempts = res.Attempts
		stats.Solved = res.Solved
		summary.Rounds = append(summary.Rounds, stats)

		logger.Info("round completed", "attempts", stats.Attempts, "duration_ms", stats.Duration().Milliseconds())
		c.bus.Publish(event.NewRoundCompletedEvent(int(c.peer), i, string(role), stats.Attempts, stats.Duration()))
	}

	if c.terminator != nil {
		if err := c.terminator.Terminate(ctx); err != nil {
			// The remote peer may have finished its own rounds and gone.
			if !errors.Is(err, errors.ErrDeliveryFailed) {
				return summary, errors.Wrap(err, "terminate remote peer")
			}
			c.logger.Debug("remote peer already gone", "error", err.Error())
		}
	} else if c.awaiter != nil {
		if _, err := c.awaiter.Recv(ctx); err != nil && !isTermination(ctx, err) {
			return summary, errors.Wrap(err, "await termination")
		}
		summary.Terminated = true
	}

	c.bus.Publish(event.NewDuelFinishedEvent(int(c.peer), summary.Played(), summary.TotalAttempts(), c.now().Sub(started)))
	return summary, nil
}

func (c *Coordinator) terminated(summary Summary, reason string) Summary {
	summary.Terminated = true
	c.logger.Info("terminated by remote peer", "rounds_played", summary.Played(), "reason", reason)
	c.bus.Publish(event.NewPeerTerminatedEvent(int(c.peer), reason))
	return summary
}

// isTermination reports whether err, or the cancellation cause of ctx, is a
// remote termination request.
func isTermination(ctx context.Context, err error) bool {
	if errors.Is(err, errors.ErrTerminated) {
		return true
	}
	return ctx.Err() != nil && errors.Is(context.Cause(ctx), errors.ErrTerminated)
}
