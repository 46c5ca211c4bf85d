package game

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/Iron-Ham/numduel/internal/errors"
	"github.com/Iron-Ham/numduel/internal/event"
	"github.com/Iron-Ham/numduel/internal/logging"
	"github.com/Iron-Ham/numduel/internal/notify"
)

// Machine plays rounds for one peer over a notify.Link. The link must report
// arrivals to the machine's SharedRoundState (see NewSharedRoundState and
// the bindings' WithObserver options).
type Machine struct {
	peer   notify.PeerID
	link   notify.Link
	state  *SharedRoundState
	max    int
	source Source

	bus        *event.Bus
	logger     *logging.Logger
	startDelay time.Duration

	mu      sync.Mutex
	current State
}

// Option configures a Machine.
type Option func(*Machine)

// WithSource sets where secrets and guesses come from.
func WithSource(s Source) Option {
	return func(m *Machine) {
		if s != nil {
			m.source = s
		}
	}
}

// WithBus publishes round progress on bus.
func WithBus(bus *event.Bus) Option {
	return func(m *Machine) { m.bus = bus }
}

// WithLogger sets the machine logger.
func WithLogger(logger *logging.Logger) Option {
	return func(m *Machine) {
		if logger != nil {
			m.logger = logger
		}
	}
}

// WithStartDelay makes the guesser wait before listening for RoundStart.
func WithStartDelay(d time.Duration) Option {
	return func(m *Machine) { m.startDelay = d }
}

// ValidateMax rejects ranges that leave nothing to guess.
func ValidateMax(upper int) error {
	if upper <= 1 {
		return errors.NewValidationError("max must be greater than 1").
			WithField("game.max").WithValue(upper)
	}
	return nil
}

// NewMachine creates a machine for peer. A max of 1 or less is an
// invalid configuration.
func NewMachine(peer notify.PeerID, link notify.Link, state *SharedRoundState, upper int, opts ...Option) (*Machine, error) {
	if err := ValidateMax(upper); err != nil {
		return nil, err
	}
	if !peer.Valid() {
		return nil, errors.NewValidationError("unknown peer").WithField("peer").WithValue(int(peer))
	}
	if state == nil {
		state = NewSharedRoundState()
	}
	m := &Machine{
		peer:    peer,
		link:    link,
		state:   state,
		max:     upper,
		logger:  logging.NopLogger(),
		current: StateIdle,
	}
	for _, opt := range opts {
		opt(m)
	}
	if m.source == nil {
		m.source = NewRandSource(0)
	}
	return m, nil
}

// State returns the machine's current state.
func (m *Machine) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.current
}

// SharedState returns the round state the link reports into.
func (m *Machine) SharedState() *SharedRoundState {
	return m.state
}

// Max returns the inclusive upper bound of the secret's range.
func (m *Machine) Max() int {
	return m.max
}

func (m *Machine) setState(s State) {
	m.mu.Lock()
	prev := m.current
	m.current = s
	m.mu.Unlock()
	m.logger.Debug("state transition", "from", string(prev), "to", string(s))
}

// Play runs one round in role until it completes. It returns ErrTerminated
// when the remote peer asks this peer to stop, and the link's error on any
// channel failure; the round is then abandoned.
func (m *Machine) Play(ctx context.Context, round int, role Role) (Result, error) {
	logger := m.logger.WithRound(round).WithRole(string(role))
	var (
		res Result
		err error
	)
	switch role {
	case RoleChooser:
		res, err = m.choose(ctx, round, logger)
	case RoleGuesser:
		res, err = m.guess(ctx, round, logger)
	default:
		return Result{}, fmt.Errorf("unknown role %q", role)
	}
	if err != nil {
		return res, errors.Wrapf(err, "round %d as %s", round, role)
	}
	m.setState(StateRoundComplete)
	return res, nil
}

func (m *Machine) drain(kinds ...notify.Kind) {
	if d, ok := m.link.(notify.Drainer); ok {
		if n := d.Drain(kinds...); n > 0 {
			m.logger.Debug("drained stale notifications", "count", n)
		}
	}
}

func (m *Machine) choose(ctx context.Context, round int, logger *logging.Logger) (Result, error) {
	res := Result{Round: round, Role: RoleChooser}

	m.setState(StatePreparingSecret)
	m.drain(notify.KindGuess)
	secret := m.source.Secret(m.max)
	res.Secret = secret
	logger.Debug("secret drawn")

	if err := m.link.Send(ctx, notify.Notification{Kind: notify.KindRoundStart, Payload: int(VerdictRoundStart)}); err != nil {
		return res, err
	}
	m.setState(StateActive)

	for {
		n, err := m.link.Recv(ctx, notify.KindGuess)
		if err != nil {
			return res, err
		}
		guess := n.Payload
		if guess <= 0 {
			// Bindings filter these already.
			continue
		}

		verdict := VerdictIncorrect
		if guess == secret {
			verdict = VerdictCorrect
		}
		if err := m.link.Send(ctx, notify.Notification{Kind: verdict.Kind(), Payload: int(verdict)}); err != nil {
			return res, err
		}
		if verdict == VerdictCorrect {
			m.state.MarkComplete()
		}

		attempt := m.state.Attempts()
		logger.Debug("answered guess", "guess", guess, "verdict", verdict.String(), "attempt", attempt)
		m.bus.Publish(event.NewVerdictSentEvent(int(m.peer), round, guess, verdict.String(), attempt))

		if verdict == VerdictCorrect {
			res.Attempts = attempt
			res.Solved = true
			return res, nil
		}
	}
}

func (m *Machine) guess(ctx context.Context, round int, logger *logging.Logger) (Result, error) {
	res := Result{Round: round, Role: RoleGuesser}

	m.setState(StateAwaitingRoundStart)
	m.drain(notify.KindCorrect, notify.KindIncorrect)

	if m.startDelay > 0 {
		timer := time.NewTimer(m.startDelay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return res, context.Cause(ctx)
		case <-timer.C:
		}
	}

	if _, err := m.link.Recv(ctx, notify.KindRoundStart); err != nil {
		return res, err
	}
	m.setState(StateActive)

	tried := make(map[int]bool, m.max)
	for {
		g := m.source.Guess(m.max, tried)
		tried[g] = true
		res.Guesses = append(res.Guesses, g)

		m.state.ExpectVerdict()
		if err := m.link.Send(ctx, notify.Notification{Kind: notify.KindGuess, Payload: g}); err != nil {
			return res, err
		}
		m.bus.Publish(event.NewGuessSentEvent(int(m.peer), round, len(res.Guesses), g))

		n, err := m.link.Recv(ctx, notify.KindCorrect, notify.KindIncorrect)
		if err != nil {
			return res, err
		}
		verdict, _ := VerdictOf(n.Kind)
		logger.Debug("verdict received", "guess", g, "verdict", verdict.String())
		m.bus.Publish(event.NewVerdictReceivedEvent(int(m.peer), round, g, verdict.String()))

		if verdict == VerdictCorrect {
			res.Attempts = m.state.Attempts()
			res.Solved = true
			return res, nil
		}
	}
}
