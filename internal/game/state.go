package game

import (
	"sync/atomic"

	"github.com/Iron-Ham/numduel/internal/event"
	"github.com/Iron-Ham/numduel/internal/notify"
)

// SharedRoundState is the per-peer round state written on the notification
// arrival path. It implements notify.Observer, so a Link reports every
// decoded arrival to it before the round loop sees the notification.
//
// Besides the arrival path, only two writers exist: the chooser marks the
// round complete when it issues Correct, and the guesser flags an
// outstanding guess before sending it. Begin clears everything between
// rounds.
type SharedRoundState struct {
	round       atomic.Int64
	complete    atomic.Bool
	terminated  atomic.Bool
	awaiting    atomic.Bool
	attempts    atomic.Int64
	lastPayload atomic.Int64
	strays      atomic.Int64
	discarded   atomic.Int64

	peer notify.PeerID
	bus  *event.Bus
}

var _ notify.Observer = (*SharedRoundState)(nil)

// StateOption configures a SharedRoundState.
type StateOption func(*SharedRoundState)

// WithEvents publishes discarded notifications on bus, attributed to peer.
func WithEvents(bus *event.Bus, peer notify.PeerID) StateOption {
	return func(s *SharedRoundState) {
		s.bus = bus
		s.peer = peer
	}
}

// NewSharedRoundState returns a cleared state for round 0.
func NewSharedRoundState(opts ...StateOption) *SharedRoundState {
	s := &SharedRoundState{}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Begin clears the state for the given round. The termination flag is kept:
// once the remote peer asked to stop, every later round is moot.
func (s *SharedRoundState) Begin(round int) {
	s.round.Store(int64(round))
	s.complete.Store(false)
	s.awaiting.Store(false)
	s.attempts.Store(0)
	s.lastPayload.Store(0)
	s.strays.Store(0)
	s.discarded.Store(0)
}

// Arrived records an inbound notification.
//
// A guess counts as an attempt until the round is complete. A verdict counts
// only while a guess is outstanding, which makes any verdict after Correct a
// no-op.
func (s *SharedRoundState) Arrived(n notify.Notification) {
	switch {
	case n.Kind == notify.KindTerminate:
		s.terminated.Store(true)
		return
	case n.Kind == notify.KindGuess:
		if n.Payload <= 0 || s.complete.Load() {
			s.strays.Add(1)
			return
		}
		s.lastPayload.Store(int64(n.Payload))
		s.attempts.Add(1)
	case n.Kind.IsVerdict():
		if s.complete.Load() || !s.awaiting.CompareAndSwap(true, false) {
			s.strays.Add(1)
			return
		}
		s.lastPayload.Store(int64(n.Payload))
		s.attempts.Add(1)
		if n.Kind == notify.KindCorrect {
			s.complete.Store(true)
		}
	}
}

// Discarded records a notification the link rejected.
func (s *SharedRoundState) Discarded(n notify.Notification, reason error) {
	s.discarded.Add(1)
	if s.bus != nil {
		s.bus.Publish(event.NewNotificationDiscardedEvent(
			int(s.peer), s.Round(), n.Kind.String(), n.Payload, reason.Error()))
	}
}

// ExpectVerdict flags a guess as outstanding. The guesser calls it just
// before sending the guess.
func (s *SharedRoundState) ExpectVerdict() {
	s.awaiting.Store(true)
}

// MarkComplete ends the round. The chooser calls it when it issues Correct.
func (s *SharedRoundState) MarkComplete() {
	s.complete.Store(true)
}

// Round returns the round index set by the last Begin.
func (s *SharedRoundState) Round() int { return int(s.round.Load()) }

// Complete reports whether the round's termination condition was observed.
func (s *SharedRoundState) Complete() bool { return s.complete.Load() }

// Terminated reports whether the remote peer asked this peer to stop.
func (s *SharedRoundState) Terminated() bool { return s.terminated.Load() }

// ResponsePending reports whether a guess is waiting for its verdict.
func (s *SharedRoundState) ResponsePending() bool { return s.awaiting.Load() }

// Attempts returns the number of counted guesses (chooser) or answered
// guesses (guesser) this round, including the correct one.
func (s *SharedRoundState) Attempts() int { return int(s.attempts.Load()) }

// LastPayload returns the payload of the last counted arrival.
func (s *SharedRoundState) LastPayload() int { return int(s.lastPayload.Load()) }

// Strays returns how many arrivals were ignored this round.
func (s *SharedRoundState) Strays() int { return int(s.strays.Load()) }

// DiscardedCount returns how many notifications the link rejected this round.
func (s *SharedRoundState) DiscardedCount() int { return int(s.discarded.Load()) }
