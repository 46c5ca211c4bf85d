package event

import "time"

// Event is the interface that all events must implement.
type Event interface {
	// EventType returns a string identifier for this event type.
	// Convention: "category.action" (e.g., "round.started", "guess.sent")
	EventType() string

	// Timestamp returns when the event occurred.
	Timestamp() time.Time
}

// Event type identifiers.
const (
	TypeDuelStarted           = "duel.started"
	TypeDuelFinished          = "duel.finished"
	TypeRoundStarted          = "round.started"
	TypeRoundCompleted        = "round.completed"
	TypeGuessSent             = "guess.sent"
	TypeVerdictSent           = "verdict.sent"
	TypeVerdictReceived       = "verdict.received"
	TypeNotificationDiscarded = "notification.discarded"
	TypePeerTerminated        = "peer.terminated"
)

// baseEvent provides common fields for all events.
type baseEvent struct {
	eventType string
	timestamp time.Time
}

func (e baseEvent) EventType() string    { return e.eventType }
func (e baseEvent) Timestamp() time.Time { return e.timestamp }

func newBaseEvent(eventType string) baseEvent {
	return baseEvent{
		eventType: eventType,
		timestamp: time.Now(),
	}
}

// -----------------------------------------------------------------------------
// Duel Lifecycle Events
// -----------------------------------------------------------------------------

// DuelStartedEvent is emitted once by the controlling peer before round 0.
type DuelStartedEvent struct {
	baseEvent
	Binding string
	Max     int
	Rounds  int
}

// NewDuelStartedEvent creates a DuelStartedEvent.
func NewDuelStartedEvent(binding string, maxValue, rounds int) DuelStartedEvent {
	return DuelStartedEvent{
		baseEvent: newBaseEvent(TypeDuelStarted),
		Binding:   binding,
		Max:       maxValue,
		Rounds:    rounds,
	}
}

// DuelFinishedEvent is emitted by a peer when its round loop ends.
type DuelFinishedEvent struct {
	baseEvent
	Peer          int
	RoundsPlayed  int
	TotalAttempts int
	Duration      time.Duration
}

// NewDuelFinishedEvent creates a DuelFinishedEvent.
func NewDuelFinishedEvent(peer, roundsPlayed, totalAttempts int, duration time.Duration) DuelFinishedEvent {
	return DuelFinishedEvent{
		baseEvent:     newBaseEvent(TypeDuelFinished),
		Peer:          peer,
		RoundsPlayed:  roundsPlayed,
		TotalAttempts: totalAttempts,
		Duration:      duration,
	}
}

// PeerTerminatedEvent is emitted when a peer stops on a remote termination request.
type PeerTerminatedEvent struct {
	baseEvent
	Peer   int
	Reason string
}

// NewPeerTerminatedEvent creates a PeerTerminatedEvent.
func NewPeerTerminatedEvent(peer int, reason string) PeerTerminatedEvent {
	return PeerTerminatedEvent{
		baseEvent: newBaseEvent(TypePeerTerminated),
		Peer:      peer,
		Reason:    reason,
	}
}

// -----------------------------------------------------------------------------
// Round Events
// -----------------------------------------------------------------------------

// RoundStartedEvent is emitted by each peer when it takes its role for a round.
type RoundStartedEvent struct {
	baseEvent
	Peer  int
	Round int
	Role  string
}

// NewRoundStartedEvent creates a RoundStartedEvent.
func NewRoundStartedEvent(peer, round int, role string) RoundStartedEvent {
	return RoundStartedEvent{
		baseEvent: newBaseEvent(TypeRoundStarted),
		Peer:      peer,
		Round:     round,
		Role:      role,
	}
}

// RoundCompletedEvent is emitted by each peer when it observes the round's end.
type RoundCompletedEvent struct {
	baseEvent
	Peer     int
	Round    int
	Role     string
	Attempts int
	Duration time.Duration
}

// NewRoundCompletedEvent creates a RoundCompletedEvent.
func NewRoundCompletedEvent(peer, round int, role string, attempts int, duration time.Duration) RoundCompletedEvent {
	return RoundCompletedEvent{
		baseEvent: newBaseEvent(TypeRoundCompleted),
		Peer:      peer,
		Round:     round,
		Role:      role,
		Attempts:  attempts,
		Duration:  duration,
	}
}

// -----------------------------------------------------------------------------
// Exchange Events
// -----------------------------------------------------------------------------

// GuessSentEvent is emitted by the guesser after each guess is sent.
type GuessSentEvent struct {
	baseEvent
	Peer    int
	Round   int
	Attempt int // 1-based sequence within the round
	Value   int
}

// NewGuessSentEvent creates a GuessSentEvent.
func NewGuessSentEvent(peer, round, attempt, value int) GuessSentEvent {
	return GuessSentEvent{
		baseEvent: newBaseEvent(TypeGuessSent),
		Peer:      peer,
		Round:     round,
		Attempt:   attempt,
		Value:     value,
	}
}

// VerdictSentEvent is emitted by the chooser after answering a guess.
type VerdictSentEvent struct {
	baseEvent
	Peer    int
	Round   int
	Guess   int
	Verdict string
	Attempt int // chooser's count of valid guesses so far
}

// NewVerdictSentEvent creates a VerdictSentEvent.
func NewVerdictSentEvent(peer, round, guess int, verdict string, attempt int) VerdictSentEvent {
	return VerdictSentEvent{
		baseEvent: newBaseEvent(TypeVerdictSent),
		Peer:      peer,
		Round:     round,
		Guess:     guess,
		Verdict:   verdict,
		Attempt:   attempt,
	}
}

// VerdictReceivedEvent is emitted by the guesser when a verdict arrives.
type VerdictReceivedEvent struct {
	baseEvent
	Peer    int
	Round   int
	Guess   int
	Verdict string
}

// NewVerdictReceivedEvent creates a VerdictReceivedEvent.
func NewVerdictReceivedEvent(peer, round, guess int, verdict string) VerdictReceivedEvent {
	return VerdictReceivedEvent{
		baseEvent: newBaseEvent(TypeVerdictReceived),
		Peer:      peer,
		Round:     round,
		Guess:     guess,
		Verdict:   verdict,
	}
}

// NotificationDiscardedEvent is emitted when an inbound notification is dropped
// because it is outside the protocol's expected domain.
type NotificationDiscardedEvent struct {
	baseEvent
	Peer    int
	Round   int
	Kind    string
	Payload int
	Reason  string
}

// NewNotificationDiscardedEvent creates a NotificationDiscardedEvent.
func NewNotificationDiscardedEvent(peer, round int, kind string, payload int, reason string) NotificationDiscardedEvent {
	return NotificationDiscardedEvent{
		baseEvent: newBaseEvent(TypeNotificationDiscarded),
		Peer:      peer,
		Round:     round,
		Kind:      kind,
		Payload:   payload,
		Reason:    reason,
	}
}
