// Package notify defines the notification channel shared by both peers of a
// duel. A notification is a kind plus one integer payload. Concrete bindings
// live in the signal (interrupt-style) and queue (mailbox-style) subpackages;
// the state machine only ever talks to a [Link].
package notify

import (
	"context"
	"fmt"
)

// Kind identifies what a notification means.
type Kind uint8

const (
	// KindRoundStart tells the guesser that the secret is ready.
	KindRoundStart Kind = iota + 1
	// KindGuess carries a guess from the guesser to the chooser.
	KindGuess
	// KindCorrect answers a guess that matched the secret.
	KindCorrect
	// KindIncorrect answers a guess that did not match the secret.
	KindIncorrect
	// KindTerminate asks the receiving peer to stop.
	KindTerminate
)

// Kinds lists every kind in wire order.
func Kinds() []Kind {
	return []Kind{KindRoundStart, KindGuess, KindCorrect, KindIncorrect, KindTerminate}
}

// String returns the lower-case name of the kind.
func (k Kind) String() string {
	switch k {
	case KindRoundStart:
		return "round_start"
	case KindGuess:
		return "guess"
	case KindCorrect:
		return "correct"
	case KindIncorrect:
		return "incorrect"
	case KindTerminate:
		return "terminate"
	default:
		return fmt.Sprintf("kind(%d)", uint8(k))
	}
}

// Valid reports whether k is one of the defined kinds.
func (k Kind) Valid() bool {
	return k >= KindRoundStart && k <= KindTerminate
}

// IsVerdict reports whether k answers a guess.
func (k Kind) IsVerdict() bool {
	return k == KindCorrect || k == KindIncorrect
}

// PeerID identifies one of the two peers. Peer 1 is the controlling peer.
type PeerID int

const (
	Peer1 PeerID = 1
	Peer2 PeerID = 2
)

// Other returns the opposite peer.
func (p PeerID) Other() PeerID {
	if p == Peer1 {
		return Peer2
	}
	return Peer1
}

// Valid reports whether p names one of the two peers.
func (p PeerID) Valid() bool {
	return p == Peer1 || p == Peer2
}

func (p PeerID) String() string {
	return fmt.Sprintf("peer-%d", int(p))
}

// Notification is one message exchanged between the peers.
type Notification struct {
	Kind    Kind
	Payload int
}

func (n Notification) String() string {
	return fmt.Sprintf("%s(%d)", n.Kind, n.Payload)
}

// Link is one peer's endpoint of the notification channel. Send always
// targets the opposite peer. Recv blocks until a notification of one of the
// requested kinds arrives, the remote peer asks this peer to terminate, or ctx
// is done. Notifications are delivered in send order.
type Link interface {
	Send(ctx context.Context, n Notification) error
	Recv(ctx context.Context, kinds ...Kind) (Notification, error)
	Close() error
}

// Drainer is implemented by links that buffer notifications per kind and can
// drop anything left over for the given kinds. It returns the number dropped.
type Drainer interface {
	Drain(kinds ...Kind) int
}

// Observer sees every inbound notification on the arrival path, before the
// round loop receives it. Implementations must not block.
type Observer interface {
	Arrived(n Notification)
	Discarded(n Notification, reason error)
}

// NopObserver ignores everything.
type NopObserver struct{}

func (NopObserver) Arrived(Notification)          {}
func (NopObserver) Discarded(Notification, error) {}

// MultiObserver fans each callback out to every observer in order.
type MultiObserver []Observer

func (m MultiObserver) Arrived(n Notification) {
	for _, o := range m {
		o.Arrived(n)
	}
}

func (m MultiObserver) Discarded(n Notification, reason error) {
	for _, o := range m {
		o.Discarded(n, reason)
	}
}

// Contains reports whether k is in kinds.
func Contains(kinds []Kind, k Kind) bool {
	for _, want := range kinds {
		if want == k {
			return true
		}
	}
	return false
}
