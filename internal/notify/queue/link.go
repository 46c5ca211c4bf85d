package queue

import (
	"context"

	"github.com/Iron-Ham/numduel/internal/errors"
	"github.com/Iron-Ham/numduel/internal/logging"
	"github.com/Iron-Ham/numduel/internal/notify"
)

// Wire values on the verdict direction. Guesses travel as their own
// positive value.
const (
	wireIncorrect  = 0
	wireCorrect    = 1
	wireRoundStart = 2
)

// Names holds the two queue names, one per direction.
type Names struct {
	AB string // peer 1 -> peer 2
	BA string // peer 2 -> peer 1
}

// DefaultNames returns /queuea and /queueb.
func DefaultNames() Names {
	return Names{AB: DefaultNameAB, BA: DefaultNameBA}
}

// For returns the queue peer sends on and the queue it receives on.
func (n Names) For(peer notify.PeerID) (out, in string) {
	if peer == notify.Peer1 {
		return n.AB, n.BA
	}
	return n.BA, n.AB
}

// Validate checks both names and that they differ.
func (n Names) Validate() error {
	if err := ValidateName(n.AB); err != nil {
		return err
	}
	if err := ValidateName(n.BA); err != nil {
		return err
	}
	if n.AB == n.BA {
		return errors.NewValidationError("queue names must differ").
			WithField("transport.queue_b").WithValue(n.BA)
	}
	return nil
}

// Link adapts an outbound and an inbound queue to notify.Link.
type Link struct {
	out      Queue
	in       Queue
	retry    notify.RetryPolicy
	observer notify.Observer
	logger   *logging.Logger
}

var _ notify.Link = (*Link)(nil)

// LinkOption configures a Link.
type LinkOption func(*Link)

// WithRetry sets how Send reacts to a full queue.
func WithRetry(p notify.RetryPolicy) LinkOption {
	return func(l *Link) { l.retry = p }
}

// WithObserver sets the observer called for every decoded or discarded
// inbound message.
func WithObserver(o notify.Observer) LinkOption {
	return func(l *Link) {
		if o != nil {
			l.observer = o
		}
	}
}

// WithLogger sets the link logger.
func WithLogger(logger *logging.Logger) LinkOption {
	return func(l *Link) {
		if logger != nil {
			l.logger = logger
		}
	}
}

// NewLink creates a Link sending on out and receiving on in.
func NewLink(out, in Queue, opts ...LinkOption) *Link {
	l := &Link{
		out:      out,
		in:       in,
		retry:    notify.NoRetry,
		observer: notify.NopObserver{},
		logger:   logging.NopLogger(),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Connect opens both queues for peer and returns the Link. When create is
// set the queues are created if missing and emptied of stale messages.
func Connect(reg Registry, peer notify.PeerID, names Names, capacity int, create bool, opts ...LinkOption) (*Link, error) {
	outName, inName := names.For(peer)
	open := func(name string) (Queue, error) {
		if create {
			return reg.Create(name, capacity)
		}
		return reg.Open(name)
	}

	out, err := open(outName)
	if err != nil {
		return nil, err
	}
	in, err := open(inName)
	if err != nil {
		_ = out.Close()
		return nil, err
	}
	l := NewLink(out, in, opts...)
	if !create {
		return l, nil
	}

	// Messages left by an earlier duel would be read as this duel's traffic.
	for _, name := range []string{outName, inName} {
		n, err := reg.Purge(name)
		if err != nil {
			_ = l.Close()
			return nil, err
		}
		if n > 0 {
			l.logger.Debug("dropped stale messages", "queue", name, "count", n)
		}
	}
	return l, nil
}

// encode maps a notification to its single-integer wire form.
func encode(n notify.Notification) (int, error) {
	switch n.Kind {
	case notify.KindGuess:
		if n.Payload <= 0 {
			return 0, errors.NewProtocolError("guess must be positive", n.Kind.String(), n.Payload)
		}
		return n.Payload, nil
	case notify.KindRoundStart:
		return wireRoundStart, nil
	case notify.KindCorrect:
		return wireCorrect, nil
	case notify.KindIncorrect:
		return wireIncorrect, nil
	default:
		return 0, errors.NewProtocolError("kind not carried by queue binding", n.Kind.String(), n.Payload)
	}
}

// decode interprets v against the kinds the receiver expects.
func decode(v int, kinds []notify.Kind) (notify.Notification, bool) {
	if notify.Contains(kinds, notify.KindGuess) && v > 0 {
		return notify.Notification{Kind: notify.KindGuess, Payload: v}, true
	}
	var kind notify.Kind
	switch v {
	case wireRoundStart:
		kind = notify.KindRoundStart
	case wireCorrect:
		kind = notify.KindCorrect
	case wireIncorrect:
		kind = notify.KindIncorrect
	default:
		return notify.Notification{}, false
	}
	if !notify.Contains(kinds, kind) {
		return notify.Notification{}, false
	}
	return notify.Notification{Kind: kind, Payload: v}, true
}

// Send enqueues n on the outbound queue, retrying while the queue is full
// and the retry policy allows.
func (l *Link) Send(ctx context.Context, n notify.Notification) error {
	v, err := encode(n)
	if err != nil {
		return err
	}
	return notify.SendWithRetry(ctx, l.retry, func() error {
		err := l.out.TrySend(v)
		if err != nil && errors.IsRetryable(err) {
			l.logger.Debug("send deferred", "queue", l.out.Name(), "kind", n.Kind.String(), "error", err.Error())
		}
		return err
	})
}

// Recv receives messages until one decodes to a requested kind. Anything
// else is reported to the observer as a protocol violation and dropped.
func (l *Link) Recv(ctx context.Context, kinds ...notify.Kind) (notify.Notification, error) {
	for {
		v, err := l.in.Receive(ctx)
		if err != nil {
			return notify.Notification{}, err
		}
		n, ok := decode(v, kinds)
		if !ok {
			raw := notify.Notification{Payload: v}
			l.logger.Warn("discarding unexpected message", "queue", l.in.Name(), "value", v)
			l.observer.Discarded(raw, errors.NewProtocolError("unexpected message", "raw", v))
			continue
		}
		l.observer.Arrived(n)
		return n, nil
	}
}

// Close closes both queue handles. The queues themselves stay until unlinked.
func (l *Link) Close() error {
	return errors.Join(l.out.Close(), l.in.Close())
}
