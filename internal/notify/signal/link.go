package signal

import (
	"context"

	"github.com/Iron-Ham/numduel/internal/errors"
	"github.com/Iron-Ham/numduel/internal/logging"
	"github.com/Iron-Ham/numduel/internal/notify"
)

// inboxSize bounds each per-kind inbox. A well-behaved partner never has more
// than one notification of a kind outstanding.
const inboxSize = 4

// Link adapts an Endpoint to notify.Link. Its handlers decode each arrival,
// report it to the observer, and push it onto a per-kind inbox with a
// non-blocking write; Recv waits on those inboxes.
type Link struct {
	ep       *Endpoint
	observer notify.Observer
	logger   *logging.Logger

	inbox   map[notify.Kind]chan notify.Notification
	arrived chan struct{}
}

var (
	_ notify.Link    = (*Link)(nil)
	_ notify.Drainer = (*Link)(nil)
)

// LinkOption configures a Link.
type LinkOption func(*Link)

// WithObserver sets the observer called on the listener goroutine.
func WithObserver(o notify.Observer) LinkOption {
	return func(l *Link) {
		if o != nil {
			l.observer = o
		}
	}
}

// NewLink registers handlers for every kind on ep and returns the Link.
func NewLink(ep *Endpoint, opts ...LinkOption) *Link {
	l := &Link{
		ep:       ep,
		observer: notify.NopObserver{},
		logger:   ep.logger,
		inbox:    make(map[notify.Kind]chan notify.Notification, len(notify.Kinds())),
		arrived:  make(chan struct{}, 1),
	}
	for _, opt := range opts {
		opt(l)
	}
	for _, kind := range notify.Kinds() {
		l.inbox[kind] = make(chan notify.Notification, inboxSize)
		ep.RegisterHandler(kind, l.handler(kind))
	}
	return l
}

func (l *Link) handler(kind notify.Kind) Handler {
	return func(payload int) {
		n := notify.Notification{Kind: kind, Payload: payload}

		// A zero or negative guess cannot be told apart from "nothing sent".
		if kind == notify.KindGuess && payload <= 0 {
			l.observer.Discarded(n, errors.NewProtocolError("non-positive guess", kind.String(), payload))
			return
		}

		l.observer.Arrived(n)

		select {
		case l.inbox[kind] <- n:
		default:
			l.logger.Warn("inbox full, dropping notification", "kind", kind.String(), "payload", payload)
			return
		}
		select {
		case l.arrived <- struct{}{}:
		default:
		}
	}
}

// Send delivers n to the opposite peer.
func (l *Link) Send(ctx context.Context, n notify.Notification) error {
	if err := ctx.Err(); err != nil {
		return context.Cause(ctx)
	}
	return l.ep.Send(n.Kind, n.Payload)
}

// Recv returns the next notification of one of kinds. A pending notification
// of a requested kind wins over a pending termination request, so a verdict
// that arrived first is still consumed.
func (l *Link) Recv(ctx context.Context, kinds ...notify.Kind) (notify.Notification, error) {
	for {
		if n, ok := l.poll(kinds); ok {
			return n, nil
		}
		select {
		case n := <-l.inbox[notify.KindTerminate]:
			l.logger.Debug("termination requested", "payload", n.Payload)
			return n, errors.ErrTerminated
		default:
		}

		select {
		case <-l.arrived:
		case <-l.ep.Done():
			return notify.Notification{}, errors.NewChannelError("endpoint closed", errors.ErrChannelClosed).
				WithBinding(BindingName).WithPeer(int(l.ep.peer))
		case <-ctx.Done():
			return notify.Notification{}, context.Cause(ctx)
		}
	}
}

func (l *Link) poll(kinds []notify.Kind) (notify.Notification, bool) {
	for _, k := range kinds {
		ch, ok := l.inbox[k]
		if !ok || k == notify.KindTerminate {
			continue
		}
		select {
		case n := <-ch:
			return n, true
		default:
		}
	}
	return notify.Notification{}, false
}

// Drain drops buffered notifications of the given kinds.
func (l *Link) Drain(kinds ...notify.Kind) int {
	dropped := 0
	for _, k := range kinds {
		ch, ok := l.inbox[k]
		if !ok {
			continue
		}
		for {
			select {
			case <-ch:
				dropped++
				continue
			default:
			}
			break
		}
	}
	return dropped
}

// Close closes the underlying endpoint.
func (l *Link) Close() error {
	return l.ep.Close()
}
