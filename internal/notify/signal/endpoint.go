package signal

import (
	"fmt"
	"runtime/debug"
	"sync"

	"github.com/Iron-Ham/numduel/internal/logging"
	"github.com/Iron-Ham/numduel/internal/notify"
)

// Handler runs on the endpoint's listener goroutine for each delivered
// notification of the kind it was registered for. It must return promptly.
type Handler func(payload int)

// Endpoint is one peer's attachment to a Router.
type Endpoint struct {
	router *Router
	peer   notify.PeerID
	logger *logging.Logger

	mu       sync.Mutex
	pending  []notify.Notification
	handlers map[notify.Kind]Handler
	closed   bool

	wake chan struct{}
	done chan struct{}
}

func newEndpoint(r *Router, peer notify.PeerID, logger *logging.Logger) *Endpoint {
	return &Endpoint{
		router:   r,
		peer:     peer,
		logger:   logger,
		handlers: make(map[notify.Kind]Handler),
		wake:     make(chan struct{}, 1),
		done:     make(chan struct{}),
	}
}

// Peer returns the peer this endpoint belongs to.
func (e *Endpoint) Peer() notify.PeerID {
	return e.peer
}

// RegisterHandler installs h for kind, replacing any previous handler.
// Notifications of a kind with no handler are dropped.
func (e *Endpoint) RegisterHandler(kind notify.Kind, h Handler) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.handlers[kind] = h
}

// Send delivers a notification to the opposite peer.
func (e *Endpoint) Send(kind notify.Kind, payload int) error {
	return e.router.Send(e.peer.Other(), kind, payload)
}

// Done is closed once the listener goroutine has exited.
func (e *Endpoint) Done() <-chan struct{} {
	return e.done
}

// Close detaches the endpoint. Notifications still pending are dropped and
// later sends to this peer fail with a delivery error. The listener goroutine
// exits shortly after; Done reports when.
func (e *Endpoint) Close() error {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return nil
	}
	e.closed = true
	dropped := len(e.pending)
	e.pending = nil
	e.mu.Unlock()

	e.router.detach(e)
	e.signal()
	if dropped > 0 {
		e.logger.Debug("endpoint closed with pending notifications", "dropped", dropped)
	}
	return nil
}

func (e *Endpoint) isClosed() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.closed
}

// enqueue appends n to the pending list. It returns false once closed.
func (e *Endpoint) enqueue(n notify.Notification) bool {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return false
	}
	e.pending = append(e.pending, n)
	e.mu.Unlock()

	e.signal()
	return true
}

func (e *Endpoint) signal() {
	select {
	case e.wake <- struct{}{}:
	default:
	}
}

// listen delivers pending notifications one at a time until Close.
func (e *Endpoint) listen() {
	defer close(e.done)
	for range e.wake {
		for {
			n, h, ok, closed := e.next()
			if closed {
				return
			}
			if !ok {
				break
			}
			if h == nil {
				e.logger.Debug("no handler registered, dropping notification", "kind", n.Kind.String())
				continue
			}
			e.invoke(h, n)
		}
	}
}

func (e *Endpoint) next() (n notify.Notification, h Handler, ok, closed bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return n, nil, false, true
	}
	if len(e.pending) == 0 {
		return n, nil, false, false
	}
	n = e.pending[0]
	e.pending[0] = notify.Notification{}
	e.pending = e.pending[1:]
	return n, e.handlers[n.Kind], true, false
}

func (e *Endpoint) invoke(h Handler, n notify.Notification) {
	defer func() {
		if r := recover(); r != nil {
			e.logger.Error("notification handler panicked",
				"kind", n.Kind.String(),
				"panic", fmt.Sprint(r),
				"stack", string(debug.Stack()))
		}
	}()
	h(n.Payload)
}
