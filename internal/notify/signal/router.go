// Package signal implements the interrupt-style notification binding.
//
// Every peer attaches an [Endpoint] to a shared [Router]. Sending to a peer
// queues the notification on the target endpoint and returns at once; a
// dedicated listener goroutine per endpoint then invokes the handler
// registered for that kind, one notification at a time, in arrival order.
// There is no capacity limit, so a send only fails when the target endpoint
// is gone.
//
// Go signals carry no payload, so the binding models real-time signals
// in-process rather than through os/signal.
package signal

import (
	"fmt"
	"sync"

	"github.com/Iron-Ham/numduel/internal/errors"
	"github.com/Iron-Ham/numduel/internal/logging"
	"github.com/Iron-Ham/numduel/internal/notify"
)

// BindingName is used in logs and errors.
const BindingName = "signal"

// Router connects the endpoints of both peers.
type Router struct {
	mu        sync.RWMutex
	endpoints map[notify.PeerID]*Endpoint
	logger    *logging.Logger
}

// Option configures a Router.
type Option func(*Router)

// WithLogger sets the router's logger. Endpoints inherit it.
func WithLogger(logger *logging.Logger) Option {
	return func(r *Router) {
		if logger != nil {
			r.logger = logger
		}
	}
}

// NewRouter creates a Router with no endpoints attached.
func NewRouter(opts ...Option) *Router {
	r := &Router{
		endpoints: make(map[notify.PeerID]*Endpoint),
		logger:    logging.NopLogger(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Attach creates the endpoint for peer and starts its listener goroutine.
// Attaching the same peer twice while the first endpoint is open fails.
func (r *Router) Attach(peer notify.PeerID) (*Endpoint, error) {
	if !peer.Valid() {
		return nil, errors.NewChannelError(fmt.Sprintf("invalid peer %d", int(peer)), errors.ErrDeliveryFailed).
			WithBinding(BindingName)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if existing, ok := r.endpoints[peer]; ok && !existing.isClosed() {
		return nil, errors.NewChannelError("endpoint already attached", errors.ErrChannelUnavailable).
			WithBinding(BindingName).WithPeer(int(peer)).WithRetryable(false)
	}

	ep := newEndpoint(r, peer, r.logger.WithPeer(int(peer)).WithBinding(BindingName))
	r.endpoints[peer] = ep
	go ep.listen()
	return ep, nil
}

// Send queues a notification for target. It fails with ErrDeliveryFailed when
// target has no open endpoint.
func (r *Router) Send(target notify.PeerID, kind notify.Kind, payload int) error {
	r.mu.RLock()
	ep, ok := r.endpoints[target]
	r.mu.RUnlock()

	if !ok || !ep.enqueue(notify.Notification{Kind: kind, Payload: payload}) {
		return errors.NewChannelError(fmt.Sprintf("cannot deliver %s", kind), errors.ErrDeliveryFailed).
			WithBinding(BindingName).WithPeer(int(target))
	}
	return nil
}

// detach removes ep if it is still the registered endpoint for its peer.
func (r *Router) detach(ep *Endpoint) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.endpoints[ep.peer] == ep {
		delete(r.endpoints, ep.peer)
	}
}
