package peer

import (
	"context"
	"sync"

	"github.com/sourcegraph/conc/pool"

	"github.com/Iron-Ham/numduel/internal/config"
	"github.com/Iron-Ham/numduel/internal/errors"
	"github.com/Iron-Ham/numduel/internal/event"
	"github.com/Iron-Ham/numduel/internal/game"
	"github.com/Iron-Ham/numduel/internal/notify"
	"github.com/Iron-Ham/numduel/internal/notify/queue"
	"github.com/Iron-Ham/numduel/internal/notify/signal"
	"github.com/Iron-Ham/numduel/internal/round"
)

// handle lets peer 1 stop peer 2 and wait for it to exit. Peer 2's run
// context is cancelled with errors.ErrTerminated when stop is closed.
type handle struct {
	once sync.Once
	stop chan struct{}
	done chan struct{}
	// notify, when set, delivers the request in-band instead.
	notify func(ctx context.Context) error
}

func newHandle() *handle {
	return &handle{stop: make(chan struct{}), done: make(chan struct{})}
}

// bind derives peer 2's context from ctx.
func (h *handle) bind(ctx context.Context) (context.Context, context.CancelCauseFunc) {
	ctx, cancel := context.WithCancelCause(ctx)
	go func() {
		select {
		case <-h.stop:
			cancel(errors.ErrTerminated)
		case <-ctx.Done():
		}
	}()
	return ctx, cancel
}

// Terminate asks peer 2 to stop and waits until its run returns.
func (h *handle) Terminate(ctx context.Context) error {
	if h.notify != nil {
		if err := h.notify(ctx); err != nil && !errors.Is(err, errors.ErrDeliveryFailed) {
			return err
		}
	} else {
		h.once.Do(func() { close(h.stop) })
	}
	select {
	case <-h.done:
		return nil
	case <-ctx.Done():
		return context.Cause(ctx)
	}
}

// RunLocal runs both peers in this process. Invalid options are reported
// before any channel is created. With the queue binding both queues are
// unlinked once the peers are done, whatever the outcome.
func RunLocal(ctx context.Context, opts Options) (Outcome, error) {
	if err := opts.Validate(); err != nil {
		return Outcome{}, err
	}

	var (
		p1, p2 *Peer
		h      = newHandle()
		err    error
	)
	switch opts.Binding {
	case config.BindingSignal:
		p1, p2, err = signalPeers(&opts, h)
	case config.BindingQueue:
		reg := opts.Registry
		if reg == nil {
			reg = queue.NewMemoryRegistry()
		}
		defer unlinkQueues(reg, opts.queueNames(), &opts)
		p1, p2, err = queuePeers(&opts, reg)
	}
	if err != nil {
		return Outcome{}, err
	}
	defer p1.Close()
	defer p2.Close()

	opts.Bus.Publish(event.NewDuelStartedEvent(opts.Binding, opts.Max, opts.Rounds))
	return supervise(ctx, &opts, p1, p2, h)
}

// supervise runs both peers on a conc pool. The first fatal error cancels the
// other peer and is returned.
func supervise(ctx context.Context, opts *Options, p1, p2 *Peer, h *handle) (Outcome, error) {
	var out Outcome
	p := pool.New().WithContext(ctx).WithCancelOnError().WithFirstError()

	p.Go(func(ctx context.Context) error {
		s, err := p1.Run(ctx, opts.Rounds, round.WithTerminator(h))
		out.Peer1 = s
		return err
	})
	p.Go(func(ctx context.Context) error {
		defer close(h.done)
		ctx, cancel := h.bind(ctx)
		defer cancel(nil)
		s, err := p2.Run(ctx, opts.Rounds, round.WithAwaitTermination(p2.link))
		out.Peer2 = s
		return err
	})

	err := p.Wait()
	return out, err
}

func signalPeers(opts *Options, h *handle) (*Peer, *Peer, error) {
	router := signal.NewRouter(signal.WithLogger(opts.logger()))
	connect := func(id notify.PeerID) connectFunc {
		return func(observer notify.Observer) (notify.Link, error) {
			ep, err := router.Attach(id)
			if err != nil {
				return nil, err
			}
			return signal.NewLink(ep, signal.WithObserver(observer)), nil
		}
	}

	p1, err := newPeer(notify.Peer1, opts, connect(notify.Peer1))
	if err != nil {
		return nil, nil, err
	}
	p2, err := newPeer(notify.Peer2, opts, connect(notify.Peer2))
	if err != nil {
		_ = p1.Close()
		return nil, nil, err
	}

	h.notify = func(ctx context.Context) error {
		return p1.link.Send(ctx, notify.Notification{Kind: notify.KindTerminate})
	}
	return p1, p2, nil
}

func queuePeers(opts *Options, reg queue.Registry) (*Peer, *Peer, error) {
	names := opts.queueNames()
	connect := func(id notify.PeerID, create bool) connectFunc {
		return func(observer notify.Observer) (notify.Link, error) {
			return queue.Connect(reg, id, names, opts.capacity(), create,
				queue.WithRetry(opts.Retry),
				queue.WithObserver(observer),
				queue.WithLogger(opts.logger().WithPeer(int(id)).WithBinding(queue.BindingName)))
		}
	}

	delay := game.WithStartDelay(opts.GuesserStartDelay)
	p1, err := newPeer(notify.Peer1, opts, connect(notify.Peer1, true), delay)
	if err != nil {
		return nil, nil, err
	}
	p2, err := newPeer(notify.Peer2, opts, connect(notify.Peer2, false), delay)
	if err != nil {
		_ = p1.Close()
		return nil, nil, err
	}
	return p1, p2, nil
}

// unlinkQueues removes both named queues if they exist.
func unlinkQueues(reg queue.Registry, names queue.Names, opts *Options) {
	for _, name := range []string{names.AB, names.BA} {
		if !reg.Exists(name) {
			continue
		}
		if err := reg.Unlink(name); err != nil {
			opts.logger().Warn("failed to unlink queue", "queue", name, "error", err.Error())
			continue
		}
		opts.logger().Debug("queue unlinked", "queue", name)
	}
}
