package peer

import (
	"context"
	"io"
	"os"
	"os/exec"
	"os/signal"
	"syscall"
	"time"

	"github.com/Iron-Ham/numduel/internal/errors"
	"github.com/Iron-Ham/numduel/internal/event"
	"github.com/Iron-Ham/numduel/internal/game"
	"github.com/Iron-Ham/numduel/internal/notify"
	"github.com/Iron-Ham/numduel/internal/notify/queue"
	"github.com/Iron-Ham/numduel/internal/round"
)

// childWaitDelay bounds how long a stopped child may keep its pipes open.
const childWaitDelay = 5 * time.Second

// Command describes the child process that plays peer 2.
type Command struct {
	Path   string
	Args   []string
	Env    []string
	Stdout io.Writer
	Stderr io.Writer
}

// child is a running peer 2 process.
type child struct {
	cmd    *exec.Cmd
	waitCh chan error
}

func startChild(ctx context.Context, c Command) (*child, error) {
	cmd := exec.CommandContext(ctx, c.Path, c.Args...)
	cmd.Env = c.Env
	cmd.Stdout = c.Stdout
	cmd.Stderr = c.Stderr
	cmd.Cancel = func() error { return cmd.Process.Signal(syscall.SIGTERM) }
	cmd.WaitDelay = childWaitDelay

	if err := cmd.Start(); err != nil {
		return nil, errors.Wrap(err, "start peer 2")
	}
	ch := &child{cmd: cmd, waitCh: make(chan error, 1)}
	go func() { ch.waitCh <- cmd.Wait() }()
	return ch, nil
}

// Terminate sends SIGTERM and waits for the child to exit. A child that
// already exited counts as stopped.
func (c *child) Terminate(ctx context.Context) error {
	if err := c.cmd.Process.Signal(syscall.SIGTERM); err != nil && !errors.Is(err, os.ErrProcessDone) {
		return errors.Wrap(err, "signal peer 2")
	}
	select {
	case err := <-c.waitCh:
		c.waitCh <- err
		if err != nil {
			return errors.Wrap(err, "peer 2 exited")
		}
		return nil
	case <-ctx.Done():
		return context.Cause(ctx)
	}
}

// RunSpawn runs peer 1 in this process and peer 2 as the child described by
// c, joined by the named queues in opts.Registry (which must be visible to
// the child, e.g. a queue.DirRegistry). Peer 1 creates the queues before
// starting the child and unlinks them when done.
func RunSpawn(ctx context.Context, opts Options, c Command) (round.Summary, error) {
	if err := opts.Validate(); err != nil {
		return round.Summary{}, err
	}
	if opts.Registry == nil {
		return round.Summary{}, errors.NewValidationError("spawned peers need a shared queue registry").
			WithField("transport.queue_dir")
	}
	names := opts.queueNames()
	defer unlinkQueues(opts.Registry, names, &opts)

	p1, err := newPeer(notify.Peer1, &opts, func(observer notify.Observer) (notify.Link, error) {
		return queue.Connect(opts.Registry, notify.Peer1, names, opts.capacity(), true,
			queue.WithRetry(opts.Retry),
			queue.WithObserver(observer),
			queue.WithLogger(opts.logger().WithPeer(1).WithBinding(queue.BindingName)))
	}, game.WithStartDelay(opts.GuesserStartDelay))
	if err != nil {
		return round.Summary{}, err
	}
	defer p1.Close()

	ch, err := startChild(ctx, c)
	if err != nil {
		return round.Summary{}, err
	}
	opts.logger().Info("spawned peer 2", "pid", ch.cmd.Process.Pid)

	opts.Bus.Publish(event.NewDuelStartedEvent(opts.Binding, opts.Max, opts.Rounds))
	summary, err := p1.Run(ctx, opts.Rounds, round.WithTerminator(ch))
	if err != nil {
		stopCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), childWaitDelay)
		defer cancel()
		if stopErr := ch.Terminate(stopCtx); stopErr != nil {
			opts.logger().Warn("peer 2 did not stop cleanly", "error", stopErr.Error())
		}
		return summary, err
	}
	return summary, nil
}

// RunRemote runs one non-controlling peer against queues that already exist
// in opts.Registry. SIGTERM or an interrupt ends the run as a remote
// termination request.
func RunRemote(ctx context.Context, opts Options, id notify.PeerID) (round.Summary, error) {
	if err := opts.Validate(); err != nil {
		return round.Summary{}, err
	}
	if id != notify.Peer2 {
		return round.Summary{}, errors.NewValidationError("only peer 2 runs remotely").
			WithField("peer").WithValue(int(id))
	}
	if opts.Registry == nil {
		return round.Summary{}, errors.NewValidationError("remote peer needs a shared queue registry").
			WithField("transport.queue_dir")
	}

	ctx, cancel := context.WithCancelCause(ctx)
	defer cancel(nil)
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGTERM, os.Interrupt)
	defer signal.Stop(sigCh)
	go func() {
		select {
		case sig := <-sigCh:
			opts.logger().Debug("received signal", "signal", sig.String())
			cancel(errors.ErrTerminated)
		case <-ctx.Done():
		}
	}()

	p, err := newPeer(id, &opts, func(observer notify.Observer) (notify.Link, error) {
		return queue.Connect(opts.Registry, id, opts.queueNames(), opts.capacity(), false,
			queue.WithRetry(opts.Retry),
			queue.WithObserver(observer),
			queue.WithLogger(opts.logger().WithPeer(int(id)).WithBinding(queue.BindingName)))
	}, game.WithStartDelay(opts.GuesserStartDelay))
	if err != nil {
		return round.Summary{}, err
	}
	defer p.Close()

	return p.Run(ctx, opts.Rounds, round.WithAwaitTermination(p.link))
}
