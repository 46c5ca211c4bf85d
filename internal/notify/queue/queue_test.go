package queue

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Iron-Ham/numduel/internal/errors"
	"github.com/Iron-Ham/numduel/internal/notify"
)

// registries returns one instance of every Registry implementation.
func registries(t *testing.T) map[string]Registry {
	t.Helper()
	return map[string]Registry{
		"memory":  NewMemoryRegistry(),
		"dir-mem": NewDirRegistry("/queues", WithFs(afero.NewMemMapFs()), WithPollInterval(time.Millisecond)),
		"dir-os":  NewDirRegistry(t.TempDir(), WithPollInterval(5*time.Millisecond)),
	}
}

func TestValidateName(t *testing.T) {
	tests := []struct {
		name  string
		input string
		valid bool
	}{
		{"default a", "/queuea", true},
		{"default b", "/queueb", true},
		{"missing slash", "queuea", false},
		{"slash only", "/", false},
		{"empty", "", false},
		{"nested", "/a/b", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateName(tt.input)
			if tt.valid {
				assert.NoError(t, err)
				return
			}
			require.ErrorIs(t, err, errors.ErrInvalidConfiguration)
		})
	}
}

func TestRegistry_FIFOAndCapacity(t *testing.T) {
	for name, reg := range registries(t) {
		t.Run(name, func(t *testing.T) {
			q, err := reg.Create("/fifo", 3)
			require.NoError(t, err)
			defer q.Close()

			require.NoError(t, q.TrySend(1))
			require.NoError(t, q.TrySend(0))
			require.NoError(t, q.TrySend(7))
			assert.Equal(t, 3, q.Len())

			err = q.TrySend(9)
			require.ErrorIs(t, err, errors.ErrChannelUnavailable)
			assert.True(t, errors.IsRetryable(err), "a full queue is transient")

			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			for _, want := range []int{1, 0, 7} {
				got, err := q.Receive(ctx)
				require.NoError(t, err)
				assert.Equal(t, want, got)
			}
			assert.Equal(t, 0, q.Len())
		})
	}
}

func TestRegistry_OpenMissing(t *testing.T) {
	for name, reg := range registries(t) {
		t.Run(name, func(t *testing.T) {
			assert.False(t, reg.Exists("/nope"))
			_, err := reg.Open("/nope")
			require.ErrorIs(t, err, errors.ErrChannelUnavailable)
			assert.True(t, errors.IsFatal(err), "a missing queue is not worth retrying")
		})
	}
}

func TestRegistry_CreateKeepsCapacity(t *testing.T) {
	for name, reg := range registries(t) {
		t.Run(name, func(t *testing.T) {
			first, err := reg.Create("/keep", 1)
			require.NoError(t, err)
			defer first.Close()

			second, err := reg.Create("/keep", 5)
			require.NoError(t, err)
			defer second.Close()

			require.NoError(t, first.TrySend(4))
			require.ErrorIs(t, second.TrySend(5), errors.ErrChannelUnavailable)
		})
	}
}

func TestRegistry_UnlinkWakesReceiver(t *testing.T) {
	for name, reg := range registries(t) {
		t.Run(name, func(t *testing.T) {
			if name == "memory" {
				skipRace(t)
			}
			q, err := reg.Create("/gone", 2)
			require.NoError(t, err)
			defer q.Close()
			assert.True(t, reg.Exists("/gone"))

			errCh := make(chan error, 1)
			go func() {
				_, err := q.Receive(context.Background())
				errCh <- err
			}()

			time.Sleep(20 * time.Millisecond)
			require.NoError(t, reg.Unlink("/gone"))
			assert.False(t, reg.Exists("/gone"))

			select {
			case err := <-errCh:
				require.ErrorIs(t, err, errors.ErrChannelClosed)
			case <-time.After(5 * time.Second):
				t.Fatal("receiver not woken by unlink")
			}

			err = q.TrySend(1)
			require.Error(t, err)
			assert.True(t, errors.IsFatal(err))

			require.ErrorIs(t, reg.Unlink("/gone"), errors.ErrChannelUnavailable)
		})
	}
}

func TestRegistry_ReceiveHonorsContext(t *testing.T) {
	for name, reg := range registries(t) {
		t.Run(name, func(t *testing.T) {
			q, err := reg.Create("/idle", 1)
			require.NoError(t, err)
			defer q.Close()

			cause := errors.New("stop")
			ctx, cancel := context.WithCancelCause(context.Background())
			go func() {
				time.Sleep(10 * time.Millisecond)
				cancel(cause)
			}()

			_, err = q.Receive(ctx)
			require.ErrorIs(t, err, cause)
		})
	}
}

func TestRegistry_ClosedHandle(t *testing.T) {
	for name, reg := range registries(t) {
		t.Run(name, func(t *testing.T) {
			q, err := reg.Create("/closed", 1)
			require.NoError(t, err)
			require.NoError(t, q.Close())

			require.ErrorIs(t, q.TrySend(1), errors.ErrChannelClosed)
			_, err = q.Receive(context.Background())
			require.ErrorIs(t, err, errors.ErrChannelClosed)
		})
	}
}

func TestRegistry_ConcurrentProducerConsumer(t *testing.T) {
	for name, reg := range registries(t) {
		t.Run(name, func(t *testing.T) {
			if name == "memory" {
				skipRace(t)
			}
			tx, err := reg.Create("/stream", 4)
			require.NoError(t, err)
			rx, err := reg.Open("/stream")
			require.NoError(t, err)
			defer tx.Close()
			defer rx.Close()

			const n = 50
			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()

			var wg sync.WaitGroup
			wg.Go(func() {
				for i := 1; i <= n; i++ {
					err := notify.SendWithRetry(ctx, notify.RetryPolicy{Attempts: 1000, Backoff: time.Millisecond, MaxBackoff: 5 * time.Millisecond}, func() error {
						return tx.TrySend(i)
					})
					if err != nil {
						return
					}
				}
			})

			for want := 1; want <= n; want++ {
				got, err := rx.Receive(ctx)
				require.NoError(t, err)
				require.Equal(t, want, got)
			}
			wg.Wait()
		})
	}
}

func TestRecordRoundTrip(t *testing.T) {
	buf, err := encodeRecord(&record{Seq: 42, Value: 0, SentUnix: 1700000000})
	require.NoError(t, err)
	rec, err := decodeRecord(buf)
	require.NoError(t, err)
	assert.Equal(t, int64(42), rec.Seq)
	assert.Equal(t, int64(0), rec.Value)
}

func TestMsgName(t *testing.T) {
	name := msgName(17)
	assert.Equal(t, "m-00000000000000000017.msg", name)
	seq, ok := parseMsgName(name)
	require.True(t, ok)
	assert.Equal(t, int64(17), seq)

	_, ok = parseMsgName(metaFile)
	assert.False(t, ok)
	_, ok = parseMsgName(".tmp-123")
	assert.False(t, ok)
}

func TestDirRegistry_LayoutOnDisk(t *testing.T) {
	fs := afero.NewMemMapFs()
	reg := NewDirRegistry("/root", WithFs(fs))

	q, err := reg.Create("/queuea", 10)
	require.NoError(t, err)
	defer q.Close()
	require.NoError(t, q.TrySend(5))

	ok, err := afero.Exists(fs, "/root/queuea/queue.meta")
	require.NoError(t, err)
	assert.True(t, ok)

	infos, err := afero.ReadDir(fs, "/root/queuea")
	require.NoError(t, err)
	var msgs int
	for _, info := range infos {
		if _, ok := parseMsgName(info.Name()); ok {
			msgs++
		}
	}
	assert.Equal(t, 1, msgs)
}

func TestNames(t *testing.T) {
	names := DefaultNames()
	require.NoError(t, names.Validate())

	out, in := names.For(notify.Peer1)
	assert.Equal(t, "/queuea", out)
	assert.Equal(t, "/queueb", in)

	out, in = names.For(notify.Peer2)
	assert.Equal(t, "/queueb", out)
	assert.Equal(t, "/queuea", in)

	require.ErrorIs(t, Names{AB: "/same", BA: "/same"}.Validate(), errors.ErrInvalidConfiguration)
}

type recordingObserver struct {
	mu        sync.Mutex
	arrived   []notify.Notification
	discarded []int
}

func (r *recordingObserver) Arrived(n notify.Notification) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.arrived = append(r.arrived, n)
}

func (r *recordingObserver) Discarded(n notify.Notification, reason error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if errors.Is(reason, errors.ErrProtocolViolation) {
		r.discarded = append(r.discarded, n.Payload)
	}
}

func linkPair(t *testing.T, reg Registry, opts ...LinkOption) (*Link, *Link) {
	t.Helper()
	names := DefaultNames()
	l1, err := Connect(reg, notify.Peer1, names, DefaultCapacity, true)
	require.NoError(t, err)
	l2, err := Connect(reg, notify.Peer2, names, DefaultCapacity, false, opts...)
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = l1.Close()
		_ = l2.Close()
	})
	return l1, l2
}

func TestLink_Exchange(t *testing.T) {
	skipRace(t)
	obs := &recordingObserver{}
	l1, l2 := linkPair(t, NewMemoryRegistry(), WithObserver(obs))
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	require.NoError(t, l1.Send(ctx, notify.Notification{Kind: notify.KindRoundStart}))
	n, err := l2.Recv(ctx, notify.KindRoundStart)
	require.NoError(t, err)
	assert.Equal(t, notify.KindRoundStart, n.Kind)

	require.NoError(t, l2.Send(ctx, notify.Notification{Kind: notify.KindGuess, Payload: 2}))
	n, err = l1.Recv(ctx, notify.KindGuess)
	require.NoError(t, err)
	assert.Equal(t, notify.Notification{Kind: notify.KindGuess, Payload: 2}, n)

	require.NoError(t, l1.Send(ctx, notify.Notification{Kind: notify.KindIncorrect}))
	require.NoError(t, l1.Send(ctx, notify.Notification{Kind: notify.KindCorrect}))
	n, err = l2.Recv(ctx, notify.KindCorrect, notify.KindIncorrect)
	require.NoError(t, err)
	assert.Equal(t, notify.KindIncorrect, n.Kind)
	n, err = l2.Recv(ctx, notify.KindCorrect, notify.KindIncorrect)
	require.NoError(t, err)
	assert.Equal(t, notify.KindCorrect, n.Kind)

	obs.mu.Lock()
	defer obs.mu.Unlock()
	assert.Len(t, obs.arrived, 3)
	assert.Empty(t, obs.discarded)
}

func TestLink_DiscardsUnexpectedValues(t *testing.T) {
	obs := &recordingObserver{}
	reg := NewMemoryRegistry()
	l1, _ := linkPair(t, reg)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	// Peer 1 receives on /queueb; write raw values directly.
	raw, err := reg.Open("/queueb")
	require.NoError(t, err)
	defer raw.Close()
	require.NoError(t, raw.TrySend(0))
	require.NoError(t, raw.TrySend(-4))
	require.NoError(t, raw.TrySend(3))

	l1.observer = obs
	n, err := l1.Recv(ctx, notify.KindGuess)
	require.NoError(t, err)
	assert.Equal(t, 3, n.Payload)

	obs.mu.Lock()
	defer obs.mu.Unlock()
	assert.Equal(t, []int{0, -4}, obs.discarded)
}

func TestLink_SendRejectsBadNotifications(t *testing.T) {
	l1, _ := linkPair(t, NewMemoryRegistry())
	ctx := context.Background()

	err := l1.Send(ctx, notify.Notification{Kind: notify.KindGuess, Payload: 0})
	require.ErrorIs(t, err, errors.ErrProtocolViolation)

	err = l1.Send(ctx, notify.Notification{Kind: notify.KindTerminate})
	require.ErrorIs(t, err, errors.ErrProtocolViolation)
}

func TestLink_FullQueueRetriesThenFails(t *testing.T) {
	reg := NewMemoryRegistry()
	out, err := reg.Create("/out", 1)
	require.NoError(t, err)
	in, err := reg.Create("/in", 1)
	require.NoError(t, err)

	l := NewLink(out, in, WithRetry(notify.RetryPolicy{Attempts: 2, Backoff: time.Millisecond}))
	defer l.Close()
	ctx := context.Background()

	require.NoError(t, l.Send(ctx, notify.Notification{Kind: notify.KindGuess, Payload: 1}))
	err = l.Send(ctx, notify.Notification{Kind: notify.KindGuess, Payload: 2})
	require.ErrorIs(t, err, errors.ErrChannelUnavailable)
	assert.True(t, errors.IsFatal(err), "exhausted retries must be fatal")
}

func TestConnect_OpenWithoutCreateFails(t *testing.T) {
	_, err := Connect(NewMemoryRegistry(), notify.Peer2, DefaultNames(), DefaultCapacity, false)
	require.ErrorIs(t, err, errors.ErrChannelUnavailable)
}

func TestRegistry_Purge(t *testing.T) {
	for name, reg := range registries(t) {
		t.Run(name, func(t *testing.T) {
			_, err := reg.Purge("/missing")
			require.ErrorIs(t, err, errors.ErrChannelUnavailable)

			q, err := reg.Create("/stale", 4)
			require.NoError(t, err)
			defer q.Close()
			require.NoError(t, q.TrySend(3))
			require.NoError(t, q.TrySend(5))

			n, err := reg.Purge("/stale")
			require.NoError(t, err)
			assert.Equal(t, 2, n)
			assert.Equal(t, 0, q.Len())

			n, err = reg.Purge("/stale")
			require.NoError(t, err)
			assert.Zero(t, n)

			require.NoError(t, q.TrySend(9))
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			v, err := q.Receive(ctx)
			require.NoError(t, err)
			assert.Equal(t, 9, v)
		})
	}
}

func TestConnect_CreateDropsStaleMessages(t *testing.T) {
	for name, reg := range registries(t) {
		t.Run(name, func(t *testing.T) {
			names := DefaultNames()
			// A previous run left a Correct verdict and a guess behind.
			for _, qn := range []string{names.AB, names.BA} {
				q, err := reg.Create(qn, DefaultCapacity)
				require.NoError(t, err)
				require.NoError(t, q.TrySend(1))
				require.NoError(t, q.Close())
			}

			l1, err := Connect(reg, notify.Peer1, names, DefaultCapacity, true)
			require.NoError(t, err)
			defer l1.Close()
			assert.Zero(t, l1.in.Len())
			assert.Zero(t, l1.out.Len())

			l2, err := Connect(reg, notify.Peer2, names, DefaultCapacity, false)
			require.NoError(t, err)
			defer l2.Close()

			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			require.NoError(t, l1.Send(ctx, notify.Notification{Kind: notify.KindRoundStart}))
			n, err := l2.Recv(ctx, notify.KindRoundStart)
			require.NoError(t, err)
			assert.Equal(t, notify.KindRoundStart, n.Kind)
		})
	}
}

func TestDirRegistry_ReceiveKeepsWaitingMessageOnCancel(t *testing.T) {
	regs := map[string]*DirRegistry{
		"mem": NewDirRegistry("/queues", WithFs(afero.NewMemMapFs()), WithPollInterval(time.Hour)),
		"os":  NewDirRegistry(t.TempDir(), WithPollInterval(time.Hour)),
	}
	for name, reg := range regs {
		t.Run(name, func(t *testing.T) {
			reg.watch = false
			rx, err := reg.Create("/verdict", 2)
			require.NoError(t, err)
			defer rx.Close()
			tx, err := reg.Open("/verdict")
			require.NoError(t, err)
			defer tx.Close()

			ctx, cancel := context.WithCancelCause(context.Background())
			type result struct {
				v   int
				err error
			}
			done := make(chan result, 1)
			go func() {
				v, err := rx.Receive(ctx)
				done <- result{v, err}
			}()

			// Let the receiver park with nothing to read, then deliver and
			// stop in the same breath, as a chooser does after its last verdict.
			time.Sleep(20 * time.Millisecond)
			require.NoError(t, tx.TrySend(7))
			cancel(errors.ErrTerminated)

			select {
			case r := <-done:
				require.NoError(t, r.err)
				assert.Equal(t, 7, r.v)
			case <-time.After(5 * time.Second):
				t.Fatal("receiver did not return")
			}

			_, err = rx.Receive(ctx)
			require.ErrorIs(t, err, errors.ErrTerminated)
		})
	}
}

func TestDirRegistry_WatcherLifecycle(t *testing.T) {
	reg := NewDirRegistry(t.TempDir(), WithPollInterval(time.Hour))
	rx, err := reg.Create("/watched", 8)
	require.NoError(t, err)
	tx, err := reg.Open("/watched")
	require.NoError(t, err)
	defer tx.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	// Every Receive shares one watcher; with an hour-long poll only
	// filesystem events can wake it.
	for i := 1; i <= 5; i++ {
		go func() {
			time.Sleep(5 * time.Millisecond)
			_ = tx.TrySend(i)
		}()
		v, err := rx.Receive(ctx)
		require.NoError(t, err)
		assert.Equal(t, i, v)
	}

	dq := rx.(*dirQueue)
	require.NotNil(t, dq.watcher)
	require.NoError(t, rx.Close())
	require.NoError(t, rx.Close())

	_, err = rx.Receive(ctx)
	require.ErrorIs(t, err, errors.ErrChannelClosed)
}
