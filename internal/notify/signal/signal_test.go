package signal

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Iron-Ham/numduel/internal/errors"
	"github.com/Iron-Ham/numduel/internal/notify"
)

func attachPair(t *testing.T) (*Router, *Endpoint, *Endpoint) {
	t.Helper()
	r := NewRouter()
	a, err := r.Attach(notify.Peer1)
	require.NoError(t, err)
	b, err := r.Attach(notify.Peer2)
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = a.Close()
		_ = b.Close()
	})
	return r, a, b
}

func TestRouter_AttachValidation(t *testing.T) {
	r := NewRouter()

	_, err := r.Attach(notify.PeerID(7))
	require.ErrorIs(t, err, errors.ErrDeliveryFailed)

	ep, err := r.Attach(notify.Peer1)
	require.NoError(t, err)

	_, err = r.Attach(notify.Peer1)
	require.Error(t, err, "second attach of an open endpoint should fail")
	assert.True(t, errors.IsFatal(err))

	require.NoError(t, ep.Close())
	<-ep.Done()

	again, err := r.Attach(notify.Peer1)
	require.NoError(t, err, "reattach after close should succeed")
	require.NoError(t, again.Close())
}

func TestEndpoint_HandlersRunSeriallyInOrder(t *testing.T) {
	_, a, b := attachPair(t)

	var mu sync.Mutex
	var got []int
	running := 0
	overlap := false
	done := make(chan struct{})

	b.RegisterHandler(notify.KindGuess, func(payload int) {
		mu.Lock()
		running++
		if running > 1 {
			overlap = true
		}
		mu.Unlock()

		time.Sleep(time.Millisecond)

		mu.Lock()
		running--
		got = append(got, payload)
		if len(got) == 20 {
			close(done)
		}
		mu.Unlock()
	})

	for i := 1; i <= 20; i++ {
		require.NoError(t, a.Send(notify.KindGuess, i))
	}

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("handlers did not run")
	}

	mu.Lock()
	defer mu.Unlock()
	assert.False(t, overlap, "handlers must not run concurrently")
	for i, v := range got {
		assert.Equal(t, i+1, v, "delivery out of order")
	}
}

func TestRouter_SendToClosedEndpointFails(t *testing.T) {
	_, a, b := attachPair(t)

	require.NoError(t, b.Close())

	err := a.Send(notify.KindGuess, 3)
	require.ErrorIs(t, err, errors.ErrDeliveryFailed)
	assert.True(t, errors.IsFatal(err))

	var chErr *errors.ChannelError
	require.True(t, errors.As(err, &chErr))
	assert.Equal(t, BindingName, chErr.Binding)
	assert.Equal(t, 2, chErr.Peer)
}

func TestEndpoint_HandlerPanicDoesNotStopListener(t *testing.T) {
	_, a, b := attachPair(t)

	got := make(chan int, 1)
	b.RegisterHandler(notify.KindIncorrect, func(int) { panic("boom") })
	b.RegisterHandler(notify.KindCorrect, func(p int) { got <- p })

	require.NoError(t, a.Send(notify.KindIncorrect, 0))
	require.NoError(t, a.Send(notify.KindCorrect, 9))

	select {
	case p := <-got:
		assert.Equal(t, 9, p)
	case <-time.After(5 * time.Second):
		t.Fatal("listener stopped after handler panic")
	}
}

type countingObserver struct {
	mu        sync.Mutex
	arrived   []notify.Notification
	discarded []notify.Notification
}

func (c *countingObserver) Arrived(n notify.Notification) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.arrived = append(c.arrived, n)
}

func (c *countingObserver) Discarded(n notify.Notification, reason error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if errors.Is(reason, errors.ErrProtocolViolation) {
		c.discarded = append(c.discarded, n)
	}
}

func (c *countingObserver) counts() (int, int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.arrived), len(c.discarded)
}

func TestLink_SendRecv(t *testing.T) {
	_, a, b := attachPair(t)
	obs := &countingObserver{}
	la := NewLink(a)
	lb := NewLink(b, WithObserver(obs))
	ctx := context.Background()

	require.NoError(t, la.Send(ctx, notify.Notification{Kind: notify.KindRoundStart}))
	n, err := lb.Recv(ctx, notify.KindRoundStart)
	require.NoError(t, err)
	assert.Equal(t, notify.KindRoundStart, n.Kind)

	require.NoError(t, lb.Send(ctx, notify.Notification{Kind: notify.KindGuess, Payload: 5}))
	n, err = la.Recv(ctx, notify.KindGuess)
	require.NoError(t, err)
	assert.Equal(t, 5, n.Payload)

	require.NoError(t, la.Send(ctx, notify.Notification{Kind: notify.KindIncorrect}))
	n, err = lb.Recv(ctx, notify.KindCorrect, notify.KindIncorrect)
	require.NoError(t, err)
	assert.Equal(t, notify.KindIncorrect, n.Kind)

	arrived, _ := obs.counts()
	assert.Equal(t, 2, arrived)
}

func TestLink_NonPositiveGuessDiscarded(t *testing.T) {
	_, a, b := attachPair(t)
	obs := &countingObserver{}
	lb := NewLink(b, WithObserver(obs))
	ctx := context.Background()

	require.NoError(t, a.Send(notify.KindGuess, 0))
	require.NoError(t, a.Send(notify.KindGuess, -3))
	require.NoError(t, a.Send(notify.KindGuess, 2))

	n, err := lb.Recv(ctx, notify.KindGuess)
	require.NoError(t, err)
	assert.Equal(t, 2, n.Payload, "sentinel payloads must never reach the round loop")

	arrived, discarded := obs.counts()
	assert.Equal(t, 1, arrived)
	assert.Equal(t, 2, discarded)
}

func TestLink_TerminateWhileSuspended(t *testing.T) {
	_, a, b := attachPair(t)
	lb := NewLink(b)

	errCh := make(chan error, 1)
	go func() {
		_, err := lb.Recv(context.Background(), notify.KindGuess)
		errCh <- err
	}()

	time.Sleep(10 * time.Millisecond)
	require.NoError(t, a.Send(notify.KindTerminate, 0))

	select {
	case err := <-errCh:
		require.ErrorIs(t, err, errors.ErrTerminated)
	case <-time.After(5 * time.Second):
		t.Fatal("Recv did not honor termination")
	}
}

func TestLink_PendingVerdictWinsOverTerminate(t *testing.T) {
	_, a, b := attachPair(t)
	lb := NewLink(b)
	ctx := context.Background()

	require.NoError(t, a.Send(notify.KindCorrect, 0))
	require.NoError(t, a.Send(notify.KindTerminate, 0))

	require.Eventually(t, func() bool {
		return len(lb.inbox[notify.KindTerminate]) == 1
	}, 5*time.Second, time.Millisecond)

	n, err := lb.Recv(ctx, notify.KindCorrect, notify.KindIncorrect)
	require.NoError(t, err)
	assert.Equal(t, notify.KindCorrect, n.Kind)

	_, err = lb.Recv(ctx, notify.KindRoundStart)
	require.ErrorIs(t, err, errors.ErrTerminated)
}

func TestLink_RecvHonorsContext(t *testing.T) {
	_, _, b := attachPair(t)
	lb := NewLink(b)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := lb.Recv(ctx, notify.KindRoundStart)
	require.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestLink_RecvAfterCloseFails(t *testing.T) {
	_, _, b := attachPair(t)
	lb := NewLink(b)
	require.NoError(t, lb.Close())

	_, err := lb.Recv(context.Background(), notify.KindRoundStart)
	require.ErrorIs(t, err, errors.ErrChannelClosed)
}

func TestLink_Drain(t *testing.T) {
	_, a, b := attachPair(t)
	lb := NewLink(b)

	require.NoError(t, a.Send(notify.KindIncorrect, 0))
	require.NoError(t, a.Send(notify.KindIncorrect, 0))
	require.NoError(t, a.Send(notify.KindRoundStart, 0))

	require.Eventually(t, func() bool {
		return len(lb.inbox[notify.KindRoundStart]) == 1
	}, 5*time.Second, time.Millisecond)

	assert.Equal(t, 2, lb.Drain(notify.KindCorrect, notify.KindIncorrect))

	n, err := lb.Recv(context.Background(), notify.KindRoundStart)
	require.NoError(t, err)
	assert.Equal(t, notify.KindRoundStart, n.Kind)
}
