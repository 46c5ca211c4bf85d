package queue

import (
	"context"
	"sync"

	"code.hybscloud.com/atomix"
	"code.hybscloud.com/iox"
	"code.hybscloud.com/lfq"
)

// MemoryRegistry keeps named queues in process. Each queue is a bounded
// lock-free SPSC ring, so every queue must have a single sender and a single
// receiver, which is exactly how the two peers use them.
type MemoryRegistry struct {
	mu     sync.Mutex
	queues map[string]*memQueue
}

// NewMemoryRegistry creates an empty registry.
func NewMemoryRegistry() *MemoryRegistry {
	return &MemoryRegistry{queues: make(map[string]*memQueue)}
}

type memQueue struct {
	name     string
	capacity uint32
	ring     lfq.SPSC[int]
	pending  atomix.Uint32
	unlinked atomix.Uint32
}

// Create creates or opens the named queue.
func (r *MemoryRegistry) Create(name string, capacity int) (Queue, error) {
	if err := ValidateName(name); err != nil {
		return nil, err
	}
	if capacity < 1 {
		return nil, unavailable(name, "capacity must be positive").WithRetryable(false)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	q, ok := r.queues[name]
	if !ok {
		q = &memQueue{name: name, capacity: uint32(capacity)}
		initRing(&q.ring, capacity)
		r.queues[name] = q
	}
	return &memHandle{q: q}, nil
}

// Open opens an existing queue.
func (r *MemoryRegistry) Open(name string) (Queue, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	q, ok := r.queues[name]
	if !ok {
		return nil, unavailable(name, "queue does not exist").WithRetryable(false)
	}
	return &memHandle{q: q}, nil
}

// Unlink removes the queue from the registry.
func (r *MemoryRegistry) Unlink(name string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	q, ok := r.queues[name]
	if !ok {
		return unavailable(name, "queue does not exist").WithRetryable(false)
	}
	q.unlinked.Store(1)
	delete(r.queues, name)
	return nil
}

// Exists reports whether the named queue is present.
func (r *MemoryRegistry) Exists(name string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.queues[name]
	return ok
}

// Purge drops every pending message.
func (r *MemoryRegistry) Purge(name string) (int, error) {
	r.mu.Lock()
	q, ok := r.queues[name]
	r.mu.Unlock()
	if !ok {
		return 0, unavailable(name, "queue does not exist").WithRetryable(false)
	}
	dropped := 0
	for {
		if _, err := q.ring.Dequeue(); err != nil {
			return dropped, nil
		}
		q.pending.Add(^uint32(0))
		dropped++
	}
}

// initRing sizes the ring in coarse power-of-two steps; the logical capacity
// is enforced by the pending counter.
func initRing(ring *lfq.SPSC[int], capacity int) {
	switch {
	case capacity <= 16:
		ring.Init(16)
	case capacity <= 256:
		ring.Init(256)
	case capacity <= 4096:
		ring.Init(4096)
	default:
		ring.Init(1 << 16)
	}
}

type memHandle struct {
	q      *memQueue
	closed atomix.Uint32
}

func (h *memHandle) Name() string { return h.q.name }

func (h *memHandle) TrySend(v int) error {
	q := h.q
	if h.closed.Load() != 0 {
		return closedErr(q.name)
	}
	if q.unlinked.Load() != 0 {
		return unavailable(q.name, "queue was unlinked").WithRetryable(false)
	}
	if n := q.pending.Add(1); n > q.capacity {
		q.pending.Add(^uint32(0))
		return fullErr(q.name, int(q.capacity))
	}
	if err := q.ring.Enqueue(&v); err != nil {
		q.pending.Add(^uint32(0))
		if iox.IsWouldBlock(err) {
			return fullErr(q.name, int(q.capacity))
		}
		return unavailable(q.name, err.Error())
	}
	return nil
}

func (h *memHandle) Receive(ctx context.Context) (int, error) {
	q := h.q
	var bo iox.Backoff
	for {
		if h.closed.Load() != 0 {
			return 0, closedErr(q.name)
		}
		v, err := q.ring.Dequeue()
		if err == nil {
			q.pending.Add(^uint32(0))
			return v, nil
		}
		if !iox.IsWouldBlock(err) {
			return 0, unavailable(q.name, err.Error())
		}
		if q.unlinked.Load() != 0 {
			return 0, closedErr(q.name)
		}
		if ctx.Err() != nil {
			return 0, context.Cause(ctx)
		}
		bo.Wait()
	}
}

func (h *memHandle) Len() int {
	return int(h.q.pending.Load())
}

func (h *memHandle) Close() error {
	h.closed.Store(1)
	return nil
}
