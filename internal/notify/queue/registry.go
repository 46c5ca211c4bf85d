// Package queue implements the mailbox-style notification binding: two
// globally named, bounded FIFO queues, one per direction, each carrying
// single-integer messages.
//
// A [Registry] creates, opens and unlinks named queues. [MemoryRegistry]
// keeps them in process on lock-free rings; [DirRegistry] keeps them on a
// filesystem so peers in different processes can share them.
package queue

import (
	"context"
	"fmt"
	"strings"

	"github.com/Iron-Ham/numduel/internal/errors"
)

// BindingName is used in logs and errors.
const BindingName = "queue"

// Default queue names and capacity.
const (
	DefaultNameAB   = "/queuea" // peer 1 -> peer 2
	DefaultNameBA   = "/queueb" // peer 2 -> peer 1
	DefaultCapacity = 10
)

// Registry manages named queues.
type Registry interface {
	// Create creates the named queue if it does not exist. Creating an
	// existing queue opens it and keeps its original capacity.
	Create(name string, capacity int) (Queue, error)
	// Open opens an existing queue. A missing queue is ErrChannelUnavailable.
	Open(name string) (Queue, error)
	// Unlink removes the queue. Open handles fail from then on.
	Unlink(name string) error
	// Exists reports whether the named queue is present.
	Exists(name string) bool
	// Purge drops every pending message and returns how many were dropped.
	// It must not run while a receiver is reading the queue.
	Purge(name string) (int, error)
}

// Queue is an open handle on a named queue.
type Queue interface {
	Name() string
	// TrySend enqueues v without blocking. A full or unlinked queue is
	// ErrChannelUnavailable.
	TrySend(v int) error
	// Receive blocks until a message is available or ctx is done.
	Receive(ctx context.Context) (int, error)
	// Len returns the number of pending messages.
	Len() int
	Close() error
}

// ValidateName checks the "/name" form shared with POSIX message queues.
func ValidateName(name string) error {
	if len(name) < 2 || !strings.HasPrefix(name, "/") || strings.Contains(name[1:], "/") {
		return errors.NewValidationError("queue name must be a slash followed by a name").
			WithField("transport.queue").WithValue(name)
	}
	return nil
}

func unavailable(name, msg string) *errors.ChannelError {
	return errors.NewChannelError(msg, errors.ErrChannelUnavailable).
		WithBinding(BindingName).WithChannel(name)
}

func closedErr(name string) *errors.ChannelError {
	return errors.NewChannelError("queue closed", errors.ErrChannelClosed).
		WithBinding(BindingName).WithChannel(name)
}

func fullErr(name string, capacity int) *errors.ChannelError {
	return unavailable(name, fmt.Sprintf("queue full (capacity %d)", capacity))
}
