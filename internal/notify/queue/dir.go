package queue

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/afero"

	"github.com/Iron-Ham/numduel/internal/errors"
	"github.com/Iron-Ham/numduel/internal/logging"
)

// DirRegistry keeps named queues as directories under a root. Each pending
// message is one protobuf-encoded file; senders write a temporary file and
// rename it into place so receivers never see a partial message. Receivers
// wake on fsnotify events when the registry sits on the OS filesystem, and
// poll otherwise.
type DirRegistry struct {
	fs           afero.Fs
	root         string
	pollInterval time.Duration
	watch        bool
	logger       *logging.Logger
}

// DirOption configures a DirRegistry.
type DirOption func(*DirRegistry)

// WithFs sets the filesystem. Tests use afero.NewMemMapFs().
func WithFs(fs afero.Fs) DirOption {
	return func(r *DirRegistry) {
		r.fs = fs
		_, r.watch = fs.(*afero.OsFs)
	}
}

// WithPollInterval sets how often receivers rescan a queue when no
// filesystem event arrives.
func WithPollInterval(d time.Duration) DirOption {
	return func(r *DirRegistry) {
		if d > 0 {
			r.pollInterval = d
		}
	}
}

// WithDirLogger sets the registry logger.
func WithDirLogger(logger *logging.Logger) DirOption {
	return func(r *DirRegistry) {
		if logger != nil {
			r.logger = logger
		}
	}
}

// NewDirRegistry creates a registry rooted at root on the OS filesystem
// unless WithFs says otherwise.
func NewDirRegistry(root string, opts ...DirOption) *DirRegistry {
	r := &DirRegistry{
		fs:           afero.NewOsFs(),
		root:         root,
		pollInterval: 25 * time.Millisecond,
		watch:        true,
		logger:       logging.NopLogger(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Root returns the directory holding the queues.
func (r *DirRegistry) Root() string {
	return r.root
}

func (r *DirRegistry) dir(name string) string {
	return filepath.Join(r.root, strings.TrimPrefix(name, "/"))
}

// Create creates or opens the named queue.
func (r *DirRegistry) Create(name string, capacity int) (Queue, error) {
	if err := ValidateName(name); err != nil {
		return nil, err
	}
	if capacity < 1 {
		return nil, unavailable(name, "capacity must be positive").WithRetryable(false)
	}

	dir := r.dir(name)
	if err := r.fs.MkdirAll(dir, 0o755); err != nil {
		return nil, errors.NewChannelError("create queue directory", err).
			WithBinding(BindingName).WithChannel(name)
	}

	metaPath := filepath.Join(dir, metaFile)
	if ok, _ := afero.Exists(r.fs, metaPath); !ok {
		buf, err := encodeMeta(&meta{Capacity: int64(capacity), CreatedUnix: time.Now().UnixNano()})
		if err != nil {
			return nil, err
		}
		if err := r.writeAtomic(dir, metaPath, buf); err != nil {
			return nil, errors.NewChannelError("write queue meta", err).
				WithBinding(BindingName).WithChannel(name)
		}
		r.logger.Debug("queue created", "queue", name, "capacity", capacity, "dir", dir)
	}
	return r.Open(name)
}

// Open opens an existing queue.
func (r *DirRegistry) Open(name string) (Queue, error) {
	if err := ValidateName(name); err != nil {
		return nil, err
	}
	dir := r.dir(name)
	buf, err := afero.ReadFile(r.fs, filepath.Join(dir, metaFile))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, unavailable(name, "queue does not exist").WithRetryable(false)
		}
		return nil, errors.NewChannelError("read queue meta", err).
			WithBinding(BindingName).WithChannel(name)
	}
	m, err := decodeMeta(buf)
	if err != nil {
		return nil, errors.NewChannelError("corrupt queue meta", err).
			WithBinding(BindingName).WithChannel(name)
	}
	return &dirQueue{
		reg:      r,
		name:     name,
		dir:      dir,
		capacity: int(m.Capacity),
		closed:   make(chan struct{}),
	}, nil
}

// Unlink removes the queue directory and any pending messages.
func (r *DirRegistry) Unlink(name string) error {
	if !r.Exists(name) {
		return unavailable(name, "queue does not exist").WithRetryable(false)
	}
	if err := r.fs.RemoveAll(r.dir(name)); err != nil {
		return errors.NewChannelError("unlink queue", err).
			WithBinding(BindingName).WithChannel(name)
	}
	r.logger.Debug("queue unlinked", "queue", name)
	return nil
}

// Purge removes pending messages and leftover temporary files from the
// named queue, returning how many messages were dropped. A run that died
// before unlinking its queues leaves such files behind.
func (r *DirRegistry) Purge(name string) (int, error) {
	if !r.Exists(name) {
		return 0, unavailable(name, "queue does not exist").WithRetryable(false)
	}
	dir := r.dir(name)
	infos, err := afero.ReadDir(r.fs, dir)
	if err != nil {
		return 0, errors.NewChannelError("list queue", err).WithBinding(BindingName).WithChannel(name)
	}
	dropped := 0
	for _, info := range infos {
		_, isMsg := parseMsgName(info.Name())
		if !isMsg && !strings.HasPrefix(info.Name(), tmpPrefix) {
			continue
		}
		if err := r.fs.Remove(filepath.Join(dir, info.Name())); err != nil && !os.IsNotExist(err) {
			return dropped, errors.NewChannelError("purge queue", err).WithBinding(BindingName).WithChannel(name)
		}
		if isMsg {
			dropped++
		}
	}
	if dropped > 0 {
		r.logger.Info("purged stale messages", "queue", name, "count", dropped)
	}
	return dropped, nil
}

// Exists reports whether the named queue is present.
func (r *DirRegistry) Exists(name string) bool {
	ok, _ := afero.Exists(r.fs, filepath.Join(r.dir(name), metaFile))
	return ok
}

func (r *DirRegistry) writeAtomic(dir, path string, buf []byte) error {
	tmp := filepath.Join(dir, fmt.Sprintf("%s%d", tmpPrefix, time.Now().UnixNano()))
	if err := afero.WriteFile(r.fs, tmp, buf, 0o644); err != nil {
		return err
	}
	if err := r.fs.Rename(tmp, path); err != nil {
		_ = r.fs.Remove(tmp)
		return err
	}
	return nil
}

type dirQueue struct {
	reg      *DirRegistry
	name     string
	dir      string
	capacity int

	mu      sync.Mutex
	lastSeq int64

	watchOnce sync.Once
	watcher   *fsnotify.Watcher
	wake      chan struct{}

	closeOnce sync.Once
	closed    chan struct{}
}

func (q *dirQueue) Name() string { return q.name }

// pending lists message sequence numbers in order.
func (q *dirQueue) pending() ([]int64, error) {
	infos, err := afero.ReadDir(q.reg.fs, q.dir)
	if err != nil {
		return nil, err
	}
	seqs := make([]int64, 0, len(infos))
	for _, info := range infos {
		if seq, ok := parseMsgName(info.Name()); ok {
			seqs = append(seqs, seq)
		}
	}
	sort.Slice(seqs, func(i, j int) bool { return seqs[i] < seqs[j] })
	return seqs, nil
}

func (q *dirQueue) isClosed() bool {
	select {
	case <-q.closed:
		return true
	default:
		return false
	}
}

func (q *dirQueue) TrySend(v int) error {
	if q.isClosed() {
		return closedErr(q.name)
	}

	q.mu.Lock()
	defer q.mu.Unlock()

	seqs, err := q.pending()
	if err != nil {
		if os.IsNotExist(err) {
			return unavailable(q.name, "queue was unlinked").WithRetryable(false)
		}
		return errors.NewChannelError("list queue", err).WithBinding(BindingName).WithChannel(q.name)
	}
	if len(seqs) >= q.capacity {
		return fullErr(q.name, q.capacity)
	}

	seq := q.lastSeq + 1
	if n := len(seqs); n > 0 && seqs[n-1] >= seq {
		seq = seqs[n-1] + 1
	}
	buf, err := encodeRecord(&record{Seq: seq, Value: int64(v), SentUnix: time.Now().UnixNano()})
	if err != nil {
		return err
	}
	if err := q.reg.writeAtomic(q.dir, filepath.Join(q.dir, msgName(seq)), buf); err != nil {
		return errors.NewChannelError("write message", err).WithBinding(BindingName).WithChannel(q.name)
	}
	q.lastSeq = seq
	return nil
}

// take removes and returns the oldest message, if any.
func (q *dirQueue) take() (int, bool, error) {
	seqs, err := q.pending()
	if err != nil {
		if os.IsNotExist(err) {
			return 0, false, closedErr(q.name)
		}
		return 0, false, errors.NewChannelError("list queue", err).WithBinding(BindingName).WithChannel(q.name)
	}
	if len(seqs) == 0 {
		return 0, false, nil
	}

	path := filepath.Join(q.dir, msgName(seqs[0]))
	buf, err := afero.ReadFile(q.reg.fs, path)
	if err != nil {
		return 0, false, errors.NewChannelError("read message", err).WithBinding(BindingName).WithChannel(q.name)
	}
	if err := q.reg.fs.Remove(path); err != nil {
		return 0, false, errors.NewChannelError("remove message", err).WithBinding(BindingName).WithChannel(q.name)
	}
	rec, err := decodeRecord(buf)
	if err != nil {
		q.reg.logger.Warn("dropping corrupt message", "queue", q.name, "seq", seqs[0], "error", err.Error())
		return 0, false, nil
	}
	return int(rec.Value), true, nil
}

// watch starts the queue's fsnotify watcher on first use. The returned
// channel is nil when the registry does not watch, so Receive polls.
func (q *dirQueue) watch() <-chan struct{} {
	q.watchOnce.Do(func() {
		if !q.reg.watch {
			return
		}
		watcher, err := fsnotify.NewWatcher()
		if err != nil {
			q.reg.logger.Debug("falling back to polling", "queue", q.name, "error", err.Error())
			return
		}
		if err := watcher.Add(q.dir); err != nil {
			_ = watcher.Close()
			q.reg.logger.Debug("falling back to polling", "queue", q.name, "error", err.Error())
			return
		}
		q.watcher = watcher
		q.wake = make(chan struct{}, 1)
		go q.watchLoop(watcher)
	})
	return q.wake
}

// watchLoop turns new message files into wake-ups until the watcher closes.
func (q *dirQueue) watchLoop(watcher *fsnotify.Watcher) {
	for {
		select {
		case ev, ok := <-watcher.Events:
			if !ok {
				return
			}
			if ev.Op&(fsnotify.Create|fsnotify.Rename|fsnotify.Remove) == 0 {
				continue
			}
			select {
			case q.wake <- struct{}{}:
			default:
			}
		case err, ok := <-watcher.Errors:
			if !ok {
				return
			}
			// The ticker still rescans, so a lost event only costs latency.
			q.reg.logger.Debug("queue watcher error", "queue", q.name, "error", err.Error())
		}
	}
}

// Receive returns the oldest message, waiting for one if the queue is empty.
// A message that is already waiting when ctx ends or the handle closes is
// still delivered, so a verdict sent just before a stop request is not lost.
func (q *dirQueue) Receive(ctx context.Context) (int, error) {
	wake := q.watch()
	ticker := time.NewTicker(q.reg.pollInterval)
	defer ticker.Stop()

	for {
		if q.isClosed() {
			return 0, closedErr(q.name)
		}
		v, ok, err := q.take()
		if err != nil {
			return 0, err
		}
		if ok {
			return v, nil
		}

		select {
		case <-ctx.Done():
			return q.last(context.Cause(ctx))
		case <-q.closed:
			return q.last(closedErr(q.name))
		case <-wake:
		case <-ticker.C:
		}
	}
}

// last makes one final attempt to take a message before giving up with err.
func (q *dirQueue) last(err error) (int, error) {
	if v, ok, takeErr := q.take(); takeErr == nil && ok {
		return v, nil
	}
	return 0, err
}

func (q *dirQueue) Len() int {
	seqs, err := q.pending()
	if err != nil {
		return 0
	}
	return len(seqs)
}

func (q *dirQueue) Close() error {
	q.closeOnce.Do(func() { close(q.closed) })
	// A Receive after Close must not start a watcher.
	q.watchOnce.Do(func() {})
	if q.watcher != nil {
		return q.watcher.Close()
	}
	return nil
}
