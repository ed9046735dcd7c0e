package controller

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/franz/shelf/internal/store"
	"github.com/franz/shelf/internal/util"
)

// DefaultSaveInterval is the progress write debounce
const DefaultSaveInterval = 2 * time.Second

type pendingSave struct {
	book  *store.Book
	seq   uint64
	timer *time.Timer
}

// saveQueue coalesces book writes: at most one write per interval per
// book, carrying the latest snapshot. Writes are serialized and a write
// never replaces a newer one.
type saveQueue struct {
	interval time.Duration
	write    func(ctx context.Context, b *store.Book) error

	mu      sync.Mutex
	seq     uint64
	pending map[string]*pendingSave

	writeMu sync.Mutex
	written map[string]uint64
}

func newSaveQueue(interval time.Duration, write func(context.Context, *store.Book) error) *saveQueue {
	if interval <= 0 {
		interval = DefaultSaveInterval
	}
	return &saveQueue{
		interval: interval,
		write:    write,
		pending:  make(map[string]*pendingSave),
		written:  make(map[string]uint64),
	}
}

// Schedule records b as the latest state and starts the interval timer
// if none is running for it.
func (q *saveQueue) Schedule(b *store.Book) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.seq++
	if p, ok := q.pending[b.ID]; ok {
		p.book, p.seq = b, q.seq
		return
	}
	id := b.ID
	p := &pendingSave{book: b, seq: q.seq}
	p.timer = time.AfterFunc(q.interval, func() { q.fire(id) })
	q.pending[id] = p
}

func (q *saveQueue) fire(id string) {
	q.mu.Lock()
	p, ok := q.pending[id]
	if ok {
		delete(q.pending, id)
	}
	q.mu.Unlock()
	if ok {
		q.persist(context.Background(), p.book, p.seq)
	}
}

// SaveNow writes b immediately, superseding any pending save
func (q *saveQueue) SaveNow(ctx context.Context, b *store.Book) error {
	q.mu.Lock()
	q.seq++
	seq := q.seq
	if p, ok := q.pending[b.ID]; ok {
		p.timer.Stop()
		delete(q.pending, b.ID)
	}
	q.mu.Unlock()
	return q.persist(ctx, b, seq)
}

// Flush writes every pending save now
func (q *saveQueue) Flush(ctx context.Context) error {
	q.mu.Lock()
	batch := make([]*pendingSave, 0, len(q.pending))
	for id, p := range q.pending {
		p.timer.Stop()
		batch = append(batch, p)
		delete(q.pending, id)
	}
	q.mu.Unlock()

	var errs []error
	for _, p := range batch {
		if err := q.persist(ctx, p.book, p.seq); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Pending reports how many books await a write
func (q *saveQueue) Pending() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.pending)
}

func (q *saveQueue) persist(ctx context.Context, b *store.Book, seq uint64) error {
	q.writeMu.Lock()
	defer q.writeMu.Unlock()
	if q.written[b.ID] > seq {
		return nil
	}
	err := util.Retry(ctx, util.StoreRetryConfig(), func() error {
		return q.write(ctx, b)
	}, "save book")
	if err != nil {
		util.WarnLog("Failed to save progress for %s: %v", b.ID, err)
		return err
	}
	q.written[b.ID] = seq
	return nil
}
