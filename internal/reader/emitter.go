package reader

import (
	"context"
	"sync"

	"github.com/franz/shelf/internal/meta"
)

const eventBuffer = 64

// emitter delivers events in call order and closes its channel once.
// A send blocked on a full channel is released by close.
type emitter struct {
	mu     sync.Mutex
	ch     chan Event
	done   chan struct{}
	once   sync.Once
	closed bool
}

func newEmitter() *emitter {
	return &emitter{ch: make(chan Event, eventBuffer), done: make(chan struct{})}
}

func (e *emitter) emit(ev Event) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return false
	}
	select {
	case e.ch <- ev:
		return true
	case <-e.done:
		return false
	}
}

func (e *emitter) close() {
	e.once.Do(func() {
		close(e.done)
		e.mu.Lock()
		e.closed = true
		close(e.ch)
		e.mu.Unlock()
	})
}

// lifecycle is the once-only state shared by the readers. Callers hold
// their own mutex around every method.
type lifecycle struct {
	started     bool // Initialize was called
	initialized bool // and succeeded
	disposed    bool
	events      *emitter
	ctx         context.Context
	cancel      context.CancelFunc
}

func newLifecycle() lifecycle {
	ctx, cancel := context.WithCancel(context.Background())
	return lifecycle{events: newEmitter(), ctx: ctx, cancel: cancel}
}

func (l *lifecycle) begin() error {
	switch {
	case l.disposed:
		return ErrDisposed
	case l.started:
		return ErrAlreadyInitialized
	}
	l.started = true
	return nil
}

func (l *lifecycle) loaded() {
	l.initialized = true
}

func (l *lifecycle) ready() error {
	switch {
	case l.disposed:
		return ErrDisposed
	case !l.initialized:
		return ErrNotInitialized
	}
	return nil
}

// dispose marks the lifecycle finished. Readers call events.close
// before taking their mutex so a blocked emit cannot hold it.
func (l *lifecycle) dispose() bool {
	if l.disposed {
		return false
	}
	l.disposed = true
	l.cancel()
	l.events.close()
	return true
}

func (l *lifecycle) position(p PositionEvent) {
	l.events.emit(Event{Kind: PositionChanged, Position: p})
}

func (l *lifecycle) fail(err error) {
	l.events.emit(Event{Kind: EngineError, Err: err})
}

func (l *lifecycle) metadata(c meta.Candidates) {
	if c.Empty() {
		return
	}
	l.events.emit(Event{Kind: MetadataExtracted, Metadata: c})
}
