// Package controller runs the open book: it drives one Reader per open
// generation, turns its position events into persisted progress and
// feeds the reading goal.
package controller

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/franz/shelf/internal/meta"
	"github.com/franz/shelf/internal/reader"
	"github.com/franz/shelf/internal/stats"
	"github.com/franz/shelf/internal/store"
	"github.com/franz/shelf/internal/util"
	"github.com/google/uuid"
)

// CompletionPercent marks a book finished the first time it is reached
const CompletionPercent = 95

// maxActivityGap caps the reading time credited between two events
const maxActivityGap = 5 * time.Minute

const commandBuffer = 64

var (
	ErrClosed = errors.New("controller: book closed")
	ErrNoBook = errors.New("controller: no book open")
	ErrBusy   = errors.New("controller: command queue full")
)

// State is the lifecycle of the open book
type State int

const (
	StateEmpty State = iota
	StateLoading
	StateReady
	StateNavigating
	StateIdle
	StateDisposed
)

func (s State) String() string {
	switch s {
	case StateEmpty:
		return "empty"
	case StateLoading:
		return "loading"
	case StateReady:
		return "ready"
	case StateNavigating:
		return "navigating"
	case StateIdle:
		return "idle"
	case StateDisposed:
		return "disposed"
	}
	return "unknown"
}

// Store is the persistence the controller needs
type Store interface {
	GetBook(ctx context.Context, id string) (*store.Book, error)
	GetFile(ctx context.Context, bookID string) (*store.File, error)
	PutBook(ctx context.Context, b *store.Book) error
	PutSession(ctx context.Context, s *store.Session) error
}

// Recorder receives reading activity; *stats.Tracker implements it
type Recorder interface {
	Record(ctx context.Context, a stats.Activity) (store.Goal, error)
	Flush(ctx context.Context) error
}

// Auditor is told about opens and completions; *report.EventLogger
// implements it
type Auditor interface {
	LogOpen(bookID, title string, percent int) error
	LogFinish(bookID, title string) error
}

// Config holds controller settings
type Config struct {
	SaveInterval time.Duration
	CacheSize    int
	Display      reader.DisplayOptions
	Viewport     reader.Viewport
	// DrainTimeout bounds how long Close waits for a disposed reader's
	// remaining events
	DrainTimeout time.Duration
	Now          func() time.Time
}

// Snapshot is a copy of the controller's view of the open book
type Snapshot struct {
	State    State
	Book     store.Book
	Position reader.PositionEvent
	Err      error // last engine error, shown inline
}

type command struct {
	name string
	run  func(ctx context.Context, rd reader.Reader) error
	done chan error
}

// session is one open generation
type session struct {
	gen     uint64
	book    *store.Book
	rd      reader.Reader
	state   State
	closing bool // no new commands once set
	last    reader.PositionEvent
	err     error
	title0  string // filename-derived placeholder title

	startedAt    time.Time
	startPercent int
	pages        int
	lastActivity time.Time

	ready      chan struct{}
	stop       chan struct{}
	cmds       chan command
	eventsDone chan struct{}
	ctx        context.Context
	cancel     context.CancelFunc
}

// Controller owns at most one open book at a time
type Controller struct {
	st    Store
	rec   Recorder
	audit Auditor
	reg   *reader.Registry
	cfg   Config
	cache *fileCache
	saves *saveQueue

	// lifeMu serializes Open and Close
	lifeMu sync.Mutex

	mu  sync.Mutex
	gen uint64
	cur *session
}

// New creates a controller. rec and audit may be nil.
func New(st Store, reg *reader.Registry, rec Recorder, audit Auditor, cfg Config) *Controller {
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.DrainTimeout <= 0 {
		cfg.DrainTimeout = 2 * time.Second
	}
	if cfg.Display == (reader.DisplayOptions{}) {
		cfg.Display = reader.DefaultDisplayOptions()
	}
	c := &Controller{st: st, rec: rec, audit: audit, reg: reg, cfg: cfg, cache: newFileCache(cfg.CacheSize)}
	c.saves = newSaveQueue(cfg.SaveInterval, st.PutBook)
	return c
}

// Open closes any open book and opens id at its saved position. A
// missing book or file is reported as util.ErrNotFound.
func (c *Controller) Open(ctx context.Context, id string) (*store.Book, error) {
	c.lifeMu.Lock()
	defer c.lifeMu.Unlock()

	if err := c.closeLocked(ctx); err != nil {
		util.WarnLog("Closing previous book: %v", err)
	}

	book, data, err := c.load(ctx, id)
	if err != nil {
		return nil, err
	}
	rd, err := c.reg.New(book.Format)
	if err != nil {
		return nil, err
	}

	now := c.cfg.Now()
	sctx, cancel := context.WithCancel(context.Background())
	s := &session{
		book:         book,
		rd:           rd,
		state:        StateLoading,
		title0:       meta.TitleFromFilename(book.Filename),
		startedAt:    now,
		startPercent: book.Percent,
		lastActivity: now,
		ready:        make(chan struct{}),
		stop:         make(chan struct{}),
		cmds:         make(chan command, commandBuffer),
		eventsDone:   make(chan struct{}),
		ctx:          sctx,
		cancel:       cancel,
	}

	if book.Status == store.StatusWantToRead {
		book.Status = store.StatusReading
	}
	book.LastReadAt = now

	c.mu.Lock()
	c.gen++
	s.gen = c.gen
	c.cur = s
	c.mu.Unlock()

	go c.runEvents(s)
	go c.runCommands(s)

	if c.cfg.Viewport != (reader.Viewport{}) {
		// Resize is queued until the first position arrives
		c.enqueue(s, "resize", func(ctx context.Context, rd reader.Reader) error {
			return rd.Resize(ctx, c.cfg.Viewport)
		})
	}

	if err := rd.Initialize(ctx, data, reader.Position(book.Position), c.cfg.Display); err != nil {
		c.mu.Lock()
		s.closing = true
		c.mu.Unlock()
		c.teardown(s)
		c.mu.Lock()
		s.state = StateDisposed
		if c.cur == s {
			c.cur = nil
			c.gen++
		}
		c.mu.Unlock()
		return nil, fmt.Errorf("failed to open %q: %w", book.Title, err)
	}

	// The first position event schedules the save of the opened state
	c.mu.Lock()
	opened := s.book.Clone()
	c.mu.Unlock()
	if c.audit != nil {
		if err := c.audit.LogOpen(opened.ID, opened.Title, opened.Percent); err != nil {
			util.DebugLog("Audit log: %v", err)
		}
	}
	util.DebugLog("Opened %s (%s) at %q", opened.ID, opened.Format, opened.Position)
	return opened, nil
}

// load fetches the book record and a private copy of its bytes
func (c *Controller) load(ctx context.Context, id string) (*store.Book, []byte, error) {
	book, err := c.st.GetBook(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	if book == nil {
		return nil, nil, fmt.Errorf("%w: book %s", util.ErrNotFound, id)
	}

	if data, ok := c.cache.get(id); ok {
		return book, data, nil
	}
	file, err := c.st.GetFile(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	if file == nil {
		return nil, nil, fmt.Errorf("%w: file for book %s", util.ErrNotFound, id)
	}
	c.cache.put(id, file.Data)
	return book, file.Data, nil
}

// WaitReady blocks until the open book shows its first position
func (c *Controller) WaitReady(ctx context.Context) error {
	c.mu.Lock()
	s := c.cur
	c.mu.Unlock()
	if s == nil {
		return ErrNoBook
	}
	select {
	case <-s.ready:
		return nil
	case <-s.stop:
		return ErrClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close disposes the reader, flushes pending saves and records the
// reading session. It is a no-op when nothing is open.
func (c *Controller) Close(ctx context.Context) error {
	c.lifeMu.Lock()
	defer c.lifeMu.Unlock()
	return c.closeLocked(ctx)
}

func (c *Controller) closeLocked(ctx context.Context) error {
	c.mu.Lock()
	s := c.cur
	if s != nil {
		s.closing = true
	}
	c.mu.Unlock()
	if s == nil {
		return nil
	}

	c.teardown(s)

	c.mu.Lock()
	c.gen++
	s.state = StateDisposed
	c.cur = nil
	book := s.book.Clone()
	sess := &store.Session{
		ID:           uuid.NewString(),
		BookID:       book.ID,
		StartedAt:    s.startedAt,
		EndedAt:      c.cfg.Now(),
		StartPercent: s.startPercent,
		EndPercent:   book.Percent,
		Pages:        s.pages,
	}
	c.mu.Unlock()

	var errs []error
	if err := c.saves.Flush(ctx); err != nil {
		errs = append(errs, err)
	}
	if err := c.st.PutSession(ctx, sess); err != nil {
		errs = append(errs, err)
	}
	if c.rec != nil {
		if err := c.rec.Flush(ctx); err != nil {
			errs = append(errs, err)
		}
	}
	util.DebugLog("Closed %s at %d%%", book.ID, book.Percent)
	return errors.Join(errs...)
}

// teardown disposes the reader, lets its last events drain, and stops
// the session goroutines.
func (c *Controller) teardown(s *session) {
	if err := s.rd.Dispose(); err != nil {
		util.WarnLog("Disposing reader: %v", err)
	}
	select {
	case <-s.eventsDone:
	case <-time.After(c.cfg.DrainTimeout):
		util.WarnLog("Reader for %s did not close its event stream", s.book.ID)
	}
	s.cancel()
	close(s.stop)
}

// Snapshot returns the current state
func (c *Controller) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.cur == nil {
		return Snapshot{State: StateEmpty}
	}
	return Snapshot{State: c.cur.state, Book: *c.cur.book, Position: c.cur.last, Err: c.cur.err}
}

// Excerpt returns the visible text when the reader supports it
func (c *Controller) Excerpt() string {
	c.mu.Lock()
	s := c.cur
	c.mu.Unlock()
	if s == nil {
		return ""
	}
	if ex, ok := s.rd.(reader.Excerpter); ok {
		return ex.Excerpt()
	}
	return ""
}

// Window lists the page slots of a fixed-layout book, or nil for
// readers without rendered pages
func (c *Controller) Window() []reader.PageSlot {
	c.mu.Lock()
	s := c.cur
	c.mu.Unlock()
	if s == nil {
		return nil
	}
	if w, ok := s.rd.(reader.Windowed); ok {
		return w.Window()
	}
	return nil
}

// Forget drops a book's bytes from the cache, used after deletion
func (c *Controller) Forget(id string) {
	c.cache.remove(id)
}

func (c *Controller) runEvents(s *session) {
	defer close(s.eventsDone)
	for ev := range s.rd.Events() {
		c.handle(s.gen, ev)
	}
}

// handle applies one reader event if it belongs to the open generation
func (c *Controller) handle(gen uint64, ev reader.Event) {
	c.mu.Lock()
	s := c.cur
	if s == nil || s.gen != gen {
		c.mu.Unlock()
		util.DebugLog("Dropping stale %s event from generation %d", ev.Kind, gen)
		return
	}

	switch ev.Kind {
	case reader.PositionChanged:
		c.onPosition(s, ev.Position) // unlocks
	case reader.MetadataExtracted:
		c.onMetadata(s, ev.Metadata) // unlocks
	case reader.EngineError:
		s.err = ev.Err
		id := s.book.ID
		c.mu.Unlock()
		util.WarnLog("Reader error in %s: %v", id, ev.Err)
	default:
		c.mu.Unlock()
	}
}

// onPosition is called with c.mu held and releases it before any I/O
func (c *Controller) onPosition(s *session, p reader.PositionEvent) {
	now := c.cfg.Now()
	if s.state == StateLoading {
		s.state = StateReady
		close(s.ready)
	} else {
		s.pages++
	}
	s.last = p

	b := s.book
	b.Position = string(p.Position)
	b.LastReadAt = now
	if !p.Pending {
		b.Percent = p.Percent
	}
	completed := false
	if !p.Pending && b.Percent >= CompletionPercent && b.Status != store.StatusFinished {
		b.Status = store.StatusFinished
		completed = true
	}

	elapsed := now.Sub(s.lastActivity)
	if elapsed < 0 {
		elapsed = 0
	} else if elapsed > maxActivityGap {
		elapsed = maxActivityGap
	}
	s.lastActivity = now
	snap := b.Clone()
	ctx := s.ctx
	c.mu.Unlock()

	if completed {
		util.InfoLog("Finished %q", snap.Title)
		c.saves.SaveNow(ctx, snap)
		if c.audit != nil {
			if err := c.audit.LogFinish(snap.ID, snap.Title); err != nil {
				util.DebugLog("Audit log: %v", err)
			}
		}
	} else {
		c.saves.Schedule(snap)
	}

	if c.rec != nil {
		if _, err := c.rec.Record(ctx, stats.Activity{At: now, Elapsed: elapsed, Completed: completed}); err != nil {
			util.WarnLog("Failed to update reading stats: %v", err)
		}
	}
}

// onMetadata is called with c.mu held and releases it before any I/O
func (c *Controller) onMetadata(s *session, cands meta.Candidates) {
	md := meta.Resolve(s.book.Filename, cands)
	title, author := md.Title, md.Author
	b := s.book
	changed := false
	if title != "" && title != b.Title && (b.Title == "" || b.Title == s.title0) {
		b.Title = title
		changed = true
	}
	if author != "" && author != meta.UnknownAuthor && author != b.Author &&
		(b.Author == "" || b.Author == meta.UnknownAuthor) {
		b.Author = author
		changed = true
	}
	snap := b.Clone()
	ctx := s.ctx
	c.mu.Unlock()

	if changed {
		util.DebugLog("Metadata for %s: %q by %q", snap.ID, snap.Title, snap.Author)
		c.saves.SaveNow(ctx, snap)
	}
}

func (c *Controller) runCommands(s *session) {
	select {
	case <-s.ready:
	case <-s.stop:
		c.drain(s)
		return
	}
	for {
		select {
		case cmd := <-s.cmds:
			c.setState(s, StateNavigating)
			err := cmd.run(s.ctx, s.rd)
			c.setState(s, StateIdle)
			if err != nil {
				util.DebugLog("Command %s failed: %v", cmd.name, err)
			}
			cmd.done <- err
		case <-s.stop:
			c.drain(s)
			return
		}
	}
}

func (c *Controller) drain(s *session) {
	for {
		select {
		case cmd := <-s.cmds:
			cmd.done <- ErrClosed
		default:
			return
		}
	}
}

func (c *Controller) setState(s *session, st State) {
	c.mu.Lock()
	if c.cur == s && s.state != StateDisposed {
		s.state = st
	}
	c.mu.Unlock()
}

// enqueue hands a command to the session's command loop. Commands sent
// while loading run in order once the first position is shown.
func (c *Controller) enqueue(s *session, name string, run func(context.Context, reader.Reader) error) <-chan error {
	done := make(chan error, 1)
	c.mu.Lock()
	defer c.mu.Unlock()
	if s == nil || s.closing || c.cur != s {
		done <- ErrClosed
		return done
	}
	select {
	case s.cmds <- command{name: name, run: run, done: done}:
	default:
		done <- ErrBusy
	}
	return done
}

func (c *Controller) submit(name string, run func(context.Context, reader.Reader) error) <-chan error {
	c.mu.Lock()
	s := c.cur
	c.mu.Unlock()
	if s == nil {
		done := make(chan error, 1)
		done <- ErrNoBook
		return done
	}
	return c.enqueue(s, name, run)
}

func wait(ctx context.Context, done <-chan error) error {
	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// NavigateAsync queues a one-step move and returns its result channel
func (c *Controller) NavigateAsync(dir reader.Direction) <-chan error {
	return c.submit("navigate "+dir.String(), func(ctx context.Context, rd reader.Reader) error {
		return rd.Navigate(ctx, dir)
	})
}

// Navigate moves one step and waits for the reader to accept it
func (c *Controller) Navigate(ctx context.Context, dir reader.Direction) error {
	return wait(ctx, c.NavigateAsync(dir))
}

// JumpTo moves to a resume token
func (c *Controller) JumpTo(ctx context.Context, pos reader.Position) error {
	return wait(ctx, c.submit("jump", func(ctx context.Context, rd reader.Reader) error {
		return rd.JumpTo(ctx, pos)
	}))
}

// Resize changes the viewport
func (c *Controller) Resize(ctx context.Context, vp reader.Viewport) error {
	return wait(ctx, c.submit("resize", func(ctx context.Context, rd reader.Reader) error {
		return rd.Resize(ctx, vp)
	}))
}

// ApplyDisplayOptions changes theme, font scale or display mode
func (c *Controller) ApplyDisplayOptions(ctx context.Context, opts reader.DisplayOptions) error {
	return wait(ctx, c.submit("display", func(ctx context.Context, rd reader.Reader) error {
		return rd.ApplyDisplayOptions(ctx, opts)
	}))
}

// ScrollTo moves a continuous view to offset pixels from the top of the
// book. The reader derives the position from what is then visible.
func (c *Controller) ScrollTo(ctx context.Context, offset int) error {
	return wait(ctx, c.submit("scroll", func(ctx context.Context, rd reader.Reader) error {
		sc, ok := rd.(reader.Scroller)
		if !ok {
			return fmt.Errorf("%w: reader cannot scroll", util.ErrUnsupported)
		}
		return sc.ScrollTo(ctx, offset)
	}))
}

// ScrollOffset is the scroll offset of the current position, or 0 for
// readers that do not scroll
func (c *Controller) ScrollOffset() int {
	c.mu.Lock()
	s := c.cur
	c.mu.Unlock()
	if s == nil {
		return 0
	}
	if sc, ok := s.rd.(reader.Scroller); ok {
		return sc.ScrollOffset()
	}
	return 0
}
