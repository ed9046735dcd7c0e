package reader

import (
	"context"
	"fmt"
	"math"
	"strconv"
	"strings"
	"sync"

	"github.com/franz/shelf/internal/meta"
	"github.com/franz/shelf/internal/util"
)

// pageAspect is the A-series height/width ratio used to size pages
const pageAspect = 1.414

// PageSlot is one page in continuous mode. Pages outside the render
// window are placeholders that only keep their height.
type PageSlot struct {
	Page        int
	Height      int
	Placeholder bool
	Image       []byte // nil until rendered
}

// FixedLayout reads paged documents such as PDF. The position token is
// the 1-based page number.
type FixedLayout struct {
	cfg  Config
	open PageOpener

	mu       sync.Mutex
	life     lifecycle
	doc      PageDocument
	page     int
	total    int
	opts     DisplayOptions
	vp       Viewport
	rendered map[int][]byte
	gen      int

	// docMu serializes engine calls from render and metadata goroutines
	docMu sync.Mutex
}

// NewFixedLayout creates a PDF reader
func NewFixedLayout(cfg Config) *FixedLayout {
	return NewFixedLayoutWith(cfg, OpenPDF)
}

// NewFixedLayoutWith creates a fixed-layout reader over another engine
func NewFixedLayoutWith(cfg Config, open PageOpener) *FixedLayout {
	cfg = cfg.normalized()
	return &FixedLayout{
		cfg:      cfg,
		open:     open,
		life:     newLifecycle(),
		vp:       cfg.Viewport,
		rendered: make(map[int][]byte),
	}
}

func parsePage(pos Position) (int, error) {
	n, err := strconv.Atoi(strings.TrimSpace(string(pos)))
	if err != nil || n < 1 {
		return 0, fmt.Errorf("%w: %q", ErrInvalidPosition, pos)
	}
	return n, nil
}

// Initialize implements Reader
func (r *FixedLayout) Initialize(ctx context.Context, data []byte, resume Position, opts DisplayOptions) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.life.begin(); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	doc, err := r.open(data)
	if err != nil {
		return err
	}
	total := doc.PageCount()
	if total < 1 {
		doc.Close()
		return fmt.Errorf("%w: document has no pages", util.ErrCorrupt)
	}

	r.doc, r.total, r.page = doc, total, 1
	r.opts = opts.normalized()
	if resume != "" {
		if n, err := parsePage(resume); err == nil {
			r.page = min(n, total)
		} else {
			util.DebugLog("Ignoring resume position: %v", err)
		}
	}

	r.life.loaded()
	r.emitLocked()
	r.renderLocked()
	go r.extractMetadata(doc)
	return nil
}

func (r *FixedLayout) extractMetadata(doc PageDocument) {
	var c meta.Candidates
	func() {
		defer func() {
			if rec := recover(); rec != nil {
				util.DebugLog("PDF metadata extraction panicked: %v", rec)
			}
		}()
		r.docMu.Lock()
		defer r.docMu.Unlock()
		c = doc.Metadata()
	}()

	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.life.disposed {
		r.life.metadata(c)
	}
}

func (r *FixedLayout) emitLocked() {
	r.life.position(PositionEvent{
		Position: Position(strconv.Itoa(r.page)),
		Percent:  percentOf(r.page, r.total),
		Current:  r.page,
		Total:    r.total,
	})
}

// Navigate implements Reader
func (r *FixedLayout) Navigate(ctx context.Context, dir Direction) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.life.ready(); err != nil {
		return err
	}

	next := r.page + 1
	if dir == Previous {
		next = r.page - 1
	}
	r.goToLocked(next)
	return nil
}

func (r *FixedLayout) goToLocked(page int) {
	page = min(max(page, 1), r.total)
	if page == r.page {
		return
	}
	r.page = page
	r.emitLocked()
	r.renderLocked()
}

// JumpTo implements Reader
func (r *FixedLayout) JumpTo(ctx context.Context, pos Position) error {
	n, err := parsePage(pos)
	if err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.life.ready(); err != nil {
		return err
	}
	r.goToLocked(n)
	return nil
}

// ScrollTo sets the continuous-mode scroll offset. The visible page is
// the one under the middle of the viewport.
func (r *FixedLayout) ScrollTo(ctx context.Context, offset int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.life.ready(); err != nil {
		return err
	}
	h := r.pageHeightLocked()
	r.goToLocked((max(offset, 0)+r.vp.Height/2)/h + 1)
	return nil
}

// ScrollOffset is the continuous-mode offset of the current page top
func (r *FixedLayout) ScrollOffset() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return (r.page - 1) * r.pageHeightLocked()
}

// Resize implements Reader. Page numbers do not depend on the viewport,
// so no event is emitted; continuous mode re-renders its window.
func (r *FixedLayout) Resize(ctx context.Context, vp Viewport) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.life.ready(); err != nil {
		return err
	}
	r.vp = vp.normalized()
	r.renderLocked()
	return nil
}

// ApplyDisplayOptions implements Reader
func (r *FixedLayout) ApplyDisplayOptions(ctx context.Context, opts DisplayOptions) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.life.ready(); err != nil {
		return err
	}
	r.opts = opts.normalized()
	r.renderLocked()
	return nil
}

func (r *FixedLayout) pageHeightLocked() int {
	h := int(math.Round(float64(r.vp.Width) * pageAspect * r.opts.FontScale))
	return max(h, 1)
}

// windowLocked returns the first and last page to keep rendered
func (r *FixedLayout) windowLocked() (int, int) {
	if r.opts.Mode != ModeContinuous {
		return r.page, r.page
	}
	return max(r.page-r.cfg.RenderBuffer, 1), min(r.page+r.cfg.RenderBuffer, r.total)
}

// Window lists every page with its height. Only pages within
// RenderBuffer of the current page are real slots.
func (r *FixedLayout) Window() []PageSlot {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.total == 0 {
		return nil
	}
	first, last := r.windowLocked()
	h := r.pageHeightLocked()
	slots := make([]PageSlot, r.total)
	for i := range slots {
		n := i + 1
		slots[i] = PageSlot{Page: n, Height: h, Placeholder: n < first || n > last}
		if !slots[i].Placeholder {
			slots[i].Image = r.rendered[n]
		}
	}
	return slots
}

// renderLocked drops pages outside the window and rasterizes the
// missing ones on a goroutine. A newer call supersedes older work.
func (r *FixedLayout) renderLocked() {
	if !r.cfg.Render || r.doc == nil {
		return
	}
	first, last := r.windowLocked()
	for n := range r.rendered {
		if n < first || n > last {
			delete(r.rendered, n)
		}
	}

	var missing []int
	for n := first; n <= last; n++ {
		if _, ok := r.rendered[n]; !ok {
			missing = append(missing, n)
		}
	}
	r.gen++
	if len(missing) == 0 {
		return
	}
	go r.renderPages(r.life.ctx, r.doc, r.gen, missing)
}

func (r *FixedLayout) renderPages(ctx context.Context, doc PageDocument, gen int, pages []int) {
	for _, n := range pages {
		if ctx.Err() != nil {
			return
		}
		r.docMu.Lock()
		img, err := doc.RenderPage(ctx, n, r.cfg.RenderDPI)
		r.docMu.Unlock()

		r.mu.Lock()
		if r.life.disposed || gen != r.gen {
			r.mu.Unlock()
			return
		}
		if err != nil {
			r.life.fail(fmt.Errorf("render page %d: %w", n, err))
			r.mu.Unlock()
			return
		}
		r.rendered[n] = img
		r.mu.Unlock()
	}
}

// Excerpt returns the text of the current page
func (r *FixedLayout) Excerpt() string {
	r.mu.Lock()
	doc, page := r.doc, r.page
	disposed := r.life.disposed
	r.mu.Unlock()
	if doc == nil || disposed {
		return ""
	}

	r.docMu.Lock()
	defer r.docMu.Unlock()
	text, err := doc.PageText(page)
	if err != nil {
		util.DebugLog("Page %d text: %v", page, err)
		return ""
	}
	return strings.TrimSpace(text)
}

// Events implements Reader
func (r *FixedLayout) Events() <-chan Event {
	return r.life.events.ch
}

// Dispose implements Reader
func (r *FixedLayout) Dispose() error {
	r.life.events.close()

	r.mu.Lock()
	if !r.life.dispose() {
		r.mu.Unlock()
		return nil
	}
	doc := r.doc
	r.rendered = nil
	r.mu.Unlock()

	if doc == nil {
		return nil
	}
	r.docMu.Lock()
	defer r.docMu.Unlock()
	return doc.Close()
}
