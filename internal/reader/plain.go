package reader

import (
	"context"
	"fmt"
	"math"
	"strconv"
	"strings"
	"sync"

	"github.com/franz/shelf/internal/meta"
	"github.com/franz/shelf/internal/textdoc"
	"github.com/franz/shelf/internal/util"
)

const minColumns = 20

// PlainText reads unpaginated text as one scrolling column. Progress is
// the scroll fraction; the position token is the 1-based screen number.
type PlainText struct {
	cfg Config

	mu        sync.Mutex
	life      lifecycle
	doc       *textdoc.Document
	lines     []string
	opts      DisplayOptions
	vp        Viewport
	scrollTop int
}

// NewPlainText creates a text reader
func NewPlainText(cfg Config) *PlainText {
	cfg = cfg.normalized()
	return &PlainText{cfg: cfg, life: newLifecycle(), vp: cfg.Viewport}
}

// Initialize implements Reader
func (r *PlainText) Initialize(ctx context.Context, data []byte, resume Position, opts DisplayOptions) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.life.begin(); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	doc, err := textdoc.Decode(data)
	if err != nil {
		return fmt.Errorf("%w: %v", util.ErrCorrupt, err)
	}
	r.doc = doc
	r.opts = opts.normalized()
	r.layoutLocked()

	if resume != "" {
		n, err := strconv.Atoi(strings.TrimSpace(string(resume)))
		if err == nil && n >= 1 {
			r.scrollTop = r.screenTop(n)
		} else {
			util.DebugLog("Ignoring resume position %q", resume)
		}
	}

	r.life.loaded()
	r.emitLocked()
	go r.extractMetadata(doc)
	return nil
}

func (r *PlainText) extractMetadata(doc *textdoc.Document) {
	c := meta.FromText(doc)
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.life.disposed {
		r.life.metadata(c)
	}
}

func (r *PlainText) layoutLocked() {
	cols := int(float64(r.vp.Width) / (charWidth * r.opts.FontScale))
	r.lines = r.doc.Wrap(max(cols, minColumns))
}

func (r *PlainText) lineHeight() int {
	return max(int(math.Round(lineHeight*r.opts.FontScale)), 1)
}

// scrollable is the content height beyond one viewport
func (r *PlainText) scrollable() int {
	return len(r.lines)*r.lineHeight() - r.vp.Height
}

func (r *PlainText) clampScroll(top int) int {
	return min(max(top, 0), max(r.scrollable(), 0))
}

// screenTop is the scroll offset of 1-based screen n. The last screen
// ends at the bottom of the text, so it may start less than a viewport
// after the one before it.
func (r *PlainText) screenTop(n int) int {
	sc := r.scrollable()
	if sc <= 0 {
		return 0
	}
	if n-1 >= sc/r.vp.Height {
		return sc
	}
	return max((n-1)*r.vp.Height, 0)
}

func (r *PlainText) percentLocked() int {
	sc := r.scrollable()
	if sc <= 0 {
		return 100
	}
	return percentOf(r.scrollTop, sc)
}

func (r *PlainText) emitLocked() {
	r.life.position(PositionEvent{
		Position: Position(strconv.Itoa(r.scrollTop/r.vp.Height + 1)),
		Percent:  r.percentLocked(),
	})
}

func (r *PlainText) scrollLocked(top int) {
	top = r.clampScroll(top)
	if top == r.scrollTop {
		return
	}
	r.scrollTop = top
	r.emitLocked()
}

// Navigate implements Reader; one step is one viewport height
func (r *PlainText) Navigate(ctx context.Context, dir Direction) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.life.ready(); err != nil {
		return err
	}
	if dir == Previous {
		r.scrollLocked(r.scrollTop - r.vp.Height)
	} else {
		r.scrollLocked(r.scrollTop + r.vp.Height)
	}
	return nil
}

// JumpTo implements Reader
func (r *PlainText) JumpTo(ctx context.Context, pos Position) error {
	n, err := strconv.Atoi(strings.TrimSpace(string(pos)))
	if err != nil || n < 1 {
		return fmt.Errorf("%w: %q", ErrInvalidPosition, pos)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.life.ready(); err != nil {
		return err
	}
	r.scrollLocked(r.screenTop(n))
	return nil
}

// ScrollTo sets the scroll offset in pixels
func (r *PlainText) ScrollTo(ctx context.Context, offset int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.life.ready(); err != nil {
		return err
	}
	r.scrollLocked(offset)
	return nil
}

// relayoutLocked rewraps the text and keeps the scroll fraction
func (r *PlainText) relayoutLocked(apply func()) {
	frac := 0.0
	if sc := r.scrollable(); sc > 0 {
		frac = float64(r.scrollTop) / float64(sc)
	}
	apply()
	r.layoutLocked()
	r.scrollTop = r.clampScroll(int(math.Round(frac * float64(max(r.scrollable(), 0)))))
	r.emitLocked()
}

// Resize implements Reader
func (r *PlainText) Resize(ctx context.Context, vp Viewport) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.life.ready(); err != nil {
		return err
	}
	r.relayoutLocked(func() { r.vp = vp.normalized() })
	return nil
}

// ApplyDisplayOptions implements Reader
func (r *PlainText) ApplyDisplayOptions(ctx context.Context, opts DisplayOptions) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.life.ready(); err != nil {
		return err
	}
	r.relayoutLocked(func() { r.opts = opts.normalized() })
	return nil
}

// ScrollOffset is the current scroll offset in pixels
func (r *PlainText) ScrollOffset() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.scrollTop
}

// Excerpt returns the visible lines
func (r *PlainText) Excerpt() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.lines == nil || r.life.disposed {
		return ""
	}
	lh := r.lineHeight()
	first := min(r.scrollTop/lh, len(r.lines))
	last := min(first+max(r.vp.Height/lh, 1), len(r.lines))
	return strings.TrimRight(strings.Join(r.lines[first:last], "\n"), "\n")
}

// Events implements Reader
func (r *PlainText) Events() <-chan Event {
	return r.life.events.ch
}

// Dispose implements Reader
func (r *PlainText) Dispose() error {
	r.life.events.close()

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.life.dispose() {
		r.lines = nil
	}
	return nil
}
