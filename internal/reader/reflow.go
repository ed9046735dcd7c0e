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

// Screen geometry for reflowed text at font scale 1
const (
	charWidth      = 8
	lineHeight     = 20
	minScreenChars = 200
)

// anchor is a rune offset into one spine section
type anchor struct {
	spine  int
	offset int
}

func (a anchor) token() Position {
	return Position(fmt.Sprintf("%d:%d", a.spine, a.offset))
}

func parseAnchor(pos Position) (anchor, error) {
	s, o, ok := strings.Cut(strings.TrimSpace(string(pos)), ":")
	if !ok {
		return anchor{}, fmt.Errorf("%w: %q", ErrInvalidPosition, pos)
	}
	spine, err1 := strconv.Atoi(s)
	offset, err2 := strconv.Atoi(o)
	if err1 != nil || err2 != nil || spine < 0 || offset < 0 {
		return anchor{}, fmt.Errorf("%w: %q", ErrInvalidPosition, pos)
	}
	return anchor{spine: spine, offset: offset}, nil
}

// Reflowable reads EPUB-like documents whose text reflows to the
// viewport. Progress is counted in location units of LocationChars
// characters, computed on a goroutine after Initialize; until then
// position events are Pending. The position token is "spine:offset".
//
// In continuous mode the sections are laid end to end as rows of text
// and the view scrolls by pixels; the anchor is then the first character
// of the top visible row.
type Reflowable struct {
	cfg  Config
	open FlowOpener

	mu    sync.Mutex
	life  lifecycle
	texts [][]rune
	at    anchor
	opts  DisplayOptions
	vp    Viewport

	starts []int // first location unit of each section, nil while pending
	units  int
}

// NewReflowable creates an EPUB reader
func NewReflowable(cfg Config) *Reflowable {
	return NewReflowableWith(cfg, OpenEPUB)
}

// NewReflowableWith creates a reflowable reader over another engine
func NewReflowableWith(cfg Config, open FlowOpener) *Reflowable {
	cfg = cfg.normalized()
	return &Reflowable{cfg: cfg, open: open, life: newLifecycle(), vp: cfg.Viewport}
}

// Initialize implements Reader
func (r *Reflowable) Initialize(ctx context.Context, data []byte, resume Position, opts DisplayOptions) error {
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
	n := doc.SectionCount()
	if n == 0 {
		return fmt.Errorf("%w: no readable sections", util.ErrCorrupt)
	}

	var sectionErrs []error
	r.texts = make([][]rune, n)
	for i := range r.texts {
		text, err := doc.SectionText(i)
		if err != nil {
			sectionErrs = append(sectionErrs, fmt.Errorf("section %d: %w", i, err))
			continue
		}
		r.texts[i] = []rune(text)
	}

	r.opts = opts.normalized()
	r.at = r.firstReadable(0, 1)
	if resume != "" {
		if a, err := parseAnchor(resume); err == nil {
			r.at = r.clampAnchor(a)
		} else {
			util.DebugLog("Ignoring resume position: %v", err)
		}
	}
	r.at = r.alignLocked(r.at)

	r.life.loaded()
	r.emitLocked()
	for _, err := range sectionErrs {
		r.life.fail(err)
	}

	texts := r.texts
	go r.generateLocations(r.life.ctx, texts)
	go r.extractMetadata(doc)
	return nil
}

func (r *Reflowable) generateLocations(ctx context.Context, texts [][]rune) {
	starts := make([]int, len(texts))
	units := 0
	for i, t := range texts {
		if ctx.Err() != nil {
			return
		}
		starts[i] = units
		units += (len(t) + r.cfg.LocationChars - 1) / r.cfg.LocationChars
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.life.disposed {
		return
	}
	r.starts, r.units = starts, units
	r.emitLocked()
}

func (r *Reflowable) extractMetadata(doc FlowDocument) {
	var c meta.Candidates
	func() {
		defer func() {
			if rec := recover(); rec != nil {
				util.DebugLog("EPUB metadata extraction panicked: %v", rec)
			}
		}()
		c = doc.Metadata()
	}()

	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.life.disposed {
		r.life.metadata(c)
	}
}

// firstReadable finds the nearest non-empty section from spine in
// direction step, or the anchor at spine when there is none.
func (r *Reflowable) firstReadable(spine, step int) anchor {
	for s := spine; s >= 0 && s < len(r.texts); s += step {
		if len(r.texts[s]) > 0 {
			if step < 0 {
				return anchor{spine: s, offset: r.lastScreenStart(s)}
			}
			return anchor{spine: s}
		}
	}
	return anchor{spine: min(max(spine, 0), len(r.texts)-1)}
}

func (r *Reflowable) clampAnchor(a anchor) anchor {
	if a.spine >= len(r.texts) {
		return r.firstReadable(len(r.texts)-1, -1)
	}
	if len(r.texts[a.spine]) == 0 {
		return r.firstReadable(a.spine, 1)
	}
	a.offset = min(a.offset, len(r.texts[a.spine])-1)
	return a
}

// screenChars is how many characters fit on one screen
func (r *Reflowable) screenChars() int {
	cols := int(float64(r.vp.Width) / (charWidth * r.opts.FontScale))
	rows := int(float64(r.vp.Height) / (lineHeight * r.opts.FontScale))
	return max(cols*rows, minScreenChars)
}

func (r *Reflowable) continuous() bool {
	return r.opts.Mode == ModeContinuous
}

func (r *Reflowable) screenStart() int {
	c := r.screenChars()
	return r.at.offset / c * c
}

func (r *Reflowable) screenEnd() int {
	return min(r.screenStart()+r.screenChars(), len(r.texts[r.at.spine]))
}

func (r *Reflowable) lastScreenStart(spine int) int {
	n := len(r.texts[spine])
	if n == 0 {
		return 0
	}
	c := r.screenChars()
	return (n - 1) / c * c
}

// emitLocked reports the unit holding the last visible character, so
// the final screen of a book reads 100%.
func (r *Reflowable) emitLocked() {
	ev := PositionEvent{Position: r.at.token()}
	if r.starts == nil {
		ev.Pending = true
		r.life.position(ev)
		return
	}

	ev.Total = r.units
	if r.units > 0 {
		spine, last := r.at.spine, max(r.screenEnd()-1, 0)
		if r.continuous() {
			spine, last = r.lastVisibleLocked()
		}
		ev.Current = min(r.starts[spine]+last/r.cfg.LocationChars+1, r.units)
		ev.Percent = percentOf(ev.Current, ev.Total)
	}
	r.life.position(ev)
}

// columns is the number of characters per row
func (r *Reflowable) columns() int {
	return max(int(float64(r.vp.Width)/(charWidth*r.opts.FontScale)), minColumns)
}

func (r *Reflowable) rowHeight() int {
	return max(int(math.Round(lineHeight*r.opts.FontScale)), 1)
}

func (r *Reflowable) sectionHeight(spine int) int {
	cols := r.columns()
	return (len(r.texts[spine]) + cols - 1) / cols * r.rowHeight()
}

func (r *Reflowable) contentHeight() int {
	h := 0
	for i := range r.texts {
		h += r.sectionHeight(i)
	}
	return h
}

// offsetOf is the scroll offset of the row holding a
func (r *Reflowable) offsetOf(a anchor) int {
	y := 0
	for i := 0; i < a.spine; i++ {
		y += r.sectionHeight(i)
	}
	return y + a.offset/r.columns()*r.rowHeight()
}

// rowAt returns the anchor of the row at scroll offset y and the offset
// of the last character in that row. Offsets past the end give the last
// row of the book.
func (r *Reflowable) rowAt(y int) (anchor, int) {
	cols, rh := r.columns(), r.rowHeight()
	y = max(y, 0)
	for i := range r.texts {
		h := r.sectionHeight(i)
		if y < h {
			start := y / rh * cols
			return anchor{spine: i, offset: start}, min(start+cols, len(r.texts[i])) - 1
		}
		y -= h
	}
	last := r.firstReadable(len(r.texts)-1, -1)
	n := len(r.texts[last.spine])
	start := max(n-1, 0) / cols * cols
	return anchor{spine: last.spine, offset: start}, max(n-1, 0)
}

// lastVisibleLocked is the section and offset of the last character in
// the continuous view
func (r *Reflowable) lastVisibleLocked() (int, int) {
	a, end := r.rowAt(r.offsetOf(r.at) + r.vp.Height - 1)
	return a.spine, max(end, 0)
}

// alignLocked moves a to the start of its row in continuous mode
func (r *Reflowable) alignLocked(a anchor) anchor {
	if !r.continuous() {
		return a
	}
	cols := r.columns()
	a.offset = a.offset / cols * cols
	return a
}

func (r *Reflowable) maxScroll() int {
	return max(r.contentHeight()-r.vp.Height, 0)
}

func (r *Reflowable) scrollLocked(y int) {
	a, _ := r.rowAt(min(max(y, 0), r.maxScroll()))
	if a == r.at {
		return
	}
	r.at = a
	r.emitLocked()
}

// ScrollTo implements Scroller. In paginated mode the page holding the
// scrolled-to row is shown.
func (r *Reflowable) ScrollTo(ctx context.Context, offset int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.life.ready(); err != nil {
		return err
	}
	r.scrollLocked(offset)
	return nil
}

// ScrollOffset implements Scroller
func (r *Reflowable) ScrollOffset() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.texts == nil {
		return 0
	}
	return r.offsetOf(r.at)
}

// Navigate implements Reader
func (r *Reflowable) Navigate(ctx context.Context, dir Direction) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.life.ready(); err != nil {
		return err
	}

	if r.continuous() {
		top := r.offsetOf(r.at)
		if dir == Next && top >= r.maxScroll() {
			return nil
		}
		if dir == Previous {
			r.scrollLocked(top - r.vp.Height)
		} else {
			r.scrollLocked(top + r.vp.Height)
		}
		return nil
	}

	var next anchor
	start, c := r.screenStart(), r.screenChars()
	switch dir {
	case Next:
		if start+c < len(r.texts[r.at.spine]) {
			next = anchor{spine: r.at.spine, offset: start + c}
		} else if r.at.spine+1 < len(r.texts) {
			next = r.firstReadable(r.at.spine+1, 1)
		} else {
			return nil
		}
	case Previous:
		if start > 0 {
			next = anchor{spine: r.at.spine, offset: start - c}
		} else if r.at.spine > 0 {
			next = r.firstReadable(r.at.spine-1, -1)
		} else {
			return nil
		}
	}

	if len(r.texts[next.spine]) == 0 || next == r.at {
		return nil
	}
	r.at = next
	r.emitLocked()
	return nil
}

// JumpTo implements Reader
func (r *Reflowable) JumpTo(ctx context.Context, pos Position) error {
	a, err := parseAnchor(pos)
	if err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.life.ready(); err != nil {
		return err
	}
	a = r.alignLocked(r.clampAnchor(a))
	if a == r.at {
		return nil
	}
	r.at = a
	r.emitLocked()
	return nil
}

// Resize implements Reader. The anchor stays fixed and the screen
// around it is recomputed.
func (r *Reflowable) Resize(ctx context.Context, vp Viewport) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.life.ready(); err != nil {
		return err
	}
	r.vp = vp.normalized()
	r.at = r.alignLocked(r.at)
	r.emitLocked()
	return nil
}

// ApplyDisplayOptions implements Reader
func (r *Reflowable) ApplyDisplayOptions(ctx context.Context, opts DisplayOptions) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.life.ready(); err != nil {
		return err
	}
	r.opts = opts.normalized()
	r.at = r.alignLocked(r.at)
	r.emitLocked()
	return nil
}

// Excerpt returns the visible text
func (r *Reflowable) Excerpt() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.texts == nil || r.life.disposed {
		return ""
	}
	if r.continuous() {
		return r.continuousExcerptLocked()
	}
	return strings.TrimSpace(string(r.texts[r.at.spine][r.screenStart():r.screenEnd()]))
}

// continuousExcerptLocked joins the visible text, which may span
// sections
func (r *Reflowable) continuousExcerptLocked() string {
	lastSpine, lastOff := r.lastVisibleLocked()
	var parts []string
	for i := r.at.spine; i <= lastSpine && i < len(r.texts); i++ {
		text := r.texts[i]
		if len(text) == 0 {
			continue
		}
		from, to := 0, len(text)
		if i == r.at.spine {
			from = min(r.at.offset, len(text))
		}
		if i == lastSpine {
			to = min(lastOff+1, len(text))
		}
		if from < to {
			parts = append(parts, strings.TrimSpace(string(text[from:to])))
		}
	}
	return strings.Join(parts, "\n")
}

// Events implements Reader
func (r *Reflowable) Events() <-chan Event {
	return r.life.events.ch
}

// Dispose implements Reader
func (r *Reflowable) Dispose() error {
	r.life.events.close()

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.life.dispose() {
		r.texts = nil
	}
	return nil
}
