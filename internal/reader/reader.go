// Package reader puts PDF, EPUB and plain-text documents behind one
// navigation and progress contract. Each Reader publishes its position
// as an ordered event stream that the controller consumes.
package reader

import (
	"context"
	"errors"
	"math"

	"github.com/franz/shelf/internal/meta"
)

var (
	ErrAlreadyInitialized = errors.New("reader: already initialized")
	ErrNotInitialized     = errors.New("reader: not initialized")
	ErrDisposed           = errors.New("reader: disposed")
	ErrInvalidPosition    = errors.New("reader: invalid position")
)

// Direction is a one-step navigation
type Direction int

const (
	Next Direction = iota
	Previous
)

func (d Direction) String() string {
	if d == Previous {
		return "previous"
	}
	return "next"
}

// Position is an opaque resume token. Its syntax belongs to the reader
// that produced it.
type Position string

// Theme is the color scheme applied to rendered content
type Theme string

const (
	ThemeLight Theme = "light"
	ThemeDark  Theme = "dark"
	ThemeSepia Theme = "sepia"
)

// DisplayMode is a per-session preference, not a format property
type DisplayMode string

const (
	ModePaginated  DisplayMode = "paginated"
	ModeContinuous DisplayMode = "continuous"
)

// DisplayOptions controls presentation without affecting position
type DisplayOptions struct {
	Theme     Theme
	FontScale float64
	Mode      DisplayMode
}

// DefaultDisplayOptions returns light, 100%, paginated
func DefaultDisplayOptions() DisplayOptions {
	return DisplayOptions{Theme: ThemeLight, FontScale: 1, Mode: ModePaginated}
}

func (o DisplayOptions) normalized() DisplayOptions {
	if o.Theme == "" {
		o.Theme = ThemeLight
	}
	if o.Mode == "" {
		o.Mode = ModePaginated
	}
	switch {
	case o.FontScale <= 0:
		o.FontScale = 1
	case o.FontScale < 0.5:
		o.FontScale = 0.5
	case o.FontScale > 3:
		o.FontScale = 3
	}
	return o
}

// Viewport is the visible area in pixels
type Viewport struct {
	Width  int
	Height int
}

// DefaultViewport is used until the first Resize
var DefaultViewport = Viewport{Width: 720, Height: 960}

func (v Viewport) normalized() Viewport {
	if v.Width <= 0 || v.Height <= 0 {
		return DefaultViewport
	}
	return v
}

// EventKind discriminates Event
type EventKind int

const (
	PositionChanged EventKind = iota
	MetadataExtracted
	EngineError
)

func (k EventKind) String() string {
	switch k {
	case PositionChanged:
		return "position"
	case MetadataExtracted:
		return "metadata"
	case EngineError:
		return "error"
	}
	return "unknown"
}

// PositionEvent describes the visible content. Current and Total are 0
// for plain text. Pending is set while a reflowable book is still
// computing its location units; Total is 0 and Percent meaningless then.
type PositionEvent struct {
	Position Position
	Percent  int
	Current  int
	Total    int
	Pending  bool
}

// Event is one item of a reader's stream
type Event struct {
	Kind     EventKind
	Position PositionEvent
	Metadata meta.Candidates
	Err      error
}

// Reader is the uniform contract over the three document engines
type Reader interface {
	// Initialize loads data and shows resume (or the start when empty).
	// It may be called once; the first PositionChanged is emitted
	// before it returns.
	Initialize(ctx context.Context, data []byte, resume Position, opts DisplayOptions) error
	// Navigate moves one page or screen; at either end it does nothing
	Navigate(ctx context.Context, dir Direction) error
	JumpTo(ctx context.Context, pos Position) error
	Resize(ctx context.Context, vp Viewport) error
	ApplyDisplayOptions(ctx context.Context, opts DisplayOptions) error
	// Events is closed by Dispose
	Events() <-chan Event
	// Dispose releases the engine; later calls are no-ops
	Dispose() error
}

// Excerpter is implemented by readers that can show visible text
type Excerpter interface {
	Excerpt() string
}

// Scroller is implemented by readers with a continuous view. Offsets are
// pixels from the top of the document at the current viewport and font
// scale; the position is whatever the viewport then shows.
type Scroller interface {
	ScrollTo(ctx context.Context, offset int) error
	ScrollOffset() int
}

// Windowed is implemented by readers that rasterize a window of pages
type Windowed interface {
	Window() []PageSlot
}

// Config holds engine tuning shared by the readers
type Config struct {
	LocationChars int  // characters per reflowable location unit
	RenderBuffer  int  // pages rendered on each side of the visible page
	RenderDPI     int  // fixed-layout raster resolution
	Render        bool // rasterize fixed-layout pages
	Viewport      Viewport
}

// DefaultConfig matches the usual e-reader location size of 1024 chars
func DefaultConfig() Config {
	return Config{
		LocationChars: 1024,
		RenderBuffer:  2,
		RenderDPI:     96,
		Viewport:      DefaultViewport,
	}
}

func (c Config) normalized() Config {
	d := DefaultConfig()
	if c.LocationChars <= 0 {
		c.LocationChars = d.LocationChars
	}
	if c.RenderBuffer < 0 {
		c.RenderBuffer = d.RenderBuffer
	}
	if c.RenderDPI <= 0 {
		c.RenderDPI = d.RenderDPI
	}
	c.Viewport = c.Viewport.normalized()
	return c
}

// percentOf is round(n/total*100) clamped to 0..100
func percentOf(n, total int) int {
	if total <= 0 {
		return 0
	}
	p := int(math.Round(float64(n) / float64(total) * 100))
	return min(max(p, 0), 100)
}
