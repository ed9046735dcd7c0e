package reader

import (
	"fmt"
	"sync"

	"github.com/franz/shelf/internal/format"
	"github.com/franz/shelf/internal/util"
)

// Constructor builds a fresh, uninitialized Reader
type Constructor func() Reader

// Registry maps a format to its reader. It is the only place where the
// format tag selects behavior.
type Registry struct {
	mu    sync.RWMutex
	ctors map[format.Format]Constructor
}

// NewRegistry returns an empty registry
func NewRegistry() *Registry {
	return &Registry{ctors: make(map[format.Format]Constructor)}
}

// DefaultRegistry registers the PDF, EPUB and text readers
func DefaultRegistry(cfg Config) *Registry {
	r := NewRegistry()
	r.Register(format.PDF, func() Reader { return NewFixedLayout(cfg) })
	r.Register(format.EPUB, func() Reader { return NewReflowable(cfg) })
	r.Register(format.Text, func() Reader { return NewPlainText(cfg) })
	return r
}

// Register sets the constructor for f, replacing any previous one
func (r *Registry) Register(f format.Format, ctor Constructor) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.ctors[f] = ctor
}

// New builds a reader for f
func (r *Registry) New(f format.Format) (Reader, error) {
	r.mu.RLock()
	ctor, ok := r.ctors[f]
	r.mu.RUnlock()
	if !ok {
		if f.Renderable() {
			return nil, fmt.Errorf("%w: %s", util.ErrUnsupported, f)
		}
		return nil, fmt.Errorf("%w: %s", util.ErrNotRenderable, f)
	}
	return ctor(), nil
}
