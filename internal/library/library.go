// Package library ingests book files and manages the collection.
package library

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/docker/go-units"
	"github.com/franz/shelf/internal/cover"
	"github.com/franz/shelf/internal/format"
	"github.com/franz/shelf/internal/meta"
	"github.com/franz/shelf/internal/report"
	"github.com/franz/shelf/internal/scan"
	"github.com/franz/shelf/internal/store"
	"github.com/franz/shelf/internal/util"
	"golang.org/x/sync/errgroup"
)

// DefaultMaxFileSize bounds a single import
const DefaultMaxFileSize = "200MB"

// Config holds library settings
type Config struct {
	MaxFileSize int64 // bytes; 0 means DefaultMaxFileSize
	Concurrency int
	Covers      *cover.Resolver
	Logger      *report.EventLogger
	Now         func() time.Time
}

// ParseSize reads a human size such as "200MB" or "1.5GB"
func ParseSize(s string) (int64, error) {
	n, err := units.FromHumanSize(s)
	if err != nil {
		return 0, fmt.Errorf("%w: max_file_size %q: %v", util.ErrInvalidConfig, s, err)
	}
	if n <= 0 {
		return 0, fmt.Errorf("%w: max_file_size must be positive", util.ErrInvalidConfig)
	}
	return n, nil
}

// Library orchestrates ingestion over the store
type Library struct {
	st     *store.Store
	covers *cover.Resolver
	logger *report.EventLogger
	max    int64
	conc   int
	now    func() time.Time

	// persistMu makes check-then-write of one id atomic across workers
	persistMu sync.Mutex
}

// New creates a library over st
func New(st *store.Store, cfg Config) *Library {
	l := &Library{st: st, covers: cfg.Covers, logger: cfg.Logger, max: cfg.MaxFileSize, conc: cfg.Concurrency, now: cfg.Now}
	if l.max <= 0 {
		l.max, _ = units.FromHumanSize(DefaultMaxFileSize)
	}
	if l.conc <= 0 {
		l.conc = 4
	}
	if l.covers == nil {
		l.covers = cover.NewResolver(cover.Config{})
	}
	if l.now == nil {
		l.now = time.Now
	}
	return l
}

// Ingested is a fully formed book ready to persist. Cover is nil when
// the book points at an external image.
type Ingested struct {
	Book  *store.Book
	File  *store.File
	Cover *store.Cover
}

// Ingest runs detect, size check, content id, metadata probe and cover
// resolution. Only an unsupported format or an oversized file fail;
// metadata and cover problems fall back silently.
func (l *Library) Ingest(ctx context.Context, data []byte, filename string) (*Ingested, error) {
	f := format.Detect(filename)
	if f == format.Unsupported {
		return nil, fmt.Errorf("%w: %s", util.ErrUnsupported, filepath.Base(filename))
	}
	if int64(len(data)) > l.max {
		return nil, fmt.Errorf("%w: %s is %s, limit %s", util.ErrTooLarge, filepath.Base(filename),
			units.HumanSize(float64(len(data))), units.HumanSize(float64(l.max)))
	}

	id := util.ContentID(data)
	md := meta.Probe(f, data, filename)
	img := l.covers.Resolve(ctx, cover.Input{Format: f, Data: data, Title: md.Title})

	b := &store.Book{
		ID:        id,
		Title:     md.Title,
		Author:    md.Author,
		Format:    f,
		Cover:     img.Ref(id),
		Status:    store.StatusWantToRead,
		Filename:  filepath.Base(filename),
		SizeBytes: int64(len(data)),
		AddedAt:   l.now().UTC(),
	}
	in := &Ingested{
		Book: b,
		File: &store.File{BookID: id, Data: data, MimeType: f.MimeType()},
	}
	if img.Data != nil {
		in.Cover = &store.Cover{BookID: id, Data: img.Data, MimeType: img.MimeType, Source: string(img.Source)}
	}
	if !f.Renderable() {
		util.DebugLog("%s is listed but cannot be opened yet", filepath.Base(filename))
	}
	return in, nil
}

// Import ingests and persists data. Identical bytes already in the
// library return the existing book with created=false.
func (l *Library) Import(ctx context.Context, data []byte, filename string) (*store.Book, bool, error) {
	id := util.ContentID(data)
	if existing, err := l.existing(ctx, id); err != nil || existing != nil {
		return existing, false, err
	}

	in, err := l.Ingest(ctx, data, filename)
	if err != nil {
		return nil, false, err
	}

	l.persistMu.Lock()
	defer l.persistMu.Unlock()
	if existing, err := l.existing(ctx, id); err != nil || existing != nil {
		return existing, false, err
	}
	if err := l.persist(ctx, in); err != nil {
		return nil, false, err
	}
	return in.Book, true, nil
}

// existing returns the book with id when both its record and bytes exist
func (l *Library) existing(ctx context.Context, id string) (*store.Book, error) {
	b, err := l.st.GetBook(ctx, id)
	if err != nil || b == nil {
		return nil, err
	}
	ok, err := l.st.HasFile(ctx, id)
	if err != nil || !ok {
		return nil, err
	}
	return b, nil
}

func (l *Library) persist(ctx context.Context, in *Ingested) error {
	cfg := util.StoreRetryConfig()
	err := util.Retry(ctx, cfg, func() error { return l.st.PutBook(ctx, in.Book) }, "put book")
	if err == nil {
		err = util.Retry(ctx, cfg, func() error { return l.st.PutFile(ctx, in.File) }, "put file")
	}
	if err == nil && in.Cover != nil {
		err = util.Retry(ctx, cfg, func() error { return l.st.PutCover(ctx, in.Cover) }, "put cover")
	}
	if err != nil {
		if derr := l.st.DeleteBook(ctx, in.Book.ID); derr != nil {
			util.WarnLog("Failed to roll back partial import of %s: %v", in.Book.ID, derr)
		}
		return fmt.Errorf("failed to save %s: %w", in.Book.Filename, err)
	}
	return nil
}

// ImportResult is the outcome for one path
type ImportResult struct {
	Path    string
	Book    *store.Book
	Created bool
	Err     error
}

// BatchResult summarizes ImportPaths
type BatchResult struct {
	Results    []ImportResult
	Imported   int
	Duplicates int
	Failed     int
}

// ImportPaths imports every book file under paths with bounded
// concurrency. One file's failure never stops the others; ctx
// cancellation does. onResult, if set, is called once per file from the
// worker goroutines.
func (l *Library) ImportPaths(ctx context.Context, paths []string, onResult func(ImportResult)) (*BatchResult, error) {
	found, err := scan.New(&scan.Config{Logger: l.logger}).Scan(ctx, paths)
	if err != nil {
		return nil, err
	}

	results := make([]ImportResult, len(found.Files), len(found.Files)+len(found.Skipped)+len(found.Errors))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(l.conc)
	for i, f := range found.Files {
		i, f := i, f
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			r := l.importFile(gctx, f)
			results[i] = r
			if onResult != nil {
				onResult(r)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	for _, p := range found.Skipped {
		r := ImportResult{Path: p, Err: fmt.Errorf("%w: %s", util.ErrUnsupported, filepath.Base(p))}
		results = append(results, r)
		if onResult != nil {
			onResult(r)
		}
	}

	batch := &BatchResult{Results: results}
	for _, r := range results {
		switch {
		case r.Err != nil:
			batch.Failed++
		case r.Created:
			batch.Imported++
		default:
			batch.Duplicates++
		}
	}
	batch.Failed += len(found.Errors)
	return batch, nil
}

func (l *Library) importFile(ctx context.Context, f scan.Found) ImportResult {
	start := time.Now()
	r := ImportResult{Path: f.Path}

	if f.Size > l.max {
		r.Err = fmt.Errorf("%w: %s is %s, limit %s", util.ErrTooLarge, filepath.Base(f.Path),
			units.HumanSize(float64(f.Size)), units.HumanSize(float64(l.max)))
		l.logger.LogSkip(f.Path, r.Err.Error())
		return r
	}

	// Duplicates are recognized from a streamed hash without loading them
	if id, err := util.HashFile(f.Path); err == nil {
		if b, err := l.existing(ctx, id); err == nil && b != nil {
			r.Book = b
			l.logger.LogDuplicate(b.ID, b.Title, f.Path)
			util.DebugLog("Already in library: %s", f.Path)
			return r
		}
	}

	data, err := os.ReadFile(f.Path)
	if err != nil {
		r.Err = fmt.Errorf("failed to read %s: %w", f.Path, err)
		l.logger.LogError(report.EventImport, f.Path, r.Err)
		return r
	}

	r.Book, r.Created, r.Err = l.Import(ctx, data, f.Path)
	switch {
	case r.Err != nil:
		if errors.Is(r.Err, util.ErrUnsupported) || errors.Is(r.Err, util.ErrTooLarge) {
			l.logger.LogSkip(f.Path, r.Err.Error())
		} else {
			l.logger.LogError(report.EventImport, f.Path, r.Err)
		}
	case r.Created:
		l.logger.LogImport(r.Book.ID, r.Book.Title, f.Path, string(r.Book.Format), r.Book.SizeBytes, time.Since(start))
		util.DebugLog("Imported %q (%s)", r.Book.Title, r.Book.ID[:8])
	default:
		l.logger.LogDuplicate(r.Book.ID, r.Book.Title, f.Path)
		util.DebugLog("Already in library: %s", f.Path)
	}
	return r
}

// Entry is one row of the library listing
type Entry struct {
	Book *store.Book
	// Renderable is false for recognized formats without a reader; the
	// listing shows them disabled
	Renderable bool
}

// Filter narrows List. The zero value lists everything.
type Filter struct {
	Status store.Status
}

// List returns books that have their bytes, most recently read first
func (l *Library) List(ctx context.Context, filter Filter) ([]Entry, error) {
	if filter.Status != "" && !filter.Status.Valid() {
		return nil, fmt.Errorf("%w: status %q", util.ErrInvalidConfig, filter.Status)
	}
	books, err := l.st.ListBooks(ctx, filter.Status)
	if err != nil {
		return nil, err
	}
	entries := make([]Entry, 0, len(books))
	for _, b := range books {
		entries = append(entries, Entry{Book: b, Renderable: b.Format.Renderable()})
	}
	return entries, nil
}

// Get returns one book or util.ErrNotFound
func (l *Library) Get(ctx context.Context, id string) (*store.Book, error) {
	b, err := l.st.GetBook(ctx, id)
	if err != nil {
		return nil, err
	}
	if b == nil {
		return nil, fmt.Errorf("%w: book %s", util.ErrNotFound, id)
	}
	return b, nil
}

// Delete removes a book with its file, cover and sessions
func (l *Library) Delete(ctx context.Context, id string) error {
	b, err := l.Get(ctx, id)
	if err != nil {
		return err
	}
	if err := l.st.DeleteBook(ctx, id); err != nil {
		return err
	}
	l.logger.LogDelete(b.ID, b.Title)
	return nil
}

// CoverImage returns the book's cover. A missing stored cover is
// regenerated from the file and saved.
func (l *Library) CoverImage(ctx context.Context, id string) (cover.Image, error) {
	b, err := l.Get(ctx, id)
	if err != nil {
		return cover.Image{}, err
	}
	if ref := b.Cover; ref != "" && ref != cover.StoredRef(id) {
		return l.covers.Resolve(ctx, cover.Input{URL: ref}), nil
	}

	c, err := l.st.GetCover(ctx, id)
	if err != nil {
		return cover.Image{}, err
	}
	if c != nil {
		return cover.Image{Data: c.Data, MimeType: c.MimeType, Source: cover.Source(c.Source)}, nil
	}

	in := cover.Input{Format: b.Format, Title: b.Title}
	if f, err := l.st.GetFile(ctx, id); err == nil && f != nil {
		in.Data = f.Data
	}
	img := l.covers.Resolve(ctx, in)
	if img.Data != nil {
		rec := &store.Cover{BookID: id, Data: img.Data, MimeType: img.MimeType, Source: string(img.Source)}
		if err := l.st.PutCover(ctx, rec); err != nil {
			util.WarnLog("Failed to cache cover for %s: %v", id, err)
		}
	}
	return img, nil
}

// Reset wipes the library and the reading goal
func (l *Library) Reset(ctx context.Context) (int, error) {
	books, err := l.st.GetAllBooks(ctx)
	if err != nil {
		return 0, err
	}
	if err := l.st.ClearAll(ctx); err != nil {
		return 0, err
	}
	l.logger.LogReset(len(books))
	return len(books), nil
}
