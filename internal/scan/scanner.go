// Package scan finds book files under the paths given to import.
package scan

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync/atomic"
	"time"

	"github.com/franz/shelf/internal/format"
	"github.com/franz/shelf/internal/report"
	"github.com/franz/shelf/internal/util"
	"github.com/schollz/progressbar/v3"
)

// Found is one candidate book file
type Found struct {
	Path   string
	Size   int64
	Format format.Format
}

// Scanner discovers book files in files and directory trees
type Scanner struct {
	extensions map[string]bool
	hidden     bool
	logger     *report.EventLogger
}

// Config holds scanner configuration
type Config struct {
	AdditionalExts []string
	// IncludeHidden descends into dot directories and picks up dot files
	IncludeHidden bool
	Logger        *report.EventLogger
}

// New creates a new Scanner
func New(cfg *Config) *Scanner {
	extMap := make(map[string]bool)
	for _, ext := range format.Supported() {
		extMap[strings.ToLower(ext)] = true
	}
	for _, ext := range cfg.AdditionalExts {
		if !strings.HasPrefix(ext, ".") {
			ext = "." + ext
		}
		extMap[strings.ToLower(ext)] = true
	}

	return &Scanner{
		extensions: extMap,
		hidden:     cfg.IncludeHidden,
		logger:     cfg.Logger,
	}
}

// Result represents a scan result
type Result struct {
	Files   []Found
	Skipped []string // explicit file arguments with an unknown extension
	Errors  []error
}

// Scan expands paths into book files. Directories are walked
// recursively; unknown files inside them are ignored silently, while an
// unknown file named directly is reported as skipped. The same file
// reached twice is returned once.
func (s *Scanner) Scan(ctx context.Context, paths []string) (*Result, error) {
	result := &Result{
		Files:  make([]Found, 0),
		Errors: make([]error, 0),
	}
	seen := make(map[string]bool)
	var found atomic.Int64

	bar := NewBar(-1, "Scanning")
	stopProgress := make(chan struct{})
	progressDone := make(chan struct{})
	go func() {
		defer close(progressDone)
		ticker := time.NewTicker(200 * time.Millisecond)
		defer ticker.Stop()
		for {
			select {
			case <-stopProgress:
				return
			case <-ticker.C:
				if bar != nil {
					bar.Describe(fmt.Sprintf("Scanning | %d books found", found.Load()))
					bar.Set64(found.Load())
				}
			}
		}
	}()

	add := func(path string, size int64) {
		abs, err := filepath.Abs(path)
		if err == nil {
			path = abs
		}
		if seen[path] {
			return
		}
		seen[path] = true
		found.Add(1)
		result.Files = append(result.Files, Found{Path: path, Size: size, Format: format.Detect(path)})
		util.DebugLog("Found: %s", path)
	}

	var walkErr error
	for _, root := range paths {
		if err := ctx.Err(); err != nil {
			walkErr = err
			break
		}
		info, err := os.Stat(root)
		if err != nil {
			util.WarnLog("Error accessing path %s: %v", root, err)
			result.Errors = append(result.Errors, fmt.Errorf("access error: %s: %w", root, err))
			s.logger.LogError(report.EventImport, root, err)
			continue
		}

		if !info.IsDir() {
			if s.isBookFile(root) {
				add(root, info.Size())
			} else {
				result.Skipped = append(result.Skipped, root)
				s.logger.LogSkip(root, "unsupported format")
			}
			continue
		}

		err = filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return ctxErr
			}
			if err != nil {
				util.WarnLog("Error accessing path %s: %v", path, err)
				result.Errors = append(result.Errors, fmt.Errorf("access error: %s: %w", path, err))
				return nil
			}

			name := d.Name()
			if !s.hidden && path != root && strings.HasPrefix(name, ".") {
				if d.IsDir() {
					return filepath.SkipDir
				}
				return nil
			}
			if d.IsDir() || !s.isBookFile(path) {
				return nil
			}

			fi, err := d.Info()
			if err != nil {
				result.Errors = append(result.Errors, fmt.Errorf("stat error: %s: %w", path, err))
				return nil
			}
			add(path, fi.Size())
			return nil
		})
		if err != nil {
			walkErr = err
			break
		}
	}

	close(stopProgress)
	<-progressDone
	if bar != nil {
		bar.Finish()
	}

	sort.Slice(result.Files, func(i, j int) bool { return result.Files[i].Path < result.Files[j].Path })

	if walkErr != nil && !errors.Is(walkErr, context.Canceled) {
		return result, fmt.Errorf("walk error: %w", walkErr)
	}

	util.DebugLog("Scan complete: %d books found, %d skipped, %d errors",
		len(result.Files), len(result.Skipped), len(result.Errors))

	return result, walkErr
}

// isBookFile checks if a file has a supported book extension
func (s *Scanner) isBookFile(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	return s.extensions[ext]
}

// GetSupportedExtensions returns the sorted list of supported extensions
func (s *Scanner) GetSupportedExtensions() []string {
	exts := make([]string, 0, len(s.extensions))
	for ext := range s.extensions {
		exts = append(exts, ext)
	}
	sort.Strings(exts)
	return exts
}

// NewBar returns a progress bar on stdout, or nil when stdout is not a
// terminal or output is quiet. A negative total is indeterminate.
func NewBar(total int64, description string) *progressbar.ProgressBar {
	if !util.IsTerminal(os.Stdout.Fd()) || util.IsQuiet() {
		return nil
	}
	return progressbar.NewOptions64(total,
		progressbar.OptionSetDescription(description),
		progressbar.OptionSetWidth(40),
		progressbar.OptionShowCount(),
		progressbar.OptionShowIts(),
		progressbar.OptionSetItsString("books"),
		progressbar.OptionThrottle(200*time.Millisecond),
		progressbar.OptionClearOnFinish(),
		progressbar.OptionSetRenderBlankState(true),
	)
}
