package main

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/franz/shelf/internal/library"
	"github.com/franz/shelf/internal/scan"
	"github.com/franz/shelf/internal/util"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var importCmd = &cobra.Command{
	Use:   "import <file|dir>...",
	Short: "Add books to the library",
	Long: `Import PDF, EPUB and text files. Directories are searched recursively.

Each file is identified by a hash of its bytes, so importing the same file
again (under any name) finds the existing book instead of adding a copy.
Titles and authors are read from the file where possible and cleaned up;
otherwise the filename is used. Comic archives (.cbz/.cbr/.cb7) are listed
but cannot be opened yet.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runImport,
}

func init() {
	rootCmd.AddCommand(importCmd)

	importCmd.Flags().IntP("concurrency", "c", 0, "parallel imports (default from config)")
	importCmd.Flags().String("max-file-size", "", "largest file to import, e.g. 200MB")
	viper.BindPFlag("concurrency", importCmd.Flags().Lookup("concurrency"))
	viper.BindPFlag("max_file_size", importCmd.Flags().Lookup("max-file-size"))
}

func runImport(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	a, err := openApp()
	if err != nil {
		return err
	}
	defer a.Close()

	if a.logger.Path() != "" {
		util.DebugLog("Event log: %s", a.logger.Path())
	}

	start := time.Now()
	var (
		mu   sync.Mutex
		done int
	)
	bar := scan.NewBar(-1, "Importing")
	onResult := func(r library.ImportResult) {
		mu.Lock()
		defer mu.Unlock()
		done++
		if bar != nil {
			bar.Describe(fmt.Sprintf("Importing | %d done", done))
			bar.Add(1)
		}
		if r.Err != nil {
			util.WarnLog("%s: %v", r.Path, r.Err)
		}
	}

	res, err := a.lib.ImportPaths(ctx, args, onResult)
	if bar != nil {
		bar.Finish()
	}
	if err != nil {
		return fmt.Errorf("import failed: %w", err)
	}

	util.SuccessLog("Import complete in %v", time.Since(start).Round(time.Millisecond))
	util.InfoLog("  New books: %d", res.Imported)
	if res.Duplicates > 0 {
		util.InfoLog("  Already in library: %d", res.Duplicates)
	}
	if res.Failed > 0 {
		util.WarnLog("  Failed or skipped: %d", res.Failed)
	}
	for _, r := range res.Results {
		if r.Created && r.Book != nil {
			util.DebugLog("  %s  %s - %s", r.Book.ID[:8], r.Book.Title, r.Book.Author)
		}
	}

	if res.Imported == 0 && res.Duplicates == 0 && res.Failed > 0 {
		return fmt.Errorf("no books imported")
	}
	return nil
}
