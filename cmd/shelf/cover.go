package main

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/franz/shelf/internal/cover"
	"github.com/franz/shelf/internal/util"
	"github.com/spf13/cobra"
)

var coverCmd = &cobra.Command{
	Use:   "cover <book-id>",
	Short: "Write a book's cover image to a file",
	Long: `Write the cover image of a book. Covers that were never stored are
extracted again from the book file, or generated when the book has none.
Books whose cover is an external URL print the URL instead.`,
	Args: cobra.ExactArgs(1),
	RunE: runCover,
}

func init() {
	rootCmd.AddCommand(coverCmd)

	coverCmd.Flags().StringP("out", "o", "", "output file (default: <book-id>.<ext>)")
}

func runCover(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	a, err := openApp()
	if err != nil {
		return err
	}
	defer a.Close()

	id, err := resolveBookID(ctx, a.lib, args[0])
	if err != nil {
		return err
	}
	img, err := a.lib.CoverImage(ctx, id)
	if err != nil {
		return err
	}
	if img.Source == cover.SourceExternal {
		fmt.Println(img.URL)
		return nil
	}

	out, _ := cmd.Flags().GetString("out")
	if out == "" {
		ext := strings.TrimPrefix(img.MimeType, "image/")
		if ext == "jpeg" {
			ext = "jpg"
		}
		out = id + "." + ext
	}
	if err := os.WriteFile(out, img.Data, 0644); err != nil {
		return fmt.Errorf("failed to write cover: %w", err)
	}
	util.SuccessLog("Wrote %s cover to %s (%s)", img.Source, out, humanize.Bytes(uint64(len(img.Data))))
	return nil
}
