package main

import (
	"context"
	"fmt"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/dustin/go-humanize"
	"github.com/franz/shelf/internal/library"
	"github.com/franz/shelf/internal/store"
	"github.com/franz/shelf/internal/util"
	"github.com/spf13/cobra"
)

var listCmd = &cobra.Command{
	Use:     "list",
	Aliases: []string{"ls"},
	Short:   "List the books in the library",
	Long: `List books, most recently read first, then most recently added.

Books whose format has no reader yet are marked "(disabled)".`,
	Args: cobra.NoArgs,
	RunE: runList,
}

func init() {
	rootCmd.AddCommand(listCmd)

	listCmd.Flags().StringP("status", "s", "", "only books with this status (want-to-read, reading, finished)")
	listCmd.Flags().Bool("ids", false, "print full book ids")
}

func runList(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	var filter library.Filter
	if s, _ := cmd.Flags().GetString("status"); s != "" {
		st, err := store.ParseStatus(s)
		if err != nil {
			return err
		}
		filter.Status = st
	}
	fullIDs, _ := cmd.Flags().GetBool("ids")

	a, err := openApp()
	if err != nil {
		return err
	}
	defer a.Close()

	entries, err := a.lib.List(ctx, filter)
	if err != nil {
		return fmt.Errorf("failed to list books: %w", err)
	}
	if len(entries) == 0 {
		util.InfoLog("No books found. Add some with 'shelf import <file|dir>'.")
		return nil
	}

	titleWidth := util.GetTerminalWidth() / 3
	if titleWidth < 20 {
		titleWidth = 20
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tTITLE\tAUTHOR\tFORMAT\tSTATUS\tPROGRESS\tSIZE\tLAST READ")
	for _, e := range entries {
		b := e.Book
		id := b.ID
		if !fullIDs {
			id = id[:8]
		}
		last := "-"
		if !b.LastReadAt.IsZero() {
			last = humanize.Time(b.LastReadAt)
		}
		formatTag := b.Format.String()
		if !e.Renderable {
			formatTag += " (disabled)"
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%d%%\t%s\t%s\n",
			id,
			util.Truncate(b.Title, titleWidth),
			util.Truncate(b.Author, 24),
			formatTag,
			b.Status,
			b.Percent,
			humanize.Bytes(uint64(b.SizeBytes)),
			last)
	}
	if err := w.Flush(); err != nil {
		return err
	}

	util.InfoLog("%d %s", len(entries), plural(len(entries), "book", "books"))
	return nil
}

func plural(n int, one, many string) string {
	if n == 1 {
		return one
	}
	return many
}

// resolveBookID accepts a full id or a unique prefix of one
func resolveBookID(ctx context.Context, lib *library.Library, prefix string) (string, error) {
	prefix = strings.ToLower(strings.TrimSpace(prefix))
	if prefix == "" {
		return "", fmt.Errorf("%w: empty book id", util.ErrNotFound)
	}
	entries, err := lib.List(ctx, library.Filter{})
	if err != nil {
		return "", err
	}
	var matches []string
	for _, e := range entries {
		if e.Book.ID == prefix {
			return prefix, nil
		}
		if strings.HasPrefix(e.Book.ID, prefix) {
			matches = append(matches, e.Book.ID)
		}
	}
	switch len(matches) {
	case 0:
		return "", fmt.Errorf("%w: no book matches %q", util.ErrNotFound, prefix)
	case 1:
		return matches[0], nil
	}
	return "", fmt.Errorf("book id %q is ambiguous (%d matches)", prefix, len(matches))
}
