package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/franz/shelf/internal/controller"
	"github.com/franz/shelf/internal/reader"
	"github.com/franz/shelf/internal/util"
	"github.com/spf13/cobra"
)

var readCmd = &cobra.Command{
	Use:   "read <book-id>",
	Short: "Open a book at its saved position",
	Long: `Open a book and navigate it from the terminal.

Commands are read from stdin, one per line:
  n, next         next page or screen
  p, prev         previous page or screen
  j <position>    jump to a position token (page number for PDF,
                  "section:offset" for EPUB, screen number for text)
  o <offset>      scroll to a pixel offset from the top of the book
  w <dir>         write the rendered PDF pages around the current one
  s, status       show the current position
  q, quit         save and close

With --next N the book is advanced N pages without reading stdin.
Progress is saved as you read and when the book is closed.`,
	Args: cobra.ExactArgs(1),
	RunE: runRead,
}

func init() {
	rootCmd.AddCommand(readCmd)

	readCmd.Flags().Int("next", -1, "advance N pages and close instead of reading commands")
	readCmd.Flags().String("mode", string(reader.ModePaginated), "display mode: paginated or continuous")
	readCmd.Flags().String("theme", string(reader.ThemeLight), "theme: light, dark or sepia")
	readCmd.Flags().Float64("font-scale", 1, "font scale, 0.5 to 3")
	readCmd.Flags().Int("width", 0, "viewport width in pixels")
	readCmd.Flags().Int("height", 0, "viewport height in pixels")
	readCmd.Flags().Bool("excerpt", true, "print the visible text after each move")
}

func runRead(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	display := reader.DisplayOptions{}
	mode, _ := cmd.Flags().GetString("mode")
	switch reader.DisplayMode(mode) {
	case reader.ModePaginated, reader.ModeContinuous:
		display.Mode = reader.DisplayMode(mode)
	default:
		return fmt.Errorf("%w: unknown mode %q", util.ErrInvalidConfig, mode)
	}
	theme, _ := cmd.Flags().GetString("theme")
	display.Theme = reader.Theme(theme)
	display.FontScale, _ = cmd.Flags().GetFloat64("font-scale")

	var vp reader.Viewport
	vp.Width, _ = cmd.Flags().GetInt("width")
	vp.Height, _ = cmd.Flags().GetInt("height")
	if (vp.Width > 0) != (vp.Height > 0) {
		return fmt.Errorf("%w: set both --width and --height", util.ErrInvalidConfig)
	}
	steps, _ := cmd.Flags().GetInt("next")
	showExcerpt, _ := cmd.Flags().GetBool("excerpt")

	a, err := openApp()
	if err != nil {
		return err
	}
	defer a.Close()

	if err := a.syncDailyTarget(ctx); err != nil {
		util.WarnLog("Failed to update daily target: %v", err)
	}

	id, err := resolveBookID(ctx, a.lib, args[0])
	if err != nil {
		return err
	}

	c := a.controller(display, vp)
	book, err := c.Open(ctx, id)
	if err != nil {
		if errors.Is(err, util.ErrNotFound) {
			util.WarnLog("Book is missing from the library. Run 'shelf list' to see what is available.")
		}
		return err
	}
	defer func() {
		if err := c.Close(ctx); err != nil {
			util.WarnLog("Failed to save progress: %v", err)
		}
	}()

	waitCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	err = c.WaitReady(waitCtx)
	cancel()
	if err != nil {
		return fmt.Errorf("failed to show %q: %w", book.Title, err)
	}

	fmt.Printf("%s - %s\n", book.Title, book.Author)
	s := &session{c: c, out: os.Stdout, excerpt: showExcerpt}
	s.show()

	if steps >= 0 {
		for i := 0; i < steps; i++ {
			if err := s.move(ctx, reader.Next); err != nil {
				return err
			}
		}
		return nil
	}
	return s.loop(ctx, os.Stdin)
}

// session drives an open book from line commands
type session struct {
	c       *controller.Controller
	out     io.Writer
	excerpt bool
}

func (s *session) loop(ctx context.Context, in io.Reader) error {
	scanner := bufio.NewScanner(in)
	for {
		fmt.Fprint(s.out, "> ")
		if !scanner.Scan() {
			fmt.Fprintln(s.out)
			return scanner.Err()
		}
		quit, err := s.exec(ctx, scanner.Text())
		if err != nil {
			fmt.Fprintf(s.out, "error: %v\n", err)
		}
		if quit {
			return nil
		}
	}
}

// exec runs one command line and reports whether to quit
func (s *session) exec(ctx context.Context, line string) (bool, error) {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return false, nil
	}
	switch strings.ToLower(fields[0]) {
	case "n", "next":
		return false, s.move(ctx, reader.Next)
	case "p", "prev", "previous":
		return false, s.move(ctx, reader.Previous)
	case "j", "jump":
		if len(fields) != 2 {
			return false, fmt.Errorf("usage: j <position>")
		}
		before := s.c.Snapshot().Position
		if err := s.c.JumpTo(ctx, reader.Position(fields[1])); err != nil {
			return false, err
		}
		s.settle(before)
		s.show()
	case "o", "scroll":
		if len(fields) != 2 {
			return false, fmt.Errorf("usage: o <offset>")
		}
		offset, err := strconv.Atoi(fields[1])
		if err != nil {
			return false, fmt.Errorf("invalid offset %q", fields[1])
		}
		before := s.c.Snapshot().Position
		if err := s.c.ScrollTo(ctx, offset); err != nil {
			return false, err
		}
		s.settle(before)
		s.show()
	case "w", "write":
		if len(fields) != 2 {
			return false, fmt.Errorf("usage: w <dir>")
		}
		n, err := writePages(s.c.Window(), fields[1])
		if err != nil {
			return false, err
		}
		fmt.Fprintf(s.out, "wrote %d %s to %s\n", n, plural(n, "page", "pages"), fields[1])
	case "s", "status":
		s.show()
	case "q", "quit", "exit":
		return true, nil
	default:
		return false, fmt.Errorf("unknown command %q (n, p, j <pos>, o <offset>, w <dir>, s, q)", fields[0])
	}
	return false, nil
}

func (s *session) move(ctx context.Context, dir reader.Direction) error {
	before := s.c.Snapshot().Position
	if err := s.c.Navigate(ctx, dir); err != nil {
		return err
	}
	s.settle(before)
	s.show()
	return nil
}

// settle waits briefly for the position event a command produced. At
// either end of a book no event arrives and the wait times out.
func (s *session) settle(before reader.PositionEvent) {
	deadline := time.Now().Add(250 * time.Millisecond)
	for time.Now().Before(deadline) {
		if s.c.Snapshot().Position != before {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func (s *session) show() {
	snap := s.c.Snapshot()
	fmt.Fprintln(s.out, statusLine(snap))
	if w := windowLine(s.c.Window()); w != "" {
		fmt.Fprintln(s.out, w)
	}
	if snap.Err != nil {
		fmt.Fprintf(s.out, "! %v\n", snap.Err)
	}
	if s.excerpt {
		if text := s.c.Excerpt(); text != "" {
			fmt.Fprintln(s.out, util.Truncate(strings.Join(strings.Fields(text), " "), 3*util.GetTerminalWidth()))
		}
	}
}

// statusLine renders "[page 3/10] 30%  (reading)"
func statusLine(snap controller.Snapshot) string {
	p := snap.Position
	var where string
	switch {
	case p.Pending:
		where = "[calculating locations]"
	case p.Total > 0:
		where = fmt.Sprintf("[%d/%d]", p.Current, p.Total)
	default:
		where = "[" + strconv.Quote(string(p.Position)) + "]"
	}
	return fmt.Sprintf("%s %d%%  (%s)", where, snap.Book.Percent, snap.Book.Status)
}

// windowLine summarizes the rendered pages, e.g. "pages 3-7, 2 rendered"
func windowLine(slots []reader.PageSlot) string {
	first, last, rendered := 0, 0, 0
	for _, slot := range slots {
		if slot.Placeholder {
			continue
		}
		if first == 0 {
			first = slot.Page
		}
		last = slot.Page
		if slot.Image != nil {
			rendered++
		}
	}
	if first == 0 {
		return ""
	}
	if first == last {
		return fmt.Sprintf("page %d, %d rendered", first, rendered)
	}
	return fmt.Sprintf("pages %d-%d, %d rendered", first, last, rendered)
}

// writePages saves the rendered pages of the window as page-N.png
func writePages(slots []reader.PageSlot, dir string) (int, error) {
	if slots == nil {
		return 0, fmt.Errorf("%w: this book has no rendered pages", util.ErrUnsupported)
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return 0, fmt.Errorf("failed to create %s: %w", dir, err)
	}
	n := 0
	for _, slot := range slots {
		if slot.Placeholder || slot.Image == nil {
			continue
		}
		path := filepath.Join(dir, fmt.Sprintf("page-%d.png", slot.Page))
		if err := os.WriteFile(path, slot.Image, 0644); err != nil {
			return n, fmt.Errorf("failed to write %s: %w", path, err)
		}
		n++
	}
	return n, nil
}
