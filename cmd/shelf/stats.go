package main

import (
	"context"
	"fmt"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/franz/shelf/internal/stats"
	"github.com/franz/shelf/internal/store"
	"github.com/spf13/cobra"
)

var statsCmd = &cobra.Command{
	Use:   "stats [book-id]",
	Short: "Show reading streaks, or the sessions of one book",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runStats,
}

func init() {
	rootCmd.AddCommand(statsCmd)

	statsCmd.Flags().Int("target", 0, "set the daily reading target in minutes")
}

func runStats(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	a, err := openApp()
	if err != nil {
		return err
	}
	defer a.Close()

	if target, _ := cmd.Flags().GetInt("target"); cmd.Flags().Changed("target") {
		if err := a.tracker.SetDailyTarget(ctx, target); err != nil {
			return err
		}
	} else if err := a.syncDailyTarget(ctx); err != nil {
		return err
	}

	if len(args) == 1 {
		return printSessions(ctx, a, args[0])
	}

	g, err := a.tracker.Goal(ctx)
	if err != nil {
		return err
	}
	printGoal(g, time.Now())
	return nil
}

func printGoal(g store.Goal, now time.Time) {
	fmt.Println("=== Reading ===")
	fmt.Printf("Daily target:     %d min\n", g.DailyTarget)
	streak := g.CurrentStreak
	if g.LastReadDate != "" && g.LastReadDate != stats.Day(now) && g.LastReadDate != stats.Day(now.AddDate(0, 0, -1)) {
		// the streak is broken but not yet recorded as such
		streak = 0
	}
	fmt.Printf("Current streak:   %d %s\n", streak, plural(streak, "day", "days"))
	fmt.Printf("Longest streak:   %d %s\n", g.LongestStreak, plural(g.LongestStreak, "day", "days"))
	last := "never"
	if g.LastReadDate != "" {
		last = g.LastReadDate
	}
	fmt.Printf("Last read:        %s\n", last)
	fmt.Printf("Books finished:   %d\n", g.TotalBooksCompleted)
	fmt.Printf("Time read:        %s\n", g.TotalTimeRead.Round(time.Minute))
}

func printSessions(ctx context.Context, a *app, prefix string) error {
	id, err := resolveBookID(ctx, a.lib, prefix)
	if err != nil {
		return err
	}
	book, err := a.lib.Get(ctx, id)
	if err != nil {
		return err
	}
	sessions, err := a.db.ListSessionsByBook(ctx, id)
	if err != nil {
		return err
	}

	fmt.Printf("%s - %s (%s, %d%%)\n", book.Title, book.Author, book.Status, book.Percent)
	if len(sessions) == 0 {
		fmt.Println("No reading sessions yet.")
		return nil
	}
	var total time.Duration
	for _, s := range sessions {
		d := s.EndedAt.Sub(s.StartedAt)
		total += d
		fmt.Printf("  %s  %-8s  %3d%% -> %3d%%  %d %s\n",
			humanize.Time(s.StartedAt), d.Round(time.Second),
			s.StartPercent, s.EndPercent, s.Pages, plural(s.Pages, "page", "pages"))
	}
	fmt.Printf("%d %s, %s in total\n", len(sessions), plural(len(sessions), "session", "sessions"), total.Round(time.Second))
	return nil
}
