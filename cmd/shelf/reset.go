package main

import (
	"context"
	"fmt"
	"os"

	"github.com/franz/shelf/internal/util"
	"github.com/spf13/cobra"
)

var resetCmd = &cobra.Command{
	Use:   "reset",
	Short: "Delete every book, session and the reading goal",
	Long: `Wipe the library. Books, stored files, covers, reading sessions and
streaks are all removed. The database file itself is kept.`,
	Args: cobra.NoArgs,
	RunE: runReset,
}

func init() {
	rootCmd.AddCommand(resetCmd)

	resetCmd.Flags().BoolP("yes", "y", false, "do not ask for confirmation")
}

func runReset(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	a, err := openApp()
	if err != nil {
		return err
	}
	defer a.Close()

	yes, _ := cmd.Flags().GetBool("yes")
	if !yes && !confirm(os.Stdin, fmt.Sprintf("Remove everything in %s?", a.cfg.DB)) {
		util.InfoLog("Aborted")
		return nil
	}

	n, err := a.lib.Reset(ctx)
	if err != nil {
		return fmt.Errorf("failed to reset library: %w", err)
	}
	a.tracker.Invalidate()

	util.SuccessLog("Removed %d %s and the reading goal", n, plural(n, "book", "books"))
	return nil
}
