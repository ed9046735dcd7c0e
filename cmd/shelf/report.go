package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/franz/shelf/internal/report"
	"github.com/franz/shelf/internal/store"
	"github.com/franz/shelf/internal/util"
	"github.com/spf13/cobra"
)

var reportCmd = &cobra.Command{
	Use:   "report",
	Short: "Generate a summary report from the database and event logs",
	Long: `Generate a library summary in Markdown format.

The report includes:
- Books by status and format
- Reading streaks and time read
- Books in progress
- Import activity and top errors from the event log

The report is saved to artifacts/reports/<timestamp>/summary.md`,
	Args: cobra.NoArgs,
	RunE: runReport,
}

func init() {
	rootCmd.AddCommand(reportCmd)

	reportCmd.Flags().String("out", "", "Output directory for report (default: artifacts/reports/<timestamp>)")
	reportCmd.Flags().String("event-log", "", "Path to event log file (default: newest log in --events-dir)")
}

func runReport(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	a, err := openApp()
	if err != nil {
		return err
	}
	defer a.Close()

	util.InfoLog("=== Generating Summary Report ===")
	util.InfoLog("Database: %s", a.cfg.DB)

	eventLogPath, _ := cmd.Flags().GetString("event-log")
	if eventLogPath == "" && a.cfg.EventsDir != "" {
		eventLogPath = latestEventLog(a.cfg.EventsDir, a.logger.Path())
	}
	if eventLogPath != "" {
		util.InfoLog("Event log: %s", eventLogPath)
	}

	util.InfoLog("Analyzing data...")
	summary, err := report.GenerateSummaryReport(ctx, a.db, eventLogPath)
	if err != nil {
		return fmt.Errorf("failed to generate report: %w", err)
	}
	summary.DatabasePath = a.cfg.DB

	outputDir, _ := cmd.Flags().GetString("out")
	if outputDir == "" {
		outputDir = filepath.Join("artifacts", "reports", time.Now().Format("20060102-150405"))
	}
	outputPath := filepath.Join(outputDir, "summary.md")

	util.InfoLog("Writing report to: %s", outputPath)
	if err := report.WriteMarkdownReport(summary, outputPath); err != nil {
		return fmt.Errorf("failed to write report: %w", err)
	}

	util.SuccessLog("Report generated successfully!")
	util.InfoLog("")
	util.InfoLog("Summary:")
	util.InfoLog("  Books: %d (%s)", summary.Books, humanize.Bytes(uint64(summary.TotalBytes)))
	for _, st := range sortedStatuses(summary) {
		util.InfoLog("    %s: %d", st, summary.ByStatus[st])
	}
	if summary.Imported > 0 || summary.Duplicates > 0 {
		util.InfoLog("  Imported: %d, duplicates: %d", summary.Imported, summary.Duplicates)
	}
	if len(summary.TopErrors) > 0 {
		util.WarnLog("  Distinct errors: %d", len(summary.TopErrors))
	}
	return nil
}

func sortedStatuses(r *report.SummaryReport) []store.Status {
	out := make([]store.Status, 0, len(r.ByStatus))
	for st := range r.ByStatus {
		out = append(out, st)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Before(out[j]) })
	return out
}

// latestEventLog returns the newest events-*.jsonl in dir other than
// skip, the log this run has just opened
func latestEventLog(dir, skip string) string {
	matches, err := filepath.Glob(filepath.Join(dir, "events-*.jsonl"))
	if err != nil {
		return ""
	}
	var newest string
	var newestMod time.Time
	for _, m := range matches {
		if m == skip {
			continue
		}
		info, err := os.Stat(m)
		if err != nil {
			continue
		}
		if newest == "" || info.ModTime().After(newestMod) {
			newest, newestMod = m, info.ModTime()
		}
	}
	return newest
}
