package report

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/franz/shelf/internal/format"
	"github.com/franz/shelf/internal/store"
)

// SummaryReport is a snapshot of the library and its reading goal
type SummaryReport struct {
	GeneratedAt time.Time

	// Library statistics
	Books      int
	ByStatus   map[store.Status]int
	ByFormat   map[format.Format]int
	TotalBytes int64

	Goal store.Goal

	// Activity from the event log
	Imported   int
	Duplicates int
	Skipped    int
	Finished   int

	// Details
	Reading   []BookLine
	TopErrors []ErrorSummary

	DatabasePath string
	EventLogPath string
}

// BookLine is one row of the in-progress table
type BookLine struct {
	Title      string
	Author     string
	Percent    int
	LastReadAt time.Time
}

// ErrorSummary represents an error with its count
type ErrorSummary struct {
	Error string
	Count int
}

// GenerateSummaryReport builds a report from the store and, when
// eventLogPath is set, from that JSONL audit log.
func GenerateSummaryReport(ctx context.Context, db *store.Store, eventLogPath string) (*SummaryReport, error) {
	report := &SummaryReport{
		GeneratedAt:  time.Now(),
		EventLogPath: eventLogPath,
		ByStatus:     make(map[store.Status]int),
		ByFormat:     make(map[format.Format]int),
		Reading:      make([]BookLine, 0),
		TopErrors:    make([]ErrorSummary, 0),
	}

	books, err := db.ListBooks(ctx, "")
	if err != nil {
		return nil, fmt.Errorf("failed to list books: %w", err)
	}
	for _, b := range books {
		report.Books++
		report.ByStatus[b.Status]++
		report.ByFormat[b.Format]++
		report.TotalBytes += b.SizeBytes
		if b.Status == store.StatusReading && len(report.Reading) < 10 {
			report.Reading = append(report.Reading, BookLine{
				Title:      b.Title,
				Author:     b.Author,
				Percent:    b.Percent,
				LastReadAt: b.LastReadAt,
			})
		}
	}

	goal, err := db.GetGoal(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load goal: %w", err)
	}
	report.Goal = *goal

	if eventLogPath != "" {
		events, err := ReadEvents(eventLogPath)
		if err != nil {
			return nil, err
		}
		for _, e := range events {
			switch e.Event {
			case EventImport:
				report.Imported++
			case EventDuplicate:
				report.Duplicates++
			case EventSkip:
				report.Skipped++
			case EventFinish:
				report.Finished++
			}
		}
		report.TopErrors = gatherTopErrors(events, 10)
	}

	return report, nil
}

// ReadEvents parses a JSONL event log. Lines that fail to decode are
// skipped.
func ReadEvents(path string) ([]Event, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open event log: %w", err)
	}
	defer f.Close()

	var events []Event
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)
	for scanner.Scan() {
		var e Event
		if err := json.Unmarshal(scanner.Bytes(), &e); err != nil {
			continue
		}
		events = append(events, e)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read event log: %w", err)
	}
	return events, nil
}

// gatherTopErrors counts error messages, most common first
func gatherTopErrors(events []Event, limit int) []ErrorSummary {
	errorCounts := make(map[string]int)
	for _, e := range events {
		if e.Error != "" {
			errorCounts[e.Error]++
		}
	}

	errors := make([]ErrorSummary, 0, len(errorCounts))
	for err, count := range errorCounts {
		errors = append(errors, ErrorSummary{
			Error: err,
			Count: count,
		})
	}

	sort.Slice(errors, func(i, j int) bool {
		if errors[i].Count != errors[j].Count {
			return errors[i].Count > errors[j].Count
		}
		return errors[i].Error < errors[j].Error
	})

	if len(errors) > limit {
		errors = errors[:limit]
	}

	return errors
}

// WriteMarkdownReport writes the summary report as Markdown
func WriteMarkdownReport(report *SummaryReport, outputPath string) error {
	dir := filepath.Dir(outputPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}

	if err := os.WriteFile(outputPath, []byte(RenderMarkdown(report)), 0644); err != nil {
		return fmt.Errorf("failed to write report: %w", err)
	}

	return nil
}

// RenderMarkdown formats the report as Markdown
func RenderMarkdown(report *SummaryReport) string {
	var md strings.Builder

	md.WriteString("# Shelf - Library Report\n\n")
	md.WriteString(fmt.Sprintf("**Generated:** %s\n\n", report.GeneratedAt.Format("2006-01-02 15:04:05")))

	if report.DatabasePath != "" {
		md.WriteString(fmt.Sprintf("**Database:** `%s`\n\n", report.DatabasePath))
	}
	if report.EventLogPath != "" {
		md.WriteString(fmt.Sprintf("**Event Log:** `%s`\n\n", report.EventLogPath))
	}

	md.WriteString("---\n\n")

	// Library
	md.WriteString("## 📚 Library\n\n")
	md.WriteString("| Metric | Value |\n")
	md.WriteString("|--------|-------|\n")
	md.WriteString(fmt.Sprintf("| Books | %d |\n", report.Books))
	for _, st := range []store.Status{store.StatusWantToRead, store.StatusReading, store.StatusFinished} {
		md.WriteString(fmt.Sprintf("| %s | %d |\n", st, report.ByStatus[st]))
	}
	md.WriteString(fmt.Sprintf("| Total Size | %s |\n", humanize.Bytes(uint64(report.TotalBytes))))
	md.WriteString("\n")

	if len(report.ByFormat) > 0 {
		formats := make([]string, 0, len(report.ByFormat))
		for f := range report.ByFormat {
			formats = append(formats, string(f))
		}
		sort.Strings(formats)
		md.WriteString("| Format | Books |\n")
		md.WriteString("|--------|-------|\n")
		for _, f := range formats {
			md.WriteString(fmt.Sprintf("| %s | %d |\n", f, report.ByFormat[format.Format(f)]))
		}
		md.WriteString("\n")
	}

	// Goal
	g := report.Goal
	md.WriteString("## 🔥 Reading Goal\n\n")
	md.WriteString("| Metric | Value |\n")
	md.WriteString("|--------|-------|\n")
	md.WriteString(fmt.Sprintf("| Daily Target | %d min |\n", g.DailyTarget))
	md.WriteString(fmt.Sprintf("| Current Streak | %d days |\n", g.CurrentStreak))
	md.WriteString(fmt.Sprintf("| Longest Streak | %d days |\n", g.LongestStreak))
	md.WriteString(fmt.Sprintf("| Books Completed | %d |\n", g.TotalBooksCompleted))
	md.WriteString(fmt.Sprintf("| Time Read | %s |\n", g.TotalTimeRead.Round(time.Minute)))
	if g.LastReadDate != "" {
		md.WriteString(fmt.Sprintf("| Last Read | %s |\n", g.LastReadDate))
	}
	md.WriteString("\n")

	// Currently reading
	if len(report.Reading) > 0 {
		md.WriteString("## 📖 Currently Reading\n\n")
		md.WriteString("| Title | Author | Progress | Last Read |\n")
		md.WriteString("|-------|--------|----------|-----------|\n")
		for _, b := range report.Reading {
			last := "never"
			if !b.LastReadAt.IsZero() {
				last = humanize.Time(b.LastReadAt)
			}
			md.WriteString(fmt.Sprintf("| %s | %s | %d%% | %s |\n", truncateText(b.Title, 60), b.Author, b.Percent, last))
		}
		md.WriteString("\n")
	}

	// Activity
	if report.Imported > 0 || report.Duplicates > 0 || report.Skipped > 0 || report.Finished > 0 {
		md.WriteString("## 📥 Activity\n\n")
		md.WriteString("| Metric | Value |\n")
		md.WriteString("|--------|-------|\n")
		md.WriteString(fmt.Sprintf("| Imported | %d |\n", report.Imported))
		md.WriteString(fmt.Sprintf("| Duplicates | %d |\n", report.Duplicates))
		md.WriteString(fmt.Sprintf("| Skipped | %d |\n", report.Skipped))
		md.WriteString(fmt.Sprintf("| Finished | %d |\n", report.Finished))
		md.WriteString("\n")
	}

	// Errors
	if len(report.TopErrors) > 0 {
		md.WriteString("## ⚠️ Top Errors\n\n")
		md.WriteString("| Count | Error |\n")
		md.WriteString("|-------|-------|\n")
		for _, err := range report.TopErrors {
			md.WriteString(fmt.Sprintf("| %d | %s |\n", err.Count, err.Error))
		}
		md.WriteString("\n")
	}

	md.WriteString("---\n\n")
	md.WriteString("*Generated by shelf*\n")

	return md.String()
}

// truncateText shortens s to maxLen bytes, keeping the start and end
func truncateText(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	start := maxLen/2 - 2
	end := len(s) - (maxLen/2 - 2)
	return s[:start] + "..." + s[end:]
}
