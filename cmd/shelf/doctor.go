package main

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/franz/shelf/internal/store"
	"github.com/franz/shelf/internal/util"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var doctorCmd = &cobra.Command{
	Use:   "doctor",
	Short: "Run diagnostic checks on the environment and configuration",
	Long: `Run diagnostic checks to ensure shelf can operate correctly.

This command checks:
- SQLite version and database integrity
- Whether the database sits on a network filesystem
- ImageMagick, used to render PDF pages and covers
- An import directory, when given
- Disk space next to the database

Use this command to troubleshoot issues before importing or reading.`,
	Args: cobra.NoArgs,
	RunE: runDoctor,
}

func init() {
	rootCmd.AddCommand(doctorCmd)

	doctorCmd.Flags().String("dir", "", "Import directory to check (optional)")
}

type checkResult struct {
	name    string
	message string
	error   bool
	warning bool
}

func runDoctor(cmd *cobra.Command, args []string) error {
	util.InfoLog("=== Shelf Doctor - System Diagnostics ===")
	util.InfoLog("")

	results := []checkResult{checkSQLite()}

	dbPath := GetConfigString("db", defaultDB)
	results = append(results, checkDatabase(dbPath))
	results = append(results, checkDatabaseMount(dbPath, viper.GetBool("network_db")))
	results = append(results, checkImageMagick())

	if dir, _ := cmd.Flags().GetString("dir"); dir != "" {
		results = append(results, checkImportDirectory(dir))
	}

	dbDir := filepath.Dir(dbPath)
	results = append(results, checkDiskSpace(dbDir, "database"))

	util.InfoLog("")
	util.InfoLog("=== Diagnostic Results ===")
	util.InfoLog("")

	hasErrors := false
	hasWarnings := false
	for _, r := range results {
		symbol := "✓"
		if r.error {
			symbol = "✗"
			hasErrors = true
		} else if r.warning {
			symbol = "⚠"
			hasWarnings = true
		}

		line := fmt.Sprintf("[%s] %s", symbol, r.name)
		if r.message != "" {
			line += ": " + r.message
		}

		switch {
		case r.error:
			util.ErrorLog("%s", line)
		case r.warning:
			util.WarnLog("%s", line)
		default:
			util.SuccessLog("%s", line)
		}
	}

	util.InfoLog("")
	if hasErrors {
		util.ErrorLog("Some critical checks failed. Please resolve errors before using shelf.")
		return fmt.Errorf("system diagnostics failed")
	} else if hasWarnings {
		util.WarnLog("Some checks produced warnings. Review them before proceeding.")
	} else {
		util.SuccessLog("All checks passed!")
	}
	return nil
}

// checkSQLite verifies the embedded SQLite reports a version
func checkSQLite() checkResult {
	version := store.SQLiteVersion()
	if version == "" {
		return checkResult{name: "SQLite", error: true, message: "unable to determine version"}
	}
	return checkResult{name: "SQLite", message: fmt.Sprintf("version %s (built-in)", version)}
}

// checkDatabase verifies the database file opens and passes an integrity check
func checkDatabase(dbPath string) checkResult {
	if dbPath == "" {
		return checkResult{
			name:    "Database",
			warning: true,
			message: "no database path specified (use --db flag or config)",
		}
	}

	info, err := os.Stat(dbPath)
	if err != nil {
		if os.IsNotExist(err) {
			return checkResult{name: "Database", message: fmt.Sprintf("%s (will be created on first run)", dbPath)}
		}
		return checkResult{name: "Database", error: true, message: fmt.Sprintf("cannot access %s: %v", dbPath, err)}
	}
	if !info.Mode().IsRegular() {
		return checkResult{name: "Database", error: true, message: fmt.Sprintf("%s is not a regular file", dbPath)}
	}

	db, err := store.Open(dbPath)
	if err != nil {
		return checkResult{name: "Database", error: true, message: fmt.Sprintf("cannot open %s: %v", dbPath, err)}
	}
	defer db.Close()

	if err := db.CheckIntegrity(); err != nil {
		return checkResult{name: "Database", error: true, message: fmt.Sprintf("integrity check failed: %v", err)}
	}

	counts, _ := db.CountBooksByStatus(context.Background())
	books := 0
	for _, n := range counts {
		books += n
	}
	return checkResult{
		name:    "Database",
		message: fmt.Sprintf("%s (%s, %d %s)", dbPath, humanize.Bytes(uint64(info.Size())), books, plural(books, "book", "books")),
	}
}

// checkDatabaseMount warns when the database lives on a network
// filesystem without network_db set
func checkDatabaseMount(dbPath string, networkDB bool) checkResult {
	mount, err := util.DetectMount(filepath.Dir(dbPath))
	if err != nil {
		return checkResult{name: "Database filesystem", warning: true, message: fmt.Sprintf("cannot detect mount: %v", err)}
	}
	if mount.IsNetwork && !networkDB {
		return checkResult{
			name:    "Database filesystem",
			warning: true,
			message: fmt.Sprintf("%s is on %s; set network_db: true or move the database", mount.MountPath, mount.FSType),
		}
	}
	fsType := mount.FSType
	if fsType == "" {
		fsType = "local"
	}
	return checkResult{name: "Database filesystem", message: fsType}
}

// checkImageMagick verifies ImageMagick is available for PDF rendering.
// Without it PDFs still import, with generated covers.
func checkImageMagick() checkResult {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	output, err := exec.CommandContext(ctx, "magick", "-version").CombinedOutput()
	if err != nil {
		return checkResult{
			name:    "ImageMagick",
			warning: true,
			message: "not found (PDF pages cannot be rendered; covers fall back to placeholders)",
		}
	}

	version := "unknown"
	if lines := strings.Split(string(output), "\n"); len(lines) > 0 {
		// "Version: ImageMagick 7.1.1-21 Q16-HDRI ..."
		if parts := strings.Fields(lines[0]); len(parts) >= 3 {
			version = parts[2]
		}
	}
	return checkResult{name: "ImageMagick", message: fmt.Sprintf("version %s", version)}
}

// checkImportDirectory verifies a directory of books is readable
func checkImportDirectory(path string) checkResult {
	info, err := os.Stat(path)
	if err != nil {
		return checkResult{name: "Import directory", error: true, message: fmt.Sprintf("cannot access %s: %v", path, err)}
	}
	if !info.IsDir() {
		return checkResult{name: "Import directory", error: true, message: fmt.Sprintf("%s is not a directory", path)}
	}
	entries, err := os.ReadDir(path)
	if err != nil {
		return checkResult{name: "Import directory", error: true, message: fmt.Sprintf("cannot read %s: %v", path, err)}
	}
	return checkResult{name: "Import directory", message: fmt.Sprintf("%s (%d entries)", path, len(entries))}
}

// checkDiskSpace verifies available disk space
func checkDiskSpace(path string, label string) checkResult {
	var stat syscall.Statfs_t
	if err := syscall.Statfs(path, &stat); err != nil {
		return checkResult{
			name:    fmt.Sprintf("Disk space (%s)", label),
			warning: true,
			message: fmt.Sprintf("cannot determine disk space: %v", err),
		}
	}

	availBytes := stat.Bavail * uint64(stat.Bsize)
	totalBytes := stat.Blocks * uint64(stat.Bsize)
	usedBytes := totalBytes - (stat.Bfree * uint64(stat.Bsize))
	usedPercent := 0.0
	if totalBytes > 0 {
		usedPercent = float64(usedBytes) / float64(totalBytes) * 100
	}

	// Books are stored inside the database, so 1GB is plenty of headroom
	warning := false
	warningMsg := ""
	if availBytes < 1<<30 {
		warning = true
		warningMsg = " (low space!)"
	} else if usedPercent > 95 {
		warning = true
		warningMsg = " (>95% used)"
	}

	return checkResult{
		name:    fmt.Sprintf("Disk space (%s)", label),
		warning: warning,
		message: fmt.Sprintf("%s available%s", humanize.IBytes(availBytes), warningMsg),
	}
}
