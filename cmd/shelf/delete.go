package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/franz/shelf/internal/util"
	"github.com/spf13/cobra"
)

var deleteCmd = &cobra.Command{
	Use:     "delete <book-id>",
	Aliases: []string{"rm"},
	Short:   "Remove a book and its reading history",
	Args:    cobra.ExactArgs(1),
	RunE:    runDelete,
}

func init() {
	rootCmd.AddCommand(deleteCmd)

	deleteCmd.Flags().BoolP("yes", "y", false, "do not ask for confirmation")
}

func runDelete(cmd *cobra.Command, args []string) error {
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
	book, err := a.lib.Get(ctx, id)
	if err != nil {
		return err
	}

	yes, _ := cmd.Flags().GetBool("yes")
	if !yes && !confirm(os.Stdin, fmt.Sprintf("Delete %q by %s?", book.Title, book.Author)) {
		util.InfoLog("Aborted")
		return nil
	}

	if err := a.lib.Delete(ctx, id); err != nil {
		return fmt.Errorf("failed to delete %q: %w", book.Title, err)
	}
	util.SuccessLog("Deleted %q", book.Title)
	return nil
}

// confirm asks a yes/no question; anything but y or yes is a no
func confirm(in io.Reader, question string) bool {
	fmt.Printf("%s [y/N] ", question)
	line, err := bufio.NewReader(in).ReadString('\n')
	if err != nil && line == "" {
		fmt.Println()
		return false
	}
	switch strings.ToLower(strings.TrimSpace(line)) {
	case "y", "yes":
		return true
	}
	return false
}
