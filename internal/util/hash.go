package util

import (
	"crypto/sha1"
	"fmt"
	"io"
	"os"
)

// ContentID returns the hex SHA-1 of data. Book ids are derived from it,
// so identical bytes always map to the same book.
func ContentID(data []byte) string {
	return fmt.Sprintf("%x", sha1.Sum(data))
}

// HashFile streams a file through SHA-1 without loading it whole
func HashFile(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("failed to open file: %w", err)
	}
	defer f.Close()

	h := sha1.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", fmt.Errorf("failed to hash file: %w", err)
	}
	return fmt.Sprintf("%x", h.Sum(nil)), nil
}
