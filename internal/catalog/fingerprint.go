package catalog

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"os"
)

// Fingerprint returns the hex SHA-256 of the file's contents. The hash is
// streamed so arbitrarily large files do not load into memory.
func Fingerprint(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("failed to open %s for fingerprinting: %w", path, err)
	}
	defer f.Close()

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", fmt.Errorf("failed to read %s for fingerprinting: %w", path, err)
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}
