package version

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

// FileName is the stamp written into the game directory after an install.
const FileName = "version.txt"

// ReadInstalled returns the version stamped in gameDir. A missing stamp is
// reported as NotInstalled with a nil error.
func ReadInstalled(gameDir string) (string, error) {
	//nolint:gosec // G304: reading the launcher's own version stamp
	data, err := os.ReadFile(filepath.Join(gameDir, FileName))
	if errors.Is(err, fs.ErrNotExist) {
		return NotInstalled, nil
	}
	if err != nil {
		return "", fmt.Errorf("read version stamp: %w", err)
	}
	v := strings.TrimSpace(string(data))
	if v == "" {
		return NotInstalled, nil
	}
	return v, nil
}

// WriteInstalled stamps dir with v.
func WriteInstalled(dir, v string) error {
	v = strings.TrimSpace(v)
	if v == "" || v == NotInstalled {
		return fmt.Errorf("refusing to stamp version %q", v)
	}
	//nolint:gosec // G306: the stamp is not sensitive
	if err := os.WriteFile(filepath.Join(dir, FileName), []byte(v), 0644); err != nil {
		return fmt.Errorf("write version stamp: %w", err)
	}
	return nil
}

// FileQuery returns a QueryFunc reading the stamp in gameDir.
func FileQuery(gameDir string) QueryFunc {
	return func(_ context.Context) (string, error) {
		return ReadInstalled(gameDir)
	}
}
