package utils

import (
	"fmt"
	"os"
	"path/filepath"

	coreconfig "github.com/AzielCF/az-wrap/core/config"
)

// EnsureMediaDirectories creates the media cache tree.
func EnsureMediaDirectories(kinds ...string) error {
	for _, k := range kinds {
		d := filepath.Join(coreconfig.Global.Paths.MediaCache, k)
		if err := os.MkdirAll(d, 0755); err != nil {
			return fmt.Errorf("failed to create directory %s: %w", d, err)
		}
	}
	return nil
}
