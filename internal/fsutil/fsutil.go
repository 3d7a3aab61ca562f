// Package fsutil provides file system utility functions.
package fsutil

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
)

// ListFiles returns the names of the regular files directly inside dir,
// sorted lexically. The scan is deliberately non-recursive: product naming
// conventions are flat, and subdirectories belong to the SAS process.
func ListFiles(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read directory %q: %w", dir, err)
	}

	var files []string
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		files = append(files, entry.Name())
	}
	sort.Strings(files)
	return files, nil
}

// EnsureWritableDir creates dir (and any missing parents) if needed and
// verifies it is writable by creating and removing a probe file. A run
// cannot proceed without writable scratch and output directories, so
// callers treat any error here as fatal.
func EnsureWritableDir(dir string) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create directory %q: %w", dir, err)
	}

	probe, err := os.CreateTemp(dir, ".write-probe-*")
	if err != nil {
		return fmt.Errorf("directory %q is not writable: %w", dir, err)
	}
	name := probe.Name()
	if err := probe.Close(); err != nil {
		return fmt.Errorf("failed to close write probe in %q: %w", dir, err)
	}
	if err := os.Remove(name); err != nil {
		return fmt.Errorf("failed to remove write probe in %q: %w", dir, err)
	}
	return nil
}

// FindFilesByExtension recursively searches the given root path for all
// files ending with the specified extension and returns their full paths,
// sorted lexically for deterministic load order.
func FindFilesByExtension(rootPath string, extension string) ([]string, error) {
	if extension == "" {
		panic("extension must not be empty")
	}

	var files []string
	err := filepath.WalkDir(rootPath, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() && filepath.Ext(d.Name()) == extension {
			files = append(files, path)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	sort.Strings(files)
	return files, nil
}

// Glob matches name against pattern using filepath.Match semantics. It
// exists so every component shares one matching behavior for product
// naming-convention patterns.
func Glob(pattern, name string) (bool, error) {
	ok, err := filepath.Match(pattern, name)
	if err != nil {
		return false, fmt.Errorf("invalid pattern %q: %w", pattern, err)
	}
	return ok, nil
}
