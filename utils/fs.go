package utils

import (
	"fmt"
	"os"
)

// EnsureDirs creates each directory (and parents) with 0750 permissions.
func EnsureDirs(dirs ...string) error {
	for _, dir := range dirs {
		if dir == "" {
			continue
		}
		if err := os.MkdirAll(dir, 0o750); err != nil {
			return fmt.Errorf("create directory %s: %w", dir, err)
		}
	}
	return nil
}

// ScanSubdirs returns the names of the immediate subdirectories of dir.
// A missing or unreadable dir yields nil.
func ScanSubdirs(dir string) []string {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil
	}
	var names []string
	for _, e := range entries {
		if e.IsDir() {
			names = append(names, e.Name())
		}
	}
	return names
}

// FilterUnreferenced returns the names not present in refs.
func FilterUnreferenced(names []string, refs map[string]struct{}) []string {
	var out []string
	for _, n := range names {
		if _, ok := refs[n]; !ok {
			out = append(out, n)
		}
	}
	return out
}
