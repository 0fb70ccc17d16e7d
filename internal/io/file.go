package ioutils

import (
	"context"
	"math"
	"os"
	"path/filepath"
	"regexp"
	"strings"
)

const (
	fallbackName    = "untitled"
	maxNameByteSize = 200
)

var (
	invalidChars   = regexp.MustCompile(`[<>:"/\\|?*\x00-\x1f]`)
	trailingDots   = regexp.MustCompile(`\.+$`)
	whitespaceRuns = regexp.MustCompile(`\s+`)
)

// WriteFile writes data to path through a temporary file in the same
// directory, so readers never observe a partially written file.
//
// The file ends up with mode 0644.
//
// Example:
//
//	err := WriteFile(ctx, "/music/canciones.m3u", []byte("#EXTM3U\n..."))
func WriteFile(ctx context.Context, path string, data []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".*")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Chmod(0644); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), path)
}

// SanitizeFileName makes name safe to use as a file name on every
// platform, Windows being the most restrictive.
//
// The following transformations are applied:
//   - Invalid characters (<>:"/\|?* and control chars 0x00-0x1f) → underscore
//   - Trailing dots → removed
//   - Whitespace runs → single space, trimmed
//   - Names longer than 200 bytes are cut on a rune boundary
//   - An empty result becomes "untitled"
//
// Example:
//
//	SanitizeFileName("Canción: Parte 1/2") // Returns "Canción_ Parte 1_2"
//	SanitizeFileName("Track...")           // Returns "Track"
func SanitizeFileName(name string) string {
	name = invalidChars.ReplaceAllString(name, "_")
	name = whitespaceRuns.ReplaceAllString(name, " ")
	name = strings.TrimSpace(name)
	name = trailingDots.ReplaceAllString(name, "")
	name = strings.TrimRight(name, " ")

	if len(name) > maxNameByteSize {
		cut := 0
		for i := range name {
			if i > maxNameByteSize {
				break
			}
			cut = i
		}
		name = strings.TrimRight(name[:cut], " .")
	}

	if name == "" {
		return fallbackName
	}
	return name
}

// EnsureDir creates a directory and all parent directories if they don't exist.
//
// Directories are created with mode 0755 (rwxr-xr-x).
func EnsureDir(path string) error {
	return os.MkdirAll(path, 0755)
}

// SizeWithin reports whether the file at path exists and its size differs
// from expected by at most tolerance, a fraction of expected. An unknown
// expected size (zero or less) never matches.
//
// Example:
//
//	SizeWithin("/music/a.mp3", 1000, 0.05) // true for sizes 950..1050
func SizeWithin(path string, expected int64, tolerance float64) bool {
	if expected <= 0 {
		return false
	}
	info, err := os.Stat(path)
	if err != nil || !info.Mode().IsRegular() {
		return false
	}
	diff := float64(info.Size()-expected) / float64(expected)
	return math.Abs(diff) <= tolerance
}
