package ioutils

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"strings"
)

var (
	invalidChars   = regexp.MustCompile(`[<>:"/\\|?*\x00-\x1f]`)
	trailingDots   = regexp.MustCompile(`\.+$`)
	repeatedSpaces = regexp.MustCompile(`\s+`)
)

// CopyFile copies a file from src to dst.
//
// The destination is created with mode 0644 or truncated if it exists. The
// context is checked before the copy starts; the copy itself is not
// interruptible. A partially written destination is removed on failure.
//
// Example:
//
//	err := CopyFile(ctx, "/tmp/.abc-123.part", "/music/Song.m4a")
func CopyFile(ctx context.Context, src, dst string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	sourceFile, err := os.Open(src)
	if err != nil {
		return err
	}
	defer sourceFile.Close()

	destFile, err := os.Create(dst)
	if err != nil {
		return err
	}

	if _, err := io.Copy(destFile, sourceFile); err != nil {
		destFile.Close()
		os.Remove(dst)
		return err
	}
	if err := destFile.Close(); err != nil {
		os.Remove(dst)
		return err
	}
	return nil
}

// MoveFile moves src to dst.
//
// A rename is tried first. When it fails because the paths are on different
// devices, the file is copied and the source removed. An existing dst is
// replaced.
//
// Example:
//
//	err := MoveFile(ctx, tempPath, "/music/Song.m4a")
func MoveFile(ctx context.Context, src, dst string) error {
	if err := os.Rename(src, dst); err == nil {
		return nil
	} else if _, statErr := os.Stat(src); statErr != nil {
		return err
	}

	if err := CopyFile(ctx, src, dst); err != nil {
		return err
	}
	return os.Remove(src)
}

// WriteFile writes data to a file, creating it if necessary.
//
// The file is created with mode 0644. An existing file is truncated.
//
// Example:
//
//	err := WriteFile(ctx, "/music/Workout/Workout.m3u", []byte("#EXTM3U\n..."))
func WriteFile(ctx context.Context, path string, data []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

// Exists reports whether path names an existing regular file.
func Exists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.Mode().IsRegular()
}

// RemoveIfExists deletes path and ignores a missing file.
func RemoveIfExists(path string) error {
	if path == "" {
		return nil
	}
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return nil
}

// SanitizeFileName removes or replaces characters that are invalid in file/folder names.
//
// The following transformations are applied:
//   - Invalid characters (<>:"/\|?* and control chars 0x00-0x1f) → underscore
//   - Trailing dots → removed (Windows limitation)
//   - Multiple whitespace → single space
//   - Surrounding whitespace → removed
//
// Example:
//
//	SanitizeFileName("Song: Part 1/2")     // Returns "Song_ Part 1_2"
//	SanitizeFileName("Track...")           // Returns "Track"
//	SanitizeFileName("Name   with  spaces") // Returns "Name with spaces"
func SanitizeFileName(name string) string {
	name = invalidChars.ReplaceAllString(name, "_")
	name = trailingDots.ReplaceAllString(name, "")
	name = repeatedSpaces.ReplaceAllString(name, " ")
	return strings.TrimSpace(name)
}

// EnsureDir creates a directory and all parent directories if they don't exist.
//
// Directories are created with mode 0755 (rwxr-xr-x).
// If the directory already exists, no error is returned.
func EnsureDir(path string) error {
	return os.MkdirAll(path, 0755)
}

// TempSibling creates an empty temporary file next to target.
//
// The file name starts with a dot so that it is hidden from most players
// and ends with suffix, for example ".part" or ".mp3". The caller owns the
// returned file and must close and remove it.
func TempSibling(target, suffix string) (*os.File, error) {
	dir := filepath.Dir(target)
	if err := EnsureDir(dir); err != nil {
		return nil, err
	}
	base := strings.TrimSuffix(filepath.Base(target), filepath.Ext(target))
	if len(base) > 32 {
		base = base[:32]
	}
	return os.CreateTemp(dir, "."+base+"-*"+suffix)
}
