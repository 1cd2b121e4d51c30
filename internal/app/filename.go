package app

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"sync"
	"unicode"

	"github.com/spf13/afero"
)

// DefaultFilename is used when a title sanitizes to nothing
const DefaultFilename = "download"

var illegalFilenameChars = regexp.MustCompile(`[\\/*?:"<>|\x00-\x1F\x7F]`)

// Sanitize strips characters that are illegal in filesystem paths
func Sanitize(name string) string {
	cleaned := illegalFilenameChars.ReplaceAllString(name, "")
	cleaned = strings.Map(func(r rune) rune {
		if unicode.IsControl(r) {
			return -1
		}
		return r
	}, cleaned)
	cleaned = strings.TrimSpace(cleaned)
	cleaned = strings.TrimRight(cleaned, ". ")
	if cleaned == "" {
		return DefaultFilename
	}
	return cleaned
}

// BuildBaseName joins the sanitized title and any non-empty labels with underscores
func BuildBaseName(title string, labels ...string) string {
	parts := []string{Sanitize(title)}
	for _, label := range labels {
		if strings.TrimSpace(label) == "" {
			continue
		}
		parts = append(parts, strings.ReplaceAll(Sanitize(label), " ", ""))
	}
	return strings.Join(parts, "_")
}

// Allocator hands out collision-free output paths.
// It does not guard against files created concurrently by other processes.
type Allocator struct {
	fs       afero.Fs
	mu       sync.Mutex
	reserved map[string]struct{}
}

// NewAllocator creates an allocator over the given filesystem
func NewAllocator(fs afero.Fs) *Allocator {
	if fs == nil {
		fs = afero.NewOsFs()
	}
	return &Allocator{
		fs:       fs,
		reserved: make(map[string]struct{}),
	}
}

// Allocate returns dir/base.ext, or the first free "base (n).ext" variant
func (a *Allocator) Allocate(dir, base, ext string) (string, error) {
	ext = strings.TrimPrefix(ext, ".")
	base = Sanitize(base)

	a.mu.Lock()
	defer a.mu.Unlock()

	for n := 0; ; n++ {
		name := base
		if n > 0 {
			name = fmt.Sprintf("%s (%d)", base, n)
		}
		if ext != "" {
			name += "." + ext
		}
		candidate := filepath.Join(dir, name)

		if _, taken := a.reserved[candidate]; taken {
			continue
		}
		exists, err := afero.Exists(a.fs, candidate)
		if err != nil {
			return "", fmt.Errorf("failed to check %s: %w", candidate, err)
		}
		if exists {
			continue
		}

		a.reserved[candidate] = struct{}{}
		return candidate, nil
	}
}

// Release forgets a reservation once the path has been written or abandoned
func (a *Allocator) Release(path string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	delete(a.reserved, path)
}

// EnsureDir creates dir if it does not exist
func (a *Allocator) EnsureDir(dir string) error {
	if err := a.fs.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create directory %s: %w", dir, err)
	}
	return nil
}

// Remove deletes a file, ignoring files that are already gone
func (a *Allocator) Remove(path string) error {
	if err := a.fs.Remove(path); err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}

// Exists reports whether path exists
func (a *Allocator) Exists(path string) bool {
	ok, err := afero.Exists(a.fs, path)
	return err == nil && ok
}
