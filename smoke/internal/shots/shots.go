// Package shots writes full-page screenshots named by device, page and run
// stamp. Files are only ever added, never read back or overwritten.
package shots

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"unicode"

	"github.com/hazyhaar/viewcheck/idgen"
)

// ErrExists is returned when a screenshot file is already on disk.
var ErrExists = errors.New("shots: file exists")

// Store writes screenshots for one run into Dir.
type Store struct {
	Dir   string
	Stamp string

	written int
}

// New creates a Store. Stamp is the run's YYYYMMDD_HHMMSS stamp.
func New(dir, stamp string) (*Store, error) {
	if !idgen.IsStamp(stamp) {
		return nil, fmt.Errorf("shots: stamp %q is not YYYYMMDD_HHMMSS", stamp)
	}
	return &Store{Dir: dir, Stamp: stamp}, nil
}

// Path returns the file a screenshot of device/page goes to.
func (s *Store) Path(device, page string) string {
	name := fmt.Sprintf("%s_%s_%s.png", Slug(device), Slug(page), s.Stamp)
	return filepath.Join(s.Dir, name)
}

// Write stores png and returns its path. An existing file is left alone
// and reported as ErrExists.
func (s *Store) Write(device, page string, png []byte) (string, error) {
	if err := os.MkdirAll(s.Dir, 0o755); err != nil {
		return "", fmt.Errorf("shots: mkdir: %w", err)
	}
	path := s.Path(device, page)
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if errors.Is(err, fs.ErrExist) {
		return "", fmt.Errorf("%w: %s", ErrExists, path)
	}
	if err != nil {
		return "", fmt.Errorf("shots: create %s: %w", path, err)
	}
	if _, err := f.Write(png); err != nil {
		f.Close()
		return "", fmt.Errorf("shots: write %s: %w", path, err)
	}
	if err := f.Close(); err != nil {
		return "", fmt.Errorf("shots: close %s: %w", path, err)
	}
	s.written++
	return path, nil
}

// Written returns the number of files written so far.
func (s *Store) Written() int { return s.written }

// Slug makes a label file-name safe: letters and digits are kept (any
// script), '-' and '.' too, everything else collapses to '_'.
func Slug(label string) string {
	var b strings.Builder
	lastUnderscore := false
	for _, r := range strings.TrimSpace(label) {
		switch {
		case unicode.IsLetter(r) || unicode.IsDigit(r) || r == '-' || r == '.':
			b.WriteRune(r)
			lastUnderscore = false
		case !lastUnderscore:
			b.WriteByte('_')
			lastUnderscore = true
		}
	}
	out := strings.Trim(b.String(), "_.")
	if out == "" {
		return "unnamed"
	}
	return out
}
