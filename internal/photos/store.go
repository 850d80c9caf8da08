// Package photos keeps incident photos in the application photo directory.
package photos

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
)

// ErrOutsideDir is returned for paths that do not resolve into the photo
// directory.
var ErrOutsideDir = errors.New("photo path is outside the photo directory")

// Store saves and removes photo files under a single directory.
type Store struct {
	dir string
}

// NewStore creates the directory if needed.
func NewStore(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create photo directory %s: %w", dir, err)
	}
	abs, err := filepath.Abs(dir)
	if err == nil {
		abs, err = filepath.EvalSymlinks(abs)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to resolve photo directory %s: %w", dir, err)
	}
	return &Store{dir: abs}, nil
}

// Dir returns the absolute photo directory.
func (s *Store) Dir() string { return s.dir }

// Save copies src into a new uniquely named file and returns its path.
// ext is the original file extension, e.g. ".jpg".
func (s *Store) Save(src io.Reader, ext string) (string, error) {
	ext = strings.ToLower(strings.TrimSpace(ext))
	if ext != "" && !strings.HasPrefix(ext, ".") {
		ext = "." + ext
	}
	if len(ext) < 2 || strings.ContainsAny(ext, `/\`) {
		ext = ".jpg"
	}
	path := filepath.Join(s.dir, fmt.Sprintf("incident_%s%s", uuid.NewString(), ext))

	f, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
	if err != nil {
		return "", fmt.Errorf("failed to create photo file: %w", err)
	}
	if _, err := io.Copy(f, src); err != nil {
		f.Close()
		os.Remove(path)
		return "", fmt.Errorf("failed to write photo file: %w", err)
	}
	if err := f.Close(); err != nil {
		os.Remove(path)
		return "", fmt.Errorf("failed to close photo file: %w", err)
	}
	return path, nil
}

// resolve returns the location of path with symlinks followed, and fails
// with ErrOutsideDir unless it lies inside the photo directory. A missing
// file resolves through its parent directory.
func (s *Store) resolve(path string) (string, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", fmt.Errorf("%w: %s", ErrOutsideDir, path)
	}
	resolved, err := filepath.EvalSymlinks(abs)
	if errors.Is(err, os.ErrNotExist) {
		var parent string
		parent, err = filepath.EvalSymlinks(filepath.Dir(abs))
		resolved = filepath.Join(parent, filepath.Base(abs))
	}
	if err != nil {
		return "", fmt.Errorf("%w: %s", ErrOutsideDir, path)
	}

	rel, err := filepath.Rel(s.dir, resolved)
	if err != nil || rel == "." || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("%w: %s", ErrOutsideDir, path)
	}
	return resolved, nil
}

// Exists reports whether path is an existing regular file inside the photo
// directory.
func (s *Store) Exists(path string) bool {
	resolved, err := s.resolve(path)
	if err != nil {
		return false
	}
	info, err := os.Stat(resolved)
	return err == nil && info.Mode().IsRegular()
}

// Delete removes the photo at path. A missing file is not an error; a path
// outside the photo directory is refused with ErrOutsideDir.
func (s *Store) Delete(path string) error {
	if path == "" {
		return nil
	}
	resolved, err := s.resolve(path)
	if err != nil {
		return err
	}
	if err := os.Remove(resolved); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("failed to delete photo %s: %w", path, err)
	}
	return nil
}
