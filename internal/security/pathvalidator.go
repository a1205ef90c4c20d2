// Package security confines bundle file access to one directory.
package security

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"strings"
)

var (
	ErrPathEscapes  = errors.New("path escapes working directory")
	ErrAbsolutePath = errors.New("absolute paths are not allowed")
	ErrEmptyPath    = errors.New("empty path not allowed")
	ErrFileExists   = errors.New("file already exists")
)

// PathValidator resolves user-supplied bundle paths and performs file I/O
// through os.Root, so no operation can leave the directory it was opened on.
type PathValidator struct {
	root *os.Root
	dir  string
}

// New opens a validator on dir
func New(dir string) (*PathValidator, error) {
	absPath, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to get absolute path: %w", err)
	}

	root, err := os.OpenRoot(absPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open directory root: %w", err)
	}

	return &PathValidator{root: root, dir: absPath}, nil
}

// Dir returns the absolute directory all paths are confined to
func (pv *PathValidator) Dir() string {
	return pv.dir
}

// Close releases the directory handle
func (pv *PathValidator) Close() error {
	if pv.root != nil {
		return pv.root.Close()
	}
	return nil
}

// Resolve validates userPath and returns it cleaned, relative and with
// forward slashes. Empty, absolute and escaping paths are rejected, as
// are names filepath.IsLocal refuses (reserved device names on Windows).
func (pv *PathValidator) Resolve(userPath string) (string, error) {
	if userPath == "" {
		return "", ErrEmptyPath
	}

	if !filepath.IsLocal(userPath) {
		if filepath.IsAbs(userPath) {
			return "", fmt.Errorf("%w: %s", ErrAbsolutePath, userPath)
		}
		return "", fmt.Errorf("%w: %s", ErrPathEscapes, userPath)
	}

	cleanPath := filepath.Clean(userPath)
	relPath, err := filepath.Rel(pv.dir, filepath.Join(pv.dir, cleanPath))
	if err != nil {
		return "", fmt.Errorf("failed to compute relative path: %w", err)
	}
	if strings.HasPrefix(relPath, "..") || filepath.IsAbs(relPath) {
		return "", fmt.Errorf("%w: %s", ErrPathEscapes, userPath)
	}

	return filepath.ToSlash(relPath), nil
}

// ReadFile reads a file inside the directory
func (pv *PathValidator) ReadFile(userPath string) ([]byte, error) {
	rel, err := pv.Resolve(userPath)
	if err != nil {
		return nil, fmt.Errorf("invalid path: %w", err)
	}
	return pv.root.ReadFile(filepath.FromSlash(rel))
}

// WriteFile writes data to a file inside the directory, creating parent
// directories. An existing file is only replaced when overwrite is set.
func (pv *PathValidator) WriteFile(userPath string, data []byte, perm os.FileMode, overwrite bool) error {
	rel, err := pv.Resolve(userPath)
	if err != nil {
		return fmt.Errorf("invalid path: %w", err)
	}
	platformPath := filepath.FromSlash(rel)

	if !overwrite {
		if _, err := pv.root.Stat(platformPath); err == nil {
			return fmt.Errorf("%w: %s", ErrFileExists, rel)
		} else if !errors.Is(err, fs.ErrNotExist) {
			return err
		}
	}

	if dir := path.Dir(rel); dir != "." {
		if err := pv.root.MkdirAll(filepath.FromSlash(dir), 0700); err != nil {
			return fmt.Errorf("failed to create %s: %w", dir, err)
		}
	}
	return pv.root.WriteFile(platformPath, data, perm)
}

// Stat stats a file inside the directory
func (pv *PathValidator) Stat(userPath string) (os.FileInfo, error) {
	rel, err := pv.Resolve(userPath)
	if err != nil {
		return nil, fmt.Errorf("invalid path: %w", err)
	}
	return pv.root.Stat(filepath.FromSlash(rel))
}
