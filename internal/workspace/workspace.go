// Package workspace confines template file access to one configured directory.
package workspace

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"
)

// ErrOutsideDirectory is returned for paths that escape the template directory
var ErrOutsideDirectory = errors.New("path is outside the template directory")

// File describes one template PDF found in the directory
type File struct {
	Name     string    `json:"name"`
	Path     string    `json:"path"`
	Size     int64     `json:"size"`
	Modified time.Time `json:"modified"`
}

// Dir is the directory template PDFs are opened from
type Dir struct {
	root string
}

// New creates a Dir rooted at root. The directory does not have to exist yet.
func New(root string) (*Dir, error) {
	if root == "" {
		return nil, errors.New("template directory cannot be empty")
	}

	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve template directory: %w", err)
	}
	return &Dir{root: filepath.Clean(abs)}, nil
}

// Root returns the absolute template directory
func (d *Dir) Root() string {
	return d.root
}

// Resolve turns a file name or path into an absolute path inside the
// directory. Relative paths are taken relative to the root.
func (d *Dir) Resolve(path string) (string, error) {
	path = strings.ReplaceAll(path, "\x00", "")
	if strings.TrimSpace(path) == "" {
		return "", errors.New("path cannot be empty")
	}

	if !filepath.IsAbs(path) {
		path = filepath.Join(d.root, path)
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", fmt.Errorf("failed to resolve path: %w", err)
	}

	ok, err := d.Contains(abs)
	if err != nil {
		return "", err
	}
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrOutsideDirectory, path)
	}
	return abs, nil
}

// Contains reports whether path lies inside the directory, following
// symlinks on both sides.
func (d *Dir) Contains(path string) (bool, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return false, fmt.Errorf("failed to resolve path: %w", err)
	}
	clean := filepath.Clean(abs)

	realPath := clean
	if resolved, err := filepath.EvalSymlinks(clean); err == nil {
		realPath = resolved
	}
	realRoot := d.root
	if resolved, err := filepath.EvalSymlinks(d.root); err == nil {
		realRoot = resolved
	}

	within := func(p string) bool {
		return isWithin(p, d.root) || isWithin(p, realRoot)
	}
	return within(clean) && within(realPath), nil
}

func isWithin(path, dir string) bool {
	if path == dir {
		return true
	}
	prefix := dir
	if !strings.HasSuffix(prefix, string(filepath.Separator)) {
		prefix += string(filepath.Separator)
	}
	return strings.HasPrefix(path, prefix)
}

// List walks the directory for PDF files whose name contains query
// (case-insensitive), sorted by name. A missing directory lists nothing.
func (d *Dir) List(query string) ([]File, error) {
	query = strings.ToLower(strings.TrimSpace(query))
	files := make([]File, 0)

	if _, err := os.Stat(d.root); os.IsNotExist(err) {
		return files, nil
	}

	err := filepath.WalkDir(d.root, func(path string, entry fs.DirEntry, err error) error {
		if err != nil {
			if entry != nil && entry.IsDir() && path != d.root {
				return filepath.SkipDir
			}
			return nil //nolint:nilerr // unreadable entries are skipped
		}
		if entry.IsDir() || !strings.EqualFold(filepath.Ext(entry.Name()), ".pdf") {
			return nil
		}
		if query != "" && !strings.Contains(strings.ToLower(entry.Name()), query) {
			return nil
		}
		if ok, cerr := d.Contains(path); cerr != nil || !ok {
			return nil //nolint:nilerr // symlinks leaving the directory are skipped
		}

		info, err := entry.Info()
		if err != nil {
			return nil //nolint:nilerr // file vanished during the walk
		}
		files = append(files, File{
			Name:     entry.Name(),
			Path:     path,
			Size:     info.Size(),
			Modified: info.ModTime(),
		})
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list %s: %w", d.root, err)
	}

	sort.Slice(files, func(i, j int) bool {
		if files[i].Name != files[j].Name {
			return files[i].Name < files[j].Name
		}
		return files[i].Path < files[j].Path
	})
	return files, nil
}
