package filesystem

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path"
	"path/filepath"
	"strings"
)

// Error constants for better error handling
var (
	ErrFileNotFound = fmt.Errorf("filesystem: file not found")
	ErrInvalidPath  = fmt.Errorf("filesystem: invalid path")
)

// Filesystem is a read-only content store. Paths are slash separated and
// relative to the store root.
type Filesystem interface {
	ReadFile(path string) ([]byte, error)
	FileExists(path string) (bool, error)
}

type localFileSystem struct {
	root string
}

// NewLocalFileSystem serves files below root on the local disk.
func NewLocalFileSystem(root string) Filesystem {
	return &localFileSystem{root: root}
}

func (filesystem *localFileSystem) resolve(name string) (string, error) {
	if name == "" || !fs.ValidPath(strings.TrimPrefix(name, "/")) {
		return "", fmt.Errorf("%w: %q", ErrInvalidPath, name)
	}

	return filepath.Join(filesystem.root, filepath.FromSlash(strings.TrimPrefix(name, "/"))), nil
}

func (filesystem *localFileSystem) FileExists(name string) (bool, error) {
	full, err := filesystem.resolve(name)
	if err != nil {
		return false, err
	}

	info, err := os.Stat(full)
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}

		return false, err
	}

	return !info.IsDir(), nil
}

func (filesystem *localFileSystem) ReadFile(name string) ([]byte, error) {
	full, err := filesystem.resolve(name)
	if err != nil {
		return nil, err
	}

	file, err := os.Open(full)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrFileNotFound, name)
		}
		return nil, err
	}
	defer func() {
		if closeErr := file.Close(); closeErr != nil {
			slog.Error("closing file error", "path", full, "error", closeErr)
		}
	}()

	info, err := file.Stat()
	if err != nil {
		return nil, err
	}
	if info.IsDir() {
		return nil, fmt.Errorf("%w: %s is a directory", ErrInvalidPath, name)
	}

	return io.ReadAll(file)
}

type fsFileSystem struct {
	fsys fs.FS
}

// NewFS adapts an fs.FS, such as an embed.FS or fstest.MapFS.
func NewFS(fsys fs.FS) Filesystem {
	return &fsFileSystem{fsys: fsys}
}

func (filesystem *fsFileSystem) clean(name string) (string, error) {
	name = path.Clean(strings.TrimPrefix(name, "/"))
	if !fs.ValidPath(name) || name == "." {
		return "", fmt.Errorf("%w: %q", ErrInvalidPath, name)
	}
	return name, nil
}

func (filesystem *fsFileSystem) FileExists(name string) (bool, error) {
	name, err := filesystem.clean(name)
	if err != nil {
		return false, err
	}

	info, err := fs.Stat(filesystem.fsys, name)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return false, nil
		}
		return false, err
	}

	return !info.IsDir(), nil
}

func (filesystem *fsFileSystem) ReadFile(name string) ([]byte, error) {
	name, err := filesystem.clean(name)
	if err != nil {
		return nil, err
	}

	content, err := fs.ReadFile(filesystem.fsys, name)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrFileNotFound, name)
		}
		return nil, err
	}

	return content, nil
}

// ReadString reads a whole file as text.
func ReadString(filesystem Filesystem, name string) (string, error) {
	content, err := filesystem.ReadFile(name)
	if err != nil {
		return "", err
	}
	return string(content), nil
}
