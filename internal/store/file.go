package store

import (
	"context"
	"errors"
	"io/fs"
	"path/filepath"

	"github.com/spf13/afero"
)

// FileBackend keeps each key in its own JSON file under a base directory.
// Writes go through a temp file and rename so a crash never leaves a
// half-written blob behind.
type FileBackend struct {
	fs  afero.Fs
	dir string
}

// NewFileBackend returns a backend rooted at dir on the OS filesystem.
func NewFileBackend(dir string) *FileBackend {
	return NewFileBackendFs(afero.NewOsFs(), dir)
}

// NewFileBackendFs returns a backend rooted at dir on fsys.
func NewFileBackendFs(fsys afero.Fs, dir string) *FileBackend {
	if dir == "" {
		dir = "./var/eventcal"
	}
	return &FileBackend{fs: fsys, dir: dir}
}

func (b *FileBackend) path(key string) string {
	return filepath.Join(b.dir, key+".json")
}

// Get implements Backend.
func (b *FileBackend) Get(_ context.Context, key string) ([]byte, bool, error) {
	data, err := afero.ReadFile(b.fs, b.path(key))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, false, nil
		}
		return nil, false, err
	}
	return data, true, nil
}

// Set implements Backend.
func (b *FileBackend) Set(_ context.Context, key string, data []byte) error {
	if err := b.fs.MkdirAll(b.dir, 0o700); err != nil {
		return err
	}

	tmp, err := afero.TempFile(b.fs, b.dir, ".eventcal-"+key+"-*.tmp")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()

	// Ensure we clean up temp file on error.
	defer b.fs.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if err := b.fs.Chmod(tmpName, 0o600); err != nil {
		return err
	}
	return b.fs.Rename(tmpName, b.path(key))
}
