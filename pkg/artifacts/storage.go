package artifacts

import (
	"archive/zip"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/nektos/artifact-relay/pkg/model"
)

const tempDir = "tmp"

// Storage keeps downloaded artifact archives on disk, one file per repository and artifact ID
type Storage struct {
	rootDir string
}

func NewStorage(rootDir string) (*Storage, error) {
	if err := os.MkdirAll(filepath.Join(rootDir, tempDir), 0o755); err != nil {
		return nil, err
	}
	return &Storage{
		rootDir: rootDir,
	}, nil
}

func (s *Storage) Exist(repo model.Repository, id int64) (bool, error) {
	name, err := s.filename(repo, id)
	if err != nil {
		return false, err
	}
	if _, err := os.Stat(name); errors.Is(err, fs.ErrNotExist) {
		return false, nil
	} else if err != nil {
		return false, err
	}
	return true, nil
}

// Write stores the archive produced by fill. Nothing is stored if fill fails.
func (s *Storage) Write(repo model.Repository, id int64, fill func(io.Writer) error) error {
	name, err := s.filename(repo, id)
	if err != nil {
		return err
	}

	file, err := os.CreateTemp(filepath.Join(s.rootDir, tempDir), fmt.Sprintf("%d-*.zip", id))
	if err != nil {
		return err
	}
	defer func() {
		_ = file.Close()
		_ = os.Remove(file.Name())
	}()

	if err := fill(file); err != nil {
		return err
	}
	if err := file.Close(); err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(name), 0o755); err != nil {
		return err
	}
	return os.Rename(file.Name(), name)
}

// Open opens a stored archive and marks it as used
func (s *Storage) Open(repo model.Repository, id int64) (*zip.ReadCloser, error) {
	name, err := s.filename(repo, id)
	if err != nil {
		return nil, err
	}
	now := time.Now()
	_ = os.Chtimes(name, now, now)
	return zip.OpenReader(name)
}

func (s *Storage) Remove(repo model.Repository, id int64) {
	if name, err := s.filename(repo, id); err == nil {
		_ = os.Remove(name)
	}
}

// RemoveUnused deletes archives, and abandoned temporary files, last used before the given time
func (s *Storage) RemoveUnused(before time.Time) (int, error) {
	removed := 0
	err := filepath.WalkDir(s.rootDir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || !strings.HasSuffix(d.Name(), ".zip") {
			return nil
		}
		info, err := d.Info()
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		} else if err != nil {
			return err
		}
		if info.ModTime().Before(before) {
			if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
				return err
			}
			removed++
		}
		return nil
	})
	return removed, err
}

func (s *Storage) filename(repo model.Repository, id int64) (string, error) {
	if !repo.Valid() || id <= 0 {
		return "", fmt.Errorf("invalid artifact %s/%d", repo, id)
	}
	return filepath.Join(s.rootDir, repo.Owner, repo.Name, fmt.Sprintf("%02x", id&0xff), fmt.Sprintf("%d.zip", id)), nil
}
