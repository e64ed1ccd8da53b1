package extract

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"strings"
)

// Storage holds one extraction's output: the per-kind asset folders, the
// rendered page, the whitelist and the manifest. Names are the slash
// separated paths handed out by Allocate or the fixed output file names,
// always relative to the output directory.
type Storage interface {
	Exists(name string) bool
	// Put replaces name with the content of r. Readers never see a half
	// written asset.
	Put(name string, r io.Reader) error
	Get(name string) ([]byte, error)
	PutBytes(name string, data []byte) error
	// MkdirAll creates an asset folder such as "images".
	MkdirAll(name string) error
}

// LocalStorage lays the output out under a directory on disk.
type LocalStorage struct {
	dir string
}

// NewLocalStorage stores output under dir, which is created on first write.
func NewLocalStorage(dir string) *LocalStorage {
	return &LocalStorage{dir: dir}
}

// Root returns the output directory.
func (s *LocalStorage) Root() string { return s.dir }

// resolve maps name into the output directory. Absolute names and names
// that climb out of it are refused.
func (s *LocalStorage) resolve(name string) (string, error) {
	clean := path.Clean(strings.ReplaceAll(name, `\`, "/"))
	if name == "" || path.IsAbs(clean) || clean == ".." || strings.HasPrefix(clean, "../") {
		return "", fmt.Errorf("%w: %q", ErrOutsideOutput, name)
	}
	return filepath.Join(s.dir, filepath.FromSlash(clean)), nil
}

// Exists is true only for a stored file; a folder of the same name does not count.
func (s *LocalStorage) Exists(name string) bool {
	p, err := s.resolve(name)
	if err != nil {
		return false
	}
	fi, err := os.Stat(p)
	return err == nil && fi.Mode().IsRegular()
}

// Put writes into a hidden sibling first and renames it over name.
func (s *LocalStorage) Put(name string, r io.Reader) error {
	p, err := s.resolve(name)
	if err != nil {
		return err
	}
	folder := filepath.Dir(p)
	if err := os.MkdirAll(folder, 0o750); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(folder, ".webextract-*")
	if err != nil {
		return err
	}
	defer func() {
		_ = tmp.Close()
		_ = os.Remove(tmp.Name())
	}()
	if _, err := io.Copy(tmp, r); err != nil {
		return fmt.Errorf("store %s: %w", name, err)
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), p) //nolint:gosec // G703: p is confined by resolve
}

func (s *LocalStorage) Get(name string) ([]byte, error) {
	p, err := s.resolve(name)
	if err != nil {
		return nil, err
	}
	return os.ReadFile(p) //nolint:gosec // G304: p is confined by resolve
}

// PutBytes is Put for content already in memory, such as a rewritten stylesheet.
func (s *LocalStorage) PutBytes(name string, data []byte) error {
	return s.Put(name, bytes.NewReader(data))
}

func (s *LocalStorage) MkdirAll(name string) error {
	p, err := s.resolve(name)
	if err != nil {
		return err
	}
	return os.MkdirAll(p, 0o750)
}
