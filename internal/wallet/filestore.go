package wallet

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

const fileSuffix = ".id"

// FileStore keeps one <label>.id file per identity in a directory, the layout
// used by the Fabric file system wallet.
type FileStore struct {
	dir string
}

// NewFileStore opens (and creates if needed) a wallet directory.
func NewFileStore(dir string) (*FileStore, error) {
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, fmt.Errorf("wallet dir %s: %w", dir, err)
	}
	return &FileStore{dir: dir}, nil
}

func (s *FileStore) Dir() string { return s.dir }

// ErrInvalidLabel marks labels that cannot name a file in the wallet
// directory.
var ErrInvalidLabel = errors.New("invalid label")

// link is swapped in tests to simulate filesystems without hard links.
var link = os.Link

func (s *FileStore) path(label string) (string, error) {
	if label == "" || strings.ContainsAny(label, `/\`) || strings.Contains(label, "..") {
		return "", fmt.Errorf("%q: %w", label, ErrInvalidLabel)
	}
	return filepath.Join(s.dir, label+fileSuffix), nil
}

// Put writes to a temp file and hard-links it into place, so a concurrent or
// pre-existing record is never replaced. Where hard links are unsupported it
// falls back to an exclusive create.
func (s *FileStore) Put(ctx context.Context, label string, data []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	p, err := s.path(label)
	if err != nil {
		return err
	}
	tmp, err := os.CreateTemp(s.dir, ".put-*")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)
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
	err = link(tmpName, p)
	if err != nil && !errors.Is(err, os.ErrExist) {
		err = createExclusive(p, data)
	}
	if errors.Is(err, os.ErrExist) {
		return fmt.Errorf("%s: %w", label, ErrAlreadyExists)
	}
	return err
}

func createExclusive(p string, data []byte) error {
	f, err := os.OpenFile(p, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o600)
	if err != nil {
		return err
	}
	if _, err := f.Write(data); err != nil {
		f.Close()
		os.Remove(p)
		return err
	}
	if err := f.Sync(); err != nil {
		f.Close()
		os.Remove(p)
		return err
	}
	return f.Close()
}

func (s *FileStore) Get(ctx context.Context, label string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	p, err := s.path(label)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrNotFound, err)
	}
	b, err := os.ReadFile(p)
	if errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("%s: %w", label, ErrNotFound)
	}
	return b, err
}

func (s *FileStore) List(ctx context.Context) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, err
	}
	labels := make([]string, 0, len(entries))
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || strings.HasPrefix(name, ".") || !strings.HasSuffix(name, fileSuffix) {
			continue
		}
		labels = append(labels, strings.TrimSuffix(name, fileSuffix))
	}
	sort.Strings(labels)
	return labels, nil
}

func (s *FileStore) Exists(ctx context.Context, label string) (bool, error) {
	p, err := s.path(label)
	if err != nil {
		return false, nil
	}
	_, err = os.Stat(p)
	if err == nil {
		return true, nil
	}
	if errors.Is(err, os.ErrNotExist) {
		return false, nil
	}
	return false, err
}

func (s *FileStore) Remove(ctx context.Context, label string) error {
	p, err := s.path(label)
	if err != nil {
		return err
	}
	if err := os.Remove(p); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("%s: %w", label, ErrNotFound)
		}
		return err
	}
	return nil
}
