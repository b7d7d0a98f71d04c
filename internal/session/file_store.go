package session

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

// FileStore keeps the token in a passphrase-sealed file.
type FileStore struct {
	mu         sync.Mutex
	path       string
	passphrase string
	params     scryptParams
}

// NewFileStore stores the token in dir/authToken.json.
func NewFileStore(dir, passphrase string) *FileStore {
	return &FileStore{
		path:       filepath.Join(dir, SlotName+".json"),
		passphrase: passphrase,
		params:     defaultScryptParams(),
	}
}

func (s *FileStore) Path() string { return s.path }

func (s *FileStore) Token(context.Context) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	b, err := os.ReadFile(s.path)
	if errors.Is(err, os.ErrNotExist) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to read token file: %w", err)
	}
	pt, err := open(s.passphrase, b)
	if err != nil {
		return "", err
	}
	return string(pt), nil
}

func (s *FileStore) SetToken(_ context.Context, token string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	b, err := seal(s.passphrase, []byte(token), s.params)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(s.path), 0o700); err != nil {
		return fmt.Errorf("failed to create token directory: %w", err)
	}
	return writeFile(s.path, b, 0o600)
}

func (s *FileStore) Clear(context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.Remove(s.path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("failed to remove token file: %w", err)
	}
	return nil
}

// writeFile writes b to a temp file next to path, then renames it into place.
func writeFile(path string, b []byte, mode os.FileMode) error {
	f, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".tmp-*")
	if err != nil {
		return err
	}
	tmp := f.Name()
	defer func() { _ = os.Remove(tmp) }()

	if _, err := f.Write(b); err != nil {
		_ = f.Close()
		return err
	}
	if err := f.Chmod(mode); err != nil {
		_ = f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}
