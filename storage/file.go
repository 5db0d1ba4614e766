package storage

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"github.com/ruteri/tee-secure-signer/cryptoutils"
	"github.com/ruteri/tee-secure-signer/interfaces"
)

const saltFileName = ".salt"

// FileStore keeps one file per key under a base directory.
// Values are optionally sealed with a cryptoutils.Sealer.
type FileStore struct {
	mu      sync.Mutex
	baseDir string
	sealer  *cryptoutils.Sealer
	log     *slog.Logger
}

// NewFileStore creates the base directory if needed. A non-empty passphrase
// enables sealing; the salt is created on first use and kept in the directory.
func NewFileStore(baseDir string, passphrase []byte, log *slog.Logger) (*FileStore, error) {
	if err := os.MkdirAll(baseDir, 0700); err != nil {
		return nil, fmt.Errorf("failed to create base directory: %w", err)
	}

	store := &FileStore{baseDir: baseDir, log: log}
	if len(passphrase) == 0 {
		return store, nil
	}

	salt, err := loadOrCreateSalt(filepath.Join(baseDir, saltFileName))
	if err != nil {
		return nil, err
	}
	store.sealer, err = cryptoutils.NewSealer(passphrase, salt)
	if err != nil {
		return nil, err
	}
	return store, nil
}

func loadOrCreateSalt(path string) ([]byte, error) {
	salt, err := os.ReadFile(path)
	if err == nil {
		return salt, nil
	}
	if !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("failed to read salt: %w", err)
	}

	salt, err = cryptoutils.NewSalt()
	if err != nil {
		return nil, err
	}
	if err := os.WriteFile(path, salt, 0600); err != nil {
		return nil, fmt.Errorf("failed to write salt: %w", err)
	}
	return salt, nil
}

func (s *FileStore) Get(ctx context.Context, key string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	filePath := s.getFilePath(key)
	data, err := os.ReadFile(filePath)
	if errors.Is(err, os.ErrNotExist) {
		return "", interfaces.ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("failed to read file: %w", err)
	}

	if s.sealer != nil {
		data, err = s.sealer.Open(data, []byte(key))
		if err != nil {
			return "", err
		}
	}

	s.log.Debug("Fetched value from file", slog.String("key", key))
	return string(data), nil
}

// Put writes to a temporary file and renames it over the previous value.
func (s *FileStore) Put(ctx context.Context, key string, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	data := []byte(value)
	if s.sealer != nil {
		sealed, err := s.sealer.Seal(data, []byte(key))
		if err != nil {
			return err
		}
		data = sealed
	}

	filePath := s.getFilePath(key)
	tmp, err := os.CreateTemp(s.baseDir, ".tmp-*")
	if err != nil {
		return fmt.Errorf("failed to create temporary file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to write file: %w", err)
	}
	if err := os.Rename(tmp.Name(), filePath); err != nil {
		return fmt.Errorf("failed to replace file: %w", err)
	}

	s.log.Debug("Stored value in file", slog.String("key", key))
	return nil
}

func (s *FileStore) Delete(ctx context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	err := os.Remove(s.getFilePath(key))
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("failed to delete file: %w", err)
	}
	return nil
}

func (s *FileStore) Name() string {
	return fmt.Sprintf("file-%s", filepath.Base(s.baseDir))
}

// getFilePath maps a key to a file name that cannot leave the base directory.
func (s *FileStore) getFilePath(key string) string {
	return filepath.Join(s.baseDir, base64.RawURLEncoding.EncodeToString([]byte(key)))
}
