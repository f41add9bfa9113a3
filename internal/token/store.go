// Package token owns the credential life cycle for the official marketplace
// API: cached reads, on-demand refresh and atomic persistence of the token
// pair.
package token

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/pricewatch/mercadolivre-scraper/internal/models"
)

// Store persists the access/refresh token pair.
type Store interface {
	// Read loads the persisted credentials. A missing or corrupt store yields
	// empty credentials, never an error; that just means "no cached token".
	Read() models.Credentials
	// Write persists both tokens together.
	Write(models.Credentials) error
}

// FileStore keeps the token pair in a small JSON file.
type FileStore struct {
	mu   sync.Mutex
	path string
}

func NewFileStore(path string) *FileStore {
	return &FileStore{path: path}
}

func (s *FileStore) Read() models.Credentials {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := os.ReadFile(s.path)
	if err != nil {
		return models.Credentials{}
	}

	var creds models.Credentials
	if err := json.Unmarshal(data, &creds); err != nil {
		return models.Credentials{}
	}
	return creds
}

// Write stores the pair via a temp file and rename; readers never observe a
// half-written pair.
func (s *FileStore) Write(creds models.Credentials) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := json.MarshalIndent(creds, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode credentials: %w", err)
	}

	dir := filepath.Dir(s.path)
	tmp, err := os.CreateTemp(dir, ".tokens-*")
	if err != nil {
		return fmt.Errorf("failed to create temp token file: %w", err)
	}

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return fmt.Errorf("failed to write token file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("failed to close token file: %w", err)
	}

	if err := os.Rename(tmp.Name(), s.path); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("failed to replace token file: %w", err)
	}
	return nil
}
