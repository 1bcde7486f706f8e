package engine

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/emberworks/ember-store/internal/vault"
)

// Persistence handles the disk I/O for the FileStore: one JSON document
// holding every record, swapped in atomically on each write. With a key
// configured the document is sealed with AES-GCM before it touches disk.
type Persistence struct {
	path string
	key  []byte
	mu   sync.Mutex // Protects concurrent writes to the backing file
}

// NewPersistence initializes a persistence handler for the given file
// path, creating the parent directory if needed. key is an optional
// 32-byte encryption key; pass nil for plaintext snapshots.
func NewPersistence(path string, key []byte) (*Persistence, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrStorageWrite, err)
		}
	}
	return &Persistence{path: path, key: key}, nil
}

// Path returns the backing file path.
func (p *Persistence) Path() string { return p.path }

// WriteSnapshot replaces the backing file with the given records.
// The write goes to a temporary file first and is swapped in with a
// rename, so a crash mid-write never exposes a truncated document.
func (p *Persistence) WriteSnapshot(records map[string]map[string]any) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	data, err := json.MarshalIndent(records, "", "  ")
	if err != nil {
		return fmt.Errorf("%w: %v", ErrStorageWrite, err)
	}
	if p.key != nil {
		data, err = vault.Seal(data, p.key)
		if err != nil {
			return fmt.Errorf("%w: %v", ErrStorageWrite, err)
		}
	}

	tempPath := p.path + ".tmp"
	if err := os.WriteFile(tempPath, data, 0644); err != nil {
		return fmt.Errorf("%w: %v", ErrStorageWrite, err)
	}
	if err := os.Rename(tempPath, p.path); err != nil {
		return fmt.Errorf("%w: %v", ErrStorageWrite, err)
	}
	return nil
}

// ReadSnapshot returns the persisted records. A missing backing file is a
// valid empty store and yields (nil, nil); an existing but unreadable or
// unparseable file yields ErrStorageRead.
func (p *Persistence) ReadSnapshot() (map[string]map[string]any, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	data, err := os.ReadFile(p.path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStorageRead, err)
	}
	if p.key != nil {
		data, err = vault.Open(data, p.key)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrStorageRead, err)
		}
	}

	var records map[string]map[string]any
	if err := json.Unmarshal(data, &records); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStorageRead, err)
	}
	return records, nil
}
