package claims

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/ppiankov/verisum/internal/cache"
)

// BlobKey is the storage key of the serialized claim map
const BlobKey = "claims"

// Blob loads and saves the whole serialized claim set.
// Load returns nil data when nothing was saved yet.
type Blob interface {
	Load() ([]byte, error)
	Save(data []byte) error
}

// FileBlob keeps the claim set in a single JSON file
type FileBlob struct {
	path string
}

// NewFileBlob creates a file-backed blob at path
func NewFileBlob(path string) *FileBlob {
	return &FileBlob{path: path}
}

// Load reads the file, nil when it does not exist
func (b *FileBlob) Load() ([]byte, error) {
	data, err := os.ReadFile(b.path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read claims file: %w", err)
	}
	return data, nil
}

// Save replaces the file atomically
func (b *FileBlob) Save(data []byte) error {
	dir := filepath.Dir(b.path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("create claims dir: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".claims-*.tmp")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	defer func() { _ = os.Remove(tmp.Name()) }()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("write claims file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close claims file: %w", err)
	}
	return os.Rename(tmp.Name(), b.path)
}

// CacheBlob keeps the claim set under BlobKey in a cache tier with no expiry,
// normally a badger database.
type CacheBlob struct {
	store cache.Cache
}

// NewCacheBlob wraps a cache tier
func NewCacheBlob(store cache.Cache) *CacheBlob {
	return &CacheBlob{store: store}
}

// Load returns the stored blob, nil when absent
func (b *CacheBlob) Load() ([]byte, error) {
	data, ok := b.store.Get(BlobKey)
	if !ok {
		return nil, nil
	}
	return data, nil
}

// Save overwrites the stored blob
func (b *CacheBlob) Save(data []byte) error {
	return b.store.Set(BlobKey, data, -1)
}
