package cache

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// DiskCache is the durable tier on the local filesystem. Each key is one JSON
// envelope under a two-character shard directory.
type DiskCache struct {
	root string
	ttl  time.Duration
	now  func() time.Time
}

// NewDiskCache creates a disk tier rooted at dir; ttl is used when Set gets ttl 0
func NewDiskCache(dir string, ttl time.Duration) *DiskCache {
	return &DiskCache{root: dir, ttl: ttl, now: time.Now}
}

// envelope is the on-disk form. Key guards against two keys sanitizing to the
// same file name.
type envelope struct {
	Key       string    `json:"key"`
	Value     []byte    `json:"value"`
	ExpiresAt time.Time `json:"expires_at"`
}

func (c *DiskCache) Get(key string) ([]byte, bool) {
	file := c.file(key)
	raw, err := os.ReadFile(file)
	if err != nil {
		return nil, false
	}

	var env envelope
	if json.Unmarshal(raw, &env) != nil || env.Key != key {
		return nil, false
	}
	if !c.now().Before(env.ExpiresAt) {
		_ = os.Remove(file)
		return nil, false
	}
	return env.Value, true
}

// Set writes through a temp file and rename so a reader never sees half an
// envelope
func (c *DiskCache) Set(key string, value []byte, ttl time.Duration) error {
	if ttl <= 0 {
		ttl = c.ttl
	}
	raw, err := json.Marshal(envelope{Key: key, Value: value, ExpiresAt: c.now().Add(ttl)})
	if err != nil {
		return fmt.Errorf("encode %s: %w", key, err)
	}

	file := c.file(key)
	dir := filepath.Dir(file)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create shard dir: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".write-*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpName := tmp.Name()
	defer func() { _ = os.Remove(tmpName) }()

	_, werr := tmp.Write(raw)
	cerr := tmp.Close()
	if err := errors.Join(werr, cerr); err != nil {
		return fmt.Errorf("write %s: %w", key, err)
	}
	if err := os.Rename(tmpName, file); err != nil {
		return fmt.Errorf("commit %s: %w", key, err)
	}
	return nil
}

func (c *DiskCache) Delete(key string) error {
	err := os.Remove(c.file(key))
	if errors.Is(err, fs.ErrNotExist) {
		return ErrNotFound
	}
	return err
}

// Clear removes the whole cache directory
func (c *DiskCache) Clear() error {
	return os.RemoveAll(c.root)
}

// file maps key to <root>/<shard>/<name>.json. Separators and colons are not
// portable in file names, so they are replaced.
func (c *DiskCache) file(key string) string {
	name := strings.Map(func(r rune) rune {
		switch r {
		case '/', '\\', ':', '*', '?', '"', '<', '>', '|':
			return '_'
		}
		return r
	}, key)

	// Shard on the tail, which is the hash part of keys built by Key
	shard := "00"
	if len(name) >= 2 {
		shard = name[len(name)-2:]
	}
	return filepath.Join(c.root, shard, name+".json")
}
