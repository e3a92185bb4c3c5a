package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"time"
)

// ErrNotFound is returned by Delete for keys that are not stored
var ErrNotFound = errors.New("cache: key not found")

// Cache defines the byte-level key/value store used by the document cache
type Cache interface {
	Get(key string) ([]byte, bool)
	Set(key string, value []byte, ttl time.Duration) error
	Delete(key string) error
	Clear() error
}

// Key builds a filesystem-safe storage key from a logical key such as "url:fingerprint"
func Key(logical string) string {
	hash := sha256.Sum256([]byte(logical))
	return "verisum:v1:" + hex.EncodeToString(hash[:])
}
