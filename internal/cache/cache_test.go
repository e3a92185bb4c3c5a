package cache

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestKey_Stable(t *testing.T) {
	a := Key("https://example.com:abc")
	b := Key("https://example.com:abc")
	if a != b {
		t.Errorf("Expected stable key, got %s and %s", a, b)
	}
	if !strings.HasPrefix(a, "verisum:v1:") {
		t.Errorf("Expected versioned prefix, got %s", a)
	}
	if strings.ContainsAny(strings.TrimPrefix(a, "verisum:v1:"), "/:") {
		t.Errorf("Expected filesystem-safe key, got %s", a)
	}
	if Key("https://example.com:abd") == a {
		t.Error("Expected different logical keys to differ")
	}
}

func TestMemoryCache_SetGet(t *testing.T) {
	c := NewMemoryCache(time.Minute, time.Minute)
	if _, ok := c.Get("missing"); ok {
		t.Error("Expected miss for unknown key")
	}

	_ = c.Set("k", []byte("v"), 0)
	val, ok := c.Get("k")
	if !ok || string(val) != "v" {
		t.Errorf("Expected v, got %q (found=%v)", val, ok)
	}

	_ = c.Clear()
	if c.Len() != 0 {
		t.Errorf("Expected empty cache after Clear, got %d", c.Len())
	}
}

func TestMemoryCache_CopiesValues(t *testing.T) {
	c := NewMemoryCache(time.Minute, time.Minute)
	in := []byte("abc")
	_ = c.Set("k", in, 0)
	in[0] = 'x'

	out, _ := c.Get("k")
	if string(out) != "abc" {
		t.Errorf("Expected stored value unaffected by caller, got %q", out)
	}
	out[1] = 'y'
	if again, _ := c.Get("k"); string(again) != "abc" {
		t.Errorf("Expected returned slice to be a copy, got %q", again)
	}
}

func TestMemoryCache_Bytes(t *testing.T) {
	c := NewMemoryCache(time.Minute, time.Minute)
	_ = c.Set("a", []byte("1234"), 0)
	_ = c.Set("b", []byte("12"), 0)
	if c.Bytes() != 6 {
		t.Errorf("Expected 6 bytes, got %d", c.Bytes())
	}

	_ = c.Set("a", []byte("1"), 0)
	if c.Bytes() != 3 {
		t.Errorf("Expected 3 bytes after replace, got %d", c.Bytes())
	}

	if err := c.Delete("b"); err != nil {
		t.Errorf("Delete failed: %v", err)
	}
	if err := c.Delete("b"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Expected ErrNotFound on second delete, got %v", err)
	}
	if c.Bytes() != 1 {
		t.Errorf("Expected 1 byte after delete, got %d", c.Bytes())
	}

	_ = c.Clear()
	if c.Bytes() != 0 {
		t.Errorf("Expected 0 bytes after Clear, got %d", c.Bytes())
	}
}

func TestMemoryCache_Expiry(t *testing.T) {
	c := NewMemoryCache(time.Minute, time.Minute)
	_ = c.Set("k", []byte("v"), 10*time.Millisecond)
	time.Sleep(20 * time.Millisecond)
	if _, ok := c.Get("k"); ok {
		t.Error("Expected expired entry to miss")
	}
}

func TestDiskCache_SetGetExpire(t *testing.T) {
	dir := t.TempDir()
	c := NewDiskCache(dir, time.Hour)

	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	c.now = func() time.Time { return now }

	if err := c.Set("k", []byte("payload"), 0); err != nil {
		t.Fatalf("Set failed: %v", err)
	}

	val, ok := c.Get("k")
	if !ok || string(val) != "payload" {
		t.Fatalf("Expected payload, got %q (found=%v)", val, ok)
	}

	now = now.Add(2 * time.Hour)
	if _, ok := c.Get("k"); ok {
		t.Error("Expected entry to expire after TTL")
	}
	if err := c.Delete("k"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Expected expired file to be removed on read, got %v", err)
	}
}

func TestDiskCache_CorruptFile(t *testing.T) {
	dir := t.TempDir()
	c := NewDiskCache(dir, time.Hour)
	_ = c.Set("k", []byte("v"), 0)

	if err := os.WriteFile(c.file("k"), []byte("{not json"), 0644); err != nil {
		t.Fatal(err)
	}
	if _, ok := c.Get("k"); ok {
		t.Error("Expected corrupt entry to miss")
	}
}

func TestDiskCache_PortableNames(t *testing.T) {
	dir := t.TempDir()
	c := NewDiskCache(dir, time.Hour)

	key := Key("https://example.com/a:fp")
	if err := c.Set(key, []byte("v"), 0); err != nil {
		t.Fatalf("Set failed: %v", err)
	}

	file := c.file(key)
	rel, err := filepath.Rel(dir, file)
	if err != nil {
		t.Fatal(err)
	}
	if strings.ContainsAny(rel, ":*?\"<>|") {
		t.Errorf("Expected portable file name, got %s", rel)
	}
	if filepath.Base(filepath.Dir(file)) != key[len(key)-2:] {
		t.Errorf("Expected shard dir from key tail, got %s", rel)
	}

	// Keys that sanitize to the same name must not read each other
	if _, ok := c.Get(strings.ReplaceAll(key, ":", "_")); ok {
		t.Error("Expected colliding key to miss")
	}
}

func TestLayeredCache_PromotesDurableHits(t *testing.T) {
	mem := NewMemoryCache(time.Minute, time.Minute)
	disk := NewDiskCache(t.TempDir(), time.Hour)
	c := NewLayeredCache(mem, disk)

	_ = disk.Set("k", []byte("v"), 0)

	val, tier := c.Lookup("k")
	if tier != TierDurable || string(val) != "v" {
		t.Fatalf("Expected durable hit, got tier=%s val=%q", tier, val)
	}

	_, tier = c.Lookup("k")
	if tier != TierMemory {
		t.Errorf("Expected promoted memory hit, got %s", tier)
	}

	if _, tier := c.Lookup("other"); tier != TierMiss {
		t.Errorf("Expected miss, got %s", tier)
	}
}

func TestLayeredCache_SetMemoryOnly(t *testing.T) {
	mem := NewMemoryCache(time.Minute, time.Minute)
	disk := NewDiskCache(t.TempDir(), time.Hour)
	c := NewLayeredCache(mem, disk)

	_ = c.SetMemory("k", []byte("v"), 0)
	if _, ok := disk.Get("k"); ok {
		t.Error("Expected durable tier untouched by SetMemory")
	}

	_ = c.SetDurable("k2", []byte("v2"), 0)
	if _, ok := disk.Get("k2"); !ok {
		t.Error("Expected SetDurable to reach the durable tier")
	}
	if _, ok := mem.Get("k2"); ok {
		t.Error("Expected memory tier untouched by SetDurable")
	}
}

func TestLayeredCache_DeleteAndClear(t *testing.T) {
	mem := NewMemoryCache(time.Minute, time.Minute)
	disk := NewDiskCache(t.TempDir(), time.Hour)
	c := NewLayeredCache(mem, disk)

	_ = c.SetMemory("k", []byte("v"), 0)
	_ = c.SetDurable("k", []byte("v"), 0)
	if err := c.Delete("k"); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	if _, tier := c.Lookup("k"); tier != TierMiss {
		t.Errorf("Expected miss after delete, got %s", tier)
	}
	if err := c.Delete("k"); err != nil {
		t.Errorf("Expected deleting a missing key to succeed, got %v", err)
	}

	_ = c.SetDurable("only-durable", []byte("v"), 0)
	if err := c.Delete("only-durable"); err != nil {
		t.Errorf("Expected delete of durable-only key to succeed, got %v", err)
	}

	_ = c.SetMemory("a", []byte("1"), 0)
	_ = c.SetDurable("b", []byte("2"), 0)
	if err := c.Clear(); err != nil {
		t.Fatalf("Clear failed: %v", err)
	}
	if mem.Len() != 0 {
		t.Errorf("Expected empty memory tier, got %d items", mem.Len())
	}
	if _, ok := disk.Get("b"); ok {
		t.Error("Expected durable tier cleared")
	}
}

func TestLayeredCache_NilDurable(t *testing.T) {
	c := NewLayeredCache(NewMemoryCache(time.Minute, time.Minute), nil)
	if err := c.SetDurable("k", []byte("v"), 0); err != nil {
		t.Fatalf("SetDurable without durable tier failed: %v", err)
	}
	_ = c.SetMemory("k", []byte("v"), 0)
	if _, tier := c.Lookup("k"); tier != TierMemory {
		t.Errorf("Expected memory hit, got %s", tier)
	}
	if err := c.Delete("k"); err != nil {
		t.Errorf("Delete failed: %v", err)
	}
	if err := c.Clear(); err != nil {
		t.Errorf("Clear failed: %v", err)
	}
}

func TestBadgerCache_InMemory(t *testing.T) {
	c, err := OpenBadgerCache("", time.Hour)
	if err != nil {
		t.Fatalf("OpenBadgerCache failed: %v", err)
	}
	defer func() { _ = c.Close() }()

	if err := c.Set("k", []byte("v"), 0); err != nil {
		t.Fatalf("Set failed: %v", err)
	}
	val, ok := c.Get("k")
	if !ok || string(val) != "v" {
		t.Errorf("Expected v, got %q (found=%v)", val, ok)
	}

	if err := c.Delete("k"); err != nil {
		t.Errorf("Delete failed: %v", err)
	}
	if err := c.Delete("k"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Expected ErrNotFound on second delete, got %v", err)
	}

	_ = c.Set("a", []byte("1"), 0)
	if err := c.Clear(); err != nil {
		t.Fatalf("Clear failed: %v", err)
	}
	if _, ok := c.Get("a"); ok {
		t.Error("Expected empty database after Clear")
	}
}
