package cache

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
)

func TestDiskCache_BasicOperations(t *testing.T) {
	dc, err := NewDiskCache(t.TempDir(), 1024, 0)
	if err != nil {
		t.Fatalf("NewDiskCache failed: %v", err)
	}
	defer dc.Close()

	if err := dc.Put("key", []byte("value")); err != nil {
		t.Fatalf("Put failed: %v", err)
	}
	got, ok := dc.Get("key")
	if !ok || string(got) != "value" {
		t.Fatalf("Get = %q, %v", got, ok)
	}

	dc.Delete("key")
	if _, ok := dc.Get("key"); ok {
		t.Error("Key still exists after delete")
	}
}

func TestDiskCache_Compression(t *testing.T) {
	dir := t.TempDir()
	dc, err := NewDiskCache(dir, 1<<20, 3)
	if err != nil {
		t.Fatalf("NewDiskCache failed: %v", err)
	}
	defer dc.Close()

	value := bytes.Repeat([]byte("silence "), 1024)
	if err := dc.Put("pcm", value); err != nil {
		t.Fatalf("Put failed: %v", err)
	}

	info, err := os.Stat(filepath.Join(dir, "pcm.cache"))
	if err != nil {
		t.Fatalf("cache file missing: %v", err)
	}
	if info.Size() >= int64(len(value)) {
		t.Errorf("file size %d, expected compression below %d", info.Size(), len(value))
	}

	got, ok := dc.Get("pcm")
	if !ok || !bytes.Equal(got, value) {
		t.Error("decompressed value does not match")
	}
}

func TestDiskCache_Persistence(t *testing.T) {
	dir := t.TempDir()

	dc, err := NewDiskCache(dir, 1<<20, 3)
	if err != nil {
		t.Fatalf("NewDiskCache failed: %v", err)
	}
	dc.Put("key", []byte("persisted"))
	if err := dc.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	reopened, err := NewDiskCache(dir, 1<<20, 3)
	if err != nil {
		t.Fatalf("reopen failed: %v", err)
	}
	defer reopened.Close()

	got, ok := reopened.Get("key")
	if !ok || string(got) != "persisted" {
		t.Errorf("Get after reopen = %q, %v", got, ok)
	}
	if s := reopened.Stats(); s.Size != int64(len("persisted")) {
		t.Errorf("Size after reopen = %d", s.Size)
	}
}

func TestDiskCache_Eviction(t *testing.T) {
	dc, err := NewDiskCache(t.TempDir(), 20, 0)
	if err != nil {
		t.Fatalf("NewDiskCache failed: %v", err)
	}
	defer dc.Close()

	dc.Put("a", make([]byte, 10))
	dc.Put("b", make([]byte, 10))
	dc.Put("c", make([]byte, 10))

	if _, ok := dc.Get("a"); ok {
		t.Error("oldest entry should have been evicted")
	}
	if s := dc.Stats(); s.Size > 20 || s.Evictions != 1 {
		t.Errorf("Stats = %+v", s)
	}
	if err := dc.Put("huge", make([]byte, 21)); err != ErrItemTooLarge {
		t.Errorf("Put error = %v, want %v", err, ErrItemTooLarge)
	}
}

func TestDiskCache_MissingFile(t *testing.T) {
	dir := t.TempDir()
	dc, err := NewDiskCache(dir, 1024, 0)
	if err != nil {
		t.Fatalf("NewDiskCache failed: %v", err)
	}
	defer dc.Close()

	dc.Put("key", []byte("value"))
	os.Remove(filepath.Join(dir, "key.cache"))

	if _, ok := dc.Get("key"); ok {
		t.Error("Get should miss when the file is gone")
	}
	if s := dc.Stats(); s.Items != 0 || s.Size != 0 {
		t.Errorf("entry should be dropped, stats = %+v", s)
	}
}
