package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strconv"
	"time"
)

// Common errors for cache operations
var (
	// ErrItemTooLarge is returned when an item exceeds the cache capacity
	ErrItemTooLarge = errors.New("item too large for cache")

	// ErrCacheClosed is returned when using a closed cache
	ErrCacheClosed = errors.New("cache is closed")
)

// Level identifies a cache tier.
type Level int

const (
	// LevelMemory is the in-memory cache.
	LevelMemory Level = iota
	// LevelDisk is the persistent disk cache.
	LevelDisk
)

// String returns the string representation of the cache level.
func (l Level) String() string {
	switch l {
	case LevelMemory:
		return "memory"
	case LevelDisk:
		return "disk"
	default:
		return "unknown"
	}
}

// Stats holds cache counters.
type Stats struct {
	Capacity  int64 // Maximum capacity in bytes
	Size      int64 // Current size in bytes
	Items     int64
	Hits      int64
	Misses    int64
	Evictions int64
	LastEvict time.Time
}

// HitRate returns hits / (hits + misses), 0 with no lookups.
func (s Stats) HitRate() float64 {
	if s.Hits+s.Misses == 0 {
		return 0
	}
	return float64(s.Hits) / float64(s.Hits+s.Misses)
}

// Cache is a byte cache keyed by string.
type Cache interface {
	Get(key string) ([]byte, bool)
	Put(key string, value []byte) error
	Delete(key string) error
	Clear() error
	Stats() Stats
}

// Key builds the cache key of a sentence spoken with a voice at a speed.
func Key(text, voice string, speed float64) string {
	h := sha256.New()
	fmt.Fprintf(h, "%s\x00%s\x00", voice, strconv.FormatFloat(speed, 'f', 3, 64))
	h.Write([]byte(text))
	return hex.EncodeToString(h.Sum(nil))
}

// Config holds cache sizes and the disk location.
type Config struct {
	MemoryCapacity   int64  // Bytes
	DiskCapacity     int64  // Bytes, 0 disables the disk level
	DiskPath         string // Directory for cache files
	CompressionLevel int    // Zstd compression level (1-22), 0 disables compression
}

// DefaultConfig returns the default cache configuration without a disk path.
func DefaultConfig() Config {
	return Config{
		MemoryCapacity:   32 * 1024 * 1024,  // 32MB
		DiskCapacity:     512 * 1024 * 1024, // 512MB
		CompressionLevel: 3,
	}
}
