package cache

import (
	"errors"
	"fmt"

	"github.com/charmbracelet/log"
	"github.com/dustin/go-humanize"
)

// Manager checks the memory cache first and falls back to disk, promoting
// disk hits into memory.
type Manager struct {
	l1 *MemoryCache
	l2 *DiskCache // nil when disk caching is disabled
}

// NewManager builds a cache manager from cfg. The disk level is only
// created when cfg.DiskPath is set and cfg.DiskCapacity is positive.
func NewManager(cfg Config) (*Manager, error) {
	m := &Manager{l1: NewMemoryCache(cfg.MemoryCapacity)}
	if cfg.DiskPath != "" && cfg.DiskCapacity > 0 {
		l2, err := NewDiskCache(cfg.DiskPath, cfg.DiskCapacity, cfg.CompressionLevel)
		if err != nil {
			return nil, err
		}
		m.l2 = l2
	}
	return m, nil
}

// Get returns the cached value for key.
func (m *Manager) Get(key string) ([]byte, bool) {
	if data, ok := m.l1.Get(key); ok {
		return data, true
	}
	if m.l2 == nil {
		return nil, false
	}
	data, ok := m.l2.Get(key)
	if !ok {
		return nil, false
	}
	if err := m.l1.Put(key, data); err != nil {
		log.Debug("Not promoting cache entry", "key", key, "error", err)
	}
	return data, true
}

// Put stores value in both levels. A value too large for memory is still
// written to disk.
func (m *Manager) Put(key string, value []byte) error {
	err1 := m.l1.Put(key, value)
	if m.l2 == nil {
		return err1
	}
	err2 := m.l2.Put(key, value)
	if err1 != nil && err2 != nil {
		return errors.Join(err1, err2)
	}
	return nil
}

// Delete removes key from both levels.
func (m *Manager) Delete(key string) error {
	err := m.l1.Delete(key)
	if m.l2 != nil {
		err = errors.Join(err, m.l2.Delete(key))
	}
	return err
}

// Clear empties both levels.
func (m *Manager) Clear() error {
	err := m.l1.Clear()
	if m.l2 != nil {
		err = errors.Join(err, m.l2.Clear())
	}
	return err
}

// Stats returns counters for each level.
func (m *Manager) Stats() map[Level]Stats {
	stats := map[Level]Stats{LevelMemory: m.l1.Stats()}
	if m.l2 != nil {
		stats[LevelDisk] = m.l2.Stats()
	}
	return stats
}

// Summary renders the stats for humans, e.g. for debug logs.
func (m *Manager) Summary() string {
	stats := m.Stats()
	out := ""
	for _, level := range []Level{LevelMemory, LevelDisk} {
		s, ok := stats[level]
		if !ok {
			continue
		}
		if out != "" {
			out += ", "
		}
		out += fmt.Sprintf("%s %s/%s %d items %.0f%% hits",
			level,
			humanize.IBytes(uint64(s.Size)),
			humanize.IBytes(uint64(s.Capacity)),
			s.Items,
			s.HitRate()*100,
		)
	}
	return out
}

// Close flushes the disk index.
func (m *Manager) Close() error {
	if m.l2 == nil {
		return nil
	}
	return m.l2.Close()
}
