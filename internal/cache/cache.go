// Package cache is a small JSON file cache used to avoid re-scraping
// wholesale search pages within their freshness window.
package cache

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"
)

type entry struct {
	Data      json.RawMessage `json:"data"`
	Timestamp time.Time       `json:"timestamp"`
	TTL       time.Duration   `json:"ttl"`
}

// Cache persists entries to a single JSON file. Safe for concurrent use.
type Cache struct {
	path    string
	mu      sync.RWMutex
	entries map[string]entry
}

// New loads the cache file at path, starting fresh when the file is
// missing or corrupt.
func New(path string) (*Cache, error) {
	c := &Cache{
		path:    path,
		entries: make(map[string]entry),
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return c, nil
		}
		return nil, fmt.Errorf("read cache: %w", err)
	}
	if len(data) > 0 {
		if err := json.Unmarshal(data, &c.entries); err != nil {
			// Corrupt cache is not worth failing a run over.
			c.entries = make(map[string]entry)
		}
	}
	return c, nil
}

// Get unmarshals a live entry into target and reports whether it was
// found. Expired entries count as misses and are dropped.
func (c *Cache) Get(key string, target interface{}) (bool, error) {
	c.mu.RLock()
	e, ok := c.entries[key]
	c.mu.RUnlock()

	if !ok {
		return false, nil
	}
	if e.TTL > 0 && time.Since(e.Timestamp) > e.TTL {
		c.mu.Lock()
		if cur, still := c.entries[key]; still && cur.Timestamp.Equal(e.Timestamp) {
			delete(c.entries, key)
		}
		c.mu.Unlock()
		return false, nil
	}

	if err := json.Unmarshal(e.Data, target); err != nil {
		return false, fmt.Errorf("unmarshal cache entry: %w", err)
	}
	return true, nil
}

// Put stores value under key with the given TTL and persists the cache.
func (c *Cache) Put(key string, value interface{}, ttl time.Duration) error {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("marshal value: %w", err)
	}

	c.mu.Lock()
	c.entries[key] = entry{Data: data, Timestamp: time.Now(), TTL: ttl}
	c.mu.Unlock()

	return c.save()
}

// Clear drops every entry and persists the empty cache.
func (c *Cache) Clear() error {
	c.mu.Lock()
	c.entries = make(map[string]entry)
	c.mu.Unlock()
	return c.save()
}

// save writes the cache atomically: temp file in the same directory, then
// rename over the target.
func (c *Cache) save() error {
	dir := filepath.Dir(c.path)
	if dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create cache dir: %w", err)
		}
	}

	c.mu.RLock()
	data, err := json.Marshal(c.entries)
	c.mu.RUnlock()
	if err != nil {
		return fmt.Errorf("marshal cache: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".cache-*")
	if err != nil {
		return fmt.Errorf("create temp cache file: %w", err)
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return fmt.Errorf("write cache: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("close cache: %w", err)
	}
	return os.Rename(tmp.Name(), c.path)
}

// Key joins parts into a semantic cache key.
func Key(parts ...string) string {
	return strings.Join(parts, "|")
}
