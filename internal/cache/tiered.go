// Package cache implements the two-level suggestion cache keyed by
// directory fingerprint: an in-process TTL map in front of a directory of
// namespaced JSON blobs. Validity is always re-derived from the current
// file set's fingerprint, never trusted blindly, so a lost disk write only
// ever costs an extra miss.
package cache

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	gocache "github.com/patrickmn/go-cache"

	"filesage/internal/logging"
	"filesage/internal/scan"
)

// Entry is the persisted cache record. The JSON shape round-trips exactly
// as {data, directoryHash, timestamp, fileCount, configHash?}.
type Entry[T any] struct {
	Data          T      `json:"data"`
	DirectoryHash string `json:"directoryHash"`
	Timestamp     int64  `json:"timestamp"` // unix milliseconds
	FileCount     int    `json:"fileCount"`
	ConfigHash    string `json:"configHash,omitempty"`
}

// MissReason explains why a lookup returned nothing. Each validity
// condition is independently observable for diagnostics.
type MissReason string

const (
	MissNone        MissReason = ""            // hit
	MissAbsent      MissReason = "absent"      // no entry in either tier
	MissExpired     MissReason = "expired"     // entry older than TTL
	MissFingerprint MissReason = "fingerprint" // directory contents changed
	MissConfig      MissReason = "config"      // suggestion-relevant config changed
	MissCorrupt     MissReason = "corrupt"     // persisted entry failed to parse
)

// Stats describes the cache for the `cache stats` command.
type Stats struct {
	MemoryEntries int           `json:"memoryEntries"`
	TTL           time.Duration `json:"ttl"`
	Location      string        `json:"persistedLocation"`
}

// Tiered is the two-level cache. The memory tier is safe for concurrent
// use; concurrent writes to one key are idempotent because entries are
// deterministic recomputations.
//
// Both tiers hold the encoded record, never the caller's value: Put
// serializes immediately and every hit decodes a fresh copy, so the cache
// shares no mutable state with a live negotiation.
type Tiered[T any] struct {
	namespace string
	dir       string
	ttl       time.Duration
	mem       *gocache.Cache
	persistWG sync.WaitGroup
	log       *logging.Logger
}

// NewTiered creates a cache persisting under <stateDir>/cache/<namespace>.
func NewTiered[T any](namespace, stateDir string, ttl time.Duration) *Tiered[T] {
	return &Tiered[T]{
		namespace: namespace,
		dir:       filepath.Join(stateDir, "cache", namespace),
		ttl:       ttl,
		mem:       gocache.New(ttl, 10*time.Minute),
		log:       logging.Get(logging.CategoryCache),
	}
}

func (c *Tiered[T]) entryPath(key string) string {
	return filepath.Join(c.dir, key+".json")
}

// Get returns the cached value for key if it is still valid for the given
// file set and config fingerprint.
func (c *Tiered[T]) Get(key string, files []scan.FileDescriptor, configHash string) (T, bool) {
	v, reason := c.Lookup(key, files, configHash)
	return v, reason == MissNone
}

// Lookup is Get with the miss reason exposed.
func (c *Tiered[T]) Lookup(key string, files []scan.FileDescriptor, configHash string) (T, MissReason) {
	var zero T
	fp := Fingerprint(files)

	if x, found := c.mem.Get(key); found {
		var entry Entry[T]
		if err := json.Unmarshal(x.([]byte), &entry); err == nil {
			if reason := c.validate(entry, fp, configHash); reason == MissNone {
				c.log.Debug("memory hit for %s/%s", c.namespace, key)
				return entry.Data, MissNone
			} else {
				c.log.Debug("memory entry for %s/%s invalid: %s", c.namespace, key, reason)
			}
		}
	}

	entry, data, reason := c.loadDisk(key)
	if reason != MissNone {
		return zero, reason
	}
	if reason := c.validate(entry, fp, configHash); reason != MissNone {
		c.log.Debug("disk entry for %s/%s invalid: %s", c.namespace, key, reason)
		return zero, reason
	}

	// Promote into the memory tier with the remaining lifetime.
	remaining := c.ttl - time.Since(time.UnixMilli(entry.Timestamp))
	c.mem.Set(key, data, remaining)
	c.log.Debug("disk hit for %s/%s, promoted", c.namespace, key)
	return entry.Data, MissNone
}

func (c *Tiered[T]) validate(entry Entry[T], fingerprint, configHash string) MissReason {
	if time.Since(time.UnixMilli(entry.Timestamp)) >= c.ttl {
		return MissExpired
	}
	if entry.DirectoryHash != fingerprint {
		return MissFingerprint
	}
	if configHash != "" && entry.ConfigHash != configHash {
		return MissConfig
	}
	return MissNone
}

// loadDisk reads a persisted entry, returning both the decoded record and
// its raw bytes for promotion. A record that fails to parse is deleted and
// reported as corrupt; corruption never surfaces as an error.
func (c *Tiered[T]) loadDisk(key string) (Entry[T], []byte, MissReason) {
	var entry Entry[T]

	data, err := os.ReadFile(c.entryPath(key))
	if err != nil {
		return entry, nil, MissAbsent
	}
	if err := json.Unmarshal(data, &entry); err != nil {
		c.log.Warn("corrupt cache entry %s/%s, deleting: %v", c.namespace, key, err)
		os.Remove(c.entryPath(key))
		return entry, nil, MissCorrupt
	}
	return entry, data, MissNone
}

// Put stores a value for key. The payload is encoded here, synchronously,
// so later caller mutations cannot reach the cache; the disk write is
// fire-and-forget — a failure is logged, never fatal, because the next run
// simply recomputes.
func (c *Tiered[T]) Put(key string, files []scan.FileDescriptor, value T, configHash string) {
	entry := Entry[T]{
		Data:          value,
		DirectoryHash: Fingerprint(files),
		Timestamp:     time.Now().UnixMilli(),
		FileCount:     len(files),
		ConfigHash:    configHash,
	}
	data, err := json.MarshalIndent(entry, "", "  ")
	if err != nil {
		c.log.Warn("encode %s/%s failed: %v", c.namespace, key, err)
		return
	}

	c.mem.Set(key, data, c.ttl)

	c.persistWG.Add(1)
	go func() {
		defer c.persistWG.Done()
		if err := c.persist(key, data); err != nil {
			c.log.Warn("persist %s/%s failed: %v", c.namespace, key, err)
		}
	}()
}

func (c *Tiered[T]) persist(key string, data []byte) error {
	if err := os.MkdirAll(c.dir, 0755); err != nil {
		return err
	}
	return os.WriteFile(c.entryPath(key), data, 0644)
}

// Flush waits for in-flight disk writes. Called before process exit and by
// tests; the cache works without it.
func (c *Tiered[T]) Flush() {
	c.persistWG.Wait()
}

// Invalidate removes one key from both tiers.
func (c *Tiered[T]) Invalidate(key string) {
	c.mem.Delete(key)
	os.Remove(c.entryPath(key))
	c.log.Info("invalidated %s/%s", c.namespace, key)
}

// InvalidateAll clears the whole namespace from both tiers.
func (c *Tiered[T]) InvalidateAll() {
	c.mem.Flush()
	os.RemoveAll(c.dir)
	c.log.Info("invalidated namespace %s", c.namespace)
}

// SweepExpired removes entries older than TTL from both tiers. Persisted
// entries that fail to parse are treated as expired and deleted. Returns
// the number of disk entries removed.
func (c *Tiered[T]) SweepExpired() int {
	c.mem.DeleteExpired()

	entries, err := os.ReadDir(c.dir)
	if err != nil {
		return 0
	}

	removed := 0
	for _, dirEntry := range entries {
		if dirEntry.IsDir() || filepath.Ext(dirEntry.Name()) != ".json" {
			continue
		}
		path := filepath.Join(c.dir, dirEntry.Name())

		var entry Entry[T]
		data, err := os.ReadFile(path)
		if err == nil {
			err = json.Unmarshal(data, &entry)
		}
		if err != nil || time.Since(time.UnixMilli(entry.Timestamp)) >= c.ttl {
			if os.Remove(path) == nil {
				removed++
			}
		}
	}
	if removed > 0 {
		c.log.Info("swept %d expired entrie(s) from %s", removed, c.namespace)
	}
	return removed
}

// Stats reports the cache's shape.
func (c *Tiered[T]) Stats() Stats {
	return Stats{
		MemoryEntries: c.mem.ItemCount(),
		TTL:           c.ttl,
		Location:      c.dir,
	}
}

// String implements fmt.Stringer for diagnostics.
func (c *Tiered[T]) String() string {
	return fmt.Sprintf("cache[%s] ttl=%v dir=%s", c.namespace, c.ttl, c.dir)
}
