// Package cache provides the bounded, LRU-evicted result store keyed by
// request fingerprint. Entries are visible atomically: an entry is either
// absent or fully populated, never partial.
package cache

import (
	"container/list"
	"errors"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/dustin/go-humanize"
	"github.com/klauspost/compress/zstd"
)

// Cache errors.
var (
	ErrItemTooLarge = errors.New("item too large for cache")
	ErrCorrupted    = errors.New("cache entry corrupted")
)

// compressMin is the audio payload size above which entries are stored
// zstd-compressed. Short clips are not worth the CPU.
const compressMin = 4 * 1024

// Config bounds the cache.
type Config struct {
	// MaxEntries caps the entry count. Zero means unbounded by count.
	MaxEntries int
	// MaxBytes caps the total accounted size. Zero selects 64 MiB.
	MaxBytes int64
	// MaxAge evicts entries older than this on Prune. Zero disables.
	MaxAge time.Duration
	// Compression enables zstd compression of audio payloads at rest.
	Compression bool
}

func (c Config) withDefaults() Config {
	if c.MaxBytes <= 0 {
		c.MaxBytes = 64 << 20
	}
	return c
}

// Stats holds cache performance counters.
type Stats struct {
	Hits        int64
	Misses      int64
	Evictions   int64
	Corruptions int64
	Entries     int64
	Bytes       int64
	Capacity    int64
}

// HitRate returns hits over total lookups, or zero before any lookup.
func (s Stats) HitRate() float64 {
	total := s.Hits + s.Misses
	if total == 0 {
		return 0
	}
	return float64(s.Hits) / float64(total)
}

type entry struct {
	key        string
	meta       any
	audio      []byte // possibly compressed
	rawSize    int64  // accounted (uncompressed) size
	compressed bool
	insertedAt time.Time
}

// Cache is a fingerprint-keyed LRU store. The metadata value is held as an
// opaque immutable reference; the audio payload may be transparently
// compressed at rest.
type Cache struct {
	cfg Config

	mu       sync.RWMutex
	items    map[string]*list.Element
	eviction *list.List
	size     int64
	stats    Stats

	encoder *zstd.Encoder
	decoder *zstd.Decoder

	logger *log.Logger
}

// New creates a cache with the given bounds.
func New(cfg Config, logger *log.Logger) (*Cache, error) {
	cfg = cfg.withDefaults()
	if logger == nil {
		logger = log.Default()
	}

	c := &Cache{
		cfg:      cfg,
		items:    make(map[string]*list.Element),
		eviction: list.New(),
		logger:   logger.WithPrefix("cache"),
	}
	c.stats.Capacity = cfg.MaxBytes

	if cfg.Compression {
		var err error
		c.encoder, err = zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
		if err != nil {
			return nil, err
		}
		c.decoder, err = zstd.NewReader(nil)
		if err != nil {
			return nil, err
		}
	}

	return c, nil
}

// Get returns the metadata and audio payload for key, updating recency and
// the hit/miss counters. Entries older than MaxAge are dropped on access and
// reported as misses. A decompression failure is treated as corruption: the
// entry is dropped and the lookup reported as a miss, so the caller
// regenerates.
func (c *Cache) Get(key string) (any, []byte, bool) {
	return c.read(key, true)
}

// Peek is Get without the hit/miss accounting. Used for re-checks inside a
// generation flight, where the caller's lookup already counted the miss.
func (c *Cache) Peek(key string) (any, []byte, bool) {
	return c.read(key, false)
}

func (c *Cache) read(key string, count bool) (any, []byte, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	elem, ok := c.items[key]
	if !ok {
		if count {
			c.stats.Misses++
		}
		return nil, nil, false
	}

	e := elem.Value.(*entry)
	if c.cfg.MaxAge > 0 && time.Since(e.insertedAt) > c.cfg.MaxAge {
		c.removeElement(elem)
		c.stats.Evictions++
		if count {
			c.stats.Misses++
		}
		return nil, nil, false
	}

	audio := e.audio
	if e.compressed {
		decoded, err := c.decoder.DecodeAll(e.audio, nil)
		if err != nil {
			c.logger.Warn("dropping corrupted cache entry", "key", key, "err", err)
			c.removeElement(elem)
			c.stats.Corruptions++
			if count {
				c.stats.Misses++
			}
			return nil, nil, false
		}
		audio = decoded
	}

	c.eviction.MoveToFront(elem)
	if count {
		c.stats.Hits++
	}
	return e.meta, audio, true
}

// Put stores a fully-populated entry. meta must be immutable once stored;
// size is the accounted footprint including the uncompressed audio.
func (c *Cache) Put(key string, meta any, audio []byte, size int64) error {
	stored := audio
	compressed := false
	if c.encoder != nil && len(audio) >= compressMin {
		stored = c.encoder.EncodeAll(audio, nil)
		compressed = true
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if size > c.cfg.MaxBytes {
		return ErrItemTooLarge
	}

	if elem, ok := c.items[key]; ok {
		old := elem.Value.(*entry)
		c.size += size - old.rawSize
		elem.Value = &entry{
			key: key, meta: meta, audio: stored,
			rawSize: size, compressed: compressed, insertedAt: time.Now(),
		}
		c.eviction.MoveToFront(elem)
		// A growing replacement can push the cache over budget. The
		// replaced entry sits at the front, so the loop never removes it.
		for c.size > c.cfg.MaxBytes && c.eviction.Len() > 1 {
			c.evictOldest()
		}
		c.stats.Bytes = c.size
		c.stats.Entries = int64(len(c.items))
		return nil
	}

	for c.needsEviction(size) && c.eviction.Len() > 0 {
		c.evictOldest()
	}

	elem := c.eviction.PushFront(&entry{
		key: key, meta: meta, audio: stored,
		rawSize: size, compressed: compressed, insertedAt: time.Now(),
	})
	c.items[key] = elem
	c.size += size
	c.stats.Bytes = c.size
	c.stats.Entries = int64(len(c.items))
	return nil
}

// Contains reports key presence without updating recency.
func (c *Cache) Contains(key string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	_, ok := c.items[key]
	return ok
}

// Len returns the current entry count.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.items)
}

// Stats returns a snapshot of the cache counters.
func (c *Cache) Stats() Stats {
	c.mu.RLock()
	defer c.mu.RUnlock()
	s := c.stats
	s.Bytes = c.size
	s.Entries = int64(len(c.items))
	return s
}

// Prune removes entries older than the configured MaxAge and returns how many
// were dropped.
func (c *Cache) Prune() int {
	if c.cfg.MaxAge <= 0 {
		return 0
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	cutoff := time.Now().Add(-c.cfg.MaxAge)
	pruned := 0
	elem := c.eviction.Back()
	for elem != nil {
		prev := elem.Prev()
		if elem.Value.(*entry).insertedAt.Before(cutoff) {
			c.removeElement(elem)
			pruned++
		}
		elem = prev
	}

	if pruned > 0 {
		c.logger.Debug("pruned aged entries",
			"count", pruned, "bytes", humanize.Bytes(uint64(c.size)))
	}
	return pruned
}

// Clear drops every entry.
func (c *Cache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.items = make(map[string]*list.Element)
	c.eviction.Init()
	c.size = 0
	c.stats.Bytes = 0
	c.stats.Entries = 0
}

// needsEviction must be called with the lock held.
func (c *Cache) needsEviction(incoming int64) bool {
	if c.size+incoming > c.cfg.MaxBytes {
		return true
	}
	if c.cfg.MaxEntries > 0 && len(c.items)+1 > c.cfg.MaxEntries {
		return true
	}
	return false
}

// evictOldest must be called with the lock held.
func (c *Cache) evictOldest() {
	elem := c.eviction.Back()
	if elem == nil {
		return
	}
	e := elem.Value.(*entry)
	c.removeElement(elem)
	c.stats.Evictions++
	c.logger.Debug("evicted entry",
		"key", e.key, "size", humanize.Bytes(uint64(e.rawSize)))
}

// removeElement must be called with the lock held.
func (c *Cache) removeElement(elem *list.Element) {
	c.eviction.Remove(elem)
	e := elem.Value.(*entry)
	delete(c.items, e.key)
	c.size -= e.rawSize
	c.stats.Bytes = c.size
	c.stats.Entries = int64(len(c.items))
}
