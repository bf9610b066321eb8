package artwork

import (
	"hash/maphash"
	"log/slog"
	"math/rand/v2"
	"sync"
	"sync/atomic"

	"lms/internal/artwork/codec"
	"lms/internal/models"
)

// EntryDesc is the cache key: an artwork id and the resized size it was produced at.
// The cache rejects desc.Size == 0: it must never hold a raw, unresized image.
// AddImage panics rather than silently admitting one, since that would be a caller
// bug, not a runtime condition.
type EntryDesc struct {
	ID   models.ArtworkID
	Size codec.ImageSize
}

var hashSeed = maphash.MakeSeed()

// entryHash combines desc.id and desc.size into a single stable integer for the
// process lifetime, via a fixed maphash seed. It isn't used for lookup (the map key
// does that); it exists so eviction logging can reference a single value per entry.
func entryHash(desc EntryDesc) uint64 {
	var hID, hSize maphash.Hash
	hID.SetSeed(hashSeed)
	hSize.SetSeed(hashSeed)
	var buf [8]byte
	putUint64(buf[:], uint64(desc.ID))
	hID.Write(buf[:])
	putUint64(buf[:], uint64(desc.Size))
	hSize.Write(buf[:])
	return hID.Sum64() ^ hSize.Sum64()
}

func putUint64(b []byte, v uint64) {
	for i := 0; i < 8; i++ {
		b[i] = byte(v >> (8 * i))
	}
}

// Cache is a bounded, size-accounted, concurrent artwork cache: a single RWMutex over
// the map, atomic hit/miss counters, random eviction when an insert would exceed
// maxCacheSize.
type Cache struct {
	mu          sync.RWMutex
	maxSize     int64
	currentSize int64
	entries     map[EntryDesc]codec.EncodedImage
	logger      *slog.Logger

	hits   atomic.Int64
	misses atomic.Int64
}

func NewCache(maxSize int64, logger *slog.Logger) *Cache {
	if logger == nil {
		logger = slog.Default()
	}
	return &Cache{
		maxSize: maxSize,
		entries: make(map[EntryDesc]codec.EncodedImage),
		logger:  logger,
	}
}

// GetImage returns a cached entry under a shared lock, counting the lookup as a hit
// or a miss regardless of whether the desc was ever cacheable, so hit/miss
// accounting reflects real traffic rather than only cacheable requests.
func (c *Cache) GetImage(desc EntryDesc) (codec.EncodedImage, bool) {
	c.mu.RLock()
	img, ok := c.entries[desc]
	c.mu.RUnlock()

	if ok {
		c.hits.Add(1)
	} else {
		c.misses.Add(1)
	}
	return img, ok
}

// AddImage inserts desc->image, evicting uniformly-random entries first if needed to
// stay within maxSize. desc.Size == 0 is a programmer error, not a runtime one: the
// caller (ArtworkService) never resizes to zero, so this panics rather than silently
// admitting a raw image into the cache.
func (c *Cache) AddImage(desc EntryDesc, img codec.EncodedImage) {
	if desc.Size == 0 {
		panic("artwork: cache must never hold a raw (size == 0) image")
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if old, exists := c.entries[desc]; exists {
		c.currentSize -= int64(old.Len())
	}

	for c.currentSize+int64(img.Len()) > c.maxSize && len(c.entries) > 0 {
		victim := c.randomKeyLocked()
		c.currentSize -= int64(c.entries[victim].Len())
		delete(c.entries, victim)
		c.logger.Debug("artwork cache evicted entry", "hash", entryHash(victim))
	}

	c.entries[desc] = img
	c.currentSize += int64(img.Len())
}

func (c *Cache) randomKeyLocked() EntryDesc {
	n := rand.IntN(len(c.entries))
	i := 0
	for k := range c.entries {
		if i == n {
			return k
		}
		i++
	}
	panic("unreachable")
}

// Invalidate drops every cached entry for a single artwork id, across all sizes, so
// a rescanned track/release/artist with changed artwork isn't served stale bytes
// without waiting for a full flush.
func (c *Cache) Invalidate(id models.ArtworkID) {
	c.mu.Lock()
	defer c.mu.Unlock()

	for k, v := range c.entries {
		if k.ID == id {
			c.currentSize -= int64(v.Len())
			delete(c.entries, k)
		}
	}
}

// Flush clears the map and resets the hit/miss counters, called once per completed
// scan that changed the catalog.
func (c *Cache) Flush() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.logger.Info("artwork cache flush",
		"hits", c.hits.Load(), "misses", c.misses.Load(), "size", c.currentSize, "entries", len(c.entries))
	c.entries = make(map[EntryDesc]codec.EncodedImage)
	c.currentSize = 0
	c.hits.Store(0)
	c.misses.Store(0)
}

func (c *Cache) CurrentSize() int64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.currentSize
}

func (c *Cache) Hits() int64   { return c.hits.Load() }
func (c *Cache) Misses() int64 { return c.misses.Load() }
