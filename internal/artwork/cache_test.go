package artwork

import (
	"testing"

	"lms/internal/artwork/codec"
	"lms/internal/models"
)

// TestCacheEviction checks eviction under a maxCacheSize=1000 budget: ten 200-byte
// entries with distinct size keys, currentSize never exceeding 1000 after any insert,
// and a final map of exactly 5 entries with currentSize == 1000.
func TestCacheEviction(t *testing.T) {
	c := NewCache(1000, nil)
	payload := make([]byte, 200)

	for i := 0; i < 10; i++ {
		desc := EntryDesc{ID: models.ArtworkID(1), Size: codec.ImageSize(i + 1)}
		c.AddImage(desc, codec.EncodedImage{MimeType: "image/jpeg", Bytes: payload})
		if c.CurrentSize() > 1000 {
			t.Fatalf("currentSize exceeded maxCacheSize after insert %d: %d", i, c.CurrentSize())
		}
	}

	c.mu.RLock()
	n := len(c.entries)
	c.mu.RUnlock()
	if n != 5 {
		t.Fatalf("expected 5 entries, got %d", n)
	}
	if c.CurrentSize() != 1000 {
		t.Fatalf("expected currentSize 1000, got %d", c.CurrentSize())
	}
}

func TestCacheHitMissCounters(t *testing.T) {
	c := NewCache(10000, nil)
	desc := EntryDesc{ID: 1, Size: 100}

	if _, ok := c.GetImage(desc); ok {
		t.Fatal("expected miss on empty cache")
	}
	if c.Misses() != 1 {
		t.Fatalf("expected 1 miss, got %d", c.Misses())
	}

	c.AddImage(desc, codec.EncodedImage{Bytes: []byte("x")})
	if _, ok := c.GetImage(desc); !ok {
		t.Fatal("expected hit after insert")
	}
	if c.Hits() != 1 {
		t.Fatalf("expected 1 hit, got %d", c.Hits())
	}
}

func TestCacheAddImageRejectsRawSize(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Fatal("expected panic inserting a size==0 (raw) entry")
		}
	}()
	c := NewCache(1000, nil)
	c.AddImage(EntryDesc{ID: 1, Size: 0}, codec.EncodedImage{Bytes: []byte("x")})
}

func TestCacheFlushResetsCountersAndEntries(t *testing.T) {
	c := NewCache(1000, nil)
	c.AddImage(EntryDesc{ID: 1, Size: 100}, codec.EncodedImage{Bytes: []byte("x")})
	c.GetImage(EntryDesc{ID: 1, Size: 100})
	c.GetImage(EntryDesc{ID: 2, Size: 100})

	c.Flush()

	if c.CurrentSize() != 0 || c.Hits() != 0 || c.Misses() != 0 {
		t.Fatal("expected flush to reset size and counters")
	}
	if _, ok := c.GetImage(EntryDesc{ID: 1, Size: 100}); ok {
		t.Fatal("expected flush to clear entries")
	}
}

func TestCacheInvalidateDropsAllSizesForID(t *testing.T) {
	c := NewCache(1000, nil)
	c.AddImage(EntryDesc{ID: 1, Size: 100}, codec.EncodedImage{Bytes: []byte("x")})
	c.AddImage(EntryDesc{ID: 1, Size: 200}, codec.EncodedImage{Bytes: []byte("y")})
	c.AddImage(EntryDesc{ID: 2, Size: 100}, codec.EncodedImage{Bytes: []byte("z")})

	c.Invalidate(1)

	if _, ok := c.GetImage(EntryDesc{ID: 1, Size: 100}); ok {
		t.Fatal("expected size 100 entry for id 1 to be invalidated")
	}
	if _, ok := c.GetImage(EntryDesc{ID: 1, Size: 200}); ok {
		t.Fatal("expected size 200 entry for id 1 to be invalidated")
	}
	if _, ok := c.GetImage(EntryDesc{ID: 2, Size: 100}); !ok {
		t.Fatal("expected id 2's entry to survive invalidation of id 1")
	}
}
