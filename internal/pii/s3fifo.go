// Package pii — s3fifo.go
//
// s3fifoStore wraps a DetectionStore with an in-memory S3-FIFO eviction
// layer, bounding both the hot in-memory footprint and the size of the
// on-disk detection cache.
//
// # Algorithm
//
// S3-FIFO ("Simple, Scalable, FIFO-based cache eviction", Yang et al., 2023)
// uses two FIFO queues and a bounded ghost set:
//
//   - S (small, ~10% of capacity): probationary queue. All new keys land here.
//   - M (main, ~90% of capacity): protected queue. Keys promoted from S
//     after at least one access (freq > 0).
//   - G (ghost): a circular-buffer set of keys recently evicted from S,
//     bounded to 2× sTarget. A key found in G on insert bypasses S and goes
//     directly to M, giving scan resistance without LRU's per-access lock
//     serialization.
//
// Per-object state: saturating frequency counter (uint8, max 3),
// incremented on every Get hit, reset on M promotion.
//
// # Eviction
//
//	S head: freq > 0 → promote to M tail (and trim M if over target);
//	        freq == 0 → drop from memory, record in G, delete from backing.
//	M head: drop from memory, delete from backing. No G entry.
//
// Items evicted from either queue are deleted from the backing store, so
// the bbolt file stays bounded. After a restart the memory layer is cold;
// reads fall back to bbolt and re-warm the hot set organically.
//
// # Concurrency
//
// One mutex guards all in-memory state. Backing-store I/O (which has its
// own locking) happens outside the mutex: asynchronously for deletions,
// directly for reads and writes.
package pii

import (
	"container/list"
	"sync"

	"github.com/KawtarRIFI/LegalGuard-AI/internal/logger"
)

// s3fifoItem holds the in-memory state for one cached entry.
type s3fifoItem struct {
	value string
	freq  uint8         // saturating counter in [0, 3]
	elem  *list.Element // back-pointer into small or main
	inM   bool          // true → main queue, false → small queue
}

// s3fifoStore applies S3-FIFO eviction in front of a backing DetectionStore.
type s3fifoStore struct {
	mu sync.Mutex

	capacity int // small + main max items
	sTarget  int // desired small-queue size (~10%)
	ghostCap int // maximum ghost set cardinality

	items map[string]*s3fifoItem

	// FIFO queues; each element Value is a string key.
	small *list.List
	main  *list.List

	// Ghost: bounded circular buffer with O(1) membership.
	ghostBuf   []string
	ghostSet   map[string]struct{}
	ghostHead  int
	ghostCount int

	backing DetectionStore
}

// newS3FIFOStore returns a DetectionStore bounding the given backing store
// to capacity items. Values < 2 are clamped to 2.
func newS3FIFOStore(backing DetectionStore, capacity int, log *logger.Logger) DetectionStore {
	if capacity < 2 {
		capacity = 2
	}
	sTarget := capacity / 10
	if sTarget < 1 {
		sTarget = 1
	}
	ghostCap := 2 * sTarget
	if ghostCap < 4 {
		ghostCap = 4
	}
	if log != nil {
		log.Debugf("cache_init", "S3-FIFO capacity=%d sTarget=%d ghostCap=%d", capacity, sTarget, ghostCap)
	}
	return &s3fifoStore{
		capacity: capacity,
		sTarget:  sTarget,
		ghostCap: ghostCap,
		items:    make(map[string]*s3fifoItem, capacity),
		small:    list.New(),
		main:     list.New(),
		ghostBuf: make([]string, ghostCap),
		ghostSet: make(map[string]struct{}, ghostCap),
		backing:  backing,
	}
}

// ── DetectionStore ──────────────────────────────────────────────────────────

// Get returns the value for key. A memory hit bumps the frequency counter;
// a memory miss consults the backing store and re-warms the hot set.
func (c *s3fifoStore) Get(key string) (string, bool) {
	c.mu.Lock()
	if it, ok := c.items[key]; ok {
		if it.freq < 3 {
			it.freq++
		}
		v := it.value
		c.mu.Unlock()
		return v, true
	}
	c.mu.Unlock()

	// Cold path: the backing store carries its own locking.
	value, ok := c.backing.Get(key)
	if !ok {
		return "", false
	}
	c.insert(key, value)
	return value, true
}

// Set stores key → value in memory and in the backing store.
func (c *s3fifoStore) Set(key, value string) {
	c.insert(key, value)
	c.backing.Set(key, value)
}

// Delete removes key from memory and from the backing store.
func (c *s3fifoStore) Delete(key string) {
	c.mu.Lock()
	c.dropFromMemory(key)
	c.mu.Unlock()
	c.backing.Delete(key)
}

// Close closes the backing store. In-memory state is discarded.
func (c *s3fifoStore) Close() error {
	return c.backing.Close()
}

// ── Internal ────────────────────────────────────────────────────────────────

// insert performs the in-memory S3-FIFO insert/update.
func (c *s3fifoStore) insert(key, value string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	// Update existing entry in place; queue position unchanged.
	if it, ok := c.items[key]; ok {
		it.value = value
		return
	}

	// New key: ghost membership sends it straight to main.
	inM := c.ghostContains(key)
	var elem *list.Element
	if inM {
		elem = c.main.PushBack(key)
	} else {
		elem = c.small.PushBack(key)
	}
	c.items[key] = &s3fifoItem{value: value, elem: elem, inM: inM}

	for c.small.Len()+c.main.Len() > c.capacity {
		c.evictOne()
	}
}

// evictOne removes one entry following the S3-FIFO policy.
// Caller must hold c.mu.
func (c *s3fifoStore) evictOne() {
	if c.small.Len() > 0 {
		c.evictFromSmall()
		return
	}
	c.evictFromMain()
}

// evictFromSmall pops the oldest small-queue entry and either promotes it
// to main or evicts it fully. Caller must hold c.mu.
func (c *s3fifoStore) evictFromSmall() {
	front := c.small.Front()
	if front == nil {
		return
	}
	key, ok := front.Value.(string)
	if !ok {
		c.small.Remove(front) // corrupted element; discard
		return
	}
	c.small.Remove(front)

	it, ok := c.items[key]
	if !ok {
		return // stale element; skip
	}

	if it.freq > 0 {
		it.freq = 0
		it.inM = true
		it.elem = c.main.PushBack(key)
		if c.main.Len() > c.capacity-c.sTarget {
			c.evictFromMain()
		}
		return
	}

	delete(c.items, key)
	c.ghostAdd(key)
	go c.backing.Delete(key) // async: keep the hot path off bbolt
}

// evictFromMain pops the oldest main-queue entry and evicts it fully.
// Caller must hold c.mu.
func (c *s3fifoStore) evictFromMain() {
	front := c.main.Front()
	if front == nil {
		return
	}
	key, ok := front.Value.(string)
	if !ok {
		c.main.Remove(front) // corrupted element; discard
		return
	}
	c.main.Remove(front)
	delete(c.items, key)
	go c.backing.Delete(key) // async: keep the hot path off bbolt
}

// dropFromMemory removes key from its queue and the item map.
// A no-op when the key is not resident. Caller must hold c.mu.
func (c *s3fifoStore) dropFromMemory(key string) {
	it, ok := c.items[key]
	if !ok {
		return
	}
	if it.inM {
		c.main.Remove(it.elem)
	} else {
		c.small.Remove(it.elem)
	}
	delete(c.items, key)
}

// ghostContains reports ghost-set membership. Caller must hold c.mu.
func (c *s3fifoStore) ghostContains(key string) bool {
	_, ok := c.ghostSet[key]
	return ok
}

// ghostAdd inserts key into the bounded circular ghost buffer, evicting
// the oldest ghost if full. Caller must hold c.mu.
func (c *s3fifoStore) ghostAdd(key string) {
	if _, exists := c.ghostSet[key]; exists {
		return
	}

	if c.ghostCount == c.ghostCap {
		oldest := c.ghostBuf[c.ghostHead]
		delete(c.ghostSet, oldest)
		c.ghostHead = (c.ghostHead + 1) % c.ghostCap
		c.ghostCount--
	}

	writeIdx := (c.ghostHead + c.ghostCount) % c.ghostCap
	c.ghostBuf[writeIdx] = key
	c.ghostSet[key] = struct{}{}
	c.ghostCount++
}
