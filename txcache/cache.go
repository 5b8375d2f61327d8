// Package txcache implements the bounded, order-preserving,
// slot-addressable transaction cache the relay codec uses on both the
// send and receive side of a peer pairing.
package txcache

import (
	"sync"

	"github.com/blkrelay/relaynode/hashutil"
)

// Entry is a transaction held by a Cache, returned by RemoveByIndex.
type Entry struct {
	Data     []byte
	Hash     hashutil.Hash
	Oversize bool
}

type slot struct {
	data     []byte
	hash     hashutil.Hash
	oversize bool
	removed  bool // tombstoned by RemoveByContent inside a LockHint batch
}

// Cache is a fixed-capacity, insertion-ordered container of
// transactions. Slot 0 is always the oldest live entry; removing an
// entry (explicitly, or via capacity eviction) shifts every later
// entry down by one slot, the same array-shift technique the node's
// evidence pool uses to keep its own ordered list dense.
//
// RemoveByContent behaves differently inside a LockHint/EndBatch pair:
// rather than shifting immediately, it tombstones the entry and
// returns the slot it held at the *start* of the batch, deferring the
// actual renumbering to EndBatch. This is what lets a single
// compressor pass over a block return each elided transaction's
// original cache slot (see the compressor's worked example) even
// though earlier removals in the same pass would otherwise have
// shifted later entries downward. RemoveByIndex never defers: its
// contract is consumed by the tweak-sort pass on the decompression
// side, which already accounts for a cache that renumbers eagerly.
type Cache struct {
	mu        sync.Mutex
	capacity  int
	hasher    hashutil.Hasher
	entries   []slot
	byHash    map[hashutil.Hash]int
	flagCnt   int
	liveCount int
	batching  bool
}

// New returns a Cache bounded at capacity entries. A nil hasher uses
// hashutil.Default.
func New(capacity int, hasher hashutil.Hasher) *Cache {
	if hasher == nil {
		hasher = hashutil.Default
	}
	return &Cache{
		capacity: capacity,
		hasher:   hasher,
		byHash:   make(map[hashutil.Hash]int),
	}
}

// LockHint signals that a batch of RemoveByContent calls is about to
// follow, so their slot-index results should stay frozen at the
// batch's starting positions instead of renumbering after every call.
// Pair with EndBatch.
func (c *Cache) LockHint() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.batching = true
}

// EndBatch closes a batch opened by LockHint, compacting any entries
// RemoveByContent tombstoned during it and renumbering survivors. A
// no-op if no batch is open.
func (c *Cache) EndBatch() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.compact()
}

// compact drops tombstoned entries and rebuilds byHash against the
// resulting dense positions. Callers must hold c.mu.
func (c *Cache) compact() {
	if !c.batching {
		return
	}
	c.batching = false

	dense := c.entries[:0]
	for _, e := range c.entries {
		if e.removed {
			continue
		}
		dense = append(dense, e)
	}
	c.entries = dense

	c.byHash = make(map[hashutil.Hash]int, len(c.entries))
	for i, e := range c.entries {
		c.byHash[e.hash] = i
	}
}

// Add appends tx at the next slot, evicting the oldest entry first if
// the cache is already at capacity.
func (c *Cache) Add(tx []byte, oversize bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.compact() // Add is never itself batched; flush any open batch first.

	if c.capacity > 0 && c.liveCount >= c.capacity {
		c.removeAtSlot(0)
	}

	h := c.hasher.Sum(tx)
	c.byHash[h] = len(c.entries)
	c.entries = append(c.entries, slot{data: tx, hash: h, oversize: oversize})
	c.liveCount++
	if oversize {
		c.flagCnt++
	}
}

// Contains reports exact-content membership.
func (c *Cache) Contains(tx []byte) bool {
	return c.ContainsByHash(c.hasher.Sum(tx))
}

// ContainsByHash reports membership by double-SHA256 hash.
func (c *Cache) ContainsByHash(h hashutil.Hash) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	_, ok := c.byHash[h]
	return ok
}

// RemoveByContent removes tx if present and returns the slot it held.
// Returns -1, false if tx was not found. Inside a LockHint batch, the
// returned slot is the position tx held when the batch began; the
// entry is tombstoned and the actual array compaction happens at
// EndBatch.
func (c *Cache) RemoveByContent(tx []byte) (int, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	h := c.hasher.Sum(tx)
	idx, ok := c.byHash[h]
	if !ok {
		return -1, false
	}

	if c.batching {
		c.tombstone(idx)
		return idx, true
	}

	c.removeAtSlot(idx)
	return idx, true
}

// RemoveByIndex removes and returns the entry held at slot i, if any.
// Always shifts immediately, regardless of any open LockHint batch:
// its callers (tweak-sort's output) are already computed against an
// eagerly-renumbering cache.
func (c *Cache) RemoveByIndex(i int) (Entry, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if i < 0 || i >= len(c.entries) || c.entries[i].removed {
		return Entry{}, false
	}

	e := c.entries[i]
	c.removeAtSlot(i)
	return Entry{Data: e.data, Hash: e.hash, Oversize: e.oversize}, true
}

// FlagCount returns the number of oversize entries currently held.
func (c *Cache) FlagCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.flagCnt
}

// ForAll visits every held transaction in insertion order.
func (c *Cache) ForAll(cb func(tx []byte)) {
	c.mu.Lock()
	defer c.mu.Unlock()

	for _, e := range c.entries {
		if !e.removed {
			cb(e.data)
		}
	}
}

// Clear drops all held entries.
func (c *Cache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries = nil
	c.byHash = make(map[hashutil.Hash]int)
	c.flagCnt = 0
	c.liveCount = 0
	c.batching = false
}

// Len returns the number of entries currently held.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.liveCount
}

// tombstone marks the entry at i removed without shifting the array,
// leaving its former neighbors' indices untouched until compact.
// Callers must hold c.mu.
func (c *Cache) tombstone(i int) {
	e := &c.entries[i]
	e.removed = true
	if e.oversize {
		c.flagCnt--
	}
	delete(c.byHash, e.hash)
	c.liveCount--
}

// removeAtSlot removes the entry at i and renumbers every later slot
// down by one. Callers must hold c.mu.
func (c *Cache) removeAtSlot(i int) {
	removed := c.entries[i]
	if removed.oversize {
		c.flagCnt--
	}
	delete(c.byHash, removed.hash)

	copy(c.entries[i:], c.entries[i+1:])
	c.entries = c.entries[:len(c.entries)-1]
	c.liveCount--

	for j := i; j < len(c.entries); j++ {
		c.byHash[c.entries[j].hash] = j
	}
}
