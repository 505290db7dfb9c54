// Package cache implements the inode/name metadata cache: a mapping from
// (parent inode, normalized name) to a cached child, plus a reverse index
// from inode to its cached items, generation counters for stale-handle
// detection, and expiration. ExpirationSweep(Into) is the sole record of
// which inodes need a FUSE_FORGET/FUSE_BATCH_FORGET round trip; its caller
// owns that list from the moment it's returned, so the cache itself never
// keeps a second copy of it.
package cache

import (
	"strings"
	"sync"
	"time"
)

// Attr is the subset of FUSE attributes the cache stores about a child.
type Attr struct {
	Mode  uint32
	Size  uint64
	Nlink uint32
}

// Item is one cached (parent, name) -> child mapping.
type Item struct {
	Parent     uint64
	Name       string // normalized (case-folded on case-insensitive volumes)
	Ino        uint64
	Attr       Attr
	Generation uint64

	refs      int32
	expiresAt time.Time
	forgotten bool // swept for forgetting; no longer serves Lookup
}

// Refs returns the item's current reference count, as taken by Reference
// and dropped by Release.
func (it *Item) Refs() int32 { return it.refs }

type key struct {
	parent uint64
	name   string
}

// Cache is the metadata cache for one mounted volume.
type Cache struct {
	mu              sync.RWMutex
	caseInsensitive bool

	byKey map[key]*Item
	byIno map[uint64]map[*Item]struct{}

	generation uint64
}

// Create constructs an empty Cache. caseInsensitive controls name
// normalization for Lookup/Insert, mirroring the volume's case-sensitivity
// setting.
func Create(caseInsensitive bool) *Cache {
	return &Cache{
		caseInsensitive: caseInsensitive,
		byKey:           make(map[key]*Item),
		byIno:           make(map[uint64]map[*Item]struct{}),
	}
}

// Delete tears down the cache. Any items still referenced are simply
// dropped; the caller (Instance.Fini) is responsible for having drained the
// IOQ first so nothing still holds a reference.
func (c *Cache) Delete() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.byKey = nil
	c.byIno = nil
}

func (c *Cache) normalize(name string) string {
	if c.caseInsensitive {
		return strings.ToLower(name)
	}
	return name
}

// Lookup finds a live (not yet forgotten) cached child of parent by name.
// It does not take a reference; call Reference explicitly if the caller
// needs to pin the item.
func (c *Cache) Lookup(parent uint64, name string) (*Item, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	it, ok := c.byKey[key{parent, c.normalize(name)}]
	if !ok || it.forgotten {
		return nil, false
	}
	return it, true
}

// Insert creates or replaces the cached mapping for (parent, name),
// advancing the generation counter so any stale handle referencing the
// previous item's inode can detect reuse. ttl is how long the entry is
// valid before ExpirationSweep will consider it for eviction.
func (c *Cache) Insert(parent uint64, name string, ino uint64, attr Attr, ttl time.Duration) *Item {
	c.mu.Lock()
	defer c.mu.Unlock()

	norm := c.normalize(name)
	k := key{parent, norm}

	if old, ok := c.byKey[k]; ok {
		c.unindexIno(old)
	}

	c.generation++
	it := &Item{
		Parent:     parent,
		Name:       norm,
		Ino:        ino,
		Attr:       attr,
		Generation: c.generation,
		expiresAt:  time.Now().Add(ttl),
	}
	c.byKey[k] = it
	c.indexIno(it)
	return it
}

func (c *Cache) indexIno(it *Item) {
	set, ok := c.byIno[it.Ino]
	if !ok {
		set = make(map[*Item]struct{})
		c.byIno[it.Ino] = set
	}
	set[it] = struct{}{}
}

func (c *Cache) unindexIno(it *Item) {
	set, ok := c.byIno[it.Ino]
	if !ok {
		return
	}
	delete(set, it)
	if len(set) == 0 {
		delete(c.byIno, it.Ino)
	}
}

// Reference pins it alive, protecting it from ExpirationSweep even past its
// TTL, for the duration of one live operation.
func (c *Cache) Reference(it *Item) {
	c.mu.Lock()
	it.refs++
	c.mu.Unlock()
}

// Release drops one reference taken by Reference.
func (c *Cache) Release(it *Item) {
	c.mu.Lock()
	if it.refs > 0 {
		it.refs--
	}
	c.mu.Unlock()
}

// ExpirationSweep walks items that have expired as of now and are not
// currently referenced, unindexing them and marking them forgotten. It
// returns the inodes newly swept, which is the only record the cache ever
// keeps of them: the caller (Instance.Expiration) owns that slice from here
// on and is responsible for actually draining it via FORGET/BATCH_FORGET.
func (c *Cache) ExpirationSweep(now time.Time) []uint64 {
	return c.ExpirationSweepInto(now, nil)
}

// ExpirationSweepInto behaves like ExpirationSweep but appends into buf
// instead of allocating a fresh slice, letting a caller that sweeps
// frequently (Instance.Expiration) reuse one buffer across calls.
func (c *Cache) ExpirationSweepInto(now time.Time, buf []uint64) []uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()

	forgotten := buf
	for k, it := range c.byKey {
		if it.forgotten || it.refs > 0 || now.Before(it.expiresAt) {
			continue
		}
		it.forgotten = true
		delete(c.byKey, k)
		c.unindexIno(it)
		forgotten = append(forgotten, it.Ino)
	}
	return forgotten
}

// DeleteItems releases bookkeeping for inodes a FORGET/BATCH_FORGET context
// has fully drained (its Fini hook), matching FuseCacheDeleteItems. The
// items themselves were already unindexed at ExpirationSweep time, so this
// call has nothing left to remove; it exists as the explicit completion
// point the original driver's context Fini hook calls into, and as a seam
// for a future accounting hook (e.g. metrics on forgets drained).
func (c *Cache) DeleteItems(inodes []uint64) {
	_ = inodes
}
