// Package cache implements the byte-budgeted chunk cache shared by the
// range server and the prefetch workers. hashicorp/golang-lru only tracks
// entry count, not byte weight, so — following the same gap the wider
// example pack solves by hand — this is a weighted LRU built directly on
// container/list, generalized from entry-weight to the cache's exact byte
// budget.
package cache

import (
	"container/list"
	"sync"
)

// Key identifies one chunk within one stream.
type Key struct {
	StreamID   string
	ChunkIndex uint32
}

type entry struct {
	key   Key
	value []byte
}

// ChunkCache is a fixed-byte-budget LRU keyed by (stream_id, chunk_index).
// Safe for concurrent use: Get, Insert, Contains, DeletePrefix, and Clear
// are all internally linearized by a single mutex, matching the
// concurrency discipline the Range Server and Prefetch Engine both depend
// on.
type ChunkCache struct {
	mu sync.Mutex

	maxBytes  int64
	usedBytes int64

	evictList *list.List
	items     map[Key]*list.Element

	// streamIndex supports DeletePrefix in O(chunks-for-that-stream)
	// instead of a full scan over every entry in the cache.
	streamIndex map[string]map[uint32]struct{}

	metrics Metrics
}

// New builds a ChunkCache with the given byte budget. metrics may be nil.
func New(maxBytes int64, metrics Metrics) *ChunkCache {
	return &ChunkCache{
		maxBytes:    maxBytes,
		evictList:   list.New(),
		items:       make(map[Key]*list.Element),
		streamIndex: make(map[string]map[uint32]struct{}),
		metrics:     metrics,
	}
}

// Get returns the stored bytes for key and promotes it to most-recently-used.
func (c *ChunkCache) Get(key Key) ([]byte, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	el, ok := c.items[key]
	if !ok {
		c.observeGet(false)
		return nil, false
	}
	c.evictList.MoveToFront(el)
	c.observeGet(true)
	return el.Value.(*entry).value, true
}

// Contains reports whether key is present without affecting recency.
func (c *ChunkCache) Contains(key Key) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.items[key]
	return ok
}

// Insert stores value under key, reclaiming the prior size first if key
// already exists, then evicting least-recently-used entries until the
// cache fits within its byte budget. An entry larger than the entire
// budget is rejected silently.
func (c *ChunkCache) Insert(key Key, value []byte) {
	c.mu.Lock()
	defer c.mu.Unlock()

	size := int64(len(value))
	if size > c.maxBytes {
		return
	}

	if el, ok := c.items[key]; ok {
		existing := el.Value.(*entry)
		c.usedBytes -= int64(len(existing.value))
		existing.value = value
		c.usedBytes += size
		c.evictList.MoveToFront(el)
	} else {
		el := c.evictList.PushFront(&entry{key: key, value: value})
		c.items[key] = el
		c.usedBytes += size
		c.indexAdd(key)
	}

	c.observeInsert(int(size))
	c.evictUntilWithinBudget()
	c.observeUsedBytes()
}

// DeletePrefix removes every entry whose key's StreamID equals streamID.
func (c *ChunkCache) DeletePrefix(streamID string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	chunks, ok := c.streamIndex[streamID]
	if !ok {
		return
	}
	for idx := range chunks {
		key := Key{StreamID: streamID, ChunkIndex: idx}
		if el, ok := c.items[key]; ok {
			c.removeElement(el)
		}
	}
	delete(c.streamIndex, streamID)
	c.observeUsedBytes()
}

// Clear empties the cache.
func (c *ChunkCache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.evictList.Init()
	c.items = make(map[Key]*list.Element)
	c.streamIndex = make(map[string]map[uint32]struct{})
	c.usedBytes = 0
	c.observeUsedBytes()
}

// UsedBytes returns the cache's current total size.
func (c *ChunkCache) UsedBytes() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.usedBytes
}

// Len returns the number of entries currently cached.
func (c *ChunkCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.evictList.Len()
}

func (c *ChunkCache) indexAdd(key Key) {
	set, ok := c.streamIndex[key.StreamID]
	if !ok {
		set = make(map[uint32]struct{})
		c.streamIndex[key.StreamID] = set
	}
	set[key.ChunkIndex] = struct{}{}
}

func (c *ChunkCache) indexRemove(key Key) {
	set, ok := c.streamIndex[key.StreamID]
	if !ok {
		return
	}
	delete(set, key.ChunkIndex)
	if len(set) == 0 {
		delete(c.streamIndex, key.StreamID)
	}
}

func (c *ChunkCache) evictUntilWithinBudget() {
	for c.usedBytes > c.maxBytes {
		oldest := c.evictList.Back()
		if oldest == nil {
			return
		}
		c.removeElement(oldest)
		c.observeEviction()
	}
}

func (c *ChunkCache) removeElement(el *list.Element) {
	c.evictList.Remove(el)
	e := el.Value.(*entry)
	delete(c.items, e.key)
	c.indexRemove(e.key)
	c.usedBytes -= int64(len(e.value))
}

func (c *ChunkCache) observeGet(hit bool) {
	if c.metrics != nil {
		c.metrics.ObserveGet(hit)
	}
}

func (c *ChunkCache) observeInsert(bytes int) {
	if c.metrics != nil {
		c.metrics.ObserveInsert(bytes)
	}
}

func (c *ChunkCache) observeEviction() {
	if c.metrics != nil {
		c.metrics.ObserveEviction()
	}
}

func (c *ChunkCache) observeUsedBytes() {
	if c.metrics != nil {
		c.metrics.SetUsedBytes(c.usedBytes)
	}
}
