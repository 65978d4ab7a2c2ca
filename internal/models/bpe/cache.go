package bpe

import (
	"github.com/hashicorp/golang-lru/v2/simplelru"
)

// DefaultCacheCapacity is the number of merged words kept by default.
const DefaultCacheCapacity = 10000

// maxCachedWordLen bounds the byte length of words worth caching.
const maxCachedWordLen = 256

// cache keeps merged words keyed by their input string.
//
// cache is not synchronized. peek never changes its state and may run
// concurrently with other peeks; add, purge and resize need exclusive access.
type cache struct {
	lru *simplelru.LRU[string, word]
}

// newCache returns nil when capacity is zero, which disables caching.
func newCache(capacity int) *cache {
	if capacity <= 0 {
		return nil
	}
	lru, err := simplelru.NewLRU[string, word](capacity, nil)
	if err != nil {
		// NewLRU only fails for non-positive sizes.
		return nil
	}
	return &cache{lru: lru}
}

func (c *cache) peek(key string) (word, bool) {
	if c == nil {
		return word{}, false
	}
	return c.lru.Peek(key)
}

func (c *cache) add(key string, w word) {
	if c == nil || len(key) > maxCachedWordLen {
		return
	}
	c.lru.Add(key, w)
}

func (c *cache) purge() {
	if c == nil {
		return
	}
	c.lru.Purge()
}

func (c *cache) len() int {
	if c == nil {
		return 0
	}
	return c.lru.Len()
}
