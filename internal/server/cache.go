package server

import (
	"container/list"
	"strings"
	"sync"

	"github.com/example/visited-atlas/internal/types"
)

// renderKey identifies a rendered overlay by user and visited-set content,
// so a stale image is never served after a mutation.
type renderKey struct {
	User      types.UserID
	Signature string
}

func signature(countries []types.CountryName) string {
	parts := make([]string, len(countries))
	for i, country := range countries {
		parts[i] = string(country)
	}
	return strings.Join(parts, "\x00")
}

// renderCache is a small LRU of encoded overlay PNGs.
type renderCache struct {
	mu       sync.Mutex
	capacity int
	ll       *list.List
	items    map[renderKey]*list.Element
}

type renderEntry struct {
	key     renderKey
	payload []byte
}

func newRenderCache(capacity int) *renderCache {
	if capacity < 1 {
		capacity = 1
	}
	return &renderCache{
		capacity: capacity,
		ll:       list.New(),
		items:    make(map[renderKey]*list.Element),
	}
}

func (c *renderCache) Get(key renderKey) ([]byte, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	element, ok := c.items[key]
	if !ok {
		return nil, false
	}
	c.ll.MoveToFront(element)
	return element.Value.(renderEntry).payload, true
}

func (c *renderCache) Put(key renderKey, payload []byte) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if element, ok := c.items[key]; ok {
		element.Value = renderEntry{key: key, payload: payload}
		c.ll.MoveToFront(element)
		return
	}

	element := c.ll.PushFront(renderEntry{key: key, payload: payload})
	c.items[key] = element

	if c.ll.Len() > c.capacity {
		last := c.ll.Back()
		if last != nil {
			c.ll.Remove(last)
			delete(c.items, last.Value.(renderEntry).key)
		}
	}
}
