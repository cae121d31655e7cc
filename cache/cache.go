package cache

import (
	"sync"
)

// Cache is a small threadsafe map used for in-flight transcode job tracking.
type Cache[T any] struct {
	cache map[string]T
	mutex sync.RWMutex
}

func New[T any]() *Cache[T] {
	return &Cache[T]{
		cache: make(map[string]T),
	}
}

func (c *Cache[T]) Get(key string) T {
	c.mutex.RLock()
	defer c.mutex.RUnlock()
	if info, ok := c.cache[key]; ok {
		return info
	}
	var zero T
	return zero
}

func (c *Cache[T]) GetKeys() []string {
	c.mutex.RLock()
	defer c.mutex.RUnlock()
	keys := make([]string, 0, len(c.cache))
	for k := range c.cache {
		keys = append(keys, k)
	}
	return keys
}

func (c *Cache[T]) Store(key string, value T) {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	c.cache[key] = value
}

// StoreIfAbsent stores value under key only if no entry exists yet, and
// reports whether the store happened. The check and the write are one
// critical section, so two racing dispatches for the same video cannot both
// win admission.
func (c *Cache[T]) StoreIfAbsent(key string, value T) bool {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	if _, ok := c.cache[key]; ok {
		return false
	}
	c.cache[key] = value
	return true
}

func (c *Cache[T]) Remove(key string) {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	delete(c.cache, key)
}
