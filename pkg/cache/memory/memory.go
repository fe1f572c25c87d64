/*
 * Copyright 2018 The Trickster Authors
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */


// Package memory is the memory tier of the cache: a bounded map of objects
// evicted in least-recently-used order. A Cache is not safe for concurrent use;
// callers serialize access to it.
package memory

import (
	"time"

	"github.com/trickstercache/tiercache/pkg/cache"
	"github.com/trickstercache/tiercache/pkg/cache/index"
	"github.com/trickstercache/tiercache/pkg/cache/memory/options"
	"github.com/trickstercache/tiercache/pkg/cache/status"
	"github.com/trickstercache/tiercache/pkg/observability/logging"
	"github.com/trickstercache/tiercache/pkg/observability/logging/logger"
)

// Cache implements the cache.Store interface
var _ cache.Store = &Cache{}

type element struct {
	obj        *index.Object
	prev, next *element
}

// Cache defines a Memory Cache that conforms to the cache.Store interface
type Cache struct {
	Name   string
	Config *options.Options

	items map[string]*element
	// head.next is the most recently used element, tail.prev the least
	head, tail *element
	size       int64
	evictions  uint64
}

// New returns a new memory cache
func New(name string, cfg *options.Options) *Cache {
	if cfg == nil {
		cfg = options.New()
	}
	c := &Cache{
		Name:   name,
		Config: cfg,
	}
	c.reset()
	return c
}

func (c *Cache) reset() {
	c.items = make(map[string]*element)
	c.head = &element{}
	c.tail = &element{}
	c.head.next = c.tail
	c.tail.prev = c.head
	c.size = 0
}

// Connect initializes the Cache
func (c *Cache) Connect() error {
	return nil
}

// Close empties the Cache
func (c *Cache) Close() error {
	c.reset()
	return nil
}

// Len returns the number of objects in the Cache
func (c *Cache) Len() int {
	return len(c.items)
}

// Evictions returns the number of objects removed to stay within MaxEntries
func (c *Cache) Evictions() uint64 {
	return c.evictions
}

// Store places an object in the cache, replacing any existing object with the
// same key, then evicts least-recently-used objects until the Cache is within bounds
func (c *Cache) Store(obj *index.Object) error {
	if e, ok := c.items[obj.Key]; ok {
		c.size += obj.Size - e.obj.Size
		e.obj = obj
		c.moveToFront(e)
	} else {
		e = &element{obj: obj}
		c.items[obj.Key] = e
		c.size += obj.Size
		c.pushFront(e)
	}
	var evicted int
	for len(c.items) > c.Config.MaxEntries && c.tail.prev != c.head {
		c.removeElement(c.tail.prev)
		c.evictions++
		evicted++
	}
	if evicted > 0 {
		logger.Debug("memory tier evicted least-recently-used objects",
			logging.Pairs{"cacheName": c.Name, "evicted": evicted, "maxEntries": c.Config.MaxEntries})
	}
	return nil
}

// Retrieve looks for a live object in the cache and returns it (or an error if not found).
// An expired object is removed and reported as a miss.
func (c *Cache) Retrieve(cacheKey string, now time.Time) (*index.Object, status.LookupStatus, error) {
	e, ok := c.items[cacheKey]
	if !ok {
		return nil, status.LookupStatusKeyMiss, cache.ErrKNF
	}
	if e.obj.Expired(now) {
		c.removeElement(e)
		return nil, status.LookupStatusExpired, cache.ErrKNF
	}
	e.obj.Touch(now)
	c.moveToFront(e)
	return e.obj, status.LookupStatusHit, nil
}

// Remove deletes the objects for the provided keys, if present
func (c *Cache) Remove(cacheKeys ...string) error {
	for _, k := range cacheKeys {
		if e, ok := c.items[k]; ok {
			c.removeElement(e)
		}
	}
	return nil
}

// RemoveWhere deletes every object for which f returns true and returns the count removed
func (c *Cache) RemoveWhere(f func(*index.Object) bool) int {
	var n int
	for e := c.head.next; e != c.tail; {
		next := e.next
		if f(e.obj) {
			c.removeElement(e)
			n++
		}
		e = next
	}
	return n
}

// RemoveCategory deletes every object stored under the category
func (c *Cache) RemoveCategory(category string) (int, error) {
	return c.RemoveWhere(func(o *index.Object) bool {
		return o.Category == category
	}), nil
}

// RemoveExpired deletes every object that is no longer live at now
func (c *Cache) RemoveExpired(now time.Time) (int, error) {
	return c.RemoveWhere(func(o *index.Object) bool {
		return o.Expired(now)
	}), nil
}

// Usage returns the count and total value size of objects in the Cache
func (c *Cache) Usage() (int64, int64, error) {
	return int64(len(c.items)), c.size, nil
}

func (c *Cache) pushFront(e *element) {
	e.prev = c.head
	e.next = c.head.next
	c.head.next.prev = e
	c.head.next = e
}

func (c *Cache) unlink(e *element) {
	e.prev.next = e.next
	e.next.prev = e.prev
	e.prev = nil
	e.next = nil
}

func (c *Cache) moveToFront(e *element) {
	if c.head.next == e {
		return
	}
	c.unlink(e)
	c.pushFront(e)
}

func (c *Cache) removeElement(e *element) {
	c.unlink(e)
	delete(c.items, e.obj.Key)
	c.size -= e.obj.Size
}
