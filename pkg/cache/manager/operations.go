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


package manager

import (
	"errors"
	"time"

	"github.com/trickstercache/tiercache/pkg/cache"
	"github.com/trickstercache/tiercache/pkg/cache/index"
	"github.com/trickstercache/tiercache/pkg/cache/key"
	"github.com/trickstercache/tiercache/pkg/cache/options"
	"github.com/trickstercache/tiercache/pkg/cache/perflog"
	"github.com/trickstercache/tiercache/pkg/cache/status"
	"github.com/trickstercache/tiercache/pkg/observability/logging"
	"github.com/trickstercache/tiercache/pkg/observability/logging/logger"
)

// Get returns the live value stored for the namespace, key and extra arguments
func (m *Manager) Get(namespace, cacheKey string, extraArgs ...string) ([]byte, bool) {
	b, s, _ := m.Retrieve(namespace, cacheKey, extraArgs...)
	return b, s == status.LookupStatusHit
}

// Retrieve returns the live value stored for the namespace, key and extra
// arguments, along with the lookup status and the level of the tier that held
// it (1 for memory, 2 for structured, 3 for blob, or 0 on a miss).
// The returned slice must not be modified.
func (m *Manager) Retrieve(namespace, cacheKey string, extraArgs ...string) ([]byte, status.LookupStatus, int) {
	m.mtx.Lock()
	defer m.mtx.Unlock()
	if m.closed {
		return nil, status.LookupStatusError, 0
	}
	return m.get(namespace, cacheKey, extraArgs)
}

func (m *Manager) get(namespace, cacheKey string, extraArgs []string) ([]byte, status.LookupStatus, int) {
	id := key.Identifier(namespace, cacheKey, extraArgs...)
	now := m.now()
	ls := status.LookupStatusKeyMiss

	for i, s := range m.stores {
		t := cache.Tier(i)
		if t == cache.TierMemory && !m.memoryEnabled() {
			continue
		}
		obj, s2, err := s.Retrieve(id, now)
		if err != nil {
			var ce *cache.CorruptEntryError
			switch {
			case errors.As(err, &ce):
				logger.Debug("corrupt cache entry treated as miss",
					logging.Pairs{"tier": t.String(), "key": id, "reason": ce.Reason})
				m.metrics.ObserveCacheEvent(t.String(), "corrupt", ce.Reason)
			case errors.Is(err, cache.ErrKNF):
				if s2 == status.LookupStatusExpired {
					ls = status.LookupStatusExpired
					m.metrics.ObserveCacheEvent(t.String(), "expired", "ttl")
				}
			default:
				logger.Warn("cache tier read failed, treating as miss",
					logging.Pairs{"tier": t.String(), "key": id, "detail": err.Error()})
				m.metrics.ObserveCacheEvent(t.String(), "error", "retrieve")
			}
			m.metrics.ObserveCacheMiss(t.String())
			continue
		}

		m.hits++
		m.metrics.ObserveCacheOperation(t.String(), "get", "hit", float64(obj.Size))
		m.logPerformance(perflog.Hits[i], namespace, cacheKey, 0)
		m.promote(obj, t)
		return obj.Value, status.LookupStatusHit, i + 1
	}

	m.misses++
	m.logPerformance(perflog.Miss, namespace, cacheKey, 0)
	logger.Debug("cache miss", logging.Pairs{"namespace": namespace, "key": id, "status": ls.String()})
	return nil, ls, 0
}

// promote copies an object found in tier t into every faster tier, keeping
// its original expiration
func (m *Manager) promote(obj *index.Object, t cache.Tier) {
	for i := int(t) - 1; i >= 0; i-- {
		pt := cache.Tier(i)
		if pt == cache.TierMemory && !m.memoryEnabled() {
			continue
		}
		if err := m.store(pt, obj.Clone()); err != nil {
			logger.Warn("cache promotion failed",
				logging.Pairs{"tier": pt.String(), "key": obj.Key, "detail": err.Error()})
			continue
		}
		m.metrics.ObserveCacheEvent(pt.String(), "promotion", t.String())
		logger.Debug("cache object promoted",
			logging.Pairs{"from": t.String(), "to": pt.String(), "key": obj.Key})
	}
}

// store writes obj to tier t and accounts for any memory tier evictions
func (m *Manager) store(t cache.Tier, obj *index.Object) error {
	if t != cache.TierMemory {
		return m.stores[t].Store(obj)
	}
	before := m.tiers.Memory.Evictions()
	if err := m.tiers.Memory.Store(obj); err != nil {
		return err
	}
	m.metrics.ObserveCacheEvents(t.String(), "eviction", "capacity",
		float64(m.tiers.Memory.Evictions()-before))
	return nil
}

// route returns the tier that receives new values of the provided size
func (m *Manager) route(size int64) cache.Tier {
	switch {
	case size < m.config.MemoryMaxValueBytes && m.memoryEnabled():
		return cache.TierMemory
	case size < m.config.StructuredMaxValueBytes:
		return cache.TierStructured
	}
	return cache.TierBlob
}

// Set removes any older copy of the value from every tier, then stores it in
// the one tier matching its size. A ttl <= 0 uses the namespace's configured
// TTL, and a ttl above options.MaxTTL is shortened to it. The value is still
// stored when an older copy cannot be removed, but the removal failure is
// returned as a StorageIOError.
func (m *Manager) Set(namespace, cacheKey string, value []byte, ttl time.Duration, extraArgs ...string) error {
	m.mtx.Lock()
	defer m.mtx.Unlock()
	if m.closed {
		return ErrClosed
	}
	return m.set(namespace, cacheKey, value, ttl, extraArgs)
}

func (m *Manager) set(namespace, cacheKey string, value []byte, ttl time.Duration, extraArgs []string) error {
	if ttl <= 0 {
		ttl = m.config.TTL(namespace)
	} else if ttl > options.MaxTTL {
		ttl = options.MaxTTL
	}
	now := m.now()
	id := key.Identifier(namespace, cacheKey, extraArgs...)
	v := make([]byte, len(value))
	copy(v, value)
	obj := index.New(id, namespace, v, now, now.Add(ttl))

	t := m.route(obj.Size)
	var errs []error
	for i, s := range m.stores {
		ot := cache.Tier(i)
		if ot == t {
			continue
		}
		// an older copy left in another tier can still be served, so the
		// write is reported as failed even when the routed tier accepts it
		if err := s.Remove(id); err != nil {
			logger.Error("cache write could not remove an older copy",
				logging.Pairs{"tier": ot.String(), "namespace": namespace, "key": id, "detail": err.Error()})
			m.metrics.ObserveCacheEvent(ot.String(), "error", "remove")
			errs = append(errs, asStorageIOError(ot, "remove", id, err))
		}
	}
	if err := m.store(t, obj); err != nil {
		logger.Error("cache write failed",
			logging.Pairs{"tier": t.String(), "namespace": namespace, "key": id, "detail": err.Error()})
		m.metrics.ObserveCacheEvent(t.String(), "error", "store")
		return errors.Join(append(errs, err)...)
	}
	m.metrics.ObserveCacheOperation(t.String(), "set", "none", float64(obj.Size))
	m.logPerformance(perflog.Sets[t], namespace, cacheKey, obj.Size)
	logger.Debug("cache store", logging.Pairs{"tier": t.String(), "namespace": namespace,
		"key": id, "size": obj.Size, "ttl": ttl})
	return errors.Join(errs...)
}

// asStorageIOError returns err as a StorageIOError, wrapping it when the tier
// did not already
func asStorageIOError(t cache.Tier, op, id string, err error) error {
	var se *cache.StorageIOError
	if errors.As(err, &se) {
		return err
	}
	return cache.NewStorageIOError(t.String(), op, id, err)
}

// Invalidate removes the value for the namespace, key and extra arguments from
// every tier. An empty key invalidates the whole namespace.
func (m *Manager) Invalidate(namespace, cacheKey string, extraArgs ...string) error {
	m.mtx.Lock()
	defer m.mtx.Unlock()
	if m.closed {
		return ErrClosed
	}
	if cacheKey == "" && len(extraArgs) == 0 {
		return m.invalidateNamespace(namespace)
	}
	id := key.Identifier(namespace, cacheKey, extraArgs...)
	var errs []error
	for i, s := range m.stores {
		if err := s.Remove(id); err != nil {
			errs = append(errs, err)
			continue
		}
		m.metrics.ObserveCacheDel(cache.Tier(i).String(), 1)
	}
	logger.Debug("cache invalidate", logging.Pairs{"namespace": namespace, "key": id})
	return errors.Join(errs...)
}

// InvalidateNamespace removes every object of the namespace from every tier
func (m *Manager) InvalidateNamespace(namespace string) error {
	m.mtx.Lock()
	defer m.mtx.Unlock()
	if m.closed {
		return ErrClosed
	}
	return m.invalidateNamespace(namespace)
}

func (m *Manager) invalidateNamespace(namespace string) error {
	var errs []error
	var total int
	for i, s := range m.stores {
		n, err := s.RemoveCategory(namespace)
		if err != nil {
			errs = append(errs, err)
		}
		total += n
		m.metrics.ObserveCacheEvents(cache.Tier(i).String(), "invalidate", "namespace", float64(n))
	}
	logger.Debug("cache namespace invalidated",
		logging.Pairs{"namespace": namespace, "removed": total})
	return errors.Join(errs...)
}

// CleanupExpired removes every expired object from every tier
func (m *Manager) CleanupExpired() error {
	m.mtx.Lock()
	defer m.mtx.Unlock()
	if m.closed {
		return ErrClosed
	}
	return m.cleanup(m.now())
}

// CleanupExpiredAt removes every object from every tier that is expired at now
func (m *Manager) CleanupExpiredAt(now time.Time) error {
	m.mtx.Lock()
	defer m.mtx.Unlock()
	if m.closed {
		return ErrClosed
	}
	return m.cleanup(now)
}

func (m *Manager) cleanup(now time.Time) error {
	var errs []error
	var total int
	for i, s := range m.stores {
		n, err := s.RemoveExpired(now)
		if err != nil {
			errs = append(errs, err)
		}
		total += n
		m.metrics.ObserveCacheEvents(cache.Tier(i).String(), "eviction", "ttl", float64(n))
	}
	if total > 0 {
		logger.Debug("cache cleanup removed expired objects", logging.Pairs{"removed": total})
	}
	return errors.Join(errs...)
}
