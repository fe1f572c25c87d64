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
	"github.com/trickstercache/tiercache/pkg/cache"
	"github.com/trickstercache/tiercache/pkg/observability/logging"
	"github.com/trickstercache/tiercache/pkg/observability/logging/logger"
)

// Statistics describes the cumulative activity of a Manager and the current
// contents of its tiers
type Statistics struct {
	Hits            uint64  `json:"hits"`
	Misses          uint64  `json:"misses"`
	Evictions       uint64  `json:"evictions"`
	HitRatio        float64 `json:"hit_ratio"`
	MemoryEntries   int64   `json:"memory_entries"`
	MemorySize      int64   `json:"memory_size"`
	DatabaseEntries int64   `json:"database_entries"`
	DatabaseSize    int64   `json:"database_size"`
	FileEntries     int64   `json:"file_entries"`
	FileSize        int64   `json:"file_size"`
}

// Stats returns the hit, miss and eviction counters along with freshly
// computed per-tier usage. A tier whose usage cannot be read reports zero.
func (m *Manager) Stats() Statistics {
	m.mtx.Lock()
	defer m.mtx.Unlock()
	st := Statistics{
		Hits:      m.hits,
		Misses:    m.misses,
		Evictions: m.tiers.Memory.Evictions(),
	}
	if total := m.hits + m.misses; total > 0 {
		st.HitRatio = float64(m.hits) / float64(total)
	}
	if m.closed {
		return st
	}
	counts := []*int64{&st.MemoryEntries, &st.DatabaseEntries, &st.FileEntries}
	sizes := []*int64{&st.MemorySize, &st.DatabaseSize, &st.FileSize}
	for i, s := range m.stores {
		t := cache.Tier(i)
		n, size, err := s.Usage()
		if err != nil {
			logger.Warn("cache tier usage unavailable",
				logging.Pairs{"tier": t.String(), "detail": err.Error()})
			continue
		}
		*counts[i], *sizes[i] = n, size
		m.metrics.ObserveCacheSizeChange(t.String(), size, n)
	}
	return st
}
