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
	"bytes"
	"errors"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/trickstercache/tiercache/pkg/cache"
	"github.com/trickstercache/tiercache/pkg/cache/codec"
	"github.com/trickstercache/tiercache/pkg/cache/key"
	"github.com/trickstercache/tiercache/pkg/cache/options"
	"github.com/trickstercache/tiercache/pkg/cache/status"
	"github.com/trickstercache/tiercache/pkg/observability/logging"
	"github.com/trickstercache/tiercache/pkg/observability/logging/level"
	"github.com/trickstercache/tiercache/pkg/observability/logging/logger"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
)

func TestMain(m *testing.M) {
	logger.SetLogger(logging.ConsoleLogger(level.Error))
	os.Exit(m.Run())
}

type testClock struct {
	nanos atomic.Int64
}

func newTestClock() *testClock {
	c := &testClock{}
	c.nanos.Store(time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC).UnixNano())
	return c
}

func (c *testClock) Now() time.Time {
	return time.Unix(0, c.nanos.Load()).UTC()
}

func (c *testClock) Advance(d time.Duration) {
	c.nanos.Add(int64(d))
}

type queryResult struct {
	Rows int `json:"rows"`
}

func newTestManager(t *testing.T, f func(*options.Options), opts ...Option) (*Manager, *testClock) {
	t.Helper()
	o := options.New()
	o.CacheDir = t.TempDir()
	o.AutoCleanup = false
	if f != nil {
		f(o)
	}
	require.NoError(t, o.Initialize())
	c := newTestClock()
	m, err := New(o, append([]Option{WithClock(c.Now)}, opts...)...)
	require.NoError(t, err)
	t.Cleanup(func() { m.Close() })
	return m, c
}

func value(n int) []byte {
	return bytes.Repeat([]byte("v"), n)
}

func TestSetThenGetEachTier(t *testing.T) {
	for _, p := range []string{"bbolt", "badger"} {
		t.Run(p, func(t *testing.T) {
			m, _ := newTestManager(t, func(o *options.Options) { o.StructuredProvider = p })
			tests := []struct {
				key   string
				size  int
				level int
			}{
				{"small", 10, 1},
				{"memory-bound", 1023, 1},
				{"structured-bound", 1024, 2},
				{"medium", 4096, 2},
				{"blob-bound", 1048576, 3},
			}
			for _, test := range tests {
				require.NoError(t, m.Set("database", test.key, value(test.size), 0))
			}
			for _, test := range tests {
				b, s, lvl := m.Retrieve("database", test.key)
				require.Equal(t, status.LookupStatusHit, s, test.key)
				require.Equal(t, test.level, lvl, test.key)
				require.Equal(t, value(test.size), b, test.key)
			}
		})
	}
}

func TestSetCopiesValue(t *testing.T) {
	m, _ := newTestManager(t, nil)
	v := []byte("original")
	require.NoError(t, m.Set("static", "k", v, time.Minute))
	v[0] = 'X'
	b, ok := m.Get("static", "k")
	require.True(t, ok)
	require.Equal(t, "original", string(b))
}

func TestExpiryCountsOneMiss(t *testing.T) {
	m, c := newTestManager(t, nil)
	ns := NewNamespace[map[string]int](m, "database", codec.JSON[map[string]int]{})
	require.NoError(t, ns.Set("q1", map[string]int{"rows": 42}, 5*time.Second))

	v, ok := ns.Get("q1")
	require.True(t, ok)
	require.Equal(t, map[string]int{"rows": 42}, v)

	before := m.Stats().Misses
	c.Advance(6 * time.Second)
	_, ok = ns.Get("q1")
	require.False(t, ok)
	require.Equal(t, before+1, m.Stats().Misses)
}

func TestExpiredAtExactDeadline(t *testing.T) {
	m, c := newTestManager(t, nil)
	require.NoError(t, m.Set("database", "q1", value(2000), 5*time.Second))
	c.Advance(5 * time.Second)
	_, s, lvl := m.Retrieve("database", "q1")
	require.Equal(t, status.LookupStatusExpired, s)
	require.Equal(t, 0, lvl)
}

func TestNamespaceTTLDefaults(t *testing.T) {
	m, c := newTestManager(t, nil)
	require.NoError(t, m.Set("database", "q1", []byte("x"), 0))
	require.NoError(t, m.Set("other", "k", []byte("x"), 0))

	c.Advance(1799 * time.Second)
	_, ok := m.Get("database", "q1")
	require.True(t, ok)

	c.Advance(2 * time.Second)
	_, ok = m.Get("database", "q1")
	require.False(t, ok)
	// ttl_default is an hour
	_, ok = m.Get("other", "k")
	require.True(t, ok)
	c.Advance(1800 * time.Second)
	_, ok = m.Get("other", "k")
	require.False(t, ok)
}

func TestSetShortensOversizedTTL(t *testing.T) {
	for _, p := range []string{"bbolt", "badger"} {
		t.Run(p, func(t *testing.T) {
			m, c := newTestManager(t, func(o *options.Options) { o.StructuredProvider = p })
			require.NoError(t, m.Set("database", "forever", value(2048), time.Duration(math.MaxInt64)))
			o, _, err := m.tiers.Structured.Retrieve(key.Identifier("database", "forever"), c.Now())
			require.NoError(t, err)
			require.True(t, o.Expiration.Equal(c.Now().Add(options.MaxTTL)))

			// still swept only once it expires
			require.NoError(t, m.CleanupExpiredAt(c.Now().Add(time.Hour)))
			_, ok := m.Get("database", "forever")
			require.True(t, ok)
		})
	}
}

func TestPromotionKeepsExpiration(t *testing.T) {
	m, c := newTestManager(t, nil)
	big := value(2 * 1024 * 1024)
	require.NoError(t, m.Set("files", "big", big, time.Hour))
	expires := c.Now().Add(time.Hour)

	st := m.Stats()
	require.Equal(t, int64(1), st.FileEntries)
	require.Equal(t, int64(0), st.DatabaseEntries)
	require.Equal(t, int64(0), st.MemoryEntries)

	c.Advance(time.Minute)
	b, s, lvl := m.Retrieve("files", "big")
	require.Equal(t, status.LookupStatusHit, s)
	require.Equal(t, 3, lvl)
	require.Equal(t, big, b)

	st = m.Stats()
	require.Equal(t, int64(1), st.FileEntries)
	require.Equal(t, int64(1), st.DatabaseEntries)
	require.Equal(t, int64(1), st.MemoryEntries)

	id := key.Identifier("files", "big")
	for _, s := range m.stores[:2] {
		obj, _, err := s.Retrieve(id, c.Now())
		require.NoError(t, err)
		require.True(t, expires.Equal(obj.Expiration))
		require.Equal(t, "files", obj.Category)
	}

	_, _, lvl = m.Retrieve("files", "big")
	require.Equal(t, 1, lvl)
}

func TestStructuredHitPromotesToMemoryOnly(t *testing.T) {
	m, _ := newTestManager(t, nil)
	require.NoError(t, m.Set("scripts", "s1", value(2048), 0))
	_, _, lvl := m.Retrieve("scripts", "s1")
	require.Equal(t, 2, lvl)
	st := m.Stats()
	require.Equal(t, int64(1), st.MemoryEntries)
	require.Equal(t, int64(0), st.FileEntries)
}

func TestMemoryTierBound(t *testing.T) {
	m, _ := newTestManager(t, func(o *options.Options) { o.MaxMemoryEntries = 3 })
	for _, k := range []string{"a", "b", "c"} {
		require.NoError(t, m.Set("static", k, []byte(k), 0))
	}
	_, ok := m.Get("static", "a")
	require.True(t, ok)

	require.NoError(t, m.Set("static", "d", []byte("d"), 0))
	require.NoError(t, m.Set("static", "e", []byte("e"), 0))

	st := m.Stats()
	require.Equal(t, int64(3), st.MemoryEntries)
	require.Equal(t, uint64(2), st.Evictions)

	for k, live := range map[string]bool{"a": true, "b": false, "c": false, "d": true, "e": true} {
		_, ok := m.Get("static", k)
		require.Equal(t, live, ok, k)
	}
}

func TestMemoryTierDisabled(t *testing.T) {
	m, _ := newTestManager(t, func(o *options.Options) { o.MaxMemoryEntries = 0 })
	require.NoError(t, m.Set("static", "k", []byte("small"), 0))
	_, _, lvl := m.Retrieve("static", "k")
	require.Equal(t, 2, lvl)
	_, _, lvl = m.Retrieve("static", "k")
	require.Equal(t, 2, lvl)
	st := m.Stats()
	require.Equal(t, int64(0), st.MemoryEntries)
	require.Equal(t, uint64(0), st.Evictions)
}

func TestSetReplacesCopiesInOtherTiers(t *testing.T) {
	m, _ := newTestManager(t, nil)
	require.NoError(t, m.Set("database", "q", value(2048), 0))
	_, _, lvl := m.Retrieve("database", "q")
	require.Equal(t, 2, lvl)

	// the promoted memory copy must not shadow the new value
	require.NoError(t, m.Set("database", "q", value(2*1024*1024), 0))
	b, _, lvl := m.Retrieve("database", "q")
	require.Equal(t, 3, lvl)
	require.Len(t, b, 2*1024*1024)
}

// removeFailingStore is a cache.Store whose Remove always fails
type removeFailingStore struct {
	wrappedStore
}

// wrappedStore names the embedded cache.Store so its promoted Store method
// does not collide with the field name
type wrappedStore = cache.Store

func (s removeFailingStore) Remove(...string) error {
	return errors.New("database is read-only")
}

func TestSetReportsOlderCopyLeftBehind(t *testing.T) {
	m, _ := newTestManager(t, nil)
	require.NoError(t, m.Set("database", "q", value(2048), 0))

	structured := m.stores[cache.TierStructured]
	m.stores[cache.TierStructured] = removeFailingStore{structured}

	err := m.Set("database", "q", value(2*1024*1024), 0)
	var se *cache.StorageIOError
	require.True(t, errors.As(err, &se))
	require.Equal(t, "structured", se.Tier)
	require.Equal(t, "remove", se.Op)

	// the new value was still written to its own tier
	_, ls, err := m.tiers.Blob.Retrieve(key.Identifier("database", "q"), m.now())
	require.NoError(t, err)
	require.Equal(t, status.LookupStatusHit, ls)

	m.stores[cache.TierStructured] = structured
	require.NoError(t, m.Set("database", "q", value(2*1024*1024), 0))
	b, _, lvl := m.Retrieve("database", "q")
	require.Equal(t, 3, lvl)
	require.Len(t, b, 2*1024*1024)
}

func TestInvalidate(t *testing.T) {
	m, _ := newTestManager(t, nil)
	require.NoError(t, m.Set("database", "q", value(2048), 0, "page", "2"))
	_, ok := m.Get("database", "q", "page", "2")
	require.True(t, ok)

	// extra arguments are part of the identity
	require.NoError(t, m.Invalidate("database", "q", "2", "page"))
	_, ok = m.Get("database", "q", "page", "2")
	require.True(t, ok)

	require.NoError(t, m.Invalidate("database", "q", "page", "2"))
	_, ok = m.Get("database", "q", "page", "2")
	require.False(t, ok)
	st := m.Stats()
	require.Equal(t, int64(0), st.MemoryEntries+st.DatabaseEntries+st.FileEntries)
}

func TestInvalidateNamespace(t *testing.T) {
	m, _ := newTestManager(t, nil)
	for i, size := range []int{10, 2048, 2 * 1024 * 1024} {
		require.NoError(t, m.Set("database", "q"+strconv.Itoa(i), value(size), 0))
	}
	_, ok := m.Get("database", "q2") // promoted into every tier
	require.True(t, ok)
	require.NoError(t, m.Set("static", "logo", []byte("png"), 0))
	require.NoError(t, m.Set("scripts", "s", value(4096), 0))

	require.NoError(t, m.InvalidateNamespace("database"))
	for i := 0; i < 3; i++ {
		_, ok := m.Get("database", "q"+strconv.Itoa(i))
		require.False(t, ok)
	}
	_, ok = m.Get("static", "logo")
	require.True(t, ok)
	_, ok = m.Get("scripts", "s")
	require.True(t, ok)

	// an empty key purges the namespace as well
	require.NoError(t, m.Invalidate("static", ""))
	_, ok = m.Get("static", "logo")
	require.False(t, ok)
}

func TestCleanupExpiredIsIdempotent(t *testing.T) {
	reg := prometheus.NewRegistry()
	m, c := newTestManager(t, nil, WithRegisterer(reg))
	for i, size := range []int{10, 2048, 2 * 1024 * 1024} {
		require.NoError(t, m.Set("database", "short"+strconv.Itoa(i), value(size), 5*time.Second))
		require.NoError(t, m.Set("database", "long"+strconv.Itoa(i), value(size), time.Hour))
	}
	c.Advance(10 * time.Second)

	require.NoError(t, m.CleanupExpired())
	st := m.Stats()
	require.Equal(t, int64(1), st.MemoryEntries)
	require.Equal(t, int64(1), st.DatabaseEntries)
	require.Equal(t, int64(1), st.FileEntries)
	for _, tier := range []string{"memory", "structured", "blob"} {
		require.Equal(t, 1.0, testutil.ToFloat64(m.metrics.Events.WithLabelValues(tier, "eviction", "ttl")), tier)
	}

	require.NoError(t, m.CleanupExpiredAt(c.Now()))
	for _, tier := range []string{"memory", "structured", "blob"} {
		require.Equal(t, 1.0, testutil.ToFloat64(m.metrics.Events.WithLabelValues(tier, "eviction", "ttl")), tier)
	}
	require.Equal(t, st, m.Stats())

	// sweeping at a later time removes the rest
	require.NoError(t, m.CleanupExpiredAt(c.Now().Add(2*time.Hour)))
	st = m.Stats()
	require.Equal(t, int64(0), st.MemoryEntries+st.DatabaseEntries+st.FileEntries)
}

func TestUnavailableTierIsAMiss(t *testing.T) {
	m, _ := newTestManager(t, nil)
	require.NoError(t, m.Set("database", "medium", value(2048), 0))
	require.NoError(t, m.tiers.Structured.Close())

	_, s, _ := m.Retrieve("database", "medium")
	require.Equal(t, status.LookupStatusKeyMiss, s)

	err := m.Set("database", "medium", value(2048), 0)
	var se *cache.StorageIOError
	require.True(t, errors.As(err, &se))
	require.Equal(t, "structured", se.Tier)

	// the other tiers keep working, but the stale copy the structured tier
	// may hold is reported
	err = m.Set("database", "small", []byte("x"), 0)
	require.True(t, errors.As(err, &se))
	require.Equal(t, "structured", se.Tier)
	require.Equal(t, "remove", se.Op)
	b, ok := m.Get("database", "small")
	require.True(t, ok)
	require.Equal(t, []byte("x"), b)

	st := m.Stats()
	require.Equal(t, int64(0), st.DatabaseEntries)
	require.Error(t, m.CleanupExpired())
}

func TestCorruptBlobEntryIsRemoved(t *testing.T) {
	m, _ := newTestManager(t, nil)
	id := key.Identifier("files", "broken")
	base := filepath.Join(m.config.CacheDir, "files", id)
	require.NoError(t, os.WriteFile(base+".meta", []byte("{"), 0o600))
	require.NoError(t, os.WriteFile(base+".cache", []byte("data"), 0o600))

	_, s, _ := m.Retrieve("files", "broken")
	require.True(t, s.IsMiss())
	_, err := os.Stat(base + ".meta")
	require.True(t, os.IsNotExist(err))
	_, err = os.Stat(base + ".cache")
	require.True(t, os.IsNotExist(err))
}

func TestStatsHitRatio(t *testing.T) {
	m, _ := newTestManager(t, nil)
	require.Equal(t, 0.0, m.Stats().HitRatio)
	require.NoError(t, m.Set("static", "k", []byte("v"), 0))
	m.Get("static", "k")
	m.Get("static", "k")
	m.Get("static", "k")
	m.Get("static", "missing")
	st := m.Stats()
	require.Equal(t, uint64(3), st.Hits)
	require.Equal(t, uint64(1), st.Misses)
	require.Equal(t, 0.75, st.HitRatio)
}

func TestPerformanceLog(t *testing.T) {
	m, _ := newTestManager(t, func(o *options.Options) { o.PerformanceLogging = true })
	require.NoError(t, m.Set("database", "q1", value(10), 0))
	m.Get("database", "q1")
	m.Get("database", "nope")
	require.NoError(t, m.Set("database", "q2", value(2048), 0))
	m.Get("database", "q2")
	require.NoError(t, m.Close())

	b, err := os.ReadFile(filepath.Join(m.config.CacheDir, "performance.log"))
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(b)), "\n")
	require.Len(t, lines, 5)
	for i, suffix := range []string{
		",L1_SET,database,q1,10",
		",L1_HIT,database,q1,0",
		",MISS,database,nope,0",
		",L2_SET,database,q2,2048",
		",L2_HIT,database,q2,0",
	} {
		require.True(t, strings.HasSuffix(lines[i], suffix), lines[i])
		require.True(t, strings.HasPrefix(lines[i], "2024-03-01T12:00:00Z"), lines[i])
	}
}

func TestClosedManager(t *testing.T) {
	m, _ := newTestManager(t, nil)
	require.NoError(t, m.Set("static", "k", []byte("v"), 0))
	require.NoError(t, m.Close())
	require.NoError(t, m.Close())

	_, ok := m.Get("static", "k")
	require.False(t, ok)
	require.ErrorIs(t, m.Set("static", "k", []byte("v"), 0), ErrClosed)
	require.ErrorIs(t, m.Invalidate("static", "k"), ErrClosed)
	require.ErrorIs(t, m.InvalidateNamespace("static"), ErrClosed)
	require.ErrorIs(t, m.CleanupExpired(), ErrClosed)
	require.Equal(t, uint64(0), m.Stats().Hits)
}

func TestReaper(t *testing.T) {
	m, c := newTestManager(t, func(o *options.Options) {
		o.AutoCleanup = true
	})
	m.Close()
	require.True(t, m.reaperExited.Load())

	// restart with a short interval
	o := m.config.Clone()
	o.CacheDir = t.TempDir()
	o.CleanupInterval = 10 * time.Millisecond
	m, err := New(o, WithClock(c.Now))
	require.NoError(t, err)
	defer m.Close()
	require.False(t, m.reaperExited.Load())

	require.NoError(t, m.Set("static", "k", []byte("v"), time.Second))
	c.Advance(2 * time.Second)
	require.Eventually(t, func() bool {
		return m.Stats().MemoryEntries == 0
	}, 5*time.Second, 10*time.Millisecond)

	require.NoError(t, m.Close())
	require.True(t, m.reaperExited.Load())
}

func TestConcurrentAccess(t *testing.T) {
	m, _ := newTestManager(t, nil)
	var wg sync.WaitGroup
	for w := 0; w < 8; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for i := 0; i < 50; i++ {
				k := strconv.Itoa(i % 10)
				size := 10
				if i%3 == 0 {
					size = 2048
				}
				if err := m.Set("database", k, value(size), 0); err != nil {
					t.Error(err)
					return
				}
				m.Get("database", k)
				if i%7 == 0 {
					m.Invalidate("database", k)
				}
			}
		}(w)
	}
	wg.Wait()
	st := m.Stats()
	require.Equal(t, uint64(8*50), st.Hits+st.Misses)
}

func TestNewInvalidOptions(t *testing.T) {
	o := options.New()
	o.MemoryMaxValueBytes = 0
	_, err := New(o)
	require.ErrorIs(t, err, options.ErrInvalidThresholds)
}
