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


// Package manager orchestrates the cache tiers: it probes them fastest first,
// promotes hits from slower tiers, routes writes by value size and sweeps
// expired objects
package manager

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/trickstercache/tiercache/pkg/cache"
	"github.com/trickstercache/tiercache/pkg/cache/metrics"
	"github.com/trickstercache/tiercache/pkg/cache/options"
	"github.com/trickstercache/tiercache/pkg/cache/perflog"
	"github.com/trickstercache/tiercache/pkg/cache/registration"
	"github.com/trickstercache/tiercache/pkg/observability/logging"
	"github.com/trickstercache/tiercache/pkg/observability/logging/logger"

	"github.com/prometheus/client_golang/prometheus"
)

// ErrClosed is returned by operations on a closed Manager
var ErrClosed = errors.New("cache manager is closed")

// Manager is the tiered cache. All of its methods are safe for concurrent use;
// each holds the Manager's lock for its full duration, tier I/O included.
type Manager struct {
	mtx sync.Mutex

	config  *options.Options
	tiers   *registration.Tiers
	stores  []cache.Store
	now     func() time.Time
	metrics *metrics.Metrics
	perf    *perflog.Logger

	hits   uint64
	misses uint64
	closed bool

	cancel       context.CancelFunc
	reaperWG     sync.WaitGroup
	reaperExited atomic.Bool
}

// Option configures a Manager at construction
type Option func(*Manager)

// WithClock sets the function the Manager reads the current time from
func WithClock(now func() time.Time) Option {
	return func(m *Manager) {
		if now != nil {
			m.now = now
		}
	}
}

// WithRegisterer registers the Manager's metrics with reg instead of a private registry
func WithRegisterer(reg prometheus.Registerer) Option {
	return func(m *Manager) {
		m.metrics = metrics.NewMetrics(reg)
	}
}

// New opens every tier described by o and, when auto cleanup is enabled,
// starts the background sweep of expired objects
func New(o *options.Options, opts ...Option) (*Manager, error) {
	if o == nil {
		o = options.New()
	}
	if err := o.Validate(); err != nil {
		return nil, err
	}
	m := &Manager{
		config: o,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}
	if m.metrics == nil {
		m.metrics = metrics.NewMetrics(prometheus.NewRegistry())
	}

	t, err := registration.NewTiers(o)
	if err != nil {
		return nil, err
	}
	m.tiers = t
	m.stores = t.List()

	if o.PerformanceLogging {
		m.perf = perflog.New(o.PerformanceLogPath())
	}

	ctx, cancel := context.WithCancel(context.Background())
	m.cancel = cancel
	if o.AutoCleanup && o.CleanupInterval > 0 {
		m.reaperWG.Add(1)
		go m.reaper(ctx)
	} else {
		m.reaperExited.Store(true)
		logger.Info("cache reaper was not started",
			logging.Pairs{"autoCleanup": o.AutoCleanup, "cleanupInterval": o.CleanupInterval})
	}

	logger.Info("cache manager started", logging.Pairs{
		"cacheDir":           o.CacheDir,
		"structuredProvider": o.StructuredProvider,
		"maxMemoryEntries":   o.MaxEntries(),
		"compression":        o.Compression,
	})
	return m, nil
}

// Configuration returns the Options the Manager was created with
func (m *Manager) Configuration() *options.Options {
	return m.config
}

// Close stops the reaper and closes every tier. Subsequent operations return
// ErrClosed or a miss.
func (m *Manager) Close() error {
	m.cancel()
	m.reaperWG.Wait()

	m.mtx.Lock()
	defer m.mtx.Unlock()
	if m.closed {
		return nil
	}
	m.closed = true
	err := registration.CloseTiers(m.stores)
	if m.perf != nil {
		if err2 := m.perf.Close(); err2 != nil && err == nil {
			err = err2
		}
	}
	logger.Info("cache manager closed", logging.Pairs{"cacheDir": m.config.CacheDir})
	return err
}

// reaper periodically removes expired objects from every tier
func (m *Manager) reaper(ctx context.Context) {
	defer m.reaperWG.Done()
REAPER:
	for {
		select {
		case <-ctx.Done():
			break REAPER
		case <-time.After(m.config.CleanupInterval):
			if err := m.CleanupExpired(); err != nil && !errors.Is(err, ErrClosed) {
				logger.Warn("cache cleanup failed", logging.Pairs{"detail": err.Error()})
			}
		}
	}
	m.reaperExited.Store(true)
}

func (m *Manager) memoryEnabled() bool {
	return m.tiers.Memory.Config.MaxEntries > 0
}

func (m *Manager) logPerformance(op perflog.Operation, namespace, key string, size int64) {
	if m.perf == nil {
		return
	}
	if err := m.perf.Log(m.now(), op, namespace, key, size); err != nil {
		logger.WarnOnce("perflog", "performance log write failed",
			logging.Pairs{"detail": err.Error()})
	}
}
