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


// Package metrics provides the prometheus instrumentation of the tiered cache
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

const (
	metricNamespace = "tiercache"
	cacheSubsystem  = "cache"
)

// Metrics holds the prometheus collectors of a cache manager
type Metrics struct {
	// ObjectOperations is a Counter of operations (in # of objects) performed on a cache tier
	ObjectOperations *prometheus.CounterVec
	// ByteOperations is a Counter of operations (in # of bytes) performed on a cache tier
	ByteOperations *prometheus.CounterVec
	// Events is a Counter of events (evictions, promotions, failures) on a cache tier
	Events *prometheus.CounterVec
	// Objects is a Gauge representing the number of objects in a cache tier
	Objects *prometheus.GaugeVec
	// Bytes is a Gauge representing the number of bytes in a cache tier
	Bytes *prometheus.GaugeVec
}

// NewMetrics creates and registers all metrics with the provided registry.
// A nil registry creates the collectors without registering them.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		ObjectOperations: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricNamespace,
				Subsystem: cacheSubsystem,
				Name:      "operation_objects_total",
				Help:      "Count (in # of objects) of operations performed on a cache tier.",
			},
			[]string{"tier", "operation", "status"},
		),
		ByteOperations: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricNamespace,
				Subsystem: cacheSubsystem,
				Name:      "operation_bytes_total",
				Help:      "Count (in bytes) of operations performed on a cache tier.",
			},
			[]string{"tier", "operation", "status"},
		),
		Events: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricNamespace,
				Subsystem: cacheSubsystem,
				Name:      "events_total",
				Help:      "Count of events performed on a cache tier.",
			},
			[]string{"tier", "event", "reason"},
		),
		Objects: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: metricNamespace,
				Subsystem: cacheSubsystem,
				Name:      "usage_objects",
				Help:      "Number of objects in a cache tier.",
			},
			[]string{"tier"},
		),
		Bytes: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: metricNamespace,
				Subsystem: cacheSubsystem,
				Name:      "usage_bytes",
				Help:      "Number of bytes in a cache tier.",
			},
			[]string{"tier"},
		),
	}
	if reg != nil {
		reg.MustRegister(m.ObjectOperations, m.ByteOperations, m.Events, m.Objects, m.Bytes)
	}
	return m
}

// ObserveCacheMiss records a Cache Miss event
func (m *Metrics) ObserveCacheMiss(tier string) {
	m.ObserveCacheOperation(tier, "get", "miss", 0)
}

// ObserveCacheDel records a cache deletion event
func (m *Metrics) ObserveCacheDel(tier string, count float64) {
	m.ObserveCacheOperation(tier, "del", "none", count)
}

// ObserveCacheOperation increments counters as cache operations occur
func (m *Metrics) ObserveCacheOperation(tier, operation, status string, bytes float64) {
	m.ObjectOperations.WithLabelValues(tier, operation, status).Inc()
	if bytes > 0 {
		m.ByteOperations.WithLabelValues(tier, operation, status).Add(bytes)
	}
}

// ObserveCacheEvent increments counters as cache events occur
func (m *Metrics) ObserveCacheEvent(tier, event, reason string) {
	m.Events.WithLabelValues(tier, event, reason).Inc()
}

// ObserveCacheEvents adds n to the counter of the cache event
func (m *Metrics) ObserveCacheEvents(tier, event, reason string, n float64) {
	if n > 0 {
		m.Events.WithLabelValues(tier, event, reason).Add(n)
	}
}

// ObserveCacheSizeChange sets the size gauges of the tier
func (m *Metrics) ObserveCacheSizeChange(tier string, byteCount, objectCount int64) {
	m.Objects.WithLabelValues(tier).Set(float64(objectCount))
	m.Bytes.WithLabelValues(tier).Set(float64(byteCount))
}
