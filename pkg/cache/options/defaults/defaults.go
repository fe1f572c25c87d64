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


// Package defaults holds the default values of the cache configuration
package defaults

import (
	"github.com/trickstercache/tiercache/pkg/cache/providers"
)

const (
	// DefaultCacheDir is the default root directory of the durable tiers
	DefaultCacheDir = "./cache"

	// DefaultTTLSecs is the TTL of objects in namespaces without their own TTL
	DefaultTTLSecs = 3600

	// DefaultAutoCleanup indicates whether expired objects are swept periodically
	DefaultAutoCleanup = true
	// DefaultCleanupIntervalSecs is the time between automatic sweeps
	DefaultCleanupIntervalSecs = 300

	// DefaultCompression indicates whether blob tier data is compressed
	DefaultCompression = true
	// DefaultCompressionProvider is the blob tier compression codec
	DefaultCompressionProvider = "gzip"

	// DefaultPerformanceLogging indicates whether operations are written to performance.log
	DefaultPerformanceLogging = false
	// PerformanceLogFilename is the name of the performance log within the cache directory
	PerformanceLogFilename = "performance.log"

	// DefaultStructuredProvider is the default structured tier provider
	DefaultStructuredProvider = providers.BBolt
	// DefaultStructuredProviderID is the default structured tier provider ID
	// and should align with DefaultStructuredProvider
	DefaultStructuredProviderID = providers.BBoltID

	// DefaultMaxMemoryMB is the memory tier budget
	DefaultMaxMemoryMB = 100
	// DefaultMaxMemoryEntries of -1 derives the memory tier bound from DefaultMaxMemoryMB
	DefaultMaxMemoryEntries = -1

	// DefaultMemoryMaxValueBytes is the exclusive upper bound of value sizes routed to the memory tier
	DefaultMemoryMaxValueBytes = 1024
	// DefaultStructuredMaxValueBytes is the exclusive upper bound of value sizes routed to the structured tier
	DefaultStructuredMaxValueBytes = 1024 * 1024
)

// NamespaceTTLSecs returns the built-in per-namespace TTLs
func NamespaceTTLSecs() map[string]int {
	return map[string]int{
		"database": 1800,
		"scripts":  7200,
		"static":   86400,
	}
}
