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


// Package options defines the configuration of the tiered cache
package options

import (
	"errors"
	"fmt"
	"math"
	"path/filepath"
	"sort"
	"strings"
	"time"

	badger "github.com/trickstercache/tiercache/pkg/cache/badger/options"
	bbolt "github.com/trickstercache/tiercache/pkg/cache/bbolt/options"
	filesystem "github.com/trickstercache/tiercache/pkg/cache/filesystem/options"
	memory "github.com/trickstercache/tiercache/pkg/cache/memory/options"
	"github.com/trickstercache/tiercache/pkg/cache/options/defaults"
	"github.com/trickstercache/tiercache/pkg/cache/providers"
	ep "github.com/trickstercache/tiercache/pkg/encoding/providers"
)

// namespaceTTLPrefix prefixes configuration keys that set a namespace's TTL
const namespaceTTLPrefix = "ttl_"

// Options is a collection of values defining the tiered cache behavior
type Options struct {
	// CacheDir is the root directory of the structured and blob tiers
	CacheDir string `yaml:"cache_dir,omitempty"`
	// TTLDefaultSecs is the TTL of objects in namespaces with no TTL of their own
	TTLDefaultSecs int `yaml:"ttl_default,omitempty"`
	// NamespaceTTLSecs holds per-namespace TTLs, configured as ttl_<namespace> keys
	NamespaceTTLSecs map[string]int `yaml:"-"`
	// AutoCleanup enables the periodic sweep of expired objects
	AutoCleanup bool `yaml:"auto_cleanup"`
	// CleanupIntervalSecs is the time between automatic sweeps
	CleanupIntervalSecs int `yaml:"cleanup_interval,omitempty"`
	// Compression enables compression of blob tier data
	Compression bool `yaml:"compression"`
	// CompressionProvider is the blob tier codec: gzip, zstd, brotli or snappy
	CompressionProvider string `yaml:"compression_provider,omitempty"`
	// PerformanceLogging appends each cache operation to <cache_dir>/performance.log
	PerformanceLogging bool `yaml:"performance_logging"`
	// StructuredProvider selects the structured tier implementation: bbolt or badger
	StructuredProvider string `yaml:"structured_provider,omitempty"`
	// MaxMemoryMB is the memory tier budget, at 1024 entries per MB
	MaxMemoryMB int `yaml:"max_memory_mb,omitempty"`
	// MaxMemoryEntries, when zero or greater, overrides the bound derived from MaxMemoryMB.
	// Zero disables the memory tier.
	MaxMemoryEntries int `yaml:"max_memory_entries"`
	// MemoryMaxValueBytes is the exclusive upper bound of value sizes written to the memory tier
	MemoryMaxValueBytes int64 `yaml:"memory_max_value_bytes,omitempty"`
	// StructuredMaxValueBytes is the exclusive upper bound of value sizes written to the structured tier
	StructuredMaxValueBytes int64 `yaml:"structured_max_value_bytes,omitempty"`

	//  Synthetic Values

	// TTLDefault is the Duration of TTLDefaultSecs
	TTLDefault time.Duration `yaml:"-"`
	// NamespaceTTLs holds the Durations of NamespaceTTLSecs
	NamespaceTTLs map[string]time.Duration `yaml:"-"`
	// CleanupInterval is the Duration of CleanupIntervalSecs
	CleanupInterval time.Duration `yaml:"-"`
	// CompressionProviderID is the internal constant for CompressionProvider
	CompressionProviderID ep.Provider `yaml:"-"`
	// StructuredProviderID is the internal constant for StructuredProvider
	StructuredProviderID providers.Provider `yaml:"-"`
}

// MaxDurationSecs bounds ttl and cleanup_interval values, keeping expirations
// representable as unix nanoseconds
const MaxDurationSecs = math.MaxInt32

// MaxTTL is the longest TTL an object can be stored with
const MaxTTL = time.Duration(MaxDurationSecs) * time.Second

var (
	ErrInvalidTTL                = errors.New("ttl must be greater than 0")
	ErrTTLOutOfRange             = fmt.Errorf("ttl must be no greater than %d seconds", MaxDurationSecs)
	ErrInvalidCleanupInterval    = fmt.Errorf("cleanup_interval must be between 1 and %d "+
		"when auto_cleanup is enabled", MaxDurationSecs)
	ErrInvalidCompression        = errors.New("unsupported compression_provider")
	ErrInvalidStructuredProvider = errors.New("unsupported structured_provider")
	ErrInvalidThresholds         = errors.New("memory_max_value_bytes must be greater than 0 and " +
		"no larger than structured_max_value_bytes")
	ErrInvalidMemoryBudget = errors.New("max_memory_mb must not be negative")
	ErrInvalidCacheDir     = errors.New("cache_dir is required")
)

// New will return a pointer to an Options with the default configuration settings
func New() *Options {
	o := &Options{
		CacheDir:                defaults.DefaultCacheDir,
		TTLDefaultSecs:          defaults.DefaultTTLSecs,
		NamespaceTTLSecs:        defaults.NamespaceTTLSecs(),
		AutoCleanup:             defaults.DefaultAutoCleanup,
		CleanupIntervalSecs:     defaults.DefaultCleanupIntervalSecs,
		Compression:             defaults.DefaultCompression,
		CompressionProvider:     defaults.DefaultCompressionProvider,
		PerformanceLogging:      defaults.DefaultPerformanceLogging,
		StructuredProvider:      defaults.DefaultStructuredProvider,
		MaxMemoryMB:             defaults.DefaultMaxMemoryMB,
		MaxMemoryEntries:        defaults.DefaultMaxMemoryEntries,
		MemoryMaxValueBytes:     defaults.DefaultMemoryMaxValueBytes,
		StructuredMaxValueBytes: defaults.DefaultStructuredMaxValueBytes,
	}
	// defaults are always valid
	o.Initialize()
	return o
}

// Clone returns an exact copy of the Options
func (o *Options) Clone() *Options {
	out := *o
	out.NamespaceTTLSecs = make(map[string]int, len(o.NamespaceTTLSecs))
	for k, v := range o.NamespaceTTLSecs {
		out.NamespaceTTLSecs[k] = v
	}
	out.NamespaceTTLs = make(map[string]time.Duration, len(o.NamespaceTTLs))
	for k, v := range o.NamespaceTTLs {
		out.NamespaceTTLs[k] = v
	}
	return &out
}

// Equal returns true if all configured values of the subject and provided Options are identical
func (o *Options) Equal(o2 *Options) bool {
	if o2 == nil {
		return false
	}
	if len(o.NamespaceTTLSecs) != len(o2.NamespaceTTLSecs) {
		return false
	}
	for k, v := range o.NamespaceTTLSecs {
		if v2, ok := o2.NamespaceTTLSecs[k]; !ok || v != v2 {
			return false
		}
	}
	return o.CacheDir == o2.CacheDir &&
		o.TTLDefaultSecs == o2.TTLDefaultSecs &&
		o.AutoCleanup == o2.AutoCleanup &&
		o.CleanupIntervalSecs == o2.CleanupIntervalSecs &&
		o.Compression == o2.Compression &&
		o.CompressionProvider == o2.CompressionProvider &&
		o.PerformanceLogging == o2.PerformanceLogging &&
		o.StructuredProvider == o2.StructuredProvider &&
		o.MaxMemoryMB == o2.MaxMemoryMB &&
		o.MaxMemoryEntries == o2.MaxMemoryEntries &&
		o.MemoryMaxValueBytes == o2.MemoryMaxValueBytes &&
		o.StructuredMaxValueBytes == o2.StructuredMaxValueBytes
}

// UnmarshalYAML applies defaults before overlaying YAML-parsed values,
// then collects the ttl_<namespace> keys
func (o *Options) UnmarshalYAML(unmarshal func(interface{}) error) error {
	type loadOptions Options
	lo := loadOptions(*(New()))
	if err := unmarshal(&lo); err != nil {
		return err
	}
	*o = Options(lo)

	raw := make(map[string]interface{})
	if err := unmarshal(&raw); err != nil {
		return err
	}
	for k, v := range raw {
		if !strings.HasPrefix(k, namespaceTTLPrefix) || k == "ttl_default" {
			continue
		}
		ns := strings.TrimPrefix(k, namespaceTTLPrefix)
		secs, ok := toInt(v)
		if !ok || ns == "" {
			return fmt.Errorf("invalid value for %s: %v", k, v)
		}
		o.NamespaceTTLSecs[ns] = secs
	}
	return nil
}

// Initialize lowercases provider names and populates the synthetic values
func (o *Options) Initialize() error {
	o.CompressionProvider = strings.ToLower(strings.TrimSpace(o.CompressionProvider))
	o.StructuredProvider = strings.ToLower(strings.TrimSpace(o.StructuredProvider))
	o.CompressionProviderID = ep.ProviderID(o.CompressionProvider)
	o.StructuredProviderID = providers.Names[o.StructuredProvider]

	o.TTLDefault = time.Duration(o.TTLDefaultSecs) * time.Second
	o.CleanupInterval = time.Duration(o.CleanupIntervalSecs) * time.Second
	o.NamespaceTTLs = make(map[string]time.Duration, len(o.NamespaceTTLSecs))
	for k, v := range o.NamespaceTTLSecs {
		o.NamespaceTTLs[k] = time.Duration(v) * time.Second
	}
	return o.Validate()
}

// Validate returns an error if the Options cannot be used to run a cache
func (o *Options) Validate() error {
	if o.CacheDir == "" {
		return ErrInvalidCacheDir
	}
	if err := validateTTL("ttl_default", o.TTLDefaultSecs); err != nil {
		return err
	}
	for _, k := range o.Namespaces() {
		if err := validateTTL(namespaceTTLPrefix+k, o.NamespaceTTLSecs[k]); err != nil {
			return err
		}
	}
	if o.AutoCleanup && (o.CleanupIntervalSecs <= 0 || o.CleanupIntervalSecs > MaxDurationSecs) {
		return ErrInvalidCleanupInterval
	}
	if !ep.IsSupported(o.CompressionProvider) {
		return fmt.Errorf("%w: %q", ErrInvalidCompression, o.CompressionProvider)
	}
	if _, ok := providers.Names[o.StructuredProvider]; !ok {
		return fmt.Errorf("%w: %q", ErrInvalidStructuredProvider, o.StructuredProvider)
	}
	if o.MemoryMaxValueBytes <= 0 || o.MemoryMaxValueBytes > o.StructuredMaxValueBytes {
		return ErrInvalidThresholds
	}
	if o.MaxMemoryMB < 0 {
		return ErrInvalidMemoryBudget
	}
	return nil
}

func validateTTL(name string, secs int) error {
	switch {
	case secs <= 0:
		return fmt.Errorf("%w: %s", ErrInvalidTTL, name)
	case secs > MaxDurationSecs:
		return fmt.Errorf("%w: %s", ErrTTLOutOfRange, name)
	}
	return nil
}

// Namespaces returns the sorted list of namespaces with a configured TTL
func (o *Options) Namespaces() []string {
	out := make([]string, 0, len(o.NamespaceTTLSecs))
	for k := range o.NamespaceTTLSecs {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// TTL returns the TTL of objects in the namespace
func (o *Options) TTL(namespace string) time.Duration {
	if d, ok := o.NamespaceTTLs[namespace]; ok {
		return d
	}
	return o.TTLDefault
}

// MaxEntries returns the bound of the memory tier
func (o *Options) MaxEntries() int {
	if o.MaxMemoryEntries >= 0 {
		return o.MaxMemoryEntries
	}
	return o.MaxMemoryMB * memory.EntriesPerMB
}

// MemoryOptions returns the memory tier Options
func (o *Options) MemoryOptions() *memory.Options {
	return &memory.Options{MaxEntries: o.MaxEntries()}
}

// BBoltOptions returns the bbolt structured tier Options
func (o *Options) BBoltOptions() *bbolt.Options {
	bo := bbolt.New()
	bo.Filename = filepath.Join(o.CacheDir, bo.Filename)
	return bo
}

// BadgerOptions returns the badger structured tier Options
func (o *Options) BadgerOptions() *badger.Options {
	bo := badger.New()
	bo.Directory = filepath.Join(o.CacheDir, bo.Directory)
	bo.ValueDirectory = bo.Directory
	return bo
}

// FilesystemOptions returns the blob tier Options
func (o *Options) FilesystemOptions() *filesystem.Options {
	fo := filesystem.New()
	fo.CachePath = filepath.Join(o.CacheDir, fo.CachePath)
	fo.Compression = o.Compression
	fo.CompressionProvider = o.CompressionProviderID
	return fo
}

// PerformanceLogPath returns the location of the performance log
func (o *Options) PerformanceLogPath() string {
	return filepath.Join(o.CacheDir, defaults.PerformanceLogFilename)
}

func toInt(v interface{}) (int, bool) {
	switch n := v.(type) {
	case int:
		return n, true
	case int64:
		return int(n), true
	case uint64:
		if n > math.MaxInt32 {
			return 0, false
		}
		return int(n), true
	case float64:
		if n != math.Trunc(n) {
			return 0, false
		}
		return int(n), true
	}
	return 0, false
}
