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


// Package registration builds and connects the cache tiers described by the
// cache configuration
package registration

import (
	"fmt"
	"os"

	"github.com/trickstercache/tiercache/pkg/cache"
	"github.com/trickstercache/tiercache/pkg/cache/badger"
	"github.com/trickstercache/tiercache/pkg/cache/bbolt"
	"github.com/trickstercache/tiercache/pkg/cache/filesystem"
	"github.com/trickstercache/tiercache/pkg/cache/memory"
	"github.com/trickstercache/tiercache/pkg/cache/options"
	"github.com/trickstercache/tiercache/pkg/cache/providers"
	"github.com/trickstercache/tiercache/pkg/observability/logging"
	"github.com/trickstercache/tiercache/pkg/observability/logging/logger"
)

// Tiers holds the connected cache tiers, fastest first
type Tiers struct {
	Memory     *memory.Cache
	Structured cache.Store
	Blob       cache.Store
}

// List returns the tiers in probe order, indexed by cache.Tier
func (t *Tiers) List() []cache.Store {
	return []cache.Store{t.Memory, t.Structured, t.Blob}
}

// NewStructured returns the structured tier implementation selected by the Options
func NewStructured(o *options.Options) (cache.Store, error) {
	name := cache.TierStructured.String()
	switch o.StructuredProviderID {
	case providers.BBoltID:
		return bbolt.New(name, o.BBoltOptions()), nil
	case providers.BadgerDBID:
		return badger.New(name, o.BadgerOptions()), nil
	}
	return nil, fmt.Errorf("%w: %q", options.ErrInvalidStructuredProvider, o.StructuredProvider)
}

// NewTiers builds and connects every tier. If any tier fails to connect,
// the tiers already connected are closed and the error is returned.
func NewTiers(o *options.Options) (*Tiers, error) {
	if err := os.MkdirAll(o.CacheDir, 0o755); err != nil {
		return nil, cache.NewStorageIOError("cache", "connect", "", err)
	}
	st, err := NewStructured(o)
	if err != nil {
		return nil, err
	}
	t := &Tiers{
		Memory:     memory.New(cache.TierMemory.String(), o.MemoryOptions()),
		Structured: st,
		Blob:       filesystem.NewCache(cache.TierBlob.String(), o.FilesystemOptions()),
	}
	l := t.List()
	for i, s := range l {
		if err := s.Connect(); err != nil {
			logger.Error("cache tier failed to connect",
				logging.Pairs{"tier": cache.Tier(i).String(), "detail": err.Error()})
			CloseTiers(l[:i])
			return nil, err
		}
		logger.Debug("cache tier connected",
			logging.Pairs{"tier": cache.Tier(i).String(), "provider": providerName(o, cache.Tier(i))})
	}
	return t, nil
}

// CloseTiers closes each of the provided tiers, returning the first error encountered
func CloseTiers(tiers []cache.Store) error {
	var first error
	for i, s := range tiers {
		if s == nil {
			continue
		}
		if err := s.Close(); err != nil {
			logger.Warn("cache tier failed to close",
				logging.Pairs{"tier": cache.Tier(i).String(), "detail": err.Error()})
			if first == nil {
				first = err
			}
		}
	}
	return first
}

func providerName(o *options.Options, t cache.Tier) string {
	switch t {
	case cache.TierStructured:
		return o.StructuredProvider
	case cache.TierBlob:
		return "filesystem"
	}
	return "memory"
}
