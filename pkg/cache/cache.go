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


// Package cache defines the tiercache storage tier interface and provides
// general cache functionality
package cache

import (
	"errors"
	"time"

	"github.com/trickstercache/tiercache/pkg/cache/index"
	"github.com/trickstercache/tiercache/pkg/cache/status"
)

// ErrKNF represents the error "key not found in cache"
var ErrKNF = errors.New("key not found in cache")

// Store is the interface implemented by each cache tier.
// Retrieve must return ErrKNF on a cache miss, with LookupStatusKeyMiss when
// the key is absent or LookupStatusExpired when its entry is no longer live.
type Store interface {
	Connect() error
	Close() error
	Store(obj *index.Object) error
	Retrieve(cacheKey string, now time.Time) (*index.Object, status.LookupStatus, error)
	Remove(cacheKeys ...string) error
	RemoveCategory(category string) (int, error)
	RemoveExpired(now time.Time) (int, error)
	Usage() (count int64, sizeBytes int64, err error)
}

// Tier identifies a cache tier by its position in the probe order
type Tier int

const (
	TierMemory Tier = iota
	TierStructured
	TierBlob
)

var tierNames = []string{"memory", "structured", "blob"}

func (t Tier) String() string {
	if t >= 0 && int(t) < len(tierNames) {
		return tierNames[t]
	}
	return "unknown"
}
