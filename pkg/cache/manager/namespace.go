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
	"time"

	"github.com/trickstercache/tiercache/pkg/cache"
	"github.com/trickstercache/tiercache/pkg/cache/codec"
	"github.com/trickstercache/tiercache/pkg/observability/logging"
	"github.com/trickstercache/tiercache/pkg/observability/logging/logger"
)

// Namespace is a typed view of one namespace of a Manager
type Namespace[T any] struct {
	m     *Manager
	name  string
	codec codec.Codec[T]
}

// NewNamespace returns a Namespace that encodes its values with c
func NewNamespace[T any](m *Manager, name string, c codec.Codec[T]) *Namespace[T] {
	return &Namespace[T]{m: m, name: name, codec: c}
}

// Name returns the namespace name
func (n *Namespace[T]) Name() string {
	return n.name
}

// Get returns the decoded value for the key. A value that can no longer be
// decoded is invalidated and reported as a miss. Whether the result shares
// memory with the cached value depends on the codec's Decode.
func (n *Namespace[T]) Get(key string, extraArgs ...string) (T, bool) {
	var zero T
	b, ok := n.m.Get(n.name, key, extraArgs...)
	if !ok {
		return zero, false
	}
	v, err := n.codec.Decode(b)
	if err != nil {
		logger.Warn("cached value could not be decoded",
			logging.Pairs{"namespace": n.name, "key": key, "detail": err.Error()})
		if err := n.m.Invalidate(n.name, key, extraArgs...); err != nil {
			logger.Warn("undecodable cached value could not be invalidated",
				logging.Pairs{"namespace": n.name, "key": key, "detail": err.Error()})
		}
		return zero, false
	}
	return v, true
}

// Set encodes and stores the value. A ttl <= 0 uses the namespace's configured TTL.
func (n *Namespace[T]) Set(key string, v T, ttl time.Duration, extraArgs ...string) error {
	b, err := n.codec.Encode(v)
	if err != nil {
		return &cache.SerializationError{Namespace: n.name, Key: key, Err: err}
	}
	return n.m.Set(n.name, key, b, ttl, extraArgs...)
}

// Invalidate removes the value for the key from every tier
func (n *Namespace[T]) Invalidate(key string, extraArgs ...string) error {
	return n.m.Invalidate(n.name, key, extraArgs...)
}

// Purge removes every value of the namespace from every tier
func (n *Namespace[T]) Purge() error {
	return n.m.InvalidateNamespace(n.name)
}
