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


// Package codec converts typed values to and from the byte slices held by the cache
package codec

import (
	"encoding/json"
)

// Codec encodes and decodes values of type T
type Codec[T any] interface {
	Encode(T) ([]byte, error)
	Decode([]byte) (T, error)
}

// JSON encodes values of type T as JSON documents
type JSON[T any] struct{}

func (JSON[T]) Encode(v T) ([]byte, error) {
	return json.Marshal(v)
}

func (JSON[T]) Decode(b []byte) (T, error) {
	var v T
	err := json.Unmarshal(b, &v)
	return v, err
}

// String stores strings as their raw bytes
type String struct{}

func (String) Encode(v string) ([]byte, error) {
	return []byte(v), nil
}

func (String) Decode(b []byte) (string, error) {
	return string(b), nil
}

// Bytes stores byte slices unmodified. Decode returns a copy, so callers may
// modify the result without changing the cached value.
type Bytes struct{}

func (Bytes) Encode(v []byte) ([]byte, error) {
	return v, nil
}

func (Bytes) Decode(b []byte) ([]byte, error) {
	if b == nil {
		return nil, nil
	}
	out := make([]byte, len(b))
	copy(out, b)
	return out, nil
}

var (
	_ Codec[string] = String{}
	_ Codec[[]byte] = Bytes{}
	_ Codec[any]    = JSON[any]{}
)
