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


// Package encoding compresses and decompresses byte slices using any of the
// supported compression providers
package encoding

import (
	"errors"
	"fmt"

	"github.com/trickstercache/tiercache/pkg/encoding/brotli"
	"github.com/trickstercache/tiercache/pkg/encoding/gzip"
	"github.com/trickstercache/tiercache/pkg/encoding/providers"
	"github.com/trickstercache/tiercache/pkg/encoding/snappy"
	"github.com/trickstercache/tiercache/pkg/encoding/zstd"
)

// ErrUnsupportedProvider is returned when a provider has no codec
var ErrUnsupportedProvider = errors.New("unsupported compression provider")

// Coder is a function that transforms a byte slice
type Coder func([]byte) ([]byte, error)

var encoders = map[providers.Provider]Coder{
	providers.GZip:      gzip.Encode,
	providers.Zstandard: zstd.Encode,
	providers.Brotli:    brotli.Encode,
	providers.Snappy:    snappy.Encode,
}

var decoders = map[providers.Provider]Coder{
	providers.GZip:      gzip.Decode,
	providers.Zstandard: zstd.Decode,
	providers.Brotli:    brotli.Decode,
	providers.Snappy:    snappy.Decode,
}

// Encode compresses the input using the provider. Identity returns the input.
func Encode(p providers.Provider, in []byte) ([]byte, error) {
	if p == providers.Identity {
		return in, nil
	}
	f, ok := encoders[p]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedProvider, p)
	}
	return f(in)
}

// Decode decompresses the input using the provider. Identity returns the input.
func Decode(p providers.Provider, in []byte) ([]byte, error) {
	if p == providers.Identity {
		return in, nil
	}
	f, ok := decoders[p]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedProvider, p)
	}
	return f(in)
}
