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


// Package providers enumerates the compression providers available to the blob tier
package providers

import (
	"sort"
	"strconv"
	"strings"
)

const (
	Zstandard Provider = 1 << iota
	Brotli             // 2
	GZip               // 4
	Identity  Provider = 0 // no encoding
	// snappy is isolated from the bitmap-friendly low values, as in the
	// web-facing encoders list it was derived from
	Snappy Provider = 128

	ZstandardValue = "zstd"
	BrotliValue    = "br"
	GZipValue      = "gzip"
	SnappyValue    = "snappy"
	IdentityValue  = "identity"
	// might be used in configs
	ZstandardAltValue = "zstandard"
	BrotliAltValue    = "brotli"
)

type (
	Provider      byte
	Lookup        map[string]Provider
	ReverseLookup map[Provider]string
)

var providerValLookup = ReverseLookup{
	Zstandard: ZstandardValue,
	Brotli:    BrotliValue,
	GZip:      GZipValue,
	Snappy:    SnappyValue,
}

var providerLookup = Lookup{
	ZstandardValue:    Zstandard,
	ZstandardAltValue: Zstandard,
	BrotliValue:       Brotli,
	BrotliAltValue:    Brotli,
	GZipValue:         GZip,
	SnappyValue:       Snappy,
}

func (p Provider) String() string {
	if p == Identity {
		return IdentityValue
	}
	if v, ok := providerValLookup[p]; ok {
		return v
	}
	return strconv.Itoa(int(p))
}

// Providers returns the sorted list of canonical compression provider names
func Providers() []string {
	out := make([]string, 0, len(providerValLookup))
	for _, v := range providerValLookup {
		out = append(out, v)
	}
	sort.Strings(out)
	return out
}

// ProviderID returns the byte value of the provided compression provider name,
// or Identity when the name is unknown
func ProviderID(providerName string) Provider {
	if b, ok := providerLookup[strings.ToLower(strings.TrimSpace(providerName))]; ok {
		return b
	}
	return Identity
}

// IsSupported returns true if the provided name maps to a compression provider
func IsSupported(providerName string) bool {
	return ProviderID(providerName) != Identity
}
