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


package options

import (
	"github.com/trickstercache/tiercache/pkg/encoding/providers"
)

const (
	// DefaultCachePath is the name of the blob directory within the cache directory
	DefaultCachePath = "files"
	// DefaultCompression indicates whether blobs are compressed by default
	DefaultCompression = true
	// DefaultCompressionProvider is the default blob compression provider
	DefaultCompressionProvider = providers.GZip
)

// Options is a collection of Configurations for storing cached data on the Filesystem
type Options struct {
	// CachePath represents the path on disk where our cache will live
	CachePath string
	// Compression enables compression of blob data files
	Compression bool
	// CompressionProvider selects the compression codec used when Compression is enabled
	CompressionProvider providers.Provider
}

// New returns a new Filesystem Options Reference with default values set
func New() *Options {
	return &Options{
		CachePath:           DefaultCachePath,
		Compression:         DefaultCompression,
		CompressionProvider: DefaultCompressionProvider,
	}
}
