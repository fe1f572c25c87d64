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


// Package filesystem is the blob tier of the cache: one data file and one
// JSON metadata file per object
package filesystem

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/trickstercache/tiercache/pkg/cache"
	"github.com/trickstercache/tiercache/pkg/cache/filesystem/options"
	"github.com/trickstercache/tiercache/pkg/cache/index"
	"github.com/trickstercache/tiercache/pkg/cache/status"
	"github.com/trickstercache/tiercache/pkg/encoding"
	"github.com/trickstercache/tiercache/pkg/encoding/providers"
	"github.com/trickstercache/tiercache/pkg/observability/logging"
	"github.com/trickstercache/tiercache/pkg/observability/logging/logger"
)

// CacheClient implements the cache.Store interface
var _ cache.Store = &CacheClient{}

const (
	tierName = "blob"

	dataExt    = ".cache"
	metaExt    = ".meta"
	tempPrefix = ".tmp-"
)

var (
	errKeyRequired = errors.New("cacheKey required")
	errBadMetadata = errors.New("invalid metadata")
)

// metadata is the JSON document written alongside each data file
type metadata struct {
	ExpiresAt  time.Time `json:"expires_at"`
	CreatedAt  time.Time `json:"created_at"`
	Category   string    `json:"category"`
	SizeBytes  int64     `json:"size_bytes"`
	Compressed bool      `json:"compressed"`
	Encoding   string    `json:"encoding,omitempty"`
}

func NewCache(name string, config *options.Options) *CacheClient {
	if config == nil {
		config = options.New()
	}
	c := &CacheClient{
		Name:   name,
		Config: config,
	}
	return c
}

// CacheClient describes a Filesystem CacheClient
type CacheClient struct {
	Name   string
	Config *options.Options
}

func (c *CacheClient) Close() error {
	return nil
}

// Connect ensures the cache path exists and is writable
func (c *CacheClient) Connect() error {
	return makeDirectory(c.Config.CachePath)
}

// Store writes the object's data file, then its metadata file. Each file is
// written under a temporary name and renamed into place.
func (c *CacheClient) Store(obj *index.Object) error {
	if obj.Key == "" {
		return cache.NewStorageIOError(tierName, "store", obj.Key, errKeyRequired)
	}
	data := obj.Value
	md := &metadata{
		ExpiresAt: obj.Expiration,
		CreatedAt: obj.LastWrite,
		Category:  obj.Category,
	}
	if c.Config.Compression {
		var err error
		data, err = encoding.Encode(c.Config.CompressionProvider, obj.Value)
		if err != nil {
			return &cache.SerializationError{Namespace: obj.Category, Key: obj.Key, Err: err}
		}
		md.Compressed = true
		md.Encoding = c.Config.CompressionProvider.String()
	}
	md.SizeBytes = int64(len(data))
	mb, err := json.Marshal(md)
	if err != nil {
		return &cache.SerializationError{Namespace: obj.Category, Key: obj.Key, Err: err}
	}

	dataFile, metaFile := c.getFileNames(obj.Key)
	// drop the old metadata first so it never describes the new data file
	if err := removeFile(metaFile); err != nil {
		return cache.NewStorageIOError(tierName, "store", obj.Key, err)
	}
	if err := writeFileAtomic(dataFile, data); err != nil {
		return cache.NewStorageIOError(tierName, "store", obj.Key, err)
	}
	if err := writeFileAtomic(metaFile, mb); err != nil {
		removeFile(dataFile)
		return cache.NewStorageIOError(tierName, "store", obj.Key, err)
	}
	return nil
}

// Retrieve reads the metadata, then the data file for the key. Missing,
// expired or inconsistent entries are misses and their remnants are removed.
func (c *CacheClient) Retrieve(cacheKey string, now time.Time) (*index.Object, status.LookupStatus, error) {
	dataFile, metaFile := c.getFileNames(cacheKey)
	md, err := readMetadata(metaFile)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			if fileExists(dataFile) {
				c.removeRemnant(cacheKey, "metadata file missing")
			}
			return nil, status.LookupStatusKeyMiss, cache.ErrKNF
		}
		if errors.Is(err, errBadMetadata) {
			c.removeRemnant(cacheKey, "metadata unreadable")
			return nil, status.LookupStatusError,
				&cache.CorruptEntryError{Tier: tierName, Key: cacheKey, Reason: err.Error()}
		}
		return nil, status.LookupStatusError, cache.NewStorageIOError(tierName, "retrieve", cacheKey, err)
	}

	if !now.Before(md.ExpiresAt) {
		c.remove(cacheKey)
		return nil, status.LookupStatusExpired, cache.ErrKNF
	}

	data, err := os.ReadFile(dataFile)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			c.removeRemnant(cacheKey, "data file missing")
			return nil, status.LookupStatusError,
				&cache.CorruptEntryError{Tier: tierName, Key: cacheKey, Reason: "data file missing"}
		}
		return nil, status.LookupStatusError, cache.NewStorageIOError(tierName, "retrieve", cacheKey, err)
	}

	if md.Compressed {
		p := providers.ProviderID(md.Encoding)
		if md.Encoding == "" {
			p = providers.GZip
		}
		data, err = encoding.Decode(p, data)
		if err != nil {
			c.removeRemnant(cacheKey, "data file does not decode")
			return nil, status.LookupStatusError,
				&cache.CorruptEntryError{Tier: tierName, Key: cacheKey, Reason: err.Error()}
		}
	}

	obj := index.New(cacheKey, md.Category, data, md.CreatedAt, md.ExpiresAt)
	obj.Touch(now)
	return obj, status.LookupStatusHit, nil
}

// Remove deletes the data and metadata files for the provided keys
func (c *CacheClient) Remove(cacheKeys ...string) error {
	for _, cacheKey := range cacheKeys {
		if err := c.remove(cacheKey); err != nil {
			return cache.NewStorageIOError(tierName, "remove", cacheKey, err)
		}
	}
	return nil
}

// RemoveCategory scans all metadata files and deletes the objects in the category
func (c *CacheClient) RemoveCategory(category string) (int, error) {
	keys, err := c.keysWithExt(metaExt)
	if err != nil {
		return 0, cache.NewStorageIOError(tierName, "remove category", "", err)
	}
	var n int
	for _, k := range keys {
		_, metaFile := c.getFileNames(k)
		md, err := readMetadata(metaFile)
		if err != nil || md.Category != category {
			continue
		}
		if err := c.remove(k); err != nil {
			return n, cache.NewStorageIOError(tierName, "remove category", k, err)
		}
		n++
	}
	return n, nil
}

// RemoveExpired deletes every object that is no longer live at now, along
// with orphaned data or metadata files and abandoned temporary files
func (c *CacheClient) RemoveExpired(now time.Time) (int, error) {
	entries, err := os.ReadDir(c.Config.CachePath)
	if err != nil {
		return 0, cache.NewStorageIOError(tierName, "remove expired", "", err)
	}
	var n int
	metas := make(map[string]bool)
	datas := make(map[string]bool)
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		name := e.Name()
		switch {
		case strings.HasPrefix(name, tempPrefix):
			removeFile(filepath.Join(c.Config.CachePath, name))
		case strings.HasSuffix(name, metaExt):
			metas[strings.TrimSuffix(name, metaExt)] = true
		case strings.HasSuffix(name, dataExt):
			datas[strings.TrimSuffix(name, dataExt)] = true
		}
	}
	for base := range metas {
		metaFile := filepath.Join(c.Config.CachePath, base+metaExt)
		md, err := readMetadata(metaFile)
		switch {
		case err == nil && !datas[base]:
			logger.Debug("removing orphaned blob metadata", logging.Pairs{"file": metaFile})
		case err == nil && now.Before(md.ExpiresAt):
			continue
		case err != nil && errors.Is(err, fs.ErrNotExist):
			continue
		case err != nil:
			logger.Warn("removing unreadable blob metadata", logging.Pairs{"file": metaFile, "error": err})
		}
		if err := c.removeBase(base); err != nil {
			return n, cache.NewStorageIOError(tierName, "remove expired", base, err)
		}
		n++
	}
	for base := range datas {
		if metas[base] {
			continue
		}
		logger.Debug("removing orphaned blob data", logging.Pairs{"file": base + dataExt})
		if err := c.removeBase(base); err != nil {
			return n, cache.NewStorageIOError(tierName, "remove expired", base, err)
		}
		n++
	}
	return n, nil
}

// Usage returns the count and total on-disk size of the data files
func (c *CacheClient) Usage() (int64, int64, error) {
	entries, err := os.ReadDir(c.Config.CachePath)
	if err != nil {
		return 0, 0, cache.NewStorageIOError(tierName, "usage", "", err)
	}
	var count, size int64
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), dataExt) {
			continue
		}
		fi, err := e.Info()
		if err != nil {
			// removed since the directory was read
			continue
		}
		count++
		size += fi.Size()
	}
	return count, size, nil
}

func (c *CacheClient) remove(cacheKey string) error {
	return c.removeBase(fileBase(cacheKey))
}

func (c *CacheClient) removeBase(base string) error {
	p := filepath.Join(c.Config.CachePath, base)
	if err := removeFile(p + dataExt); err != nil {
		return err
	}
	return removeFile(p + metaExt)
}

func (c *CacheClient) removeRemnant(cacheKey, reason string) {
	logger.Warn("removing corrupt blob entry",
		logging.Pairs{"cacheName": c.Name, "cacheKey": cacheKey, "reason": reason})
	if err := c.remove(cacheKey); err != nil {
		logger.Warn("failed to remove corrupt blob entry",
			logging.Pairs{"cacheName": c.Name, "cacheKey": cacheKey, "error": err})
	}
}

// keysWithExt returns the file bases in the cache path having the extension
func (c *CacheClient) keysWithExt(ext string) ([]string, error) {
	entries, err := os.ReadDir(c.Config.CachePath)
	if err != nil {
		return nil, err
	}
	out := make([]string, 0, len(entries))
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || strings.HasPrefix(name, tempPrefix) || !strings.HasSuffix(name, ext) {
			continue
		}
		out = append(out, strings.TrimSuffix(name, ext))
	}
	return out, nil
}

var fileNameReplacer = strings.NewReplacer("/", "~1", "\\", "~2", "..", "~3", ".", "~4")

func fileBase(cacheKey string) string {
	return fileNameReplacer.Replace(cacheKey)
}

func (c *CacheClient) getFileNames(cacheKey string) (string, string) {
	p := filepath.Join(c.Config.CachePath, fileBase(cacheKey))
	return p + dataExt, p + metaExt
}

func readMetadata(fn string) (*metadata, error) {
	b, err := os.ReadFile(fn)
	if err != nil {
		return nil, err
	}
	md := &metadata{}
	if err := json.Unmarshal(b, md); err != nil {
		return nil, fmt.Errorf("%w: %v", errBadMetadata, err)
	}
	return md, nil
}

func writeFileAtomic(fn string, data []byte) error {
	f, err := os.CreateTemp(filepath.Dir(fn), tempPrefix+"*")
	if err != nil {
		return err
	}
	tmp := f.Name()
	if _, err = f.Write(data); err != nil {
		f.Close()
		os.Remove(tmp)
		return err
	}
	if err = f.Close(); err != nil {
		os.Remove(tmp)
		return err
	}
	if err = os.Rename(tmp, fn); err != nil {
		os.Remove(tmp)
		return err
	}
	return nil
}

func removeFile(fn string) error {
	if err := os.Remove(fn); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	return nil
}

func fileExists(fn string) bool {
	_, err := os.Stat(fn)
	return err == nil
}

// makeDirectory creates a directory on the filesystem and returns the error in the event of a failure.
func makeDirectory(path string) error {
	err := os.MkdirAll(path, 0o755)
	if err == nil {
		// verify writability by attempting to touch a test file in the cache path
		tf := filepath.Join(path, ".test."+strconv.FormatInt(time.Now().Unix(), 10))
		err = os.WriteFile(tf, []byte(""), 0o600)
		if err == nil {
			os.Remove(tf)
		}
	}
	if err != nil {
		return fmt.Errorf("[%s] directory is not writeable by tiercache: %w", path, err)
	}
	return nil
}
