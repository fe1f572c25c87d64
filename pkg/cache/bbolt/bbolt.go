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


// Package bbolt is the bbolt implementation of the structured cache tier
package bbolt

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"time"

	"github.com/trickstercache/tiercache/pkg/cache"
	"github.com/trickstercache/tiercache/pkg/cache/bbolt/options"
	"github.com/trickstercache/tiercache/pkg/cache/index"
	"github.com/trickstercache/tiercache/pkg/cache/status"
	"github.com/trickstercache/tiercache/pkg/observability/logging"
	"github.com/trickstercache/tiercache/pkg/observability/logging/logger"

	"go.etcd.io/bbolt"
)

// CacheClient implements the cache.Store interface
var _ cache.Store = &CacheClient{}

const tierName = "structured"

var (
	// entries maps identifier -> msgp-encoded index.Object
	bucketEntries = []byte("entries")
	// expires maps big-endian unix nanos ‖ identifier -> big-endian value size
	bucketExpires = []byte("expires")
	// categories maps category ‖ 0x00 ‖ identifier -> nothing
	bucketCategories = []byte("categories")
)

var buckets = [][]byte{bucketEntries, bucketExpires, bucketCategories}

var errNotConnected = errors.New("not connected")

// CacheClient describes a BBolt CacheClient
type CacheClient struct {
	Name   string
	Config *options.Options
	dbh    *bbolt.DB
}

// New returns a new bbolt cache as a cache.Store
func New(cacheName string, opts *options.Options) *CacheClient {
	if opts == nil {
		opts = options.New()
	}
	c := &CacheClient{
		Name:   cacheName,
		Config: opts,
	}
	return c
}

func (c *CacheClient) Close() error {
	if c.dbh == nil {
		return nil
	}
	err := c.dbh.Close()
	c.dbh = nil
	return err
}

// Connect opens the database file and creates the buckets when needed
func (c *CacheClient) Connect() error {
	var err error
	c.dbh, err = bbolt.Open(c.Config.Filename, 0o644, &bbolt.Options{Timeout: c.Config.OpenTimeout})
	if err != nil {
		return err
	}

	err = c.dbh.Update(func(tx *bbolt.Tx) error {
		for _, name := range buckets {
			if _, err2 := tx.CreateBucketIfNotExists(name); err2 != nil {
				return fmt.Errorf("create bucket: %w", err2)
			}
		}
		return nil
	})
	if err != nil {
		c.dbh.Close()
		c.dbh = nil
		return err
	}
	logger.Debug("bbolt cache setup", logging.Pairs{"name": c.Name, "cacheFile": c.Config.Filename})
	return nil
}

// Store upserts the object, replacing any prior row for the same key
func (c *CacheClient) Store(obj *index.Object) error {
	if c.dbh == nil {
		return cache.NewStorageIOError(tierName, "store", obj.Key, errNotConnected)
	}
	data, err := obj.MarshalPooled()
	if err != nil {
		return &cache.SerializationError{Namespace: obj.Category, Key: obj.Key, Err: err}
	}
	defer index.ReleaseBuffer(data)

	err = c.dbh.Update(func(tx *bbolt.Tx) error {
		if err := deleteObject(tx, obj.Key); err != nil {
			return err
		}
		if err := tx.Bucket(bucketEntries).Put([]byte(obj.Key), data); err != nil {
			return err
		}
		if err := tx.Bucket(bucketExpires).Put(expiresKey(obj.Expiration, obj.Key),
			sizeValue(obj.Size)); err != nil {
			return err
		}
		return tx.Bucket(bucketCategories).Put(categoryKey(obj.Category, obj.Key), []byte{})
	})
	return cache.NewStorageIOError(tierName, "store", obj.Key, err)
}

// Retrieve returns the live object for the key. A hit updates the stored
// access count and last access time.
func (c *CacheClient) Retrieve(cacheKey string, now time.Time) (*index.Object, status.LookupStatus, error) {
	if c.dbh == nil {
		return nil, status.LookupStatusError,
			cache.NewStorageIOError(tierName, "retrieve", cacheKey, errNotConnected)
	}
	var obj *index.Object
	ls := status.LookupStatusKeyMiss
	err := c.dbh.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket(bucketEntries)
		data := b.Get([]byte(cacheKey))
		if data == nil {
			return cache.ErrKNF
		}
		o, err := index.ObjectFromBytes(data)
		if err != nil {
			ls = status.LookupStatusError
			return &cache.CorruptEntryError{Tier: tierName, Key: cacheKey, Reason: err.Error()}
		}
		if o.Expired(now) {
			ls = status.LookupStatusExpired
			return cache.ErrKNF
		}
		o.Touch(now)
		obj = o
		ls = status.LookupStatusHit
		return b.Put([]byte(cacheKey), o.ToBytes())
	})
	switch {
	case err == nil:
		return obj, ls, nil
	case err == cache.ErrKNF:
		return nil, ls, err
	case ls == status.LookupStatusError:
		logger.Warn("removing corrupt structured tier entry",
			logging.Pairs{"cacheKey": cacheKey, "error": err})
		if rerr := c.Remove(cacheKey); rerr != nil {
			logger.Warn("failed to remove corrupt entry", logging.Pairs{"cacheKey": cacheKey, "error": rerr})
		}
		return nil, ls, err
	}
	return nil, status.LookupStatusError, cache.NewStorageIOError(tierName, "retrieve", cacheKey, err)
}

// Remove deletes the objects for the provided keys
func (c *CacheClient) Remove(cacheKeys ...string) error {
	if c.dbh == nil {
		return cache.NewStorageIOError(tierName, "remove", "", errNotConnected)
	}
	err := c.dbh.Update(func(tx *bbolt.Tx) error {
		for _, cacheKey := range cacheKeys {
			if err := deleteObject(tx, cacheKey); err != nil {
				return err
			}
		}
		return nil
	})
	return cache.NewStorageIOError(tierName, "remove", "", err)
}

// RemoveCategory deletes every object stored under the category
func (c *CacheClient) RemoveCategory(category string) (int, error) {
	if c.dbh == nil {
		return 0, cache.NewStorageIOError(tierName, "remove category", "", errNotConnected)
	}
	var n int
	prefix := categoryKey(category, "")
	err := c.dbh.Update(func(tx *bbolt.Tx) error {
		ib := tx.Bucket(bucketCategories)
		var keys [][]byte
		cur := ib.Cursor()
		for k, _ := cur.Seek(prefix); k != nil && bytes.HasPrefix(k, prefix); k, _ = cur.Next() {
			keys = append(keys, append([]byte(nil), k...))
		}
		for _, k := range keys {
			if err := deleteObject(tx, string(k[len(prefix):])); err != nil {
				return err
			}
			// the index key may outlive an undecodable row
			if err := ib.Delete(k); err != nil {
				return err
			}
		}
		n = len(keys)
		return nil
	})
	if err != nil {
		return 0, cache.NewStorageIOError(tierName, "remove category", "", err)
	}
	return n, nil
}

// RemoveExpired deletes every object that is no longer live at now
func (c *CacheClient) RemoveExpired(now time.Time) (int, error) {
	if c.dbh == nil {
		return 0, cache.NewStorageIOError(tierName, "remove expired", "", errNotConnected)
	}
	var n int
	cutoff := uint64(now.UnixNano())
	err := c.dbh.Update(func(tx *bbolt.Tx) error {
		ib := tx.Bucket(bucketExpires)
		var keys [][]byte
		cur := ib.Cursor()
		for k, _ := cur.First(); k != nil; k, _ = cur.Next() {
			if len(k) < 8 || binary.BigEndian.Uint64(k[:8]) > cutoff {
				break
			}
			keys = append(keys, append([]byte(nil), k...))
		}
		for _, k := range keys {
			if err := deleteObject(tx, string(k[8:])); err != nil {
				return err
			}
			if err := ib.Delete(k); err != nil {
				return err
			}
		}
		n = len(keys)
		return nil
	})
	if err != nil {
		return 0, cache.NewStorageIOError(tierName, "remove expired", "", err)
	}
	return n, nil
}

// Usage returns the count and total value size of the stored objects
func (c *CacheClient) Usage() (int64, int64, error) {
	if c.dbh == nil {
		return 0, 0, cache.NewStorageIOError(tierName, "usage", "", errNotConnected)
	}
	var count, size int64
	err := c.dbh.View(func(tx *bbolt.Tx) error {
		return tx.Bucket(bucketExpires).ForEach(func(_, v []byte) error {
			count++
			if len(v) == 8 {
				size += int64(binary.BigEndian.Uint64(v))
			}
			return nil
		})
	})
	if err != nil {
		return 0, 0, cache.NewStorageIOError(tierName, "usage", "", err)
	}
	return count, size, nil
}

// deleteObject removes the entry and its index keys. A row that no longer
// decodes is removed along with whatever index keys can be found.
func deleteObject(tx *bbolt.Tx, cacheKey string) error {
	b := tx.Bucket(bucketEntries)
	data := b.Get([]byte(cacheKey))
	if data == nil {
		return nil
	}
	if o, err := index.ObjectFromBytes(data); err == nil {
		if err := tx.Bucket(bucketExpires).Delete(expiresKey(o.Expiration, cacheKey)); err != nil {
			return err
		}
		if err := tx.Bucket(bucketCategories).Delete(categoryKey(o.Category, cacheKey)); err != nil {
			return err
		}
	} else {
		logger.Warn("removing undecodable structured tier row",
			logging.Pairs{"cacheKey": cacheKey, "error": err})
	}
	return b.Delete([]byte(cacheKey))
}

func expiresKey(t time.Time, cacheKey string) []byte {
	k := make([]byte, 8, 8+len(cacheKey))
	binary.BigEndian.PutUint64(k, uint64(t.UnixNano()))
	return append(k, cacheKey...)
}

func categoryKey(category, cacheKey string) []byte {
	k := make([]byte, 0, len(category)+1+len(cacheKey))
	k = append(k, category...)
	k = append(k, 0)
	return append(k, cacheKey...)
}

func sizeValue(size int64) []byte {
	v := make([]byte, 8)
	binary.BigEndian.PutUint64(v, uint64(size))
	return v
}
