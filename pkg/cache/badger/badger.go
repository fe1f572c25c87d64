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


// Package badger is the BadgerDB implementation of the structured cache tier
package badger

import (
	"encoding/binary"
	"errors"
	"fmt"
	"time"

	"github.com/trickstercache/tiercache/pkg/cache"
	"github.com/trickstercache/tiercache/pkg/cache/badger/options"
	"github.com/trickstercache/tiercache/pkg/cache/index"
	"github.com/trickstercache/tiercache/pkg/cache/status"
	"github.com/trickstercache/tiercache/pkg/observability/logging"
	"github.com/trickstercache/tiercache/pkg/observability/logging/logger"

	"github.com/dgraph-io/badger/v4"
)

var (
	// CacheClient implements the cache.Store interface
	_ cache.Store = &CacheClient{}
)

const tierName = "structured"

// keyspace prefixes
var (
	prefixEntries    = []byte("e/")
	prefixExpires    = []byte("x/")
	prefixCategories = []byte("c/")
)

var errNotConnected = errors.New("not connected")

// CacheClient describes a Badger CacheClient
type CacheClient struct {
	Name   string
	Config *options.Options
	dbh    *badger.DB
}

func New(name string, cfg *options.Options) *CacheClient {
	if cfg == nil {
		cfg = options.New()
	}
	c := &CacheClient{
		Name:   name,
		Config: cfg,
	}
	return c
}

// Connect opens the configured Badger key-value store
func (c *CacheClient) Connect() error {
	opts := badger.DefaultOptions(c.Config.Directory).
		WithValueDir(c.Config.ValueDirectory).
		WithLogger(badgerLogger{name: c.Name})

	var err error
	c.dbh, err = badger.Open(opts)
	if err != nil {
		return err
	}
	return nil
}

func (c *CacheClient) Close() error {
	if c.dbh == nil {
		return nil
	}
	err := c.dbh.Close()
	c.dbh = nil
	return err
}

// Store upserts the object, replacing any prior row for the same key
func (c *CacheClient) Store(obj *index.Object) error {
	if c.dbh == nil {
		return cache.NewStorageIOError(tierName, "store", obj.Key, errNotConnected)
	}
	data, err := obj.MarshalMsg(nil)
	if err != nil {
		return &cache.SerializationError{Namespace: obj.Category, Key: obj.Key, Err: err}
	}
	err = c.dbh.Update(func(txn *badger.Txn) error {
		if err := deleteObject(txn, obj.Key); err != nil {
			return err
		}
		if err := txn.Set(entryKey(obj.Key), data); err != nil {
			return err
		}
		if err := txn.Set(expiresKey(obj.Expiration, obj.Key), sizeValue(obj.Size)); err != nil {
			return err
		}
		return txn.Set(categoryKey(obj.Category, obj.Key), []byte{})
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
	err := c.dbh.Update(func(txn *badger.Txn) error {
		item, err := txn.Get(entryKey(cacheKey))
		if err != nil {
			if errors.Is(err, badger.ErrKeyNotFound) {
				return cache.ErrKNF
			}
			return err
		}
		data, err := item.ValueCopy(nil)
		if err != nil {
			return err
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
		return txn.Set(entryKey(cacheKey), o.ToBytes())
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

func (c *CacheClient) Remove(cacheKeys ...string) error {
	if c.dbh == nil {
		return cache.NewStorageIOError(tierName, "remove", "", errNotConnected)
	}
	err := c.dbh.Update(func(txn *badger.Txn) error {
		for _, cacheKey := range cacheKeys {
			if err := deleteObject(txn, cacheKey); err != nil {
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
	err := c.dbh.Update(func(txn *badger.Txn) error {
		keys := scanKeys(txn, prefix, nil)
		for _, k := range keys {
			if err := deleteObject(txn, string(k[len(prefix):])); err != nil {
				return err
			}
			if err := txn.Delete(k); err != nil {
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
	plen := len(prefixExpires)
	err := c.dbh.Update(func(txn *badger.Txn) error {
		keys := scanKeys(txn, prefixExpires, func(k []byte) bool {
			return len(k) >= plen+8 && binary.BigEndian.Uint64(k[plen:plen+8]) <= cutoff
		})
		for _, k := range keys {
			if err := deleteObject(txn, string(k[plen+8:])); err != nil {
				return err
			}
			if err := txn.Delete(k); err != nil {
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
	err := c.dbh.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.IteratorOptions{Prefix: prefixExpires, PrefetchValues: true})
		defer it.Close()
		for it.Rewind(); it.Valid(); it.Next() {
			count++
			err := it.Item().Value(func(v []byte) error {
				if len(v) == 8 {
					size += int64(binary.BigEndian.Uint64(v))
				}
				return nil
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return 0, 0, cache.NewStorageIOError(tierName, "usage", "", err)
	}
	return count, size, nil
}

// scanKeys returns copies of the keys under prefix, in order, while accept
// returns true. A nil accept takes every key.
func scanKeys(txn *badger.Txn, prefix []byte, accept func([]byte) bool) [][]byte {
	it := txn.NewIterator(badger.IteratorOptions{Prefix: prefix})
	defer it.Close()
	var keys [][]byte
	for it.Rewind(); it.Valid(); it.Next() {
		k := it.Item().KeyCopy(nil)
		if accept != nil && !accept(k) {
			break
		}
		keys = append(keys, k)
	}
	return keys
}

func deleteObject(txn *badger.Txn, cacheKey string) error {
	item, err := txn.Get(entryKey(cacheKey))
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	data, err := item.ValueCopy(nil)
	if err != nil {
		return err
	}
	if o, err := index.ObjectFromBytes(data); err == nil {
		if err := txn.Delete(expiresKey(o.Expiration, cacheKey)); err != nil {
			return err
		}
		if err := txn.Delete(categoryKey(o.Category, cacheKey)); err != nil {
			return err
		}
	} else {
		logger.Warn("removing undecodable structured tier row",
			logging.Pairs{"cacheKey": cacheKey, "error": err})
	}
	return txn.Delete(entryKey(cacheKey))
}

func entryKey(cacheKey string) []byte {
	k := make([]byte, 0, len(prefixEntries)+len(cacheKey))
	k = append(k, prefixEntries...)
	return append(k, cacheKey...)
}

func expiresKey(t time.Time, cacheKey string) []byte {
	k := make([]byte, len(prefixExpires)+8, len(prefixExpires)+8+len(cacheKey))
	copy(k, prefixExpires)
	binary.BigEndian.PutUint64(k[len(prefixExpires):], uint64(t.UnixNano()))
	return append(k, cacheKey...)
}

func categoryKey(category, cacheKey string) []byte {
	k := make([]byte, 0, len(prefixCategories)+len(category)+1+len(cacheKey))
	k = append(k, prefixCategories...)
	k = append(k, category...)
	k = append(k, 0)
	return append(k, cacheKey...)
}

func sizeValue(size int64) []byte {
	v := make([]byte, 8)
	binary.BigEndian.PutUint64(v, uint64(size))
	return v
}

// badgerLogger routes badger's internal logging to the package logger
type badgerLogger struct {
	name string
}

func (l badgerLogger) Errorf(f string, v ...interface{}) {
	logger.Error("badger", logging.Pairs{"cacheName": l.name, "detail": fmt.Sprintf(f, v...)})
}

func (l badgerLogger) Warningf(f string, v ...interface{}) {
	logger.Warn("badger", logging.Pairs{"cacheName": l.name, "detail": fmt.Sprintf(f, v...)})
}

func (l badgerLogger) Infof(f string, v ...interface{}) {
	logger.Debug("badger", logging.Pairs{"cacheName": l.name, "detail": fmt.Sprintf(f, v...)})
}

func (l badgerLogger) Debugf(f string, v ...interface{}) {
	logger.Debug("badger", logging.Pairs{"cacheName": l.name, "detail": fmt.Sprintf(f, v...)})
}
