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


// Package index defines the Cache Object, the record shared by all cache tiers
package index

import (
	"bytes"
	"time"
)

// Object contains a cached value and its metadata
type Object struct {
	// Key is the identifier of the Object within its tier
	Key string `msg:"key"`
	// Category is the namespace the Object was written under
	Category string `msg:"category"`
	// Expiration represents the time that the Object expires from Cache
	Expiration time.Time `msg:"expiration"`
	// LastWrite is the time the object was last Written
	LastWrite time.Time `msg:"lastwrite"`
	// LastAccess is the time the object was last Accessed
	LastAccess time.Time `msg:"lastaccess"`
	// Size the size of the Object in bytes
	Size int64 `msg:"size"`
	// AccessCount is the number of hits the Object has served from its tier
	AccessCount uint64 `msg:"access_count"`
	// Value is the value of the Object stored in the Cache
	Value []byte `msg:"value,omitempty"`
}

// New returns a new Object for the provided key and value, written at now
func New(key, category string, value []byte, now, expiration time.Time) *Object {
	return &Object{
		Key:        key,
		Category:   category,
		Value:      value,
		Size:       int64(len(value)),
		LastWrite:  now,
		LastAccess: now,
		Expiration: expiration,
	}
}

// Expired returns true if the Object is no longer live at the provided time
func (o *Object) Expired(now time.Time) bool {
	return !now.Before(o.Expiration)
}

// Touch records a hit against the Object
func (o *Object) Touch(now time.Time) {
	o.LastAccess = now
	o.AccessCount++
}

// Clone returns a copy of the Object that shares no memory with the original
func (o *Object) Clone() *Object {
	c := *o
	if o.Value != nil {
		c.Value = make([]byte, len(o.Value))
		copy(c.Value, o.Value)
	}
	return &c
}

// Equal returns true if every field of other matches the Object
func (o *Object) Equal(other *Object) bool {
	return o.Key == other.Key &&
		o.Category == other.Category &&
		o.Expiration.Equal(other.Expiration) &&
		o.LastWrite.Equal(other.LastWrite) &&
		o.LastAccess.Equal(other.LastAccess) &&
		o.Size == other.Size &&
		o.AccessCount == other.AccessCount &&
		bytes.Equal(o.Value, other.Value)
}

// ToBytes returns a serialized byte slice representing the Object
func (o *Object) ToBytes() []byte {
	bytes, _ := o.MarshalMsg(nil)
	return bytes
}

// ObjectFromBytes returns a deserialized Cache Object from a serialized byte slice
func ObjectFromBytes(data []byte) (*Object, error) {
	o := &Object{}
	_, err := o.UnmarshalMsg(data)
	return o, err
}
