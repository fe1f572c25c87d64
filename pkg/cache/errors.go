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


package cache

import (
	"fmt"
)

// SerializationError is returned when a value cannot be encoded for storage
type SerializationError struct {
	Namespace string
	Key       string
	Err       error
}

func (e *SerializationError) Error() string {
	return fmt.Sprintf("cannot serialize value for %s/%s: %v", e.Namespace, e.Key, e.Err)
}

func (e *SerializationError) Unwrap() error {
	return e.Err
}

// StorageIOError is returned when a tier's underlying storage fails
type StorageIOError struct {
	Tier string
	Op   string
	Key  string
	Err  error
}

func (e *StorageIOError) Error() string {
	if e.Key == "" {
		return fmt.Sprintf("%s tier %s failed: %v", e.Tier, e.Op, e.Err)
	}
	return fmt.Sprintf("%s tier %s failed for key %s: %v", e.Tier, e.Op, e.Key, e.Err)
}

func (e *StorageIOError) Unwrap() error {
	return e.Err
}

// NewStorageIOError wraps err as a StorageIOError, or returns nil when err is nil
func NewStorageIOError(tier, op, key string, err error) error {
	if err == nil {
		return nil
	}
	return &StorageIOError{Tier: tier, Op: op, Key: key, Err: err}
}

// CorruptEntryError is returned when a stored entry cannot be read back consistently
type CorruptEntryError struct {
	Tier   string
	Key    string
	Reason string
}

func (e *CorruptEntryError) Error() string {
	return fmt.Sprintf("corrupt %s tier entry %s: %s", e.Tier, e.Key, e.Reason)
}

// Unwrap makes a corrupt entry match ErrKNF, since callers treat it as a miss
func (e *CorruptEntryError) Unwrap() error {
	return ErrKNF
}
