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

const (
	// DefaultMaxMemoryMB is the default memory budget of the memory tier
	DefaultMaxMemoryMB = 100
	// EntriesPerMB is the number of entries budgeted per MB of memory
	EntriesPerMB = 1024
)

// Options holds memory-tier-specific configuration.
type Options struct {
	// MaxEntries is the maximum number of objects held by the memory tier.
	// Zero disables the tier: every stored object is evicted immediately.
	MaxEntries int
}

// New returns a new Options with default values set.
func New() *Options {
	return &Options{
		MaxEntries: DefaultMaxMemoryMB * EntriesPerMB,
	}
}

// Equal returns true if all members of the subject and provided Options are identical.
func (o *Options) Equal(o2 *Options) bool {
	if o2 == nil {
		return false
	}
	return o.MaxEntries == o2.MaxEntries
}
