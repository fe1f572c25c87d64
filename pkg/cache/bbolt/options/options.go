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

import "time"

const (
	// DefaultFilename is the name of the structured store file within the cache directory
	DefaultFilename = "structured.store"
	// DefaultOpenTimeout is how long to wait for the database file lock
	DefaultOpenTimeout = 1 * time.Second
)

// Options is a collection of Configurations for storing cached data in a BBolt database
type Options struct {
	// Filename represents the filename (including path) of the BBolt database
	Filename string
	// OpenTimeout is how long Connect waits to obtain the database file lock
	OpenTimeout time.Duration
}

// New returns a reference to a new bbolt Options
func New() *Options {
	return &Options{Filename: DefaultFilename, OpenTimeout: DefaultOpenTimeout}
}
