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


// Package config provides tiercache configuration abilities, including
// parsing configuration files and environment variables, as well as
// default values
package config

import (
	co "github.com/trickstercache/tiercache/pkg/cache/options"
	lo "github.com/trickstercache/tiercache/pkg/observability/logging/options"

	"gopkg.in/yaml.v2"
)

// DefaultConfigPath is the configuration file read when no path is provided
const DefaultConfigPath = "tiercache.yaml"

// Config is the main configuration object
type Config struct {
	// Cache configures the tiered cache
	Cache *co.Options `yaml:"cache,omitempty"`
	// Logging provides configurations that affect logging behavior
	Logging *lo.Options `yaml:"logging,omitempty"`
}

// NewConfig returns a Config initialized with default values
func NewConfig() *Config {
	return &Config{
		Cache:   co.New(),
		Logging: lo.New(),
	}
}

// Clone returns an exact copy of the Config
func (c *Config) Clone() *Config {
	return &Config{
		Cache:   c.Cache.Clone(),
		Logging: c.Logging.Clone(),
	}
}

// String returns the Config rendered as YAML
func (c *Config) String() string {
	b, err := yaml.Marshal(c)
	if err != nil {
		return ""
	}
	return string(b)
}
