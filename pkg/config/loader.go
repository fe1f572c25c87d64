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


package config

import (
	"errors"
	"io/fs"
	"os"

	co "github.com/trickstercache/tiercache/pkg/cache/options"
	lo "github.com/trickstercache/tiercache/pkg/observability/logging/options"

	"gopkg.in/yaml.v2"
)

// Load returns the Application Configuration, starting with a default config,
// then overriding with the provided config file, and finally env vars.
//
// A missing file is not an error. A file that cannot be read, parsed or
// validated yields the default configuration and a *options.ConfigLoadError,
// so the caller can warn and carry on.
func Load(path string) (*Config, error) {
	if path == "" {
		path = DefaultConfigPath
	}
	c, err := loadFile(path)
	if err != nil {
		c = NewConfig()
	}
	c.loadEnvVars()
	if err2 := c.Cache.Initialize(); err2 != nil {
		// an env override made the configuration unusable
		c.Cache = co.New()
		if err == nil {
			err = &co.ConfigLoadError{Path: path, Err: err2}
		}
	}
	return c, err
}

func loadFile(path string) (*Config, error) {
	c := NewConfig()
	b, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return c, nil
	}
	if err != nil {
		return nil, &co.ConfigLoadError{Path: path, Err: err}
	}
	if err := yaml.Unmarshal(b, c); err != nil {
		return nil, &co.ConfigLoadError{Path: path, Err: err}
	}
	if c.Cache == nil {
		c.Cache = co.New()
	}
	if c.Logging == nil {
		c.Logging = lo.New()
	}
	if c.Logging.LogLevel == "" {
		c.Logging.LogLevel = lo.DefaultLogLevel
	}
	c.Cache.CacheDir = os.ExpandEnv(c.Cache.CacheDir)
	c.Logging.LogFile = os.ExpandEnv(c.Logging.LogFile)
	if err := c.Cache.Initialize(); err != nil {
		return nil, &co.ConfigLoadError{Path: path, Err: err}
	}
	return c, nil
}
