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
	"os"
	"path/filepath"
	"testing"
	"time"

	co "github.com/trickstercache/tiercache/pkg/cache/options"
	"github.com/trickstercache/tiercache/pkg/cache/providers"
	ep "github.com/trickstercache/tiercache/pkg/encoding/providers"

	"github.com/stretchr/testify/require"
)

const testConfig = `
cache:
  cache_dir: ${TIERCACHE_TEST_ROOT}/cache
  ttl_default: 600
  ttl_database: 60
  ttl_translations: 604800
  auto_cleanup: false
  compression_provider: zstd
  structured_provider: badger
  max_memory_entries: 500
logging:
  log_level: debug
`

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	fn := filepath.Join(t.TempDir(), "tiercache.yaml")
	require.NoError(t, os.WriteFile(fn, []byte(body), 0o600))
	return fn
}

func TestLoad(t *testing.T) {
	t.Setenv("TIERCACHE_TEST_ROOT", "/var/lib/tiercache")
	c, err := Load(writeConfig(t, testConfig))
	require.NoError(t, err)

	require.Equal(t, "/var/lib/tiercache/cache", c.Cache.CacheDir)
	require.Equal(t, 10*time.Minute, c.Cache.TTL("unknown"))
	require.Equal(t, time.Minute, c.Cache.TTL("database"))
	require.Equal(t, 7*24*time.Hour, c.Cache.TTL("translations"))
	// built-in namespace defaults survive a partial override
	require.Equal(t, 2*time.Hour, c.Cache.TTL("scripts"))
	require.False(t, c.Cache.AutoCleanup)
	require.True(t, c.Cache.Compression)
	require.Equal(t, ep.Zstandard, c.Cache.CompressionProviderID)
	require.Equal(t, providers.BadgerDBID, c.Cache.StructuredProviderID)
	require.Equal(t, 500, c.Cache.MaxEntries())
	require.Equal(t, "debug", c.Logging.LogLevel)
	require.Equal(t, "", c.Logging.LogFile)
}

func TestLoadMissingFile(t *testing.T) {
	c, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)
	require.True(t, c.Cache.Equal(co.New()))
	require.Equal(t, "info", c.Logging.LogLevel)
}

func TestLoadFallsBackToDefaults(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"unparsable", "cache: [1, 2"},
		{"wrong type", "cache:\n  ttl_default: soon\n"},
		{"invalid", "cache:\n  ttl_default: -1\n"},
		{"unknown provider", "cache:\n  structured_provider: redis\n"},
		{"bad namespace ttl", "cache:\n  ttl_static: forever\n"},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			fn := writeConfig(t, test.body)
			c, err := Load(fn)
			var cle *co.ConfigLoadError
			require.True(t, errors.As(err, &cle))
			require.Equal(t, fn, cle.Path)
			require.NotNil(t, c)
			require.True(t, c.Cache.Equal(co.New()))
		})
	}
}

func TestLoadUnreadable(t *testing.T) {
	// a directory cannot be read as a file
	dir := t.TempDir()
	c, err := Load(dir)
	var cle *co.ConfigLoadError
	require.True(t, errors.As(err, &cle))
	require.Equal(t, co.New().CacheDir, c.Cache.CacheDir)
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("TIERCACHE_DIR", "/tmp/tiercache-env")
	t.Setenv("TIERCACHE_LOG_LEVEL", "warn")
	t.Setenv("TIERCACHE_LOG_FILE", "/tmp/tiercache.log")
	t.Setenv("TIERCACHE_TEST_ROOT", "/ignored")

	c, err := Load(writeConfig(t, testConfig))
	require.NoError(t, err)
	require.Equal(t, "/tmp/tiercache-env", c.Cache.CacheDir)
	require.Equal(t, "warn", c.Logging.LogLevel)
	require.Equal(t, "/tmp/tiercache.log", c.Logging.LogFile)

	// env vars also apply over the defaults of a missing file
	c, err = Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)
	require.Equal(t, "/tmp/tiercache-env", c.Cache.CacheDir)
}

func TestCloneAndString(t *testing.T) {
	c := NewConfig()
	c2 := c.Clone()
	require.True(t, c.Cache.Equal(c2.Cache))
	c2.Cache.CacheDir = "elsewhere"
	require.False(t, c.Cache.Equal(c2.Cache))
	require.Contains(t, c.String(), "cache_dir: ./cache")
	require.Contains(t, c.String(), "log_level: info")
}
