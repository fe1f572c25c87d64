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


package main

import (
	"bytes"
	"encoding/json"
	"path/filepath"
	"strings"
	"testing"

	"github.com/trickstercache/tiercache/pkg/cache/manager"

	"github.com/stretchr/testify/require"
)

type testEnv struct {
	dir string
	cfg string
}

func newTestEnv(t *testing.T) *testEnv {
	d := t.TempDir()
	return &testEnv{dir: filepath.Join(d, "cache"), cfg: filepath.Join(d, "absent.yaml")}
}

func (e *testEnv) run(stdin string, args ...string) (int, string, string) {
	stdout, stderr := &bytes.Buffer{}, &bytes.Buffer{}
	args = append([]string{"-config", e.cfg, "-dir", e.dir, "-log-level", "none"}, args...)
	rc := run(args, strings.NewReader(stdin), stdout, stderr)
	return rc, stdout.String(), stderr.String()
}

func TestSetGetAcrossInvocations(t *testing.T) {
	e := newTestEnv(t)
	rc, _, stderr := e.run("", "set", "database", "q1", `{"rows":42}`)
	require.Equal(t, exitOK, rc, stderr)

	rc, stdout, _ := e.run("", "get", "database", "q1")
	require.Equal(t, exitOK, rc)
	require.Equal(t, `{"rows":42}`, stdout)

	rc, stdout, _ = e.run("", "get", "database", "q2")
	require.Equal(t, exitMiss, rc)
	require.Equal(t, "", stdout)
}

func TestSetFromStdinWithTTL(t *testing.T) {
	e := newTestEnv(t)
	big := strings.Repeat("x", 2*1024*1024)
	rc, _, stderr := e.run(big, "set", "-ttl", "1h", "files", "big", "-", "v2")
	require.Equal(t, exitOK, rc, stderr)

	rc, stdout, _ := e.run("", "get", "files", "big", "v2")
	require.Equal(t, exitOK, rc)
	require.Equal(t, len(big), len(stdout))

	rc, stdout, _ = e.run("", "stats")
	require.Equal(t, exitOK, rc)
	var st manager.Statistics
	require.NoError(t, json.Unmarshal([]byte(stdout), &st))
	require.Equal(t, int64(1), st.FileEntries)
	require.Equal(t, int64(0), st.MemoryEntries)
}

func TestInvalidateAndCleanup(t *testing.T) {
	e := newTestEnv(t)
	for _, k := range []string{"a", "b"} {
		rc, _, _ := e.run("", "set", "static", k, "v")
		require.Equal(t, exitOK, rc)
	}
	rc, _, _ := e.run("", "set", "scripts", "s", "v")
	require.Equal(t, exitOK, rc)

	rc, _, _ = e.run("", "invalidate", "static", "a")
	require.Equal(t, exitOK, rc)
	rc, _, _ = e.run("", "get", "static", "a")
	require.Equal(t, exitMiss, rc)
	rc, _, _ = e.run("", "get", "static", "b")
	require.Equal(t, exitOK, rc)

	rc, _, _ = e.run("", "invalidate", "static")
	require.Equal(t, exitOK, rc)
	rc, _, _ = e.run("", "get", "static", "b")
	require.Equal(t, exitMiss, rc)
	rc, _, _ = e.run("", "get", "scripts", "s")
	require.Equal(t, exitOK, rc)

	rc, _, _ = e.run("", "cleanup")
	require.Equal(t, exitOK, rc)
	rc, _, _ = e.run("", "get", "scripts", "s")
	require.Equal(t, exitOK, rc)
}

func TestUsageErrors(t *testing.T) {
	e := newTestEnv(t)
	rc, _, stderr := e.run("")
	require.Equal(t, exitErr, rc)
	require.Contains(t, stderr, "Commands:")

	rc, _, stderr = e.run("", "frobnicate")
	require.Equal(t, exitErr, rc)
	require.Contains(t, stderr, "unknown command: frobnicate")

	rc, _, stderr = e.run("", "get", "database")
	require.Equal(t, exitErr, rc)
	require.Contains(t, stderr, "invalid arguments")

	rc, _, _ = e.run("", "set", "-ttl", "soon", "a", "b", "c")
	require.Equal(t, exitErr, rc)

	rc, _, _ = e.run("", "invalidate")
	require.Equal(t, exitErr, rc)

	rc = run([]string{"-no-such-flag"}, nil, &bytes.Buffer{}, &bytes.Buffer{})
	require.Equal(t, exitErr, rc)
}

func TestVersion(t *testing.T) {
	stdout := &bytes.Buffer{}
	rc := run([]string{"-version"}, nil, stdout, &bytes.Buffer{})
	require.Equal(t, exitOK, rc)
	require.True(t, strings.HasPrefix(stdout.String(), "tiercache version: 1.0.0"))
}
