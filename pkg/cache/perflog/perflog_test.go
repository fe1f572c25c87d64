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


package perflog

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

var testNow = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

func TestLog(t *testing.T) {
	buf := &bytes.Buffer{}
	l := NewWriter(buf)
	require.NoError(t, l.Log(testNow, L2Set, "database", "q1", 2048))
	require.NoError(t, l.Log(testNow, Miss, "files", "a,b", 0))
	require.NoError(t, l.Close())

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 2)
	require.Equal(t, "2024-03-01T12:00:00Z,L2_SET,database,q1,2048", lines[0])
	// fields containing the separator are quoted
	require.Equal(t, `2024-03-01T12:00:00Z,MISS,files,"a,b",0`, lines[1])
}

func TestLogFile(t *testing.T) {
	fn := filepath.Join(t.TempDir(), "performance.log")
	l := New(fn)
	require.NoError(t, l.Log(testNow, L1Hit, "static", "logo", 0))
	require.NoError(t, l.Close())

	// appends across reopen
	l = New(fn)
	require.NoError(t, l.Log(testNow, L1Set, "static", "logo", 10))
	require.NoError(t, l.Close())

	b, err := os.ReadFile(fn)
	require.NoError(t, err)
	require.Equal(t, 2, strings.Count(string(b), "\n"))
	require.Contains(t, string(b), "L1_SET,static,logo,10")
}

func TestOperationsByTier(t *testing.T) {
	require.Equal(t, []Operation{"L1_HIT", "L2_HIT", "L3_HIT"}, Hits)
	require.Equal(t, []Operation{"L1_SET", "L2_SET", "L3_SET"}, Sets)
}
