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


package key

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestIdentifier(t *testing.T) {
	id := Identifier("a", "b", "1", "2")
	require.Len(t, id, Length)
	require.Equal(t, id, Identifier("a", "b", "1", "2"))
	require.NotEqual(t, id, Identifier("a", "b", "2", "1"))
	require.NotEqual(t, id, Identifier("a", "b"))
}

func TestIdentifierKnownValue(t *testing.T) {
	cases := []struct {
		ns, key string
		extra   []string
		want    string
	}{
		{"a", "b", nil, "6783a31eabf68ccc0660f935c0826282"},
		{"database", "q1", nil, "44db5fe3c9fcb27fdc5948d411209b4b"},
		{"a", "b", []string{"1", "2"}, "31eff7a4c9bd5aeacaf6bee1aad4f3d6"},
	}
	for _, c := range cases {
		require.Equal(t, c.want, Identifier(c.ns, c.key, c.extra...))
	}
}

func TestIdentifierEmptyStrings(t *testing.T) {
	cases := [][]string{
		{"", ""},
		{"", "", ""},
		{"ns", ""},
		{"", "key"},
	}
	seen := make(map[string][]string)
	for _, c := range cases {
		id := Identifier(c[0], c[1], c[2:]...)
		require.Len(t, id, Length)
		if prev, ok := seen[id]; ok {
			t.Errorf("collision between %q and %q", prev, c)
		}
		seen[id] = c
	}
}

func TestIdentifierSeparatorAmbiguity(t *testing.T) {
	// the joined form is the hash input, so these are the same identifier
	require.Equal(t, Identifier("a", "b:c"), Identifier("a", "b", "c"))
}
