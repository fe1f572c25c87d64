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


// Package key derives the cache identifier for a namespace, key and
// optional extra arguments
package key

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

// Length is the number of hex characters in an identifier
const Length = 32

const separator = ":"

// Identifier returns a stable, fixed-length identifier for the provided inputs.
// Order of extraArgs is significant and empty strings are ordinary values.
func Identifier(namespace, key string, extraArgs ...string) string {
	var sb strings.Builder
	sb.Grow(len(namespace) + len(key) + 1)
	sb.WriteString(namespace)
	sb.WriteString(separator)
	sb.WriteString(key)
	if len(extraArgs) > 0 {
		sb.WriteString(separator)
		sb.WriteString(strings.Join(extraArgs, separator))
	}
	sum := sha256.Sum256([]byte(sb.String()))
	return hex.EncodeToString(sum[:])[:Length]
}
