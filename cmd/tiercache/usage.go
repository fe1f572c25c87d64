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
	"fmt"
	"io"
	"runtime"

	"github.com/trickstercache/tiercache/pkg/appinfo"
)

const usageText = `
tiercache Usage:

 tiercache [-config file] [-dir path] [-log-level level] <command> [arguments]

 Commands:
  get <namespace> <key> [extra...]                   print the cached value; exits 1 on a miss
  set [-ttl duration] <namespace> <key> <value|-> [extra...]
                                                     store a value; "-" reads it from stdin
  invalidate <namespace> [key [extra...]]            remove a key, or the whole namespace
  cleanup                                            remove every expired object
  stats                                              print cache statistics as JSON

 Print Version Info:
  tiercache -version
`

func version() string {
	return fmt.Sprintf("%s, goVersion: %s", appinfo.String(), runtime.Version())
}

func printUsage(w io.Writer) {
	fmt.Fprintln(w)
	fmt.Fprintln(w, version())
	fmt.Fprint(w, usageText, "\n")
}
