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
	"flag"
	"io"
)

const (
	// Command-line flags
	cfConfig   = "config"
	cfDir      = "dir"
	cfLogLevel = "log-level"
	cfVersion  = "version"
	cfTTL      = "ttl"
)

// Flags holds the values for whitelisted flags
type Flags struct {
	PrintVersion bool
	ConfigPath   string
	CacheDir     string
	LogLevel     string
	// Args are the command and its arguments
	Args []string
}

func parseFlags(arguments []string, stderr io.Writer) (*Flags, error) {
	flags := &Flags{}
	flagSet := flag.NewFlagSet(applicationName, flag.ContinueOnError)
	flagSet.SetOutput(stderr)
	flagSet.Usage = func() { printUsage(stderr) }

	flagSet.BoolVar(&flags.PrintVersion, cfVersion, false,
		"Prints the tiercache version")
	flagSet.StringVar(&flags.ConfigPath, cfConfig, "",
		"Path to tiercache Config File")
	flagSet.StringVar(&flags.CacheDir, cfDir, "",
		"Cache directory, overriding the configured cache_dir")
	flagSet.StringVar(&flags.LogLevel, cfLogLevel, "",
		"Level of Logging to use (debug, info, warn, error, none)")

	if err := flagSet.Parse(arguments); err != nil {
		return nil, err
	}
	flags.Args = flagSet.Args()
	return flags, nil
}
