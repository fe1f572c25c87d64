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
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"time"

	"github.com/trickstercache/tiercache/pkg/cache/manager"
	co "github.com/trickstercache/tiercache/pkg/cache/options"
	"github.com/trickstercache/tiercache/pkg/config"
	"github.com/trickstercache/tiercache/pkg/observability/logging"
	"github.com/trickstercache/tiercache/pkg/observability/logging/logger"
)

const (
	exitOK   = 0
	exitMiss = 1
	exitErr  = 2
)

var errUsage = errors.New("invalid arguments")

type command func(m *manager.Manager, args []string, stdin io.Reader, stdout io.Writer) (int, error)

var commands = map[string]command{
	"get":        runGet,
	"set":        runSet,
	"invalidate": runInvalidate,
	"cleanup":    runCleanup,
	"stats":      runStats,
}

func run(args []string, stdin io.Reader, stdout, stderr io.Writer) int {
	flags, err := parseFlags(args, stderr)
	if err != nil {
		return exitErr
	}
	if flags.PrintVersion {
		fmt.Fprintln(stdout, version())
		return exitOK
	}
	if len(flags.Args) == 0 {
		printUsage(stderr)
		return exitErr
	}
	cmd, ok := commands[flags.Args[0]]
	if !ok {
		fmt.Fprintf(stderr, "unknown command: %s\n", flags.Args[0])
		printUsage(stderr)
		return exitErr
	}

	cfg, err := config.Load(flags.ConfigPath)
	if flags.LogLevel != "" {
		cfg.Logging.LogLevel = flags.LogLevel
	}
	log := logging.New(cfg.Logging)
	defer log.Close()
	logger.SetLogger(log)
	if err != nil {
		var cle *co.ConfigLoadError
		if errors.As(err, &cle) {
			logger.Warn("configuration could not be loaded, using defaults",
				logging.Pairs{"path": cle.Path, "detail": cle.Err.Error()})
		}
	}
	if flags.CacheDir != "" {
		cfg.Cache.CacheDir = flags.CacheDir
	}
	// each invocation is a new process: the memory tier would not outlive it,
	// so small values go to the structured tier, and no background sweep runs
	cfg.Cache.MaxMemoryEntries = 0
	cfg.Cache.AutoCleanup = false

	m, err := manager.New(cfg.Cache)
	if err != nil {
		fmt.Fprintf(stderr, "could not open cache: %v\n", err)
		return exitErr
	}
	defer m.Close()

	rc, err := cmd(m, flags.Args[1:], stdin, stdout)
	if err != nil {
		fmt.Fprintf(stderr, "%s: %v\n", flags.Args[0], err)
		if errors.Is(err, errUsage) {
			printUsage(stderr)
		}
	}
	return rc
}

func runGet(m *manager.Manager, args []string, _ io.Reader, stdout io.Writer) (int, error) {
	if len(args) < 2 {
		return exitErr, errUsage
	}
	b, ok := m.Get(args[0], args[1], args[2:]...)
	if !ok {
		return exitMiss, nil
	}
	if _, err := stdout.Write(b); err != nil {
		return exitErr, err
	}
	return exitOK, nil
}

func runSet(m *manager.Manager, args []string, stdin io.Reader, _ io.Writer) (int, error) {
	fs := flag.NewFlagSet("set", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	ttl := fs.Duration(cfTTL, 0, "time to live; the namespace default when unset")
	if err := fs.Parse(args); err != nil {
		return exitErr, fmt.Errorf("%w: %v", errUsage, err)
	}
	args = fs.Args()
	if len(args) < 3 {
		return exitErr, errUsage
	}
	value := []byte(args[2])
	if args[2] == "-" {
		b, err := io.ReadAll(stdin)
		if err != nil {
			return exitErr, err
		}
		value = b
	}
	if err := m.Set(args[0], args[1], value, *ttl, args[3:]...); err != nil {
		return exitErr, err
	}
	return exitOK, nil
}

func runInvalidate(m *manager.Manager, args []string, _ io.Reader, _ io.Writer) (int, error) {
	var err error
	switch len(args) {
	case 0:
		return exitErr, errUsage
	case 1:
		err = m.InvalidateNamespace(args[0])
	default:
		err = m.Invalidate(args[0], args[1], args[2:]...)
	}
	if err != nil {
		return exitErr, err
	}
	return exitOK, nil
}

func runCleanup(m *manager.Manager, _ []string, _ io.Reader, _ io.Writer) (int, error) {
	start := time.Now()
	before := m.Stats()
	if err := m.CleanupExpired(); err != nil {
		return exitErr, err
	}
	after := m.Stats()
	logger.Info("cache cleanup complete", logging.Pairs{
		"removed": entries(before) - entries(after),
		"elapsed": time.Since(start).String(),
	})
	return exitOK, nil
}

func runStats(m *manager.Manager, _ []string, _ io.Reader, stdout io.Writer) (int, error) {
	enc := json.NewEncoder(stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(m.Stats()); err != nil {
		return exitErr, err
	}
	return exitOK, nil
}

func entries(s manager.Statistics) int64 {
	return s.MemoryEntries + s.DatabaseEntries + s.FileEntries
}
