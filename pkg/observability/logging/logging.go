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

// Package logging provides structured logging functionality to tiercache
package logging

import (
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"sync"

	"github.com/trickstercache/tiercache/pkg/observability/logging/level"
	"github.com/trickstercache/tiercache/pkg/observability/logging/options"

	"github.com/go-kit/log"
	kl "github.com/go-kit/log/level"
	"github.com/go-stack/stack"
	lumberjack "gopkg.in/natefinch/lumberjack.v2"
)

// Logger is the interface implemented by tiercache loggers
type Logger interface {
	Debug(event string, detail Pairs)
	Info(event string, detail Pairs)
	Warn(event string, detail Pairs)
	Error(event string, detail Pairs)
	WarnOnce(key string, event string, detail Pairs) bool
	HasWarnedOnce(key string) bool
	Level() level.Level
	Close()
}

// Pairs represents a key=value pair that helps to describe a log event
type Pairs map[string]interface{}

var _ Logger = &logger{}

// callerDepth is the stack depth of the code that called into the package-level
// logger, as seen from the go-kit Valuer
const callerDepth = 7

func mapToArray(event string, detail Pairs) []interface{} {
	a := make([]interface{}, 0, (len(detail)*2)+2)

	// Ensure the event description is the first Pair in the output order (after prefixes)
	a = append(a, "event", event)

	keys := make([]string, 0, len(detail))
	for k := range detail {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		a = append(a, k, detail[k])
	}
	return a
}

// New returns a Logger for the provided logging configuration.
// An empty LogFile logs to stdout; otherwise the file is rotated by lumberjack.
func New(o *options.Options) Logger {
	if o == nil {
		o = options.New()
	}
	var wr io.Writer
	if o.LogFile == "" {
		wr = os.Stdout
	} else {
		wr = &lumberjack.Logger{
			Filename:   o.LogFile,
			MaxSize:    256,  // megabytes
			MaxBackups: 80,   // 256 megs @ 80 backups is 20GB of Logs
			MaxAge:     7,    // days
			Compress:   true, // Compress Rolled Backups
		}
	}
	return StreamLogger(wr, level.Level(o.LogLevel))
}

// ConsoleLogger returns a Logger that prints log events to the Console
func ConsoleLogger(logLevel level.Level) Logger {
	return StreamLogger(os.Stdout, logLevel)
}

// StreamLogger returns a Logger that writes log events to the provided writer.
// If the writer is also an io.Closer, it is closed when the Logger is closed.
func StreamLogger(wr io.Writer, logLevel level.Level) Logger {
	l := &logger{
		onceRanEntries: make(map[string]bool),
	}

	gl := log.NewLogfmtLogger(log.NewSyncWriter(wr))
	gl = log.With(gl,
		"time", log.DefaultTimestampUTC,
		"app", "tiercache",
		"caller", log.Valuer(func() interface{} {
			return pkgCaller{stack.Caller(callerDepth)}
		}),
	)

	l.levelID = level.GetID(logLevel)
	if l.levelID == 0 {
		l.levelID = level.InfoID
	}
	l.level = level.Level(strings.ToLower(string(logLevel)))

	// wrap logger depending on log level
	switch l.levelID {
	case level.DebugID:
		gl = kl.NewFilter(gl, kl.AllowDebug())
	case level.WarnID:
		gl = kl.NewFilter(gl, kl.AllowWarn())
	case level.ErrorID:
		gl = kl.NewFilter(gl, kl.AllowError())
	case level.NoneID:
		gl = kl.NewFilter(gl, kl.AllowNone())
	default:
		l.level = level.Info
		gl = kl.NewFilter(gl, kl.AllowInfo())
	}

	l.logger = gl
	if c, ok := wr.(io.Closer); ok && c != nil && wr != os.Stdout && wr != os.Stderr {
		l.closer = c
	}
	return l
}

// NoopLogger returns a Logger that discards all events
func NoopLogger() Logger {
	return StreamLogger(io.Discard, level.None)
}

type logger struct {
	logger  log.Logger
	closer  io.Closer
	level   level.Level
	levelID level.ID

	onceMutex      sync.Mutex
	onceRanEntries map[string]bool
}

// Debug sends a "DEBUG" event to the Logger
func (l *logger) Debug(event string, detail Pairs) {
	kl.Debug(l.logger).Log(mapToArray(event, detail)...)
}

// Info sends an "INFO" event to the Logger
func (l *logger) Info(event string, detail Pairs) {
	kl.Info(l.logger).Log(mapToArray(event, detail)...)
}

// Warn sends a "WARN" event to the Logger
func (l *logger) Warn(event string, detail Pairs) {
	kl.Warn(l.logger).Log(mapToArray(event, detail)...)
}

// Error sends an "ERROR" event to the Logger
func (l *logger) Error(event string, detail Pairs) {
	kl.Error(l.logger).Log(mapToArray(event, detail)...)
}

// WarnOnce sends a "WARN" event to the Logger only once per key.
// Returns true if this invocation was the first, and thus sent to the Logger
func (l *logger) WarnOnce(key string, event string, detail Pairs) bool {
	l.onceMutex.Lock()
	defer l.onceMutex.Unlock()
	key = "warn." + key
	if _, ok := l.onceRanEntries[key]; !ok {
		l.onceRanEntries[key] = true
		l.Warn(event, detail)
		return true
	}
	return false
}

// HasWarnedOnce returns true if a warning for the key has already been sent to the Logger
func (l *logger) HasWarnedOnce(key string) bool {
	l.onceMutex.Lock()
	defer l.onceMutex.Unlock()
	_, ok := l.onceRanEntries["warn."+key]
	return ok
}

// Level returns the configured Log Level
func (l *logger) Level() level.Level {
	return l.level
}

// Close closes any opened file handles that were used for logging.
func (l *logger) Close() {
	if l.closer != nil {
		l.closer.Close()
	}
}

// pkgCaller wraps a stack.Call to make the default string output include the
// package path.
type pkgCaller struct {
	c stack.Call
}

// String returns a path from the call stack that is relative to the root of the project
func (pc pkgCaller) String() string {
	return strings.TrimPrefix(fmt.Sprintf("%+v", pc.c), "github.com/trickstercache/tiercache/pkg/")
}
