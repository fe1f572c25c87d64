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


// Package perflog writes an append-only CSV record of cache operations
// in the form timestamp,operation,namespace,key,size
package perflog

import (
	"encoding/csv"
	"io"
	"strconv"
	"sync"
	"time"

	lumberjack "gopkg.in/natefinch/lumberjack.v2"
)

// Operation is the name of a logged cache operation
type Operation string

const (
	L1Hit Operation = "L1_HIT"
	L2Hit Operation = "L2_HIT"
	L3Hit Operation = "L3_HIT"
	Miss  Operation = "MISS"
	L1Set Operation = "L1_SET"
	L2Set Operation = "L2_SET"
	L3Set Operation = "L3_SET"
)

// Hits lists the hit operations by tier, fastest first
var Hits = []Operation{L1Hit, L2Hit, L3Hit}

// Sets lists the set operations by tier, fastest first
var Sets = []Operation{L1Set, L2Set, L3Set}

// Logger writes performance records
type Logger struct {
	mtx    sync.Mutex
	w      *csv.Writer
	closer io.Closer
}

// New returns a Logger that appends to the file at path, rotating it by size
func New(path string) *Logger {
	return NewWriter(&lumberjack.Logger{
		Filename:   path,
		MaxSize:    64, // megabytes
		MaxBackups: 4,
		Compress:   true,
	})
}

// NewWriter returns a Logger that writes to w. If w is an io.Closer, it is
// closed when the Logger is closed.
func NewWriter(w io.Writer) *Logger {
	l := &Logger{w: csv.NewWriter(w)}
	if c, ok := w.(io.Closer); ok {
		l.closer = c
	}
	return l
}

// Log writes one record and flushes it
func (l *Logger) Log(ts time.Time, op Operation, namespace, key string, size int64) error {
	l.mtx.Lock()
	defer l.mtx.Unlock()
	if err := l.w.Write([]string{
		ts.Format(time.RFC3339Nano),
		string(op),
		namespace,
		key,
		strconv.FormatInt(size, 10),
	}); err != nil {
		return err
	}
	l.w.Flush()
	return l.w.Error()
}

// Close closes the underlying writer when it is closable
func (l *Logger) Close() error {
	l.mtx.Lock()
	defer l.mtx.Unlock()
	l.w.Flush()
	if l.closer != nil {
		return l.closer.Close()
	}
	return nil
}
