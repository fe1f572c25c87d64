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

// package logger provides a package-level logger for application-wide use,
// and provides all of the same functions of logging.Logger at the package
// level - except for Close() (because this logger should always be open).
// By default, the logger is a Console Logger @ INFO. Use SetLogger() to
// set the Logger object to any logging.Logger.
package logger

import (
	"sync/atomic"

	"github.com/trickstercache/tiercache/pkg/observability/logging"
	"github.com/trickstercache/tiercache/pkg/observability/logging/level"
)

var current atomic.Value

func init() {
	current.Store(holder{logging.ConsoleLogger(level.Info)})
}

// holder keeps atomic.Value happy when loggers of different concrete types are stored
type holder struct {
	l logging.Logger
}

// Logger returns the package-level logger
func Logger() logging.Logger {
	return current.Load().(holder).l
}

// SetLogger sets the package-level logger object
func SetLogger(l logging.Logger) {
	if l == nil {
		return
	}
	current.Store(holder{l})
}

func Level() level.Level {
	return Logger().Level()
}

func Debug(event string, detail logging.Pairs) {
	Logger().Debug(event, detail)
}

func Info(event string, detail logging.Pairs) {
	Logger().Info(event, detail)
}

func Warn(event string, detail logging.Pairs) {
	Logger().Warn(event, detail)
}

func Error(event string, detail logging.Pairs) {
	Logger().Error(event, detail)
}

func WarnOnce(key, event string, detail logging.Pairs) bool {
	return Logger().WarnOnce(key, event, detail)
}

func HasWarnedOnce(key string) bool {
	return Logger().HasWarnedOnce(key)
}
