// Copyright 2024 The go-ouroboros Authors
// This file is part of the go-ouroboros library.
//
// The go-ouroboros library is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// The go-ouroboros library is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Lesser General Public License for more details.
//
// You should have received a copy of the GNU Lesser General Public License
// along with the go-ouroboros library. If not, see <http://www.gnu.org/licenses/>.

// Package log provides the structured, leveled, key-value logging used
// throughout go-ouroboros. It is a small port of the parent project's log
// package: callers write log.Info("message", "key", value, ...) and the
// package renders a timestamped, leveled key=value line to the configured
// writer. Lines carry no call-site information; PrettyCaller reports it
// on request.
package log

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/go-stack/stack"
)

// Level is a logging severity.
type Level int

const (
	LvlError Level = iota
	LvlWarn
	LvlInfo
	LvlDebug
	LvlTrace
)

func (l Level) String() string {
	switch l {
	case LvlError:
		return "ERROR"
	case LvlWarn:
		return "WARN"
	case LvlInfo:
		return "INFO"
	case LvlDebug:
		return "DEBUG"
	case LvlTrace:
		return "TRACE"
	default:
		return "UNKNOWN"
	}
}

var (
	mu     sync.Mutex
	out    io.Writer = os.Stderr
	minLvl           = LvlInfo
)

// SetOutput redirects the package-level logger's output. Tests use this to
// capture log lines instead of writing to stderr.
func SetOutput(w io.Writer) {
	mu.Lock()
	defer mu.Unlock()
	out = w
}

// SetLevel sets the minimum level that is actually written.
func SetLevel(l Level) {
	mu.Lock()
	defer mu.Unlock()
	minLvl = l
}

func write(l Level, msg string, ctx []interface{}) {
	mu.Lock()
	defer mu.Unlock()
	if l > minLvl {
		return
	}
	var b strings.Builder
	b.WriteString(time.Now().UTC().Format("2006-01-02T15:04:05.000Z"))
	b.WriteByte(' ')
	b.WriteString(l.String())
	b.WriteByte(' ')
	b.WriteString(msg)
	for i := 0; i+1 < len(ctx); i += 2 {
		fmt.Fprintf(&b, " %v=%v", ctx[i], ctx[i+1])
	}
	if len(ctx)%2 == 1 {
		fmt.Fprintf(&b, " %v=MISSING", ctx[len(ctx)-1])
	}
	b.WriteByte('\n')
	io.WriteString(out, b.String())
}

// Error logs at error level.
func Error(msg string, ctx ...interface{}) { write(LvlError, msg, ctx) }

// Warn logs at warn level.
func Warn(msg string, ctx ...interface{}) { write(LvlWarn, msg, ctx) }

// Info logs at info level.
func Info(msg string, ctx ...interface{}) { write(LvlInfo, msg, ctx) }

// Debug logs at debug level.
func Debug(msg string, ctx ...interface{}) { write(LvlDebug, msg, ctx) }

// Trace logs at trace level.
func Trace(msg string, ctx ...interface{}) { write(LvlTrace, msg, ctx) }

// Logger is a context-bound logger, for attaching fixed key-value pairs
// (such as a peer id or protocol name) to every line it writes.
type Logger struct {
	ctx []interface{}
}

// New returns a Logger that prepends ctx to every call's own key-value pairs.
func New(ctx ...interface{}) Logger {
	return Logger{ctx: append([]interface{}{}, ctx...)}
}

func (l Logger) with(extra []interface{}) []interface{} {
	return append(append([]interface{}{}, l.ctx...), extra...)
}

func (l Logger) Error(msg string, ctx ...interface{}) { write(LvlError, msg, l.with(ctx)) }
func (l Logger) Warn(msg string, ctx ...interface{})  { write(LvlWarn, msg, l.with(ctx)) }
func (l Logger) Info(msg string, ctx ...interface{})  { write(LvlInfo, msg, l.with(ctx)) }
func (l Logger) Debug(msg string, ctx ...interface{}) { write(LvlDebug, msg, l.with(ctx)) }
func (l Logger) Trace(msg string, ctx ...interface{}) { write(LvlTrace, msg, l.with(ctx)) }

// PrettyCaller uses go-stack/stack to report the immediate caller of the
// logging call for diagnostic dumps. The package's own line formatter
// does not call it; the teacher's log package uses the same dependency to
// attribute each line to its call site.
func PrettyCaller(skip int) string {
	c := stack.Caller(skip + 1)
	return fmt.Sprintf("%+v", c)
}
