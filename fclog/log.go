// Package fclog implements the structured logging the orchestrator's
// error-handling paths need: a task transition that fails surfaces as
// a warning log, and an unrecoverable condition logs an error. This is
// a small, leveled logger generalizing gravwell's ingest/log
// package: a level-gated io.Writer sink plus rfc5424.SDParam
// key-value pairs for structured fields, trimmed to what the core's
// own warning/error call sites need (no syslog relay, no file
// rotation — those are session-level concerns outside this core).
package fclog

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/crewjam/rfc5424"
)

// Level mirrors ingest/log/logging.go's level ladder, trimmed to the
// levels the core itself emits (no DEBUG/CRITICAL/FATAL call sites in
// this package; callers needing those can still pass a custom Level).
type Level int

const (
	Off Level = iota
	Info
	Warn
	Error
)

func (l Level) String() string {
	switch l {
	case Off:
		return "OFF"
	case Info:
		return "INFO"
	case Warn:
		return "WARN"
	case Error:
		return "ERROR"
	}
	return "UNKNOWN"
}

// Logger writes level-gated structured lines to an underlying writer,
// mirroring ingest/log.Logger's AddWriter-plus-mutex discipline
// without the multi-writer/relay fan-out this core has no use for.
type Logger struct {
	mu  sync.Mutex
	out io.Writer
	lvl Level
}

// New wraps w at the given minimum level.
func New(w io.Writer, lvl Level) *Logger {
	return &Logger{out: w, lvl: lvl}
}

// NewDiscard returns a Logger that drops everything, for callers
// (tests, library consumers that don't want core log chatter) that
// don't want to wire a real sink.
func NewDiscard() *Logger {
	return New(io.Discard, Off)
}

// Default writes to os.Stderr at Warn, matching gravwell's
// stderrlog fallback behavior when no explicit logger is configured.
func Default() *Logger {
	return New(os.Stderr, Warn)
}

func (l *Logger) SetLevel(lvl Level) {
	l.mu.Lock()
	l.lvl = lvl
	l.mu.Unlock()
}

func (l *Logger) enabled(lvl Level) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.lvl != Off && lvl >= l.lvl
}

func (l *Logger) writeLine(lvl Level, line string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	fmt.Fprintf(l.out, "%s %s %s\n", time.Now().UTC().Format(time.RFC3339Nano), lvl, line)
}

func (l *Logger) outputf(lvl Level, format string, args ...interface{}) {
	if !l.enabled(lvl) {
		return
	}
	l.writeLine(lvl, fmt.Sprintf(format, args...))
}

func (l *Logger) outputStructured(lvl Level, msg string, sds ...rfc5424.SDParam) {
	if !l.enabled(lvl) {
		return
	}
	l.writeLine(lvl, msg+" "+formatSDParams(sds))
}

func formatSDParams(sds []rfc5424.SDParam) string {
	if len(sds) == 0 {
		return ""
	}
	parts := make([]string, len(sds))
	for i, sd := range sds {
		parts[i] = fmt.Sprintf("%s=%q", sd.Name, sd.Value)
	}
	return strings.Join(parts, " ")
}

func (l *Logger) Infof(format string, args ...interface{})  { l.outputf(Info, format, args...) }
func (l *Logger) Warnf(format string, args ...interface{})  { l.outputf(Warn, format, args...) }
func (l *Logger) Errorf(format string, args ...interface{}) { l.outputf(Error, format, args...) }

// Info/Warn/Error take rfc5424 structured-data params for the keyed
// log lines the orchestrator and graph packages emit (filter
// registry name, pid name, chain length) alongside a human message,
// mirroring ingest/log.KVLogger's Info/Warn/Error contract.
func (l *Logger) Info(msg string, sds ...rfc5424.SDParam)  { l.outputStructured(Info, msg, sds...) }
func (l *Logger) Warn(msg string, sds ...rfc5424.SDParam)  { l.outputStructured(Warn, msg, sds...) }
func (l *Logger) Error(msg string, sds ...rfc5424.SDParam) { l.outputStructured(Error, msg, sds...) }

// KV is a convenience constructor for rfc5424.SDParam, since callers
// in this module build one-off structured fields far more often than
// they build a reusable SDParam slice.
func KV(name, value string) rfc5424.SDParam {
	return rfc5424.SDParam{Name: name, Value: value}
}
