// Package vlog provides the structured logger shared by the verification
// core's hosts (cmd/vdsverify, cmd/vdstrustd). It plays the
// role the teacher's blog.AuditLogger plays in cmd/shell.go: a single
// logger constructed at startup, installed as the default, and adapted to
// whatever vocabulary a third-party library expects (here, database/sql
// and net/http, rather than cfssl/mysql/grpc).
package vlog

import (
	"io"
	"log"
	"os"

	"github.com/rs/zerolog"
)

// Logger wraps zerolog.Logger with the Info/Debug/Warn/Err/AuditErr
// vocabulary used across this repository.
type Logger struct {
	zl zerolog.Logger
}

var defaultLogger = New(os.Stderr, zerolog.InfoLevel)

// New constructs a Logger writing JSON lines to w at the given minimum
// level.
func New(w io.Writer, level zerolog.Level) Logger {
	zl := zerolog.New(w).With().Timestamp().Logger().Level(level)
	return Logger{zl: zl}
}

// Set installs l as the process-wide default logger returned by Default.
func Set(l Logger) {
	defaultLogger = l
}

// Default returns the process-wide default Logger.
func Default() Logger {
	return defaultLogger
}

// With returns a Logger that attaches the given key/value pair to every
// subsequent event, mirroring zerolog's own With().
func (l Logger) With(key, value string) Logger {
	return Logger{zl: l.zl.With().Str(key, value).Logger()}
}

func (l Logger) Debug(msg string) { l.zl.Debug().Msg(msg) }
func (l Logger) Info(msg string)  { l.zl.Info().Msg(msg) }
func (l Logger) Warn(msg string)  { l.zl.Warn().Msg(msg) }
func (l Logger) Err(msg string)   { l.zl.Error().Msg(msg) }

// AuditErr logs an event that a human operator must be able to find later
// -- a failed CRL refresh, a trust-store overdue transition, a rejected
// BSC. Named for parity with the teacher's blog.Logger.AuditErr.
func (l Logger) AuditErr(msg string) { l.zl.Error().Bool("audit", true).Msg(msg) }

// Stdlib returns a *log.Logger that forwards Print-style calls into l at
// Error level, for handing to libraries (database/sql drivers,
// net/http.Server.ErrorLog) that only know the standard log.Logger
// interface -- the same role mysqlLogger and cfsslLogger play for blog in
// the teacher's cmd/shell.go.
func (l Logger) Stdlib() *log.Logger {
	return log.New(stdlibWriter{l}, "", 0)
}

type stdlibWriter struct {
	l Logger
}

func (w stdlibWriter) Write(p []byte) (int, error) {
	w.l.zl.Error().Msg(string(p))
	return len(p), nil
}
