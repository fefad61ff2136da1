package monitoring

import (
	"io"
	"log"
	"os"
	"sync/atomic"

	"gopkg.in/natefinch/lumberjack.v2"
)

// Logf is the package-level diagnostic logger. It defaults to log.Printf but may
// be replaced by SetLogger. Tests or production code can redirect or mute it.
var Logf func(format string, v ...interface{}) = log.Printf

var debug atomic.Bool

// SetLogger replaces the package logger. Passing nil will set a no-op logger.
func SetLogger(f func(format string, v ...interface{})) {
	if f == nil {
		Logf = func(string, ...interface{}) {}
		return
	}
	Logf = f
}

// SetDebug enables or disables Debugf output.
func SetDebug(on bool) { debug.Store(on) }

// Debugf logs through Logf only when debug output is enabled. Used on the
// per-sample path, which runs at the gamepad rate.
func Debugf(format string, v ...interface{}) {
	if debug.Load() {
		Logf(format, v...)
	}
}

// RotatingLogConfig configures NewRotatingLogger.
type RotatingLogConfig struct {
	Path       string
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
	// Tee also writes every line to stderr.
	Tee bool
}

// NewRotatingLogger returns a logger writing to a size-rotated file, and the
// closer for that file.
func NewRotatingLogger(cfg RotatingLogConfig) (*log.Logger, io.Closer) {
	if cfg.MaxSizeMB <= 0 {
		cfg.MaxSizeMB = 10
	}
	if cfg.MaxBackups <= 0 {
		cfg.MaxBackups = 5
	}
	lj := &lumberjack.Logger{
		Filename:   cfg.Path,
		MaxSize:    cfg.MaxSizeMB,
		MaxBackups: cfg.MaxBackups,
		MaxAge:     cfg.MaxAgeDays,
		Compress:   true,
	}
	var w io.Writer = lj
	if cfg.Tee {
		w = io.MultiWriter(lj, os.Stderr)
	}
	return log.New(w, "", log.LstdFlags|log.Lmicroseconds), lj
}
