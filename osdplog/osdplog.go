// Package osdplog provides the pluggable logging shim used by both the
// cp and pd engines. It mirrors the teacher's clog package: a tiny
// interface callers can swap, gated behind an atomic enable flag so that
// a hot polling loop can disable logging without touching call sites.
package osdplog

import (
	"log"
	"os"
	"sync/atomic"
)

// LogProvider is the set of severities the core engines emit. Error
// marks something that takes a PD offline; Warn marks a recoverable
// failure (a failed send or receive, a NAK, a PD going offline); Debug
// is for per-poll chatter, which the engines do not currently emit.
type LogProvider interface {
	Error(format string, v ...interface{})
	Warn(format string, v ...interface{})
	Debug(format string, v ...interface{})
}

// Clog wraps a LogProvider behind an enable flag. The zero value has no
// provider and logging disabled, so it logs nothing; NewLogger returns
// one that logs to stdout via the standard library.
type Clog struct {
	provider LogProvider
	has      uint32
}

// NewLogger returns a Clog with the given prefix attached to the default
// stdlib-backed provider, logging enabled.
func NewLogger(prefix string) Clog {
	return Clog{
		provider: defaultLogger{log.New(os.Stdout, prefix, log.LstdFlags)},
		has:      1,
	}
}

// LogMode enables or disables log output.
func (c *Clog) LogMode(enable bool) {
	if enable {
		atomic.StoreUint32(&c.has, 1)
	} else {
		atomic.StoreUint32(&c.has, 0)
	}
}

// SetProvider swaps the backing LogProvider, e.g. for a logrus adapter.
func (c *Clog) SetProvider(p LogProvider) {
	if p != nil {
		c.provider = p
	}
}

func (c Clog) Error(format string, v ...interface{}) {
	if atomic.LoadUint32(&c.has) == 1 && c.provider != nil {
		c.provider.Error(format, v...)
	}
}

func (c Clog) Warn(format string, v ...interface{}) {
	if atomic.LoadUint32(&c.has) == 1 && c.provider != nil {
		c.provider.Warn(format, v...)
	}
}

func (c Clog) Debug(format string, v ...interface{}) {
	if atomic.LoadUint32(&c.has) == 1 && c.provider != nil {
		c.provider.Debug(format, v...)
	}
}

type defaultLogger struct {
	*log.Logger
}

var _ LogProvider = (*defaultLogger)(nil)

func (d defaultLogger) Error(format string, v ...interface{}) { d.Printf("[E]: "+format, v...) }
func (d defaultLogger) Warn(format string, v ...interface{})  { d.Printf("[W]: "+format, v...) }
func (d defaultLogger) Debug(format string, v ...interface{}) { d.Printf("[D]: "+format, v...) }
