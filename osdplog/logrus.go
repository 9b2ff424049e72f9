package osdplog

import "github.com/sirupsen/logrus"

// LogrusProvider adapts a *logrus.Entry to LogProvider. Used by the
// cmd/osdp-cp and cmd/osdp-pd front-ends, which want structured,
// leveled output instead of the bare stdlib default.
type LogrusProvider struct {
	entry *logrus.Entry
}

// NewLogrusProvider wraps logger with the given field set, typically
// {"pd": address} so multi-drop logs can be filtered per peer.
func NewLogrusProvider(logger *logrus.Logger, fields logrus.Fields) LogrusProvider {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return LogrusProvider{entry: logger.WithFields(fields)}
}

var _ LogProvider = LogrusProvider{}

func (l LogrusProvider) Error(format string, v ...interface{}) { l.entry.Errorf(format, v...) }
func (l LogrusProvider) Warn(format string, v ...interface{})  { l.entry.Warnf(format, v...) }
func (l LogrusProvider) Debug(format string, v ...interface{}) { l.entry.Debugf(format, v...) }
