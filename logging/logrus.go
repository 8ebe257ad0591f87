package logging

import "github.com/sirupsen/logrus"

// logrusLogger adapts *logrus.Entry to the Logger interface. This is
// the default backend for hosted federates.
type logrusLogger struct {
	entry *logrus.Entry
}

// NewLogrusLogger builds the default Logger, a logrus.Logger with
// text output and the given base fields (normally at least fed_id).
func NewLogrusLogger(fields Fields) Logger {
	l := logrus.New()
	return &logrusLogger{entry: l.WithFields(logrus.Fields(fields))}
}

func (l *logrusLogger) Info(args ...interface{})                 { l.entry.Info(args...) }
func (l *logrusLogger) Infof(format string, args ...interface{})  { l.entry.Infof(format, args...) }
func (l *logrusLogger) Warn(args ...interface{})                 { l.entry.Warn(args...) }
func (l *logrusLogger) Warnf(format string, args ...interface{})  { l.entry.Warnf(format, args...) }
func (l *logrusLogger) Error(args ...interface{})                 { l.entry.Error(args...) }
func (l *logrusLogger) Errorf(format string, args ...interface{}) { l.entry.Errorf(format, args...) }
func (l *logrusLogger) Debug(args ...interface{})                 { l.entry.Debug(args...) }
func (l *logrusLogger) Debugf(format string, args ...interface{}) { l.entry.Debugf(format, args...) }

func (l *logrusLogger) WithFields(fields Fields) Logger {
	return &logrusLogger{entry: l.entry.WithFields(logrus.Fields(fields))}
}
