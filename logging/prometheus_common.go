package logging

import plog "github.com/prometheus/common/log"

// prometheusCommonLogger adapts prometheus/common/log.Logger to the
// Logger interface, exactly as the teacher imports that package
// directly in pkg/mcast/core/transport.go. Kept as the lighter-weight
// backend for tests and the bare-metal build, where pulling in
// logrus's formatter machinery isn't worth it.
type prometheusCommonLogger struct {
	base plog.Logger
}

// NewPrometheusCommonLogger builds a Logger backed by
// prometheus/common/log, attaching fields via repeated With calls.
func NewPrometheusCommonLogger(fields Fields) Logger {
	base := plog.Base()
	for k, v := range fields {
		base = base.With(k, v)
	}
	return &prometheusCommonLogger{base: base}
}

func (l *prometheusCommonLogger) Info(args ...interface{})  { l.base.Info(args...) }
func (l *prometheusCommonLogger) Infof(format string, args ...interface{}) {
	l.base.Infof(format, args...)
}
func (l *prometheusCommonLogger) Warn(args ...interface{})  { l.base.Warn(args...) }
func (l *prometheusCommonLogger) Warnf(format string, args ...interface{}) {
	l.base.Warnf(format, args...)
}
func (l *prometheusCommonLogger) Error(args ...interface{}) { l.base.Error(args...) }
func (l *prometheusCommonLogger) Errorf(format string, args ...interface{}) {
	l.base.Errorf(format, args...)
}
func (l *prometheusCommonLogger) Debug(args ...interface{}) { l.base.Debug(args...) }
func (l *prometheusCommonLogger) Debugf(format string, args ...interface{}) {
	l.base.Debugf(format, args...)
}

func (l *prometheusCommonLogger) WithFields(fields Fields) Logger {
	base := l.base
	for k, v := range fields {
		base = base.With(k, v)
	}
	return &prometheusCommonLogger{base: base}
}
