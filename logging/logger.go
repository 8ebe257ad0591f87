// Package logging defines the pluggable Logger contract used across
// the federate and the two concrete backends grounded on the
// teacher's dependency set: logrus and prometheus/common/log.
package logging

// Logger is the narrow structured-logging contract every federate
// component depends on, mirroring the teacher's types.Logger shape
// (Info/Warn/Error/Debug, each with an -f variant) so callers never
// import a concrete logging library directly.
type Logger interface {
	Info(args ...interface{})
	Infof(format string, args ...interface{})
	Warn(args ...interface{})
	Warnf(format string, args ...interface{})
	Error(args ...interface{})
	Errorf(format string, args ...interface{})
	Debug(args ...interface{})
	Debugf(format string, args ...interface{})

	// WithFields returns a Logger that prefixes every subsequent line
	// with the given structured fields, e.g. fed_id/peer_id/tag.
	WithFields(fields Fields) Logger
}

// Fields is a structured key-value attachment for a single log line
// or for every line emitted by a derived Logger.
type Fields map[string]interface{}
