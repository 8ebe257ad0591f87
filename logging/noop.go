package logging

// noop is a Logger that discards everything, used by tests and by
// components that weren't given an explicit logger.
type noop struct{}

// NewNoop returns a Logger that discards all output.
func NewNoop() Logger { return noop{} }

func (noop) Info(args ...interface{})                  {}
func (noop) Infof(format string, args ...interface{})  {}
func (noop) Warn(args ...interface{})                  {}
func (noop) Warnf(format string, args ...interface{})  {}
func (noop) Error(args ...interface{})                 {}
func (noop) Errorf(format string, args ...interface{}) {}
func (noop) Debug(args ...interface{})                 {}
func (noop) Debugf(format string, args ...interface{}) {}
func (noop) WithFields(Fields) Logger                  { return noop{} }
