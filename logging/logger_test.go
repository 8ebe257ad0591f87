package logging

import "testing"

// Both backends and the noop logger must satisfy Logger; this is a
// compile-time check mirroring the teacher's habit of asserting
// interface satisfaction, not a behavioral test.
var (
	_ Logger = (*logrusLogger)(nil)
	_ Logger = (*prometheusCommonLogger)(nil)
	_ Logger = noop{}
)

func TestBackendsDoNotPanic(t *testing.T) {
	for _, l := range []Logger{
		NewLogrusLogger(Fields{"fed_id": 1}),
		NewPrometheusCommonLogger(Fields{"fed_id": 1}),
		NewNoop(),
	} {
		l.Info("hello")
		l.Infof("hello %d", 1)
		l.Warn("hello")
		l.Error("hello")
		l.Debug("hello")
		derived := l.WithFields(Fields{"peer_id": 2})
		derived.Info("derived")
	}
}
