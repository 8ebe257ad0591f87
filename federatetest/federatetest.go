// Package federatetest provides small in-memory fakes for the
// reactor-runtime collaborators the federate core depends on (spec §6
// "Consumed from the reactor runtime"), used by the core and
// top-level federate tests instead of a real reactor scheduler.
package federatetest

import (
	"sync"

	"github.com/google/uuid"
)

// FakeEventQueue is a minimal reactor.EventQueue: an unsorted slice
// of pending event times (payloads are discarded), sufficient to drive the
// coordinator's NextEventTime predicate in tests (spec §8 scenario 4,
// "physical action during wait").
type FakeEventQueue struct {
	mu     sync.Mutex
	events []int64
	onPush func()
}

// NewFakeEventQueue returns an empty queue. onPush, if non-nil, is
// invoked (without the queue's own lock held) every time Push adds an
// event, letting tests wire in the coordinator's NotifyQueueChanged.
func NewFakeEventQueue(onPush func()) *FakeEventQueue {
	return &FakeEventQueue{onPush: onPush}
}

// Never is the sentinel PeekHeadTime returns for an empty queue,
// matching the coordinator's NeverTag.
const Never int64 = -1

func (q *FakeEventQueue) PeekHeadTime() int64 {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.events) == 0 {
		return Never
	}
	min := q.events[0]
	for _, e := range q.events[1:] {
		if e < min {
			min = e
		}
	}
	return min
}

func (q *FakeEventQueue) ScheduleAt(trigger interface{}, delay int64, payload []byte) error {
	q.Push(delay)
	return nil
}

// Push adds an event at the given absolute time and notifies onPush.
func (q *FakeEventQueue) Push(t int64) {
	q.mu.Lock()
	q.events = append(q.events, t)
	q.mu.Unlock()
	if q.onPush != nil {
		q.onPush()
	}
}

// FakePortResolver maps every port id to the same opaque trigger
// value, or rejects everything if Empty is set.
type FakePortResolver struct {
	Empty bool
}

func (p *FakePortResolver) ActionForPort(portID uint16) (interface{}, bool) {
	if p.Empty {
		return nil, false
	}
	return portID, true
}

// FakeRTISender records every NET/LTC/STOP send instead of writing to
// a real socket, for coordinator unit tests (spec §8 end-to-end
// scenarios 1-4, 6).
type FakeRTISender struct {
	mu    sync.Mutex
	NETs  []int64
	LTCs  []int64
	Stops []int64
	Err   error
}

func (s *FakeRTISender) SendNextEventTime(t int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.NETs = append(s.NETs, t)
	return s.Err
}

func (s *FakeRTISender) SendLogicalTimeComplete(t int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.LTCs = append(s.LTCs, t)
	return s.Err
}

func (s *FakeRTISender) SendStop(t int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Stops = append(s.Stops, t)
	return s.Err
}

// Snapshot returns copies of the recorded sends, safe to inspect
// concurrently with further sends.
func (s *FakeRTISender) Snapshot() (nets, ltcs, stops []int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]int64(nil), s.NETs...), append([]int64(nil), s.LTCs...), append([]int64(nil), s.Stops...)
}

// FakeLogicalTimeSource reports a fixed or externally-updated logical
// time, standing in for the reactor runtime's get_logical_time()
// (spec §6), independent of any coordinator's granted_tag.
type FakeLogicalTimeSource struct {
	mu   sync.Mutex
	Time int64
}

func (s *FakeLogicalTimeSource) GetLogicalTime() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.Time
}

// Set updates the reported logical time.
func (s *FakeLogicalTimeSource) Set(t int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Time = t
}

// RandomFederationID returns a session-scoped federation name for
// tests that stand up a fake RTI on a loopback port: unique per call
// so parallel tests never share a federation_id by accident.
func RandomFederationID() string {
	return "fed-test-" + uuid.NewString()
}
