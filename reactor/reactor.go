// Package reactor specifies, as interfaces only, the local reactor
// scheduler and event queue the federate core depends on and is
// depended on by (spec §1 "deliberately out of scope: the local
// reactor scheduler and event queue data structure"; spec §6).
package reactor

// Trigger is an opaque handle to a reactor action/port, resolved from
// a wire port id by a PortResolver.
type Trigger = interface{}

// EventQueue is the narrow contract the coordinator needs on the
// local event queue: peek the head time under the coordinator mutex,
// and schedule a new event at a delay relative to current logical
// time (spec §3 "Event-queue integration", §6).
type EventQueue interface {
	// PeekHeadTime returns the time of the queue's head event, or
	// NeverTag-equivalent NEVER if the queue is empty. Called under
	// the coordinator mutex.
	PeekHeadTime() int64

	// ScheduleAt schedules payload for delivery on trigger after
	// delay (which may be non-positive, meaning "next microstep").
	// Called under the coordinator mutex.
	ScheduleAt(trigger Trigger, delay int64, payload []byte) error
}

// PortResolver maps a wire port id to a reactor Trigger, returning ok
// = false if the port id is out of range (spec §6
// "__action_for_port").
type PortResolver interface {
	ActionForPort(portID uint16) (Trigger, bool)
}

// LogicalTimeSource exposes the reactor's current logical time,
// distinct from the coordinator's granted_tag (spec §3 Invariant 5:
// "current_time >= granted_tag is not required" -- these are
// independent quantities). The message injection bridge reads this,
// not granted_tag, when computing a TIMED_MESSAGE's delay (spec §6
// "get_logical_time() -> i64", spec §4.7).
type LogicalTimeSource interface {
	GetLogicalTime() int64
}
