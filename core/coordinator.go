// Package core implements the directory/connection manager, reader
// tasks, the time-advance coordinator, and the message injection
// bridge — the semantic heart of the federate core (spec §4.4-§4.7).
package core

import (
	"sync"

	"github.com/reactor-fed/federate/logging"
	"github.com/reactor-fed/federate/reactor"
)

// NeverTag is the sentinel granted_tag value that compares less than
// any valid logical time (spec §3).
const NeverTag int64 = -1

// CoordinatorConfig is the fixed, immutable-after-construction part of
// a Coordinator (spec §3 "has_upstream, has_downstream: booleans, set
// at initialization and immutable thereafter").
type CoordinatorConfig struct {
	HasUpstream   bool
	HasDownstream bool
	Queue         reactor.EventQueue
	Logger        logging.Logger
}

// Coordinator is the time-advance coordinator: the single mutex plus
// single condition variable that arbitrates granted_tag, tag_pending,
// stop_requested, and the event queue (spec §4.6, §9 "Rationale").
//
// The single mutex plus single condition variable suffices because
// every waiter observes the same predicate: either a TAG arrived, the
// event queue changed, or a stop was requested. A missed wakeup is
// impossible because every mutation of granted_tag, tag_pending,
// stop_requested, or the event queue is followed by a Broadcast
// before the mutex is released.
type Coordinator struct {
	mu   sync.Mutex
	cond *sync.Cond

	grantedTag    int64
	tagPending    bool
	stopRequested bool
	hasUpstream   bool
	hasDownstream bool
	startTime     int64
	stopTime      int64

	queue reactor.EventQueue
	log   logging.Logger

	// RTISender is set by NewNetManager when the connection manager is
	// built, so NextEventTime/LogicalTimeComplete/BroadcastStop can
	// send NET/LTC/STOP without the coordinator knowing about sockets
	// directly. It is nil only for a Coordinator used without a
	// NetManager, in which case sends are silently skipped.
	RTISender RTISender
}

// RTISender is the narrow socket-write contract the coordinator needs
// on the RTI connection, kept separate from net.Conn so unit tests can
// substitute a recording fake without opening a real socket.
type RTISender interface {
	SendNextEventTime(t int64) error
	SendLogicalTimeComplete(t int64) error
	SendStop(t int64) error
}

// NewCoordinator builds a Coordinator with granted_tag initialized to
// NeverTag (spec §3, §8 "granted_tag initialized to NEVER makes
// granted_tag >= t false for every finite t").
func NewCoordinator(cfg CoordinatorConfig) *Coordinator {
	log := cfg.Logger
	if log == nil {
		log = logging.NewNoop()
	}
	c := &Coordinator{
		grantedTag:    NeverTag,
		hasUpstream:   cfg.HasUpstream,
		hasDownstream: cfg.HasDownstream,
		queue:         cfg.Queue,
		log:           log,
	}
	c.cond = sync.NewCond(&c.mu)
	return c
}

// SetStartTime records the negotiated logical/physical start time
// (spec §3 "start_time: set exactly once during startup").
func (c *Coordinator) SetStartTime(t int64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.startTime = t
}

// StartTime returns the negotiated start time.
func (c *Coordinator) StartTime() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.startTime
}

// GrantedTag returns the current granted_tag, for tests and
// diagnostics.
func (c *Coordinator) GrantedTag() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.grantedTag
}

// TagPending reports whether a NET is outstanding.
func (c *Coordinator) TagPending() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.tagPending
}

// StopRequested reports whether a stop has been locally issued or
// received, for the main loop to poll after every wakeup (spec §6).
func (c *Coordinator) StopRequested() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.stopRequested
}

// NextEventTime implements spec §4.6's five-step algorithm, called by
// the local scheduler before advancing logical time past t. It acquires
// the coordinator mutex itself, so the caller must not hold it.
//
//  1. isolated federate (no upstream, no downstream): return t.
//  2. already granted (granted_tag >= t): return t.
//  3. send NEXT_EVENT_TIME(t) to the RTI.
//  4. no upstream: return t (no one to wait for).
//  5. set tag_pending = true and wait until either a TAG arrives, a
//     local physical action schedules something before t, or stop is
//     requested.
func (c *Coordinator) NextEventTime(t int64) int64 {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.hasUpstream && !c.hasDownstream {
		return t
	}

	if c.grantedTag >= t {
		return t
	}

	if c.RTISender != nil {
		if err := c.RTISender.SendNextEventTime(t); err != nil {
			c.log.Errorf("failed sending NEXT_EVENT_TIME(%d): %v", t, err)
		}
	}

	if !c.hasUpstream {
		return t
	}

	c.tagPending = true
	for c.tagPending {
		if c.stopRequested {
			// Open question resolved (spec §9): additionally wake the
			// waiter when stop_requested becomes true and return the
			// stop time, rather than waiting forever for a TAG that a
			// stopping federation may never send.
			return c.stopTimeLocked(t)
		}
		if c.queue != nil {
			if head := c.queue.PeekHeadTime(); head != NeverTag && head < t {
				return head
			}
		}
		c.cond.Wait()
	}
	return c.grantedTag
}

// stopTimeLocked returns the effective time to report when a stop
// arrived mid-wait: the requested stop_time if one was recorded and
// it is earlier than t, otherwise t itself. Caller holds c.mu.
func (c *Coordinator) stopTimeLocked(t int64) int64 {
	if c.stopTime != 0 && c.stopTime < t {
		return c.stopTime
	}
	return t
}

// LogicalTimeComplete implements spec §4.6: if has_downstream, send
// LOGICAL_TIME_COMPLETE(t); otherwise no-op. Acquires the coordinator
// mutex itself; the caller must not hold it.
func (c *Coordinator) LogicalTimeComplete(t int64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.hasDownstream {
		return
	}
	if c.RTISender != nil {
		if err := c.RTISender.SendLogicalTimeComplete(t); err != nil {
			c.log.Errorf("failed sending LOGICAL_TIME_COMPLETE(%d): %v", t, err)
		}
	}
}

// BroadcastStop implements spec §4.6's user-initiated stop: send
// STOP(current_logical_time). Acquires the coordinator mutex itself;
// the caller must not hold it.
func (c *Coordinator) BroadcastStop(currentLogicalTime int64) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.stopRequested = true
	c.cond.Broadcast()
	if c.RTISender == nil {
		return nil
	}
	return c.RTISender.SendStop(currentLogicalTime)
}

// HandleTimeAdvanceGrant is called by the RTI reader after it has
// fully read a TIME_ADVANCE_GRANT frame off the wire (never while
// holding the mutex across I/O, per spec §4.5/§9). The grant is
// trusted to be monotonically non-decreasing; a decrease is logged
// rather than rejected, matching the source's debug-assert-only
// treatment (spec §4.6).
func (c *Coordinator) HandleTimeAdvanceGrant(g int64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if g < c.grantedTag {
		c.log.Warnf("received non-monotonic TIME_ADVANCE_GRANT %d < %d", g, c.grantedTag)
	}
	c.grantedTag = g
	c.tagPending = false
	c.cond.Broadcast()
}

// HandleIncomingStop is called by the RTI reader after reading a STOP
// frame. The carried time is recorded but not enforced as a stop
// deadline; its only use is as the value a NextEventTime waiter woken
// by this stop returns, when it is non-zero and earlier than the time
// that waiter asked about (see stopTimeLocked).
func (c *Coordinator) HandleIncomingStop(t int64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.stopRequested = true
	c.stopTime = t
	c.cond.Broadcast()
}

// NotifyQueueChanged must be called (without the coordinator mutex
// held) any time the event queue is mutated outside of the
// coordinator's own code paths, e.g. by a physical action firing on
// another thread, so a NextEventTime waiter re-evaluates its
// predicate (spec §3 "event_q_changed condition variable").
func (c *Coordinator) NotifyQueueChanged() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.cond.Broadcast()
}
