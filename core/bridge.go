package core

import (
	"errors"
	"fmt"

	"github.com/reactor-fed/federate/wire"
)

// ErrMisdeliveredMessage is a fault condition: a TIMED_MESSAGE arrived
// addressed to a federate other than this one (spec §4.7 "validates
// that dest == my_fed_id (fault otherwise)").
var ErrMisdeliveredMessage = errors.New("core: timed message addressed to another federate")

// MessageBridge converts timestamped wire messages into scheduled
// events on the local event queue, respecting the coordinator's lock
// discipline (spec §4.7, the "message injection bridge").
type MessageBridge struct {
	fedID        uint16
	coordinator  *Coordinator
	ports        PortResolver
	getLogicalTime func() int64
}

// PortResolver is the subset of reactor.PortResolver the bridge needs,
// named locally so core doesn't have to import the reactor package's
// Trigger type directly in its public surface.
type PortResolver interface {
	ActionForPort(portID uint16) (interface{}, bool)
}

// NewMessageBridge builds a bridge that injects events for fedID's
// local event queue.
func NewMessageBridge(fedID uint16, coordinator *Coordinator, ports PortResolver, getLogicalTime func() int64) *MessageBridge {
	return &MessageBridge{fedID: fedID, coordinator: coordinator, ports: ports, getLogicalTime: getLogicalTime}
}

// HandleTimedMessage takes a TIMED_MESSAGE/P2P_TIMED_MESSAGE header
// and payload that the caller has already read off the socket,
// validates the destination, and schedules the payload on the local
// queue. delay = timestamp -
// current_logical_time may be negative; the scheduler (not this
// bridge) treats a non-positive delay as "schedule at the next
// microstep after current logical time" (spec §4.7).
func (b *MessageBridge) HandleTimedMessage(hdr wire.TimedMessageHeader, payload []byte) error {
	if hdr.DestFed != b.fedID {
		return fmt.Errorf("%w: dest=%d this=%d", ErrMisdeliveredMessage, hdr.DestFed, b.fedID)
	}

	trigger, ok := b.ports.ActionForPort(hdr.Port)
	if !ok {
		return fmt.Errorf("core: no action for port %d", hdr.Port)
	}

	b.coordinator.mu.Lock()
	defer b.coordinator.mu.Unlock()

	delay := hdr.Timestamp - b.getLogicalTime()
	if b.coordinator.queue == nil {
		return nil
	}
	if err := b.coordinator.queue.ScheduleAt(trigger, delay, payload); err != nil {
		return fmt.Errorf("core: schedule_at failed: %w", err)
	}
	b.coordinator.cond.Broadcast()
	return nil
}
