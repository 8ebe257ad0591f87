// Package federate is the federate-side coordination core of a
// distributed deterministic reactor execution system: the wire
// protocol and connection lifecycle to the RTI and to peer federates,
// the logical-time advancement protocol, and the orderly shutdown
// protocol (spec §1).
//
// The top-level Federate type is the single object the enclosing
// reactor runtime talks to, in the same spirit as the teacher's
// mcast.Unity: one façade hiding the connection manager, the reader
// tasks, and the time-advance coordinator behind a handful of
// blocking calls.
package federate

import (
	"context"
	"fmt"

	"github.com/reactor-fed/federate/clock"
	"github.com/reactor-fed/federate/core"
	"github.com/reactor-fed/federate/logging"
	"github.com/reactor-fed/federate/reactor"
	"github.com/reactor-fed/federate/wire"
	"golang.org/x/sync/errgroup"
)

// FedID is a federate's compile-time-assigned 16-bit identifier
// (spec §3 "Federate identity").
type FedID = uint16

// NeverTag is the sentinel granted_tag value that compares less than
// any valid logical time (spec §3).
const NeverTag = core.NeverTag

// noLogicalTime stands in for a caller that never supplied a
// reactor.LogicalTimeSource, reporting zero. It exists only to keep
// New's bridge wiring free of nil-method-value panics; a real
// embedding program always supplies its reactor's get_logical_time().
type noLogicalTime struct{}

func (noLogicalTime) GetLogicalTime() int64 { return 0 }

// Federate is the federate-side coordination core: one RTI
// connection, a P2P server socket, per-peer reader tasks, and the
// time-advance coordinator, wired together per spec §2's data/control
// flow.
type Federate struct {
	cfg   *Config
	log   logging.Logger
	clk   clock.Clock
	queue reactor.EventQueue
	ports reactor.PortResolver

	net   *core.NetManager
	coord *core.Coordinator

	group   *errgroup.Group
	groupCtx context.Context

	physicalStartTime int64
}

// New constructs a Federate from its static configuration and the
// reactor-runtime collaborators it is granted (spec §6 "Consumed from
// the reactor runtime"). logicalTime supplies the reactor's current
// logical time to the message injection bridge; it is independent of
// the coordinator's granted_tag (spec §3 Invariant 5) and must not be
// approximated by it.
func New(cfg *Config, log logging.Logger, clk clock.Clock, queue reactor.EventQueue, ports reactor.PortResolver, logicalTime reactor.LogicalTimeSource) *Federate {
	if log == nil {
		log = logging.NewNoop()
	}
	if clk == nil {
		clk = clock.NewHostedClock()
	}
	if logicalTime == nil {
		logicalTime = noLogicalTime{}
	}
	fedLog := log.WithFields(logging.Fields{"fed_id": cfg.FedID})
	coord := core.NewCoordinator(core.CoordinatorConfig{
		HasUpstream:   cfg.HasUpstream,
		HasDownstream: cfg.HasDownstream,
		Queue:         queue,
		Logger:        fedLog,
	})
	f := &Federate{
		cfg:   cfg,
		log:   fedLog,
		clk:   clk,
		queue: queue,
		ports: ports,
		coord: coord,
	}
	f.net = core.NewNetManager(core.NetManagerConfig{
		FedID:         cfg.FedID,
		FederationID:  cfg.FederationID,
		RTIHost:       cfg.RTIHost,
		RTIPort:       cfg.RTIPort,
		StartingPort:  cfg.StartingPort,
		PortRangeLimit: cfg.PortRangeLimit,
		ConnectNumRetries: cfg.ConnectNumRetries,
		ConnectRetryInterval: cfg.ConnectRetryInterval,
		AddressQueryRetryInterval: cfg.AddressQueryRetryInterval,
		NumberOfInboundConnections: cfg.NumberOfInboundPhysicalConnections,
		GetLogicalTime: logicalTime.GetLogicalTime,
		Logger: f.log,
		Clock:  clk,
	}, f.coord, f.ports)
	return f
}

// Synchronize runs the startup orchestration of spec §4.8: negotiate
// a start time with the RTI, spawn the RTI reader, optionally wait
// for physical time to catch up to the negotiated start time, then
// sample the physical start time used for reporting. It blocks and is
// called exactly once at startup.
func (f *Federate) Synchronize(ctx context.Context) error {
	group, groupCtx := errgroup.WithContext(ctx)
	f.group = group
	f.groupCtx = groupCtx

	if err := f.net.ConnectToRTI(ctx); err != nil {
		return fmt.Errorf("federate: connect to RTI: %w", err)
	}

	startTime, err := f.getStartTimeFromRTI()
	if err != nil {
		return fmt.Errorf("federate: negotiate start time: %w", err)
	}
	f.coord.SetStartTime(startTime)
	f.log.Infof("negotiated start time %d", startTime)

	group.Go(func() error {
		return f.net.RunRTIReader(groupCtx)
	})

	if !f.cfg.FastMode {
		if err := f.clk.SleepUntil(ctx, startTime); err != nil {
			return fmt.Errorf("federate: wait for start time: %w", err)
		}
	}
	f.physicalStartTime = f.clk.Now()
	f.log.Infof("physical start time %d", f.physicalStartTime)

	if f.cfg.NumberOfInboundPhysicalConnections > 0 {
		if _, port, err := f.net.CreateP2PServer(); err != nil {
			return fmt.Errorf("federate: create P2P server: %w", err)
		} else {
			f.log.Infof("P2P server listening on port %d", port)
		}
		group.Go(func() error {
			return f.net.AcceptP2PConnections(groupCtx)
		})
	}

	return nil
}

// Wait blocks until every spawned reader/accept task has returned and
// reports the first non-nil error any of them returned; later errors
// are not included.
func (f *Federate) Wait() error {
	if f.group == nil {
		return nil
	}
	return f.group.Wait()
}

// getStartTimeFromRTI implements spec §4.8 step 1: send TIMESTAMP(now()),
// read the TIMESTAMP(s) reply, and return s.
func (f *Federate) getStartTimeFromRTI() (int64, error) {
	now := f.clk.Now()
	msg := wire.TimestampMessage{Value: now}
	if err := wire.WriteAll(f.net.RTIConn(), msg.Encode(wire.Timestamp)); err != nil {
		return 0, err
	}
	typ, err := wire.ReadByte(f.net.RTIConn())
	if err != nil {
		return 0, err
	}
	if wire.MessageType(typ) != wire.Timestamp {
		return 0, fmt.Errorf("federate: expected TIMESTAMP reply, got %s", wire.MessageType(typ))
	}
	reply, err := wire.DecodeTimestampMessage(f.net.RTIConn())
	if err != nil {
		return 0, err
	}
	return reply.Value, nil
}

// NextEventTime is exposed to the reactor runtime; it runs under the
// coordinator's mutex, which it acquires itself.
func (f *Federate) NextEventTime(t int64) int64 {
	return f.coord.NextEventTime(t)
}

// LogicalTimeComplete is exposed to the reactor runtime; it runs under
// the coordinator's mutex, which it acquires itself.
func (f *Federate) LogicalTimeComplete(t int64) {
	f.coord.LogicalTimeComplete(t)
}

// BroadcastStop is exposed to the reactor runtime; it runs under the
// coordinator's mutex, which it acquires itself.
func (f *Federate) BroadcastStop(currentLogicalTime int64) error {
	return f.coord.BroadcastStop(currentLogicalTime)
}

// StopRequested reports whether a STOP has been locally issued or
// received, for the main loop to poll after every wakeup (spec §6).
func (f *Federate) StopRequested() bool {
	return f.coord.StopRequested()
}

// PhysicalStartTime returns the wall-clock instant sampled once
// Synchronize has finished waiting for logical start time, for
// reporting purposes only (spec §4.8 step 5).
func (f *Federate) PhysicalStartTime() int64 {
	return f.physicalStartTime
}

// ConnectToFederate dials a new outbound P2P connection to the given
// peer and registers it for SendTimedMessage, per spec §4.4
// connect_to_federate. No reader task is spawned for it; the accepting
// peer reads that connection. Called by the embedding program for
// every physical connection it declares to peer.
func (f *Federate) ConnectToFederate(peer FedID) error {
	return f.net.ConnectToFederate(f.groupCtx, peer)
}

// SendTimedMessage sends a P2P_TIMED_MESSAGE to a connected peer.
func (f *Federate) SendTimedMessage(peer FedID, port uint16, timestamp int64, payload []byte) error {
	return f.net.SendTimedMessage(peer, port, timestamp, payload)
}
