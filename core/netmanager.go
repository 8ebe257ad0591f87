package core

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strconv"
	"sync"
	"time"

	"github.com/hashicorp/go-multierror"
	"github.com/reactor-fed/federate/clock"
	"github.com/reactor-fed/federate/logging"
	"github.com/reactor-fed/federate/wire"
)

// ErrPortRangeExhausted is a structured rendering of the original's
// "cannot find a usable port" diagnostic (original_source federate.c),
// naming the exact range that was tried instead of only formatting a
// message.
type ErrPortRangeExhausted struct {
	Low, High int
}

func (e *ErrPortRangeExhausted) Error() string {
	return fmt.Sprintf("core: no usable port in [%d, %d]", e.Low, e.High)
}

// ErrConnectRetriesExhausted is returned once a retry budget of scan
// passes or dial attempts has been spent with no success.
var ErrConnectRetriesExhausted = errors.New("core: connect retry budget exhausted")

// ErrRejectedFatal is returned when the RTI or a peer rejects a
// handshake for a reason other than "wrong port"/"wrong federation id
// while scanning" (spec §7 "Protocol errors ... fatal").
var ErrRejectedFatal = errors.New("core: handshake rejected")

// NetManagerConfig is the static configuration of a NetManager,
// corresponding to the constants of spec §6.
type NetManagerConfig struct {
	FedID        uint16
	FederationID string

	RTIHost string
	RTIPort int // 0 means "scan"

	StartingPort   int
	PortRangeLimit int

	ConnectNumRetries         int
	ConnectRetryInterval      time.Duration
	AddressQueryRetryInterval time.Duration

	NumberOfInboundConnections int

	// GetLogicalTime returns the reactor's current logical time,
	// consumed by the message injection bridge's delay computation
	// (spec §6 "get_logical_time() -> i64", spec §3 Invariant 5: this
	// is independent of the coordinator's granted_tag and must not be
	// approximated by it).
	GetLogicalTime func() int64

	Logger logging.Logger
	Clock  clock.Clock
}

// NetManager is the directory/connection manager of spec §4.4: it
// establishes and maintains the RTI socket and per-peer P2P sockets,
// including port scanning with a retry budget and address query/
// advertise against the RTI. Grounded on the teacher's
// core.NewTransport/core.Peer construct-then-spawn shape, generalized
// from relt's UDP group multicast to per-peer TCP dial/accept.
type NetManager struct {
	cfg         NetManagerConfig
	coordinator *Coordinator
	bridge      *MessageBridge
	log         logging.Logger
	async       *clock.AsyncEventFlag

	mu       sync.Mutex
	rtiConn  net.Conn
	listener net.Listener
	p2pPort  uint16
	inbound  *connTable
	outbound *connTable
}

// NewNetManager builds a NetManager bound to coordinator (for
// HandleTimeAdvanceGrant/HandleIncomingStop dispatch) and ports (for
// the message injection bridge).
func NewNetManager(cfg NetManagerConfig, coordinator *Coordinator, ports PortResolver) *NetManager {
	log := cfg.Logger
	if log == nil {
		log = logging.NewNoop()
	}
	nm := &NetManager{
		cfg:         cfg,
		coordinator: coordinator,
		log:         log,
		async:       clock.NewAsyncEventFlag(),
		inbound:     newConnTable(),
		outbound:    newConnTable(),
	}
	getLogicalTime := cfg.GetLogicalTime
	if getLogicalTime == nil {
		getLogicalTime = func() int64 { return 0 }
	}
	nm.bridge = NewMessageBridge(cfg.FedID, coordinator, ports, getLogicalTime)
	coordinator.RTISender = nm
	return nm
}

// RTIConn exposes the established RTI connection, for the startup
// orchestrator's TIMESTAMP exchange (spec §4.8 step 1).
func (n *NetManager) RTIConn() net.Conn {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.rtiConn
}

// P2PPort returns the bound P2P listening port, valid after
// CreateP2PServer succeeds.
func (n *NetManager) P2PPort() uint16 {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.p2pPort
}

// ConnectToRTI implements spec §4.4 "Connect-to-RTI": if a specific
// port was configured, dial only that port with the retry budget;
// otherwise scan STARTING_PORT..STARTING_PORT+PORT_RANGE_LIMIT, and
// after exhausting a pass, sleep CONNECT_RETRY_INTERVAL and wrap back
// to STARTING_PORT, giving up after CONNECT_NUM_RETRIES passes.
func (n *NetManager) ConnectToRTI(ctx context.Context) error {
	low, high := n.cfg.StartingPort, n.cfg.StartingPort+n.cfg.PortRangeLimit
	if n.cfg.RTIPort != 0 {
		low, high = n.cfg.RTIPort, n.cfg.RTIPort
	}

	for pass := 0; pass <= n.cfg.ConnectNumRetries; pass++ {
		for port := low; port <= high; port++ {
			select {
			case <-ctx.Done():
				return ctx.Err()
			default:
			}

			conn, err := net.Dial("tcp", net.JoinHostPort(n.cfg.RTIHost, strconv.Itoa(port)))
			if err != nil {
				continue
			}

			ok, fatal := n.tryFedIDHandshake(conn)
			if fatal != nil {
				_ = conn.Close()
				return fatal
			}
			if !ok {
				_ = conn.Close()
				continue
			}

			n.mu.Lock()
			n.rtiConn = conn
			n.mu.Unlock()
			n.log.Infof("connected to RTI on port %d", port)
			return nil
		}

		n.log.Warnf("exhausted port range [%d, %d] on pass %d, retrying", low, high, pass)
		if err := n.sleepInterruptible(ctx, n.cfg.ConnectRetryInterval); err != nil {
			return err
		}
	}

	return fmt.Errorf("%w: connect to RTI after %d passes over %w", ErrConnectRetriesExhausted, n.cfg.ConnectNumRetries, &ErrPortRangeExhausted{Low: low, High: high})
}

// tryFedIDHandshake sends FED_ID + federation name and interprets the
// reply. ok=true on ACK. ok=false, fatal=nil means "wrong port, keep
// scanning" (REJECT with WRONG_SERVER or FEDERATION_ID_DOES_NOT_MATCH
// during a scan). A non-nil fatal means the error cannot be
// recovered from (spec §4.4, §7).
func (n *NetManager) tryFedIDHandshake(conn net.Conn) (ok bool, fatal error) {
	msg := wire.FedIDMessage{FedID: n.cfg.FedID, FedName: n.cfg.FederationID}
	if err := wire.WriteAll(conn, msg.Encode(wire.FedID)); err != nil {
		return false, nil
	}

	typ, err := wire.ReadByte(conn)
	if err != nil {
		return false, nil
	}

	switch wire.MessageType(typ) {
	case wire.Ack:
		return true, nil
	case wire.Reject:
		reject, err := wire.DecodeRejectMessage(conn)
		if err != nil {
			return false, nil
		}
		switch reject.Cause {
		case wire.WrongServer, wire.FederationIDDoesNotMatch:
			return false, nil
		default:
			return false, fmt.Errorf("%w: cause=%s", ErrRejectedFatal, reject.Cause)
		}
	default:
		return false, fmt.Errorf("%w: expected ACK or REJECT, got %s", ErrRejectedFatal, wire.MessageType(typ))
	}
}

// CreateP2PServer implements spec §4.4 "Create P2P server": bind a
// listening TCP socket, scanning from STARTING_PORT if unspecified,
// then advertise the bound port to the RTI with ADDRESS_AD.
func (n *NetManager) CreateP2PServer() (net.Listener, uint16, error) {
	low, high := n.cfg.StartingPort, n.cfg.StartingPort+n.cfg.PortRangeLimit
	var lastErr error
	for port := low; port <= high; port++ {
		lc := net.ListenConfig{}
		ln, err := lc.Listen(context.Background(), "tcp", net.JoinHostPort("", strconv.Itoa(port)))
		if err != nil {
			lastErr = err
			continue
		}

		n.mu.Lock()
		n.listener = ln
		n.p2pPort = uint16(port)
		n.mu.Unlock()

		ad := wire.AddressAdMessage{Port: uint32(port)}
		if err := wire.WriteAll(n.RTIConn(), ad.Encode()); err != nil {
			_ = ln.Close()
			return nil, 0, fmt.Errorf("core: advertise P2P port: %w", err)
		}
		return ln, uint16(port), nil
	}
	return nil, 0, fmt.Errorf("%w: %v", &ErrPortRangeExhausted{Low: low, High: high}, lastErr)
}

// ConnectToFederate implements spec §4.4 "connect_to_federate(id)":
// query the RTI for the peer's advertised address, retrying while the
// reply says "unknown, retry" (port -1), then dial and perform the
// P2P handshake. The resulting connection is write-only from this
// federate's side; the peer that accepted the corresponding inbound
// connection owns the reader task for it (spec §4.5 "one per RTI and
// per inbound peer socket").
func (n *NetManager) ConnectToFederate(ctx context.Context, peer uint16) error {
	addr, err := n.queryAddress(ctx, peer)
	if err != nil {
		return err
	}

	var conn net.Conn
	for attempt := 0; attempt <= n.cfg.ConnectNumRetries; attempt++ {
		conn, err = net.Dial("tcp", addr)
		if err == nil {
			break
		}
		if serr := n.sleepInterruptible(ctx, n.cfg.ConnectRetryInterval); serr != nil {
			return serr
		}
	}
	if conn == nil {
		return fmt.Errorf("%w: dial federate %d at %s", ErrConnectRetriesExhausted, peer, addr)
	}

	for attempt := 0; attempt <= n.cfg.ConnectNumRetries; attempt++ {
		msg := wire.FedIDMessage{FedID: n.cfg.FedID, FedName: n.cfg.FederationID}
		if err := wire.WriteAll(conn, msg.Encode(wire.P2PSendingFedID)); err != nil {
			return err
		}
		typ, err := wire.ReadByte(conn)
		if err == nil && wire.MessageType(typ) == wire.Ack {
			n.mu.Lock()
			n.outbound.set(peer, conn)
			n.mu.Unlock()
			n.log.Infof("connected to federate %d at %s", peer, addr)
			return nil
		}
		_ = conn.Close()
		if serr := n.sleepInterruptible(ctx, n.cfg.ConnectRetryInterval); serr != nil {
			return serr
		}
		conn, err = net.Dial("tcp", addr)
		if err != nil {
			return fmt.Errorf("%w: re-dial federate %d at %s", ErrConnectRetriesExhausted, peer, addr)
		}
	}
	return fmt.Errorf("%w: P2P handshake with federate %d", ErrConnectRetriesExhausted, peer)
}

// queryAddress implements the ADDRESS_QUERY/ADDRESS_REPLY retry loop.
func (n *NetManager) queryAddress(ctx context.Context, peer uint16) (string, error) {
	for attempt := 0; attempt <= n.cfg.ConnectNumRetries; attempt++ {
		query := wire.AddressQueryMessage{FedID: peer}
		if err := wire.WriteAll(n.RTIConn(), query.Encode()); err != nil {
			return "", err
		}
		typ, err := wire.ReadByte(n.RTIConn())
		if err != nil {
			return "", err
		}
		if wire.MessageType(typ) != wire.AddressReply {
			return "", fmt.Errorf("core: expected ADDRESS_REPLY, got %s", wire.MessageType(typ))
		}
		reply, err := wire.DecodeAddressReplyMessage(n.RTIConn())
		if err != nil {
			return "", err
		}
		if reply.Port == -1 {
			if serr := n.sleepInterruptible(ctx, n.cfg.AddressQueryRetryInterval); serr != nil {
				return "", serr
			}
			continue
		}
		ip := net.IP(reply.Address[:])
		return net.JoinHostPort(ip.String(), strconv.Itoa(int(reply.Port))), nil
	}
	return "", fmt.Errorf("%w: address query for federate %d", ErrConnectRetriesExhausted, peer)
}

// AcceptP2PConnections implements spec §4.4
// "handle_p2p_connections_from_federates": accept exactly
// number_of_inbound_physical_connections peers, validating each
// handshake, then wait for every spawned reader task to terminate
// before returning.
func (n *NetManager) AcceptP2PConnections(ctx context.Context) error {
	var wg sync.WaitGroup
	var merr error
	var merrMu sync.Mutex

	accepted := 0
	for accepted < n.cfg.NumberOfInboundConnections {
		conn, err := n.listener.Accept()
		if err != nil {
			if ctx.Err() == nil {
				merrMu.Lock()
				merr = multierror.Append(merr, fmt.Errorf("core: accept: %w", err))
				merrMu.Unlock()
			}
			break
		}

		peerID, ok, rejectErr := n.handleHandshake(conn)
		if rejectErr != nil {
			merrMu.Lock()
			merr = multierror.Append(merr, rejectErr)
			merrMu.Unlock()
			continue
		}
		if !ok {
			continue
		}

		n.mu.Lock()
		n.inbound.set(peerID, conn)
		n.mu.Unlock()
		accepted++

		wg.Add(1)
		go func(id uint16, c net.Conn) {
			defer wg.Done()
			reader := NewReader(fmt.Sprintf("peer-%d", id), c, n.log, n.peerHandlers(), func() {
				n.mu.Lock()
				n.inbound.clear(id)
				n.mu.Unlock()
			})
			if err := reader.Run(ctx); err != nil {
				merrMu.Lock()
				merr = multierror.Append(merr, err)
				merrMu.Unlock()
			}
		}(peerID, conn)
	}

	wg.Wait()
	if merr != nil {
		return merr
	}
	return nil
}

// handleHandshake reads a P2P_SENDING_FED_ID frame off a freshly
// accepted connection, rejecting with WRONG_SERVER if the first byte
// isn't that message type, or FEDERATION_ID_DOES_NOT_MATCH if the
// federation name differs (spec §4.4).
func (n *NetManager) handleHandshake(conn net.Conn) (peerID uint16, ok bool, err error) {
	typ, err := wire.ReadByte(conn)
	if err != nil {
		_ = conn.Close()
		return 0, false, fmt.Errorf("core: accept handshake: %w", err)
	}
	if wire.MessageType(typ) != wire.P2PSendingFedID {
		n.reject(conn, wire.WrongServer)
		return 0, false, nil
	}

	msg, err := wire.DecodeFedIDMessage(conn)
	if err != nil {
		_ = conn.Close()
		return 0, false, fmt.Errorf("core: accept handshake: %w", err)
	}
	if msg.FedName != n.cfg.FederationID {
		n.reject(conn, wire.FederationIDDoesNotMatch)
		return 0, false, nil
	}

	if err := wire.WriteAll(conn, []byte{byte(wire.Ack)}); err != nil {
		_ = conn.Close()
		return 0, false, fmt.Errorf("core: ack handshake: %w", err)
	}
	return msg.FedID, true, nil
}

func (n *NetManager) reject(conn net.Conn, cause wire.RejectCause) {
	_ = wire.WriteAll(conn, wire.RejectMessage{Cause: cause}.Encode())
	_ = conn.Close()
}

// RunRTIReader spawns (synchronously, within the caller's goroutine)
// the reader loop for the RTI connection, dispatching TIMED_MESSAGE,
// TIME_ADVANCE_GRANT, and STOP (spec §4.5 "The RTI reader accepts:
// TIMED_MESSAGE, TIME_ADVANCE_GRANT, STOP").
func (n *NetManager) RunRTIReader(ctx context.Context) error {
	reader := NewReader("rti", n.RTIConn(), n.log, n.rtiHandlers(), func() {
		n.mu.Lock()
		n.rtiConn = nil
		n.mu.Unlock()
		// A broken RTI connection is fatal to the federation (spec
		// §7): wake any NextEventTime waiter so it can observe
		// stop_requested instead of blocking forever.
		n.coordinator.mu.Lock()
		n.coordinator.stopRequested = true
		n.coordinator.cond.Broadcast()
		n.coordinator.mu.Unlock()
	})
	return reader.Run(ctx)
}

func (n *NetManager) rtiHandlers() map[wire.MessageType]MessageHandler {
	return map[wire.MessageType]MessageHandler{
		wire.TimedMessage: func(conn net.Conn) error {
			return n.handleTimedMessageFrame(conn)
		},
		wire.TimeAdvanceGrant: func(conn net.Conn) error {
			msg, err := wire.DecodeTimestampMessage(conn)
			if err != nil {
				return err
			}
			n.coordinator.HandleTimeAdvanceGrant(msg.Value)
			return nil
		},
		wire.Stop: func(conn net.Conn) error {
			msg, err := wire.DecodeTimestampMessage(conn)
			if err != nil {
				return err
			}
			n.coordinator.HandleIncomingStop(msg.Value)
			return nil
		},
	}
}

func (n *NetManager) peerHandlers() map[wire.MessageType]MessageHandler {
	return map[wire.MessageType]MessageHandler{
		wire.P2PTimedMessage: func(conn net.Conn) error {
			return n.handleTimedMessageFrame(conn)
		},
	}
}

func (n *NetManager) handleTimedMessageFrame(conn net.Conn) error {
	hdr, err := wire.DecodeTimedMessageHeader(conn)
	if err != nil {
		return err
	}
	payload, err := wire.ReadExact(conn, int(hdr.Length))
	if err != nil {
		return err
	}
	return n.bridge.HandleTimedMessage(hdr, payload)
}

// SendTimedMessage sends a P2P_TIMED_MESSAGE to a connected peer over
// its outbound socket.
func (n *NetManager) SendTimedMessage(peer uint16, port uint16, timestamp int64, payload []byte) error {
	n.mu.Lock()
	conn, ok := n.outbound.get(peer)
	n.mu.Unlock()
	if !ok {
		return fmt.Errorf("core: no outbound connection to federate %d", peer)
	}
	hdr := wire.TimedMessageHeader{Port: port, DestFed: peer, Length: uint32(len(payload)), Timestamp: timestamp}
	if err := wire.WriteAll(conn, hdr.Encode(wire.P2PTimedMessage)); err != nil {
		return err
	}
	return wire.WriteAll(conn, payload)
}

// SendNextEventTime implements RTISender.
func (n *NetManager) SendNextEventTime(t int64) error {
	msg := wire.TimestampMessage{Value: t}
	return wire.WriteAll(n.RTIConn(), msg.Encode(wire.NextEventTime))
}

// SendLogicalTimeComplete implements RTISender.
func (n *NetManager) SendLogicalTimeComplete(t int64) error {
	msg := wire.TimestampMessage{Value: t}
	return wire.WriteAll(n.RTIConn(), msg.Encode(wire.LogicalTimeComplete))
}

// SendStop implements RTISender.
func (n *NetManager) SendStop(t int64) error {
	msg := wire.TimestampMessage{Value: t}
	return wire.WriteAll(n.RTIConn(), msg.Encode(wire.Stop))
}

// Close closes the RTI connection, the P2P listener, and every
// registered peer socket, aggregating whatever errors occur rather
// than stopping at the first one (spec §4.4 last sentence; ambient
// stack choice of hashicorp/go-multierror, see SPEC_FULL.md §2).
func (n *NetManager) Close() error {
	n.mu.Lock()
	defer n.mu.Unlock()

	var result error
	if n.rtiConn != nil {
		if err := n.rtiConn.Close(); err != nil {
			result = multierror.Append(result, err)
		}
	}
	if n.listener != nil {
		if err := n.listener.Close(); err != nil {
			result = multierror.Append(result, err)
		}
	}
	for id, conn := range n.outbound.conns {
		if err := conn.Close(); err != nil {
			result = multierror.Append(result, fmt.Errorf("federate %d: %w", id, err))
		}
	}
	for id, conn := range n.inbound.conns {
		if err := conn.Close(); err != nil {
			result = multierror.Append(result, fmt.Errorf("federate %d: %w", id, err))
		}
	}
	return result
}

// sleepInterruptible sleeps for d, waking early if ctx is cancelled
// or the async-event flag fires (spec §5 "sleep in retry loops must
// be interruptible").
func (n *NetManager) sleepInterruptible(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-n.async.Armed():
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
