package core

import (
	"context"
	"errors"
	"fmt"
	"net"

	"github.com/reactor-fed/federate/logging"
	"github.com/reactor-fed/federate/wire"
)

// MessageHandler handles one already-type-tagged frame, reading the
// rest of it (and only the rest of it) from conn.
type MessageHandler func(conn net.Conn) error

// ErrUnexpectedMessageType is returned when a reader sees a type byte
// not in its dispatch table (spec §4.5 "unrecognized type byte").
var ErrUnexpectedMessageType = errors.New("core: unexpected message type")

// Reader owns one socket for its entire lifetime and loops: read one
// type byte, dispatch. It never holds the coordinator mutex across
// socket I/O — handlers read fully, then lock to mutate shared state
// (spec §4.5, §9 "lock-held time bounded by non-I/O work").
type Reader struct {
	name     string
	conn     net.Conn
	log      logging.Logger
	handlers map[wire.MessageType]MessageHandler
	onClose  func()
}

// NewReader builds a Reader for conn, dispatching on handlers. onClose
// is invoked exactly once, after conn is closed, regardless of
// termination reason (EOF, transport error, or malformed input).
func NewReader(name string, conn net.Conn, log logging.Logger, handlers map[wire.MessageType]MessageHandler, onClose func()) *Reader {
	if log == nil {
		log = logging.NewNoop()
	}
	return &Reader{name: name, conn: conn, log: log, handlers: handlers, onClose: onClose}
}

// Run loops until the context is cancelled, the peer disconnects
// cleanly, a transport error occurs, or an unrecognized type byte is
// read. A clean peer EOF is not an error: it is "no more messages
// from that peer" (spec §7 "Peer EOF").
func (r *Reader) Run(ctx context.Context) error {
	defer func() {
		_ = r.conn.Close()
		if r.onClose != nil {
			r.onClose()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		default:
		}

		typ, err := wire.ReadByte(r.conn)
		if err != nil {
			if errors.Is(err, wire.ErrClosed) {
				r.log.Debugf("%s: peer closed connection", r.name)
				return nil
			}
			return fmt.Errorf("core: %s reader: %w", r.name, err)
		}

		handler, ok := r.handlers[wire.MessageType(typ)]
		if !ok {
			return fmt.Errorf("core: %s reader: %w: %s", r.name, ErrUnexpectedMessageType, wire.MessageType(typ))
		}
		if err := handler(r.conn); err != nil {
			return fmt.Errorf("core: %s reader: %w", r.name, err)
		}
	}
}
