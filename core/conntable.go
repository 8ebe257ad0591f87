package core

import "net"

// connTable is a mapping from peer FedID to socket handle,
// initialized to "unset" (no entry) and mutated only by the
// connection manager and by reader tasks when they observe
// end-of-stream (spec §3 "Connection table").
type connTable struct {
	conns map[uint16]net.Conn
}

func newConnTable() *connTable {
	return &connTable{conns: make(map[uint16]net.Conn)}
}

func (t *connTable) set(id uint16, conn net.Conn) {
	t.conns[id] = conn
}

func (t *connTable) get(id uint16) (net.Conn, bool) {
	c, ok := t.conns[id]
	return c, ok
}

func (t *connTable) clear(id uint16) {
	delete(t.conns, id)
}
