package wire

import (
	"fmt"
	"net"
)

// MessageType is the one-byte discriminator that begins every frame
// on the wire (spec §3 invariant 3, §4.3).
type MessageType byte

const (
	FedID MessageType = iota + 1
	Ack
	Reject
	AddressAd
	AddressQuery
	AddressReply
	Timestamp
	NextEventTime
	TimeAdvanceGrant
	LogicalTimeComplete
	Stop
	TimedMessage
	P2PTimedMessage
	P2PSendingFedID
)

func (t MessageType) String() string {
	switch t {
	case FedID:
		return "FED_ID"
	case Ack:
		return "ACK"
	case Reject:
		return "REJECT"
	case AddressAd:
		return "ADDRESS_AD"
	case AddressQuery:
		return "ADDRESS_QUERY"
	case AddressReply:
		return "ADDRESS_REPLY"
	case Timestamp:
		return "TIMESTAMP"
	case NextEventTime:
		return "NEXT_EVENT_TIME"
	case TimeAdvanceGrant:
		return "TIME_ADVANCE_GRANT"
	case LogicalTimeComplete:
		return "LOGICAL_TIME_COMPLETE"
	case Stop:
		return "STOP"
	case TimedMessage:
		return "TIMED_MESSAGE"
	case P2PTimedMessage:
		return "P2P_TIMED_MESSAGE"
	case P2PSendingFedID:
		return "P2P_SENDING_FED_ID"
	default:
		return fmt.Sprintf("UNKNOWN(%d)", byte(t))
	}
}

// RejectCause is the one-byte payload of a REJECT frame.
type RejectCause byte

const (
	FederationIDDoesNotMatch RejectCause = iota + 1
	WrongServer
	UnexpectedMessage
)

func (c RejectCause) String() string {
	switch c {
	case FederationIDDoesNotMatch:
		return "FEDERATION_ID_DOES_NOT_MATCH"
	case WrongServer:
		return "WRONG_SERVER"
	case UnexpectedMessage:
		return "UNEXPECTED_MESSAGE"
	default:
		return fmt.Sprintf("UNKNOWN_CAUSE(%d)", byte(c))
	}
}

// FedIDMessage is sent F->RTI to identify the connecting federate and
// P2P_SENDING_FED_ID is sent F->F with the same body shape.
type FedIDMessage struct {
	FedID   uint16
	FedName string
}

func (m FedIDMessage) Encode(t MessageType) []byte {
	if len(m.FedName) > 255 {
		panic("wire: federate name longer than 255 bytes")
	}
	buf := make([]byte, 0, 4+len(m.FedName))
	buf = append(buf, byte(t))
	buf = EncodeUint16(buf, m.FedID)
	buf = append(buf, byte(len(m.FedName)))
	buf = append(buf, m.FedName...)
	return buf
}

func DecodeFedIDMessage(conn net.Conn) (FedIDMessage, error) {
	head, err := ReadExact(conn, 3)
	if err != nil {
		return FedIDMessage{}, err
	}
	fedID := DecodeUint16(head[0:2])
	nameLen := int(head[2])
	name, err := ReadExact(conn, nameLen)
	if err != nil {
		return FedIDMessage{}, err
	}
	return FedIDMessage{FedID: fedID, FedName: string(name)}, nil
}

// RejectMessage carries the one-byte cause of a handshake rejection.
type RejectMessage struct {
	Cause RejectCause
}

func (m RejectMessage) Encode() []byte {
	return []byte{byte(Reject), byte(m.Cause)}
}

func DecodeRejectMessage(conn net.Conn) (RejectMessage, error) {
	b, err := ReadExact(conn, 1)
	if err != nil {
		return RejectMessage{}, err
	}
	return RejectMessage{Cause: RejectCause(b[0])}, nil
}

// AddressAdMessage advertises the federate's P2P listening port to the RTI.
type AddressAdMessage struct {
	Port uint32
}

func (m AddressAdMessage) Encode() []byte {
	buf := make([]byte, 0, 5)
	buf = append(buf, byte(AddressAd))
	buf = EncodeUint32(buf, m.Port)
	return buf
}

func DecodeAddressAdMessage(conn net.Conn) (AddressAdMessage, error) {
	b, err := ReadExact(conn, sizeUint32)
	if err != nil {
		return AddressAdMessage{}, err
	}
	return AddressAdMessage{Port: DecodeUint32(b)}, nil
}

// AddressQueryMessage asks the RTI for a peer's advertised address.
type AddressQueryMessage struct {
	FedID uint16
}

func (m AddressQueryMessage) Encode() []byte {
	buf := make([]byte, 0, 3)
	buf = append(buf, byte(AddressQuery))
	buf = EncodeUint16(buf, m.FedID)
	return buf
}

func DecodeAddressQueryMessage(conn net.Conn) (AddressQueryMessage, error) {
	b, err := ReadExact(conn, sizeUint16)
	if err != nil {
		return AddressQueryMessage{}, err
	}
	return AddressQueryMessage{FedID: DecodeUint16(b)}, nil
}

// AddressReplyMessage answers an AddressQueryMessage. Port -1 means
// "unknown yet, retry".
type AddressReplyMessage struct {
	Port    int32
	Address [4]byte
}

func (m AddressReplyMessage) Encode() []byte {
	buf := make([]byte, 0, 9)
	buf = append(buf, byte(AddressReply))
	buf = EncodeUint32(buf, uint32(m.Port))
	buf = append(buf, m.Address[:]...)
	return buf
}

func DecodeAddressReplyMessage(conn net.Conn) (AddressReplyMessage, error) {
	b, err := ReadExact(conn, sizeUint32+4)
	if err != nil {
		return AddressReplyMessage{}, err
	}
	var addr [4]byte
	copy(addr[:], b[4:8])
	return AddressReplyMessage{Port: int32(DecodeUint32(b[0:4])), Address: addr}, nil
}

// TimestampMessage carries a physical-time marker, used both for the
// initial start-time negotiation (TIMESTAMP) and is reused structurally
// by NEXT_EVENT_TIME/TIME_ADVANCE_GRANT/LOGICAL_TIME_COMPLETE/STOP,
// which all share this "one i64" body shape.
type TimestampMessage struct {
	Value int64
}

func (m TimestampMessage) Encode(t MessageType) []byte {
	buf := make([]byte, 0, 9)
	buf = append(buf, byte(t))
	buf = EncodeInt64(buf, m.Value)
	return buf
}

func DecodeTimestampMessage(conn net.Conn) (TimestampMessage, error) {
	b, err := ReadExact(conn, sizeInt64)
	if err != nil {
		return TimestampMessage{}, err
	}
	return TimestampMessage{Value: DecodeInt64(b)}, nil
}

// TimedMessageHeader is the fixed portion of TIMED_MESSAGE and
// P2P_TIMED_MESSAGE; the variable-length body follows on the wire and
// is read separately by the caller once Length is known.
type TimedMessageHeader struct {
	Port      uint16
	DestFed   uint16
	Length    uint32
	Timestamp int64
}

func (h TimedMessageHeader) Encode(t MessageType) []byte {
	buf := make([]byte, 0, 1+2+2+4+8)
	buf = append(buf, byte(t))
	buf = EncodeUint16(buf, h.Port)
	buf = EncodeUint16(buf, h.DestFed)
	buf = EncodeUint32(buf, h.Length)
	buf = EncodeInt64(buf, h.Timestamp)
	return buf
}

func DecodeTimedMessageHeader(conn net.Conn) (TimedMessageHeader, error) {
	b, err := ReadExact(conn, 2+2+4+8)
	if err != nil {
		return TimedMessageHeader{}, err
	}
	return TimedMessageHeader{
		Port:      DecodeUint16(b[0:2]),
		DestFed:   DecodeUint16(b[2:4]),
		Length:    DecodeUint32(b[4:8]),
		Timestamp: DecodeInt64(b[8:16]),
	}, nil
}
