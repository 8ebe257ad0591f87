package wire

import (
	"net"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func pipe(t *testing.T) (net.Conn, net.Conn) {
	t.Helper()
	a, b := net.Pipe()
	t.Cleanup(func() {
		_ = a.Close()
		_ = b.Close()
	})
	return a, b
}

func TestFedIDMessageRoundTrip(t *testing.T) {
	client, server := pipe(t)
	msg := FedIDMessage{FedID: 7, FedName: "federation-42"}

	go func() {
		_ = WriteAll(client, msg.Encode(FedID))
	}()

	typ, err := ReadByte(server)
	require.NoError(t, err)
	require.Equal(t, FedID, MessageType(typ))

	got, err := DecodeFedIDMessage(server)
	require.NoError(t, err)
	require.Equal(t, msg, got)
}

func TestTimestampMessageRoundTrip(t *testing.T) {
	client, server := pipe(t)
	msg := TimestampMessage{Value: -123456789}

	go func() {
		_ = WriteAll(client, msg.Encode(NextEventTime))
	}()

	typ, err := ReadByte(server)
	require.NoError(t, err)
	require.Equal(t, NextEventTime, MessageType(typ))

	got, err := DecodeTimestampMessage(server)
	require.NoError(t, err)
	require.Equal(t, msg, got)
}

func TestAddressReplyUnknownPort(t *testing.T) {
	client, server := pipe(t)
	msg := AddressReplyMessage{Port: -1}

	go func() {
		_ = WriteAll(client, msg.Encode())
	}()

	typ, err := ReadByte(server)
	require.NoError(t, err)
	require.Equal(t, AddressReply, MessageType(typ))

	got, err := DecodeAddressReplyMessage(server)
	require.NoError(t, err)
	require.Equal(t, int32(-1), got.Port)
}

func TestTimedMessageHeaderRoundTrip(t *testing.T) {
	client, server := pipe(t)
	hdr := TimedMessageHeader{Port: 3, DestFed: 9, Length: 11, Timestamp: 42}
	payload := []byte("hello world")

	go func() {
		_ = WriteAll(client, hdr.Encode(TimedMessage))
		_ = WriteAll(client, payload)
	}()

	typ, err := ReadByte(server)
	require.NoError(t, err)
	require.Equal(t, TimedMessage, MessageType(typ))

	got, err := DecodeTimedMessageHeader(server)
	require.NoError(t, err)
	require.Equal(t, hdr, got)

	body, err := ReadExact(server, int(got.Length))
	require.NoError(t, err)
	require.Equal(t, payload, body)
}

func TestReadExactDistinguishesClosedFromBroken(t *testing.T) {
	client, server := pipe(t)
	_ = client.Close()

	_, err := ReadExact(server, 4)
	require.ErrorIs(t, err, ErrClosed)
	require.NotErrorIs(t, err, ErrBroken)
}

func TestCodecLittleEndian(t *testing.T) {
	require.Equal(t, []byte{0x01, 0x00}, EncodeUint16(nil, 1))
	require.Equal(t, []byte{0x01, 0x00, 0x00, 0x00}, EncodeUint32(nil, 1))
	require.Equal(t, uint16(1), DecodeUint16([]byte{0x01, 0x00}))
	require.Equal(t, uint32(1), DecodeUint32([]byte{0x01, 0x00, 0x00, 0x00}))

	encoded := EncodeInt64(nil, -1)
	require.Equal(t, int64(-1), DecodeInt64(encoded))
}
