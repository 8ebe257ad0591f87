package core

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/reactor-fed/federate/logging"
	"github.com/reactor-fed/federate/wire"
	"github.com/stretchr/testify/require"
)

func TestReaderDispatchesKnownType(t *testing.T) {
	client, server := net.Pipe()
	t.Cleanup(func() { _ = client.Close(); _ = server.Close() })

	received := make(chan int64, 1)
	reader := NewReader("test", server, logging.NewNoop(), map[wire.MessageType]MessageHandler{
		wire.TimeAdvanceGrant: func(conn net.Conn) error {
			msg, err := wire.DecodeTimestampMessage(conn)
			if err != nil {
				return err
			}
			received <- msg.Value
			return nil
		},
	}, nil)

	done := make(chan error, 1)
	go func() { done <- reader.Run(context.Background()) }()

	msg := wire.TimestampMessage{Value: 42}
	require.NoError(t, wire.WriteAll(client, msg.Encode(wire.TimeAdvanceGrant)))

	select {
	case v := <-received:
		require.Equal(t, int64(42), v)
	case <-time.After(time.Second):
		t.Fatal("handler was not invoked")
	}

	_ = client.Close()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("reader did not terminate on EOF")
	}
}

func TestReaderTerminatesOnUnknownType(t *testing.T) {
	client, server := net.Pipe()
	t.Cleanup(func() { _ = client.Close(); _ = server.Close() })

	closed := make(chan struct{})
	reader := NewReader("test", server, logging.NewNoop(), map[wire.MessageType]MessageHandler{}, func() { close(closed) })

	done := make(chan error, 1)
	go func() { done <- reader.Run(context.Background()) }()

	go func() { _ = wire.WriteAll(client, []byte{99}) }()

	select {
	case err := <-done:
		require.ErrorIs(t, err, ErrUnexpectedMessageType)
	case <-time.After(time.Second):
		t.Fatal("reader did not terminate on unknown type")
	}
	<-closed
}
