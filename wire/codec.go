// Package wire implements the federate-to-RTI and federate-to-federate
// binary protocol: fixed little-endian integer encoding, frame I/O, and
// the message structs enumerated by the protocol.
package wire

import "encoding/binary"

// EncodeUint16 appends the little-endian encoding of v to dst.
func EncodeUint16(dst []byte, v uint16) []byte {
	var b [2]byte
	binary.LittleEndian.PutUint16(b[:], v)
	return append(dst, b[:]...)
}

// DecodeUint16 reads a little-endian uint16 from the front of b.
func DecodeUint16(b []byte) uint16 {
	return binary.LittleEndian.Uint16(b)
}

// EncodeUint32 appends the little-endian encoding of v to dst.
func EncodeUint32(dst []byte, v uint32) []byte {
	var b [4]byte
	binary.LittleEndian.PutUint32(b[:], v)
	return append(dst, b[:]...)
}

// DecodeUint32 reads a little-endian uint32 from the front of b.
func DecodeUint32(b []byte) uint32 {
	return binary.LittleEndian.Uint32(b)
}

// EncodeInt64 appends the little-endian encoding of v to dst.
func EncodeInt64(dst []byte, v int64) []byte {
	var b [8]byte
	binary.LittleEndian.PutUint64(b[:], uint64(v))
	return append(dst, b[:]...)
}

// DecodeInt64 reads a little-endian int64 from the front of b.
func DecodeInt64(b []byte) int64 {
	return int64(binary.LittleEndian.Uint64(b))
}

const (
	sizeUint16 = 2
	sizeUint32 = 4
	sizeInt64  = 8
)
