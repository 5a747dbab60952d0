package dhcpv4

import "encoding/binary"

// Uint16ToBytes converts a uint16 to 2 bytes (big-endian).
func Uint16ToBytes(v uint16) []byte {
	b := make([]byte, 2)
	binary.BigEndian.PutUint16(b, v)
	return b
}

// BytesToUint16 converts 2 bytes to a uint16 (big-endian). Callers must
// ensure len(b) == 2.
func BytesToUint16(b []byte) uint16 {
	return binary.BigEndian.Uint16(b)
}

// Uint32ToBytes converts a uint32 to 4 bytes (big-endian).
func Uint32ToBytes(v uint32) []byte {
	b := make([]byte, 4)
	binary.BigEndian.PutUint32(b, v)
	return b
}

// BytesToUint32 converts 4 bytes to a uint32 (big-endian). Callers must
// ensure len(b) == 4.
func BytesToUint32(b []byte) uint32 {
	return binary.BigEndian.Uint32(b)
}
