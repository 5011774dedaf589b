package utils

import "encoding/binary"

// Int16FromBytesBE converts two big-endian bytes to a signed int16.
func Int16FromBytesBE(bytes []byte) int16 {
	return int16(binary.BigEndian.Uint16(bytes))
}

// Uint16FromBytesBE converts two big-endian bytes to an unsigned uint16.
func Uint16FromBytesBE(bytes []byte) uint16 {
	return binary.BigEndian.Uint16(bytes)
}

// Uint24FromBytesBE converts three big-endian bytes to the low 24 bits of a uint32.
func Uint24FromBytesBE(bytes []byte) uint32 {
	return uint32(bytes[0])<<16 | uint32(bytes[1])<<8 | uint32(bytes[2])
}
