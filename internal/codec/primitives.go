// Package codec translates between the classic protocol's wire bytes and
// typed packet values. Every decoder follows a tri-state contract:
// positive return is bytes consumed, negative is -(bytes still needed),
// zero is malformed input.
package codec

import (
	"encoding/binary"
	"math"
)

// Fixed sizes of the primitive wire types, big-endian throughout.
const (
	sizeI8   = 1
	sizeI16  = 2
	sizeI32  = 4
	sizeI64  = 8
	sizeF32  = 4
	sizeF64  = 8
	sizeBool = 1
	sizeLen  = 2 // u16 length prefix on strings
)

// MaxUsernameLen and MaxPasswordLen bound the inline string fields carried
// by session slots; any length prefix exceeding these is malformed, not a
// partial read.
const (
	MaxUsernameLen = 16
	MaxPasswordLen = 32
)

func readI8(buf []byte) (int8, bool) {
	if len(buf) < sizeI8 {
		return 0, false
	}
	return int8(buf[0]), true
}

func readI16(buf []byte) (int16, bool) {
	if len(buf) < sizeI16 {
		return 0, false
	}
	return int16(binary.BigEndian.Uint16(buf)), true
}

func readI32(buf []byte) (int32, bool) {
	if len(buf) < sizeI32 {
		return 0, false
	}
	return int32(binary.BigEndian.Uint32(buf)), true
}

func readI64(buf []byte) (int64, bool) {
	if len(buf) < sizeI64 {
		return 0, false
	}
	return int64(binary.BigEndian.Uint64(buf)), true
}

func readF32(buf []byte) (float32, bool) {
	if len(buf) < sizeF32 {
		return 0, false
	}
	return math.Float32frombits(binary.BigEndian.Uint32(buf)), true
}

func readF64(buf []byte) (float64, bool) {
	if len(buf) < sizeF64 {
		return 0, false
	}
	return math.Float64frombits(binary.BigEndian.Uint64(buf)), true
}

func readBool(buf []byte) (bool, bool) {
	if len(buf) < sizeBool {
		return false, false
	}
	return buf[0] != 0x00, true
}

// readString decodes a u16-length-prefixed UTF-8 string, rejecting any
// length exceeding maxLen as malformed rather than reporting a partial
// read. malformed=true ("reject this stream") is distinct from
// needMore>0 ("need more bytes").
func readString(buf []byte, maxLen int) (s string, n int, needMore int, malformed bool) {
	if len(buf) < sizeLen {
		return "", 0, sizeLen - len(buf), false
	}
	l := int(binary.BigEndian.Uint16(buf))
	if l > maxLen {
		return "", 0, 0, true
	}
	total := sizeLen + l
	if len(buf) < total {
		return "", 0, total - len(buf), false
	}
	return string(buf[sizeLen:total]), total, 0, false
}

func putI8(buf []byte, v int8) {
	buf[0] = byte(v)
}

func putI16(buf []byte, v int16) {
	binary.BigEndian.PutUint16(buf, uint16(v))
}

func putI32(buf []byte, v int32) {
	binary.BigEndian.PutUint32(buf, uint32(v))
}

func putI64(buf []byte, v int64) {
	binary.BigEndian.PutUint64(buf, uint64(v))
}

func putF32(buf []byte, v float32) {
	binary.BigEndian.PutUint32(buf, math.Float32bits(v))
}

func putF64(buf []byte, v float64) {
	binary.BigEndian.PutUint64(buf, math.Float64bits(v))
}

func putBool(buf []byte, v bool) {
	if v {
		buf[0] = 0x01
	} else {
		buf[0] = 0x00
	}
}

// putString writes a u16-length-prefixed UTF-8 string. Caller must have
// already sized buf via stringWireLen.
func putString(buf []byte, s string) int {
	binary.BigEndian.PutUint16(buf, uint16(len(s)))
	copy(buf[sizeLen:], s)
	return sizeLen + len(s)
}

func stringWireLen(s string) int {
	return sizeLen + len(s)
}
