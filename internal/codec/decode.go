package codec

// Decode inspects the leading type byte of buf and routes to the
// per-packet decoder for the client-to-server variant of that type.
// Returns the package's tri-state contract: n>0 is bytes
// consumed and pkt is the decoded value; n<0 means need |n| more bytes;
// n==0 means malformed (unknown type byte, or a decoder rejected the
// body outright).
func Decode(buf []byte) (n int, pkt Packet) {
	if len(buf) < 1 {
		return -1, nil
	}
	switch buf[0] {
	case TypeHeartbeat:
		return DecodeHeartbeat(buf)
	case TypeAuthentication:
		return DecodeAuthenticationRequest(buf)
	case TypeHandshake:
		return DecodeHandshakeRequest(buf)
	case TypePlayerGrounded:
		return DecodePlayerGrounded(buf)
	case TypePlayerPosition:
		return DecodePlayerPosition(buf)
	case TypePlayerRotation:
		return DecodePlayerRotation(buf)
	case TypePlayerTransform:
		n, v := DecodePlayerTransformC2S(buf)
		if v == nil {
			return n, nil
		}
		return n, *v
	case TypeDisconnect:
		return DecodeDisconnect(buf)
	default:
		return 0, nil
	}
}

func DecodeHeartbeat(buf []byte) (int, Packet) {
	if len(buf) < 1 {
		return -1, nil
	}
	if buf[0] != TypeHeartbeat {
		return 0, nil
	}
	return 1, Heartbeat{}
}

func DecodeAuthenticationRequest(buf []byte) (int, Packet) {
	const fixed = 1 + sizeI32 + sizeLen
	if len(buf) < 1 {
		return -1, nil
	}
	if buf[0] != TypeAuthentication {
		return 0, nil
	}
	if len(buf) < fixed {
		return -(fixed - len(buf)), nil
	}
	off := 1
	version, _ := readI32(buf[off:])
	off += sizeI32

	user, used, need, bad := readString(buf[off:], MaxUsernameLen)
	if bad {
		return 0, nil
	}
	if need > 0 {
		return -need, nil
	}
	off += used

	pass, used2, need2, bad2 := readString(buf[off:], MaxPasswordLen)
	if bad2 {
		return 0, nil
	}
	if need2 > 0 {
		return -need2, nil
	}
	off += used2

	return off, AuthenticationRequest{ProtocolVersion: version, Username: user, Password: pass}
}

func DecodeHandshakeRequest(buf []byte) (int, Packet) {
	const fixed = 1 + sizeLen
	if len(buf) < 1 {
		return -1, nil
	}
	if buf[0] != TypeHandshake {
		return 0, nil
	}
	if len(buf) < fixed {
		return -(fixed - len(buf)), nil
	}
	name, used, need, bad := readString(buf[1:], MaxUsernameLen)
	if bad {
		return 0, nil
	}
	if need > 0 {
		return -need, nil
	}
	return 1 + used, HandshakeRequest{Username: name}
}

func DecodePlayerGrounded(buf []byte) (int, Packet) {
	const size = 1 + sizeBool
	if len(buf) < 1 {
		return -1, nil
	}
	if buf[0] != TypePlayerGrounded {
		return 0, nil
	}
	if len(buf) < size {
		return -(size - len(buf)), nil
	}
	g, _ := readBool(buf[1:])
	return size, PlayerGrounded{Grounded: g}
}

func DecodePlayerPosition(buf []byte) (int, Packet) {
	const size = 1 + 4*sizeF64 + sizeBool
	if len(buf) < 1 {
		return -1, nil
	}
	if buf[0] != TypePlayerPosition {
		return 0, nil
	}
	if len(buf) < size {
		return -(size - len(buf)), nil
	}
	off := 1
	x, _ := readF64(buf[off:])
	off += sizeF64
	y, _ := readF64(buf[off:])
	off += sizeF64
	headY, _ := readF64(buf[off:])
	off += sizeF64
	z, _ := readF64(buf[off:])
	off += sizeF64
	g, _ := readBool(buf[off:])
	return size, PlayerPosition{X: x, Y: y, HeadY: headY, Z: z, Grounded: g}
}

func DecodePlayerRotation(buf []byte) (int, Packet) {
	const size = 1 + 2*sizeF32 + sizeBool
	if len(buf) < 1 {
		return -1, nil
	}
	if buf[0] != TypePlayerRotation {
		return 0, nil
	}
	if len(buf) < size {
		return -(size - len(buf)), nil
	}
	off := 1
	yaw, _ := readF32(buf[off:])
	off += sizeF32
	pitch, _ := readF32(buf[off:])
	off += sizeF32
	g, _ := readBool(buf[off:])
	return size, PlayerRotation{Yaw: yaw, Pitch: pitch, Grounded: g}
}

// DecodePlayerTransformC2S decodes the client-to-server body of 0x0D,
// whose doubles are ordered x, y, head_y, z.
func DecodePlayerTransformC2S(buf []byte) (int, *PlayerTransform) {
	const size = 1 + 4*sizeF64 + 2*sizeF32 + sizeBool
	if len(buf) < 1 {
		return -1, nil
	}
	if buf[0] != TypePlayerTransform {
		return 0, nil
	}
	if len(buf) < size {
		return -(size - len(buf)), nil
	}
	off := 1
	x, _ := readF64(buf[off:])
	off += sizeF64
	y, _ := readF64(buf[off:])
	off += sizeF64
	headY, _ := readF64(buf[off:])
	off += sizeF64
	z, _ := readF64(buf[off:])
	off += sizeF64
	yaw, _ := readF32(buf[off:])
	off += sizeF32
	pitch, _ := readF32(buf[off:])
	off += sizeF32
	g, _ := readBool(buf[off:])
	return size, &PlayerTransform{X: x, Y: y, HeadY: headY, Z: z, Yaw: yaw, Pitch: pitch, Grounded: g}
}

// DecodePlayerTransformS2C decodes the server-to-client body of 0x0D,
// whose doubles are ordered x, head_y, y, z — the documented swap versus
// the client-to-server layout. Included for symmetry/testing; the core
// dispatcher never receives this direction.
func DecodePlayerTransformS2C(buf []byte) (int, *PlayerTransform) {
	const size = 1 + 4*sizeF64 + 2*sizeF32 + sizeBool
	if len(buf) < 1 {
		return -1, nil
	}
	if buf[0] != TypePlayerTransform {
		return 0, nil
	}
	if len(buf) < size {
		return -(size - len(buf)), nil
	}
	off := 1
	x, _ := readF64(buf[off:])
	off += sizeF64
	headY, _ := readF64(buf[off:])
	off += sizeF64
	y, _ := readF64(buf[off:])
	off += sizeF64
	z, _ := readF64(buf[off:])
	off += sizeF64
	yaw, _ := readF32(buf[off:])
	off += sizeF32
	pitch, _ := readF32(buf[off:])
	off += sizeF32
	g, _ := readBool(buf[off:])
	return size, &PlayerTransform{X: x, Y: y, HeadY: headY, Z: z, Yaw: yaw, Pitch: pitch, Grounded: g}
}

func DecodeTimeOfDay(buf []byte) (int, Packet) {
	const size = 1 + sizeI64
	if len(buf) < 1 {
		return -1, nil
	}
	if buf[0] != TypeTime {
		return 0, nil
	}
	if len(buf) < size {
		return -(size - len(buf)), nil
	}
	ticks, _ := readI64(buf[1:])
	return size, TimeOfDay{Ticks: ticks}
}

func DecodeChunk(buf []byte) (int, Packet) {
	const size = 1 + 2*sizeI32 + sizeBool
	if len(buf) < 1 {
		return -1, nil
	}
	if buf[0] != TypeChunk {
		return 0, nil
	}
	if len(buf) < size {
		return -(size - len(buf)), nil
	}
	off := 1
	x, _ := readI32(buf[off:])
	off += sizeI32
	z, _ := readI32(buf[off:])
	off += sizeI32
	init, _ := readBool(buf[off:])
	return size, Chunk{X: x, Z: z, Initialize: init}
}

func DecodeChunkData(buf []byte) (int, Packet) {
	const fixed = 1 + sizeI32 + sizeI16 + sizeI32 + 3 + sizeI32
	if len(buf) < 1 {
		return -1, nil
	}
	if buf[0] != TypeChunkData {
		return 0, nil
	}
	if len(buf) < fixed {
		return -(fixed - len(buf)), nil
	}
	off := 1
	x, _ := readI32(buf[off:])
	off += sizeI32
	y, _ := readI16(buf[off:])
	off += sizeI16
	z, _ := readI32(buf[off:])
	off += sizeI32
	sx := buf[off]
	off++
	sy := buf[off]
	off++
	sz := buf[off]
	off++
	compSize, _ := readI32(buf[off:])
	off += sizeI32
	if compSize < 0 {
		return 0, nil
	}
	total := off + int(compSize)
	if len(buf) < total {
		return -(total - len(buf)), nil
	}
	data := make([]byte, compSize)
	copy(data, buf[off:total])
	return total, ChunkData{X: x, Y: y, Z: z, SizeX: sx, SizeY: sy, SizeZ: sz, Data: data}
}

func DecodeDisconnect(buf []byte) (int, Packet) {
	const fixed = 1 + sizeLen
	if len(buf) < 1 {
		return -1, nil
	}
	if buf[0] != TypeDisconnect {
		return 0, nil
	}
	if len(buf) < fixed {
		return -(fixed - len(buf)), nil
	}
	// Disconnect messages are not bounded by the username/password caps;
	// cap at 64KiB, the length prefix's own ceiling.
	msg, used, need, bad := readString(buf[1:], 0xFFFF)
	if bad {
		return 0, nil
	}
	if need > 0 {
		return -need, nil
	}
	return 1 + used, Disconnect{Message: msg}
}
