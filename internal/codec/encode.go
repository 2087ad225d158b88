package codec

// Encode routes on pkt's concrete type/Kind and writes its server-to-client
// wire form into buf. Returns n>0 bytes written; n<0 means buf is too
// small and -n is the exact capacity required (callers size a scratch
// buffer by first calling with a zero-length buf); n==0 means pkt has no
// server-to-client encoding here (e.g. an unknown or client-only type).
// The server-to-client encoders do not check string lengths.
func Encode(buf []byte, pkt Packet) int {
	switch v := pkt.(type) {
	case Heartbeat:
		return EncodeHeartbeat(buf)
	case AuthenticationResponse:
		return EncodeAuthenticationResponse(buf, v)
	case HandshakeResponse:
		return EncodeHandshakeResponse(buf, v)
	case TimeOfDay:
		return EncodeTimeOfDay(buf, v)
	case PlayerTransform:
		return EncodePlayerTransformS2C(buf, v)
	case Chunk:
		return EncodeChunk(buf, v)
	case ChunkData:
		return EncodeChunkData(buf, v)
	case Disconnect:
		return EncodeDisconnect(buf, v)
	default:
		return 0
	}
}

func EncodeHeartbeat(buf []byte) int {
	if len(buf) < 1 {
		return -1
	}
	buf[0] = TypeHeartbeat
	return 1
}

func EncodeAuthenticationRequest(buf []byte, v AuthenticationRequest) int {
	if len(v.Username) > MaxUsernameLen || len(v.Password) > MaxPasswordLen {
		return 0
	}
	need := 1 + sizeI32 + stringWireLen(v.Username) + stringWireLen(v.Password)
	if len(buf) < need {
		return -need
	}
	buf[0] = TypeAuthentication
	off := 1
	putI32(buf[off:], v.ProtocolVersion)
	off += sizeI32
	off += putString(buf[off:], v.Username)
	off += putString(buf[off:], v.Password)
	return off
}

func EncodeAuthenticationResponse(buf []byte, v AuthenticationResponse) int {
	need := 1 + sizeI32 + stringWireLen(v.Unknown0) + stringWireLen(v.Unknown1)
	if len(buf) < need {
		return -need
	}
	buf[0] = TypeAuthentication
	off := 1
	putI32(buf[off:], v.EntityID)
	off += sizeI32
	off += putString(buf[off:], v.Unknown0)
	off += putString(buf[off:], v.Unknown1)
	return off
}

func EncodeHandshakeRequest(buf []byte, v HandshakeRequest) int {
	if len(v.Username) > MaxUsernameLen {
		return 0
	}
	need := 1 + stringWireLen(v.Username)
	if len(buf) < need {
		return -need
	}
	buf[0] = TypeHandshake
	putString(buf[1:], v.Username)
	return need
}

func EncodeHandshakeResponse(buf []byte, v HandshakeResponse) int {
	need := 1 + stringWireLen(v.Message)
	if len(buf) < need {
		return -need
	}
	buf[0] = TypeHandshake
	putString(buf[1:], v.Message)
	return need
}

func EncodeTimeOfDay(buf []byte, v TimeOfDay) int {
	const need = 1 + sizeI64
	if len(buf) < need {
		return -need
	}
	buf[0] = TypeTime
	putI64(buf[1:], v.Ticks)
	return need
}

func EncodePlayerGrounded(buf []byte, v PlayerGrounded) int {
	const need = 1 + sizeBool
	if len(buf) < need {
		return -need
	}
	buf[0] = TypePlayerGrounded
	putBool(buf[1:], v.Grounded)
	return need
}

func EncodePlayerPosition(buf []byte, v PlayerPosition) int {
	const need = 1 + 4*sizeF64 + sizeBool
	if len(buf) < need {
		return -need
	}
	buf[0] = TypePlayerPosition
	off := 1
	putF64(buf[off:], v.X)
	off += sizeF64
	putF64(buf[off:], v.Y)
	off += sizeF64
	putF64(buf[off:], v.HeadY)
	off += sizeF64
	putF64(buf[off:], v.Z)
	off += sizeF64
	putBool(buf[off:], v.Grounded)
	return need
}

func EncodePlayerRotation(buf []byte, v PlayerRotation) int {
	const need = 1 + 2*sizeF32 + sizeBool
	if len(buf) < need {
		return -need
	}
	buf[0] = TypePlayerRotation
	off := 1
	putF32(buf[off:], v.Yaw)
	off += sizeF32
	putF32(buf[off:], v.Pitch)
	off += sizeF32
	putBool(buf[off:], v.Grounded)
	return need
}

// EncodePlayerTransformC2S writes 0x0D in the client-to-server double
// order: x, y, head_y, z.
func EncodePlayerTransformC2S(buf []byte, v PlayerTransform) int {
	const need = 1 + 4*sizeF64 + 2*sizeF32 + sizeBool
	if len(buf) < need {
		return -need
	}
	buf[0] = TypePlayerTransform
	off := 1
	putF64(buf[off:], v.X)
	off += sizeF64
	putF64(buf[off:], v.Y)
	off += sizeF64
	putF64(buf[off:], v.HeadY)
	off += sizeF64
	putF64(buf[off:], v.Z)
	off += sizeF64
	putF32(buf[off:], v.Yaw)
	off += sizeF32
	putF32(buf[off:], v.Pitch)
	off += sizeF32
	putBool(buf[off:], v.Grounded)
	return need
}

// EncodePlayerTransformS2C writes 0x0D in the server-to-client double
// order: x, head_y, y, z. This swap relative to EncodePlayerTransformC2S
// is required by the wire protocol and is not a typo.
func EncodePlayerTransformS2C(buf []byte, v PlayerTransform) int {
	const need = 1 + 4*sizeF64 + 2*sizeF32 + sizeBool
	if len(buf) < need {
		return -need
	}
	buf[0] = TypePlayerTransform
	off := 1
	putF64(buf[off:], v.X)
	off += sizeF64
	putF64(buf[off:], v.HeadY)
	off += sizeF64
	putF64(buf[off:], v.Y)
	off += sizeF64
	putF64(buf[off:], v.Z)
	off += sizeF64
	putF32(buf[off:], v.Yaw)
	off += sizeF32
	putF32(buf[off:], v.Pitch)
	off += sizeF32
	putBool(buf[off:], v.Grounded)
	return need
}

func EncodeChunk(buf []byte, v Chunk) int {
	const need = 1 + 2*sizeI32 + sizeBool
	if len(buf) < need {
		return -need
	}
	buf[0] = TypeChunk
	off := 1
	putI32(buf[off:], v.X)
	off += sizeI32
	putI32(buf[off:], v.Z)
	off += sizeI32
	putBool(buf[off:], v.Initialize)
	return need
}

func EncodeChunkData(buf []byte, v ChunkData) int {
	need := 1 + sizeI32 + sizeI16 + sizeI32 + 3 + sizeI32 + len(v.Data)
	if len(buf) < need {
		return -need
	}
	buf[0] = TypeChunkData
	off := 1
	putI32(buf[off:], v.X)
	off += sizeI32
	putI16(buf[off:], v.Y)
	off += sizeI16
	putI32(buf[off:], v.Z)
	off += sizeI32
	buf[off] = v.SizeX
	off++
	buf[off] = v.SizeY
	off++
	buf[off] = v.SizeZ
	off++
	putI32(buf[off:], int32(len(v.Data)))
	off += sizeI32
	off += copy(buf[off:], v.Data)
	return off
}

func EncodeDisconnect(buf []byte, v Disconnect) int {
	need := 1 + stringWireLen(v.Message)
	if len(buf) < need {
		return -need
	}
	buf[0] = TypeDisconnect
	putString(buf[1:], v.Message)
	return need
}
