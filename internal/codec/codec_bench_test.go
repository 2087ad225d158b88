package codec

import "testing"

func BenchmarkDecodeHandshake(b *testing.B) {
	buf := make([]byte, 64)
	n := EncodeHandshakeRequest(buf, HandshakeRequest{Username: "Notch"})
	wire := buf[:n]

	b.ResetTimer()
	b.ReportAllocs()
	for i := 0; i < b.N; i++ {
		Decode(wire)
	}
}

func BenchmarkDecodeAuthentication(b *testing.B) {
	buf := make([]byte, 128)
	n := EncodeAuthenticationRequest(buf, AuthenticationRequest{
		ProtocolVersion: 1,
		Username:        "Notch",
		Password:        "hunter2",
	})
	wire := buf[:n]

	b.ResetTimer()
	b.ReportAllocs()
	for i := 0; i < b.N; i++ {
		Decode(wire)
	}
}

func BenchmarkDecodePlayerTransform(b *testing.B) {
	buf := make([]byte, 64)
	n := EncodePlayerTransformC2S(buf, PlayerTransform{
		X: 128.5, Y: 64.0, HeadY: 65.62, Z: -42.25,
		Yaw: 90, Pitch: 12.5, Grounded: true,
	})
	wire := buf[:n]

	b.ResetTimer()
	b.ReportAllocs()
	for i := 0; i < b.N; i++ {
		Decode(wire)
	}
}

func BenchmarkEncodePlayerTransformS2C(b *testing.B) {
	buf := make([]byte, 64)
	v := PlayerTransform{
		X: 128.5, Y: 64.0, HeadY: 65.62, Z: -42.25,
		Yaw: 90, Pitch: 12.5, Grounded: true,
	}

	b.ResetTimer()
	b.ReportAllocs()
	for i := 0; i < b.N; i++ {
		EncodePlayerTransformS2C(buf, v)
	}
}

func BenchmarkEncodeChunkData(b *testing.B) {
	blob := make([]byte, 4096)
	v := ChunkData{X: 1, Y: 0, Z: 1, SizeX: 16, SizeY: 128, SizeZ: 16, Data: blob}
	buf := make([]byte, 8192)

	b.ResetTimer()
	b.ReportAllocs()
	for i := 0; i < b.N; i++ {
		EncodeChunkData(buf, v)
	}
}

func BenchmarkDecodeStream(b *testing.B) {
	// A realistic inbound burst: handshake, auth, then a run of movement
	// packets, decoded back-to-back the way ProcessInbound drains a ring.
	var stream []byte
	scratch := make([]byte, 128)

	n := EncodeHandshakeRequest(scratch, HandshakeRequest{Username: "Notch"})
	stream = append(stream, scratch[:n]...)
	n = EncodeAuthenticationRequest(scratch, AuthenticationRequest{ProtocolVersion: 1, Username: "Notch"})
	stream = append(stream, scratch[:n]...)
	for i := 0; i < 16; i++ {
		n = EncodePlayerTransformC2S(scratch, PlayerTransform{X: float64(i), Y: 64, HeadY: 65.62, Z: float64(-i)})
		stream = append(stream, scratch[:n]...)
	}

	b.ResetTimer()
	b.ReportAllocs()
	for i := 0; i < b.N; i++ {
		rest := stream
		for len(rest) > 0 {
			n, _ := Decode(rest)
			if n <= 0 {
				b.Fatalf("decode failed mid-stream: %d", n)
			}
			rest = rest[n:]
		}
	}
}
