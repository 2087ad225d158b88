package codec

// Wire identifiers, fixed by the classic protocol. These never change
// meaning between directions even where the body layout differs (0x01,
// 0x02, 0x0D all carry a request shape and a response shape).
const (
	TypeHeartbeat       byte = 0x00
	TypeAuthentication  byte = 0x01
	TypeHandshake       byte = 0x02
	TypeTime            byte = 0x04
	TypePlayerGrounded  byte = 0x0A
	TypePlayerPosition  byte = 0x0B
	TypePlayerRotation  byte = 0x0C
	TypePlayerTransform byte = 0x0D
	TypeChunk           byte = 0x32
	TypeChunkData       byte = 0x33
	TypeDisconnect      byte = 0xFF
)

// Packet is implemented by every decoded/encodable wire value. Variants
// are plain value records; only Disconnect and ChunkData carry
// variable-length payloads (a message string and a compressed chunk blob).
type Packet interface {
	Kind() byte
}

type Heartbeat struct{}

func (Heartbeat) Kind() byte { return TypeHeartbeat }

// AuthenticationRequest is the client-to-server body of 0x01.
type AuthenticationRequest struct {
	ProtocolVersion int32
	Username        string
	Password        string
}

func (AuthenticationRequest) Kind() byte { return TypeAuthentication }

// AuthenticationResponse is the server-to-client body of 0x01. Unknown0
// and Unknown1 are undocumented upstream; the server always sends them
// empty.
type AuthenticationResponse struct {
	EntityID int32
	Unknown0 string
	Unknown1 string
}

func (AuthenticationResponse) Kind() byte { return TypeAuthentication }

// HandshakeRequest is the client-to-server body of 0x02.
type HandshakeRequest struct {
	Username string
}

func (HandshakeRequest) Kind() byte { return TypeHandshake }

// HandshakeResponse is the server-to-client body of 0x02. The offline-mode
// server always sends "-".
type HandshakeResponse struct {
	Message string
}

func (HandshakeResponse) Kind() byte { return TypeHandshake }

// TimeOfDay is the server-to-client body of 0x04. The core dispatcher
// never emits this; scheduling it is an external collaborator's concern.
type TimeOfDay struct {
	Ticks int64
}

func (TimeOfDay) Kind() byte { return TypeTime }

type PlayerGrounded struct {
	Grounded bool
}

func (PlayerGrounded) Kind() byte { return TypePlayerGrounded }

type PlayerPosition struct {
	X, Y, HeadY, Z float64
	Grounded       bool
}

func (PlayerPosition) Kind() byte { return TypePlayerPosition }

type PlayerRotation struct {
	Yaw, Pitch float32
	Grounded   bool
}

func (PlayerRotation) Kind() byte { return TypePlayerRotation }

// PlayerTransform carries 0x0D in both directions. The wire order of the
// double fields differs by direction (see EncodePlayerTransformC2S and
// EncodePlayerTransformS2C in encode.go); the
// struct itself always holds the fields by name, never by wire position.
type PlayerTransform struct {
	X, Y, HeadY, Z float64
	Yaw, Pitch     float32
	Grounded       bool
}

func (PlayerTransform) Kind() byte { return TypePlayerTransform }

// Chunk is the server-to-client body of 0x32; chunk generation itself is
// an external collaborator, this only carries the wire shape.
type Chunk struct {
	X, Z       int32
	Initialize bool
}

func (Chunk) Kind() byte { return TypeChunk }

// ChunkData is the server-to-client body of 0x33. Data references
// externally-owned, already-compressed bytes; the codec never compresses
// or decompresses it.
type ChunkData struct {
	X     int32
	Y     int16
	Z     int32
	SizeX byte
	SizeY byte
	SizeZ byte
	Data  []byte
}

func (ChunkData) Kind() byte { return TypeChunkData }

// Disconnect carries 0xFF in both directions. Message is a plain Go
// string; the codec copies it into the wire frame on encode and out of
// it on decode.
type Disconnect struct {
	Message string
}

func (Disconnect) Kind() byte { return TypeDisconnect }
