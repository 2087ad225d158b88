// Package dispatch implements the connection state machine and the
// per-packet handling it drives: decoding everything readable out of a
// session's ring buffer, applying the handshake/auth transitions, and
// handing anything position/world-related to an external collaborator
// rather than modeling world state itself.
package dispatch

import (
	"github.com/classicwire/classicd/internal/codec"
	"github.com/classicwire/classicd/internal/session"
)

// WorldHook is the boundary between the wire-protocol core and whatever
// owns world/player state. The dispatcher consumes movement and
// disconnect packets silently and never originates a time-of-day or
// chunk packet itself; both are entirely this collaborator's concern.
type WorldHook interface {
	// PlayerJoined is called once a session reaches Connected, after a
	// successful authentication.
	PlayerJoined(sessionIdx int32, username string)
	// PlayerMoved is called for every position packet consumed from a
	// connected session; PlayerRotated, PlayerGrounded and
	// PlayerTransformed do the same for rotation, grounded and transform
	// packets.
	PlayerMoved(sessionIdx int32, pos codec.PlayerPosition)
	PlayerRotated(sessionIdx int32, rot codec.PlayerRotation)
	PlayerGrounded(sessionIdx int32, grounded bool)
	PlayerTransformed(sessionIdx int32, t codec.PlayerTransform)
	// PlayerLeft is called once a Disconnect packet is consumed. It is not
	// called when the engine closes a connection for any other reason.
	PlayerLeft(sessionIdx int32, reason string)
}

// NoopWorldHook discards every callback; useful for tests and for running
// the wire-protocol core with no attached game-state collaborator.
type NoopWorldHook struct{}

func (NoopWorldHook) PlayerJoined(int32, string)                     {}
func (NoopWorldHook) PlayerMoved(int32, codec.PlayerPosition)        {}
func (NoopWorldHook) PlayerRotated(int32, codec.PlayerRotation)      {}
func (NoopWorldHook) PlayerGrounded(int32, bool)                     {}
func (NoopWorldHook) PlayerTransformed(int32, codec.PlayerTransform) {}
func (NoopWorldHook) PlayerLeft(int32, string)                       {}

// Outcome summarizes what ProcessInbound did to the caller so the engine
// can decide what to queue next: any server-to-client wire frames to
// send, whether the session should be torn down, and whether the input
// was rejected as malformed (which always implies closing just this one
// session, never any other).
type Outcome struct {
	Replies     [][]byte
	Disconnect  bool
	Malformed   bool
	CloseReason string // non-empty when Disconnect was forced by a protocol error, for the engine to log
	CloseIsInfo bool   // true for an expected/benign close (version mismatch) that should log at INFO, not WARN
}

// ProcessInbound decodes every complete packet currently readable in
// slot's ring buffer, applies state transitions, and advances the read
// cursor past every complete packet it consumed. A trailing partial
// packet is not consumed: its bytes stay unread for the next recv to
// complete. A malformed packet closes only the offending session,
// never the listener or any other connection.
func ProcessInbound(sessionIdx int32, slot *session.Slot, world WorldHook) Outcome {
	var out Outcome
	for {
		buf := slot.ReadPtr()
		if len(buf) == 0 {
			break
		}
		n, pkt := codec.Decode(buf)
		if n < 0 {
			// Incomplete packet; wait for more bytes.
			break
		}
		if n == 0 {
			out.Malformed = true
			return out
		}
		slot.AdvanceRead(uint64(n))

		reply, disconnect, reason, info := handle(sessionIdx, slot, pkt, world)
		if reply != nil {
			out.Replies = append(out.Replies, reply)
		}
		if disconnect {
			out.Disconnect = true
			out.CloseReason = reason
			out.CloseIsInfo = info
			return out
		}
	}
	return out
}

// handle applies one decoded packet to slot's state machine. A heartbeat,
// handshake or authentication packet that arrives in a state that does
// not expect it is a protocol error: it closes just this session (never
// the listener or any other connection). Movement packets arriving before
// Connected are consumed and dropped without closing the session.
func handle(sessionIdx int32, slot *session.Slot, pkt codec.Packet, world WorldHook) (reply []byte, disconnect bool, reason string, closeIsInfo bool) {
	switch v := pkt.(type) {
	case codec.Heartbeat:
		if slot.State != session.StateConnected {
			return nil, true, "heartbeat received outside connected state", false
		}
		return encodeReply(codec.Heartbeat{}), false, "", false

	case codec.HandshakeRequest:
		if slot.State != session.StateHandshaking {
			return nil, true, "handshake received outside handshaking state", false
		}
		slot.State = session.StateAuthenticating
		slot.Username = v.Username
		return encodeReply(codec.HandshakeResponse{Message: "-"}), false, "", false

	case codec.AuthenticationRequest:
		if slot.State != session.StateAuthenticating {
			return nil, true, "authentication received outside authenticating state", false
		}
		if v.ProtocolVersion != 1 {
			return nil, true, "protocol version mismatch", true
		}
		slot.State = session.StateConnected
		slot.Username = v.Username
		world.PlayerJoined(sessionIdx, v.Username)
		return encodeReply(codec.AuthenticationResponse{EntityID: sessionIdx}), false, "", false

	case codec.PlayerPosition:
		if slot.State != session.StateConnected {
			return nil, false, "", false
		}
		world.PlayerMoved(sessionIdx, v)
		return nil, false, "", false

	case codec.PlayerRotation:
		if slot.State != session.StateConnected {
			return nil, false, "", false
		}
		world.PlayerRotated(sessionIdx, v)
		return nil, false, "", false

	case codec.PlayerGrounded:
		if slot.State != session.StateConnected {
			return nil, false, "", false
		}
		world.PlayerGrounded(sessionIdx, v.Grounded)
		return nil, false, "", false

	case codec.PlayerTransform:
		if slot.State != session.StateConnected {
			return nil, false, "", false
		}
		world.PlayerTransformed(sessionIdx, v)
		return nil, false, "", false

	case codec.Disconnect:
		world.PlayerLeft(sessionIdx, v.Message)
		return nil, true, "", false

	default:
		return nil, false, "", false
	}
}

// encodeReply grows a scratch buffer to whatever Encode reports it needs
// and writes pkt into it. It never returns a zero-length slice for a
// packet type the core itself originates, since those are never malformed.
func encodeReply(pkt codec.Packet) []byte {
	n := codec.Encode(nil, pkt)
	if n >= 0 {
		return nil
	}
	buf := make([]byte, -n)
	if codec.Encode(buf, pkt) <= 0 {
		return nil
	}
	return buf
}
