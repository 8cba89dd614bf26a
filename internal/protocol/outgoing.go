package protocol

import (
	"encoding/binary"
	"math"

	"presencerelay/internal/models"
)

// Outgoing is the set of packets the server emits to clients.
type Outgoing interface {
	// Encode returns the tag-prefixed body only; the stream transport
	// wraps it with a length prefix via WrapStream, the datagram
	// transport sends it as-is.
	Encode() []byte
}

// HelloFromTCP confirms the id the auth service assigned to a newly
// promoted stream-channel peer.
type HelloFromTCP struct{ ID string }

// HelloFromUDP confirms a successful datagram binding to the peer's
// stream channel (the stream session is the source of truth for the id,
// so the confirmation travels over it rather than back over the datagram
// channel it just bound).
type HelloFromUDP struct{ ID string }

// Welcome announces a newly authenticated peer to the rest of the roster.
type Welcome struct{ ID string }

// GoodBye announces a departed peer to the rest of the roster.
type GoodBye struct{ ID string }

// Introduce hands a newly authenticated peer the current roster. Ids are
// concatenated with no separator or count prefix (spec §9: preserved
// bit-for-bit from the source); this is only safe because every id in
// practice has the width the auth service actually returns.
type Introduce struct{ IDs []string }

// UpdateOriginOut relays a peer's spatial origin to the rest of the
// roster. Named distinctly from the inbound UpdateOrigin: the wire tag is
// shared, but the outbound body carries the sender's id and the inbound
// does not.
type UpdateOriginOut struct {
	ID     string
	Origin models.Vector3
}

// UpdateRotationOut relays a peer's heading to the rest of the roster.
type UpdateRotationOut struct {
	ID string
	Y  float32
}

func tagBytes(tag uint16) []byte {
	b := make([]byte, 2)
	binary.LittleEndian.PutUint16(b, tag)
	return b
}

func float32Bytes(v float32) []byte {
	b := make([]byte, 4)
	binary.LittleEndian.PutUint32(b, math.Float32bits(v))
	return b
}

func (p HelloFromTCP) Encode() []byte {
	return append(tagBytes(tagHelloFromTCP), []byte(p.ID)...)
}

func (p HelloFromUDP) Encode() []byte {
	return append(tagBytes(tagHelloFromUDP), []byte(p.ID)...)
}

func (p Welcome) Encode() []byte {
	return append(tagBytes(tagWelcome), []byte(p.ID)...)
}

func (p GoodBye) Encode() []byte {
	return append(tagBytes(tagGoodBye), []byte(p.ID)...)
}

func (p Introduce) Encode() []byte {
	out := tagBytes(tagIntroduce)
	for _, id := range p.IDs {
		out = append(out, []byte(id)...)
	}
	return out
}

func (p UpdateOriginOut) Encode() []byte {
	out := tagBytes(tagUpdateOriginOut)
	out = append(out, []byte(p.ID)...)
	out = append(out, float32Bytes(p.Origin.X)...)
	out = append(out, float32Bytes(p.Origin.Y)...)
	out = append(out, float32Bytes(p.Origin.Z)...)
	return out
}

func (p UpdateRotationOut) Encode() []byte {
	out := tagBytes(tagUpdateRotationOut)
	out = append(out, []byte(p.ID)...)
	out = append(out, float32Bytes(p.Y)...)
	return out
}

// WrapStream prefixes a tag-prefixed body with its little-endian 16-bit
// length, as required for every outbound stream-channel frame.
func WrapStream(body []byte) []byte {
	out := make([]byte, 2+len(body))
	binary.LittleEndian.PutUint16(out[:2], uint16(len(body)))
	copy(out[2:], body)
	return out
}
