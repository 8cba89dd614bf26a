// Package protocol implements the wire codec for both the stream channel
// and the datagram channel: a length-prefixed binary framing on the
// stream side, and one packet per datagram on the other. Every multi-byte
// field is little-endian.
package protocol

// MaxFrameSize bounds both a stream frame's declared body length and a
// single datagram's total size.
const MaxFrameSize = 4096

// TokenSize is the fixed length, in bytes, of an auth token carried by
// TcpHello and UdpHello.
const TokenSize = 76

// Inbound tags (client -> server).
const (
	tagTCPHello       = 1
	tagUDPHello       = 2
	tagUpdateOrigin   = 3
	tagUpdateRotation = 4
)

// Outbound tags (server -> client).
const (
	tagHelloFromTCP      = 1
	tagHelloFromUDP      = 2
	tagWelcome           = 3
	tagGoodBye           = 4
	tagIntroduce         = 5
	tagUpdateOriginOut   = 6
	tagUpdateRotationOut = 7
)
