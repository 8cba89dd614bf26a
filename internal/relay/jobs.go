package relay

import (
	"net"

	"github.com/google/uuid"

	"presencerelay/internal/protocol"
)

// The job types below are the scheduled work items the event loop queues
// onto the deadline-ordered schedule.Queue, grounded on
// original_source/src/job.rs's Job enum (the drop/send/broadcast variants
// dispatched by src/job_handler.rs). They satisfy schedule.Job trivially,
// since that interface is empty.

// DropFromWaiting closes a pending (unauthenticated) stream connection.
// Cause is nil for a caller-initiated drop, non-nil when the drop follows
// a read or decode failure.
type DropFromWaiting struct {
	Handle uuid.UUID
	Cause  error
}

// DropFromTCP closes an authenticated stream connection and removes its
// entry (and any datagram binding) from the session table.
type DropFromTCP struct {
	ID    string
	Cause error
}

// DropFromUDP removes a datagram-address binding without touching the
// stream session it was paired with.
type DropFromUDP struct {
	Addr  *net.UDPAddr
	Cause error
}

// SendToTCP writes Packet to the single authenticated stream for ID. A
// write failure enqueues a DropFromTCP for ID rather than propagating.
type SendToTCP struct {
	Packet protocol.Outgoing
	ID     string
}

// SendToUDP writes Packet to the single datagram address bound to ID.
type SendToUDP struct {
	Packet protocol.Outgoing
	ID     string
}

// BroadcastToTCP writes Packet to every authenticated stream except the
// ids in Except (nil or empty to exclude no one).
type BroadcastToTCP struct {
	Packet protocol.Outgoing
	Except map[string]struct{}
}

// BroadcastToUDP writes Packet to every bound datagram address except the
// ids in Except.
type BroadcastToUDP struct {
	Packet protocol.Outgoing
	Except map[string]struct{}
}
