package relay

import (
	"context"
	"log"
	"net"

	"presencerelay/internal/protocol"
	"presencerelay/internal/session"
)

// handleWaitingIncoming is the pending-stream state machine (spec §4.8,
// grounded on original_source/src/incoming_handler_from_waitings.rs): the
// only packet it recognizes is TcpHello. Anything else is ignored and the
// connection stays pending, exactly as the original leaves unmatched
// variants unhandled.
func (s *Server) handleWaitingIncoming(p *session.Peer, incoming protocol.Incoming) {
	hello, ok := incoming.(protocol.TCPHello)
	if !ok {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), s.authTimeout)
	defer cancel()

	id, err := s.auth.Authenticate(ctx, hello.Token)
	if err != nil {
		s.queue.PushNow(DropFromWaiting{Handle: p.Handle, Cause: err})
		return
	}

	// Snapshot the roster before promoting: the new id must not appear in
	// its own Introduce list.
	roster := s.table.AuthenticatedIDs()

	if _, err := s.table.Promote(p.Handle, id); err != nil {
		log.Printf("[relay] promotion of %s to id %s rejected: %v", p.Handle, id, err)
		s.queue.PushNow(DropFromWaiting{Handle: p.Handle, Cause: err})
		return
	}

	// Order matters (spec §4.8): the new peer learns its own id, then the
	// existing roster, before anyone else learns about it.
	s.queue.PushNow(SendToTCP{Packet: protocol.HelloFromTCP{ID: id}, ID: id})
	s.queue.PushNow(SendToTCP{Packet: protocol.Introduce{IDs: roster}, ID: id})
	s.queue.PushNow(BroadcastToTCP{
		Packet: protocol.Welcome{ID: id},
		Except: map[string]struct{}{id: {}},
	})
}

// handleTCPIncoming is the authenticated stream's state machine. The
// stream channel carries no accepted packet beyond the TcpHello already
// consumed while pending; original_source/src/incoming_handler_from_tcp.rs
// matches every variant to Ok(()), so this does the same and only logs.
func (s *Server) handleTCPIncoming(p *session.Peer, incoming protocol.Incoming) {
	log.Printf("[relay] ignoring unexpected stream packet from %s: %T", p.ID, incoming)
}

// handleUDPIncoming is the datagram channel's state machine (spec §4.8,
// grounded on original_source/src/incoming_handler_from_udp.rs): UdpHello
// authenticates and binds an address, UpdateOrigin/UpdateRotation relay a
// movement sample to the rest of the roster. A datagram from an
// unrecognized or unbound address is a soft failure: it is logged and
// dropped, never escalated to DropFromUdp (there is nothing to drop).
func (s *Server) handleUDPIncoming(addr *net.UDPAddr, incoming protocol.Incoming) {
	switch v := incoming.(type) {
	case protocol.UDPHello:
		s.handleUDPHello(addr, v)
	case protocol.UpdateOrigin:
		s.relayFromAddr(addr, func(id string) protocol.Outgoing {
			return protocol.UpdateOriginOut{ID: id, Origin: v.Origin}
		})
	case protocol.UpdateRotation:
		s.relayFromAddr(addr, func(id string) protocol.Outgoing {
			return protocol.UpdateRotationOut{ID: id, Y: v.Y}
		})
	default:
		log.Printf("[relay] ignoring unexpected datagram packet from %s: %T", addr, incoming)
	}
}

func (s *Server) handleUDPHello(addr *net.UDPAddr, hello protocol.UDPHello) {
	ctx, cancel := context.WithTimeout(context.Background(), s.authTimeout)
	defer cancel()

	id, err := s.auth.Authenticate(ctx, hello.Token)
	if err != nil {
		log.Printf("[relay] udp hello from %s rejected: %v", addr, err)
		return
	}

	if err := s.table.BindAddr(id, addr); err != nil {
		log.Printf("[relay] udp hello for id %s from %s: %v", id, addr, err)
		return
	}

	s.queue.PushNow(SendToTCP{Packet: protocol.HelloFromUDP{ID: id}, ID: id})
}

// relayFromAddr resolves addr to its bound id and, if bound, enqueues a
// BroadcastToUDP built by build, excluding the sender. An unbound address
// is a soft failure (§7 ErrUnknownPeer): it is logged and the sample is
// dropped.
func (s *Server) relayFromAddr(addr *net.UDPAddr, build func(id string) protocol.Outgoing) {
	id, ok := s.table.LookupIDByAddr(addr)
	if !ok {
		log.Printf("[relay] %v: movement datagram from %s", ErrUnknownPeer, addr)
		return
	}
	s.queue.PushNow(BroadcastToUDP{
		Packet: build(id),
		Except: map[string]struct{}{id: {}},
	})
}
