package relay

import (
	"log"
	"net"
	"time"

	"presencerelay/internal/protocol"
	"presencerelay/internal/schedule"
	"presencerelay/internal/session"
)

// handleJob is the scheduled-job dispatcher (spec §8 C8), grounded on
// original_source/src/context.rs's Context::handle_action match. An
// unrecognized job type is a ProgrammingError: logged, never escalated.
func (s *Server) handleJob(j schedule.Job) {
	switch job := j.(type) {
	case DropFromWaiting:
		s.handleDropFromWaiting(job)
	case DropFromTCP:
		s.handleDropFromTCP(job)
	case DropFromUDP:
		s.handleDropFromUDP(job)
	case SendToTCP:
		s.handleSendToTCP(job)
	case SendToUDP:
		s.handleSendToUDP(job)
	case BroadcastToTCP:
		s.handleBroadcastToTCP(job)
	case BroadcastToUDP:
		s.handleBroadcastToUDP(job)
	default:
		log.Print((&ProgrammingError{Reason: "unrecognized job type on schedule queue"}).Error())
	}
}

func (s *Server) handleDropFromWaiting(job DropFromWaiting) {
	p, ok := s.table.PendingRemove(job.Handle)
	if !ok {
		return
	}
	if job.Cause != nil {
		log.Printf("[relay] dropping pending peer %s: %v", job.Handle, job.Cause)
	}
	p.Conn.Close()
}

func (s *Server) handleDropFromTCP(job DropFromTCP) {
	p, ok := s.table.DropAuthenticated(job.ID)
	if !ok {
		return
	}
	if job.Cause != nil {
		log.Printf("[relay] dropping authenticated peer %s: %v", job.ID, job.Cause)
	}
	p.Conn.Close()
	s.queue.PushNow(BroadcastToTCP{Packet: protocol.GoodBye{ID: job.ID}})
}

func (s *Server) handleDropFromUDP(job DropFromUDP) {
	if job.Cause != nil {
		log.Printf("[relay] dropping datagram binding for %s: %v", job.Addr, job.Cause)
	}
	s.table.DropByAddr(job.Addr)
}

// writeStreamNonblocking writes framed to conn under a write deadline one
// millisecond away, so a peer whose kernel send buffer stays full fails
// the write promptly instead of stalling the single event-loop goroutine
// on another peer's I/O (spec §1, §5 Backpressure). A deadline that has
// already elapsed would fail every write before any byte is sent.
func writeStreamNonblocking(conn net.Conn, framed []byte) error {
	if err := conn.SetWriteDeadline(time.Now().Add(time.Millisecond)); err != nil {
		return err
	}
	_, err := conn.Write(framed)
	return err
}

func (s *Server) handleSendToTCP(job SendToTCP) {
	p, ok := s.table.AuthenticatedGet(job.ID)
	if !ok {
		log.Printf("[relay] %v: send to %s", ErrUnknownPeer, job.ID)
		return
	}
	framed := protocol.WrapStream(job.Packet.Encode())
	if err := writeStreamNonblocking(p.Conn, framed); err != nil {
		log.Printf("[relay] write to %s failed: %v", job.ID, err)
		s.queue.PushNow(DropFromTCP{ID: job.ID, Cause: err})
	}
}

func (s *Server) handleSendToUDP(job SendToUDP) {
	addr, ok := s.table.LookupAddrByID(job.ID)
	if !ok {
		log.Printf("[relay] %v: send to %s", ErrUnknownPeer, job.ID)
		return
	}
	if _, err := s.udpConn.WriteToUDP(job.Packet.Encode(), addr); err != nil {
		log.Printf("[relay] datagram write to %s failed: %v", job.ID, err)
	}
}

func (s *Server) handleBroadcastToTCP(job BroadcastToTCP) {
	framed := protocol.WrapStream(job.Packet.Encode())
	s.table.RangeAuthenticated(func(id string, p *session.Peer) {
		if _, excluded := job.Except[id]; excluded {
			return
		}
		if err := writeStreamNonblocking(p.Conn, framed); err != nil {
			log.Printf("[relay] broadcast write to %s failed: %v", id, err)
			s.queue.PushNow(DropFromTCP{ID: id, Cause: err})
		}
	})
}

func (s *Server) handleBroadcastToUDP(job BroadcastToUDP) {
	body := job.Packet.Encode()
	s.table.RangeAddrs(func(id string, addr *net.UDPAddr) {
		if _, excluded := job.Except[id]; excluded {
			return
		}
		if _, err := s.udpConn.WriteToUDP(body, addr); err != nil {
			log.Printf("[relay] broadcast datagram write to %s failed: %v", id, err)
			s.queue.PushNow(DropFromUDP{Addr: addr, Cause: err})
		}
	})
}
