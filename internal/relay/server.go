// Package relay implements the single-threaded cooperative event loop that
// owns every connected peer: accepting stream connections, reading both
// channels, running the authentication state machine, and dispatching the
// scheduled jobs the state machine produces. Grounded on
// original_source/src/context.rs and src/main.rs's select loop, and on the
// teacher's internal/websocket.Hub.Run() channel-select pattern for the
// Go idiom that stands in for tokio::select!.
package relay

import (
	"context"
	"fmt"
	"log"
	"net"
	"time"

	"presencerelay/internal/protocol"
	"presencerelay/internal/schedule"
	"presencerelay/internal/session"
)

// Authenticator exchanges a bearer token for the peer id the auth service
// assigns it. *authclient.Client satisfies this; tests supply a stub.
type Authenticator interface {
	Authenticate(ctx context.Context, token string) (string, error)
}

// Server owns the relay's listener, datagram socket, and all connected
// peer state. A Server must not be shared across goroutines: every method
// other than Run's setup is called exclusively from the goroutine running
// Run.
type Server struct {
	listener    net.Listener
	udpConn     *net.UDPConn
	table       *session.Table
	queue       *schedule.Queue
	auth        Authenticator
	authTimeout time.Duration

	acceptCh chan acceptResult
	frameCh  chan frameResult
	udpCh    chan udpResult
}

type acceptResult struct {
	conn net.Conn
	err  error
}

type frameResult struct {
	peer  *session.Peer
	frame []byte
	err   error
}

type udpResult struct {
	data []byte
	addr *net.UDPAddr
	err  error
}

// New constructs a Server around an already-bound listener and datagram
// socket. authTimeout bounds every call to auth.
func New(listener net.Listener, udpConn *net.UDPConn, auth Authenticator, authTimeout time.Duration) *Server {
	return &Server{
		listener:    listener,
		udpConn:     udpConn,
		table:       session.NewTable(),
		queue:       schedule.New(),
		auth:        auth,
		authTimeout: authTimeout,
		acceptCh:    make(chan acceptResult),
		frameCh:     make(chan frameResult),
		udpCh:       make(chan udpResult),
	}
}

// acceptLoop is the stream channel's readiness pump (spec §5 C5): it
// blocks in Accept and fans every result into acceptCh, where the event
// loop picks it up alongside every other source. It exits after the first
// error, which the loop treats as fatal.
func (s *Server) acceptLoop() {
	for {
		conn, err := s.listener.Accept()
		s.acceptCh <- acceptResult{conn: conn, err: err}
		if err != nil {
			return
		}
	}
}

// watchPeer starts a read pump for one pending or authenticated stream
// connection. It performs a blocking frame read and reports every result,
// including failures, on frameCh; it exits after the first error, which
// the loop resolves into a drop for whichever map currently owns the peer.
func (s *Server) watchPeer(p *session.Peer) {
	go func() {
		for {
			frame, err := protocol.ReadStreamFrame(p.Reader)
			s.frameCh <- frameResult{peer: p, frame: frame, err: err}
			if err != nil {
				return
			}
		}
	}()
}

// udpLoop is the datagram channel's readiness pump: one packet per
// ReadFromUDP call, fanned into udpCh. It exits after the first error.
func (s *Server) udpLoop() {
	buf := make([]byte, protocol.MaxFrameSize)
	for {
		n, addr, err := s.udpConn.ReadFromUDP(buf)
		if err != nil {
			s.udpCh <- udpResult{err: err}
			return
		}
		data := make([]byte, n)
		copy(data, buf[:n])
		s.udpCh <- udpResult{data: data, addr: addr}
	}
}

// Run is the event selector (spec §6): on every iteration it first drains
// any job already due, and only falls through to select on new I/O (plus
// a timer for the next scheduled deadline) once the queue has nothing
// ready. It returns when ctx is cancelled or either transport's listening
// socket fails irrecoverably.
func (s *Server) Run(ctx context.Context) error {
	go s.acceptLoop()
	go s.udpLoop()

	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		now := time.Now()
		if s.queue.IsDueNow(now) {
			job, _ := s.queue.PopEarliest()
			s.handleJob(job)
			continue
		}

		timer, hasTimer := s.queue.WaitUntilEarliest()
		var timerC <-chan time.Time
		if hasTimer {
			timerC = timer.C
		}

		select {
		case <-ctx.Done():
			if hasTimer {
				timer.Stop()
			}
			return ctx.Err()

		case res := <-s.acceptCh:
			if hasTimer {
				timer.Stop()
			}
			if res.err != nil {
				return fmt.Errorf("stream listener failed: %w", res.err)
			}
			s.handleAccept(res.conn)

		case res := <-s.frameCh:
			if hasTimer {
				timer.Stop()
			}
			s.handleFrameEvent(res)

		case res := <-s.udpCh:
			if hasTimer {
				timer.Stop()
			}
			if res.err != nil {
				return fmt.Errorf("datagram socket failed: %w", res.err)
			}
			s.handleDatagram(res.data, res.addr)

		case <-timerC:
			job, _ := s.queue.PopEarliest()
			s.handleJob(job)
		}
	}
}

func (s *Server) handleAccept(conn net.Conn) {
	p := session.NewPeer(conn)
	s.table.AddPending(p)
	s.watchPeer(p)
	log.Printf("[relay] accepted stream connection %s from %s", p.Handle, conn.RemoteAddr())
}

func (s *Server) handleFrameEvent(res frameResult) {
	p := res.peer
	if res.err != nil {
		s.dropStream(p, res.err)
		return
	}

	incoming, err := protocol.DecodeIncoming(res.frame)
	if err != nil {
		s.dropStream(p, err)
		return
	}

	if !p.Authenticated {
		s.handleWaitingIncoming(p, incoming)
	} else {
		s.handleTCPIncoming(p, incoming)
	}
}

func (s *Server) dropStream(p *session.Peer, cause error) {
	if p.Authenticated {
		s.queue.PushNow(DropFromTCP{ID: p.ID, Cause: cause})
	} else {
		s.queue.PushNow(DropFromWaiting{Handle: p.Handle, Cause: cause})
	}
}

func (s *Server) handleDatagram(data []byte, addr *net.UDPAddr) {
	incoming, err := protocol.DecodeIncoming(data)
	if err != nil {
		s.queue.PushNow(DropFromUDP{Addr: addr, Cause: err})
		return
	}
	s.handleUDPIncoming(addr, incoming)
}
