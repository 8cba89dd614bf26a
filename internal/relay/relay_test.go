package relay

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"presencerelay/internal/protocol"
	"presencerelay/internal/schedule"
	"presencerelay/internal/session"
)

func drainQueue(s *Server) []schedule.Job {
	var jobs []schedule.Job
	for {
		job, ok := s.queue.PopEarliest()
		if !ok {
			return jobs
		}
		jobs = append(jobs, job)
	}
}

type stubAuth struct {
	ids map[string]string
	err error
}

func (a *stubAuth) Authenticate(ctx context.Context, token string) (string, error) {
	if a.err != nil {
		return "", a.err
	}
	id, ok := a.ids[token]
	if !ok {
		return "", &authRejected{token: token}
	}
	return id, nil
}

type authRejected struct{ token string }

func (e *authRejected) Error() string { return "auth rejected: " + e.token }

func newTestServer(auth Authenticator) *Server {
	return &Server{
		table:       session.NewTable(),
		queue:       schedule.New(),
		auth:        auth,
		authTimeout: time.Second,
	}
}

func TestHandleWaitingIncoming_PromotesOnSuccessfulHello(t *testing.T) {
	server, client := net.Pipe()
	t.Cleanup(func() { server.Close(); client.Close() })

	s := newTestServer(&stubAuth{ids: map[string]string{"tok-a": "A"}})
	p := session.NewPeer(server)
	s.table.AddPending(p)

	s.handleWaitingIncoming(p, protocol.TCPHello{Token: "tok-a"})

	got, ok := s.table.AuthenticatedGet("A")
	require.True(t, ok)
	assert.Same(t, p, got)

	_, stillPending := s.table.PendingGet(p.Handle)
	assert.False(t, stillPending)

	jobs := drainQueue(s)
	require.Len(t, jobs, 3)
	assert.IsType(t, SendToTCP{}, jobs[0])
	assert.Equal(t, protocol.HelloFromTCP{ID: "A"}, jobs[0].(SendToTCP).Packet)
	assert.IsType(t, SendToTCP{}, jobs[1])
	assert.IsType(t, protocol.Introduce{}, jobs[1].(SendToTCP).Packet)
	assert.IsType(t, BroadcastToTCP{}, jobs[2])
	assert.Equal(t, protocol.Welcome{ID: "A"}, jobs[2].(BroadcastToTCP).Packet)
	_, excluded := jobs[2].(BroadcastToTCP).Except["A"]
	assert.True(t, excluded)
}

func TestHandleWaitingIncoming_DropsOnAuthFailure(t *testing.T) {
	server, client := net.Pipe()
	t.Cleanup(func() { server.Close(); client.Close() })

	s := newTestServer(&stubAuth{})
	p := session.NewPeer(server)
	s.table.AddPending(p)

	s.handleWaitingIncoming(p, protocol.TCPHello{Token: "unknown"})

	jobs := drainQueue(s)
	require.Len(t, jobs, 1)
	drop, ok := jobs[0].(DropFromWaiting)
	require.True(t, ok)
	assert.Equal(t, p.Handle, drop.Handle)
	assert.Error(t, drop.Cause)
}

func TestHandleWaitingIncoming_IgnoresNonHello(t *testing.T) {
	server, client := net.Pipe()
	t.Cleanup(func() { server.Close(); client.Close() })

	s := newTestServer(&stubAuth{})
	p := session.NewPeer(server)
	s.table.AddPending(p)

	s.handleWaitingIncoming(p, protocol.UpdateRotation{Y: 1})

	_, stillPending := s.table.PendingGet(p.Handle)
	assert.True(t, stillPending)
	assert.Empty(t, drainQueue(s))
}

func TestHandleUDPHello_BindsAddrAndNotifiesOverStream(t *testing.T) {
	server, client := net.Pipe()
	t.Cleanup(func() { server.Close(); client.Close() })

	s := newTestServer(&stubAuth{ids: map[string]string{"tok-a": "A"}})
	p := session.NewPeer(server)
	s.table.AddPending(p)
	_, err := s.table.Promote(p.Handle, "A")
	require.NoError(t, err)

	addr := &net.UDPAddr{IP: net.ParseIP("127.0.0.1"), Port: 5000}
	s.handleUDPIncoming(addr, protocol.UDPHello{Token: "tok-a"})

	gotID, ok := s.table.LookupIDByAddr(addr)
	require.True(t, ok)
	assert.Equal(t, "A", gotID)

	jobs := drainQueue(s)
	require.Len(t, jobs, 1)
	send, ok := jobs[0].(SendToTCP)
	require.True(t, ok)
	assert.Equal(t, protocol.HelloFromUDP{ID: "A"}, send.Packet)
}

func TestHandleUDPIncoming_UpdateOriginRelaysExceptSelf(t *testing.T) {
	serverA, clientA := net.Pipe()
	serverB, clientB := net.Pipe()
	t.Cleanup(func() { serverA.Close(); clientA.Close(); serverB.Close(); clientB.Close() })

	s := newTestServer(&stubAuth{})
	pa := session.NewPeer(serverA)
	pb := session.NewPeer(serverB)
	s.table.AddPending(pa)
	s.table.AddPending(pb)
	_, err := s.table.Promote(pa.Handle, "A")
	require.NoError(t, err)
	_, err = s.table.Promote(pb.Handle, "B")
	require.NoError(t, err)

	addrA := &net.UDPAddr{IP: net.ParseIP("127.0.0.1"), Port: 5000}
	require.NoError(t, s.table.BindAddr("A", addrA))

	s.handleUDPIncoming(addrA, protocol.UpdateOrigin{})

	jobs := drainQueue(s)
	require.Len(t, jobs, 1)
	bc, ok := jobs[0].(BroadcastToUDP)
	require.True(t, ok)
	assert.Equal(t, protocol.UpdateOriginOut{ID: "A"}, bc.Packet)
	_, excluded := bc.Except["A"]
	assert.True(t, excluded)
}

func TestHandleUDPIncoming_SampleFromUnboundAddrIsSoftFailure(t *testing.T) {
	s := newTestServer(&stubAuth{})
	addr := &net.UDPAddr{IP: net.ParseIP("127.0.0.1"), Port: 9999}

	s.handleUDPIncoming(addr, protocol.UpdateRotation{Y: 2})

	assert.Empty(t, drainQueue(s))
}

func TestHandleTCPIncoming_IsANoop(t *testing.T) {
	server, client := net.Pipe()
	t.Cleanup(func() { server.Close(); client.Close() })

	s := newTestServer(&stubAuth{})
	p := session.NewPeer(server)
	p.Authenticated = true
	p.ID = "A"

	s.handleTCPIncoming(p, protocol.UpdateOrigin{})
	assert.Empty(t, drainQueue(s))
}

func TestHandleDropFromTCP_ClosesConnAndBroadcastsGoodBye(t *testing.T) {
	server, client := net.Pipe()
	t.Cleanup(func() { client.Close() })

	s := newTestServer(&stubAuth{})
	p := session.NewPeer(server)
	s.table.AddPending(p)
	_, err := s.table.Promote(p.Handle, "A")
	require.NoError(t, err)

	s.handleDropFromTCP(DropFromTCP{ID: "A"})

	_, ok := s.table.AuthenticatedGet("A")
	assert.False(t, ok)

	jobs := drainQueue(s)
	require.Len(t, jobs, 1)
	bc, ok := jobs[0].(BroadcastToTCP)
	require.True(t, ok)
	assert.Equal(t, protocol.GoodBye{ID: "A"}, bc.Packet)

	_, err = server.Write([]byte{0})
	assert.Error(t, err, "connection must be closed")
}

func TestHandleSendToTCP_UnknownIDIsSoftFailure(t *testing.T) {
	s := newTestServer(&stubAuth{})
	s.handleSendToTCP(SendToTCP{ID: "ghost", Packet: protocol.HelloFromTCP{ID: "ghost"}})
	assert.Empty(t, drainQueue(s))
}
