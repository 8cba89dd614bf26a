// Package session holds the relay's connected-peer state: pending
// (unauthenticated) streams, the authenticated id -> stream map, and the
// id <-> datagram-address binding, grounded on
// original_source/src/context.rs's Context struct.
//
// Table is not safe for concurrent use. It is owned and mutated
// exclusively by the relay's single event-loop goroutine, per spec §5.
package session

import (
	"bufio"
	"fmt"
	"net"

	"github.com/google/uuid"

	"presencerelay/internal/collection"
)

// Peer is a single accepted stream-channel connection. Handle is a
// stable, generation-safe identity assigned at accept time — the
// redesign spec §9 sanctions in place of the original's fragile slice
// index ("Implementers may substitute a generation-tagged handle").
type Peer struct {
	Handle uuid.UUID
	Conn   net.Conn
	Reader *bufio.Reader

	// ID is empty until the peer completes TcpHello; Authenticated
	// reports which collection currently owns it.
	ID            string
	Authenticated bool
}

// NewPeer wraps a freshly accepted stream connection.
func NewPeer(conn net.Conn) *Peer {
	return &Peer{
		Handle: uuid.New(),
		Conn:   conn,
		Reader: bufio.NewReader(conn),
	}
}

// AddrKey is a comparable stand-in for net.Addr, since the relay needs to
// use peer addresses as map keys (net.Addr itself is only an interface).
type AddrKey struct {
	IP   string
	Port int
	Zone string
}

// KeyForUDPAddr derives an AddrKey from a resolved UDP address.
func KeyForUDPAddr(addr *net.UDPAddr) AddrKey {
	return AddrKey{IP: addr.IP.String(), Port: addr.Port, Zone: addr.Zone}
}

// Table holds every piece of connected-peer state: pending streams,
// authenticated streams by id, and the id<->addr binding.
type Table struct {
	pending       map[uuid.UUID]*Peer
	authenticated map[string]*Peer
	addrs         *collection.BiMap[string, AddrKey]
	routes        map[AddrKey]*net.UDPAddr
}

// NewTable constructs an empty Table.
func NewTable() *Table {
	return &Table{
		pending:       make(map[uuid.UUID]*Peer),
		authenticated: make(map[string]*Peer),
		addrs:         collection.New[string, AddrKey](),
		routes:        make(map[AddrKey]*net.UDPAddr),
	}
}

// AddPending inserts a freshly accepted connection into the pending set.
func (t *Table) AddPending(p *Peer) {
	t.pending[p.Handle] = p
}

// PendingGet resolves a pending handle.
func (t *Table) PendingGet(handle uuid.UUID) (*Peer, bool) {
	p, ok := t.pending[handle]
	return p, ok
}

// PendingRemove drops a pending connection. A missing handle is a no-op
// (spec §4.8: index/handle resolution must tolerate prior structural
// changes), reported via the boolean return.
func (t *Table) PendingRemove(handle uuid.UUID) (*Peer, bool) {
	p, ok := t.pending[handle]
	if !ok {
		return nil, false
	}
	delete(t.pending, handle)
	return p, true
}

// AuthenticatedGet resolves an authenticated stream by id.
func (t *Table) AuthenticatedGet(id string) (*Peer, bool) {
	p, ok := t.authenticated[id]
	return p, ok
}

// RangeAuthenticated calls fn for every authenticated peer. fn must not
// mutate the Table.
func (t *Table) RangeAuthenticated(fn func(id string, p *Peer)) {
	for id, p := range t.authenticated {
		fn(id, p)
	}
}

// AuthenticatedIDs snapshots the current authenticated id set, in no
// particular order — used to build the Introduce roster handed to a
// newly promoted peer.
func (t *Table) AuthenticatedIDs() []string {
	ids := make([]string, 0, len(t.authenticated))
	for id := range t.authenticated {
		ids = append(ids, id)
	}
	return ids
}

// ErrUnknownHandle reports a promotion against a pending handle that no
// longer exists (already dropped, or never existed). BindAddr also wraps
// it when asked to bind an id that has no authenticated stream.
var ErrUnknownHandle = fmt.Errorf("unknown pending handle")

// ErrIDAlreadyAuthenticated reports an attempted promotion to an id that
// is already bound to a live authenticated stream — a programming error
// per spec §3 ("reconnection uses the same id only after the previous
// session has been fully dropped").
var ErrIDAlreadyAuthenticated = fmt.Errorf("id already authenticated")

// Promote moves a pending stream to the authenticated map under id. It is
// the transactional remove-then-insert spec §3 requires: the pending
// entry is gone and the authenticated entry exists, with nothing in
// between observable by any other job.
func (t *Table) Promote(handle uuid.UUID, id string) (*Peer, error) {
	p, ok := t.pending[handle]
	if !ok {
		return nil, ErrUnknownHandle
	}
	if _, exists := t.authenticated[id]; exists {
		return nil, ErrIDAlreadyAuthenticated
	}
	delete(t.pending, handle)
	p.ID = id
	p.Authenticated = true
	t.authenticated[id] = p
	return p, nil
}

// DropAuthenticated removes the authenticated stream for id along with
// any datagram binding it holds, preserving the invariant that a
// datagram binding never outlives its stream session (spec §3).
func (t *Table) DropAuthenticated(id string) (*Peer, bool) {
	p, ok := t.authenticated[id]
	if !ok {
		return nil, false
	}
	delete(t.authenticated, id)
	if addr, bound := t.addrs.RemoveByKey(id); bound {
		delete(t.routes, addr)
	}
	return p, true
}

// BindAddr establishes the datagram binding (id, addr), evicting any
// prior binding for either side. It refuses to bind an id with no
// authenticated stream (spec §3 invariant: "the state machine must not
// produce a binding for an unknown id; violation is a programming
// error").
func (t *Table) BindAddr(id string, addr *net.UDPAddr) error {
	if _, ok := t.authenticated[id]; !ok {
		return fmt.Errorf("%w: cannot bind datagram address to unauthenticated id %q", ErrUnknownHandle, id)
	}
	key := KeyForUDPAddr(addr)

	// Insert evicts both halves of any prior binding that shared either
	// side; mirror that eviction in the side table of live net.UDPAddrs.
	if oldKey, had := t.addrs.LookupByKey(id); had && oldKey != key {
		delete(t.routes, oldKey)
	}
	if oldID, had := t.addrs.LookupByValue(key); had && oldID != id {
		if oldKey, ok := t.addrs.LookupByKey(oldID); ok {
			delete(t.routes, oldKey)
		}
	}

	t.addrs.Insert(id, key)
	t.routes[key] = addr
	return nil
}

// DropByAddr removes the datagram binding for addr, if any. The
// corresponding stream session is left untouched (spec §4.8
// DropFromUdp).
func (t *Table) DropByAddr(addr *net.UDPAddr) (string, bool) {
	key := KeyForUDPAddr(addr)
	id, ok := t.addrs.RemoveByValue(key)
	if ok {
		delete(t.routes, key)
	}
	return id, ok
}

// LookupIDByAddr resolves the id bound to a datagram address.
func (t *Table) LookupIDByAddr(addr *net.UDPAddr) (string, bool) {
	return t.addrs.LookupByValue(KeyForUDPAddr(addr))
}

// LookupAddrByID resolves the live net.UDPAddr bound to id, if any.
func (t *Table) LookupAddrByID(id string) (*net.UDPAddr, bool) {
	key, ok := t.addrs.LookupByKey(id)
	if !ok {
		return nil, false
	}
	addr, ok := t.routes[key]
	return addr, ok
}

// RangeAddrs calls fn for every (id, addr) datagram binding. fn must not
// mutate the Table.
func (t *Table) RangeAddrs(fn func(id string, addr *net.UDPAddr)) {
	t.addrs.Range(func(id string, key AddrKey) {
		fn(id, t.routes[key])
	})
}
