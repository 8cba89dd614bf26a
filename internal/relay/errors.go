package relay

import (
	"errors"
	"fmt"
)

// ErrUnknownPeer marks a soft failure: a Send* job targeted an id with no
// live stream or datagram binding, or an UpdateOrigin/UpdateRotation
// datagram arrived from an address with no binding yet. Per spec §7 this
// is logged and the loop continues; it is never escalated to a drop.
var ErrUnknownPeer = errors.New("unknown peer")

// ErrWouldBlock is the spec's "spurious readiness, try again later"
// sentinel (§7). The relay's read pumps perform a blocking frame read
// rather than poll-then-nonblocking-read, so this case cannot arise in
// practice; it is kept only so the error taxonomy matches spec §7
// one-for-one (see DESIGN.md, redesign decision 7).
var ErrWouldBlock = errors.New("would block")

// ProgrammingError reports an invariant violation that must never reach a
// caller uncaught — e.g. an unrecognized job type reaching handleJob from
// the schedule queue. Per spec §7 it
// is logged and the loop continues rather than crashing.
type ProgrammingError struct {
	Reason string
}

func (e *ProgrammingError) Error() string {
	return fmt.Sprintf("programming error: %s", e.Reason)
}
