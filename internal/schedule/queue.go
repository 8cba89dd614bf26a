// Package schedule implements the deadline-ordered job queue: a min-heap
// of (job, deadline) pairs, grounded on original_source/src/schedule.rs
// and src/schedule_queue.rs.
package schedule

import (
	"container/heap"
	"time"
)

// Job is any unit of deferred work the relay's event loop can carry on
// its schedule queue. internal/relay's concrete job types implement it.
type Job interface{}

// item is one (job, deadline) pair. Ties in deadline are broken by
// insertion sequence, which is arbitrary but consistent (spec §3).
type item struct {
	job      Job
	deadline time.Time
	seq      uint64
}

// innerHeap is the container/heap.Interface plumbing; Queue wraps it with
// a friendlier API so that method name doesn't collide with heap.Interface's
// own Push/Pop signatures.
type innerHeap []*item

func (h innerHeap) Len() int { return len(h) }

func (h innerHeap) Less(i, j int) bool {
	if h[i].deadline.Equal(h[j].deadline) {
		return h[i].seq < h[j].seq
	}
	return h[i].deadline.Before(h[j].deadline)
}

func (h innerHeap) Swap(i, j int) { h[i], h[j] = h[j], h[i] }

func (h *innerHeap) Push(x any) {
	*h = append(*h, x.(*item))
}

func (h *innerHeap) Pop() any {
	old := *h
	n := len(old)
	it := old[n-1]
	old[n-1] = nil
	*h = old[:n-1]
	return it
}

// Queue is a min-heap of scheduled jobs ordered by earliest deadline
// first. It is not safe for concurrent use; the relay's event loop is the
// only goroutine that ever touches it.
type Queue struct {
	h       innerHeap
	nextSeq uint64
}

// New constructs an empty Queue.
func New() *Queue {
	q := &Queue{}
	heap.Init(&q.h)
	return q
}

// Push schedules job to run at deadline. Use time.Now() for immediate
// work.
func (q *Queue) Push(job Job, deadline time.Time) {
	heap.Push(&q.h, &item{job: job, deadline: deadline, seq: q.nextSeq})
	q.nextSeq++
}

// PushNow schedules job to run as soon as the loop next checks the queue.
func (q *Queue) PushNow(job Job) {
	q.Push(job, time.Now())
}

// Len reports how many jobs are currently scheduled.
func (q *Queue) Len() int { return q.h.Len() }

// IsDueNow reports whether the queue is non-empty and its earliest
// deadline has already elapsed.
func (q *Queue) IsDueNow(now time.Time) bool {
	if q.h.Len() == 0 {
		return false
	}
	return !q.h[0].deadline.After(now)
}

// PeekDeadline returns the earliest scheduled deadline, if any.
func (q *Queue) PeekDeadline() (time.Time, bool) {
	if q.h.Len() == 0 {
		return time.Time{}, false
	}
	return q.h[0].deadline, true
}

// PopEarliest removes and returns the job with the earliest deadline. The
// second return value is false if the queue was empty.
func (q *Queue) PopEarliest() (Job, bool) {
	if q.h.Len() == 0 {
		return nil, false
	}
	it := heap.Pop(&q.h).(*item)
	return it.job, true
}

// WaitUntilEarliest returns a timer firing at the earliest scheduled
// deadline, and true if one exists. The caller is responsible for
// stopping the timer if it wins a select race against other sources,
// mirroring original_source/src/schedule_queue.rs's
// wait_for_first/sleep_until, which fails outright on an empty queue
// rather than blocking forever.
func (q *Queue) WaitUntilEarliest() (*time.Timer, bool) {
	deadline, ok := q.PeekDeadline()
	if !ok {
		return nil, false
	}
	return time.NewTimer(time.Until(deadline)), true
}
