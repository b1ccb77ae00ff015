package consensus

import (
	"container/heap"
	"time"

	"github.com/libdist-rs/optrand/types"
)

// Clock abstracts time so the deterministic simulation tests can own it.
type Clock interface {
	Now() time.Time
}

// RealClock is the wall clock.
type RealClock struct{}

// Now implements Clock.
func (RealClock) Now() time.Time { return time.Now() }

// OutMsg is an outgoing message: Target == Broadcast means every peer.
type OutMsg struct {
	Target types.Replica
	Msg    types.ProtocolMsg
}

// Broadcast is the out-of-range target id meaning "all replicas".
const Broadcast types.Replica = 0xffff

// timerEntry is one scheduled timeout with its absolute deadline. seq
// breaks ties so same-instant timers run in scheduling order.
type timerEntry struct {
	deadline time.Time
	seq      uint64
	epoch    types.Epoch
	ev       TimeoutEvent
}

type timerHeap []*timerEntry

func (h timerHeap) Len() int { return len(h) }
func (h timerHeap) Less(i, j int) bool {
	if h[i].deadline.Equal(h[j].deadline) {
		return h[i].seq < h[j].seq
	}
	return h[i].deadline.Before(h[j].deadline)
}
func (h timerHeap) Swap(i, j int)       { h[i], h[j] = h[j], h[i] }
func (h *timerHeap) Push(x interface{}) { *h = append(*h, x.(*timerEntry)) }
func (h *timerHeap) Pop() interface{} {
	old := *h
	n := len(old)
	e := old[n-1]
	old[n-1] = nil
	*h = old[:n-1]
	return e
}

// EventQueue merges ready events (FIFO) with scheduled timeouts, ready
// events first. Outgoing messages are funneled through it as well so
// handlers never touch the transport directly.
type EventQueue struct {
	ready  []Event
	timers timerHeap
	seq    uint64

	clock  Clock
	anchor time.Time
	sendFn func(OutMsg)
}

// NewEventQueue builds a queue; sendFn hands outgoing messages to the
// transport layer.
func NewEventQueue(capacity int, clock Clock, sendFn func(OutMsg)) *EventQueue {
	q := &EventQueue{
		ready:  make([]Event, 0, capacity),
		clock:  clock,
		sendFn: sendFn,
	}
	q.anchor = clock.Now()
	heap.Init(&q.timers)
	return q
}

// ResetAnchor records the current instant as the epoch anchor; called on
// every epoch entry. AddTimeout does not use the anchor: its offsets are
// measured from the clock's time at the call.
func (q *EventQueue) ResetAnchor() { q.anchor = q.clock.Now() }

// Anchor returns the current epoch anchor.
func (q *EventQueue) Anchor() time.Time { return q.anchor }

// AddEvent appends a ready event.
func (q *EventQueue) AddEvent(ev Event) { q.ready = append(q.ready, ev) }

// AddTimeout schedules tev at offset d from now, tagged with the epoch it
// belongs to so stale timers can be flushed wholesale.
func (q *EventQueue) AddTimeout(tev TimeoutEvent, d time.Duration, e types.Epoch) {
	q.seq++
	heap.Push(&q.timers, &timerEntry{
		deadline: q.clock.Now().Add(d),
		seq:      q.seq,
		epoch:    e,
		ev:       tev,
	})
}

// FlushEpochsBefore drops every timer tagged with an epoch below e.
func (q *EventQueue) FlushEpochsBefore(e types.Epoch) {
	kept := q.timers[:0]
	for _, t := range q.timers {
		if t.epoch >= e {
			kept = append(kept, t)
		}
	}
	q.timers = kept
	heap.Init(&q.timers)
}

// Poll returns the next event: ready events in FIFO order first, then any
// timer whose deadline has passed.
func (q *EventQueue) Poll() (Event, bool) {
	if len(q.ready) > 0 {
		ev := q.ready[0]
		q.ready = q.ready[1:]
		return ev, true
	}
	now := q.clock.Now()
	if len(q.timers) > 0 && !q.timers[0].deadline.After(now) {
		t := heap.Pop(&q.timers).(*timerEntry)
		return Event{Timeout: &t.ev}, true
	}
	return Event{}, false
}

// NextDeadline reports the earliest pending timer, if any, so the reactor
// can sleep exactly until it.
func (q *EventQueue) NextDeadline() (time.Time, bool) {
	if len(q.timers) == 0 {
		return time.Time{}, false
	}
	return q.timers[0].deadline, true
}

// HasReady reports whether a ready event is queued.
func (q *EventQueue) HasReady() bool { return len(q.ready) > 0 }

// Send hands an outgoing message to the transport.
func (q *EventQueue) Send(target types.Replica, msg types.ProtocolMsg) {
	if q.sendFn != nil {
		q.sendFn(OutMsg{Target: target, Msg: msg})
	}
}

// Multicast sends to every peer.
func (q *EventQueue) Multicast(msg types.ProtocolMsg) { q.Send(Broadcast, msg) }
