package consensus

import (
	"testing"
	"time"

	"github.com/libdist-rs/optrand/types"
)

// simClock is a manually advanced clock for deterministic tests.
type simClock struct {
	now time.Time
}

func newSimClock() *simClock {
	return &simClock{now: time.Unix(1_700_000_000, 0)}
}

func (c *simClock) Now() time.Time          { return c.now }
func (c *simClock) Advance(d time.Duration) { c.now = c.now.Add(d) }

func TestQueueReadyBeforeTimeouts(t *testing.T) {
	clock := newSimClock()
	q := NewEventQueue(16, clock, nil)

	q.AddTimeout(TimeoutEvent{Kind: EpochTimeout, Epoch: 1}, 0, 1)
	q.AddEvent(Event{NewEpoch: 7})

	ev, ok := q.Poll()
	if !ok || ev.NewEpoch != 7 {
		t.Fatal("ready event did not come before a due timeout")
	}
	ev, ok = q.Poll()
	if !ok || ev.Timeout == nil || ev.Timeout.Kind != EpochTimeout {
		t.Fatal("due timeout missing after ready events drained")
	}
	if _, ok := q.Poll(); ok {
		t.Fatal("empty queue yielded an event")
	}
}

func TestQueueTimeoutOrdering(t *testing.T) {
	clock := newSimClock()
	q := NewEventQueue(16, clock, nil)

	q.AddTimeout(TimeoutEvent{Kind: StopAcceptingProposals, Epoch: 1}, 4*time.Millisecond, 1)
	q.AddTimeout(TimeoutEvent{Kind: ProposeWaitTimeout, Epoch: 1}, 2*time.Millisecond, 1)
	// Same instant: scheduling order breaks the tie.
	q.AddTimeout(TimeoutEvent{Kind: StopAcceptingSyncCerts, Epoch: 1}, 8*time.Millisecond, 1)
	q.AddTimeout(TimeoutEvent{Kind: StopAcceptingAcks, Epoch: 1}, 8*time.Millisecond, 1)

	if _, ok := q.Poll(); ok {
		t.Fatal("timer fired before its deadline")
	}
	clock.Advance(10 * time.Millisecond)

	var kinds []TimeoutKind
	for {
		ev, ok := q.Poll()
		if !ok {
			break
		}
		kinds = append(kinds, ev.Timeout.Kind)
	}
	want := []TimeoutKind{ProposeWaitTimeout, StopAcceptingProposals, StopAcceptingSyncCerts, StopAcceptingAcks}
	if len(kinds) != len(want) {
		t.Fatalf("got %d timeouts, want %d", len(kinds), len(want))
	}
	for i := range want {
		if kinds[i] != want[i] {
			t.Fatalf("timeout %d: got %v, want %v", i, kinds[i], want[i])
		}
	}
}

func TestQueueEpochFlush(t *testing.T) {
	clock := newSimClock()
	q := NewEventQueue(16, clock, nil)

	q.AddTimeout(TimeoutEvent{Kind: SyncVoteWaitTimeout, Epoch: 1}, time.Millisecond, 1)
	q.AddTimeout(TimeoutEvent{Kind: CommitTimeout, Epoch: 1}, time.Millisecond, 1)
	q.AddTimeout(TimeoutEvent{Kind: EpochTimeout, Epoch: 2}, time.Millisecond, 2)

	q.FlushEpochsBefore(2)
	clock.Advance(2 * time.Millisecond)

	ev, ok := q.Poll()
	if !ok || ev.Timeout.Epoch != 2 {
		t.Fatal("epoch-2 timer lost in the flush")
	}
	if _, ok := q.Poll(); ok {
		t.Fatal("stale epoch-1 timer survived the flush")
	}
}

func TestQueueSendFunnel(t *testing.T) {
	clock := newSimClock()
	var sent []OutMsg
	q := NewEventQueue(4, clock, func(m OutMsg) { sent = append(sent, m) })

	q.Send(2, &types.SyncMsg{})
	q.Multicast(&types.SyncMsg{})
	if len(sent) != 2 {
		t.Fatalf("sent %d messages, want 2", len(sent))
	}
	if sent[0].Target != 2 || sent[1].Target != Broadcast {
		t.Fatal("targets not preserved")
	}
}
