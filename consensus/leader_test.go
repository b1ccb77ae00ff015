package consensus

import (
	"testing"

	"github.com/libdist-rs/optrand/types"
)

func TestLeaderRotationVisitsEveryone(t *testing.T) {
	lc := NewLeaderContext(5)
	seen := make(map[types.Replica]int)
	for e := types.Epoch(1); e <= 5; e++ {
		seen[lc.CurrentLeader()]++
		lc.UpdateLeader(e)
	}
	if len(seen) != 5 {
		t.Fatalf("leader sequence visited %d distinct replicas, want 5", len(seen))
	}
	for r, count := range seen {
		if count != 1 {
			t.Fatalf("replica %d led %d times in one full rotation", r, count)
		}
	}
	// The second rotation repeats the same order.
	if lc.CurrentLeader() != 0 {
		t.Fatalf("rotation did not wrap to replica 0, got %d", lc.CurrentLeader())
	}
}

func TestLeaderRemovalIsPermanent(t *testing.T) {
	lc := NewLeaderContext(4)
	lc.UpdateLeader(1) // replica 0 led epoch 1
	lc.UpdateLeader(2) // replica 1 led epoch 2

	lc.RemoveLeader(2) // strike replica 1
	if lc.Qualified(1) {
		t.Fatal("removed leader still qualified")
	}
	if lc.Len() != 3 {
		t.Fatalf("rotation length %d after removal, want 3", lc.Len())
	}
	for e := types.Epoch(3); e < 20; e++ {
		if lc.CurrentLeader() == 1 {
			t.Fatal("removed leader reappeared in the rotation")
		}
		lc.UpdateLeader(e)
	}
}

func TestPastLeaderRecorded(t *testing.T) {
	lc := NewLeaderContext(3)
	first := lc.CurrentLeader()
	lc.UpdateLeader(7)
	got, ok := lc.PastLeader(7)
	if !ok || got != first {
		t.Fatalf("past leader of epoch 7: got %d/%v, want %d", got, ok, first)
	}
	if _, ok := lc.PastLeader(8); ok {
		t.Fatal("unrecorded epoch reported a past leader")
	}
}

func TestRemoveLastLeaderRefused(t *testing.T) {
	lc := NewLeaderContext(2)
	lc.UpdateLeader(1)
	lc.RemoveLeader(1)
	if lc.Len() != 1 {
		t.Fatalf("rotation length %d, want 1", lc.Len())
	}
	lc.UpdateLeader(2)
	lc.RemoveLeader(2)
	if lc.Len() != 1 {
		t.Fatal("last qualified leader was removed")
	}
}
