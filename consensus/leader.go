package consensus

import (
	"container/list"

	"github.com/libdist-rs/optrand/types"
)

// LeaderContext is the rotating list of qualified leaders. The front of
// the list leads the current epoch; on rotation the front moves to the
// back and is recorded as the epoch's past leader, and a leader caught
// failing the commit rule f epochs later is removed for good.
type LeaderContext struct {
	leaders     *list.List
	byReplica   map[types.Replica]*list.Element
	pastLeaders map[types.Epoch]types.Replica
}

// NewLeaderContext seeds the rotation with every replica in id order.
func NewLeaderContext(n int) *LeaderContext {
	lc := &LeaderContext{
		leaders:     list.New(),
		byReplica:   make(map[types.Replica]*list.Element, n),
		pastLeaders: make(map[types.Epoch]types.Replica),
	}
	for i := 0; i < n; i++ {
		lc.byReplica[types.Replica(i)] = lc.leaders.PushBack(types.Replica(i))
	}
	return lc
}

// CurrentLeader returns the front of the rotation.
func (lc *LeaderContext) CurrentLeader() types.Replica {
	return lc.leaders.Front().Value.(types.Replica)
}

// IsLeader reports whether id leads the current epoch.
func (lc *LeaderContext) IsLeader(id types.Replica) bool { return id == lc.CurrentLeader() }

// UpdateLeader rotates the front to the back, recording it as oldEpoch's
// leader.
func (lc *LeaderContext) UpdateLeader(oldEpoch types.Epoch) {
	front := lc.leaders.Front()
	old := front.Value.(types.Replica)
	lc.leaders.Remove(front)
	lc.byReplica[old] = lc.leaders.PushBack(old)
	lc.pastLeaders[oldEpoch] = old
}

// PastLeader returns the leader recorded for e.
func (lc *LeaderContext) PastLeader(e types.Epoch) (types.Replica, bool) {
	r, ok := lc.pastLeaders[e]
	return r, ok
}

// RemoveLeader permanently strikes e's past leader from the rotation.
func (lc *LeaderContext) RemoveLeader(e types.Epoch) {
	r, ok := lc.pastLeaders[e]
	if !ok {
		return
	}
	el, ok := lc.byReplica[r]
	if !ok {
		return
	}
	if lc.leaders.Len() == 1 {
		// Never empty the rotation; a lone remaining leader stays.
		log.WithField("replica", r).Error("refusing to remove the last qualified leader")
		return
	}
	lc.leaders.Remove(el)
	delete(lc.byReplica, r)
	log.WithField("replica", r).WithField("epoch", e).Warn("leader removed from rotation")
}

// Qualified reports whether r is still in the rotation.
func (lc *LeaderContext) Qualified(r types.Replica) bool {
	_, ok := lc.byReplica[r]
	return ok
}

// Len returns the number of qualified leaders.
func (lc *LeaderContext) Len() int { return lc.leaders.Len() }
