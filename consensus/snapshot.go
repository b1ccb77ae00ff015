package consensus

import (
	"github.com/libdist-rs/optrand/types"
)

// Snapshot is a point-in-time summary of a replica's progress, logged at
// Info on every epoch entry and queryable by the driver.
type Snapshot struct {
	Epoch             types.Epoch
	Leader            types.Replica
	CommittedHeight   types.Height
	QualifiedLeaders  int
	EquivocatedEpochs int
}

// Snapshot summarizes the replica's current state.
func (s *StateMachine) Snapshot() Snapshot {
	var height types.Height
	for h := types.Height(0); ; h++ {
		if s.storage.CommittedByHeight(h) == nil {
			break
		}
		height = h
	}
	return Snapshot{
		Epoch:             s.epoch,
		Leader:            s.leaderCtx.CurrentLeader(),
		CommittedHeight:   height,
		QualifiedLeaders:  s.leaderCtx.Len(),
		EquivocatedEpochs: len(s.storage.equivocated),
	}
}

func (s *StateMachine) logSnapshot() {
	snap := s.Snapshot()
	log.WithField("epoch", snap.Epoch).
		WithField("leader", snap.Leader).
		WithField("committed_height", snap.CommittedHeight).
		WithField("qualified_leaders", snap.QualifiedLeaders).
		Info("state snapshot")
}
