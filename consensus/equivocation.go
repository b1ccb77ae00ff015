package consensus

import (
	"github.com/libdist-rs/optrand/types"
)

// publishEquivocation multicasts the two conflicting leader-signed
// accumulators so replicas that only ever saw one of the proposals still
// disable the epoch.
func (s *StateMachine) publishEquivocation(e types.Epoch, second *types.Proof[types.DirectProposal]) {
	firstAcc, firstSign, ok := s.storage.PropAcc(e)
	if !ok || firstAcc.Equals(second.Acc) {
		return
	}
	s.sendEquivocation(e, firstAcc, firstSign, second)
}

func (s *StateMachine) sendEquivocation(e types.Epoch,
	firstAcc types.MTAccumulator[types.DirectProposal],
	firstSign types.Certificate[types.SignedAccumulator[types.DirectProposal]],
	second *types.Proof[types.DirectProposal],
) {
	if s.queue == nil {
		return
	}
	s.queue.Multicast(&types.EquivocationMsg{Ev: types.EquivData[types.DirectProposal]{
		Epoch: e,
		Acc:   [2]types.MTAccumulator[types.DirectProposal]{firstAcc, second.Acc},
		Sign:  [2]types.Certificate[types.SignedAccumulator[types.DirectProposal]]{firstSign, second.Sign},
	}})
}

// onEquivocation verifies received evidence and marks the epoch.
func (s *StateMachine) onEquivocation(from types.Replica, m *types.EquivocationMsg) {
	if s.storage.IsEquivocated(m.Ev.Epoch) {
		return
	}
	leader := s.leaderCtx.CurrentLeader()
	if m.Ev.Epoch != s.epoch {
		// Evidence about another epoch still needs the right leader;
		// past epochs no longer vote, so only the current one matters.
		return
	}
	if err := m.Ev.IsValid(leader, s.pks); err != nil {
		log.WithField("from", from).Warnf("bad equivocation evidence: %v", err)
		return
	}
	log.WithField("epoch", m.Ev.Epoch).WithField("leader", leader).Warn("equivocation proven; epoch disabled")
	s.storage.MarkEquivocated(m.Ev.Epoch)
	s.rnd.EquivocationSeen = true
}
