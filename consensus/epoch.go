package consensus

import (
	"github.com/libdist-rs/optrand/types"
)

// Bootstrap seeds the very first epoch clock. Replica 0 multicasts the
// Sync message and schedules its own pre-protocol epoch to end one Δ
// later; every other replica does the same when the Sync message
// arrives (see OnMessage), which lands everyone in
// StartEpoch at roughly the same instant.
func (s *StateMachine) Bootstrap(q *EventQueue) {
	if s.myID() == 0 {
		q.Multicast(&types.SyncMsg{})
		q.AddTimeout(TimeoutEvent{Kind: EpochTimeout, Epoch: 0}, s.xDelta(1), 0)
	}
}

// onEpochEnd is the 11Δ edge: rotate the leader, reset per-round state,
// flush stale timers, arm the new epoch's clock, and run the status phase.
func (s *StateMachine) onEpochEnd(q *EventQueue) {
	if s.epoch >= types.StartEpoch {
		s.leaderCtx.UpdateLeader(s.epoch)
	}
	s.epoch++
	s.rnd.Reset(s.cfg.NumNodes)
	s.worker.AdvanceEpoch(s.epoch)
	q.ResetAnchor()
	q.FlushEpochsBefore(s.epoch)

	s.logSnapshot()

	q.AddTimeout(TimeoutEvent{Kind: EpochTimeout, Epoch: s.epoch}, s.xDelta(11), s.epoch)
	q.AddTimeout(TimeoutEvent{Kind: StopAcceptingProposals, Epoch: s.epoch}, s.xDelta(4), s.epoch)
	q.AddTimeout(TimeoutEvent{Kind: StopAcceptingSyncCerts, Epoch: s.epoch}, s.xDelta(8), s.epoch)
	q.AddTimeout(TimeoutEvent{Kind: StopAcceptingAcks, Epoch: s.epoch}, s.xDelta(9), s.epoch)

	q.AddEvent(Event{NewEpoch: s.epoch})

	// Drain messages buffered for this epoch.
	if pending := s.futureMsgs[s.epoch]; len(pending) > 0 {
		delete(s.futureMsgs, s.epoch)
		for _, m := range pending {
			s.OnMessage(m.From, m.Msg, q)
		}
	}

	s.onStatus(q)
}

// onNewEpochEvent runs the commit-or-remove accountability rule for the
// epoch f back, then starts the beacon opening for this epoch.
func (s *StateMachine) onNewEpochEvent(e types.Epoch, q *EventQueue) {
	if e > types.StartEpoch+types.Epoch(s.cfg.NumFaults) {
		s.accountPastLeader(e - types.Epoch(s.cfg.NumFaults))
	}
	s.startBeacon(e, q)
}

// accountPastLeader inspects the proposal from target. If its block sits
// on the chain behind the highest certified block it is committed;
// otherwise, or if no proposal ever arrived, the leader is struck from
// the rotation.
func (s *StateMachine) accountPastLeader(target types.Epoch) {
	prop := s.storage.PropByEpoch(target)
	if prop == nil {
		log.WithField("epoch", target).Warn("no proposal received; removing its leader")
		s.leaderCtx.RemoveLeader(target)
		return
	}
	targetHash := prop.Data.Block.Hash()
	if s.storage.CommittedByHash(targetHash) != nil {
		return
	}
	// Walk back from the highest certified block up to f+1 steps.
	onChain := false
	cursor := s.highestBlock
	for i := 0; i <= s.cfg.NumFaults && cursor != nil; i++ {
		if cursor.Hash() == targetHash {
			onChain = true
			break
		}
		if cursor.Height == 0 {
			break
		}
		cursor = s.storage.DeliveredByHash(cursor.ParentHash)
	}
	if onChain {
		log.WithField("epoch", target).Warn("committing proposal after f epochs")
		block := s.storage.DeliveredByHash(targetHash)
		if block == nil {
			log.WithField("epoch", target).Error("proposal block missing from delivered map")
			return
		}
		s.commitWithSideEffects(block)
		return
	}
	log.WithField("epoch", target).Warn("proposal off the certified chain; removing its leader")
	s.leaderCtx.RemoveLeader(target)
}
