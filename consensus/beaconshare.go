package consensus

import (
	"github.com/libdist-rs/optrand/types"
)

// startBeacon opens this epoch's beacon: pop the front aggregate queued
// for the epoch leader, decrypt our own share, and multicast it.
func (s *StateMachine) startBeacon(e types.Epoch, q *EventQueue) {
	leader := s.leaderCtx.CurrentLeader()
	agg, err := s.storage.CleaveBeaconSharing(leader)
	if err != nil {
		log.WithField("epoch", e).Warnf("no aggregate queued for leader %d; epoch has no beacon", leader)
		return
	}
	myShare := s.cfg.PvssCtx.DecryptShare(agg.Encs[s.myID()], s.rng)
	s.beaconCtx.AddEpochPVSS(e, agg, s.cfg.NumNodes)

	msg := &types.BeaconShareMsg{Epoch: e, Dec: myShare}
	q.Multicast(msg)
	q.AddEvent(Event{Message: &MessageEvent{From: s.myID(), Msg: msg}})
}

// onBeaconShare folds in one decryption; at f+1 the beacon is fixed and
// announced.
func (s *StateMachine) onBeaconShare(from types.Replica, m *types.BeaconShareMsg, q *EventQueue) {
	out, err := s.beaconCtx.AddShare(s.cfg.PvssCtx, s.myID(), s.pks, m.Epoch, from, m.Dec, s.cfg.NumFaults)
	if err != nil {
		log.WithField("from", from).Warnf("beacon share rejected: %v", err)
		return
	}
	if out == nil {
		return
	}
	log.WithField("epoch", m.Epoch).WithField("rand", out.Rand.Hex()).Info("beacon reconstructed")
	ready := &types.BeaconReadyMsg{Epoch: m.Epoch, Beacon: out.Beacon}
	q.Multicast(ready)
}

// onBeaconReady pins an externally reconstructed beacon after verifying
// it against the epoch's aggregate commitments.
func (s *StateMachine) onBeaconReady(from types.Replica, m *types.BeaconReadyMsg) {
	if existing := s.beaconCtx.Beacon(m.Epoch); existing != nil {
		// Already fixed; a mismatching announcement is just noise.
		if !existing.Beacon.Value.EqualG(m.Beacon.Value) {
			log.WithField("from", from).WithField("epoch", m.Epoch).Warn("conflicting beacon announcement ignored")
		}
		return
	}
	agg := s.beaconCtx.EpochPVSS(m.Epoch)
	if agg == nil {
		// Nothing to verify against yet; the shares we gather ourselves
		// will fix the value.
		return
	}
	if !s.cfg.PvssCtx.CheckBeacon(m.Beacon, agg.Comms) {
		log.WithField("from", from).WithField("epoch", m.Epoch).Warn("invalid beacon announcement")
		return
	}
	out := s.beaconCtx.Pin(m.Epoch, m.Beacon)
	log.WithField("epoch", m.Epoch).WithField("rand", out.Rand.Hex()).Info("beacon adopted from announcement")
}

// OnWorkerResult handles the aggregation worker's outputs on the main
// task.
func (s *StateMachine) OnWorkerResult(res WorkerResult, q *EventQueue) {
	switch res.Kind {
	case AggregateReady:
		// Publish our aggregate and queue it for our next proposal.
		q.Multicast(&types.AggregateReadyMsg{Agg: res.Agg, Decomp: res.Decomp})
		s.leaderQueue = append(s.leaderQueue, aggEntry{agg: res.Agg, decomp: res.Decomp})
		s.verifiedAggs[types.HashObject(res.Agg)] = res.Agg
		s.tryPropose(q)
	case VerifiedAggregate:
		s.verifiedAggs[types.HashObject(res.Agg)] = res.Agg
	}
}
