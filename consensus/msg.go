package consensus

import (
	"github.com/libdist-rs/optrand/types"
)

// OnMessage is the entry point for every wire message. Messages for
// future epochs are parked in the side buffer; messages for past epochs
// are dropped. Current-epoch messages are verified here (cheap checks and
// signature work through the cache) and, if valid, enqueued as events.
// Invalid messages are logged and dropped; the protocol tolerates loss.
func (s *StateMachine) OnMessage(from types.Replica, msg types.ProtocolMsg, q *EventQueue) {
	if be := msg.BufferEpoch(); be != 0 {
		if be > s.epoch {
			s.futureMsgs[be] = append(s.futureMsgs[be], MessageEvent{From: from, Msg: msg})
			return
		}
		if be < s.epoch {
			log.WithField("from", from).WithField("kind", msg.Kind().String()).Debug("dropping stale message")
			return
		}
	}

	var err error
	switch m := msg.(type) {
	case *types.SyncMsg:
		// Anchor the pre-protocol epoch; it ends one Δ from now.
		if s.epoch == 0 {
			q.AddTimeout(TimeoutEvent{Kind: EpochTimeout, Epoch: 0}, s.xDelta(1), 0)
		}
		return
	case *types.StatusMsg:
		err = s.verifyStatus(from, m)
	case *types.ProposeMsg:
		err = s.verifyProposal(from, &m.Prop, &m.Proof)
	case *types.DeliverProposeMsg:
		err = s.verifyProposeDeliver(from, m)
	case *types.SyncVoteMsg:
		err = s.verifySyncVote(m)
	case *types.SyncCertMsg:
		err = s.verifySyncCert(from, &m.Prop, &m.Proof)
	case *types.DeliverSyncCertMsg:
		err = s.verifySyncCertDeliver(from, m)
	case *types.RespVoteMsg:
		err = s.verifyRespVote(m)
	case *types.RespCertMsg:
		err = s.verifyRespCert(from, &m.Prop, &m.Proof)
	case *types.DeliverRespCertMsg:
		err = s.verifyRespCertDeliver(from, m)
	case *types.AckMsg:
		err = s.verifyAck(from, m)
	case *types.BeaconShareMsg, *types.BeaconReadyMsg, *types.EquivocationMsg:
		// Verified in their handlers against per-epoch state.
	case *types.AggregateReadyMsg:
		s.worker.SubmitAggregate(from, m.Agg, m.Decomp)
		return
	default:
		log.WithField("from", from).Warn("unhandled message kind")
		return
	}
	if err != nil {
		if _, equiv := err.(*types.EquivocationError); equiv {
			log.WithField("from", from).WithField("epoch", s.epoch).Warn("equivocating message suppressed")
		} else {
			log.WithField("from", from).WithField("kind", msg.Kind().String()).Warnf("message rejected: %v", err)
		}
		return
	}
	q.AddEvent(Event{Message: &MessageEvent{From: from, Msg: msg}})
}

// onMessageEvent runs the state mutation for a verified message.
func (s *StateMachine) onMessageEvent(from types.Replica, msg types.ProtocolMsg, q *EventQueue) {
	switch m := msg.(type) {
	case *types.StatusMsg:
		s.onVerifiedStatus(from, m.Vote, m.Cert)
	case *types.ProposeMsg:
		s.onVerifiedPropose(&m.Prop, &m.Proof, q)
	case *types.DeliverProposeMsg:
		s.onVerifiedProposeDeliver(m, q)
	case *types.SyncVoteMsg:
		s.onVerifiedSyncVote(from, m, q)
	case *types.SyncCertMsg:
		s.onVerifiedSyncCert(&m.Prop, &m.Proof, q)
	case *types.DeliverSyncCertMsg:
		s.onVerifiedSyncCertDeliver(m, q)
	case *types.RespVoteMsg:
		s.onVerifiedRespVote(from, m, q)
	case *types.RespCertMsg:
		s.onVerifiedRespCert(&m.Prop, &m.Proof, q)
	case *types.DeliverRespCertMsg:
		s.onVerifiedRespCertDeliver(m, q)
	case *types.AckMsg:
		s.onVerifiedAck(from, m)
	case *types.BeaconShareMsg:
		s.onBeaconShare(from, m, q)
	case *types.BeaconReadyMsg:
		s.onBeaconReady(from, m)
	case *types.EquivocationMsg:
		s.onEquivocation(from, m)
	}
}
