package consensus

import (
	"github.com/pkg/errors"

	"github.com/libdist-rs/optrand/types"
)

// The deliver sub-protocol. Whoever holds the full object (a direct
// recipient, or a replica that reconstructed it from shards) multicasts
// its own shard and sends every other replica that replica's shard, once
// per epoch; a replica that has only received shards forwards nothing.
// f+1 shards reconstruct, so a copy costs O(n) shards instead of n full
// copies.

func (s *StateMachine) deliverPropose(prop *types.DirectProposal, proof *types.Proof[types.DirectProposal], q *EventQueue) {
	if s.rnd.ProposeShardOthersSent {
		return
	}
	_, codes, wits, err := s.propAcc.Build(*prop)
	if err != nil {
		log.Errorf("rebuilding proposal codewords: %v", err)
		return
	}
	me := s.myID()
	q.Multicast(&types.DeliverProposeMsg{
		Epoch: s.epoch, ShFor: me,
		Data: types.DeliverData[types.DirectProposal]{Acc: proof.Acc, Sign: proof.Sign, Shard: codes[me], Wit: wits[me]},
	})
	s.rnd.ProposeShardSelfSent = true
	for i := 0; i < s.cfg.NumNodes; i++ {
		r := types.Replica(i)
		if r == me {
			continue
		}
		q.Send(r, &types.DeliverProposeMsg{
			Epoch: s.epoch, ShFor: r,
			Data: types.DeliverData[types.DirectProposal]{Acc: proof.Acc, Sign: proof.Sign, Shard: codes[i], Wit: wits[i]},
		})
	}
	s.rnd.ProposeShardOthersSent = true
}

func (s *StateMachine) verifyProposeDeliver(sender types.Replica, m *types.DeliverProposeMsg) error {
	if s.storage.IsEquivocationProp(s.epoch, m.Data.Acc) {
		return &types.EquivocationError{Epoch: s.epoch}
	}
	if s.rnd.ReceivedProposalDirectly {
		return nil
	}
	if m.ShFor != sender && m.ShFor != s.myID() {
		return errors.Errorf("deliver share for %d relayed by %d", m.ShFor, sender)
	}
	return s.propAcc.VerifyWitness(m.Data.Acc, &m.Data.Wit, &m.Data.Shard, m.ShFor)
}

func (s *StateMachine) onVerifiedProposeDeliver(m *types.DeliverProposeMsg, q *EventQueue) {
	s.storage.AddPropAccFromDeliver(s.epoch, m.Data.Acc, m.Data.Sign)
	if s.rnd.ReceivedProposalDirectly {
		return
	}
	threshold := s.cfg.NumFaults + 1
	if !s.rnd.AddProposeShard(m.ShFor, m.Data.Shard, threshold) {
		return
	}
	prop, err := s.propAcc.FromCodewords(s.rnd.ProposeShards(), m.Data.Acc)
	if err != nil {
		log.Warnf("reconstructing proposal from shards: %v", err)
		return
	}
	proof := &types.Proof[types.DirectProposal]{Acc: m.Data.Acc, Sign: m.Data.Sign}
	if err := s.verifyProposal(s.leaderCtx.CurrentLeader(), &prop, proof); err != nil {
		log.Warnf("reconstructed proposal invalid: %v", err)
		return
	}
	log.WithField("epoch", s.epoch).Info("proposal reconstructed from deliver shards")
	s.onVerifiedPropose(&prop, proof, q)
}

func (s *StateMachine) deliverSyncCert(prop *types.SyncCertProposal, proof *types.Proof[types.SyncCertProposal], q *EventQueue) {
	if s.rnd.SyncCertShardOthersSent {
		return
	}
	_, codes, wits, err := s.syncCertAcc.Build(*prop)
	if err != nil {
		log.Errorf("rebuilding sync cert codewords: %v", err)
		return
	}
	me := s.myID()
	q.Multicast(&types.DeliverSyncCertMsg{
		Epoch: s.epoch, ShFor: me,
		Data: types.DeliverData[types.SyncCertProposal]{Acc: proof.Acc, Sign: proof.Sign, Shard: codes[me], Wit: wits[me]},
	})
	s.rnd.SyncCertShardSelfSent = true
	for i := 0; i < s.cfg.NumNodes; i++ {
		r := types.Replica(i)
		if r == me {
			continue
		}
		q.Send(r, &types.DeliverSyncCertMsg{
			Epoch: s.epoch, ShFor: r,
			Data: types.DeliverData[types.SyncCertProposal]{Acc: proof.Acc, Sign: proof.Sign, Shard: codes[i], Wit: wits[i]},
		})
	}
	s.rnd.SyncCertShardOthersSent = true
}

func (s *StateMachine) verifySyncCertDeliver(sender types.Replica, m *types.DeliverSyncCertMsg) error {
	if s.storage.IsEquivocationSyncCert(s.epoch, m.Data.Acc) {
		return &types.EquivocationError{Epoch: s.epoch}
	}
	if s.rnd.ReceivedSyncCertDirectly {
		return nil
	}
	if m.ShFor != sender && m.ShFor != s.myID() {
		return errors.Errorf("deliver share for %d relayed by %d", m.ShFor, sender)
	}
	return s.syncCertAcc.VerifyWitness(m.Data.Acc, &m.Data.Wit, &m.Data.Shard, m.ShFor)
}

func (s *StateMachine) onVerifiedSyncCertDeliver(m *types.DeliverSyncCertMsg, q *EventQueue) {
	s.storage.AddSyncCertAcc(s.epoch, m.Data.Acc, m.Data.Sign)
	if s.rnd.ReceivedSyncCertDirectly {
		return
	}
	threshold := s.cfg.NumFaults + 1
	if !s.rnd.AddSyncCertShard(m.ShFor, m.Data.Shard, threshold) {
		return
	}
	prop, err := s.syncCertAcc.FromCodewords(s.rnd.SyncCertShards(), m.Data.Acc)
	if err != nil {
		log.Warnf("reconstructing sync cert from shards: %v", err)
		return
	}
	proof := &types.Proof[types.SyncCertProposal]{Acc: m.Data.Acc, Sign: m.Data.Sign}
	if err := s.verifySyncCert(s.leaderCtx.CurrentLeader(), &prop, proof); err != nil {
		log.Warnf("reconstructed sync cert invalid: %v", err)
		return
	}
	s.onVerifiedSyncCert(&prop, proof, q)
}

func (s *StateMachine) deliverRespCert(prop *types.RespCertProposal, proof *types.Proof[types.RespCertProposal], q *EventQueue) {
	if s.rnd.RespCertShardOthersSent {
		return
	}
	_, codes, wits, err := s.respCertAcc.Build(*prop)
	if err != nil {
		log.Errorf("rebuilding resp cert codewords: %v", err)
		return
	}
	me := s.myID()
	q.Multicast(&types.DeliverRespCertMsg{
		Epoch: s.epoch, ShFor: me,
		Data: types.DeliverData[types.RespCertProposal]{Acc: proof.Acc, Sign: proof.Sign, Shard: codes[me], Wit: wits[me]},
	})
	s.rnd.RespCertShardSelfSent = true
	for i := 0; i < s.cfg.NumNodes; i++ {
		r := types.Replica(i)
		if r == me {
			continue
		}
		q.Send(r, &types.DeliverRespCertMsg{
			Epoch: s.epoch, ShFor: r,
			Data: types.DeliverData[types.RespCertProposal]{Acc: proof.Acc, Sign: proof.Sign, Shard: codes[i], Wit: wits[i]},
		})
	}
	s.rnd.RespCertShardOthersSent = true
}

func (s *StateMachine) verifyRespCertDeliver(sender types.Replica, m *types.DeliverRespCertMsg) error {
	if s.storage.IsEquivocationRespCert(s.epoch, m.Data.Acc) {
		return &types.EquivocationError{Epoch: s.epoch}
	}
	if s.rnd.ReceivedRespCertDirectly {
		return nil
	}
	if m.ShFor != sender && m.ShFor != s.myID() {
		return errors.Errorf("deliver share for %d relayed by %d", m.ShFor, sender)
	}
	return s.respCertAcc.VerifyWitness(m.Data.Acc, &m.Data.Wit, &m.Data.Shard, m.ShFor)
}

func (s *StateMachine) onVerifiedRespCertDeliver(m *types.DeliverRespCertMsg, q *EventQueue) {
	s.storage.AddRespCertAcc(s.epoch, m.Data.Acc, m.Data.Sign)
	if s.rnd.ReceivedRespCertDirectly {
		return
	}
	threshold := s.cfg.NumFaults + 1
	if !s.rnd.AddRespCertShard(m.ShFor, m.Data.Shard, threshold) {
		return
	}
	prop, err := s.respCertAcc.FromCodewords(s.rnd.RespCertShards(), m.Data.Acc)
	if err != nil {
		log.Warnf("reconstructing resp cert from shards: %v", err)
		return
	}
	proof := &types.Proof[types.RespCertProposal]{Acc: m.Data.Acc, Sign: m.Data.Sign}
	if err := s.verifyRespCert(s.leaderCtx.CurrentLeader(), &prop, proof); err != nil {
		log.Warnf("reconstructed resp cert invalid: %v", err)
		return
	}
	s.onVerifiedRespCert(&prop, proof, q)
}
