package consensus

import (
	"github.com/pkg/errors"

	"github.com/libdist-rs/optrand/types"
)

// proposeRespCert redistributes a finished responsive certificate.
func (s *StateMachine) proposeRespCert(v types.Vote, c types.Certificate[types.Vote], q *EventQueue) {
	prop := &types.RespCertProposal{Data: types.RespCertData{Vote: v, Cert: c}}
	acc, _, _, err := s.respCertAcc.Build(*prop)
	if err != nil {
		log.Errorf("building resp cert accumulator: %v", err)
		return
	}
	sign := types.NewCertificate(types.SignedAccumulator[types.RespCertProposal]{Epoch: s.epoch, Acc: acc}, s.myID(), s.sk)
	proof := &types.Proof[types.RespCertProposal]{Acc: acc, Sign: sign}

	msg := &types.RespCertMsg{Prop: *prop, Proof: *proof}
	q.Multicast(msg)
	q.AddEvent(Event{Message: &MessageEvent{From: s.myID(), Msg: msg}})
}

// verifyRespCert admits a redistributed responsive certificate.
func (s *StateMachine) verifyRespCert(from types.Replica, prop *types.RespCertProposal, proof *types.Proof[types.RespCertProposal]) error {
	leader := s.leaderCtx.CurrentLeader()
	if from != leader {
		return errors.Errorf("expected resp cert from epoch leader %d", leader)
	}
	if prop.Data.Vote.Epoch != s.epoch {
		return errors.Errorf("resp cert for epoch %d in epoch %d", prop.Data.Vote.Epoch, s.epoch)
	}
	if s.rnd.StopSyncCerts {
		return errors.New("resp cert past the 8Δ cutoff")
	}
	if prop.Data.Cert.Len() < types.RespThreshold(s.cfg.NumNodes) {
		return errors.Errorf("resp cert has %d of %d signatures", prop.Data.Cert.Len(), types.RespThreshold(s.cfg.NumNodes))
	}
	if err := prop.Data.Cert.BufferedIsValid(prop.Data.Vote, s.pks, s.storage.SigCache()); err != nil {
		return errors.Wrap(err, "certificate signatures")
	}
	if err := s.respCertAcc.Check(*prop, proof.Acc); err != nil {
		return errors.Wrap(err, "accumulator mismatch")
	}
	if !proof.Sign.IsVote() || !proof.Sign.HasSigner(leader) {
		return errors.New("accumulator not signed by the leader")
	}
	signed := types.SignedAccumulator[types.RespCertProposal]{Epoch: s.epoch, Acc: proof.Acc}
	if err := proof.Sign.BufferedIsValid(signed, s.pks, s.storage.SigCache()); err != nil {
		return errors.Wrap(err, "accumulator signature")
	}
	if s.storage.IsEquivocationRespCert(s.epoch, proof.Acc) {
		return &types.EquivocationError{Epoch: s.epoch}
	}
	if p, porig := s.storage.PropByHash(prop.Data.Vote.PropHash); p != nil {
		if s.storage.IsEquivocationProp(s.epoch, porig.Acc) {
			return &types.EquivocationError{Epoch: s.epoch}
		}
	} else {
		return errors.New("resp cert for an unknown proposal hash")
	}
	return nil
}

// onVerifiedRespCert delivers the certificate, acks it, arms the commit
// timer, and always upgrades the highest certificate.
func (s *StateMachine) onVerifiedRespCert(prop *types.RespCertProposal, proof *types.Proof[types.RespCertProposal], q *EventQueue) {
	s.storage.AddRespCertAcc(s.epoch, proof.Acc, proof.Sign)
	s.deliverRespCert(prop, proof, q)
	s.doAck(s.epoch, *proof, prop.Data.Vote.PropHash, q)

	if !s.rnd.RespCommitTimeout {
		q.AddTimeout(TimeoutEvent{Kind: CommitTimeout, Epoch: s.epoch, Hash: prop.Data.Vote.PropHash}, s.xDelta(2), s.epoch)
		s.rnd.RespCommitTimeout = true
	}

	// Upgrade unconditionally: responsive beats sync on arrival.
	s.updateHighestCert(prop.Data.Vote, prop.Data.Cert.Clone())
	s.storage.AddRespCert(prop.Data.Vote, prop.Data.Cert)
	s.rnd.ReceivedRespCertDirectly = true
}
