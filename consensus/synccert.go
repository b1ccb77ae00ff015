package consensus

import (
	"github.com/pkg/errors"

	"github.com/libdist-rs/optrand/types"
)

// proposeSyncCert wraps a finished sync certificate for redistribution
// through the same accumulate-sign-deliver machinery as a proposal.
func (s *StateMachine) proposeSyncCert(v types.Vote, c types.Certificate[types.Vote], q *EventQueue) {
	prop := &types.SyncCertProposal{Data: types.SyncCertData{Vote: v, Cert: c}}
	acc, _, _, err := s.syncCertAcc.Build(*prop)
	if err != nil {
		log.Errorf("building sync cert accumulator: %v", err)
		return
	}
	sign := types.NewCertificate(types.SignedAccumulator[types.SyncCertProposal]{Epoch: s.epoch, Acc: acc}, s.myID(), s.sk)
	proof := &types.Proof[types.SyncCertProposal]{Acc: acc, Sign: sign}

	msg := &types.SyncCertMsg{Prop: *prop, Proof: *proof}
	q.Multicast(msg)
	q.AddEvent(Event{Message: &MessageEvent{From: s.myID(), Msg: msg}})
}

// verifySyncCert admits a redistributed sync certificate.
func (s *StateMachine) verifySyncCert(from types.Replica, prop *types.SyncCertProposal, proof *types.Proof[types.SyncCertProposal]) error {
	leader := s.leaderCtx.CurrentLeader()
	if from != leader {
		return errors.Errorf("expected sync cert from epoch leader %d", leader)
	}
	if prop.Data.Vote.Epoch != s.epoch {
		return errors.Errorf("sync cert for epoch %d in epoch %d", prop.Data.Vote.Epoch, s.epoch)
	}
	if s.rnd.StopSyncCerts {
		return errors.New("sync cert past the 8Δ cutoff")
	}
	if prop.Data.Cert.Len() < types.SyncThreshold(s.cfg.NumNodes) {
		return errors.Errorf("sync cert has %d of %d signatures", prop.Data.Cert.Len(), types.SyncThreshold(s.cfg.NumNodes))
	}
	if err := prop.Data.Cert.BufferedIsValid(prop.Data.Vote, s.pks, s.storage.SigCache()); err != nil {
		return errors.Wrap(err, "certificate signatures")
	}
	if err := s.syncCertAcc.Check(*prop, proof.Acc); err != nil {
		return errors.Wrap(err, "accumulator mismatch")
	}
	if !proof.Sign.IsVote() || !proof.Sign.HasSigner(leader) {
		return errors.New("accumulator not signed by the leader")
	}
	signed := types.SignedAccumulator[types.SyncCertProposal]{Epoch: s.epoch, Acc: proof.Acc}
	if err := proof.Sign.BufferedIsValid(signed, s.pks, s.storage.SigCache()); err != nil {
		return errors.Wrap(err, "accumulator signature")
	}
	if s.storage.IsEquivocationSyncCert(s.epoch, proof.Acc) {
		return &types.EquivocationError{Epoch: s.epoch}
	}
	// The certified proposal must be known and not itself equivocated.
	if p, porig := s.storage.PropByHash(prop.Data.Vote.PropHash); p != nil {
		if s.storage.IsEquivocationProp(s.epoch, porig.Acc) {
			return &types.EquivocationError{Epoch: s.epoch}
		}
	} else {
		return errors.New("sync cert for an unknown proposal hash")
	}
	return nil
}

// onVerifiedSyncCert delivers the certificate, arms the 2Δ commit timer,
// and upgrades the highest certificate.
func (s *StateMachine) onVerifiedSyncCert(prop *types.SyncCertProposal, proof *types.Proof[types.SyncCertProposal], q *EventQueue) {
	s.storage.AddSyncCertAcc(s.epoch, proof.Acc, proof.Sign)
	s.deliverSyncCert(prop, proof, q)

	if !s.rnd.SyncCommitTimeout {
		q.AddTimeout(TimeoutEvent{Kind: CommitTimeout, Epoch: s.epoch, Hash: prop.Data.Vote.PropHash}, s.xDelta(2), s.epoch)
		s.rnd.SyncCommitTimeout = true
	}

	if prop.Data.Vote.HigherThan(s.highestVote) {
		s.updateHighestCert(prop.Data.Vote, prop.Data.Cert.Clone())
	}
	s.storage.AddSyncCert(prop.Data.Vote, prop.Data.Cert)
	s.rnd.ReceivedSyncCertDirectly = true
}
