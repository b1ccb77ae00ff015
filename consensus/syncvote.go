package consensus

import (
	"github.com/pkg/errors"

	"github.com/libdist-rs/optrand/types"
)

// trySyncVote fires 2Δ after a proposal was accepted: if the epoch is
// clean, sign a sync vote and send it to the leader.
func (s *StateMachine) trySyncVote(e types.Epoch, propHash types.Hash, q *EventQueue) {
	if s.storage.IsEquivocated(e) {
		log.WithField("epoch", e).Warn("equivocation detected; withholding sync vote")
		return
	}
	vote := types.Vote{Epoch: e, PropHash: propHash, Type: types.VoteSync}
	cert := types.NewCertificate(vote, s.myID(), s.sk)
	msg := &types.SyncVoteMsg{Vote: vote, Cert: cert}
	if s.isLeader() {
		q.AddEvent(Event{Message: &MessageEvent{From: s.myID(), Msg: msg}})
		return
	}
	q.Send(s.leaderCtx.CurrentLeader(), msg)
}

// verifySyncVote admits a sync vote at the leader.
func (s *StateMachine) verifySyncVote(m *types.SyncVoteMsg) error {
	// Once the certificate threshold is reached, further votes are
	// redundant and skip verification entirely.
	if s.storage.NumSyncVotes(m.Vote.Epoch) >= types.SyncThreshold(s.cfg.NumNodes) {
		return nil
	}
	if m.Vote.Epoch != s.epoch {
		return errors.Errorf("sync vote for epoch %d in epoch %d", m.Vote.Epoch, s.epoch)
	}
	return m.Cert.BufferedIsValid(m.Vote, s.pks, s.storage.SigCache())
}

// onVerifiedSyncVote aggregates the vote and, at threshold, proposes the
// sync certificate.
func (s *StateMachine) onVerifiedSyncVote(from types.Replica, m *types.SyncVoteMsg, q *EventQueue) {
	threshold := types.SyncThreshold(s.cfg.NumNodes)
	if s.storage.NumSyncVotes(m.Vote.Epoch) >= threshold {
		return
	}
	s.storage.AddSyncVote(from, m.Vote, m.Cert)

	v, c, ok := s.storage.CleaveSyncCert(s.epoch, threshold)
	if !ok {
		return
	}
	log.WithField("epoch", v.Epoch).Info("sync certificate assembled")
	if s.highestVote.Epoch < s.epoch {
		s.updateHighestCert(v, c)
	}
	s.proposeSyncCert(v, c, q)
}
