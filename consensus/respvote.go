package consensus

import (
	"github.com/pkg/errors"

	"github.com/libdist-rs/optrand/types"
)

// doRespVote fires as soon as a valid proposal is processed; the
// responsive path does not wait out Δ.
func (s *StateMachine) doRespVote(e types.Epoch, propHash types.Hash, q *EventQueue) {
	if s.storage.IsEquivocated(e) {
		return
	}
	vote := types.Vote{Epoch: e, PropHash: propHash, Type: types.VoteResponsive}
	cert := types.NewCertificate(vote, s.myID(), s.sk)
	msg := &types.RespVoteMsg{Vote: vote, Cert: cert}
	if s.isLeader() {
		q.AddEvent(Event{Message: &MessageEvent{From: s.myID(), Msg: msg}})
		return
	}
	q.Send(s.leaderCtx.CurrentLeader(), msg)
}

// verifyRespVote admits a responsive vote at the leader.
func (s *StateMachine) verifyRespVote(m *types.RespVoteMsg) error {
	if s.storage.NumRespVotes(m.Vote.Epoch) >= types.RespThreshold(s.cfg.NumNodes) {
		return nil
	}
	if m.Vote.Epoch != s.epoch {
		return errors.Errorf("resp vote for epoch %d in epoch %d", m.Vote.Epoch, s.epoch)
	}
	return m.Cert.BufferedIsValid(m.Vote, s.pks, s.storage.SigCache())
}

// onVerifiedRespVote aggregates and, at the 3n/4 threshold, proposes the
// responsive certificate.
func (s *StateMachine) onVerifiedRespVote(from types.Replica, m *types.RespVoteMsg, q *EventQueue) {
	threshold := types.RespThreshold(s.cfg.NumNodes)
	if s.storage.NumRespVotes(m.Vote.Epoch) >= threshold {
		return
	}
	s.storage.AddRespVote(from, m.Vote, m.Cert)

	v, c, ok := s.storage.CleaveRespCert(s.epoch, threshold)
	if !ok {
		return
	}
	log.WithField("epoch", v.Epoch).Info("responsive certificate assembled")
	// Responsive certificates always win over sync certificates.
	s.updateHighestCert(v, c)
	s.proposeRespCert(v, c, q)
}
