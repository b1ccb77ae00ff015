package consensus

import (
	"github.com/libdist-rs/optrand/types"
)

// The status phase: on epoch entry every replica deals a fresh PVSS
// contribution and reports its highest certificate to the epoch's leader.
// The leader funnels contributions into the aggregation worker; its 2Δ
// propose timer starts here.

func (s *StateMachine) onStatus(q *EventQueue) {
	pvec := s.cfg.PvssCtx.GenerateShares(s.rng)

	if s.isLeader() {
		q.AddTimeout(TimeoutEvent{Kind: ProposeWaitTimeout, Epoch: s.epoch}, s.xDelta(2), s.epoch)
		s.worker.SubmitContribution(s.myID(), s.epoch, pvec)
		// Loopback our own certificate report.
		s.onVerifiedStatus(s.myID(), s.highestVote, s.highestCert.Clone())
		return
	}

	log.WithField("epoch", s.epoch).Debug("sending status to leader")
	q.Send(s.leaderCtx.CurrentLeader(), &types.StatusMsg{
		Vote: s.highestVote,
		Cert: s.highestCert.Clone(),
		PVec: pvec,
	})
}

// verifyStatus checks a status message enough to enqueue it: the carried
// certificate must verify unless it is older than what we already hold.
// The PVSS contribution always goes to the worker, which verifies it off
// the critical path.
func (s *StateMachine) verifyStatus(from types.Replica, m *types.StatusMsg) error {
	if m.Vote.HigherThan(s.highestVote) && m.Vote.Epoch != 0 {
		if err := m.Cert.BufferedIsValid(m.Vote, s.pks, s.storage.SigCache()); err != nil {
			return err
		}
		if m.Cert.Len() < m.Vote.NumSigs(s.cfg.NumNodes) {
			return types.ErrCertHashMismatch
		}
	}
	s.worker.SubmitContribution(from, s.epoch, m.PVec)
	return nil
}

// onVerifiedStatus upgrades the highest certificate if the reported one
// ranks higher.
func (s *StateMachine) onVerifiedStatus(_ types.Replica, v types.Vote, c types.Certificate[types.Vote]) {
	if v.HigherThan(s.highestVote) {
		s.updateHighestCert(v, c)
	}
}
