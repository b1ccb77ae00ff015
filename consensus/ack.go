package consensus

import (
	"github.com/pkg/errors"

	"github.com/libdist-rs/optrand/types"
)

// doAck multicasts an acknowledgement of a responsive certificate.
func (s *StateMachine) doAck(e types.Epoch, proof types.Proof[types.RespCertProposal], propHash types.Hash, q *EventQueue) {
	ack := types.AckData{PropHash: propHash, Epoch: e, Proof: proof}
	cert := types.NewCertificate(ack, s.myID(), s.sk)
	msg := &types.AckMsg{Ack: ack, Cert: cert}
	q.Multicast(msg)
	q.AddEvent(Event{Message: &MessageEvent{From: s.myID(), Msg: msg}})
}

// verifyAck admits an ack until the 9Δ cutoff or the threshold.
func (s *StateMachine) verifyAck(from types.Replica, m *types.AckMsg) error {
	if s.rnd.EnoughAcks || s.rnd.StopAcks {
		return nil
	}
	if m.Ack.Epoch != s.epoch {
		return errors.Errorf("ack for epoch %d in epoch %d", m.Ack.Epoch, s.epoch)
	}
	if !m.Cert.HasSigner(from) {
		return errors.New("ack certificate is not from its sender")
	}
	if err := m.Cert.BufferedIsValid(m.Ack, s.pks, s.storage.SigCache()); err != nil {
		return errors.Wrap(err, "ack signature")
	}
	if s.storage.IsEquivocationRespCert(s.epoch, m.Ack.Proof.Acc) {
		return &types.EquivocationError{Epoch: s.epoch}
	}
	if p, porig := s.storage.PropByHash(m.Ack.PropHash); p != nil {
		if s.storage.IsEquivocationProp(s.epoch, porig.Acc) {
			return &types.EquivocationError{Epoch: s.epoch}
		}
	} else {
		return errors.New("ack for an unknown proposal hash")
	}
	return nil
}

// onVerifiedAck folds the ack into the epoch aggregate; at the responsive
// threshold the optimistic round is complete.
func (s *StateMachine) onVerifiedAck(from types.Replica, m *types.AckMsg) {
	if s.rnd.EnoughAcks || s.rnd.StopAcks {
		return
	}
	count := s.rnd.AddAck(from, m.Ack, m.Cert)
	if count >= types.RespThreshold(s.cfg.NumNodes) {
		s.rnd.EnoughAcks = true
		log.WithField("epoch", s.epoch).Info("responsive round acknowledged by 3n/4 replicas")
	}
}
