package consensus

import (
	"crypto/ed25519"

	"github.com/pkg/errors"

	"github.com/libdist-rs/optrand/types"
)

// tryPropose runs on the leader when either the status timer has elapsed
// or a fresh aggregate became available. It proposes at most once per
// epoch, and only while proposals are still being accepted.
func (s *StateMachine) tryPropose(q *EventQueue) {
	if !s.isLeader() || s.rnd.AlreadyProposed || s.rnd.StopProposals {
		return
	}
	// Either we extend a certificate from the immediately preceding
	// epoch, or we have waited out the status phase.
	if s.highestVote.Epoch+1 != s.epoch && !s.rnd.StatusTimedOut {
		return
	}
	if len(s.leaderQueue) == 0 {
		if s.rnd.StatusTimedOut {
			log.WithField("epoch", s.epoch).Warn("no aggregated sharing ready to propose")
		}
		return
	}
	entry := s.leaderQueue[0]
	s.leaderQueue = s.leaderQueue[1:]

	parent := s.highestBlock
	block := types.Block{
		Height:     parent.Height + 1,
		ParentHash: parent.Hash(),
		Proposer:   s.myID(),
		AggPVSS:    entry.agg,
		AggProof:   entry.decomp,
		Payload:    make([]byte, s.cfg.PayloadSize),
	}
	prop := &types.DirectProposal{
		Data: types.DirectProposalData{
			Epoch:       s.epoch,
			HighestVote: s.highestVote,
			HighestCert: s.highestCert.Clone(),
			Block:       block,
		},
	}
	acc, _, _, err := s.propAcc.Build(*prop)
	if err != nil {
		log.Errorf("building proposal accumulator: %v", err)
		return
	}
	sign := types.NewCertificate(types.SignedAccumulator[types.DirectProposal]{Epoch: s.epoch, Acc: acc}, s.myID(), s.sk)
	proof := &types.Proof[types.DirectProposal]{Acc: acc, Sign: sign}

	s.rnd.AlreadyProposed = true
	log.WithField("epoch", s.epoch).WithField("height", block.Height).Info("proposing")

	msg := &types.ProposeMsg{Prop: *prop, Proof: *proof}
	q.Multicast(msg)
	q.AddEvent(Event{Message: &MessageEvent{From: s.myID(), Msg: msg}})
}

// verifyProposal is the admission check for a direct proposal received
// from the wire (or reconstructed from deliver shards).
func (s *StateMachine) verifyProposal(from types.Replica, prop *types.DirectProposal, proof *types.Proof[types.DirectProposal]) error {
	leader := s.leaderCtx.CurrentLeader()
	if from != leader || prop.Data.Block.Proposer != leader {
		return errors.Errorf("expected proposal from epoch leader %d", leader)
	}
	if prop.Data.Epoch != s.epoch {
		return errors.Errorf("proposal for epoch %d in epoch %d", prop.Data.Epoch, s.epoch)
	}
	if s.rnd.StopProposals {
		return errors.New("proposal past the 4Δ cutoff")
	}

	// The accumulator must commit to exactly this proposal, and the
	// leader must have signed it for this epoch.
	if err := s.propAcc.Check(*prop, proof.Acc); err != nil {
		return errors.Wrap(err, "accumulator mismatch")
	}
	if !proof.Sign.IsVote() || !proof.Sign.HasSigner(leader) {
		return errors.New("accumulator not signed by the leader")
	}
	signed := types.SignedAccumulator[types.DirectProposal]{Epoch: s.epoch, Acc: proof.Acc}
	if err := proof.Sign.BufferedIsValid(signed, s.pks, s.storage.SigCache()); err != nil {
		return errors.Wrap(err, "accumulator signature")
	}

	// Equivocation disables the epoch; evidence is published for peers
	// that may only ever see one of the two proposals.
	if s.storage.IsEquivocationProp(s.epoch, proof.Acc) {
		s.publishEquivocation(s.epoch, proof)
		return &types.EquivocationError{Epoch: s.epoch}
	}

	// The proposed block must sit above the highest certified block. Only
	// the height is compared; the block's parent hash is not checked.
	if prop.Data.Block.Height < s.highestBlock.Height+1 {
		return errors.Errorf("block height %d does not extend certified height %d",
			prop.Data.Block.Height, s.highestBlock.Height)
	}
	if prop.Data.Block.AggPVSS == nil || prop.Data.Block.AggProof == nil {
		return errors.New("block carries no aggregate sharing")
	}

	// The aggregate must be known-verified, or verify inline now.
	aggHash := types.HashObject(prop.Data.Block.AggPVSS)
	if _, ok := s.verifiedAggs[aggHash]; !ok {
		if err := s.cfg.PvssCtx.PVerify(prop.Data.Block.AggPVSS); err != nil {
			return errors.Errorf("aggregate pverify: %v", err)
		}
		if err := s.cfg.PvssCtx.DecompVerify(prop.Data.Block.AggPVSS, prop.Data.Block.AggProof, s.intPKMap()); err != nil {
			return errors.Errorf("aggregate decomposition: %v", err)
		}
		s.verifiedAggs[aggHash] = prop.Data.Block.AggPVSS
	}

	// The carried certificate must be complete and valid, except for the
	// first block which extends genesis.
	if prop.Data.Block.Height > 1 {
		if prop.Data.HighestCert.Len() < prop.Data.HighestVote.NumSigs(s.cfg.NumNodes) {
			return errors.Errorf("expected %d signatures in carried certificate, got %d",
				prop.Data.HighestVote.NumSigs(s.cfg.NumNodes), prop.Data.HighestCert.Len())
		}
		if err := prop.Data.HighestCert.BufferedIsValid(prop.Data.HighestVote, s.pks, s.storage.SigCache()); err != nil {
			return errors.Wrap(err, "carried certificate")
		}
	}
	return nil
}

// onVerifiedPropose runs the deliver sub-protocol for a valid proposal,
// arms the sync-vote timer, stores everything, and fires the responsive
// vote immediately.
func (s *StateMachine) onVerifiedPropose(prop *types.DirectProposal, proof *types.Proof[types.DirectProposal], q *EventQueue) {
	s.deliverPropose(prop, proof, q)

	q.AddTimeout(TimeoutEvent{Kind: SyncVoteWaitTimeout, Epoch: s.epoch, Hash: prop.Hash()}, s.xDelta(2), s.epoch)

	block := prop.Data.Block
	s.storage.AddProposal(prop, proof)
	s.storage.AddDeliveredBlock(&block)
	s.rnd.ReceivedProposalDirectly = true

	// Responsive path: vote right away, no synchrony wait.
	s.doRespVote(s.epoch, prop.Hash(), q)
}

func (s *StateMachine) intPKMap() map[int]ed25519.PublicKey {
	m := make(map[int]ed25519.PublicKey, len(s.pks))
	for r, pk := range s.pks {
		m[int(r)] = pk
	}
	return m
}
