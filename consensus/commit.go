package consensus

import (
	"github.com/pkg/errors"

	"github.com/libdist-rs/optrand/types"
)

// tryCommit is the 2Δ commit edge: if no equivocation was recorded for
// the epoch, the certified proposal's block and all its ancestors commit.
func (s *StateMachine) tryCommit(e types.Epoch, propHash types.Hash) {
	if s.storage.IsEquivocated(e) {
		log.WithField("epoch", e).Warn("equivocation detected; not committing")
		return
	}
	if err := s.commitProposal(propHash); err != nil {
		log.WithField("epoch", e).Errorf("commit failed: %v", err)
	}
}

func (s *StateMachine) commitProposal(propHash types.Hash) error {
	prop, _ := s.storage.PropByHash(propHash)
	if prop == nil {
		return errors.New("no proposal stored for the committed hash")
	}
	block := s.storage.DeliveredByHash(prop.Data.Block.Hash())
	if block == nil {
		return errors.New("certified block missing from the delivered map")
	}
	s.commitWithSideEffects(block)
	return nil
}

// commitWithSideEffects commits the block chainwise and enqueues every
// newly committed block's aggregate sharing for its proposer's next turn
// as leader.
func (s *StateMachine) commitWithSideEffects(block *types.Block) {
	newly, err := s.storage.CommitChain(block)
	if err != nil {
		log.Errorf("commit walk: %v", err)
		return
	}
	for _, b := range newly {
		if b.Height == 0 || b.AggPVSS == nil {
			continue
		}
		s.storage.PushBeaconSharing(b.Proposer, b.AggPVSS)
		log.WithField("height", b.Height).WithField("hash", b.Hash()).Info("block committed")
	}
}
