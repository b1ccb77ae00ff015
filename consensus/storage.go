package consensus

import (
	"github.com/pkg/errors"

	"github.com/libdist-rs/optrand/crypto"
	"github.com/libdist-rs/optrand/types"
)

// propEntry pairs a stored proposal with the proof it arrived under.
type propEntry struct {
	prop  *types.DirectProposal
	proof *types.Proof[types.DirectProposal]
}

// Storage is the in-memory bank of everything a replica has delivered,
// committed, voted on, or verified. It is owned exclusively by the state
// machine task; nothing here is safe for concurrent use.
type Storage struct {
	deliveredByHash   map[types.Hash]*types.Block
	deliveredByHeight map[types.Height]*types.Block
	committedByHash   map[types.Hash]*types.Block
	committedByHeight map[types.Height]*types.Block

	propByHash  map[types.Hash]propEntry
	propByEpoch map[types.Epoch]*types.DirectProposal

	syncVotes map[types.Epoch]*votePool
	respVotes map[types.Epoch]*votePool

	propAccs     map[types.Epoch]accRecord[types.DirectProposal]
	syncCertAccs map[types.Epoch]accRecord[types.SyncCertProposal]
	respCertAccs map[types.Epoch]accRecord[types.RespCertProposal]

	equivocated map[types.Epoch]struct{}

	// randBeaconQueue[i] holds aggregate sharings committed in blocks
	// proposed by replica i, consumed front-first when i leads again.
	// Contributions awaiting aggregation live in the worker, which is
	// the only place they can be verified.
	randBeaconQueue map[types.Replica][]*crypto.AggregatePVSS

	sigCache *types.SigCache
}

type votePool struct {
	vote types.Vote
	cert types.Certificate[types.Vote]
}

type accRecord[T any] struct {
	acc  types.MTAccumulator[T]
	sign types.Certificate[types.SignedAccumulator[T]]
	set  bool
}

// NewStorage builds an empty bank for n replicas, seeding the beacon
// queue from the bootstrap sharings in the config.
func NewStorage(n int, bootstrap map[types.Replica][]*crypto.AggregatePVSS) *Storage {
	s := &Storage{
		deliveredByHash:   make(map[types.Hash]*types.Block),
		deliveredByHeight: make(map[types.Height]*types.Block),
		committedByHash:   make(map[types.Hash]*types.Block),
		committedByHeight: make(map[types.Height]*types.Block),
		propByHash:        make(map[types.Hash]propEntry),
		propByEpoch:       make(map[types.Epoch]*types.DirectProposal),
		syncVotes:         make(map[types.Epoch]*votePool),
		respVotes:         make(map[types.Epoch]*votePool),
		propAccs:          make(map[types.Epoch]accRecord[types.DirectProposal]),
		syncCertAccs:      make(map[types.Epoch]accRecord[types.SyncCertProposal]),
		respCertAccs:      make(map[types.Epoch]accRecord[types.RespCertProposal]),
		equivocated:       make(map[types.Epoch]struct{}),
		randBeaconQueue:   make(map[types.Replica][]*crypto.AggregatePVSS),
		sigCache:          types.NewSigCache(n),
	}
	for r, q := range bootstrap {
		s.randBeaconQueue[r] = append([]*crypto.AggregatePVSS(nil), q...)
	}
	return s
}

// SigCache exposes the verified-signature cache for BufferedIsValid.
func (s *Storage) SigCache() *types.SigCache { return s.sigCache }

// AddDeliveredBlock records a block as delivered.
func (s *Storage) AddDeliveredBlock(b *types.Block) {
	s.deliveredByHash[b.Hash()] = b
	s.deliveredByHeight[b.Height] = b
}

// DeliveredByHash returns a delivered block, or nil.
func (s *Storage) DeliveredByHash(h types.Hash) *types.Block { return s.deliveredByHash[h] }

// DeliveredByHeight returns a delivered block, or nil.
func (s *Storage) DeliveredByHeight(ht types.Height) *types.Block { return s.deliveredByHeight[ht] }

// CommittedByHash returns a committed block, or nil.
func (s *Storage) CommittedByHash(h types.Hash) *types.Block { return s.committedByHash[h] }

// CommittedByHeight returns a committed block, or nil.
func (s *Storage) CommittedByHeight(ht types.Height) *types.Block { return s.committedByHeight[ht] }

// CommitBlock commits b and every uncommitted delivered ancestor, walking
// parent hashes. Idempotent; errors only if an ancestor was never
// delivered, which indicates local corruption.
func (s *Storage) CommitBlock(b *types.Block) error {
	_, err := s.CommitChain(b)
	return err
}

// CommitChain is CommitBlock returning the newly committed blocks, oldest
// first, so the caller can run per-block side effects exactly once.
func (s *Storage) CommitChain(b *types.Block) ([]*types.Block, error) {
	var newly []*types.Block
	for b != nil {
		if _, done := s.committedByHash[b.Hash()]; done {
			break
		}
		s.committedByHash[b.Hash()] = b
		s.committedByHeight[b.Height] = b
		newly = append(newly, b)
		if b.Height == 0 {
			break
		}
		parent := s.deliveredByHash[b.ParentHash]
		if parent == nil {
			return newly, errors.Errorf("committing %s: parent %s at height %d not delivered",
				b.Hash(), b.ParentHash, b.Height-1)
		}
		b = parent
	}
	// Reverse into chain order.
	for i, j := 0, len(newly)-1; i < j; i, j = i+1, j-1 {
		newly[i], newly[j] = newly[j], newly[i]
	}
	return newly, nil
}

// AddProposal stores a proposal with its proof, indexed by hash and epoch.
func (s *Storage) AddProposal(p *types.DirectProposal, proof *types.Proof[types.DirectProposal]) {
	s.propByHash[p.Hash()] = propEntry{prop: p, proof: proof}
	s.propByEpoch[p.Data.Epoch] = p
	s.propAccs[p.Data.Epoch] = accRecord[types.DirectProposal]{acc: proof.Acc, sign: proof.Sign, set: true}
}

// AddPropAccFromDeliver records the accumulator seen in a deliver share,
// so equivocation through the deliver path is caught before the proposal
// is even reconstructed.
func (s *Storage) AddPropAccFromDeliver(e types.Epoch, acc types.MTAccumulator[types.DirectProposal], sign types.Certificate[types.SignedAccumulator[types.DirectProposal]]) {
	if _, ok := s.propAccs[e]; !ok {
		s.propAccs[e] = accRecord[types.DirectProposal]{acc: acc, sign: sign, set: true}
	}
}

// PropByHash returns a stored proposal and its proof.
func (s *Storage) PropByHash(h types.Hash) (*types.DirectProposal, *types.Proof[types.DirectProposal]) {
	e := s.propByHash[h]
	return e.prop, e.proof
}

// PropByEpoch returns the proposal received in epoch e, or nil.
func (s *Storage) PropByEpoch(e types.Epoch) *types.DirectProposal { return s.propByEpoch[e] }

// IsEquivocationProp reports whether acc conflicts with the accumulator
// already recorded for e, marking the epoch equivocated if so.
func (s *Storage) IsEquivocationProp(e types.Epoch, acc types.MTAccumulator[types.DirectProposal]) bool {
	known, ok := s.propAccs[e]
	if !ok || !known.set {
		return false
	}
	if known.acc.Equals(acc) {
		return false
	}
	s.MarkEquivocated(e)
	return true
}

// PropAcc returns the recorded proposal accumulator for e.
func (s *Storage) PropAcc(e types.Epoch) (types.MTAccumulator[types.DirectProposal], types.Certificate[types.SignedAccumulator[types.DirectProposal]], bool) {
	r := s.propAccs[e]
	return r.acc, r.sign, r.set
}

// IsEquivocationSyncCert is IsEquivocationProp for sync-cert accumulators.
func (s *Storage) IsEquivocationSyncCert(e types.Epoch, acc types.MTAccumulator[types.SyncCertProposal]) bool {
	known, ok := s.syncCertAccs[e]
	if !ok || !known.set {
		return false
	}
	if known.acc.Equals(acc) {
		return false
	}
	s.MarkEquivocated(e)
	return true
}

// AddSyncCertAcc records the first sync-cert accumulator for e.
func (s *Storage) AddSyncCertAcc(e types.Epoch, acc types.MTAccumulator[types.SyncCertProposal], sign types.Certificate[types.SignedAccumulator[types.SyncCertProposal]]) {
	if _, ok := s.syncCertAccs[e]; !ok {
		s.syncCertAccs[e] = accRecord[types.SyncCertProposal]{acc: acc, sign: sign, set: true}
	}
}

// IsEquivocationRespCert is IsEquivocationProp for resp-cert accumulators.
func (s *Storage) IsEquivocationRespCert(e types.Epoch, acc types.MTAccumulator[types.RespCertProposal]) bool {
	known, ok := s.respCertAccs[e]
	if !ok || !known.set {
		return false
	}
	if known.acc.Equals(acc) {
		return false
	}
	s.MarkEquivocated(e)
	return true
}

// AddRespCertAcc records the first resp-cert accumulator for e.
func (s *Storage) AddRespCertAcc(e types.Epoch, acc types.MTAccumulator[types.RespCertProposal], sign types.Certificate[types.SignedAccumulator[types.RespCertProposal]]) {
	if _, ok := s.respCertAccs[e]; !ok {
		s.respCertAccs[e] = accRecord[types.RespCertProposal]{acc: acc, sign: sign, set: true}
	}
}

// MarkEquivocated flags e; voting, certifying, and committing are
// suppressed for flagged epochs.
func (s *Storage) MarkEquivocated(e types.Epoch) { s.equivocated[e] = struct{}{} }

// IsEquivocated reports whether e has been flagged.
func (s *Storage) IsEquivocated(e types.Epoch) bool {
	_, ok := s.equivocated[e]
	return ok
}

// AddSyncVote folds a sync vote into the epoch's partial certificate.
// Votes for a different proposal hash than the first one seen mark the
// epoch equivocated and are not added.
func (s *Storage) AddSyncVote(from types.Replica, v types.Vote, c types.Certificate[types.Vote]) {
	s.addVote(s.syncVotes, from, v, c)
}

// AddRespVote is AddSyncVote for the responsive pool.
func (s *Storage) AddRespVote(from types.Replica, v types.Vote, c types.Certificate[types.Vote]) {
	s.addVote(s.respVotes, from, v, c)
}

func (s *Storage) addVote(pool map[types.Epoch]*votePool, from types.Replica, v types.Vote, c types.Certificate[types.Vote]) {
	p, ok := pool[v.Epoch]
	if !ok {
		pool[v.Epoch] = &votePool{vote: v, cert: c.Clone()}
		return
	}
	if p.vote.PropHash != v.PropHash {
		log.WithField("epoch", v.Epoch).Warn("conflicting vote hashes; marking epoch equivocated")
		s.MarkEquivocated(v.Epoch)
		return
	}
	if sig := c.SigOf(from); sig != nil {
		p.cert.AddSignature(from, sig)
	}
}

// NumSyncVotes returns the size of the epoch's sync partial certificate.
func (s *Storage) NumSyncVotes(e types.Epoch) int {
	if p, ok := s.syncVotes[e]; ok {
		return p.cert.Len()
	}
	return 0
}

// NumRespVotes returns the size of the epoch's responsive pool.
func (s *Storage) NumRespVotes(e types.Epoch) int {
	if p, ok := s.respVotes[e]; ok {
		return p.cert.Len()
	}
	return 0
}

// CleaveSyncCert clones out the sync certificate once the threshold is
// reached.
func (s *Storage) CleaveSyncCert(e types.Epoch, threshold int) (types.Vote, types.Certificate[types.Vote], bool) {
	return cleave(s.syncVotes, e, threshold)
}

// CleaveRespCert clones out the responsive certificate once the threshold
// is reached.
func (s *Storage) CleaveRespCert(e types.Epoch, threshold int) (types.Vote, types.Certificate[types.Vote], bool) {
	return cleave(s.respVotes, e, threshold)
}

func cleave(pool map[types.Epoch]*votePool, e types.Epoch, threshold int) (types.Vote, types.Certificate[types.Vote], bool) {
	p, ok := pool[e]
	if !ok || p.cert.Len() < threshold {
		return types.Vote{}, types.Certificate[types.Vote]{}, false
	}
	return p.vote, p.cert.Clone(), true
}

// AddSyncCert replaces the epoch's pool with a finished certificate, so
// late votes no longer mutate it.
func (s *Storage) AddSyncCert(v types.Vote, c types.Certificate[types.Vote]) {
	s.syncVotes[v.Epoch] = &votePool{vote: v, cert: c}
}

// AddRespCert is AddSyncCert for the responsive pool.
func (s *Storage) AddRespCert(v types.Vote, c types.Certificate[types.Vote]) {
	s.respVotes[v.Epoch] = &votePool{vote: v, cert: c}
}

// PushBeaconSharing appends an aggregate to replica r's beacon queue.
func (s *Storage) PushBeaconSharing(r types.Replica, agg *crypto.AggregatePVSS) {
	s.randBeaconQueue[r] = append(s.randBeaconQueue[r], agg)
}

// CleaveBeaconSharing pops the front of replica r's beacon queue.
func (s *Storage) CleaveBeaconSharing(r types.Replica) (*crypto.AggregatePVSS, error) {
	q := s.randBeaconQueue[r]
	if len(q) == 0 {
		return nil, errors.Errorf("no beacon sharing queued for replica %d", r)
	}
	agg := q[0]
	s.randBeaconQueue[r] = q[1:]
	return agg, nil
}

// BeaconQueueLen reports the depth of replica r's beacon queue.
func (s *Storage) BeaconQueueLen(r types.Replica) int { return len(s.randBeaconQueue[r]) }
