package consensus

import (
	"github.com/libdist-rs/optrand/types"
)

// shardGatherer accumulates deliver shards for one proposal kind until
// enough arrive to reconstruct.
type shardGatherer[T any] struct {
	codes []*types.Codeword[T]
	count int
}

func newShardGatherer[T any](n int) *shardGatherer[T] {
	return &shardGatherer[T]{codes: make([]*types.Codeword[T], n)}
}

// add records a shard; duplicates for the same index are ignored.
func (g *shardGatherer[T]) add(idx types.Replica, code types.Codeword[T]) {
	if int(idx) >= len(g.codes) || g.codes[idx] != nil {
		return
	}
	c := code
	g.codes[idx] = &c
	g.count++
}

// RoundContext holds everything that resets on epoch entry: the send/
// receive/timeout flags of the current epoch plus the deliver-shard and
// ack gatherers.
type RoundContext struct {
	ProposeShardSelfSent    bool
	ProposeShardOthersSent  bool
	SyncCertShardSelfSent   bool
	SyncCertShardOthersSent bool
	RespCertShardSelfSent   bool
	RespCertShardOthersSent bool

	ReceivedProposalDirectly bool
	ReceivedSyncCertDirectly bool
	ReceivedRespCertDirectly bool

	ProposeTimeout    bool
	ResponsiveTimeout bool
	SyncCommitTimeout bool
	RespCommitTimeout bool
	StartedSyncTimer  bool
	EquivocationSeen  bool
	StopProposals     bool
	StopSyncCerts     bool
	StopAcks          bool
	AlreadyProposed   bool
	StatusTimedOut    bool
	EnoughAcks        bool

	proposeShards  *shardGatherer[types.DirectProposal]
	syncCertShards *shardGatherer[types.SyncCertProposal]
	respCertShards *shardGatherer[types.RespCertProposal]

	ackVotes map[types.Hash]*types.Certificate[types.AckData]
}

// NewRoundContext returns a fresh context for one epoch of n replicas.
func NewRoundContext(n int) *RoundContext {
	return &RoundContext{
		proposeShards:  newShardGatherer[types.DirectProposal](n),
		syncCertShards: newShardGatherer[types.SyncCertProposal](n),
		respCertShards: newShardGatherer[types.RespCertProposal](n),
		ackVotes:       make(map[types.Hash]*types.Certificate[types.AckData]),
	}
}

// Reset replaces all state with epoch-entry defaults.
func (r *RoundContext) Reset(n int) {
	*r = *NewRoundContext(n)
}

// AddProposeShard records a propose deliver shard and reports whether the
// reconstruction threshold is reached.
func (r *RoundContext) AddProposeShard(idx types.Replica, code types.Codeword[types.DirectProposal], threshold int) bool {
	r.proposeShards.add(idx, code)
	return r.proposeShards.count >= threshold
}

// ProposeShards exposes the gathered shards for reconstruction.
func (r *RoundContext) ProposeShards() []*types.Codeword[types.DirectProposal] {
	return r.proposeShards.codes
}

// AddSyncCertShard records a sync-cert deliver shard.
func (r *RoundContext) AddSyncCertShard(idx types.Replica, code types.Codeword[types.SyncCertProposal], threshold int) bool {
	r.syncCertShards.add(idx, code)
	return r.syncCertShards.count >= threshold
}

// SyncCertShards exposes the gathered shards.
func (r *RoundContext) SyncCertShards() []*types.Codeword[types.SyncCertProposal] {
	return r.syncCertShards.codes
}

// AddRespCertShard records a resp-cert deliver shard.
func (r *RoundContext) AddRespCertShard(idx types.Replica, code types.Codeword[types.RespCertProposal], threshold int) bool {
	r.respCertShards.add(idx, code)
	return r.respCertShards.count >= threshold
}

// RespCertShards exposes the gathered shards.
func (r *RoundContext) RespCertShards() []*types.Codeword[types.RespCertProposal] {
	return r.respCertShards.codes
}

// AddAck folds an ack signature into the per-proposal aggregate and
// returns the number gathered for that hash.
func (r *RoundContext) AddAck(from types.Replica, ack types.AckData, cert types.Certificate[types.AckData]) int {
	agg, ok := r.ackVotes[ack.PropHash]
	if !ok {
		c := cert.Clone()
		r.ackVotes[ack.PropHash] = &c
		return c.Len()
	}
	if sig := cert.SigOf(from); sig != nil {
		agg.AddSignature(from, sig)
	}
	return agg.Len()
}
