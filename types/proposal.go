package types

// Proposal wraps the three payload kinds the leader delivers through the
// erasure-coded accumulator machinery: a fresh block, a sync certificate,
// or a responsive certificate. The type parameter selects the payload;
// the delivery pipeline (accumulate, sign, multicast, deliver shards,
// reconstruct) is shared.

// DirectProposalData is a new-block proposal: the block plus the highest
// certificate the leader extends.
type DirectProposalData struct {
	Epoch       Epoch
	HighestVote Vote
	HighestCert Certificate[Vote]
	Block       Block
}

// SyncCertData wraps a completed sync certificate for redistribution.
type SyncCertData struct {
	Vote Vote
	Cert Certificate[Vote]
}

// RespCertData wraps a completed responsive certificate.
type RespCertData struct {
	Vote Vote
	Cert Certificate[Vote]
}

// Proposal is the deliverable wrapper around a payload.
type Proposal[T any] struct {
	Data T

	hash    Hash
	hashSet bool
}

// DirectProposal, SyncCertProposal, RespCertProposal are the three wire
// instantiations.
type (
	DirectProposal   = Proposal[DirectProposalData]
	SyncCertProposal = Proposal[SyncCertData]
	RespCertProposal = Proposal[RespCertData]
)

// Hash returns the proposal's content address, cached after first use.
func (p *Proposal[T]) Hash() Hash {
	if !p.hashSet {
		p.hash = HashObject(p)
		p.hashSet = true
	}
	return p.hash
}

// ProposalEpoch returns the epoch of a direct proposal.
func (d *DirectProposalData) ProposalEpoch() Epoch { return d.Epoch }

// SignedAccumulator is what the leader signs when it proposes: the epoch
// binds the accumulator so one signature cannot be replayed across epochs.
type SignedAccumulator[T any] struct {
	Epoch Epoch
	Acc   MTAccumulator[T]
}

// Proof binds an accumulator to the leader of an epoch: the accumulator
// plus a single-signature certificate over (epoch, accumulator).
type Proof[T any] struct {
	Acc  MTAccumulator[T]
	Sign Certificate[SignedAccumulator[T]]
}

// DeliverData is one replica's share of a delivery: the accumulator, the
// leader's signature over it, and the shard with its Merkle witness.
type DeliverData[T any] struct {
	Acc   MTAccumulator[T]
	Sign  Certificate[SignedAccumulator[T]]
	Shard Codeword[T]
	Wit   Witness[T]
}

// AckData is what replicas acknowledge on the responsive fast path.
type AckData struct {
	PropHash Hash
	Epoch    Epoch
	Proof    Proof[RespCertProposal]
}

// EquivData is transferable equivocation evidence: two leader-signed
// accumulators for the same epoch with different roots.
type EquivData[T any] struct {
	Epoch Epoch
	Acc   [2]MTAccumulator[T]
	Sign  [2]Certificate[SignedAccumulator[T]]
}

// IsValid checks the evidence: distinct roots, and both signed by the
// accused leader for this epoch.
func (ev *EquivData[T]) IsValid(leader Replica, pks PKMap) error {
	if ev.Acc[0].Equals(ev.Acc[1]) {
		return ErrInvalidWireMsg
	}
	for i := 0; i < 2; i++ {
		if !ev.Sign[i].IsVote() || !ev.Sign[i].HasSigner(leader) {
			return ErrInvalidWireMsg
		}
		signed := SignedAccumulator[T]{Epoch: ev.Epoch, Acc: ev.Acc[i]}
		if err := ev.Sign[i].IsValid(signed, pks); err != nil {
			return err
		}
	}
	return nil
}
