package types

// Vote is a replica's signed opinion on a proposal, on either the sync or
// the responsive path. The signature itself travels in a one-entry
// Certificate alongside.
type Vote struct {
	Epoch    Epoch
	PropHash Hash
	Type     VoteType
}

// GenesisVote is the pre-protocol highest vote every replica starts with.
func GenesisVote() Vote {
	return Vote{Epoch: 0, PropHash: EmptyHash, Type: VoteSync}
}

// HigherThan ranks votes by epoch; certificates from later epochs always
// supersede earlier ones.
func (v Vote) HigherThan(other Vote) bool { return v.Epoch > other.Epoch }

// NumSigs is the certificate size this vote's type requires.
func (v Vote) NumSigs(n int) int { return Threshold(v.Type, n) }
