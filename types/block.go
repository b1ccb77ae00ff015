package types

import (
	"github.com/libdist-rs/optrand/crypto"
)

// Block is one link of the beacon chain. Besides the chain structure it
// carries the epoch's aggregated PVSS sharing and the decomposition proof
// naming its contributors; committing the block fixes the sharing whose
// reconstruction becomes a later epoch's beacon. The payload is opaque.
type Block struct {
	Height     Height
	ParentHash Hash
	Proposer   Replica
	AggPVSS    *crypto.AggregatePVSS      `rlp:"nil"`
	AggProof   *crypto.DecompositionProof `rlp:"nil"`
	Payload    []byte

	hash    Hash
	hashSet bool
}

// GenesisBlock is the height-0 block every chain extends.
func GenesisBlock() *Block {
	b := &Block{Height: 0, ParentHash: EmptyHash, Proposer: 0}
	b.Hash()
	return b
}

// Hash returns the content address of the block, caching it after the
// first computation. The cache field is unexported and so excluded from
// the RLP encoding.
func (b *Block) Hash() Hash {
	if !b.hashSet {
		b.hash = HashObject(b)
		b.hashSet = true
	}
	return b.hash
}

// PVSS returns the aggregate sharing carried by the block.
func (b *Block) PVSS() *crypto.AggregatePVSS { return b.AggPVSS }
