package types

// The erasure-coded Merkle-tree accumulator. A large object is RLP
// serialized, length-prefixed, Reed-Solomon encoded into n shards, and
// committed to by the Merkle root of the shard hashes. The root plus one
// shard and its sibling chain is all a replica needs to forward its part
// of a delivery, and any f+1 shards rebuild the object.

import (
	"encoding/binary"

	"github.com/ethereum/go-ethereum/rlp"
	"github.com/pkg/errors"

	"github.com/libdist-rs/optrand/erasure"
)

// MTAccumulator is the Merkle root over the Reed-Solomon shard hashes of
// a serialized T.
type MTAccumulator[T any] struct {
	Root Hash
}

// Equals reports root equality; two accumulators for the same epoch with
// different roots are equivocation evidence.
func (a MTAccumulator[T]) Equals(b MTAccumulator[T]) bool { return a.Root == b.Root }

// Codeword is one Reed-Solomon shard of a serialized T.
type Codeword[T any] struct {
	Data []byte
}

// WitnessNode is one level of a Merkle sibling chain.
type WitnessNode struct {
	Sibling Hash
	Parent  Hash
}

// Witness proves one codeword's membership under an accumulator root.
type Witness[T any] struct {
	Leaf  Hash
	Chain []WitnessNode
	Node  uint64
}

// AccumulatorBuilder builds and checks accumulators for a fixed (n, f).
type AccumulatorBuilder[T any] struct {
	n     int
	f     int
	depth int
	codec *erasure.Codec
}

// NewAccumulatorBuilder configures the builder: f+1 data shards and
// n-f-1 parity shards, so f+1 shards reconstruct.
func NewAccumulatorBuilder[T any](n, f int) (*AccumulatorBuilder[T], error) {
	if n <= 0 || f < 0 || n <= 2*f {
		return nil, errors.Wrapf(ErrBuilderUnsetField, "n=%d f=%d", n, f)
	}
	codec, err := erasure.NewCodec(f+1, n-f-1)
	if err != nil {
		return nil, err
	}
	depth := 0
	for 1<<depth < n {
		depth++
	}
	return &AccumulatorBuilder[T]{n: n, f: f, depth: depth, codec: codec}, nil
}

// leafCount is the padded power-of-two width of the tree.
func (b *AccumulatorBuilder[T]) leafCount() int { return 1 << b.depth }

func (b *AccumulatorBuilder[T]) serialize(obj T) ([]byte, error) {
	body, err := rlp.EncodeToBytes(obj)
	if err != nil {
		return nil, err
	}
	// Length prefix so reconstruction can strip the RS padding.
	out := make([]byte, 4+len(body))
	binary.BigEndian.PutUint32(out, uint32(len(body)))
	copy(out[4:], body)
	return out, nil
}

func (b *AccumulatorBuilder[T]) tree(codes []Codeword[T]) []Hash {
	m := b.leafCount()
	tree := make([]Hash, 2*m)
	for i := 0; i < b.n; i++ {
		tree[m+i] = HashBytes(codes[i].Data)
	}
	for i := m - 1; i >= 1; i-- {
		tree[i] = HashPair(tree[2*i], tree[2*i+1])
	}
	return tree
}

// Build serializes obj and returns its accumulator, all n codewords, and
// the per-shard witnesses.
func (b *AccumulatorBuilder[T]) Build(obj T) (MTAccumulator[T], []Codeword[T], []Witness[T], error) {
	var acc MTAccumulator[T]
	data, err := b.serialize(obj)
	if err != nil {
		return acc, nil, nil, err
	}
	shards, err := b.codec.Encode(data)
	if err != nil {
		return acc, nil, nil, err
	}
	codes := make([]Codeword[T], b.n)
	for i := range codes {
		codes[i] = Codeword[T]{Data: shards[i]}
	}
	tree := b.tree(codes)
	acc.Root = tree[1]

	wits := make([]Witness[T], b.n)
	for i := 0; i < b.n; i++ {
		chain := make([]WitnessNode, b.depth)
		p := b.leafCount() + i
		for lvl := 0; lvl < b.depth; lvl++ {
			chain[lvl] = WitnessNode{Sibling: tree[p^1], Parent: tree[p>>1]}
			p >>= 1
		}
		wits[i] = Witness[T]{Leaf: tree[b.leafCount()+i], Chain: chain, Node: uint64(i)}
	}
	return acc, codes, wits, nil
}

// Check rebuilds the accumulator of obj and compares roots.
func (b *AccumulatorBuilder[T]) Check(obj T, acc MTAccumulator[T]) error {
	rebuilt, _, _, err := b.Build(obj)
	if err != nil {
		return err
	}
	if !rebuilt.Equals(acc) {
		return ErrShardAccumulator
	}
	return nil
}

// VerifyWitness checks that code is shard shFor under acc.
func (b *AccumulatorBuilder[T]) VerifyWitness(acc MTAccumulator[T], wit *Witness[T], code *Codeword[T], shFor Replica) error {
	if int(shFor) >= b.n || len(wit.Chain) != b.depth {
		return ErrShardMerkle
	}
	cur := HashBytes(code.Data)
	if cur != wit.Leaf {
		return ErrShardLeaf
	}
	idx := int(shFor)
	for _, node := range wit.Chain {
		var parent Hash
		if idx&1 == 0 {
			parent = HashPair(cur, node.Sibling)
		} else {
			parent = HashPair(node.Sibling, cur)
		}
		if parent != node.Parent {
			return ErrShardMerkle
		}
		cur = parent
		idx >>= 1
	}
	if cur != acc.Root {
		return ErrShardAccumulator
	}
	return nil
}

// FromCodewords reconstructs the object from any f+1 shards; missing
// entries are nil. The result is checked against acc before decoding.
func (b *AccumulatorBuilder[T]) FromCodewords(codes []*Codeword[T], acc MTAccumulator[T]) (T, error) {
	var out T
	if len(codes) != b.n {
		return out, ErrShardMerkle
	}
	shards := make([][]byte, b.n)
	for i, c := range codes {
		if c != nil {
			shards[i] = c.Data
		}
	}
	data, err := b.codec.Reconstruct(shards)
	if err != nil {
		return out, err
	}
	if len(data) < 4 {
		return out, ErrShardMerkle
	}
	n := binary.BigEndian.Uint32(data)
	if int(n) > len(data)-4 {
		return out, ErrShardMerkle
	}
	body := data[4 : 4+n]
	if err := rlp.DecodeBytes(body, &out); err != nil {
		return out, err
	}
	// Re-encode and compare roots so a doctored shard set cannot smuggle
	// in a different object under a real accumulator.
	if err := b.Check(out, acc); err != nil {
		return out, err
	}
	return out, nil
}
