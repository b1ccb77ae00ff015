package erasure

// Evaluation-based Reed-Solomon codec: for every byte position, the k data
// bytes are taken as polynomial coefficients and every shard i carries the
// evaluation at the point g^i. Any k of the n shards interpolate the
// polynomial back, which makes data and parity shards interchangeable for
// reconstruction.

import (
	"errors"
	"fmt"
)

var (
	ErrInvalidConfig = errors.New("erasure: invalid shard configuration")
	ErrEmptyInput    = errors.New("erasure: empty input data")
	ErrShardCount    = errors.New("erasure: shard count mismatch")
	ErrShardSize     = errors.New("erasure: shard sizes not uniform")
	ErrTooFewShards  = errors.New("erasure: insufficient shards for reconstruction")
)

// MaxShards caps the total shard count at the number of distinct nonzero
// evaluation points in GF(2^8).
const MaxShards = 255

// Codec is a fixed (k data, m parity) Reed-Solomon configuration.
type Codec struct {
	data   int
	parity int
	total  int
	points []GF256
}

// NewCodec builds a codec with the given shard counts.
func NewCodec(dataShards, parityShards int) (*Codec, error) {
	if dataShards <= 0 || parityShards <= 0 {
		return nil, fmt.Errorf("%w: data=%d parity=%d", ErrInvalidConfig, dataShards, parityShards)
	}
	total := dataShards + parityShards
	if total > MaxShards {
		return nil, fmt.Errorf("%w: %d shards > %d", ErrInvalidConfig, total, MaxShards)
	}
	initTables()
	points := make([]GF256, total)
	for i := range points {
		points[i] = gf256Pow(i)
	}
	return &Codec{data: dataShards, parity: parityShards, total: total, points: points}, nil
}

// DataShards returns k.
func (c *Codec) DataShards() int { return c.data }

// TotalShards returns n.
func (c *Codec) TotalShards() int { return c.total }

// Encode splits data into k coefficient groups (zero-padded to a uniform
// shard size) and returns all n shard evaluations.
func (c *Codec) Encode(data []byte) ([][]byte, error) {
	if len(data) == 0 {
		return nil, ErrEmptyInput
	}
	shardSize := (len(data) + c.data - 1) / c.data
	padded := make([]byte, shardSize*c.data)
	copy(padded, data)

	shards := make([][]byte, c.total)
	for i := range shards {
		shards[i] = make([]byte, shardSize)
	}
	coeffs := make([]GF256, c.data)
	for pos := 0; pos < shardSize; pos++ {
		for i := 0; i < c.data; i++ {
			coeffs[i] = GF256(padded[i*shardSize+pos])
		}
		for si := 0; si < c.total; si++ {
			shards[si][pos] = byte(polyEval(coeffs, c.points[si]))
		}
	}
	return shards, nil
}

// Reconstruct recovers the padded data block from any k present shards.
// The input must have length n with nil entries for missing shards. The
// caller strips its own length prefix to recover the original byte count.
func (c *Codec) Reconstruct(shards [][]byte) ([]byte, error) {
	if len(shards) != c.total {
		return nil, fmt.Errorf("%w: got %d want %d", ErrShardCount, len(shards), c.total)
	}
	shardSize := 0
	var haveIdx []int
	for i, s := range shards {
		if s == nil {
			continue
		}
		if shardSize == 0 {
			shardSize = len(s)
		} else if len(s) != shardSize {
			return nil, ErrShardSize
		}
		haveIdx = append(haveIdx, i)
	}
	if len(haveIdx) < c.data {
		return nil, fmt.Errorf("%w: have %d need %d", ErrTooFewShards, len(haveIdx), c.data)
	}
	if shardSize == 0 {
		return nil, ErrEmptyInput
	}
	haveIdx = haveIdx[:c.data]

	xs := make([]GF256, c.data)
	for i, idx := range haveIdx {
		xs[i] = c.points[idx]
	}
	out := make([]byte, shardSize*c.data)
	ys := make([]GF256, c.data)
	for pos := 0; pos < shardSize; pos++ {
		for i, idx := range haveIdx {
			ys[i] = GF256(shards[idx][pos])
		}
		poly := interpolate(xs, ys)
		for i := 0; i < c.data; i++ {
			out[i*shardSize+pos] = byte(poly[i])
		}
	}
	return out, nil
}
