package crypto

// Scalar arithmetic in F_r, the BLS12-381 scalar field (the order of G1/G2).
//
// PVSS polynomials, DLEQ challenges/responses, and Lagrange coefficients all
// live in this field. A Scalar is always kept reduced mod r.

import (
	"crypto/rand"
	"crypto/sha256"
	"math/big"
)

// Scalar is an element of F_r.
type Scalar struct {
	v *big.Int
}

// NewScalarFromUint64 builds a Scalar from a small non-negative integer, used
// for evaluation points (replica index + 1) and Lagrange bookkeeping.
func NewScalarFromUint64(x uint64) *Scalar {
	return &Scalar{v: new(big.Int).Mod(new(big.Int).SetUint64(x), groupOrder)}
}

// ScalarZero returns the additive identity.
func ScalarZero() *Scalar { return &Scalar{v: big.NewInt(0)} }

// ScalarOne returns the multiplicative identity.
func ScalarOne() *Scalar { return &Scalar{v: big.NewInt(1)} }

// RandomScalar draws a uniform element of F_r using the supplied RNG.
func RandomScalar(rng RandReader) *Scalar {
	for {
		buf := make([]byte, 48)
		if _, err := rng.Read(buf); err != nil {
			panic("crypto: failed to read randomness: " + err.Error())
		}
		v := new(big.Int).SetBytes(buf)
		v.Mod(v, groupOrder)
		if v.Sign() != 0 {
			return &Scalar{v: v}
		}
	}
}

// RandReader is satisfied by crypto/rand.Reader and by deterministic test RNGs.
type RandReader interface {
	Read(p []byte) (n int, err error)
}

// SystemRand is the process-wide cryptographically secure RNG.
var SystemRand RandReader = rand.Reader

// ScalarFromHash derives a Scalar deterministically from a Fiat-Shamir
// transcript by hashing it with SHA-256 and reducing mod r. This is the
// Go analogue of seeding a deterministic RNG from the transcript hash.
func ScalarFromHash(transcript ...[]byte) *Scalar {
	h := sha256.New()
	for _, t := range transcript {
		_, _ = h.Write(t)
	}
	digest := h.Sum(nil)
	v := new(big.Int).SetBytes(digest)
	return &Scalar{v: v.Mod(v, groupOrder)}
}

func (s *Scalar) clone() *Scalar { return &Scalar{v: new(big.Int).Set(s.v)} }

// Add returns s+o mod r.
func (s *Scalar) Add(o *Scalar) *Scalar {
	return &Scalar{v: new(big.Int).Mod(new(big.Int).Add(s.v, o.v), groupOrder)}
}

// Sub returns s-o mod r.
func (s *Scalar) Sub(o *Scalar) *Scalar {
	return &Scalar{v: new(big.Int).Mod(new(big.Int).Sub(s.v, o.v), groupOrder)}
}

// Mul returns s*o mod r.
func (s *Scalar) Mul(o *Scalar) *Scalar {
	return &Scalar{v: new(big.Int).Mod(new(big.Int).Mul(s.v, o.v), groupOrder)}
}

// Inv returns s^-1 mod r. Panics if s is zero.
func (s *Scalar) Inv() *Scalar {
	if s.v.Sign() == 0 {
		panic("crypto: inverse of zero scalar")
	}
	return &Scalar{v: new(big.Int).ModInverse(s.v, groupOrder)}
}

// Neg returns -s mod r.
func (s *Scalar) Neg() *Scalar {
	return &Scalar{v: new(big.Int).Mod(new(big.Int).Neg(s.v), groupOrder)}
}

// Equal reports whether s == o.
func (s *Scalar) Equal(o *Scalar) bool { return o != nil && s.v.Cmp(o.v) == 0 }

// IsZero reports whether s is the zero scalar.
func (s *Scalar) IsZero() bool { return s.v.Sign() == 0 }

// Bytes returns the big-endian, 32-byte fixed encoding of s.
func (s *Scalar) Bytes() []byte {
	b := make([]byte, 32)
	s.v.FillBytes(b)
	return b
}

// ScalarFromBytes parses a 32-byte big-endian encoding produced by Bytes.
func ScalarFromBytes(b []byte) *Scalar {
	v := new(big.Int).SetBytes(b)
	return &Scalar{v: v.Mod(v, groupOrder)}
}

func (s *Scalar) big() *big.Int { return s.v }

// LagrangeInverseTable precomputes (i-j)^-1 for all ordered pairs of
// evaluation points 1..n, mirroring the per-replica precomputation a
// synchronous-round PVSS context keeps to avoid recomputing modular
// inverses during aggregation and beacon reconstruction.
type LagrangeInverseTable struct {
	n   int
	inv map[[2]int]*Scalar
}

// BuildLagrangeInverseTable computes every (i-j)^-1 for i,j in [0,n).
func BuildLagrangeInverseTable(n int) *LagrangeInverseTable {
	t := &LagrangeInverseTable{n: n, inv: make(map[[2]int]*Scalar, n*n)}
	for i := 0; i < n; i++ {
		for j := 0; j < n; j++ {
			if i == j {
				continue
			}
			si := NewScalarFromUint64(uint64(i + 1))
			sj := NewScalarFromUint64(uint64(j + 1))
			t.inv[[2]int{i, j}] = si.Sub(sj).Inv()
		}
	}
	return t
}

// Inverse returns the precomputed (i-j)^-1.
func (t *LagrangeInverseTable) Inverse(i, j int) *Scalar {
	return t.inv[[2]int{i, j}]
}

// LagrangeCoefficient computes the Lagrange basis coefficient lambda_i for
// interpolation at x=0, given the set of participating indices.
func LagrangeCoefficient(table *LagrangeInverseTable, indices []int, i int) *Scalar {
	lambda := ScalarOne()
	for _, j := range indices {
		if j == i {
			continue
		}
		sj := NewScalarFromUint64(uint64(j + 1))
		lambda = lambda.Mul(sj.Mul(table.Inverse(j, i)))
	}
	return lambda
}
