package crypto

// Context holds everything one replica needs to deal, verify, aggregate,
// and reconstruct PVSS sharings for the per-epoch randomness beacon: its
// own secret key, every peer's encryption key, and a handful of
// precomputed tables that would otherwise be recomputed every epoch.
//
// Three independent generators are used, each serving a distinct role so
// that the beacon, the dealing commitments, and the per-replica encryption
// keys can never be confused with one another under a pairing check:
//
//   - g1 (G1): the base for PVSS commitments comms[i] = g1^p(i) and for
//     the dealer's proof-of-knowledge value gs = g1^s.
//   - g2 (G2): the base for every replica's encryption key pk_i = g2^sk_i
//     and for encryptions encs[i] = pk_i^p(i); also the right-hand base
//     in the beacon consistency check.
//   - beaconGen (G1): an independent generator, derived deterministically
//     by every replica rather than distributed via config, so the beacon
//     pairing e(beaconGen, B) can never collide with the gs proof of
//     knowledge even if a replica's secret key is compromised.
type Context struct {
	N, F int

	g1        *G1Point
	g2        *G2Point
	beaconGen *G1Point

	pubKeys []*G2Point // replica i's PVSS encryption key, pk_i = g2^sk_i

	myIndex  int
	myKey    *Scalar
	myKeyInv *Scalar

	lagrange  *LagrangeInverseTable
	codewords []*Scalar

	g1Fixed *fixedBaseG1
	g2Fixed *fixedBaseG2

	signer Signer
}

// NewContext builds a per-replica PVSS context. rng is used only to sample
// the dual-code polynomial behind the degree check; it need not be the same
// across replicas.
func NewContext(n, f, myIndex int, pubKeys []*G2Point, myKey *Scalar, signer Signer, rng RandReader) *Context {
	if n <= 2*f {
		panic("crypto: PVSS context requires n > 2f")
	}
	if len(pubKeys) != n {
		panic("crypto: PVSS context requires exactly n public keys")
	}
	g1 := G1Generator()
	g2 := G2Generator()
	g2Fixed := newFixedBaseG2(g2)
	if !G2Equal(pubKeys[myIndex], g2Fixed.mul(myKey)) {
		panic("crypto: secret key does not open our published encryption key")
	}
	return &Context{
		N:         n,
		F:         f,
		g1:        g1,
		g2:        g2,
		g1Fixed:   newFixedBaseG1(g1),
		g2Fixed:   g2Fixed,
		beaconGen: DeriveBeaconGenerator(),
		pubKeys:   pubKeys,
		myIndex:   myIndex,
		myKey:     myKey,
		myKeyInv:  myKey.Inv(),
		lagrange:  BuildLagrangeInverseTable(n),
		codewords: buildCodewords(n, f, rng),
		signer:    signer,
	}
}

// buildCodewords samples a random dual polynomial with n-f-1 coefficients
// (degree n-f-2) and returns its Lagrange-weighted evaluations at 1..n.
// Any vector of n points lying on a degree-f polynomial is annihilated by
// the resulting inner product, which is the basis of the cheap
// per-sharing degree check.
func buildCodewords(n, f int, rng RandReader) []*Scalar {
	degree := n - f - 2
	coeffs := make([]*Scalar, degree+1)
	for i := range coeffs {
		coeffs[i] = RandomScalar(rng)
	}
	evalAt := func(x *Scalar) *Scalar {
		acc := ScalarZero()
		power := ScalarOne()
		for _, c := range coeffs {
			acc = acc.Add(c.Mul(power))
			power = power.Mul(x)
		}
		return acc
	}

	points := make([]*Scalar, n)
	for i := 0; i < n; i++ {
		points[i] = NewScalarFromUint64(uint64(i + 1))
	}

	codewords := make([]*Scalar, n)
	for i := 0; i < n; i++ {
		mu := ScalarOne()
		for j := 0; j < n; j++ {
			if i == j {
				continue
			}
			mu = mu.Mul(lagrangeDenomInv(points, i, j))
		}
		codewords[i] = mu.Mul(evalAt(points[i]))
	}
	return codewords
}

func lagrangeDenomInv(points []*Scalar, i, j int) *Scalar {
	return points[i].Sub(points[j]).Inv()
}

// DeriveBeaconGenerator computes the network-wide second G1 generator used
// only as the left-hand base of the beacon pairing check. It is derived by
// try-and-increment hashing rather than distributed via config, so every
// replica computes the identical point with no out-of-band agreement step.
func DeriveBeaconGenerator() *G1Point {
	return hashToG1([]byte("optrand/beacon-generator/v1"))
}
