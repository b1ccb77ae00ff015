package crypto

// Exported point operations and wire encodings over the affine curve
// arithmetic in field.go/curve.go/tower.go. PVSS, DLEQ, and the beacon
// reconstruction logic only touch points through these wrappers.

import "math/big"

// G1Add returns a+b.
func G1Add(a, b *G1Point) *G1Point { return a.add(b) }

// G1Neg returns -a.
func G1Neg(a *G1Point) *G1Point { return a.neg() }

// G1ScalarMul returns [k]a.
func G1ScalarMul(a *G1Point, k *Scalar) *G1Point { return a.mulBig(k.big()) }

// G1Zero returns the identity of G1.
func G1Zero() *G1Point { return G1Infinity() }

// G1Equal reports whether a and b represent the same point.
func G1Equal(a, b *G1Point) bool {
	if a.isInf() || b.isInf() {
		return a.isInf() == b.isInf()
	}
	return a.x.equal(b.x) && a.y.equal(b.y)
}

// G1Sum folds Add over a slice, starting from the identity.
func G1Sum(pts []*G1Point) *G1Point {
	acc := G1Infinity()
	for _, p := range pts {
		acc = acc.add(p)
	}
	return acc
}

// g1EncSize is the uncompressed affine wire encoding size: two 48-byte
// field elements (x, y), with an all-zero encoding reserved for infinity.
const g1EncSize = 96

// Bytes serializes p as an uncompressed affine (x||y) big-endian encoding.
func (p *G1Point) Bytes() []byte {
	out := make([]byte, g1EncSize)
	if p.isInf() {
		return out
	}
	copy(out[:48], p.x.bytes48())
	copy(out[48:], p.y.bytes48())
	return out
}

// G1FromBytes parses the encoding produced by Bytes. Coordinates must be
// canonical (below p), the point must lie on the curve, and it must be
// in the prime-order subgroup.
func G1FromBytes(b []byte) (*G1Point, error) {
	if len(b) != g1EncSize {
		return nil, ErrInvalidEncoding
	}
	xi := new(big.Int).SetBytes(b[:48])
	yi := new(big.Int).SetBytes(b[48:])
	if xi.Sign() == 0 && yi.Sign() == 0 {
		return G1Infinity(), nil
	}
	if xi.Cmp(fieldOrder) >= 0 || yi.Cmp(fieldOrder) >= 0 {
		return nil, ErrInvalidEncoding
	}
	x, y := feFromBig(xi), feFromBig(yi)
	if !g1OnCurve(x, y) {
		return nil, ErrPointNotOnCurve
	}
	p := &G1Point{x: x, y: y}
	if !p.inPrimeSubgroup() {
		return nil, ErrPointNotOnCurve
	}
	return p, nil
}

// G2Add returns a+b.
func G2Add(a, b *G2Point) *G2Point { return a.add(b) }

// G2Neg returns -a.
func G2Neg(a *G2Point) *G2Point { return a.neg() }

// G2ScalarMul returns [k]a.
func G2ScalarMul(a *G2Point, k *Scalar) *G2Point { return a.mulBig(k.big()) }

// G2Zero returns the identity of G2.
func G2Zero() *G2Point { return G2Infinity() }

// G2Equal reports whether a and b represent the same point.
func G2Equal(a, b *G2Point) bool {
	if a.isInf() || b.isInf() {
		return a.isInf() == b.isInf()
	}
	return a.x.equal(b.x) && a.y.equal(b.y)
}

// G2Sum folds Add over a slice, starting from the identity.
func G2Sum(pts []*G2Point) *G2Point {
	acc := G2Infinity()
	for _, p := range pts {
		acc = acc.add(p)
	}
	return acc
}

// g2EncSize is the uncompressed affine wire encoding size: two F_p²
// elements (real then imaginary part each), for x then y.
const g2EncSize = 192

// Bytes serializes p as an uncompressed affine encoding.
func (p *G2Point) Bytes() []byte {
	out := make([]byte, g2EncSize)
	if p.isInf() {
		return out
	}
	copy(out[0:48], p.x.a.bytes48())
	copy(out[48:96], p.x.b.bytes48())
	copy(out[96:144], p.y.a.bytes48())
	copy(out[144:192], p.y.b.bytes48())
	return out
}

// G2FromBytes parses the encoding produced by Bytes, with the same
// canonicality, curve, and subgroup checks as G1FromBytes.
func G2FromBytes(b []byte) (*G2Point, error) {
	if len(b) != g2EncSize {
		return nil, ErrInvalidEncoding
	}
	coords := make([]*big.Int, 4)
	allZero := true
	for i := range coords {
		coords[i] = new(big.Int).SetBytes(b[i*48 : (i+1)*48])
		if coords[i].Sign() != 0 {
			allZero = false
		}
	}
	if allZero {
		return G2Infinity(), nil
	}
	for _, c := range coords {
		if c.Cmp(fieldOrder) >= 0 {
			return nil, ErrInvalidEncoding
		}
	}
	x := fe2{a: feFromBig(coords[0]), b: feFromBig(coords[1])}
	y := fe2{a: feFromBig(coords[2]), b: feFromBig(coords[3])}
	if !g2OnCurve(x, y) {
		return nil, ErrPointNotOnCurve
	}
	p := &G2Point{x: x, y: y}
	if !p.inPrimeSubgroup() {
		return nil, ErrPointNotOnCurve
	}
	return p, nil
}

// PairingCheck reports whether product(e(g1[i], g2[i])) == 1 in GT, i.e.
// whether the supplied pairs multiply to the identity. Used for every
// two-pairing equality check e(A,B) == e(C,D) by passing (A, B, -C, D).
func PairingCheck(g1 []*G1Point, g2 []*G2Point) bool {
	return pairingProduct(g1, g2)
}

// PairingEqual checks e(a1,b1) == e(a2,b2) via a single product check.
func PairingEqual(a1 *G1Point, b1 *G2Point, a2 *G1Point, b2 *G2Point) bool {
	return PairingCheck([]*G1Point{a1, a2.neg()}, []*G2Point{b1, b2})
}
