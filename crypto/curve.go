package crypto

// Affine group law for G1 (y² = x³ + 4 over F_p) and G2 (y² = x³ + 4(1+u)
// over F_p²).
//
// Points are stored in affine coordinates with an explicit infinity flag.
// The chord-and-tangent formulas spend one field inversion per operation,
// which math/big handles in the same ballpark as a handful of reductions;
// in exchange the Miller loop can reuse each step's slope for both the
// line evaluation and the point update, and every intermediate point is
// directly comparable and serializable.

import "math/big"

var (
	// g1CurveB is the G1 curve constant b = 4.
	g1CurveB = feFromUint(4)
	// g2CurveB is the twist constant b' = 4(1+u).
	g2CurveB = fe2{a: feFromUint(4), b: feFromUint(4)}

	g1GenX, _ = new(big.Int).SetString(
		"17f1d3a73197d7942695638c4fa9ac0fc3688c4f9774b905a14e3a3f171bac586c55e83ff97a1aeffb3af00adb22c6bb", 16)
	g1GenY, _ = new(big.Int).SetString(
		"08b3f481e3aaa0f1a09e30ed741d8ae4fcf5e095d5d00af600db18cb2c04b3edd03cc744a2888ae40caa232946c5e7e1", 16)

	g2GenXa, _ = new(big.Int).SetString(
		"024aa2b2f08f0a91260805272dc51051c6e47ad4fa403b02b4510b647ae3d1770bac0326a805bbefd48056c8c121bdb8", 16)
	g2GenXb, _ = new(big.Int).SetString(
		"13e02b6052719f607dacd3a088274f65596bd0d09920b61ab5da61bbdc7f5049334cf11213945d57e5ac7d055d042b7e", 16)
	g2GenYa, _ = new(big.Int).SetString(
		"0ce5d527727d6e118cc9cdc6da2e351aadfd9baa8cbdd3a76d429a695160d12c923ac9cc3baca289e193548608b82801", 16)
	g2GenYb, _ = new(big.Int).SetString(
		"0606c4a02ea734cc32acd2b02bc28b99cb3e287e85a763af267492ab572e99ab3f370d275cec1da1aaa9075ff05f79be", 16)
)

// G1Point is an affine point on the base curve, or infinity.
type G1Point struct {
	x, y fe
	inf  bool
}

// G1Generator returns the standard generator of G1.
func G1Generator() *G1Point {
	return &G1Point{x: feFromBig(g1GenX), y: feFromBig(g1GenY)}
}

// G1Infinity returns the identity of G1.
func G1Infinity() *G1Point { return &G1Point{inf: true} }

func (p *G1Point) isInf() bool { return p.inf }

func g1OnCurve(x, y fe) bool {
	lhs := y.square()
	rhs := x.square().mul(x).add(g1CurveB)
	return lhs.equal(rhs)
}

func (p *G1Point) neg() *G1Point {
	if p.inf {
		return G1Infinity()
	}
	return &G1Point{x: p.x, y: p.y.neg()}
}

// add is the full chord-and-tangent addition, covering doubling and
// inverse pairs.
func (p *G1Point) add(q *G1Point) *G1Point {
	if p.inf {
		return &G1Point{x: q.x, y: q.y, inf: q.inf}
	}
	if q.inf {
		return &G1Point{x: p.x, y: p.y, inf: p.inf}
	}
	if p.x.equal(q.x) {
		if p.y.equal(q.y) && !p.y.isZero() {
			return p.double()
		}
		return G1Infinity()
	}
	slope := q.y.sub(p.y).mul(q.x.sub(p.x).inv())
	x3 := slope.square().sub(p.x).sub(q.x)
	y3 := slope.mul(p.x.sub(x3)).sub(p.y)
	return &G1Point{x: x3, y: y3}
}

func (p *G1Point) double() *G1Point {
	if p.inf || p.y.isZero() {
		return G1Infinity()
	}
	slope := p.x.square().mul(feFromUint(3)).mul(p.y.dbl().inv())
	x3 := slope.square().sub(p.x.dbl())
	y3 := slope.mul(p.x.sub(x3)).sub(p.y)
	return &G1Point{x: x3, y: y3}
}

// mulBig is left-to-right double-and-add over the bits of k ≥ 0.
func (p *G1Point) mulBig(k *big.Int) *G1Point {
	acc := G1Infinity()
	for i := k.BitLen() - 1; i >= 0; i-- {
		acc = acc.double()
		if k.Bit(i) == 1 {
			acc = acc.add(p)
		}
	}
	return acc
}

// inPrimeSubgroup reports whether p lies in the order-r subgroup.
func (p *G1Point) inPrimeSubgroup() bool {
	return p.mulBig(groupOrder).isInf()
}

// G2Point is an affine point on the twist curve, or infinity.
type G2Point struct {
	x, y fe2
	inf  bool
}

// G2Generator returns the standard generator of G2.
func G2Generator() *G2Point {
	return &G2Point{
		x: fe2{a: feFromBig(g2GenXa), b: feFromBig(g2GenXb)},
		y: fe2{a: feFromBig(g2GenYa), b: feFromBig(g2GenYb)},
	}
}

// G2Infinity returns the identity of G2.
func G2Infinity() *G2Point { return &G2Point{inf: true} }

func (p *G2Point) isInf() bool { return p.inf }

func g2OnCurve(x, y fe2) bool {
	lhs := y.square()
	rhs := x.square().mul(x).add(g2CurveB)
	return lhs.equal(rhs)
}

func (p *G2Point) neg() *G2Point {
	if p.inf {
		return G2Infinity()
	}
	return &G2Point{x: p.x, y: p.y.neg()}
}

func (p *G2Point) add(q *G2Point) *G2Point {
	if p.inf {
		return &G2Point{x: q.x, y: q.y, inf: q.inf}
	}
	if q.inf {
		return &G2Point{x: p.x, y: p.y, inf: p.inf}
	}
	if p.x.equal(q.x) {
		if p.y.equal(q.y) && !p.y.isZero() {
			return p.double()
		}
		return G2Infinity()
	}
	slope := q.y.sub(p.y).mul(q.x.sub(p.x).inv())
	x3 := slope.square().sub(p.x).sub(q.x)
	y3 := slope.mul(p.x.sub(x3)).sub(p.y)
	return &G2Point{x: x3, y: y3}
}

func (p *G2Point) double() *G2Point {
	if p.inf || p.y.isZero() {
		return G2Infinity()
	}
	slope := p.x.square().mulBase(feFromUint(3)).mul(p.y.add(p.y).inv())
	x3 := slope.square().sub(p.x).sub(p.x)
	y3 := slope.mul(p.x.sub(x3)).sub(p.y)
	return &G2Point{x: x3, y: y3}
}

func (p *G2Point) mulBig(k *big.Int) *G2Point {
	acc := G2Infinity()
	for i := k.BitLen() - 1; i >= 0; i-- {
		acc = acc.double()
		if k.Bit(i) == 1 {
			acc = acc.add(p)
		}
	}
	return acc
}

// inPrimeSubgroup reports whether p lies in the order-r subgroup.
func (p *G2Point) inPrimeSubgroup() bool {
	return p.mulBig(groupOrder).isInf()
}
