package crypto

// The extension tower and the optimal ate pairing.
//
//	F_p² = F_p[u]/(u²+1)
//	F_p⁶ = F_p²[v]/(v³−ξ), ξ = 1+u
//	F_p¹² = F_p⁶[w]/(w²−v)
//
// The Miller loop walks the bits of |x| for the curve parameter
// x = −0xd201000000010000, keeping the G2 accumulator affine so each
// step's slope serves both the line evaluation and the point update. A
// line through the twist evaluated at P = (xP, yP) untwists to the
// sparse element
//
//	l(P) = (λ·xR − yR) + (−λ·xP)·v + yP·v·w
//
// and the final exponentiation raises straight to (p¹²−1)/r in one
// square-and-multiply pass; the exponent is fixed, so nothing is gained
// here by splitting it into cyclotomic pieces.

import "math/big"

// ateParam is |x| for BLS12-381; x itself is negative, which the Miller
// loop accounts for with a final conjugation.
var ateParam, _ = new(big.Int).SetString("d201000000010000", 16)

// gtExponent is (p¹²−1)/r, the full final-exponentiation power.
var gtExponent = func() *big.Int {
	e := new(big.Int).Exp(fieldOrder, big.NewInt(12), nil)
	e.Sub(e, big.NewInt(1))
	return e.Div(e, groupOrder)
}()

// fe6 is a + b·v + c·v².
type fe6 struct {
	a, b, c fe2
}

func fe6Zero() fe6 { return fe6{a: fe2Zero(), b: fe2Zero(), c: fe2Zero()} }

func fe6One() fe6 { return fe6{a: fe2One(), b: fe2Zero(), c: fe2Zero()} }

func (x fe6) equal(y fe6) bool {
	return x.a.equal(y.a) && x.b.equal(y.b) && x.c.equal(y.c)
}

func (x fe6) add(y fe6) fe6 {
	return fe6{a: x.a.add(y.a), b: x.b.add(y.b), c: x.c.add(y.c)}
}

func (x fe6) neg() fe6 { return fe6{a: x.a.neg(), b: x.b.neg(), c: x.c.neg()} }

// mul is the schoolbook product reduced with v³ = ξ.
func (x fe6) mul(y fe6) fe6 {
	aa := x.a.mul(y.a)
	bb := x.b.mul(y.b)
	cc := x.c.mul(y.c)
	return fe6{
		a: aa.add(x.b.mul(y.c).add(x.c.mul(y.b)).mulXi()),
		b: x.a.mul(y.b).add(x.b.mul(y.a)).add(cc.mulXi()),
		c: x.a.mul(y.c).add(x.c.mul(y.a)).add(bb),
	}
}

// mulV shifts coefficients one place up the tower: v·(a+bv+cv²) = ξc + av + bv².
func (x fe6) mulV() fe6 {
	return fe6{a: x.c.mulXi(), b: x.a, c: x.b}
}

// inv uses the adjugate-over-norm formula for cubic extensions.
func (x fe6) inv() fe6 {
	adjA := x.a.square().sub(x.b.mul(x.c).mulXi())
	adjB := x.c.square().mulXi().sub(x.a.mul(x.b))
	adjC := x.b.square().sub(x.a.mul(x.c))
	norm := x.a.mul(adjA).add(x.c.mul(adjB).add(x.b.mul(adjC)).mulXi())
	n := norm.inv()
	return fe6{a: adjA.mul(n), b: adjB.mul(n), c: adjC.mul(n)}
}

// fe12 is a + b·w.
type fe12 struct {
	a, b fe6
}

func fe12One() fe12 { return fe12{a: fe6One(), b: fe6Zero()} }

func (x fe12) equal(y fe12) bool { return x.a.equal(y.a) && x.b.equal(y.b) }

func (x fe12) isOne() bool { return x.equal(fe12One()) }

// mul is the schoolbook product reduced with w² = v.
func (x fe12) mul(y fe12) fe12 {
	return fe12{
		a: x.a.mul(y.a).add(x.b.mul(y.b).mulV()),
		b: x.a.mul(y.b).add(x.b.mul(y.a)),
	}
}

func (x fe12) square() fe12 { return x.mul(x) }

// conj negates the w coefficient; for unitary elements this is the
// p⁶-power Frobenius, and in particular inversion after the final
// exponentiation.
func (x fe12) conj() fe12 { return fe12{a: x.a, b: x.b.neg()} }

// exp is left-to-right square-and-multiply for k ≥ 0.
func (x fe12) exp(k *big.Int) fe12 {
	acc := fe12One()
	for i := k.BitLen() - 1; i >= 0; i-- {
		acc = acc.square()
		if k.Bit(i) == 1 {
			acc = acc.mul(x)
		}
	}
	return acc
}

// lineEval is the sparse untwisted line l0 + l1·v + l2·vw with l0,l1,l2
// in F_p².
type lineEval struct {
	l0, l1, l2 fe2
}

func (l lineEval) toFe12() fe12 {
	return fe12{
		a: fe6{a: l.l0, b: l.l1, c: fe2Zero()},
		b: fe6{a: fe2Zero(), b: l.l2, c: fe2Zero()},
	}
}

// ateStep is the affine Miller-loop accumulator.
type ateStep struct {
	rx, ry fe2
	done   bool // accumulator hit infinity; remaining lines are trivial
	px, py fe   // the G1 argument, fixed for the whole loop
}

// tangent evaluates the tangent line at R and doubles R in place.
func (s *ateStep) tangent() (lineEval, bool) {
	if s.ry.isZero() {
		s.done = true
		return lineEval{}, false
	}
	slope := s.rx.square().mulBase(feFromUint(3)).mul(s.ry.add(s.ry).inv())
	line := s.lineThrough(slope)
	x3 := slope.square().sub(s.rx).sub(s.rx)
	s.ry = slope.mul(s.rx.sub(x3)).sub(s.ry)
	s.rx = x3
	return line, true
}

// chord evaluates the line through R and Q and folds Q into R.
func (s *ateStep) chord(qx, qy fe2) (lineEval, bool) {
	if s.rx.equal(qx) {
		if s.ry.equal(qy) {
			return s.tangent()
		}
		s.done = true
		return lineEval{}, false
	}
	slope := qy.sub(s.ry).mul(qx.sub(s.rx).inv())
	line := s.lineThrough(slope)
	x3 := slope.square().sub(s.rx).sub(qx)
	s.ry = slope.mul(s.rx.sub(x3)).sub(s.ry)
	s.rx = x3
	return line, true
}

// lineThrough builds the untwisted evaluation at P of the line of the
// given slope through R.
func (s *ateStep) lineThrough(slope fe2) lineEval {
	return lineEval{
		l0: slope.mul(s.rx).sub(s.ry),
		l1: slope.mulBase(s.px).neg(),
		l2: fe2FromBase(s.py),
	}
}

// millerLoop accumulates the line evaluations over the bits of |x|.
func millerLoop(p *G1Point, q *G2Point) fe12 {
	if p.isInf() || q.isInf() {
		return fe12One()
	}
	step := &ateStep{rx: q.x, ry: q.y, px: p.x, py: p.y}
	f := fe12One()
	for i := ateParam.BitLen() - 2; i >= 0; i-- {
		f = f.square()
		if !step.done {
			if line, ok := step.tangent(); ok {
				f = f.mul(line.toFe12())
			}
		}
		if ateParam.Bit(i) == 1 && !step.done {
			if line, ok := step.chord(q.x, q.y); ok {
				f = f.mul(line.toFe12())
			}
		}
	}
	// The BLS parameter is negative: e(P,Q) uses f^{−1}, and after the
	// final exponentiation conjugation computes exactly that.
	return f.conj()
}

// finalExponentiation maps a Miller-loop output into the order-r
// subgroup of F_p¹².
func finalExponentiation(f fe12) fe12 {
	return f.exp(gtExponent)
}

// pairingProduct reports whether Π e(P_i, Q_i) is the identity, sharing
// one final exponentiation across all pairs.
func pairingProduct(g1s []*G1Point, g2s []*G2Point) bool {
	f := fe12One()
	for i := range g1s {
		f = f.mul(millerLoop(g1s[i], g2s[i]))
	}
	return finalExponentiation(f).isOne()
}
