package crypto

// Base and quadratic extension field arithmetic for BLS12-381.
//
// Elements are immutable values kept reduced in [0, p); every operation
// returns a fresh element, so points and tower elements can share
// coefficient storage freely. Addition and subtraction reduce with a
// single conditional step instead of a full division, which covers the
// common case where operands are already reduced.

import "math/big"

var (
	// fieldOrder is the base field modulus p.
	fieldOrder, _ = new(big.Int).SetString(
		"1a0111ea397fe69a4b1ba7b6434bacd764774b84f38512bf6730d2a0f6b0f6241eabfffeb153ffffb9feffffffffaaab", 16)
	// groupOrder is r, the order of the G1/G2 subgroups and of GT.
	groupOrder, _ = new(big.Int).SetString(
		"73eda753299d7d483339d80809a1d80553bda402fffe5bfeffffffff00000001", 16)
	// fieldSqrtExp is (p+1)/4; p ≡ 3 (mod 4), so squares have the root
	// x^((p+1)/4).
	fieldSqrtExp = new(big.Int).Rsh(new(big.Int).Add(fieldOrder, big.NewInt(1)), 2)
)

// fe is an element of F_p.
type fe struct {
	n *big.Int
}

func feZero() fe { return fe{n: new(big.Int)} }

func feOne() fe { return fe{n: big.NewInt(1)} }

func feFromUint(v uint64) fe { return fe{n: new(big.Int).SetUint64(v)} }

// feFromBig reduces an arbitrary integer into the field.
func feFromBig(v *big.Int) fe {
	return fe{n: new(big.Int).Mod(v, fieldOrder)}
}

func (x fe) isZero() bool { return x.n.Sign() == 0 }

func (x fe) equal(y fe) bool { return x.n.Cmp(y.n) == 0 }

func (x fe) add(y fe) fe {
	r := new(big.Int).Add(x.n, y.n)
	if r.Cmp(fieldOrder) >= 0 {
		r.Sub(r, fieldOrder)
	}
	return fe{n: r}
}

func (x fe) dbl() fe { return x.add(x) }

func (x fe) sub(y fe) fe {
	r := new(big.Int).Sub(x.n, y.n)
	if r.Sign() < 0 {
		r.Add(r, fieldOrder)
	}
	return fe{n: r}
}

func (x fe) neg() fe {
	if x.isZero() {
		return feZero()
	}
	return fe{n: new(big.Int).Sub(fieldOrder, x.n)}
}

func (x fe) mul(y fe) fe {
	r := new(big.Int).Mul(x.n, y.n)
	return fe{n: r.Mod(r, fieldOrder)}
}

func (x fe) square() fe { return x.mul(x) }

func (x fe) inv() fe {
	return fe{n: new(big.Int).ModInverse(x.n, fieldOrder)}
}

// sqrt returns a square root of x and whether one exists, by raising to
// (p+1)/4 and checking the candidate against x.
func (x fe) sqrt() (fe, bool) {
	root := fe{n: new(big.Int).Exp(x.n, fieldSqrtExp, fieldOrder)}
	if !root.square().equal(x) {
		return feZero(), false
	}
	return root, true
}

// bytes48 is the fixed-width big-endian coordinate encoding.
func (x fe) bytes48() []byte {
	out := make([]byte, 48)
	x.n.FillBytes(out)
	return out
}

// fe2 is a + b·u in F_p² = F_p[u]/(u²+1).
type fe2 struct {
	a, b fe
}

func fe2Zero() fe2 { return fe2{a: feZero(), b: feZero()} }

func fe2One() fe2 { return fe2{a: feOne(), b: feZero()} }

func fe2FromBase(x fe) fe2 { return fe2{a: x, b: feZero()} }

func (x fe2) isZero() bool { return x.a.isZero() && x.b.isZero() }

func (x fe2) equal(y fe2) bool { return x.a.equal(y.a) && x.b.equal(y.b) }

func (x fe2) add(y fe2) fe2 { return fe2{a: x.a.add(y.a), b: x.b.add(y.b)} }

func (x fe2) sub(y fe2) fe2 { return fe2{a: x.a.sub(y.a), b: x.b.sub(y.b)} }

func (x fe2) neg() fe2 { return fe2{a: x.a.neg(), b: x.b.neg()} }

// mul is a three-multiplication Karatsuba product.
func (x fe2) mul(y fe2) fe2 {
	t0 := x.a.mul(y.a)
	t1 := x.b.mul(y.b)
	cross := x.a.add(x.b).mul(y.a.add(y.b))
	return fe2{
		a: t0.sub(t1),
		b: cross.sub(t0).sub(t1),
	}
}

// square uses (a+b)(a−b) for the real part and 2ab for the imaginary.
func (x fe2) square() fe2 {
	return fe2{
		a: x.a.add(x.b).mul(x.a.sub(x.b)),
		b: x.a.mul(x.b).dbl(),
	}
}

// inv divides the conjugate by the norm a²+b².
func (x fe2) inv() fe2 {
	normInv := x.a.square().add(x.b.square()).inv()
	return fe2{a: x.a.mul(normInv), b: x.b.neg().mul(normInv)}
}

// mulBase scales both coefficients by a base-field element.
func (x fe2) mulBase(s fe) fe2 { return fe2{a: x.a.mul(s), b: x.b.mul(s)} }

// mulXi multiplies by the sextic non-residue ξ = 1+u:
// (1+u)(a+bu) = (a−b) + (a+b)u.
func (x fe2) mulXi() fe2 { return fe2{a: x.a.sub(x.b), b: x.a.add(x.b)} }
