package crypto

import (
	"math/big"
	"testing"
)

func randFe(rng *testRNG) fe {
	buf := make([]byte, 48)
	rng.Read(buf)
	return feFromBig(new(big.Int).SetBytes(buf))
}

func randFe2(rng *testRNG) fe2 {
	return fe2{a: randFe(rng), b: randFe(rng)}
}

func randFe6(rng *testRNG) fe6 {
	return fe6{a: randFe2(rng), b: randFe2(rng), c: randFe2(rng)}
}

func TestBaseFieldLaws(t *testing.T) {
	rng := &testRNG{state: 501}
	x := randFe(rng)
	y := randFe(rng)

	if !x.add(y).sub(y).equal(x) {
		t.Fatal("addition does not invert subtraction")
	}
	if !x.add(x.neg()).isZero() {
		t.Fatal("x + (-x) != 0")
	}
	if !x.mul(x.inv()).equal(feOne()) {
		t.Fatal("x * x^-1 != 1")
	}
	if !x.dbl().equal(x.add(x)) {
		t.Fatal("doubling disagrees with addition")
	}
	sq := x.square()
	root, ok := sq.sqrt()
	if !ok {
		t.Fatal("square has no root")
	}
	if !root.square().equal(sq) {
		t.Fatal("root does not square back")
	}
}

func TestQuadExtensionLaws(t *testing.T) {
	rng := &testRNG{state: 502}
	x := randFe2(rng)
	y := randFe2(rng)
	z := randFe2(rng)

	if !x.mul(y).equal(y.mul(x)) {
		t.Fatal("multiplication is not commutative")
	}
	if !x.mul(y.add(z)).equal(x.mul(y).add(x.mul(z))) {
		t.Fatal("distributivity fails")
	}
	if !x.square().equal(x.mul(x)) {
		t.Fatal("square disagrees with self-multiplication")
	}
	if !x.mul(x.inv()).equal(fe2One()) {
		t.Fatal("inverse is wrong")
	}
	// ξ-multiplication agrees with multiplying by the constant 1+u.
	xi := fe2{a: feOne(), b: feOne()}
	if !x.mulXi().equal(x.mul(xi)) {
		t.Fatal("mulXi disagrees with a full multiplication by 1+u")
	}
}

func TestTowerLaws(t *testing.T) {
	rng := &testRNG{state: 503}
	x := randFe6(rng)
	y := randFe6(rng)

	if !x.mul(y).equal(y.mul(x)) {
		t.Fatal("fe6 multiplication is not commutative")
	}
	if !x.mul(x.inv()).equal(fe6One()) {
		t.Fatal("fe6 inverse is wrong")
	}
	// v-shift agrees with multiplying by the element v.
	v := fe6{a: fe2Zero(), b: fe2One(), c: fe2Zero()}
	if !x.mulV().equal(x.mul(v)) {
		t.Fatal("mulV disagrees with a full multiplication by v")
	}

	f := fe12{a: x, b: y}
	g := fe12{a: y, b: x}
	if !f.mul(g).equal(g.mul(f)) {
		t.Fatal("fe12 multiplication is not commutative")
	}
	// Exponentiation is a homomorphism: f^a · f^b == f^(a+b).
	a := big.NewInt(0x1234)
	b := big.NewInt(0x0abc)
	lhs := f.exp(a).mul(f.exp(b))
	rhs := f.exp(new(big.Int).Add(a, b))
	if !lhs.equal(rhs) {
		t.Fatal("exponent addition law fails")
	}
}

func TestGTElementsHaveOrderR(t *testing.T) {
	rng := &testRNG{state: 504}
	s := RandomScalar(rng)
	gt := Pairing(G1ScalarMul(G1Generator(), s), G2Generator())
	if gt.v.isOne() {
		t.Fatal("pairing of nontrivial points is the identity")
	}
	if !gt.v.exp(groupOrder).isOne() {
		t.Fatal("pairing output does not lie in the order-r subgroup")
	}
}
