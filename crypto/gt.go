package crypto

import "math/big"

// GT is an element of the pairing target group, used only to hold a
// beacon's verifiable value; it supports equality but no arithmetic.
type GT struct {
	v fe12
}

// Pairing computes e(p, q) directly, for contexts (like the beacon) that
// need the actual target-group element rather than a boolean product check.
func Pairing(p *G1Point, q *G2Point) GT {
	if p.isInf() || q.isInf() {
		return GT{v: fe12One()}
	}
	return GT{v: finalExponentiation(millerLoop(p, q))}
}

// Equal reports whether two GT elements are the same.
func (a GT) Equal(b GT) bool { return a.v.equal(b.v) }

// gtEncSize is the fixed encoding: twelve 48-byte F_p coefficients.
const gtEncSize = 12 * 48

// Bytes serializes the element coefficient by coefficient: the two F_p⁶
// halves in tower order, each as three F_p² coefficients, each of those
// as its real then imaginary part.
func (a GT) Bytes() []byte {
	out := make([]byte, 0, gtEncSize)
	for _, half := range []fe6{a.v.a, a.v.b} {
		for _, quad := range []fe2{half.a, half.b, half.c} {
			out = append(out, quad.a.bytes48()...)
			out = append(out, quad.b.bytes48()...)
		}
	}
	return out
}

// GTFromBytes parses the encoding produced by Bytes.
func GTFromBytes(b []byte) (GT, error) {
	if len(b) != gtEncSize {
		return GT{}, ErrInvalidEncoding
	}
	coeffs := make([]fe, 12)
	for i := range coeffs {
		v := new(big.Int).SetBytes(b[i*48 : (i+1)*48])
		if v.Cmp(fieldOrder) >= 0 {
			return GT{}, ErrInvalidEncoding
		}
		coeffs[i] = fe{n: v}
	}
	half := func(off int) fe6 {
		return fe6{
			a: fe2{a: coeffs[off], b: coeffs[off+1]},
			b: fe2{a: coeffs[off+2], b: coeffs[off+3]},
			c: fe2{a: coeffs[off+4], b: coeffs[off+5]},
		}
	}
	return GT{v: fe12{a: half(0), b: half(6)}}, nil
}
