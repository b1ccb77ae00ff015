// Package erasure implements the Reed-Solomon erasure code used by the
// deliver sub-protocol: n shards with k = f+1 data shards, over GF(2^8),
// so that any k shards recover the encoded object.
package erasure

import "sync"

// GF256 is an element of GF(2^8) with the irreducible polynomial
// x^8 + x^4 + x^3 + x^2 + 1 (0x11D).
type GF256 uint8

const (
	gf256Modulus   = 0x11D
	gf256Order     = 255
	gf256Generator = 2
)

var (
	gf256Log  [256]uint8
	gf256Exp  [512]uint8
	gf256Inv  [256]uint8
	gf256Once sync.Once
)

func initTables() {
	gf256Once.Do(func() {
		var x uint16 = 1
		for i := 0; i < gf256Order; i++ {
			gf256Exp[i] = uint8(x)
			gf256Log[x] = uint8(i)
			x <<= 1
			if x&0x100 != 0 {
				x ^= gf256Modulus
			}
		}
		for i := 0; i < gf256Order; i++ {
			gf256Exp[i+gf256Order] = gf256Exp[i]
		}
		for a := 1; a < 256; a++ {
			gf256Inv[a] = gf256Exp[gf256Order-int(gf256Log[a])]
		}
		gf256Inv[1] = 1
	})
}

// Add returns a+b. Addition and subtraction coincide in characteristic 2.
func (a GF256) Add(b GF256) GF256 { return a ^ b }

// Mul returns a*b using the log/exp tables.
func (a GF256) Mul(b GF256) GF256 {
	if a == 0 || b == 0 {
		return 0
	}
	return GF256(gf256Exp[int(gf256Log[a])+int(gf256Log[b])])
}

// Div returns a/b. Division by zero panics; callers only divide by
// evaluation-point differences, which are nonzero by construction.
func (a GF256) Div(b GF256) GF256 {
	if b == 0 {
		panic("erasure: division by zero in GF(2^8)")
	}
	if a == 0 {
		return 0
	}
	return a.Mul(GF256(gf256Inv[b]))
}

// gf256Pow returns g^i for the primitive element g.
func gf256Pow(i int) GF256 {
	initTables()
	return GF256(gf256Exp[i%gf256Order])
}

// polyEval evaluates the polynomial with the given coefficients (low
// degree first) at x, by Horner's method.
func polyEval(coeffs []GF256, x GF256) GF256 {
	var acc GF256
	for i := len(coeffs) - 1; i >= 0; i-- {
		acc = acc.Mul(x).Add(coeffs[i])
	}
	return acc
}

// interpolate returns the coefficients of the unique polynomial of degree
// < len(xs) passing through the points (xs[i], ys[i]).
func interpolate(xs, ys []GF256) []GF256 {
	n := len(xs)
	coeffs := make([]GF256, n)
	basis := make([]GF256, n)
	for i := 0; i < n; i++ {
		// Build the i-th Lagrange basis polynomial incrementally:
		// prod_{j != i} (x - xs[j]) / (xs[i] - xs[j]).
		for k := range basis {
			basis[k] = 0
		}
		basis[0] = 1
		deg := 0
		var denom GF256 = 1
		for j := 0; j < n; j++ {
			if j == i {
				continue
			}
			// Multiply the running product by (x + xs[j]); minus is plus here.
			for k := deg; k >= 0; k-- {
				basis[k+1] = basis[k+1].Add(basis[k])
				basis[k] = basis[k].Mul(xs[j])
			}
			deg++
			denom = denom.Mul(xs[i].Add(xs[j]))
		}
		scale := ys[i].Div(denom)
		for k := 0; k <= deg; k++ {
			coeffs[k] = coeffs[k].Add(basis[k].Mul(scale))
		}
	}
	return coeffs
}
