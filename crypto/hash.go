package crypto

// Deterministic point derivation for nothing-up-my-sleeve generators.
//
// This is intentionally not the full RFC 9380 hash-to-curve map (no
// isogeny, no SSWU): the beacon only needs one additional G1 generator
// that every replica can compute identically offline, not a
// collision-resistant encoding for attacker-controlled input. A
// try-and-increment search followed by cofactor clearing suffices.

import (
	"crypto/sha256"
	"math/big"
)

// g1Cofactor is the G1 cofactor h = (x-1)²/3 for x = -0xd201000000010000.
var g1Cofactor, _ = new(big.Int).SetString("396c8c005555e1568c00aaab0000aaab", 16)

// hashToG1 derives a point in the prime-order G1 subgroup deterministically
// from seed, by hashing until a valid curve x-coordinate is found and then
// clearing the cofactor.
func hashToG1(seed []byte) *G1Point {
	counter := uint32(0)
	for {
		h := sha256.New()
		h.Write(seed)
		h.Write([]byte{byte(counter), byte(counter >> 8), byte(counter >> 16), byte(counter >> 24)})
		digest := h.Sum(nil)

		x := feFromBig(new(big.Int).SetBytes(digest))
		rhs := x.square().mul(x).add(g1CurveB)
		if y, ok := rhs.sqrt(); ok {
			cleared := (&G1Point{x: x, y: y}).mulBig(g1Cofactor)
			if !cleared.isInf() {
				return cleared
			}
		}
		counter++
	}
}
