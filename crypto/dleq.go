package crypto

// Non-interactive (Fiat-Shamir) proofs of equality of discrete logarithm
// across two groups: given bases g (in group X) and h (in group Y) and
// points x = [s]g, y = [s]h, prove knowledge of s without revealing it.
//
// OptRand needs this in two shapes: a "mixed" proof tying a G1 commitment
// to a G2 encryption under the same dealt scalar (used by PVSS sharing),
// and a same-group G2 proof tying a decryption share to its ciphertext
// (used when a replica opens its share of an aggregate). Go generics let
// both share one implementation instead of duplicating the transcript and
// verification logic per group pairing.

import "crypto/ed25519"

// Group is satisfied by *G1Point and *G2Point: anything with group
// addition and scalar multiplication that returns its own type.
type Group[T any] interface {
	AddG(T) T
	MulG(*Scalar) T
	EqualG(T) bool
	BytesG() []byte
}

// AddG, MulG, EqualG, BytesG adapt the package-level G1 helpers to the
// Group[T] shape required by the generic DLEQ prover/verifier.
func (p *G1Point) AddG(o *G1Point) *G1Point { return G1Add(p, o) }
func (p *G1Point) MulG(k *Scalar) *G1Point  { return G1ScalarMul(p, k) }
func (p *G1Point) EqualG(o *G1Point) bool   { return G1Equal(p, o) }
func (p *G1Point) BytesG() []byte           { return p.Bytes() }

// AddG, MulG, EqualG, BytesG adapt the package-level G2 helpers to the
// Group[T] shape required by the generic DLEQ prover/verifier.
func (p *G2Point) AddG(o *G2Point) *G2Point { return G2Add(p, o) }
func (p *G2Point) MulG(k *Scalar) *G2Point  { return G2ScalarMul(p, k) }
func (p *G2Point) EqualG(o *G2Point) bool   { return G2Equal(p, o) }
func (p *G2Point) BytesG() []byte           { return p.Bytes() }

// Signer pins a DLEQ transcript to the identity of the prover (the dealer
// or decrypting replica), so a decomposition proof can be tied back to
// the node that produced each constituent sharing.
type Signer interface {
	Sign(msg []byte) []byte
}

// Ed25519Signer is the long-term signing key every replica config carries.
type Ed25519Signer struct {
	Key ed25519.PrivateKey
}

// Sign implements Signer.
func (s Ed25519Signer) Sign(msg []byte) []byte { return ed25519.Sign(s.Key, msg) }

// Proof is a Fiat-Shamir DLEQ proof that the same scalar was used as the
// exponent of g (producing x in group GX) and of h (producing y in group GY).
type Proof[GX any, GY any] struct {
	A1  GX
	A2  GY
	C   *Scalar
	R   *Scalar
	Sig []byte
}

func dleqTranscript[GX Group[GX], GY Group[GY]](a1 GX, a2 GY, x GX, y GY) []byte {
	buf := make([]byte, 0, 4*96)
	buf = append(buf, a1.BytesG()...)
	buf = append(buf, a2.BytesG()...)
	buf = append(buf, x.BytesG()...)
	buf = append(buf, y.BytesG()...)
	return buf
}

// Prove builds a Proof that knowledge is the discrete log of x base g and of
// y base h simultaneously, signing the Fiat-Shamir transcript with signer.
func Prove[GX Group[GX], GY Group[GY]](knowledge *Scalar, g GX, x GX, h GY, y GY, signer Signer, rng RandReader) *Proof[GX, GY] {
	w := RandomScalar(rng)
	a1 := g.MulG(w)
	a2 := h.MulG(w)

	transcript := dleqTranscript[GX, GY](a1, a2, x, y)
	c := ScalarFromHash(transcript)
	r := w.Sub(c.Mul(knowledge))

	return &Proof[GX, GY]{
		A1:  a1,
		A2:  a2,
		C:   c,
		R:   r,
		Sig: signer.Sign(transcript),
	}
}

// Verify checks a Proof produced by Prove against the prover's long-term
// verification key, returning a tagged VerifyError on failure.
func Verify[GX Group[GX], GY Group[GY]](pi *Proof[GX, GY], g GX, x GX, h GY, y GY, verifierPK ed25519.PublicKey) *VerifyError {
	transcript := dleqTranscript[GX, GY](pi.A1, pi.A2, x, y)
	c := ScalarFromHash(transcript)
	if !c.Equal(pi.C) {
		return &VerifyError{Kind: ErrInvalidChallenge}
	}
	if !ed25519.Verify(verifierPK, transcript, pi.Sig) {
		return &VerifyError{Kind: ErrInvalidSignature}
	}
	lhs1 := g.MulG(pi.R).AddG(x.MulG(pi.C))
	if !lhs1.EqualG(pi.A1) {
		return &VerifyError{Kind: ErrLeftCheckFailed}
	}
	lhs2 := h.MulG(pi.R).AddG(y.MulG(pi.C))
	if !lhs2.EqualG(pi.A2) {
		return &VerifyError{Kind: ErrRightCheckFailed}
	}
	return nil
}

// SingleProof is a DLEQ proof restricted to a single group, used for the
// dealer's proof of knowledge of the shared secret (log_g(gs) = s).
type SingleProof[G any] struct {
	A   G
	C   *Scalar
	R   *Scalar
	Sig []byte
}

func singleTranscript[G Group[G]](a G, x G) []byte {
	buf := make([]byte, 0, 2*96)
	buf = append(buf, a.BytesG()...)
	buf = append(buf, x.BytesG()...)
	return buf
}

// ProveSingle builds a proof of knowledge of the discrete log of x base g.
func ProveSingle[G Group[G]](knowledge *Scalar, g G, x G, signer Signer, rng RandReader) *SingleProof[G] {
	w := RandomScalar(rng)
	a := g.MulG(w)
	transcript := singleTranscript[G](a, x)
	c := ScalarFromHash(transcript)
	r := w.Sub(c.Mul(knowledge))
	return &SingleProof[G]{A: a, C: c, R: r, Sig: signer.Sign(transcript)}
}

// VerifySingle checks a SingleProof against the prover's verification key.
func VerifySingle[G Group[G]](pi *SingleProof[G], g G, x G, verifierPK ed25519.PublicKey) *VerifyError {
	transcript := singleTranscript[G](pi.A, x)
	c := ScalarFromHash(transcript)
	if !c.Equal(pi.C) {
		return &VerifyError{Kind: ErrInvalidChallenge}
	}
	if !ed25519.Verify(verifierPK, transcript, pi.Sig) {
		return &VerifyError{Kind: ErrInvalidSignature}
	}
	lhs := g.MulG(pi.R).AddG(x.MulG(pi.C))
	if !lhs.EqualG(pi.A) {
		return &VerifyError{Kind: ErrLeftCheckFailed}
	}
	return nil
}
