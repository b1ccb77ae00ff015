package crypto

// The PVSS share/aggregate/decrypt pipeline.
//
// A dealer shares a random secret s by evaluating a degree-f polynomial
// with p(0) = s at the points 1..n, committing to each evaluation in G1
// and encrypting it to each replica's key in G2. Anyone can check the
// sharing against the dealer's public key alone; no interaction with the
// dealer is needed, which is what lets f+1 sharings from distinct dealers
// be summed into one aggregate whose reconstructed secret no single
// dealer knows.

import "crypto/ed25519"

// PVSSVec is a single dealer's sharing: the commitment and encryption for
// every replica, a per-index DLEQ proof tying the two together, and the
// dealer's proof of knowledge of the shared secret.
type PVSSVec struct {
	Comms  []*G1Point
	Encs   []*G2Point
	Proofs []*Proof[*G1Point, *G2Point]
	Gs     *G1Point
	Sok    *SingleProof[*G1Point]
}

// AggregatePVSS is the componentwise sum of f+1 distinct dealers'
// sharings. One decryption share per replica of an aggregate is enough to
// reconstruct the epoch's beacon.
type AggregatePVSS struct {
	Encs  []*G2Point
	Comms []*G1Point
}

// DecompositionProof binds an aggregate to the identities of its
// contributors: the per-dealer g^s values must sum to the aggregate's
// reconstructed g^s, and each one carries its dealer's proof of knowledge.
type DecompositionProof struct {
	Indices []int
	GsVec   []*G1Point
	SokVec  []*SingleProof[*G1Point]
}

// Decryption is a replica's opening of its own encryption, with a DLEQ
// proof of correct decryption so verifiers avoid two pairings per share.
type Decryption struct {
	Dec   *G2Point
	Proof *Proof[*G2Point, *G2Point]
}

// Beacon is a reconstructed epoch secret: Value = [s]g2, and Paired is
// the unpredictable target-group element e(beaconGen, Value) exposed to
// applications.
type Beacon struct {
	Value  *G2Point
	Paired GT
}

// GenerateShares creates a sharing of a fresh uniformly random secret.
func (c *Context) GenerateShares(rng RandReader) *PVSSVec {
	return c.generateSharesFor(RandomScalar(rng), rng)
}

func (c *Context) generateSharesFor(secret *Scalar, rng RandReader) *PVSSVec {
	n, f := c.N, c.F

	coeffs := make([]*Scalar, f+1)
	coeffs[0] = secret
	for i := 1; i <= f; i++ {
		coeffs[i] = RandomScalar(rng)
	}
	evalAt := func(x *Scalar) *Scalar {
		acc := ScalarZero()
		power := ScalarOne()
		for _, co := range coeffs {
			acc = acc.Add(co.Mul(power))
			power = power.Mul(x)
		}
		return acc
	}

	comms := make([]*G1Point, n)
	encs := make([]*G2Point, n)
	proofs := make([]*Proof[*G1Point, *G2Point], n)
	for i := 0; i < n; i++ {
		si := evalAt(NewScalarFromUint64(uint64(i + 1)))
		comms[i] = c.g1Fixed.mul(si)
		encs[i] = G2ScalarMul(c.pubKeys[i], si)
		proofs[i] = Prove(si, c.g1, comms[i], c.pubKeys[i], encs[i], c.signer, rng)
	}

	gs := c.g1Fixed.mul(secret)
	sok := ProveSingle(secret, c.g1, gs, c.signer, rng)

	return &PVSSVec{
		Comms:  comms,
		Encs:   encs,
		Proofs: proofs,
		Gs:     gs,
		Sok:    sok,
	}
}

// codingCheck verifies that the commitment vector lies on a degree-f
// polynomial by taking its inner product with the precomputed dual
// codeword; the product is the identity iff the degree bound holds.
func (c *Context) codingCheck(comms []*G1Point) bool {
	acc := G1Zero()
	for i, cm := range comms {
		acc = G1Add(acc, G1ScalarMul(cm, c.codewords[i]))
	}
	return G1Equal(acc, G1Zero())
}

// reconstructGs interpolates [s]g1 at zero from the first f+1 commitments.
func (c *Context) reconstructGs(comms []*G1Point) *G1Point {
	indices := make([]int, c.F+1)
	for i := range indices {
		indices[i] = i
	}
	acc := G1Zero()
	for _, i := range indices {
		lambda := LagrangeCoefficient(c.lagrange, indices, i)
		acc = G1Add(acc, G1ScalarMul(comms[i], lambda))
	}
	return acc
}

// VerifySharing checks a dealer's PVSSVec against the dealer's long-term
// verification key. A nil return means the sharing is valid.
func (c *Context) VerifySharing(pvec *PVSSVec, dealerPK ed25519.PublicKey) *VerifyError {
	if len(pvec.Comms) != c.N || len(pvec.Encs) != c.N || len(pvec.Proofs) != c.N {
		return &VerifyError{Kind: ErrCodingCheckFailed}
	}
	if !c.codingCheck(pvec.Comms) {
		return &VerifyError{Kind: ErrCodingCheckFailed}
	}
	for i := 0; i < c.N; i++ {
		if err := Verify(pvec.Proofs[i], c.g1, pvec.Comms[i], c.pubKeys[i], pvec.Encs[i], dealerPK); err != nil {
			return &VerifyError{Kind: ErrDlogProofCheckFailed, Index: i}
		}
	}
	if !G1Equal(c.reconstructGs(pvec.Comms), pvec.Gs) {
		return &VerifyError{Kind: ErrInvalidGs}
	}
	if err := VerifySingle(pvec.Sok, c.g1, pvec.Gs, dealerPK); err != nil {
		return &VerifyError{Kind: ErrSingleDleqProofCheckFailed}
	}
	return nil
}

// Aggregate sums f+1 sharings componentwise and produces the decomposition
// proof naming the contributors. The input vectors are consumed.
func (c *Context) Aggregate(indices []int, pvecs []*PVSSVec) (*AggregatePVSS, *DecompositionProof) {
	if len(indices) != len(pvecs) {
		panic("crypto: aggregate index/sharing length mismatch")
	}
	encs := make([]*G2Point, c.N)
	comms := make([]*G1Point, c.N)
	for i := 0; i < c.N; i++ {
		e := G2Zero()
		cm := G1Zero()
		for _, v := range pvecs {
			e = G2Add(e, v.Encs[i])
			cm = G1Add(cm, v.Comms[i])
		}
		encs[i] = e
		comms[i] = cm
	}

	gsVec := make([]*G1Point, len(pvecs))
	sokVec := make([]*SingleProof[*G1Point], len(pvecs))
	for i, v := range pvecs {
		gsVec[i] = v.Gs
		sokVec[i] = v.Sok
		pvecs[i] = nil
	}

	agg := &AggregatePVSS{Encs: encs, Comms: comms}
	decomp := &DecompositionProof{
		Indices: append([]int(nil), indices...),
		GsVec:   gsVec,
		SokVec:  sokVec,
	}
	return agg, decomp
}

// PVerify checks the public part of an aggregate: the degree bound on the
// commitments and the pairing consistency of every encryption. Our own
// index is skipped; the decomposition proof already pins it.
func (c *Context) PVerify(agg *AggregatePVSS) *VerifyError {
	if len(agg.Comms) != c.N || len(agg.Encs) != c.N {
		return &VerifyError{Kind: ErrCodingCheckFailed}
	}
	if !c.codingCheck(agg.Comms) {
		return &VerifyError{Kind: ErrCodingCheckFailed}
	}
	for i := 0; i < c.N; i++ {
		if i == c.myIndex {
			continue
		}
		// e(g1, encs[i]) == e(comms[i], pk_i)
		if !PairingEqual(c.g1, agg.Encs[i], agg.Comms[i], c.pubKeys[i]) {
			return &VerifyError{Kind: ErrPairingCheckFailed, Index: i}
		}
	}
	return nil
}

// DecompVerify checks that the per-dealer g^s values decompose the
// aggregate and that each contributor's proof of knowledge holds.
func (c *Context) DecompVerify(agg *AggregatePVSS, decomp *DecompositionProof, pks map[int]ed25519.PublicKey) *VerifyError {
	if len(decomp.Indices) != len(decomp.GsVec) || len(decomp.Indices) != len(decomp.SokVec) {
		return &VerifyError{Kind: ErrCommitmentNotDecomposing}
	}
	sum := G1Zero()
	for _, gs := range decomp.GsVec {
		sum = G1Add(sum, gs)
	}
	if !G1Equal(c.reconstructGs(agg.Comms), sum) {
		return &VerifyError{Kind: ErrInvalidGs}
	}
	for i, sok := range decomp.SokVec {
		pk, ok := pks[decomp.Indices[i]]
		if !ok {
			return &VerifyError{Kind: ErrSingleDleqProofCheckFailed, Index: decomp.Indices[i]}
		}
		if err := VerifySingle(sok, c.g1, decomp.GsVec[i], pk); err != nil {
			return &VerifyError{Kind: ErrSingleDleqProofCheckFailed, Index: decomp.Indices[i]}
		}
	}
	return nil
}

// DecryptShare opens this replica's encryption of an aggregate, with a
// DLEQ proof that the opening used the key behind our published pk.
func (c *Context) DecryptShare(enc *G2Point, rng RandReader) *Decryption {
	dec := G2ScalarMul(enc, c.myKeyInv)
	// log_{g2}(pk_self) == log_{dec}(enc), both equal to my secret key
	pi := Prove(c.myKey, c.g2, c.pubKeys[c.myIndex], dec, enc, c.signer, rng)
	return &Decryption{Dec: dec, Proof: pi}
}

// VerifyShare checks another replica's decryption share against its PVSS
// public key and its long-term verification key.
func (c *Context) VerifyShare(origin int, enc *G2Point, dec *Decryption, originPK ed25519.PublicKey) *VerifyError {
	if origin < 0 || origin >= c.N {
		return &VerifyError{Kind: ErrDlogProofCheckFailed, Index: origin}
	}
	if err := Verify(dec.Proof, c.g2, c.pubKeys[origin], dec.Dec, enc, originPK); err != nil {
		return &VerifyError{Kind: ErrDlogProofCheckFailed, Index: origin}
	}
	return nil
}

// Reconstruct Lagrange-combines any f+1 decrypted shares into the epoch
// beacon. The slice is indexed by replica; nil entries are absent shares.
// Deterministic: any two (f+1)-subsets of valid shares yield the same
// beacon.
func (c *Context) Reconstruct(shares []*G2Point) *Beacon {
	indices := make([]int, 0, c.F+1)
	for i, sh := range shares {
		if sh != nil {
			indices = append(indices, i)
		}
		if len(indices) == c.F+1 {
			break
		}
	}
	if len(indices) < c.F+1 {
		return nil
	}
	value := G2Zero()
	for _, i := range indices {
		lambda := LagrangeCoefficient(c.lagrange, indices, i)
		value = G2Add(value, G2ScalarMul(shares[i], lambda))
	}
	return &Beacon{
		Value:  value,
		Paired: Pairing(c.beaconGen, value),
	}
}

// CheckBeacon verifies a claimed beacon against the aggregate commitments
// it was reconstructed from: the paired value must match the claimed group
// element, and the element must open the committed secret.
func (c *Context) CheckBeacon(b *Beacon, comms []*G1Point) bool {
	if b == nil || len(comms) < c.F+1 {
		return false
	}
	if !Pairing(c.beaconGen, b.Value).Equal(b.Paired) {
		return false
	}
	hs := c.reconstructGs(comms)
	// e(hs, g2) == e(g1, value), both equal e(g1, g2)^s
	return PairingEqual(hs, c.g2, c.g1, b.Value)
}

// MyIndex returns the replica index this context decrypts for.
func (c *Context) MyIndex() int { return c.myIndex }

// PublicKey returns replica i's PVSS encryption key.
func (c *Context) PublicKey(i int) *G2Point { return c.pubKeys[i] }

// Generator1 returns the G1 commitment base.
func (c *Context) Generator1() *G1Point { return c.g1 }

// Generator2 returns the G2 encryption-key base.
func (c *Context) Generator2() *G2Point { return c.g2 }
