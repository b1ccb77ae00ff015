package crypto

import (
	"crypto/ed25519"
	"encoding/binary"
	"testing"
)

// testRNG is a deterministic splitmix64 stream so the tests never depend
// on the platform RNG.
type testRNG struct {
	state uint64
}

func (r *testRNG) Read(p []byte) (int, error) {
	for i := 0; i < len(p); i += 8 {
		r.state += 0x9e3779b97f4a7c15
		z := r.state
		z = (z ^ (z >> 30)) * 0xbf58476d1ce4e5b9
		z = (z ^ (z >> 27)) * 0x94d049bb133111eb
		z ^= z >> 31
		var buf [8]byte
		binary.LittleEndian.PutUint64(buf[:], z)
		copy(p[i:], buf[:])
	}
	return len(p), nil
}

type fixture struct {
	n, f     int
	contexts []*Context
	signPKs  []ed25519.PublicKey
	secrets  []*Scalar
}

func newFixture(tb testing.TB, n, f int, seed uint64) *fixture {
	tb.Helper()
	rng := &testRNG{state: seed}

	secrets := make([]*Scalar, n)
	pubs := make([]*G2Point, n)
	g2 := G2Generator()
	for i := 0; i < n; i++ {
		secrets[i] = RandomScalar(rng)
		pubs[i] = G2ScalarMul(g2, secrets[i])
	}

	signSKs := make([]ed25519.PrivateKey, n)
	signPKs := make([]ed25519.PublicKey, n)
	for i := 0; i < n; i++ {
		seedBytes := make([]byte, ed25519.SeedSize)
		rng.Read(seedBytes)
		signSKs[i] = ed25519.NewKeyFromSeed(seedBytes)
		signPKs[i] = signSKs[i].Public().(ed25519.PublicKey)
	}

	contexts := make([]*Context, n)
	for i := 0; i < n; i++ {
		contexts[i] = NewContext(n, f, i, pubs, secrets[i], Ed25519Signer{Key: signSKs[i]}, rng)
	}
	return &fixture{n: n, f: f, contexts: contexts, signPKs: signPKs, secrets: secrets}
}

func TestSharingVerifies(t *testing.T) {
	fx := newFixture(t, 4, 1, 1)
	rng := &testRNG{state: 99}
	for dealer := 0; dealer < fx.n; dealer++ {
		pvec := fx.contexts[dealer].GenerateShares(rng)
		for verifier := 0; verifier < fx.n; verifier++ {
			if err := fx.contexts[verifier].VerifySharing(pvec, fx.signPKs[dealer]); err != nil {
				t.Fatalf("dealer %d sharing rejected at replica %d: %v", dealer, verifier, err)
			}
		}
	}
}

func TestSharingTamperDetected(t *testing.T) {
	fx := newFixture(t, 4, 1, 2)
	rng := &testRNG{state: 7}
	verifier := fx.contexts[1]

	cases := []struct {
		name   string
		mutate func(v *PVSSVec)
	}{
		{"comms", func(v *PVSSVec) { v.Comms[0] = G1Add(v.Comms[0], G1Generator()) }},
		{"encs", func(v *PVSSVec) { v.Encs[2] = G2Add(v.Encs[2], G2Generator()) }},
		{"gs", func(v *PVSSVec) { v.Gs = G1Add(v.Gs, G1Generator()) }},
		{"dleq scalar", func(v *PVSSVec) { v.Proofs[1].R = v.Proofs[1].R.Add(ScalarOne()) }},
		{"sok scalar", func(v *PVSSVec) { v.Sok.R = v.Sok.R.Add(ScalarOne()) }},
	}
	for _, tc := range cases {
		pvec := fx.contexts[0].GenerateShares(rng)
		tc.mutate(pvec)
		if err := verifier.VerifySharing(pvec, fx.signPKs[0]); err == nil {
			t.Fatalf("mutated %s still verified", tc.name)
		}
	}
}

func TestAggregateVerifies(t *testing.T) {
	fx := newFixture(t, 4, 1, 3)
	rng := &testRNG{state: 11}

	indices := []int{0, 2}
	pvecs := []*PVSSVec{
		fx.contexts[0].GenerateShares(rng),
		fx.contexts[2].GenerateShares(rng),
	}
	agg, decomp := fx.contexts[0].Aggregate(indices, pvecs)

	pkMap := map[int]ed25519.PublicKey{}
	for i, pk := range fx.signPKs {
		pkMap[i] = pk
	}
	for i := 0; i < fx.n; i++ {
		if err := fx.contexts[i].PVerify(agg); err != nil {
			t.Fatalf("pverify failed at replica %d: %v", i, err)
		}
		if err := fx.contexts[i].DecompVerify(agg, decomp, pkMap); err != nil {
			t.Fatalf("decomp verify failed at replica %d: %v", i, err)
		}
	}

	// A doctored aggregate must not pass.
	bad := &AggregatePVSS{Encs: append([]*G2Point(nil), agg.Encs...), Comms: append([]*G1Point(nil), agg.Comms...)}
	bad.Comms[1] = G1Add(bad.Comms[1], G1Generator())
	if err := fx.contexts[1].PVerify(bad); err == nil {
		t.Fatal("tampered aggregate passed pverify")
	}
}

func TestBeaconDeterministicAcrossSubsets(t *testing.T) {
	fx := newFixture(t, 4, 1, 4)
	rng := &testRNG{state: 13}

	indices := []int{1, 3}
	pvecs := []*PVSSVec{
		fx.contexts[1].GenerateShares(rng),
		fx.contexts[3].GenerateShares(rng),
	}
	agg, _ := fx.contexts[0].Aggregate(indices, pvecs)

	decs := make([]*Decryption, fx.n)
	for i := 0; i < fx.n; i++ {
		decs[i] = fx.contexts[i].DecryptShare(agg.Encs[i], rng)
		for j := 0; j < fx.n; j++ {
			if j == i {
				continue
			}
			if err := fx.contexts[j].VerifyShare(i, agg.Encs[i], decs[i], fx.signPKs[i]); err != nil {
				t.Fatalf("replica %d rejected share from %d: %v", j, i, err)
			}
		}
	}

	subset := func(idx ...int) []*G2Point {
		shares := make([]*G2Point, fx.n)
		for _, i := range idx {
			shares[i] = decs[i].Dec
		}
		return shares
	}
	b1 := fx.contexts[0].Reconstruct(subset(0, 1))
	b2 := fx.contexts[1].Reconstruct(subset(2, 3))
	b3 := fx.contexts[2].Reconstruct(subset(1, 3))
	if b1 == nil || b2 == nil || b3 == nil {
		t.Fatal("reconstruction failed")
	}
	if !G2Equal(b1.Value, b2.Value) || !G2Equal(b2.Value, b3.Value) {
		t.Fatal("different share subsets reconstructed different beacons")
	}
	if !b1.Paired.Equal(b2.Paired) {
		t.Fatal("paired values differ")
	}

	for i := 0; i < fx.n; i++ {
		if !fx.contexts[i].CheckBeacon(b1, agg.Comms) {
			t.Fatalf("beacon check failed at replica %d", i)
		}
	}
	forged := &Beacon{Value: G2Add(b1.Value, G2Generator()), Paired: b1.Paired}
	if fx.contexts[0].CheckBeacon(forged, agg.Comms) {
		t.Fatal("forged beacon accepted")
	}
}

func TestDecryptionTamperDetected(t *testing.T) {
	fx := newFixture(t, 4, 1, 5)
	rng := &testRNG{state: 17}

	pvecs := []*PVSSVec{
		fx.contexts[0].GenerateShares(rng),
		fx.contexts[1].GenerateShares(rng),
	}
	agg, _ := fx.contexts[0].Aggregate([]int{0, 1}, pvecs)

	dec := fx.contexts[2].DecryptShare(agg.Encs[2], rng)
	dec.Dec = G2Add(dec.Dec, G2Generator())
	if err := fx.contexts[0].VerifyShare(2, agg.Encs[2], dec, fx.signPKs[2]); err == nil {
		t.Fatal("tampered decryption accepted")
	}
}

func TestPairingBilinear(t *testing.T) {
	rng := &testRNG{state: 23}
	a := RandomScalar(rng)
	b := RandomScalar(rng)
	g1 := G1Generator()
	g2 := G2Generator()

	// e([a]g1, [b]g2) == e([ab]g1, g2)
	if !PairingEqual(G1ScalarMul(g1, a), G2ScalarMul(g2, b), G1ScalarMul(g1, a.Mul(b)), g2) {
		t.Fatal("pairing is not bilinear")
	}
	if PairingEqual(G1ScalarMul(g1, a), g2, G1ScalarMul(g1, b), g2) {
		t.Fatal("distinct exponents compared equal")
	}
	// Direct target-group computation agrees with the product check.
	lhs := Pairing(G1ScalarMul(g1, a), g2)
	rhs := Pairing(g1, G2ScalarMul(g2, a))
	if !lhs.Equal(rhs) {
		t.Fatal("GT elements disagree")
	}
}

func BenchmarkGenerateShares(b *testing.B) {
	fx := newFixture(b, 4, 1, 51)
	rng := &testRNG{state: 61}
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		fx.contexts[0].GenerateShares(rng)
	}
}

func BenchmarkVerifySharing(b *testing.B) {
	fx := newFixture(b, 4, 1, 52)
	rng := &testRNG{state: 62}
	pvec := fx.contexts[0].GenerateShares(rng)
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if err := fx.contexts[1].VerifySharing(pvec, fx.signPKs[0]); err != nil {
			b.Fatal(err)
		}
	}
}

func BenchmarkPairing(b *testing.B) {
	g1 := G1Generator()
	g2 := G2Generator()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		Pairing(g1, g2)
	}
}
