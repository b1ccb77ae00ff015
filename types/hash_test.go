package types

import "testing"

func TestHashObjectDeterministic(t *testing.T) {
	v1 := Vote{Epoch: 9, PropHash: HashBytes([]byte("x")), Type: VoteSync}
	v2 := Vote{Epoch: 9, PropHash: HashBytes([]byte("x")), Type: VoteSync}
	if HashObject(v1) != HashObject(v2) {
		t.Fatal("equal values hashed differently")
	}
	v2.Epoch = 10
	if HashObject(v1) == HashObject(v2) {
		t.Fatal("distinct values collided")
	}
}

func TestHashPairOrderMatters(t *testing.T) {
	a := HashBytes([]byte("left"))
	b := HashBytes([]byte("right"))
	if HashPair(a, b) == HashPair(b, a) {
		t.Fatal("pair hash is symmetric; Merkle positions would be forgeable")
	}
}

func TestBlockHashCachesAndExcludesCache(t *testing.T) {
	b := &Block{Height: 3, ParentHash: HashBytes([]byte("p")), Proposer: 2, Payload: []byte{1}}
	h1 := b.Hash()
	if h1 != b.Hash() {
		t.Fatal("cached hash changed")
	}
	// An identical block built fresh hashes the same even though the
	// first one carries a populated cache field.
	b2 := &Block{Height: 3, ParentHash: HashBytes([]byte("p")), Proposer: 2, Payload: []byte{1}}
	if b2.Hash() != h1 {
		t.Fatal("cache fields leaked into the encoding")
	}
}

func TestThresholds(t *testing.T) {
	cases := []struct {
		n    int
		sync int
		resp int
	}{
		{4, 2, 4},
		{7, 4, 6},
		{9, 5, 7},
	}
	for _, tc := range cases {
		if got := SyncThreshold(tc.n); got != tc.sync {
			t.Fatalf("SyncThreshold(%d) = %d, want %d", tc.n, got, tc.sync)
		}
		if got := RespThreshold(tc.n); got != tc.resp {
			t.Fatalf("RespThreshold(%d) = %d, want %d", tc.n, got, tc.resp)
		}
	}
	v := Vote{Type: VoteResponsive}
	if v.NumSigs(8) != RespThreshold(8) {
		t.Fatal("vote threshold does not follow its type")
	}
}
