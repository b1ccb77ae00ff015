package types

import (
	"testing"

	"github.com/ethereum/go-ethereum/rlp"
)

func twoAccs(t *testing.T) (MTAccumulator[DirectProposal], MTAccumulator[DirectProposal], *AccumulatorBuilder[DirectProposal]) {
	t.Helper()
	b, err := NewAccumulatorBuilder[DirectProposal](4, 1)
	if err != nil {
		t.Fatal(err)
	}
	p1 := DirectProposal{Data: DirectProposalData{Epoch: 2, Block: Block{Height: 1, Payload: []byte("a")}}}
	p2 := DirectProposal{Data: DirectProposalData{Epoch: 2, Block: Block{Height: 1, Payload: []byte("b")}}}
	a1, _, _, err := b.Build(p1)
	if err != nil {
		t.Fatal(err)
	}
	a2, _, _, err := b.Build(p2)
	if err != nil {
		t.Fatal(err)
	}
	return a1, a2, b
}

func TestEquivDataValidity(t *testing.T) {
	sks, pks := testKeys(t, 4)
	a1, a2, _ := twoAccs(t)
	leader := Replica(0)

	sign := func(acc MTAccumulator[DirectProposal], by Replica) Certificate[SignedAccumulator[DirectProposal]] {
		return NewCertificate(SignedAccumulator[DirectProposal]{Epoch: 2, Acc: acc}, by, sks[by])
	}

	ev := EquivData[DirectProposal]{
		Epoch: 2,
		Acc:   [2]MTAccumulator[DirectProposal]{a1, a2},
		Sign:  [2]Certificate[SignedAccumulator[DirectProposal]]{sign(a1, leader), sign(a2, leader)},
	}
	if err := ev.IsValid(leader, pks); err != nil {
		t.Fatalf("genuine evidence rejected: %v", err)
	}

	// The accused must have signed both accumulators.
	forged := ev
	forged.Sign[1] = sign(a2, 1)
	if err := forged.IsValid(leader, pks); err == nil {
		t.Fatal("evidence signed by a non-leader accepted")
	}

	// Identical accumulators are no conflict.
	same := ev
	same.Acc[1] = a1
	same.Sign[1] = ev.Sign[0]
	if err := same.IsValid(leader, pks); err == nil {
		t.Fatal("identical accumulators accepted as evidence")
	}

	// A signature over a different epoch must not transplant.
	wrongEpoch := ev
	wrongEpoch.Sign[1] = NewCertificate(SignedAccumulator[DirectProposal]{Epoch: 3, Acc: a2}, leader, sks[leader])
	if err := wrongEpoch.IsValid(leader, pks); err == nil {
		t.Fatal("cross-epoch signature accepted")
	}
}

func TestDeliverDataRoundTrip(t *testing.T) {
	sks, _ := testKeys(t, 4)
	b, err := NewAccumulatorBuilder[DirectProposal](4, 1)
	if err != nil {
		t.Fatal(err)
	}
	prop := DirectProposal{Data: DirectProposalData{Epoch: 1, Block: Block{Height: 1, Payload: []byte("body")}}}
	acc, codes, wits, err := b.Build(prop)
	if err != nil {
		t.Fatal(err)
	}
	sign := NewCertificate(SignedAccumulator[DirectProposal]{Epoch: 1, Acc: acc}, 0, sks[0])

	msg := &DeliverProposeMsg{
		Epoch: 1, ShFor: 2,
		Data: DeliverData[DirectProposal]{Acc: acc, Sign: sign, Shard: codes[2], Wit: wits[2]},
	}
	data, err := EncodeMsg(msg)
	if err != nil {
		t.Fatal(err)
	}
	decoded, err := DecodeMsg(data)
	if err != nil {
		t.Fatal(err)
	}
	got := decoded.(*DeliverProposeMsg)
	if got.ShFor != 2 || !got.Data.Acc.Equals(acc) {
		t.Fatal("deliver data mangled")
	}
	if err := b.VerifyWitness(got.Data.Acc, &got.Data.Wit, &got.Data.Shard, got.ShFor); err != nil {
		t.Fatalf("witness no longer verifies after the round trip: %v", err)
	}
}

func TestProposalHashStableUnderRLP(t *testing.T) {
	prop := &SyncCertProposal{Data: SyncCertData{
		Vote: Vote{Epoch: 4, PropHash: HashBytes([]byte("p")), Type: VoteSync},
	}}
	h := prop.Hash()

	data, err := rlp.EncodeToBytes(prop)
	if err != nil {
		t.Fatal(err)
	}
	decoded := new(SyncCertProposal)
	if err := rlp.DecodeBytes(data, decoded); err != nil {
		t.Fatal(err)
	}
	if decoded.Hash() != h {
		t.Fatal("proposal hash changed across serialization")
	}
}
