package types

import (
	"testing"
)

func TestSyncVoteMsgRoundTrip(t *testing.T) {
	sks, _ := testKeys(t, 4)
	vote := Vote{Epoch: 5, PropHash: HashBytes([]byte("blk")), Type: VoteSync}
	msg := &SyncVoteMsg{Vote: vote, Cert: NewCertificate(vote, 3, sks[3])}

	data, err := EncodeMsg(msg)
	if err != nil {
		t.Fatal(err)
	}
	decoded, err := DecodeMsg(data)
	if err != nil {
		t.Fatal(err)
	}
	got, ok := decoded.(*SyncVoteMsg)
	if !ok {
		t.Fatalf("decoded wrong type %T", decoded)
	}
	if got.Vote != vote || got.Cert.Len() != 1 || got.BufferEpoch() != 5 {
		t.Fatal("sync vote did not survive the round trip")
	}
}

func TestProposeMsgRoundTrip(t *testing.T) {
	sks, _ := testKeys(t, 4)
	builder, err := NewAccumulatorBuilder[DirectProposal](4, 1)
	if err != nil {
		t.Fatal(err)
	}
	block := Block{Height: 1, ParentHash: GenesisBlock().Hash(), Proposer: 0, Payload: []byte{1, 2, 3}}
	prop := DirectProposal{Data: DirectProposalData{
		Epoch:       1,
		HighestVote: GenesisVote(),
		HighestCert: EmptyCertificate[Vote](),
		Block:       block,
	}}
	acc, _, _, err := builder.Build(prop)
	if err != nil {
		t.Fatal(err)
	}
	sign := NewCertificate(SignedAccumulator[DirectProposal]{Epoch: 1, Acc: acc}, 0, sks[0])
	msg := &ProposeMsg{Prop: prop, Proof: Proof[DirectProposal]{Acc: acc, Sign: sign}}

	data, err := EncodeMsg(msg)
	if err != nil {
		t.Fatal(err)
	}
	decoded, err := DecodeMsg(data)
	if err != nil {
		t.Fatal(err)
	}
	got, ok := decoded.(*ProposeMsg)
	if !ok {
		t.Fatalf("decoded wrong type %T", decoded)
	}
	if got.Prop.Data.Block.Height != 1 || !got.Proof.Acc.Equals(acc) {
		t.Fatal("proposal did not survive the round trip")
	}
	if got.Prop.Hash() != prop.Hash() {
		t.Fatal("proposal hash changed across the wire")
	}
	if err := builder.Check(got.Prop, got.Proof.Acc); err != nil {
		t.Fatalf("decoded proposal no longer matches its accumulator: %v", err)
	}
}

func TestDecodeRejectsMalformed(t *testing.T) {
	if _, err := DecodeMsg([]byte{0x01, 0x02}); err == nil {
		t.Fatal("garbage bytes decoded")
	}

	// A sync vote whose certificate is not a single signature fails the
	// structural wire check.
	sks, _ := testKeys(t, 4)
	vote := Vote{Epoch: 2, PropHash: HashBytes([]byte("b")), Type: VoteSync}
	cert := NewCertificate(vote, 0, sks[0])
	other := NewCertificate(vote, 1, sks[1])
	cert.AddSignature(1, other.SigOf(1))
	data, err := EncodeMsg(&SyncVoteMsg{Vote: vote, Cert: cert})
	if err != nil {
		t.Fatal(err)
	}
	if _, err := DecodeMsg(data); err == nil {
		t.Fatal("two-signature vote passed wire validation")
	}

	// Equivocation evidence with identical accumulators is rejected.
	builder, _ := NewAccumulatorBuilder[DirectProposal](4, 1)
	prop := DirectProposal{Data: DirectProposalData{Epoch: 1, Block: Block{Height: 1, Payload: []byte("x")}}}
	acc, _, _, _ := builder.Build(prop)
	sign := NewCertificate(SignedAccumulator[DirectProposal]{Epoch: 1, Acc: acc}, 0, sks[0])
	ev := &EquivocationMsg{Ev: EquivData[DirectProposal]{
		Epoch: 1,
		Acc:   [2]MTAccumulator[DirectProposal]{acc, acc},
		Sign:  [2]Certificate[SignedAccumulator[DirectProposal]]{sign, sign},
	}}
	data, err = EncodeMsg(ev)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := DecodeMsg(data); err == nil {
		t.Fatal("identical-accumulator evidence passed wire validation")
	}
}
