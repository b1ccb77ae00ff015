package net

import (
	"crypto/ed25519"
	"testing"
	"time"

	"github.com/libdist-rs/optrand/config"
	"github.com/libdist-rs/optrand/consensus"
	"github.com/libdist-rs/optrand/types"
)

func plainNode(t *testing.T, id types.Replica, addrs map[types.Replica]string) *config.Node {
	t.Helper()
	seed := make([]byte, ed25519.SeedSize)
	seed[0] = byte(id + 1)
	return &config.Node{
		ID:        id,
		NumNodes:  len(addrs),
		NetMap:    addrs,
		SecretKey: ed25519.NewKeyFromSeed(seed),
	}
}

func waitMsg(t *testing.T, ch <-chan consensus.InMsg) consensus.InMsg {
	t.Helper()
	select {
	case m := <-ch:
		return m
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for a message")
		return consensus.InMsg{}
	}
}

func TestTransportExchange(t *testing.T) {
	addrs := map[types.Replica]string{
		0: "127.0.0.1:19731",
		1: "127.0.0.1:19732",
	}
	t0, err := New(plainNode(t, 0, addrs))
	if err != nil {
		t.Fatal(err)
	}
	t1, err := New(plainNode(t, 1, addrs))
	if err != nil {
		t.Fatal(err)
	}
	if err := t0.Start(); err != nil {
		t.Fatal(err)
	}
	defer t0.Stop()
	if err := t1.Start(); err != nil {
		t.Fatal(err)
	}
	defer t1.Stop()

	vote := types.Vote{Epoch: 4, PropHash: types.HashBytes([]byte("b")), Type: types.VoteSync}
	seed := make([]byte, ed25519.SeedSize)
	cert := types.NewCertificate(vote, 0, ed25519.NewKeyFromSeed(seed))

	t0.Send(1, &types.SyncVoteMsg{Vote: vote, Cert: cert})
	got := waitMsg(t, t1.Recv())
	if got.From != 0 {
		t.Fatalf("message attributed to %d, want 0", got.From)
	}
	sv, ok := got.Msg.(*types.SyncVoteMsg)
	if !ok {
		t.Fatalf("wrong message type %T", got.Msg)
	}
	if sv.Vote != vote {
		t.Fatal("vote mangled in transit")
	}

	// The reply reuses the reverse direction.
	t1.Send(0, &types.SyncMsg{})
	got = waitMsg(t, t0.Recv())
	if got.From != 1 || got.Msg.Kind() != types.KindSync {
		t.Fatal("reply not delivered")
	}

	// Broadcast excludes the sender.
	t0.Send(consensus.Broadcast, &types.SyncMsg{})
	got = waitMsg(t, t1.Recv())
	if got.Msg.Kind() != types.KindSync {
		t.Fatal("broadcast not delivered")
	}
}

func TestTransportLoopback(t *testing.T) {
	addrs := map[types.Replica]string{0: "127.0.0.1:19741"}
	tr, err := New(plainNode(t, 0, addrs))
	if err != nil {
		t.Fatal(err)
	}
	if err := tr.Start(); err != nil {
		t.Fatal(err)
	}
	defer tr.Stop()

	tr.Send(0, &types.SyncMsg{})
	got := waitMsg(t, tr.Recv())
	if got.From != 0 || got.Msg.Kind() != types.KindSync {
		t.Fatal("self-send not delivered locally")
	}
}
