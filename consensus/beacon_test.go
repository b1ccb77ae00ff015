package consensus

import (
	"testing"

	"github.com/libdist-rs/optrand/config"
	"github.com/libdist-rs/optrand/crypto"
	"github.com/libdist-rs/optrand/types"
)

func beaconFixture(t *testing.T) ([]*config.Node, *crypto.AggregatePVSS) {
	t.Helper()
	files, err := config.Generate(config.GenParams{NumNodes: 4, NumFaults: 1, DeltaMS: 10, BasePort: 9100})
	if err != nil {
		t.Fatal(err)
	}
	nodes := make([]*config.Node, 4)
	for i := range nodes {
		if nodes[i], err = files[i].Init(); err != nil {
			t.Fatal(err)
		}
	}
	pvecs := []*crypto.PVSSVec{
		nodes[0].PvssCtx.GenerateShares(crypto.SystemRand),
		nodes[1].PvssCtx.GenerateShares(crypto.SystemRand),
	}
	agg, _ := nodes[0].PvssCtx.Aggregate([]int{0, 1}, pvecs)
	return nodes, agg
}

func TestBeaconContextReconstructs(t *testing.T) {
	if testing.Short() {
		t.Skip("pairing-heavy")
	}
	nodes, agg := beaconFixture(t)
	observer := nodes[3]
	bc := NewBeaconContext()
	bc.AddEpochPVSS(5, agg, 4)

	for i := 0; i < 2; i++ {
		dec := nodes[i].PvssCtx.DecryptShare(agg.Encs[i], crypto.SystemRand)
		out, err := bc.AddShare(observer.PvssCtx, observer.ID, observer.PKMap, 5, types.Replica(i), dec, 1)
		if err != nil {
			t.Fatal(err)
		}
		if i == 0 && out != nil {
			t.Fatal("beacon reconstructed from a single share")
		}
		if i == 1 {
			if out == nil {
				t.Fatal("beacon missing after f+1 shares")
			}
			if !observer.PvssCtx.CheckBeacon(out.Beacon, agg.Comms) {
				t.Fatal("reconstructed beacon fails its own check")
			}
			if out.Rand == nil || out.Rand.IsZero() {
				t.Fatal("application value not derived")
			}
		}
	}
	if bc.Beacon(5) == nil {
		t.Fatal("beacon not pinned")
	}

	// Further shares for a finished epoch are ignored.
	dec := nodes[2].PvssCtx.DecryptShare(agg.Encs[2], crypto.SystemRand)
	if out, err := bc.AddShare(observer.PvssCtx, observer.ID, observer.PKMap, 5, 2, dec, 1); err != nil || out != nil {
		t.Fatalf("late share changed a pinned beacon: %v %v", out, err)
	}
}

func TestBeaconContextBuffersEarlyShares(t *testing.T) {
	if testing.Short() {
		t.Skip("pairing-heavy")
	}
	nodes, agg := beaconFixture(t)
	observer := nodes[2]
	bc := NewBeaconContext()

	// Shares arrive before the epoch's aggregate is known.
	for i := 0; i < 2; i++ {
		dec := nodes[i].PvssCtx.DecryptShare(agg.Encs[i], crypto.SystemRand)
		out, err := bc.AddShare(observer.PvssCtx, observer.ID, observer.PKMap, 9, types.Replica(i), dec, 1)
		if err != nil || out != nil {
			t.Fatalf("early share was not buffered: %v %v", out, err)
		}
	}

	// Registering the aggregate alone does not reconstruct; the next
	// share drains the buffer and completes.
	bc.AddEpochPVSS(9, agg, 4)
	dec := nodes[3].PvssCtx.DecryptShare(agg.Encs[3], crypto.SystemRand)
	out, err := bc.AddShare(observer.PvssCtx, observer.ID, observer.PKMap, 9, 3, dec, 1)
	if err != nil {
		t.Fatal(err)
	}
	if out == nil {
		t.Fatal("buffered shares were not drained into reconstruction")
	}
}

func TestBeaconContextRejectsBadShare(t *testing.T) {
	if testing.Short() {
		t.Skip("pairing-heavy")
	}
	nodes, agg := beaconFixture(t)
	observer := nodes[1]
	bc := NewBeaconContext()
	bc.AddEpochPVSS(2, agg, 4)

	dec := nodes[0].PvssCtx.DecryptShare(agg.Encs[0], crypto.SystemRand)
	dec.Dec = crypto.G2Add(dec.Dec, crypto.G2Generator())
	out, err := bc.AddShare(observer.PvssCtx, observer.ID, observer.PKMap, 2, 0, dec, 1)
	if err != nil || out != nil {
		t.Fatal("tampered share was accepted")
	}
	if bc.numVerified[2] != 0 {
		t.Fatal("tampered share counted as verified")
	}
}
