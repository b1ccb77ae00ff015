package consensus

import (
	"testing"

	"github.com/libdist-rs/optrand/config"
	"github.com/libdist-rs/optrand/crypto"
)

func workerNodes(t *testing.T, basePort int) []*config.Node {
	t.Helper()
	files, err := config.Generate(config.GenParams{NumNodes: 4, NumFaults: 1, DeltaMS: 10, BasePort: basePort})
	if err != nil {
		t.Fatal(err)
	}
	nodes := make([]*config.Node, 4)
	for i := range nodes {
		if nodes[i], err = files[i].Init(); err != nil {
			t.Fatal(err)
		}
	}
	return nodes
}

func noResult(t *testing.T, w *Worker, why string) {
	t.Helper()
	select {
	case <-w.Out():
		t.Fatal(why)
	default:
	}
}

func TestWorkerAggregatesAtThreshold(t *testing.T) {
	if testing.Short() {
		t.Skip("pairing-heavy")
	}
	nodes := workerNodes(t, 9200)
	leader := nodes[0]
	w := NewWorker(leader.PvssCtx, leader.PKMap, leader.ID, leader.NumFaults)

	// One contribution is below f+1; no output yet.
	w.SubmitContribution(0, 1, leader.PvssCtx.GenerateShares(crypto.SystemRand))
	w.ProcessPending()
	noResult(t, w, "worker aggregated below threshold")

	// A garbage contribution is rejected and does not count.
	bad := nodes[1].PvssCtx.GenerateShares(crypto.SystemRand)
	bad.Gs = crypto.G1Add(bad.Gs, crypto.G1Generator())
	w.SubmitContribution(1, 1, bad)
	w.ProcessPending()
	noResult(t, w, "invalid contribution triggered aggregation")

	// A valid second dealer completes the aggregate.
	w.SubmitContribution(2, 1, nodes[2].PvssCtx.GenerateShares(crypto.SystemRand))
	w.ProcessPending()
	var res WorkerResult
	select {
	case res = <-w.Out():
	default:
		t.Fatal("no aggregate after f+1 valid contributions")
	}
	if res.Kind != AggregateReady || res.Agg == nil || res.Decomp == nil {
		t.Fatalf("unexpected result %+v", res)
	}
	if res.Epoch != 1 {
		t.Fatalf("aggregate tagged epoch %d, want 1", res.Epoch)
	}
	if len(res.Decomp.Indices) != 2 {
		t.Fatalf("aggregate built from %d contributions", len(res.Decomp.Indices))
	}

	// The published aggregate verifies at another replica's worker.
	w2 := NewWorker(nodes[3].PvssCtx, nodes[3].PKMap, nodes[3].ID, nodes[3].NumFaults)
	w2.SubmitAggregate(0, res.Agg, res.Decomp)
	w2.ProcessPending()
	select {
	case res2 := <-w2.Out():
		if res2.Kind != VerifiedAggregate {
			t.Fatalf("unexpected result kind %v", res2.Kind)
		}
	default:
		t.Fatal("foreign aggregate did not verify")
	}

	// A tampered aggregate is dropped silently.
	forged := &crypto.AggregatePVSS{
		Encs:  append([]*crypto.G2Point(nil), res.Agg.Encs...),
		Comms: append([]*crypto.G1Point(nil), res.Agg.Comms...),
	}
	forged.Comms[0] = crypto.G1Add(forged.Comms[0], crypto.G1Generator())
	w2.SubmitAggregate(0, forged, res.Decomp)
	w2.ProcessPending()
	noResult(t, w2, "tampered aggregate verified")
}

func TestWorkerBufferScopedToEpoch(t *testing.T) {
	if testing.Short() {
		t.Skip("pairing-heavy")
	}
	nodes := workerNodes(t, 9300)
	leader := nodes[0]
	w := NewWorker(leader.PvssCtx, leader.PKMap, leader.ID, leader.NumFaults)

	// A term that ends with fewer than f+1 contributions leaves a
	// half-filled buffer behind.
	w.SubmitContribution(0, 1, leader.PvssCtx.GenerateShares(crypto.SystemRand))
	w.ProcessPending()
	noResult(t, w, "aggregated below threshold")

	// Epoch transitions discard it.
	w.AdvanceEpoch(2)
	w.ProcessPending()

	// Our fresh epoch-2 sharing must count again; with stale bufSeen it
	// would be dropped as a duplicate and the second dealer alone could
	// never reach the threshold.
	w.SubmitContribution(0, 2, leader.PvssCtx.GenerateShares(crypto.SystemRand))
	w.SubmitContribution(3, 2, nodes[3].PvssCtx.GenerateShares(crypto.SystemRand))
	w.ProcessPending()

	var res WorkerResult
	select {
	case res = <-w.Out():
	default:
		t.Fatal("fresh epoch's contributions did not aggregate")
	}
	if res.Epoch != 2 {
		t.Fatalf("aggregate tagged epoch %d, want 2", res.Epoch)
	}
	for _, idx := range res.Decomp.Indices {
		if idx != 0 && idx != 3 {
			t.Fatalf("aggregate mixed in a stale epoch-1 contribution from %d", idx)
		}
	}
}

func TestWorkerDropsPastEpochContribution(t *testing.T) {
	if testing.Short() {
		t.Skip("pairing-heavy")
	}
	nodes := workerNodes(t, 9400)
	leader := nodes[0]
	w := NewWorker(leader.PvssCtx, leader.PKMap, leader.ID, leader.NumFaults)

	w.AdvanceEpoch(5)
	w.ProcessPending()

	// A straggler from an earlier epoch must not enter the buffer.
	w.SubmitContribution(1, 3, nodes[1].PvssCtx.GenerateShares(crypto.SystemRand))
	w.SubmitContribution(0, 5, leader.PvssCtx.GenerateShares(crypto.SystemRand))
	w.ProcessPending()
	noResult(t, w, "stale contribution counted toward the threshold")
}
