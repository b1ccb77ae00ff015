package consensus

import (
	"testing"
	"time"

	"github.com/libdist-rs/optrand/config"
	"github.com/libdist-rs/optrand/crypto"
	"github.com/libdist-rs/optrand/types"
)

// The deterministic-clock cluster: every replica's state machine, queue,
// and worker run on the test goroutine; the simulated transport delivers
// instantly; time only moves when the test advances it.

type simNode struct {
	node   *config.Node
	sm     *StateMachine
	q      *EventQueue
	worker *Worker
	inbox  []InMsg
}

type cluster struct {
	t       *testing.T
	n       int
	clock   *simClock
	nodes   []*simNode
	crashed map[types.Replica]bool
	// filter drops a message when it returns false; nil passes all.
	filter func(from, to types.Replica, msg types.ProtocolMsg) bool
}

func newCluster(t *testing.T, n, f int, deltaMS uint64) *cluster {
	t.Helper()
	files, err := config.Generate(config.GenParams{
		NumNodes: n, NumFaults: f, DeltaMS: deltaMS, BasePort: 9000, PayloadSize: 32,
	})
	if err != nil {
		t.Fatal(err)
	}
	c := &cluster{t: t, n: n, clock: newSimClock(), crashed: make(map[types.Replica]bool)}
	c.nodes = make([]*simNode, n)
	for i := 0; i < n; i++ {
		node, err := files[i].Init()
		if err != nil {
			t.Fatal(err)
		}
		worker := NewWorker(node.PvssCtx, node.PKMap, node.ID, node.NumFaults)
		sm := NewStateMachine(node, worker)
		sn := &simNode{node: node, sm: sm, worker: worker}
		from := node.ID
		sn.q = NewEventQueue(256, c.clock, func(out OutMsg) { c.route(from, out) })
		sm.AttachQueue(sn.q)
		c.nodes[i] = sn
	}
	return c
}

func (c *cluster) route(from types.Replica, out OutMsg) {
	if c.crashed[from] {
		return
	}
	deliverTo := func(to types.Replica) {
		if c.crashed[to] || to == from {
			return
		}
		if c.filter != nil && !c.filter(from, to, out.Msg) {
			return
		}
		c.nodes[to].inbox = append(c.nodes[to].inbox, InMsg{From: from, Msg: out.Msg})
	}
	if out.Target == Broadcast {
		for i := 0; i < c.n; i++ {
			deliverTo(types.Replica(i))
		}
		return
	}
	deliverTo(out.Target)
}

// pump runs every replica to quiescence at the current instant.
func (c *cluster) pump() {
	for changed := true; changed; {
		changed = false
		for _, nd := range c.nodes {
			if c.crashed[nd.node.ID] {
				continue
			}
			for len(nd.inbox) > 0 {
				in := nd.inbox[0]
				nd.inbox = nd.inbox[1:]
				nd.sm.OnMessage(in.From, in.Msg, nd.q)
				changed = true
			}
			nd.worker.ProcessPending()
			for {
				var res WorkerResult
				select {
				case res = <-nd.worker.Out():
				default:
					res.Kind = 0
				}
				if res.Kind == 0 {
					break
				}
				nd.sm.OnWorkerResult(res, nd.q)
				changed = true
			}
			for {
				ev, ok := nd.q.Poll()
				if !ok {
					break
				}
				nd.sm.HandleEvent(ev, nd.q)
				changed = true
			}
		}
	}
}

// runFor advances simulated time in half-Δ steps, pumping at each step.
func (c *cluster) runFor(d time.Duration, delta time.Duration) {
	c.pump()
	step := delta / 2
	for elapsed := time.Duration(0); elapsed < d; elapsed += step {
		c.clock.Advance(step)
		c.pump()
	}
}

func (c *cluster) bootstrap() {
	c.nodes[0].sm.Bootstrap(c.nodes[0].q)
	c.pump()
}

func TestClusterCommitsAndBeacons(t *testing.T) {
	if testing.Short() {
		t.Skip("pairing-heavy simulation")
	}
	const delta = 10 * time.Millisecond
	c := newCluster(t, 4, 1, 10)
	c.bootstrap()

	// Boot Δ plus two full epochs plus slack.
	c.runFor(delta+2*11*delta+4*delta, delta)

	for _, nd := range c.nodes {
		if got := nd.sm.CurrentEpoch(); got < 2 {
			t.Fatalf("replica %d stuck in epoch %d", nd.node.ID, got)
		}
	}

	// Identical committed chains at heights 1 and 2.
	for h := types.Height(1); h <= 2; h++ {
		ref := c.nodes[0].sm.Storage().CommittedByHeight(h)
		if ref == nil {
			t.Fatalf("replica 0 has no committed block at height %d", h)
		}
		for _, nd := range c.nodes[1:] {
			b := nd.sm.Storage().CommittedByHeight(h)
			if b == nil {
				t.Fatalf("replica %d has no committed block at height %d", nd.node.ID, h)
			}
			if b.Hash() != ref.Hash() {
				t.Fatalf("replica %d disagrees at height %d", nd.node.ID, h)
			}
		}
	}

	// Every replica pinned the same beacon per epoch, and the epochs'
	// beacons are distinct.
	var prev *BeaconOutput
	for e := types.Epoch(1); e <= 2; e++ {
		ref := c.nodes[0].sm.Beacon(e)
		if ref == nil {
			t.Fatalf("replica 0 has no beacon for epoch %d", e)
		}
		for _, nd := range c.nodes[1:] {
			b := nd.sm.Beacon(e)
			if b == nil {
				t.Fatalf("replica %d has no beacon for epoch %d", nd.node.ID, e)
			}
			if !crypto.G2Equal(b.Beacon.Value, ref.Beacon.Value) {
				t.Fatalf("replica %d disagrees on the epoch-%d beacon", nd.node.ID, e)
			}
		}
		if prev != nil && crypto.G2Equal(prev.Beacon.Value, ref.Beacon.Value) {
			t.Fatal("consecutive epochs produced identical beacons")
		}
		prev = ref
	}
}

func TestCrashedLeaderIsRemoved(t *testing.T) {
	if testing.Short() {
		t.Skip("pairing-heavy simulation")
	}
	const delta = 10 * time.Millisecond
	c := newCluster(t, 4, 1, 10)
	// Replica 1 leads epoch 2 and is dead from the start.
	c.crashed[1] = true
	c.bootstrap()

	// Run through epoch 3's entry, where the accountability rule for
	// epoch 2 fires.
	c.runFor(delta+3*11*delta+4*delta, delta)

	for _, nd := range c.nodes {
		if c.crashed[nd.node.ID] {
			continue
		}
		if nd.sm.Leaders().Qualified(1) {
			t.Fatalf("replica %d still considers the crashed leader qualified", nd.node.ID)
		}
		// Epoch 1's block committed despite the later crash.
		if nd.sm.Storage().CommittedByHeight(1) == nil {
			t.Fatalf("replica %d never committed height 1", nd.node.ID)
		}
	}
}

func TestProposalDeliveredViaShards(t *testing.T) {
	if testing.Short() {
		t.Skip("pairing-heavy simulation")
	}
	const delta = 10 * time.Millisecond
	c := newCluster(t, 4, 1, 10)
	// Replica 3 never receives direct proposals; it must reconstruct
	// from f+1 = 2 deliver shards.
	c.filter = func(from, to types.Replica, msg types.ProtocolMsg) bool {
		if to == 3 {
			if _, isProp := msg.(*types.ProposeMsg); isProp {
				return false
			}
		}
		return true
	}
	c.bootstrap()
	c.runFor(delta+11*delta+4*delta, delta)

	b := c.nodes[3].sm.Storage().CommittedByHeight(1)
	if b == nil {
		t.Fatal("replica 3 never committed the reconstructed proposal")
	}
	ref := c.nodes[0].sm.Storage().CommittedByHeight(1)
	if ref == nil || b.Hash() != ref.Hash() {
		t.Fatal("reconstructed commit differs from the direct one")
	}
}

func TestEquivocationDisablesEpoch(t *testing.T) {
	if testing.Short() {
		t.Skip("pairing-heavy simulation")
	}
	const delta = 10 * time.Millisecond
	c := newCluster(t, 4, 1, 10)
	leaderNode := c.nodes[0].node
	follower := c.nodes[2]

	// Enter epoch 1 on the follower only.
	follower.q.AddTimeout(TimeoutEvent{Kind: EpochTimeout, Epoch: 0}, 0, 0)
	c.pump()
	if follower.sm.CurrentEpoch() != 1 {
		t.Fatalf("follower in epoch %d, want 1", follower.sm.CurrentEpoch())
	}

	// Build a valid aggregate with its decomposition proof.
	pvecs := []*crypto.PVSSVec{
		c.nodes[0].node.PvssCtx.GenerateShares(crypto.SystemRand),
		c.nodes[1].node.PvssCtx.GenerateShares(crypto.SystemRand),
	}
	agg, decomp := leaderNode.PvssCtx.Aggregate([]int{0, 1}, pvecs)

	makePropose := func(payload byte) *types.ProposeMsg {
		genesis := types.GenesisBlock()
		prop := types.DirectProposal{Data: types.DirectProposalData{
			Epoch:       1,
			HighestVote: types.GenesisVote(),
			HighestCert: types.EmptyCertificate[types.Vote](),
			Block: types.Block{
				Height:     1,
				ParentHash: genesis.Hash(),
				Proposer:   0,
				AggPVSS:    agg,
				AggProof:   decomp,
				Payload:    []byte{payload},
			},
		}}
		builder, err := types.NewAccumulatorBuilder[types.DirectProposal](4, 1)
		if err != nil {
			t.Fatal(err)
		}
		acc, _, _, err := builder.Build(prop)
		if err != nil {
			t.Fatal(err)
		}
		sign := types.NewCertificate(
			types.SignedAccumulator[types.DirectProposal]{Epoch: 1, Acc: acc},
			0, leaderNode.SecretKey)
		return &types.ProposeMsg{Prop: prop, Proof: types.Proof[types.DirectProposal]{Acc: acc, Sign: sign}}
	}

	follower.sm.OnMessage(0, makePropose(1), follower.q)
	c.pump()
	// The equivocating second proposal flips the epoch.
	follower.sm.OnMessage(0, makePropose(2), follower.q)
	c.pump()

	if !follower.sm.Storage().IsEquivocated(1) {
		t.Fatal("second conflicting proposal did not mark the epoch")
	}

	// Run out the epoch: no commit may happen.
	c.runFor(11*delta, delta)
	if follower.sm.Storage().CommittedByHeight(1) != nil {
		t.Fatal("equivocated epoch still committed a block")
	}
}
