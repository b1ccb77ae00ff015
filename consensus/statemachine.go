package consensus

import (
	"crypto/ed25519"
	"time"

	"github.com/libdist-rs/optrand/config"
	"github.com/libdist-rs/optrand/crypto"
	"github.com/libdist-rs/optrand/types"
)

// aggEntry is an aggregate the local worker produced, queued until this
// replica leads and proposes it.
type aggEntry struct {
	agg    *crypto.AggregatePVSS
	decomp *crypto.DecompositionProof
}

// StateMachine is the per-replica epoch machine. All of its state is
// owned by the single reactor task; handlers never block.
type StateMachine struct {
	cfg *config.Node
	sk  ed25519.PrivateKey
	pks types.PKMap

	epoch types.Epoch
	rnd   *RoundContext

	highestCert  types.Certificate[types.Vote]
	highestBlock *types.Block
	highestVote  types.Vote

	storage   *Storage
	beaconCtx *BeaconContext
	leaderCtx *LeaderContext

	propAcc     *types.AccumulatorBuilder[types.DirectProposal]
	syncCertAcc *types.AccumulatorBuilder[types.SyncCertProposal]
	respCertAcc *types.AccumulatorBuilder[types.RespCertProposal]

	worker *Worker

	// verifiedAggs is the pool of aggregates whose decomposition proofs
	// the worker has checked, keyed by content hash; proposals are only
	// admitted for pooled (or inline-verified) aggregates.
	verifiedAggs map[types.Hash]*crypto.AggregatePVSS
	// leaderQueue holds locally aggregated sharings awaiting our turn to
	// propose.
	leaderQueue []aggEntry

	// futureMsgs buffers messages for epochs we have not entered.
	futureMsgs map[types.Epoch][]MessageEvent

	// queue is attached once by the reactor so verification paths can
	// publish evidence without threading the queue everywhere.
	queue *EventQueue

	rng crypto.RandReader
}

// AttachQueue binds the event queue the reactor drives this machine with.
func (s *StateMachine) AttachQueue(q *EventQueue) { s.queue = q }

// NewStateMachine wires a state machine from its config and worker.
func NewStateMachine(cfg *config.Node, worker *Worker) *StateMachine {
	genesis := types.GenesisBlock()
	storage := NewStorage(cfg.NumNodes, cfg.RandBeaconQueue)
	storage.AddDeliveredBlock(genesis)
	if err := storage.CommitBlock(genesis); err != nil {
		panic("consensus: cannot commit genesis: " + err.Error())
	}

	propAcc, err := types.NewAccumulatorBuilder[types.DirectProposal](cfg.NumNodes, cfg.NumFaults)
	if err != nil {
		panic("consensus: " + err.Error())
	}
	syncCertAcc, err := types.NewAccumulatorBuilder[types.SyncCertProposal](cfg.NumNodes, cfg.NumFaults)
	if err != nil {
		panic("consensus: " + err.Error())
	}
	respCertAcc, err := types.NewAccumulatorBuilder[types.RespCertProposal](cfg.NumNodes, cfg.NumFaults)
	if err != nil {
		panic("consensus: " + err.Error())
	}

	return &StateMachine{
		cfg:          cfg,
		sk:           cfg.SecretKey,
		pks:          cfg.PKMap,
		epoch:        0,
		rnd:          NewRoundContext(cfg.NumNodes),
		highestCert:  types.EmptyCertificate[types.Vote](),
		highestBlock: genesis,
		highestVote:  types.GenesisVote(),
		storage:      storage,
		beaconCtx:    NewBeaconContext(),
		leaderCtx:    NewLeaderContext(cfg.NumNodes),
		propAcc:      propAcc,
		syncCertAcc:  syncCertAcc,
		respCertAcc:  respCertAcc,
		worker:       worker,
		verifiedAggs: make(map[types.Hash]*crypto.AggregatePVSS),
		futureMsgs:   make(map[types.Epoch][]MessageEvent),
		rng:          crypto.SystemRand,
	}
}

// CurrentEpoch returns the epoch this replica is in.
func (s *StateMachine) CurrentEpoch() types.Epoch { return s.epoch }

// Storage exposes the block/certificate bank, for the driver's state
// snapshots and the tests.
func (s *StateMachine) Storage() *Storage { return s.storage }

// Beacon returns the pinned beacon for an epoch, if reconstructed.
func (s *StateMachine) Beacon(e types.Epoch) *BeaconOutput { return s.beaconCtx.Beacon(e) }

// Leaders exposes the rotation, for tests and snapshots.
func (s *StateMachine) Leaders() *LeaderContext { return s.leaderCtx }

// xDelta returns times * Δ.
func (s *StateMachine) xDelta(times int) time.Duration {
	return time.Duration(times) * s.cfg.Delta
}

func (s *StateMachine) myID() types.Replica { return s.cfg.ID }

func (s *StateMachine) isLeader() bool { return s.leaderCtx.IsLeader(s.myID()) }

// updateHighestCert swaps in a higher-ranked certificate, resolving the
// certified block from storage.
func (s *StateMachine) updateHighestCert(v types.Vote, c types.Certificate[types.Vote]) {
	prop, _ := s.storage.PropByHash(v.PropHash)
	if prop == nil {
		log.WithField("epoch", v.Epoch).Warn("certificate for unknown proposal; keeping old highest cert")
		return
	}
	block := s.storage.DeliveredByHash(prop.Data.Block.Hash())
	if block == nil {
		log.WithField("epoch", v.Epoch).Warn("certified block not delivered; keeping old highest cert")
		return
	}
	log.WithField("from", s.highestVote.Epoch).WithField("to", v.Epoch).Info("upgrading highest certificate")
	s.highestVote = v
	s.highestCert = c
	s.highestBlock = block
}

// HandleEvent dispatches one event from the merged queue.
func (s *StateMachine) HandleEvent(ev Event, q *EventQueue) {
	switch {
	case ev.Timeout != nil:
		s.onTimeout(*ev.Timeout, q)
	case ev.Message != nil:
		s.onMessageEvent(ev.Message.From, ev.Message.Msg, q)
	case ev.NewEpoch != 0:
		s.onNewEpochEvent(ev.NewEpoch, q)
	}
}

func (s *StateMachine) onTimeout(t TimeoutEvent, q *EventQueue) {
	// A timer tagged with another epoch is stale and does nothing; the
	// epoch clock makes the same check in its own case below.
	if t.Kind != EpochTimeout && t.Epoch != s.epoch {
		return
	}
	switch t.Kind {
	case EpochTimeout:
		if t.Epoch != s.epoch {
			return
		}
		s.onEpochEnd(q)
	case ProposeWaitTimeout:
		s.rnd.StatusTimedOut = true
		s.tryPropose(q)
	case StopAcceptingProposals:
		s.rnd.StopProposals = true
	case SyncVoteWaitTimeout:
		s.trySyncVote(t.Epoch, t.Hash, q)
	case StopAcceptingSyncCerts:
		s.rnd.StopSyncCerts = true
	case StopAcceptingAcks:
		s.rnd.StopAcks = true
	case CommitTimeout:
		s.tryCommit(t.Epoch, t.Hash)
	}
}
