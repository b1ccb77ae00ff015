package consensus

import (
	"crypto/ed25519"

	"github.com/libdist-rs/optrand/crypto"
	"github.com/libdist-rs/optrand/types"
)

// The PVSS aggregation worker keeps pairing-heavy verification off the
// state-machine task. Contributions stream in during the status phase;
// once f+1 distinct dealers verify, the worker aggregates them and hands
// the result back. Foreign aggregates are verified the same way.
//
// The contribution buffer is scoped to one epoch: dealing is a per-epoch
// act, so contributions from different epochs must never be summed into
// one aggregate, and a half-filled buffer from a leader's previous term
// must not shadow the fresh sharing it deals the next time it leads.

// workerInKind tags worker requests.
type workerInKind uint8

const (
	workerNewContribution workerInKind = iota + 1
	workerNewAggregate
	workerNewEpoch
)

type workerIn struct {
	kind   workerInKind
	epoch  types.Epoch
	from   types.Replica
	pvec   *crypto.PVSSVec
	agg    *crypto.AggregatePVSS
	decomp *crypto.DecompositionProof
}

// WorkerResultKind tags worker results.
type WorkerResultKind uint8

const (
	// AggregateReady carries a locally aggregated sharing ready to
	// publish and eventually propose.
	AggregateReady WorkerResultKind = iota + 1
	// VerifiedAggregate carries a foreign aggregate that passed pverify
	// and decomposition verification.
	VerifiedAggregate
)

// WorkerResult is one verified output from the worker.
type WorkerResult struct {
	Kind WorkerResultKind
	// Epoch is the epoch whose status phase produced an AggregateReady.
	Epoch  types.Epoch
	From   types.Replica
	Agg    *crypto.AggregatePVSS
	Decomp *crypto.DecompositionProof
}

// Worker runs the verification loop on its own goroutine, communicating
// over bounded channels. It owns an immutable snapshot of the PVSS
// context and key map.
type Worker struct {
	ctx       *crypto.Context
	pks       types.PKMap
	myID      types.Replica
	numFaults int

	in  chan workerIn
	out chan WorkerResult

	bufEpoch   types.Epoch
	bufIndices []int
	bufVecs    []*crypto.PVSSVec
	bufSeen    map[types.Replica]bool
}

// NewWorker builds a worker; Start launches its goroutine.
func NewWorker(ctx *crypto.Context, pks types.PKMap, myID types.Replica, numFaults int) *Worker {
	return &Worker{
		ctx:       ctx,
		pks:       pks,
		myID:      myID,
		numFaults: numFaults,
		in:        make(chan workerIn, 256),
		out:       make(chan WorkerResult, 64),
		bufSeen:   make(map[types.Replica]bool),
	}
}

// Out is the result stream the reactor selects on.
func (w *Worker) Out() <-chan WorkerResult { return w.out }

// Start runs the worker loop until the input channel closes.
func (w *Worker) Start() {
	go w.loop()
}

// Stop closes the input; the loop drains and exits.
func (w *Worker) Stop() { close(w.in) }

// SubmitContribution hands a dealer's sharing for one epoch's status
// phase to the worker. The send is bounded; a full worker simply drops
// the contribution, which the protocol tolerates like a lost message.
func (w *Worker) SubmitContribution(from types.Replica, epoch types.Epoch, pvec *crypto.PVSSVec) {
	select {
	case w.in <- workerIn{kind: workerNewContribution, epoch: epoch, from: from, pvec: pvec}:
	default:
		log.WithField("from", from).Warn("aggregation worker backlogged; dropping contribution")
	}
}

// SubmitAggregate hands a foreign aggregate to the worker.
func (w *Worker) SubmitAggregate(from types.Replica, agg *crypto.AggregatePVSS, decomp *crypto.DecompositionProof) {
	select {
	case w.in <- workerIn{kind: workerNewAggregate, from: from, agg: agg, decomp: decomp}:
	default:
		log.WithField("from", from).Warn("aggregation worker backlogged; dropping aggregate")
	}
}

// AdvanceEpoch tells the worker a new epoch began, so a half-filled
// buffer from the previous epoch is discarded even if no contribution
// for the new one ever arrives.
func (w *Worker) AdvanceEpoch(epoch types.Epoch) {
	select {
	case w.in <- workerIn{kind: workerNewEpoch, epoch: epoch}:
	default:
		log.Warn("aggregation worker backlogged; dropping epoch advance")
	}
}

// ProcessPending drains queued inputs synchronously on the caller's
// goroutine. The deterministic-clock tests use this instead of Start so
// no scheduling nondeterminism leaks into the simulation.
func (w *Worker) ProcessPending() {
	for {
		select {
		case msg := <-w.in:
			w.handle(msg)
		default:
			return
		}
	}
}

func (w *Worker) loop() {
	for msg := range w.in {
		w.handle(msg)
	}
}

func (w *Worker) handle(msg workerIn) {
	switch msg.kind {
	case workerNewContribution:
		w.onContribution(msg.epoch, msg.from, msg.pvec)
	case workerNewAggregate:
		w.onAggregate(msg.from, msg.agg, msg.decomp)
	case workerNewEpoch:
		w.rollEpoch(msg.epoch)
	}
}

// rollEpoch discards the buffer when the epoch moves forward.
func (w *Worker) rollEpoch(epoch types.Epoch) {
	if epoch <= w.bufEpoch {
		return
	}
	if len(w.bufVecs) > 0 {
		log.WithField("epoch", w.bufEpoch).WithField("have", len(w.bufVecs)).
			Debug("discarding under-threshold contribution buffer")
	}
	w.bufEpoch = epoch
	w.bufIndices = nil
	w.bufVecs = nil
	w.bufSeen = make(map[types.Replica]bool)
}

func (w *Worker) onContribution(epoch types.Epoch, from types.Replica, pvec *crypto.PVSSVec) {
	if epoch < w.bufEpoch {
		return
	}
	w.rollEpoch(epoch)
	if w.bufSeen[from] {
		return
	}
	// Our own sharings are trusted locally; everyone else's verify.
	if from != w.myID {
		pk, ok := w.pks[from]
		if !ok {
			return
		}
		if err := w.ctx.VerifySharing(pvec, pk); err != nil {
			log.WithField("from", from).Warnf("invalid pvss contribution: %v", err)
			return
		}
	}
	w.bufSeen[from] = true
	w.bufIndices = append(w.bufIndices, int(from))
	w.bufVecs = append(w.bufVecs, pvec)
	if len(w.bufVecs) <= w.numFaults {
		return
	}

	agg, decomp := w.ctx.Aggregate(w.bufIndices, w.bufVecs)
	w.bufIndices = nil
	w.bufVecs = nil
	w.bufSeen = make(map[types.Replica]bool)
	w.out <- WorkerResult{Kind: AggregateReady, Epoch: epoch, From: w.myID, Agg: agg, Decomp: decomp}
}

func (w *Worker) onAggregate(from types.Replica, agg *crypto.AggregatePVSS, decomp *crypto.DecompositionProof) {
	if err := w.ctx.PVerify(agg); err != nil {
		log.WithField("from", from).Warnf("aggregate failed pverify: %v", err)
		return
	}
	if err := w.ctx.DecompVerify(agg, decomp, w.intPKMap()); err != nil {
		log.WithField("from", from).Warnf("aggregate failed decomposition check: %v", err)
		return
	}
	w.out <- WorkerResult{Kind: VerifiedAggregate, From: from, Agg: agg, Decomp: decomp}
}

func (w *Worker) intPKMap() map[int]ed25519.PublicKey {
	m := make(map[int]ed25519.PublicKey, len(w.pks))
	for r, pk := range w.pks {
		m[int(r)] = pk
	}
	return m
}
