package consensus

import (
	"crypto/ed25519"

	"github.com/holiman/uint256"

	"github.com/libdist-rs/optrand/crypto"
	"github.com/libdist-rs/optrand/types"
)

// BeaconOutput is a finished epoch beacon pinned in the per-epoch map.
type BeaconOutput struct {
	Beacon *crypto.Beacon
	// Rand is the application-facing 256-bit value derived from the
	// group element.
	Rand *uint256.Int
}

// deriveRand hashes the beacon's group element into a uint256.
func deriveRand(b *crypto.Beacon) *uint256.Int {
	h := types.HashBytes(b.Value.Bytes())
	return new(uint256.Int).SetBytes(h[:])
}

// pendingShare is a share that arrived before its epoch's aggregate was
// known locally.
type pendingShare struct {
	from types.Replica
	dec  *crypto.Decryption
}

// BeaconContext tracks every epoch's beacon reconstruction: the aggregate
// being opened, the shares verified so far, shares buffered for epochs we
// have not reached, and the pinned outputs.
type BeaconContext struct {
	epochBeacons map[types.Epoch]*BeaconOutput
	epochPVSS    map[types.Epoch]*crypto.AggregatePVSS
	unverified   map[types.Epoch][]pendingShare
	verified     map[types.Epoch][]*crypto.G2Point
	numVerified  map[types.Epoch]int
}

// NewBeaconContext returns an empty context.
func NewBeaconContext() *BeaconContext {
	return &BeaconContext{
		epochBeacons: make(map[types.Epoch]*BeaconOutput),
		epochPVSS:    make(map[types.Epoch]*crypto.AggregatePVSS),
		unverified:   make(map[types.Epoch][]pendingShare),
		verified:     make(map[types.Epoch][]*crypto.G2Point),
		numVerified:  make(map[types.Epoch]int),
	}
}

// AddEpochPVSS registers the aggregate whose decryptions epoch e collects.
func (bc *BeaconContext) AddEpochPVSS(e types.Epoch, agg *crypto.AggregatePVSS, n int) {
	bc.epochPVSS[e] = agg
	bc.verified[e] = make([]*crypto.G2Point, n)
	bc.numVerified[e] = 0
}

// EpochPVSS returns the aggregate pinned for e, if any.
func (bc *BeaconContext) EpochPVSS(e types.Epoch) *crypto.AggregatePVSS { return bc.epochPVSS[e] }

// Beacon returns the pinned output for e, if reconstructed.
func (bc *BeaconContext) Beacon(e types.Epoch) *BeaconOutput { return bc.epochBeacons[e] }

// Pin fixes an externally received, verified beacon for e.
func (bc *BeaconContext) Pin(e types.Epoch, b *crypto.Beacon) *BeaconOutput {
	if out, ok := bc.epochBeacons[e]; ok {
		return out
	}
	out := &BeaconOutput{Beacon: b, Rand: deriveRand(b)}
	bc.epochBeacons[e] = out
	bc.cleanup(e)
	return out
}

func (bc *BeaconContext) cleanup(e types.Epoch) {
	delete(bc.epochPVSS, e)
	delete(bc.verified, e)
	delete(bc.numVerified, e)
	delete(bc.unverified, e)
}

// AddShare processes a decryption share for epoch e. Shares for epochs
// whose aggregate is not yet known are buffered. Once f+1 verified shares
// are present the beacon is reconstructed, pinned, and returned.
func (bc *BeaconContext) AddShare(
	ctx *crypto.Context,
	myID types.Replica,
	pks types.PKMap,
	e types.Epoch,
	from types.Replica,
	dec *crypto.Decryption,
	numFaults int,
) (*BeaconOutput, error) {
	if _, done := bc.epochBeacons[e]; done {
		return nil, nil
	}
	agg, ready := bc.epochPVSS[e]
	if !ready {
		bc.unverified[e] = append(bc.unverified[e], pendingShare{from: from, dec: dec})
		return nil, nil
	}

	if out := bc.acceptShare(ctx, myID, pks, e, agg, from, dec, numFaults); out != nil {
		return out, nil
	}

	// Drain anything buffered before the aggregate arrived.
	buffered := bc.unverified[e]
	delete(bc.unverified, e)
	for _, p := range buffered {
		if out := bc.acceptShare(ctx, myID, pks, e, agg, p.from, p.dec, numFaults); out != nil {
			return out, nil
		}
	}
	return nil, nil
}

func (bc *BeaconContext) acceptShare(
	ctx *crypto.Context,
	myID types.Replica,
	pks types.PKMap,
	e types.Epoch,
	agg *crypto.AggregatePVSS,
	from types.Replica,
	dec *crypto.Decryption,
	numFaults int,
) *BeaconOutput {
	shares := bc.verified[e]
	if shares == nil || int(from) >= len(shares) || shares[from] != nil {
		return nil
	}
	if from != myID {
		var pk ed25519.PublicKey
		var ok bool
		if pk, ok = pks[from]; !ok {
			return nil
		}
		if err := ctx.VerifyShare(int(from), agg.Encs[from], dec, pk); err != nil {
			log.WithField("from", from).WithField("epoch", e).Warnf("invalid beacon share: %v", err)
			return nil
		}
	}
	shares[from] = dec.Dec
	bc.numVerified[e]++
	if bc.numVerified[e] <= numFaults {
		return nil
	}

	beacon := ctx.Reconstruct(shares)
	if beacon == nil {
		return nil
	}
	out := &BeaconOutput{Beacon: beacon, Rand: deriveRand(beacon)}
	bc.epochBeacons[e] = out
	bc.cleanup(e)
	return out
}
