package crypto

// RLP wire codecs for every crypto object that crosses the network. All
// group elements travel as their fixed-size affine encodings; scalars as
// 32-byte big-endian strings. The codecs live here rather than in the
// message layer because only this package can rebuild points from bytes
// with the on-curve checks applied.

import (
	"io"

	"github.com/ethereum/go-ethereum/rlp"
)

type dleqWire struct {
	A1  []byte
	A2  []byte
	C   []byte
	R   []byte
	Sig []byte
}

type singleWire struct {
	A   []byte
	C   []byte
	R   []byte
	Sig []byte
}

func mixedProofToWire(p *Proof[*G1Point, *G2Point]) dleqWire {
	return dleqWire{A1: p.A1.Bytes(), A2: p.A2.Bytes(), C: p.C.Bytes(), R: p.R.Bytes(), Sig: p.Sig}
}

func mixedProofFromWire(w dleqWire) (*Proof[*G1Point, *G2Point], error) {
	a1, err := G1FromBytes(w.A1)
	if err != nil {
		return nil, err
	}
	a2, err := G2FromBytes(w.A2)
	if err != nil {
		return nil, err
	}
	return &Proof[*G1Point, *G2Point]{
		A1: a1, A2: a2,
		C: ScalarFromBytes(w.C), R: ScalarFromBytes(w.R),
		Sig: w.Sig,
	}, nil
}

func g2ProofToWire(p *Proof[*G2Point, *G2Point]) dleqWire {
	return dleqWire{A1: p.A1.Bytes(), A2: p.A2.Bytes(), C: p.C.Bytes(), R: p.R.Bytes(), Sig: p.Sig}
}

func g2ProofFromWire(w dleqWire) (*Proof[*G2Point, *G2Point], error) {
	a1, err := G2FromBytes(w.A1)
	if err != nil {
		return nil, err
	}
	a2, err := G2FromBytes(w.A2)
	if err != nil {
		return nil, err
	}
	return &Proof[*G2Point, *G2Point]{
		A1: a1, A2: a2,
		C: ScalarFromBytes(w.C), R: ScalarFromBytes(w.R),
		Sig: w.Sig,
	}, nil
}

func singleProofToWire(p *SingleProof[*G1Point]) singleWire {
	return singleWire{A: p.A.Bytes(), C: p.C.Bytes(), R: p.R.Bytes(), Sig: p.Sig}
}

func singleProofFromWire(w singleWire) (*SingleProof[*G1Point], error) {
	a, err := G1FromBytes(w.A)
	if err != nil {
		return nil, err
	}
	return &SingleProof[*G1Point]{A: a, C: ScalarFromBytes(w.C), R: ScalarFromBytes(w.R), Sig: w.Sig}, nil
}

func g1SliceToWire(pts []*G1Point) [][]byte {
	out := make([][]byte, len(pts))
	for i, p := range pts {
		out[i] = p.Bytes()
	}
	return out
}

func g1SliceFromWire(bs [][]byte) ([]*G1Point, error) {
	out := make([]*G1Point, len(bs))
	for i, b := range bs {
		p, err := G1FromBytes(b)
		if err != nil {
			return nil, err
		}
		out[i] = p
	}
	return out, nil
}

func g2SliceToWire(pts []*G2Point) [][]byte {
	out := make([][]byte, len(pts))
	for i, p := range pts {
		out[i] = p.Bytes()
	}
	return out
}

func g2SliceFromWire(bs [][]byte) ([]*G2Point, error) {
	out := make([]*G2Point, len(bs))
	for i, b := range bs {
		p, err := G2FromBytes(b)
		if err != nil {
			return nil, err
		}
		out[i] = p
	}
	return out, nil
}

type pvssVecWire struct {
	Comms  [][]byte
	Encs   [][]byte
	Proofs []dleqWire
	Gs     []byte
	Sok    singleWire
}

// EncodeRLP implements rlp.Encoder.
func (v *PVSSVec) EncodeRLP(w io.Writer) error {
	wire := pvssVecWire{
		Comms:  g1SliceToWire(v.Comms),
		Encs:   g2SliceToWire(v.Encs),
		Proofs: make([]dleqWire, len(v.Proofs)),
		Gs:     v.Gs.Bytes(),
		Sok:    singleProofToWire(v.Sok),
	}
	for i, p := range v.Proofs {
		wire.Proofs[i] = mixedProofToWire(p)
	}
	return rlp.Encode(w, wire)
}

// DecodeRLP implements rlp.Decoder.
func (v *PVSSVec) DecodeRLP(s *rlp.Stream) error {
	var wire pvssVecWire
	if err := s.Decode(&wire); err != nil {
		return err
	}
	comms, err := g1SliceFromWire(wire.Comms)
	if err != nil {
		return err
	}
	encs, err := g2SliceFromWire(wire.Encs)
	if err != nil {
		return err
	}
	proofs := make([]*Proof[*G1Point, *G2Point], len(wire.Proofs))
	for i, pw := range wire.Proofs {
		if proofs[i], err = mixedProofFromWire(pw); err != nil {
			return err
		}
	}
	gs, err := G1FromBytes(wire.Gs)
	if err != nil {
		return err
	}
	sok, err := singleProofFromWire(wire.Sok)
	if err != nil {
		return err
	}
	v.Comms, v.Encs, v.Proofs, v.Gs, v.Sok = comms, encs, proofs, gs, sok
	return nil
}

type aggWire struct {
	Encs  [][]byte
	Comms [][]byte
}

// EncodeRLP implements rlp.Encoder. A nil receiver encodes as the empty
// sharing. A nil aggregate held in a pointer field (a block that carries
// none, like genesis) never reaches this method: rlp writes the nil
// pointer itself as an empty list.
func (a *AggregatePVSS) EncodeRLP(w io.Writer) error {
	if a == nil {
		return rlp.Encode(w, aggWire{})
	}
	return rlp.Encode(w, aggWire{Encs: g2SliceToWire(a.Encs), Comms: g1SliceToWire(a.Comms)})
}

// DecodeRLP implements rlp.Decoder.
func (a *AggregatePVSS) DecodeRLP(s *rlp.Stream) error {
	var wire aggWire
	if err := s.Decode(&wire); err != nil {
		return err
	}
	encs, err := g2SliceFromWire(wire.Encs)
	if err != nil {
		return err
	}
	comms, err := g1SliceFromWire(wire.Comms)
	if err != nil {
		return err
	}
	a.Encs, a.Comms = encs, comms
	return nil
}

type decompWire struct {
	Indices []uint64
	GsVec   [][]byte
	SokVec  []singleWire
}

// EncodeRLP implements rlp.Encoder. Nil encodes as the empty proof.
func (d *DecompositionProof) EncodeRLP(w io.Writer) error {
	if d == nil {
		return rlp.Encode(w, decompWire{})
	}
	wire := decompWire{
		Indices: make([]uint64, len(d.Indices)),
		GsVec:   g1SliceToWire(d.GsVec),
		SokVec:  make([]singleWire, len(d.SokVec)),
	}
	for i, idx := range d.Indices {
		wire.Indices[i] = uint64(idx)
	}
	for i, sok := range d.SokVec {
		wire.SokVec[i] = singleProofToWire(sok)
	}
	return rlp.Encode(w, wire)
}

// DecodeRLP implements rlp.Decoder.
func (d *DecompositionProof) DecodeRLP(s *rlp.Stream) error {
	var wire decompWire
	if err := s.Decode(&wire); err != nil {
		return err
	}
	gsVec, err := g1SliceFromWire(wire.GsVec)
	if err != nil {
		return err
	}
	indices := make([]int, len(wire.Indices))
	for i, idx := range wire.Indices {
		indices[i] = int(idx)
	}
	sokVec := make([]*SingleProof[*G1Point], len(wire.SokVec))
	for i, sw := range wire.SokVec {
		if sokVec[i], err = singleProofFromWire(sw); err != nil {
			return err
		}
	}
	d.Indices, d.GsVec, d.SokVec = indices, gsVec, sokVec
	return nil
}

type decryptionWire struct {
	Dec   []byte
	Proof dleqWire
}

// EncodeRLP implements rlp.Encoder.
func (d *Decryption) EncodeRLP(w io.Writer) error {
	return rlp.Encode(w, decryptionWire{Dec: d.Dec.Bytes(), Proof: g2ProofToWire(d.Proof)})
}

// DecodeRLP implements rlp.Decoder.
func (d *Decryption) DecodeRLP(s *rlp.Stream) error {
	var wire decryptionWire
	if err := s.Decode(&wire); err != nil {
		return err
	}
	dec, err := G2FromBytes(wire.Dec)
	if err != nil {
		return err
	}
	proof, err := g2ProofFromWire(wire.Proof)
	if err != nil {
		return err
	}
	d.Dec, d.Proof = dec, proof
	return nil
}

type beaconWire struct {
	Value  []byte
	Paired []byte
}

// EncodeRLP implements rlp.Encoder.
func (b *Beacon) EncodeRLP(w io.Writer) error {
	return rlp.Encode(w, beaconWire{Value: b.Value.Bytes(), Paired: b.Paired.Bytes()})
}

// DecodeRLP implements rlp.Decoder.
func (b *Beacon) DecodeRLP(s *rlp.Stream) error {
	var wire beaconWire
	if err := s.Decode(&wire); err != nil {
		return err
	}
	value, err := G2FromBytes(wire.Value)
	if err != nil {
		return err
	}
	paired, err := GTFromBytes(wire.Paired)
	if err != nil {
		return err
	}
	b.Value, b.Paired = value, paired
	return nil
}
