package types

// The protocol message envelope. Every message is RLP encoded behind a
// one-byte kind tag; DecodeMsg rebuilds the concrete type and applies the
// structural wire checks, so handlers downstream never see a message that
// is malformed at the envelope level.

import (
	"github.com/ethereum/go-ethereum/rlp"

	"github.com/libdist-rs/optrand/crypto"
)

// MsgKind tags the wire messages. The tag set is compatibility-critical.
type MsgKind uint8

const (
	KindSync MsgKind = iota + 1
	KindStatus
	KindPropose
	KindDeliverPropose
	KindSyncVote
	KindSyncCert
	KindDeliverSyncCert
	KindRespVote
	KindRespCert
	KindDeliverRespCert
	KindAck
	KindBeaconShare
	KindBeaconReady
	KindAggregateReady
	KindEquivocation
)

func (k MsgKind) String() string {
	switch k {
	case KindSync:
		return "Sync"
	case KindStatus:
		return "Status"
	case KindPropose:
		return "Propose"
	case KindDeliverPropose:
		return "DeliverPropose"
	case KindSyncVote:
		return "SyncVote"
	case KindSyncCert:
		return "SyncCert"
	case KindDeliverSyncCert:
		return "DeliverSyncCert"
	case KindRespVote:
		return "RespVote"
	case KindRespCert:
		return "RespCert"
	case KindDeliverRespCert:
		return "DeliverRespCert"
	case KindAck:
		return "Ack"
	case KindBeaconShare:
		return "BeaconShare"
	case KindBeaconReady:
		return "BeaconReady"
	case KindAggregateReady:
		return "AggregateReady"
	case KindEquivocation:
		return "Equivocation"
	}
	return "Unknown"
}

// ProtocolMsg is any message that travels between replicas.
type ProtocolMsg interface {
	Kind() MsgKind
	// BufferEpoch is the epoch the message pertains to for the
	// future-epoch side buffer; zero means epoch-independent and is
	// handled immediately.
	BufferEpoch() Epoch
	// Validate applies the structural wire checks.
	Validate() error
}

// SyncMsg is the bootstrap broadcast that anchors every replica's epoch
// clock before StartEpoch times out.
type SyncMsg struct{}

func (*SyncMsg) Kind() MsgKind      { return KindSync }
func (*SyncMsg) BufferEpoch() Epoch { return 0 }
func (*SyncMsg) Validate() error    { return nil }

// StatusMsg carries a replica's fresh PVSS contribution and its highest
// certificate to the new epoch's leader.
type StatusMsg struct {
	Vote Vote
	Cert Certificate[Vote]
	PVec *crypto.PVSSVec
}

func (m *StatusMsg) Kind() MsgKind      { return KindStatus }
func (m *StatusMsg) BufferEpoch() Epoch { return 0 }
func (m *StatusMsg) Validate() error {
	if m.PVec == nil {
		return ErrInvalidWireMsg
	}
	n := len(m.PVec.Comms)
	if len(m.PVec.Encs) != n || len(m.PVec.Proofs) != n {
		return ErrInvalidWireMsg
	}
	return nil
}

// ProposeMsg is the leader's direct proposal with its accumulator proof.
type ProposeMsg struct {
	Prop  DirectProposal
	Proof Proof[DirectProposal]
}

func (m *ProposeMsg) Kind() MsgKind      { return KindPropose }
func (m *ProposeMsg) BufferEpoch() Epoch { return m.Prop.Data.Epoch }
func (m *ProposeMsg) Validate() error {
	if m.Prop.Data.HighestCert.MsgHash != EmptyHash &&
		HashObject(m.Prop.Data.HighestVote) != m.Prop.Data.HighestCert.MsgHash {
		return ErrInvalidWireMsg
	}
	if !m.Proof.Sign.IsVote() {
		return ErrInvalidWireMsg
	}
	return nil
}

// DeliverProposeMsg forwards one replica's shard of a direct proposal.
type DeliverProposeMsg struct {
	Epoch Epoch
	ShFor Replica
	Data  DeliverData[DirectProposal]
}

func (m *DeliverProposeMsg) Kind() MsgKind      { return KindDeliverPropose }
func (m *DeliverProposeMsg) BufferEpoch() Epoch { return m.Epoch }
func (m *DeliverProposeMsg) Validate() error {
	if !m.Data.Sign.IsVote() {
		return ErrInvalidWireMsg
	}
	return nil
}

// SyncVoteMsg is a single sync vote sent to the epoch leader.
type SyncVoteMsg struct {
	Vote Vote
	Cert Certificate[Vote]
}

func (m *SyncVoteMsg) Kind() MsgKind      { return KindSyncVote }
func (m *SyncVoteMsg) BufferEpoch() Epoch { return m.Vote.Epoch }
func (m *SyncVoteMsg) Validate() error {
	if !m.Cert.IsVote() || m.Vote.Type != VoteSync {
		return ErrInvalidWireMsg
	}
	return nil
}

// SyncCertMsg redistributes a completed sync certificate.
type SyncCertMsg struct {
	Prop  SyncCertProposal
	Proof Proof[SyncCertProposal]
}

func (m *SyncCertMsg) Kind() MsgKind      { return KindSyncCert }
func (m *SyncCertMsg) BufferEpoch() Epoch { return m.Prop.Data.Vote.Epoch }
func (m *SyncCertMsg) Validate() error {
	if !m.Proof.Sign.IsVote() {
		return ErrInvalidWireMsg
	}
	return nil
}

// DeliverSyncCertMsg forwards one shard of a sync certificate proposal.
type DeliverSyncCertMsg struct {
	Epoch Epoch
	ShFor Replica
	Data  DeliverData[SyncCertProposal]
}

func (m *DeliverSyncCertMsg) Kind() MsgKind      { return KindDeliverSyncCert }
func (m *DeliverSyncCertMsg) BufferEpoch() Epoch { return m.Epoch }
func (m *DeliverSyncCertMsg) Validate() error {
	if !m.Data.Sign.IsVote() {
		return ErrInvalidWireMsg
	}
	return nil
}

// RespVoteMsg is a responsive vote sent to the epoch leader.
type RespVoteMsg struct {
	Vote Vote
	Cert Certificate[Vote]
}

func (m *RespVoteMsg) Kind() MsgKind      { return KindRespVote }
func (m *RespVoteMsg) BufferEpoch() Epoch { return m.Vote.Epoch }
func (m *RespVoteMsg) Validate() error {
	if !m.Cert.IsVote() || m.Vote.Type != VoteResponsive {
		return ErrInvalidWireMsg
	}
	return nil
}

// RespCertMsg redistributes a completed responsive certificate.
type RespCertMsg struct {
	Prop  RespCertProposal
	Proof Proof[RespCertProposal]
}

func (m *RespCertMsg) Kind() MsgKind      { return KindRespCert }
func (m *RespCertMsg) BufferEpoch() Epoch { return m.Prop.Data.Vote.Epoch }
func (m *RespCertMsg) Validate() error {
	if !m.Proof.Sign.IsVote() {
		return ErrInvalidWireMsg
	}
	return nil
}

// DeliverRespCertMsg forwards one shard of a responsive certificate
// proposal.
type DeliverRespCertMsg struct {
	Epoch Epoch
	ShFor Replica
	Data  DeliverData[RespCertProposal]
}

func (m *DeliverRespCertMsg) Kind() MsgKind      { return KindDeliverRespCert }
func (m *DeliverRespCertMsg) BufferEpoch() Epoch { return m.Epoch }
func (m *DeliverRespCertMsg) Validate() error {
	if !m.Data.Sign.IsVote() {
		return ErrInvalidWireMsg
	}
	return nil
}

// AckMsg acknowledges a responsive certificate.
type AckMsg struct {
	Ack  AckData
	Cert Certificate[AckData]
}

func (m *AckMsg) Kind() MsgKind      { return KindAck }
func (m *AckMsg) BufferEpoch() Epoch { return m.Ack.Epoch }
func (m *AckMsg) Validate() error {
	if !m.Cert.IsVote() {
		return ErrInvalidWireMsg
	}
	return nil
}

// BeaconShareMsg carries one replica's decryption of the epoch aggregate.
type BeaconShareMsg struct {
	Epoch Epoch
	Dec   *crypto.Decryption
}

func (m *BeaconShareMsg) Kind() MsgKind      { return KindBeaconShare }
func (m *BeaconShareMsg) BufferEpoch() Epoch { return 0 }
func (m *BeaconShareMsg) Validate() error {
	if m.Dec == nil || m.Dec.Dec == nil || m.Dec.Proof == nil {
		return ErrInvalidWireMsg
	}
	return nil
}

// BeaconReadyMsg announces a reconstructed beacon.
type BeaconReadyMsg struct {
	Epoch  Epoch
	Beacon *crypto.Beacon
}

func (m *BeaconReadyMsg) Kind() MsgKind      { return KindBeaconReady }
func (m *BeaconReadyMsg) BufferEpoch() Epoch { return 0 }
func (m *BeaconReadyMsg) Validate() error {
	if m.Beacon == nil || m.Beacon.Value == nil {
		return ErrInvalidWireMsg
	}
	return nil
}

// AggregateReadyMsg publishes an aggregated sharing with its
// decomposition proof for use in a future epoch.
type AggregateReadyMsg struct {
	Agg    *crypto.AggregatePVSS
	Decomp *crypto.DecompositionProof
}

func (m *AggregateReadyMsg) Kind() MsgKind      { return KindAggregateReady }
func (m *AggregateReadyMsg) BufferEpoch() Epoch { return 0 }
func (m *AggregateReadyMsg) Validate() error {
	if m.Agg == nil || m.Decomp == nil {
		return ErrInvalidWireMsg
	}
	if len(m.Agg.Encs) != len(m.Agg.Comms) {
		return ErrInvalidWireMsg
	}
	return nil
}

// EquivocationMsg carries transferable equivocation evidence.
type EquivocationMsg struct {
	Ev EquivData[DirectProposal]
}

func (m *EquivocationMsg) Kind() MsgKind      { return KindEquivocation }
func (m *EquivocationMsg) BufferEpoch() Epoch { return 0 }
func (m *EquivocationMsg) Validate() error {
	if m.Ev.Acc[0].Equals(m.Ev.Acc[1]) {
		return ErrInvalidWireMsg
	}
	return nil
}

type envelope struct {
	Kind    uint8
	Payload []byte
}

// EncodeMsg wraps a message into the tagged wire envelope.
func EncodeMsg(m ProtocolMsg) ([]byte, error) {
	payload, err := rlp.EncodeToBytes(m)
	if err != nil {
		return nil, err
	}
	return rlp.EncodeToBytes(envelope{Kind: uint8(m.Kind()), Payload: payload})
}

// DecodeMsg parses an envelope, rebuilds the concrete message, and runs
// its structural checks.
func DecodeMsg(b []byte) (ProtocolMsg, error) {
	var env envelope
	if err := rlp.DecodeBytes(b, &env); err != nil {
		return nil, err
	}
	var m ProtocolMsg
	switch MsgKind(env.Kind) {
	case KindSync:
		m = new(SyncMsg)
	case KindStatus:
		m = new(StatusMsg)
	case KindPropose:
		m = new(ProposeMsg)
	case KindDeliverPropose:
		m = new(DeliverProposeMsg)
	case KindSyncVote:
		m = new(SyncVoteMsg)
	case KindSyncCert:
		m = new(SyncCertMsg)
	case KindDeliverSyncCert:
		m = new(DeliverSyncCertMsg)
	case KindRespVote:
		m = new(RespVoteMsg)
	case KindRespCert:
		m = new(RespCertMsg)
	case KindDeliverRespCert:
		m = new(DeliverRespCertMsg)
	case KindAck:
		m = new(AckMsg)
	case KindBeaconShare:
		m = new(BeaconShareMsg)
	case KindBeaconReady:
		m = new(BeaconReadyMsg)
	case KindAggregateReady:
		m = new(AggregateReadyMsg)
	case KindEquivocation:
		m = new(EquivocationMsg)
	default:
		return nil, ErrInvalidWireMsg
	}
	if err := rlp.DecodeBytes(env.Payload, m); err != nil {
		return nil, err
	}
	if err := m.Validate(); err != nil {
		return nil, err
	}
	return m, nil
}

// ReconfigurationMsg arrives on the client side-channel; the core logs
// and acknowledges it without changing membership.
type ReconfigurationMsg struct {
	NewNode Replica
	Addr    string
}
