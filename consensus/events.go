package consensus

import (
	"github.com/libdist-rs/optrand/types"
)

// Event is one unit of work for the state machine loop: a verified
// message, a due timeout, or an epoch transition marker.
type Event struct {
	Timeout  *TimeoutEvent
	Message  *MessageEvent
	NewEpoch types.Epoch // nonzero for epoch-entry events
}

// MessageEvent is a wire message that passed verification, attributed to
// its sender (or to the local replica for loopback).
type MessageEvent struct {
	From types.Replica
	Msg  types.ProtocolMsg
}

// TimeoutKind enumerates the scheduled timers of an epoch.
type TimeoutKind uint8

const (
	// EpochTimeout fires at 11Δ and ends the epoch.
	EpochTimeout TimeoutKind = iota + 1
	// ProposeWaitTimeout fires at 2Δ; the leader proposes with whatever
	// contributions it has if it has not proposed already.
	ProposeWaitTimeout
	// StopAcceptingProposals fires at 4Δ.
	StopAcceptingProposals
	// SyncVoteWaitTimeout fires 2Δ after a valid proposal arrived.
	SyncVoteWaitTimeout
	// StopAcceptingSyncCerts fires at 8Δ.
	StopAcceptingSyncCerts
	// StopAcceptingAcks fires at 9Δ.
	StopAcceptingAcks
	// CommitTimeout fires 2Δ after a certificate arrived.
	CommitTimeout
)

func (k TimeoutKind) String() string {
	switch k {
	case EpochTimeout:
		return "EpochTimeout"
	case ProposeWaitTimeout:
		return "ProposeWait"
	case StopAcceptingProposals:
		return "StopProposals"
	case SyncVoteWaitTimeout:
		return "SyncVoteWait"
	case StopAcceptingSyncCerts:
		return "StopSyncCerts"
	case StopAcceptingAcks:
		return "StopAcks"
	case CommitTimeout:
		return "Commit"
	}
	return "Unknown"
}

// TimeoutEvent is a scheduled timer. Hash is meaningful only for the
// sync-vote and commit kinds, where it pins the proposal being acted on.
type TimeoutEvent struct {
	Kind  TimeoutKind
	Epoch types.Epoch
	Hash  types.Hash
}
