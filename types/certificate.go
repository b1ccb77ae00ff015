package types

import (
	"bytes"
	"crypto/ed25519"
	"sort"

	lru "github.com/hashicorp/golang-lru"
)

// PKMap maps every replica to its long-term ed25519 verification key.
type PKMap map[Replica]ed25519.PublicKey

// SigPair is one replica's signature inside a certificate. Pairs are kept
// sorted by origin so the RLP encoding (and therefore the hash) of a
// certificate is canonical.
type SigPair struct {
	Origin Replica
	Sig    []byte
}

// Certificate collects signatures from distinct replicas over the hash of
// one message. A certificate with a single signature is a vote.
type Certificate[T any] struct {
	MsgHash Hash
	Sigs    []SigPair
}

// NewCertificate signs msg with the local key and returns the one-vote
// certificate.
func NewCertificate[T any](msg T, id Replica, sk ed25519.PrivateKey) Certificate[T] {
	h := HashObject(msg)
	return Certificate[T]{
		MsgHash: h,
		Sigs:    []SigPair{{Origin: id, Sig: ed25519.Sign(sk, h[:])}},
	}
}

// EmptyCertificate is the zero-signature certificate used before genesis.
func EmptyCertificate[T any]() Certificate[T] {
	return Certificate[T]{MsgHash: EmptyHash}
}

// Len returns the number of signatures.
func (c *Certificate[T]) Len() int { return len(c.Sigs) }

// IsVote reports whether the certificate carries exactly one signature.
func (c *Certificate[T]) IsVote() bool { return len(c.Sigs) == 1 }

// HasSigner reports whether from has signed.
func (c *Certificate[T]) HasSigner(from Replica) bool {
	i := sort.Search(len(c.Sigs), func(i int) bool { return c.Sigs[i].Origin >= from })
	return i < len(c.Sigs) && c.Sigs[i].Origin == from
}

// SigOf returns from's signature bytes, or nil.
func (c *Certificate[T]) SigOf(from Replica) []byte {
	i := sort.Search(len(c.Sigs), func(i int) bool { return c.Sigs[i].Origin >= from })
	if i < len(c.Sigs) && c.Sigs[i].Origin == from {
		return c.Sigs[i].Sig
	}
	return nil
}

// AddSignature inserts a signature keeping origin order. Re-adding the
// same origin leaves the certificate unchanged.
func (c *Certificate[T]) AddSignature(from Replica, sig []byte) {
	i := sort.Search(len(c.Sigs), func(i int) bool { return c.Sigs[i].Origin >= from })
	if i < len(c.Sigs) && c.Sigs[i].Origin == from {
		return
	}
	c.Sigs = append(c.Sigs, SigPair{})
	copy(c.Sigs[i+1:], c.Sigs[i:])
	c.Sigs[i] = SigPair{Origin: from, Sig: sig}
}

// Merge folds the signatures of other into c.
func (c *Certificate[T]) Merge(other *Certificate[T]) {
	for _, p := range other.Sigs {
		c.AddSignature(p.Origin, p.Sig)
	}
}

// Clone deep-copies the certificate.
func (c *Certificate[T]) Clone() Certificate[T] {
	out := Certificate[T]{MsgHash: c.MsgHash, Sigs: make([]SigPair, len(c.Sigs))}
	for i, p := range c.Sigs {
		out.Sigs[i] = SigPair{Origin: p.Origin, Sig: bytes.Clone(p.Sig)}
	}
	return out
}

// IsValid checks the certificate is over msg and every signature verifies.
func (c *Certificate[T]) IsValid(msg T, pks PKMap) error {
	if HashObject(msg) != c.MsgHash {
		return ErrCertHashMismatch
	}
	if len(c.Sigs) > len(pks) {
		return ErrCertTooManySigs
	}
	for _, p := range c.Sigs {
		pk, ok := pks[p.Origin]
		if !ok {
			return ErrCertUnknownOrigin
		}
		if !ed25519.Verify(pk, c.MsgHash[:], p.Sig) {
			return ErrCertHashMismatch
		}
	}
	return nil
}

// BufferedIsValid is IsValid through the verified-signature cache: a
// (sender, hash, sig) triple seen before skips re-verification, and every
// fresh success is inserted. Proposals, deliver shares, and cert
// proposals re-present the same votes, so this removes most ed25519 work
// from the hot path.
func (c *Certificate[T]) BufferedIsValid(msg T, pks PKMap, cache *SigCache) error {
	if HashObject(msg) != c.MsgHash {
		return ErrCertHashMismatch
	}
	if len(c.Sigs) > len(pks) {
		return ErrCertTooManySigs
	}
	for _, p := range c.Sigs {
		if cache.IsVerified(p.Origin, c.MsgHash, p.Sig) {
			continue
		}
		pk, ok := pks[p.Origin]
		if !ok {
			return ErrCertUnknownOrigin
		}
		if !ed25519.Verify(pk, c.MsgHash[:], p.Sig) {
			return ErrCertHashMismatch
		}
		cache.Add(p.Origin, c.MsgHash, p.Sig)
	}
	return nil
}

// sigCacheSize bounds each sender's cache; an epoch re-presents at most a
// handful of hashes, so this is generous.
const sigCacheSize = 4096

// SigCache is the per-sender verified-signature store. Entries map a
// message hash to the exact signature bytes that verified for it.
type SigCache struct {
	perSender []*lru.Cache
}

// NewSigCache builds caches for n senders.
func NewSigCache(n int) *SigCache {
	s := &SigCache{perSender: make([]*lru.Cache, n)}
	for i := range s.perSender {
		c, err := lru.New(sigCacheSize)
		if err != nil {
			panic("types: sig cache: " + err.Error())
		}
		s.perSender[i] = c
	}
	return s
}

// IsVerified reports whether exactly this (sender, hash, sig) has already
// verified.
func (s *SigCache) IsVerified(from Replica, h Hash, sig []byte) bool {
	if int(from) >= len(s.perSender) {
		return false
	}
	v, ok := s.perSender[from].Get(h)
	if !ok {
		return false
	}
	return bytes.Equal(v.([]byte), sig)
}

// Add records a verified signature.
func (s *SigCache) Add(from Replica, h Hash, sig []byte) {
	if int(from) >= len(s.perSender) {
		return
	}
	s.perSender[from].Add(h, bytes.Clone(sig))
}
