package types

import (
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/rlp"
	"golang.org/x/crypto/sha3"
)

// HashSize is the byte length of every content hash in the protocol.
const HashSize = 32

// Hash is a Keccak-256 content hash.
type Hash [HashSize]byte

// EmptyHash is the all-zero hash, used for the genesis parent link.
var EmptyHash Hash

// String renders the hash for logs.
func (h Hash) String() string { return hexutil.Encode(h[:]) }

// IsEmpty reports whether h is the zero hash.
func (h Hash) IsEmpty() bool { return h == EmptyHash }

// HashBytes keccak-hashes raw bytes.
func HashBytes(b []byte) Hash {
	d := sha3.NewLegacyKeccak256()
	d.Write(b)
	var out Hash
	d.Sum(out[:0])
	return out
}

// HashPair hashes the concatenation of two hashes, used for interior
// Merkle nodes.
func HashPair(l, r Hash) Hash {
	d := sha3.NewLegacyKeccak256()
	d.Write(l[:])
	d.Write(r[:])
	var out Hash
	d.Sum(out[:0])
	return out
}

// HashObject canonically serializes v with RLP and keccak-hashes the
// encoding. Every content address in the protocol goes through here, so
// two replicas always agree on the hash of a value they both hold.
func HashObject(v interface{}) Hash {
	b, err := rlp.EncodeToBytes(v)
	if err != nil {
		// Only non-encodable Go values can fail here, which is a
		// programming error, not input-dependent.
		panic("types: unencodable value: " + err.Error())
	}
	return HashBytes(b)
}
