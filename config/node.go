// Package config defines the per-replica configuration: identities, keys,
// timing, the PVSS context inputs, and the bootstrap beacon queues. A
// config is generated once by genconfig, serialized in any of four
// formats, and loaded read-only by the node driver.
package config

import (
	"crypto/ed25519"
	"encoding/hex"
	"time"

	"github.com/ethereum/go-ethereum/rlp"
	"github.com/pkg/errors"

	"github.com/libdist-rs/optrand/crypto"
	"github.com/libdist-rs/optrand/types"
)

// Parse errors, mirroring the startup failure kinds.
var (
	ErrIncorrectFaults = errors.New("config: need 2f < n")
	ErrInvalidMapLen   = errors.New("config: map length does not match num_nodes")
	ErrInvalidMapEntry = errors.New("config: malformed map entry")
	ErrInvalidPkSize   = errors.New("config: bad public key size")
	ErrInvalidSkSize   = errors.New("config: bad secret key size")
	ErrUnimplemented   = errors.New("config: unsupported config format")
)

// File is the serialized schema, identical across JSON, YAML, TOML, and
// binary. Per-replica slices are indexed by replica id; all key material
// is hex.
type File struct {
	ID          uint64   `json:"id" toml:"id" yaml:"id"`
	NumNodes    uint64   `json:"num_nodes" toml:"num_nodes" yaml:"num_nodes"`
	NumFaults   uint64   `json:"num_faults" toml:"num_faults" yaml:"num_faults"`
	DeltaMS     uint64   `json:"delta_ms" toml:"delta_ms" yaml:"delta_ms"`
	PayloadSize uint64   `json:"payload_size" toml:"payload_size" yaml:"payload_size"`
	BlockSize   uint64   `json:"block_size" toml:"block_size" yaml:"block_size"`
	NetMap      []string `json:"net_map" toml:"net_map" yaml:"net_map"`
	SecretKey   string   `json:"secret_key" toml:"secret_key" yaml:"secret_key"`
	PubKeys     []string `json:"pub_keys" toml:"pub_keys" yaml:"pub_keys"`
	PVSSSecret  string   `json:"pvss_secret" toml:"pvss_secret" yaml:"pvss_secret"`
	PVSSPubKeys []string `json:"pvss_pub_keys" toml:"pvss_pub_keys" yaml:"pvss_pub_keys"`
	// BeaconQueue[i] is the bootstrap queue of RLP-encoded aggregate
	// sharings for dealer i; identical in every replica's file.
	BeaconQueue [][]string `json:"beacon_queue" toml:"beacon_queue" yaml:"beacon_queue"`
	RootCertPEM string     `json:"root_cert" toml:"root_cert" yaml:"root_cert"`
	CertPEM     string     `json:"my_cert" toml:"my_cert" yaml:"my_cert"`
	CertKeyPEM  string     `json:"my_cert_key" toml:"my_cert_key" yaml:"my_cert_key"`
}

// Node is the runtime configuration after Init: decoded keys, the PVSS
// context, and the bootstrap queues.
type Node struct {
	ID          types.Replica
	NumNodes    int
	NumFaults   int
	Delta       time.Duration
	PayloadSize int
	BlockSize   int
	NetMap      map[types.Replica]string

	SecretKey ed25519.PrivateKey
	PKMap     types.PKMap

	PvssSecret  *crypto.Scalar
	PvssPubKeys []*crypto.G2Point
	PvssCtx     *crypto.Context

	RandBeaconQueue map[types.Replica][]*crypto.AggregatePVSS

	RootCertPEM []byte
	CertPEM     []byte
	CertKeyPEM  []byte
}

// Init validates the file and builds the runtime Node, including the
// per-replica PVSS context (whose degree-check codeword is sampled fresh
// at every startup).
func (f *File) Init() (*Node, error) {
	n := int(f.NumNodes)
	fl := int(f.NumFaults)
	if n <= 2*fl || n == 0 {
		return nil, ErrIncorrectFaults
	}
	if len(f.NetMap) != n || len(f.PubKeys) != n || len(f.PVSSPubKeys) != n {
		return nil, ErrInvalidMapLen
	}
	if int(f.ID) >= n {
		return nil, ErrInvalidMapEntry
	}

	skBytes, err := hex.DecodeString(f.SecretKey)
	if err != nil {
		return nil, errors.Wrap(ErrInvalidSkSize, err.Error())
	}
	if len(skBytes) != ed25519.PrivateKeySize {
		return nil, ErrInvalidSkSize
	}

	node := &Node{
		ID:          types.Replica(f.ID),
		NumNodes:    n,
		NumFaults:   fl,
		Delta:       time.Duration(f.DeltaMS) * time.Millisecond,
		PayloadSize: int(f.PayloadSize),
		BlockSize:   int(f.BlockSize),
		NetMap:      make(map[types.Replica]string, n),
		SecretKey:   ed25519.PrivateKey(skBytes),
		PKMap:       make(types.PKMap, n),
		RootCertPEM: []byte(f.RootCertPEM),
		CertPEM:     []byte(f.CertPEM),
		CertKeyPEM:  []byte(f.CertKeyPEM),
	}
	for i, addr := range f.NetMap {
		if addr == "" {
			return nil, ErrInvalidMapEntry
		}
		node.NetMap[types.Replica(i)] = addr
	}
	for i, pkHex := range f.PubKeys {
		pk, err := hex.DecodeString(pkHex)
		if err != nil || len(pk) != ed25519.PublicKeySize {
			return nil, ErrInvalidPkSize
		}
		node.PKMap[types.Replica(i)] = ed25519.PublicKey(pk)
	}

	secBytes, err := hex.DecodeString(f.PVSSSecret)
	if err != nil {
		return nil, errors.Wrap(ErrInvalidSkSize, err.Error())
	}
	node.PvssSecret = crypto.ScalarFromBytes(secBytes)

	node.PvssPubKeys = make([]*crypto.G2Point, n)
	for i, pkHex := range f.PVSSPubKeys {
		raw, err := hex.DecodeString(pkHex)
		if err != nil {
			return nil, ErrInvalidPkSize
		}
		pt, err := crypto.G2FromBytes(raw)
		if err != nil {
			return nil, ErrInvalidPkSize
		}
		node.PvssPubKeys[i] = pt
	}

	node.RandBeaconQueue = make(map[types.Replica][]*crypto.AggregatePVSS, n)
	if len(f.BeaconQueue) != 0 && len(f.BeaconQueue) != n {
		return nil, ErrInvalidMapLen
	}
	for i, queue := range f.BeaconQueue {
		for _, blob := range queue {
			raw, err := hex.DecodeString(blob)
			if err != nil {
				return nil, ErrInvalidMapEntry
			}
			agg := new(crypto.AggregatePVSS)
			if err := rlp.DecodeBytes(raw, agg); err != nil {
				return nil, errors.Wrap(ErrInvalidMapEntry, err.Error())
			}
			node.RandBeaconQueue[types.Replica(i)] = append(node.RandBeaconQueue[types.Replica(i)], agg)
		}
	}

	node.PvssCtx = crypto.NewContext(
		n, fl, int(f.ID),
		node.PvssPubKeys,
		node.PvssSecret,
		crypto.Ed25519Signer{Key: node.SecretKey},
		crypto.SystemRand,
	)
	return node, nil
}

// Validate re-checks the structural invariants of a runtime Node.
func (node *Node) Validate() error {
	if node.NumNodes <= 2*node.NumFaults {
		return ErrIncorrectFaults
	}
	if len(node.PKMap) != node.NumNodes || len(node.NetMap) != node.NumNodes {
		return ErrInvalidMapLen
	}
	return nil
}

// Address returns replica i's listen address.
func (node *Node) Address(i types.Replica) string { return node.NetMap[i] }

// MyAddress returns this replica's listen address.
func (node *Node) MyAddress() string { return node.NetMap[node.ID] }
