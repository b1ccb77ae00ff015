package config

import (
	"crypto/ed25519"
	"crypto/rand"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/hex"
	"encoding/pem"
	"fmt"
	"math/big"
	"net"
	"time"

	"github.com/ethereum/go-ethereum/rlp"
	"github.com/pkg/errors"

	"github.com/libdist-rs/optrand/crypto"
)

// GenParams drive config generation.
type GenParams struct {
	NumNodes    int
	NumFaults   int
	DeltaMS     uint64
	BasePort    int
	PayloadSize int
	BlockSize   int
	Host        string // defaults to 127.0.0.1
}

// Generate produces one config file per replica: fresh ed25519 and PVSS
// keys, the address map, TLS material, and the shared bootstrap beacon
// queue holding one aggregate sharing per dealer.
func Generate(p GenParams) ([]*File, error) {
	if p.NumNodes <= 2*p.NumFaults || p.NumNodes == 0 {
		return nil, ErrIncorrectFaults
	}
	host := p.Host
	if host == "" {
		host = "127.0.0.1"
	}
	n, f := p.NumNodes, p.NumFaults

	sks := make([]ed25519.PrivateKey, n)
	pkHex := make([]string, n)
	for i := 0; i < n; i++ {
		pk, sk, err := ed25519.GenerateKey(rand.Reader)
		if err != nil {
			return nil, err
		}
		sks[i] = sk
		pkHex[i] = hex.EncodeToString(pk)
	}

	pvssSecrets := make([]*crypto.Scalar, n)
	pvssPub := make([]*crypto.G2Point, n)
	pvssPubHex := make([]string, n)
	g2 := crypto.G2Generator()
	for i := 0; i < n; i++ {
		pvssSecrets[i] = crypto.RandomScalar(crypto.SystemRand)
		pvssPub[i] = crypto.G2ScalarMul(g2, pvssSecrets[i])
		pvssPubHex[i] = hex.EncodeToString(pvssPub[i].Bytes())
	}

	netMap := make([]string, n)
	for i := 0; i < n; i++ {
		netMap[i] = fmt.Sprintf("%s:%d", host, p.BasePort+i)
	}

	// The bootstrap queue is shared: every replica starts with the same
	// aggregate for every dealer, built here from f+1 sharings.
	queue, err := bootstrapQueue(n, f, sks, pvssSecrets, pvssPub)
	if err != nil {
		return nil, err
	}

	rootPEM, certPEMs, keyPEMs, err := generateTLS(n, host)
	if err != nil {
		return nil, err
	}

	files := make([]*File, n)
	for i := 0; i < n; i++ {
		files[i] = &File{
			ID:          uint64(i),
			NumNodes:    uint64(n),
			NumFaults:   uint64(f),
			DeltaMS:     p.DeltaMS,
			PayloadSize: uint64(p.PayloadSize),
			BlockSize:   uint64(p.BlockSize),
			NetMap:      netMap,
			SecretKey:   hex.EncodeToString(sks[i]),
			PubKeys:     pkHex,
			PVSSSecret:  hex.EncodeToString(pvssSecrets[i].Bytes()),
			PVSSPubKeys: pvssPubHex,
			BeaconQueue: queue,
			RootCertPEM: rootPEM,
			CertPEM:     certPEMs[i],
			CertKeyPEM:  keyPEMs[i],
		}
	}
	return files, nil
}

// bootstrapQueue deals one aggregate per dealer slot so epoch 1..n each
// have a sharing to open before any block has committed new ones.
func bootstrapQueue(n, f int, sks []ed25519.PrivateKey, secrets []*crypto.Scalar, pub []*crypto.G2Point) ([][]string, error) {
	queue := make([][]string, n)
	for dealer := 0; dealer < n; dealer++ {
		indices := make([]int, f+1)
		pvecs := make([]*crypto.PVSSVec, f+1)
		for k := 0; k <= f; k++ {
			idx := (dealer + k) % n
			ctx := crypto.NewContext(n, f, idx, pub, secrets[idx],
				crypto.Ed25519Signer{Key: sks[idx]}, crypto.SystemRand)
			indices[k] = idx
			pvecs[k] = ctx.GenerateShares(crypto.SystemRand)
		}
		aggCtx := crypto.NewContext(n, f, dealer, pub, secrets[dealer],
			crypto.Ed25519Signer{Key: sks[dealer]}, crypto.SystemRand)
		agg, _ := aggCtx.Aggregate(indices, pvecs)
		blob, err := rlp.EncodeToBytes(agg)
		if err != nil {
			return nil, err
		}
		queue[dealer] = []string{hex.EncodeToString(blob)}
	}
	return queue, nil
}

// generateTLS builds a self-signed root and one leaf certificate per
// replica, all over fresh ed25519 keys.
func generateTLS(n int, host string) (string, []string, []string, error) {
	rootPub, rootPriv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return "", nil, nil, err
	}
	rootTmpl := &x509.Certificate{
		SerialNumber:          big.NewInt(1),
		Subject:               pkix.Name{CommonName: "optrand-root"},
		NotBefore:             time.Now().Add(-time.Hour),
		NotAfter:              time.Now().AddDate(10, 0, 0),
		KeyUsage:              x509.KeyUsageCertSign,
		BasicConstraintsValid: true,
		IsCA:                  true,
	}
	rootDER, err := x509.CreateCertificate(rand.Reader, rootTmpl, rootTmpl, rootPub, rootPriv)
	if err != nil {
		return "", nil, nil, errors.Wrap(err, "root certificate")
	}
	rootPEM := string(pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: rootDER}))

	ip := net.ParseIP(host)
	certPEMs := make([]string, n)
	keyPEMs := make([]string, n)
	for i := 0; i < n; i++ {
		pub, priv, err := ed25519.GenerateKey(rand.Reader)
		if err != nil {
			return "", nil, nil, err
		}
		tmpl := &x509.Certificate{
			SerialNumber: big.NewInt(int64(i + 2)),
			Subject:      pkix.Name{CommonName: fmt.Sprintf("optrand-node-%d", i)},
			NotBefore:    time.Now().Add(-time.Hour),
			NotAfter:     time.Now().AddDate(10, 0, 0),
			KeyUsage:     x509.KeyUsageDigitalSignature,
			ExtKeyUsage:  []x509.ExtKeyUsage{x509.ExtKeyUsageServerAuth, x509.ExtKeyUsageClientAuth},
			DNSNames:     []string{"localhost"},
		}
		if ip != nil {
			tmpl.IPAddresses = []net.IP{ip}
		}
		der, err := x509.CreateCertificate(rand.Reader, tmpl, rootTmpl, pub, rootPriv)
		if err != nil {
			return "", nil, nil, errors.Wrapf(err, "certificate for node %d", i)
		}
		keyDER, err := x509.MarshalPKCS8PrivateKey(priv)
		if err != nil {
			return "", nil, nil, err
		}
		certPEMs[i] = string(pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: der}))
		keyPEMs[i] = string(pem.EncodeToMemory(&pem.Block{Type: "PRIVATE KEY", Bytes: keyDER}))
	}
	return rootPEM, certPEMs, keyPEMs, nil
}
