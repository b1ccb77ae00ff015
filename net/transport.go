// Package net provides the N×N point-to-point transport: every replica
// listens on its configured address and dials peers on demand. Frames
// are length-delimited RLP envelopes; when the config carries TLS
// material, every link is mutually authenticated against the shared root.
package net

import (
	"crypto/tls"
	"crypto/x509"
	"encoding/binary"
	"io"
	"net"
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/libdist-rs/optrand/config"
	"github.com/libdist-rs/optrand/consensus"
	"github.com/libdist-rs/optrand/types"
)

var log = logrus.WithField("prefix", "net")

// maxFrame bounds a single message; proposals carry the full aggregate
// sharing, which grows with n, so this is deliberately roomy.
const maxFrame = 64 << 20

const dialTimeout = 3 * time.Second

// Transport implements consensus.Network over TCP/TLS.
type Transport struct {
	id    types.Replica
	n     int
	addrs map[types.Replica]string

	serverTLS *tls.Config
	clientTLS *tls.Config

	listener net.Listener
	recv     chan consensus.InMsg

	mu    sync.Mutex
	conns map[types.Replica]net.Conn

	closed chan struct{}
	once   sync.Once
}

// New builds a transport from the node config.
func New(cfg *config.Node) (*Transport, error) {
	t := &Transport{
		id:     cfg.ID,
		n:      cfg.NumNodes,
		addrs:  cfg.NetMap,
		recv:   make(chan consensus.InMsg, 4096),
		conns:  make(map[types.Replica]net.Conn),
		closed: make(chan struct{}),
	}
	if len(cfg.RootCertPEM) > 0 && len(cfg.CertPEM) > 0 {
		pool := x509.NewCertPool()
		if !pool.AppendCertsFromPEM(cfg.RootCertPEM) {
			return nil, errors.New("net: cannot parse root certificate")
		}
		cert, err := tls.X509KeyPair(cfg.CertPEM, cfg.CertKeyPEM)
		if err != nil {
			return nil, errors.Wrap(err, "net: node certificate")
		}
		t.serverTLS = &tls.Config{
			Certificates: []tls.Certificate{cert},
			ClientCAs:    pool,
			ClientAuth:   tls.RequireAndVerifyClientCert,
			MinVersion:   tls.VersionTLS13,
		}
		t.clientTLS = &tls.Config{
			Certificates: []tls.Certificate{cert},
			RootCAs:      pool,
			MinVersion:   tls.VersionTLS13,
			// Peers present per-node certificates under the shared
			// root; addresses, not names, identify them.
			InsecureSkipVerify: false,
			ServerName:         "localhost",
		}
	}
	return t, nil
}

// Start opens the listener and the accept loop.
func (t *Transport) Start() error {
	addr := t.addrs[t.id]
	var (
		ln  net.Listener
		err error
	)
	if t.serverTLS != nil {
		ln, err = tls.Listen("tcp", addr, t.serverTLS)
	} else {
		ln, err = net.Listen("tcp", addr)
	}
	if err != nil {
		return errors.Wrapf(err, "net: listening on %s", addr)
	}
	t.listener = ln
	go t.acceptLoop()
	log.WithField("addr", addr).Info("transport listening")
	return nil
}

// Stop closes the listener and every connection.
func (t *Transport) Stop() {
	t.once.Do(func() {
		close(t.closed)
		if t.listener != nil {
			t.listener.Close()
		}
		t.mu.Lock()
		for _, c := range t.conns {
			c.Close()
		}
		t.mu.Unlock()
		close(t.recv)
	})
}

// Recv implements consensus.Network.
func (t *Transport) Recv() <-chan consensus.InMsg { return t.recv }

// Send implements consensus.Network. Failures drop the message; the
// protocol tolerates loss up to its thresholds.
func (t *Transport) Send(target types.Replica, msg types.ProtocolMsg) {
	data, err := types.EncodeMsg(msg)
	if err != nil {
		log.Errorf("encoding %s: %v", msg.Kind(), err)
		return
	}
	if target == consensus.Broadcast {
		for i := 0; i < t.n; i++ {
			r := types.Replica(i)
			if r == t.id {
				continue
			}
			t.sendRaw(r, data)
		}
		return
	}
	if target == t.id {
		// Local sends short-circuit into the receive stream.
		if m, err := types.DecodeMsg(data); err == nil {
			t.deliver(t.id, m)
		}
		return
	}
	t.sendRaw(target, data)
}

func (t *Transport) sendRaw(target types.Replica, data []byte) {
	conn, err := t.conn(target)
	if err != nil {
		log.WithField("peer", target).Debugf("dial failed: %v", err)
		return
	}
	if err := writeFrame(conn, data); err != nil {
		log.WithField("peer", target).Debugf("send failed: %v", err)
		t.dropConn(target, conn)
	}
}

func (t *Transport) conn(target types.Replica) (net.Conn, error) {
	t.mu.Lock()
	if c, ok := t.conns[target]; ok {
		t.mu.Unlock()
		return c, nil
	}
	t.mu.Unlock()

	addr, ok := t.addrs[target]
	if !ok {
		return nil, errors.Errorf("no address for replica %d", target)
	}
	var (
		c   net.Conn
		err error
	)
	if t.clientTLS != nil {
		d := &net.Dialer{Timeout: dialTimeout}
		c, err = tls.DialWithDialer(d, "tcp", addr, t.clientTLS)
	} else {
		c, err = net.DialTimeout("tcp", addr, dialTimeout)
	}
	if err != nil {
		return nil, err
	}
	// Identify ourselves before any protocol frame.
	var hello [2]byte
	binary.BigEndian.PutUint16(hello[:], t.id)
	if err := writeFrame(c, hello[:]); err != nil {
		c.Close()
		return nil, err
	}

	t.mu.Lock()
	if existing, ok := t.conns[target]; ok {
		t.mu.Unlock()
		c.Close()
		return existing, nil
	}
	t.conns[target] = c
	t.mu.Unlock()
	return c, nil
}

func (t *Transport) dropConn(target types.Replica, c net.Conn) {
	t.mu.Lock()
	if cur, ok := t.conns[target]; ok && cur == c {
		delete(t.conns, target)
	}
	t.mu.Unlock()
	c.Close()
}

func (t *Transport) acceptLoop() {
	for {
		conn, err := t.listener.Accept()
		if err != nil {
			select {
			case <-t.closed:
				return
			default:
			}
			log.Warnf("accept: %v", err)
			continue
		}
		go t.readLoop(conn)
	}
}

func (t *Transport) readLoop(conn net.Conn) {
	defer conn.Close()
	hello, err := readFrame(conn)
	if err != nil || len(hello) != 2 {
		return
	}
	from := types.Replica(binary.BigEndian.Uint16(hello))
	if int(from) >= t.n || from == t.id {
		log.Warnf("rejecting connection claiming replica %d", from)
		return
	}
	for {
		data, err := readFrame(conn)
		if err != nil {
			if err != io.EOF {
				log.WithField("peer", from).Debugf("read: %v", err)
			}
			return
		}
		msg, err := types.DecodeMsg(data)
		if err != nil {
			log.WithField("peer", from).Warnf("undecodable message: %v", err)
			continue
		}
		t.deliver(from, msg)
	}
}

func (t *Transport) deliver(from types.Replica, msg types.ProtocolMsg) {
	defer func() {
		// Sends on a closed receive channel race only during shutdown.
		_ = recover()
	}()
	select {
	case t.recv <- consensus.InMsg{From: from, Msg: msg}:
	case <-t.closed:
	}
}

func writeFrame(w io.Writer, data []byte) error {
	var hdr [4]byte
	binary.BigEndian.PutUint32(hdr[:], uint32(len(data)))
	if _, err := w.Write(hdr[:]); err != nil {
		return err
	}
	_, err := w.Write(data)
	return err
}

func readFrame(r io.Reader) ([]byte, error) {
	var hdr [4]byte
	if _, err := io.ReadFull(r, hdr[:]); err != nil {
		return nil, err
	}
	n := binary.BigEndian.Uint32(hdr[:])
	if n > maxFrame {
		return nil, errors.Errorf("frame of %d bytes exceeds limit", n)
	}
	buf := make([]byte, n)
	if _, err := io.ReadFull(r, buf); err != nil {
		return nil, err
	}
	return buf, nil
}
