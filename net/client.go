package net

import (
	"encoding/json"
	"net"

	"github.com/libdist-rs/optrand/types"
)

// ClientListener is the reconfiguration side-channel: a plain TCP
// listener accepting newline-delimited JSON ReconfigurationMsg values.
// The core does not change membership; messages are surfaced on a channel
// for the driver to log and acknowledge.
type ClientListener struct {
	ln   net.Listener
	msgs chan types.ReconfigurationMsg
}

// ListenClient opens the side-channel on addr.
func ListenClient(addr string) (*ClientListener, error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, err
	}
	cl := &ClientListener{ln: ln, msgs: make(chan types.ReconfigurationMsg, 16)}
	go cl.accept()
	return cl, nil
}

// Msgs streams received reconfiguration requests.
func (cl *ClientListener) Msgs() <-chan types.ReconfigurationMsg { return cl.msgs }

// Close shuts the listener down.
func (cl *ClientListener) Close() { cl.ln.Close() }

func (cl *ClientListener) accept() {
	for {
		conn, err := cl.ln.Accept()
		if err != nil {
			close(cl.msgs)
			return
		}
		go func(c net.Conn) {
			defer c.Close()
			dec := json.NewDecoder(c)
			for {
				var m types.ReconfigurationMsg
				if err := dec.Decode(&m); err != nil {
					return
				}
				cl.msgs <- m
			}
		}(conn)
	}
}
