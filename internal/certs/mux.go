package certs

import (
	"bufio"
	"crypto/tls"
	"net"
)

// A TLS ClientHello record starts with the handshake content type.
const tlsHandshakeByte = 0x16

// MuxListener serves TLS and plain HTTP on the same port by sniffing the
// first byte of each connection.
type MuxListener struct {
	net.Listener
	tlsConfig *tls.Config
}

// NewMuxListener wraps ln so that TLS handshakes get terminated with
// tlsConfig and everything else passes through untouched.
func NewMuxListener(ln net.Listener, tlsConfig *tls.Config) *MuxListener {
	return &MuxListener{
		Listener:  ln,
		tlsConfig: tlsConfig,
	}
}

// Accept returns the next connection, wrapped in a TLS server when the
// client leads with a handshake.
func (m *MuxListener) Accept() (net.Conn, error) {
	for {
		conn, err := m.Listener.Accept()
		if err != nil {
			return nil, err
		}

		br := bufio.NewReader(conn)
		first, err := br.Peek(1)
		if err != nil {
			// Client went away before sending anything; take the next one.
			conn.Close()
			continue
		}

		bc := &bufferedConn{Conn: conn, r: br}
		if first[0] == tlsHandshakeByte {
			return tls.Server(bc, m.tlsConfig), nil
		}
		return bc, nil
	}
}

// bufferedConn replays bytes the sniffer buffered before handing the
// connection on.
type bufferedConn struct {
	net.Conn
	r *bufio.Reader
}

func (c *bufferedConn) Read(p []byte) (int, error) {
	return c.r.Read(p)
}
