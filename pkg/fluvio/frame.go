package fluvio

import (
	"crypto/tls"
	"encoding/binary"
	"fmt"
	"io"
	"net"
	"time"

	"github.com/nimbusstream/fluvio-go/pkg/flerr"
)

// maxFrameBytes is the largest frame this client accepts from the wire.
// Every frame is 4-byte length + body; the read side enforces a hard
// ceiling so a corrupt or hostile length prefix cannot force an
// unbounded allocation.
const maxFrameBytes = 100 << 20 // 100 MiB

// dialFrame opens a TCP connection to addr, wrapping it in TLS when
// tlsConfig is non-nil, applying timeout to both the dial and (for TLS)
// the handshake.
func dialFrame(addr string, timeout time.Duration, tlsConfig *tls.Config) (net.Conn, error) {
	dialer := net.Dialer{Timeout: timeout}
	conn, err := dialer.Dial("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("%w: dial %s: %v", flerr.ConnectionFailed, addr, err)
	}
	if tlsConfig == nil {
		return conn, nil
	}
	tlsConn := tls.Client(conn, tlsConfig)
	tlsConn.SetDeadline(time.Now().Add(timeout))
	if err := tlsConn.Handshake(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("%w: tls handshake %s: %v", flerr.ConnectionFailed, addr, err)
	}
	tlsConn.SetDeadline(time.Time{})
	return tlsConn, nil
}

// writeFrame writes a single length-prefixed frame to conn.
func writeFrame(conn net.Conn, body []byte) error {
	var lenBuf [4]byte
	binary.BigEndian.PutUint32(lenBuf[:], uint32(len(body)))
	if _, err := conn.Write(lenBuf[:]); err != nil {
		return fmt.Errorf("%w: %v", flerr.Disconnected, err)
	}
	if _, err := conn.Write(body); err != nil {
		return fmt.Errorf("%w: %v", flerr.Disconnected, err)
	}
	return nil
}

// readFrame reads a single length-prefixed frame from conn, rejecting
// length prefixes outside (0, maxFrameBytes] before allocating the body
// buffer: a zero-length frame carries no header and is never valid, and
// a negative or oversized one is either corrupt or hostile.
func readFrame(conn net.Conn) ([]byte, error) {
	var lenBuf [4]byte
	if _, err := io.ReadFull(conn, lenBuf[:]); err != nil {
		return nil, fmt.Errorf("%w: %v", flerr.Disconnected, err)
	}
	size := int32(binary.BigEndian.Uint32(lenBuf[:]))
	if size <= 0 {
		return nil, flerr.MalformedFrame
	}
	if size > maxFrameBytes {
		return nil, flerr.FrameTooLarge
	}
	body := make([]byte, size)
	if _, err := io.ReadFull(conn, body); err != nil {
		return nil, fmt.Errorf("%w: %v", flerr.Disconnected, err)
	}
	return body, nil
}
