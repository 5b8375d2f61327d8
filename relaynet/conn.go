// Package relaynet is the minimal TCP transport that carries
// compressed blocks between two relay.Codec instances. It is not a
// node's connection manager: no peer discovery, no handshake, no
// identity — just enough byte-stream plumbing to drive
// relay.Codec.DecompressRelayBlock's blocking read-callback contract
// over a real socket, adapted from utils/tcp.go's accept-loop shape.
package relaynet

import (
	"encoding/binary"
	"io"
	"net"
	"time"

	"github.com/blkrelay/relaynode/params"
	"github.com/blkrelay/relaynode/utils"
)

var logger = utils.NewLogger("relaynet")

// ReadTimeout bounds a single underlying socket read. The relay codec
// itself imposes no timeouts (per spec.md §5); this is the transport
// layer's own deadline, surfaced to the decompressor as an ordinary
// short-read error.
const ReadTimeout = 30 * time.Second

// Conn is a single peer connection framed around relay headers. Its
// Read method satisfies relay.Read directly, so a Codec can be handed
// conn.Read (after ReadRelayHeader has consumed the 12-byte relay
// header) with no adapter in between.
type Conn struct {
	tcp *net.TCPConn
}

func newConn(tcp *net.TCPConn) *Conn {
	tcp.SetNoDelay(true)
	return &Conn{tcp: tcp}
}

// Dial connects to a peer's relaynet Listener.
func Dial(addr string) (*Conn, error) {
	raw, err := net.DialTimeout("tcp", addr, 5*time.Second)
	if err != nil {
		return nil, err
	}
	return newConn(raw.(*net.TCPConn)), nil
}

// Read implements relay.Read: a blocking read off the socket, bounded
// by ReadTimeout. A timeout surfaces as an ordinary error, which
// DecompressRelayBlock maps to one of its stable wire-read failures.
func (c *Conn) Read(p []byte) (int, error) {
	c.tcp.SetReadDeadline(time.Now().Add(ReadTimeout))
	return c.tcp.Read(p)
}

// ReadRelayHeader reads and validates the fixed 12-byte relay header
// (magic, type, big-endian tx-count), returning the tx count that
// becomes DecompressRelayBlock's messageSize argument. The caller is
// expected to pass c.Read itself as the decompressor's read callback
// immediately afterward.
func (c *Conn) ReadRelayHeader() (uint32, error) {
	hdr := make([]byte, params.RelayHeaderSize)
	if _, err := io.ReadFull(c, hdr); err != nil {
		return 0, err
	}
	if string(hdr[:4]) != params.RelayMagic {
		return 0, ErrBadMagic
	}
	if string(hdr[4:8]) != params.BlockRelayType {
		return 0, ErrUnsupportedType
	}
	return binary.BigEndian.Uint32(hdr[8:12]), nil
}

// SendCompressedBlock writes a fully-encoded compressed block — relay
// header, 80-byte block header, and entries, exactly as returned by
// Codec.MaybeCompressBlock — to the peer in one write.
func (c *Conn) SendCompressedBlock(compressed []byte) error {
	c.tcp.SetWriteDeadline(time.Now().Add(ReadTimeout))
	_, err := c.tcp.Write(compressed)
	return err
}

// RemoteAddr returns the address of the peer at the other end.
func (c *Conn) RemoteAddr() net.Addr {
	return c.tcp.RemoteAddr()
}

// Close closes the underlying socket.
func (c *Conn) Close() error {
	return c.tcp.Close()
}
