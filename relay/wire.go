package relay

import (
	"bytes"
	"io"

	"github.com/btcsuite/btcd/wire"
)

// blockReader walks a raw block buffer the same way the compressor's
// original C++ forebear walked it with a plain const_iterator: an
// offset that only ever moves forward, with every step bounds-checked.
type blockReader struct {
	buf []byte
	pos int
}

func (p *blockReader) take(n int) ([]byte, error) {
	if n < 0 || n > len(p.buf)-p.pos {
		return nil, ErrInvalidSize
	}
	b := p.buf[p.pos : p.pos+n]
	p.pos += n
	return b, nil
}

func (p *blockReader) skip(n int) error {
	_, err := p.take(n)
	return err
}

// varint reads a bitcoin-style variable length integer starting at
// the current position.
func (p *blockReader) varint() (uint64, error) {
	r := bytes.NewReader(p.buf[p.pos:])
	v, err := wire.ReadVarInt(r, 0)
	if err != nil {
		return 0, ErrInvalidSize
	}
	p.pos += len(p.buf[p.pos:]) - r.Len()
	return v, nil
}

// appendVarint appends the wire encoding of v to buf.
func appendVarint(buf *bytes.Buffer, v uint64) error {
	return wire.WriteVarInt(buf, 0, v)
}

// readFuller adapts the decompressor's blocking read callback
// (matching the spec's read(buf) (int, error) contract) to io.Reader
// so the standard library's io.ReadFull can drive it.
type readFuller func([]byte) (int, error)

func (f readFuller) Read(p []byte) (int, error) {
	return f(p)
}

// readN reads exactly n bytes via read, returning wireErr (rather than
// the underlying io error) on any short read or failure, and adding
// the bytes actually consumed to *wireBytes.
func readN(read readFuller, n int, wireBytes *int, wireErr error) ([]byte, error) {
	buf := make([]byte, n)
	got, err := io.ReadFull(read, buf)
	*wireBytes += got
	if err != nil || got != n {
		return nil, wireErr
	}
	return buf, nil
}
