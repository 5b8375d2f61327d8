package main

import (
	"bytes"
	"fmt"

	"github.com/btcsuite/btcd/wire"
)

// splitTransactions walks a raw block's 80-byte header and varint
// transaction count, returning each transaction's raw bytes. It
// mirrors relay.Codec's internal block walker closely enough for
// benchmarking purposes but is not itself part of the codec.
func splitTransactions(block []byte) ([][]byte, error) {
	if len(block) < 80 {
		return nil, fmt.Errorf("block shorter than an 80-byte header")
	}

	r := bytes.NewReader(block[80:])
	txCount, err := wire.ReadVarInt(r, 0)
	if err != nil {
		return nil, fmt.Errorf("read tx count: %w", err)
	}

	pos := len(block) - r.Len()
	txs := make([][]byte, 0, txCount)
	for i := uint64(0); i < txCount; i++ {
		start := pos
		n, err := walkTransaction(block[pos:])
		if err != nil {
			return nil, fmt.Errorf("tx %d: %w", i, err)
		}
		pos += n
		txs = append(txs, block[start:pos])
	}
	return txs, nil
}

// walkTransaction returns the byte length of the single transaction
// starting at buf[0].
func walkTransaction(buf []byte) (int, error) {
	r := bytes.NewReader(buf)

	if _, err := r.Seek(4, 0); err != nil { // version
		return 0, err
	}

	inCount, err := wire.ReadVarInt(r, 0)
	if err != nil {
		return 0, err
	}
	for j := uint64(0); j < inCount; j++ {
		if _, err := r.Seek(36, 1); err != nil { // outpoint
			return 0, err
		}
		scriptLen, err := wire.ReadVarInt(r, 0)
		if err != nil {
			return 0, err
		}
		if _, err := r.Seek(int64(scriptLen)+4, 1); err != nil { // script + sequence
			return 0, err
		}
	}

	outCount, err := wire.ReadVarInt(r, 0)
	if err != nil {
		return 0, err
	}
	for j := uint64(0); j < outCount; j++ {
		if _, err := r.Seek(8, 1); err != nil { // value
			return 0, err
		}
		scriptLen, err := wire.ReadVarInt(r, 0)
		if err != nil {
			return 0, err
		}
		if _, err := r.Seek(int64(scriptLen), 1); err != nil { // script
			return 0, err
		}
	}

	if _, err := r.Seek(4, 1); err != nil { // locktime
		return 0, err
	}

	return len(buf) - r.Len(), nil
}
