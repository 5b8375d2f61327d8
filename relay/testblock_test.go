package relay

import (
	"bytes"
	"encoding/binary"

	"github.com/blkrelay/relaynode/hashutil"
	"github.com/blkrelay/relaynode/params"
)

// buildTx returns a minimal, well-formed transaction: version, zero
// inputs, zero outputs, locktime. tag is folded into the locktime so
// distinct calls produce distinct transactions.
func buildTx(tag uint32) []byte {
	buf := new(bytes.Buffer)
	binary.Write(buf, binary.LittleEndian, uint32(1)) // version
	buf.WriteByte(0)                                  // 0 inputs
	buf.WriteByte(0)                                  // 0 outputs
	binary.Write(buf, binary.LittleEndian, tag)        // locktime
	return buf.Bytes()
}

// buildBlock assembles a well-formed raw block (80-byte header + varint
// tx count + txs) out of txs, filling in the header's merkle root from
// the supplied hashes and leaving version/prevhash/time/bits/nonce at
// fixed, version>=4 values.
func buildBlock(txs [][]byte, merkleRoot hashutil.Hash) []byte {
	buf := new(bytes.Buffer)
	binary.Write(buf, binary.LittleEndian, int32(4)) // version
	buf.Write(make([]byte, 32))                      // prev hash
	buf.Write(merkleRoot[:])                         // merkle root
	buf.Write(make([]byte, params.BlockHeaderSize-4-32-32))

	header := buf.Bytes()

	body := new(bytes.Buffer)
	body.Write(header)
	appendVarint(body, uint64(len(txs)))
	for _, tx := range txs {
		body.Write(tx)
	}
	return body.Bytes()
}

// computeMerkleRoot hashes each tx and folds them with the same
// algorithm the merkle package implements, for building expected
// headers in tests.
func computeMerkleRoot(txs [][]byte) hashutil.Hash {
	hashes := make([]hashutil.Hash, len(txs))
	for i, tx := range txs {
		hashes[i] = hashutil.Default.Sum(tx)
	}
	return foldMerkle(hashes)
}

func foldMerkle(hashes []hashutil.Hash) hashutil.Hash {
	if len(hashes) == 1 {
		return hashes[0]
	}
	row := hashes
	for len(row) > 1 {
		var next []hashutil.Hash
		for i := 0; i < len(row); i += 2 {
			right := row[i]
			if i+1 < len(row) {
				right = row[i+1]
			}
			next = append(next, hashutil.Default.PairSum(row[i], right))
		}
		row = next
	}
	return row[0]
}
