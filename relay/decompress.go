package relay

import (
	"bytes"
	"encoding/binary"

	"github.com/blkrelay/relaynode/hashutil"
	"github.com/blkrelay/relaynode/merkle"
	"github.com/blkrelay/relaynode/params"
)

// Read is the blocking byte-read contract DecompressRelayBlock drives:
// it behaves like io.Reader.Read, returning the number of bytes
// actually placed in p and any error (including a short read).
type Read func(p []byte) (int, error)

// txSlot holds one transaction's data as it is reconstructed, either
// read raw off the wire or recovered from the recv-cache.
type txSlot struct {
	index int // wire index; 0xffff for raw entries
	data  []byte
}

// DecompressRelayBlock reads a compressed block body from read —
// messageSize transactions' worth of indices/raw-data, following the
// 80-byte block header this function reads first — and reconstructs
// the original block. It returns the wire-byte count (the 12-byte relay
// header the caller has already consumed plus every byte consumed from
// read), the reconstructed block, and the block's own hash.
//
// The codec's mutex is held for the whole call, including while
// blocked inside read: the recv-cache's slot numbers must not move
// between reading a wire index and resolving it with RemoveByIndex.
func (c *Codec) DecompressRelayBlock(read Read, messageSize uint32, checkMerkle bool) (wireBytes int, block []byte, hash hashutil.Hash, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if messageSize > params.MaxRelayBlockTxCount {
		return 0, nil, hashutil.Hash{}, ErrTooManyTransactions
	}

	wireBytes = params.RelayHeaderSize
	r := readFuller(read)

	header, rerr := readN(r, params.BlockHeaderSize, &wireBytes, ErrReadBlockHeader)
	if rerr != nil {
		return 0, nil, hashutil.Hash{}, rerr
	}

	version := int32(binary.LittleEndian.Uint32(header[:4]))
	if !c.cfg.TestData && version < params.MinBlockVersion {
		return 0, nil, hashutil.Hash{}, ErrBlockVersionTooOld
	}

	hash = c.cfg.Hasher.Sum(header)
	c.insertSeen(hash)

	if checkMerkle && !meetsMinimumWork(hash) {
		return 0, nil, hash, ErrBelowWorkTarget
	}

	out := new(bytes.Buffer)
	out.Write(header)
	if err := appendVarint(out, uint64(messageSize)); err != nil {
		return 0, nil, hash, err
	}

	var builder *merkle.Builder
	if checkMerkle {
		builder = merkle.NewBuilder(int(messageSize), c.cfg.Hasher)
	}

	slots := make([]txSlot, messageSize)
	var pending []indexPtr

	for i := uint32(0); i < messageSize; i++ {
		idxBytes, rerr := readN(r, 2, &wireBytes, ErrReadTxIndex)
		if rerr != nil {
			return 0, nil, hash, rerr
		}
		index := int(binary.BigEndian.Uint16(idxBytes))
		slots[i].index = index

		if index == 0xffff {
			lenBytes, rerr := readN(r, 3, &wireBytes, ErrReadTxLength)
			if rerr != nil {
				return 0, nil, hash, rerr
			}
			txLen := int(lenBytes[0])<<16 | int(lenBytes[1])<<8 | int(lenBytes[2])
			if txLen > params.MaxRawTransactionBytes {
				return 0, nil, hash, ErrTxTooLarge
			}

			data, rerr := readN(r, txLen, &wireBytes, ErrReadTxData)
			if rerr != nil {
				return 0, nil, hash, rerr
			}
			slots[i].data = data

			if checkMerkle {
				*builder.Slot(int(i)) = c.cfg.Hasher.Sum(data)
			}
		} else {
			pending = append(pending, indexPtr{index: index, pos: int(i)})
		}
	}

	tweakSort(pending, 0, len(pending))

	for _, ptr := range pending {
		entry, ok := c.recvCache.RemoveByIndex(ptr.index)
		if !ok {
			return 0, nil, hash, ErrMissingReferencedTx
		}
		slots[ptr.pos].data = entry.Data
		if checkMerkle {
			*builder.Slot(ptr.pos) = entry.Hash
		}
	}

	for i := range slots {
		out.Write(slots[i].data)
	}

	block = out.Bytes()

	if checkMerkle {
		var root hashutil.Hash
		copy(root[:], block[4+32:4+32+32])
		if !builder.RootMatches(root) {
			return 0, nil, hash, ErrMerkleRootMismatch
		}
	}

	return wireBytes, block, hash, nil
}
