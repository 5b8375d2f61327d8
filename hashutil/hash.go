// Package hashutil supplies the double-SHA256 primitive the relay codec
// is built on top of, without baking a specific hash library into merkle
// or relay themselves.
package hashutil

import "github.com/btcsuite/btcd/chaincfg/chainhash"

// Size is the byte length of a block hash.
const Size = chainhash.HashSize

// Hash is a 32-byte double-SHA256 digest, little-endian as bitcoin wire
// formats expect.
type Hash [Size]byte

// Hasher computes the double-SHA256 digests the merkle builder and the
// relay codec need. It is an interface so tests can swap in a stub.
type Hasher interface {
	// Sum returns the double-SHA256 digest of data.
	Sum(data []byte) Hash
	// PairSum returns the double-SHA256 digest of left||right, the
	// operation a merkle tree folds two sibling hashes through.
	PairSum(left, right Hash) Hash
}

// Default is the chainhash-backed Hasher used outside of tests.
var Default Hasher = doubleSHA256{}

type doubleSHA256 struct{}

func (doubleSHA256) Sum(data []byte) Hash {
	return Hash(chainhash.DoubleHashH(data))
}

func (doubleSHA256) PairSum(left, right Hash) Hash {
	var buf [2 * Size]byte
	copy(buf[:Size], left[:])
	copy(buf[Size:], right[:])
	return Hash(chainhash.DoubleHashH(buf[:]))
}
