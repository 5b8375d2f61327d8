// Package merkle builds and verifies the merkle root of a block's
// transaction list using the folding, in-place algorithm bitcoin itself
// uses, including its CVE-2012-2459 duplicate-sibling guard.
package merkle

import "github.com/blkrelay/relaynode/hashutil"

// Builder accumulates per-transaction hashes and folds them into a
// merkle root. Callers fill every slot (via Slot) before calling
// RootMatches; a Builder is single-use.
type Builder struct {
	hasher   hashutil.Hasher
	hashlist []hashutil.Hash
}

// NewBuilder returns a Builder sized for txCount transactions, using
// hasher for the pairwise folds. A nil hasher uses hashutil.Default.
func NewBuilder(txCount int, hasher hashutil.Hasher) *Builder {
	if hasher == nil {
		hasher = hashutil.Default
	}
	return &Builder{
		hasher:   hasher,
		hashlist: make([]hashutil.Hash, txCount),
	}
}

// Slot returns a pointer to the hash slot for transaction i, for the
// caller to fill with that transaction's own double-SHA256 digest.
func (b *Builder) Slot(i int) *hashutil.Hash {
	return &b.hashlist[i]
}

// RootMatches folds the accumulated transaction hashes into a merkle
// root and reports whether it equals match. The fold guards against
// CVE-2012-2459: if the last two leaves of any row being folded are
// identical, the tree is rejected outright rather than silently
// treating a duplicated transaction as distinct from its sibling.
func (b *Builder) RootMatches(match hashutil.Hash) bool {
	txCount := len(b.hashlist)
	if txCount == 0 {
		return false
	}

	stepCount := 1
	lastMax := txCount - 1

	for rowSize := txCount; rowSize > 1; rowSize = (rowSize + 1) / 2 {
		if b.hashlist[lastMax-stepCount] == b.hashlist[lastMax] {
			return false
		}

		for i := 0; i < rowSize; i += 2 {
			left := i * stepCount
			right := min((i+1)*stepCount, lastMax)
			b.hashlist[left] = b.hasher.PairSum(b.hashlist[left], b.hashlist[right])
		}

		lastMax = ((rowSize - 1) &^ 1) * stepCount
		stepCount *= 2
	}

	return b.hashlist[0] == match
}

func min(a, b int) int {
	if a < b {
		return a
	}
	return b
}
