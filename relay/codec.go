// Package relay implements the block-relay compression codec: an
// outbound compressor that elides transactions a peer already has,
// and an inbound decompressor that splices them back in and verifies
// the reconstructed block's Merkle root.
package relay

import (
	"bytes"
	"encoding/binary"
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/blkrelay/relaynode/hashutil"
	"github.com/blkrelay/relaynode/merkle"
	"github.com/blkrelay/relaynode/params"
	"github.com/blkrelay/relaynode/txcache"
	"github.com/blkrelay/relaynode/utils"
)

var logger = utils.NewLogger("relay")

// Config controls a Codec's admission limits and cache sizing. The
// zero Config is not usable; build one with DefaultConfig and
// override fields as needed.
type Config struct {
	// UseOldFlags selects the legacy oversize-transaction admission
	// rules instead of the single-limit new-flags rules.
	UseOldFlags bool

	MaxRelayTransactionBytes            int
	OldMaxRelayTransactionBytes         int
	OldMaxRelayOversizeTransactionBytes int
	OldMaxExtraOversizeTransactions     int

	SendCacheCapacity int
	RecvCacheCapacity int
	SeenBlockCapacity int

	// Hasher overrides the double-SHA256 primitive; nil uses
	// hashutil.Default.
	Hasher hashutil.Hasher

	// TestData disables the block-version sanity check, matching the
	// original implementation's TEST_DATA build flag.
	TestData bool
}

// DefaultConfig returns a Config with the reference FIBRE relay
// network's historical size limits and cache capacities.
func DefaultConfig() Config {
	return Config{
		MaxRelayTransactionBytes:            params.MaxRelayTransactionBytes,
		OldMaxRelayTransactionBytes:         params.OldMaxRelayTransactionBytes,
		OldMaxRelayOversizeTransactionBytes: params.OldMaxRelayOversizeTransactionBytes,
		OldMaxExtraOversizeTransactions:     params.OldMaxExtraOversizeTransactions,
		SendCacheCapacity:                   params.DefaultCacheCapacity,
		RecvCacheCapacity:                   params.DefaultCacheCapacity,
		SeenBlockCapacity:                   params.DefaultSeenBlockCapacity,
	}
}

// Codec is a bidirectional block-relay compressor/decompressor for a
// single peer pairing. One mutex guards every piece of state: both
// tx-caches, the block-seen set, and the in-flight parse state of
// whichever public operation currently holds it. Suspension only
// happens inside DecompressRelayBlock's read callback, and the mutex
// is deliberately held across it — the recv-cache's slot numbering
// must not move between reading a wire index and resolving it.
type Codec struct {
	mu sync.Mutex

	cfg Config

	sendCache *txcache.Cache
	recvCache *txcache.Cache
	seen      *lru.Cache[hashutil.Hash, struct{}]
}

// New builds a Codec from cfg.
func New(cfg Config) (*Codec, error) {
	if cfg.Hasher == nil {
		cfg.Hasher = hashutil.Default
	}

	seen, err := lru.New[hashutil.Hash, struct{}](cfg.SeenBlockCapacity)
	if err != nil {
		return nil, err
	}

	return &Codec{
		cfg:       cfg,
		sendCache: txcache.New(cfg.SendCacheCapacity, cfg.Hasher),
		recvCache: txcache.New(cfg.RecvCacheCapacity, cfg.Hasher),
		seen:      seen,
	}, nil
}

// Reset empties both tx-caches. The block-seen set is left untouched.
func (c *Codec) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.sendCache.Clear()
	c.recvCache.Clear()
}

// GetRelayTransaction applies the send-side admission gate to tx. It
// returns (tx, true) if the peer does not yet have it and it was
// admitted into the send-cache, or (nil, false) if the peer already
// has it or it was rejected as oversize.
func (c *Codec) GetRelayTransaction(tx []byte) ([]byte, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.sendCache.Contains(tx) {
		return nil, false
	}

	size := len(tx)
	if !c.cfg.UseOldFlags {
		if size > c.cfg.MaxRelayTransactionBytes {
			return nil, false
		}
		c.sendCache.Add(tx, false)
		return tx, true
	}

	oversize := size > c.cfg.OldMaxRelayTransactionBytes
	if oversize && (c.sendCache.FlagCount() >= c.cfg.OldMaxExtraOversizeTransactions ||
		size > c.cfg.OldMaxRelayOversizeTransactionBytes) {
		return nil, false
	}
	c.sendCache.Add(tx, oversize)
	return tx, true
}

// checkRecvTx reports whether a transaction of the given size would
// be admitted into the recv-cache under the configured flags mode.
// Callers must hold c.mu.
func (c *Codec) checkRecvTx(size int) bool {
	if !c.cfg.UseOldFlags {
		return size <= c.cfg.MaxRelayTransactionBytes
	}
	return size <= c.cfg.OldMaxRelayTransactionBytes ||
		(c.recvCache.FlagCount() < c.cfg.OldMaxExtraOversizeTransactions &&
			size <= c.cfg.OldMaxRelayOversizeTransactionBytes)
}

// MaybeRecvTxOfSize reports whether a transaction of the given size
// would currently be admitted into the recv-cache. When debugPrint is
// set, a rejection is logged at debug level, mirroring the original
// implementation's optional debug print.
func (c *Codec) MaybeRecvTxOfSize(size int, debugPrint bool) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.checkRecvTx(size) {
		if debugPrint {
			logger.Debug("freely relayed tx of size %d, with %d oversize txn already present\n",
				size, c.recvCache.FlagCount())
		}
		return false
	}
	return true
}

// RecvTx unconditionally admits tx into the recv-cache. Callers must
// have already confirmed admission via MaybeRecvTxOfSize.
func (c *Codec) RecvTx(tx []byte) {
	c.mu.Lock()
	defer c.mu.Unlock()

	size := len(tx)
	oversize := c.cfg.UseOldFlags && size > c.cfg.OldMaxRelayTransactionBytes
	c.recvCache.Add(tx, oversize)
}

// ForEachSentTx visits every transaction currently held in the
// send-cache, in insertion order.
func (c *Codec) ForEachSentTx(cb func(tx []byte)) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.sendCache.ForAll(cb)
}

// WasTxSent reports whether a transaction with the given hash is
// currently held in the send-cache.
func (c *Codec) WasTxSent(hash hashutil.Hash) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.sendCache.ContainsByHash(hash)
}

// BlockSent records hash as sent and reports whether it was new.
func (c *Codec) BlockSent(hash hashutil.Hash) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.insertSeen(hash)
}

// BlocksSent returns the number of distinct block hashes recorded so
// far.
func (c *Codec) BlocksSent() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.seen.Len()
}

// SendCacheLen returns the number of transactions currently held in
// the send-cache.
func (c *Codec) SendCacheLen() int {
	return c.sendCache.Len()
}

// RecvCacheLen returns the number of transactions currently held in
// the recv-cache.
func (c *Codec) RecvCacheLen() int {
	return c.recvCache.Len()
}

// insertSeen adds hash to the block-seen set and reports whether it
// was new. Callers must hold c.mu.
func (c *Codec) insertSeen(hash hashutil.Hash) bool {
	if c.seen.Contains(hash) {
		return false
	}
	c.seen.Add(hash, struct{}{})
	return true
}

func meetsMinimumWork(hash hashutil.Hash) bool {
	for i := 25; i <= 31; i++ {
		if hash[i] != 0 {
			return false
		}
	}
	return true
}

// MaybeCompressBlock compresses block, a raw 80-byte-header block
// followed by its varint transaction count and transactions, eliding
// any transaction already present in the send-cache. hash is the
// block's own double-SHA256 hash (header-only), used for the
// proof-of-work sanity check and the block-seen set.
//
// Exactly one of the returned byte slice and error is non-nil.
func (c *Codec) MaybeCompressBlock(hash hashutil.Hash, block []byte, checkMerkle bool) ([]byte, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sendCache.LockHint()
	defer c.sendCache.EndBatch()

	if checkMerkle && !meetsMinimumWork(hash) {
		return nil, ErrBadWork
	}

	if c.seen.Contains(hash) {
		return nil, ErrSeen
	}

	out, err := c.compressBody(block, checkMerkle)
	if err != nil {
		return nil, err
	}

	if !c.insertSeen(hash) {
		return nil, ErrMutexBroken
	}

	return out, nil
}

func (c *Codec) compressBody(block []byte, checkMerkle bool) ([]byte, error) {
	p := &blockReader{buf: block}

	verBytes, err := p.take(4)
	if err != nil {
		return nil, err
	}
	version := int32(binary.LittleEndian.Uint32(verBytes))
	if !c.cfg.TestData && version < params.MinBlockVersion {
		return nil, ErrSmallVersion
	}

	if err := p.skip(32); err != nil { // prev block hash
		return nil, err
	}
	merkleRootOffset := p.pos
	if err := p.skip(32); err != nil { // merkle root
		return nil, err
	}
	if err := p.skip(params.BlockHeaderSize - (4 + 32 + 32)); err != nil { // time, bits, nonce
		return nil, err
	}

	txCount, err := p.varint()
	if err != nil {
		return nil, err
	}
	if txCount < 1 || txCount > params.MaxRelayBlockTxCount {
		return nil, ErrTxCountRange
	}

	out := new(bytes.Buffer)
	out.WriteString(params.RelayMagic)
	out.WriteString(params.BlockRelayType)
	binary.Write(out, binary.BigEndian, uint32(txCount))
	out.Write(block[:params.BlockHeaderSize])

	var builder *merkle.Builder
	if checkMerkle {
		builder = merkle.NewBuilder(int(txCount), c.cfg.Hasher)
	}

	for i := uint64(0); i < txCount; i++ {
		txStart := p.pos
		if err := c.walkTransaction(p); err != nil {
			return nil, err
		}
		txBytes := block[txStart:p.pos]

		slotIdx, found := c.sendCache.RemoveByContent(txBytes)

		if checkMerkle {
			*builder.Slot(int(i)) = c.cfg.Hasher.Sum(txBytes)
		}

		if !found {
			out.WriteByte(0xff)
			out.WriteByte(0xff)
			txLen := len(txBytes)
			out.WriteByte(byte(txLen >> 16))
			out.WriteByte(byte(txLen >> 8))
			out.WriteByte(byte(txLen))
			out.Write(txBytes)
		} else {
			out.WriteByte(byte(slotIdx >> 8))
			out.WriteByte(byte(slotIdx))
		}
	}

	if checkMerkle {
		var root hashutil.Hash
		copy(root[:], block[merkleRootOffset:merkleRootOffset+32])
		if !builder.RootMatches(root) {
			return nil, ErrInvalidMerkle
		}
	}

	return out.Bytes(), nil
}

// walkTransaction advances p past exactly one transaction: 4-byte
// version, varint input count with {36-byte outpoint, varint
// scriptlen, scriptlen bytes, 4-byte sequence} per input, varint
// output count with {8-byte value, varint scriptlen, scriptlen bytes}
// per output, and a 4-byte locktime.
func (c *Codec) walkTransaction(p *blockReader) error {
	if err := p.skip(4); err != nil {
		return err
	}

	inCount, err := p.varint()
	if err != nil {
		return err
	}
	for j := uint64(0); j < inCount; j++ {
		if err := p.skip(36); err != nil {
			return err
		}
		scriptLen, err := p.varint()
		if err != nil {
			return err
		}
		if err := p.skip(int(scriptLen) + 4); err != nil {
			return err
		}
	}

	outCount, err := p.varint()
	if err != nil {
		return err
	}
	for j := uint64(0); j < outCount; j++ {
		if err := p.skip(8); err != nil {
			return err
		}
		scriptLen, err := p.varint()
		if err != nil {
			return err
		}
		if err := p.skip(int(scriptLen)); err != nil {
			return err
		}
	}

	return p.skip(4)
}
