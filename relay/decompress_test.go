package relay

import (
	"bytes"
	"testing"

	"github.com/blkrelay/relaynode/hashutil"
	"github.com/blkrelay/relaynode/params"
	"github.com/blkrelay/relaynode/utils"
)

// fixedHeaderHasher computes the real double-SHA256 for everything
// except a bare 80-byte block header, for which it returns a fixed
// hash whose top-7 bytes are zero — letting tests exercise
// checkMerkle=true without mining a real header.
type fixedHeaderHasher struct {
	hashutil.Hasher
	fixed hashutil.Hash
}

func (h fixedHeaderHasher) Sum(data []byte) hashutil.Hash {
	if len(data) == params.BlockHeaderSize {
		return h.fixed
	}
	return h.Hasher.Sum(data)
}

func readerOf(b []byte) Read {
	r := bytes.NewReader(b)
	return func(p []byte) (int, error) {
		return r.Read(p)
	}
}

// compressedBodyAfterHeader builds the portion of a compressed block
// that DecompressRelayBlock actually consumes: the 80-byte header
// followed by one entry per tx, where entries[i] is either a raw
// marker or a slot-index marker.
func compressedBodyAfterHeader(header []byte, entries ...[]byte) []byte {
	buf := new(bytes.Buffer)
	buf.Write(header)
	for _, e := range entries {
		buf.Write(e)
	}
	return buf.Bytes()
}

func rawEntry(tx []byte) []byte {
	buf := new(bytes.Buffer)
	buf.WriteByte(0xff)
	buf.WriteByte(0xff)
	n := len(tx)
	buf.WriteByte(byte(n >> 16))
	buf.WriteByte(byte(n >> 8))
	buf.WriteByte(byte(n))
	buf.Write(tx)
	return buf.Bytes()
}

func indexEntry(idx uint16) []byte {
	return []byte{byte(idx >> 8), byte(idx)}
}

func blankHeader() []byte {
	h := make([]byte, params.BlockHeaderSize)
	h[0] = 4 // version
	return h
}

// TestDecompressRoundTrip is scenario S1 run end to end: the sender
// elides T3, T7, T0 from its send-cache; the receiver, holding the
// same three in its recv-cache at the same slots, reconstructs the
// identical block and loses exactly those three entries.
func TestDecompressRoundTrip(t *testing.T) {
	sender := newTestCodec(t)
	receiver := newTestCodec(t)

	txs := make([][]byte, 10)
	for i := range txs {
		txs[i] = buildTx(uint32(i))
		sender.sendCache.Add(txs[i], false)
		receiver.recvCache.Add(txs[i], false)
	}

	block := buildBlock([][]byte{txs[3], txs[7], txs[0]}, hashutil.Hash{})
	compressed, err := sender.MaybeCompressBlock(someHash(1), block, false)
	if err != nil {
		t.Fatalf("compress: %v", err)
	}

	body := compressed[params.RelayHeaderSize:]
	wireBytes, got, _, err := receiver.DecompressRelayBlock(readerOf(body), 3, false)
	if err != nil {
		t.Fatalf("decompress: %v", err)
	}

	if err := utils.TCheckBytes("roundtrip block", block, got); err != nil {
		t.Fatal(err)
	}
	if wireBytes != params.RelayHeaderSize+len(body) {
		t.Fatalf("wireBytes = %d, want %d", wireBytes, params.RelayHeaderSize+len(body))
	}
	if receiver.recvCache.Len() != 7 {
		t.Fatalf("expected 7 txs remaining in recv-cache, got %d", receiver.recvCache.Len())
	}
}

// TestDecompressMixedCachedAndNovel is testable property 2: a block
// with a mix of cached and novel transactions decompresses exactly,
// and the novel transactions are not re-admitted into the recv-cache.
func TestDecompressMixedCachedAndNovel(t *testing.T) {
	receiver := newTestCodec(t)

	cached := buildTx(1)
	novel := buildTx(2)
	receiver.recvCache.Add(cached, false)

	header := blankHeader()
	body := compressedBodyAfterHeader(header, indexEntry(0), rawEntry(novel))

	wireBytes, got, _, err := receiver.DecompressRelayBlock(readerOf(body), 2, false)
	if err != nil {
		t.Fatalf("decompress: %v", err)
	}
	if wireBytes <= 0 {
		t.Fatal("expected positive wire byte count")
	}

	want := buildBlock([][]byte{cached, novel}, hashutil.Hash{})
	want = append(append([]byte{}, header...), want[params.BlockHeaderSize:]...)
	if err := utils.TCheckBytes("reconstructed block", want, got); err != nil {
		t.Fatal(err)
	}

	if receiver.recvCache.Contains(novel) {
		t.Fatal("novel tx must not be admitted into the recv-cache by decompression")
	}
	if receiver.recvCache.Len() != 0 {
		t.Fatalf("cached tx should have been consumed, recv-cache len = %d", receiver.recvCache.Len())
	}
}

// TestDecompressTooManyTransactions is scenario S5.
func TestDecompressTooManyTransactions(t *testing.T) {
	receiver := newTestCodec(t)

	_, _, _, err := receiver.DecompressRelayBlock(readerOf(nil), params.MaxRelayBlockTxCount+1, false)
	if err != ErrTooManyTransactions {
		t.Fatalf("expected ErrTooManyTransactions, got %v", err)
	}
}

// TestDecompressRejectsDuplicateSibling is scenario S6: two
// transactions with identical hashes must fail merkle validation even
// though the naive root would happen to match.
func TestDecompressRejectsDuplicateSibling(t *testing.T) {
	receiver := newTestCodec(t)
	var fixedHash hashutil.Hash
	fixedHash[0] = 0x42 // top-7 bytes zero: passes the work check
	receiver.cfg.Hasher = fixedHeaderHasher{Hasher: hashutil.Default, fixed: fixedHash}

	tx := buildTx(1)
	header := blankHeader()
	txHash := hashutil.Default.Sum(tx)
	naiveRoot := hashutil.Default.PairSum(txHash, txHash)
	copy(header[4+32:4+32+32], naiveRoot[:])
	body := compressedBodyAfterHeader(header, rawEntry(tx), rawEntry(tx))

	_, _, gotHash, err := receiver.DecompressRelayBlock(readerOf(body), 2, true)
	if err != ErrMerkleRootMismatch {
		t.Fatalf("expected ErrMerkleRootMismatch, got %v", err)
	}
	if gotHash != fixedHash {
		t.Fatalf("hash = %x, want %x", gotHash, fixedHash)
	}
}

// TestDecompressRecordsSeenBeforeMerkleCheck preserves the design
// note's documented ordering: a block is recorded in the block-seen
// set even when its merkle root later fails to validate.
func TestDecompressRecordsSeenBeforeMerkleCheck(t *testing.T) {
	receiver := newTestCodec(t)
	var fixedHash hashutil.Hash
	fixedHash[0] = 0x7 // top-7 bytes zero
	receiver.cfg.Hasher = fixedHeaderHasher{Hasher: hashutil.Default, fixed: fixedHash}

	tx := buildTx(1)
	header := blankHeader()
	body := compressedBodyAfterHeader(header, rawEntry(tx), rawEntry(tx))

	if _, _, _, err := receiver.DecompressRelayBlock(readerOf(body), 2, true); err != ErrMerkleRootMismatch {
		t.Fatalf("expected ErrMerkleRootMismatch, got %v", err)
	}

	if !receiver.seen.Contains(fixedHash) {
		t.Fatal("block hash should be recorded as seen even though merkle validation failed")
	}
}

// TestRoundTripWithMerkleValidation exercises compress then decompress
// with checkMerkle=true on both sides, proving invariant 1: a block
// whose every tx is cached on both ends round-trips byte-for-byte and
// both caches lose exactly those entries.
func TestRoundTripWithMerkleValidation(t *testing.T) {
	sender := newTestCodec(t)
	receiver := newTestCodec(t)

	var fixed hashutil.Hash
	fixed[0] = 0x9 // top-7 bytes zero
	receiver.cfg.Hasher = fixedHeaderHasher{Hasher: hashutil.Default, fixed: fixed}

	txs := [][]byte{buildTx(1), buildTx(2), buildTx(3)}
	for _, tx := range txs {
		sender.sendCache.Add(tx, false)
		receiver.recvCache.Add(tx, false)
	}

	root := computeMerkleRoot(txs)
	block := buildBlock(txs, root)

	compressed, err := sender.MaybeCompressBlock(fixed, block, true)
	if err != nil {
		t.Fatalf("compress: %v", err)
	}

	body := compressed[params.RelayHeaderSize:]
	_, got, gotHash, err := receiver.DecompressRelayBlock(readerOf(body), uint32(len(txs)), true)
	if err != nil {
		t.Fatalf("decompress: %v", err)
	}
	if gotHash != fixed {
		t.Fatalf("returned hash = %x, want %x", gotHash, fixed)
	}
	if err := utils.TCheckBytes("merkle-validated roundtrip", block, got); err != nil {
		t.Fatal(err)
	}
	if sender.sendCache.Len() != 0 || receiver.recvCache.Len() != 0 {
		t.Fatal("both caches should be empty after relaying every tx")
	}
}

// TestDecompressMissingReferencedTx covers the case where a wire
// index points at a recv-cache slot that is no longer present.
func TestDecompressMissingReferencedTx(t *testing.T) {
	receiver := newTestCodec(t)

	header := blankHeader()
	body := compressedBodyAfterHeader(header, indexEntry(0))

	if _, _, _, err := receiver.DecompressRelayBlock(readerOf(body), 1, false); err != ErrMissingReferencedTx {
		t.Fatalf("expected ErrMissingReferencedTx, got %v", err)
	}
}
