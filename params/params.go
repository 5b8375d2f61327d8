package params

// RelayMagic identifies the start of a relay header on the wire.
const RelayMagic = "RLAY"

// BlockRelayType tags a relay header as carrying a compressed block.
const BlockRelayType = "BLK1"

const (
	// RelayHeaderSize is len(RelayMagic) + len(BlockRelayType) + uint32 length field.
	RelayHeaderSize = 12

	// BlockHeaderSize is the fixed size of a bitcoin block header.
	BlockHeaderSize = 80
)

// Size limits governing transaction admission into the relay caches.
// Values follow the reference FIBRE relay network's historical limits.
const (
	MaxRelayTransactionBytes            = 10000
	OldMaxRelayTransactionBytes         = 10000
	OldMaxRelayOversizeTransactionBytes = 100000
	OldMaxExtraOversizeTransactions     = 10
)

const (
	// DefaultCacheCapacity bounds each of the send/recv transaction caches.
	DefaultCacheCapacity = 5000

	// DefaultSeenBlockCapacity bounds the block-seen set.
	DefaultSeenBlockCapacity = 1000

	// MaxRelayBlockTxCount bounds both the compressor's accepted tx
	// count and the decompressor's relay-header tx count.
	MaxRelayBlockTxCount = 100000

	// MaxRawTransactionBytes bounds a single raw (non-indexed)
	// transaction read off the wire during decompression.
	MaxRawTransactionBytes = 1000000

	// MinBlockVersion is the lowest header version this codec will compress or decompress.
	MinBlockVersion = 4
)
