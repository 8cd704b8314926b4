package store

const (
	// PrefixBlock is followed by the big-endian uint64 height.
	PrefixBlock = "blk:"

	// KeyHashLookup holds the JSON map block hash -> height.
	KeyHashLookup = "HASH_LOOKUP"
	// KeyStarLookup holds the JSON map star id -> height.
	KeyStarLookup = "STAR_LOOKUP"
)
