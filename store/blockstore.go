package store

import (
	"encoding/binary"
	"fmt"
	"sort"

	"github.com/mezonai/starchain/block"
	"github.com/mezonai/starchain/db"
	"github.com/mezonai/starchain/jsonx"
	"github.com/mezonai/starchain/logx"
)

// BlockStore maps chain heights and the two lookup indexes onto a provider.
// It holds no chain state of its own; ordering and locking belong to the caller.
type BlockStore struct {
	provider db.IterableProvider
	txm      *db.DBTxManager
}

// NewBlockStore creates a block store on top of the given provider
func NewBlockStore(provider db.IterableProvider) (*BlockStore, error) {
	if provider == nil {
		return nil, fmt.Errorf("provider cannot be nil")
	}

	return &BlockStore{
		provider: provider,
		txm:      db.NewDBTxManager(provider),
	}, nil
}

// heightToBlockKey converts a height to a block storage key
func heightToBlockKey(height uint64) []byte {
	key := make([]byte, len(PrefixBlock)+8)
	copy(key, PrefixBlock)
	binary.BigEndian.PutUint64(key[len(PrefixBlock):], height)
	return key
}

func blockKeyToHeight(key []byte) (uint64, bool) {
	if len(key) != len(PrefixBlock)+8 || string(key[:len(PrefixBlock)]) != PrefixBlock {
		return 0, false
	}
	return binary.BigEndian.Uint64(key[len(PrefixBlock):]), true
}

// RawBlock returns the stored bytes at height, or nil when nothing is stored there.
func (s *BlockStore) RawBlock(height uint64) ([]byte, error) {
	value, err := s.provider.Get(heightToBlockKey(height))
	if err != nil {
		return nil, fmt.Errorf("failed to get block %d: %w", height, err)
	}
	return value, nil
}

// Block retrieves and decodes the block at height. A missing block yields (nil, nil);
// undecodable bytes yield an error wrapping block.ErrFormat.
func (s *BlockStore) Block(height uint64) (*block.Block, error) {
	value, err := s.RawBlock(height)
	if err != nil || value == nil {
		return nil, err
	}

	blk, err := block.Deserialize(value)
	if err != nil {
		logx.Error("BLOCKSTORE", "Failed to decode block ", height, " error: ", err)
		return nil, fmt.Errorf("block %d: %w", height, err)
	}
	return blk, nil
}

// HasBlock checks if a block exists at the given height
func (s *BlockStore) HasBlock(height uint64) (bool, error) {
	exists, err := s.provider.Has(heightToBlockKey(height))
	if err != nil {
		return false, fmt.Errorf("failed to check block %d: %w", height, err)
	}
	return exists, nil
}

// Heights lists every stored block height in ascending order. Reserved index keys
// live outside the block prefix and are never included.
func (s *BlockStore) Heights() ([]uint64, error) {
	heights := make([]uint64, 0)
	err := s.provider.IteratePrefix([]byte(PrefixBlock), func(key, _ []byte) bool {
		if h, ok := blockKeyToHeight(key); ok {
			heights = append(heights, h)
		} else {
			logx.Warn("BLOCKSTORE", "Skipping unexpected key under block prefix: ", string(key))
		}
		return true
	})
	if err != nil {
		return nil, fmt.Errorf("failed to iterate blocks: %w", err)
	}

	// redis SCAN returns keys unordered
	sort.Slice(heights, func(i, j int) bool { return heights[i] < heights[j] })
	return heights, nil
}

// LoadIndex decodes the index map stored under key. found is false when the key is absent.
func (s *BlockStore) LoadIndex(key string) (index map[string]uint64, found bool, err error) {
	value, err := s.provider.Get([]byte(key))
	if err != nil {
		return nil, false, fmt.Errorf("failed to get %s: %w", key, err)
	}
	if value == nil {
		return map[string]uint64{}, false, nil
	}

	index = make(map[string]uint64)
	if err := jsonx.Unmarshal(value, &index); err != nil {
		return nil, true, fmt.Errorf("failed to decode %s: %w", key, err)
	}
	return index, true, nil
}

// SaveIndex persists an index map under key
func (s *BlockStore) SaveIndex(key string, index map[string]uint64) error {
	value, err := jsonx.Marshal(index)
	if err != nil {
		return fmt.Errorf("failed to encode %s: %w", key, err)
	}
	if err := s.provider.Put([]byte(key), value); err != nil {
		return fmt.Errorf("failed to store %s: %w", key, err)
	}
	return nil
}

// WriteBlock stores the block together with both index maps in one batch.
// Either all three values are committed or none is.
func (s *BlockStore) WriteBlock(blk *block.Block, hashIndex, starIndex map[string]uint64) (int, error) {
	if blk == nil {
		return 0, fmt.Errorf("block cannot be nil")
	}

	value, err := block.Serialize(blk)
	if err != nil {
		return 0, fmt.Errorf("failed to marshal block: %w", err)
	}
	hashValue, err := jsonx.Marshal(hashIndex)
	if err != nil {
		return 0, fmt.Errorf("failed to encode %s: %w", KeyHashLookup, err)
	}
	starValue, err := jsonx.Marshal(starIndex)
	if err != nil {
		return 0, fmt.Errorf("failed to encode %s: %w", KeyStarLookup, err)
	}

	ops, err := s.txm.WithBatch(func(batch db.DatabaseBatch) error {
		batch.Put(heightToBlockKey(blk.Height), value)
		batch.Put([]byte(KeyHashLookup), hashValue)
		batch.Put([]byte(KeyStarLookup), starValue)
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("failed to store block %d: %w", blk.Height, err)
	}

	logx.Debug("BLOCKSTORE", "Stored block at height ", blk.Height, " in ", ops, " ops")
	return len(value), nil
}

// PutRawBlock overwrites the bytes stored at height without touching the indexes.
// It exists for repair tooling and corruption tests.
func (s *BlockStore) PutRawBlock(height uint64, value []byte) error {
	return s.provider.Put(heightToBlockKey(height), value)
}

// Close closes the underlying database provider
func (s *BlockStore) Close() error {
	return s.provider.Close()
}
