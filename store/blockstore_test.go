package store

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mezonai/starchain/block"
	"github.com/mezonai/starchain/db"
)

func newTestBlockStore(t *testing.T) *BlockStore {
	t.Helper()
	provider, err := db.NewMemLevelDBProvider()
	require.NoError(t, err)

	bs, err := NewBlockStore(provider)
	require.NoError(t, err)
	t.Cleanup(func() { _ = bs.Close() })
	return bs
}

func TestBlockStore_WriteAndRead(t *testing.T) {
	bs := newTestBlockStore(t)
	g := block.NewGenesis(block.GenesisBody, time.Unix(100, 0))

	n, err := bs.WriteBlock(g, map[string]uint64{g.Hash: 0}, map[string]uint64{})
	require.NoError(t, err)
	assert.Greater(t, n, 0)

	got, err := bs.Block(0)
	require.NoError(t, err)
	assert.Equal(t, g, got)

	exists, err := bs.HasBlock(0)
	require.NoError(t, err)
	assert.True(t, exists)

	hashIndex, found, err := bs.LoadIndex(KeyHashLookup)
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, map[string]uint64{g.Hash: 0}, hashIndex)

	starIndex, found, err := bs.LoadIndex(KeyStarLookup)
	require.NoError(t, err)
	assert.True(t, found)
	assert.Empty(t, starIndex)
}

func TestBlockStore_MissingBlock(t *testing.T) {
	bs := newTestBlockStore(t)

	got, err := bs.Block(42)
	assert.NoError(t, err)
	assert.Nil(t, got)

	index, found, err := bs.LoadIndex(KeyHashLookup)
	require.NoError(t, err)
	assert.False(t, found)
	assert.Empty(t, index)
}

func TestBlockStore_CorruptBlockIsFormatError(t *testing.T) {
	bs := newTestBlockStore(t)
	require.NoError(t, bs.PutRawBlock(0, []byte(`{"hash":"h"}`)))

	got, err := bs.Block(0)
	assert.Nil(t, got)
	assert.ErrorIs(t, err, block.ErrFormat)
}

func TestBlockStore_HeightsExcludeReservedKeys(t *testing.T) {
	bs := newTestBlockStore(t)

	// write out of order; heights come back sorted
	for _, h := range []uint64{2, 0, 1, 256} {
		require.NoError(t, bs.PutRawBlock(h, []byte("{}")))
	}
	require.NoError(t, bs.SaveIndex(KeyHashLookup, map[string]uint64{"a": 1}))
	require.NoError(t, bs.SaveIndex(KeyStarLookup, map[string]uint64{"b": 2}))

	heights, err := bs.Heights()
	require.NoError(t, err)
	assert.Equal(t, []uint64{0, 1, 2, 256}, heights)
}

func TestBlockKeyRoundTrip(t *testing.T) {
	for _, h := range []uint64{0, 1, 255, 1 << 40} {
		got, ok := blockKeyToHeight(heightToBlockKey(h))
		assert.True(t, ok)
		assert.Equal(t, h, got)
	}

	_, ok := blockKeyToHeight([]byte(KeyHashLookup))
	assert.False(t, ok)
}

func TestStoreFactory_CreateProvider(t *testing.T) {
	sf := NewStoreFactory()

	_, err := sf.CreateProvider(nil)
	assert.Error(t, err)

	_, err = sf.CreateProvider(&StoreConfig{Type: "cassandra", Directory: t.TempDir()})
	assert.Error(t, err)

	_, err = sf.CreateProvider(&StoreConfig{Type: LevelDBStoreType})
	assert.Error(t, err)

	_, err = sf.CreateProvider(&StoreConfig{Type: RedisStoreType})
	assert.Error(t, err)

	for _, storeType := range []StoreType{LevelDBStoreType, BoltStoreType} {
		t.Run(string(storeType), func(t *testing.T) {
			dir := filepath.Join(t.TempDir(), "data")
			bs, err := CreateStore(&StoreConfig{Type: storeType, Directory: dir})
			require.NoError(t, err)
			require.NoError(t, bs.Close())
		})
	}
}
