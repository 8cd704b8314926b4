package chain

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/mezonai/starchain/block"
	"github.com/mezonai/starchain/exception"
	"github.com/mezonai/starchain/logx"
	"github.com/mezonai/starchain/monitoring"
	"github.com/mezonai/starchain/star"
	"github.com/mezonai/starchain/store"
	"github.com/mezonai/starchain/stringutil"
)

var errInitAborted = errors.New("chain initialization aborted")

// IdentityFunc extracts the duplicate-detection key from a block body.
// ok is false when the body carries nothing to deduplicate.
type IdentityFunc func(body string) (id string, ok bool)

type Option func(*Manager)

// WithClock replaces time.Now for block timestamps.
func WithClock(now func() time.Time) Option {
	return func(m *Manager) { m.now = now }
}

func WithIdentity(fn IdentityFunc) Option {
	return func(m *Manager) { m.identity = fn }
}

// Manager owns the ordered block sequence stored in a BlockStore together with
// the hash and star lookup indexes. Appends are serialized; reads run
// concurrently and never observe a half-finished append.
type Manager struct {
	bs       *store.BlockStore
	now      func() time.Time
	identity IdentityFunc

	ready   chan struct{}
	initErr error

	mu        sync.RWMutex
	hashIndex map[string]uint64
	starIndex map[string]uint64
	count     uint64
	closed    bool

	closeOnce sync.Once
	closeErr  error
}

// NewManager returns immediately and initializes the chain in the background.
// Every operation waits for initialization to finish.
func NewManager(bs *store.BlockStore, opts ...Option) *Manager {
	m := &Manager{
		bs:        bs,
		now:       time.Now,
		identity:  star.IdentityFromBody,
		ready:     make(chan struct{}),
		hashIndex: make(map[string]uint64),
		starIndex: make(map[string]uint64),
	}
	for _, opt := range opts {
		opt(m)
	}

	exception.SafeGo("ChainInit", func() {
		defer close(m.ready)
		// stays set if initialize panics
		m.initErr = errInitAborted
		m.initErr = m.initialize()
	})
	return m
}

func (m *Manager) initialize() error {
	hashIndex, _, err := m.loadOrCreateIndex(store.KeyHashLookup)
	if err != nil {
		return err
	}
	starIndex, starFound, err := m.loadOrCreateIndex(store.KeyStarLookup)
	if err != nil {
		return err
	}

	heights, err := m.bs.Heights()
	if err != nil {
		return fmt.Errorf("failed to count blocks: %w", err)
	}
	for i, h := range heights {
		if h != uint64(i) {
			return newInvariantError("init", "block heights are not contiguous: expected %d, found %d", i, h)
		}
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	m.hashIndex = hashIndex
	m.starIndex = starIndex
	m.count = uint64(len(heights))

	if m.count == 0 {
		genesis := block.NewGenesis(block.GenesisBody, m.now())
		m.hashIndex[genesis.Hash] = genesis.Height
		if _, err := m.bs.WriteBlock(genesis, m.hashIndex, m.starIndex); err != nil {
			delete(m.hashIndex, genesis.Hash)
			return fmt.Errorf("failed to store genesis block: %w", err)
		}
		m.count = 1
		logx.Info("CHAIN", "Created genesis block ", stringutil.ShortenLog(genesis.Hash))
	} else if uint64(len(m.hashIndex)) != m.count {
		logx.Warn("CHAIN", fmt.Sprintf("Hash index has %d entries for %d blocks, rebuilding indexes", len(m.hashIndex), m.count))
		if err := m.rebuildIndexesLocked(); err != nil {
			return err
		}
	} else if (!starFound && m.count > 1) || staleIndex(m.starIndex, m.count) {
		logx.Warn("CHAIN", "Star index is missing or stale, rebuilding indexes")
		if err := m.rebuildIndexesLocked(); err != nil {
			return err
		}
	}

	monitoring.SetBlockHeight(m.count - 1)
	logx.Info("CHAIN", "Chain ready with ", m.count, " blocks")
	return nil
}

// loadOrCreateIndex reports whether the index already existed.
func (m *Manager) loadOrCreateIndex(key string) (map[string]uint64, bool, error) {
	index, found, err := m.bs.LoadIndex(key)
	if err != nil {
		return nil, false, err
	}
	if !found {
		if err := m.bs.SaveIndex(key, index); err != nil {
			return nil, false, err
		}
		logx.Info("CHAIN", "Created empty index ", key)
	}
	return index, found, nil
}

// staleIndex reports entries pointing past the last block.
func staleIndex(index map[string]uint64, count uint64) bool {
	for _, h := range index {
		if h >= count {
			return true
		}
	}
	return false
}

// rebuildIndexesLocked recomputes both indexes from the stored blocks.
func (m *Manager) rebuildIndexesLocked() error {
	hashIndex := make(map[string]uint64, m.count)
	starIndex := make(map[string]uint64)
	for h := uint64(0); h < m.count; h++ {
		blk, err := m.bs.Block(h)
		if err != nil {
			return fmt.Errorf("failed to rebuild indexes: %w", err)
		}
		if blk == nil {
			return newInvariantError("reindex", "block %d is missing", h)
		}
		hashIndex[blk.Hash] = h
		if id, ok := m.identity(blk.Body); ok {
			starIndex[id] = h
		}
	}

	if err := m.bs.SaveIndex(store.KeyHashLookup, hashIndex); err != nil {
		return err
	}
	if err := m.bs.SaveIndex(store.KeyStarLookup, starIndex); err != nil {
		return err
	}
	m.hashIndex = hashIndex
	m.starIndex = starIndex
	return nil
}

// Ready blocks until initialization has finished and reports its outcome.
func (m *Manager) Ready(ctx context.Context) error {
	select {
	case <-m.ready:
	case <-ctx.Done():
		return ctx.Err()
	}
	if m.initErr != nil {
		return fmt.Errorf("chain initialization failed: %w", m.initErr)
	}
	return nil
}

// Append fills height, time, previous hash and hash of the candidate and
// persists it with both indexes in one batch. The candidate is not modified.
func (m *Manager) Append(ctx context.Context, candidate *block.Block) (*block.Block, error) {
	if candidate == nil {
		return nil, fmt.Errorf("candidate block cannot be nil")
	}
	if err := m.Ready(ctx); err != nil {
		return nil, err
	}

	start := time.Now()
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return nil, ErrClosed
	}
	if m.count == 0 {
		monitoring.RecordRejectedStar(monitoring.StarInvariantFailure)
		return nil, newInvariantError("append", "chain has no genesis block")
	}

	best, err := m.bs.Block(m.count - 1)
	if err != nil {
		return nil, fmt.Errorf("failed to load best block: %w", err)
	}
	if best == nil {
		monitoring.RecordRejectedStar(monitoring.StarInvariantFailure)
		return nil, newInvariantError("append", "best block %d is missing", m.count-1)
	}

	nb := &block.Block{
		Height:       m.count,
		Body:         candidate.Body,
		Time:         m.now().Unix(),
		PreviousHash: best.Hash,
	}
	nb.Hash = block.ComputeHash(*nb)

	starID, hasStar := m.identity(nb.Body)
	if hasStar {
		if h, dup := m.starIndex[starID]; dup {
			monitoring.RecordRejectedStar(monitoring.StarDuplicated)
			return nil, &DuplicateStarError{StarID: starID, Height: h}
		}
	}

	exists, err := m.bs.HasBlock(nb.Height)
	if err != nil {
		return nil, err
	}
	if exists {
		monitoring.RecordRejectedStar(monitoring.StarInvariantFailure)
		return nil, newInvariantError("append", "a block is already stored at height %d", nb.Height)
	}
	if _, taken := m.hashIndex[nb.Hash]; taken {
		monitoring.RecordRejectedStar(monitoring.StarInvariantFailure)
		return nil, newInvariantError("append", "hash %s is already indexed", nb.Hash)
	}

	// Readers are excluded by the write lock, so the staged entries are never observed
	// unless the batch commits.
	m.hashIndex[nb.Hash] = nb.Height
	if hasStar {
		m.starIndex[starID] = nb.Height
	}
	size, err := m.bs.WriteBlock(nb, m.hashIndex, m.starIndex)
	if err != nil {
		delete(m.hashIndex, nb.Hash)
		if hasStar {
			delete(m.starIndex, starID)
		}
		monitoring.RecordRejectedStar(monitoring.StarStoreFailure)
		return nil, err
	}
	m.count++

	monitoring.SetBlockHeight(nb.Height)
	monitoring.RecordBlockSizeBytes(size)
	monitoring.RecordAppendDuration(time.Since(start))
	logx.Info("CHAIN", "Appended block ", nb.Height, " hash ", stringutil.ShortenLog(nb.Hash))

	out := *nb
	return &out, nil
}

// BlockByHeight returns nil, nil when height is beyond the best block.
func (m *Manager) BlockByHeight(ctx context.Context, height uint64) (*block.Block, error) {
	if err := m.Ready(ctx); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.closed {
		return nil, ErrClosed
	}
	if height >= m.count {
		return nil, nil
	}
	return m.blockLocked(height)
}

// BlockByHash returns nil, nil when the hash is empty or not indexed.
func (m *Manager) BlockByHash(ctx context.Context, hash string) (*block.Block, error) {
	if err := m.Ready(ctx); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.closed {
		return nil, ErrClosed
	}
	if hash == "" {
		return nil, nil
	}
	height, ok := m.hashIndex[hash]
	if !ok {
		return nil, nil
	}
	return m.blockLocked(height)
}

func (m *Manager) BestBlock(ctx context.Context) (*block.Block, error) {
	if err := m.Ready(ctx); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.closed {
		return nil, ErrClosed
	}
	if m.count == 0 {
		return nil, newInvariantError("best block", "chain is empty")
	}
	return m.blockLocked(m.count - 1)
}

func (m *Manager) BestBlockHeight(ctx context.Context) (uint64, error) {
	count, err := m.BlockCount(ctx)
	if err != nil {
		return 0, err
	}
	if count == 0 {
		return 0, newInvariantError("best block height", "chain is empty")
	}
	return count - 1, nil
}

func (m *Manager) BlockCount(ctx context.Context) (uint64, error) {
	if err := m.Ready(ctx); err != nil {
		return 0, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.closed {
		return 0, ErrClosed
	}
	return m.count, nil
}

// StarsByAddress scans the chain for star records registered by address, in height order.
func (m *Manager) StarsByAddress(ctx context.Context, address string) ([]*block.Block, error) {
	if err := m.Ready(ctx); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.closed {
		return nil, ErrClosed
	}

	blocks := make([]*block.Block, 0)
	for h := uint64(1); h < m.count; h++ {
		blk, err := m.bs.Block(h)
		if err != nil {
			if errors.Is(err, block.ErrFormat) {
				logx.Warn("CHAIN", "Skipping undecodable block ", h, " in address scan")
				continue
			}
			return nil, err
		}
		if blk == nil {
			continue
		}
		rec, err := star.ParseRecord(blk.Body)
		if err != nil || rec.Address != address {
			continue
		}
		blocks = append(blocks, blk)
	}
	return blocks, nil
}

// blockLocked reads a block that the count says must exist.
func (m *Manager) blockLocked(height uint64) (*block.Block, error) {
	blk, err := m.bs.Block(height)
	if err != nil {
		return nil, err
	}
	if blk == nil {
		return nil, newInvariantError("read", "block %d is missing below the best height %d", height, m.count-1)
	}
	return blk, nil
}

// Close waits for initialization, then releases the store. It is safe to call more than once.
func (m *Manager) Close() error {
	m.closeOnce.Do(func() {
		<-m.ready

		m.mu.Lock()
		m.closed = true
		m.mu.Unlock()

		m.closeErr = m.bs.Close()
		logx.Info("CHAIN", "Chain closed")
	})
	return m.closeErr
}
