package chain

import (
	"context"
	"errors"

	"github.com/mezonai/starchain/block"
	"github.com/mezonai/starchain/logx"
)

// Report lists every corrupted height found by ValidateChain. A link error at
// height h means block h is not the precursor of block h+1.
type Report struct {
	HashErrors []uint64 `json:"hashErrors"`
	LinkErrors []uint64 `json:"linkErrors"`
}

func (r Report) Valid() bool {
	return len(r.HashErrors) == 0 && len(r.LinkErrors) == 0
}

// ValidateBlock reports whether the stored hash of block height matches its content.
func (m *Manager) ValidateBlock(ctx context.Context, height uint64) (bool, error) {
	blk, err := m.BlockByHeight(ctx, height)
	if err != nil {
		return false, err
	}
	if blk == nil {
		return false, ErrBlockNotFound
	}
	return blk.Validate(), nil
}

// ValidateChain checks every block hash and every adjacent link. It does not stop at the
// first failure. A block that cannot be decoded is a hash error and breaks both of its links.
func (m *Manager) ValidateChain(ctx context.Context) (Report, error) {
	report := Report{HashErrors: []uint64{}, LinkErrors: []uint64{}}
	if err := m.Ready(ctx); err != nil {
		return report, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.closed {
		return report, ErrClosed
	}

	var prev *block.Block
	for h := uint64(0); h < m.count; h++ {
		blk, err := m.bs.Block(h)
		if err != nil && !errors.Is(err, block.ErrFormat) {
			return report, err
		}

		if blk == nil || !blk.Validate() {
			report.HashErrors = append(report.HashErrors, h)
		}
		if h > 0 && (prev == nil || !prev.IsPrecursorTo(blk)) {
			report.LinkErrors = append(report.LinkErrors, h-1)
		}
		prev = blk
	}

	if !report.Valid() {
		logx.Warn("CHAIN", "Chain validation found ", len(report.HashErrors), " hash errors and ", len(report.LinkErrors), " link errors")
	}
	return report, nil
}
