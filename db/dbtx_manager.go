package db

import (
	"fmt"
	"time"

	"github.com/mezonai/starchain/logx"
	"github.com/mezonai/starchain/monitoring"
)

// DBTxManager groups the writes of one chain append (block plus index maps)
// into a single provider batch.
type DBTxManager struct {
	provider DatabaseProvider
}

func NewDBTxManager(provider DatabaseProvider) *DBTxManager {
	return &DBTxManager{provider: provider}
}

// countingBatch tracks how many operations were staged.
type countingBatch struct {
	DatabaseBatch
	ops int
}

func (b *countingBatch) Put(key, value []byte) {
	b.ops++
	b.DatabaseBatch.Put(key, value)
}

func (b *countingBatch) Delete(key []byte) {
	b.ops++
	b.DatabaseBatch.Delete(key)
}

// WithBatch commits what fn staged when fn returns nil and discards it otherwise.
// A batch with nothing staged is not written. It returns the number of staged operations.
func (tm *DBTxManager) WithBatch(fn func(batch DatabaseBatch) error) (int, error) {
	batch := &countingBatch{DatabaseBatch: tm.provider.Batch()}
	defer func() {
		if err := batch.Close(); err != nil {
			logx.Error("TX_MANAGER", "Failed to close batch:", err)
		}
	}()

	if err := fn(batch); err != nil {
		batch.Reset()
		return 0, fmt.Errorf("batch aborted after %d ops: %w", batch.ops, err)
	}
	if batch.ops == 0 {
		return 0, nil
	}

	start := time.Now()
	err := batch.Write()
	monitoring.RecordStoreCommit(time.Since(start), err == nil)
	if err != nil {
		return 0, fmt.Errorf("commit of %d ops failed: %w", batch.ops, err)
	}
	return batch.ops, nil
}
