package interfaces

import (
	"context"

	"github.com/mezonai/starchain/block"
	"github.com/mezonai/starchain/chain"
)

// ChainReader is the read side of the chain manager used by the API layers
type ChainReader interface {
	BlockByHeight(ctx context.Context, height uint64) (*block.Block, error)
	BlockByHash(ctx context.Context, hash string) (*block.Block, error)
	BlockCount(ctx context.Context) (uint64, error)
	ValidateChain(ctx context.Context) (chain.Report, error)
	StarsByAddress(ctx context.Context, address string) ([]*block.Block, error)
}

type ChainService interface {
	ChainReader
	Append(ctx context.Context, candidate *block.Block) (*block.Block, error)
}
