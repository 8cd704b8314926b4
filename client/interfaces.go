package client

import (
	"context"

	"github.com/mezonai/starchain/api"
	"github.com/mezonai/starchain/chain"
	"github.com/mezonai/starchain/star"
)

type RegistryClient interface {
	RequestValidation(ctx context.Context, address string) (*api.SessionStatus, error)
	ValidateSignature(ctx context.Context, address, signature string) (*api.ValidateSignatureResp, error)
	RegisterStar(ctx context.Context, address string, s star.Star) (*chain.BlockView, error)
	GetBlock(ctx context.Context, height uint64) (*chain.BlockView, error)
	GetBlockByHash(ctx context.Context, hash string) (*chain.BlockView, error)
	GetStarsByAddress(ctx context.Context, address string) ([]*chain.BlockView, error)
	BlockCount(ctx context.Context) (uint64, error)
	ValidateChain(ctx context.Context) (*api.ChainValidationResp, error)
	CheckHealth(ctx context.Context) (*api.HealthResp, error)
}

// Signer produces the signature the registry expects for a challenge message.
type Signer interface {
	Address() string
	Sign(message string) (string, error)
}
