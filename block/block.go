package block

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/mezonai/starchain/jsonx"
)

// GenesisBody is the fixed payload of the block at height 0.
const GenesisBody = "Genesis Block"

// ErrFormat is returned when persisted bytes do not decode into a complete Block.
var ErrFormat = errors.New("block: malformed block")

// Block is one record of the chain. Height, Time, PreviousHash and Hash are
// assigned by the chain manager at append time.
type Block struct {
	Hash         string `json:"hash"`
	Height       uint64 `json:"height"`
	Body         string `json:"body"`
	Time         int64  `json:"time"`
	PreviousHash string `json:"previousBlockHash"`
}

// hashInput fixes the field order of the hashed serialization. Hash is not part of it.
type hashInput struct {
	Body         string `json:"body"`
	Time         int64  `json:"time"`
	Height       uint64 `json:"height"`
	PreviousHash string `json:"previousBlockHash"`
}

// New returns a candidate block carrying body only.
func New(body string) *Block {
	return &Block{Body: body}
}

// NewGenesis builds the block at height 0.
func NewGenesis(body string, now time.Time) *Block {
	b := &Block{
		Height:       0,
		Body:         body,
		Time:         now.Unix(),
		PreviousHash: "",
	}
	b.Hash = ComputeHash(*b)
	return b
}

// ComputeHash returns the hex SHA-256 of the block content. The current value
// of b.Hash never influences the result.
func ComputeHash(b Block) string {
	payload, err := jsonx.Marshal(hashInput{
		Body:         b.Body,
		Time:         b.Time,
		Height:       b.Height,
		PreviousHash: b.PreviousHash,
	})
	if err != nil {
		// a struct of strings and integers always encodes
		panic(fmt.Sprintf("block: encode hash input: %v", err))
	}
	sum := sha256.Sum256(payload)
	return hex.EncodeToString(sum[:])
}

// Validate reports whether the stored hash matches the content.
func (b *Block) Validate() bool {
	return b.Hash == ComputeHash(*b)
}

// IsPrecursorTo reports whether next links back to b.
func (b *Block) IsPrecursorTo(next *Block) bool {
	if next == nil {
		return false
	}
	return b.Hash == next.PreviousHash
}

// Serialize encodes the block for persistence.
func Serialize(b *Block) ([]byte, error) {
	return jsonx.Marshal(b)
}

// wireBlock detects missing fields; pointers stay nil when a key is absent.
type wireBlock struct {
	Hash         *string `json:"hash"`
	Height       *uint64 `json:"height"`
	Body         *string `json:"body"`
	Time         *int64  `json:"time"`
	PreviousHash *string `json:"previousBlockHash"`
}

// Deserialize decodes persisted bytes. Unknown fields are ignored; a missing
// required field or invalid JSON yields ErrFormat.
func Deserialize(blob []byte) (*Block, error) {
	var w wireBlock
	if err := jsonx.Unmarshal(blob, &w); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrFormat, err)
	}

	switch {
	case w.Hash == nil:
		return nil, fmt.Errorf("%w: missing field hash", ErrFormat)
	case w.Height == nil:
		return nil, fmt.Errorf("%w: missing field height", ErrFormat)
	case w.Body == nil:
		return nil, fmt.Errorf("%w: missing field body", ErrFormat)
	case w.Time == nil:
		return nil, fmt.Errorf("%w: missing field time", ErrFormat)
	case w.PreviousHash == nil:
		return nil, fmt.Errorf("%w: missing field previousBlockHash", ErrFormat)
	}

	return &Block{
		Hash:         *w.Hash,
		Height:       *w.Height,
		Body:         *w.Body,
		Time:         *w.Time,
		PreviousHash: *w.PreviousHash,
	}, nil
}
