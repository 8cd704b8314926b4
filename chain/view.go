package chain

import (
	"github.com/mezonai/starchain/block"
	"github.com/mezonai/starchain/star"
)

// BlockView is the read shape of a block. Star bodies are expanded into a
// record with the decoded story; any other body is returned as stored.
type BlockView struct {
	Hash         string      `json:"hash"`
	Height       uint64      `json:"height"`
	Body         interface{} `json:"body"`
	Time         int64       `json:"time"`
	PreviousHash string      `json:"previousBlockHash"`
}

func NewBlockView(b *block.Block) *BlockView {
	if b == nil {
		return nil
	}
	v := &BlockView{
		Hash:         b.Hash,
		Height:       b.Height,
		Body:         b.Body,
		Time:         b.Time,
		PreviousHash: b.PreviousHash,
	}
	if rec, err := star.ParseRecord(b.Body); err == nil {
		v.Body = rec.View()
	}
	return v
}

func NewBlockViews(blocks []*block.Block) []*BlockView {
	views := make([]*BlockView, 0, len(blocks))
	for _, b := range blocks {
		views = append(views, NewBlockView(b))
	}
	return views
}
