// Package star holds the registry payload carried in block bodies.
package star

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"

	"github.com/mezonai/starchain/jsonx"
	"github.com/mezonai/starchain/security/validation"
	"golang.org/x/text/unicode/norm"
)

var ErrNotStarRecord = errors.New("star: body is not a star record")

// Star is one observation. Story is hex encoded once the star is on chain.
type Star struct {
	RA    string `json:"ra"`
	Dec   string `json:"dec"`
	Mag   string `json:"mag,omitempty"`
	Cen   string `json:"cen,omitempty"`
	Story string `json:"story,omitempty"`
}

// StarRecord binds a star to the wallet address that registered it.
type StarRecord struct {
	Address string `json:"address"`
	Star    Star   `json:"star"`
}

// ID is the chain-wide duplicate key. It depends on the astrometric fields only,
// each NFC normalised, trimmed and length prefixed so no two tuples share an encoding.
func (s Star) ID() string {
	h := sha256.New()
	for _, f := range []string{s.RA, s.Dec, s.Mag, s.Cen} {
		f = strings.TrimSpace(norm.NFC.String(f))
		fmt.Fprintf(h, "%d:%s", len(f), f)
	}
	return hex.EncodeToString(h.Sum(nil))
}

// Validate checks a star as submitted by a client, before story encoding.
func (s Star) Validate() error {
	if err := validation.ValidateRequired(validation.RAField, s.RA); err != nil {
		return err
	}
	if err := validation.ValidateRequired(validation.DecField, s.Dec); err != nil {
		return err
	}

	short := map[string]string{
		validation.RAField:  s.RA,
		validation.DecField: s.Dec,
		validation.MagField: s.Mag,
		validation.CenField: s.Cen,
	}
	for field, value := range short {
		if err := validation.ValidateShortTextLength(field, value); err != nil {
			return err
		}
	}

	return validation.ValidateStory(s.Story)
}

func EncodeStory(plain string) string {
	return hex.EncodeToString([]byte(plain))
}

func DecodeStory(encoded string) (string, error) {
	raw, err := hex.DecodeString(encoded)
	if err != nil {
		return "", fmt.Errorf("decode story: %w", err)
	}
	return string(raw), nil
}

// Encoded returns a copy of the record with its story hex encoded, ready to be used as a block body.
func (r StarRecord) Encoded() StarRecord {
	r.Star.Story = EncodeStory(r.Star.Story)
	return r
}

// Body serializes the record as a block body.
func (r StarRecord) Body() (string, error) {
	raw, err := jsonx.Marshal(r)
	if err != nil {
		return "", fmt.Errorf("encode star record: %w", err)
	}
	return string(raw), nil
}

// ParseRecord decodes a block body. Bodies that are not JSON objects with an
// address and a star carrying ra and dec yield ErrNotStarRecord.
func ParseRecord(body string) (*StarRecord, error) {
	var r StarRecord
	if err := jsonx.Unmarshal([]byte(body), &r); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNotStarRecord, err)
	}
	if r.Address == "" || r.Star.RA == "" || r.Star.Dec == "" {
		return nil, ErrNotStarRecord
	}
	return &r, nil
}

// IdentityFromBody extracts the star id from a block body. ok is false for
// bodies that carry no star, such as the genesis marker.
func IdentityFromBody(body string) (id string, ok bool) {
	r, err := ParseRecord(body)
	if err != nil {
		return "", false
	}
	return r.Star.ID(), true
}

// StarView is the read shape of an on-chain star.
type StarView struct {
	Star
	StoryDecoded string `json:"storyDecoded"`
}

type RecordView struct {
	Address string   `json:"address"`
	Star    StarView `json:"star"`
}

// View decodes the story for display. A story that is not valid hex is shown as stored.
func (r StarRecord) View() RecordView {
	decoded, err := DecodeStory(r.Star.Story)
	if err != nil {
		decoded = r.Star.Story
	}
	return RecordView{
		Address: r.Address,
		Star:    StarView{Star: r.Star, StoryDecoded: decoded},
	}
}
