package chain

import (
	"errors"
	"fmt"

	"github.com/mezonai/starchain/logx"
)

var (
	ErrClosed        = errors.New("chain: manager is closed")
	ErrBlockNotFound = errors.New("chain: block not found")
	ErrDuplicateStar = errors.New("chain: star already registered")
	ErrInvariant     = errors.New("chain: invariant violation")
)

// DuplicateStarError is returned by Append when the star id is already indexed.
// Nothing is persisted when it is returned.
type DuplicateStarError struct {
	StarID string
	Height uint64
}

func (e *DuplicateStarError) Error() string {
	return fmt.Sprintf("star %s already registered at height %d", e.StarID, e.Height)
}

func (e *DuplicateStarError) Is(target error) bool {
	return target == ErrDuplicateStar
}

// InvariantError marks a broken chain invariant. It indicates a bug or a damaged
// store, never a bad request.
type InvariantError struct {
	Op     string
	Detail string
}

func (e *InvariantError) Error() string {
	return fmt.Sprintf("invariant violated in %s: %s", e.Op, e.Detail)
}

func (e *InvariantError) Is(target error) bool {
	return target == ErrInvariant
}

func newInvariantError(op, format string, args ...interface{}) *InvariantError {
	err := &InvariantError{Op: op, Detail: fmt.Sprintf(format, args...)}
	logx.Error("INVARIANT", err.Error())
	return err
}
