// Package coins holds the chain-state view of the shielded pool: the set of
// known anchors (commitment tree roots) and the spent nullifier set.
package coins

import (
	"github.com/colorfulnotion/shieldedpool/common"
	"github.com/colorfulnotion/shieldedpool/merkle"
)

// Backend is the persistent store a CoinViewCache reads through to and
// flushes into.
type Backend interface {
	// GetAnchorAt returns the tree whose root is root, if stored.
	GetAnchorAt(root common.FieldHash) (*merkle.CommitmentTree, bool, error)
	// GetNullifier returns whether nf is recorded as spent.
	GetNullifier(nf common.Nullifier) (bool, error)
	// GetBestAnchor returns the persisted best anchor, if any.
	GetBestAnchor() (common.FieldHash, bool, error)
	// GetBestBlock returns the persisted best block hash (zero when unset).
	GetBestBlock() (common.Hash, error)
	// BatchWrite applies a flushed overlay atomically.
	BatchWrite(batch *Batch) error
}

// AnchorWrite stores Tree under Root, or erases Root when Tree is nil.
type AnchorWrite struct {
	Root common.FieldHash
	Tree *merkle.CommitmentTree
}

// NullifierWrite marks Nullifier spent, or erases it when Spent is false.
type NullifierWrite struct {
	Nullifier common.Nullifier
	Spent     bool
}

// Batch is the dirty part of a CoinViewCache.
type Batch struct {
	Anchors    []AnchorWrite
	Nullifiers []NullifierWrite
	// BestAnchor nil clears the persisted best anchor
	BestAnchor *common.FieldHash
	BestBlock  common.Hash
}

func (b *Batch) Empty() bool {
	return len(b.Anchors) == 0 && len(b.Nullifiers) == 0
}
