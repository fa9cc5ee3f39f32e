package wallet

import (
	"context"
	"fmt"

	"github.com/colorfulnotion/shieldedpool/common"
	"github.com/colorfulnotion/shieldedpool/log"
	"github.com/colorfulnotion/shieldedpool/merkle"
	"github.com/colorfulnotion/shieldedpool/poolerrors"
	"github.com/colorfulnotion/shieldedpool/types"
)

// ChainReader walks the active chain.
type ChainReader interface {
	Next(index *types.BlockIndex) (*types.BlockIndex, bool)
	Prev(index *types.BlockIndex) (*types.BlockIndex, bool)
}

// BlockReader loads the full block behind an index entry.
type BlockReader interface {
	ReadBlock(index *types.BlockIndex) (*types.Block, error)
}

// AnchorReader resolves historical commitment trees by root.
type AnchorReader interface {
	GetAnchorAt(root common.FieldHash) (*merkle.CommitmentTree, bool, error)
}

// ScanForWalletTransactions replays the active chain from start, adding
// transactions that involve the wallet and advancing witnesses block by
// block. ctx is only checked between blocks. Returns the number of
// transactions found.
func (w *Wallet) ScanForWalletTransactions(ctx context.Context, start *types.BlockIndex, chain ChainReader, blocks BlockReader, anchors AnchorReader, update bool) (int, error) {
	found := 0
	scanned := 0
	for index := start; index != nil; {
		if err := ctx.Err(); err != nil {
			return found, err
		}
		block, err := blocks.ReadBlock(index)
		if err != nil {
			return found, fmt.Errorf("read block %d: %w", index.Height, err)
		}
		tree, err := w.preBlockTree(index, chain, anchors)
		if err != nil {
			return found, err
		}
		if err := w.scanBlock(index, block, tree, update, &found); err != nil {
			return found, err
		}
		if w.verifyRoots && !tree.Root().Equal(index.FinalSaplingRoot) {
			return found, fmt.Errorf("%w: block %d replayed root %s, recorded %s", poolerrors.ErrWRootMismatch, index.Height, tree.Root(), index.FinalSaplingRoot)
		}
		scanned++

		next, ok := chain.Next(index)
		if !ok {
			break
		}
		index = next
	}
	log.Info(log.WalletMonitoring, "Rescan complete", "blocks", scanned, "found", found)
	return found, nil
}

func (w *Wallet) scanBlock(index *types.BlockIndex, block *types.Block, tree *merkle.CommitmentTree, update bool, found *int) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	for i := range block.Transactions {
		if w.addToWalletIfInvolvingMe(&block.Transactions[i], block, update) {
			*found++
		}
	}
	return w.chainTip(index, block, tree, true)
}

// preBlockTree returns the commitment tree as of the block before index.
func (w *Wallet) preBlockTree(index *types.BlockIndex, chain ChainReader, anchors AnchorReader) (*merkle.CommitmentTree, error) {
	prev, ok := chain.Prev(index)
	if !ok {
		return merkle.NewCommitmentTree(w.depth)
	}
	tree, found, err := anchors.GetAnchorAt(prev.FinalSaplingRoot)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, fmt.Errorf("%w: root %s of block %d", poolerrors.ErrAAnchorNotFound, prev.FinalSaplingRoot, prev.Height)
	}
	return tree, nil
}
