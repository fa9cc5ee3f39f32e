package wallet

import (
	"fmt"

	"github.com/colorfulnotion/shieldedpool/log"
	"github.com/colorfulnotion/shieldedpool/merkle"
	"github.com/colorfulnotion/shieldedpool/poolerrors"
	"github.com/colorfulnotion/shieldedpool/types"
)

func (w *Wallet) forEachNote(fn func(op types.OutPoint, nd *NoteData) error) error {
	for _, wtx := range w.txs {
		for op, nd := range wtx.NoteData {
			if err := fn(op, nd); err != nil {
				return err
			}
		}
	}
	return nil
}

// IncrementNoteWitnesses replays the outputs of block at height into tree and
// into every open witness, minting witnesses for our new notes.
//
// The cache is validated before anything is touched. An error from the
// replay itself (tree exhaustion) leaves the cache unusable.
func (w *Wallet) IncrementNoteWitnesses(height int64, block *types.Block, tree *merkle.CommitmentTree) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.incrementNoteWitnesses(height, block, tree)
}

func (w *Wallet) incrementNoteWitnesses(height int64, block *types.Block, tree *merkle.CommitmentTree) error {
	err := w.forEachNote(func(op types.OutPoint, nd *NoteData) error {
		if nd.WitnessHeight >= height {
			return nil
		}
		if len(nd.Witnesses) > w.witnessCacheSize {
			return fmt.Errorf("%w: note %s holds %d witnesses, cache depth %d", poolerrors.ErrWWindowExceeded, op, len(nd.Witnesses), w.witnessCacheSize)
		}
		if nd.WitnessHeight != WitnessHeightUninitialized && nd.WitnessHeight != height-1 {
			return fmt.Errorf("%w: note %s at %d, connecting %d", poolerrors.ErrWHeightOutOfOrder, op, nd.WitnessHeight, height)
		}
		return nil
	})
	if err != nil {
		return err
	}

	// carry the latest witness forward as this block's starting point
	w.forEachNote(func(op types.OutPoint, nd *NoteData) error {
		if nd.WitnessHeight < height && len(nd.Witnesses) > 0 {
			nd.pushFront(nd.front().Clone())
			if len(nd.Witnesses) > w.window {
				nd.popBack()
			}
		}
		return nil
	})
	if w.witnessCacheSize < w.window {
		w.witnessCacheSize++
	}

	minted := 0
	for i := range block.Transactions {
		tx := &block.Transactions[i]
		if len(tx.ShieldedOutputs) == 0 {
			continue
		}
		hash := tx.Hash()
		wtx, ours := w.txs[hash]
		for n, out := range tx.ShieldedOutputs {
			if err := tree.Append(out.CMU); err != nil {
				return err
			}
			err := w.forEachNote(func(op types.OutPoint, nd *NoteData) error {
				if nd.WitnessHeight < height && len(nd.Witnesses) > 0 {
					return nd.front().Append(out.CMU)
				}
				return nil
			})
			if err != nil {
				return err
			}
			if !ours {
				continue
			}
			op := types.NewOutPoint(hash, uint32(n))
			nd, tracked := wtx.NoteData[op]
			if !tracked || nd.WitnessHeight >= height {
				continue
			}
			if len(nd.Witnesses) > 0 {
				log.Warn(log.WalletMonitoring, "Inconsistent witness cache state found", "note", op, "witnesses", len(nd.Witnesses))
				nd.Witnesses = nil
			}
			witness, err := tree.Witness()
			if err != nil {
				return err
			}
			nd.pushFront(witness)
			// normalized to height below, like every other advanced note
			nd.WitnessHeight = height - 1
			nd.MintHeight = height
			minted++
		}
	}

	w.forEachNote(func(op types.OutPoint, nd *NoteData) error {
		if nd.WitnessHeight < height {
			nd.WitnessHeight = height
		}
		return nil
	})

	if w.verifyRoots {
		root := tree.Root()
		err := w.forEachNote(func(op types.OutPoint, nd *NoteData) error {
			if front := nd.front(); front != nil && !front.Root().Equal(root) {
				return fmt.Errorf("%w: note %s witness root %s, tree root %s", poolerrors.ErrWRootMismatch, op, front.Root(), root)
			}
			return nil
		})
		if err != nil {
			return err
		}
	}

	log.Debug(log.WalletMonitoring, "IncrementNoteWitnesses", "height", height, "outputs", block.OutputCount(), "minted", minted, "cacheSize", w.witnessCacheSize)
	return nil
}

// DecrementNoteWitnesses undoes IncrementNoteWitnesses for the block at
// height, which must be the height every advanced note sits at. It fails with
// ErrWRollbackTooDeep, leaving the cache untouched, when the history needed
// to restore a note was evicted; the wallet must then be rescanned.
func (w *Wallet) DecrementNoteWitnesses(height int64) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.decrementNoteWitnesses(height)
}

func (w *Wallet) decrementNoteWitnesses(height int64) error {
	if w.witnessCacheSize == 0 {
		return fmt.Errorf("%w: no cached history below height %d", poolerrors.ErrWRollbackTooDeep, height)
	}
	err := w.forEachNote(func(op types.OutPoint, nd *NoteData) error {
		if nd.WitnessHeight == WitnessHeightUninitialized {
			return nil
		}
		if nd.WitnessHeight != height {
			return fmt.Errorf("%w: note %s at %d, disconnecting %d", poolerrors.ErrWHeightOutOfOrder, op, nd.WitnessHeight, height)
		}
		if len(nd.Witnesses) == 0 && nd.MintHeight != WitnessHeightUninitialized {
			return fmt.Errorf("%w: note %s minted at %d has no witnesses", poolerrors.ErrWInconsistentCache, op, nd.MintHeight)
		}
		if len(nd.Witnesses) > w.witnessCacheSize {
			return fmt.Errorf("%w: note %s holds %d witnesses, cache depth %d", poolerrors.ErrWWindowExceeded, op, len(nd.Witnesses), w.witnessCacheSize)
		}
		if len(nd.Witnesses) == 1 && nd.MintHeight != height {
			return fmt.Errorf("%w: note %s minted at %d, history evicted", poolerrors.ErrWRollbackTooDeep, op, nd.MintHeight)
		}
		return nil
	})
	if err != nil {
		return err
	}

	w.forEachNote(func(op types.OutPoint, nd *NoteData) error {
		if nd.WitnessHeight != height {
			return nil
		}
		// an orphaned note has nothing to pop and just follows the tip down
		if len(nd.Witnesses) == 0 {
			nd.WitnessHeight = height - 1
			return nil
		}
		nd.popFront()
		if len(nd.Witnesses) == 0 {
			nd.WitnessHeight = WitnessHeightUninitialized
			nd.MintHeight = WitnessHeightUninitialized
		} else {
			nd.WitnessHeight = height - 1
		}
		return nil
	})
	w.witnessCacheSize--

	log.Debug(log.WalletMonitoring, "DecrementNoteWitnesses", "height", height, "cacheSize", w.witnessCacheSize)
	return nil
}
