package wallet

import (
	"fmt"

	"github.com/colorfulnotion/shieldedpool/common"
	"github.com/colorfulnotion/shieldedpool/merkle"
	"github.com/colorfulnotion/shieldedpool/poolerrors"
	"github.com/colorfulnotion/shieldedpool/types"
	"golang.org/x/exp/slices"
)

// updateNullifierNoteMapForBlock refreshes the nullifiers of our notes
// created in block.
func (w *Wallet) updateNullifierNoteMapForBlock(block *types.Block) error {
	for i := range block.Transactions {
		if wtx, ok := w.txs[block.Transactions[i].Hash()]; ok {
			if err := w.updateNullifierNoteMapWithTx(wtx); err != nil {
				return err
			}
		}
	}
	return nil
}

// updateNullifierNoteMapWithTx derives each note's nullifier from the
// position of its latest witness; notes without witnesses lose theirs.
func (w *Wallet) updateNullifierNoteMapWithTx(wtx *WalletTransaction) error {
	for op, nd := range wtx.NoteData {
		front := nd.front()
		if front == nil {
			if nd.Nullifier != nil {
				delete(w.nullifierToNote, *nd.Nullifier)
			}
			nd.Nullifier = nil
			continue
		}
		nf, ok := w.keys.Nullifier(nd.IVK, &wtx.Tx, op.N, front.Position())
		if !ok {
			return fmt.Errorf("derive nullifier for note %s at position %d", op, front.Position())
		}
		w.nullifierToNote[nf] = op
		nd.Nullifier = &nf
	}
	return nil
}

// IsSpent reports whether a tracked transaction spends nf.
func (w *Wallet) IsSpent(nf common.Nullifier) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.spends[nf]) > 0
}

// NoteForNullifier returns the note whose nullifier is nf.
func (w *Wallet) NoteForNullifier(nf common.Nullifier) (types.OutPoint, bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	op, ok := w.nullifierToNote[nf]
	return op, ok
}

// GetNoteWitnesses returns copies of the latest witness of each note, nil for
// notes without one, and the root they all share.
func (w *Wallet) GetNoteWitnesses(ops []types.OutPoint) ([]*merkle.Witness, common.FieldHash, bool, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	witnesses := make([]*merkle.Witness, len(ops))
	var root common.FieldHash
	haveRoot := false
	for i, op := range ops {
		nd, ok := w.noteData(op)
		if !ok {
			return nil, common.FieldHash{}, false, fmt.Errorf("%w: %s", poolerrors.ErrWUnknownNote, op)
		}
		front := nd.front()
		if front == nil {
			continue
		}
		r := front.Root()
		if !haveRoot {
			root = r
			haveRoot = true
		} else if !r.Equal(root) {
			return nil, common.FieldHash{}, false, fmt.Errorf("%w: note %s root %s, expected %s", poolerrors.ErrWRootMismatch, op, r, root)
		}
		witnesses[i] = front.Clone()
	}
	return witnesses, root, haveRoot, nil
}

// NoteEntry summarizes a spendable note.
type NoteEntry struct {
	OutPoint      types.OutPoint   `json:"outpoint"`
	Nullifier     common.Nullifier `json:"nullifier"`
	Position      uint64           `json:"position"`
	WitnessHeight int64            `json:"witness_height"`
	CMU           common.FieldHash `json:"cmu"`
}

// UnspentNotes lists notes with a known nullifier that no tracked transaction spends, ordered by outpoint.
func (w *Wallet) UnspentNotes() []NoteEntry {
	w.mu.Lock()
	defer w.mu.Unlock()

	var out []NoteEntry
	for _, wtx := range w.txs {
		for op, nd := range wtx.NoteData {
			if nd.Nullifier == nil || nd.front() == nil || len(w.spends[*nd.Nullifier]) > 0 {
				continue
			}
			out = append(out, NoteEntry{
				OutPoint:      op,
				Nullifier:     *nd.Nullifier,
				Position:      nd.front().Position(),
				WitnessHeight: nd.WitnessHeight,
				CMU:           wtx.Tx.ShieldedOutputs[op.N].CMU,
			})
		}
	}
	slices.SortFunc(out, func(a, b NoteEntry) int {
		return a.OutPoint.Compare(b.OutPoint)
	})
	return out
}
