package wallet

import (
	"fmt"

	"github.com/colorfulnotion/shieldedpool/common"
	"github.com/colorfulnotion/shieldedpool/merkle"
	"github.com/colorfulnotion/shieldedpool/poolerrors"
	"github.com/colorfulnotion/shieldedpool/types"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/rlp"
)

// WitnessExport is what a prover needs to spend one note: the note
// commitment, the anchor, the RLP encoded witness and its binary auth path.
type WitnessExport struct {
	OutPoint types.OutPoint   `json:"outpoint"`
	CMU      common.FieldHash `json:"cmu"`
	Root     common.FieldHash `json:"root"`
	Position uint64           `json:"position"`
	Witness  hexutil.Bytes    `json:"witness"`
	Path     hexutil.Bytes    `json:"path"`
}

// ExportWitnesses serializes the latest witness of every unspent note,
// ordered by outpoint.
func (w *Wallet) ExportWitnesses() ([]WitnessExport, error) {
	notes := w.UnspentNotes()

	w.mu.Lock()
	defer w.mu.Unlock()
	out := make([]WitnessExport, 0, len(notes))
	for _, n := range notes {
		nd, ok := w.noteData(n.OutPoint)
		if !ok || nd.front() == nil {
			continue
		}
		front := nd.front()
		enc, err := rlp.EncodeToBytes(front)
		if err != nil {
			return nil, fmt.Errorf("encode witness %s: %w", n.OutPoint, err)
		}
		path, err := front.Path()
		if err != nil {
			return nil, err
		}
		pathBytes, err := path.MarshalBinary()
		if err != nil {
			return nil, err
		}
		out = append(out, WitnessExport{
			OutPoint: n.OutPoint,
			CMU:      n.CMU,
			Root:     front.Root(),
			Position: front.Position(),
			Witness:  enc,
			Path:     pathBytes,
		})
	}
	return out, nil
}

// Check decodes the witness and path and verifies both lead from CMU to Root.
func (e *WitnessExport) Check() error {
	var witness merkle.Witness
	if err := rlp.DecodeBytes(e.Witness, &witness); err != nil {
		return fmt.Errorf("%w: witness %s: %v", poolerrors.ErrTMalformedSnapshot, e.OutPoint, err)
	}
	var path merkle.AuthPath
	if err := path.UnmarshalBinary(e.Path); err != nil {
		return fmt.Errorf("note %s: %w", e.OutPoint, err)
	}
	if witness.Element() != e.CMU || witness.Position() != e.Position || path.Position != e.Position {
		return fmt.Errorf("%w: note %s witness does not cover its commitment at %d", poolerrors.ErrWRootMismatch, e.OutPoint, e.Position)
	}
	if root := witness.Root(); !root.Equal(e.Root) {
		return fmt.Errorf("%w: note %s witness root %s, exported %s", poolerrors.ErrWRootMismatch, e.OutPoint, root, e.Root)
	}
	if !path.Verify(e.CMU, e.Root) {
		return fmt.Errorf("%w: note %s path does not reach %s", poolerrors.ErrWRootMismatch, e.OutPoint, e.Root)
	}
	return nil
}
