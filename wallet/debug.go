package wallet

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/colorfulnotion/shieldedpool/common"
	"github.com/colorfulnotion/shieldedpool/types"
	"github.com/xlab/treeprint"
	"github.com/yudai/gojsondiff"
	"github.com/yudai/gojsondiff/formatter"
	"golang.org/x/exp/slices"
)

// NoteState is the externally visible witness-cache state of one note.
type NoteState struct {
	OutPoint      types.OutPoint    `json:"outpoint"`
	WitnessHeight int64             `json:"witness_height"`
	Witnesses     int               `json:"witnesses"`
	FrontRoot     *common.FieldHash `json:"front_root,omitempty"`
	FrontPosition *uint64           `json:"front_position,omitempty"`
	Nullifier     *common.Nullifier `json:"nullifier,omitempty"`
}

// WalletState is a deterministic view of the witness cache.
type WalletState struct {
	WitnessCacheSize int         `json:"witness_cache_size"`
	Transactions     int         `json:"transactions"`
	Notes            []NoteState `json:"notes"`
}

// State captures the witness cache, notes ordered by outpoint.
func (w *Wallet) State() WalletState {
	w.mu.Lock()
	defer w.mu.Unlock()

	st := WalletState{
		WitnessCacheSize: w.witnessCacheSize,
		Transactions:     len(w.txs),
		Notes:            []NoteState{},
	}
	for _, wtx := range w.txs {
		for op, nd := range wtx.NoteData {
			ns := NoteState{
				OutPoint:      op,
				WitnessHeight: nd.WitnessHeight,
				Witnesses:     len(nd.Witnesses),
			}
			if front := nd.front(); front != nil {
				root := front.Root()
				pos := front.Position()
				ns.FrontRoot = &root
				ns.FrontPosition = &pos
			}
			if nd.Nullifier != nil {
				nf := *nd.Nullifier
				ns.Nullifier = &nf
			}
			st.Notes = append(st.Notes, ns)
		}
	}
	slices.SortFunc(st.Notes, func(a, b NoteState) int {
		return a.OutPoint.Compare(b.OutPoint)
	})
	return st
}

func (st WalletState) String() string {
	jsonData, err := json.MarshalIndent(st, "", "  ")
	if err != nil {
		return fmt.Sprintf("Error marshaling JSON: %v", err)
	}
	return string(jsonData)
}

// DebugTree renders transactions, their notes and each cached witness.
func (w *Wallet) DebugTree() string {
	w.mu.Lock()
	defer w.mu.Unlock()

	hashes := make([]common.Hash, 0, len(w.txs))
	for h := range w.txs {
		hashes = append(hashes, h)
	}
	slices.SortFunc(hashes, func(a, b common.Hash) int {
		return bytes.Compare(a[:], b[:])
	})

	tree := treeprint.New()
	tree.SetValue(fmt.Sprintf("%s cacheSize=%d window=%d txs=%d", common.Colorize(common.ColorBlue, "Wallet"), w.witnessCacheSize, w.window, len(w.txs)))
	for _, h := range hashes {
		wtx := w.txs[h]
		txNode := tree.AddBranch(fmt.Sprintf("%s block=%s", common.Colorize(common.ColorGreen, "tx "+h.String_short()), wtx.BlockHash.String_short()))
		ops := make([]types.OutPoint, 0, len(wtx.NoteData))
		for op := range wtx.NoteData {
			ops = append(ops, op)
		}
		slices.SortFunc(ops, func(a, b types.OutPoint) int { return a.Compare(b) })
		for _, op := range ops {
			nd := wtx.NoteData[op]
			nf := "none"
			if nd.Nullifier != nil {
				nf = nd.Nullifier.Hex()[:10]
			}
			noteNode := txNode.AddBranch(fmt.Sprintf("%s ivk=%s height=%d minted=%d nf=%s", common.Colorize(common.ColorYellow, fmt.Sprintf("note %d", op.N)), nd.IVK, nd.WitnessHeight, nd.MintHeight, nf))
			for i, wit := range nd.Witnesses {
				noteNode.AddNode(fmt.Sprintf("[%d] %s", i, wit))
			}
		}
	}
	return tree.String()
}

// DiffStates renders the differences between two wallet states, or returns
// the empty string when they match.
func DiffStates(expected, actual WalletState) (string, error) {
	left, err := json.Marshal(expected)
	if err != nil {
		return "", err
	}
	right, err := json.Marshal(actual)
	if err != nil {
		return "", err
	}
	delta, err := gojsondiff.New().Compare(left, right)
	if err != nil {
		return "", fmt.Errorf("diff wallet states: %w", err)
	}
	if !delta.Modified() {
		return "", nil
	}
	var leftObj interface{}
	if err := json.Unmarshal(left, &leftObj); err != nil {
		return "", err
	}
	asciiFmt := formatter.NewAsciiFormatter(leftObj, formatter.AsciiFormatterConfig{ShowArrayIndex: true})
	return asciiFmt.Format(delta)
}
