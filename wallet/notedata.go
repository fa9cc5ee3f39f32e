package wallet

import (
	"github.com/colorfulnotion/shieldedpool/common"
	"github.com/colorfulnotion/shieldedpool/merkle"
	"github.com/colorfulnotion/shieldedpool/types"
)

// WitnessHeightUninitialized marks a note whose witnesses were never advanced.
const WitnessHeightUninitialized int64 = -1

// NoteData is the wallet record of one shielded output we own.
type NoteData struct {
	IVK IncomingViewingKey
	// Witnesses[0] is the latest; each older entry is one block behind
	Witnesses     []*merkle.Witness
	WitnessHeight int64
	// MintHeight is the height of the block that created the note
	MintHeight int64
	Nullifier  *common.Nullifier
}

func newNoteData(ivk IncomingViewingKey) *NoteData {
	return &NoteData{
		IVK:           ivk,
		WitnessHeight: WitnessHeightUninitialized,
		MintHeight:    WitnessHeightUninitialized,
	}
}

func (nd *NoteData) front() *merkle.Witness {
	if len(nd.Witnesses) == 0 {
		return nil
	}
	return nd.Witnesses[0]
}

func (nd *NoteData) pushFront(w *merkle.Witness) {
	nd.Witnesses = append(nd.Witnesses, nil)
	copy(nd.Witnesses[1:], nd.Witnesses)
	nd.Witnesses[0] = w
}

func (nd *NoteData) popFront() {
	nd.Witnesses[0] = nil
	nd.Witnesses = nd.Witnesses[1:]
}

func (nd *NoteData) popBack() {
	nd.Witnesses[len(nd.Witnesses)-1] = nil
	nd.Witnesses = nd.Witnesses[:len(nd.Witnesses)-1]
}

// WalletTransaction is a transaction that pays to or spends from the wallet.
type WalletTransaction struct {
	Tx        types.Transaction
	Hash      common.Hash
	BlockHash common.Hash
	NoteData  map[types.OutPoint]*NoteData
}

func newWalletTransaction(tx *types.Transaction, block *types.Block) *WalletTransaction {
	wtx := &WalletTransaction{
		Tx:       *tx,
		Hash:     tx.Hash(),
		NoteData: make(map[types.OutPoint]*NoteData),
	}
	if block != nil {
		wtx.BlockHash = block.Hash()
	}
	return wtx
}
