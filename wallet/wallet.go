// Package wallet tracks the shielded notes a node's keys own and keeps a
// bounded history of witnesses for each of them, advanced leaf for leaf with
// the commitment tree as blocks connect and rewound as they disconnect.
package wallet

import (
	"sync"

	"github.com/colorfulnotion/shieldedpool/common"
	"github.com/colorfulnotion/shieldedpool/log"
	"github.com/colorfulnotion/shieldedpool/merkle"
	"github.com/colorfulnotion/shieldedpool/types"
	"golang.org/x/exp/slices"
)

type Wallet struct {
	mu sync.Mutex

	keys        KeyStore
	depth       int
	window      int
	verifyRoots bool

	// witnessCacheSize counts the blocks of witness history held, capped at window
	witnessCacheSize int

	txs             map[common.Hash]*WalletTransaction
	nullifierToNote map[common.Nullifier]types.OutPoint
	spends          map[common.Nullifier][]common.Hash
}

func NewWallet(keys KeyStore, cfg *types.Config) *Wallet {
	return &Wallet{
		keys:            keys,
		depth:           cfg.TreeDepth,
		window:          cfg.WitnessCacheWindow,
		verifyRoots:     cfg.VerifyWitnessRoots,
		txs:             make(map[common.Hash]*WalletTransaction),
		nullifierToNote: make(map[common.Nullifier]types.OutPoint),
		spends:          make(map[common.Nullifier][]common.Hash),
	}
}

// WitnessCacheSize returns how many blocks of witness history are held.
func (w *Wallet) WitnessCacheSize() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.witnessCacheSize
}

// AddToWalletIfInvolvingMe records tx when it pays one of our keys or spends
// one of our notes. An already tracked tx is left alone unless update is set,
// in which case newly found notes are merged in. Reports whether tx involves
// the wallet.
func (w *Wallet) AddToWalletIfInvolvingMe(tx *types.Transaction, block *types.Block, update bool) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.addToWalletIfInvolvingMe(tx, block, update)
}

func (w *Wallet) addToWalletIfInvolvingMe(tx *types.Transaction, block *types.Block, update bool) bool {
	hash := tx.Hash()
	wtx, existed := w.txs[hash]
	if existed && !update {
		if block != nil {
			w.attachToBlock(wtx, block)
		}
		return false
	}

	notes := w.keys.FindMyNotes(tx)
	if !existed && len(notes) == 0 && !w.isFromMe(tx) {
		return false
	}

	if !existed {
		wtx = newWalletTransaction(tx, block)
		w.txs[hash] = wtx
		w.addToSpends(wtx)
		log.Debug(log.WalletMonitoring, "AddToWallet: new transaction", "tx", hash.String_short(), "notes", len(notes))
	} else if block != nil {
		w.attachToBlock(wtx, block)
	}
	for op, ivk := range notes {
		if _, ok := wtx.NoteData[op]; !ok {
			wtx.NoteData[op] = newNoteData(ivk)
		}
	}
	return true
}

// isFromMe reports whether tx spends a note we know the nullifier of.
func (w *Wallet) isFromMe(tx *types.Transaction) bool {
	for _, s := range tx.ShieldedSpends {
		if _, ok := w.nullifierToNote[s.Nullifier]; ok {
			return true
		}
	}
	return false
}

func (w *Wallet) addToSpends(wtx *WalletTransaction) {
	if wtx.Tx.Coinbase {
		return
	}
	for _, s := range wtx.Tx.ShieldedSpends {
		if !slices.Contains(w.spends[s.Nullifier], wtx.Hash) {
			w.spends[s.Nullifier] = append(w.spends[s.Nullifier], wtx.Hash)
		}
	}
}

func (w *Wallet) removeFromSpends(wtx *WalletTransaction) {
	for _, s := range wtx.Tx.ShieldedSpends {
		txids := slices.DeleteFunc(w.spends[s.Nullifier], func(h common.Hash) bool { return h == wtx.Hash })
		if len(txids) == 0 {
			delete(w.spends, s.Nullifier)
		} else {
			w.spends[s.Nullifier] = txids
		}
	}
}

// attachToBlock records that wtx was (re)confirmed in block.
func (w *Wallet) attachToBlock(wtx *WalletTransaction, block *types.Block) {
	wtx.BlockHash = block.Hash()
	w.addToSpends(wtx)
}

// detachBlock drops the spends of our transactions in a disconnected block;
// they count again once the block or another holding them connects.
func (w *Wallet) detachBlock(block *types.Block) {
	hash := block.Hash()
	for i := range block.Transactions {
		wtx, ok := w.txs[block.Transactions[i].Hash()]
		if !ok || wtx.BlockHash != hash {
			continue
		}
		w.removeFromSpends(wtx)
		wtx.BlockHash = common.Hash{}
	}
}

// GetWalletTx returns the tracked transaction with the given id.
func (w *Wallet) GetWalletTx(hash common.Hash) (*WalletTransaction, bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	wtx, ok := w.txs[hash]
	return wtx, ok
}

// TxCount returns the number of tracked transactions.
func (w *Wallet) TxCount() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.txs)
}

func (w *Wallet) noteData(op types.OutPoint) (*NoteData, bool) {
	wtx, ok := w.txs[op.Hash]
	if !ok {
		return nil, false
	}
	nd, ok := wtx.NoteData[op]
	return nd, ok
}

// ChainTip advances (added) or rewinds the witness cache for the block at
// index, then refreshes the nullifiers of our notes in that block. When
// adding, tree must be the commitment tree before the block; the block's
// outputs are appended to it.
func (w *Wallet) ChainTip(index *types.BlockIndex, block *types.Block, tree *merkle.CommitmentTree, added bool) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.chainTip(index, block, tree, added)
}

func (w *Wallet) chainTip(index *types.BlockIndex, block *types.Block, tree *merkle.CommitmentTree, added bool) error {
	height := int64(index.Height)
	if added {
		if err := w.incrementNoteWitnesses(height, block, tree); err != nil {
			return err
		}
	} else {
		if err := w.decrementNoteWitnesses(height); err != nil {
			return err
		}
		w.detachBlock(block)
	}
	return w.updateNullifierNoteMapForBlock(block)
}

// SyncBlock offers every transaction of block to AddToWalletIfInvolvingMe.
func (w *Wallet) SyncBlock(block *types.Block) int {
	w.mu.Lock()
	defer w.mu.Unlock()
	n := 0
	for i := range block.Transactions {
		if w.addToWalletIfInvolvingMe(&block.Transactions[i], block, false) {
			n++
		}
	}
	return n
}
