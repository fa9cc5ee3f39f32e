package storage

import (
	"path/filepath"
	"testing"

	"github.com/colorfulnotion/shieldedpool/coins"
	"github.com/colorfulnotion/shieldedpool/common"
	"github.com/colorfulnotion/shieldedpool/merkle"
	"github.com/colorfulnotion/shieldedpool/types"
)

func TestShieldedStoreBatchWrite(t *testing.T) {
	store, err := NewShieldedStore("")
	if err != nil {
		t.Fatalf("NewShieldedStore: %v", err)
	}
	defer store.Close()

	if _, ok, err := store.GetBestAnchor(); err != nil || ok {
		t.Fatalf("fresh store best anchor: ok=%v err=%v", ok, err)
	}

	tree, _ := merkle.NewCommitmentTree(16)
	for i := uint64(0); i < 5; i++ {
		if err := tree.Append(common.FieldHashFromUint64(1000 + i)); err != nil {
			t.Fatalf("Append: %v", err)
		}
	}
	root := tree.Root()
	nf := common.BytesToNullifier([]byte{0x42})
	block := common.HexToHash("0x0102")

	err = store.BatchWrite(&coins.Batch{
		Anchors:    []coins.AnchorWrite{{Root: root, Tree: tree}},
		Nullifiers: []coins.NullifierWrite{{Nullifier: nf, Spent: true}},
		BestAnchor: &root,
		BestBlock:  block,
	})
	if err != nil {
		t.Fatalf("BatchWrite: %v", err)
	}

	loaded, ok, err := store.GetAnchorAt(root)
	if err != nil || !ok {
		t.Fatalf("GetAnchorAt: ok=%v err=%v", ok, err)
	}
	if loaded.Root() != root || loaded.Size() != 5 {
		t.Errorf("loaded tree %s does not match stored tree %s", loaded, tree)
	}
	spent, err := store.GetNullifier(nf)
	if err != nil || !spent {
		t.Errorf("GetNullifier: spent=%v err=%v", spent, err)
	}
	best, ok, _ := store.GetBestAnchor()
	if !ok || best != root {
		t.Errorf("best anchor %s, want %s", best, root)
	}
	gotBlock, _ := store.GetBestBlock()
	if gotBlock != block {
		t.Errorf("best block %s, want %s", gotBlock, block)
	}

	// erase everything again
	err = store.BatchWrite(&coins.Batch{
		Anchors:    []coins.AnchorWrite{{Root: root}},
		Nullifiers: []coins.NullifierWrite{{Nullifier: nf, Spent: false}},
	})
	if err != nil {
		t.Fatalf("BatchWrite erase: %v", err)
	}
	anchors, nullifiers, err := store.Counts()
	if err != nil {
		t.Fatalf("Counts: %v", err)
	}
	if anchors != 0 || nullifiers != 0 {
		t.Errorf("Counts after erase = %d, %d", anchors, nullifiers)
	}
	if _, ok, _ := store.GetBestAnchor(); ok {
		t.Error("best anchor survived erase")
	}
}

func TestShieldedStoreUnderCoinView(t *testing.T) {
	path := filepath.Join(t.TempDir(), "shielded")
	store, err := NewShieldedStore(path)
	if err != nil {
		t.Fatalf("NewShieldedStore: %v", err)
	}

	view := coins.NewCoinViewCache(store, 16)
	tree, _ := merkle.NewCommitmentTree(16)
	tree.Append(common.FieldHashFromUint64(7))
	view.PushAnchor(tree)
	tx := &types.Transaction{ShieldedSpends: []types.SpendDescription{
		{Nullifier: common.BytesToNullifier([]byte{1})},
		{Nullifier: common.BytesToNullifier([]byte{2})},
	}}
	view.SetNullifiers(tx, true)
	view.SetBestBlock(common.HexToHash("0xaa"))
	if err := view.Flush(); err != nil {
		t.Fatalf("Flush: %v", err)
	}
	if err := store.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	// reopen from disk
	store, err = NewShieldedStore(path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer store.Close()
	fresh := coins.NewCoinViewCache(store, 16)
	best, ok, err := fresh.GetBestAnchor()
	if err != nil || !ok || best != tree.Root() {
		t.Fatalf("best anchor after reopen: %s ok=%v err=%v", best, ok, err)
	}
	if _, ok, _ := fresh.GetAnchorAt(best); !ok {
		t.Error("anchor missing after reopen")
	}
	nfs, err := store.ListNullifiers()
	if err != nil {
		t.Fatalf("ListNullifiers: %v", err)
	}
	if len(nfs) != 2 || nfs[0] != tx.Nullifiers()[0] {
		t.Errorf("ListNullifiers = %v", nfs)
	}
}
