package coins

import (
	"errors"
	"testing"

	"github.com/colorfulnotion/shieldedpool/common"
	"github.com/colorfulnotion/shieldedpool/merkle"
	"github.com/colorfulnotion/shieldedpool/poolerrors"
	"github.com/colorfulnotion/shieldedpool/types"
	"github.com/stretchr/testify/require"
)

const testDepth = 8

// countingBackend records how often each load reaches the base store.
type countingBackend struct {
	*MemoryBackend
	anchorLoads    int
	nullifierLoads int
	fail           bool
}

func newCountingBackend() *countingBackend {
	return &countingBackend{MemoryBackend: NewMemoryBackend()}
}

func (b *countingBackend) GetAnchorAt(root common.FieldHash) (*merkle.CommitmentTree, bool, error) {
	b.anchorLoads++
	if b.fail {
		return nil, false, errors.New("disk on fire")
	}
	return b.MemoryBackend.GetAnchorAt(root)
}

func (b *countingBackend) GetNullifier(nf common.Nullifier) (bool, error) {
	b.nullifierLoads++
	return b.MemoryBackend.GetNullifier(nf)
}

func treeWith(t *testing.T, leaves ...uint64) *merkle.CommitmentTree {
	tree, err := merkle.NewCommitmentTree(testDepth)
	require.NoError(t, err)
	for _, l := range leaves {
		require.NoError(t, tree.Append(common.FieldHashFromUint64(l)))
	}
	return tree
}

func spendTx(nfs ...byte) *types.Transaction {
	tx := &types.Transaction{}
	for _, b := range nfs {
		tx.ShieldedSpends = append(tx.ShieldedSpends, types.SpendDescription{Nullifier: common.BytesToNullifier([]byte{b})})
	}
	return tx
}

func TestGetAnchorAtLoadsOnce(t *testing.T) {
	base := newCountingBackend()
	tree := treeWith(t, 10, 11, 12)
	root := tree.Root()
	require.NoError(t, base.BatchWrite(&Batch{Anchors: []AnchorWrite{{Root: root, Tree: tree}}}))

	view := NewCoinViewCache(base, testDepth)
	first, ok, err := view.GetAnchorAt(root)
	require.NoError(t, err)
	require.True(t, ok)
	second, ok, err := view.GetAnchorAt(root)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, 1, base.anchorLoads)
	require.Equal(t, root, second.Root())

	// returned trees are independent snapshots
	require.NoError(t, first.Append(common.FieldHashFromUint64(13)))
	third, _, _ := view.GetAnchorAt(root)
	require.Equal(t, root, third.Root())
	require.Equal(t, uint64(3), third.Size())
}

func TestGetAnchorAtMissIsNotCached(t *testing.T) {
	base := newCountingBackend()
	view := NewCoinViewCache(base, testDepth)
	unknown := common.FieldHashFromUint64(777)

	_, ok, err := view.GetAnchorAt(unknown)
	require.NoError(t, err)
	require.False(t, ok)
	_, ok, _ = view.GetAnchorAt(unknown)
	require.False(t, ok)
	require.Equal(t, 2, base.anchorLoads)

	// the empty root always resolves without touching the base
	empty, ok, err := view.GetAnchorAt(merkle.EmptyRoot(testDepth))
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, uint64(0), empty.Size())
	require.Equal(t, 2, base.anchorLoads)

	base.fail = true
	_, _, err = view.GetAnchorAt(unknown)
	require.ErrorIs(t, err, poolerrors.ErrABackendUnavailable)
	require.True(t, poolerrors.IsLookupMiss(err))
}

func TestGetAnchorAtPrefersCachedTree(t *testing.T) {
	base := newCountingBackend()
	view := NewCoinViewCache(base, testDepth)

	// a single uncommitted-valued leaf hashes to the empty root
	tree, err := merkle.NewCommitmentTree(testDepth)
	require.NoError(t, err)
	require.NoError(t, tree.Append(merkle.Uncommitted))
	root := tree.Root()
	require.Equal(t, merkle.EmptyRoot(testDepth), root)

	view.PushAnchor(tree)
	got, ok, err := view.GetAnchorAt(root)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, uint64(1), got.Size())

	// once erased, the empty root still resolves to a fresh tree
	require.NoError(t, view.PopAnchor(nil))
	got, ok, err = view.GetAnchorAt(root)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, uint64(0), got.Size())
	require.Equal(t, 0, base.anchorLoads)
}

func TestSetNullifiers(t *testing.T) {
	base := newCountingBackend()
	view := NewCoinViewCache(base, testDepth)
	tx := spendTx(1, 2)

	view.SetNullifiers(tx, true)
	for _, nf := range tx.Nullifiers() {
		spent, err := view.GetNullifier(nf)
		require.NoError(t, err)
		require.True(t, spent)
	}
	require.Equal(t, 0, base.nullifierLoads)

	untouched := common.BytesToNullifier([]byte{3})
	spent, err := view.GetNullifier(untouched)
	require.NoError(t, err)
	require.False(t, spent)
	_, _ = view.GetNullifier(untouched)
	require.Equal(t, 1, base.nullifierLoads)

	view.SetNullifiers(tx, false)
	spent, _ = view.GetNullifier(tx.Nullifiers()[0])
	require.False(t, spent)
}

func TestGetNullifierReadsBase(t *testing.T) {
	base := newCountingBackend()
	nf := common.BytesToNullifier([]byte{9})
	require.NoError(t, base.BatchWrite(&Batch{Nullifiers: []NullifierWrite{{Nullifier: nf, Spent: true}}}))

	view := NewCoinViewCache(base, testDepth)
	spent, err := view.GetNullifier(nf)
	require.NoError(t, err)
	require.True(t, spent)
	spent, _ = view.GetNullifier(nf)
	require.True(t, spent)
	require.Equal(t, 1, base.nullifierLoads)

	err = view.CheckShieldedRequirements(spendTx(9))
	require.ErrorIs(t, err, poolerrors.ErrNAlreadySpent)
}

func TestPushPopAnchor(t *testing.T) {
	base := newCountingBackend()
	view := NewCoinViewCache(base, testDepth)

	_, ok, err := view.GetBestAnchor()
	require.NoError(t, err)
	require.False(t, ok)

	t1 := treeWith(t, 3)
	t2 := treeWith(t, 3, 4)
	view.PushAnchor(t1)
	view.PushAnchor(t2)
	best, ok, _ := view.GetBestAnchor()
	require.True(t, ok)
	require.Equal(t, t2.Root(), best)

	// a block without outputs pushes the same root; popping it keeps the anchor
	view.PushAnchor(t2)
	r2 := t2.Root()
	require.NoError(t, view.PopAnchor(&r2))
	_, ok, _ = view.GetAnchorAt(r2)
	require.True(t, ok)

	r1 := t1.Root()
	require.NoError(t, view.PopAnchor(&r1))
	best, _, _ = view.GetBestAnchor()
	require.Equal(t, r1, best)
	_, ok, _ = view.GetAnchorAt(r2)
	require.False(t, ok)

	require.NoError(t, view.PopAnchor(nil))
	_, ok, _ = view.GetBestAnchor()
	require.False(t, ok)
}

func TestCheckShieldedRequirements(t *testing.T) {
	view := NewCoinViewCache(NewMemoryBackend(), testDepth)
	tree := treeWith(t, 5, 6)
	view.PushAnchor(tree)

	tx := spendTx(1)
	tx.ShieldedSpends[0].Anchor = tree.Root()
	require.NoError(t, view.CheckShieldedRequirements(tx))
	require.True(t, view.HaveShieldedRequirements(tx))

	tx.ShieldedSpends[0].Anchor = common.FieldHashFromUint64(12345)
	require.ErrorIs(t, view.CheckShieldedRequirements(tx), poolerrors.ErrAAnchorNotFound)
}

func TestFlush(t *testing.T) {
	base := NewMemoryBackend()
	view := NewCoinViewCache(base, testDepth)

	t1 := treeWith(t, 3)
	t2 := treeWith(t, 3, 4)
	view.PushAnchor(t1)
	view.PushAnchor(t2)
	view.SetNullifiers(spendTx(1, 2), true)
	block := common.HexToHash("0xbeef")
	view.SetBestBlock(block)
	require.NoError(t, view.Flush())

	anchors, nullifiers := base.Counts()
	require.Equal(t, 2, anchors)
	require.Equal(t, 2, nullifiers)
	best, ok, _ := base.GetBestAnchor()
	require.True(t, ok)
	require.Equal(t, t2.Root(), best)
	got, _ := base.GetBestBlock()
	require.Equal(t, block, got)

	// erasures propagate: pop back to t1 and unspend one nullifier
	r1 := t1.Root()
	require.NoError(t, view.PopAnchor(&r1))
	view.SetNullifiers(spendTx(2), false)
	require.NoError(t, view.Flush())
	anchors, nullifiers = base.Counts()
	require.Equal(t, 1, anchors)
	require.Equal(t, 1, nullifiers)

	cachedAnchors, cachedNullifiers := view.CacheSize()
	require.Equal(t, 2, cachedAnchors)
	require.Equal(t, 2, cachedNullifiers)

	// a fresh view over the same base sees the flushed state
	fresh := NewCoinViewCache(base, testDepth)
	best, ok, _ = fresh.GetBestAnchor()
	require.True(t, ok)
	require.Equal(t, r1, best)
	tree, ok, err := fresh.GetAnchorAt(r1)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, uint64(1), tree.Size())
}
