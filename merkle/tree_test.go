package merkle

import (
	"fmt"
	"testing"

	"github.com/colorfulnotion/shieldedpool/common"
	"github.com/colorfulnotion/shieldedpool/poolerrors"
	"github.com/ethereum/go-ethereum/rlp"
	"github.com/stretchr/testify/require"
)

func testLeaf(i int) common.FieldHash {
	return common.HashToField("merkle-test", []byte(fmt.Sprintf("leaf-%d", i)))
}

// naiveRoot builds the full tree level by level.
func naiveRoot(depth int, leaves []common.FieldHash) common.FieldHash {
	level := make([]common.FieldHash, 1<<depth)
	for i := range level {
		if i < len(leaves) {
			level[i] = leaves[i]
		} else {
			level[i] = Uncommitted
		}
	}
	for d := 0; d < depth; d++ {
		next := make([]common.FieldHash, len(level)/2)
		for i := range next {
			next[i] = Combine(d, level[2*i], level[2*i+1])
		}
		level = next
	}
	return level[0]
}

func TestEmptyTreeRoot(t *testing.T) {
	tree, err := NewCommitmentTree(4)
	require.NoError(t, err)
	require.Equal(t, uint64(0), tree.Size())
	require.Equal(t, EmptyRoot(4), tree.Root())
	require.Equal(t, naiveRoot(4, nil), tree.Root())

	_, err = tree.Witness()
	require.ErrorIs(t, err, poolerrors.ErrTEmptyTree)
	_, err = tree.Last()
	require.ErrorIs(t, err, poolerrors.ErrTEmptyTree)

	_, err = NewCommitmentTree(0)
	require.ErrorIs(t, err, poolerrors.ErrTBadDepth)
	_, err = NewCommitmentTree(MaxDepth + 1)
	require.ErrorIs(t, err, poolerrors.ErrTBadDepth)

	require.Equal(t, DefaultDepth, NewDefaultCommitmentTree().Depth())
}

func TestRootMatchesFullTree(t *testing.T) {
	const depth = 4
	tree, err := NewCommitmentTree(depth)
	require.NoError(t, err)

	var leaves []common.FieldHash
	for i := 0; i < 1<<depth; i++ {
		leaves = append(leaves, testLeaf(i))
		require.NoError(t, tree.Append(leaves[i]))
		require.Equal(t, uint64(i+1), tree.Size())
		require.Equal(t, naiveRoot(depth, leaves), tree.Root(), "root after %d leaves", i+1)
		last, err := tree.Last()
		require.NoError(t, err)
		require.Equal(t, leaves[i], last)
	}
	require.True(t, tree.IsComplete(depth))
}

func TestRootIndependentOfWitnesses(t *testing.T) {
	plain, _ := NewCommitmentTree(6)
	busy, _ := NewCommitmentTree(6)
	var witnesses []*Witness

	for i := 0; i < 40; i++ {
		leaf := testLeaf(i)
		require.NoError(t, plain.Append(leaf))
		for _, w := range witnesses {
			require.NoError(t, w.Append(leaf))
		}
		require.NoError(t, busy.Append(leaf))
		if i%3 == 0 {
			w, err := busy.Witness()
			require.NoError(t, err)
			witnesses = append(witnesses, w)
		}
		require.Equal(t, plain.Root(), busy.Root())
	}
}

func TestWitnessTracksTree(t *testing.T) {
	const depth = 5
	tree, _ := NewCommitmentTree(depth)
	var witnesses []*Witness

	for i := 0; i < 1<<depth; i++ {
		leaf := testLeaf(i)
		require.NoError(t, tree.Append(leaf))
		for _, w := range witnesses {
			require.NoError(t, w.Append(leaf))
		}
		w, err := tree.Witness()
		require.NoError(t, err)
		require.Equal(t, uint64(i), w.Position())
		require.Equal(t, leaf, w.Element())
		witnesses = append(witnesses, w)

		root := tree.Root()
		for p, w := range witnesses {
			require.Equal(t, root, w.Root(), "witness %d after %d leaves", p, i+1)
			path, err := w.Path()
			require.NoError(t, err)
			require.Equal(t, uint64(p), path.Position)
			require.Len(t, path.Siblings, depth)
			require.True(t, path.Verify(testLeaf(p), root))
			require.False(t, path.Verify(testLeaf(p+100), root))
		}
	}

	// tree is full: neither the tree nor any witness accepts another leaf
	require.ErrorIs(t, tree.Append(testLeaf(99)), poolerrors.ErrTTreeFull)
	for _, w := range witnesses {
		require.ErrorIs(t, w.Append(testLeaf(99)), poolerrors.ErrTWitnessTreeFull)
	}
}

func TestTreeFull(t *testing.T) {
	tree, err := NewCommitmentTree(2)
	require.NoError(t, err)
	for i := 0; i < 4; i++ {
		require.NoError(t, tree.Append(testLeaf(i)))
	}
	root := tree.Root()
	err = tree.Append(testLeaf(4))
	require.ErrorIs(t, err, poolerrors.ErrTTreeFull)
	require.True(t, poolerrors.IsFatal(err))
	require.Equal(t, uint64(4), tree.Size())
	require.Equal(t, root, tree.Root())
}

func TestCloneIndependence(t *testing.T) {
	tree, _ := NewCommitmentTree(8)
	for i := 0; i < 5; i++ {
		require.NoError(t, tree.Append(testLeaf(i)))
	}
	w, err := tree.Witness()
	require.NoError(t, err)

	root := tree.Root()
	clone := tree.Clone()
	require.NoError(t, clone.Append(testLeaf(5)))
	require.Equal(t, root, tree.Root())
	require.NotEqual(t, root, clone.Root())

	wc := w.Clone()
	require.NoError(t, wc.Append(testLeaf(5)))
	require.Equal(t, root, w.Root())
	require.Equal(t, clone.Root(), wc.Root())
}

func TestTreeRLP(t *testing.T) {
	tree, _ := NewCommitmentTree(7)
	var witness *Witness
	for i := 0; i < 13; i++ {
		leaf := testLeaf(i)
		require.NoError(t, tree.Append(leaf))
		if witness != nil {
			require.NoError(t, witness.Append(leaf))
		}
		if i == 2 {
			witness, _ = tree.Witness()
		}
	}

	enc, err := tree.MarshalBinary()
	require.NoError(t, err)
	var dec CommitmentTree
	require.NoError(t, dec.UnmarshalBinary(enc))
	require.Equal(t, tree.Size(), dec.Size())
	require.Equal(t, tree.Root(), dec.Root())

	wenc, err := rlp.EncodeToBytes(witness)
	require.NoError(t, err)
	var wdec Witness
	require.NoError(t, rlp.DecodeBytes(wenc, &wdec))
	require.Equal(t, witness.Position(), wdec.Position())
	require.Equal(t, tree.Root(), wdec.Root())

	// the decoded pair keeps advancing in lockstep
	for i := 13; i < 30; i++ {
		require.NoError(t, dec.Append(testLeaf(i)))
		require.NoError(t, wdec.Append(testLeaf(i)))
		require.Equal(t, dec.Root(), wdec.Root())
	}

	require.Error(t, dec.UnmarshalBinary([]byte{0xc0}))
}

func TestAuthPathBinary(t *testing.T) {
	tree, _ := NewCommitmentTree(6)
	for i := 0; i < 11; i++ {
		require.NoError(t, tree.Append(testLeaf(i)))
	}
	w, _ := tree.Witness()
	path, err := w.Path()
	require.NoError(t, err)

	data, err := path.MarshalBinary()
	require.NoError(t, err)
	require.Len(t, data, 10+6*common.FieldHashLength)

	var decoded AuthPath
	require.NoError(t, decoded.UnmarshalBinary(data))
	require.Equal(t, path, decoded)
	require.True(t, decoded.Verify(testLeaf(10), tree.Root()))

	err = decoded.UnmarshalBinary(data[:len(data)-1])
	require.ErrorIs(t, err, poolerrors.ErrTMalformedSnapshot)
	err = decoded.UnmarshalBinary(data[:4])
	require.ErrorIs(t, err, poolerrors.ErrTMalformedSnapshot)
}
