// Package merkle implements the fixed-depth, append-only note commitment tree
// and the incremental witnesses that authenticate individual leaves.
package merkle

import (
	"fmt"

	"github.com/colorfulnotion/shieldedpool/common"
	"github.com/colorfulnotion/shieldedpool/log"
	"github.com/colorfulnotion/shieldedpool/poolerrors"
)

// CommitmentTree is an incremental Merkle tree that stores only its frontier:
// the two newest leaves and one optional node per level above them.
type CommitmentTree struct {
	depth   int
	left    *common.FieldHash
	right   *common.FieldHash
	parents []*common.FieldHash
}

// NewCommitmentTree creates an empty tree holding up to 2^depth leaves
func NewCommitmentTree(depth int) (*CommitmentTree, error) {
	if depth < 1 || depth > MaxDepth {
		return nil, fmt.Errorf("%w: %d", poolerrors.ErrTBadDepth, depth)
	}
	return &CommitmentTree{depth: depth}, nil
}

// NewDefaultCommitmentTree creates an empty tree of DefaultDepth
func NewDefaultCommitmentTree() *CommitmentTree {
	return &CommitmentTree{depth: DefaultDepth}
}

func (t *CommitmentTree) Depth() int {
	return t.depth
}

// Size returns the number of leaves appended so far
func (t *CommitmentTree) Size() uint64 {
	var size uint64
	if t.left != nil {
		size++
	}
	if t.right != nil {
		size++
	}
	for i, p := range t.parents {
		if p != nil {
			size += 1 << (i + 1)
		}
	}
	return size
}

// Capacity returns 2^depth.
func (t *CommitmentTree) Capacity() uint64 {
	return 1 << t.depth
}

// Append inserts leaf at the next position.
func (t *CommitmentTree) Append(leaf common.FieldHash) error {
	if t.IsComplete(t.depth) {
		log.Warn(log.TreeMonitoring, "CommitmentTree: append to full tree", "depth", t.depth)
		return fmt.Errorf("%w: depth %d", poolerrors.ErrTTreeFull, t.depth)
	}
	if t.left == nil {
		t.left = &leaf
		return nil
	}
	if t.right == nil {
		t.right = &leaf
		return nil
	}

	// both leaves are set: fold them into the parents and start a new pair
	combined := Combine(0, *t.left, *t.right)
	t.left = &leaf
	t.right = nil
	for i := 0; i < t.depth; i++ {
		if i < len(t.parents) {
			if t.parents[i] != nil {
				combined = Combine(i+1, *t.parents[i], combined)
				t.parents[i] = nil
				continue
			}
			c := combined
			t.parents[i] = &c
			break
		}
		c := combined
		t.parents = append(t.parents, &c)
		break
	}
	return nil
}

// IsComplete reports whether the subtree of the given height is full.
func (t *CommitmentTree) IsComplete(depth int) bool {
	if t.left == nil || t.right == nil {
		return false
	}
	if len(t.parents) != depth-1 {
		return false
	}
	for _, p := range t.parents {
		if p == nil {
			return false
		}
	}
	return true
}

// NextDepth returns the height of the next subtree a witness must fill,
// skipping the first `skip` gaps which the witness has already filled.
func (t *CommitmentTree) NextDepth(skip int) int {
	if t.left == nil {
		if skip == 0 {
			return 0
		}
		skip--
	}
	if t.right == nil {
		if skip == 0 {
			return 0
		}
		skip--
	}
	d := 1
	for _, p := range t.parents {
		if p == nil {
			if skip == 0 {
				return d
			}
			skip--
		}
		d++
	}
	return d + skip
}

// Root returns the tree root, padding unfilled positions with empty roots.
func (t *CommitmentTree) Root() common.FieldHash {
	return t.rootWith(t.depth, emptyFiller())
}

func (t *CommitmentTree) rootWith(depth int, filler *pathFiller) common.FieldHash {
	var l, r common.FieldHash
	if t.left != nil {
		l = *t.left
	} else {
		l = filler.next(0)
	}
	if t.right != nil {
		r = *t.right
	} else {
		r = filler.next(0)
	}
	root := Combine(0, l, r)

	d := 1
	for _, p := range t.parents {
		if p != nil {
			root = Combine(d, *p, root)
		} else {
			root = Combine(d, root, filler.next(d))
		}
		d++
	}
	for ; d < depth; d++ {
		root = Combine(d, root, filler.next(d))
	}
	return root
}

// Last returns the most recently appended leaf.
func (t *CommitmentTree) Last() (common.FieldHash, error) {
	if t.right != nil {
		return *t.right, nil
	}
	if t.left != nil {
		return *t.left, nil
	}
	return common.FieldHash{}, poolerrors.ErrTEmptyTree
}

// path returns the authentication path of the last leaf.
func (t *CommitmentTree) path(filler *pathFiller) (AuthPath, error) {
	if t.left == nil {
		return AuthPath{}, poolerrors.ErrTEmptyTree
	}
	siblings := make([]common.FieldHash, 0, t.depth)
	var position uint64
	if t.right != nil {
		position |= 1
		siblings = append(siblings, *t.left)
	} else {
		siblings = append(siblings, filler.next(0))
	}

	d := 1
	for _, p := range t.parents {
		if p != nil {
			position |= 1 << d
			siblings = append(siblings, *p)
		} else {
			siblings = append(siblings, filler.next(d))
		}
		d++
	}
	for ; d < t.depth; d++ {
		siblings = append(siblings, filler.next(d))
	}
	return AuthPath{Position: position, Siblings: siblings}, nil
}

// Witness snapshots the tree so the last appended leaf can be authenticated
// as the tree keeps growing.
func (t *CommitmentTree) Witness() (*Witness, error) {
	if t.left == nil {
		return nil, poolerrors.ErrTEmptyTree
	}
	return &Witness{tree: t.Clone()}, nil
}

// Clone returns a deep copy.
func (t *CommitmentTree) Clone() *CommitmentTree {
	c := &CommitmentTree{
		depth: t.depth,
		left:  cloneNode(t.left),
		right: cloneNode(t.right),
	}
	if t.parents != nil {
		c.parents = make([]*common.FieldHash, len(t.parents))
		for i, p := range t.parents {
			c.parents[i] = cloneNode(p)
		}
	}
	return c
}

func (t *CommitmentTree) String() string {
	return fmt.Sprintf("CommitmentTree{depth=%d size=%d root=%s}", t.depth, t.Size(), t.Root().String_short())
}

func cloneNode(p *common.FieldHash) *common.FieldHash {
	if p == nil {
		return nil
	}
	c := *p
	return &c
}
