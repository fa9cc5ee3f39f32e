package merkle

import (
	"fmt"

	"github.com/colorfulnotion/shieldedpool/common"
	"github.com/colorfulnotion/shieldedpool/poolerrors"
)

// Witness authenticates one leaf. It holds the tree as it was when the leaf
// was appended and absorbs every later leaf, keeping only the subtree roots
// its path needs.
type Witness struct {
	tree        *CommitmentTree
	filled      []common.FieldHash
	cursor      *CommitmentTree
	cursorDepth int
}

// Position is the 0-based index of the witnessed leaf.
func (w *Witness) Position() uint64 {
	return w.tree.Size() - 1
}

// Element returns the witnessed leaf.
func (w *Witness) Element() common.FieldHash {
	leaf, _ := w.tree.Last()
	return leaf
}

func (w *Witness) Depth() int {
	return w.tree.depth
}

// Append must be called for every leaf appended to the tree after the
// witness was created, in the same order.
func (w *Witness) Append(leaf common.FieldHash) error {
	if w.cursor != nil {
		if err := w.cursor.Append(leaf); err != nil {
			return err
		}
		if w.cursor.IsComplete(w.cursorDepth) {
			w.filled = append(w.filled, w.cursor.rootWith(w.cursorDepth, emptyFiller()))
			w.cursor = nil
		}
		return nil
	}

	w.cursorDepth = w.tree.NextDepth(len(w.filled))
	if w.cursorDepth >= w.tree.depth {
		return fmt.Errorf("%w: position %d", poolerrors.ErrTWitnessTreeFull, w.Position())
	}
	if w.cursorDepth == 0 {
		w.filled = append(w.filled, leaf)
		return nil
	}
	w.cursor = &CommitmentTree{depth: w.tree.depth}
	return w.cursor.Append(leaf)
}

func (w *Witness) partialPathFiller() *pathFiller {
	queue := make([]common.FieldHash, len(w.filled), len(w.filled)+1)
	copy(queue, w.filled)
	if w.cursor != nil {
		queue = append(queue, w.cursor.rootWith(w.cursorDepth, emptyFiller()))
	}
	return &pathFiller{queue: queue}
}

// Root recomputes the tree root along the witnessed path.
func (w *Witness) Root() common.FieldHash {
	return w.tree.rootWith(w.tree.depth, w.partialPathFiller())
}

// Path returns the authentication path of the witnessed leaf.
func (w *Witness) Path() (AuthPath, error) {
	return w.tree.path(w.partialPathFiller())
}

// Clone returns a deep copy that advances independently.
func (w *Witness) Clone() *Witness {
	c := &Witness{
		tree:        w.tree.Clone(),
		cursorDepth: w.cursorDepth,
	}
	if w.filled != nil {
		c.filled = make([]common.FieldHash, len(w.filled))
		copy(c.filled, w.filled)
	}
	if w.cursor != nil {
		c.cursor = w.cursor.Clone()
	}
	return c
}

func (w *Witness) String() string {
	return fmt.Sprintf("Witness{pos=%d root=%s filled=%d}", w.Position(), w.Root().String_short(), len(w.filled))
}
