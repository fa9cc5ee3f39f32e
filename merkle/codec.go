package merkle

import (
	"fmt"
	"io"

	"github.com/colorfulnotion/shieldedpool/common"
	"github.com/colorfulnotion/shieldedpool/poolerrors"
	"github.com/ethereum/go-ethereum/rlp"
)

// treeRLP is the wire form of a CommitmentTree; an empty node is an empty string.
type treeRLP struct {
	Depth   uint64
	Left    []byte
	Right   []byte
	Parents [][]byte
}

type witnessRLP struct {
	Tree        treeRLP
	Filled      []common.FieldHash
	Cursor      *treeRLP `rlp:"nil"`
	CursorDepth uint64
}

func encodeNode(p *common.FieldHash) []byte {
	if p == nil {
		return []byte{}
	}
	b := p.Bytes()
	return b[:]
}

func decodeNode(b []byte) (*common.FieldHash, error) {
	if len(b) == 0 {
		return nil, nil
	}
	f, err := common.FieldHashFromBytes(b)
	if err != nil {
		return nil, err
	}
	return &f, nil
}

func (t *CommitmentTree) toRLP() treeRLP {
	enc := treeRLP{
		Depth:   uint64(t.depth),
		Left:    encodeNode(t.left),
		Right:   encodeNode(t.right),
		Parents: make([][]byte, len(t.parents)),
	}
	for i, p := range t.parents {
		enc.Parents[i] = encodeNode(p)
	}
	return enc
}

func treeFromRLP(enc *treeRLP) (*CommitmentTree, error) {
	if enc.Depth < 1 || enc.Depth > MaxDepth {
		return nil, fmt.Errorf("%w: depth %d", poolerrors.ErrTMalformedSnapshot, enc.Depth)
	}
	if len(enc.Parents) > int(enc.Depth)-1 {
		return nil, fmt.Errorf("%w: %d parents at depth %d", poolerrors.ErrTMalformedSnapshot, len(enc.Parents), enc.Depth)
	}
	t := &CommitmentTree{depth: int(enc.Depth)}
	var err error
	if t.left, err = decodeNode(enc.Left); err != nil {
		return nil, fmt.Errorf("%w: left: %v", poolerrors.ErrTMalformedSnapshot, err)
	}
	if t.right, err = decodeNode(enc.Right); err != nil {
		return nil, fmt.Errorf("%w: right: %v", poolerrors.ErrTMalformedSnapshot, err)
	}
	if t.left == nil && t.right != nil {
		return nil, fmt.Errorf("%w: right leaf without left", poolerrors.ErrTMalformedSnapshot)
	}
	if len(enc.Parents) > 0 {
		t.parents = make([]*common.FieldHash, len(enc.Parents))
		for i, p := range enc.Parents {
			if t.parents[i], err = decodeNode(p); err != nil {
				return nil, fmt.Errorf("%w: parent %d: %v", poolerrors.ErrTMalformedSnapshot, i, err)
			}
		}
	}
	return t, nil
}

// EncodeRLP implements rlp.Encoder.
func (t *CommitmentTree) EncodeRLP(w io.Writer) error {
	return rlp.Encode(w, t.toRLP())
}

// DecodeRLP implements rlp.Decoder.
func (t *CommitmentTree) DecodeRLP(s *rlp.Stream) error {
	var enc treeRLP
	if err := s.Decode(&enc); err != nil {
		return err
	}
	dec, err := treeFromRLP(&enc)
	if err != nil {
		return err
	}
	*t = *dec
	return nil
}

// MarshalBinary returns the RLP encoding of the tree.
func (t *CommitmentTree) MarshalBinary() ([]byte, error) {
	return rlp.EncodeToBytes(t)
}

// UnmarshalBinary decodes the RLP encoding of a tree.
func (t *CommitmentTree) UnmarshalBinary(data []byte) error {
	return rlp.DecodeBytes(data, t)
}

// EncodeRLP implements rlp.Encoder.
func (w *Witness) EncodeRLP(wr io.Writer) error {
	enc := witnessRLP{
		Tree:        w.tree.toRLP(),
		Filled:      w.filled,
		CursorDepth: uint64(w.cursorDepth),
	}
	if w.cursor != nil {
		c := w.cursor.toRLP()
		enc.Cursor = &c
	}
	return rlp.Encode(wr, enc)
}

// DecodeRLP implements rlp.Decoder.
func (w *Witness) DecodeRLP(s *rlp.Stream) error {
	var enc witnessRLP
	if err := s.Decode(&enc); err != nil {
		return err
	}
	tree, err := treeFromRLP(&enc.Tree)
	if err != nil {
		return err
	}
	if tree.left == nil {
		return fmt.Errorf("%w: witness over empty tree", poolerrors.ErrTMalformedSnapshot)
	}
	dec := Witness{tree: tree, filled: enc.Filled, cursorDepth: int(enc.CursorDepth)}
	if enc.Cursor != nil {
		if dec.cursor, err = treeFromRLP(enc.Cursor); err != nil {
			return err
		}
		if dec.cursorDepth < 1 || dec.cursorDepth >= tree.depth {
			return fmt.Errorf("%w: cursor depth %d", poolerrors.ErrTMalformedSnapshot, dec.cursorDepth)
		}
	}
	*w = dec
	return nil
}
