package merkle

import (
	"encoding/binary"
	"fmt"

	"github.com/colorfulnotion/shieldedpool/common"
	"github.com/colorfulnotion/shieldedpool/poolerrors"
)

// AuthPath is a leaf position plus its sibling hashes, leaf level first.
type AuthPath struct {
	Position uint64
	Siblings []common.FieldHash
}

// Verify reports whether leaf at p.Position hashes up to root.
func (p AuthPath) Verify(leaf common.FieldHash, root common.FieldHash) bool {
	cur := leaf
	for level, sibling := range p.Siblings {
		if (p.Position>>level)&1 == 1 {
			cur = Combine(level, sibling, cur)
		} else {
			cur = Combine(level, cur, sibling)
		}
	}
	return cur.Equal(root)
}

// MarshalBinary serializes a path for transmission.
// Format: [position:8][path_len:2][siblings:32*len]
func (p AuthPath) MarshalBinary() ([]byte, error) {
	buf := make([]byte, 10+len(p.Siblings)*common.FieldHashLength)
	binary.BigEndian.PutUint64(buf[0:8], p.Position)
	binary.BigEndian.PutUint16(buf[8:10], uint16(len(p.Siblings)))

	offset := 10
	for _, s := range p.Siblings {
		b := s.Bytes()
		copy(buf[offset:offset+common.FieldHashLength], b[:])
		offset += common.FieldHashLength
	}
	return buf, nil
}

// UnmarshalBinary decodes a path produced by MarshalBinary.
func (p *AuthPath) UnmarshalBinary(data []byte) error {
	if len(data) < 10 {
		return fmt.Errorf("%w: auth path too short: %d bytes", poolerrors.ErrTMalformedSnapshot, len(data))
	}
	position := binary.BigEndian.Uint64(data[0:8])
	pathLen := int(binary.BigEndian.Uint16(data[8:10]))
	if pathLen > MaxDepth {
		return fmt.Errorf("%w: auth path length %d", poolerrors.ErrTMalformedSnapshot, pathLen)
	}
	if len(data) != 10+pathLen*common.FieldHashLength {
		return fmt.Errorf("%w: auth path length mismatch: expected %d, got %d",
			poolerrors.ErrTMalformedSnapshot, 10+pathLen*common.FieldHashLength, len(data))
	}

	siblings := make([]common.FieldHash, pathLen)
	offset := 10
	for i := range siblings {
		s, err := common.FieldHashFromBytes(data[offset : offset+common.FieldHashLength])
		if err != nil {
			return fmt.Errorf("%w: sibling %d: %v", poolerrors.ErrTMalformedSnapshot, i, err)
		}
		siblings[i] = s
		offset += common.FieldHashLength
	}
	p.Position = position
	p.Siblings = siblings
	return nil
}
