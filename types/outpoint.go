package types

import (
	"bytes"
	"fmt"

	"github.com/colorfulnotion/shieldedpool/common"
)

// OutPoint names shielded output N of transaction Hash.
type OutPoint struct {
	Hash common.Hash `json:"hash"`
	N    uint32      `json:"n"`
}

func NewOutPoint(hash common.Hash, n uint32) OutPoint {
	return OutPoint{Hash: hash, N: n}
}

// Compare orders outpoints by hash then index.
func (o OutPoint) Compare(other OutPoint) int {
	if c := bytes.Compare(o.Hash[:], other.Hash[:]); c != 0 {
		return c
	}
	switch {
	case o.N < other.N:
		return -1
	case o.N > other.N:
		return 1
	}
	return 0
}

func (o OutPoint) String() string {
	return fmt.Sprintf("%s:%d", o.Hash.String_short(), o.N)
}
