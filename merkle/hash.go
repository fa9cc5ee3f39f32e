package merkle

import (
	"github.com/colorfulnotion/shieldedpool/common"
	"github.com/consensys/gnark-crypto/ecc/bls12-381/fr"
	"github.com/consensys/gnark-crypto/ecc/bls12-381/fr/mimc"
)

const (
	// DefaultDepth is the depth of the sapling commitment tree
	DefaultDepth = 32

	// MaxDepth bounds the depth accepted by NewCommitmentTree and decoders
	MaxDepth = 32
)

// Uncommitted is the leaf value of an unfilled position.
var Uncommitted = common.FieldHashFromUint64(1)

// emptyRoots[d] is the root of an empty subtree of height d
var emptyRoots [MaxDepth + 1]common.FieldHash

func init() {
	emptyRoots[0] = Uncommitted
	for d := 1; d <= MaxDepth; d++ {
		emptyRoots[d] = Combine(d-1, emptyRoots[d-1], emptyRoots[d-1])
	}
}

// EmptyRoot returns the root of an empty subtree of the given height.
func EmptyRoot(depth int) common.FieldHash {
	return emptyRoots[depth]
}

// Combine hashes two children at level into their parent. Leaves are level 0.
func Combine(level int, left, right common.FieldHash) common.FieldHash {
	h := mimc.NewMiMC()
	var lvl fr.Element
	lvl.SetUint64(uint64(level))
	lb := lvl.Bytes()
	lh := left.Bytes()
	rh := right.Bytes()
	// inputs are canonical field encodings so Write cannot fail
	h.Write(lb[:])
	h.Write(lh[:])
	h.Write(rh[:])
	return common.ReduceFieldHash(h.Sum(nil))
}

// pathFiller supplies subtree roots for positions right of the frontier:
// first the queued roots a witness has collected, then empty roots.
type pathFiller struct {
	queue []common.FieldHash
}

func (p *pathFiller) next(depth int) common.FieldHash {
	if len(p.queue) > 0 {
		h := p.queue[0]
		p.queue = p.queue[1:]
		return h
	}
	return EmptyRoot(depth)
}

func emptyFiller() *pathFiller {
	return &pathFiller{}
}
