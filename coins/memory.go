package coins

import (
	"sync"

	"github.com/colorfulnotion/shieldedpool/common"
	"github.com/colorfulnotion/shieldedpool/merkle"
)

// MemoryBackend is an in-process Backend, used by tests and dry runs.
type MemoryBackend struct {
	mu         sync.RWMutex
	anchors    map[common.FieldHash]*merkle.CommitmentTree
	nullifiers map[common.Nullifier]struct{}
	bestAnchor *common.FieldHash
	bestBlock  common.Hash
}

func NewMemoryBackend() *MemoryBackend {
	return &MemoryBackend{
		anchors:    make(map[common.FieldHash]*merkle.CommitmentTree),
		nullifiers: make(map[common.Nullifier]struct{}),
	}
}

func (m *MemoryBackend) GetAnchorAt(root common.FieldHash) (*merkle.CommitmentTree, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	tree, ok := m.anchors[root]
	if !ok {
		return nil, false, nil
	}
	return tree.Clone(), true, nil
}

func (m *MemoryBackend) GetNullifier(nf common.Nullifier) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.nullifiers[nf]
	return ok, nil
}

func (m *MemoryBackend) GetBestAnchor() (common.FieldHash, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.bestAnchor == nil {
		return common.FieldHash{}, false, nil
	}
	return *m.bestAnchor, true, nil
}

func (m *MemoryBackend) GetBestBlock() (common.Hash, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.bestBlock, nil
}

func (m *MemoryBackend) BatchWrite(batch *Batch) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, a := range batch.Anchors {
		if a.Tree == nil {
			delete(m.anchors, a.Root)
			continue
		}
		m.anchors[a.Root] = a.Tree.Clone()
	}
	for _, n := range batch.Nullifiers {
		if n.Spent {
			m.nullifiers[n.Nullifier] = struct{}{}
		} else {
			delete(m.nullifiers, n.Nullifier)
		}
	}
	if batch.BestAnchor != nil {
		root := *batch.BestAnchor
		m.bestAnchor = &root
	} else {
		m.bestAnchor = nil
	}
	m.bestBlock = batch.BestBlock
	return nil
}

// Counts returns the number of stored anchors and spent nullifiers.
func (m *MemoryBackend) Counts() (int, int) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.anchors), len(m.nullifiers)
}
