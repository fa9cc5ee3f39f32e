// Package chain connects and disconnects blocks against the coin view and
// keeps the wallet's witness cache in lockstep with the commitment tree.
package chain

import (
	"fmt"
	"sync"

	"github.com/colorfulnotion/shieldedpool/common"
	"github.com/colorfulnotion/shieldedpool/types"
)

// ActiveChain is the height-indexed list of connected blocks.
type ActiveChain struct {
	mu      sync.RWMutex
	indices []*types.BlockIndex
}

func NewActiveChain() *ActiveChain {
	return &ActiveChain{}
}

// Tip returns the index of the last connected block.
func (c *ActiveChain) Tip() (*types.BlockIndex, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if len(c.indices) == 0 {
		return nil, false
	}
	return c.indices[len(c.indices)-1], true
}

// Len is the number of connected blocks, which is also the next height.
func (c *ActiveChain) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.indices)
}

func (c *ActiveChain) At(height uint64) (*types.BlockIndex, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if height >= uint64(len(c.indices)) {
		return nil, false
	}
	return c.indices[height], true
}

// Contains reports whether index is on the active chain.
func (c *ActiveChain) Contains(index *types.BlockIndex) bool {
	at, ok := c.At(index.Height)
	return ok && at.Hash == index.Hash
}

// Next returns the successor of index on the active chain.
func (c *ActiveChain) Next(index *types.BlockIndex) (*types.BlockIndex, bool) {
	if !c.Contains(index) {
		return nil, false
	}
	return c.At(index.Height + 1)
}

// Prev returns the predecessor of index on the active chain.
func (c *ActiveChain) Prev(index *types.BlockIndex) (*types.BlockIndex, bool) {
	if index.Height == 0 || !c.Contains(index) {
		return nil, false
	}
	return c.At(index.Height - 1)
}

func (c *ActiveChain) push(index *types.BlockIndex) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.indices = append(c.indices, index)
}

func (c *ActiveChain) pop() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.indices[len(c.indices)-1] = nil
	c.indices = c.indices[:len(c.indices)-1]
}

// BlockStore holds the full blocks behind the active chain.
type BlockStore interface {
	ReadBlock(index *types.BlockIndex) (*types.Block, error)
	WriteBlock(block *types.Block) error
}

type MemoryBlockStore struct {
	mu     sync.RWMutex
	blocks map[common.Hash]*types.Block
}

func NewMemoryBlockStore() *MemoryBlockStore {
	return &MemoryBlockStore{blocks: make(map[common.Hash]*types.Block)}
}

func (s *MemoryBlockStore) ReadBlock(index *types.BlockIndex) (*types.Block, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	b, ok := s.blocks[index.Hash]
	if !ok {
		return nil, fmt.Errorf("block %d %s not stored", index.Height, index.Hash.String_short())
	}
	return b, nil
}

func (s *MemoryBlockStore) WriteBlock(block *types.Block) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.blocks[block.Hash()] = block
	return nil
}
