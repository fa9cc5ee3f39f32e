package coins

import (
	"bytes"
	"fmt"
	"sync"

	"github.com/colorfulnotion/shieldedpool/common"
	"github.com/colorfulnotion/shieldedpool/log"
	"github.com/colorfulnotion/shieldedpool/merkle"
	"github.com/colorfulnotion/shieldedpool/poolerrors"
	"github.com/colorfulnotion/shieldedpool/types"
	"golang.org/x/exp/slices"
)

type anchorEntry struct {
	present bool
	dirty   bool
	tree    *merkle.CommitmentTree
}

type nullifierEntry struct {
	spent bool
	dirty bool
}

// CoinViewCache overlays a Backend with in-memory anchor and nullifier
// entries. Entries are loaded on first access and stay loaded; writes stay in
// the overlay until Flush.
type CoinViewCache struct {
	mu    sync.Mutex
	base  Backend
	depth int

	bestAnchor       *common.FieldHash
	bestAnchorLoaded bool
	bestBlock        common.Hash
	bestBlockLoaded  bool

	anchors    map[common.FieldHash]*anchorEntry
	nullifiers map[common.Nullifier]*nullifierEntry
}

// NewCoinViewCache creates an empty overlay over base for trees of the given depth.
func NewCoinViewCache(base Backend, depth int) *CoinViewCache {
	return &CoinViewCache{
		base:       base,
		depth:      depth,
		anchors:    make(map[common.FieldHash]*anchorEntry),
		nullifiers: make(map[common.Nullifier]*nullifierEntry),
	}
}

func (c *CoinViewCache) TreeDepth() int {
	return c.depth
}

// GetBestAnchor returns the root of the latest committed tree; false before
// the first block.
func (c *CoinViewCache) GetBestAnchor() (common.FieldHash, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.getBestAnchor()
}

func (c *CoinViewCache) getBestAnchor() (common.FieldHash, bool, error) {
	if !c.bestAnchorLoaded {
		root, ok, err := c.base.GetBestAnchor()
		if err != nil {
			return common.FieldHash{}, false, fmt.Errorf("%w: best anchor: %v", poolerrors.ErrABackendUnavailable, err)
		}
		if ok {
			c.bestAnchor = &root
		}
		c.bestAnchorLoaded = true
	}
	if c.bestAnchor == nil {
		return common.FieldHash{}, false, nil
	}
	return *c.bestAnchor, true, nil
}

// GetAnchorAt returns an independent copy of the tree whose root is root.
// Base misses are not cached.
func (c *CoinViewCache) GetAnchorAt(root common.FieldHash) (*merkle.CommitmentTree, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.getAnchorAt(root)
}

func (c *CoinViewCache) getAnchorAt(root common.FieldHash) (*merkle.CommitmentTree, bool, error) {
	entry, cached := c.anchors[root]
	if cached && entry.present {
		return entry.tree.Clone(), true, nil
	}
	if root == merkle.EmptyRoot(c.depth) {
		tree, err := merkle.NewCommitmentTree(c.depth)
		if err != nil {
			return nil, false, err
		}
		return tree, true, nil
	}
	if cached {
		return nil, false, nil
	}

	tree, found, err := c.base.GetAnchorAt(root)
	if err != nil {
		return nil, false, fmt.Errorf("%w: anchor %s: %v", poolerrors.ErrABackendUnavailable, root, err)
	}
	if !found {
		return nil, false, nil
	}
	c.anchors[root] = &anchorEntry{present: true, tree: tree}
	log.Trace(log.CoinsMonitoring, "GetAnchorAt: loaded from base", "root", root.String_short(), "size", tree.Size())
	return tree.Clone(), true, nil
}

// GetNullifier reports whether nf is spent, caching the base result.
func (c *CoinViewCache) GetNullifier(nf common.Nullifier) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.getNullifier(nf)
}

func (c *CoinViewCache) getNullifier(nf common.Nullifier) (bool, error) {
	if entry, ok := c.nullifiers[nf]; ok {
		return entry.spent, nil
	}
	spent, err := c.base.GetNullifier(nf)
	if err != nil {
		return false, fmt.Errorf("%w: nullifier %s: %v", poolerrors.ErrABackendUnavailable, nf, err)
	}
	c.nullifiers[nf] = &nullifierEntry{spent: spent}
	return spent, nil
}

// SetNullifiers marks every spend nullifier of tx as spent (or unspent).
func (c *CoinViewCache) SetNullifiers(tx *types.Transaction, spent bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, s := range tx.ShieldedSpends {
		c.nullifiers[s.Nullifier] = &nullifierEntry{spent: spent, dirty: true}
	}
}

// PushAnchor stores a copy of tree under its root and makes it the best anchor.
func (c *CoinViewCache) PushAnchor(tree *merkle.CommitmentTree) {
	c.mu.Lock()
	defer c.mu.Unlock()
	root := tree.Root()
	c.anchors[root] = &anchorEntry{present: true, dirty: true, tree: tree.Clone()}
	c.bestAnchor = &root
	c.bestAnchorLoaded = true
	log.Trace(log.CoinsMonitoring, "PushAnchor", "root", root.String_short(), "size", tree.Size())
}

// PopAnchor undoes the latest PushAnchor: the current best anchor is erased
// unless it equals newRoot, and newRoot becomes the best anchor. A nil newRoot
// leaves no best anchor.
func (c *CoinViewCache) PopAnchor(newRoot *common.FieldHash) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	current, ok, err := c.getBestAnchor()
	if err != nil {
		return err
	}
	if ok && (newRoot == nil || current != *newRoot) {
		entry, exists := c.anchors[current]
		if !exists {
			entry = &anchorEntry{}
			c.anchors[current] = entry
		}
		entry.present = false
		entry.dirty = true
		entry.tree = nil
	}
	if newRoot == nil {
		c.bestAnchor = nil
	} else {
		root := *newRoot
		c.bestAnchor = &root
	}
	c.bestAnchorLoaded = true
	log.Trace(log.CoinsMonitoring, "PopAnchor", "from", current.String_short(), "cleared", newRoot == nil)
	return nil
}

// SetBestBlock records the chain tip this view corresponds to.
func (c *CoinViewCache) SetBestBlock(hash common.Hash) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.bestBlock = hash
	c.bestBlockLoaded = true
}

// GetBestBlock returns the chain tip hash; zero before the first block.
func (c *CoinViewCache) GetBestBlock() (common.Hash, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.getBestBlock()
}

func (c *CoinViewCache) getBestBlock() (common.Hash, error) {
	if !c.bestBlockLoaded {
		hash, err := c.base.GetBestBlock()
		if err != nil {
			return common.Hash{}, fmt.Errorf("%w: best block: %v", poolerrors.ErrABackendUnavailable, err)
		}
		c.bestBlock = hash
		c.bestBlockLoaded = true
	}
	return c.bestBlock, nil
}

// CheckShieldedRequirements verifies every spend of tx refers to a known
// anchor and reveals an unspent nullifier.
func (c *CoinViewCache) CheckShieldedRequirements(tx *types.Transaction) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	for i, s := range tx.ShieldedSpends {
		spent, err := c.getNullifier(s.Nullifier)
		if err != nil {
			return err
		}
		if spent {
			return fmt.Errorf("%w: spend %d nullifier %s", poolerrors.ErrNAlreadySpent, i, s.Nullifier)
		}
		if _, found, err := c.getAnchorAt(s.Anchor); err != nil {
			return err
		} else if !found {
			return fmt.Errorf("%w: spend %d anchor %s", poolerrors.ErrAAnchorNotFound, i, s.Anchor)
		}
	}
	return nil
}

// HaveShieldedRequirements is CheckShieldedRequirements as a predicate.
func (c *CoinViewCache) HaveShieldedRequirements(tx *types.Transaction) bool {
	return c.CheckShieldedRequirements(tx) == nil
}

// Flush writes the dirty entries, best anchor and best block to the base
// store and marks them clean. Entries stay loaded.
func (c *CoinViewCache) Flush() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, _, err := c.getBestAnchor(); err != nil {
		return err
	}
	bestBlock, err := c.getBestBlock()
	if err != nil {
		return err
	}

	batch := &Batch{BestBlock: bestBlock}
	if c.bestAnchor != nil {
		root := *c.bestAnchor
		batch.BestAnchor = &root
	}
	for root, entry := range c.anchors {
		if !entry.dirty {
			continue
		}
		w := AnchorWrite{Root: root}
		if entry.present {
			w.Tree = entry.tree.Clone()
		}
		batch.Anchors = append(batch.Anchors, w)
	}
	for nf, entry := range c.nullifiers {
		if entry.dirty {
			batch.Nullifiers = append(batch.Nullifiers, NullifierWrite{Nullifier: nf, Spent: entry.spent})
		}
	}
	slices.SortFunc(batch.Anchors, func(a, b AnchorWrite) int {
		ab, bb := a.Root.Bytes(), b.Root.Bytes()
		return bytes.Compare(ab[:], bb[:])
	})
	slices.SortFunc(batch.Nullifiers, func(a, b NullifierWrite) int {
		return bytes.Compare(a.Nullifier[:], b.Nullifier[:])
	})

	if err := c.base.BatchWrite(batch); err != nil {
		return fmt.Errorf("flush coin view: %w", err)
	}
	for _, entry := range c.anchors {
		entry.dirty = false
	}
	for _, entry := range c.nullifiers {
		entry.dirty = false
	}
	log.Debug(log.CoinsMonitoring, "Flush", "anchors", len(batch.Anchors), "nullifiers", len(batch.Nullifiers), "bestBlock", bestBlock.String_short())
	return nil
}

// CacheSize returns the number of loaded anchor and nullifier entries.
func (c *CoinViewCache) CacheSize() (anchors int, nullifiers int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.anchors), len(c.nullifiers)
}
