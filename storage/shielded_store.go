package storage

import (
	"fmt"

	"github.com/colorfulnotion/shieldedpool/coins"
	"github.com/colorfulnotion/shieldedpool/common"
	"github.com/colorfulnotion/shieldedpool/log"
	"github.com/colorfulnotion/shieldedpool/merkle"
	"github.com/syndtr/goleveldb/leveldb"
)

var (
	anchorPrefix    = []byte("an_")
	nullifierPrefix = []byte("nf_")
	bestAnchorKey   = []byte("best_anchor")
	bestBlockKey    = []byte("best_block")
)

// ShieldedStore persists anchors, spent nullifiers and the chain tip. It is
// the coins.Backend of a node.
type ShieldedStore struct {
	ps *PersistenceStore
}

var _ coins.Backend = (*ShieldedStore)(nil)

// NewShieldedStore opens or creates the shielded store; an empty path opens an in-memory store.
func NewShieldedStore(path string) (*ShieldedStore, error) {
	ps, err := NewPersistenceStore(path)
	if err != nil {
		return nil, fmt.Errorf("open shielded store: %w", err)
	}
	return &ShieldedStore{ps: ps}, nil
}

func (s *ShieldedStore) GetAnchorAt(root common.FieldHash) (*merkle.CommitmentTree, bool, error) {
	data, found, err := s.ps.Get(anchorKey(root))
	if err != nil || !found {
		return nil, false, err
	}
	tree := new(merkle.CommitmentTree)
	if err := tree.UnmarshalBinary(data); err != nil {
		return nil, false, fmt.Errorf("decode anchor %s: %w", root, err)
	}
	return tree, true, nil
}

func (s *ShieldedStore) GetNullifier(nf common.Nullifier) (bool, error) {
	_, found, err := s.ps.Get(nullifierKey(nf))
	return found, err
}

func (s *ShieldedStore) GetBestAnchor() (common.FieldHash, bool, error) {
	data, found, err := s.ps.Get(bestAnchorKey)
	if err != nil || !found {
		return common.FieldHash{}, false, err
	}
	root, err := common.FieldHashFromBytes(data)
	if err != nil {
		return common.FieldHash{}, false, fmt.Errorf("decode best anchor: %w", err)
	}
	return root, true, nil
}

func (s *ShieldedStore) GetBestBlock() (common.Hash, error) {
	data, found, err := s.ps.Get(bestBlockKey)
	if err != nil || !found {
		return common.Hash{}, err
	}
	return common.BytesToHash(data), nil
}

// BatchWrite applies a flushed coin view in a single leveldb batch.
func (s *ShieldedStore) BatchWrite(b *coins.Batch) error {
	batch := new(leveldb.Batch)
	for _, a := range b.Anchors {
		if a.Tree == nil {
			batch.Delete(anchorKey(a.Root))
			continue
		}
		data, err := a.Tree.MarshalBinary()
		if err != nil {
			return fmt.Errorf("encode anchor %s: %w", a.Root, err)
		}
		batch.Put(anchorKey(a.Root), data)
	}
	for _, n := range b.Nullifiers {
		if n.Spent {
			batch.Put(nullifierKey(n.Nullifier), []byte{1})
		} else {
			batch.Delete(nullifierKey(n.Nullifier))
		}
	}
	if b.BestAnchor != nil {
		root := b.BestAnchor.Bytes()
		batch.Put(bestAnchorKey, root[:])
	} else {
		batch.Delete(bestAnchorKey)
	}
	batch.Put(bestBlockKey, b.BestBlock.Bytes())

	if err := s.ps.Write(batch); err != nil {
		return fmt.Errorf("shielded store batch: %w", err)
	}
	log.Debug(log.StoreMonitoring, "ShieldedStore: BatchWrite", "anchors", len(b.Anchors), "nullifiers", len(b.Nullifiers), "ops", batch.Len())
	return nil
}

// ListNullifiers returns all recorded nullifiers in key order.
func (s *ShieldedStore) ListNullifiers() ([]common.Nullifier, error) {
	kvs, err := s.ps.GetWithPrefix(nullifierPrefix)
	if err != nil {
		return nil, err
	}
	out := make([]common.Nullifier, 0, len(kvs))
	for _, kv := range kvs {
		raw := kv[0][len(nullifierPrefix):]
		if len(raw) != len(common.Nullifier{}) {
			continue
		}
		out = append(out, common.BytesToNullifier(raw))
	}
	return out, nil
}

// Counts returns the number of stored anchors and spent nullifiers.
func (s *ShieldedStore) Counts() (anchors int, nullifiers int, err error) {
	if anchors, err = s.ps.CountPrefix(anchorPrefix); err != nil {
		return 0, 0, err
	}
	if nullifiers, err = s.ps.CountPrefix(nullifierPrefix); err != nil {
		return 0, 0, err
	}
	return anchors, nullifiers, nil
}

// Close closes the underlying database.
func (s *ShieldedStore) Close() error {
	return s.ps.Close()
}

func anchorKey(root common.FieldHash) []byte {
	b := root.Bytes()
	return append(append([]byte{}, anchorPrefix...), b[:]...)
}

func nullifierKey(nf common.Nullifier) []byte {
	return append(append([]byte{}, nullifierPrefix...), nf[:]...)
}
