package main

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"math/rand"
	"os"

	"github.com/colorfulnotion/shieldedpool/common"
	"github.com/colorfulnotion/shieldedpool/merkle"
	"github.com/colorfulnotion/shieldedpool/types"
	"github.com/colorfulnotion/shieldedpool/wallet"
)

type generateParams struct {
	Blocks     int
	TxsPerBlk  int
	OutputsPer int
	Seed       int64
	Recipients []string
	Depth      int
}

// generateBlocks builds a valid chain: every block commits to its final
// root, and spends reveal fresh nullifiers against the previous block's
// anchor.
func generateBlocks(p generateParams) ([]*types.Block, error) {
	rng := rand.New(rand.NewSource(p.Seed))
	tree, err := merkle.NewCommitmentTree(p.Depth)
	if err != nil {
		return nil, err
	}
	var ivks []wallet.IncomingViewingKey
	for _, seed := range p.Recipients {
		ivks = append(ivks, wallet.DeriveIncomingViewingKey([]byte(seed)))
	}

	random := func() []byte {
		var b [32]byte
		rng.Read(b[:])
		return b[:]
	}

	var blocks []*types.Block
	var prev common.Hash
	nonce := uint64(0)
	for h := 0; h < p.Blocks; h++ {
		anchor := tree.Root()
		txs := []types.Transaction{{Coinbase: true, Nonce: uint64(h)}}
		for i := 0; i < p.TxsPerBlk; i++ {
			nonce++
			tx := types.Transaction{Nonce: nonce}
			if h > 0 && i%2 == 1 {
				tx.ShieldedSpends = append(tx.ShieldedSpends, types.SpendDescription{
					Anchor:    anchor,
					Nullifier: common.BytesToNullifier(random()),
				})
			}
			for j := 0; j < p.OutputsPer; j++ {
				var seed [8]byte
				binary.BigEndian.PutUint64(seed[:], rng.Uint64())
				out := types.OutputDescription{
					CMU:          common.HashToField("generated-cmu", seed[:]),
					EphemeralKey: common.BytesToHash(random()),
				}
				if len(ivks) > 0 && rng.Intn(3) == 0 {
					out.EncCiphertext = append(wallet.RecipientTag(ivks[rng.Intn(len(ivks))]), random()...)
				} else {
					out.EncCiphertext = random()
				}
				if err := tree.Append(out.CMU); err != nil {
					return nil, fmt.Errorf("block %d: %w", h, err)
				}
				tx.ShieldedOutputs = append(tx.ShieldedOutputs, out)
			}
			txs = append(txs, tx)
		}
		b := types.NewBlock(prev, uint64(h), txs)
		b.Header.FinalSaplingRoot = tree.Root()
		b.Header.Timestamp = uint64(1700000000 + 150*h)
		blocks = append(blocks, b)
		prev = b.Hash()
	}
	return blocks, nil
}

func runGenerate(p generateParams, out string) error {
	blocks, err := generateBlocks(p)
	if err != nil {
		return err
	}
	data, err := json.MarshalIndent(blocks, "", "  ")
	if err != nil {
		return err
	}
	if err := os.WriteFile(out, data, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", out, err)
	}
	fmt.Printf("Wrote %d blocks to %s\n", len(blocks), out)
	return nil
}
