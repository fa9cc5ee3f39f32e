package types

import (
	"encoding/json"
	"fmt"

	"github.com/colorfulnotion/shieldedpool/common"
	"github.com/ethereum/go-ethereum/rlp"
)

type BlockHeader struct {
	PrevHash common.Hash `json:"prev_hash"`
	Height   uint64      `json:"height"`
	// TxRoot commits to the ordered transaction ids
	TxRoot common.Hash `json:"tx_root"`
	// FinalSaplingRoot is the commitment tree root after the block; zero when the producer left it unset
	FinalSaplingRoot common.FieldHash `json:"final_sapling_root"`
	Timestamp        uint64           `json:"timestamp"`
}

type Block struct {
	Header       BlockHeader   `json:"header"`
	Transactions []Transaction `json:"transactions"`
}

func NewBlock(prev common.Hash, height uint64, txs []Transaction) *Block {
	b := &Block{
		Header: BlockHeader{
			PrevHash: prev,
			Height:   height,
		},
		Transactions: txs,
	}
	b.Header.TxRoot = b.ComputeTxRoot()
	return b
}

// Bytes returns the RLP encoding of the header.
func (h *BlockHeader) Bytes() ([]byte, error) {
	return rlp.EncodeToBytes(h)
}

// Hash is the block id.
func (h *BlockHeader) Hash() common.Hash {
	data, err := h.Bytes()
	if err != nil {
		return common.Hash{}
	}
	return common.Blake2Hash(data)
}

func (b *Block) Hash() common.Hash {
	return b.Header.Hash()
}

func (b *Block) Height() uint64 {
	return b.Header.Height
}

// ComputeTxRoot hashes the concatenated transaction ids.
func (b *Block) ComputeTxRoot() common.Hash {
	data := make([]byte, 0, len(b.Transactions)*32)
	for i := range b.Transactions {
		h := b.Transactions[i].Hash()
		data = append(data, h.Bytes()...)
	}
	return common.Blake2Hash(data)
}

// OutputCount returns the number of shielded outputs in the block.
func (b *Block) OutputCount() int {
	n := 0
	for i := range b.Transactions {
		n += len(b.Transactions[i].ShieldedOutputs)
	}
	return n
}

// SpendCount returns the number of shielded spends in the block.
func (b *Block) SpendCount() int {
	n := 0
	for i := range b.Transactions {
		n += len(b.Transactions[i].ShieldedSpends)
	}
	return n
}

func (b *Block) String() string {
	jsonData, err := json.MarshalIndent(b, "", "  ")
	if err != nil {
		return fmt.Sprintf("Error marshaling JSON: %v", err)
	}
	return string(jsonData)
}

// BlockIndex is the active-chain record of a connected block.
type BlockIndex struct {
	Height           uint64           `json:"height"`
	Hash             common.Hash      `json:"hash"`
	PrevHash         common.Hash      `json:"prev_hash"`
	FinalSaplingRoot common.FieldHash `json:"final_sapling_root"`
}

func (bi *BlockIndex) String() string {
	return fmt.Sprintf("BlockIndex{height=%d hash=%s root=%s}", bi.Height, bi.Hash.String_short(), bi.FinalSaplingRoot.String_short())
}
