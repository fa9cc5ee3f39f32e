package types

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/colorfulnotion/shieldedpool/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/rlp"
)

// SpendDescription reveals the nullifier of a spent note and proves it is a
// member of the tree at Anchor.
type SpendDescription struct {
	CV           common.Hash      `json:"cv"`
	Anchor       common.FieldHash `json:"anchor"`
	Nullifier    common.Nullifier `json:"nullifier"`
	RK           common.Hash      `json:"rk"`
	ZKProof      hexutil.Bytes    `json:"zkproof"`
	SpendAuthSig hexutil.Bytes    `json:"spend_auth_sig"`
}

// OutputDescription creates a new note whose commitment CMU becomes a tree leaf.
type OutputDescription struct {
	CV            common.Hash      `json:"cv"`
	CMU           common.FieldHash `json:"cmu"`
	EphemeralKey  common.Hash      `json:"ephemeral_key"`
	EncCiphertext hexutil.Bytes    `json:"enc_ciphertext"`
	OutCiphertext hexutil.Bytes    `json:"out_ciphertext"`
	ZKProof       hexutil.Bytes    `json:"zkproof"`
}

type Transaction struct {
	Coinbase        bool                `json:"coinbase"`
	Nonce           uint64              `json:"nonce"`
	ShieldedSpends  []SpendDescription  `json:"shielded_spends"`
	ShieldedOutputs []OutputDescription `json:"shielded_outputs"`
	ValueBalance    int64               `json:"value_balance"`
	BindingSig      hexutil.Bytes       `json:"binding_sig"`
}

// txRLP carries ValueBalance as its two's complement since rlp has no signed integers.
type txRLP struct {
	Coinbase        bool
	Nonce           uint64
	ShieldedSpends  []SpendDescription
	ShieldedOutputs []OutputDescription
	ValueBalance    uint64
	BindingSig      []byte
}

// EncodeRLP implements rlp.Encoder.
func (tx *Transaction) EncodeRLP(w io.Writer) error {
	return rlp.Encode(w, txRLP{
		Coinbase:        tx.Coinbase,
		Nonce:           tx.Nonce,
		ShieldedSpends:  tx.ShieldedSpends,
		ShieldedOutputs: tx.ShieldedOutputs,
		ValueBalance:    uint64(tx.ValueBalance),
		BindingSig:      tx.BindingSig,
	})
}

// DecodeRLP implements rlp.Decoder.
func (tx *Transaction) DecodeRLP(s *rlp.Stream) error {
	var enc txRLP
	if err := s.Decode(&enc); err != nil {
		return err
	}
	*tx = Transaction{
		Coinbase:        enc.Coinbase,
		Nonce:           enc.Nonce,
		ShieldedSpends:  enc.ShieldedSpends,
		ShieldedOutputs: enc.ShieldedOutputs,
		ValueBalance:    int64(enc.ValueBalance),
		BindingSig:      enc.BindingSig,
	}
	return nil
}

// Bytes returns the RLP encoding of the transaction.
func (tx *Transaction) Bytes() ([]byte, error) {
	return rlp.EncodeToBytes(tx)
}

// Hash is the transaction id.
func (tx *Transaction) Hash() common.Hash {
	data, err := tx.Bytes()
	if err != nil {
		return common.Hash{}
	}
	return common.Blake2Hash(data)
}

// HasShieldedData reports whether tx spends or creates shielded notes.
func (tx *Transaction) HasShieldedData() bool {
	return len(tx.ShieldedSpends) > 0 || len(tx.ShieldedOutputs) > 0
}

// Nullifiers returns the spend nullifiers in spend order.
func (tx *Transaction) Nullifiers() []common.Nullifier {
	nfs := make([]common.Nullifier, len(tx.ShieldedSpends))
	for i, s := range tx.ShieldedSpends {
		nfs[i] = s.Nullifier
	}
	return nfs
}

// Commitments returns the output note commitments in output order.
func (tx *Transaction) Commitments() []common.FieldHash {
	cms := make([]common.FieldHash, len(tx.ShieldedOutputs))
	for i, o := range tx.ShieldedOutputs {
		cms[i] = o.CMU
	}
	return cms
}

func (tx *Transaction) String() string {
	jsonData, err := json.Marshal(tx)
	if err != nil {
		return fmt.Sprintf("Error marshaling JSON: %v", err)
	}
	return string(jsonData)
}
