package wallet

import (
	"bytes"
	"encoding/binary"

	"github.com/colorfulnotion/shieldedpool/common"
	"github.com/colorfulnotion/shieldedpool/types"
)

// IncomingViewingKey identifies the key that decrypted a note.
type IncomingViewingKey [32]byte

func (k IncomingViewingKey) String() string {
	return common.Bytes2Hex(k[:8])
}

// KeyStore is the key management the wallet relies on: finding outputs
// addressed to our keys and deriving the nullifier of a positioned note.
type KeyStore interface {
	FindMyNotes(tx *types.Transaction) map[types.OutPoint]IncomingViewingKey
	Nullifier(ivk IncomingViewingKey, tx *types.Transaction, n uint32, position uint64) (common.Nullifier, bool)
}

const recipientTagLength = 16

// RecipientTag is the plaintext marker TagKeyStore looks for at the start of
// an output's EncCiphertext.
func RecipientTag(ivk IncomingViewingKey) []byte {
	h := common.Blake2HashPersonal("shielded-recipient", ivk[:])
	return h[:recipientTagLength]
}

// TagKeyStore matches outputs by a plaintext recipient tag instead of trial
// decryption. Used by tooling and tests; it offers no privacy.
type TagKeyStore struct {
	ivks []IncomingViewingKey
}

func NewTagKeyStore(ivks ...IncomingViewingKey) *TagKeyStore {
	return &TagKeyStore{ivks: ivks}
}

// DeriveIncomingViewingKey derives a key from a seed.
func DeriveIncomingViewingKey(seed []byte) IncomingViewingKey {
	return IncomingViewingKey(common.Blake2HashPersonal("shielded-ivk", seed))
}

func (k *TagKeyStore) AddKey(ivk IncomingViewingKey) {
	k.ivks = append(k.ivks, ivk)
}

func (k *TagKeyStore) FindMyNotes(tx *types.Transaction) map[types.OutPoint]IncomingViewingKey {
	found := make(map[types.OutPoint]IncomingViewingKey)
	if len(k.ivks) == 0 || len(tx.ShieldedOutputs) == 0 {
		return found
	}
	hash := tx.Hash()
	for n, out := range tx.ShieldedOutputs {
		for _, ivk := range k.ivks {
			if bytes.HasPrefix(out.EncCiphertext, RecipientTag(ivk)) {
				found[types.NewOutPoint(hash, uint32(n))] = ivk
				break
			}
		}
	}
	return found
}

func (k *TagKeyStore) Nullifier(ivk IncomingViewingKey, tx *types.Transaction, n uint32, position uint64) (common.Nullifier, bool) {
	if int(n) >= len(tx.ShieldedOutputs) {
		return common.Nullifier{}, false
	}
	cm := tx.ShieldedOutputs[n].CMU.Bytes()
	var pos [8]byte
	binary.BigEndian.PutUint64(pos[:], position)
	return common.Nullifier(common.Blake2HashPersonal("shielded-nf", ivk[:], cm[:], pos[:])), true
}
