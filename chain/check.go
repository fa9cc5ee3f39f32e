package chain

import (
	"fmt"

	"github.com/colorfulnotion/shieldedpool/common"
	"github.com/colorfulnotion/shieldedpool/poolerrors"
	"github.com/colorfulnotion/shieldedpool/types"
)

// CheckTransaction runs the context-free shielded checks on tx.
func CheckTransaction(tx *types.Transaction) error {
	if tx.Coinbase && tx.HasShieldedData() {
		return fmt.Errorf("%w: %d spends, %d outputs", poolerrors.ErrXCoinbaseShielded, len(tx.ShieldedSpends), len(tx.ShieldedOutputs))
	}
	seen := make(map[common.Nullifier]struct{}, len(tx.ShieldedSpends))
	for i, s := range tx.ShieldedSpends {
		if _, dup := seen[s.Nullifier]; dup {
			return fmt.Errorf("%w: spend %d nullifier %s", poolerrors.ErrNDuplicateInTx, i, s.Nullifier)
		}
		seen[s.Nullifier] = struct{}{}
	}
	return nil
}

// ContextualCheckTransaction verifies every spend and output proof of tx and
// then its binding signature. Transactions without shielded data pass
// without consulting verifier.
func ContextualCheckTransaction(tx *types.Transaction, verifier ProofVerifier) error {
	if !tx.HasShieldedData() {
		return nil
	}
	if verifier == nil {
		return poolerrors.ErrXNoVerifier
	}
	sighash := tx.Hash()
	for i := range tx.ShieldedSpends {
		if !verifier.CheckSpend(&tx.ShieldedSpends[i], sighash) {
			return fmt.Errorf("%w: spend %d", poolerrors.ErrXBadSpendProof, i)
		}
	}
	for i := range tx.ShieldedOutputs {
		if !verifier.CheckOutput(&tx.ShieldedOutputs[i]) {
			return fmt.Errorf("%w: output %d", poolerrors.ErrXBadOutputProof, i)
		}
	}
	if !verifier.FinalCheck(tx, sighash) {
		return poolerrors.ErrXBadBindingSig
	}
	return nil
}
