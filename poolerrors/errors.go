package poolerrors

import (
	"errors"
	"strings"
)

// Tree capacity (T) Errors
var (
	ErrTTreeFull          = errors.New("T1|TreeFull: Commitment tree already holds 2^depth leaves.")
	ErrTWitnessTreeFull   = errors.New("T2|WitnessTreeFull: Witness cannot absorb a leaf beyond the tree capacity.")
	ErrTBadDepth          = errors.New("T3|BadDepth: Tree depth is outside the supported range.")
	ErrTEmptyTree         = errors.New("T4|EmptyTree: Witness requested from a tree with no leaves.")
	ErrTMalformedSnapshot = errors.New("T5|MalformedSnapshot: Serialized tree, witness or path is malformed.")
)

// Anchor lookup (A) Errors
var (
	ErrAAnchorNotFound     = errors.New("A1|AnchorNotFound: No commitment tree is known for the anchor.")
	ErrABestAnchorMissing  = errors.New("A2|BestAnchorMissing: Best anchor is set but its tree cannot be resolved.")
	ErrABackendUnavailable = errors.New("A3|BackendUnavailable: Base store read failed.")
)

// Nullifier (N) Errors
var (
	ErrNAlreadySpent     = errors.New("N1|AlreadySpent: Spend reveals a nullifier that is already spent.")
	ErrNDuplicateInTx    = errors.New("N2|DuplicateInTx: Transaction reveals the same nullifier twice.")
	ErrNDuplicateInBlock = errors.New("N3|DuplicateInBlock: Two transactions in one block reveal the same nullifier.")
)

// Transaction validity (X) Errors
var (
	ErrXCoinbaseShielded = errors.New("X1|CoinbaseShielded: Coinbase transaction carries shielded spends or outputs.")
	ErrXBadSpendProof    = errors.New("X2|BadSpendProof: Spend description failed proof verification.")
	ErrXBadOutputProof   = errors.New("X3|BadOutputProof: Output description failed proof verification.")
	ErrXBadBindingSig    = errors.New("X4|BadBindingSig: Final balance and binding signature check failed.")
	ErrXNoVerifier       = errors.New("X5|NoVerifier: Shielded transaction cannot be checked without a proof verifier.")
)

// Witness cache (W) Errors
var (
	ErrWWindowExceeded    = errors.New("W1|WindowExceeded: Note holds more witnesses than the cache window or the cache depth.")
	ErrWHeightOutOfOrder  = errors.New("W2|HeightOutOfOrder: Note witness height is neither uninitialized nor the previous block height.")
	ErrWRootMismatch      = errors.New("W3|RootMismatch: Witness root differs from the commitment tree root.")
	ErrWRollbackTooDeep   = errors.New("W4|RollbackTooDeep: Disconnect exceeds the cached witness history; full rescan required.")
	ErrWInconsistentCache = errors.New("W5|InconsistentCache: Note witness cache does not match its recorded height.")
	ErrWUnknownNote       = errors.New("W6|UnknownNote: Outpoint is not tracked by the wallet.")
)

// Block sequencing (B) Errors
var (
	ErrBPrevHashMismatch = errors.New("B1|PrevHashMismatch: Block does not extend the current best block.")
	ErrBNotTip           = errors.New("B2|NotTip: Only the current tip can be disconnected.")
	ErrBWalletDiverged   = errors.New("B3|WalletDiverged: Wallet witness root differs from the consensus best anchor.")
	ErrBHeightMismatch   = errors.New("B4|HeightMismatch: Block height does not follow the active chain tip.")
	ErrBNoTip            = errors.New("B5|NoTip: Active chain is empty.")
	ErrBRootMismatch     = errors.New("B6|RootMismatch: Header final sapling root differs from the computed tree root.")
)

// IsFatal reports whether err means local state can no longer be trusted and
// the caller must resync instead of continuing.
func IsFatal(err error) bool {
	return hasFamily(err, "T", "W") ||
		errors.Is(err, ErrABestAnchorMissing) ||
		errors.Is(err, ErrBWalletDiverged)
}

// IsRejected reports whether err rejects a transaction or block without any
// state having been mutated.
func IsRejected(err error) bool {
	if errors.Is(err, ErrTTreeFull) {
		return true
	}
	return hasFamily(err, "N", "X", "B") && !errors.Is(err, ErrBWalletDiverged)
}

// IsLookupMiss reports whether err is a base-store or anchor lookup miss.
func IsLookupMiss(err error) bool {
	return errors.Is(err, ErrAAnchorNotFound) || errors.Is(err, ErrABackendUnavailable)
}

var families = map[string][]error{
	"T": {ErrTTreeFull, ErrTWitnessTreeFull, ErrTBadDepth, ErrTEmptyTree, ErrTMalformedSnapshot},
	"N": {ErrNAlreadySpent, ErrNDuplicateInTx, ErrNDuplicateInBlock},
	"X": {ErrXCoinbaseShielded, ErrXBadSpendProof, ErrXBadOutputProof, ErrXBadBindingSig, ErrXNoVerifier},
	"W": {ErrWWindowExceeded, ErrWHeightOutOfOrder, ErrWRootMismatch, ErrWRollbackTooDeep, ErrWInconsistentCache},
	"B": {ErrBPrevHashMismatch, ErrBNotTip, ErrBWalletDiverged, ErrBHeightMismatch, ErrBNoTip, ErrBRootMismatch},
}

func hasFamily(err error, prefixes ...string) bool {
	if err == nil {
		return false
	}
	for _, p := range prefixes {
		for _, sentinel := range families[p] {
			if errors.Is(err, sentinel) {
				return true
			}
		}
	}
	return false
}

// GetErrorName extracts the error name from the error message.
func GetErrorName(err error) string {
	if err == nil {
		return "No Error"
	}
	errStr := err.Error()
	if !strings.Contains(errStr, "|") || !strings.Contains(errStr, ":") {
		return errStr
	}
	parts := strings.SplitN(errStr, "|", 2)
	if len(parts) < 2 {
		return errStr
	}
	// Split on ':' to separate the error name from its description.
	nameParts := strings.SplitN(parts[1], ":", 2)
	return strings.TrimSpace(nameParts[0])
}

func GetErrorNames(errs []error) []string {
	errStrs := make([]string, len(errs))
	for i, err := range errs {
		errStrs[i] = GetErrorName(err)
	}
	return errStrs
}

// GetErrorCode extracts the error code from the error message.
func GetErrorCode(err error) string {
	if err == nil {
		return ""
	}
	errStr := err.Error()
	if !strings.Contains(errStr, "|") {
		return ""
	}
	parts := strings.SplitN(errStr, "|", 2)
	return strings.TrimSpace(parts[0])
}

// GetErrorCodeWithName returns the error code and name in the format "Code_ErrorName".
func GetErrorCodeWithName(err error) string {
	code := GetErrorCode(err)
	name := GetErrorName(err)
	if code == "" || name == "" {
		return ""
	}
	return code + "_" + name
}

// GetErrorDesc extracts the error description from the error message.
func GetErrorDesc(err error) string {
	if err == nil {
		return ""
	}
	parts := strings.SplitN(err.Error(), ":", 2)
	if len(parts) < 2 {
		return "DESC NOT SET"
	}
	return strings.TrimSpace(parts[1])
}
