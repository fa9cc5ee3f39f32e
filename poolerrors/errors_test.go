package poolerrors

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestErrorFormatting(t *testing.T) {
	wrapped := fmt.Errorf("%w: height 12", ErrWRollbackTooDeep)

	require.Equal(t, "W4", GetErrorCode(wrapped))
	require.Equal(t, "RollbackTooDeep", GetErrorName(wrapped))
	require.Equal(t, "W4_RollbackTooDeep", GetErrorCodeWithName(ErrWRollbackTooDeep))
	require.Equal(t, "Commitment tree already holds 2^depth leaves.", GetErrorDesc(ErrTTreeFull))
	require.Equal(t, "No Error", GetErrorName(nil))
	require.Equal(t, "", GetErrorCode(errors.New("plain")))
	require.Equal(t, []string{"AlreadySpent", "DuplicateInTx"}, GetErrorNames([]error{ErrNAlreadySpent, ErrNDuplicateInTx}))
}

func TestClassification(t *testing.T) {
	cases := []struct {
		err        error
		fatal      bool
		rejected   bool
		lookupMiss bool
	}{
		{ErrTTreeFull, true, true, false},
		{fmt.Errorf("%w: nf 00", ErrNAlreadySpent), false, true, false},
		{ErrXBadSpendProof, false, true, false},
		{ErrWHeightOutOfOrder, true, false, false},
		{ErrWRollbackTooDeep, true, false, false},
		{ErrBWalletDiverged, true, false, false},
		{ErrBPrevHashMismatch, false, true, false},
		{ErrAAnchorNotFound, false, false, true},
		{ErrABestAnchorMissing, true, false, false},
		{nil, false, false, false},
	}
	for _, c := range cases {
		require.Equal(t, c.fatal, IsFatal(c.err), "IsFatal(%v)", c.err)
		require.Equal(t, c.rejected, IsRejected(c.err), "IsRejected(%v)", c.err)
		require.Equal(t, c.lookupMiss, IsLookupMiss(c.err), "IsLookupMiss(%v)", c.err)
	}
}
