package common

import (
	"encoding/hex"
	"fmt"
	"strings"
)

// Nullifier is the 256-bit value revealed when a shielded note is spent.
type Nullifier [32]byte

func BytesToNullifier(b []byte) Nullifier {
	var nf Nullifier
	if len(b) > len(nf) {
		b = b[len(b)-len(nf):]
	}
	copy(nf[len(nf)-len(b):], b)
	return nf
}

func (n Nullifier) Hex() string {
	return "0x" + hex.EncodeToString(n[:])
}

func (n Nullifier) String() string {
	return n.Hex()
}

func (n Nullifier) IsZero() bool {
	return n == Nullifier{}
}

func (n Nullifier) MarshalText() ([]byte, error) {
	return []byte(n.Hex()), nil
}

func (n *Nullifier) UnmarshalText(text []byte) error {
	raw, err := hex.DecodeString(strings.TrimPrefix(string(text), "0x"))
	if err != nil {
		return fmt.Errorf("nullifier hex: %w", err)
	}
	if len(raw) != len(n) {
		return fmt.Errorf("nullifier length %d, want %d", len(raw), len(n))
	}
	copy(n[:], raw)
	return nil
}
