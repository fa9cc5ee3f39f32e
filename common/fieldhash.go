package common

import (
	"encoding/hex"
	"fmt"
	"io"
	"strings"

	"github.com/consensys/gnark-crypto/ecc/bls12-381/fr"
	"github.com/ethereum/go-ethereum/rlp"
)

// FieldHashLength is the serialized size of a FieldHash.
const FieldHashLength = fr.Bytes

// FieldHash is an element of the BLS12-381 scalar field, used as note
// commitment and as commitment tree root (anchor).
//
// The wrapped fr.Element is always fully reduced, so == and map keys operate on
// the canonical value regardless of how it was constructed.
type FieldHash struct {
	e fr.Element
}

// FieldHashFromBytes decodes a canonical big-endian encoding. Values that are
// not reduced modulo the field order are rejected.
func FieldHashFromBytes(b []byte) (FieldHash, error) {
	var f FieldHash
	if err := f.e.SetBytesCanonical(b); err != nil {
		return FieldHash{}, fmt.Errorf("field hash: %w", err)
	}
	return f, nil
}

// ReduceFieldHash interprets b as a big-endian integer and reduces it into the field.
func ReduceFieldHash(b []byte) FieldHash {
	var f FieldHash
	f.e.SetBytes(b)
	return f
}

// FieldHashFromUint64 returns the field element with the given small value.
func FieldHashFromUint64(v uint64) FieldHash {
	var f FieldHash
	f.e.SetUint64(v)
	return f
}

// FieldHashFromElement wraps an fr.Element.
func FieldHashFromElement(e fr.Element) FieldHash {
	return FieldHash{e: e}
}

// HashToField derives a field element from arbitrary data via BLAKE2b.
func HashToField(domain string, data ...[]byte) FieldHash {
	h := Blake2HashPersonal(domain, data...)
	return ReduceFieldHash(h[:])
}

// HexToFieldHash parses a 0x-prefixed or bare canonical hex encoding.
func HexToFieldHash(s string) (FieldHash, error) {
	raw, err := hex.DecodeString(strings.TrimPrefix(s, "0x"))
	if err != nil {
		return FieldHash{}, fmt.Errorf("field hash hex: %w", err)
	}
	return FieldHashFromBytes(raw)
}

// Element returns a copy of the underlying field element.
func (f FieldHash) Element() fr.Element {
	return f.e
}

// Bytes returns the canonical big-endian encoding.
func (f FieldHash) Bytes() [FieldHashLength]byte {
	return f.e.Bytes()
}

func (f FieldHash) IsZero() bool {
	return f.e.IsZero()
}

func (f FieldHash) Equal(other FieldHash) bool {
	return f.e.Equal(&other.e)
}

func (f FieldHash) Hex() string {
	b := f.Bytes()
	return "0x" + hex.EncodeToString(b[:])
}

func (f FieldHash) String() string {
	return f.Hex()
}

func (f FieldHash) String_short() string {
	h := f.Hex()
	return fmt.Sprintf("%s..%s", h[2:6], h[len(h)-4:])
}

func (f FieldHash) MarshalText() ([]byte, error) {
	return []byte(f.Hex()), nil
}

func (f *FieldHash) UnmarshalText(text []byte) error {
	parsed, err := HexToFieldHash(string(text))
	if err != nil {
		return err
	}
	*f = parsed
	return nil
}

// EncodeRLP implements rlp.Encoder.
func (f FieldHash) EncodeRLP(w io.Writer) error {
	b := f.Bytes()
	return rlp.Encode(w, b[:])
}

// DecodeRLP implements rlp.Decoder.
func (f *FieldHash) DecodeRLP(s *rlp.Stream) error {
	raw, err := s.Bytes()
	if err != nil {
		return err
	}
	parsed, err := FieldHashFromBytes(raw)
	if err != nil {
		return err
	}
	*f = parsed
	return nil
}
