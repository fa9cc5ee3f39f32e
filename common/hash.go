package common

import (
	"golang.org/x/crypto/blake2b"
)

// ComputeHash computes the BLAKE2b hash of the given data
func ComputeHash(data []byte) []byte {
	hash := blake2b.Sum256(data)
	return hash[:]
}

func Blake2Hash(data []byte) Hash {
	return BytesToHash(ComputeHash(data))
}

// Blake2HashPersonal hashes data under a 16-byte personalization-style domain tag.
func Blake2HashPersonal(domain string, data ...[]byte) Hash {
	h, _ := blake2b.New256(nil)
	h.Write([]byte(domain))
	for _, d := range data {
		h.Write(d)
	}
	return BytesToHash(h.Sum(nil))
}

func IsNilHash(h Hash) bool {
	return h == Hash{}
}
