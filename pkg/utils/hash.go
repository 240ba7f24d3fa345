package utils

import "crypto/sha256"

// SumSHA256 returns the SHA-256 checksum over the concatenation of the
// provided chunks.
func SumSHA256(chunks ...[]byte) [32]byte {
	h := sha256.New()
	for _, c := range chunks {
		h.Write(c)
	}
	var sum [32]byte
	copy(sum[:], h.Sum(nil))
	return sum
}
