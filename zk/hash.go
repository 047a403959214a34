package zk

import "crypto/sha256"

// Sha256 returns the single SHA-256 digest of b.
func Sha256(b []byte) [32]byte {
	return sha256.Sum256(b)
}
