package blockchain

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
)

// marshalCanonical produces the deterministic JSON encoding hashes are
// computed over. Struct fields encode in declaration order and map keys
// sort, so equal values always encode identically.
func marshalCanonical(v any) ([]byte, error) {
	return json.Marshal(v)
}

// HashData returns the SHA-256 digest of data as a 64-character lowercase
// hex string. Every hash in the ledger comes from this function.
func HashData(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// MerkleRoot folds an ordered list of transaction hashes into a single root.
// An empty list yields the empty string and a single hash is its own root.
// Levels with an odd number of nodes duplicate the last node before pairing.
func MerkleRoot(hashes []string) string {
	if len(hashes) == 0 {
		return ""
	}

	level := make([]string, len(hashes))
	copy(level, hashes)

	for len(level) > 1 {
		next := make([]string, 0, (len(level)+1)/2)
		for i := 0; i < len(level); i += 2 {
			left := level[i]
			right := left
			if i+1 < len(level) {
				right = level[i+1]
			}
			next = append(next, HashData([]byte(left+right)))
		}
		level = next
	}

	return level[0]
}
