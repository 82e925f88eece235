package security

import "crypto/ed25519"

// Signer signs ledger content hashes and exposes the matching public key.
type Signer interface {
	Sign(data []byte) ([]byte, error)
	PublicKey() []byte // Returns the public key associated with the signer
	Address() string   // Returns a string representation of the address/ID (e.g., hex-encoded pubkey)
}

// Verify reports whether signature is a valid ed25519 signature of data
// under publicKey. Malformed keys verify as false rather than panicking.
func Verify(publicKey, data, signature []byte) bool {
	if len(publicKey) != ed25519.PublicKeySize {
		return false
	}
	return ed25519.Verify(ed25519.PublicKey(publicKey), data, signature)
}
