package security

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/ed25519"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"golang.org/x/crypto/pbkdf2"

	"gridtokenx_go/utils"
)

// LocalSigner implements the Signer interface using an encrypted key file
// on local disk.
type LocalSigner struct {
	privateKey ed25519.PrivateKey
	publicKey  ed25519.PublicKey
	address    string
}

// NewLocalSigner loads the node key from keyFilePath, generating and saving
// a fresh ed25519 key pair on first use. The key file is encrypted with a
// key derived from the passphrase.
func NewLocalSigner(keyFilePath string, passphrase string) (*LocalSigner, error) {
	if keyFilePath == "" {
		return nil, errors.New("key file path cannot be empty")
	}
	if passphrase == "" {
		return nil, errors.New("passphrase cannot be empty")
	}

	var privateKey ed25519.PrivateKey
	var publicKey ed25519.PublicKey

	if _, err := os.Stat(keyFilePath); os.IsNotExist(err) {
		publicKey, privateKey, err = ed25519.GenerateKey(rand.Reader)
		if err != nil {
			return nil, fmt.Errorf("failed to generate ed25519 key pair: %w", err)
		}

		if err := os.MkdirAll(filepath.Dir(keyFilePath), 0700); err != nil {
			return nil, fmt.Errorf("failed to create key directory: %w", err)
		}

		if err := saveEncryptedKey(keyFilePath, privateKey, passphrase); err != nil {
			return nil, fmt.Errorf("failed to save encrypted key: %w", err)
		}
		utils.LogInfo("New ed25519 node key generated and saved to %s", keyFilePath)
	} else {
		decrypted, err := loadAndDecryptKey(keyFilePath, passphrase)
		if err != nil {
			return nil, fmt.Errorf("failed to load and decrypt key: %w", err)
		}
		if len(decrypted) != ed25519.PrivateKeySize {
			return nil, fmt.Errorf("decrypted key has wrong length %d", len(decrypted))
		}
		privateKey = ed25519.PrivateKey(decrypted)
		publicKey = privateKey.Public().(ed25519.PublicKey)
		utils.LogInfo("Loaded ed25519 node key from %s", keyFilePath)
	}

	return &LocalSigner{
		privateKey: privateKey,
		publicKey:  publicKey,
		address:    hex.EncodeToString(publicKey),
	}, nil
}

// deriveKey derives an AES key from a passphrase and salt using PBKDF2.
func deriveKey(passphrase string, salt []byte) []byte {
	return pbkdf2.Key([]byte(passphrase), salt, 4096, 32, sha256.New)
}

// saveEncryptedKey encrypts the private key and writes it to filePath.
// File layout: salt (16 bytes) || nonce || ciphertext.
func saveEncryptedKey(filePath string, privateKey ed25519.PrivateKey, passphrase string) error {
	salt := make([]byte, 16)
	if _, err := io.ReadFull(rand.Reader, salt); err != nil {
		return fmt.Errorf("failed to generate salt: %w", err)
	}

	key := deriveKey(passphrase, salt)

	block, err := aes.NewCipher(key)
	if err != nil {
		return fmt.Errorf("failed to create AES cipher: %w", err)
	}

	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return fmt.Errorf("failed to create GCM: %w", err)
	}

	nonce := make([]byte, gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return fmt.Errorf("failed to generate nonce: %w", err)
	}

	ciphertext := gcm.Seal(nil, nonce, privateKey, nil)

	encryptedData := append(salt, nonce...)
	encryptedData = append(encryptedData, ciphertext...)

	if err := os.WriteFile(filePath, encryptedData, 0600); err != nil {
		return fmt.Errorf("failed to write encrypted key to file %s: %w", filePath, err)
	}
	return nil
}

// loadAndDecryptKey reads an encrypted key file and decrypts it with the
// passphrase-derived key.
func loadAndDecryptKey(filePath string, passphrase string) ([]byte, error) {
	encryptedData, err := os.ReadFile(filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to read encrypted key file %s: %w", filePath, err)
	}

	if len(encryptedData) < 16 {
		return nil, errors.New("encrypted data is too short to contain salt")
	}
	salt := encryptedData[:16]

	key := deriveKey(passphrase, salt)

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("failed to create AES cipher: %w", err)
	}

	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("failed to create GCM: %w", err)
	}

	nonceSize := gcm.NonceSize()
	if len(encryptedData) < 16+nonceSize {
		return nil, errors.New("encrypted data is too short to contain nonce")
	}
	nonce := encryptedData[16 : 16+nonceSize]
	ciphertext := encryptedData[16+nonceSize:]

	decrypted, err := gcm.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		// A wrong passphrase surfaces here as a GCM authentication failure.
		return nil, fmt.Errorf("failed to decrypt key (check passphrase or data integrity): %w", err)
	}
	return decrypted, nil
}

// Sign signs data using the local private key.
func (ls *LocalSigner) Sign(data []byte) ([]byte, error) {
	if ls.privateKey == nil {
		return nil, errors.New("private key is not initialized")
	}
	return ed25519.Sign(ls.privateKey, data), nil
}

// PublicKey returns the public key.
func (ls *LocalSigner) PublicKey() []byte {
	return ls.publicKey
}

// Address returns the hex-encoded public key.
func (ls *LocalSigner) Address() string {
	return ls.address
}
