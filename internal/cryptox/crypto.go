// Package cryptox holds the cryptographic primitives of the server: the
// at-rest secret cipher and password/passphrase key derivation.
package cryptox

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/subtle"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"

	"github.com/dmitrijs2005/filekeeper/internal/common"
	"golang.org/x/crypto/argon2"
)

const (
	// KeySize is the required secret key length (AES-256).
	KeySize = 32
	// NonceSize is the GCM nonce length in bytes.
	NonceSize = 12
	// TagSize is the GCM authentication tag length in bytes.
	TagSize = 16

	sealSeparator = ":"
)

// ErrInvalidKeyLength is returned by NewCipher for keys that are not KeySize bytes.
var ErrInvalidKeyLength = errors.New("secret key must be 32 bytes")

// randRead is a test seam for crypto/rand.
var randRead = rand.Read

// Cipher seals and opens small secrets (2FA seeds, API key material) with
// AES-256-GCM under one process-wide key.
//
// A sealed blob has the form
//
//	hex(nonce) ":" hex(tag) ":" hex(ciphertext)
//
// and is always handled as a single opaque string.
type Cipher struct {
	aead cipher.AEAD
}

// NewCipher constructs a Cipher for key. The key must be exactly KeySize bytes;
// use NormalizeKey beforehand to accept keys of other lengths.
func NewCipher(key []byte) (*Cipher, error) {
	if len(key) != KeySize {
		return nil, fmt.Errorf("%w: got %d", ErrInvalidKeyLength, len(key))
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}

	aead, err := cipher.NewGCMWithNonceSize(block, NonceSize)
	if err != nil {
		return nil, err
	}

	return &Cipher{aead: aead}, nil
}

// NormalizeKey deterministically fits key to KeySize bytes: shorter keys are
// right-padded with zero bytes, longer keys are truncated. The input is not
// modified. Padding lowers the effective key strength, so this is only meant
// for deployments that still carry a legacy key of the wrong size.
func NormalizeKey(key []byte) []byte {
	out := make([]byte, KeySize)
	copy(out, key)
	return out
}

// Seal encrypts plaintext with a fresh random nonce.
func (c *Cipher) Seal(plaintext []byte) (string, error) {
	nonce := make([]byte, NonceSize)
	if _, err := randRead(nonce); err != nil {
		return "", fmt.Errorf("nonce generation: %w", err)
	}

	sealed := c.aead.Seal(nil, nonce, plaintext, nil)
	ciphertext, tag := sealed[:len(sealed)-TagSize], sealed[len(sealed)-TagSize:]

	return strings.Join([]string{
		hex.EncodeToString(nonce),
		hex.EncodeToString(tag),
		hex.EncodeToString(ciphertext),
	}, sealSeparator), nil
}

// Open parses and decrypts a blob produced by Seal. Any malformed input or
// failed tag verification yields common.ErrAuthentication and no plaintext.
func (c *Cipher) Open(blob string) ([]byte, error) {
	parts := strings.Split(blob, sealSeparator)
	if len(parts) != 3 {
		return nil, fmt.Errorf("%w: malformed sealed blob", common.ErrAuthentication)
	}

	nonce, err := hex.DecodeString(parts[0])
	if err != nil || len(nonce) != NonceSize {
		return nil, fmt.Errorf("%w: bad nonce", common.ErrAuthentication)
	}
	tag, err := hex.DecodeString(parts[1])
	if err != nil || len(tag) != TagSize {
		return nil, fmt.Errorf("%w: bad tag", common.ErrAuthentication)
	}
	ciphertext, err := hex.DecodeString(parts[2])
	if err != nil {
		return nil, fmt.Errorf("%w: bad ciphertext", common.ErrAuthentication)
	}

	sealed := make([]byte, 0, len(ciphertext)+TagSize)
	sealed = append(sealed, ciphertext...)
	sealed = append(sealed, tag...)

	plaintext, err := c.aead.Open(nil, nonce, sealed, nil)
	if err != nil {
		return nil, common.ErrAuthentication
	}
	return plaintext, nil
}

// DeriveMasterKey stretches a passphrase into a KeySize key with argon2id.
func DeriveMasterKey(password []byte, salt []byte) []byte {
	return argon2.IDKey(password, salt, 1, 64*1024, 4, KeySize)
}

// HashPassword returns a random salt and the argon2id hash of password.
func HashPassword(password []byte) (salt, hash []byte) {
	salt = common.GenerateRandByteArray(16)
	return salt, DeriveMasterKey(password, salt)
}

// VerifyPassword reports whether password hashes to hash under salt.
func VerifyPassword(password, salt, hash []byte) bool {
	return subtle.ConstantTimeCompare(DeriveMasterKey(password, salt), hash) == 1
}
