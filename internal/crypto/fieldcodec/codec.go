// Package fieldcodec encrypts sensitive record fields at rest and derives the
// deterministic search tokens used for exact-match lookup.
//
// Both keys are derived from a single 32-byte master key with HKDF-SHA256, so
// the encryption key and the token key are independent of each other.
package fieldcodec

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"io"
	"strings"

	"golang.org/x/crypto/hkdf"

	"github.com/heartmarshall/recordreview-backend/internal/domain"
)

const (
	encryptionInfo = "recordreview/field-encryption/v1"
	tokenInfo      = "recordreview/search-token/v1"

	// ciphertextPrefix versions the at-rest format: base64(nonce || sealed).
	ciphertextPrefix = "v1:"

	keySize = 32
)

// Codec is safe for concurrent use.
type Codec struct {
	aead     cipher.AEAD
	tokenKey []byte
}

// New derives the encryption and token subkeys from masterKey.
func New(masterKey []byte) (*Codec, error) {
	if len(masterKey) != keySize {
		return nil, fmt.Errorf("fieldcodec: master key must be %d bytes, got %d", keySize, len(masterKey))
	}

	encKey, err := deriveKey(masterKey, encryptionInfo)
	if err != nil {
		return nil, err
	}
	tokenKey, err := deriveKey(masterKey, tokenInfo)
	if err != nil {
		return nil, err
	}

	block, err := aes.NewCipher(encKey)
	if err != nil {
		return nil, fmt.Errorf("fieldcodec: aes cipher: %w", err)
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("fieldcodec: gcm: %w", err)
	}

	return &Codec{aead: aead, tokenKey: tokenKey}, nil
}

func deriveKey(master []byte, info string) ([]byte, error) {
	key := make([]byte, keySize)
	if _, err := io.ReadFull(hkdf.New(sha256.New, master, nil, []byte(info)), key); err != nil {
		return nil, fmt.Errorf("fieldcodec: derive %s key: %w", info, err)
	}
	return key, nil
}

// Encrypt seals plaintext under a fresh random nonce and computes its search
// token. Encrypting the same value twice yields different ciphertexts but the
// same token.
func (c *Codec) Encrypt(plaintext string) (domain.EncryptedField, error) {
	ct, err := c.Seal(plaintext)
	if err != nil {
		return domain.EncryptedField{}, err
	}
	return domain.EncryptedField{
		Ciphertext: ct,
		Token:      c.SearchToken(plaintext),
	}, nil
}

// Seal returns the authenticated ciphertext of plaintext without a token.
func (c *Codec) Seal(plaintext string) (string, error) {
	nonce := make([]byte, c.aead.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return "", fmt.Errorf("fieldcodec: nonce: %w", err)
	}

	out := c.aead.Seal(nonce, nonce, []byte(plaintext), nil)
	return ciphertextPrefix + base64.RawStdEncoding.EncodeToString(out), nil
}

// Decrypt authenticates and opens a ciphertext produced by Seal.
// Any tampering, truncation or key mismatch returns domain.ErrDecryptionFailed.
func (c *Codec) Decrypt(ciphertext string) (string, error) {
	encoded, ok := strings.CutPrefix(ciphertext, ciphertextPrefix)
	if !ok {
		return "", fmt.Errorf("%w: unknown ciphertext format", domain.ErrDecryptionFailed)
	}

	raw, err := base64.RawStdEncoding.DecodeString(encoded)
	if err != nil {
		return "", fmt.Errorf("%w: malformed encoding", domain.ErrDecryptionFailed)
	}

	nonceSize := c.aead.NonceSize()
	if len(raw) < nonceSize+c.aead.Overhead() {
		return "", fmt.Errorf("%w: ciphertext too short", domain.ErrDecryptionFailed)
	}

	plain, err := c.aead.Open(nil, raw[:nonceSize], raw[nonceSize:], nil)
	if err != nil {
		return "", fmt.Errorf("%w: authentication failed", domain.ErrDecryptionFailed)
	}
	return string(plain), nil
}

// SearchToken is the hex HMAC-SHA256 of the normalized term.
func (c *Codec) SearchToken(term string) string {
	mac := hmac.New(sha256.New, c.tokenKey)
	mac.Write([]byte(domain.NormalizeText(term)))
	return hex.EncodeToString(mac.Sum(nil))
}
