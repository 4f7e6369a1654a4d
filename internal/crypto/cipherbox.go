package crypto

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"strings"

	"golang.org/x/crypto/hkdf"

	"github.com/fortivault/fortivault/internal/errs"
)

// Params
const (
	KeyLen          = 32
	MinSecretLen    = 16
	blobSep         = ":"
	keyDerivationID = "fortivault/credential-key/v1"
)

// CipherBox encrypts single credential values with AES-256-GCM under one process-wide key.
type CipherBox struct {
	aead cipher.AEAD
}

// NewCipherBox derives the record key from secret via HKDF-SHA256 and prepares the AEAD.
func NewCipherBox(secret []byte) (*CipherBox, error) {
	if len(secret) < MinSecretLen {
		return nil, fmt.Errorf("encryption secret must be at least %d bytes", MinSecretLen)
	}
	key := make([]byte, KeyLen)
	if _, err := io.ReadFull(hkdf.New(sha256.New, secret, nil, []byte(keyDerivationID)), key); err != nil {
		return nil, err
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, err
	}
	return &CipherBox{aead: aead}, nil
}

// Encrypt seals plaintext under a fresh random IV and returns "ivHex:cipherHex".
func (b *CipherBox) Encrypt(plaintext string) (string, error) {
	iv, err := RandBytes(b.aead.NonceSize())
	if err != nil {
		return "", err
	}
	ct := b.aead.Seal(nil, iv, []byte(plaintext), nil)
	return hex.EncodeToString(iv) + blobSep + hex.EncodeToString(ct), nil
}

// Decrypt reverses Encrypt. Any malformed or unauthenticated blob yields errs.ErrDecryption.
func (b *CipherBox) Decrypt(blob string) (string, error) {
	ivHex, ctHex, ok := strings.Cut(blob, blobSep)
	if !ok {
		return "", fmt.Errorf("%w: missing separator", errs.ErrDecryption)
	}
	iv, err := hex.DecodeString(ivHex)
	if err != nil || len(iv) != b.aead.NonceSize() {
		return "", fmt.Errorf("%w: bad iv", errs.ErrDecryption)
	}
	ct, err := hex.DecodeString(ctHex)
	if err != nil || len(ct) < b.aead.Overhead() {
		return "", fmt.Errorf("%w: bad ciphertext", errs.ErrDecryption)
	}
	pt, err := b.aead.Open(nil, iv, ct, nil)
	if err != nil {
		return "", errors.Join(errs.ErrDecryption, err)
	}
	return string(pt), nil
}
