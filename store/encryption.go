package store

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"

	"golang.org/x/crypto/hkdf"
)

// ErrInvalidKey is returned when the encryption passphrase is empty.
var ErrInvalidKey = errors.New("encryption passphrase must not be empty")

// Encryptor provides AES-256-GCM encryption of keywords and a keyed
// fingerprint used to find a keyword without decrypting every row.
type Encryptor struct {
	aead   cipher.AEAD
	macKey []byte
}

// NewEncryptor derives the encryption and fingerprint keys from passphrase.
func NewEncryptor(passphrase string) (*Encryptor, error) {
	if passphrase == "" {
		return nil, ErrInvalidKey
	}

	key, err := DeriveKey(passphrase, "encryption")
	if err != nil {
		return nil, err
	}

	macKey, err := DeriveKey(passphrase, "fingerprint")
	if err != nil {
		return nil, err
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("could not create cipher: %w", err)
	}

	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("could not create GCM: %w", err)
	}

	return &Encryptor{aead: aead, macKey: macKey}, nil
}

// Encrypt encrypts plaintext using AES-256-GCM.
// The nonce is prepended to the ciphertext.
func (e *Encryptor) Encrypt(plaintext []byte) ([]byte, error) {
	nonce := make([]byte, e.aead.NonceSize())

	_, err := io.ReadFull(rand.Reader, nonce)
	if err != nil {
		return nil, fmt.Errorf("could not generate nonce: %w", err)
	}

	return e.aead.Seal(nonce, nonce, plaintext, nil), nil
}

// Decrypt decrypts ciphertext that was encrypted with Encrypt.
func (e *Encryptor) Decrypt(ciphertext []byte) ([]byte, error) {
	nonceSize := e.aead.NonceSize()
	if len(ciphertext) < nonceSize {
		return nil, fmt.Errorf("ciphertext too short: %w", errors.ErrUnsupported)
	}

	nonce, ciphertext := ciphertext[:nonceSize], ciphertext[nonceSize:]

	plaintext, err := e.aead.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return nil, fmt.Errorf("could not decrypt: %w", err)
	}

	return plaintext, nil
}

// Fingerprint returns a stable hex HMAC-SHA256 of keyword.
func (e *Encryptor) Fingerprint(keyword string) string {
	mac := hmac.New(sha256.New, e.macKey)
	mac.Write([]byte(keyword))

	return hex.EncodeToString(mac.Sum(nil))
}

// DeriveKey derives a 32-byte key for purpose from passphrase using HKDF-SHA256.
func DeriveKey(passphrase string, purpose string) ([]byte, error) {
	reader := hkdf.New(sha256.New, []byte(passphrase), nil, []byte("scrub/"+purpose))

	key := make([]byte, 32)

	_, err := io.ReadFull(reader, key)
	if err != nil {
		return nil, fmt.Errorf("could not derive %s key: %w", purpose, err)
	}

	return key, nil
}
