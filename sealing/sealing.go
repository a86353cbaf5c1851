// Package sealing wraps the enclave's hardware-bound state encryption key.
//
// The key material itself is provisioned by the enclave bootstrap (remote
// attestation and key derivation are out of scope here); this package only
// exposes the encrypt/decrypt capability the state store needs. Ciphertext
// produced by a sealed key is unusable outside the enclave that owns the
// key material.
package sealing

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"errors"
	"fmt"
	"io"
)

// KeySize is the required length of sealing key material in bytes.
const KeySize = 32

// gcmNonceSize is the standard 12-byte AES-GCM nonce length.
const gcmNonceSize = 12

var (
	// ErrKeyUnavailable indicates the sealing key could not be obtained.
	ErrKeyUnavailable = errors.New("sealing: key unavailable")
	// ErrDecrypt indicates ciphertext could not be authenticated or decrypted.
	ErrDecrypt = errors.New("sealing: decrypt failed")
)

// Key is the unsealed encryption capability handed to the state store.
type Key interface {
	Encrypt(plaintext []byte) ([]byte, error)
	Decrypt(ciphertext []byte) ([]byte, error)
}

// Sealer produces an unsealed Key. Failure is fatal for the operation in
// progress: a node that cannot unseal its key cannot touch shard state.
type Sealer interface {
	UnsealKey() (Key, error)
}

// --- AES-256-GCM sealer ---

// AESSealer seals state with AES-256-GCM using key material obtained from a
// KeySource. The nonce is generated per encryption and prepended to the
// ciphertext, so sealing the same plaintext twice yields different bytes.
type AESSealer struct {
	source KeySource
}

// KeySource supplies raw sealing key material, KeySize bytes long.
type KeySource func() ([]byte, error)

func NewAESSealer(source KeySource) *AESSealer {
	return &AESSealer{source: source}
}

func (s *AESSealer) UnsealKey() (Key, error) {
	material, err := s.source()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrKeyUnavailable, err)
	}
	if len(material) != KeySize {
		return nil, fmt.Errorf("%w: key material must be %d bytes, got %d", ErrKeyUnavailable, KeySize, len(material))
	}
	block, err := aes.NewCipher(material)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrKeyUnavailable, err)
	}
	aead, err := cipher.NewGCMWithNonceSize(block, gcmNonceSize)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrKeyUnavailable, err)
	}
	return &aesKey{aead: aead}, nil
}

type aesKey struct {
	aead cipher.AEAD
}

func (k *aesKey) Encrypt(plaintext []byte) ([]byte, error) {
	nonce := make([]byte, gcmNonceSize)
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, fmt.Errorf("sealing: nonce generation failed: %w", err)
	}
	return k.aead.Seal(nonce, nonce, plaintext, nil), nil
}

func (k *aesKey) Decrypt(ciphertext []byte) ([]byte, error) {
	if len(ciphertext) < gcmNonceSize {
		return nil, fmt.Errorf("%w: ciphertext shorter than nonce", ErrDecrypt)
	}
	nonce, sealed := ciphertext[:gcmNonceSize], ciphertext[gcmNonceSize:]
	plaintext, err := k.aead.Open(nil, nonce, sealed, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDecrypt, err)
	}
	return plaintext, nil
}

// --- Insecure sealer (dev and deterministic tests only) ---

// InsecureSealer passes plaintext through unchanged. It exists for local
// development without provisioned key material and for tests that need the
// sealed bytes to be a deterministic function of the plaintext. Never enable
// it on a production node.
type InsecureSealer struct{}

func (InsecureSealer) UnsealKey() (Key, error) { return insecureKey{}, nil }

type insecureKey struct{}

func (insecureKey) Encrypt(plaintext []byte) ([]byte, error) {
	out := make([]byte, len(plaintext))
	copy(out, plaintext)
	return out, nil
}

func (insecureKey) Decrypt(ciphertext []byte) ([]byte, error) {
	out := make([]byte, len(ciphertext))
	copy(out, ciphertext)
	return out, nil
}
