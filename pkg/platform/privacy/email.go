package privacy

import (
	"crypto/rand"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"

	"golang.org/x/crypto/blake2b"
	"golang.org/x/crypto/chacha20poly1305"
)

// ErrKeySize is returned when a sealing key is not 32 bytes.
var ErrKeySize = errors.New("privacy: key must be 32 bytes")

// EmailHasher produces a keyed, deterministic digest of an email so logs can be
// correlated per address without storing the address.
type EmailHasher struct {
	key []byte
}

// NewEmailHasher creates a hasher keyed with key (up to 64 bytes, may be empty).
func NewEmailHasher(key []byte) (*EmailHasher, error) {
	if len(key) > blake2b.Size {
		return nil, fmt.Errorf("privacy: hash key longer than %d bytes", blake2b.Size)
	}
	return &EmailHasher{key: key}, nil
}

// Hash returns the hex blake2b-256 digest of email.
func (h *EmailHasher) Hash(email string) string {
	mac, err := blake2b.New256(h.key)
	if err != nil {
		// key length is validated in NewEmailHasher
		panic(err)
	}
	mac.Write([]byte(email))
	return hex.EncodeToString(mac.Sum(nil))
}

// EmailSealer encrypts emails with XChaCha20-Poly1305 so support staff with the
// key can recover the address of a logged validation.
type EmailSealer struct {
	key []byte
}

// NewEmailSealer creates a sealer from a 32-byte key.
func NewEmailSealer(key []byte) (*EmailSealer, error) {
	if len(key) != chacha20poly1305.KeySize {
		return nil, ErrKeySize
	}
	return &EmailSealer{key: append([]byte(nil), key...)}, nil
}

// Seal encrypts email and returns base64(nonce || ciphertext).
func (s *EmailSealer) Seal(email string) (string, error) {
	aead, err := chacha20poly1305.NewX(s.key)
	if err != nil {
		return "", fmt.Errorf("init aead: %w", err)
	}
	nonce := make([]byte, aead.NonceSize(), aead.NonceSize()+len(email)+aead.Overhead())
	if _, err := rand.Read(nonce); err != nil {
		return "", fmt.Errorf("read nonce: %w", err)
	}
	out := aead.Seal(nonce, nonce, []byte(email), nil)
	return base64.StdEncoding.EncodeToString(out), nil
}

// Open reverses Seal.
func (s *EmailSealer) Open(sealed string) (string, error) {
	raw, err := base64.StdEncoding.DecodeString(sealed)
	if err != nil {
		return "", fmt.Errorf("decode sealed email: %w", err)
	}
	aead, err := chacha20poly1305.NewX(s.key)
	if err != nil {
		return "", fmt.Errorf("init aead: %w", err)
	}
	if len(raw) < aead.NonceSize() {
		return "", errors.New("privacy: sealed email too short")
	}
	nonce, ciphertext := raw[:aead.NonceSize()], raw[aead.NonceSize():]
	plain, err := aead.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return "", fmt.Errorf("open sealed email: %w", err)
	}
	return string(plain), nil
}
