package crypto

import (
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"io"

	"golang.org/x/crypto/nacl/box"
)

const (
	// KeySize is the length of an X25519 public or private key.
	KeySize = 32
	// NonceSize is the length of a NaCl box nonce.
	NonceSize = 24
)

var (
	ErrDecryption = errors.New("decryption failed")
	ErrInvalidKey = errors.New("invalid key")
)

// Key is a raw X25519 key.
type Key = [KeySize]byte

// Sealed is the output of Encrypt: base64 ciphertext and the base64 nonce it was sealed with.
type Sealed struct {
	Ciphertext string
	Nonce      string
}

// GenerateKeyPair creates a new X25519 key pair from crypto/rand.
func GenerateKeyPair() (publicKey, privateKey *Key, err error) {
	return box.GenerateKey(rand.Reader)
}

// Encrypt seals plaintext for recipientPublicKey using senderPrivateKey.
// A fresh random nonce is drawn on every call.
func Encrypt(plaintext string, recipientPublicKey, senderPrivateKey *Key) (Sealed, error) {
	if recipientPublicKey == nil || senderPrivateKey == nil {
		return Sealed{}, ErrInvalidKey
	}

	var nonce [NonceSize]byte
	if _, err := io.ReadFull(rand.Reader, nonce[:]); err != nil {
		return Sealed{}, fmt.Errorf("generating nonce: %w", err)
	}

	ciphertext := box.Seal(nil, []byte(plaintext), &nonce, recipientPublicKey, senderPrivateKey)

	return Sealed{
		Ciphertext: base64.StdEncoding.EncodeToString(ciphertext),
		Nonce:      base64.StdEncoding.EncodeToString(nonce[:]),
	}, nil
}

// Decrypt opens a sealed value. Any authentication failure, including a wrong key,
// corrupted ciphertext, or a nonce that does not match, returns ErrDecryption and
// no plaintext.
func Decrypt(ciphertext, nonce string, senderPublicKey, recipientPrivateKey *Key) (string, error) {
	if senderPublicKey == nil || recipientPrivateKey == nil {
		return "", ErrInvalidKey
	}

	rawNonce, err := base64.StdEncoding.DecodeString(nonce)
	if err != nil || len(rawNonce) != NonceSize {
		return "", ErrDecryption
	}
	rawCiphertext, err := base64.StdEncoding.DecodeString(ciphertext)
	if err != nil || len(rawCiphertext) < box.Overhead {
		return "", ErrDecryption
	}

	var n [NonceSize]byte
	copy(n[:], rawNonce)

	plaintext, ok := box.Open(nil, rawCiphertext, &n, senderPublicKey, recipientPrivateKey)
	if !ok {
		return "", ErrDecryption
	}

	return string(plaintext), nil
}

// EncodeKey returns the base64 form of a key.
func EncodeKey(k *Key) string {
	return base64.StdEncoding.EncodeToString(k[:])
}

// DecodeKey parses a base64 key and checks its length.
func DecodeKey(s string) (*Key, error) {
	raw, err := base64.StdEncoding.DecodeString(s)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidKey, err)
	}
	if len(raw) != KeySize {
		return nil, fmt.Errorf("%w: expected %d bytes, got %d", ErrInvalidKey, KeySize, len(raw))
	}

	var k Key
	copy(k[:], raw)
	return &k, nil
}
