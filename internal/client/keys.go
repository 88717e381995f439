package client

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/joho/godotenv"

	"github.com/vaultpass/consumer-secrets/internal/crypto"
)

// Keystore entry names.
const (
	KeyPublic  = "PUBLIC_KEY"
	KeyPrivate = "PRIVATE_KEY"
)

var ErrKeyMissing = errors.New("keystore entry missing")

// KeyContext holds the active key pair. It is created once and passed to every
// operation that encrypts or decrypts. Records are sealed to the holder's own
// public key, so the same pair serves as sender and recipient.
type KeyContext struct {
	public  *crypto.Key
	private *crypto.Key
}

// NewKeyContext builds a KeyContext from an existing pair.
func NewKeyContext(public, private *crypto.Key) (*KeyContext, error) {
	if public == nil || private == nil {
		return nil, crypto.ErrInvalidKey
	}
	return &KeyContext{public: public, private: private}, nil
}

// GenerateKeyContext creates a KeyContext with a fresh key pair.
func GenerateKeyContext() (*KeyContext, error) {
	pub, priv, err := crypto.GenerateKeyPair()
	if err != nil {
		return nil, err
	}
	return &KeyContext{public: pub, private: priv}, nil
}

// LoadKeyContext reads PUBLIC_KEY and PRIVATE_KEY from a keystore file.
func LoadKeyContext(path string) (*KeyContext, error) {
	entries, err := godotenv.Read(path)
	if err != nil {
		return nil, fmt.Errorf("read keystore %s: %w", path, err)
	}

	pub, err := decodeEntry(entries, KeyPublic)
	if err != nil {
		return nil, err
	}
	priv, err := decodeEntry(entries, KeyPrivate)
	if err != nil {
		return nil, err
	}
	return &KeyContext{public: pub, private: priv}, nil
}

func decodeEntry(entries map[string]string, name string) (*crypto.Key, error) {
	v, ok := entries[name]
	if !ok || v == "" {
		return nil, fmt.Errorf("%w: %s", ErrKeyMissing, name)
	}
	k, err := crypto.DecodeKey(v)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", name, err)
	}
	return k, nil
}

// Save writes the key pair to a keystore file readable only by the owner.
func (k *KeyContext) Save(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return err
	}
	content, err := godotenv.Marshal(map[string]string{
		KeyPublic:  crypto.EncodeKey(k.public),
		KeyPrivate: crypto.EncodeKey(k.private),
	})
	if err != nil {
		return fmt.Errorf("encode keystore: %w", err)
	}

	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o600)
	if err != nil {
		return fmt.Errorf("write keystore %s: %w", path, err)
	}
	// O_CREATE only applies the mode to new files.
	if err := f.Chmod(0o600); err != nil {
		f.Close()
		return fmt.Errorf("write keystore %s: %w", path, err)
	}
	if _, err := f.WriteString(content + "\n"); err != nil {
		f.Close()
		return fmt.Errorf("write keystore %s: %w", path, err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("write keystore %s: %w", path, err)
	}
	return nil
}

// PublicKey returns the base64 public key.
func (k *KeyContext) PublicKey() string {
	return crypto.EncodeKey(k.public)
}

// Seal encrypts one field value.
func (k *KeyContext) Seal(plaintext string) (crypto.Sealed, error) {
	return crypto.Encrypt(plaintext, k.public, k.private)
}

// Open decrypts one field value.
func (k *KeyContext) Open(ciphertext, nonce string) (string, error) {
	return crypto.Decrypt(ciphertext, nonce, k.public, k.private)
}
