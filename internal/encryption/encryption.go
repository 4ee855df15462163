// Package encryption seals stored source credentials with AES-256-GCM.
package encryption

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/crypto/pbkdf2"
)

const (
	keySize          = 32
	pbkdf2Iterations = 600_000
)

// Encryptor encrypts and decrypts short secrets such as API keys.
type Encryptor struct {
	gcm cipher.AEAD
}

// NewEncryptor creates an Encryptor from a base64-encoded 32-byte key.
// An empty key generates a fresh random one; the encoded key in use is
// always returned so callers can persist it.
func NewEncryptor(key string) (*Encryptor, string, error) {
	var keyBytes []byte
	if key == "" {
		keyBytes = make([]byte, keySize)
		if _, err := io.ReadFull(rand.Reader, keyBytes); err != nil {
			return nil, "", fmt.Errorf("generating encryption key: %w", err)
		}
		key = base64.StdEncoding.EncodeToString(keyBytes)
	} else {
		decoded, err := base64.StdEncoding.DecodeString(key)
		if err != nil {
			return nil, "", fmt.Errorf("decoding encryption key: %w", err)
		}
		keyBytes = decoded
	}

	enc, err := fromKey(keyBytes)
	if err != nil {
		return nil, "", err
	}
	return enc, key, nil
}

// NewFromPassphrase derives the key from a passphrase with PBKDF2-SHA256.
// The same passphrase and salt always yield the same key.
func NewFromPassphrase(passphrase string, salt []byte) (*Encryptor, error) {
	if passphrase == "" {
		return nil, errors.New("passphrase is empty")
	}
	if len(salt) < 8 {
		return nil, fmt.Errorf("salt must be at least 8 bytes, got %d", len(salt))
	}
	return fromKey(pbkdf2.Key([]byte(passphrase), salt, pbkdf2Iterations, keySize, sha256.New))
}

func fromKey(keyBytes []byte) (*Encryptor, error) {
	if len(keyBytes) != keySize {
		return nil, fmt.Errorf("encryption key must be %d bytes, got %d", keySize, len(keyBytes))
	}
	block, err := aes.NewCipher(keyBytes)
	if err != nil {
		return nil, fmt.Errorf("creating AES cipher: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("creating GCM: %w", err)
	}
	return &Encryptor{gcm: gcm}, nil
}

// LoadOrCreateKey returns the base64 key stored at path, generating and
// persisting a new one (mode 0600) when the file does not exist.
func LoadOrCreateKey(path string) (string, error) {
	data, err := os.ReadFile(path) //nolint:gosec // path comes from operator config
	if err == nil {
		key := strings.TrimSpace(string(data))
		if key == "" {
			return "", fmt.Errorf("key file %s is empty", path)
		}
		return key, nil
	}
	if !errors.Is(err, os.ErrNotExist) {
		return "", fmt.Errorf("reading key file: %w", err)
	}

	_, key, err := NewEncryptor("")
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return "", fmt.Errorf("creating key directory: %w", err)
	}
	if err := os.WriteFile(path, []byte(key+"\n"), 0o600); err != nil {
		return "", fmt.Errorf("writing key file: %w", err)
	}
	return key, nil
}

// Encrypt seals plaintext and returns base64(nonce || ciphertext).
func (e *Encryptor) Encrypt(plaintext string) (string, error) {
	nonce := make([]byte, e.gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", fmt.Errorf("generating nonce: %w", err)
	}
	sealed := e.gcm.Seal(nonce, nonce, []byte(plaintext), nil)
	return base64.StdEncoding.EncodeToString(sealed), nil
}

// Decrypt reverses Encrypt.
func (e *Encryptor) Decrypt(encoded string) (string, error) {
	sealed, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return "", fmt.Errorf("decoding ciphertext: %w", err)
	}
	n := e.gcm.NonceSize()
	if len(sealed) < n {
		return "", errors.New("ciphertext too short")
	}
	plaintext, err := e.gcm.Open(nil, sealed[:n], sealed[n:], nil)
	if err != nil {
		return "", fmt.Errorf("decrypting: %w", err)
	}
	return string(plaintext), nil
}
