// internal/config/crypto.go
package config

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"io"
	"strings"
)

const encryptedPrefix = "enc:"

// Encrypt seals plaintext with AES-GCM. The key is padded or truncated to 32 bytes.
func Encrypt(plaintext, key string) (string, error) {
	gcm, err := newGCM(key)
	if err != nil {
		return "", err
	}

	nonce := make([]byte, gcm.NonceSize())
	if _, err = io.ReadFull(rand.Reader, nonce); err != nil {
		return "", err
	}

	ciphertext := gcm.Seal(nonce, nonce, []byte(plaintext), nil)
	return base64.StdEncoding.EncodeToString(ciphertext), nil
}

// Decrypt opens a value produced by Encrypt.
func Decrypt(ciphertext, key string) (string, error) {
	raw, err := base64.StdEncoding.DecodeString(ciphertext)
	if err != nil {
		return "", err
	}

	gcm, err := newGCM(key)
	if err != nil {
		return "", err
	}

	nonceSize := gcm.NonceSize()
	if len(raw) < nonceSize {
		return "", fmt.Errorf("ciphertext too short")
	}

	nonce, sealed := raw[:nonceSize], raw[nonceSize:]
	plaintext, err := gcm.Open(nil, nonce, sealed, nil)
	if err != nil {
		return "", err
	}

	return string(plaintext), nil
}

func newGCM(key string) (cipher.AEAD, error) {
	keyBytes := make([]byte, 32)
	copy(keyBytes, key)

	block, err := aes.NewCipher(keyBytes)
	if err != nil {
		return nil, err
	}
	return cipher.NewGCM(block)
}

// encryptKey marks encrypted values with a prefix so plain keys written by hand still load.
func encryptKey(value, key string) string {
	if key == "" || strings.HasPrefix(value, encryptedPrefix) {
		return value
	}
	sealed, err := Encrypt(value, key)
	if err != nil {
		return value
	}
	return encryptedPrefix + sealed
}

func decryptKey(value, key string) string {
	if !strings.HasPrefix(value, encryptedPrefix) {
		return value
	}
	if key == "" {
		return ""
	}
	plain, err := Decrypt(strings.TrimPrefix(value, encryptedPrefix), key)
	if err != nil {
		return ""
	}
	return plain
}
