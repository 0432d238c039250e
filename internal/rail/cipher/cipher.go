// Package cipher implements the one-way credential transform the login
// endpoint expects: AES-CBC over the plaintext password with a per-session
// key handed out by the backend, then base64 applied twice. The handshake
// that fetches the key is performed by the session client; this package
// only does the transform.
package cipher

import (
	"crypto/aes"
	cryptocipher "crypto/cipher"
	"encoding/base64"

	"github.com/hanrail/hanrail/internal/rail"
)

// Key is the session encryption material negotiated before login. Idx is
// echoed back on the login request so the server can find the matching key.
type Key struct {
	Idx string
	Key string
}

// Encode encrypts credential under key and returns the transport-safe
// form. Deterministic for identical inputs: the IV is derived from the key
// (its first block), not random, because the server derives the same IV.
func Encode(credential string, key Key) (string, error) {
	if key.Key == "" {
		return "", &rail.CodecError{Reason: "handshake returned no key"}
	}
	keyBytes := []byte(key.Key)
	switch len(keyBytes) {
	case 16, 24, 32:
	default:
		return "", &rail.CodecError{Reason: "handshake key has invalid length"}
	}

	block, err := aes.NewCipher(keyBytes)
	if err != nil {
		return "", &rail.CodecError{Reason: err.Error()}
	}

	plain := pkcs7Pad([]byte(credential), aes.BlockSize)
	out := make([]byte, len(plain))
	cryptocipher.NewCBCEncrypter(block, keyBytes[:aes.BlockSize]).CryptBlocks(out, plain)

	// The login form expects the ciphertext base64-encoded twice.
	once := base64.StdEncoding.EncodeToString(out)
	return base64.StdEncoding.EncodeToString([]byte(once)), nil
}

func pkcs7Pad(data []byte, blockSize int) []byte {
	padding := blockSize - len(data)%blockSize
	padded := make([]byte, len(data)+padding)
	copy(padded, data)
	for i := len(data); i < len(padded); i++ {
		padded[i] = byte(padding)
	}
	return padded
}
