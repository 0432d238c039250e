package cipher

import (
	"crypto/aes"
	cryptocipher "crypto/cipher"
	"encoding/base64"
	"errors"
	"testing"

	"github.com/hanrail/hanrail/internal/rail"
)

func TestEncodeDeterministic(t *testing.T) {
	key := Key{Idx: "3", Key: "0123456789abcdef"}

	a, err := Encode("secret-password", key)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	b, err := Encode("secret-password", key)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	if a != b {
		t.Errorf("Encode not deterministic: %q vs %q", a, b)
	}
}

func TestEncodeRoundTrip(t *testing.T) {
	keyStr := "0123456789abcdef"
	encoded, err := Encode("비밀번호123", Key{Key: keyStr})
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}

	// Peel the double base64, then decrypt with the key-derived IV.
	once, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		t.Fatalf("outer base64: %v", err)
	}
	ciphertext, err := base64.StdEncoding.DecodeString(string(once))
	if err != nil {
		t.Fatalf("inner base64: %v", err)
	}
	if len(ciphertext)%aes.BlockSize != 0 {
		t.Fatalf("ciphertext length %d not block-aligned", len(ciphertext))
	}

	block, err := aes.NewCipher([]byte(keyStr))
	if err != nil {
		t.Fatalf("NewCipher: %v", err)
	}
	plain := make([]byte, len(ciphertext))
	cryptocipher.NewCBCDecrypter(block, []byte(keyStr)[:aes.BlockSize]).CryptBlocks(plain, ciphertext)

	padding := int(plain[len(plain)-1])
	if padding < 1 || padding > aes.BlockSize {
		t.Fatalf("invalid padding byte %d", padding)
	}
	if got := string(plain[:len(plain)-padding]); got != "비밀번호123" {
		t.Errorf("round trip = %q, expected original credential", got)
	}
}

func TestEncodeRejectsBadKeys(t *testing.T) {
	tests := []struct {
		name string
		key  Key
	}{
		{"empty key", Key{}},
		{"short key", Key{Key: "tooshort"}},
		{"odd length key", Key{Key: "0123456789abcdef0"}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Encode("pw", tc.key)
			var codecErr *rail.CodecError
			if !errors.As(err, &codecErr) {
				t.Errorf("Encode = %v, expected CodecError", err)
			}
		})
	}
}
