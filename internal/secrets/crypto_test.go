package secrets

import (
	"bytes"
	"errors"
	"testing"
)

func TestDeriveKey(t *testing.T) {
	key := DeriveKey("test123")
	if key != DeriveKey("test123") {
		t.Error("Same passphrase produced different keys")
	}
	if key == DeriveKey("test123x") {
		t.Error("Different passphrases produced same key")
	}
}

func TestEncryptDecrypt(t *testing.T) {
	key := DeriveKey("test-passphrase")

	tests := []struct {
		name      string
		plaintext []byte
	}{
		{"controller secret", []byte("s3cr3t-controller")},
		{"empty", []byte("")},
		{"binary data", []byte{0x00, 0x01, 0x02, 0xff, 0xfe, 0xfd}},
		{"unicode", []byte("订阅 🔑")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sealed, err := Encrypt(tt.plaintext, &key)
			if err != nil {
				t.Fatalf("Encrypt() error = %v", err)
			}
			if len(tt.plaintext) > 0 && bytes.Contains(sealed, tt.plaintext) {
				t.Error("Sealed data contains the plaintext")
			}

			opened, err := Decrypt(sealed, &key)
			if err != nil {
				t.Fatalf("Decrypt() error = %v", err)
			}
			if !bytes.Equal(opened, tt.plaintext) {
				t.Errorf("Decrypted = %q, want %q", opened, tt.plaintext)
			}
		})
	}
}

func TestEncrypt_RandomNonce(t *testing.T) {
	key := DeriveKey("test-passphrase")

	a, err := Encrypt([]byte("same"), &key)
	if err != nil {
		t.Fatalf("Encrypt() error = %v", err)
	}
	b, err := Encrypt([]byte("same"), &key)
	if err != nil {
		t.Fatalf("Encrypt() error = %v", err)
	}
	if bytes.Equal(a, b) {
		t.Error("Same plaintext encrypted twice should produce different output")
	}
}

func TestDecrypt_WrongKey(t *testing.T) {
	right := DeriveKey("correct")
	wrong := DeriveKey("wrong")

	sealed, err := Encrypt([]byte("secret"), &right)
	if err != nil {
		t.Fatalf("Encrypt() error = %v", err)
	}
	if _, err := Decrypt(sealed, &wrong); !errors.Is(err, ErrDecrypt) {
		t.Errorf("Decrypt() with wrong key error = %v, want ErrDecrypt", err)
	}
}

func TestDecrypt_Tampered(t *testing.T) {
	key := DeriveKey("k")
	sealed, err := Encrypt([]byte("secret"), &key)
	if err != nil {
		t.Fatalf("Encrypt() error = %v", err)
	}
	sealed[len(sealed)-1] ^= 0xff

	if _, err := Decrypt(sealed, &key); !errors.Is(err, ErrDecrypt) {
		t.Errorf("Decrypt() of tampered data error = %v, want ErrDecrypt", err)
	}
}

func TestDecrypt_TooShort(t *testing.T) {
	key := DeriveKey("k")
	if _, err := Decrypt(make([]byte, NonceSize), &key); err == nil {
		t.Error("Decrypt() should reject data shorter than nonce plus overhead")
	}
}
