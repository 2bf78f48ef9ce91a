package utils

import "testing"

func configureEncryptionForTest(t *testing.T, secret string) {
	t.Helper()

	original := encryptionKey
	t.Cleanup(func() {
		encryptionKey = original
	})

	encryptionKey = nil
	ConfigureEncryption(secret)
}

func TestConfigureEncryption(t *testing.T) {
	t.Run("empty secret does not set key", func(t *testing.T) {
		configureEncryptionForTest(t, "")
		if encryptionKey != nil {
			t.Error("expected encryption key to not be set")
		}
	})

	t.Run("valid secret derives a 32-byte key", func(t *testing.T) {
		configureEncryptionForTest(t, "server-secret")
		if len(encryptionKey) != 32 {
			t.Errorf("expected 32-byte key, got %d bytes", len(encryptionKey))
		}
	})
}

func TestEncryptDecryptRoundTrip(t *testing.T) {
	configureEncryptionForTest(t, "server-secret")

	cases := []struct {
		name    string
		content string
	}{
		{"empty", ""},
		{"totp secret", "JBSWY3DPEHPK3PXP"},
		{"unicode", "héllo wörld 🌍"},
		{"binary-like", string([]byte{0, 1, 2, 255, 128, 64})},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			encrypted, err := EncryptAESGCM(tc.content)
			if err != nil {
				t.Fatalf("EncryptAESGCM() error = %v", err)
			}
			if encrypted == tc.content && tc.content != "" {
				t.Fatal("expected ciphertext to differ from plaintext")
			}

			decrypted, err := DecryptAESGCM(encrypted)
			if err != nil {
				t.Fatalf("DecryptAESGCM() error = %v", err)
			}
			if decrypted != tc.content {
				t.Errorf("round trip failed: got %q, want %q", decrypted, tc.content)
			}
		})
	}
}

func TestDecryptAESGCM_Failures(t *testing.T) {
	configureEncryptionForTest(t, "server-secret")

	encrypted, err := EncryptAESGCM("secret")
	if err != nil {
		t.Fatalf("failed to encrypt: %v", err)
	}

	t.Run("invalid base64 returns error", func(t *testing.T) {
		if _, err := DecryptAESGCM("not-valid-base64!!!"); err == nil {
			t.Error("expected error for invalid base64")
		}
	})

	t.Run("ciphertext shorter than nonce returns error", func(t *testing.T) {
		if _, err := DecryptAESGCM("YWJj"); err == nil {
			t.Error("expected error for truncated ciphertext")
		}
	})

	t.Run("wrong key returns error", func(t *testing.T) {
		encryptionKey = nil
		ConfigureEncryption("a-different-secret")
		if _, err := DecryptAESGCM(encrypted); err == nil {
			t.Error("expected error when decrypting under a different key")
		}
	})

	t.Run("unconfigured encryption returns error", func(t *testing.T) {
		encryptionKey = nil
		if _, err := DecryptAESGCM(encrypted); err == nil {
			t.Error("expected error when encryption is not configured")
		}
		if _, err := EncryptAESGCM("x"); err == nil {
			t.Error("expected error when encryption is not configured")
		}
	})
}
