// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package sealed

import (
	"bufio"
	"bytes"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func newIdentity(t *testing.T) (*Keypair, string) {
	t.Helper()
	keypair, err := GenerateKeypair()
	if err != nil {
		t.Fatalf("GenerateKeypair() error: %v", err)
	}
	path := filepath.Join(t.TempDir(), "identity.txt")
	if err := WriteIdentityFile(path, keypair, time.Unix(1735689600, 0)); err != nil {
		t.Fatalf("WriteIdentityFile() error: %v", err)
	}
	return keypair, path
}

func encrypt(t *testing.T, plaintext []byte, recipients ...string) []byte {
	t.Helper()
	var ciphertext bytes.Buffer
	writer, err := Encrypt(&ciphertext, recipients)
	if err != nil {
		t.Fatalf("Encrypt() error: %v", err)
	}
	if _, err := writer.Write(plaintext); err != nil {
		t.Fatalf("Write() error: %v", err)
	}
	if err := writer.Close(); err != nil {
		t.Fatalf("Close() error: %v", err)
	}
	return ciphertext.Bytes()
}

func TestGenerateKeypair(t *testing.T) {
	keypair, err := GenerateKeypair()
	if err != nil {
		t.Fatalf("GenerateKeypair() error: %v", err)
	}
	if !strings.HasPrefix(keypair.PrivateKey, "AGE-SECRET-KEY-1") {
		t.Errorf("PrivateKey has the wrong prefix")
	}
	if !strings.HasPrefix(keypair.PublicKey, "age1") {
		t.Errorf("PublicKey = %q, want prefix age1", keypair.PublicKey)
	}
	if err := ParsePublicKey(keypair.PublicKey); err != nil {
		t.Errorf("ParsePublicKey(generated key) error: %v", err)
	}

	other, err := GenerateKeypair()
	if err != nil {
		t.Fatalf("GenerateKeypair() error: %v", err)
	}
	if other.PrivateKey == keypair.PrivateKey {
		t.Error("two generated keypairs have identical private keys")
	}
}

func TestWriteIdentityFile(t *testing.T) {
	keypair, path := newIdentity(t)

	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("Stat() error: %v", err)
	}
	if info.Mode().Perm() != 0o600 {
		t.Errorf("identity file mode = %v, want 0600", info.Mode().Perm())
	}
	content, _ := os.ReadFile(path)
	want := "# created: 2025-01-01T00:00:00Z\n# public key: " + keypair.PublicKey + "\n" + keypair.PrivateKey + "\n"
	if string(content) != want {
		t.Errorf("identity file content does not match the age-keygen format")
	}

	if err := WriteIdentityFile(path, keypair, time.Now()); err == nil {
		t.Error("WriteIdentityFile() replaced an existing file")
	}
}

func TestEncryptDecrypt(t *testing.T) {
	keypair, identityPath := newIdentity(t)
	plaintext := bytes.Repeat([]byte("block"), 20000)

	ciphertext := encrypt(t, plaintext, keypair.PublicKey)
	if bytes.Contains(ciphertext, []byte("blockblock")) {
		t.Fatal("ciphertext contains plaintext")
	}

	reader := bufio.NewReader(bytes.NewReader(ciphertext))
	if !IsEncrypted(reader) {
		t.Fatal("IsEncrypted() = false for age output")
	}
	plainReader, err := Decrypt(reader, identityPath)
	if err != nil {
		t.Fatalf("Decrypt() error: %v", err)
	}
	decrypted, err := io.ReadAll(plainReader)
	if err != nil {
		t.Fatalf("ReadAll() error: %v", err)
	}
	if !bytes.Equal(decrypted, plaintext) {
		t.Errorf("decrypted %d bytes, want %d matching bytes", len(decrypted), len(plaintext))
	}
}

func TestEncryptMultipleRecipients(t *testing.T) {
	first, firstIdentity := newIdentity(t)
	second, secondIdentity := newIdentity(t)
	ciphertext := encrypt(t, []byte("shared"), first.PublicKey, second.PublicKey)

	for _, identity := range []string{firstIdentity, secondIdentity} {
		reader, err := Decrypt(bytes.NewReader(ciphertext), identity)
		if err != nil {
			t.Fatalf("Decrypt(%s) error: %v", identity, err)
		}
		decrypted, _ := io.ReadAll(reader)
		if string(decrypted) != "shared" {
			t.Errorf("Decrypt(%s) = %q", identity, decrypted)
		}
	}
}

func TestDecryptWithWrongIdentity(t *testing.T) {
	keypair, _ := newIdentity(t)
	_, otherIdentity := newIdentity(t)
	ciphertext := encrypt(t, []byte("secret"), keypair.PublicKey)

	if _, err := Decrypt(bytes.NewReader(ciphertext), otherIdentity); err == nil {
		t.Error("Decrypt() with the wrong identity succeeded")
	}
}

func TestEncryptErrors(t *testing.T) {
	tests := []struct {
		name       string
		recipients []string
	}{
		{"no recipients", nil},
		{"malformed recipient", []string{"age1notakey"}},
		{"ssh key", []string{"ssh-ed25519 AAAA"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := Encrypt(io.Discard, tt.recipients); err == nil {
				t.Error("Encrypt() succeeded")
			}
		})
	}
}

func TestIsEncryptedLeavesStreamIntact(t *testing.T) {
	plain := []byte{0x28, 0xb5, 0x2f, 0xfd, 1, 2, 3}
	reader := bufio.NewReader(bytes.NewReader(plain))
	if IsEncrypted(reader) {
		t.Error("IsEncrypted() = true for a zstd frame")
	}
	rest, _ := io.ReadAll(reader)
	if !bytes.Equal(rest, plain) {
		t.Errorf("stream after IsEncrypted() = %x, want %x", rest, plain)
	}

	if IsEncrypted(bufio.NewReader(bytes.NewReader(nil))) {
		t.Error("IsEncrypted() = true for an empty stream")
	}
}

func TestParsePublicKeyRejectsGarbage(t *testing.T) {
	if err := ParsePublicKey("not-a-key"); err == nil {
		t.Error("ParsePublicKey() accepted garbage")
	}
}
