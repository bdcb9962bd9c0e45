// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package sealed

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"filippo.io/age"
)

// header opens every binary age file.
const header = "age-encryption.org/v1\n"

// Keypair holds an age x25519 keypair.
type Keypair struct {
	// PrivateKey is the identity in AGE-SECRET-KEY-1... form. It must
	// never be logged or passed on a command line.
	PrivateKey string

	// PublicKey is the recipient in age1... form. Safe to publish.
	PublicKey string
}

// GenerateKeypair generates a new age x25519 keypair.
func GenerateKeypair() (*Keypair, error) {
	identity, err := age.GenerateX25519Identity()
	if err != nil {
		return nil, fmt.Errorf("generating age keypair: %w", err)
	}
	return &Keypair{
		PrivateKey: identity.String(),
		PublicKey:  identity.Recipient().String(),
	}, nil
}

// WriteIdentityFile stores keypair at path in the format age-keygen
// writes, readable only by the owner. An existing file is never
// replaced.
func WriteIdentityFile(path string, keypair *Keypair, created time.Time) error {
	file, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o600)
	if err != nil {
		return fmt.Errorf("creating identity file: %w", err)
	}
	_, writeErr := fmt.Fprintf(file, "# created: %s\n# public key: %s\n%s\n",
		created.UTC().Format(time.RFC3339), keypair.PublicKey, keypair.PrivateKey)
	if err := errors.Join(writeErr, file.Close()); err != nil {
		os.Remove(path)
		return fmt.Errorf("writing identity file %s: %w", path, err)
	}
	return nil
}

// ParsePublicKey validates an age public key string.
func ParsePublicKey(publicKey string) error {
	if _, err := age.ParseX25519Recipient(publicKey); err != nil {
		return fmt.Errorf("invalid age public key: %w", err)
	}
	return nil
}

// Encrypt returns a writer that encrypts everything written to it to
// the given recipients and writes the ciphertext to w. The caller
// must Close the writer to flush the final chunk; closing does not
// close w.
func Encrypt(w io.Writer, recipientKeys []string) (io.WriteCloser, error) {
	if len(recipientKeys) == 0 {
		return nil, fmt.Errorf("at least one recipient is required")
	}

	recipients := make([]age.Recipient, 0, len(recipientKeys))
	for _, key := range recipientKeys {
		recipient, err := age.ParseX25519Recipient(key)
		if err != nil {
			return nil, fmt.Errorf("parsing recipient key %q: %w", key, err)
		}
		recipients = append(recipients, recipient)
	}

	writer, err := age.Encrypt(w, recipients...)
	if err != nil {
		return nil, fmt.Errorf("creating age encryptor: %w", err)
	}
	return writer, nil
}

// IsEncrypted reports whether r starts with an age header. It only
// peeks, so r still yields the whole stream afterwards.
func IsEncrypted(r *bufio.Reader) bool {
	peeked, _ := r.Peek(len(header))
	return string(peeked) == header
}

// Decrypt returns a reader of the plaintext of the age stream r,
// decrypted with any identity in the file at identityPath.
func Decrypt(r io.Reader, identityPath string) (io.Reader, error) {
	file, err := os.Open(identityPath)
	if err != nil {
		return nil, fmt.Errorf("opening identity file: %w", err)
	}
	defer file.Close()

	identities, err := age.ParseIdentities(file)
	if err != nil {
		return nil, fmt.Errorf("parsing identity file %s: %w", identityPath, err)
	}

	reader, err := age.Decrypt(r, identities...)
	if err != nil {
		return nil, fmt.Errorf("decrypting: %w", err)
	}
	return reader, nil
}
