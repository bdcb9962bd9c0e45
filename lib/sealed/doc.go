// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package sealed provides age encryption for blockfs snapshots. It
// wraps filippo.io/age for the operations snapshots need: generate an
// x25519 keypair and store it as an identity file, encrypt a stream
// to one or more recipients, detect an encrypted stream, and decrypt
// it with an identity file.
//
// Key exports:
//
//   - [GenerateKeypair] / [WriteIdentityFile] -- new keypair in the
//     age-keygen file format
//   - [Encrypt] -- streaming encryption to age public key recipients
//   - [IsEncrypted] / [Decrypt] -- streaming decryption
//   - [ParsePublicKey] -- recipient validation
//
// Identity files written here are interchangeable with age-keygen's,
// so snapshots can be decrypted with the age command as well.
package sealed
