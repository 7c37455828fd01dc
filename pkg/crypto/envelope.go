// SPDX-FileCopyrightText: Copyright 2025 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

// Package crypto seals and unseals credential field values with a
// process-wide master key.
//
// Sealed values are authenticated with AES-256-GCM under a key derived per
// record, so the stored form is `salt:iv:ciphertext:tag` with each segment in
// lowercase hex. Every encryption draws a fresh salt and IV.
package crypto

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/crypto/pbkdf2"
)

const (
	// MasterKeySize is the required master key length in bytes.
	MasterKeySize = 32

	saltSize         = 64
	ivSize           = 16
	tagSize          = 16
	derivedKeySize   = 32
	pbkdf2Iterations = 100_000

	envelopeSegments = 4
)

// ErrDecrypt is returned for every decryption failure. A malformed envelope,
// a tampered ciphertext and a wrong master key are deliberately
// indistinguishable to the caller.
var ErrDecrypt = errors.New("failed to decrypt value")

// Cipher seals and unseals strings under a fixed master key.
type Cipher struct {
	masterKey []byte
}

// NewCipher creates a Cipher from a 32-byte master key.
func NewCipher(masterKey []byte) (*Cipher, error) {
	if len(masterKey) != MasterKeySize {
		return nil, fmt.Errorf("master key must be %d bytes, got %d", MasterKeySize, len(masterKey))
	}
	key := make([]byte, MasterKeySize)
	copy(key, masterKey)
	return &Cipher{masterKey: key}, nil
}

// Encrypt seals a UTF-8 string and returns the hex envelope.
func (c *Cipher) Encrypt(plaintext string) (string, error) {
	salt := make([]byte, saltSize)
	if _, err := rand.Read(salt); err != nil {
		return "", fmt.Errorf("failed to generate salt: %w", err)
	}
	iv := make([]byte, ivSize)
	if _, err := rand.Read(iv); err != nil {
		return "", fmt.Errorf("failed to generate IV: %w", err)
	}

	gcm, err := c.aead(salt)
	if err != nil {
		return "", err
	}

	sealed := gcm.Seal(nil, iv, []byte(plaintext), nil)
	ciphertext := sealed[:len(sealed)-tagSize]
	tag := sealed[len(sealed)-tagSize:]

	return strings.Join([]string{
		hex.EncodeToString(salt),
		hex.EncodeToString(iv),
		hex.EncodeToString(ciphertext),
		hex.EncodeToString(tag),
	}, ":"), nil
}

// Decrypt unseals a hex envelope produced by Encrypt. It fails closed with
// ErrDecrypt on any malformed input or authentication failure; the error
// never carries ciphertext or key material.
func (c *Cipher) Decrypt(envelope string) (string, error) {
	salt, iv, ciphertext, tag, ok := splitEnvelope(envelope)
	if !ok {
		return "", ErrDecrypt
	}

	gcm, err := c.aead(salt)
	if err != nil {
		return "", ErrDecrypt
	}

	sealed := make([]byte, 0, len(ciphertext)+len(tag))
	sealed = append(sealed, ciphertext...)
	sealed = append(sealed, tag...)

	plaintext, err := gcm.Open(nil, iv, sealed, nil)
	if err != nil {
		return "", ErrDecrypt
	}
	return string(plaintext), nil
}

// aead derives the per-record key and builds the GCM instance. The 16-byte
// IV requires the non-standard nonce size.
func (c *Cipher) aead(salt []byte) (cipher.AEAD, error) {
	key := pbkdf2.Key(c.masterKey, salt, pbkdf2Iterations, derivedKeySize, sha256.New)
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("failed to create cipher: %w", err)
	}
	return cipher.NewGCMWithNonceSize(block, ivSize)
}

// IsSealed reports whether a value has the shape of a v1 envelope. It is used
// to pass historical plaintext through fields that were marked encrypted
// after the fact.
func IsSealed(value string) bool {
	_, _, _, _, ok := splitEnvelope(value)
	return ok
}

func splitEnvelope(envelope string) (salt, iv, ciphertext, tag []byte, ok bool) {
	parts := strings.Split(envelope, ":")
	if len(parts) != envelopeSegments {
		return nil, nil, nil, nil, false
	}

	salt, err := hex.DecodeString(parts[0])
	if err != nil || len(salt) != saltSize {
		return nil, nil, nil, nil, false
	}
	iv, err = hex.DecodeString(parts[1])
	if err != nil || len(iv) != ivSize {
		return nil, nil, nil, nil, false
	}
	ciphertext, err = hex.DecodeString(parts[2])
	if err != nil {
		return nil, nil, nil, nil, false
	}
	tag, err = hex.DecodeString(parts[3])
	if err != nil || len(tag) != tagSize {
		return nil, nil, nil, nil, false
	}
	return salt, iv, ciphertext, tag, true
}
