// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package signer

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"

	"filippo.io/age"
	"filippo.io/age/armor"

	"github.com/bureau-foundation/wasteland/lib/secret"
)

// ErrIdentityRequired is returned by [LoadKeyFile] for an encrypted
// key file when no age identity file was given.
var ErrIdentityRequired = errors.New("signer: key file is age-encrypted and no identity file was given")

var (
	armorHeader  = []byte(armor.Header)
	binaryHeader = []byte("age-encryption.org/")
)

// LoadKeyFile reads a secret key from path ("-" for stdin). The file
// holds the hex secret key, or that text age-encrypted (armored or
// binary) to a recipient whose identity is in identityPath.
func LoadKeyFile(path, identityPath string) (*KeySigner, error) {
	buffer, err := secret.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("signer: reading key file: %w", err)
	}
	defer buffer.Close()

	data := buffer.Bytes()
	if !bytes.HasPrefix(data, armorHeader) && !bytes.HasPrefix(data, binaryHeader) {
		return FromHex(string(data))
	}

	if identityPath == "" {
		return nil, ErrIdentityRequired
	}
	identities, err := loadIdentities(identityPath)
	if err != nil {
		return nil, err
	}
	plaintext, err := decryptKey(data, identities)
	if err != nil {
		return nil, err
	}
	defer plaintext.Close()
	return FromHex(string(bytes.TrimSpace(plaintext.Bytes())))
}

func loadIdentities(path string) ([]age.Identity, error) {
	buffer, err := secret.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("signer: reading identity file: %w", err)
	}
	defer buffer.Close()

	identities, err := age.ParseIdentities(bytes.NewReader(buffer.Bytes()))
	if err != nil {
		return nil, fmt.Errorf("signer: parsing identity file: %w", err)
	}
	return identities, nil
}

func decryptKey(ciphertext []byte, identities []age.Identity) (*secret.Buffer, error) {
	var source io.Reader = bytes.NewReader(ciphertext)
	if bytes.HasPrefix(ciphertext, armorHeader) {
		source = armor.NewReader(source)
	}
	reader, err := age.Decrypt(source, identities...)
	if err != nil {
		return nil, fmt.Errorf("signer: decrypting key file: %w", err)
	}
	plaintext, err := secret.Read(reader)
	if err != nil {
		return nil, fmt.Errorf("signer: reading decrypted key: %w", err)
	}
	return plaintext, nil
}

// EncodeKeyFile returns key file contents for s: the hex secret key,
// or with recipients (age1... public keys) an armored age file
// encrypted to all of them.
func EncodeKeyFile(s *KeySigner, recipients []string) ([]byte, error) {
	plaintext := []byte(s.SecretHex() + "\n")
	if len(recipients) == 0 {
		return plaintext, nil
	}
	defer secret.Zero(plaintext)

	parsed := make([]age.Recipient, 0, len(recipients))
	for _, key := range recipients {
		recipient, err := age.ParseX25519Recipient(key)
		if err != nil {
			return nil, fmt.Errorf("signer: parsing recipient %q: %w", key, err)
		}
		parsed = append(parsed, recipient)
	}

	var output bytes.Buffer
	armored := armor.NewWriter(&output)
	writer, err := age.Encrypt(armored, parsed...)
	if err != nil {
		return nil, fmt.Errorf("signer: creating age encryptor: %w", err)
	}
	if _, err := writer.Write(plaintext); err != nil {
		return nil, fmt.Errorf("signer: encrypting key: %w", err)
	}
	if err := writer.Close(); err != nil {
		return nil, fmt.Errorf("signer: finalizing age encryption: %w", err)
	}
	if err := armored.Close(); err != nil {
		return nil, fmt.Errorf("signer: finalizing armor: %w", err)
	}
	return output.Bytes(), nil
}

// WriteKeyFile writes [EncodeKeyFile] output to path with mode 0600.
// An existing file is never overwritten.
func WriteKeyFile(path string, s *KeySigner, recipients []string) error {
	contents, err := EncodeKeyFile(s, recipients)
	if err != nil {
		return err
	}
	file, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o600)
	if err != nil {
		return fmt.Errorf("signer: creating key file: %w", err)
	}
	if _, err := file.Write(contents); err != nil {
		file.Close()
		return fmt.Errorf("signer: writing key file: %w", err)
	}
	return file.Close()
}
