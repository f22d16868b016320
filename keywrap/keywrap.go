// Copyright (C) 2022 CYBERCRYPT
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published
// by the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU Affero General Public License for more details.
//
// You should have received a copy of the GNU Affero General Public License
// along with this program.  If not, see <https://www.gnu.org/licenses/>.

// Package keywrap implements the passphrase based wrapping of a user's data encryption key (DEK).
// The DEK is encrypted under a key encryption key (KEK) derived from the passphrase and the
// resulting Record is stored on the user's profile. The KEK is never stored.
package keywrap

import (
	"errors"

	"github.com/cybercryptio/journal-lib/crypto"
)

// Error returned by Setup if the passphrase is empty.
var ErrEmptyPassphrase = errors.New("passphrase must not be empty")

// Error returned if a Record is used before any key has been wrapped into it.
var ErrNoRecord = errors.New("no wrapped key record")

type malformedError struct{}

func (malformedError) Error() string { return crypto.ErrUnwrap.Error() }
func (malformedError) Unwrap() error { return crypto.ErrUnwrap }

// Error returned if a stored Record is structurally invalid. It reads and matches as
// crypto.ErrUnwrap so that it cannot be told apart from a wrong passphrase by the user.
var ErrMalformedRecord error = malformedError{}

// Record is the persisted form of a wrapped DEK. All fields are set together or not at all.
type Record struct {
	EncryptedKey string `json:"encryptedKey,omitempty" bson:"encryptedKey,omitempty"`
	Salt         string `json:"salt,omitempty" bson:"salt,omitempty"`
	IV           string `json:"iv,omitempty" bson:"iv,omitempty"`
	Iterations   int    `json:"iterations,omitempty" bson:"iterations,omitempty"`
}

// IsSet reports whether the record holds a wrapped key.
func (r Record) IsSet() bool {
	return r.EncryptedKey != ""
}

// Validate checks that all fields are present and well formed.
func (r Record) Validate() error {
	if !r.IsSet() {
		return ErrNoRecord
	}
	if r.Salt == "" || r.IV == "" || r.Iterations < crypto.MinIterations {
		return ErrMalformedRecord
	}
	salt, err := crypto.Decode(r.Salt)
	if err != nil || len(salt) != crypto.SaltLength {
		return ErrMalformedRecord
	}
	iv, err := crypto.Decode(r.IV)
	if err != nil || len(iv) != crypto.NonceLength {
		return ErrMalformedRecord
	}
	if _, err := crypto.Decode(r.EncryptedKey); err != nil {
		return ErrMalformedRecord
	}
	return nil
}

// SetupState is the position of a user in the setup state machine.
type SetupState int

const (
	NoKeySetup SetupState = iota
	KeySetupInProgress
	KeyWrappedAndStored
)

func (s SetupState) String() string {
	switch s {
	case KeySetupInProgress:
		return "KeySetupInProgress"
	case KeyWrappedAndStored:
		return "KeyWrappedAndStored"
	default:
		return "NoKeySetup"
	}
}

// StateOf returns the setup state implied by a stored record.
func StateOf(r Record) SetupState {
	if r.IsSet() {
		return KeyWrappedAndStored
	}
	return NoKeySetup
}

// Options tune Setup and Unlock. The zero value uses crypto.DefaultIterations and the default
// cryptor.
type Options struct {
	// Iterations is the PBKDF2 cost used by Setup. Unlock always uses the stored count.
	Iterations int

	// Cryptor overrides the source of randomness and primitives. Mostly useful in tests.
	Cryptor *crypto.Cryptor
}

func (o Options) iterations() int {
	if o.Iterations == 0 {
		return crypto.DefaultIterations
	}
	return o.Iterations
}

func (o Options) cryptor() *crypto.Cryptor {
	if o.Cryptor != nil {
		return o.Cryptor
	}
	c := crypto.NewAESCryptor()
	return &c
}

// Setup generates a new DEK and wraps it under a KEK derived from passphrase. It returns the
// record to persist and the unwrapped DEK, so the caller can start using it right away.
func Setup(passphrase string, opts Options) (Record, *crypto.Key, error) {
	if passphrase == "" {
		return Record{}, nil, ErrEmptyPassphrase
	}
	c := opts.cryptor()

	dek, err := c.GenerateEncryptionKey()
	if err != nil {
		return Record{}, nil, err
	}
	record, err := wrap(c, dek, passphrase, opts.iterations())
	if err != nil {
		dek.Destroy()
		return Record{}, nil, err
	}
	return record, dek, nil
}

// wrap wraps dek under a KEK derived from passphrase and a fresh salt.
func wrap(c *crypto.Cryptor, dek *crypto.Key, passphrase string, iterations int) (Record, error) {
	salt, err := c.GenerateSalt()
	if err != nil {
		return Record{}, err
	}
	kek, err := c.DeriveKeyFromPassphrase(passphrase, salt, iterations)
	if err != nil {
		return Record{}, err
	}
	defer kek.Destroy()

	wrapped, err := c.WrapKey(dek, kek)
	if err != nil {
		return Record{}, err
	}

	return Record{
		EncryptedKey: wrapped.Ciphertext,
		Salt:         crypto.Encode(salt),
		IV:           wrapped.IV,
		Iterations:   iterations,
	}, nil
}

// Unlock re-derives the KEK from passphrase and the record's salt and iteration count, and unwraps
// the DEK. A wrong passphrase and a corrupted record both yield an error matching
// crypto.ErrUnwrap.
func Unlock(r Record, passphrase string, opts Options) (*crypto.Key, error) {
	if err := r.Validate(); err != nil {
		return nil, err
	}
	c := opts.cryptor()

	salt, _ := crypto.Decode(r.Salt)
	kek, err := c.DeriveKeyFromPassphrase(passphrase, salt, r.Iterations)
	if err != nil {
		return nil, err
	}
	defer kek.Destroy()

	return c.UnwrapKey(r.EncryptedKey, r.IV, kek)
}
