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

package crypto

import (
	"errors"
	"testing"
)

// It is verified that the same passphrase and salt derive the same key.
func TestPBKDF2Deterministic(t *testing.T) {
	salt := make([]byte, SaltLength)
	kdf := &PBKDF2{}

	k1, err := kdf.DeriveKey("passphrase", salt, MinIterations)
	if err != nil {
		t.Fatal(err)
	}
	k2, err := kdf.DeriveKey("passphrase", salt, MinIterations)
	if err != nil {
		t.Fatal(err)
	}
	if !k1.Equal(k2) {
		t.Fatal("expected equal keys")
	}
	if k1.Usage() != UsageWrap || k1.Extractable() {
		t.Fatal("derived keys must be wrap-only and non-extractable")
	}
}

// It is verified that changing the passphrase, salt or iteration count changes the key.
func TestPBKDF2Inputs(t *testing.T) {
	salt := make([]byte, SaltLength)
	otherSalt := make([]byte, SaltLength)
	otherSalt[0] = 1
	kdf := &PBKDF2{}

	base, _ := kdf.DeriveKey("passphrase", salt, MinIterations)
	variants := []*Key{}
	for _, in := range []struct {
		passphrase string
		salt       []byte
		iterations int
	}{
		{"Passphrase", salt, MinIterations},
		{"passphrase", otherSalt, MinIterations},
		{"passphrase", salt, MinIterations + 1},
	} {
		k, err := kdf.DeriveKey(in.passphrase, in.salt, in.iterations)
		if err != nil {
			t.Fatal(err)
		}
		variants = append(variants, k)
	}
	for i, k := range variants {
		if base.Equal(k) {
			t.Fatalf("variant %d derived the same key", i)
		}
	}
}

// Test that weak parameters are rejected.
func TestPBKDF2Parameters(t *testing.T) {
	kdf := &PBKDF2{}
	if _, err := kdf.DeriveKey("p", make([]byte, SaltLength), MinIterations-1); !errors.Is(err, ErrKeyDerivation) {
		t.Fatalf("expected ErrKeyDerivation, got %v", err)
	}
	if _, err := kdf.DeriveKey("p", make([]byte, 8), MinIterations); !errors.Is(err, ErrKeyDerivation) {
		t.Fatalf("expected ErrKeyDerivation, got %v", err)
	}
}
