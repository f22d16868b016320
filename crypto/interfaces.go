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

// AEADInterface represents an Authenticated Encryption scheme with Associated Data.
type AEADInterface interface {
	// Seal encrypts and authenticates the plaintext and authenticates the associated data under the
	// given key and nonce. The caller is responsible for never reusing a nonce under the same key.
	Seal(plaintext, nonce, data, key []byte) ([]byte, error)

	// Open verifies the authenticity of the ciphertext and associated data and decrypts the
	// ciphertext. An error is returned if the authentication tag does not verify.
	Open(ciphertext, nonce, data, key []byte) ([]byte, error)
}

// RandomInterface provides an API for getting cryptographically secure random bytes.
type RandomInterface interface {
	// GetBytes generates the requested number of random bytes.
	GetBytes(n uint) ([]byte, error)
}

// KeyDeriverInterface provides an API for turning a memorized passphrase into key material.
type KeyDeriverInterface interface {
	// DeriveKey derives a wrapping key from the passphrase, salt and iteration count.
	DeriveKey(passphrase string, salt []byte, iterations int) (*Key, error)
}
