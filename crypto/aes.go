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
	"crypto/aes"
	"crypto/cipher"
	"errors"
)

// AES256GCM implements AEADInterface.
type AES256GCM struct{}

const KeyLength = 32
const NonceLength = 12
const TagLength = 16
const SaltLength = 16

var errInvalidKeyLength = errors.New("invalid key length")
var errInvalidNonceLength = errors.New("invalid nonce length")

func (a *AES256GCM) Seal(plaintext, nonce, aad, key []byte) ([]byte, error) {
	aesgcm, err := newGCM(key, nonce)
	if err != nil {
		return nil, err
	}

	return aesgcm.Seal(nil, nonce, plaintext, aad), nil
}

func (a *AES256GCM) Open(ciphertext, nonce, aad, key []byte) ([]byte, error) {
	if len(ciphertext) < TagLength {
		return nil, errors.New("invalid ciphertext length")
	}

	aesgcm, err := newGCM(key, nonce)
	if err != nil {
		return nil, err
	}

	return aesgcm.Open(nil, nonce, ciphertext, aad)
}

func newGCM(key, nonce []byte) (cipher.AEAD, error) {
	if len(key) != KeyLength {
		return nil, errInvalidKeyLength
	}
	if len(nonce) != NonceLength {
		return nil, errInvalidNonceLength
	}

	aesblock, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}

	return cipher.NewGCM(aesblock)
}
