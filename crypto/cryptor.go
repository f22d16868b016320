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
	"fmt"
)

// Ciphertext is the text-safe form of an encryption result: the ciphertext and the nonce used to
// produce it, both base64 encoded.
type Ciphertext struct {
	Ciphertext string
	IV         string
}

// Cryptor implements the primitive operations of the library. It holds no key material; every
// operation receives its keys explicitly.
type Cryptor struct {
	random RandomInterface
	aead   AEADInterface
	kdf    KeyDeriverInterface
}

// NewAESCryptor creates a Cryptor which uses AES-256 in GCM mode and PBKDF2-SHA256.
func NewAESCryptor() Cryptor {
	return NewCryptor(&NativeRandom{})
}

// NewCryptor creates an AES-256-GCM Cryptor drawing keys, salts and nonces from the given source.
func NewCryptor(random RandomInterface) Cryptor {
	return Cryptor{
		random: random,
		aead:   &AES256GCM{},
		kdf:    &PBKDF2{},
	}
}

var defaultCryptor = NewAESCryptor()

// GenerateEncryptionKey creates a random 256-bit key which can encrypt data and be wrapped.
func (c *Cryptor) GenerateEncryptionKey() (*Key, error) {
	material, err := c.random.GetBytes(KeyLength)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrKeyDerivation, err)
	}
	return newKey(material, UsageEncrypt, true), nil
}

// GenerateSalt creates a random salt for passphrase based key derivation.
func (c *Cryptor) GenerateSalt() ([]byte, error) {
	salt, err := c.random.GetBytes(SaltLength)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrKeyDerivation, err)
	}
	return salt, nil
}

// GenerateIV creates a fresh random 96-bit nonce.
func (c *Cryptor) GenerateIV() ([]byte, error) {
	return c.random.GetBytes(NonceLength)
}

// DeriveKeyFromPassphrase derives a wrap-only key from the passphrase.
func (c *Cryptor) DeriveKeyFromPassphrase(passphrase string, salt []byte, iterations int) (*Key, error) {
	return c.kdf.DeriveKey(passphrase, salt, iterations)
}

// EncryptData encrypts a UTF-8 string under a fresh nonce.
func (c *Cryptor) EncryptData(plaintext string, key *Key) (Ciphertext, error) {
	ciphertext, iv, err := c.EncryptBlob([]byte(plaintext), key)
	if err != nil {
		return Ciphertext{}, err
	}
	return Ciphertext{Ciphertext: Encode(ciphertext), IV: Encode(iv)}, nil
}

// DecryptData decrypts a ciphertext produced by EncryptData. Any failure, including malformed
// encodings, is reported as ErrDecrypt.
func (c *Cryptor) DecryptData(ciphertext, iv string, key *Key) (string, error) {
	ciphertextBytes, err := Decode(ciphertext)
	if err != nil {
		return "", ErrDecrypt
	}
	ivBytes, err := Decode(iv)
	if err != nil {
		return "", ErrDecrypt
	}

	plaintext, err := c.DecryptBlob(ciphertextBytes, ivBytes, key)
	if err != nil {
		return "", err
	}
	return string(plaintext), nil
}

// EncryptBlob encrypts binary data under a fresh nonce and returns the raw ciphertext and nonce.
func (c *Cryptor) EncryptBlob(plaintext []byte, key *Key) ([]byte, []byte, error) {
	iv, err := c.GenerateIV()
	if err != nil {
		return nil, nil, err
	}

	ciphertext, err := c.SealWithIV(plaintext, iv, key)
	if err != nil {
		return nil, nil, err
	}
	return ciphertext, iv, nil
}

// DecryptBlob decrypts binary data produced by EncryptBlob.
func (c *Cryptor) DecryptBlob(ciphertext, iv []byte, key *Key) ([]byte, error) {
	return c.OpenWithIV(ciphertext, iv, key)
}

// SealWithIV encrypts with a caller supplied nonce. The caller must guarantee the (key, nonce) pair
// is never used for another plaintext.
func (c *Cryptor) SealWithIV(plaintext, iv []byte, key *Key) ([]byte, error) {
	if !key.permits(UsageEncrypt) {
		return nil, ErrKeyUsage
	}
	return c.aead.Seal(plaintext, iv, nil, key.material)
}

// OpenWithIV decrypts a ciphertext produced by SealWithIV.
func (c *Cryptor) OpenWithIV(ciphertext, iv []byte, key *Key) ([]byte, error) {
	if !key.permits(UsageEncrypt) {
		return nil, ErrKeyUsage
	}
	plaintext, err := c.aead.Open(ciphertext, iv, nil, key.material)
	if err != nil {
		return nil, ErrDecrypt
	}
	return plaintext, nil
}

// WrapKey encrypts the raw bytes of keyToWrap under wrappingKey.
func (c *Cryptor) WrapKey(keyToWrap, wrappingKey *Key) (Ciphertext, error) {
	if !wrappingKey.permits(UsageWrap) {
		return Ciphertext{}, ErrKeyUsage
	}
	raw, err := keyToWrap.Export()
	if err != nil {
		return Ciphertext{}, err
	}
	defer Zero(raw)

	iv, err := c.GenerateIV()
	if err != nil {
		return Ciphertext{}, err
	}

	wrapped, err := c.aead.Seal(raw, iv, nil, wrappingKey.material)
	if err != nil {
		return Ciphertext{}, err
	}
	return Ciphertext{Ciphertext: Encode(wrapped), IV: Encode(iv)}, nil
}

// UnwrapKey recovers a key wrapped with WrapKey. Every failure is reported as ErrUnwrap so callers
// learn nothing about why unwrapping failed.
func (c *Cryptor) UnwrapKey(wrappedKey, iv string, unwrappingKey *Key) (*Key, error) {
	if !unwrappingKey.permits(UsageWrap) {
		return nil, ErrKeyUsage
	}
	wrappedBytes, err := Decode(wrappedKey)
	if err != nil {
		return nil, ErrUnwrap
	}
	ivBytes, err := Decode(iv)
	if err != nil {
		return nil, ErrUnwrap
	}

	raw, err := c.aead.Open(wrappedBytes, ivBytes, nil, unwrappingKey.material)
	if err != nil || len(raw) != KeyLength {
		return nil, ErrUnwrap
	}
	return newKey(raw, UsageEncrypt, true), nil
}

////////////////////////////////////////////////////////
//              Package level primitives              //
////////////////////////////////////////////////////////

// GenerateEncryptionKey creates a random data encryption key.
func GenerateEncryptionKey() (*Key, error) {
	return defaultCryptor.GenerateEncryptionKey()
}

// DeriveKeyFromPassphrase derives a wrap-only key encryption key with PBKDF2-SHA256.
func DeriveKeyFromPassphrase(passphrase string, salt []byte, iterations int) (*Key, error) {
	return defaultCryptor.DeriveKeyFromPassphrase(passphrase, salt, iterations)
}

// EncryptData encrypts a string under a fresh nonce.
func EncryptData(plaintext string, key *Key) (Ciphertext, error) {
	return defaultCryptor.EncryptData(plaintext, key)
}

// DecryptData decrypts a string encrypted with EncryptData.
func DecryptData(ciphertext, iv string, key *Key) (string, error) {
	return defaultCryptor.DecryptData(ciphertext, iv, key)
}

// EncryptBlob encrypts binary data under a fresh nonce.
func EncryptBlob(plaintext []byte, key *Key) ([]byte, []byte, error) {
	return defaultCryptor.EncryptBlob(plaintext, key)
}

// DecryptBlob decrypts binary data encrypted with EncryptBlob.
func DecryptBlob(ciphertext, iv []byte, key *Key) ([]byte, error) {
	return defaultCryptor.DecryptBlob(ciphertext, iv, key)
}

// WrapKey wraps a data key with a key encryption key.
func WrapKey(keyToWrap, wrappingKey *Key) (Ciphertext, error) {
	return defaultCryptor.WrapKey(keyToWrap, wrappingKey)
}

// UnwrapKey unwraps a data key with a key encryption key.
func UnwrapKey(wrappedKey, iv string, unwrappingKey *Key) (*Key, error) {
	return defaultCryptor.UnwrapKey(wrappedKey, iv, unwrappingKey)
}
