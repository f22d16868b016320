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
	"crypto/sha256"
	"crypto/subtle"
	"io"

	"golang.org/x/crypto/hkdf"
)

// KeyUsage describes the operations a Key may be used for.
type KeyUsage uint8

const (
	// UsageEncrypt keys encrypt and decrypt data.
	UsageEncrypt KeyUsage = 1 << iota

	// UsageWrap keys wrap and unwrap other keys.
	UsageWrap
)

// Key is 256 bits of symmetric key material together with the operations it is allowed for. Data
// keys are extractable so they can be wrapped and cached; keys derived from a passphrase are not.
type Key struct {
	material    []byte
	usage       KeyUsage
	extractable bool
}

func newKey(material []byte, usage KeyUsage, extractable bool) *Key {
	return &Key{material: material, usage: usage, extractable: extractable}
}

// ImportKey creates an extractable data encryption key from raw key bytes, e.g. bytes previously
// obtained with Export. The input is copied.
func ImportKey(raw []byte) (*Key, error) {
	if len(raw) != KeyLength {
		return nil, errInvalidKeyLength
	}
	material := make([]byte, KeyLength)
	copy(material, raw)
	return newKey(material, UsageEncrypt, true), nil
}

// Usage returns the operations the key may be used for.
func (k *Key) Usage() KeyUsage {
	return k.usage
}

// Extractable reports whether Export is allowed.
func (k *Key) Extractable() bool {
	return k.extractable
}

func (k *Key) permits(usage KeyUsage) bool {
	return k != nil && k.usage&usage == usage
}

// Export returns a copy of the raw key material.
func (k *Key) Export() ([]byte, error) {
	if k == nil || !k.extractable {
		return nil, ErrNotExtractable
	}
	raw := make([]byte, len(k.material))
	copy(raw, k.material)
	return raw, nil
}

// Equal reports whether both keys hold the same material, in constant time.
func (k *Key) Equal(other *Key) bool {
	if k == nil || other == nil {
		return k == other
	}
	return subtle.ConstantTimeCompare(k.material, other.material) == 1
}

// DeriveSubkey derives an independent, non-extractable encryption key bound to the label. Keys
// derived with different labels never share a keystream, even under the same nonce.
func (k *Key) DeriveSubkey(label string) (*Key, error) {
	if !k.permits(UsageEncrypt) {
		return nil, ErrKeyUsage
	}
	material := make([]byte, KeyLength)
	if _, err := io.ReadFull(hkdf.New(sha256.New, k.material, nil, []byte(label)), material); err != nil {
		return nil, err
	}
	return newKey(material, UsageEncrypt, false), nil
}

// Destroy overwrites the key material. The key is unusable afterwards.
func (k *Key) Destroy() {
	if k == nil {
		return
	}
	Zero(k.material)
	k.material = nil
}

// Zero overwrites a byte slice with zeros.
func Zero(b []byte) {
	for i := range b {
		b[i] = 0
	}
}
