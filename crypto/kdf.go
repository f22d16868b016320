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
	"fmt"

	"golang.org/x/crypto/pbkdf2"
)

// DefaultIterations is the PBKDF2 cost used for new wrap records.
const DefaultIterations = 310000

// MinIterations is the lowest PBKDF2 cost accepted when deriving a key.
const MinIterations = 100000

// PBKDF2 implements KeyDeriverInterface using PBKDF2 with SHA-256.
type PBKDF2 struct{}

// DeriveKey derives a 256-bit key that can only be used to wrap and unwrap other keys.
func (p *PBKDF2) DeriveKey(passphrase string, salt []byte, iterations int) (*Key, error) {
	if iterations < MinIterations {
		return nil, fmt.Errorf("%w: iteration count %d is below %d", ErrKeyDerivation, iterations, MinIterations)
	}
	if len(salt) != SaltLength {
		return nil, fmt.Errorf("%w: salt must be %d bytes", ErrKeyDerivation, SaltLength)
	}

	material := pbkdf2.Key([]byte(passphrase), salt, iterations, KeyLength, sha256.New)
	return newKey(material, UsageWrap, false), nil
}
