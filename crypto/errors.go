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

import "errors"

// Error returned if key material cannot be generated or derived, e.g. because the environment has
// no usable entropy source.
var ErrKeyDerivation = errors.New("cannot initialize encryption on this device")

// Error returned if a wrapped key cannot be unwrapped. The passphrase being wrong and the wrapped
// material being corrupted are deliberately reported the same way.
var ErrUnwrap = errors.New("incorrect passphrase or corrupted data")

// Error returned if a ciphertext cannot be decrypted, i.e. the key is wrong or the data has been
// modified.
var ErrDecrypt = errors.New("unable to decrypt data")

// Error returned if a key is used for an operation it was not created for.
var ErrKeyUsage = errors.New("key not permitted for this operation")

// Error returned if the raw bytes of a non-extractable key are requested.
var ErrNotExtractable = errors.New("key is not extractable")
