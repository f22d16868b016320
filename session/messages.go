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

package session

import (
	"errors"

	"github.com/cybercryptio/journal-lib/crypto"
	"github.com/cybercryptio/journal-lib/id"
	"github.com/cybercryptio/journal-lib/keywrap"
)

var userMessages = []struct {
	err     error
	message string
}{
	{crypto.ErrUnwrap, "Incorrect passphrase or corrupted data."},
	{crypto.ErrKeyDerivation, "Cannot initialize encryption on this device."},
	{crypto.ErrDecrypt, "Unable to decrypt data."},
	{keywrap.ErrEmptyPassphrase, "Please enter a passphrase."},
	{ErrLocked, "Your journal is locked. Enter your passphrase to unlock it."},
	{ErrNotSetup, "Encryption has not been set up yet."},
	{ErrAlreadySetup, "Encryption is already set up."},
	{ErrSetupInProgress, "Encryption setup is already in progress."},
	{id.ErrNotAuthenticated, "You have been signed out. Please sign in again."},
}

// UserMessage translates err into a message that is safe to show to the user. Cryptographic
// failure details are never included.
func UserMessage(err error) string {
	if err == nil {
		return ""
	}
	for _, m := range userMessages {
		if errors.Is(err, m.err) {
			return m.message
		}
	}
	return "Something went wrong. Please try again."
}
