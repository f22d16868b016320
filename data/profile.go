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

package data

import "github.com/cybercryptio/journal-lib/keywrap"

// Profile is the per-user record holding the wrapped data encryption key. The wrap record fields
// are stored inline on the profile document.
type Profile struct {
	UserID         string `json:"userId" bson:"_id"`
	keywrap.Record `bson:",inline"`
}

// HasSetup reports whether encryption has been set up for the user.
func (p *Profile) HasSetup() bool {
	return p.Record.IsSet()
}

// ProfilePatch lists the profile fields to change. A pointer to an empty Record removes the
// wrapped key.
type ProfilePatch struct {
	EncryptionKey *keywrap.Record
}

// Apply writes the patch onto p.
func (pp ProfilePatch) Apply(p *Profile) {
	if pp.EncryptionKey != nil {
		p.Record = *pp.EncryptionKey
	}
}
