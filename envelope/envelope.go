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

// Package envelope encrypts the sensitive fields of journal entries and their attachments under a
// user's data encryption key.
//
// Notes and tags of an entry are encrypted together under one IV. Tags are sealed with a subkey
// derived from the data key, so the shared IV never encrypts two plaintexts under the same key.
// Tags sealed directly under the data key are still read. Locations and images each get their own
// IV.
package envelope

import (
	"errors"
	"fmt"

	jsoniter "github.com/json-iterator/go"

	"github.com/cybercryptio/journal-lib/crypto"
)

// Placeholder is shown in place of a field that could not be decrypted.
const Placeholder = "[Unable to decrypt]"

// Names of the fields reported in a FieldError.
const (
	FieldNotes    = "notes"
	FieldTags     = "tags"
	FieldLocation = "location"
	FieldImage    = "image"
)

const tagsSubkeyLabel = "journal tags"

var json = jsoniter.ConfigCompatibleWithStandardLibrary

var cryptor = crypto.NewAESCryptor()

// FieldError reports that a single present field failed to decrypt. Absent fields never produce a
// FieldError.
type FieldError struct {
	Field string
	Err   error
}

func (e *FieldError) Error() string {
	return fmt.Sprintf("%s: %v", e.Field, e.Err)
}

func (e *FieldError) Unwrap() error {
	return e.Err
}

// FieldFailed reports whether err contains a FieldError for field.
func FieldFailed(err error, field string) bool {
	switch e := err.(type) {
	case nil:
		return false
	case *FieldError:
		return e.Field == field
	case interface{ Unwrap() []error }:
		for _, inner := range e.Unwrap() {
			if FieldFailed(inner, field) {
				return true
			}
		}
	}
	return false
}

func fieldError(field string) error {
	return &FieldError{Field: field, Err: crypto.ErrDecrypt}
}

//////////////////////////////////////////////////////
//                      Entry                       //
//////////////////////////////////////////////////////

// Entry is the encrypted form of an entry's notes and tags. Empty strings mean the field is absent.
type Entry struct {
	EncryptedNotes string
	EncryptedTags  string
	IV             string
}

// Contents is the plaintext of an Entry.
type Contents struct {
	Notes string
	Tags  []string
}

// EncryptEntry encrypts notes and tags under one fresh IV. Empty notes and an empty tag list are
// left out; if both are empty the zero Entry is returned.
func EncryptEntry(notes string, tags []string, key *crypto.Key) (Entry, error) {
	if notes == "" && len(tags) == 0 {
		return Entry{}, nil
	}

	iv, err := cryptor.GenerateIV()
	if err != nil {
		return Entry{}, err
	}
	out := Entry{IV: crypto.Encode(iv)}

	if notes != "" {
		ciphertext, err := cryptor.SealWithIV([]byte(notes), iv, key)
		if err != nil {
			return Entry{}, err
		}
		out.EncryptedNotes = crypto.Encode(ciphertext)
	}

	if len(tags) > 0 {
		tagsKey, err := key.DeriveSubkey(tagsSubkeyLabel)
		if err != nil {
			return Entry{}, err
		}
		defer tagsKey.Destroy()

		serialized, err := json.Marshal(tags)
		if err != nil {
			return Entry{}, err
		}
		ciphertext, err := cryptor.SealWithIV(serialized, iv, tagsKey)
		if err != nil {
			return Entry{}, err
		}
		out.EncryptedTags = crypto.Encode(ciphertext)
	}

	return out, nil
}

// DecryptEntry decrypts whichever of encryptedNotes and encryptedTags is present. Each field that
// fails yields a FieldError; the returned Contents still holds every field that succeeded. Tags is
// never nil.
func DecryptEntry(encryptedNotes, encryptedTags, iv string, key *crypto.Key) (Contents, error) {
	contents := Contents{Tags: []string{}}
	if encryptedNotes == "" && encryptedTags == "" {
		return contents, nil
	}

	var errs []error
	ivBytes, ivErr := crypto.Decode(iv)
	if ivErr == nil && len(ivBytes) != crypto.NonceLength {
		ivErr = crypto.ErrDecrypt
	}

	if encryptedNotes != "" {
		notes, err := openField(encryptedNotes, ivBytes, ivErr, key)
		if err != nil {
			errs = append(errs, fieldError(FieldNotes))
		} else {
			contents.Notes = string(notes)
		}
	}

	if encryptedTags != "" {
		if err := decryptTags(encryptedTags, ivBytes, ivErr, key, &contents); err != nil {
			errs = append(errs, fieldError(FieldTags))
		}
	}

	return contents, errors.Join(errs...)
}

func decryptTags(encryptedTags string, iv []byte, ivErr error, key *crypto.Key, contents *Contents) error {
	tagsKey, err := key.DeriveSubkey(tagsSubkeyLabel)
	if err != nil {
		return err
	}
	defer tagsKey.Destroy()

	serialized, err := openField(encryptedTags, iv, ivErr, tagsKey)
	if err != nil {
		// Tags sealed directly under the data key.
		serialized, err = openField(encryptedTags, iv, ivErr, key)
		if err != nil {
			return err
		}
	}
	var tags []string
	if err := json.Unmarshal(serialized, &tags); err != nil {
		return err
	}
	if tags != nil {
		contents.Tags = tags
	}
	return nil
}

func openField(encoded string, iv []byte, ivErr error, key *crypto.Key) ([]byte, error) {
	if ivErr != nil {
		return nil, ivErr
	}
	ciphertext, err := crypto.Decode(encoded)
	if err != nil {
		return nil, err
	}
	return cryptor.OpenWithIV(ciphertext, iv, key)
}

//////////////////////////////////////////////////////
//                     Location                     //
//////////////////////////////////////////////////////

// EncryptLocation encrypts a location under its own fresh IV.
func EncryptLocation(location string, key *crypto.Key) (crypto.Ciphertext, error) {
	return cryptor.EncryptData(location, key)
}

// DecryptLocation decrypts a location. Failures are reported as a FieldError.
func DecryptLocation(encryptedLocation, iv string, key *crypto.Key) (string, error) {
	location, err := cryptor.DecryptData(encryptedLocation, iv, key)
	if err != nil {
		return "", fieldError(FieldLocation)
	}
	return location, nil
}
