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

package journal

import (
	"context"
	"time"

	"github.com/cybercryptio/journal-lib/crypto"
	"github.com/cybercryptio/journal-lib/data"
	"github.com/cybercryptio/journal-lib/envelope"
	"github.com/cybercryptio/journal-lib/keywrap"
	"github.com/cybercryptio/journal-lib/log"
	"github.com/cybercryptio/journal-lib/session"
)

// Draft is a new check-in.
type Draft struct {
	Mood      data.Mood
	Intensity int
	Notes     string
	Tags      []string
	Location  string

	// Timestamp defaults to the current time.
	Timestamp time.Time
}

// Changes lists the fields to change on an entry. Nil fields are left alone.
type Changes struct {
	Mood      *data.Mood
	Intensity *int
	Notes     *string
	Tags      *[]string
	Location  *string
}

// View is an entry as shown to its owner.
type View struct {
	ID        string
	Timestamp time.Time
	Mood      data.Mood
	Intensity int
	Notes     string
	Tags      []string
	Location  string
	HasImage  bool

	// Encrypted is true if any field is stored encrypted.
	Encrypted bool

	// Failed names the fields that could not be decrypted and show envelope.Placeholder.
	Failed []string
}

// encryptionKey returns the key to write entries with, or nil if the user has not set up
// encryption yet.
func (j *Journal) encryptionKey() (*crypto.Key, error) {
	state := j.session.State()
	switch {
	case state.Loading:
		return nil, ErrLoading
	case state.Setup == keywrap.KeySetupInProgress:
		return nil, session.ErrSetupInProgress
	case state.Setup == keywrap.NoKeySetup:
		return nil, nil
	}
	return j.session.RequireKey()
}

// owned fetches an entry and checks that it belongs to the journal's user.
func (j *Journal) owned(ctx context.Context, entryID string) (data.Entry, error) {
	entry, err := j.store.GetEntry(ctx, entryID)
	if err != nil {
		return data.Entry{}, err
	}
	if entry.UserID != j.uid {
		return data.Entry{}, ErrNotOwner
	}
	return entry, nil
}

// CheckIn stores a new entry. Once encryption is set up, notes, tags and location are only stored
// encrypted and the journal must be unlocked. Before that they are stored in plaintext, to be
// encrypted by the migration following SetupEncryption.
func (j *Journal) CheckIn(ctx context.Context, draft Draft) (data.Entry, error) {
	ctx = log.CopyCtxLogger(j.context(ctx))
	log.WithMethod(ctx, "check in")
	log.WithUID(ctx, j.uid)

	if draft.Timestamp.IsZero() {
		draft.Timestamp = time.Now()
	}
	entry, err := data.NewEntry(j.uid, draft.Mood, draft.Intensity, draft.Timestamp)
	if err != nil {
		return data.Entry{}, err
	}
	log.WithEID(ctx, entry.ID)

	dek, err := j.encryptionKey()
	if err != nil {
		return data.Entry{}, err
	}

	if dek == nil {
		entry.Notes = draft.Notes
		entry.Tags = draft.Tags
		entry.Location = draft.Location
	} else {
		encrypted, err := envelope.EncryptEntry(draft.Notes, draft.Tags, dek)
		if err != nil {
			return data.Entry{}, err
		}
		entry.EncryptedNotes = encrypted.EncryptedNotes
		entry.EncryptedTags = encrypted.EncryptedTags
		entry.IV = encrypted.IV

		if draft.Location != "" {
			location, err := envelope.EncryptLocation(draft.Location, dek)
			if err != nil {
				return data.Entry{}, err
			}
			entry.EncryptedLocation = location.Ciphertext
			entry.LocationIV = location.IV
		}
	}

	if err := j.store.InsertEntry(ctx, entry); err != nil {
		return data.Entry{}, err
	}
	log.Ctx(ctx).Debug().Bool("encrypted", dek != nil).Msg("entry stored")
	return entry, nil
}

// Edit changes an entry. Encrypted fields are re-encrypted under fresh IVs, and the legacy
// plaintext of an edited field is removed.
func (j *Journal) Edit(ctx context.Context, entryID string, changes Changes) error {
	ctx = log.CopyCtxLogger(j.context(ctx))
	log.WithMethod(ctx, "edit")
	log.WithUID(ctx, j.uid)
	log.WithEID(ctx, entryID)

	entry, err := j.owned(ctx, entryID)
	if err != nil {
		return err
	}

	patch := data.EntryPatch{Mood: changes.Mood, Intensity: changes.Intensity}
	edited := entry
	patch.Apply(&edited)
	if err := edited.Validate(); err != nil {
		return err
	}

	textChanged := changes.Notes != nil || changes.Tags != nil
	var dek *crypto.Key
	if textChanged || changes.Location != nil {
		if dek, err = j.encryptionKey(); err != nil {
			return err
		}
	}

	switch {
	case dek == nil:
		patch.Notes = changes.Notes
		patch.Tags = changes.Tags
		patch.Location = changes.Location

	default:
		if textChanged {
			if err := j.reencryptText(entry, changes, dek, &patch); err != nil {
				return err
			}
		}
		if changes.Location != nil {
			if err := reencryptLocation(*changes.Location, dek, &patch); err != nil {
				return err
			}
		}
	}

	if err := j.store.PatchEntry(ctx, entryID, patch); err != nil {
		return err
	}
	log.Ctx(ctx).Debug().Msg("entry updated")
	return nil
}

// reencryptText encrypts the new notes and tags under a fresh IV. Notes and tags share an IV, so a
// field that is not being changed is decrypted and encrypted again along with the changed one.
func (j *Journal) reencryptText(entry data.Entry, changes Changes, dek *crypto.Key, patch *data.EntryPatch) error {
	notes, tags := entry.Notes, entry.Tags
	if entry.HasCiphertext() && (changes.Notes == nil || changes.Tags == nil) {
		contents, err := envelope.DecryptEntry(entry.EncryptedNotes, entry.EncryptedTags, entry.IV, dek)
		if changes.Notes == nil && envelope.FieldFailed(err, envelope.FieldNotes) {
			return err
		}
		if changes.Tags == nil && envelope.FieldFailed(err, envelope.FieldTags) {
			return err
		}
		if entry.EncryptedNotes != "" {
			notes = contents.Notes
		}
		if entry.EncryptedTags != "" {
			tags = contents.Tags
		}
	}
	if changes.Notes != nil {
		notes = *changes.Notes
	}
	if changes.Tags != nil {
		tags = *changes.Tags
	}

	encrypted, err := envelope.EncryptEntry(notes, tags, dek)
	if err != nil {
		return err
	}
	patch.EncryptedNotes = &encrypted.EncryptedNotes
	patch.EncryptedTags = &encrypted.EncryptedTags
	patch.IV = &encrypted.IV
	patch.Notes = data.Ptr("")
	patch.Tags = data.Ptr([]string(nil))
	return nil
}

func reencryptLocation(location string, dek *crypto.Key, patch *data.EntryPatch) error {
	patch.Location = data.Ptr("")
	if location == "" {
		patch.EncryptedLocation = data.Ptr("")
		patch.LocationIV = data.Ptr("")
		return nil
	}
	encrypted, err := envelope.EncryptLocation(location, dek)
	if err != nil {
		return err
	}
	patch.EncryptedLocation = &encrypted.Ciphertext
	patch.LocationIV = &encrypted.IV
	return nil
}

// Entry returns a single entry of the journal's user.
func (j *Journal) Entry(ctx context.Context, entryID string) (View, error) {
	ctx = log.CopyCtxLogger(j.context(ctx))
	log.WithMethod(ctx, "entry")
	log.WithUID(ctx, j.uid)
	log.WithEID(ctx, entryID)

	entry, err := j.owned(ctx, entryID)
	if err != nil {
		return View{}, err
	}
	return j.view(ctx, entry, j.session.DecryptionKey()), nil
}

// Entries returns the user's entries, newest first. A field that cannot be decrypted, including
// every encrypted field while the journal is locked, falls back to its legacy plaintext if there is
// any and to envelope.Placeholder otherwise. It never fails because of decryption.
func (j *Journal) Entries(ctx context.Context) ([]View, error) {
	ctx = log.CopyCtxLogger(j.context(ctx))
	log.WithMethod(ctx, "entries")
	log.WithUID(ctx, j.uid)

	entries, err := j.store.EntriesByUser(ctx, j.uid)
	if err != nil {
		return nil, err
	}

	// Capture the key once so a concurrent Lock does not change it halfway through.
	dek := j.session.DecryptionKey()
	views := make([]View, 0, len(entries))
	for _, entry := range entries {
		views = append(views, j.view(ctx, entry, dek))
	}
	return views, nil
}

func (j *Journal) view(ctx context.Context, entry data.Entry, dek *crypto.Key) View {
	v := View{
		ID:        entry.ID,
		Timestamp: entry.Timestamp,
		Mood:      entry.Mood,
		Intensity: entry.Intensity,
		Notes:     entry.Notes,
		Tags:      entry.Tags,
		Location:  entry.Location,
		HasImage:  entry.HasImage(),
		Encrypted: entry.HasCiphertext() || entry.EncryptedLocation != "" || entry.HasImage(),
	}

	if entry.HasCiphertext() {
		var err error
		contents := envelope.Contents{}
		if dek != nil {
			contents, err = envelope.DecryptEntry(entry.EncryptedNotes, entry.EncryptedTags, entry.IV, dek)
		}
		if entry.EncryptedNotes != "" {
			if dek == nil || envelope.FieldFailed(err, envelope.FieldNotes) {
				v.fail(envelope.FieldNotes)
			} else {
				v.Notes = contents.Notes
			}
		}
		if entry.EncryptedTags != "" {
			if dek == nil || envelope.FieldFailed(err, envelope.FieldTags) {
				v.fail(envelope.FieldTags)
			} else {
				v.Tags = contents.Tags
			}
		}
	}

	if entry.EncryptedLocation != "" {
		var location string
		var err error = session.ErrLocked
		if dek != nil {
			location, err = envelope.DecryptLocation(entry.EncryptedLocation, entry.LocationIV, dek)
		}
		if err != nil {
			v.fail(envelope.FieldLocation)
		} else {
			v.Location = location
		}
	}

	if len(v.Failed) > 0 && dek != nil {
		log.Ctx(ctx).Warn().Str("eid", entry.ID).Strs("fields", v.Failed).Msg("failed to decrypt entry fields")
	}
	return v
}

// fail falls back to the legacy plaintext of field, or the placeholder if there is none.
func (v *View) fail(field string) {
	v.Failed = append(v.Failed, field)
	switch field {
	case envelope.FieldNotes:
		if v.Notes == "" {
			v.Notes = envelope.Placeholder
		}
	case envelope.FieldTags:
		if len(v.Tags) == 0 {
			v.Tags = []string{envelope.Placeholder}
		}
	case envelope.FieldLocation:
		if v.Location == "" {
			v.Location = envelope.Placeholder
		}
	}
}

// Delete removes an entry and its image.
func (j *Journal) Delete(ctx context.Context, entryID string) error {
	ctx = log.CopyCtxLogger(j.context(ctx))
	log.WithMethod(ctx, "delete")
	log.WithUID(ctx, j.uid)
	log.WithEID(ctx, entryID)

	entry, err := j.owned(ctx, entryID)
	if err != nil {
		return err
	}
	if entry.HasImage() && j.objects != nil {
		if err := j.deleteObject(ctx, entry.EncryptedImageStorageID); err != nil {
			return err
		}
	}
	return j.store.DeleteEntry(ctx, entryID)
}
