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

// Package data contains the records exchanged with the document store. Encrypted fields hold base64
// text produced by the envelope package; the store never sees their plaintext.
package data

import (
	"errors"
	"time"

	"github.com/gofrs/uuid"
)

// Error returned if an entry's mood is not one of the known moods.
var ErrInvalidMood = errors.New("invalid mood")

// Error returned if an entry's intensity is outside [MinIntensity, MaxIntensity].
var ErrInvalidIntensity = errors.New("invalid intensity")

const (
	MinIntensity = 1
	MaxIntensity = 10
)

// Mood is the classification chosen at check-in.
type Mood string

const (
	MoodGreat   Mood = "great"
	MoodGood    Mood = "good"
	MoodOkay    Mood = "okay"
	MoodLow     Mood = "low"
	MoodAnxious Mood = "anxious"
	MoodAngry   Mood = "angry"
)

// Valid reports whether m is a known mood.
func (m Mood) Valid() bool {
	switch m {
	case MoodGreat, MoodGood, MoodOkay, MoodLow, MoodAnxious, MoodAngry:
		return true
	}
	return false
}

// Entry is a journal entry as stored. Notes and tags share IV. Location and image carry their own.
// Notes, Tags and Location are legacy plaintext fields from before encryption was enabled.
type Entry struct {
	ID        string    `json:"id" bson:"_id"`
	UserID    string    `json:"userId" bson:"userId"`
	Timestamp time.Time `json:"timestamp" bson:"timestamp"`
	Mood      Mood      `json:"mood" bson:"mood"`
	Intensity int       `json:"intensity" bson:"intensity"`

	EncryptedNotes string `json:"encryptedNotes,omitempty" bson:"encryptedNotes,omitempty"`
	EncryptedTags  string `json:"encryptedTags,omitempty" bson:"encryptedTags,omitempty"`
	IV             string `json:"iv,omitempty" bson:"iv,omitempty"`

	EncryptedLocation string `json:"encryptedLocation,omitempty" bson:"encryptedLocation,omitempty"`
	LocationIV        string `json:"locationIv,omitempty" bson:"locationIv,omitempty"`

	EncryptedImageStorageID string `json:"encryptedImageStorageId,omitempty" bson:"encryptedImageStorageId,omitempty"`
	EncryptedImageIV        string `json:"encryptedImageIv,omitempty" bson:"encryptedImageIv,omitempty"`

	Notes    string   `json:"notes,omitempty" bson:"notes,omitempty"`
	Tags     []string `json:"tags,omitempty" bson:"tags,omitempty"`
	Location string   `json:"location,omitempty" bson:"location,omitempty"`
}

// NewEntry creates an entry with a fresh ID for the given user.
func NewEntry(uid string, mood Mood, intensity int, timestamp time.Time) (Entry, error) {
	entry := Entry{
		ID:        uuid.Must(uuid.NewV4()).String(),
		UserID:    uid,
		Timestamp: timestamp.UTC(),
		Mood:      mood,
		Intensity: intensity,
	}
	return entry, entry.Validate()
}

// Validate checks the entry's mood and intensity.
func (e Entry) Validate() error {
	if !e.Mood.Valid() {
		return ErrInvalidMood
	}
	if e.Intensity < MinIntensity || e.Intensity > MaxIntensity {
		return ErrInvalidIntensity
	}
	return nil
}

// HasPlaintext reports whether the entry carries legacy plaintext notes or tags.
func (e Entry) HasPlaintext() bool {
	return e.Notes != "" || len(e.Tags) > 0
}

// HasCiphertext reports whether the entry carries encrypted notes or tags. A missing IV does not
// make the ciphertext absent; decrypting it fails instead.
func (e Entry) HasCiphertext() bool {
	return e.EncryptedNotes != "" || e.EncryptedTags != ""
}

// HasImage reports whether an encrypted image is attached.
func (e Entry) HasImage() bool {
	return e.EncryptedImageStorageID != ""
}

// EntryPatch lists the fields to change on an entry. Nil fields are left alone; a pointer to the
// zero value clears the field.
type EntryPatch struct {
	Mood      *Mood `bson:"mood,omitempty"`
	Intensity *int  `bson:"intensity,omitempty"`

	EncryptedNotes *string `bson:"encryptedNotes,omitempty"`
	EncryptedTags  *string `bson:"encryptedTags,omitempty"`
	IV             *string `bson:"iv,omitempty"`

	EncryptedLocation *string `bson:"encryptedLocation,omitempty"`
	LocationIV        *string `bson:"locationIv,omitempty"`

	EncryptedImageStorageID *string `bson:"encryptedImageStorageId,omitempty"`
	EncryptedImageIV        *string `bson:"encryptedImageIv,omitempty"`

	Notes    *string   `bson:"notes,omitempty"`
	Tags     *[]string `bson:"tags,omitempty"`
	Location *string   `bson:"location,omitempty"`
}

func set[T any](dst *T, src *T) {
	if src != nil {
		*dst = *src
	}
}

// Apply writes the patch onto e.
func (p EntryPatch) Apply(e *Entry) {
	set(&e.Mood, p.Mood)
	set(&e.Intensity, p.Intensity)
	set(&e.EncryptedNotes, p.EncryptedNotes)
	set(&e.EncryptedTags, p.EncryptedTags)
	set(&e.IV, p.IV)
	set(&e.EncryptedLocation, p.EncryptedLocation)
	set(&e.LocationIV, p.LocationIV)
	set(&e.EncryptedImageStorageID, p.EncryptedImageStorageID)
	set(&e.EncryptedImageIV, p.EncryptedImageIV)
	set(&e.Notes, p.Notes)
	set(&e.Tags, p.Tags)
	set(&e.Location, p.Location)
}

// Ptr returns a pointer to v. Handy when building patches.
func Ptr[T any](v T) *T {
	return &v
}
