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

// Package storage is the document store holding user profiles and journal entries. The crypto code
// treats every encrypted field as an opaque string; nothing in this package decrypts.
package storage

import (
	"context"
	"errors"

	"github.com/cybercryptio/journal-lib/data"
)

// Error returned if a profile or entry does not exist.
var ErrNotFound = errors.New("document not found")

// Error returned if an inserted entry's ID is already taken.
var ErrAlreadyExists = errors.New("document already exists")

// Store is the interface a document store must implement.
type Store interface {
	// GetProfile returns a user's profile, or ErrNotFound if the user has none yet.
	GetProfile(ctx context.Context, uid string) (data.Profile, error)

	// PatchProfile applies the patch to a user's profile, creating the profile if needed.
	PatchProfile(ctx context.Context, uid string, patch data.ProfilePatch) error

	// InsertEntry stores a new entry.
	InsertEntry(ctx context.Context, entry data.Entry) error

	// GetEntry returns the entry with the given ID.
	GetEntry(ctx context.Context, id string) (data.Entry, error)

	// PatchEntry applies the patch to an existing entry.
	PatchEntry(ctx context.Context, id string, patch data.EntryPatch) error

	// DeleteEntry removes an entry. Deleting a missing entry returns ErrNotFound.
	DeleteEntry(ctx context.Context, id string) error

	// EntriesByUser returns all entries of a user, newest first.
	EntriesByUser(ctx context.Context, uid string) ([]data.Entry, error)
}
