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

package migrate

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cybercryptio/journal-lib/crypto"
	"github.com/cybercryptio/journal-lib/data"
	"github.com/cybercryptio/journal-lib/envelope"
	"github.com/cybercryptio/journal-lib/io"
	"github.com/cybercryptio/journal-lib/storage"
)

const uid = "alice"

func seed(t *testing.T, store storage.Store, notes string, tags []string, age time.Duration) data.Entry {
	t.Helper()
	entry, err := data.NewEntry(uid, data.MoodLow, 6, time.Now().Add(-age))
	require.NoError(t, err)
	entry.Notes = notes
	entry.Tags = tags
	require.NoError(t, store.InsertEntry(context.Background(), entry))
	return entry
}

func newKey(t *testing.T) *crypto.Key {
	t.Helper()
	key, err := crypto.GenerateEncryptionKey()
	require.NoError(t, err)
	return key
}

func assertDecrypts(t *testing.T, store storage.Store, id string, key *crypto.Key, notes string, tags []string) {
	t.Helper()
	entry, err := store.GetEntry(context.Background(), id)
	require.NoError(t, err)
	require.True(t, entry.HasCiphertext())
	contents, err := envelope.DecryptEntry(entry.EncryptedNotes, entry.EncryptedTags, entry.IV, key)
	require.NoError(t, err)
	assert.Equal(t, notes, contents.Notes)
	if len(tags) == 0 {
		assert.Empty(t, contents.Tags)
	} else {
		assert.Equal(t, tags, contents.Tags)
	}
}

func TestRun(t *testing.T) {
	ctx := context.Background()
	store := storage.NewProvider(io.NewMem())
	key := newKey(t)

	both := seed(t, store, "long day", []string{"work"}, 3*time.Hour)
	notesOnly := seed(t, store, "quiet evening", nil, 2*time.Hour)
	tagsOnly := seed(t, store, "", []string{"sleep"}, time.Hour)
	empty := seed(t, store, "", nil, 0)

	var progress [][2]int
	report, err := Run(ctx, store, uid, key, Options{
		OnProgress: func(current, total int) { progress = append(progress, [2]int{current, total}) },
	})
	require.NoError(t, err)

	assert.Equal(t, Report{Total: 3, Migrated: 3}, report)
	assert.Equal(t, [][2]int{{1, 3}, {2, 3}, {3, 3}}, progress)

	assertDecrypts(t, store, both.ID, key, "long day", []string{"work"})
	assertDecrypts(t, store, notesOnly.ID, key, "quiet evening", nil)
	assertDecrypts(t, store, tagsOnly.ID, key, "", []string{"sleep"})

	untouched, err := store.GetEntry(ctx, empty.ID)
	require.NoError(t, err)
	assert.False(t, untouched.HasCiphertext())

	// Plaintext is kept.
	kept, err := store.GetEntry(ctx, both.ID)
	require.NoError(t, err)
	assert.Equal(t, "long day", kept.Notes)
	assert.Equal(t, []string{"work"}, kept.Tags)
}

// Running twice re-encrypts with fresh IVs and everything still decrypts.
func TestRunTwice(t *testing.T) {
	ctx := context.Background()
	store := storage.NewProvider(io.NewMem())
	key := newKey(t)
	entry := seed(t, store, "again", []string{"x"}, 0)

	_, err := Run(ctx, store, uid, key, Options{})
	require.NoError(t, err)
	first, err := store.GetEntry(ctx, entry.ID)
	require.NoError(t, err)

	report, err := Run(ctx, store, uid, key, Options{})
	require.NoError(t, err)
	assert.Equal(t, 1, report.Migrated)
	second, err := store.GetEntry(ctx, entry.ID)
	require.NoError(t, err)

	assert.NotEqual(t, first.IV, second.IV)
	assertDecrypts(t, store, entry.ID, key, "again", []string{"x"})
}

type failingStore struct {
	storage.Store
	failID string
}

func (f *failingStore) PatchEntry(ctx context.Context, id string, patch data.EntryPatch) error {
	if id == f.failID {
		return errors.New("write rejected")
	}
	return f.Store.PatchEntry(ctx, id, patch)
}

// A failing entry is reported and does not stop the others.
func TestRunContinuesAfterFailure(t *testing.T) {
	ctx := context.Background()
	store := storage.NewProvider(io.NewMem())
	key := newKey(t)
	first := seed(t, store, "one", nil, 2*time.Hour)
	bad := seed(t, store, "two", nil, time.Hour)
	last := seed(t, store, "three", nil, 0)

	calls := 0
	report, err := Run(ctx, &failingStore{Store: store, failID: bad.ID}, uid, key, Options{
		OnProgress: func(current, total int) { calls++ },
	})
	require.NoError(t, err)

	assert.Equal(t, 3, report.Total)
	assert.Equal(t, 2, report.Migrated)
	require.Len(t, report.Failures, 1)
	assert.Equal(t, bad.ID, report.Failures[0].EntryID)
	assert.EqualError(t, report.Failures[0].Err, "write rejected")
	assert.Equal(t, 3, calls)

	assertDecrypts(t, store, first.ID, key, "one", nil)
	assertDecrypts(t, store, last.ID, key, "three", nil)
}

func TestRunCancelled(t *testing.T) {
	store := storage.NewProvider(io.NewMem())
	seed(t, store, "one", nil, time.Hour)
	seed(t, store, "two", nil, 0)

	ctx, cancel := context.WithCancel(context.Background())
	report, err := Run(ctx, store, uid, newKey(t), Options{
		OnProgress: func(current, total int) { cancel() },
	})
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, report.Migrated)
	assert.Equal(t, 2, report.Total)
}

type listFailure struct {
	storage.Store
}

func (listFailure) EntriesByUser(ctx context.Context, uid string) ([]data.Entry, error) {
	return nil, errors.New("store offline")
}

func TestRunErrors(t *testing.T) {
	ctx := context.Background()
	_, err := Run(ctx, listFailure{}, uid, newKey(t), Options{})
	assert.EqualError(t, err, "store offline")

	_, err = Run(ctx, storage.NewProvider(io.NewMem()), uid, nil, Options{})
	assert.ErrorIs(t, err, ErrNoKey)
}
