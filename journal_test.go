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
	"net/http/httptest"
	"net/url"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gocloud.dev/blob/fileblob"

	"github.com/cybercryptio/journal-lib/config"
	"github.com/cybercryptio/journal-lib/crypto"
	"github.com/cybercryptio/journal-lib/data"
	"github.com/cybercryptio/journal-lib/envelope"
	"github.com/cybercryptio/journal-lib/id"
	"github.com/cybercryptio/journal-lib/io"
	"github.com/cybercryptio/journal-lib/key"
	"github.com/cybercryptio/journal-lib/keywrap"
	"github.com/cybercryptio/journal-lib/objectstore"
	"github.com/cybercryptio/journal-lib/session"
	"github.com/cybercryptio/journal-lib/storage"
)

const (
	uid        = "alice"
	passphrase = "correct horse battery staple"
)

type fixture struct {
	journal *Journal
	store   *storage.Provider
	objects *objectstore.Store
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	ctx := context.Background()

	objects, err := objectstore.Open(ctx, "mem://")
	require.NoError(t, err)
	t.Cleanup(func() { objects.Close() })

	return newFixtureWithObjects(t, objects)
}

func newFixtureWithObjects(t *testing.T, objects *objectstore.Store) *fixture {
	t.Helper()
	store := storage.NewProvider(io.NewMem())
	j := New(Options{
		UID:     uid,
		Store:   store,
		Objects: objects,
		Tiers:   key.NewTiers(key.NewSlotStore(io.NewMem(), key.SlotFor(uid)), nil),
		Wrap:    keywrap.Options{Iterations: crypto.MinIterations},
	})
	require.NoError(t, j.Init(context.Background()))
	t.Cleanup(func() { j.Close(context.Background()) })

	return &fixture{journal: j, store: store, objects: objects}
}

func (f *fixture) setup(t *testing.T) {
	t.Helper()
	_, err := f.journal.SetupEncryption(context.Background(), passphrase, false, nil)
	require.NoError(t, err)
}

func (f *fixture) stored(t *testing.T, entryID string) data.Entry {
	t.Helper()
	entry, err := f.store.GetEntry(context.Background(), entryID)
	require.NoError(t, err)
	return entry
}

func TestCheckInBeforeSetup(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	entry, err := f.journal.CheckIn(ctx, Draft{
		Mood:      data.MoodOkay,
		Intensity: 5,
		Notes:     "plain notes",
		Tags:      []string{"work"},
		Location:  "home",
	})
	require.NoError(t, err)

	stored := f.stored(t, entry.ID)
	assert.Equal(t, "plain notes", stored.Notes)
	assert.Equal(t, "home", stored.Location)
	assert.False(t, stored.HasCiphertext())

	views, err := f.journal.Entries(ctx)
	require.NoError(t, err)
	require.Len(t, views, 1)
	assert.Equal(t, "plain notes", views[0].Notes)
	assert.Equal(t, []string{"work"}, views[0].Tags)
	assert.False(t, views[0].Encrypted)
	assert.Empty(t, views[0].Failed)
}

func TestCheckInInvalid(t *testing.T) {
	f := newFixture(t)
	_, err := f.journal.CheckIn(context.Background(), Draft{Mood: "elated", Intensity: 5})
	assert.ErrorIs(t, err, data.ErrInvalidMood)
	_, err = f.journal.CheckIn(context.Background(), Draft{Mood: data.MoodLow, Intensity: 11})
	assert.ErrorIs(t, err, data.ErrInvalidIntensity)
}

func TestCheckInBeforeInit(t *testing.T) {
	j := New(Options{UID: uid, Store: storage.NewProvider(io.NewMem())})
	defer j.Close(context.Background())

	_, err := j.CheckIn(context.Background(), Draft{Mood: data.MoodGood, Intensity: 3, Notes: "early"})
	assert.ErrorIs(t, err, ErrLoading)
}

func TestSetupMigratesAndEncrypts(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	old, err := f.journal.CheckIn(ctx, Draft{
		Mood:      data.MoodLow,
		Intensity: 7,
		Notes:     "before encryption",
		Tags:      []string{"sleep"},
		Timestamp: time.Now().Add(-time.Hour),
	})
	require.NoError(t, err)

	var progress [][2]int
	report, err := f.journal.SetupEncryption(ctx, passphrase, false, func(current, total int) {
		progress = append(progress, [2]int{current, total})
	})
	require.NoError(t, err)
	assert.Equal(t, 1, report.Total)
	assert.Equal(t, 1, report.Migrated)
	assert.Equal(t, [][2]int{{1, 1}}, progress)
	migrated := f.stored(t, old.ID)
	assert.True(t, migrated.HasCiphertext())

	fresh, err := f.journal.CheckIn(ctx, Draft{
		Mood:      data.MoodGreat,
		Intensity: 9,
		Notes:     "after encryption",
		Tags:      []string{"run", "sun"},
		Location:  "park",
	})
	require.NoError(t, err)

	stored := f.stored(t, fresh.ID)
	assert.Empty(t, stored.Notes)
	assert.Empty(t, stored.Tags)
	assert.Empty(t, stored.Location)
	assert.True(t, stored.HasCiphertext())
	assert.NotEmpty(t, stored.EncryptedLocation)
	assert.NotEqual(t, stored.IV, stored.LocationIV)

	views, err := f.journal.Entries(ctx)
	require.NoError(t, err)
	require.Len(t, views, 2)
	assert.Equal(t, "after encryption", views[0].Notes)
	assert.Equal(t, []string{"run", "sun"}, views[0].Tags)
	assert.Equal(t, "park", views[0].Location)
	assert.True(t, views[0].Encrypted)
	assert.Equal(t, "before encryption", views[1].Notes)
	assert.Equal(t, []string{"sleep"}, views[1].Tags)
}

func TestLockedJournal(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.setup(t)

	entry, err := f.journal.CheckIn(ctx, Draft{Mood: data.MoodAnxious, Intensity: 8, Notes: "secret", Location: "work"})
	require.NoError(t, err)
	require.NoError(t, f.journal.Lock(ctx))

	_, err = f.journal.CheckIn(ctx, Draft{Mood: data.MoodGood, Intensity: 2, Notes: "more"})
	assert.ErrorIs(t, err, session.ErrLocked)
	assert.ErrorIs(t, f.journal.Edit(ctx, entry.ID, Changes{Notes: data.Ptr("edited")}), session.ErrLocked)

	// Mood changes do not need the key.
	require.NoError(t, f.journal.Edit(ctx, entry.ID, Changes{Mood: data.Ptr(data.MoodOkay)}))

	view, err := f.journal.Entry(ctx, entry.ID)
	require.NoError(t, err)
	assert.Equal(t, data.MoodOkay, view.Mood)
	assert.Equal(t, envelope.Placeholder, view.Notes)
	assert.Equal(t, envelope.Placeholder, view.Location)
	assert.ElementsMatch(t, []string{envelope.FieldNotes, envelope.FieldLocation}, view.Failed)

	require.NoError(t, f.journal.Unlock(ctx, passphrase, false))
	view, err = f.journal.Entry(ctx, entry.ID)
	require.NoError(t, err)
	assert.Equal(t, "secret", view.Notes)
	assert.Empty(t, view.Failed)
}

// Every edit encrypts under a fresh IV and the unchanged field survives.
func TestEditFreshIV(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.setup(t)

	entry, err := f.journal.CheckIn(ctx, Draft{Mood: data.MoodLow, Intensity: 4, Notes: "first", Tags: []string{"a"}})
	require.NoError(t, err)

	ivs := map[string]bool{entry.IV: true}
	for _, notes := range []string{"second", "third", "third"} {
		require.NoError(t, f.journal.Edit(ctx, entry.ID, Changes{Notes: data.Ptr(notes)}))
		iv := f.stored(t, entry.ID).IV
		assert.False(t, ivs[iv], "IV reused")
		ivs[iv] = true
	}

	require.NoError(t, f.journal.Edit(ctx, entry.ID, Changes{Tags: data.Ptr([]string{"b", "c"}), Location: data.Ptr("bus")}))
	view, err := f.journal.Entry(ctx, entry.ID)
	require.NoError(t, err)
	assert.Equal(t, "third", view.Notes)
	assert.Equal(t, []string{"b", "c"}, view.Tags)
	assert.Equal(t, "bus", view.Location)

	require.NoError(t, f.journal.Edit(ctx, entry.ID, Changes{Location: data.Ptr("")}))
	stored := f.stored(t, entry.ID)
	assert.Empty(t, stored.EncryptedLocation)
	assert.Empty(t, stored.LocationIV)

	assert.ErrorIs(t, f.journal.Edit(ctx, entry.ID, Changes{Intensity: data.Ptr(0)}), data.ErrInvalidIntensity)
}

// Editing a migrated entry drops its legacy plaintext.
func TestEditMigratedEntry(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	entry, err := f.journal.CheckIn(ctx, Draft{Mood: data.MoodGood, Intensity: 3, Notes: "legacy", Tags: []string{"old"}})
	require.NoError(t, err)
	f.setup(t)
	require.Equal(t, "legacy", f.stored(t, entry.ID).Notes)

	require.NoError(t, f.journal.Edit(ctx, entry.ID, Changes{Notes: data.Ptr("rewritten")}))
	stored := f.stored(t, entry.ID)
	assert.Empty(t, stored.Notes)
	assert.Empty(t, stored.Tags)

	view, err := f.journal.Entry(ctx, entry.ID)
	require.NoError(t, err)
	assert.Equal(t, "rewritten", view.Notes)
	assert.Equal(t, []string{"old"}, view.Tags)
}

func TestEditBeforeSetup(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	entry, err := f.journal.CheckIn(ctx, Draft{Mood: data.MoodGood, Intensity: 3, Notes: "draft"})
	require.NoError(t, err)
	require.NoError(t, f.journal.Edit(ctx, entry.ID, Changes{Notes: data.Ptr("final"), Tags: data.Ptr([]string{"x"})}))

	stored := f.stored(t, entry.ID)
	assert.Equal(t, "final", stored.Notes)
	assert.Equal(t, []string{"x"}, stored.Tags)
	assert.False(t, stored.HasCiphertext())
}

func TestNotOwner(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	other, err := data.NewEntry("bob", data.MoodGood, 5, time.Now())
	require.NoError(t, err)
	require.NoError(t, f.store.InsertEntry(ctx, other))

	assert.ErrorIs(t, f.journal.Edit(ctx, other.ID, Changes{Notes: data.Ptr("mine now")}), ErrNotOwner)
	assert.ErrorIs(t, f.journal.Delete(ctx, other.ID), ErrNotOwner)
	_, err = f.journal.Entry(ctx, other.ID)
	assert.ErrorIs(t, err, ErrNotOwner)

	_, err = f.store.GetEntry(ctx, other.ID)
	assert.NoError(t, err)

	views, err := f.journal.Entries(ctx)
	require.NoError(t, err)
	assert.Empty(t, views)
}

// One corrupted field does not hide the rest of the entry.
func TestEntriesPartialFailure(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.setup(t)

	entry, err := f.journal.CheckIn(ctx, Draft{Mood: data.MoodLow, Intensity: 6, Notes: "intact", Tags: []string{"t"}})
	require.NoError(t, err)

	tampered := []byte(entry.EncryptedTags)
	tampered[2] ^= 1
	require.NoError(t, f.store.PatchEntry(ctx, entry.ID, data.EntryPatch{EncryptedTags: data.Ptr(string(tampered))}))

	views, err := f.journal.Entries(ctx)
	require.NoError(t, err)
	require.Len(t, views, 1)
	assert.Equal(t, "intact", views[0].Notes)
	assert.Equal(t, []string{envelope.Placeholder}, views[0].Tags)
	assert.Equal(t, []string{envelope.FieldTags}, views[0].Failed)
}

// Ciphertext that lost its IV is reported as a failed field, not as absent.
func TestEntriesMissingIV(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	entry, err := f.journal.CheckIn(ctx, Draft{Mood: data.MoodLow, Intensity: 6, Notes: "legacy"})
	require.NoError(t, err)
	f.setup(t)
	require.NoError(t, f.store.PatchEntry(ctx, entry.ID, data.EntryPatch{IV: data.Ptr("")}))

	view, err := f.journal.Entry(ctx, entry.ID)
	require.NoError(t, err)
	assert.True(t, view.Encrypted)
	assert.Equal(t, []string{envelope.FieldNotes}, view.Failed)
	assert.Equal(t, "legacy", view.Notes)

	require.NoError(t, f.store.PatchEntry(ctx, entry.ID, data.EntryPatch{Notes: data.Ptr("")}))
	view, err = f.journal.Entry(ctx, entry.ID)
	require.NoError(t, err)
	assert.Equal(t, envelope.Placeholder, view.Notes)
	assert.Equal(t, []string{envelope.FieldNotes}, view.Failed)
}

func TestImage(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	image := []byte("\x89PNG not really an image")

	entry, err := f.journal.CheckIn(ctx, Draft{Mood: data.MoodGreat, Intensity: 10})
	require.NoError(t, err)
	assert.ErrorIs(t, f.journal.AttachImage(ctx, entry.ID, image), session.ErrNotSetup)

	f.setup(t)
	require.NoError(t, f.journal.AttachImage(ctx, entry.ID, image))

	stored := f.stored(t, entry.ID)
	require.True(t, stored.HasImage())
	ciphertext, err := f.objects.Download(ctx, stored.EncryptedImageStorageID)
	require.NoError(t, err)
	assert.NotContains(t, string(ciphertext), "PNG")

	got, err := f.journal.Image(ctx, entry.ID)
	require.NoError(t, err)
	assert.Equal(t, image, got)

	// Replacing the image removes the old ciphertext.
	require.NoError(t, f.journal.AttachImage(ctx, entry.ID, []byte("second")))
	_, err = f.objects.Download(ctx, stored.EncryptedImageStorageID)
	assert.ErrorIs(t, err, objectstore.ErrNotFound)

	replaced := f.stored(t, entry.ID)
	require.NoError(t, f.journal.Delete(ctx, entry.ID))
	_, err = f.objects.Download(ctx, replaced.EncryptedImageStorageID)
	assert.ErrorIs(t, err, objectstore.ErrNotFound)
	_, err = f.store.GetEntry(ctx, entry.ID)
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestImageErrors(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.setup(t)

	entry, err := f.journal.CheckIn(ctx, Draft{Mood: data.MoodOkay, Intensity: 5})
	require.NoError(t, err)

	_, err = f.journal.Image(ctx, entry.ID)
	assert.ErrorIs(t, err, ErrNoImage)
	_, _, err = f.journal.ImageURL(ctx, entry.ID)
	assert.ErrorIs(t, err, ErrNoImage)

	require.NoError(t, f.journal.AttachImage(ctx, entry.ID, []byte("img")))
	require.NoError(t, f.store.PatchEntry(ctx, entry.ID, data.EntryPatch{
		EncryptedImageIV: data.Ptr(crypto.Encode(make([]byte, crypto.NonceLength))),
	}))
	_, err = f.journal.Image(ctx, entry.ID)
	assert.True(t, envelope.FieldFailed(err, envelope.FieldImage))

	require.NoError(t, f.journal.Lock(ctx))
	_, err = f.journal.Image(ctx, entry.ID)
	assert.ErrorIs(t, err, session.ErrLocked)

	bare := New(Options{UID: uid, Store: storage.NewProvider(io.NewMem())})
	defer bare.Close(ctx)
	assert.ErrorIs(t, bare.AttachImage(ctx, entry.ID, []byte("img")), ErrNoObjectStore)
}

func TestImageURL(t *testing.T) {
	ctx := context.Background()
	base, err := url.Parse("https://journal.example/blobs")
	require.NoError(t, err)
	bucket, err := fileblob.OpenBucket(t.TempDir(), &fileblob.Options{
		URLSigner: fileblob.NewURLSignerHMAC(base, []byte("test signing secret")),
	})
	require.NoError(t, err)
	objects := objectstore.New(bucket)
	defer objects.Close()

	f := newFixtureWithObjects(t, objects)
	f.setup(t)
	entry, err := f.journal.CheckIn(ctx, Draft{Mood: data.MoodGood, Intensity: 4})
	require.NoError(t, err)
	require.NoError(t, f.journal.AttachImage(ctx, entry.ID, []byte("photo")))

	signed, iv, err := f.journal.ImageURL(ctx, entry.ID)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(signed, "https://journal.example/blobs"), signed)
	assert.Equal(t, f.stored(t, entry.ID).EncryptedImageIV, iv)
}

func TestResetEncryption(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.setup(t)

	entry, err := f.journal.CheckIn(ctx, Draft{Mood: data.MoodLow, Intensity: 2, Notes: "gone"})
	require.NoError(t, err)
	require.NoError(t, f.journal.ResetEncryption(ctx))
	assert.Equal(t, keywrap.NoKeySetup, f.journal.State().Setup)

	view, err := f.journal.Entry(ctx, entry.ID)
	require.NoError(t, err)
	assert.Equal(t, envelope.Placeholder, view.Notes)
}

func TestOpen(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	cfg := &config.Config{
		KDFIterations:    crypto.MinIterations,
		LogLevel:         "error",
		DurableKeyPath:   filepath.Join(dir, "keys.db"),
		StorePath:        filepath.Join(dir, "journal.db"),
		BlobBucketURL:    "mem://",
		MetricsEnabled:   true,
		MetricsNamespace: "journal",
	}

	identity := id.NewSession()
	identity.SignIn(ctx, uid)

	j, err := Open(ctx, cfg, uid, identity)
	require.NoError(t, err)

	_, err = j.SetupEncryption(ctx, passphrase, true, nil)
	require.NoError(t, err)
	entry, err := j.CheckIn(ctx, Draft{Mood: data.MoodGood, Intensity: 6, Notes: "persisted"})
	require.NoError(t, err)

	rec := httptest.NewRecorder()
	j.MetricsHandler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	assert.Contains(t, rec.Body.String(), "journal_operations")
	require.NoError(t, j.Close(ctx))

	// The durable tier unlocks the reopened journal.
	j, err = Open(ctx, cfg, uid, identity)
	require.NoError(t, err)
	defer j.Close(ctx)
	assert.True(t, j.State().Unlocked)

	view, err := j.Entry(ctx, entry.ID)
	require.NoError(t, err)
	assert.Equal(t, "persisted", view.Notes)
}

// A remembered key is only restored for the user it belongs to.
func TestOpenSharedDurableFile(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	cfg := &config.Config{
		KDFIterations:  crypto.MinIterations,
		LogLevel:       "error",
		DurableKeyPath: filepath.Join(dir, "keys.db"),
		StorePath:      filepath.Join(dir, "journal.db"),
		BlobBucketURL:  "mem://",
	}
	openAs := func(user string) *Journal {
		identity := id.NewSession()
		identity.SignIn(ctx, user)
		j, err := Open(ctx, cfg, user, identity)
		require.NoError(t, err)
		return j
	}

	bob := openAs("bob")
	_, err := bob.SetupEncryption(ctx, "bob's passphrase", false, nil)
	require.NoError(t, err)
	require.NoError(t, bob.Close(ctx))

	alice := openAs(uid)
	_, err = alice.SetupEncryption(ctx, passphrase, true, nil)
	require.NoError(t, err)
	require.NoError(t, alice.Close(ctx))

	bob = openAs("bob")
	assert.False(t, bob.State().Unlocked)
	require.NoError(t, bob.Unlock(ctx, "bob's passphrase", false))
	entry, err := bob.CheckIn(ctx, Draft{Mood: data.MoodOkay, Intensity: 5, Notes: "bob's note"})
	require.NoError(t, err)
	view, err := bob.Entry(ctx, entry.ID)
	require.NoError(t, err)
	assert.Equal(t, "bob's note", view.Notes)
	assert.Empty(t, view.Failed)
	require.NoError(t, bob.Close(ctx))

	alice = openAs(uid)
	defer alice.Close(ctx)
	assert.True(t, alice.State().Unlocked)
}

func TestOpenInvalidConfig(t *testing.T) {
	_, err := Open(context.Background(), &config.Config{KDFIterations: 1000}, uid, nil)
	assert.ErrorIs(t, err, config.ErrWeakIterations)
}
