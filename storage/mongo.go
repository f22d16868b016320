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

package storage

import (
	"context"
	"errors"
	"fmt"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"github.com/cybercryptio/journal-lib/data"
)

// Collection names used by Mongo.
const (
	ProfilesCollection = "profiles"
	EntriesCollection  = "entries"
)

// Mongo is a Store backed by MongoDB. The wrapped key record lives inline on the profile document.
type Mongo struct {
	profiles *mongo.Collection
	entries  *mongo.Collection
}

// NewMongo creates a Store using the given database.
func NewMongo(db *mongo.Database) *Mongo {
	return &Mongo{
		profiles: db.Collection(ProfilesCollection),
		entries:  db.Collection(EntriesCollection),
	}
}

// ConnectMongo connects to uri and returns a Store on database together with a function that
// disconnects the client.
func ConnectMongo(ctx context.Context, uri, database string) (*Mongo, func(context.Context) error, error) {
	client, err := mongo.Connect(options.Client().ApplyURI(uri))
	if err != nil {
		return nil, nil, fmt.Errorf("failed to connect to mongodb: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		client.Disconnect(ctx)
		return nil, nil, fmt.Errorf("failed to ping mongodb: %w", err)
	}
	return NewMongo(client.Database(database)), client.Disconnect, nil
}

func (m *Mongo) GetProfile(ctx context.Context, uid string) (data.Profile, error) {
	var profile data.Profile
	err := m.profiles.FindOne(ctx, bson.M{"_id": uid}).Decode(&profile)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return data.Profile{}, ErrNotFound
	}
	if err != nil {
		return data.Profile{}, fmt.Errorf("failed to get profile: %w", err)
	}
	return profile, nil
}

func (m *Mongo) PatchProfile(ctx context.Context, uid string, patch data.ProfilePatch) error {
	_, err := m.profiles.UpdateOne(
		ctx,
		bson.M{"_id": uid},
		profileUpdate(uid, patch),
		options.UpdateOne().SetUpsert(true),
	)
	if err != nil {
		return fmt.Errorf("failed to patch profile: %w", err)
	}
	return nil
}

func (m *Mongo) InsertEntry(ctx context.Context, entry data.Entry) error {
	_, err := m.entries.InsertOne(ctx, entry)
	if mongo.IsDuplicateKeyError(err) {
		return ErrAlreadyExists
	}
	if err != nil {
		return fmt.Errorf("failed to insert entry: %w", err)
	}
	return nil
}

func (m *Mongo) GetEntry(ctx context.Context, id string) (data.Entry, error) {
	var entry data.Entry
	err := m.entries.FindOne(ctx, bson.M{"_id": id}).Decode(&entry)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return data.Entry{}, ErrNotFound
	}
	if err != nil {
		return data.Entry{}, fmt.Errorf("failed to get entry: %w", err)
	}
	return entry, nil
}

func (m *Mongo) PatchEntry(ctx context.Context, id string, patch data.EntryPatch) error {
	update := entryUpdate(patch)
	if len(update) == 0 {
		_, err := m.GetEntry(ctx, id)
		return err
	}

	res, err := m.entries.UpdateOne(ctx, bson.M{"_id": id}, update)
	if err != nil {
		return fmt.Errorf("failed to patch entry: %w", err)
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

func (m *Mongo) DeleteEntry(ctx context.Context, id string) error {
	res, err := m.entries.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return fmt.Errorf("failed to delete entry: %w", err)
	}
	if res.DeletedCount == 0 {
		return ErrNotFound
	}
	return nil
}

func (m *Mongo) EntriesByUser(ctx context.Context, uid string) ([]data.Entry, error) {
	cursor, err := m.entries.Find(ctx,
		bson.M{"userId": uid},
		options.Find().SetSort(bson.D{{Key: "timestamp", Value: -1}}),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list entries: %w", err)
	}
	defer cursor.Close(ctx)

	entries := []data.Entry{}
	if err := cursor.All(ctx, &entries); err != nil {
		return nil, fmt.Errorf("failed to decode entries: %w", err)
	}
	return entries, nil
}

// update collects $set and $unset operators. Empty strings and empty lists are unset so that the
// stored documents keep "absent" and "empty" the same.
type update struct {
	set   bson.M
	unset bson.M
}

func newUpdate() *update {
	return &update{set: bson.M{}, unset: bson.M{}}
}

func (u *update) str(field string, v *string) {
	switch {
	case v == nil:
	case *v == "":
		u.unset[field] = ""
	default:
		u.set[field] = *v
	}
}

func (u *update) doc() bson.M {
	out := bson.M{}
	if len(u.set) > 0 {
		out["$set"] = u.set
	}
	if len(u.unset) > 0 {
		out["$unset"] = u.unset
	}
	return out
}

func entryUpdate(p data.EntryPatch) bson.M {
	u := newUpdate()
	if p.Mood != nil {
		u.set["mood"] = *p.Mood
	}
	if p.Intensity != nil {
		u.set["intensity"] = *p.Intensity
	}
	u.str("encryptedNotes", p.EncryptedNotes)
	u.str("encryptedTags", p.EncryptedTags)
	u.str("iv", p.IV)
	u.str("encryptedLocation", p.EncryptedLocation)
	u.str("locationIv", p.LocationIV)
	u.str("encryptedImageStorageId", p.EncryptedImageStorageID)
	u.str("encryptedImageIv", p.EncryptedImageIV)
	u.str("notes", p.Notes)
	u.str("location", p.Location)
	if p.Tags != nil {
		if len(*p.Tags) == 0 {
			u.unset["tags"] = ""
		} else {
			u.set["tags"] = *p.Tags
		}
	}
	return u.doc()
}

func profileUpdate(uid string, p data.ProfilePatch) bson.M {
	u := newUpdate()
	if r := p.EncryptionKey; r != nil {
		if r.IsSet() {
			u.set["encryptedKey"] = r.EncryptedKey
			u.set["salt"] = r.Salt
			u.set["iv"] = r.IV
			u.set["iterations"] = r.Iterations
		} else {
			for _, field := range []string{"encryptedKey", "salt", "iv", "iterations"} {
				u.unset[field] = ""
			}
		}
	}
	doc := u.doc()
	if len(doc) == 0 {
		// An upsert needs at least one operator.
		doc["$setOnInsert"] = bson.M{"_id": uid}
	}
	return doc
}
