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
	"sort"
	"sync"

	jsoniter "github.com/json-iterator/go"

	"github.com/cybercryptio/journal-lib/data"
	"github.com/cybercryptio/journal-lib/io"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Provider is a Store on top of an IO Provider. Records are JSON encoded and each user has an
// index record listing the IDs of their entries.
type Provider struct {
	io io.Provider

	// Guards read-modify-write cycles on records and user indexes.
	lock sync.Mutex
}

// NewProvider creates a Store backed by the given IO Provider.
func NewProvider(provider io.Provider) *Provider {
	return &Provider{io: provider}
}

func translate(err error) error {
	switch {
	case errors.Is(err, io.ErrNotFound):
		return ErrNotFound
	case errors.Is(err, io.ErrAlreadyExists):
		return ErrAlreadyExists
	}
	return err
}

func (p *Provider) get(ctx context.Context, id string, dataType io.DataType, v interface{}) error {
	raw, err := p.io.Get(ctx, []byte(id), dataType)
	if err != nil {
		return translate(err)
	}
	return json.Unmarshal(raw, v)
}

func (p *Provider) put(ctx context.Context, id string, dataType io.DataType, v interface{}) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return translate(p.io.Put(ctx, []byte(id), dataType, raw))
}

func (p *Provider) update(ctx context.Context, id string, dataType io.DataType, v interface{}) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return translate(p.io.Update(ctx, []byte(id), dataType, raw))
}

func (p *Provider) GetProfile(ctx context.Context, uid string) (data.Profile, error) {
	var profile data.Profile
	if err := p.get(ctx, uid, io.DataTypeProfile, &profile); err != nil {
		return data.Profile{}, err
	}
	return profile, nil
}

func (p *Provider) PatchProfile(ctx context.Context, uid string, patch data.ProfilePatch) error {
	p.lock.Lock()
	defer p.lock.Unlock()

	profile, err := p.GetProfile(ctx, uid)
	if errors.Is(err, ErrNotFound) {
		profile = data.Profile{UserID: uid}
		patch.Apply(&profile)
		return p.put(ctx, uid, io.DataTypeProfile, profile)
	}
	if err != nil {
		return err
	}
	patch.Apply(&profile)
	return p.update(ctx, uid, io.DataTypeProfile, profile)
}

func (p *Provider) userIndex(ctx context.Context, uid string) ([]string, error) {
	var ids []string
	err := p.get(ctx, uid, io.DataTypeUserEntries, &ids)
	if errors.Is(err, ErrNotFound) {
		return nil, nil
	}
	return ids, err
}

func (p *Provider) saveUserIndex(ctx context.Context, uid string, ids []string) error {
	err := p.update(ctx, uid, io.DataTypeUserEntries, ids)
	if errors.Is(err, ErrNotFound) {
		return p.put(ctx, uid, io.DataTypeUserEntries, ids)
	}
	return err
}

func (p *Provider) InsertEntry(ctx context.Context, entry data.Entry) error {
	p.lock.Lock()
	defer p.lock.Unlock()

	if err := p.put(ctx, entry.ID, io.DataTypeEntry, entry); err != nil {
		return err
	}
	ids, err := p.userIndex(ctx, entry.UserID)
	if err != nil {
		return err
	}
	return p.saveUserIndex(ctx, entry.UserID, append(ids, entry.ID))
}

func (p *Provider) GetEntry(ctx context.Context, id string) (data.Entry, error) {
	var entry data.Entry
	if err := p.get(ctx, id, io.DataTypeEntry, &entry); err != nil {
		return data.Entry{}, err
	}
	return entry, nil
}

func (p *Provider) PatchEntry(ctx context.Context, id string, patch data.EntryPatch) error {
	p.lock.Lock()
	defer p.lock.Unlock()

	entry, err := p.GetEntry(ctx, id)
	if err != nil {
		return err
	}
	patch.Apply(&entry)
	return p.update(ctx, id, io.DataTypeEntry, entry)
}

func (p *Provider) DeleteEntry(ctx context.Context, id string) error {
	p.lock.Lock()
	defer p.lock.Unlock()

	entry, err := p.GetEntry(ctx, id)
	if err != nil {
		return err
	}
	if err := translate(p.io.Delete(ctx, []byte(id), io.DataTypeEntry)); err != nil {
		return err
	}

	ids, err := p.userIndex(ctx, entry.UserID)
	if err != nil {
		return err
	}
	kept := ids[:0]
	for _, other := range ids {
		if other != id {
			kept = append(kept, other)
		}
	}
	return p.saveUserIndex(ctx, entry.UserID, kept)
}

func (p *Provider) EntriesByUser(ctx context.Context, uid string) ([]data.Entry, error) {
	p.lock.Lock()
	ids, err := p.userIndex(ctx, uid)
	p.lock.Unlock()
	if err != nil {
		return nil, err
	}

	entries := make([]data.Entry, 0, len(ids))
	for _, id := range ids {
		entry, err := p.GetEntry(ctx, id)
		if errors.Is(err, ErrNotFound) {
			continue
		}
		if err != nil {
			return nil, err
		}
		entries = append(entries, entry)
	}

	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].Timestamp.After(entries[j].Timestamp)
	})
	return entries, nil
}
