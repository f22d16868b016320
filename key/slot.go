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

package key

import (
	"context"
	"errors"
	"fmt"

	"github.com/cybercryptio/journal-lib/crypto"
	"github.com/cybercryptio/journal-lib/io"
)

// DefaultSlot is the name of the slot holding the data encryption key.
const DefaultSlot = "journal-dek"

// SlotFor returns the slot holding the data encryption key of uid. Providers shared by several users
// must use it so that a restored key always belongs to the user restoring it.
func SlotFor(uid string) string {
	return DefaultSlot + ":" + uid
}

// SlotStore persists a key as base64 encoded raw bytes in a single named slot of an IO Provider.
type SlotStore struct {
	provider io.Provider
	slot     []byte
}

// NewSlotStore creates a Store using the given slot of provider.
func NewSlotStore(provider io.Provider, slot string) *SlotStore {
	return &SlotStore{provider: provider, slot: []byte(slot)}
}

func unavailable(err error) error {
	return fmt.Errorf("%w: %v", ErrStorageUnavailable, err)
}

func (s *SlotStore) Load(ctx context.Context) (*crypto.Key, error) {
	data, err := s.provider.Get(ctx, s.slot, io.DataTypeKeySlot)
	if errors.Is(err, io.ErrNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, unavailable(err)
	}

	raw, err := crypto.Decode(string(data))
	if err != nil {
		return nil, fmt.Errorf("%w: malformed slot", ErrNotFound)
	}
	defer crypto.Zero(raw)

	k, err := crypto.ImportKey(raw)
	if err != nil {
		return nil, fmt.Errorf("%w: malformed slot", ErrNotFound)
	}
	return k, nil
}

func (s *SlotStore) Save(ctx context.Context, k *crypto.Key) error {
	raw, err := k.Export()
	if err != nil {
		return err
	}
	data := []byte(crypto.Encode(raw))
	crypto.Zero(raw)

	err = s.provider.Put(ctx, s.slot, io.DataTypeKeySlot, data)
	if errors.Is(err, io.ErrAlreadyExists) {
		err = s.provider.Update(ctx, s.slot, io.DataTypeKeySlot, data)
	}
	if err != nil {
		return unavailable(err)
	}
	return nil
}

func (s *SlotStore) Clear(ctx context.Context) error {
	if err := s.provider.Delete(ctx, s.slot, io.DataTypeKeySlot); err != nil {
		return unavailable(err)
	}
	return nil
}
