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

	"github.com/cybercryptio/journal-lib/crypto"
)

// Error returned if no key is persisted in a tier.
var ErrNotFound = errors.New("no persisted key")

// Error returned if a tier cannot be read or written, e.g. because the platform denies access to
// it. Callers are expected to fall back to keeping the key in memory only.
var ErrStorageUnavailable = errors.New("key storage unavailable")

// Tier selects where an unwrapped data encryption key is persisted between sessions.
type Tier uint8

const (
	// TierNone keeps the key in memory only.
	TierNone Tier = iota
	// TierSession persists the key until the session ends.
	TierSession
	// TierDurable persists the key across restarts ("remember me").
	TierDurable
)

// TierFor returns the tier matching a "remember me" choice.
func TierFor(remember bool) Tier {
	if remember {
		return TierDurable
	}
	return TierSession
}

func (t Tier) String() string {
	switch t {
	case TierSession:
		return "session"
	case TierDurable:
		return "durable"
	default:
		return "none"
	}
}

// Store is the interface a persistence tier must implement. Both tiers share this contract.
type Store interface {
	// Load returns the persisted key, or ErrNotFound.
	Load(ctx context.Context) (*crypto.Key, error)

	// Save persists the key, replacing any previous one.
	Save(ctx context.Context, k *crypto.Key) error

	// Clear removes the persisted key. Clearing an empty store is not an error.
	Clear(ctx context.Context) error
}

// Unavailable is a Store that can never be used. It stands in for a tier the platform does not
// provide.
type Unavailable struct{}

func (Unavailable) Load(ctx context.Context) (*crypto.Key, error) {
	return nil, ErrStorageUnavailable
}

func (Unavailable) Save(ctx context.Context, k *crypto.Key) error {
	return ErrStorageUnavailable
}

func (Unavailable) Clear(ctx context.Context) error {
	return ErrStorageUnavailable
}
