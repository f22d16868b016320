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
	"github.com/cybercryptio/journal-lib/log"
)

// Tiers couples the session and durable stores so that at most one of them holds a key.
type Tiers struct {
	session Store
	durable Store
}

// NewTiers creates a Tiers from the two stores. A nil store is treated as Unavailable.
func NewTiers(session, durable Store) *Tiers {
	if session == nil {
		session = Unavailable{}
	}
	if durable == nil {
		durable = Unavailable{}
	}
	return &Tiers{session: session, durable: durable}
}

// ignoreUnavailable drops errors from tiers that cannot be accessed, since nothing can have been
// written to them.
func ignoreUnavailable(err error) error {
	if errors.Is(err, ErrStorageUnavailable) {
		return nil
	}
	return err
}

// Persist writes k to the given tier and clears the other one. Persisting to TierNone clears both.
// If the target tier is unavailable the returned error wraps ErrStorageUnavailable and the other
// tier is still cleared.
func (t *Tiers) Persist(ctx context.Context, tier Tier, k *crypto.Key) error {
	var target, other Store
	switch tier {
	case TierSession:
		target, other = t.session, t.durable
	case TierDurable:
		target, other = t.durable, t.session
	default:
		return t.Clear(ctx)
	}

	saveErr := target.Save(ctx, k)
	if saveErr != nil {
		// A half-written target must not survive next to a stale copy.
		if err := target.Clear(ctx); err != nil {
			log.Ctx(ctx).Warn().Err(err).Stringer("tier", tier).Msg("failed to clear tier after failed save")
		}
	}
	return errors.Join(saveErr, ignoreUnavailable(other.Clear(ctx)))
}

// Restore loads a persisted key, trying the durable tier before the session tier. It returns
// ErrNotFound if neither tier holds a usable key.
func (t *Tiers) Restore(ctx context.Context) (*crypto.Key, Tier, error) {
	for _, tier := range []Tier{TierDurable, TierSession} {
		store := t.durable
		if tier == TierSession {
			store = t.session
		}
		k, err := store.Load(ctx)
		if err == nil {
			return k, tier, nil
		}
	}
	return nil, TierNone, ErrNotFound
}

// Clear removes the key from both tiers.
func (t *Tiers) Clear(ctx context.Context) error {
	return errors.Join(
		ignoreUnavailable(t.session.Clear(ctx)),
		ignoreUnavailable(t.durable.Clear(ctx)),
	)
}
