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

package session

import (
	"context"
	"errors"
	"time"

	"github.com/cybercryptio/journal-lib/crypto"
	"github.com/cybercryptio/journal-lib/data"
	"github.com/cybercryptio/journal-lib/id"
	"github.com/cybercryptio/journal-lib/key"
	"github.com/cybercryptio/journal-lib/keywrap"
	"github.com/cybercryptio/journal-lib/log"
	"github.com/cybercryptio/journal-lib/metrics"
	"github.com/cybercryptio/journal-lib/storage"
)

// SetupEncryption creates and wraps a new data encryption key, stores the wrapped key on the
// user's profile and caches the key, leaving the session unlocked. remember selects the durable
// tier over the session tier.
func (m *Manager) SetupEncryption(ctx context.Context, passphrase string, remember bool) (err error) {
	ctx = log.CopyCtxLogger(ctx)
	log.WithMethod(ctx, "setup encryption")
	log.WithUID(ctx, m.config.UID)
	start := time.Now()
	defer func() { m.config.Metrics.Observe(ctx, metrics.OperationSetup, start, err) }()

	m.lock.Lock()
	switch {
	case m.hasSetup:
		m.lock.Unlock()
		return ErrAlreadySetup
	case m.setupInProgress:
		m.lock.Unlock()
		return ErrSetupInProgress
	}
	m.setupInProgress = true
	m.lock.Unlock()

	defer func() {
		m.lock.Lock()
		m.setupInProgress = false
		m.lock.Unlock()
	}()

	hasSetup, err := m.fetchHasSetup(ctx)
	if err != nil {
		return err
	}
	if hasSetup {
		m.lock.Lock()
		m.hasSetup = true
		m.lock.Unlock()
		return ErrAlreadySetup
	}

	log.Ctx(ctx).Debug().Msg("generating and wrapping key")
	record, dek, err := keywrap.Setup(passphrase, m.config.Wrap)
	if err != nil {
		return err
	}

	log.Ctx(ctx).Debug().Msg("storing wrapped key")
	if err := m.config.Profiles.PatchProfile(ctx, m.config.UID, data.ProfilePatch{EncryptionKey: &record}); err != nil {
		return err
	}

	m.lock.Lock()
	m.hasSetup = true
	m.lock.Unlock()

	if err := m.cache(ctx, dek, key.TierFor(remember)); err != nil {
		return err
	}
	log.Ctx(ctx).Info().Msg("encryption set up")
	return nil
}

// UnlockWithPassphrase unwraps the stored key with passphrase and caches it. A wrong passphrase
// leaves the session locked and returns an error matching crypto.ErrUnwrap.
func (m *Manager) UnlockWithPassphrase(ctx context.Context, passphrase string, remember bool) (err error) {
	ctx = log.CopyCtxLogger(ctx)
	log.WithMethod(ctx, "unlock")
	log.WithUID(ctx, m.config.UID)
	start := time.Now()
	defer func() { m.config.Metrics.Observe(ctx, metrics.OperationUnlock, start, err) }()

	profile, err := m.config.Profiles.GetProfile(ctx, m.config.UID)
	if errors.Is(err, storage.ErrNotFound) {
		return ErrNotSetup
	}
	if err != nil {
		return err
	}
	if !profile.HasSetup() {
		return ErrNotSetup
	}

	m.lock.Lock()
	m.hasSetup = true
	m.lock.Unlock()

	log.Ctx(ctx).Debug().Int("iterations", profile.Iterations).Msg("unwrapping key")
	dek, err := keywrap.Unlock(profile.Record, passphrase, m.config.Wrap)
	if err != nil {
		if errors.Is(err, keywrap.ErrMalformedRecord) {
			log.Ctx(ctx).Warn().Msg("stored wrapped key record is malformed")
		} else {
			log.Ctx(ctx).Debug().Msg("unwrap failed")
		}
		return err
	}

	if err := m.cache(ctx, dek, key.TierFor(remember)); err != nil {
		return err
	}
	log.Ctx(ctx).Info().Msg("unlocked")
	return nil
}

// Lock forgets the cached key and removes it from both persistence tiers. Operations that already
// hold the key complete with it. The session is locked even if clearing the tiers fails.
func (m *Manager) Lock(ctx context.Context) (err error) {
	ctx = log.CopyCtxLogger(ctx)
	log.WithMethod(ctx, "lock")
	log.WithUID(ctx, m.config.UID)
	start := time.Now()
	defer func() { m.config.Metrics.Observe(ctx, metrics.OperationLock, start, err) }()

	m.lock.Lock()
	m.key = nil
	m.tier = key.TierNone
	m.lock.Unlock()

	log.Ctx(ctx).Debug().Msg("clearing persisted key")
	return m.config.Tiers.Clear(ctx)
}

// ResetEncryption locks the session and removes the wrapped key record, returning the user to
// NoKeySetup. Anything encrypted under the old key becomes unreadable.
func (m *Manager) ResetEncryption(ctx context.Context) (err error) {
	ctx = log.CopyCtxLogger(ctx)
	log.WithMethod(ctx, "reset encryption")
	log.WithUID(ctx, m.config.UID)
	start := time.Now()
	defer func() { m.config.Metrics.Observe(ctx, metrics.OperationReset, start, err) }()

	lockErr := m.Lock(ctx)
	if err := m.config.Profiles.PatchProfile(ctx, m.config.UID, data.ProfilePatch{EncryptionKey: &keywrap.Record{}}); err != nil {
		return err
	}

	m.lock.Lock()
	m.hasSetup = false
	m.lock.Unlock()

	log.Ctx(ctx).Warn().Msg("encryption reset")
	return lockErr
}

// cache stores dek as the session key and persists it to tier. Persistence failures degrade to
// memory-only caching. If the user signed out while the key was being derived, the key is dropped.
func (m *Manager) cache(ctx context.Context, dek *crypto.Key, tier key.Tier) error {
	m.lock.Lock()
	if m.signedOut {
		m.lock.Unlock()
		return id.ErrNotAuthenticated
	}
	m.key = dek
	m.tier = key.TierNone
	m.lock.Unlock()

	log.Ctx(ctx).Debug().Stringer("tier", tier).Msg("persisting key")
	if err := m.config.Tiers.Persist(ctx, tier, dek); err != nil {
		log.Ctx(ctx).Warn().Err(err).Msg("key persistence unavailable, keeping key in memory only")
		if clearErr := m.config.Tiers.Clear(ctx); clearErr != nil {
			log.Ctx(ctx).Warn().Err(clearErr).Msg("failed to clear key tiers")
		}
		return nil
	}

	m.lock.Lock()
	locked := m.key == nil
	if m.key == dek {
		m.tier = tier
	}
	m.lock.Unlock()

	if locked {
		// Locked while persisting; the copy just written must not outlive the lock.
		if err := m.config.Tiers.Clear(ctx); err != nil {
			log.Ctx(ctx).Warn().Err(err).Msg("failed to clear key tiers")
		}
	}
	return nil
}
