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

// Package session caches a user's unwrapped data encryption key for the lifetime of a sign-in
// session. A Manager is created per session and injected into whatever owns the session.
//
// Operations on a Manager are not serialized against each other. Callers are expected to avoid
// overlapping setup, unlock and lock calls; the fields themselves are safe for concurrent use.
package session

import (
	"context"
	"errors"
	"sync"
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

// Error returned by SetupEncryption if a wrapped key already exists for the user.
var ErrAlreadySetup = errors.New("encryption is already set up")

// Error returned by SetupEncryption if another setup is running.
var ErrSetupInProgress = errors.New("encryption setup in progress")

// Error returned by UnlockWithPassphrase if the user has not set up encryption.
var ErrNotSetup = errors.New("encryption is not set up")

// Error returned if an operation needs the data encryption key while the session is locked.
var ErrLocked = errors.New("encryption key is locked")

// Profiles is the part of the document store the Manager needs.
type Profiles interface {
	GetProfile(ctx context.Context, uid string) (data.Profile, error)
	PatchProfile(ctx context.Context, uid string, patch data.ProfilePatch) error
}

// Config holds the collaborators of a Manager.
type Config struct {
	// UID is the user owning the session.
	UID string

	// Profiles stores the wrapped key record.
	Profiles Profiles

	// Identity reports sign-out. Optional.
	Identity id.Provider

	// Tiers persists the unwrapped key between page loads. Optional; nil keeps the key in memory.
	Tiers *key.Tiers

	// Metrics records operation outcomes. Optional.
	Metrics metrics.Recorder

	// Wrap tunes key derivation.
	Wrap keywrap.Options
}

// State is a snapshot of a Manager.
type State struct {
	Setup    keywrap.SetupState
	Unlocked bool
	Loading  bool

	// Tier is where the key is persisted. TierNone while locked or when running memory-only.
	Tier key.Tier
}

// Manager holds the unwrapped data encryption key of one user.
type Manager struct {
	config Config

	lock            sync.RWMutex
	key             *crypto.Key
	tier            key.Tier
	hasSetup        bool
	setupInProgress bool
	loading         bool
	signedOut       bool
	watching        bool

	stop     chan struct{}
	done     chan struct{}
	stopOnce sync.Once
}

// New creates a Manager. It reports IsLoading until Init has run.
func New(config Config) *Manager {
	if config.Tiers == nil {
		config.Tiers = key.NewTiers(nil, nil)
	}
	if config.Metrics == nil {
		config.Metrics = metrics.NoOp{}
	}
	return &Manager{
		config:  config,
		loading: true,
		stop:    make(chan struct{}),
		done:    make(chan struct{}),
	}
}

// Init restores a persisted key, checks whether the user has set up encryption, and starts
// watching the identity provider for sign-out. Close must be called to stop watching. Init may be
// called again, e.g. after a failed profile fetch; only one watcher is ever started.
func (m *Manager) Init(ctx context.Context) error {
	ctx = log.CopyCtxLogger(ctx)
	log.WithMethod(ctx, "init")
	log.WithUID(ctx, m.config.UID)

	defer func() {
		m.lock.Lock()
		m.loading = false
		m.lock.Unlock()
	}()

	start := time.Now()
	restored, tier, restoreErr := m.config.Tiers.Restore(ctx)
	if restoreErr == nil {
		log.Ctx(ctx).Debug().Stringer("tier", tier).Msg("restored key")
	}

	hasSetup, err := m.fetchHasSetup(ctx)
	if err != nil {
		m.config.Metrics.Observe(ctx, metrics.OperationRestore, start, err)
		return err
	}

	m.lock.Lock()
	m.hasSetup = hasSetup
	if restoreErr == nil && hasSetup {
		m.key, m.tier = restored, tier
	}
	m.lock.Unlock()

	if restoreErr == nil && !hasSetup {
		// Left over from before a reset. It cannot decrypt anything the user still has.
		log.Ctx(ctx).Debug().Msg("discarding key persisted without a wrapped key record")
		if err := m.config.Tiers.Clear(ctx); err != nil {
			log.Ctx(ctx).Warn().Err(err).Msg("failed to clear stale key")
		}
	}
	m.config.Metrics.Observe(ctx, metrics.OperationRestore, start, nil)

	if m.config.Identity == nil {
		return nil
	}
	user, err := m.config.Identity.CurrentUser(ctx)
	if err != nil {
		return err
	}
	m.HandleIdentity(ctx, user)

	m.lock.Lock()
	if m.watching {
		m.lock.Unlock()
		return nil
	}
	m.watching = true
	m.lock.Unlock()

	updates, cancel := m.config.Identity.Subscribe()
	go m.watch(context.WithoutCancel(ctx), updates, cancel)
	return nil
}

func (m *Manager) watch(ctx context.Context, updates <-chan id.User, cancel func()) {
	defer close(m.done)
	defer cancel()
	for {
		select {
		case user, ok := <-updates:
			if !ok {
				return
			}
			m.HandleIdentity(ctx, user)
		case <-m.stop:
			return
		}
	}
}

// Close stops watching the identity provider. It does not lock the session.
func (m *Manager) Close() {
	m.stopOnce.Do(func() { close(m.stop) })

	m.lock.RLock()
	watching := m.watching
	m.lock.RUnlock()
	if watching {
		<-m.done
	}
}

// HandleIdentity reacts to an identity state change. Once the identity provider has loaded, a user
// that is not signed in, or a different user, forces Lock.
func (m *Manager) HandleIdentity(ctx context.Context, user id.User) {
	if !user.IsLoaded {
		return
	}
	signedOut := !user.IsSignedIn || user.ID != m.config.UID

	m.lock.Lock()
	m.signedOut = signedOut
	m.lock.Unlock()

	if signedOut {
		ctx = log.CopyCtxLogger(ctx)
		log.WithMethod(ctx, "sign out")
		log.Ctx(ctx).Info().Msg("user signed out, locking")
		if err := m.Lock(ctx); err != nil {
			log.Ctx(ctx).Error().Err(err).Msg("failed to clear persisted key on sign out")
		}
	}
}

func (m *Manager) fetchHasSetup(ctx context.Context) (bool, error) {
	profile, err := m.config.Profiles.GetProfile(ctx, m.config.UID)
	if errors.Is(err, storage.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return profile.HasSetup(), nil
}

//////////////////////////////////////////////////////
//                    Accessors                     //
//////////////////////////////////////////////////////

// DecryptionKey returns the cached key, or nil while locked. The returned key stays valid for
// operations already holding it even if the session is locked afterwards.
func (m *Manager) DecryptionKey() *crypto.Key {
	m.lock.RLock()
	defer m.lock.RUnlock()
	return m.key
}

// RequireKey returns the cached key or ErrLocked.
func (m *Manager) RequireKey() (*crypto.Key, error) {
	if k := m.DecryptionKey(); k != nil {
		return k, nil
	}
	return nil, ErrLocked
}

// IsUnlocked reports whether a key is cached.
func (m *Manager) IsUnlocked() bool {
	return m.DecryptionKey() != nil
}

// HasSetup reports whether the user has a wrapped key record.
func (m *Manager) HasSetup() bool {
	m.lock.RLock()
	defer m.lock.RUnlock()
	return m.hasSetup
}

// IsLoading reports whether Init has not yet finished.
func (m *Manager) IsLoading() bool {
	m.lock.RLock()
	defer m.lock.RUnlock()
	return m.loading
}

// UID returns the user owning the session.
func (m *Manager) UID() string {
	return m.config.UID
}

// State returns a snapshot of the manager.
func (m *Manager) State() State {
	m.lock.RLock()
	defer m.lock.RUnlock()

	setup := keywrap.NoKeySetup
	switch {
	case m.hasSetup:
		setup = keywrap.KeyWrappedAndStored
	case m.setupInProgress:
		setup = keywrap.KeySetupInProgress
	}
	return State{Setup: setup, Unlocked: m.key != nil, Loading: m.loading, Tier: m.tier}
}
