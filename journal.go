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

/*
Journal is a library for keeping a mood journal whose free text, tags, locations and images are
encrypted on the user's device. The backing document store and object storage only ever see
ciphertext once the user has set up encryption with a passphrase.
*/
package journal

import (
	"context"
	"errors"
	"net/http"

	"github.com/rs/zerolog"

	"github.com/cybercryptio/journal-lib/envelope"
	"github.com/cybercryptio/journal-lib/id"
	"github.com/cybercryptio/journal-lib/key"
	"github.com/cybercryptio/journal-lib/keywrap"
	"github.com/cybercryptio/journal-lib/log"
	"github.com/cybercryptio/journal-lib/metrics"
	"github.com/cybercryptio/journal-lib/migrate"
	"github.com/cybercryptio/journal-lib/session"
	"github.com/cybercryptio/journal-lib/storage"
)

// Error returned if the caller tries to change or read an entry owned by another user.
var ErrNotOwner = errors.New("entry belongs to another user")

// Error returned if an entry is written before the session has finished loading.
var ErrLoading = errors.New("journal is still loading")

// Error returned if an entry has no attached image.
var ErrNoImage = errors.New("entry has no image")

// ObjectStore holds encrypted images.
type ObjectStore interface {
	envelope.Uploader
	envelope.Downloader
	URL(ctx context.Context, storageID string) (string, error)
	Delete(ctx context.Context, storageID string) error
}

// Options holds the collaborators of a Journal.
type Options struct {
	// UID is the user owning the journal.
	UID string

	// Store holds profiles and entries.
	Store storage.Store

	// Objects holds encrypted images. Optional; image operations fail without it.
	Objects ObjectStore

	// Identity reports sign-out. Optional.
	Identity id.Provider

	// Tiers persists the unwrapped key. Optional.
	Tiers *key.Tiers

	// Metrics records operation outcomes. Optional.
	Metrics metrics.Recorder

	// Wrap tunes key derivation.
	Wrap keywrap.Options
}

// Journal is the entry point to the library. All journal functionality is exposed through methods
// on this struct.
type Journal struct {
	uid     string
	store   storage.Store
	objects ObjectStore
	metrics metrics.Recorder
	session *session.Manager

	logger         *zerolog.Logger
	metricsHandler http.Handler
	closers        []func(context.Context) error
}

// New creates a Journal for a single user. Init must be called before entries are written.
func New(options Options) *Journal {
	if options.Metrics == nil {
		options.Metrics = metrics.NoOp{}
	}
	return &Journal{
		uid:     options.UID,
		store:   options.Store,
		objects: options.Objects,
		metrics: options.Metrics,
		session: session.New(session.Config{
			UID:      options.UID,
			Profiles: options.Store,
			Identity: options.Identity,
			Tiers:    options.Tiers,
			Metrics:  options.Metrics,
			Wrap:     options.Wrap,
		}),
	}
}

// Init restores the session. See session.Manager.Init.
func (j *Journal) Init(ctx context.Context) error {
	return j.session.Init(j.context(ctx))
}

// Close stops the session and releases everything opened by Open. It does not lock the session.
func (j *Journal) Close(ctx context.Context) error {
	j.session.Close()

	var errs []error
	for i := len(j.closers) - 1; i >= 0; i-- {
		errs = append(errs, j.closers[i](ctx))
	}
	j.closers = nil
	return errors.Join(errs...)
}

// context attaches the journal's logger unless the caller brought one.
func (j *Journal) context(ctx context.Context) context.Context {
	if j.logger == nil || log.Ctx(ctx).GetLevel() != zerolog.Disabled {
		return ctx
	}
	return j.logger.WithContext(ctx)
}

// Session returns the key lifecycle manager.
func (j *Journal) Session() *session.Manager {
	return j.session
}

// MetricsHandler serves the Prometheus metrics of a Journal created with Open and metrics
// enabled. It is nil otherwise.
func (j *Journal) MetricsHandler() http.Handler {
	return j.metricsHandler
}

//////////////////////////////////////////////////////
//                    Encryption                    //
//////////////////////////////////////////////////////

// SetupEncryption sets up encryption with passphrase and then encrypts the notes and tags of every
// entry written before. Migration failures of single entries are reported, not returned.
func (j *Journal) SetupEncryption(ctx context.Context, passphrase string, remember bool, onProgress migrate.ProgressFunc) (migrate.Report, error) {
	ctx = j.context(ctx)
	if err := j.session.SetupEncryption(ctx, passphrase, remember); err != nil {
		return migrate.Report{}, err
	}

	dek, err := j.session.RequireKey()
	if err != nil {
		return migrate.Report{}, err
	}
	return migrate.Run(ctx, j.store, j.uid, dek, migrate.Options{
		OnProgress: onProgress,
		Metrics:    j.metrics,
	})
}

// Unlock unlocks the journal with passphrase.
func (j *Journal) Unlock(ctx context.Context, passphrase string, remember bool) error {
	return j.session.UnlockWithPassphrase(j.context(ctx), passphrase, remember)
}

// Lock forgets the key until the next Unlock.
func (j *Journal) Lock(ctx context.Context) error {
	return j.session.Lock(j.context(ctx))
}

// ResetEncryption removes the wrapped key. Entries encrypted under it can no longer be read.
func (j *Journal) ResetEncryption(ctx context.Context) error {
	return j.session.ResetEncryption(j.context(ctx))
}

// State returns a snapshot of the encryption state.
func (j *Journal) State() session.State {
	return j.session.State()
}
