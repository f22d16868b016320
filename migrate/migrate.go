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

// Package migrate encrypts journal entries written before the user set up encryption.
package migrate

import (
	"context"
	"errors"
	"time"

	"github.com/cybercryptio/journal-lib/crypto"
	"github.com/cybercryptio/journal-lib/data"
	"github.com/cybercryptio/journal-lib/envelope"
	"github.com/cybercryptio/journal-lib/log"
	"github.com/cybercryptio/journal-lib/metrics"
)

// Error returned if Run is called without a key.
var ErrNoKey = errors.New("no key to migrate with")

// Entries is the part of the document store the migration needs.
type Entries interface {
	EntriesByUser(ctx context.Context, uid string) ([]data.Entry, error)
	PatchEntry(ctx context.Context, id string, patch data.EntryPatch) error
}

// ProgressFunc is called after each processed entry with the 1-based index and the number of
// entries to migrate.
type ProgressFunc func(current, total int)

// Options configure Run. The zero value is usable.
type Options struct {
	OnProgress ProgressFunc
	Metrics    metrics.Recorder
}

// Failure describes an entry that could not be migrated.
type Failure struct {
	EntryID string
	Err     error
}

// Report summarizes a migration run.
type Report struct {
	// Total is the number of entries holding plaintext notes or tags.
	Total int
	// Migrated is the number of entries whose encrypted fields were written.
	Migrated int
	// Failures lists the entries that could not be migrated.
	Failures []Failure
}

// Run encrypts the plaintext notes and tags of every entry of uid under key and writes the
// encrypted fields back. Entries are processed one at a time in the order the store returns them.
// Plaintext fields are left in place. A failing entry is logged and recorded in the report, and
// the run continues with the next one. Run only returns an error if the entries cannot be listed or
// ctx is cancelled.
func Run(ctx context.Context, store Entries, uid string, key *crypto.Key, opts Options) (Report, error) {
	ctx = log.CopyCtxLogger(ctx)
	log.WithMethod(ctx, "migrate")
	log.WithUID(ctx, uid)

	if key == nil {
		return Report{}, ErrNoKey
	}
	if opts.Metrics == nil {
		opts.Metrics = metrics.NoOp{}
	}

	entries, err := store.EntriesByUser(ctx, uid)
	if err != nil {
		return Report{}, err
	}

	pending := entries[:0:0]
	for _, entry := range entries {
		if entry.HasPlaintext() {
			pending = append(pending, entry)
		}
	}

	report := Report{Total: len(pending)}
	log.Ctx(ctx).Info().Int("total", report.Total).Msg("migrating plaintext entries")

	for i, entry := range pending {
		if err := ctx.Err(); err != nil {
			return report, err
		}

		start := time.Now()
		err := migrateEntry(ctx, store, entry, key)
		opts.Metrics.Observe(ctx, metrics.OperationMigrate, start, err)
		if err != nil {
			log.Ctx(ctx).Error().Err(err).Str("eid", entry.ID).Msg("failed to migrate entry")
			report.Failures = append(report.Failures, Failure{EntryID: entry.ID, Err: err})
		} else {
			report.Migrated++
		}

		if opts.OnProgress != nil {
			opts.OnProgress(i+1, report.Total)
		}
	}

	log.Ctx(ctx).Info().
		Int("migrated", report.Migrated).
		Int("failed", len(report.Failures)).
		Msg("migration finished")
	return report, nil
}

func migrateEntry(ctx context.Context, store Entries, entry data.Entry, key *crypto.Key) error {
	encrypted, err := envelope.EncryptEntry(entry.Notes, entry.Tags, key)
	if err != nil {
		return err
	}
	return store.PatchEntry(ctx, entry.ID, data.EntryPatch{
		EncryptedNotes: &encrypted.EncryptedNotes,
		EncryptedTags:  &encrypted.EncryptedTags,
		IV:             &encrypted.IV,
	})
}
