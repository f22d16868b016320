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
	"errors"

	"github.com/cybercryptio/journal-lib/config"
	"github.com/cybercryptio/journal-lib/id"
	"github.com/cybercryptio/journal-lib/io"
	"github.com/cybercryptio/journal-lib/key"
	"github.com/cybercryptio/journal-lib/keywrap"
	"github.com/cybercryptio/journal-lib/log"
	"github.com/cybercryptio/journal-lib/metrics"
	"github.com/cybercryptio/journal-lib/objectstore"
	"github.com/cybercryptio/journal-lib/storage"
)

// Open creates and initializes a Journal for uid from cfg:
//   - MongoDB is used as document store if cfg.MongoURI is set, a bbolt file at cfg.StorePath
//     otherwise.
//   - The session key tier is kept in memory, the durable tier in a bbolt file at
//     cfg.DurableKeyPath.
//   - Images go to the bucket at cfg.BlobBucketURL.
//   - Metrics are recorded if cfg.MetricsEnabled, and served by MetricsHandler.
//
// The returned Journal must be closed.
func Open(ctx context.Context, cfg *config.Config, uid string, identity id.Provider) (j *Journal, err error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	logger := log.New(cfg.LogLevel, nil)
	ctx = logger.WithContext(ctx)

	var closers []func(context.Context) error
	defer func() {
		if err != nil {
			for i := len(closers) - 1; i >= 0; i-- {
				err = errors.Join(err, closers[i](ctx))
			}
		}
	}()

	var store storage.Store
	var storeDB *io.Bolt
	if cfg.MongoURI != "" {
		mongoStore, disconnect, err := storage.ConnectMongo(ctx, cfg.MongoURI, cfg.MongoDatabase)
		if err != nil {
			return nil, err
		}
		closers = append(closers, disconnect)
		store = mongoStore
	} else {
		storeDB, err = io.NewBolt(cfg.StorePath)
		if err != nil {
			return nil, err
		}
		closers = append(closers, func(context.Context) error { return storeDB.Close() })
		store = storage.NewProvider(storeDB)
	}

	// bbolt locks its file, so a shared path reuses the open database.
	durableDB := storeDB
	if storeDB == nil || cfg.DurableKeyPath != cfg.StorePath {
		durableDB, err = io.NewBolt(cfg.DurableKeyPath)
		if err != nil {
			return nil, err
		}
		closers = append(closers, func(context.Context) error { return durableDB.Close() })
	}
	tiers := key.NewTiers(
		key.NewSlotStore(io.NewMem(), key.SlotFor(uid)),
		key.NewSlotStore(durableDB, key.SlotFor(uid)),
	)

	objects, err := objectstore.Open(ctx, cfg.BlobBucketURL)
	if err != nil {
		return nil, err
	}
	closers = append(closers, func(context.Context) error { return objects.Close() })

	var recorder metrics.Recorder = metrics.NoOp{}
	var provider *metrics.Provider
	if cfg.MetricsEnabled {
		provider, err = metrics.NewProvider()
		if err != nil {
			return nil, err
		}
		closers = append(closers, provider.Shutdown)
		recorder, err = metrics.NewRecorder(provider.MeterProvider(), cfg.MetricsNamespace)
		if err != nil {
			return nil, err
		}
	}

	j = New(Options{
		UID:      uid,
		Store:    store,
		Objects:  objects,
		Identity: identity,
		Tiers:    tiers,
		Metrics:  recorder,
		Wrap:     keywrap.Options{Iterations: cfg.KDFIterations},
	})
	j.logger = &logger
	if provider != nil {
		j.metricsHandler = provider.Handler()
	}

	if err := j.Init(ctx); err != nil {
		j.session.Close()
		return nil, err
	}
	j.closers = closers
	log.Ctx(ctx).Info().Str("uid", uid).Msg("journal opened")
	return j, nil
}
