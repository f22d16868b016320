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

// Package config loads the journal configuration from the environment.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/allisson/go-env"
	"github.com/joho/godotenv"

	"github.com/cybercryptio/journal-lib/crypto"
)

// Error returned if the configured KDF iteration count is below crypto.MinIterations.
var ErrWeakIterations = fmt.Errorf("JOURNAL_KDF_ITERATIONS must be at least %d", crypto.MinIterations)

// Error returned if a required path or URL is empty.
var ErrMissingValue = errors.New("missing configuration value")

// Config holds the journal configuration.
type Config struct {
	// KDFIterations is the PBKDF2 cost used when setting up encryption.
	KDFIterations int
	// LogLevel is the zerolog level name.
	LogLevel string

	// DurableKeyPath is the bbolt file holding the "remember me" key slot.
	DurableKeyPath string
	// StorePath is the bbolt file used as document store when MongoURI is empty.
	StorePath string

	// MongoURI selects MongoDB as document store when set.
	MongoURI string
	// MongoDatabase is the MongoDB database name.
	MongoDatabase string

	// BlobBucketURL is the gocloud.dev URL of the bucket holding encrypted images.
	BlobBucketURL string

	// MetricsEnabled turns on operation metrics.
	MetricsEnabled bool
	// MetricsNamespace prefixes all metric names.
	MetricsNamespace string
}

// Load loads configuration from environment variables and the nearest .env file.
func Load() *Config {
	loadDotEnv()

	return &Config{
		KDFIterations: env.GetInt("JOURNAL_KDF_ITERATIONS", crypto.DefaultIterations),
		LogLevel:      env.GetString("JOURNAL_LOG_LEVEL", "info"),

		DurableKeyPath: env.GetString("JOURNAL_DURABLE_KEY_PATH", "journal-keys.db"),
		StorePath:      env.GetString("JOURNAL_STORE_PATH", "journal.db"),

		MongoURI:      env.GetString("JOURNAL_MONGO_URI", ""),
		MongoDatabase: env.GetString("JOURNAL_MONGO_DATABASE", "journal"),

		BlobBucketURL: env.GetString("JOURNAL_BLOB_BUCKET_URL", "mem://"),

		MetricsEnabled:   env.GetBool("JOURNAL_METRICS_ENABLED", false),
		MetricsNamespace: env.GetString("JOURNAL_METRICS_NAMESPACE", "journal"),
	}
}

// Validate checks the configuration for values that would weaken or break encryption.
func (c *Config) Validate() error {
	if c.KDFIterations < crypto.MinIterations {
		return ErrWeakIterations
	}
	if c.DurableKeyPath == "" {
		return fmt.Errorf("%w: JOURNAL_DURABLE_KEY_PATH", ErrMissingValue)
	}
	if c.MongoURI == "" && c.StorePath == "" {
		return fmt.Errorf("%w: JOURNAL_STORE_PATH", ErrMissingValue)
	}
	if c.MongoURI != "" && c.MongoDatabase == "" {
		return fmt.Errorf("%w: JOURNAL_MONGO_DATABASE", ErrMissingValue)
	}
	if c.BlobBucketURL == "" {
		return fmt.Errorf("%w: JOURNAL_BLOB_BUCKET_URL", ErrMissingValue)
	}
	return nil
}

// loadDotEnv loads the first .env file found walking up from the working directory.
func loadDotEnv() {
	dir, err := os.Getwd()
	if err != nil {
		return
	}
	for {
		envPath := filepath.Join(dir, ".env")
		if _, err := os.Stat(envPath); err == nil {
			_ = godotenv.Load(envPath)
			return
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return
		}
		dir = parent
	}
}
