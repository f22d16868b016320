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

// Package objectstore moves encrypted image bytes to and from a gocloud.dev bucket. It never sees
// plaintext; callers encrypt before Upload and decrypt after Download.
package objectstore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/gofrs/uuid"
	"gocloud.dev/blob"
	_ "gocloud.dev/blob/fileblob"
	_ "gocloud.dev/blob/memblob"
	"gocloud.dev/gcerrors"
)

// Error returned if no object exists for a storage ID.
var ErrNotFound = errors.New("object not found")

// URLExpiry is the validity of URLs returned by Store.URL.
const URLExpiry = 15 * time.Minute

const contentType = "application/octet-stream"

// Store is an object store on top of a gocloud.dev bucket.
type Store struct {
	bucket *blob.Bucket
}

// Open opens the bucket at url, e.g. "mem://" or "file:///var/lib/journal/blobs".
func Open(ctx context.Context, url string) (*Store, error) {
	bucket, err := blob.OpenBucket(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("failed to open bucket: %w", err)
	}
	return New(bucket), nil
}

// New creates a Store on an already opened bucket. The Store takes ownership of the bucket.
func New(bucket *blob.Bucket) *Store {
	return &Store{bucket: bucket}
}

func translate(err error) error {
	if gcerrors.Code(err) == gcerrors.NotFound {
		return ErrNotFound
	}
	return err
}

// Upload stores data under a new random storage ID and returns the ID.
func (s *Store) Upload(ctx context.Context, data []byte) (string, error) {
	storageID := uuid.Must(uuid.NewV4()).String()
	err := s.bucket.WriteAll(ctx, storageID, data, &blob.WriterOptions{ContentType: contentType})
	if err != nil {
		return "", fmt.Errorf("failed to upload object: %w", err)
	}
	return storageID, nil
}

// Download returns the bytes stored under storageID.
func (s *Store) Download(ctx context.Context, storageID string) ([]byte, error) {
	data, err := s.bucket.ReadAll(ctx, storageID)
	if err != nil {
		return nil, translate(err)
	}
	return data, nil
}

// URL returns a signed URL for fetching the ciphertext stored under storageID.
func (s *Store) URL(ctx context.Context, storageID string) (string, error) {
	exists, err := s.bucket.Exists(ctx, storageID)
	if err != nil {
		return "", err
	}
	if !exists {
		return "", ErrNotFound
	}
	return s.bucket.SignedURL(ctx, storageID, &blob.SignedURLOptions{Expiry: URLExpiry})
}

// Delete removes the object stored under storageID.
func (s *Store) Delete(ctx context.Context, storageID string) error {
	return translate(s.bucket.Delete(ctx, storageID))
}

// Close closes the underlying bucket.
func (s *Store) Close() error {
	return s.bucket.Close()
}
