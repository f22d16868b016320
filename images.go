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

	"github.com/cybercryptio/journal-lib/crypto"
	"github.com/cybercryptio/journal-lib/data"
	"github.com/cybercryptio/journal-lib/envelope"
	"github.com/cybercryptio/journal-lib/log"
	"github.com/cybercryptio/journal-lib/objectstore"
	"github.com/cybercryptio/journal-lib/session"
)

// Error returned by image operations on a Journal without object storage.
var ErrNoObjectStore = errors.New("no object store configured")

// imageKey returns the key for image operations. Images are never stored unencrypted.
func (j *Journal) imageKey() (*crypto.Key, error) {
	if j.objects == nil {
		return nil, ErrNoObjectStore
	}
	if !j.session.HasSetup() {
		return nil, session.ErrNotSetup
	}
	return j.session.RequireKey()
}

func (j *Journal) deleteObject(ctx context.Context, storageID string) error {
	err := j.objects.Delete(ctx, storageID)
	if errors.Is(err, objectstore.ErrNotFound) {
		return nil
	}
	return err
}

// AttachImage encrypts image and uploads the ciphertext, replacing any image already attached to
// the entry.
func (j *Journal) AttachImage(ctx context.Context, entryID string, image []byte) error {
	ctx = log.CopyCtxLogger(j.context(ctx))
	log.WithMethod(ctx, "attach image")
	log.WithUID(ctx, j.uid)
	log.WithEID(ctx, entryID)

	dek, err := j.imageKey()
	if err != nil {
		return err
	}
	entry, err := j.owned(ctx, entryID)
	if err != nil {
		return err
	}

	sealed, err := envelope.SealImage(ctx, j.objects, image, dek)
	if err != nil {
		return err
	}

	err = j.store.PatchEntry(ctx, entryID, data.EntryPatch{
		EncryptedImageStorageID: &sealed.StorageID,
		EncryptedImageIV:        &sealed.IV,
	})
	if err != nil {
		if delErr := j.deleteObject(ctx, sealed.StorageID); delErr != nil {
			log.Ctx(ctx).Warn().Err(delErr).Str("storageId", sealed.StorageID).Msg("failed to remove orphaned image")
		}
		return err
	}

	if entry.HasImage() {
		if err := j.deleteObject(ctx, entry.EncryptedImageStorageID); err != nil {
			log.Ctx(ctx).Warn().Err(err).Str("storageId", entry.EncryptedImageStorageID).Msg("failed to remove replaced image")
		}
	}
	log.Ctx(ctx).Debug().Str("storageId", sealed.StorageID).Msg("image attached")
	return nil
}

// Image downloads and decrypts the image attached to an entry. A decryption failure is reported as
// an envelope.FieldError for envelope.FieldImage.
func (j *Journal) Image(ctx context.Context, entryID string) ([]byte, error) {
	ctx = log.CopyCtxLogger(j.context(ctx))
	log.WithMethod(ctx, "image")
	log.WithUID(ctx, j.uid)
	log.WithEID(ctx, entryID)

	dek, err := j.imageKey()
	if err != nil {
		return nil, err
	}
	entry, err := j.owned(ctx, entryID)
	if err != nil {
		return nil, err
	}
	if !entry.HasImage() {
		return nil, ErrNoImage
	}

	return envelope.OpenImage(ctx, j.objects, envelope.Image{
		StorageID: entry.EncryptedImageStorageID,
		IV:        entry.EncryptedImageIV,
	}, dek)
}

// ImageURL returns a URL serving the image ciphertext of an entry, along with the IV needed to
// decrypt it with envelope.DecryptBlob.
func (j *Journal) ImageURL(ctx context.Context, entryID string) (url string, iv string, err error) {
	ctx = log.CopyCtxLogger(j.context(ctx))
	log.WithMethod(ctx, "image url")
	log.WithUID(ctx, j.uid)
	log.WithEID(ctx, entryID)

	if j.objects == nil {
		return "", "", ErrNoObjectStore
	}
	entry, err := j.owned(ctx, entryID)
	if err != nil {
		return "", "", err
	}
	if !entry.HasImage() {
		return "", "", ErrNoImage
	}

	url, err = j.objects.URL(ctx, entry.EncryptedImageStorageID)
	if err != nil {
		return "", "", err
	}
	return url, entry.EncryptedImageIV, nil
}
