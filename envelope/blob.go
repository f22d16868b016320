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

package envelope

import (
	"context"

	"github.com/cybercryptio/journal-lib/crypto"
)

// Uploader stores bytes and returns an identifier for them.
type Uploader interface {
	Upload(ctx context.Context, data []byte) (string, error)
}

// Downloader fetches bytes previously stored by an Uploader.
type Downloader interface {
	Download(ctx context.Context, storageID string) ([]byte, error)
}

// Image references an encrypted image in object storage.
type Image struct {
	StorageID string
	IV        string
}

// EncryptBlob encrypts raw bytes under a fresh IV.
func EncryptBlob(data []byte, key *crypto.Key) (ciphertext, iv []byte, err error) {
	return cryptor.EncryptBlob(data, key)
}

// DecryptBlob decrypts raw bytes produced by EncryptBlob.
func DecryptBlob(ciphertext, iv []byte, key *crypto.Key) ([]byte, error) {
	return cryptor.DecryptBlob(ciphertext, iv, key)
}

// SealImage encrypts an image and uploads the ciphertext. Only ciphertext reaches the uploader.
func SealImage(ctx context.Context, uploader Uploader, image []byte, key *crypto.Key) (Image, error) {
	ciphertext, iv, err := EncryptBlob(image, key)
	if err != nil {
		return Image{}, err
	}
	storageID, err := uploader.Upload(ctx, ciphertext)
	if err != nil {
		return Image{}, err
	}
	return Image{StorageID: storageID, IV: crypto.Encode(iv)}, nil
}

// OpenImage downloads and decrypts an image. Download errors are returned as is; decryption
// failures are reported as a FieldError.
func OpenImage(ctx context.Context, downloader Downloader, image Image, key *crypto.Key) ([]byte, error) {
	ciphertext, err := downloader.Download(ctx, image.StorageID)
	if err != nil {
		return nil, err
	}
	iv, err := crypto.Decode(image.IV)
	if err != nil {
		return nil, fieldError(FieldImage)
	}
	plaintext, err := DecryptBlob(ciphertext, iv, key)
	if err != nil {
		return nil, fieldError(FieldImage)
	}
	return plaintext, nil
}
