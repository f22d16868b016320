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

package io

import (
	"context"
	"time"

	bolt "go.etcd.io/bbolt"
)

// Bolt is an IO Provider backed by a single bbolt file. It is used as the durable key tier and as
// the embedded document store.
type Bolt struct {
	store  *bolt.DB
	bucket []byte
}

// NewBolt opens (or creates) the bbolt database at path.
func NewBolt(path string) (*Bolt, error) {
	store, err := bolt.Open(path, 0600, &bolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return nil, err
	}

	bucket := []byte("journal")
	err = store.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(bucket)
		return err
	})
	if err != nil {
		store.Close()
		return nil, err
	}

	return &Bolt{store, bucket}, nil
}

// Close releases the file lock held on the database.
func (b *Bolt) Close() error {
	return b.store.Close()
}

func boltKey(id []byte, dataType DataType) []byte {
	key := make([]byte, 0, len(id)+len(dataType.Bytes()))
	key = append(key, id...)
	return append(key, dataType.Bytes()...)
}

func (b *Bolt) Put(ctx context.Context, id []byte, dataType DataType, data []byte) error {
	key := boltKey(id, dataType)
	return b.store.Update(func(tx *bolt.Tx) error {
		bkt := tx.Bucket(b.bucket)
		if bkt.Get(key) != nil {
			return ErrAlreadyExists
		}
		return bkt.Put(key, data)
	})
}

func (b *Bolt) Get(ctx context.Context, id []byte, dataType DataType) ([]byte, error) {
	key := boltKey(id, dataType)
	var out []byte
	err := b.store.View(func(tx *bolt.Tx) error {
		if v := tx.Bucket(b.bucket).Get(key); v != nil {
			out = clone(v)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	if out == nil {
		return nil, ErrNotFound
	}
	return out, nil
}

func (b *Bolt) Update(ctx context.Context, id []byte, dataType DataType, data []byte) error {
	key := boltKey(id, dataType)
	return b.store.Update(func(tx *bolt.Tx) error {
		bkt := tx.Bucket(b.bucket)
		if bkt.Get(key) == nil {
			return ErrNotFound
		}
		return bkt.Put(key, data)
	})
}

func (b *Bolt) Delete(ctx context.Context, id []byte, dataType DataType) error {
	key := boltKey(id, dataType)
	return b.store.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(b.bucket).Delete(key)
	})
}
