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
	"fmt"
	"sync"
)

// Mem is an in-memory IO Provider. Its contents are lost when the process exits, which makes it
// suitable as the session tier of the key store and for tests.
type Mem struct {
	data sync.Map
}

// NewMem creates an empty in-memory IO Provider.
func NewMem() *Mem {
	return &Mem{}
}

func memKey(id []byte, dataType DataType) string {
	return fmt.Sprintf("%x:%s", id, dataType.String())
}

func clone(data []byte) []byte {
	return append(make([]byte, 0, len(data)), data...)
}

func (m *Mem) Put(ctx context.Context, id []byte, dataType DataType, data []byte) error {
	if _, loaded := m.data.LoadOrStore(memKey(id, dataType), clone(data)); loaded {
		return ErrAlreadyExists
	}
	return nil
}

func (m *Mem) Get(ctx context.Context, id []byte, dataType DataType) ([]byte, error) {
	out, ok := m.data.Load(memKey(id, dataType))
	if !ok {
		return nil, ErrNotFound
	}
	return clone(out.([]byte)), nil
}

func (m *Mem) Update(ctx context.Context, id []byte, dataType DataType, data []byte) error {
	key := memKey(id, dataType)
	if _, ok := m.data.Load(key); !ok {
		return ErrNotFound
	}
	m.data.Store(key, clone(data))
	return nil
}

func (m *Mem) Delete(ctx context.Context, id []byte, dataType DataType) error {
	m.data.Delete(memKey(id, dataType))
	return nil
}
