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

import "context"

// Proxy is an IO Provider that wraps other IO Providers.
// By default, it forwards calls directly to the implementation,
// but allows you to customize the behavior by changing the individual functions.
type Proxy struct {
	Implementation Provider
	PutFunc        func(ctx context.Context, id []byte, dataType DataType, data []byte) error
	GetFunc        func(ctx context.Context, id []byte, dataType DataType) ([]byte, error)
	UpdateFunc     func(ctx context.Context, id []byte, dataType DataType, data []byte) error
	DeleteFunc     func(ctx context.Context, id []byte, dataType DataType) error
}

func (o *Proxy) Put(ctx context.Context, id []byte, dataType DataType, data []byte) error {
	return o.PutFunc(ctx, id, dataType, data)
}

func (o *Proxy) Get(ctx context.Context, id []byte, dataType DataType) ([]byte, error) {
	return o.GetFunc(ctx, id, dataType)
}

func (o *Proxy) Update(ctx context.Context, id []byte, dataType DataType, data []byte) error {
	return o.UpdateFunc(ctx, id, dataType, data)
}

func (o *Proxy) Delete(ctx context.Context, id []byte, dataType DataType) error {
	return o.DeleteFunc(ctx, id, dataType)
}

// NewProxy creates a Proxy that forwards every call to implementation. Mostly useful for
// injecting failures in tests.
func NewProxy(implementation Provider) *Proxy {
	return &Proxy{
		Implementation: implementation,
		PutFunc:        implementation.Put,
		GetFunc:        implementation.Get,
		UpdateFunc:     implementation.Update,
		DeleteFunc:     implementation.Delete,
	}
}
