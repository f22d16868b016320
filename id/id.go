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

// Package id tracks who is signed in. The journal only needs a stable user ID and to be told when
// the user signs out.
package id

import (
	"context"
	"errors"
)

// Error returned if an operation requires a signed in user.
var ErrNotAuthenticated = errors.New("user not authenticated")

// User represents the state of the current user as reported by the identity provider.
type User struct {
	ID string

	// IsLoaded is false until the provider has determined whether someone is signed in.
	IsLoaded bool

	IsSignedIn bool
}

// Provider is the interface an identity provider must implement.
type Provider interface {
	// CurrentUser returns the current user.
	CurrentUser(ctx context.Context) (User, error)

	// Subscribe returns a channel receiving the user every time the state changes, and a function
	// that ends the subscription and closes the channel. Slow receivers only see the latest state.
	Subscribe() (<-chan User, func())
}
