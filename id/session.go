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

package id

import (
	"context"
	"sync"

	"github.com/cybercryptio/journal-lib/log"
)

// Session is an in-memory identity provider driven by explicit sign in and sign out calls. It
// stands in for the host application's authentication.
type Session struct {
	lock   sync.Mutex
	user   User
	subs   map[int]chan User
	nextID int
}

// NewSession creates a provider that has not yet determined the user.
func NewSession() *Session {
	return &Session{subs: map[int]chan User{}}
}

func (s *Session) CurrentUser(ctx context.Context) (User, error) {
	s.lock.Lock()
	defer s.lock.Unlock()
	return s.user, nil
}

func (s *Session) Subscribe() (<-chan User, func()) {
	s.lock.Lock()
	defer s.lock.Unlock()

	id := s.nextID
	s.nextID++
	ch := make(chan User, 1)
	s.subs[id] = ch

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			s.lock.Lock()
			defer s.lock.Unlock()
			delete(s.subs, id)
			close(ch)
		})
	}
}

// SignIn marks uid as signed in.
func (s *Session) SignIn(ctx context.Context, uid string) {
	ctx = log.CopyCtxLogger(ctx)
	log.WithMethod(ctx, "sign in")
	log.WithUID(ctx, uid)
	log.Ctx(ctx).Debug().Msg("signing in")

	s.set(User{ID: uid, IsLoaded: true, IsSignedIn: true})
}

// SignOut marks the current user as signed out.
func (s *Session) SignOut(ctx context.Context) {
	ctx = log.CopyCtxLogger(ctx)
	log.WithMethod(ctx, "sign out")
	log.Ctx(ctx).Debug().Msg("signing out")

	s.set(User{IsLoaded: true})
}

func (s *Session) set(user User) {
	s.lock.Lock()
	defer s.lock.Unlock()

	s.user = user
	for _, ch := range s.subs {
		// Replace any state the subscriber has not consumed yet.
		select {
		case <-ch:
		default:
		}
		ch <- user
	}
}
