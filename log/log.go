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

package log

import (
	"context"
	"io"
	"os"

	"github.com/rs/zerolog"
)

// Ctx returns the logger attached to ctx. If none is attached a disabled logger is returned, so the
// library is silent unless the host application attaches one.
func Ctx(ctx context.Context) *zerolog.Logger {
	return zerolog.Ctx(ctx)
}

// CopyCtxLogger returns a context holding a copy of the context logger, so fields added with the
// With* functions do not leak to the caller's logger.
func CopyCtxLogger(ctx context.Context) context.Context {
	logger := Ctx(ctx).With().Logger()
	return logger.WithContext(ctx)
}

// WithMethod adds a method field to the context logger.
func WithMethod(ctx context.Context, method string) {
	Ctx(ctx).UpdateContext(func(c zerolog.Context) zerolog.Context {
		return c.Str("method", method)
	})
}

// WithUID adds a user ID field to the context logger.
func WithUID(ctx context.Context, uid string) {
	Ctx(ctx).UpdateContext(func(c zerolog.Context) zerolog.Context {
		return c.Str("uid", uid)
	})
}

// WithEID adds an entry ID field to the context logger.
func WithEID(ctx context.Context, eid string) {
	Ctx(ctx).UpdateContext(func(c zerolog.Context) zerolog.Context {
		return c.Str("eid", eid)
	})
}

// New creates a JSON logger writing to w at the given level. An unknown level falls back to info.
// A nil writer means stderr.
func New(level string, w io.Writer) zerolog.Logger {
	if w == nil {
		w = os.Stderr
	}
	lvl, err := zerolog.ParseLevel(level)
	if err != nil || level == "" {
		lvl = zerolog.InfoLevel
	}
	return zerolog.New(w).Level(lvl).With().Timestamp().Logger()
}
