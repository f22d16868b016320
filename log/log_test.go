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
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/rs/zerolog"
)

// Test that fields added to a copied logger do not leak to the original.
func TestCopyCtxLogger(t *testing.T) {
	var buf bytes.Buffer
	logger := New("debug", &buf)
	ctx := logger.WithContext(context.Background())

	copied := CopyCtxLogger(ctx)
	WithMethod(copied, "unlock")
	WithUID(copied, "alice")
	WithEID(copied, "entry-1")
	Ctx(copied).Debug().Msg("copied")
	Ctx(ctx).Debug().Msg("original")

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 2 {
		t.Fatalf("expected 2 lines, got %d", len(lines))
	}
	for _, field := range []string{`"method":"unlock"`, `"uid":"alice"`, `"eid":"entry-1"`} {
		if !strings.Contains(lines[0], field) {
			t.Fatalf("missing %s in %s", field, lines[0])
		}
	}
	if strings.Contains(lines[1], "method") {
		t.Fatalf("field leaked to original logger: %s", lines[1])
	}
}

// Test that a context without a logger is silently accepted.
func TestNoLogger(t *testing.T) {
	ctx := CopyCtxLogger(context.Background())
	WithMethod(ctx, "noop")
	Ctx(ctx).Info().Msg("dropped")
	if Ctx(ctx).GetLevel() != zerolog.Disabled {
		t.Fatal("expected disabled logger")
	}
}

func TestNewLevel(t *testing.T) {
	if New("warn", &bytes.Buffer{}).GetLevel() != zerolog.WarnLevel {
		t.Fatal("expected warn level")
	}
	if New("bogus", &bytes.Buffer{}).GetLevel() != zerolog.InfoLevel {
		t.Fatal("expected fallback to info")
	}
}
