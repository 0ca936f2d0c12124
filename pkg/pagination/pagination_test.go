package pagination

import (
	"encoding/base64"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

func TestNormalizeLimit(t *testing.T) {
	tests := []struct{ in, want int }{
		{0, DefaultLimit},
		{-3, DefaultLimit},
		{10, 10},
		{500, MaxLimit},
	}
	for _, tt := range tests {
		if got := NormalizeLimit(tt.in); got != tt.want {
			t.Fatalf("NormalizeLimit(%d) = %d, want %d", tt.in, got, tt.want)
		}
	}
}

func TestCursorRoundTrip(t *testing.T) {
	in := Cursor{CreatedAt: time.Date(2024, 6, 1, 18, 30, 0, 0, time.UTC), ID: uuid.New()}
	out, err := ParseCursor(in.String())
	if err != nil {
		t.Fatalf("ParseCursor: %v", err)
	}
	if !out.CreatedAt.Equal(in.CreatedAt) || out.ID != in.ID {
		t.Fatalf("cursor mismatch: %+v vs %+v", out, in)
	}
	if c, err := ParseCursor(""); err != nil || c != nil {
		t.Fatalf("empty cursor should be nil, got %+v %v", c, err)
	}
	if _, err := ParseCursor("!!"); err == nil {
		t.Fatal("expected bad base64 to fail")
	}
}

func TestBuildPage(t *testing.T) {
	type row struct {
		id uuid.UUID
		at time.Time
	}
	now := time.Now().UTC()
	rows := []row{{uuid.New(), now}, {uuid.New(), now.Add(-time.Minute)}, {uuid.New(), now.Add(-2 * time.Minute)}}
	cursorOf := func(r row) Cursor { return Cursor{CreatedAt: r.at, ID: r.id} }

	page := BuildPage(rows, 2, cursorOf)
	if len(page.Items) != 2 || page.NextCursor == "" {
		t.Fatalf("expected 2 items with a next cursor, got %d %q", len(page.Items), page.NextCursor)
	}
	next, err := ParseCursor(page.NextCursor)
	if err != nil || next.ID != rows[1].id {
		t.Fatalf("next cursor should point at the last kept row: %+v %v", next, err)
	}

	last := BuildPage(rows[:1], 2, cursorOf)
	if last.NextCursor != "" || len(last.Items) != 1 {
		t.Fatalf("unexpected final page %+v", last)
	}
	empty := BuildPage[row](nil, 2, cursorOf)
	if empty.Items == nil {
		t.Fatal("empty page should serialize as []")
	}
}

func TestParseCursorRejectsHollowTokens(t *testing.T) {
	for _, token := range []string{
		base64.RawURLEncoding.EncodeToString([]byte(`{}`)),
		base64.RawURLEncoding.EncodeToString([]byte(`not json`)),
		Cursor{CreatedAt: time.Now()}.String(),
	} {
		if _, err := ParseCursor(token); err == nil {
			t.Fatalf("expected %q to be rejected", token)
		}
	}
}

func TestKeysetScope(t *testing.T) {
	db, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{DryRun: true})
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	type listing struct {
		ID        uuid.UUID
		CreatedAt time.Time
	}

	first := db.Model(&listing{}).Scopes(Keyset(0, nil)).Find(&[]listing{}).Statement
	if strings.Contains(first.SQL.String(), "WHERE") {
		t.Fatalf("first page should not filter: %s", first.SQL.String())
	}
	if !strings.Contains(first.SQL.String(), "ORDER BY created_at DESC,id DESC") {
		t.Fatalf("unexpected first page order: %s", first.SQL.String())
	}
	assertLimit(t, first, 26)

	cursor := &Cursor{CreatedAt: time.Now(), ID: uuid.New()}
	next := db.Model(&listing{}).Where("status = ?", "open").Scopes(Keyset(10, cursor)).Find(&[]listing{}).Statement
	if !strings.Contains(next.SQL.String(), "status = ? AND (created_at < ? OR (created_at = ? AND id < ?))") {
		t.Fatalf("cursor predicate not and-ed with filters: %s", next.SQL.String())
	}
	assertLimit(t, next, 11)
}

// assertLimit accepts the limit inlined or bound as the last parameter.
func assertLimit(t *testing.T, stmt *gorm.Statement, want int) {
	t.Helper()
	sql := stmt.SQL.String()
	if strings.Contains(sql, fmt.Sprintf("LIMIT %d", want)) {
		return
	}
	if n := len(stmt.Vars); strings.Contains(sql, "LIMIT ?") && n > 0 && stmt.Vars[n-1] == want {
		return
	}
	t.Fatalf("expected limit %d: %s %v", want, sql, stmt.Vars)
}
