package sqlite

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/FranksOps/howto/internal/domain"
	"github.com/FranksOps/howto/internal/storage"
)

func TestSQLiteBackend(t *testing.T) {
	dsn := filepath.Join(t.TempDir(), "howto.db")
	b, err := New(dsn)
	if err != nil {
		t.Fatalf("Failed to create SQLite backend: %v", err)
	}
	defer b.Close()

	ctx := context.Background()
	now := time.Now().UTC()

	older := &storage.Record{
		ID:          "a1",
		Query:       "read+file+lines",
		Position:    0,
		Link:        "https://stackoverflow.com/questions/1",
		FullText:    "Use bufio",
		Instruction: "bufio.NewScanner(f)",
		CreatedAt:   now.Add(-time.Hour),
	}
	first := &storage.Record{
		ID:          "b1",
		Query:       "parse+json",
		Position:    0,
		Link:        "https://stackoverflow.com/questions/2",
		Instruction: "json.Unmarshal(b, &v)",
		CreatedAt:   now,
	}
	second := &storage.Record{
		ID:        "b2",
		Query:     "parse+json",
		Position:  1,
		Error:     "error in link https://stackoverflow.com/questions/3: network error",
		CreatedAt: now,
	}

	for _, r := range []*storage.Record{older, second, first} {
		if err := b.Save(ctx, r); err != nil {
			t.Fatalf("Failed to save record: %v", err)
		}
	}

	all, err := b.Query(ctx, storage.Filter{})
	if err != nil {
		t.Fatalf("Failed to query records: %v", err)
	}
	if len(all) != 3 {
		t.Fatalf("Expected 3 records, got %d", len(all))
	}
	if all[0].ID != "b1" || all[1].ID != "b2" || all[2].ID != "a1" {
		t.Errorf("Expected order [b1 b2 a1], got [%s %s %s]", all[0].ID, all[1].ID, all[2].ID)
	}

	byQuery, err := b.Query(ctx, storage.Filter{Query: "read+file+lines"})
	if err != nil {
		t.Fatalf("Failed to query by query: %v", err)
	}
	if len(byQuery) != 1 {
		t.Fatalf("Expected 1 record, got %d", len(byQuery))
	}
	got := byQuery[0]
	if got.Link != older.Link || got.FullText != older.FullText || got.Instruction != older.Instruction {
		t.Errorf("Expected %+v, got %+v", older, got)
	}
	if got.CreatedAt.Unix() != older.CreatedAt.Unix() {
		t.Errorf("Expected CreatedAt %v, got %v", older.CreatedAt, got.CreatedAt)
	}

	since := now.Add(-time.Minute)
	recent, err := b.Query(ctx, storage.Filter{Since: &since})
	if err != nil {
		t.Fatalf("Failed to query with Since: %v", err)
	}
	if len(recent) != 2 {
		t.Fatalf("Expected 2 recent records, got %d", len(recent))
	}

	page, err := b.Query(ctx, storage.Filter{Limit: 1, Offset: 1})
	if err != nil {
		t.Fatalf("Failed to query with Limit/Offset: %v", err)
	}
	if len(page) != 1 || page[0].ID != "b2" {
		t.Errorf("Expected [b2], got %v", page)
	}

	skipped, err := b.Query(ctx, storage.Filter{Offset: 2})
	if err != nil {
		t.Fatalf("Failed to query with Offset only: %v", err)
	}
	if len(skipped) != 1 || skipped[0].ID != "a1" {
		t.Errorf("Expected [a1], got %v", skipped)
	}

	if _, ok := second.Answer(); ok {
		t.Errorf("Error record should not convert to an answer")
	}
}

func TestSQLiteBackend_RunOrder(t *testing.T) {
	b, err := New(filepath.Join(t.TempDir(), "howto.db"))
	if err != nil {
		t.Fatalf("Failed to create SQLite backend: %v", err)
	}
	defer b.Close()

	ctx := context.Background()
	ranAt := time.Now()

	for pos := range 3 {
		if err := b.Save(ctx, storage.NewRecord("q", pos, ranAt, domain.Result{})); err != nil {
			t.Fatalf("Failed to save: %v", err)
		}
	}

	got, err := b.Query(ctx, storage.Filter{Query: "q"})
	if err != nil {
		t.Fatalf("Failed to query: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("Expected 3 records, got %d", len(got))
	}
	for i, r := range got {
		if r.Position != i {
			t.Errorf("Expected positions [0 1 2], got %d at index %d", r.Position, i)
		}
	}
}
