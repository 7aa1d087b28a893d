package store

import (
	"context"
	"path/filepath"
	"testing"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := New(filepath.Join(t.TempDir(), "store_test.db"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestUpsertNew(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	wasNew, err := s.Upsert(ctx, "what is 2+2?", []float32{1, 0}, "4")
	if err != nil {
		t.Fatal(err)
	}
	if !wasNew {
		t.Error("expected first upsert to report new row")
	}

	records, err := s.All(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(records) != 1 {
		t.Fatalf("expected 1 record, got %d", len(records))
	}
	if records[0].Response != "4" || records[0].UsageCount != 1 {
		t.Errorf("unexpected record: %+v", records[0])
	}
}

func TestUpsertConflict(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	if _, err := s.Upsert(ctx, "q", []float32{1, 0}, "old"); err != nil {
		t.Fatal(err)
	}
	wasNew, err := s.Upsert(ctx, "q", []float32{0, 1}, "new")
	if err != nil {
		t.Fatal(err)
	}
	if wasNew {
		t.Error("expected conflict upsert to report existing row")
	}

	records, _ := s.All(ctx)
	if len(records) != 1 {
		t.Fatalf("expected exactly 1 record, got %d", len(records))
	}
	r := records[0]
	if r.Response != "new" {
		t.Errorf("expected response replaced, got %q", r.Response)
	}
	if r.UsageCount != 2 {
		t.Errorf("expected usage_count 2, got %d", r.UsageCount)
	}
	// Embedding is computed once at first insert and never replaced.
	if r.Embedding[0] != 1 || r.Embedding[1] != 0 {
		t.Errorf("expected original embedding preserved, got %v", r.Embedding)
	}
}

func TestUpsertIdempotentCounting(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		if _, err := s.Upsert(ctx, "q", []float32{1}, "r"); err != nil {
			t.Fatal(err)
		}
	}
	records, _ := s.All(ctx)
	if records[0].UsageCount != 3 {
		t.Errorf("expected usage_count 3, got %d", records[0].UsageCount)
	}
}

func TestAllPreservesInsertionOrder(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	queries := []string{"zebra", "apple", "mango"}
	for _, q := range queries {
		if _, err := s.Upsert(ctx, q, []float32{1}, "r:"+q); err != nil {
			t.Fatal(err)
		}
	}
	// A repeat upsert must not disturb scan order.
	if _, err := s.Upsert(ctx, "apple", []float32{1}, "r2:apple"); err != nil {
		t.Fatal(err)
	}

	records, err := s.All(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(records) != 3 {
		t.Fatalf("expected 3 records, got %d", len(records))
	}
	for i, q := range queries {
		if records[i].Query != q {
			t.Errorf("position %d: expected %q, got %q", i, q, records[i].Query)
		}
	}
}

func TestCount(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	_, _ = s.Upsert(ctx, "a", []float32{1}, "r")
	_, _ = s.Upsert(ctx, "b", []float32{1}, "r")
	_, _ = s.Upsert(ctx, "a", []float32{1}, "r")

	count, err := s.Count(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if count != 2 {
		t.Errorf("expected 2, got %d", count)
	}
}
