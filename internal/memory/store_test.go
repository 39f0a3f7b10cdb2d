package memory

import (
	"context"
	"testing"
)

func TestAddSearchScopedByUser(t *testing.T) {
	store, err := Open(":memory:")
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer store.Close()

	ctx := context.Background()
	if _, err := store.Add(ctx, "AAPL looks overbought on RSI", "technical_analyst_agent", nil); err != nil {
		t.Fatalf("add: %v", err)
	}
	if _, err := store.Add(ctx, "AAPL margins are expanding", "fundamentals_analyst_agent", nil); err != nil {
		t.Fatalf("add: %v", err)
	}

	results, err := store.Search(ctx, "AAPL RSI", "technical_analyst_agent", 5)
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if len(results) != 1 {
		t.Fatalf("expected search to be scoped to user_id, got %d results", len(results))
	}
	if results[0].UserID != "technical_analyst_agent" {
		t.Fatalf("unexpected owner: %s", results[0].UserID)
	}
}

func TestUpdateDeleteNotFound(t *testing.T) {
	store, err := Open(":memory:")
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer store.Close()

	ctx := context.Background()
	if err := store.Update(ctx, "missing-id", "new content", nil); err != ErrNotFound {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if err := store.Delete(ctx, "missing-id"); err != ErrNotFound {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestUpdateThenSearchReflectsNewContent(t *testing.T) {
	store, err := Open(":memory:")
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer store.Close()

	ctx := context.Background()
	id, err := store.Add(ctx, "original content", "portfolio_manager", nil)
	if err != nil {
		t.Fatalf("add: %v", err)
	}
	if err := store.Update(ctx, id, "revised content mentioning zebras", nil); err != nil {
		t.Fatalf("update: %v", err)
	}

	results, err := store.Search(ctx, "zebras", "portfolio_manager", 5)
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if len(results) != 1 || results[0].Content != "revised content mentioning zebras" {
		t.Fatalf("update not reflected: %+v", results)
	}
}
