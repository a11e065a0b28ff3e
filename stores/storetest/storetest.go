// Package storetest holds behaviour tests shared by every core.MemeStore.
package storetest

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"meme-studio/core"
)

// Run exercises a store created fresh by newStore for every subtest.
func Run(t *testing.T, newStore func(t *testing.T) core.MemeStore) {
	t.Run("CreateAndGet", func(t *testing.T) { testCreateAndGet(t, newStore(t)) })
	t.Run("CreateAssignsID", func(t *testing.T) { testCreateAssignsID(t, newStore(t)) })
	t.Run("NotFound", func(t *testing.T) { testNotFound(t, newStore(t)) })
	t.Run("Delete", func(t *testing.T) { testDelete(t, newStore(t)) })
	t.Run("Counters", func(t *testing.T) { testCounters(t, newStore(t)) })
	t.Run("ConcurrentLikes", func(t *testing.T) { testConcurrentLikes(t, newStore(t)) })
	t.Run("ListPages", func(t *testing.T) { testListPages(t, newStore(t)) })
	t.Run("ListOwnerAndOrder", func(t *testing.T) { testListOwnerAndOrder(t, newStore(t)) })
	t.Run("ListBadToken", func(t *testing.T) { testListBadToken(t, newStore(t)) })
}

var base = time.Date(2024, 6, 1, 10, 0, 0, 0, time.UTC)

func seed(t *testing.T, s core.MemeStore, n int, owner func(i int) string) {
	t.Helper()
	for i := 0; i < n; i++ {
		_, err := s.Create(context.Background(), &core.MemeRecord{
			ID:        fmt.Sprintf("meme-%02d", i),
			Name:      fmt.Sprintf("Meme %d", i),
			ImageURL:  fmt.Sprintf("https://img.example.com/%d.png", i),
			CreatedAt: base.Add(time.Duration(i) * time.Minute),
			CreatedBy: owner(i),
		})
		if err != nil {
			t.Fatalf("Create(%d) failed: %v", i, err)
		}
	}
}

func testCreateAndGet(t *testing.T, s core.MemeStore) {
	ctx := context.Background()
	in := &core.MemeRecord{
		Name:         "Test",
		ImageURL:     "https://x/1.png",
		DeleteHandle: "h1",
		CreatedAt:    base,
		CreatedBy:    "user-1",
		Layers: []core.LayerRecord{
			{Text: "top", X: 10, Y: 5, Width: 80, FontSize: 32, FontFamily: "Impact", Fill: "#ffffff", Stroke: "#000000", StrokeWidth: 2},
		},
	}
	id, err := s.Create(ctx, in)
	if err != nil {
		t.Fatalf("Create() failed: %v", err)
	}

	got, err := s.Get(ctx, id)
	if err != nil {
		t.Fatalf("Get() failed: %v", err)
	}
	if got.ID != id || got.Name != "Test" || got.ImageURL != "https://x/1.png" || got.DeleteHandle != "h1" || got.CreatedBy != "user-1" {
		t.Errorf("record mismatch: %+v", got)
	}
	if !got.CreatedAt.Equal(base) {
		t.Errorf("CreatedAt: got %v, want %v", got.CreatedAt, base)
	}
	if len(got.Layers) != 1 || got.Layers[0] != in.Layers[0] {
		t.Errorf("layers: got %+v", got.Layers)
	}
}

func testCreateAssignsID(t *testing.T, s core.MemeStore) {
	ctx := context.Background()
	a, err := s.Create(ctx, &core.MemeRecord{CreatedBy: "u"})
	if err != nil {
		t.Fatalf("Create() failed: %v", err)
	}
	b, _ := s.Create(ctx, &core.MemeRecord{CreatedBy: "u"})
	if a == "" || a == b {
		t.Errorf("expected distinct ids, got %q and %q", a, b)
	}
	got, err := s.Get(ctx, a)
	if err != nil {
		t.Fatalf("Get() failed: %v", err)
	}
	if got.CreatedAt.IsZero() {
		t.Error("CreatedAt should be set")
	}
}

func testNotFound(t *testing.T, s core.MemeStore) {
	ctx := context.Background()
	if _, err := s.Get(ctx, "missing"); !errors.Is(err, core.ErrNotFound) {
		t.Errorf("Get: expected ErrNotFound, got %v", err)
	}
	if err := s.Delete(ctx, "missing"); !errors.Is(err, core.ErrNotFound) {
		t.Errorf("Delete: expected ErrNotFound, got %v", err)
	}
	if _, err := s.IncrementLikes(ctx, "missing"); !errors.Is(err, core.ErrNotFound) {
		t.Errorf("IncrementLikes: expected ErrNotFound, got %v", err)
	}
	if err := s.IncrementViews(ctx, "missing"); !errors.Is(err, core.ErrNotFound) {
		t.Errorf("IncrementViews: expected ErrNotFound, got %v", err)
	}
}

func testDelete(t *testing.T, s core.MemeStore) {
	ctx := context.Background()
	seed(t, s, 2, func(int) string { return "u" })

	if err := s.Delete(ctx, "meme-00"); err != nil {
		t.Fatalf("Delete() failed: %v", err)
	}
	if _, err := s.Get(ctx, "meme-00"); !errors.Is(err, core.ErrNotFound) {
		t.Errorf("deleted meme should be gone, got %v", err)
	}
	if _, err := s.Get(ctx, "meme-01"); err != nil {
		t.Errorf("other meme should survive: %v", err)
	}
}

func testCounters(t *testing.T, s core.MemeStore) {
	ctx := context.Background()
	seed(t, s, 1, func(int) string { return "u" })

	for want := 1; want <= 3; want++ {
		likes, err := s.IncrementLikes(ctx, "meme-00")
		if err != nil || likes != want {
			t.Fatalf("IncrementLikes() = %d, %v; want %d", likes, err, want)
		}
	}
	if err := s.IncrementViews(ctx, "meme-00"); err != nil {
		t.Fatalf("IncrementViews() failed: %v", err)
	}
	got, _ := s.Get(ctx, "meme-00")
	if got.Likes != 3 || got.Views != 1 {
		t.Errorf("counters: likes %d views %d", got.Likes, got.Views)
	}
}

func testConcurrentLikes(t *testing.T, s core.MemeStore) {
	ctx := context.Background()
	seed(t, s, 1, func(int) string { return "u" })

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := s.IncrementLikes(ctx, "meme-00"); err != nil {
				t.Errorf("IncrementLikes() failed: %v", err)
			}
		}()
	}
	wg.Wait()

	got, _ := s.Get(ctx, "meme-00")
	if got.Likes != 20 {
		t.Errorf("likes after 20 concurrent increments: %d", got.Likes)
	}
}

func testListPages(t *testing.T, s core.MemeStore) {
	ctx := context.Background()
	seed(t, s, 30, func(int) string { return "u" })

	seen := map[string]bool{}
	var order []string
	token := ""
	pages := 0
	for {
		page, err := s.List(ctx, core.MemeQuery{PageToken: token})
		if err != nil {
			t.Fatalf("List() failed: %v", err)
		}
		pages++
		if len(page.Memes) > core.DefaultPageSize {
			t.Fatalf("page %d has %d memes", pages, len(page.Memes))
		}
		for _, m := range page.Memes {
			if seen[m.ID] {
				t.Fatalf("meme %s returned twice", m.ID)
			}
			seen[m.ID] = true
			order = append(order, m.ID)
		}
		if page.NextPageToken == "" {
			break
		}
		token = page.NextPageToken
	}

	if pages != 3 || len(order) != 30 {
		t.Errorf("expected 30 memes in 3 pages, got %d in %d", len(order), pages)
	}
	if order[0] != "meme-29" || order[len(order)-1] != "meme-00" {
		t.Errorf("newest first: got %s ... %s", order[0], order[len(order)-1])
	}
}

func testListOwnerAndOrder(t *testing.T, s core.MemeStore) {
	ctx := context.Background()
	seed(t, s, 6, func(i int) string {
		if i < 4 {
			return "alice"
		}
		return "bob"
	})

	page, err := s.List(ctx, core.MemeQuery{Owner: "alice", Order: core.SortOldest})
	if err != nil {
		t.Fatalf("List() failed: %v", err)
	}
	if len(page.Memes) != 4 {
		t.Fatalf("expected 4 memes for alice, got %d", len(page.Memes))
	}
	for i, m := range page.Memes {
		if want := fmt.Sprintf("meme-%02d", i); m.ID != want {
			t.Errorf("position %d: got %s, want %s", i, m.ID, want)
		}
	}
	if page.NextPageToken != "" {
		t.Error("single page should have no next token")
	}

	empty, err := s.List(ctx, core.MemeQuery{Owner: "carol"})
	if err != nil {
		t.Fatalf("List() failed: %v", err)
	}
	if empty.Memes == nil || len(empty.Memes) != 0 {
		t.Errorf("expected an empty, non-nil page, got %+v", empty.Memes)
	}
}

func testListBadToken(t *testing.T, s core.MemeStore) {
	if _, err := s.List(context.Background(), core.MemeQuery{PageToken: "!!not-a-token"}); err == nil {
		t.Error("expected an error for a malformed page token")
	}
}
