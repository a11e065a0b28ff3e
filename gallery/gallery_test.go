package gallery

import (
	"context"
	"errors"
	"testing"

	"meme-studio/core"
)

// callLog records the order of calls across both stores.
type callLog struct {
	calls []string
}

type mockImageStore struct {
	log       *callLog
	deleteErr error
}

func (m *mockImageStore) Upload(ctx context.Context, data []byte, title string) (*core.StoredImage, error) {
	return nil, errors.New("not implemented")
}

func (m *mockImageStore) Delete(ctx context.Context, handle string) error {
	m.log.calls = append(m.log.calls, "image.Delete("+handle+")")
	return m.deleteErr
}

type mockMemeStore struct {
	log      *callLog
	memes    map[string]*core.MemeRecord
	viewErr  error
	listSeen core.MemeQuery
}

func (m *mockMemeStore) Create(ctx context.Context, meme *core.MemeRecord) (string, error) {
	return "", errors.New("not implemented")
}

func (m *mockMemeStore) Get(ctx context.Context, id string) (*core.MemeRecord, error) {
	meme, ok := m.memes[id]
	if !ok {
		return nil, core.ErrNotFound
	}
	return meme.Clone(), nil
}

func (m *mockMemeStore) List(ctx context.Context, query core.MemeQuery) (*core.MemePage, error) {
	m.listSeen = query
	return &core.MemePage{}, nil
}

func (m *mockMemeStore) Delete(ctx context.Context, id string) error {
	m.log.calls = append(m.log.calls, "memes.Delete("+id+")")
	delete(m.memes, id)
	return nil
}

func (m *mockMemeStore) IncrementLikes(ctx context.Context, id string) (int, error) {
	meme, ok := m.memes[id]
	if !ok {
		return 0, core.ErrNotFound
	}
	meme.Likes++
	return meme.Likes, nil
}

func (m *mockMemeStore) IncrementViews(ctx context.Context, id string) error {
	if m.viewErr != nil {
		return m.viewErr
	}
	m.memes[id].Views++
	return nil
}

func newTestService(imageErr error) (*Service, *mockMemeStore, *callLog) {
	log := &callLog{}
	memes := &mockMemeStore{
		log: log,
		memes: map[string]*core.MemeRecord{
			"m1": {ID: "m1", CreatedBy: "owner", DeleteHandle: "h1", ImageURL: "https://x/1.png"},
		},
	}
	return NewService(memes, &mockImageStore{log: log, deleteErr: imageErr}), memes, log
}

func TestDelete_ImageBeforeRecord(t *testing.T) {
	svc, memes, log := newTestService(nil)

	if err := svc.Delete(context.Background(), "owner", "m1"); err != nil {
		t.Fatalf("Delete() failed: %v", err)
	}
	want := []string{"image.Delete(h1)", "memes.Delete(m1)"}
	if len(log.calls) != 2 || log.calls[0] != want[0] || log.calls[1] != want[1] {
		t.Errorf("call order: got %v, want %v", log.calls, want)
	}
	if _, ok := memes.memes["m1"]; ok {
		t.Error("record should be gone")
	}
}

func TestDelete_ImageFailureKeepsRecord(t *testing.T) {
	svc, memes, log := newTestService(errors.New("imgur unavailable"))

	if err := svc.Delete(context.Background(), "owner", "m1"); err == nil {
		t.Fatal("expected an error")
	}
	if len(log.calls) != 1 {
		t.Errorf("record deletion should not be attempted, calls: %v", log.calls)
	}
	if _, ok := memes.memes["m1"]; !ok {
		t.Error("record should still exist")
	}
}

func TestDelete_NotOwner(t *testing.T) {
	svc, _, log := newTestService(nil)

	err := svc.Delete(context.Background(), "intruder", "m1")
	if !errors.Is(err, core.ErrForbidden) {
		t.Fatalf("expected ErrForbidden, got %v", err)
	}
	if len(log.calls) != 0 {
		t.Errorf("nothing should be deleted, calls: %v", log.calls)
	}
}

func TestDelete_NotFound(t *testing.T) {
	svc, _, _ := newTestService(nil)
	if err := svc.Delete(context.Background(), "owner", "nope"); !errors.Is(err, core.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestView_CountsViews(t *testing.T) {
	svc, memes, _ := newTestService(nil)

	meme, err := svc.View(context.Background(), "m1")
	if err != nil {
		t.Fatalf("View() failed: %v", err)
	}
	if meme.Views != 1 || memes.memes["m1"].Views != 1 {
		t.Errorf("views: returned %d, stored %d", meme.Views, memes.memes["m1"].Views)
	}

	memes.viewErr = errors.New("counter broken")
	if _, err := svc.View(context.Background(), "m1"); err != nil {
		t.Errorf("a failing counter should not fail the view: %v", err)
	}
}

func TestLike(t *testing.T) {
	svc, _, _ := newTestService(nil)
	likes, err := svc.Like(context.Background(), "m1")
	if err != nil || likes != 1 {
		t.Errorf("Like() = %d, %v", likes, err)
	}
}

func TestList_NormalizesQuery(t *testing.T) {
	svc, memes, _ := newTestService(nil)
	if _, err := svc.List(context.Background(), core.MemeQuery{PageSize: 1000}); err != nil {
		t.Fatal(err)
	}
	if memes.listSeen.PageSize != core.MaxPageSize || memes.listSeen.Order != core.SortNewest {
		t.Errorf("query passed to store: %+v", memes.listSeen)
	}
}
