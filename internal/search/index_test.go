package search_test

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/StrixzIV/adv-compro-finals/internal/search"
	"github.com/StrixzIV/adv-compro-finals/internal/storage"
)

func photo(id, owner, filename, caption string, uploaded time.Time) storage.Photo {
	return storage.Photo{
		ID:         id,
		OwnerID:    owner,
		Filename:   filename,
		Caption:    caption,
		SizeBytes:  2_500_000,
		UploadedAt: uploaded,
		Metadata: storage.Metadata{
			{Key: "Model", Value: "X100V"},
			{Key: "GPS", Value: `{"lat": 13.75, "tags": ["Bangkok", "city"]}`},
		},
	}
}

func TestFlatten(t *testing.T) {
	p := photo("p1", "u1", "Sunset.JPG", "Vacation", time.Date(2025, 2, 15, 10, 30, 0, 0, time.UTC))
	text := search.Flatten(p)

	for _, want := range []string{
		"sunset.jpg",
		"vacation",
		"feb 15, 2025 10:30 utc",
		"2025-02-15",
		"2.5 mb",
		"model:x100v",
		"gps.lat:13.75",
		"gps.tags:bangkok",
	} {
		if !strings.Contains(text, want) {
			t.Fatalf("expected %q in flattened text %q", want, text)
		}
	}
	if text != strings.ToLower(text) {
		t.Fatalf("expected lowercase text, got %q", text)
	}
}

func TestQueryRestrictsOwnerAndScope(t *testing.T) {
	idx := search.New()
	now := time.Now().UTC()

	idx.Index(photo("p1", "u1", "sunset.jpg", "Vacation", now.Add(-time.Hour)))
	idx.Index(photo("p2", "u1", "beach.jpg", "vacation day two", now))
	idx.Index(photo("p3", "u2", "sunset.jpg", "Vacation", now))

	got := idx.Query("u1", "VACATION", search.ScopeActive)
	if len(got) != 2 || got[0] != "p2" || got[1] != "p1" {
		t.Fatalf("expected [p2 p1], got %v", got)
	}

	if got := idx.Query("u2", "beach", search.ScopeActive); len(got) != 0 {
		t.Fatalf("expected no cross-owner matches, got %v", got)
	}

	idx.SetDeleted("p1", true)
	if got := idx.Query("u1", "sunset", search.ScopeActive); len(got) != 0 {
		t.Fatalf("expected trashed photo hidden from active scope, got %v", got)
	}
	if got := idx.Query("u1", "sunset", search.ScopeTrash); len(got) != 1 || got[0] != "p1" {
		t.Fatalf("expected trashed photo in trash scope, got %v", got)
	}

	idx.Remove("p1")
	if got := idx.Query("u1", "", search.ScopeTrash); len(got) != 0 {
		t.Fatalf("expected removed photo to vanish, got %v", got)
	}
	if idx.Len() != 2 {
		t.Fatalf("expected 2 entries, got %d", idx.Len())
	}
}

type walker struct {
	photos []storage.Photo
	err    error
	// during runs after the first photo has been visited.
	during func()
}

func (w walker) Each(ctx context.Context, fn func(storage.Photo) error) error {
	if w.err != nil {
		return w.err
	}
	for n, p := range w.photos {
		if err := fn(p); err != nil {
			return err
		}
		if n == 0 && w.during != nil {
			w.during()
		}
	}
	return nil
}

func TestRebuildReplacesContents(t *testing.T) {
	idx := search.New()
	idx.Index(photo("stale", "u1", "old.jpg", "", time.Now()))

	err := idx.Rebuild(context.Background(), walker{photos: []storage.Photo{
		photo("p1", "u1", "fresh.jpg", "", time.Now()),
	}})
	if err != nil {
		t.Fatalf("Rebuild returned error: %v", err)
	}

	if got := idx.Query("u1", "old", search.ScopeActive); len(got) != 0 {
		t.Fatalf("expected stale entry to be dropped, got %v", got)
	}
	if got := idx.Query("u1", "fresh", search.ScopeActive); len(got) != 1 {
		t.Fatalf("expected fresh entry, got %v", got)
	}

	if err := idx.Rebuild(context.Background(), walker{err: errors.New("db down")}); err == nil {
		t.Fatalf("expected error from failing walk")
	}
	if idx.Len() != 1 {
		t.Fatalf("expected failed rebuild to keep the index, got %d entries", idx.Len())
	}
}

func TestRebuildKeepsWritesMadeDuringWalk(t *testing.T) {
	idx := search.New()
	now := time.Now()

	err := idx.Rebuild(context.Background(), walker{
		photos: []storage.Photo{
			photo("p1", "u1", "kept.jpg", "", now),
			photo("p2", "u1", "purged.jpg", "", now),
			photo("p3", "u1", "trashed.jpg", "", now),
		},
		during: func() {
			idx.Index(photo("p4", "u1", "uploaded.jpg", "", now))
			idx.Remove("p2")
			idx.Index(photo("p3", "u1", "trashed.jpg", "", now))
			idx.SetDeleted("p3", true)
		},
	})
	if err != nil {
		t.Fatalf("Rebuild returned error: %v", err)
	}

	if got := idx.Query("u1", "uploaded", search.ScopeActive); len(got) != 1 {
		t.Fatalf("expected photo indexed during rebuild to survive, got %v", got)
	}
	if got := idx.Query("u1", "purged", search.ScopeActive); len(got) != 0 {
		t.Fatalf("expected photo removed during rebuild to stay removed, got %v", got)
	}
	if got := idx.Query("u1", "trashed", search.ScopeTrash); len(got) != 1 {
		t.Fatalf("expected trash state set during rebuild to survive, got %v", got)
	}
	if idx.Len() != 3 {
		t.Fatalf("expected 3 entries, got %d", idx.Len())
	}

	idx.Index(photo("p5", "u1", "later.jpg", "", now))
	if err := idx.Rebuild(context.Background(), walker{}); err != nil {
		t.Fatalf("Rebuild returned error: %v", err)
	}
	if idx.Len() != 0 {
		t.Fatalf("expected writes before a rebuild not to be replayed, got %d entries", idx.Len())
	}
}

func TestConcurrentAccess(t *testing.T) {
	idx := search.New()
	var wg sync.WaitGroup
	for n := 0; n < 8; n++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			id := string(rune('a' + n))
			idx.Index(photo(id, "u1", id+".jpg", "", time.Now()))
			_ = idx.Query("u1", "jpg", search.ScopeActive)
		}(n)
	}
	wg.Wait()

	if idx.Len() != 8 {
		t.Fatalf("expected 8 entries, got %d", idx.Len())
	}
}

func TestParseScope(t *testing.T) {
	if s, err := search.ParseScope("Trash"); err != nil || s != search.ScopeTrash {
		t.Fatalf("expected trash scope, got %v %v", s, err)
	}
	if s, err := search.ParseScope(""); err != nil || s != search.ScopeActive {
		t.Fatalf("expected active scope, got %v %v", s, err)
	}
	if _, err := search.ParseScope("everything"); err == nil {
		t.Fatalf("expected error for unknown scope")
	}
}
