// Package search keeps an in-memory text index over photo records. The
// catalog is the source of truth; the index can be rebuilt from it at any
// time.
package search

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/StrixzIV/adv-compro-finals/internal/storage"
)

// Scope selects which lifecycle state a query matches.
type Scope int

const (
	ScopeActive Scope = iota
	ScopeTrash
)

// ParseScope maps "active" (or empty) and "trash" to a Scope.
func ParseScope(s string) (Scope, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "active":
		return ScopeActive, nil
	case "trash":
		return ScopeTrash, nil
	default:
		return ScopeActive, fmt.Errorf("search: unknown scope %q", s)
	}
}

type entry struct {
	ownerID    string
	text       string
	deleted    bool
	uploadedAt time.Time
}

// Index is safe for concurrent use.
type Index struct {
	mu      sync.RWMutex
	entries map[string]entry

	// While a rebuild walks the catalog, writes are also journaled and
	// replayed onto the fresh map before it is swapped in.
	rebuilds int
	journal  []func(map[string]entry)
}

// apply runs op against the live entries and journals it during a rebuild.
// Callers hold mu.
func (i *Index) apply(op func(map[string]entry)) {
	op(i.entries)
	if i.rebuilds > 0 {
		i.journal = append(i.journal, op)
	}
}

func New() *Index {
	return &Index{entries: make(map[string]entry)}
}

// Index adds or replaces the entry for p.
func (i *Index) Index(p storage.Photo) {
	e := entry{
		ownerID:    p.OwnerID,
		text:       Flatten(p),
		deleted:    p.IsDeleted,
		uploadedAt: p.UploadedAt,
	}

	i.mu.Lock()
	i.apply(func(m map[string]entry) { m[p.ID] = e })
	i.mu.Unlock()
}

func (i *Index) Remove(photoID string) {
	i.mu.Lock()
	i.apply(func(m map[string]entry) { delete(m, photoID) })
	i.mu.Unlock()
}

// SetDeleted records a trash state change without re-flattening the text.
func (i *Index) SetDeleted(photoID string, deleted bool) {
	i.mu.Lock()
	defer i.mu.Unlock()

	i.apply(func(m map[string]entry) {
		if e, ok := m[photoID]; ok {
			e.deleted = deleted
			m[photoID] = e
		}
	})
}

// Query returns the ids of ownerID's photos in scope whose flattened text
// contains text, case-insensitively. Results are ordered newest first. An
// empty text matches every photo in scope.
func (i *Index) Query(ownerID, text string, scope Scope) []string {
	needle := strings.ToLower(strings.TrimSpace(text))
	wantDeleted := scope == ScopeTrash

	type hit struct {
		id         string
		uploadedAt time.Time
	}

	i.mu.RLock()
	hits := make([]hit, 0)
	for id, e := range i.entries {
		if e.ownerID != ownerID || e.deleted != wantDeleted {
			continue
		}
		if needle != "" && !strings.Contains(e.text, needle) {
			continue
		}
		hits = append(hits, hit{id: id, uploadedAt: e.uploadedAt})
	}
	i.mu.RUnlock()

	sort.Slice(hits, func(a, b int) bool {
		if !hits[a].uploadedAt.Equal(hits[b].uploadedAt) {
			return hits[a].uploadedAt.After(hits[b].uploadedAt)
		}
		return hits[a].id > hits[b].id
	})

	ids := make([]string, len(hits))
	for n, h := range hits {
		ids[n] = h.id
	}
	return ids
}

func (i *Index) Len() int {
	i.mu.RLock()
	defer i.mu.RUnlock()
	return len(i.entries)
}

// Walker enumerates every catalog photo.
type Walker interface {
	Each(ctx context.Context, fn func(storage.Photo) error) error
}

// Rebuild replaces the whole index with the photos produced by w. The old
// contents stay visible until the walk completes. Index, Remove and
// SetDeleted calls made during the walk are replayed on top of the result,
// so writes racing a rebuild are not lost.
func (i *Index) Rebuild(ctx context.Context, w Walker) error {
	i.mu.Lock()
	i.rebuilds++
	start := len(i.journal)
	i.mu.Unlock()

	fresh := make(map[string]entry)
	err := w.Each(ctx, func(p storage.Photo) error {
		fresh[p.ID] = entry{
			ownerID:    p.OwnerID,
			text:       Flatten(p),
			deleted:    p.IsDeleted,
			uploadedAt: p.UploadedAt,
		}
		return nil
	})

	i.mu.Lock()
	defer i.mu.Unlock()

	i.rebuilds--
	if err == nil {
		for _, op := range i.journal[start:] {
			op(fresh)
		}
		i.entries = fresh
	}
	if i.rebuilds == 0 {
		i.journal = nil
	}

	if err != nil {
		return fmt.Errorf("search: rebuild: %w", err)
	}
	return nil
}

// Flatten renders the searchable text of a photo: filename, caption,
// formatted upload date and size, and every metadata key:value pair, all
// lowercased and space-joined.
func Flatten(p storage.Photo) string {
	parts := []string{p.Filename}
	if p.Caption != "" {
		parts = append(parts, p.Caption)
	}
	if !p.UploadedAt.IsZero() {
		ts := p.UploadedAt.UTC()
		parts = append(parts, ts.Format("Jan 2, 2006 15:04 MST"), ts.Format("2006-01-02"))
	}
	parts = append(parts, humanize.Bytes(uint64(max(p.SizeBytes, 0))))

	for _, f := range p.Metadata {
		parts = flattenValue(parts, f.Key, f.Value)
	}

	return strings.ToLower(strings.Join(parts, " "))
}

// flattenValue expands values holding JSON objects or arrays into nested
// key:value pairs.
func flattenValue(parts []string, key, value string) []string {
	trimmed := strings.TrimSpace(value)
	if strings.HasPrefix(trimmed, "{") || strings.HasPrefix(trimmed, "[") {
		var nested any
		if err := json.Unmarshal([]byte(trimmed), &nested); err == nil {
			return flattenAny(parts, key, nested)
		}
	}
	return append(parts, key+":"+value)
}

func flattenAny(parts []string, key string, v any) []string {
	switch val := v.(type) {
	case map[string]any:
		keys := make([]string, 0, len(val))
		for k := range val {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			parts = flattenAny(parts, key+"."+k, val[k])
		}
		return parts
	case []any:
		for _, item := range val {
			parts = flattenAny(parts, key, item)
		}
		return parts
	case nil:
		return parts
	default:
		return append(parts, fmt.Sprintf("%s:%v", key, val))
	}
}
