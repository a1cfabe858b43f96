package handlers_test

import (
	"context"
	"errors"
	"net/http"
	"testing"

	"github.com/StrixzIV/adv-compro-finals/internal/http/handlers"
	"github.com/StrixzIV/adv-compro-finals/internal/storage"
)

type pingFunc func(ctx context.Context) error

func (f pingFunc) Ping(ctx context.Context) error { return f(ctx) }

type stubStats struct {
	stats storage.PhotoStats
	users int64
	err   error
}

func (s stubStats) Stats(context.Context) (storage.PhotoStats, error) { return s.stats, s.err }

func (s stubStats) Count(context.Context) (int64, error) { return s.users, nil }

func ok(context.Context) error { return nil }

func TestDashboardShow(t *testing.T) {
	stats := stubStats{stats: storage.PhotoStats{Count: 3, Bytes: 2_500_000}, users: 2}
	down := pingFunc(func(context.Context) error { return errors.New("bucket missing") })

	rec, ctx := newContext(http.MethodGet, "/api/dashboard", "")
	handlers.NewDashboardHandler(newTestLogger(), pingFunc(ok), down, stats, stats).Show(ctx)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rec.Code)
	}

	var body struct {
		Services []struct {
			Name   string `json:"name"`
			Status string `json:"status"`
		} `json:"services"`
		TotalPhotos int64  `json:"total_photos"`
		TotalUsers  int64  `json:"total_users"`
		StorageUsed string `json:"storage_used"`
	}
	decode(t, rec, &body)

	if body.TotalPhotos != 3 || body.TotalUsers != 2 || body.StorageUsed != "2.5 MB" {
		t.Fatalf("unexpected totals: %+v", body)
	}
	if len(body.Services) != 2 || body.Services[0].Status != "ok" || body.Services[1].Status != "down" {
		t.Fatalf("unexpected services: %+v", body.Services)
	}
}

func TestDashboardShowStatsError(t *testing.T) {
	stats := stubStats{err: errors.New("db down")}

	rec, ctx := newContext(http.MethodGet, "/api/dashboard", "")
	handlers.NewDashboardHandler(newTestLogger(), pingFunc(ok), pingFunc(ok), stats, stats).Show(ctx)

	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("expected status 500, got %d", rec.Code)
	}
}

func TestHealth(t *testing.T) {
	rec, ctx := newContext(http.MethodGet, "/healthz", "")
	handlers.NewDashboardHandler(newTestLogger(), pingFunc(ok), pingFunc(ok), stubStats{}, stubStats{}).Health(ctx)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rec.Code)
	}

	rec, ctx = newContext(http.MethodGet, "/healthz", "")
	down := pingFunc(func(context.Context) error { return errors.New("db down") })
	handlers.NewDashboardHandler(newTestLogger(), down, pingFunc(ok), stubStats{}, stubStats{}).Health(ctx)
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected status 503, got %d", rec.Code)
	}
}
