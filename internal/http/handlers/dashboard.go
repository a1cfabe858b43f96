package handlers

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/dustin/go-humanize"
	"github.com/gin-gonic/gin"
	"golang.org/x/sync/errgroup"

	"github.com/StrixzIV/adv-compro-finals/internal/storage"
)

type Pinger interface {
	Ping(ctx context.Context) error
}

type PhotoStatter interface {
	Stats(ctx context.Context) (storage.PhotoStats, error)
}

type UserCounter interface {
	Count(ctx context.Context) (int64, error)
}

type DashboardHandler struct {
	logger  *slog.Logger
	catalog Pinger
	objects Pinger
	photos  PhotoStatter
	users   UserCounter
}

func NewDashboardHandler(logger *slog.Logger, catalog, objects Pinger, photos PhotoStatter, users UserCounter) *DashboardHandler {
	return &DashboardHandler{
		logger:  logger,
		catalog: catalog,
		objects: objects,
		photos:  photos,
		users:   users,
	}
}

type serviceStatus struct {
	Name   string `json:"name"`
	Status string `json:"status"`
	Error  string `json:"error,omitempty"`
}

func (h *DashboardHandler) check(ctx context.Context, name string, p Pinger) serviceStatus {
	if err := p.Ping(ctx); err != nil {
		h.logger.Warn("service check failed", "service", name, "error", err)
		return serviceStatus{Name: name, Status: "down", Error: err.Error()}
	}
	return serviceStatus{Name: name, Status: "ok"}
}

// Show reports backend health and catalog wide totals.
func (h *DashboardHandler) Show(c *gin.Context) {
	ctx := c.Request.Context()

	var (
		services = make([]serviceStatus, 2)
		stats    storage.PhotoStats
		users    int64
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		services[0] = h.check(gctx, "catalog", h.catalog)
		return nil
	})
	g.Go(func() error {
		services[1] = h.check(gctx, "object_store", h.objects)
		return nil
	})
	g.Go(func() error {
		var err error
		stats, err = h.photos.Stats(gctx)
		return err
	})
	g.Go(func() error {
		var err error
		users, err = h.users.Count(gctx)
		return err
	})

	if err := g.Wait(); err != nil {
		h.logger.Error("failed to load dashboard", "error", err)
		_ = c.Error(err)
		abortJSON(c, http.StatusInternalServerError, "catalog_read_failed", "failed to load dashboard", true)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"services":           services,
		"total_photos":       stats.Count,
		"total_users":        users,
		"storage_used_bytes": stats.Bytes,
		"storage_used":       humanize.Bytes(uint64(max(stats.Bytes, 0))),
	})
}

// Health answers 200 while the catalog is reachable.
func (h *DashboardHandler) Health(c *gin.Context) {
	if err := h.catalog.Ping(c.Request.Context()); err != nil {
		h.logger.Error("health check failed", "error", err)
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}
