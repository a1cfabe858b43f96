package handlers

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/StrixzIV/adv-compro-finals/internal/albums"
	"github.com/StrixzIV/adv-compro-finals/internal/http/middleware"
	"github.com/StrixzIV/adv-compro-finals/internal/storage"
)

type AlbumService interface {
	Create(ctx context.Context, requester, title, description string) (storage.Album, error)
	List(ctx context.Context, requester string) ([]storage.AlbumSummary, error)
	Get(ctx context.Context, albumID, requester string) (albums.Detail, error)
	Update(ctx context.Context, albumID, requester string, title, description *string) (storage.Album, error)
	Delete(ctx context.Context, albumID, requester string) error
	AddPhotos(ctx context.Context, albumID, requester string, photoIDs []string) (int, error)
	RemovePhoto(ctx context.Context, albumID, photoID, requester string) error
}

type AlbumHandler struct {
	logger *slog.Logger
	albums AlbumService
}

func NewAlbumHandler(logger *slog.Logger, albums AlbumService) *AlbumHandler {
	return &AlbumHandler{
		logger: logger,
		albums: albums,
	}
}

type albumRequest struct {
	Title       *string `json:"title"`
	Description *string `json:"description"`
}

type addPhotosRequest struct {
	PhotoIDs []string `json:"photo_ids"`
}

func (h *AlbumHandler) List(c *gin.Context) {
	list, err := h.albums.List(c.Request.Context(), middleware.UserID(c))
	if err != nil {
		writeError(c, h.logger, err)
		return
	}

	items := make([]albumResponse, 0, len(list))
	for _, album := range list {
		items = append(items, toAlbumResponse(album))
	}

	c.JSON(http.StatusOK, gin.H{"albums": items})
}

func (h *AlbumHandler) Create(c *gin.Context) {
	var req albumRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "request body must be a JSON object")
		return
	}

	var title, description string
	if req.Title != nil {
		title = *req.Title
	}
	if req.Description != nil {
		description = *req.Description
	}

	album, err := h.albums.Create(c.Request.Context(), middleware.UserID(c), title, description)
	if err != nil {
		writeError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusCreated, toAlbumResponse(storage.AlbumSummary{Album: album}))
}

func (h *AlbumHandler) Get(c *gin.Context) {
	detail, err := h.albums.Get(c.Request.Context(), c.Param("id"), middleware.UserID(c))
	if err != nil {
		writeError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, toAlbumDetailResponse(detail))
}

func (h *AlbumHandler) Update(c *gin.Context) {
	var req albumRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "request body must be a JSON object")
		return
	}

	ctx := c.Request.Context()
	id, requester := c.Param("id"), middleware.UserID(c)

	if _, err := h.albums.Update(ctx, id, requester, req.Title, req.Description); err != nil {
		writeError(c, h.logger, err)
		return
	}

	// Re-read so the response carries the member count.
	detail, err := h.albums.Get(ctx, id, requester)
	if err != nil {
		writeError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, toAlbumResponse(detail.AlbumSummary))
}

func (h *AlbumHandler) Delete(c *gin.Context) {
	if err := h.albums.Delete(c.Request.Context(), c.Param("id"), middleware.UserID(c)); err != nil {
		writeError(c, h.logger, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *AlbumHandler) AddPhotos(c *gin.Context) {
	var req addPhotosRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "request body must be a JSON object")
		return
	}

	added, err := h.albums.AddPhotos(c.Request.Context(), c.Param("id"), middleware.UserID(c), req.PhotoIDs)
	if err != nil {
		writeError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"added": added})
}

func (h *AlbumHandler) RemovePhoto(c *gin.Context) {
	err := h.albums.RemovePhoto(c.Request.Context(), c.Param("id"), c.Param("photoID"), middleware.UserID(c))
	if err != nil {
		writeError(c, h.logger, err)
		return
	}
	c.Status(http.StatusNoContent)
}
