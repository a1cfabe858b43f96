package handlers

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"strconv"

	"github.com/dustin/go-humanize"
	"github.com/gin-gonic/gin"

	"github.com/StrixzIV/adv-compro-finals/internal/apperr"
	"github.com/StrixzIV/adv-compro-finals/internal/http/middleware"
	"github.com/StrixzIV/adv-compro-finals/internal/photos"
	"github.com/StrixzIV/adv-compro-finals/internal/search"
	"github.com/StrixzIV/adv-compro-finals/internal/storage"
)

// multipartOverhead leaves room for boundaries and the caption field on top
// of the file itself.
const multipartOverhead = 1 << 20

type PhotoService interface {
	Ingest(ctx context.Context, in photos.IngestInput) (storage.Photo, error)
	Get(ctx context.Context, photoID, requester string) (storage.Photo, error)
	ListGallery(ctx context.Context, requester string, limit, offset int) ([]storage.Photo, error)
	ListTrash(ctx context.Context, requester string) ([]storage.Photo, error)
	ListFavorites(ctx context.Context, requester string) ([]storage.Photo, error)
	Search(ctx context.Context, requester, text string, scope search.Scope) ([]storage.Photo, error)
	StreamAsset(ctx context.Context, photoID, variant, requester string) (*photos.Asset, error)
	SoftDelete(ctx context.Context, photoID, requester string) (storage.Photo, error)
	Restore(ctx context.Context, photoID, requester string) (storage.Photo, error)
	SetFavorite(ctx context.Context, photoID, requester string, favorite bool) (storage.Photo, error)
	PurgeOne(ctx context.Context, photoID, requester string) error
	PurgeAllTrashed(ctx context.Context, requester string) (photos.PurgeReport, error)
}

type PhotoHandler struct {
	logger         *slog.Logger
	photos         PhotoService
	maxUploadBytes int64
}

func NewPhotoHandler(logger *slog.Logger, photos PhotoService, maxUploadBytes int64) *PhotoHandler {
	return &PhotoHandler{
		logger:         logger,
		photos:         photos,
		maxUploadBytes: maxUploadBytes,
	}
}

// Upload ingests the multipart "file" field with an optional "caption".
func (h *PhotoHandler) Upload(c *gin.Context) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.maxUploadBytes+multipartOverhead)

	file, header, err := c.Request.FormFile("file")
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			h.tooLarge(c)
			return
		}
		badRequest(c, "multipart field \"file\" is required")
		return
	}
	defer file.Close()

	if header.Size > h.maxUploadBytes {
		h.tooLarge(c)
		return
	}

	data, err := io.ReadAll(io.LimitReader(file, h.maxUploadBytes+1))
	if err != nil {
		badRequest(c, "could not read upload")
		return
	}
	if int64(len(data)) > h.maxUploadBytes {
		h.tooLarge(c)
		return
	}

	photo, err := h.photos.Ingest(c.Request.Context(), photos.IngestInput{
		OwnerID:     middleware.UserID(c),
		Data:        data,
		ContentType: uploadContentType(header, data),
		Filename:    header.Filename,
		Caption:     c.PostForm("caption"),
	})
	if err != nil {
		writeError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusCreated, toPhotoResponse(photo))
}

func (h *PhotoHandler) tooLarge(c *gin.Context) {
	abortJSON(c, http.StatusRequestEntityTooLarge, string(apperr.KindInvalidInput),
		fmt.Sprintf("upload exceeds the %s limit", humanize.IBytes(uint64(h.maxUploadBytes))), false)
}

// uploadContentType trusts the part header unless it is missing or generic,
// in which case the bytes are sniffed.
func uploadContentType(header *multipart.FileHeader, data []byte) string {
	ct := header.Header.Get("Content-Type")
	if ct == "" || ct == "application/octet-stream" {
		return http.DetectContentType(data)
	}
	return ct
}

func (h *PhotoHandler) List(c *gin.Context) {
	limit, err := queryInt(c, "limit")
	if err != nil {
		badRequest(c, "limit must be an integer")
		return
	}
	offset, err := queryInt(c, "offset")
	if err != nil {
		badRequest(c, "offset must be an integer")
		return
	}

	list, err := h.photos.ListGallery(c.Request.Context(), middleware.UserID(c), limit, offset)
	if err != nil {
		writeError(c, h.logger, err)
		return
	}

	limit, offset = photos.NormalizePage(limit, offset)
	c.JSON(http.StatusOK, gin.H{
		"photos": toPhotoResponses(list),
		"limit":  limit,
		"offset": offset,
	})
}

func (h *PhotoHandler) Trash(c *gin.Context) {
	list, err := h.photos.ListTrash(c.Request.Context(), middleware.UserID(c))
	if err != nil {
		writeError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"photos": toPhotoResponses(list)})
}

func (h *PhotoHandler) Favorites(c *gin.Context) {
	list, err := h.photos.ListFavorites(c.Request.Context(), middleware.UserID(c))
	if err != nil {
		writeError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"photos": toPhotoResponses(list)})
}

func (h *PhotoHandler) Search(c *gin.Context) {
	scope, err := search.ParseScope(c.Query("scope"))
	if err != nil {
		badRequest(c, "scope must be \"active\" or \"trash\"")
		return
	}

	list, err := h.photos.Search(c.Request.Context(), middleware.UserID(c), c.Query("q"), scope)
	if err != nil {
		writeError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"photos": toPhotoResponses(list)})
}

func (h *PhotoHandler) Get(c *gin.Context) {
	photo, err := h.photos.Get(c.Request.Context(), c.Param("id"), middleware.UserID(c))
	if err != nil {
		writeError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, toPhotoResponse(photo))
}

// Original and Thumbnail stream the stored bytes to the owner.
func (h *PhotoHandler) Original(c *gin.Context) {
	h.stream(c, photos.VariantOriginal)
}

func (h *PhotoHandler) Thumbnail(c *gin.Context) {
	h.stream(c, photos.VariantThumbnail)
}

func (h *PhotoHandler) stream(c *gin.Context, variant string) {
	asset, err := h.photos.StreamAsset(c.Request.Context(), c.Param("id"), variant, middleware.UserID(c))
	if err != nil {
		writeError(c, h.logger, err)
		return
	}
	defer asset.Body.Close()

	c.DataFromReader(http.StatusOK, asset.Size, asset.ContentType, asset.Body, map[string]string{
		"Content-Disposition": fmt.Sprintf("inline; filename=%q", asset.Filename),
		"Cache-Control":       "private, max-age=3600",
	})
}

func (h *PhotoHandler) SoftDelete(c *gin.Context) {
	h.respondPhoto(c, h.photos.SoftDelete)
}

func (h *PhotoHandler) Restore(c *gin.Context) {
	h.respondPhoto(c, h.photos.Restore)
}

func (h *PhotoHandler) Favorite(c *gin.Context) {
	h.respondPhoto(c, func(ctx context.Context, id, requester string) (storage.Photo, error) {
		return h.photos.SetFavorite(ctx, id, requester, true)
	})
}

func (h *PhotoHandler) Unfavorite(c *gin.Context) {
	h.respondPhoto(c, func(ctx context.Context, id, requester string) (storage.Photo, error) {
		return h.photos.SetFavorite(ctx, id, requester, false)
	})
}

func (h *PhotoHandler) respondPhoto(c *gin.Context, op func(ctx context.Context, id, requester string) (storage.Photo, error)) {
	photo, err := op(c.Request.Context(), c.Param("id"), middleware.UserID(c))
	if err != nil {
		writeError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, toPhotoResponse(photo))
}

// Purge permanently deletes a single photo, trashed or not.
func (h *PhotoHandler) Purge(c *gin.Context) {
	if err := h.photos.PurgeOne(c.Request.Context(), c.Param("id"), middleware.UserID(c)); err != nil {
		writeError(c, h.logger, err)
		return
	}
	c.Status(http.StatusNoContent)
}

type purgeFailureResponse struct {
	PhotoID   string `json:"photo_id"`
	Error     string `json:"error"`
	Message   string `json:"message"`
	Retryable bool   `json:"retryable"`
}

// EmptyTrash purges every trashed photo and reports per photo outcomes.
// Partial failure still answers 200; the body lists what failed.
func (h *PhotoHandler) EmptyTrash(c *gin.Context) {
	report, err := h.photos.PurgeAllTrashed(c.Request.Context(), middleware.UserID(c))
	if err != nil {
		writeError(c, h.logger, err)
		return
	}

	failed := make([]purgeFailureResponse, 0, len(report.Failed))
	for _, f := range report.Failed {
		failed = append(failed, purgeFailureResponse{
			PhotoID:   f.PhotoID,
			Error:     string(f.Kind),
			Message:   f.Message,
			Retryable: f.Retryable,
		})
	}

	c.JSON(http.StatusOK, gin.H{
		"purged":    nonNil(report.Purged),
		"failed":    failed,
		"skipped":   nonNil(report.Skipped),
		"cancelled": report.Cancelled,
	})
}

func queryInt(c *gin.Context, key string) (int, error) {
	raw := c.Query(key)
	if raw == "" {
		return 0, nil
	}
	return strconv.Atoi(raw)
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
