// Package photos implements the photo engine: ingestion of uploads, the
// active/trashed/purged lifecycle, favorites, owner-checked asset streaming
// and the gallery queries built on top of the catalog and search index.
package photos

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"path"
	"strings"
	"unicode/utf8"

	"github.com/dustin/go-humanize"
	"github.com/google/uuid"

	"github.com/StrixzIV/adv-compro-finals/internal/apperr"
	"github.com/StrixzIV/adv-compro-finals/internal/derive"
	"github.com/StrixzIV/adv-compro-finals/internal/objectstore"
	"github.com/StrixzIV/adv-compro-finals/internal/search"
	"github.com/StrixzIV/adv-compro-finals/internal/storage"
)

const (
	VariantOriginal  = "original"
	VariantThumbnail = "thumbnail"

	DefaultPageSize = 50
	MaxPageSize     = 100

	maxFilenameLength = 255
	maxExtLength      = 16
)

// acceptedTypes maps every accepted upload media type to the extension used
// for its original key.
var acceptedTypes = map[string]string{
	"image/jpeg": ".jpg",
	"image/png":  ".png",
	"image/gif":  ".gif",
	"image/webp": ".webp",
	"image/bmp":  ".bmp",
	"image/tiff": ".tiff",
}

// Deriver produces the thumbnail and metadata for an original.
type Deriver interface {
	Derive(data []byte) (derive.Result, error)
}

type Config struct {
	MaxUploadBytes int64
	PurgeWorkers   int
}

type Service struct {
	logger  *slog.Logger
	photos  storage.Photos
	objects objectstore.Store
	deriver Deriver
	index   *search.Index
	locks   *keyedLocks
	cfg     Config
	newID   func() string
}

func NewService(logger *slog.Logger, photos storage.Photos, objects objectstore.Store, deriver Deriver, index *search.Index, cfg Config) *Service {
	if cfg.PurgeWorkers <= 0 {
		cfg.PurgeWorkers = 1
	}
	return &Service{
		logger:  logger,
		photos:  photos,
		objects: objects,
		deriver: deriver,
		index:   index,
		locks:   newKeyedLocks(),
		cfg:     cfg,
		newID:   uuid.NewString,
	}
}

// OriginalKey is the object key of an original. It never contains user
// supplied text.
func OriginalKey(ownerID, photoID, ext string) string {
	return fmt.Sprintf("users/%s/%s%s", ownerID, photoID, ext)
}

func ThumbnailKey(ownerID, photoID string) string {
	return fmt.Sprintf("users/%s/thumbnail/%s.jpeg", ownerID, photoID)
}

type IngestInput struct {
	OwnerID     string
	Data        []byte
	ContentType string
	Filename    string
	Caption     string
}

// Ingest stores the original and its thumbnail, then records the catalog
// row. Objects written before a failure are deleted again, so a row never
// references a missing object.
func (s *Service) Ingest(ctx context.Context, in IngestInput) (storage.Photo, error) {
	owner, ok := canonicalID(in.OwnerID)
	if !ok {
		return storage.Photo{}, apperr.New(apperr.KindInvalidInput, "owner identity is required")
	}

	contentType, ext, err := normalizeContentType(in.ContentType)
	if err != nil {
		return storage.Photo{}, err
	}

	if len(in.Data) == 0 {
		return storage.Photo{}, apperr.New(apperr.KindInvalidInput, "upload is empty")
	}
	if s.cfg.MaxUploadBytes > 0 && int64(len(in.Data)) > s.cfg.MaxUploadBytes {
		return storage.Photo{}, apperr.New(apperr.KindInvalidInput,
			fmt.Sprintf("upload exceeds the %s limit", humanize.IBytes(uint64(s.cfg.MaxUploadBytes))))
	}

	derived, err := s.deriver.Derive(in.Data)
	if errors.Is(err, derive.ErrTooManyPixels) {
		return storage.Photo{}, apperr.Wrap(apperr.KindInvalidInput, "image dimensions exceed the pixel limit", err)
	}
	if err != nil {
		return storage.Photo{}, apperr.Wrap(apperr.KindDerivationFailed, "could not generate thumbnail", err)
	}

	id := s.newID()
	originalKey := OriginalKey(owner, id, ext)
	thumbnailKey := ThumbnailKey(owner, id)

	if err := s.objects.Put(ctx, originalKey, bytes.NewReader(in.Data), int64(len(in.Data)), contentType); err != nil {
		s.cleanup(ctx, originalKey)
		return storage.Photo{}, apperr.Wrap(apperr.KindStorageWriteFailed, "store original", err)
	}

	if err := s.objects.Put(ctx, thumbnailKey, bytes.NewReader(derived.Thumbnail), int64(len(derived.Thumbnail)), derive.ThumbnailType); err != nil {
		s.cleanup(ctx, originalKey, thumbnailKey)
		return storage.Photo{}, apperr.Wrap(apperr.KindStorageWriteFailed, "store thumbnail", err)
	}

	photo, err := s.photos.Create(ctx, storage.PhotoCreate{
		ID:           id,
		OwnerID:      owner,
		OriginalKey:  originalKey,
		ThumbnailKey: thumbnailKey,
		Filename:     sanitizeFilename(in.Filename, ext),
		Caption:      strings.TrimSpace(in.Caption),
		ContentType:  contentType,
		SizeBytes:    int64(len(in.Data)),
		Metadata:     derived.Metadata,
	})
	if err != nil {
		s.cleanup(ctx, originalKey, thumbnailKey)
		return storage.Photo{}, apperr.Wrap(apperr.KindCatalogWriteFailed, "record photo", err)
	}

	s.index.Index(photo)
	s.logger.Info("photo ingested",
		"photoID", photo.ID,
		"userID", owner,
		"contentType", contentType,
		"bytes", photo.SizeBytes,
		"metadataFields", len(photo.Metadata),
	)

	return photo, nil
}

// cleanup removes objects on a context that outlives request cancellation.
func (s *Service) cleanup(ctx context.Context, keys ...string) {
	ctx = context.WithoutCancel(ctx)
	for _, key := range keys {
		if err := s.objects.Delete(ctx, key); err != nil {
			s.logger.Warn("failed to clean up object", "key", key, "error", err)
		}
	}
}

// Asset is a readable original or thumbnail. Callers must close Body.
type Asset struct {
	Body        io.ReadCloser
	ContentType string
	Size        int64
	Filename    string
}

// StreamAsset opens the requested variant for its owner. Trashed photos stay
// readable until purged. It takes no lifecycle lock.
func (s *Service) StreamAsset(ctx context.Context, photoID, variant, requester string) (*Asset, error) {
	if variant != VariantOriginal && variant != VariantThumbnail {
		return nil, apperr.New(apperr.KindInvalidInput, fmt.Sprintf("unknown variant %q", variant))
	}

	photo, err := s.Get(ctx, photoID, requester)
	if err != nil {
		return nil, err
	}

	key, contentType, filename := photo.OriginalKey, photo.ContentType, photo.Filename
	if variant == VariantThumbnail {
		key, contentType = photo.ThumbnailKey, derive.ThumbnailType
		filename = strings.TrimSuffix(photo.Filename, path.Ext(photo.Filename)) + ".jpeg"
	}

	obj, err := s.objects.Get(ctx, key)
	if err != nil {
		if errors.Is(err, objectstore.ErrNotFound) {
			s.logger.Error("catalog references a missing object", "photoID", photo.ID, "key", key)
		}
		return nil, apperr.Wrap(apperr.KindStorageReadFailed, "read "+variant, err)
	}

	if obj.ContentType != "" {
		contentType = obj.ContentType
	}

	return &Asset{
		Body:        obj.Body,
		ContentType: contentType,
		Size:        obj.Size,
		Filename:    filename,
	}, nil
}

// Get returns one photo of the requester.
func (s *Service) Get(ctx context.Context, photoID, requester string) (storage.Photo, error) {
	id, owner, err := ids(photoID, requester)
	if err != nil {
		return storage.Photo{}, err
	}

	photo, err := s.photos.GetForOwner(ctx, id, owner)
	if err != nil {
		return storage.Photo{}, catalogReadError("load photo", err)
	}
	return photo, nil
}

// NormalizePage applies the gallery paging defaults and bounds.
func NormalizePage(limit, offset int) (int, int) {
	switch {
	case limit <= 0:
		limit = DefaultPageSize
	case limit > MaxPageSize:
		limit = MaxPageSize
	}
	return limit, max(offset, 0)
}

// ListGallery returns active photos, newest first.
func (s *Service) ListGallery(ctx context.Context, requester string, limit, offset int) ([]storage.Photo, error) {
	limit, offset = NormalizePage(limit, offset)
	return s.list(ctx, requester, storage.PhotoFilter{Limit: limit, Offset: offset})
}

func (s *Service) ListTrash(ctx context.Context, requester string) ([]storage.Photo, error) {
	return s.list(ctx, requester, storage.PhotoFilter{Trashed: true})
}

// ListFavorites returns active favorites. Trashed photos are never favorite.
func (s *Service) ListFavorites(ctx context.Context, requester string) ([]storage.Photo, error) {
	return s.list(ctx, requester, storage.PhotoFilter{FavoritesOnly: true})
}

func (s *Service) list(ctx context.Context, requester string, filter storage.PhotoFilter) ([]storage.Photo, error) {
	owner, ok := canonicalID(requester)
	if !ok {
		return nil, apperr.Forbidden()
	}
	filter.OwnerID = owner

	photos, err := s.photos.List(ctx, filter)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindCatalogReadFailed, "list photos", err)
	}
	return photos, nil
}

// Search resolves index hits against the catalog, keeping the index order
// and dropping hits whose catalog state no longer matches the scope.
func (s *Service) Search(ctx context.Context, requester, text string, scope search.Scope) ([]storage.Photo, error) {
	owner, ok := canonicalID(requester)
	if !ok {
		return nil, apperr.Forbidden()
	}

	hits := s.index.Query(owner, text, scope)
	if len(hits) == 0 {
		return nil, nil
	}

	rows, err := s.photos.ListByIDs(ctx, owner, hits)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindCatalogReadFailed, "load search results", err)
	}

	byID := make(map[string]storage.Photo, len(rows))
	for _, p := range rows {
		byID[p.ID] = p
	}

	wantDeleted := scope == search.ScopeTrash
	result := make([]storage.Photo, 0, len(hits))
	for _, id := range hits {
		p, ok := byID[id]
		if !ok || p.IsDeleted != wantDeleted {
			continue
		}
		result = append(result, p)
	}
	return result, nil
}

// RebuildIndex reloads the search index from the catalog.
func (s *Service) RebuildIndex(ctx context.Context) error {
	if err := s.index.Rebuild(ctx, s.photos); err != nil {
		return apperr.Wrap(apperr.KindCatalogReadFailed, "rebuild search index", err)
	}
	s.logger.Info("search index rebuilt", "photos", s.index.Len())
	return nil
}

func normalizeContentType(raw string) (string, string, error) {
	mediaType, _, err := mime.ParseMediaType(strings.TrimSpace(raw))
	if err != nil {
		return "", "", apperr.New(apperr.KindInvalidInput, "content type is missing or malformed")
	}

	mediaType = strings.ToLower(mediaType)
	if mediaType == "image/jpg" {
		mediaType = "image/jpeg"
	}

	ext, ok := acceptedTypes[mediaType]
	if !ok {
		return "", "", apperr.New(apperr.KindInvalidInput, fmt.Sprintf("unsupported content type %q", mediaType))
	}
	return mediaType, ext, nil
}

func sanitizeFilename(name, ext string) string {
	name = strings.ReplaceAll(strings.TrimSpace(name), "\\", "/")
	name = strings.TrimSpace(path.Base(name))
	if name == "" || name == "." || name == "/" {
		return "untitled" + ext
	}
	name = strings.ToValidUTF8(name, "")
	if len(name) <= maxFilenameLength {
		return name
	}

	// Keep a short extension and cut the stem on a rune boundary.
	suffix := path.Ext(name)
	if len(suffix) > maxExtLength {
		suffix = ""
	}
	stem := strings.TrimSuffix(name, suffix)
	cut := maxFilenameLength - len(suffix)
	for cut > 0 && !utf8.RuneStart(stem[cut]) {
		cut--
	}
	return stem[:cut] + suffix
}

// canonicalID parses id as a UUID and returns its canonical form.
func canonicalID(id string) (string, bool) {
	parsed, err := uuid.Parse(strings.TrimSpace(id))
	if err != nil {
		return "", false
	}
	return parsed.String(), true
}

// ids validates a photo id and requester together. Malformed values are
// reported the same way as foreign or missing photos.
func ids(photoID, requester string) (string, string, error) {
	id, ok := canonicalID(photoID)
	if !ok {
		return "", "", apperr.Forbidden()
	}
	owner, ok := canonicalID(requester)
	if !ok {
		return "", "", apperr.Forbidden()
	}
	return id, owner, nil
}

func catalogReadError(message string, err error) error {
	if errors.Is(err, storage.ErrNotFound) {
		return apperr.Forbidden()
	}
	return apperr.Wrap(apperr.KindCatalogReadFailed, message, err)
}
