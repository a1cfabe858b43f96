// Package albums manages user albums and their photo memberships.
package albums

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"github.com/google/uuid"

	"github.com/StrixzIV/adv-compro-finals/internal/apperr"
	"github.com/StrixzIV/adv-compro-finals/internal/storage"
)

const maxTitleLength = 200

type Service struct {
	logger *slog.Logger
	albums storage.Albums
}

func NewService(logger *slog.Logger, albums storage.Albums) *Service {
	return &Service{logger: logger, albums: albums}
}

// Detail is an album summary together with its visible members.
type Detail struct {
	storage.AlbumSummary
	Photos []storage.Photo
}

func (s *Service) Create(ctx context.Context, requester, title, description string) (storage.Album, error) {
	owner, ok := canonicalID(requester)
	if !ok {
		return storage.Album{}, apperr.Forbidden()
	}

	title, err := validTitle(title)
	if err != nil {
		return storage.Album{}, err
	}

	album, err := s.albums.Create(ctx, storage.AlbumCreate{
		OwnerID:     owner,
		Title:       title,
		Description: strings.TrimSpace(description),
	})
	if err != nil {
		return storage.Album{}, apperr.Wrap(apperr.KindCatalogWriteFailed, "create album", err)
	}

	s.logger.Info("album created", "albumID", album.ID, "userID", owner)
	return album, nil
}

func (s *Service) List(ctx context.Context, requester string) ([]storage.AlbumSummary, error) {
	owner, ok := canonicalID(requester)
	if !ok {
		return nil, apperr.Forbidden()
	}

	albums, err := s.albums.List(ctx, owner)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindCatalogReadFailed, "list albums", err)
	}
	return albums, nil
}

// Get returns the album with its non-trashed photos, newest first.
func (s *Service) Get(ctx context.Context, albumID, requester string) (Detail, error) {
	id, owner, err := ids(albumID, requester)
	if err != nil {
		return Detail{}, err
	}

	summary, err := s.albums.GetForOwner(ctx, id, owner)
	if err != nil {
		return Detail{}, readError("load album", err)
	}

	photos, err := s.albums.ListPhotos(ctx, id, owner)
	if err != nil {
		return Detail{}, readError("list album photos", err)
	}

	return Detail{AlbumSummary: summary, Photos: photos}, nil
}

// Update changes the title and/or description. A nil field is left as is.
func (s *Service) Update(ctx context.Context, albumID, requester string, title, description *string) (storage.Album, error) {
	id, owner, err := ids(albumID, requester)
	if err != nil {
		return storage.Album{}, err
	}

	var upd storage.AlbumUpdate
	if title != nil {
		t, err := validTitle(*title)
		if err != nil {
			return storage.Album{}, err
		}
		upd.Title = &t
	}
	if description != nil {
		d := strings.TrimSpace(*description)
		upd.Description = &d
	}

	album, err := s.albums.Update(ctx, id, owner, upd)
	if err != nil {
		return storage.Album{}, writeError("update album", err)
	}

	s.logger.Info("album updated", "albumID", id, "userID", owner)
	return album, nil
}

// Delete removes the album and its memberships. Member photos are untouched.
func (s *Service) Delete(ctx context.Context, albumID, requester string) error {
	id, owner, err := ids(albumID, requester)
	if err != nil {
		return err
	}

	if err := s.albums.Delete(ctx, id, owner); err != nil {
		return writeError("delete album", err)
	}

	s.logger.Info("album deleted", "albumID", id, "userID", owner)
	return nil
}

// AddPhotos links photos to the album with set semantics and returns how
// many new memberships were created. If any photo is missing or owned by
// someone else nothing is linked.
func (s *Service) AddPhotos(ctx context.Context, albumID, requester string, photoIDs []string) (int, error) {
	id, owner, err := ids(albumID, requester)
	if err != nil {
		return 0, err
	}

	if len(photoIDs) == 0 {
		return 0, apperr.New(apperr.KindInvalidInput, "at least one photo id is required")
	}

	canonical := make([]string, 0, len(photoIDs))
	for _, raw := range photoIDs {
		photoID, ok := canonicalID(raw)
		if !ok {
			return 0, apperr.Forbidden()
		}
		canonical = append(canonical, photoID)
	}

	added, err := s.albums.AddPhotos(ctx, id, owner, canonical)
	if err != nil {
		return 0, writeError("add album photos", err)
	}

	s.logger.Info("album photos added", "albumID", id, "userID", owner, "requested", len(canonical), "added", added)
	return added, nil
}

// RemovePhoto unlinks a photo. Removing a non-member is not an error.
func (s *Service) RemovePhoto(ctx context.Context, albumID, photoID, requester string) error {
	id, owner, err := ids(albumID, requester)
	if err != nil {
		return err
	}

	pid, ok := canonicalID(photoID)
	if !ok {
		return apperr.Forbidden()
	}

	if err := s.albums.RemovePhoto(ctx, id, owner, pid); err != nil {
		return writeError("remove album photo", err)
	}

	s.logger.Info("album photo removed", "albumID", id, "photoID", pid, "userID", owner)
	return nil
}

func validTitle(title string) (string, error) {
	title = strings.TrimSpace(title)
	if title == "" {
		return "", apperr.New(apperr.KindInvalidInput, "title is required")
	}
	if len(title) > maxTitleLength {
		return "", apperr.New(apperr.KindInvalidInput, "title is too long")
	}
	return title, nil
}

func canonicalID(id string) (string, bool) {
	parsed, err := uuid.Parse(strings.TrimSpace(id))
	if err != nil {
		return "", false
	}
	return parsed.String(), true
}

func ids(albumID, requester string) (string, string, error) {
	id, ok := canonicalID(albumID)
	if !ok {
		return "", "", apperr.Forbidden()
	}
	owner, ok := canonicalID(requester)
	if !ok {
		return "", "", apperr.Forbidden()
	}
	return id, owner, nil
}

func readError(message string, err error) error {
	if errors.Is(err, storage.ErrNotFound) {
		return apperr.Forbidden()
	}
	return apperr.Wrap(apperr.KindCatalogReadFailed, message, err)
}

func writeError(message string, err error) error {
	if errors.Is(err, storage.ErrNotFound) || errors.Is(err, storage.ErrForbidden) {
		return apperr.Forbidden()
	}
	return apperr.Wrap(apperr.KindCatalogWriteFailed, message, err)
}
