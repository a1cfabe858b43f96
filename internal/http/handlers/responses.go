package handlers

import (
	"time"

	"github.com/dustin/go-humanize"

	"github.com/StrixzIV/adv-compro-finals/internal/albums"
	"github.com/StrixzIV/adv-compro-finals/internal/storage"
)

type photoResponse struct {
	ID           string           `json:"id"`
	Filename     string           `json:"filename"`
	Caption      string           `json:"caption"`
	ContentType  string           `json:"content_type"`
	SizeBytes    int64            `json:"size_bytes"`
	Size         string           `json:"size"`
	UploadedAt   time.Time        `json:"uploaded_at"`
	IsFavorite   bool             `json:"is_favorite"`
	IsDeleted    bool             `json:"is_deleted"`
	Metadata     storage.Metadata `json:"metadata"`
	OriginalURL  string           `json:"original_url"`
	ThumbnailURL string           `json:"thumbnail_url"`
}

func toPhotoResponse(p storage.Photo) photoResponse {
	return photoResponse{
		ID:           p.ID,
		Filename:     p.Filename,
		Caption:      p.Caption,
		ContentType:  p.ContentType,
		SizeBytes:    p.SizeBytes,
		Size:         humanize.Bytes(uint64(max(p.SizeBytes, 0))),
		UploadedAt:   p.UploadedAt.UTC(),
		IsFavorite:   p.IsFavorite,
		IsDeleted:    p.IsDeleted,
		Metadata:     p.Metadata,
		OriginalURL:  "/api/photos/" + p.ID + "/original",
		ThumbnailURL: "/api/photos/" + p.ID + "/thumbnail",
	}
}

func toPhotoResponses(photos []storage.Photo) []photoResponse {
	out := make([]photoResponse, 0, len(photos))
	for _, p := range photos {
		out = append(out, toPhotoResponse(p))
	}
	return out
}

type albumResponse struct {
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
	PhotoCount  int       `json:"photo_count"`
}

func toAlbumResponse(a storage.AlbumSummary) albumResponse {
	return albumResponse{
		ID:          a.ID,
		Title:       a.Title,
		Description: a.Description,
		CreatedAt:   a.CreatedAt.UTC(),
		UpdatedAt:   a.UpdatedAt.UTC(),
		PhotoCount:  a.PhotoCount,
	}
}

type albumDetailResponse struct {
	albumResponse
	Photos []photoResponse `json:"photos"`
}

func toAlbumDetailResponse(d albums.Detail) albumDetailResponse {
	return albumDetailResponse{
		albumResponse: toAlbumResponse(d.AlbumSummary),
		Photos:        toPhotoResponses(d.Photos),
	}
}

type userResponse struct {
	ID          string    `json:"id"`
	Email       string    `json:"email"`
	DisplayName string    `json:"display_name"`
	CreatedAt   time.Time `json:"created_at"`
}

func toUserResponse(u storage.User) userResponse {
	return userResponse{
		ID:          u.ID,
		Email:       u.Email,
		DisplayName: u.DisplayName,
		CreatedAt:   u.CreatedAt.UTC(),
	}
}
