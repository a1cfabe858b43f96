package storage

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrNotFound indicates that the requested entity does not exist in the
	// underlying storage, or does not belong to the requesting owner.
	ErrNotFound = errors.New("storage: not found")

	// ErrConflict indicates a uniqueness violation or a lost optimistic
	// version check.
	ErrConflict = errors.New("storage: conflict")

	// ErrForbidden indicates that a batch referenced rows owned by another
	// user. Nothing from the batch is applied.
	ErrForbidden = errors.New("storage: forbidden")
)

// Store exposes the persistence primitives required by the application. It is
// expected to be safe for concurrent use.
type Store interface {
	Users() Users
	Photos() Photos
	Albums() Albums
	Ping(ctx context.Context) error
	Close() error
}

// User is an account that owns photos and albums.
type User struct {
	ID           string
	Email        string
	PasswordHash string
	GoogleID     string
	DisplayName  string
	CreatedAt    time.Time
}

type UserCreate struct {
	Email        string
	PasswordHash string
	GoogleID     string
	DisplayName  string
}

type Users interface {
	Create(ctx context.Context, input UserCreate) (User, error)
	GetByID(ctx context.Context, id string) (User, error)
	GetByEmail(ctx context.Context, email string) (User, error)
	Count(ctx context.Context) (int64, error)
}

// Photo is a single ingested image. OriginalKey and ThumbnailKey always
// resolve in the object store while the row exists.
type Photo struct {
	ID           string
	OwnerID      string
	OriginalKey  string
	ThumbnailKey string
	Filename     string
	Caption      string
	ContentType  string
	SizeBytes    int64
	UploadedAt   time.Time
	Metadata     Metadata
	IsDeleted    bool
	IsFavorite   bool
	Version      int64
}

// PhotoCreate contains the data required to insert a new photo. The ID is
// chosen by the caller because the storage keys are derived from it.
type PhotoCreate struct {
	ID           string
	OwnerID      string
	OriginalKey  string
	ThumbnailKey string
	Filename     string
	Caption      string
	ContentType  string
	SizeBytes    int64
	Metadata     Metadata
}

// PhotoFilter selects photos of a single owner. A zero Limit means no limit.
type PhotoFilter struct {
	OwnerID       string
	Trashed       bool
	FavoritesOnly bool
	Limit         int
	Offset        int
}

// PhotoState holds the mutable lifecycle flags of a photo.
type PhotoState struct {
	IsDeleted  bool
	IsFavorite bool
}

// PhotoStats summarises the whole catalog.
type PhotoStats struct {
	Count int64
	Bytes int64
}

// Photos defines the operations supported for managing photos. Every lookup
// that takes an owner returns ErrNotFound for rows owned by somebody else.
type Photos interface {
	Create(ctx context.Context, input PhotoCreate) (Photo, error)
	GetForOwner(ctx context.Context, id, ownerID string) (Photo, error)
	List(ctx context.Context, filter PhotoFilter) ([]Photo, error)
	ListByIDs(ctx context.Context, ownerID string, ids []string) ([]Photo, error)
	// UpdateState writes the flags only when the stored version still equals
	// expectVersion, returning ErrConflict otherwise.
	UpdateState(ctx context.Context, id, ownerID string, expectVersion int64, state PhotoState) (Photo, error)
	// Delete removes the row together with its album memberships.
	Delete(ctx context.Context, id, ownerID string) error
	Each(ctx context.Context, fn func(Photo) error) error
	Stats(ctx context.Context) (PhotoStats, error)
}

// Album represents a user-owned collection of photos.
type Album struct {
	ID          string
	OwnerID     string
	Title       string
	Description string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// AlbumSummary is an album with the number of non-trashed members.
type AlbumSummary struct {
	Album
	PhotoCount int
}

type AlbumCreate struct {
	OwnerID     string
	Title       string
	Description string
}

// AlbumUpdate describes the mutable fields for an album. A nil field indicates
// that no update should be applied for that attribute.
type AlbumUpdate struct {
	Title       *string
	Description *string
}

// Albums defines the operations supported for managing albums and their
// membership edges.
type Albums interface {
	Create(ctx context.Context, input AlbumCreate) (Album, error)
	GetForOwner(ctx context.Context, id, ownerID string) (AlbumSummary, error)
	List(ctx context.Context, ownerID string) ([]AlbumSummary, error)
	Update(ctx context.Context, id, ownerID string, input AlbumUpdate) (Album, error)
	Delete(ctx context.Context, id, ownerID string) error
	// AddPhotos links the photos to the album, skipping existing members. It
	// returns ErrForbidden without linking anything when any photo is missing
	// or owned by someone else.
	AddPhotos(ctx context.Context, id, ownerID string, photoIDs []string) (int, error)
	RemovePhoto(ctx context.Context, id, ownerID, photoID string) error
	// ListPhotos returns the non-trashed members, newest first.
	ListPhotos(ctx context.Context, id, ownerID string) ([]Photo, error)
}
