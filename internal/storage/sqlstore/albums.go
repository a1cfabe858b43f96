package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/StrixzIV/adv-compro-finals/internal/storage"
)

// Member counts skip trashed photos, matching what album views display.
const albumSummarySelect = `
		SELECT a.id, a.user_id, a.title, a.description, a.created_at, a.updated_at,
			(SELECT COUNT(*)
			 FROM album_photos ap
			 JOIN photos p ON p.id = ap.photo_id
			 WHERE ap.album_id = a.id AND p.is_deleted = ?) AS photo_count
		FROM albums a`

type albumRepository struct {
	conn
}

func (r *albumRepository) Create(ctx context.Context, input storage.AlbumCreate) (storage.Album, error) {
	id := uuid.NewString()
	now := time.Now().UTC()

	_, err := r.db.ExecContext(ctx, r.q(`
		INSERT INTO albums (id, user_id, title, description, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)`),
		id,
		input.OwnerID,
		input.Title,
		input.Description,
		now,
		now,
	)
	if err != nil {
		return storage.Album{}, fmt.Errorf("sqlstore: create album: %w", err)
	}

	summary, err := r.GetForOwner(ctx, id, input.OwnerID)
	if err != nil {
		return storage.Album{}, err
	}
	return summary.Album, nil
}

func (r *albumRepository) GetForOwner(ctx context.Context, id, ownerID string) (storage.AlbumSummary, error) {
	row := r.db.QueryRowContext(ctx, r.q(albumSummarySelect+`
		WHERE a.id = ? AND a.user_id = ?`),
		false,
		id,
		ownerID,
	)
	return scanAlbumSummary(row)
}

func (r *albumRepository) List(ctx context.Context, ownerID string) ([]storage.AlbumSummary, error) {
	rows, err := r.db.QueryContext(ctx, r.q(albumSummarySelect+`
		WHERE a.user_id = ?
		ORDER BY a.created_at DESC, a.id DESC`),
		false,
		ownerID,
	)
	if err != nil {
		return nil, fmt.Errorf("sqlstore: list albums: %w", err)
	}
	defer rows.Close()

	var result []storage.AlbumSummary
	for rows.Next() {
		album, err := scanAlbumSummary(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, album)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlstore: list albums: %w", err)
	}

	return result, nil
}

func (r *albumRepository) Update(ctx context.Context, id, ownerID string, input storage.AlbumUpdate) (storage.Album, error) {
	setClauses := make([]string, 0, 3)
	args := make([]any, 0, 5)

	if input.Title != nil {
		setClauses = append(setClauses, "title = ?")
		args = append(args, *input.Title)
	}

	if input.Description != nil {
		setClauses = append(setClauses, "description = ?")
		args = append(args, *input.Description)
	}

	if len(setClauses) == 0 {
		summary, err := r.GetForOwner(ctx, id, ownerID)
		return summary.Album, err
	}

	setClauses = append(setClauses, "updated_at = ?")
	args = append(args, time.Now().UTC(), id, ownerID)

	query := fmt.Sprintf("UPDATE albums SET %s WHERE id = ? AND user_id = ?", strings.Join(setClauses, ", "))

	res, err := r.db.ExecContext(ctx, r.q(query), args...)
	if err != nil {
		return storage.Album{}, fmt.Errorf("sqlstore: update album: %w", err)
	}

	rowsAffected, err := res.RowsAffected()
	if err != nil {
		return storage.Album{}, fmt.Errorf("sqlstore: update album: %w", err)
	}

	if rowsAffected == 0 {
		return storage.Album{}, storage.ErrNotFound
	}

	summary, err := r.GetForOwner(ctx, id, ownerID)
	return summary.Album, err
}

func (r *albumRepository) Delete(ctx context.Context, id, ownerID string) error {
	return withTx(ctx, r.db, func(ctx context.Context, tx dbtx) error {
		if err := r.ensureOwned(ctx, tx, id, ownerID); err != nil {
			return err
		}

		if _, err := tx.ExecContext(ctx, r.q(`DELETE FROM album_photos WHERE album_id = ?`), id); err != nil {
			return fmt.Errorf("sqlstore: delete album memberships: %w", err)
		}

		if _, err := tx.ExecContext(ctx, r.q(`DELETE FROM albums WHERE id = ? AND user_id = ?`), id, ownerID); err != nil {
			return fmt.Errorf("sqlstore: delete album: %w", err)
		}

		return nil
	})
}

func (r *albumRepository) AddPhotos(ctx context.Context, id, ownerID string, photoIDs []string) (int, error) {
	unique := dedupe(photoIDs)
	added := 0

	err := withTx(ctx, r.db, func(ctx context.Context, tx dbtx) error {
		if err := r.ensureOwned(ctx, tx, id, ownerID); err != nil {
			return err
		}

		if len(unique) == 0 {
			return nil
		}

		args := make([]any, 0, len(unique)+1)
		args = append(args, ownerID)
		for _, photoID := range unique {
			args = append(args, photoID)
		}

		var owned int
		err := tx.QueryRowContext(ctx, r.q(`
			SELECT COUNT(*) FROM photos
			WHERE user_id = ? AND id IN (`+placeholders(len(unique))+`)`),
			args...,
		).Scan(&owned)
		if err != nil {
			return fmt.Errorf("sqlstore: add album photos: %w", err)
		}
		if owned != len(unique) {
			return storage.ErrForbidden
		}

		now := time.Now().UTC()
		for _, photoID := range unique {
			res, err := tx.ExecContext(ctx, r.q(`
				INSERT INTO album_photos (album_id, photo_id, added_at)
				VALUES (?, ?, ?)
				ON CONFLICT (album_id, photo_id) DO NOTHING`),
				id,
				photoID,
				now,
			)
			if err != nil {
				return fmt.Errorf("sqlstore: add album photos: %w", err)
			}
			n, err := res.RowsAffected()
			if err != nil {
				return fmt.Errorf("sqlstore: add album photos: %w", err)
			}
			added += int(n)
		}

		if added > 0 {
			if _, err := tx.ExecContext(ctx, r.q(`UPDATE albums SET updated_at = ? WHERE id = ?`), now, id); err != nil {
				return fmt.Errorf("sqlstore: add album photos: %w", err)
			}
		}

		return nil
	})
	if err != nil {
		return 0, err
	}

	return added, nil
}

func (r *albumRepository) RemovePhoto(ctx context.Context, id, ownerID, photoID string) error {
	return withTx(ctx, r.db, func(ctx context.Context, tx dbtx) error {
		if err := r.ensureOwned(ctx, tx, id, ownerID); err != nil {
			return err
		}

		if _, err := tx.ExecContext(ctx, r.q(`
			DELETE FROM album_photos
			WHERE album_id = ? AND photo_id = ?`),
			id,
			photoID,
		); err != nil {
			return fmt.Errorf("sqlstore: remove album photo: %w", err)
		}

		return nil
	})
}

func (r *albumRepository) ListPhotos(ctx context.Context, id, ownerID string) ([]storage.Photo, error) {
	if err := r.ensureOwned(ctx, r.db, id, ownerID); err != nil {
		return nil, err
	}

	return queryPhotos(ctx, r.db, "list album photos", r.q(`
		SELECT `+prefixed("p.", photoColumns)+`
		FROM photos p
		JOIN album_photos ap ON ap.photo_id = p.id
		WHERE ap.album_id = ? AND p.user_id = ? AND p.is_deleted = ?
		ORDER BY p.uploaded_at DESC, p.id DESC`),
		id,
		ownerID,
		false,
	)
}

func (r *albumRepository) ensureOwned(ctx context.Context, db dbtx, id, ownerID string) error {
	var exists int
	err := db.QueryRowContext(ctx, r.q(`SELECT 1 FROM albums WHERE id = ? AND user_id = ?`), id, ownerID).Scan(&exists)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return storage.ErrNotFound
		}
		return fmt.Errorf("sqlstore: load album: %w", err)
	}
	return nil
}

func scanAlbumSummary(s scanner) (storage.AlbumSummary, error) {
	var (
		album     storage.AlbumSummary
		createdAt time.Time
		updatedAt time.Time
	)

	err := s.Scan(
		&album.ID,
		&album.OwnerID,
		&album.Title,
		&album.Description,
		&createdAt,
		&updatedAt,
		&album.PhotoCount,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return storage.AlbumSummary{}, storage.ErrNotFound
		}
		return storage.AlbumSummary{}, fmt.Errorf("sqlstore: scan album: %w", err)
	}

	album.CreatedAt = createdAt.UTC()
	album.UpdatedAt = updatedAt.UTC()

	return album, nil
}

func prefixed(prefix, columns string) string {
	parts := strings.Split(columns, ",")
	for i, part := range parts {
		parts[i] = prefix + strings.TrimSpace(part)
	}
	return strings.Join(parts, ", ")
}

func dedupe(ids []string) []string {
	seen := make(map[string]struct{}, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
