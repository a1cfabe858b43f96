package sqlstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/StrixzIV/adv-compro-finals/internal/storage"
)

const photoColumns = `id, user_id, original_key, thumbnail_key, filename, caption, content_type,
		size_bytes, uploaded_at, metadata, is_deleted, is_favorite, version`

type photoRepository struct {
	conn
}

func (r *photoRepository) Create(ctx context.Context, input storage.PhotoCreate) (storage.Photo, error) {
	metadata, err := encodeMetadata(input.Metadata)
	if err != nil {
		return storage.Photo{}, fmt.Errorf("sqlstore: create photo: %w", err)
	}

	_, err = r.db.ExecContext(ctx, r.q(`
		INSERT INTO photos (id, user_id, original_key, thumbnail_key, filename, caption, content_type,
			size_bytes, uploaded_at, metadata, is_deleted, is_favorite, version)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, 1)`),
		input.ID,
		input.OwnerID,
		input.OriginalKey,
		input.ThumbnailKey,
		input.Filename,
		input.Caption,
		input.ContentType,
		input.SizeBytes,
		time.Now().UTC(),
		metadata,
		false,
		false,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return storage.Photo{}, storage.ErrConflict
		}
		return storage.Photo{}, fmt.Errorf("sqlstore: create photo: %w", err)
	}

	return r.GetForOwner(ctx, input.ID, input.OwnerID)
}

func (r *photoRepository) GetForOwner(ctx context.Context, id, ownerID string) (storage.Photo, error) {
	return getPhoto(ctx, r.conn, r.db, id, ownerID)
}

func getPhoto(ctx context.Context, c conn, db dbtx, id, ownerID string) (storage.Photo, error) {
	row := db.QueryRowContext(ctx, c.q(`
		SELECT `+photoColumns+`
		FROM photos
		WHERE id = ? AND user_id = ?`),
		id,
		ownerID,
	)
	return scanPhoto(row)
}

func (r *photoRepository) List(ctx context.Context, filter storage.PhotoFilter) ([]storage.Photo, error) {
	var (
		where = []string{"user_id = ?", "is_deleted = ?"}
		args  = []any{filter.OwnerID, filter.Trashed}
	)

	if filter.FavoritesOnly {
		where = append(where, "is_favorite = ?")
		args = append(args, true)
	}

	query := `SELECT ` + photoColumns + ` FROM photos WHERE ` + strings.Join(where, " AND ") +
		` ORDER BY uploaded_at DESC, id DESC`

	if filter.Limit > 0 {
		query += ` LIMIT ? OFFSET ?`
		args = append(args, filter.Limit, max(filter.Offset, 0))
	}

	return r.query(ctx, "list photos", r.q(query), args...)
}

func (r *photoRepository) ListByIDs(ctx context.Context, ownerID string, ids []string) ([]storage.Photo, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	args := make([]any, 0, len(ids)+1)
	args = append(args, ownerID)
	for _, id := range ids {
		args = append(args, id)
	}

	query := `SELECT ` + photoColumns + ` FROM photos WHERE user_id = ? AND id IN (` +
		placeholders(len(ids)) + `) ORDER BY uploaded_at DESC, id DESC`

	return r.query(ctx, "list photos by id", r.q(query), args...)
}

func (r *photoRepository) UpdateState(ctx context.Context, id, ownerID string, expectVersion int64, state storage.PhotoState) (storage.Photo, error) {
	res, err := r.db.ExecContext(ctx, r.q(`
		UPDATE photos
		SET is_deleted = ?, is_favorite = ?, version = version + 1
		WHERE id = ? AND user_id = ? AND version = ?`),
		state.IsDeleted,
		state.IsFavorite,
		id,
		ownerID,
		expectVersion,
	)
	if err != nil {
		return storage.Photo{}, fmt.Errorf("sqlstore: update photo state: %w", err)
	}

	rowsAffected, err := res.RowsAffected()
	if err != nil {
		return storage.Photo{}, fmt.Errorf("sqlstore: update photo state: %w", err)
	}

	if rowsAffected == 0 {
		if _, err := r.GetForOwner(ctx, id, ownerID); err != nil {
			return storage.Photo{}, err
		}
		return storage.Photo{}, storage.ErrConflict
	}

	return r.GetForOwner(ctx, id, ownerID)
}

func (r *photoRepository) Delete(ctx context.Context, id, ownerID string) error {
	return withTx(ctx, r.db, func(ctx context.Context, tx dbtx) error {
		if _, err := tx.ExecContext(ctx, r.q(`
			DELETE FROM album_photos
			WHERE photo_id IN (SELECT id FROM photos WHERE id = ? AND user_id = ?)`),
			id,
			ownerID,
		); err != nil {
			return fmt.Errorf("sqlstore: delete photo memberships: %w", err)
		}

		res, err := tx.ExecContext(ctx, r.q(`DELETE FROM photos WHERE id = ? AND user_id = ?`), id, ownerID)
		if err != nil {
			return fmt.Errorf("sqlstore: delete photo: %w", err)
		}

		rowsAffected, err := res.RowsAffected()
		if err != nil {
			return fmt.Errorf("sqlstore: delete photo: %w", err)
		}

		if rowsAffected == 0 {
			return storage.ErrNotFound
		}

		return nil
	})
}

func (r *photoRepository) Each(ctx context.Context, fn func(storage.Photo) error) error {
	rows, err := r.db.QueryContext(ctx, `SELECT `+photoColumns+` FROM photos ORDER BY uploaded_at, id`)
	if err != nil {
		return fmt.Errorf("sqlstore: walk photos: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		photo, err := scanPhoto(rows)
		if err != nil {
			return err
		}
		if err := fn(photo); err != nil {
			return err
		}
	}

	if err := rows.Err(); err != nil {
		return fmt.Errorf("sqlstore: walk photos: %w", err)
	}

	return nil
}

func (r *photoRepository) Stats(ctx context.Context) (storage.PhotoStats, error) {
	var stats storage.PhotoStats
	err := r.db.QueryRowContext(ctx, `SELECT COUNT(*), CAST(COALESCE(SUM(size_bytes), 0) AS BIGINT) FROM photos`).
		Scan(&stats.Count, &stats.Bytes)
	if err != nil {
		return storage.PhotoStats{}, fmt.Errorf("sqlstore: photo stats: %w", err)
	}
	return stats, nil
}

func (r *photoRepository) query(ctx context.Context, op, query string, args ...any) ([]storage.Photo, error) {
	return queryPhotos(ctx, r.db, op, query, args...)
}

func queryPhotos(ctx context.Context, db dbtx, op, query string, args ...any) ([]storage.Photo, error) {
	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("sqlstore: %s: %w", op, err)
	}
	defer rows.Close()

	var result []storage.Photo
	for rows.Next() {
		photo, err := scanPhoto(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, photo)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlstore: %s: %w", op, err)
	}

	return result, nil
}

func scanPhoto(s scanner) (storage.Photo, error) {
	var (
		photo      storage.Photo
		uploadedAt time.Time
		metadata   []byte
	)

	err := s.Scan(
		&photo.ID,
		&photo.OwnerID,
		&photo.OriginalKey,
		&photo.ThumbnailKey,
		&photo.Filename,
		&photo.Caption,
		&photo.ContentType,
		&photo.SizeBytes,
		&uploadedAt,
		&metadata,
		&photo.IsDeleted,
		&photo.IsFavorite,
		&photo.Version,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return storage.Photo{}, storage.ErrNotFound
		}
		return storage.Photo{}, fmt.Errorf("sqlstore: scan photo: %w", err)
	}

	if len(metadata) > 0 {
		if err := json.Unmarshal(metadata, &photo.Metadata); err != nil {
			return storage.Photo{}, fmt.Errorf("sqlstore: decode photo metadata: %w", err)
		}
	}

	photo.UploadedAt = uploadedAt.UTC()

	return photo, nil
}

func encodeMetadata(md storage.Metadata) (string, error) {
	raw, err := json.Marshal(md)
	if err != nil {
		return "", err
	}
	return string(raw), nil
}
