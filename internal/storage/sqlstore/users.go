package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/StrixzIV/adv-compro-finals/internal/storage"
)

type userRepository struct {
	conn
}

func (r *userRepository) Create(ctx context.Context, input storage.UserCreate) (storage.User, error) {
	id := uuid.NewString()
	now := time.Now().UTC()

	_, err := r.db.ExecContext(ctx, r.q(`
		INSERT INTO users (id, email, password_hash, google_id, display_name, created_at)
		VALUES (?, ?, ?, ?, ?, ?)`),
		id,
		input.Email,
		nullString(input.PasswordHash),
		nullString(input.GoogleID),
		input.DisplayName,
		now,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return storage.User{}, storage.ErrConflict
		}
		return storage.User{}, fmt.Errorf("sqlstore: create user: %w", err)
	}

	return r.GetByID(ctx, id)
}

func (r *userRepository) GetByID(ctx context.Context, id string) (storage.User, error) {
	row := r.db.QueryRowContext(ctx, r.q(`
		SELECT id, email, password_hash, google_id, display_name, created_at
		FROM users
		WHERE id = ?`),
		id,
	)
	return scanUser(row)
}

func (r *userRepository) GetByEmail(ctx context.Context, email string) (storage.User, error) {
	row := r.db.QueryRowContext(ctx, r.q(`
		SELECT id, email, password_hash, google_id, display_name, created_at
		FROM users
		WHERE email = ?`),
		email,
	)
	return scanUser(row)
}

func (r *userRepository) Count(ctx context.Context) (int64, error) {
	var n int64
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM users`).Scan(&n); err != nil {
		return 0, fmt.Errorf("sqlstore: count users: %w", err)
	}
	return n, nil
}

func scanUser(s scanner) (storage.User, error) {
	var (
		user         storage.User
		passwordHash sql.NullString
		googleID     sql.NullString
		createdAt    time.Time
	)

	err := s.Scan(
		&user.ID,
		&user.Email,
		&passwordHash,
		&googleID,
		&user.DisplayName,
		&createdAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return storage.User{}, storage.ErrNotFound
		}
		return storage.User{}, fmt.Errorf("sqlstore: scan user: %w", err)
	}

	user.PasswordHash = passwordHash.String
	user.GoogleID = googleID.String
	user.CreatedAt = createdAt.UTC()

	return user, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func nullString(v string) sql.NullString {
	return sql.NullString{String: v, Valid: v != ""}
}
